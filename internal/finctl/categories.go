package finctl

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"fintrack/internal/core"
	"fintrack/internal/dashboard"
)

type categoriesCmd struct {
	app *App
	typ string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "list categories" }
func (*categoriesCmd) Usage() string    { return "finctl categories [-type expense|income]\n" }

func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "", "Only list categories of this type.")
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	view := dashboard.NewCategoryView(api)
	if err := view.Load(ctx); err != nil {
		return a.fail(err)
	}
	cats := view.Categories()
	if c.typ != "" {
		typ, err := core.ParseTxType(c.typ)
		if err != nil {
			return a.usage("%v", err)
		}
		cats = view.OfType(typ)
	}
	a.printMarkdown(categoriesMarkdown(cats))
	return subcommands.ExitSuccess
}

type categoryFlags struct {
	name  string
	icon  string
	color string
	typ   string
}

func (cf *categoryFlags) set(f *flag.FlagSet) {
	f.StringVar(&cf.name, "name", "", "Category name.")
	f.StringVar(&cf.icon, "icon", "", "Icon, usually an emoji.")
	f.StringVar(&cf.color, "color", "", "Color as #RRGGBB. Defaults to "+core.DefaultCategoryColor+".")
	f.StringVar(&cf.typ, "type", "expense", "expense or income.")
}

func (cf *categoryFlags) apply(c *core.Category, set map[string]bool) error {
	if set["name"] {
		c.Name = cf.name
	}
	if set["icon"] {
		c.Icon = cf.icon
	}
	if set["color"] {
		c.Color = cf.color
	}
	if set["type"] {
		typ, err := core.ParseTxType(cf.typ)
		if err != nil {
			return err
		}
		c.Type = typ
	}
	return nil
}

type categoryAddCmd struct {
	app *App
	cat categoryFlags
}

func (*categoryAddCmd) Name() string     { return "category-add" }
func (*categoryAddCmd) Synopsis() string { return "create a category" }
func (*categoryAddCmd) Usage() string {
	return "finctl category-add -name <name> [-type expense|income] [-icon <icon>] [-color <#RRGGBB>]\n"
}

func (c *categoryAddCmd) SetFlags(f *flag.FlagSet) { c.cat.set(f) }

func (c *categoryAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	var cat core.Category
	set := flagsSet(f)
	set["type"] = true
	if err := c.cat.apply(&cat, set); err != nil {
		return a.usage("%v", err)
	}
	if cat.Name == "" {
		return a.usage("-name is required")
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	saved, err := dashboard.NewCategoryView(api).Save(ctx, cat)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Created %s category #%d %s\n", saved.Type, saved.ID, saved.Name)
	return subcommands.ExitSuccess
}

type categoryEditCmd struct {
	app *App
	cat categoryFlags
}

func (*categoryEditCmd) Name() string     { return "category-edit" }
func (*categoryEditCmd) Synopsis() string { return "change a category" }
func (*categoryEditCmd) Usage() string {
	return `finctl category-edit [-name <name>] [-type expense|income] [-icon <icon>] [-color <#RRGGBB>] <id>

  Changing the type of a category that transactions still use is refused.
`
}

func (c *categoryEditCmd) SetFlags(f *flag.FlagSet) { c.cat.set(f) }

func (c *categoryEditCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		return a.usage("expected exactly one category id")
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		return a.usage("invalid id %q", f.Arg(0))
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	view := dashboard.NewCategoryView(api)
	if err := view.Load(ctx); err != nil {
		return a.fail(err)
	}
	var cat *core.Category
	for _, existing := range view.Categories() {
		if existing.ID == id {
			cat = &existing
			break
		}
	}
	if cat == nil {
		return a.fail(fmt.Errorf("%w: category %d", core.ErrNotFound, id))
	}
	if err := c.cat.apply(cat, flagsSet(f)); err != nil {
		return a.usage("%v", err)
	}
	if _, err := view.Save(ctx, *cat); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Updated category #%d\n", id)
	return subcommands.ExitSuccess
}

type categoryDeleteCmd struct{ app *App }

func (*categoryDeleteCmd) Name() string     { return "category-delete" }
func (*categoryDeleteCmd) Synopsis() string { return "delete an unused category" }
func (*categoryDeleteCmd) Usage() string {
	return `finctl category-delete <id>

  Categories still referenced by transactions cannot be deleted.
`
}

func (*categoryDeleteCmd) SetFlags(*flag.FlagSet) {}

func (c *categoryDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		return a.usage("expected exactly one category id")
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		return a.usage("invalid id %q", f.Arg(0))
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	msg, err := dashboard.NewCategoryView(api).Delete(ctx, id)
	if err != nil {
		fmt.Fprintln(a.stderr(), "Error:", msg)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(a.stdout(), "Deleted category #%d\n", id)
	return subcommands.ExitSuccess
}
