package finctl

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"fintrack/internal/core"
	"fintrack/internal/dashboard"
)

type listCmd struct {
	app    *App
	rng    rangeFlags
	filter string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list the transactions of a date range" }
func (*listCmd) Usage() string {
	return `finctl list [-s <start>] [-e <end>] [-type all|expense|income]

  Lists transactions in the range, newest first. The type filter is applied
  to the fetched list.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.rng.set(f)
	f.StringVar(&c.filter, "type", "all", "Show all, expense or income transactions.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	filter, err := dashboard.ParseTypeFilter(c.filter)
	if err != nil {
		return a.usage("%v", err)
	}
	dr, err := c.rng.resolve(a.now())
	if err != nil {
		return a.usage("%v", err)
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	view := dashboard.NewLedgerView(api)
	if err := view.Load(ctx, dr); err != nil {
		return a.fail(err)
	}
	a.printMarkdown(transactionsMarkdown(view.Filtered(filter), dr, filter, a.currency()))
	return subcommands.ExitSuccess
}

// txFlags are the form fields shared by add and edit.
type txFlags struct {
	typ         string
	amount      string
	date        string
	category    string
	description string
	vendor      string
}

func (t *txFlags) set(f *flag.FlagSet) {
	f.StringVar(&t.typ, "type", "expense", "expense or income.")
	f.StringVar(&t.amount, "amount", "", "Amount, for example 150000 or 12,5.")
	f.StringVar(&t.date, "date", "", "Date (YYYY-MM-DD). Defaults to today on add.")
	f.StringVar(&t.category, "category", "", "Category name or id. Use - to clear it on edit.")
	f.StringVar(&t.description, "desc", "", "Description.")
	f.StringVar(&t.vendor, "vendor", "", "Vendor.")
}

// apply copies the flags given on the command line into form.
func (t *txFlags) apply(form *dashboard.TransactionForm, set map[string]bool) error {
	if set["type"] {
		typ, err := core.ParseTxType(t.typ)
		if err != nil {
			return err
		}
		form.SetType(typ)
	}
	if set["amount"] {
		amount, err := core.ParseAmount(t.amount)
		if err != nil {
			return err
		}
		form.Amount = amount.String()
	}
	if set["date"] {
		form.Date = t.date
	}
	if set["desc"] {
		form.Description = t.description
	}
	if set["vendor"] {
		form.Vendor = t.vendor
	}
	if set["category"] {
		if t.category == "-" || t.category == "" {
			return form.SelectCategory(nil)
		}
		id, err := resolveCategory(form.Options(), t.category)
		if err != nil {
			return err
		}
		return form.SelectCategory(&id)
	}
	return nil
}

// resolveCategory finds a category offered by the form by id or name.
func resolveCategory(options []core.Category, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, c := range options {
			if c.ID == id {
				return id, nil
			}
		}
	}
	for _, c := range options {
		if strings.EqualFold(c.Name, strings.TrimSpace(ref)) {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: no such category %q for this type", core.ErrCategoryTypeMismatch, ref)
}

type addCmd struct {
	app *App
	tx  txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an expense or income" }
func (*addCmd) Usage() string {
	return `finctl add -amount <amount> [-type expense|income] [-date <date>] [-category <name|id>] [-desc <text>] [-vendor <text>]

  Only categories of the chosen type are accepted.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) { c.tx.set(f) }

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	view := dashboard.NewLedgerView(api)
	if err := view.Load(ctx, core.CurrentMonth(a.now())); err != nil {
		return a.fail(err)
	}
	form := dashboard.NewTransactionForm(view.Data().Categories, a.today())
	set := flagsSet(f)
	set["type"] = true
	if err := c.tx.apply(form, set); err != nil {
		return a.fail(err)
	}
	saved, err := view.Save(ctx, form)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Saved %s #%d: %s on %s\n", saved.Type, saved.ID, a.currency().Format(saved.Amount), saved.Date)
	return subcommands.ExitSuccess
}

type editCmd struct {
	app *App
	rng rangeFlags
	tx  txFlags
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change a transaction" }
func (*editCmd) Usage() string {
	return `finctl edit [-s <start>] [-e <end>] [field flags] <id>

  Loads the transaction from the given range (the current month by default)
  and replaces the fields given as flags. Changing the type clears the
  category unless a new one is given.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.rng.set(f)
	c.tx.set(f)
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		return a.usage("expected exactly one transaction id")
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return a.usage("invalid id %q", f.Arg(0))
	}
	dr, err := c.rng.resolve(a.now())
	if err != nil {
		return a.usage("%v", err)
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	view := dashboard.NewLedgerView(api)
	if err := view.Load(ctx, dr); err != nil {
		return a.fail(err)
	}
	var form *dashboard.TransactionForm
	for _, tx := range view.Data().Transactions {
		if tx.ID == id {
			form = dashboard.EditForm(tx, view.Data().Categories)
			break
		}
	}
	if form == nil {
		return a.fail(fmt.Errorf("%w: transaction %d in %s", core.ErrNotFound, id, dr))
	}
	if err := c.tx.apply(form, flagsSet(f)); err != nil {
		return a.fail(err)
	}
	saved, err := view.Save(ctx, form)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Updated #%d\n", saved.ID)
	return subcommands.ExitSuccess
}

type deleteCmd struct{ app *App }

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete transactions" }
func (*deleteCmd) Usage() string    { return "finctl delete <id> [<id>...]\n" }

func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() == 0 {
		return a.usage("expected at least one transaction id")
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			status = a.usage("invalid id %q", arg)
			continue
		}
		if err := api.DeleteTransaction(ctx, id); err != nil {
			status = a.fail(err)
			continue
		}
		fmt.Fprintf(a.stdout(), "Deleted #%d\n", id)
	}
	return status
}

type statsCmd struct {
	app *App
	rng rangeFlags
}

func (*statsCmd) Name() string     { return "dashboard" }
func (*statsCmd) Synopsis() string { return "show totals and the category breakdown" }
func (*statsCmd) Usage() string {
	return `finctl dashboard [-s <start>] [-e <end>]

  Shows income, expenses, net and count for the range with the per-category
  shares of each side.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) { c.rng.set(f) }

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	dr, err := c.rng.resolve(a.now())
	if err != nil {
		return a.usage("%v", err)
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	sum, err := api.Summary(ctx, dr)
	if err != nil {
		return a.fail(err)
	}
	a.printMarkdown(summaryMarkdown(sum, dr, a.currency()))
	return subcommands.ExitSuccess
}

type exportCmd struct {
	app    *App
	rng    rangeFlags
	format string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "download the transactions of a range as CSV or Excel" }
func (*exportCmd) Usage() string {
	return `finctl export [-s <start>] [-e <end>] [-format csv|xlsx] [-o <path>]

  Writes the file named by the server into the current directory unless -o
  is given. Use -o - for stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.rng.set(f)
	f.StringVar(&c.format, "format", "csv", "csv or xlsx.")
	f.StringVar(&c.output, "o", "", "Output path.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	dr, err := c.rng.resolve(a.now())
	if err != nil {
		return a.usage("%v", err)
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	body, filename, err := api.Export(ctx, dr, c.format)
	if err != nil {
		return a.fail(err)
	}
	if c.output == "-" {
		_, _ = a.stdout().Write(body)
		return subcommands.ExitSuccess
	}
	path := c.output
	if path == "" {
		path = filepath.Base(filename)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Wrote %s (%d bytes)\n", path, len(body))
	return subcommands.ExitSuccess
}
