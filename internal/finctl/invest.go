package finctl

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/dashboard"
	"fintrack/internal/invest"
)

type investCmd struct{ app *App }

func (*investCmd) Name() string     { return "invest" }
func (*investCmd) Synopsis() string { return "show the portfolio, this month's plan and action items" }
func (*investCmd) Usage() string    { return "finctl invest\n" }

func (*investCmd) SetFlags(*flag.FlagSet) {}

func (c *investCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	view, status, ok := c.app.loadInvestments(ctx)
	if !ok {
		return status
	}
	data, _ := view.Data()
	a.printMarkdown(investmentMarkdown(data, a.currency()))
	return subcommands.ExitSuccess
}

// loadInvestments fetches the whole investment batch; any failure is
// reported as one load error.
func (a *App) loadInvestments(ctx context.Context) (*dashboard.InvestmentView, subcommands.ExitStatus, bool) {
	api, err := a.authed()
	if err != nil {
		return nil, a.fail(err), false
	}
	view := dashboard.NewInvestmentView(api)
	if err := view.Load(ctx); err != nil {
		fmt.Fprintln(a.stderr(), "Error:", dashboard.ErrInvestmentLoad)
		return nil, subcommands.ExitFailure, false
	}
	return view, subcommands.ExitSuccess, true
}

type investStartCmd struct{ app *App }

func (*investStartCmd) Name() string     { return "invest-start" }
func (*investStartCmd) Synopsis() string { return "start the contribution plan today" }
func (*investStartCmd) Usage() string    { return "finctl invest-start\n" }

func (*investStartCmd) SetFlags(*flag.FlagSet) {}

func (c *investStartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	cfg, err := api.StartPlan(ctx)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Plan started on %s\n", cfg.StartDate)
	return subcommands.ExitSuccess
}

type investHoldingCmd struct{ app *App }

func (*investHoldingCmd) Name() string     { return "invest-holding" }
func (*investHoldingCmd) Synopsis() string { return "set the current value of an asset" }
func (*investHoldingCmd) Usage() string {
	return fmt.Sprintf(`finctl invest-holding <asset> <value>

  Records the mark-to-market value of one asset. Assets: %s.
`, assetList())
}

func (*investHoldingCmd) SetFlags(*flag.FlagSet) {}

func (c *investHoldingCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 2 {
		return a.usage("expected <asset> <value>")
	}
	asset, err := invest.ParseAssetType(f.Arg(0))
	if err != nil {
		return a.usage("%v; assets: %s", err, assetList())
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(f.Arg(1), ",", "."))
	if err != nil {
		return a.usage("invalid value %q", f.Arg(1))
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	h, err := api.SetHolding(ctx, asset, value)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "%s is now %s\n", h.Name, a.currency().Format(h.CurrentValue))
	return subcommands.ExitSuccess
}

type investContributeCmd struct {
	app    *App
	asset  string
	amount string
	date   string
	notes  string
}

func (*investContributeCmd) Name() string     { return "invest-contribute" }
func (*investContributeCmd) Synopsis() string { return "record a contribution" }
func (*investContributeCmd) Usage() string {
	return `finctl invest-contribute -asset <asset> -amount <amount> [-date <date>] [-notes <text>]

  Contributions are history only; they do not change holding values.
`
}

func (c *investContributeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "", "Asset type.")
	f.StringVar(&c.amount, "amount", "", "Amount contributed.")
	f.StringVar(&c.date, "date", "", "Date (YYYY-MM-DD). Defaults to today.")
	f.StringVar(&c.notes, "notes", "", "Free text.")
}

func (c *investContributeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.asset == "" {
		return a.usage("-asset is required; assets: %s", assetList())
	}
	asset, err := invest.ParseAssetType(c.asset)
	if err != nil {
		return a.usage("%v; assets: %s", err, assetList())
	}
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		return a.usage("-amount: %v", err)
	}
	date := a.today()
	if c.date != "" {
		if date, err = core.ParseDate(c.date); err != nil {
			return a.usage("-date: %v", err)
		}
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	if _, err := api.AddContribution(ctx, invest.Contribution{Type: asset, Amount: amount, Date: date, Notes: c.notes}); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Recorded %s into %s on %s\n", a.currency().Format(amount), asset, date)
	return subcommands.ExitSuccess
}

type investBudgetCmd struct{ app *App }

func (*investBudgetCmd) Name() string     { return "invest-budget" }
func (*investBudgetCmd) Synopsis() string { return "set the monthly investment budget" }
func (*investBudgetCmd) Usage() string    { return "finctl invest-budget <amount>\n" }

func (*investBudgetCmd) SetFlags(*flag.FlagSet) {}

func (c *investBudgetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		return a.usage("expected exactly one amount")
	}
	budget, err := decimal.NewFromString(strings.ReplaceAll(f.Arg(0), ",", "."))
	if err != nil {
		return a.usage("invalid amount %q", f.Arg(0))
	}
	api, err := a.authed()
	if err != nil {
		return a.fail(err)
	}
	sum, err := api.InvestmentSummary(ctx)
	if err != nil {
		return a.fail(err)
	}
	cfg, err := api.UpdateConfig(ctx, invest.PlanConfig{MonthlyBudget: budget, StartDate: sum.StartDate})
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout(), "Monthly budget is now %s\n", a.currency().Format(cfg.MonthlyBudget))
	return subcommands.ExitSuccess
}

type investHistoryCmd struct{ app *App }

func (*investHistoryCmd) Name() string     { return "invest-history" }
func (*investHistoryCmd) Synopsis() string { return "list recorded contributions" }
func (*investHistoryCmd) Usage() string    { return "finctl invest-history\n" }

func (*investHistoryCmd) SetFlags(*flag.FlagSet) {}

func (c *investHistoryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	view, status, ok := a.loadInvestments(ctx)
	if !ok {
		return status
	}
	data, _ := view.Data()
	a.printMarkdown(contributionsMarkdown(data.Contributions, a.currency()))
	return subcommands.ExitSuccess
}

func assetList() string {
	var names []string
	for _, as := range invest.Assets() {
		names = append(names, string(as.Type))
	}
	return strings.Join(names, ", ")
}
