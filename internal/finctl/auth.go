package finctl

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"fintrack/internal/dashboard"
)

type loginCmd struct {
	app   *App
	email string
	pin   string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in with your email and the PIN sent to you" }
func (*loginCmd) Usage() string {
	return `finctl login [-email <email>] [-pin <pin>]

  Requests a one-time PIN for a registered email and exchanges it for a
  session. Missing values are prompted for. An empty PIN goes back to the
  email step.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Registered email address.")
	f.StringVar(&c.pin, "pin", "", "The 6-digit PIN. Prompted for when empty.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	g := dashboard.NewGate(a.anonymous(), a.Sessions)
	if g.Step() == dashboard.StepAuthenticated {
		fmt.Fprintf(a.stdout(), "Already signed in as %s\n", g.Email())
		return subcommands.ExitSuccess
	}

	email := c.email
	for g.Step() != dashboard.StepAuthenticated {
		switch g.Step() {
		case dashboard.StepEmail:
			if email == "" {
				var err error
				if email, err = a.prompt("Email: "); err != nil {
					return a.fail(err)
				}
				if email == "" {
					return a.usage("email is required")
				}
			}
			if err := g.SubmitEmail(ctx, email); err != nil {
				fmt.Fprintln(a.stderr(), g.Err())
				return subcommands.ExitFailure
			}
			fmt.Fprintf(a.stderr(), "A PIN was sent for %s\n", g.Email())
		case dashboard.StepPIN:
			pin, fromFlag := c.pin, c.pin != ""
			if !fromFlag {
				var err error
				if pin, err = a.prompt("PIN: "); err != nil {
					return a.fail(err)
				}
			}
			if pin == "" {
				g.Back()
				email = ""
				continue
			}
			if err := g.SubmitPIN(ctx, pin); err != nil {
				fmt.Fprintln(a.stderr(), g.Err())
				if fromFlag {
					return subcommands.ExitFailure
				}
			}
		}
	}

	m, _ := g.Session()
	fmt.Fprintf(a.stdout(), "Signed in as %s until %s\n", m.Email, m.ExpiresAt.Local().Format("2 Jan 2006 15:04"))
	return subcommands.ExitSuccess
}

type logoutCmd struct{ app *App }

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "end the session and forget it locally" }
func (*logoutCmd) Usage() string    { return "finctl logout\n" }

func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	m, ok := a.Sessions.Load(a.now())
	g := dashboard.NewGate(a.newClient(m.Token), a.Sessions)
	if err := g.Logout(ctx); err != nil {
		return a.fail(err)
	}
	if ok {
		fmt.Fprintf(a.stdout(), "Signed out %s\n", m.Email)
	}
	return subcommands.ExitSuccess
}

type whoamiCmd struct{ app *App }

func (*whoamiCmd) Name() string     { return "whoami" }
func (*whoamiCmd) Synopsis() string { return "show the signed-in account" }
func (*whoamiCmd) Usage() string    { return "finctl whoami\n" }

func (*whoamiCmd) SetFlags(*flag.FlagSet) {}

func (c *whoamiCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	a := c.app
	m, ok := a.Sessions.Load(a.now())
	if !ok {
		return a.fail(errNotLoggedIn)
	}
	fmt.Fprintf(a.stdout(), "%s (session ends %s)\n", m.Email, m.ExpiresAt.Local().Format("2 Jan 2006 15:04"))
	return subcommands.ExitSuccess
}
