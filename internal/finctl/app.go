// Package finctl implements the finctl commands: a terminal front end to the
// fintrack API that prints its reports as markdown.
package finctl

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"fintrack/internal/client"
	"fintrack/internal/core"
	"fintrack/internal/format"
)

// EnvBaseURL overrides the API address.
const EnvBaseURL = "FINTRACK_API_URL"

var errNotLoggedIn = errors.New("not logged in: run finctl login")

// App carries what every command needs. The zero value of the optional
// fields means stdio, the real clock and IDR.
type App struct {
	BaseURL    string
	Sessions   *client.SessionStore
	HTTPClient *http.Client

	In  io.Reader
	Out io.Writer
	Err io.Writer

	Now      func() time.Time
	Currency *format.Currency
	// Plain prints markdown as is instead of rendering it for the terminal.
	Plain bool

	reader *bufio.Reader
}

// NewApp reads the API address from the environment and keeps the session
// marker in the user config directory.
func NewApp() (*App, error) {
	path, err := client.DefaultSessionPath()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(os.Getenv(EnvBaseURL))
	if base == "" {
		base = client.DefaultBaseURL
	}
	return &App{BaseURL: base, Sessions: client.NewSessionStore(path)}, nil
}

// Register adds every command to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&loginCmd{app: app}, "session")
	c.Register(&logoutCmd{app: app}, "session")
	c.Register(&whoamiCmd{app: app}, "session")

	c.Register(&listCmd{app: app}, "ledger")
	c.Register(&addCmd{app: app}, "ledger")
	c.Register(&editCmd{app: app}, "ledger")
	c.Register(&deleteCmd{app: app}, "ledger")
	c.Register(&statsCmd{app: app}, "ledger")
	c.Register(&exportCmd{app: app}, "ledger")

	c.Register(&categoriesCmd{app: app}, "categories")
	c.Register(&categoryAddCmd{app: app}, "categories")
	c.Register(&categoryEditCmd{app: app}, "categories")
	c.Register(&categoryDeleteCmd{app: app}, "categories")

	c.Register(&investCmd{app: app}, "investments")
	c.Register(&investStartCmd{app: app}, "investments")
	c.Register(&investHoldingCmd{app: app}, "investments")
	c.Register(&investContributeCmd{app: app}, "investments")
	c.Register(&investBudgetCmd{app: app}, "investments")
	c.Register(&investHistoryCmd{app: app}, "investments")
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) today() core.Date { return core.DateOf(a.now()) }

func (a *App) currency() *format.Currency {
	if a.Currency == nil {
		a.Currency = format.IDR()
	}
	return a.Currency
}

func (a *App) stdout() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) stderr() io.Writer {
	if a.Err == nil {
		return os.Stderr
	}
	return a.Err
}

func (a *App) newClient(token string) *client.Client {
	opts := []client.Option{client.WithToken(token)}
	if a.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(a.HTTPClient))
	}
	return client.New(a.BaseURL, opts...)
}

// anonymous is a client without credentials, for the login flow.
func (a *App) anonymous() *client.Client { return a.newClient("") }

// authed returns a client carrying the stored session token.
func (a *App) authed() (*client.Client, error) {
	m, ok := a.Sessions.Load(a.now())
	if !ok {
		return nil, errNotLoggedIn
	}
	return a.newClient(m.Token), nil
}

// prompt reads one line from the input.
func (a *App) prompt(label string) (string, error) {
	if a.reader == nil {
		in := a.In
		if in == nil {
			in = os.Stdin
		}
		a.reader = bufio.NewReader(in)
	}
	fmt.Fprint(a.stderr(), label)
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// fail prints the user-facing message of err.
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(a.stderr(), "Error:", client.Message(err))
	return subcommands.ExitFailure
}

func (a *App) usage(msg string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.stderr(), msg+"\n", args...)
	return subcommands.ExitUsageError
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func (a *App) printMarkdown(md string) {
	if a.Plain {
		fmt.Fprint(a.stdout(), md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(a.stdout(), out)
			return
		}
	}
	fmt.Fprint(a.stdout(), md)
}

// rangeFlags selects a date range; both ends default to the current month.
type rangeFlags struct {
	start string
	end   string
}

func (r *rangeFlags) set(f *flag.FlagSet) {
	f.StringVar(&r.start, "s", "", "Start date (YYYY-MM-DD). Defaults to the first of the month.")
	f.StringVar(&r.end, "e", "", "End date (YYYY-MM-DD). Defaults to today.")
}

func (r *rangeFlags) resolve(now time.Time) (core.DateRange, error) {
	dr := core.CurrentMonth(now)
	if r.start != "" {
		d, err := core.ParseDate(r.start)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("start date: %w", err)
		}
		dr.Start = d
	}
	if r.end != "" {
		d, err := core.ParseDate(r.end)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("end date: %w", err)
		}
		dr.End = d
	}
	return dr, dr.Validate()
}

// flagsSet returns the names of the flags given on the command line.
func flagsSet(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
