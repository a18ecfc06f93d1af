package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"fintrack/internal/finctl"
)

func main() {
	_ = godotenv.Load()

	app, err := finctl.NewApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.StringVar(&app.BaseURL, "api", app.BaseURL, "fintrack API address. Overrides "+finctl.EnvBaseURL+".")
	flag.BoolVar(&app.Plain, "plain", false, "Print reports as raw markdown.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	finctl.Register(commander, app)

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
