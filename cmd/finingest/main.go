// Command finingest ingests financial documents and reports on them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&ingestCmd{}, "ingest")
	commander.Register(&uploadCmd{}, "ingest")
	commander.Register(&detectCmd{}, "inspect")
	commander.Register(&taxformCmd{}, "inspect")
	commander.Register(&subscriptionsCmd{}, "subscriptions")
	commander.Register(&publishSubscriptionsCmd{}, "subscriptions")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	os.Exit(int(commander.Execute(ctx, cfg)))
}

func configFrom(args []interface{}) *config.Config {
	return args[0].(*config.Config)
}

// open wires the pipeline for a command. The caller must Close the App.
func open(ctx context.Context, args []interface{}, local bool) (*app.App, error) {
	a, err := app.New(ctx, configFrom(args), app.Options{Local: local})
	if err != nil {
		if a != nil {
			_ = a.Close()
		}
		return nil, err
	}
	return a, nil
}
