package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/notionsync"
	"github.com/dvloznov/finance-ingest/internal/recurring"
	"github.com/dvloznov/finance-ingest/internal/render"
	"github.com/dvloznov/finance-ingest/internal/retry"
)

const dateLayout = "2006-01-02"

// chargeSource collects transactions either from local statements or from
// the BigQuery export and runs recurring-charge detection over them.
type chargeSource struct {
	from     string
	to       string
	min      int
	lookback int
}

func (s *chargeSource) setFlags(f *flag.FlagSet) {
	f.StringVar(&s.from, "from", "", "Start date (YYYY-MM-DD) for exported transactions. Defaults to one year before -to.")
	f.StringVar(&s.to, "to", "", "End date (YYYY-MM-DD) for exported transactions. Defaults to today.")
	f.IntVar(&s.min, "min", 2, "Minimum number of charges for a subscription.")
	f.IntVar(&s.lookback, "lookback", 0, "Only consider charges from the last N days.")
}

// charges reads files when any are given, the export otherwise.
func (s *chargeSource) charges(ctx context.Context, args []interface{}, files []string) ([]recurring.Charge, error) {
	local := len(files) > 0
	a, err := open(ctx, args, local)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var txns []domain.BankTransaction
	if local {
		txns, err = parseFiles(ctx, a, files)
	} else {
		txns, err = s.exported(ctx, a)
	}
	if err != nil {
		return nil, err
	}

	return recurring.Detect(txns, recurring.Options{
		MinOccurrences: s.min,
		LookbackDays:   s.lookback,
	}), nil
}

func (s *chargeSource) exported(ctx context.Context, a *app.App) ([]domain.BankTransaction, error) {
	end := time.Now()
	if s.to != "" {
		parsed, err := time.Parse(dateLayout, s.to)
		if err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
		end = parsed
	}
	start := end.AddDate(-1, 0, 0)
	if s.from != "" {
		parsed, err := time.Parse(dateLayout, s.from)
		if err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
		start = parsed
	}
	if end.Before(start) {
		return nil, fmt.Errorf("-to %s is before -from %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	rows, err := a.Repo.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	txns := make([]domain.BankTransaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.ToDomain())
	}
	return txns, nil
}

func parseFiles(ctx context.Context, a *app.App, files []string) ([]domain.BankTransaction, error) {
	var txns []domain.BankTransaction
	for _, name := range files {
		content, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		res, _, err := a.Registry.Parse(ctx, content, filepath.Base(name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		txns = append(txns, res.Transactions...)
	}
	return txns, nil
}

type subscriptionsCmd struct {
	chargeSource
}

func (*subscriptionsCmd) Name() string     { return "subscriptions" }
func (*subscriptionsCmd) Synopsis() string { return "report recurring charges" }
func (*subscriptionsCmd) Usage() string {
	return `finingest subscriptions [-from <date>] [-to <date>] [-min <n>] [-lookback <days>] [<statement>...]

  Detects recurring charges and prints a markdown report with a summary and
  recommendations. Local statements are parsed when given; otherwise the
  exported transactions in BigQuery are read.
`
}

func (c *subscriptionsCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *subscriptionsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	charges, err := c.charges(ctx, args, f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Print(render.RenderSubscriptions(charges))
	fmt.Println()
	fmt.Println(recurring.Summarize(charges))
	for _, rec := range recurring.Recommendations(charges) {
		fmt.Printf("- %s\n", rec)
	}
	return subcommands.ExitSuccess
}

type publishSubscriptionsCmd struct {
	chargeSource
	dryRun bool
}

func (*publishSubscriptionsCmd) Name() string { return "publish-subscriptions" }
func (*publishSubscriptionsCmd) Synopsis() string {
	return "sync recurring charges to a Notion database"
}
func (*publishSubscriptionsCmd) Usage() string {
	return `finingest publish-subscriptions [-dry-run] [-from <date>] [-to <date>] [<statement>...]

  Detects recurring charges like "subscriptions" and mirrors them into the
  Notion database named by FININGEST_NOTION_SUBSCRIPTIONS_DB. Pages for charges
  that are no longer detected are archived.
`
}

func (c *publishSubscriptionsCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.BoolVar(&c.dryRun, "dry-run", false, "Preview changes without writing to Notion.")
}

func (c *publishSubscriptionsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		fmt.Fprintln(os.Stderr, "FININGEST_NOTION_TOKEN and FININGEST_NOTION_SUBSCRIPTIONS_DB are required")
		return subcommands.ExitUsageError
	}

	charges, err := c.charges(ctx, args, f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	client := notionsync.NewNotionClient(cfg.Notion.Token, retry.FromConfig(cfg.Retry))
	stats, err := notionsync.SyncCharges(ctx, client, cfg.Notion.DatabaseID, charges, c.dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("created=%d updated=%d archived=%d failed=%d\n", stats.Created, stats.Updated, stats.Archived, stats.Failed)
	if stats.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
