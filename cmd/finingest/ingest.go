package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/pipeline"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

type ingestCmd struct {
	strict bool
	title  string
	scope  string
	form   string
	local  bool
	print  bool
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "parse, deduplicate and export documents" }
func (*ingestCmd) Usage() string {
	return `finingest ingest [-title <title>] [-scope <scope>] [-form W2] [-local] [-print] [-strict] <uri>...

  Runs each gs:// URI or local path through the ingest pipeline: format
  detection, parsing or tax-form extraction, identity resolution and export.
  With -local nothing is written to BigQuery and identities live in memory.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.title, "title", "", "Document title (defaults to the file name).")
	f.StringVar(&c.scope, "scope", pipeline.DefaultScope, "Identity scope.")
	f.StringVar(&c.form, "form", "", "Force tax-form extraction (W2, 1099-MISC, 1099-INT, 1099-DIV, 1099-B).")
	f.BoolVar(&c.local, "local", false, "Skip cloud services.")
	f.BoolVar(&c.print, "print", false, "Print the rendered markdown.")
	f.BoolVar(&c.strict, "strict", false, "Exit non-zero when a document was already ingested.")
}

func (c *ingestCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.title != "" && f.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "-title applies to a single document")
		return subcommands.ExitUsageError
	}
	form := taxform.FormUnknown
	if c.form != "" {
		if form = taxform.ParseFormType(c.form); form == taxform.FormUnknown {
			fmt.Fprintf(os.Stderr, "unknown form type %q\n", c.form)
			return subcommands.ExitUsageError
		}
	}

	a, err := open(ctx, args, c.local)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	status := subcommands.ExitSuccess
	for _, uri := range f.Args() {
		req := pipeline.Request{SourceURI: uri, Title: c.title, Scope: c.scope, FormType: form}
		if c.local {
			if abs, err := filepath.Abs(uri); err == nil {
				req.SourceURI = abs
			}
		}
		if err := ingestOne(ctx, a, req, c.print); err != nil {
			if !errors.Is(err, domain.ErrDuplicateContent) || c.strict {
				status = subcommands.ExitFailure
			}
		}
	}
	return status
}

// ingestOne reports a duplicate as domain.ErrDuplicateContent after
// printing it.
func ingestOne(ctx context.Context, a *app.App, req pipeline.Request, show bool) error {
	log := logger.FromContext(ctx)
	state, err := a.Ingest(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("source_uri", req.SourceURI).Msg("ingest failed")
		return err
	}

	fmt.Printf("%-9s %s %s\n", state.Resolution.Outcome, state.Resolution.Artifact.ID, state.Resolution.Artifact.Title)
	for _, w := range state.Warnings {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
	}
	if show {
		fmt.Println(state.Markdown)
	}
	if state.Resolution.Duplicate() {
		return fmt.Errorf("%s: %w", req.SourceURI, domain.ErrDuplicateContent)
	}
	return nil
}

type uploadCmd struct {
	bucket string
	object string
	ingest bool
	title  string
	scope  string
}

func (*uploadCmd) Name() string     { return "upload" }
func (*uploadCmd) Synopsis() string { return "upload a local file to Cloud Storage" }
func (*uploadCmd) Usage() string {
	return `finingest upload [-bucket <bucket>] [-object <name>] [-ingest] <file>

  Uploads the file and prints its gs:// URI. With -ingest the uploaded object
  is ingested right away.
`
}

func (c *uploadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bucket, "bucket", "", "Bucket name (defaults to FININGEST_GCS_BUCKET).")
	f.StringVar(&c.object, "object", "", "Object name (defaults to the file name).")
	f.BoolVar(&c.ingest, "ingest", false, "Ingest the uploaded object.")
	f.StringVar(&c.title, "title", "", "Document title for -ingest.")
	f.StringVar(&c.scope, "scope", pipeline.DefaultScope, "Identity scope for -ingest.")
}

func (c *uploadCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	filePath := f.Arg(0)

	a, err := open(ctx, args, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	bucket := c.bucket
	if bucket == "" {
		bucket = a.Config.GCP.Bucket
	}
	if bucket == "" {
		fmt.Fprintln(os.Stderr, "no bucket: pass -bucket or set FININGEST_GCS_BUCKET")
		return subcommands.ExitUsageError
	}
	object := c.object
	if object == "" {
		object = filepath.Base(filePath)
	}

	uri, err := a.GCS.Upload(ctx, bucket, object, filePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(uri)

	if c.ingest {
		err := ingestOne(ctx, a, pipeline.Request{SourceURI: uri, Title: c.title, Scope: c.scope}, false)
		if err != nil && !errors.Is(err, domain.ErrDuplicateContent) {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
