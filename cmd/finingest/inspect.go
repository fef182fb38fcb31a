package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-ingest/internal/parsers"
	"github.com/dvloznov/finance-ingest/internal/render"
	"github.com/dvloznov/finance-ingest/internal/taxform"
)

type detectCmd struct{}

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "report the detected format of local files" }
func (*detectCmd) Usage() string {
	return `finingest detect <file>...

  Prints the parser each file would be routed to. PDFs are also checked for
  tax-form markers.
`
}

func (*detectCmd) SetFlags(*flag.FlagSet) {}

func (c *detectCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, err := open(ctx, args, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		content, err := os.ReadFile(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			status = subcommands.ExitFailure
			continue
		}
		kind, err := parsers.Detect(filepath.Base(name), content)
		if err != nil {
			fmt.Printf("%s\tunsupported (%v)\n", name, err)
			status = subcommands.ExitFailure
			continue
		}
		line := fmt.Sprintf("%s\t%s", name, kind)
		if kind == parsers.KindPDF {
			if text, err := a.Deps.TaxText.ExtractText(ctx, content); err == nil {
				if form := taxform.DetectFormType(text); form != taxform.FormUnknown {
					line += "\ttax form " + string(form)
				}
			}
		}
		fmt.Println(line)
	}
	return status
}

type taxformCmd struct {
	form  string
	title string
	trace bool
}

func (*taxformCmd) Name() string     { return "taxform" }
func (*taxformCmd) Synopsis() string { return "extract a tax form from a local PDF" }
func (*taxformCmd) Usage() string {
	return `finingest taxform [-form W2] [-title <title>] [-trace] <file.pdf>

  Runs the extraction ladder and prints the form as markdown. Identifier
  fields are shown masked. Nothing is stored.
`
}

func (c *taxformCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.form, "form", "", "Form type; detected from the text when empty.")
	f.StringVar(&c.title, "title", "", "Heading title (defaults to the file name).")
	f.BoolVar(&c.trace, "trace", false, "Print each extraction attempt to stderr.")
}

func (c *taxformCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	pdf, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	a, err := open(ctx, args, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	form := taxform.ParseFormType(c.form)
	if form == taxform.FormUnknown {
		if c.form != "" {
			fmt.Fprintf(os.Stderr, "unknown form type %q\n", c.form)
			return subcommands.ExitUsageError
		}
		text, err := a.Deps.TaxText.ExtractText(ctx, pdf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading PDF text: %v\n", err)
			return subcommands.ExitFailure
		}
		if form = taxform.DetectFormType(text); form == taxform.FormUnknown {
			fmt.Fprintln(os.Stderr, "no tax form detected; pass -form")
			return subcommands.ExitFailure
		}
	}

	res, err := a.Taxforms.Extract(ctx, pdf, form)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	title := c.title
	if title == "" {
		base := filepath.Base(f.Arg(0))
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	fmt.Print(render.RenderTaxForm(title, res))

	if c.trace {
		for _, at := range res.Trace {
			line := fmt.Sprintf("%-14s confidence=%.2f fields=%d", at.Method, at.Confidence, at.Fields)
			if at.Error != "" {
				line += " error=" + at.Error
			}
			fmt.Fprintln(os.Stderr, line)
		}
	}
	if res.NeedsReview {
		fmt.Fprintln(os.Stderr, "needs review: confidence below threshold")
	}
	return subcommands.ExitSuccess
}
