package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hntbot/biddocs/internal/docsplit"
)

func newSplitCmd(a *app) *cobra.Command {
	var (
		outDir      string
		provider    string
		model       string
		maxTOCPages int
		dryRun      bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "split <file.pdf>",
		Short: "Split a PDF into one file per chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if outDir == "" {
				outDir = strings.TrimSuffix(src, filepath.Ext(src)) + "_split"
			}

			completer, err := a.newCompleter(provider, model)
			if err != nil {
				return err
			}
			splitter := docsplit.New(docsplit.NewLLMInterpreter(completer), docsplit.Options{
				MaxTOCPages: maxTOCPages,
				Writer:      a.writer,
				Open:        a.open,
				Log:         a.logger(cmd),
			})

			out := cmd.OutOrStdout()
			if dryRun {
				pages, err := a.open(src)
				if err != nil {
					return fmt.Errorf("open %s: %w", src, err)
				}
				if c, ok := pages.(io.Closer); ok {
					defer c.Close()
				}
				plan, err := splitter.Plan(cmd.Context(), pages)
				if err != nil {
					return describe(err)
				}
				if asJSON {
					return writeJSON(out, plan)
				}
				printPlan(out, src, plan)
				return nil
			}

			result, err := splitter.Split(cmd.Context(), src, outDir)
			if err != nil {
				return describe(err)
			}
			if asJSON {
				return writeJSON(out, result)
			}
			printResult(out, src, outDir, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default: <file>_split next to the input)")
	cmd.Flags().StringVar(&provider, "provider", a.cfg.SplitProvider, "Model provider (gemini, openai, groq, azure_openai, anthropic)")
	cmd.Flags().StringVar(&model, "model", a.cfg.SplitModel, "Model used to read the table of contents")
	cmd.Flags().IntVar(&maxTOCPages, "max-toc-pages", a.cfg.SplitMaxTOCPages, "How many leading pages to search for CONTENTS")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute page ranges without writing files")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// describe appends the failure category to split pipeline errors.
func describe(err error) error {
	if se, ok := asSplitError(err); ok {
		return fmt.Errorf("%w (%s)", err, se.Kind.Category())
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
