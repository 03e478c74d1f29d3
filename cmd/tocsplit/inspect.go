package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hntbot/biddocs/internal/docsplit"
)

func newInspectCmd(a *app) *cobra.Command {
	var maxTOCPages int

	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Show the CONTENTS page, initial offset and TOC text without calling a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := a.open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			if c, ok := pages.(io.Closer); ok {
				defer c.Close()
			}

			initial, err := docsplit.EstimateInitialOffset(pages, maxTOCPages)
			if err != nil {
				return describe(err)
			}
			toc, err := docsplit.ExtractTOCText(pages, maxTOCPages)
			if err != nil {
				return describe(err)
			}
			printInspect(cmd.OutOrStdout(), args[0], pages.PageCount(), initial, toc)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTOCPages, "max-toc-pages", a.cfg.SplitMaxTOCPages, "How many leading pages to search for CONTENTS")
	return cmd
}

func asSplitError(err error) (*docsplit.Error, bool) {
	var se *docsplit.Error
	ok := errors.As(err, &se)
	return se, ok
}
