package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hntbot/biddocs/internal/config"
	"github.com/hntbot/biddocs/internal/docsplit"
	"github.com/hntbot/biddocs/internal/llm"
)

// app holds what the commands need from the outside world so tests can swap
// the model and the PDF layer.
type app struct {
	cfg          config.Config
	newCompleter func(provider, model string) (docsplit.Completer, error)
	open         docsplit.Opener
	writer       docsplit.RangeWriter
}

func defaultApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg,
		newCompleter: func(provider, model string) (docsplit.Completer, error) {
			c, err := llm.New(cfg.LLM(provider, model))
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		open: docsplit.OpenPDF,
	}, nil
}

var verbose bool

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tocsplit",
		Short: "Split a PDF by its printed table of contents",
		Long: `tocsplit finds the CONTENTS page of a typeset PDF, asks a language model to
read the chapter list, reconciles printed page numbers with physical pages,
and writes one PDF per chapter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each pipeline stage to stderr")

	root.AddCommand(newSplitCmd(a), newInspectCmd(a))
	return root
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
