package main

import (
	"context"
	"fmt"
	"io"

	"github.com/japaniel/termbank/internal/config"
	"github.com/japaniel/termbank/internal/logger"
	"github.com/japaniel/termbank/pkg/dictionary"
)

func runDownloadLexicon(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("download-lexicon", stderr)
	cfgPath := configFlag(flags)
	path := flags.String("path", "", "Destination file (default lexicon.path from the configuration)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	dest := *path
	if dest == "" {
		dest = cfg.LexiconPath()
	}
	if err := dictionary.EnsureDictionaryWithLogger(ctx, dest, log.Component("lexicon")); err != nil {
		return err
	}
	lx, err := dictionary.LoadLexicon(dest)
	if err != nil {
		return fmt.Errorf("verify %s: %w", dest, err)
	}
	fmt.Fprintf(stdout, "lexicon ready at %s (%d entries)\n", dest, lx.Len())
	return nil
}
