package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"

	"github.com/japaniel/termbank/internal/config"
	"github.com/japaniel/termbank/internal/logger"
	"github.com/japaniel/termbank/pkg/db"
)

// env is the state every subcommand starts from.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	store *sql.DB
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to the YAML configuration (default $TERMBANK_CONFIG or ./termbank.yaml)")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// setup loads the configuration, builds the logger and opens the store.
func setup(configPath string, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	store, err := db.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}
