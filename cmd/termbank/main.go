package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
)

const usage = `usage: termbank <command> [flags]

commands:
  convert           convert one or more configured dictionaries to term banks
  import-manual     load manual headword/reading overrides from a TSV file
  report            summarise the pages skipped by a run
  download-lexicon  fetch the JMdict lexicon if it is missing
`

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "convert":
		err = runConvert(ctx, args[1:], stdout, stderr)
	case "import-manual":
		err = runImportManual(ctx, args[1:], stdout, stderr)
	case "report":
		err = runReport(ctx, args[1:], stdout, stderr)
	case "download-lexicon":
		err = runDownloadLexicon(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "termbank %s: %v\n", args[0], err)
		return 1
	}
	return 0
}
