package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/japaniel/termbank/pkg/db"
	"github.com/japaniel/termbank/pkg/index"
)

func runImportManual(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("import-manual", stderr)
	cfgPath := configFlag(flags)
	dict := flags.String("dict", "", "Configured dictionary the overrides belong to")
	updateIndex := flags.Bool("update-index", false, "Also add the forms to the dictionary's head index file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *dict == "" || flags.NArg() != 1 {
		return fmt.Errorf("usage: import-manual -dict <name> [-update-index] <file.tsv>")
	}

	e, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.cfg.Format(*dict); err != nil {
		return err
	}
	raw, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return err
	}

	added, err := db.ImportManualMatches(ctx, e.store, *dict, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d new override pairs for %s\n", added, *dict)

	if !*updateIndex {
		return nil
	}
	path := e.cfg.PathsFor(*dict).Index
	if path == "" {
		return fmt.Errorf("%s does not use an index", *dict)
	}
	m, err := index.Load(path, index.WithLogger(e.log.Component("index")))
	if err != nil {
		return err
	}
	keys := addOverrideKeys(m, raw)
	if keys == 0 {
		return nil
	}
	if err := m.Rewrite(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added %d keys to %s\n", keys, path)
	return nil
}

// addOverrideKeys records every form of an override file in m so the pages
// are reached by lookups on those forms too.
func addOverrideKeys(m *index.Map, raw []byte) int {
	added := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		page := strings.TrimSpace(parts[0])
		for _, form := range parts[1:] {
			form = strings.TrimSpace(form)
			if form != "" && m.AddEntry(page, form) {
				added++
			}
		}
	}
	return added
}

func runReport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("report", stderr)
	cfgPath := configFlag(flags)
	runID := flags.String("run", "", "Run id printed at the end of convert")
	verbose := flags.Bool("v", false, "List every skipped page")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("usage: report -run <id> [-v]")
	}

	e, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close()

	counts, err := db.CountSkippedByReason(ctx, e.store, *runID)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintf(stdout, "run %s skipped no pages\n", *runID)
		return nil
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(stdout, "%-12s %d\n", r, counts[r])
	}

	if !*verbose {
		return nil
	}
	pages, err := db.SkippedPages(ctx, e.store, *runID)
	if err != nil {
		return err
	}
	for _, p := range pages {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%s\n", p.Dictionary, p.PageID, p.Reason, strings.Join(p.Keys, " "), p.Detail)
	}
	return nil
}
