// Package pipeline converts a source dictionary page by page: it looks up
// each page's index keys, resolves them into headword/reading pairs, converts
// the page markup and hands the resulting entries to a sink in page order.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/convert"
	"github.com/japaniel/termbank/pkg/db"
	"github.com/japaniel/termbank/pkg/index"
	"github.com/japaniel/termbank/pkg/policy"
	"github.com/japaniel/termbank/pkg/resolve"
	"github.com/japaniel/termbank/pkg/yomitan"
)

// Reasons recorded for pages that produce no entries.
const (
	ReasonRead       = "read"
	ReasonParse      = "parse"
	ReasonNoKeys     = "no-keys"
	ReasonUnresolved = "unresolved"
	ReasonConversion = "conversion"
)

// Resolver pairs a page's candidate keys. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(orthographic, phonetic []string) []resolve.Pair
}

// Sink receives finished entries. *yomitan.Sink satisfies it.
type Sink interface {
	Add(e *yomitan.Entry) error
}

// Recorder receives run counters. Implementations must be safe for use from
// the writer goroutine.
type Recorder interface {
	PageProcessed()
	PageSkipped(reason string)
	PageUnmatched()
	EntryWritten()
}

type nopRecorder struct{}

func (nopRecorder) PageProcessed()     {}
func (nopRecorder) PageSkipped(string) {}
func (nopRecorder) PageUnmatched()     {}
func (nopRecorder) EntryWritten()      {}

// Indexes are the key files of one dictionary. Head is required for
// index-based formats; the others are optional.
type Indexes struct {
	Head     *index.Map
	Kanji    *index.Map
	Subitems []*index.GroupedMap
}

// Options are the per-format switches.
type Options struct {
	Dictionary string
	RunID      string
	Workers    int

	// Structured selects converted markup over extracted plain text.
	Structured bool
	// SuppressHeadword leaves the expression element out of head entries.
	SuppressHeadword bool
	// RankKanaOnly ranks pages without any written form above the rest.
	RankKanaOnly bool
	// UsuallyKana adds a kana-only entry for words tagged "uk".
	UsuallyKana bool

	SubitemElement   string
	SubitemsNotSplit bool

	ExamplesBody string
	ExampleItem  string
}

// Deps are the collaborators shared by every page.
type Deps struct {
	Resolver  Resolver
	Converter *convert.Converter
	Policies  policy.Set
	// Store holds manual overrides and the skip log. Optional.
	Store   *sql.DB
	Sink    Sink
	Metrics Recorder
	Logger  zerolog.Logger

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// Pipeline is safe to Run once at a time.
type Pipeline struct {
	opts Options
	idx  Indexes
	deps Deps
	log  zerolog.Logger
}

// New builds a Pipeline.
func New(opts Options, idx Indexes, deps Deps) (*Pipeline, error) {
	if deps.Sink == nil {
		return nil, errors.New("pipeline: sink is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	if opts.Structured && deps.Converter == nil {
		return nil, errors.New("pipeline: structured output needs a converter")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Policies.Normalization == nil {
		deps.Policies.Normalization = policy.IdentityNormalization{}
	}
	if deps.Policies.PartOfSpeech == nil {
		deps.Policies.PartOfSpeech = policy.LexiconPOS{}
	}
	return &Pipeline{
		opts: opts,
		idx:  idx,
		deps: deps,
		log:  deps.Logger.With().Str("dictionary", opts.Dictionary).Logger(),
	}, nil
}

// Page is one markup file.
type Page struct {
	ID   string
	Path string
}

// ListPages returns the pages in dir sorted by id. The page id is the file
// name without its extension.
func ListPages(dir string) ([]Page, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var pages []Page
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		pages = append(pages, Page{
			ID:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path: filepath.Join(dir, name),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

// Stats summarises a run.
type Stats struct {
	Pages     int
	Entries   int
	Unmatched int
	Skipped   map[string]int
}

// SkippedTotal returns the number of pages that produced no entries.
func (s Stats) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Run processes pages and writes their entries in page order. Page-level
// failures are logged and counted; errors from the sink or the context end
// the run.
func (p *Pipeline) Run(ctx context.Context, pages []Page) (Stats, error) {
	stats := Stats{Skipped: make(map[string]int)}
	p.log.Info().Int("pages", len(pages)).Int("workers", p.opts.Workers).Msg("conversion started")

	var err error
	if p.opts.Workers <= 1 {
		err = p.runSequential(ctx, pages, &stats)
	} else {
		err = p.runParallel(ctx, pages, &stats)
	}

	p.log.Info().
		Int("pages", stats.Pages).
		Int("entries", stats.Entries).
		Int("skipped", stats.SkippedTotal()).
		Int("unmatched", stats.Unmatched).
		Msg("conversion finished")
	return stats, err
}

func (p *Pipeline) runSequential(ctx context.Context, pages []Page, stats *Stats) error {
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.write(ctx, p.process(ctx, i, page), stats); err != nil {
			return err
		}
	}
	return nil
}

// runParallel processes pages on a worker pool. A single writer goroutine
// reorders results by page index so the sink sees the sequential order.
func (p *Pipeline) runParallel(ctx context.Context, pages []Page, stats *Stats) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := p.opts.Workers
	var wp WorkerPoolInterface
	if p.deps.PoolFactory != nil {
		wp = p.deps.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	wp.Start(ctx)

	resultCh := make(chan pageResult, workers*2)
	doneCh := make(chan error, 1)

	go func() {
		buffer := make(map[int]pageResult)
		next := 0
		for res := range resultCh {
			buffer[res.index] = res
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				if err := p.write(ctx, item, stats); err != nil {
					cancel()
					for range resultCh {
					}
					doneCh <- err
					return
				}
				next++
			}
		}
		doneCh <- nil
	}()

	var submitErr error
	for i, page := range pages {
		if ctx.Err() != nil {
			break
		}
		idx, pg := i, page
		job := func(ctx context.Context) error {
			res := p.process(ctx, idx, pg)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if !errors.Is(err, context.Canceled) && err != ErrPoolClosed {
				submitErr = err
			}
			break
		}
	}

	// Workers are done once Close returns, so nothing sends on resultCh after it is closed.
	wp.Close()
	close(resultCh)
	writeErr := <-doneCh

	switch {
	case writeErr != nil:
		return writeErr
	case submitErr != nil:
		cancel()
		return submitErr
	}
	return ctx.Err()
}

// write hands one page's entries to the sink and records the outcome. It is
// only ever called from one goroutine at a time.
func (p *Pipeline) write(ctx context.Context, res pageResult, stats *Stats) error {
	stats.Pages++
	p.deps.Metrics.PageProcessed()

	if res.unmatched {
		stats.Unmatched++
		p.deps.Metrics.PageUnmatched()
	}

	for _, e := range res.entries {
		if err := p.deps.Sink.Add(e); err != nil {
			return fmt.Errorf("page %s: %w", res.page.ID, err)
		}
		stats.Entries++
		p.deps.Metrics.EntryWritten()
	}
	if len(res.entries) > 0 {
		return nil
	}

	reason := res.reason
	if reason == "" {
		reason = ReasonNoKeys
	}
	stats.Skipped[reason]++
	p.deps.Metrics.PageSkipped(reason)
	p.log.Warn().Str("page", res.page.ID).Str("reason", reason).Str("detail", res.detail).Strs("keys", res.keys).Msg("page skipped")

	if p.deps.Store != nil {
		err := db.RecordSkippedPage(ctx, p.deps.Store, db.SkippedPage{
			RunID:      p.opts.RunID,
			Dictionary: p.opts.Dictionary,
			PageID:     res.page.ID,
			Reason:     reason,
			Detail:     res.detail,
			Keys:       res.keys,
		})
		if err != nil {
			p.log.Error().Err(err).Str("page", res.page.ID).Msg("failed to record skipped page")
		}
	}
	return nil
}
