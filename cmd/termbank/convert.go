package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/termbank/internal/config"
	"github.com/japaniel/termbank/internal/metrics"
	"github.com/japaniel/termbank/pkg/convert"
	"github.com/japaniel/termbank/pkg/dictionary"
	"github.com/japaniel/termbank/pkg/index"
	"github.com/japaniel/termbank/pkg/kanjidic"
	"github.com/japaniel/termbank/pkg/pipeline"
	"github.com/japaniel/termbank/pkg/policy"
	"github.com/japaniel/termbank/pkg/resolve"
	"github.com/japaniel/termbank/pkg/segment"
	"github.com/japaniel/termbank/pkg/yomitan"
)

func runConvert(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("convert", stderr)
	cfgPath := configFlag(flags)
	all := flags.Bool("all", false, "Convert every configured dictionary")
	workers := flags.Int("workers", 0, "Override run.workers")
	if err := flags.Parse(args); err != nil {
		return err
	}

	e, err := setup(*cfgPath, stderr)
	if err != nil {
		return err
	}
	defer e.Close()

	if *workers > 0 {
		e.cfg.Run.Workers = *workers
	}
	names := flags.Args()
	if *all {
		names = e.cfg.Names()
	}
	if len(names) == 0 {
		return fmt.Errorf("name a dictionary or pass -all (configured: %s)", strings.Join(e.cfg.Names(), ", "))
	}

	m := metrics.New()
	if addr := e.cfg.Metrics.Addr; addr != "" {
		stop := serveMetrics(addr, m, e.log.Component("metrics"))
		defer stop()
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		stats, err := convertDictionary(ctx, e, m, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(stdout, "%s: %d pages, %d entries, %d skipped, %d unmatched in %v\n",
			name, stats.Pages, stats.Entries, stats.SkippedTotal(), stats.Unmatched, time.Since(start).Round(time.Millisecond))
		lines, err := m.Summary(name)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintf(stdout, "  %s%s %v\n", l.Name, formatLabels(l.Labels), l.Value)
		}
	}
	fmt.Fprintf(stdout, "run id: %s\n", e.log.RunID())
	return nil
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// serveMetrics exposes the registry until the returned stop function runs.
func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// inputs are the files and services one dictionary conversion reads.
type inputs struct {
	seg      *segment.Analyzer
	lexicon  *dictionary.Lexicon
	readings *kanjidic.Service
	tagMap   map[string]string
	res      policy.Resources
	idx      pipeline.Indexes
}

// loadInputs reads everything a conversion needs concurrently. Missing
// optional files are logged and skipped; a missing head index is fatal.
func loadInputs(ctx context.Context, e *env, f config.Format, paths config.Paths, log zerolog.Logger) (*inputs, error) {
	in := &inputs{}
	var jyukugo, idiom *index.GroupedMap

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seg, err := segment.Default()
		if err != nil {
			return fmt.Errorf("segmenter: %w", err)
		}
		in.seg = seg
		return nil
	})

	if paths.Lexicon != "" {
		g.Go(func() error {
			if e.cfg.Lexicon.Download {
				if err := dictionary.EnsureDictionaryWithLogger(gctx, paths.Lexicon, log); err != nil {
					return fmt.Errorf("download lexicon: %w", err)
				}
			}
			lx, err := dictionary.LoadLexicon(paths.Lexicon)
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("path", paths.Lexicon).Msg("lexicon missing, continuing without part-of-speech tags")
				return nil
			}
			if err != nil {
				return fmt.Errorf("lexicon: %w", err)
			}
			log.Info().Int("entries", lx.Len()).Msg("lexicon loaded")
			in.lexicon = lx
			return nil
		})
	}

	opt := index.WithLogger(log)
	if paths.Index != "" {
		g.Go(func() error {
			m, err := index.Load(paths.Index, opt)
			if err != nil {
				return err
			}
			in.idx.Head = m
			return nil
		})
		g.Go(func() error {
			m, err := optional(index.Load(paths.Kanji, opt))
			in.idx.Kanji = m
			return err
		})
		g.Go(func() error {
			m, err := optional(index.LoadGrouped(paths.Jyukugo, opt))
			jyukugo = m
			return err
		})
		g.Go(func() error {
			m, err := optional(index.LoadGrouped(paths.Idiom, opt))
			idiom = m
			return err
		})
	}

	if paths.TagMap != "" {
		g.Go(func() error {
			m, err := convert.LoadTagMap(paths.TagMap)
			if err != nil {
				return fmt.Errorf("tag map: %w", err)
			}
			in.tagMap = m
			return nil
		})
	}
	if paths.ImageMap != "" {
		g.Go(func() error {
			m, err := policy.LoadNameMap(paths.ImageMap)
			in.res.ImageNames = m
			return err
		})
	}
	if paths.Gaiji != "" {
		g.Go(func() error {
			m, err := policy.LoadGaiji(paths.Gaiji)
			in.res.Gaiji = m
			return err
		})
	}
	if paths.AppendixEntries != "" {
		g.Go(func() error {
			m, err := policy.LoadAppendix(paths.AppendixEntries)
			in.res.Appendix = m
			return err
		})
	}

	var chars *kanjidic.Dictionary
	if path := e.cfg.Kanjidic.Path; path != "" {
		g.Go(func() error {
			d, err := kanjidic.Load(path)
			if err != nil {
				return fmt.Errorf("kanjidic: %w", err)
			}
			log.Info().Int("characters", d.Len()).Msg("kanjidic loaded")
			chars = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, gm := range []*index.GroupedMap{jyukugo, idiom} {
		if gm != nil {
			in.idx.Subitems = append(in.idx.Subitems, gm)
		}
	}

	opts := []kanjidic.Option{kanjidic.WithCache(e.store), kanjidic.WithLogger(log)}
	if chars != nil {
		opts = append(opts, kanjidic.WithCharacters(chars))
	}
	if in.lexicon != nil {
		opts = append(opts, kanjidic.WithWords(in.lexicon))
	}
	in.readings = kanjidic.NewService(opts...)

	in.res.Lexicon = in.lexicon
	in.res.Segmenter = in.seg
	in.res.LinkSkip = f.LinkSkip
	in.res.LinkClass = f.LinkClass
	in.res.AppendixTag = f.AppendixTag
	in.res.NormTag = f.NormalizationTag
	in.res.NormClass = f.NormalizationClass
	in.res.StrokeClass = f.StrokeClass
	in.res.LabelSection = f.LabelSection
	return in, nil
}

// optional treats a missing index file as absent.
func optional[T any](m *T, err error) (*T, error) {
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return m, err
}

// convertDictionary runs the whole conversion of one configured dictionary.
func convertDictionary(ctx context.Context, e *env, m *metrics.Metrics, name string) (pipeline.Stats, error) {
	f, err := e.cfg.Format(name)
	if err != nil {
		return pipeline.Stats{}, err
	}
	paths := e.cfg.PathsFor(name)
	log := e.log.Dictionary(name)
	rec := m.For(name)

	in, err := loadInputs(ctx, e, f, paths, log)
	if err != nil {
		return pipeline.Stats{}, err
	}
	if in.idx.Head != nil {
		rec.MalformedRecords(filepath.Base(in.idx.Head.Path()), len(in.idx.Head.Warnings))
	}
	if in.idx.Kanji != nil {
		rec.MalformedRecords(filepath.Base(in.idx.Kanji.Path()), len(in.idx.Kanji.Warnings))
	}
	for _, g := range in.idx.Subitems {
		rec.MalformedRecords(filepath.Base(g.Path()), len(g.Warnings))
	}

	policies, err := policy.Build(f.Policies, in.res)
	if err != nil {
		return pipeline.Stats{}, err
	}

	var conv *convert.Converter
	if f.StructuredContent() {
		conv = convert.New(convert.Options{
			TagMap:            in.tagMap,
			Ignored:           f.IgnoredElements,
			ExpressionElement: f.ExpressionElement,
			ParseAllLinks:     f.ParseAllLinks,
			Link:              policies.Link,
			Image:             policies.Image,
		})
	}

	sink, err := yomitan.NewSink(paths.Output,
		yomitan.WithChunkSize(e.cfg.Run.ChunkSize),
		yomitan.WithLogger(log),
		yomitan.WithFlushHook(rec.ChunkFlushed),
	)
	if err != nil {
		return pipeline.Stats{}, err
	}

	p, err := pipeline.New(pipeline.Options{
		Dictionary:       name,
		RunID:            e.log.RunID(),
		Workers:          e.cfg.Run.Workers,
		Structured:       f.StructuredContent(),
		SuppressHeadword: f.SuppressHeadword,
		RankKanaOnly:     f.RankKanaOnly,
		UsuallyKana:      f.UsuallyKana,
		SubitemElement:   f.Subitems(),
		SubitemsNotSplit: f.SubitemsNotSplit,
		ExamplesBody:     f.ExamplesBody,
		ExampleItem:      f.ExampleItem,
	}, in.idx, pipeline.Deps{
		Resolver:  resolve.New(in.seg, in.readings, resolve.WithLogger(log)),
		Converter: conv,
		Policies:  policies,
		Store:     e.store,
		Sink:      sink,
		Metrics:   rec,
		Logger:    log,
	})
	if err != nil {
		return pipeline.Stats{}, err
	}

	pages, err := pipeline.ListPages(paths.Pages)
	if err != nil {
		return pipeline.Stats{}, err
	}
	stats, err := p.Run(ctx, pages)
	if err != nil {
		return stats, err
	}
	if err := sink.Export(); err != nil {
		return stats, fmt.Errorf("export: %w", err)
	}
	log.Info().Str("output", paths.Output).Int("chunks", sink.Chunks()).Msg("term bank written")
	return stats, nil
}
