package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/convert"
	"github.com/japaniel/termbank/pkg/index"
)

func generateBenchmarkPages(b *testing.B, n int) ([]Page, *index.Map) {
	b.Helper()
	dir := b.TempDir()
	var keys strings.Builder
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%05d", i)
		body := fmt.Sprintf(`<entry><headword>語%d</headword><sense class="def">意味の<a href="x">説明</a>%d。</sense>`+
			`<ex>例文一。</ex><ex>例文二。</ex></entry>`, i, i)
		if err := os.WriteFile(filepath.Join(dir, id+".xml"), []byte(body), 0o644); err != nil {
			b.Fatal(err)
		}
		fmt.Fprintf(&keys, "語%d\t%s\nご%d\t%s\n", i, id, i, id)
	}
	idxPath := filepath.Join(b.TempDir(), "index_d.tsv")
	if err := os.WriteFile(idxPath, []byte(keys.String()), 0o644); err != nil {
		b.Fatal(err)
	}
	m, err := index.Load(idxPath)
	if err != nil {
		b.Fatal(err)
	}
	pages, err := ListPages(dir)
	if err != nil {
		b.Fatal(err)
	}
	return pages, m
}

func benchmarkRun(b *testing.B, workers int) {
	pages, head := generateBenchmarkPages(b, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := New(Options{Dictionary: "bench", Structured: true, Workers: workers}, Indexes{Head: head}, Deps{
			Resolver:  resolverFunc(crossJoin),
			Converter: convert.New(convert.Options{ExpressionElement: "headword"}),
			Sink:      &memorySink{},
			Logger:    zerolog.Nop(),
		})
		if err != nil {
			b.Fatal(err)
		}
		stats, err := p.Run(context.Background(), pages)
		if err != nil {
			b.Fatalf("run failed: %v", err)
		}
		if stats.Entries < len(pages) {
			b.Fatalf("expected at least %d entries, got %d", len(pages), stats.Entries)
		}
	}
}

func BenchmarkRunSequential(b *testing.B) { benchmarkRun(b, 1) }

func BenchmarkRunParallel(b *testing.B) { benchmarkRun(b, 4) }
