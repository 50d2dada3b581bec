package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/termbank/pkg/convert"
	"github.com/japaniel/termbank/pkg/db"
	"github.com/japaniel/termbank/pkg/dictionary"
	"github.com/japaniel/termbank/pkg/index"
	"github.com/japaniel/termbank/pkg/policy"
	"github.com/japaniel/termbank/pkg/resolve"
	"github.com/japaniel/termbank/pkg/yomitan"
)

type resolverFunc func(orthographic, phonetic []string) []resolve.Pair

func (f resolverFunc) Resolve(orthographic, phonetic []string) []resolve.Pair {
	return f(orthographic, phonetic)
}

// crossJoin pairs every written form with every reading.
func crossJoin(orthographic, phonetic []string) []resolve.Pair {
	var out []resolve.Pair
	switch {
	case len(orthographic) == 0:
		for _, p := range phonetic {
			out = append(out, resolve.Pair{Phonetic: p})
		}
	case len(phonetic) == 0:
		for _, o := range orthographic {
			out = append(out, resolve.Pair{Orthographic: o})
		}
	default:
		for _, o := range orthographic {
			for _, p := range phonetic {
				out = append(out, resolve.Pair{Orthographic: o, Phonetic: p})
			}
		}
	}
	return out
}

type memorySink struct {
	mu      sync.Mutex
	entries []*yomitan.Entry
	err     error
}

func (s *memorySink) Add(e *yomitan.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Headword + "/" + e.Reading
	}
	return out
}

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func writePages(t *testing.T, pages map[string]string) []Page {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pages")
	for id, body := range pages {
		writeFile(t, filepath.Join(dir, id+".xml"), body)
	}
	list, err := ListPages(dir)
	require.NoError(t, err)
	return list
}

func loadIndex(t *testing.T, body string) *index.Map {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index_d.tsv")
	writeFile(t, path, body)
	m, err := index.Load(path)
	require.NoError(t, err)
	return m
}

func loadGrouped(t *testing.T, body string) *index.GroupedMap {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idiom_prefix.tsv")
	writeFile(t, path, body)
	g, err := index.LoadGrouped(path)
	require.NoError(t, err)
	return g
}

func openStore(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func entryJSON(t *testing.T, e *yomitan.Entry) string {
	t.Helper()
	b, err := e.MarshalJSON()
	require.NoError(t, err)
	return string(b)
}

func baseOptions() Options {
	return Options{
		Dictionary:       "test",
		RunID:            "run-1",
		Structured:       true,
		SuppressHeadword: true,
	}
}

func baseDeps(sink Sink) Deps {
	return Deps{
		Resolver:  resolverFunc(crossJoin),
		Converter: convert.New(convert.Options{ExpressionElement: "headword"}),
		Sink:      sink,
		Logger:    zerolog.Nop(),
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(baseOptions(), Indexes{}, Deps{Resolver: resolverFunc(crossJoin)})
	require.Error(t, err)

	_, err = New(baseOptions(), Indexes{}, Deps{Sink: &memorySink{}})
	require.Error(t, err)

	deps := baseDeps(&memorySink{})
	deps.Converter = nil
	_, err = New(baseOptions(), Indexes{}, deps)
	require.Error(t, err)

	opts := baseOptions()
	opts.Structured = false
	_, err = New(opts, Indexes{}, deps)
	require.NoError(t, err)
}

func TestListPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0002.xml"), "<a/>")
	writeFile(t, filepath.Join(dir, "0001.xml"), "<a/>")
	writeFile(t, filepath.Join(dir, ".DS_Store"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img"), 0o755))

	pages, err := ListPages(dir)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "0001", pages[0].ID)
	assert.Equal(t, filepath.Join(dir, "0002.xml"), pages[1].Path)

	_, err = ListPages(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestRunHeadEntries(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>留守</headword><sense>家をあけること。</sense></entry>",
		"0002": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
		"0003": "<entry><sense>索引にない。</sense></entry>",
	})
	idx := Indexes{Head: loadIndex(t, "留守\t0001\nるす\t0001\n犬\t0002\nいぬ\t0002\n")}
	store := openStore(t)
	sink := &memorySink{}
	deps := baseDeps(sink)
	deps.Store = store

	p, err := New(baseOptions(), idx, deps)
	require.NoError(t, err)
	stats, err := p.Run(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, []string{"留守/るす", "犬/いぬ"}, sink.terms())
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, map[string]int{ReasonNoKeys: 1}, stats.Skipped)
	assert.Equal(t, 1, stats.SkippedTotal())

	first := entryJSON(t, sink.entries[0])
	assert.Contains(t, first, "家をあけること。")
	assert.Contains(t, first, "structured-content")
	assert.NotContains(t, first, `"headword"`)

	skipped, err := db.SkippedPages(context.Background(), store, "run-1")
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "0003", skipped[0].PageID)
	assert.Equal(t, ReasonNoKeys, skipped[0].Reason)
}

func TestRunKeepsHeadwordWhenNotSuppressed(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.SuppressHeadword = false
	p, err := New(opts, Indexes{Head: loadIndex(t, "犬\t0001\nいぬ\t0001\n")}, baseDeps(sink))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	require.Len(t, sink.entries, 1)
	assert.Contains(t, entryJSON(t, sink.entries[0]), `"headword"`)
}

func TestRunManualOverride(t *testing.T) {
	body := "<entry><headword>留守</headword><sense>家をあけること。</sense></entry>"
	noReading := resolverFunc(func(o, _ []string) []resolve.Pair {
		return []resolve.Pair{{Orthographic: o[0]}}
	})

	t.Run("override applies", func(t *testing.T) {
		pages := writePages(t, map[string]string{"0001": body})
		store := openStore(t)
		_, err := db.AddManualMatch(context.Background(), store, db.ManualMatch{
			Dictionary: "test", PageID: "0001", Orthographic: "留守", Phonetic: "るす",
		})
		require.NoError(t, err)

		sink := &memorySink{}
		deps := baseDeps(sink)
		deps.Resolver = noReading
		deps.Store = store
		p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "留守\t0001\nるす\t0001\n")}, deps)
		require.NoError(t, err)

		stats, err := p.Run(context.Background(), pages)
		require.NoError(t, err)
		assert.Equal(t, []string{"留守/るす"}, sink.terms())
		assert.Zero(t, stats.Unmatched)
	})

	t.Run("unmatched keeps the headword", func(t *testing.T) {
		pages := writePages(t, map[string]string{"0001": body})
		sink := &memorySink{}
		deps := baseDeps(sink)
		deps.Resolver = noReading
		deps.Store = openStore(t)
		p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "留守\t0001\nるす\t0001\n")}, deps)
		require.NoError(t, err)

		stats, err := p.Run(context.Background(), pages)
		require.NoError(t, err)
		assert.Equal(t, []string{"留守/"}, sink.terms())
		assert.Equal(t, 1, stats.Unmatched)
	})
}

func TestRunUnresolvedPage(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><sense>なし。</sense></entry>",
	})
	sink := &memorySink{}
	deps := baseDeps(sink)
	deps.Resolver = resolverFunc(func(o, p []string) []resolve.Pair { return nil })
	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "留守\t0001\nるす\t0001\n")}, deps)
	require.NoError(t, err)

	stats, err := p.Run(context.Background(), pages)
	require.NoError(t, err)
	assert.Empty(t, sink.entries)
	assert.Equal(t, map[string]int{ReasonUnresolved: 1}, stats.Skipped)
	assert.Equal(t, 1, stats.Unmatched)
}

func TestRunUsuallyKana(t *testing.T) {
	lx := dictionary.NewLexicon([]dictionary.JMdictEntry{{
		Id:    "1",
		Kanji: []dictionary.JMdictElement{{Text: "迄"}},
		Kana:  []dictionary.JMdictElement{{Text: "まで"}},
		Sense: []dictionary.JMdictSense{{PartOfSpeech: []string{"prt"}, Misc: []string{"uk"}}},
	}})
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>迄</headword><sense>限度を表す。</sense></entry>",
	})
	idx := Indexes{Head: loadIndex(t, "迄\t0001\nまで\t0001\n")}

	for _, uk := range []bool{false, true} {
		t.Run(fmt.Sprintf("uk=%v", uk), func(t *testing.T) {
			sink := &memorySink{}
			deps := baseDeps(sink)
			deps.Policies.PartOfSpeech = policy.LexiconPOS{Lexicon: lx}
			opts := baseOptions()
			opts.UsuallyKana = uk
			p, err := New(opts, idx, deps)
			require.NoError(t, err)
			_, err = p.Run(context.Background(), pages)
			require.NoError(t, err)

			want := []string{"迄/まで"}
			if uk {
				want = append(want, "まで/")
			}
			assert.Equal(t, want, sink.terms())
		})
	}
}

func TestRunRankKanaOnly(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>する</headword><sense>行う。</sense></entry>",
		"0002": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.RankKanaOnly = true
	p, err := New(opts, Indexes{Head: loadIndex(t, "する\t0001\n犬\t0002\nいぬ\t0002\n")}, baseDeps(sink))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	require.Equal(t, []string{"する/", "犬/いぬ"}, sink.terms())
	assert.Equal(t, 1, sink.entries[0].SearchRank)
	assert.Equal(t, 0, sink.entries[1].SearchRank)
}

func TestRunScriptNormalization(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": `<entry><headword>ペン</headword><sense>筆記具。</sense></entry>`,
	})
	sink := &memorySink{}
	deps := baseDeps(sink)
	deps.Policies.Normalization = policy.ScriptNormalization{Tag: "headword"}
	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "ぺん\t0001\n")}, deps)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, []string{"ペン/"}, sink.terms())
}

func TestRunKanjiEntries(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>留</headword><sense>とどまる。</sense></entry>",
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.SuppressHeadword = false
	idx := Indexes{Kanji: loadIndex(t, "留\t0001\nル\t0001\nリュウ\t0001\n留守\t0001\n")}
	p, err := New(opts, idx, baseDeps(sink))
	require.NoError(t, err)
	stats, err := p.Run(context.Background(), pages)
	require.NoError(t, err)

	assert.Equal(t, []string{"留/る", "留/りゅう"}, sink.terms())
	assert.Equal(t, 2, stats.Entries)
	// Kanji entries always leave the headword element out.
	assert.NotContains(t, entryJSON(t, sink.entries[0]), `"headword"`)
}

func TestRunSubitems(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": `<entry><headword>花</headword><sense>植物。</sense>` +
			`<idiom id="0001-00a"><head>花見</head><def>桜を見る。</def></idiom>` +
			`<idiom id="0001-00b"><head>花道</head><def>退く時。</def></idiom></entry>`,
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.SubitemElement = "IDIOM"
	idx := Indexes{
		Head:     loadIndex(t, "花\t0001\nはな\t0001\n"),
		Subitems: []*index.GroupedMap{loadGrouped(t, "花見\t0001-00a\nはなみ\t0001-00a\n花道\t0001-00f\n")},
	}
	p, err := New(opts, idx, baseDeps(sink))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	require.Equal(t, []string{"花/はな", "花見/はなみ"}, sink.terms())
	sub := entryJSON(t, sink.entries[1])
	assert.Contains(t, sub, "桜を見る。")
	assert.NotContains(t, sub, "植物。")
}

func TestRunSubitemsFoldToHiragana(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": `<entry><headword>花</headword><sense>植物。</sense>` +
			`<idiom id="0001-00a"><head>花見（ハナミ）</head><def>桜を見る。</def></idiom></entry>`,
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.SubitemElement = "idiom"
	deps := baseDeps(sink)
	deps.Policies.Normalization = policy.ScriptNormalization{Tag: "head"}
	idx := Indexes{
		Head:     loadIndex(t, "花\t0001\nはな\t0001\n"),
		Subitems: []*index.GroupedMap{loadGrouped(t, "花見\t0001-00a\nハナミ\t0001-00a\n")},
	}
	p, err := New(opts, idx, deps)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	// The head entry follows the katakana context; sub-items always fold.
	assert.Equal(t, []string{"花/ハナ", "花見/はなみ"}, sink.terms())
}

func TestRunSubitemsNotSplit(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0002": "<entry><headword>花見</headword><sense>桜を見る。</sense></entry>",
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.SubitemsNotSplit = true
	idx := Indexes{Subitems: []*index.GroupedMap{loadGrouped(t, "花見\t0002-001\nハナミ\t0002-001\n")}}
	p, err := New(opts, idx, baseDeps(sink))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	require.Equal(t, []string{"花見/はなみ"}, sink.terms())
	assert.Contains(t, entryJSON(t, sink.entries[0]), "花見")
}

func TestRunConversionFailure(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
	})
	store := openStore(t)
	sink := &memorySink{}
	deps := baseDeps(sink)
	deps.Store = store
	deps.Converter = convert.New(convert.Options{
		ExpressionElement: "headword",
		TagMap:            map[string]string{"sense": "blink"},
	})
	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "犬\t0001\nいぬ\t0001\n")}, deps)
	require.NoError(t, err)

	stats, err := p.Run(context.Background(), pages)
	require.NoError(t, err)
	assert.Empty(t, sink.entries)
	assert.Equal(t, map[string]int{ReasonConversion: 1}, stats.Skipped)

	counts, err := db.CountSkippedByReason(context.Background(), store, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ReasonConversion: 1}, counts)
}

func TestRunPlainText(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<div><p>動物の一つ。</p><p>人に飼われる。</p></div>",
	})
	sink := &memorySink{}
	opts := baseOptions()
	opts.Structured = false
	deps := baseDeps(sink)
	deps.Converter = nil
	p, err := New(opts, Indexes{Head: loadIndex(t, "犬\t0001\nいぬ\t0001\n")}, deps)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)

	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.False(t, e.Structured())
	assert.Positive(t, e.Len())
	assert.Contains(t, entryJSON(t, e), "動物の一つ。")
}

func TestRunMissingPage(t *testing.T) {
	sink := &memorySink{}
	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "犬\t0001\n")}, baseDeps(sink))
	require.NoError(t, err)
	stats, err := p.Run(context.Background(), []Page{{ID: "0001", Path: filepath.Join(t.TempDir(), "0001.xml")}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ReasonRead: 1}, stats.Skipped)
}

func TestRunParallelMatchesSequential(t *testing.T) {
	bodies := make(map[string]string)
	var keys string
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("%04d", i+1)
		bodies[id] = fmt.Sprintf("<entry><headword>語%d</headword><sense>意味%d。</sense></entry>", i, i)
		keys += fmt.Sprintf("語%d\t%s\nご%d\t%s\n", i, id, i, id)
	}
	pages := writePages(t, bodies)
	idx := Indexes{Head: loadIndex(t, keys)}

	run := func(workers int) ([]string, Stats) {
		sink := &memorySink{}
		opts := baseOptions()
		opts.Workers = workers
		p, err := New(opts, idx, baseDeps(sink))
		require.NoError(t, err)
		stats, err := p.Run(context.Background(), pages)
		require.NoError(t, err)
		return sink.terms(), stats
	}

	seq, seqStats := run(1)
	par, parStats := run(4)
	require.Len(t, seq, 40)
	assert.Equal(t, seq, par)
	assert.Equal(t, seqStats, parStats)
}

func TestRunHandlesSubmitError(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
	})
	sink := &memorySink{}
	deps := baseDeps(sink)
	deps.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }
	opts := baseOptions()
	opts.Workers = 2
	p, err := New(opts, Indexes{Head: loadIndex(t, "犬\t0001\n")}, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = p.Run(ctx, pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit failed")
}

func TestRunSinkErrorStopsRun(t *testing.T) {
	bodies := make(map[string]string)
	var keys string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("%04d", i+1)
		bodies[id] = "<entry><sense>意味。</sense></entry>"
		keys += fmt.Sprintf("ご\t%s\n", id)
	}
	pages := writePages(t, bodies)
	idx := Indexes{Head: loadIndex(t, keys)}
	diskFull := errors.New("disk full")

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opts := baseOptions()
			opts.Workers = workers
			p, err := New(opts, idx, baseDeps(&memorySink{err: diskFull}))
			require.NoError(t, err)
			_, err = p.Run(context.Background(), pages)
			require.ErrorIs(t, err, diskFull)
		})
	}
}

func TestRunCanceledContext(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><sense>意味。</sense></entry>",
	})
	sink := &memorySink{}
	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "ご\t0001\n")}, baseDeps(sink))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := p.Run(ctx, pages)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Pages)
	assert.Empty(t, sink.entries)
}

func TestRunWritesTermBank(t *testing.T) {
	pages := writePages(t, map[string]string{
		"0001": "<entry><headword>犬</headword><sense>動物。</sense></entry>",
		"0002": "<entry><headword>猫</headword><sense>動物。</sense></entry>",
	})
	out := t.TempDir()
	sink, err := yomitan.NewSink(out, yomitan.WithChunkSize(1))
	require.NoError(t, err)

	p, err := New(baseOptions(), Indexes{Head: loadIndex(t, "犬\t0001\nいぬ\t0001\n猫\t0002\nねこ\t0002\n")}, baseDeps(sink))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), pages)
	require.NoError(t, err)
	require.NoError(t, sink.Export())

	b, err := os.ReadFile(filepath.Join(out, "term_bank_2.json"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "猫")
	assert.Equal(t, 2, sink.Total())
}
