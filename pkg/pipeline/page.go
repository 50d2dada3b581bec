package pipeline

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/content"
	"github.com/japaniel/termbank/pkg/convert"
	"github.com/japaniel/termbank/pkg/db"
	"github.com/japaniel/termbank/pkg/index"
	"github.com/japaniel/termbank/pkg/kana"
	"github.com/japaniel/termbank/pkg/markup"
	"github.com/japaniel/termbank/pkg/resolve"
	"github.com/japaniel/termbank/pkg/yomitan"
)

type pageResult struct {
	index   int
	page    Page
	entries []*yomitan.Entry

	// Set when no entry was produced.
	reason string
	detail string
	keys   []string

	unmatched bool
}

type contentKey struct {
	node     *html.Node
	suppress bool
}

// pageBuilder collects the entries of one page. Converted content is shared
// by every entry built from the same element.
type pageBuilder struct {
	p      *Pipeline
	log    zerolog.Logger
	res    *pageResult
	raw    []byte
	root   *html.Node
	cache  map[contentKey][]*content.Node
	failed map[contentKey]error
	plain  []string
}

func (p *Pipeline) process(ctx context.Context, i int, page Page) pageResult {
	res := pageResult{index: i, page: page}

	raw, err := os.ReadFile(page.Path)
	if err != nil {
		res.reason, res.detail = ReasonRead, err.Error()
		return res
	}
	root, err := markup.Parse(bytes.NewReader(raw))
	if err != nil {
		res.reason, res.detail = ReasonParse, err.Error()
		return res
	}
	if p.opts.ExampleItem != "" {
		markup.WrapExamples(root, p.opts.ExamplesBody, p.opts.ExampleItem)
	}

	b := &pageBuilder{
		p:      p,
		log:    p.log.With().Str("page", page.ID).Logger(),
		res:    &res,
		raw:    raw,
		root:   root,
		cache:  make(map[contentKey][]*content.Node),
		failed: make(map[contentKey]error),
	}
	b.headEntries(ctx)
	b.kanjiEntries()
	b.subitemEntries()
	return res
}

// fail remembers why the page may end up empty. The first reason wins.
func (b *pageBuilder) fail(reason, detail string) {
	if b.res.reason == "" {
		b.res.reason, b.res.detail = reason, detail
	}
}

// headEntries builds one entry per resolved pair of the page's head keys.
func (b *pageBuilder) headEntries(ctx context.Context) {
	if b.p.idx.Head == nil {
		return
	}
	keys := b.p.idx.Head.KeysForPage(b.res.page.ID)
	if len(keys) == 0 {
		b.log.Debug().Msg("no head keys")
		return
	}
	b.res.keys = keys

	norm := b.p.deps.Policies.Normalization
	keys = norm.Normalize(keys, norm.Context(b.root))
	cands := index.Categorize(keys)

	pairs := b.p.deps.Resolver.Resolve(cands.Orthographic, cands.Phonetic)
	if unresolved(pairs, cands) {
		if manual := b.manualPairs(ctx); len(manual) > 0 {
			pairs = manual
		} else {
			b.res.unmatched = true
			b.log.Warn().Strs("keys", keys).Msg("no reading matched and no manual override")
		}
	}
	if len(pairs) == 0 {
		b.fail(ReasonUnresolved, strings.Join(keys, " "))
		return
	}

	rank := 0
	if b.p.opts.RankKanaOnly && !hasOrthographic(pairs) {
		rank = 1
	}

	suppress := b.p.opts.SuppressHeadword
	kanaAdded := make(map[string]bool)
	for _, pair := range pairs {
		if pair.Orthographic == "" {
			if pair.Phonetic != "" && !kanaAdded[pair.Phonetic] {
				b.add(pair.Phonetic, "", b.root, suppress, "", rank)
				kanaAdded[pair.Phonetic] = true
			}
			continue
		}
		info, pos := b.p.deps.Policies.PartOfSpeech.FromMarkup(b.root, pair.Orthographic, pair.Phonetic)
		b.add(pair.Orthographic, pair.Phonetic, b.root, suppress, pos, rank)

		if b.p.opts.UsuallyKana && hasTag(info, "uk") && pair.Phonetic != "" && !kanaAdded[pair.Phonetic] {
			b.add(pair.Phonetic, "", b.root, suppress, pos, rank)
			kanaAdded[pair.Phonetic] = true
		}
	}
}

// kanjiEntries pairs every single-kanji key of the kanji index with every
// reading key.
func (b *pageBuilder) kanjiEntries() {
	if b.p.idx.Kanji == nil {
		return
	}
	keys := b.p.idx.Kanji.KeysForPage(b.res.page.ID)
	if len(keys) == 0 {
		return
	}
	if b.res.keys == nil {
		b.res.keys = keys
	}
	cands := index.Categorize(keys)
	for _, k := range cands.Orthographic {
		if kana.CountKanji(k) > 1 {
			b.log.Warn().Str("key", k).Strs("keys", keys).Msg("compound in kanji index")
			continue
		}
		for _, r := range cands.Phonetic {
			b.add(k, kana.ToHiragana(r), b.root, true, "", 0)
		}
	}
}

// subitemEntries builds entries for the idiom and compound sub-items of the
// page from the grouped indexes.
func (b *pageBuilder) subitemEntries() {
	for _, g := range b.p.idx.Subitems {
		items := g.OrganizedEntriesForPage(b.res.page.ID)
		if len(items) == 0 {
			continue
		}

		if b.p.opts.SubitemsNotSplit {
			if len(items) == 1 {
				for _, c := range items {
					orth := hiraganaAll(c.Orthographic)
					phon := hiraganaAll(c.Phonetic)
					for _, pair := range b.p.deps.Resolver.Resolve(orth, phon) {
						b.add(pair.Orthographic, pair.Phonetic, b.root, false, "", 0)
					}
				}
				continue
			}
			b.log.Warn().Int("items", len(items)).Msg("several sub-items in an unsplit dictionary")
		}

		if b.p.opts.SubitemElement == "" {
			continue
		}
		for _, el := range markup.FindAll(b.root, strings.ToLower(b.p.opts.SubitemElement)) {
			id := markup.Attr(el, "id")
			item, err := index.ParseItemRef(id)
			if err != nil {
				b.log.Warn().Err(err).Str("id", id).Msg("bad sub-item id")
				continue
			}
			c, ok := items[item]
			if !ok {
				b.log.Warn().Str("id", id).Msg("no index entry for sub-item")
				continue
			}
			for _, pair := range b.p.deps.Resolver.Resolve(c.Orthographic, c.Phonetic) {
				b.add(kana.ToHiragana(pair.Orthographic), kana.ToHiragana(pair.Phonetic), el, false, "", 0)
			}
		}
	}
}

// add builds an entry from the converted content of node.
func (b *pageBuilder) add(term, reading string, node *html.Node, suppress bool, pos string, rank int) {
	e := yomitan.NewEntry(term, reading)
	if e.Headword == "" {
		return
	}
	e.PosTag = pos
	e.SearchRank = rank

	if !b.p.opts.Structured {
		if b.plain == nil {
			b.plain = convert.PlainText(b.raw)
		}
		if len(b.plain) == 0 {
			b.fail(ReasonConversion, "page has no text")
			return
		}
		e.SetSimpleContent(b.plain...)
		b.res.entries = append(b.res.entries, e)
		return
	}

	nodes, err := b.convert(node, suppress)
	if err != nil {
		b.fail(ReasonConversion, err.Error())
		b.log.Error().Err(err).Str("headword", e.Headword).Msg("entry dropped")
		return
	}
	for _, n := range nodes {
		if err := e.AddElement(n); err != nil {
			b.fail(ReasonConversion, err.Error())
			return
		}
	}
	b.res.entries = append(b.res.entries, e)
}

func (b *pageBuilder) convert(node *html.Node, suppress bool) ([]*content.Node, error) {
	key := contentKey{node, suppress}
	if err, ok := b.failed[key]; ok {
		return nil, err
	}
	if nodes, ok := b.cache[key]; ok {
		return nodes, nil
	}
	nodes, err := b.p.deps.Converter.Entry(node, suppress)
	if err != nil {
		b.failed[key] = err
		return nil, err
	}
	b.cache[key] = nodes
	return nodes, nil
}

func (b *pageBuilder) manualPairs(ctx context.Context) []resolve.Pair {
	if b.p.deps.Store == nil {
		return nil
	}
	matches, err := db.ManualMatchesForPage(ctx, b.p.deps.Store, b.p.opts.Dictionary, b.res.page.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("manual override lookup failed")
		return nil
	}
	pairs := make([]resolve.Pair, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, resolve.Pair{Orthographic: m.Orthographic, Phonetic: m.Phonetic})
	}
	return pairs
}

// unresolved reports whether resolution failed to attach a reading while
// readings were available.
func unresolved(pairs []resolve.Pair, c index.Candidates) bool {
	if len(pairs) == 0 {
		return true
	}
	if len(c.Orthographic) == 0 || len(c.Phonetic) == 0 {
		return false
	}
	for _, p := range pairs {
		if p.Orthographic != "" && p.Phonetic == "" {
			return true
		}
	}
	return false
}

func hasOrthographic(pairs []resolve.Pair) bool {
	for _, p := range pairs {
		if p.Orthographic != "" {
			return true
		}
	}
	return false
}

func hasTag(tags, tag string) bool {
	for _, t := range strings.Fields(tags) {
		if t == tag {
			return true
		}
	}
	return false
}

func hiraganaAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = kana.ToHiragana(k)
	}
	return out
}

