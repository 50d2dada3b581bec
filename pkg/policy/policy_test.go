package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/content"
	"github.com/japaniel/termbank/pkg/dictionary"
	"github.com/japaniel/termbank/pkg/markup"
	"github.com/japaniel/termbank/pkg/segment"
)

func element(t *testing.T, src, selector string) *html.Node {
	t.Helper()
	root, err := markup.ParseString(src)
	require.NoError(t, err)
	n := markup.Find(root, selector)
	require.NotNil(t, n, "selector %q", selector)
	return n
}

func TestDefaultLink(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tag  string
		href string
	}{
		{"text", `<a>留守</a>`, "a", "?query=留守&wildcards=off"},
		{"numeric", `<a>123</a>`, "span", ""},
		{"full-width numeric", `<a>１２</a>`, "span", ""},
		{"circled number", `<a>②</a>`, "span", ""},
		{"circled twenty", `<a>⑳</a>`, "span", ""},
		{"number with text", `<a>②留守</a>`, "a", "?query=②留守&wildcards=off"},
		{"empty", `<a></a>`, "span", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := element(t, tt.src, "a")
			got := DefaultLink{}.Link(el, []any{markup.Text(el)}, nil, nil)
			assert.Equal(t, tt.tag, got.Tag)
			assert.Equal(t, tt.href, got.Href)
			require.NoError(t, content.Validate(got))
		})
	}
}

func TestTextLinkSkipsAnnotations(t *testing.T) {
	el := element(t, `<a>「留守」<note>注</note></a>`, "a")
	got := TextLink{Skip: []string{"note"}, StripBrackets: true}.Link(el, []any{"留守"}, nil, nil)
	assert.Equal(t, "?query=留守&wildcards=off", got.Href)

	restricted := TextLink{Class: "xref"}.Link(el, []any{"留守"}, nil, []string{"other"})
	assert.Equal(t, "span", restricted.Tag)
}

func TestRubyLinkSplitsAlternatives(t *testing.T) {
	el := element(t, `<a><ruby>犬<rt>いぬ</rt></ruby>・<ruby>猫<rt>ねこ</rt></ruby></a>`, "a")
	got := RubyLink{}.Link(el, nil, map[string]string{"ref": ""}, nil)
	require.Equal(t, "span", got.Tag)

	children, ok := got.Content.([]any)
	require.True(t, ok)
	require.Len(t, children, 3)
	assert.Equal(t, "?query=犬&wildcards=off", children[0].(*content.Node).Href)
	assert.Equal(t, "・", children[1].(*content.Node).Content)
	assert.Equal(t, "?query=猫&wildcards=off", children[2].(*content.Node).Href)
	require.NoError(t, content.Validate(got))

	single := element(t, `<a><ruby>留守<rt>るす</rt></ruby></a>`, "a")
	assert.Equal(t, "?query=留守&wildcards=off", RubyLink{}.Link(single, nil, nil, nil).Href)
}

func TestMapLink(t *testing.T) {
	el := element(t, `<a href="map:ll=35.68,139.76&z=10">東京</a>`, "a")
	got := MapLink{Next: DefaultLink{}}.Link(el, []any{"東京"}, nil, nil)
	assert.Equal(t, "https://maps.apple.com/?ll=35.68,139.76", got.Href)

	plain := element(t, `<a href="x.html">東京</a>`, "a")
	got = MapLink{Next: DefaultLink{}}.Link(plain, []any{"東京"}, nil, nil)
	assert.Equal(t, "?query=東京&wildcards=off", got.Href)
}

func TestAppendixLink(t *testing.T) {
	p := AppendixLink{
		Entries: map[string]string{"appendix/0012.html": "助数詞"},
		Tag:     "ref",
		Next:    DefaultLink{},
	}

	el := element(t, `<a href="index/0012.html#top">→</a>`, "a")
	got := p.Link(el, []any{"→"}, nil, nil)
	require.Equal(t, "span", got.Tag)
	inner := got.Content.([]any)[0].(*content.Node)
	assert.Equal(t, "?query=助数詞&wildcards=off", inner.Href)

	unknown := element(t, `<a href="index/9999.html">→</a>`, "a")
	assert.Empty(t, p.Link(unknown, []any{"→"}, nil, nil).Href)

	ref := element(t, `<ref>留守</ref>`, "ref")
	assert.Equal(t, "?query=留守&wildcards=off", p.Link(ref, []any{"留守"}, nil, nil).Href)
}

func TestImagePolicies(t *testing.T) {
	t.Run("default strips leading slash", func(t *testing.T) {
		el := element(t, `<img src="/g/0001.png"/>`, "img")
		got := DefaultImage{}.Image(el, nil, nil, nil)
		img := got.Content.([]any)[0].(*content.Node)
		assert.Equal(t, "g/0001.png", img.Path)
		require.NoError(t, content.Validate(got))
	})

	t.Run("hashed falls back across normalization forms", func(t *testing.T) {
		// Map key is NFC; the source spells the name decomposed.
		p := HashedImage{Names: map[string]string{"ガ.png": "ab12.png"}}
		assert.Equal(t, "img/ab12.png", p.Resolve("img/カ\u3099.png"))
		assert.Equal(t, "img/none.png", p.Resolve("img/none.png"))
	})

	t.Run("gaiji becomes text", func(t *testing.T) {
		el := element(t, `<img src="g/0001.png"/>`, "img")
		p := GaijiImage{Replacements: map[string]Gaiji{"0001.png": {Text: "𠮷", Class: "gaiji"}}}
		got := p.Image(el, nil, map[string]string{"k": "v"}, nil)
		assert.Equal(t, "𠮷", got.Content)
		assert.Equal(t, map[string]string{"k": "v", "gaiji": ""}, got.Data)
	})

	t.Run("rewrite", func(t *testing.T) {
		heic := element(t, `<img src="photo/a.HEIC"/>`, "img")
		got := RewriteImage{}.Image(heic, nil, nil, nil)
		assert.Equal(t, "photo/a.avif", got.Content.([]any)[0].(*content.Node).Path)

		audio := element(t, `<img src="icons/Audio.png"/>`, "img")
		got = RewriteImage{}.Image(audio, []any{"♪"}, nil, nil)
		assert.Equal(t, []any{"♪"}, got.Content)
	})

	t.Run("stroke order", func(t *testing.T) {
		el := element(t, `<img class="筆順" src="../img/k.png"/>`, "img")
		p := StrokeOrderImage{Hashed: HashedImage{Names: map[string]string{"k.avif": "ff.avif"}}, StrokeClass: "筆順"}
		got := p.Image(el, nil, nil, []string{"筆順"})
		require.Equal(t, "details", got.Tag)
		children := got.Content.([]any)
		assert.Equal(t, "筆順", children[0].(*content.Node).Content)
		assert.Equal(t, "img/ff.avif", children[1].(*content.Node).Path)
		require.NoError(t, content.Validate(got))
	})
}

func TestScriptNormalization(t *testing.T) {
	root, err := markup.ParseString(`<entry><headword class="main">カタカナ語</headword></entry>`)
	require.NoError(t, err)

	p := ScriptNormalization{Tag: "headword", Class: "main"}
	ctx := p.Context(root)
	assert.Equal(t, "カタカナ語", ctx)
	assert.Equal(t, []string{"ルス"}, p.Normalize([]string{"るす"}, ctx))
	assert.Equal(t, []string{"るす"}, p.Normalize([]string{"ルス"}, "留守"))
	assert.Equal(t, []string{"るす"}, p.Normalize([]string{"ルス"}, ""))
	assert.Equal(t, []string{"るす"}, p.Normalize([]string{"ルス"}, "あいう"))
}

type fakeSegmenter map[string][]segment.Token

func (f fakeSegmenter) Analyze(text string) []segment.Token { return f[text] }

func TestSegmenterRules(t *testing.T) {
	seg := fakeSegmenter{
		"預かる":  {{Surface: "預かる", PrimaryPOS: "動詞", Conjugation: "五段・ラ行"}},
		"勉強する": {{Surface: "勉強", PrimaryPOS: "名詞"}, {Surface: "する", PrimaryPOS: "動詞", Conjugation: "サ変・スル"}},
		"信ずる":  {{Surface: "信ずる", PrimaryPOS: "動詞", Conjugation: "サ変・−ズル"}},
		"高い":   {{Surface: "高い", PrimaryPOS: "形容詞", Conjugation: "形容詞・アウオ段"}},
		"犬":    {{Surface: "犬", PrimaryPOS: "名詞"}},
	}
	assert.Equal(t, "v5", SegmenterRules(seg, "預かる"))
	assert.Equal(t, "vs", SegmenterRules(seg, "勉強する"))
	assert.Equal(t, "vz", SegmenterRules(seg, "信ずる"))
	assert.Equal(t, "adj-i", SegmenterRules(seg, "高い"))
	assert.Empty(t, SegmenterRules(seg, "犬"))
	assert.Empty(t, SegmenterRules(nil, "犬"))
}

func TestLexiconPOSFallsBackToSegmenter(t *testing.T) {
	lx := dictionary.NewLexicon([]dictionary.JMdictEntry{{
		Id:    "1",
		Kanji: []dictionary.JMdictElement{{Text: "迄"}},
		Kana:  []dictionary.JMdictElement{{Text: "まで"}},
		Sense: []dictionary.JMdictSense{{PartOfSpeech: []string{"prt"}, Misc: []string{"uk"}}},
	}})
	seg := fakeSegmenter{"預かる": {{Surface: "預かる", PrimaryPOS: "動詞", Conjugation: "五段・ラ行"}}}
	p := LexiconPOS{Lexicon: lx, Segmenter: seg}

	info, pos := p.FromTerm("迄")
	assert.Equal(t, "uk", info)
	assert.Empty(t, pos)

	info, pos = p.FromMarkup(nil, "預かる", "あずかる")
	assert.Empty(t, info)
	assert.Equal(t, "v5", pos)
}

func TestLabelPOS(t *testing.T) {
	root, err := markup.ParseString(`<entry><section class="語義"><a>〘自ラ五〙</a><a>〘名〙</a><a>参照</a></section></entry>`)
	require.NoError(t, err)

	p := LabelPOS{Section: ".語義"}
	_, pos := p.FromMarkup(root, "預かる", "あずかる")
	assert.Equal(t, "vi v5r n", pos)

	empty, err := markup.ParseString(`<entry></entry>`)
	require.NoError(t, err)
	seg := fakeSegmenter{"高い": {{Surface: "高い", PrimaryPOS: "形容詞"}}}
	p.Segmenter = seg
	_, pos = p.FromMarkup(empty, "高い", "たかい")
	assert.Equal(t, "adj-i", pos)
}

func TestVerbTags(t *testing.T) {
	assert.Equal(t, []string{"vt", "v2h-s"}, verbTags("他ハ下二", ""))
	assert.Equal(t, []string{"v4k"}, verbTags("カ四", ""))
	assert.Equal(t, []string{"vi", "v5aru"}, verbTags("自五", "ござある"))
	assert.Equal(t, []string{"vs"}, verbTags("サ変", ""))
}

func TestBuild(t *testing.T) {
	set, err := Build(Names{}, Resources{})
	require.NoError(t, err)
	assert.IsType(t, DefaultLink{}, set.Link)
	assert.IsType(t, DefaultImage{}, set.Image)
	assert.IsType(t, ScriptNormalization{}, set.Normalization)
	assert.IsType(t, LexiconPOS{}, set.PartOfSpeech)

	set, err = Build(Names{Link: "ruby", Image: "gaiji", Normalization: "none", PartOfSpeech: "label"}, Resources{LabelSection: ".語義"})
	require.NoError(t, err)
	assert.IsType(t, RubyLink{}, set.Link)
	assert.Equal(t, ".語義", set.PartOfSpeech.(LabelPOS).Section)

	_, err = Build(Names{Link: "nope"}, Resources{})
	require.ErrorContains(t, err, `unknown link policy "nope"`)
}

func TestLoaders(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	names, err := LoadNameMap(write("images.json", `{"a.png": "3f2a.avif"}`))
	require.NoError(t, err)
	assert.Equal(t, "3f2a.avif", names["a.png"])

	appendix, err := LoadAppendix(write("appendix.json", `{"appendix/kigo.html": "記号一覧"}`))
	require.NoError(t, err)
	assert.Equal(t, "記号一覧", appendix["appendix/kigo.html"])

	gaiji, err := LoadGaiji(write("gaiji.json", `{"g001.svg": {"text": "〔文〕", "class": "bunsho"}}`))
	require.NoError(t, err)
	assert.Equal(t, Gaiji{Text: "〔文〕", Class: "bunsho"}, gaiji["g001.svg"])

	_, err = LoadAppendix(write("broken.json", `[1, 2]`))
	require.ErrorContains(t, err, "appendix entries")

	_, err = LoadNameMap(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
