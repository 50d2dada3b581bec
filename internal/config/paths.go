package config

import (
	"path/filepath"
)

// Paths are the resolved locations of one dictionary's inputs and outputs.
type Paths struct {
	Pages   string
	Assets  string
	Index   string
	Jyukugo string
	Idiom   string
	Kanji   string
	Lexicon string
	Output  string

	TagMap          string
	ImageMap        string
	Gaiji           string
	AppendixEntries string
}

// PathsFor lays out the directories of the named format:
//
//	<base>/resources/<type>/pages
//	<base>/resources/<type>/index/{index_d,jyukugo_prefix,idiom_prefix,kanji_prefix}.tsv
//	<base>/converted/<name>
func (c *Config) PathsFor(name string) Paths {
	f := c.Formats[name]
	res := filepath.Join(c.Base, "resources", f.Type)

	p := Paths{
		Pages:  filepath.Join(res, "pages"),
		Assets: filepath.Join(res, "assets"),
		Output: filepath.Join(c.Base, "converted", f.Name),

		TagMap:          c.resolve(f.TagMap),
		ImageMap:        c.resolve(f.ImageMap),
		Gaiji:           c.resolve(f.Gaiji),
		AppendixEntries: c.resolve(f.AppendixEntries),
	}
	if f.IndexEnabled() {
		dir := filepath.Join(res, "index")
		p.Index = filepath.Join(dir, "index_d.tsv")
		p.Jyukugo = filepath.Join(dir, "jyukugo_prefix.tsv")
		p.Idiom = filepath.Join(dir, "idiom_prefix.tsv")
		p.Kanji = filepath.Join(dir, "kanji_prefix.tsv")
	}
	if f.LexiconEnabled() {
		p.Lexicon = c.LexiconPath()
	}
	return p
}

// LexiconPath returns the configured lexicon file or the default location
// under Base.
func (c *Config) LexiconPath() string {
	if c.Lexicon.Path != "" {
		return c.resolve(c.Lexicon.Path)
	}
	return filepath.Join(c.Base, "resources", "JMDICT", "jmdict-eng-common.json")
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Base, p)
}
