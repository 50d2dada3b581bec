// Package config holds the converter settings: run-wide options read from
// YAML and the environment, plus one entry per source dictionary format.
package config

import (
	"github.com/japaniel/termbank/pkg/policy"
)

// Config is the root configuration.
type Config struct {
	// Base is the directory holding resources/ and converted/.
	Base     string            `yaml:"base" env:"TERMBANK_BASE" env-default:"."`
	Run      RunConfig         `yaml:"run"`
	Log      LogConfig         `yaml:"log"`
	Store    StoreConfig       `yaml:"store"`
	Lexicon  LexiconConfig     `yaml:"lexicon"`
	Kanjidic KanjidicConfig    `yaml:"kanjidic"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Formats  map[string]Format `yaml:"dictionaries"`
}

// RunConfig holds conversion settings shared by every dictionary.
type RunConfig struct {
	Workers   int `yaml:"workers"    env:"TERMBANK_WORKERS"    env-default:"1"`
	ChunkSize int `yaml:"chunk_size" env:"TERMBANK_CHUNK_SIZE" env-default:"10000"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// StoreConfig locates the sqlite file with the reading cache, manual
// overrides and skip log.
type StoreConfig struct {
	Path string `yaml:"path" env:"TERMBANK_DB" env-default:"termbank.db"`
}

// LexiconConfig locates the JMdict-simplified lexicon. An empty path means
// resources/JMDICT/jmdict-eng-common.json under Base.
type LexiconConfig struct {
	Path     string `yaml:"path"     env:"TERMBANK_JMDICT"`
	Download bool   `yaml:"download" env:"TERMBANK_JMDICT_DOWNLOAD" env-default:"false"`
}

// KanjidicConfig locates kanjidic2.xml. Without it single-kanji readings
// come from the lexicon alone.
type KanjidicConfig struct {
	Path string `yaml:"path" env:"TERMBANK_KANJIDIC"`
}

// MetricsConfig enables the /metrics endpoint while a run is in progress.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"TERMBANK_METRICS_ADDR"`
}

// Format describes one source dictionary.
type Format struct {
	// Name is the dictionary title; it names the output folder.
	Name string `yaml:"name"`
	// Type names the resources/<type> directory.
	Type     string       `yaml:"type"`
	Policies policy.Names `yaml:"policies"`

	UseIndex   *bool `yaml:"use_index"`
	UseLexicon *bool `yaml:"use_jmdict"`
	Structured *bool `yaml:"structured"`

	IgnoredElements   map[string][]string `yaml:"ignored_elements"`
	ExpressionElement string              `yaml:"expression_element"`
	// SubitemElement defaults to ExpressionElement.
	SubitemElement   string `yaml:"subitem_element"`
	ParseAllLinks    bool   `yaml:"parse_all_links"`
	SubitemsNotSplit bool   `yaml:"subitems_not_split"`
	SuppressHeadword bool   `yaml:"suppress_headword"`
	RankKanaOnly     bool   `yaml:"rank_kana_only"`
	UsuallyKana      bool   `yaml:"usually_kana"`

	NormalizationTag   string `yaml:"normalization_tag_name"`
	NormalizationClass string `yaml:"normalization_class_name"`

	ExamplesBody string `yaml:"examples_body"`
	ExampleItem  string `yaml:"example_item"`

	LinkSkip     []string `yaml:"link_skip"`
	LinkClass    string   `yaml:"link_class"`
	AppendixTag  string   `yaml:"appendix_tag"`
	StrokeClass  string   `yaml:"stroke_class"`
	LabelSection string   `yaml:"label_section"`

	// Resource files, relative to Base unless absolute.
	TagMap          string `yaml:"tag_map_path"`
	ImageMap        string `yaml:"image_map_path"`
	Gaiji           string `yaml:"gaiji_path"`
	AppendixEntries string `yaml:"appendix_entries_path"`
}

// IndexEnabled reports whether the format is keyed by index files.
func (f Format) IndexEnabled() bool { return f.UseIndex == nil || *f.UseIndex }

// LexiconEnabled reports whether the format draws on the JMdict lexicon.
func (f Format) LexiconEnabled() bool { return f.UseLexicon == nil || *f.UseLexicon }

// StructuredContent reports whether entries carry converted markup rather
// than plain text.
func (f Format) StructuredContent() bool { return f.Structured == nil || *f.Structured }

// Subitems returns the element marking idiom and compound sub-items.
func (f Format) Subitems() string {
	if f.SubitemElement != "" {
		return f.SubitemElement
	}
	return f.ExpressionElement
}
