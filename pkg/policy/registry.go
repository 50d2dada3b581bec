package policy

import (
	"fmt"
	"sort"

	"github.com/japaniel/termbank/pkg/dictionary"
)

// Resources are the construction-time inputs policies may draw on. Maps and
// the lexicon are shared read-only between all policies built from them.
type Resources struct {
	ImageNames map[string]string
	Gaiji      map[string]Gaiji
	// Appendix maps appendix page paths to their titles.
	Appendix map[string]string

	Lexicon   *dictionary.Lexicon
	Segmenter Segmenter

	LinkSkip     []string
	LinkClass    string
	AppendixTag  string
	NormTag      string
	NormClass    string
	StrokeClass  string
	LabelSection string
}

// Names selects one registered policy per capability. Empty names pick the
// default of each registry.
type Names struct {
	Link          string `yaml:"link" json:"link"`
	Image         string `yaml:"image" json:"image"`
	Normalization string `yaml:"normalization" json:"normalization"`
	PartOfSpeech  string `yaml:"pos" json:"pos"`
}

type (
	NewLink          func(Resources) LinkPolicy
	NewImage         func(Resources) ImagePolicy
	NewNormalization func(Resources) NormalizationPolicy
	NewPartOfSpeech  func(Resources) PartOfSpeechPolicy
)

// Link registry.
var Link = map[string]NewLink{
	"default": func(Resources) LinkPolicy { return DefaultLink{} },
	"text": func(r Resources) LinkPolicy {
		return TextLink{Skip: r.LinkSkip, StripBrackets: true, Class: r.LinkClass}
	},
	"ruby": func(Resources) LinkPolicy { return RubyLink{} },
	"map": func(r Resources) LinkPolicy {
		return MapLink{Next: TextLink{Skip: r.LinkSkip, StripBrackets: true}}
	},
	"appendix": func(r Resources) LinkPolicy {
		return AppendixLink{Entries: r.Appendix, Tag: r.AppendixTag, Next: TextLink{Skip: r.LinkSkip}}
	},
}

// Image registry.
var Image = map[string]NewImage{
	"default": func(Resources) ImagePolicy { return DefaultImage{} },
	"hashed":  func(r Resources) ImagePolicy { return HashedImage{Names: r.ImageNames} },
	"gaiji":   func(r Resources) ImagePolicy { return GaijiImage{Replacements: r.Gaiji} },
	"rewrite": func(Resources) ImagePolicy { return RewriteImage{} },
	"stroke-order": func(r Resources) ImagePolicy {
		return StrokeOrderImage{Hashed: HashedImage{Names: r.ImageNames}, StrokeClass: r.StrokeClass}
	},
}

// Normalization registry.
var Normalization = map[string]NewNormalization{
	"script": func(r Resources) NormalizationPolicy {
		return ScriptNormalization{Tag: r.NormTag, Class: r.NormClass}
	},
	"none": func(Resources) NormalizationPolicy { return IdentityNormalization{} },
}

// PartOfSpeech registry.
var PartOfSpeech = map[string]NewPartOfSpeech{
	"lexicon": func(r Resources) PartOfSpeechPolicy {
		return LexiconPOS{Lexicon: r.Lexicon, Segmenter: r.Segmenter}
	},
	"label": func(r Resources) PartOfSpeechPolicy {
		return LabelPOS{LexiconPOS: LexiconPOS{Lexicon: r.Lexicon, Segmenter: r.Segmenter}, Section: r.LabelSection}
	},
}

// Build resolves names against the registries.
func Build(names Names, res Resources) (Set, error) {
	var set Set

	link, err := pick(Link, "link", names.Link, "default")
	if err != nil {
		return Set{}, err
	}
	set.Link = link(res)

	image, err := pick(Image, "image", names.Image, "default")
	if err != nil {
		return Set{}, err
	}
	set.Image = image(res)

	normalization, err := pick(Normalization, "normalization", names.Normalization, "script")
	if err != nil {
		return Set{}, err
	}
	set.Normalization = normalization(res)

	pos, err := pick(PartOfSpeech, "part-of-speech", names.PartOfSpeech, "lexicon")
	if err != nil {
		return Set{}, err
	}
	set.PartOfSpeech = pos(res)

	return set, nil
}

func pick[F any](registry map[string]F, kind, name, fallback string) (F, error) {
	if name == "" {
		name = fallback
	}
	f, ok := registry[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("unknown %s policy %q (have %v)", kind, name, keys(registry))
	}
	return f, nil
}

func keys[F any](registry map[string]F) []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
