// Package yomitan builds dictionary entries and writes them as term bank
// chunks.
package yomitan

import (
	"github.com/japaniel/termbank/pkg/content"
)

// Entry is one term bank row. Content is appended through AddElement or
// replaced wholesale by SetSimpleContent and SetLinkContent.
type Entry struct {
	Headword   string
	Reading    string
	InfoTag    string
	PosTag     string
	SearchRank int
	Sequence   int

	content    []any
	structured bool
}

// NewEntry creates an entry. A missing headword is taken from the reading,
// which is then left empty.
func NewEntry(headword, reading string) *Entry {
	if headword == "" {
		headword, reading = reading, ""
	}
	return &Entry{Headword: headword, Reading: reading}
}

// AddElement validates n and appends it, switching the entry to structured
// content.
func (e *Entry) AddElement(n *content.Node) error {
	if err := content.Validate(n); err != nil {
		return err
	}
	e.content = append(e.content, n)
	e.structured = true
	return nil
}

// SetSimpleContent replaces the content with plain glossary strings.
func (e *Entry) SetSimpleContent(definitions ...string) {
	e.content = make([]any, len(definitions))
	for i, d := range definitions {
		e.content[i] = d
	}
	e.structured = false
}

// SetLinkContent replaces the content with the definition followed by a
// second list holding link, marked with ⧉.
func (e *Entry) SetLinkContent(definition any, link string) {
	marker := &content.Node{
		Tag:     "ul",
		Content: []any{content.Element("li", []any{content.Link(link, link)})},
		Style:   map[string]string{"listStyleType": `"⧉"`},
	}
	e.content = []any{
		content.Element("ul", []any{content.Element("li", definition)}),
		marker,
	}
	e.structured = true
}

// Structured reports whether the entry carries structured content.
func (e *Entry) Structured() bool { return e.structured }

// Len returns the number of top-level content items.
func (e *Entry) Len() int { return len(e.content) }

// Row returns the fixed-arity term bank tuple:
// [headword, reading, info, pos, rank, content, sequence, ""].
func (e *Entry) Row() []any {
	glossary := e.content
	if glossary == nil {
		glossary = []any{}
	}
	var body any = glossary
	if e.structured {
		body = []any{map[string]any{"type": "structured-content", "content": glossary}}
	}
	return []any{e.Headword, e.Reading, e.InfoTag, e.PosTag, e.SearchRank, body, e.Sequence, ""}
}

func (e *Entry) MarshalJSON() ([]byte, error) {
	return content.Marshal(e.Row())
}
