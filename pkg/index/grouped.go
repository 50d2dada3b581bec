package index

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/japaniel/termbank/pkg/kana"
)

// GroupedMap maps page -> item -> keys for sub-item indexes such as idiom or
// compound-word lists, whose references look like `pageId-itemRef`.
type GroupedMap struct {
	path   string
	groups map[string]map[string]map[string]struct{}

	// Warnings holds every record or reference token skipped while loading.
	Warnings []error
}

// Candidates is a page's key set split by script.
type Candidates struct {
	Orthographic []string
	Phonetic     []string
}

// LoadGrouped reads a sub-item index. Reference tokens that are not
// `page-item` with a hexadecimal item suffix are dropped with a warning.
func LoadGrouped(path string, opts ...Option) (*GroupedMap, error) {
	o := buildOptions(opts)

	f, err := openIndex(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g := &GroupedMap{
		path:   path,
		groups: make(map[string]map[string]map[string]struct{}),
	}
	warn := func(mr *MalformedRecordError) {
		o.log.Warn().Str("file", path).Int("line", mr.Line).Str("record", mr.Record).Msg(mr.Reason)
		g.Warnings = append(g.Warnings, mr)
	}
	err = scanRecords(f, func(lineNo int, fields []string) {
		key := fields[0]
		for _, ref := range fields[1:] {
			page, item, err := ParseReference(ref)
			if err != nil {
				warn(&MalformedRecordError{Line: lineNo, Record: ref, Reason: err.Error()})
				continue
			}
			g.add(page, item, key)
		}
	}, warn)
	if err != nil {
		return nil, fmt.Errorf("read grouped index %s: %w", path, err)
	}
	return g, nil
}

func (g *GroupedMap) add(page, item, key string) {
	items, ok := g.groups[page]
	if !ok {
		items = make(map[string]map[string]struct{})
		g.groups[page] = items
	}
	keys, ok := items[item]
	if !ok {
		keys = make(map[string]struct{})
		items[item] = keys
	}
	keys[key] = struct{}{}
}

// Path returns the file the map was loaded from.
func (g *GroupedMap) Path() string { return g.path }

// GroupedEntriesForPage returns item id -> keys for page. Keys within an item
// are sorted so downstream pairing is deterministic.
func (g *GroupedMap) GroupedEntriesForPage(page string) map[string][]string {
	items, ok := g.groups[page]
	if !ok {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(items))
	for item, keys := range items {
		list := make([]string, 0, len(keys))
		for k := range keys {
			list = append(list, k)
		}
		sort.Strings(list)
		out[item] = list
	}
	return out
}

// OrganizedEntriesForPage returns item id -> categorized candidates for page.
func (g *GroupedMap) OrganizedEntriesForPage(page string) map[string]Candidates {
	grouped := g.GroupedEntriesForPage(page)
	out := make(map[string]Candidates, len(grouped))
	for item, keys := range grouped {
		out[item] = Categorize(keys)
	}
	return out
}

// ParseReference splits a `pageId-itemRef` token into the page id and the
// decimal item id derived from the last three hexadecimal digits of itemRef.
func ParseReference(ref string) (page, item string, err error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("reference %q is not of the form page-item", ref)
	}
	item, err = itemFromRef(parts[1])
	if err != nil {
		return "", "", err
	}
	return parts[0], item, nil
}

// ParseItemRef extracts the item id from a full sub-item id such as the id
// attribute of an idiom element ("0012-4a0f" -> "015").
func ParseItemRef(fullID string) (string, error) {
	_, item, err := ParseReference(fullID)
	return item, err
}

func itemFromRef(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty item reference")
	}
	last := ref
	if len(ref) > 3 {
		last = ref[len(ref)-3:]
	}
	v, err := strconv.ParseUint(last, 16, 32)
	if err != nil {
		return "", fmt.Errorf("item reference %q does not end in hexadecimal digits", ref)
	}
	return fmt.Sprintf("%03d", v), nil
}

// Categorize partitions keys into orthographic candidates (containing at least
// one ideograph) and phonetic candidates. The placeholder key is dropped.
func Categorize(keys []string) Candidates {
	var c Candidates
	for _, k := range keys {
		if k == kana.Placeholder || k == "" {
			continue
		}
		if kana.HasKanji(k) {
			c.Orthographic = append(c.Orthographic, k)
		} else {
			c.Phonetic = append(c.Phonetic, k)
		}
	}
	return c
}
