// Package index reads the tab-separated key/page index files that accompany a
// source dictionary and answers which keys belong to which page.
package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const maxLineSize = 1 << 20

// Option configures loading.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger sets the logger used for malformed-record warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Map is a bidirectional key <-> page mapping. Each (key, page) association is
// stored exactly once in each direction.
type Map struct {
	path string

	order      []string // keys in first-seen order, used when rewriting the file
	pagesByKey map[string][]string
	keysByPage map[string][]string

	// Warnings holds every record skipped while loading.
	Warnings []error
}

// New returns an empty Map that rewrites to path.
func New(path string) *Map {
	return &Map{
		path:       path,
		pagesByKey: make(map[string][]string),
		keysByPage: make(map[string][]string),
	}
}

// Load reads an index file of `key<TAB>page1<TAB>page2...` lines.
// Lines with fewer than two fields are skipped with a warning.
func Load(path string, opts ...Option) (*Map, error) {
	o := buildOptions(opts)

	f, err := openIndex(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := New(path)
	err = scanRecords(f, func(lineNo int, fields []string) {
		key := fields[0]
		for _, page := range fields[1:] {
			m.AddEntry(page, key)
		}
	}, func(mr *MalformedRecordError) {
		o.log.Warn().Str("file", path).Int("line", mr.Line).Str("record", mr.Record).Msg(mr.Reason)
		m.Warnings = append(m.Warnings, mr)
	})
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return m, nil
}

func openIndex(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return f, nil
}

// scanRecords splits r into tab-separated records. Blank lines are ignored.
func scanRecords(r io.Reader, record func(int, []string), malformed func(*MalformedRecordError)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			malformed(&MalformedRecordError{Line: lineNo, Record: line, Reason: "expected a key and at least one reference"})
			continue
		}
		record(lineNo, fields)
	}
	return scanner.Err()
}

// Path returns the file the map was loaded from.
func (m *Map) Path() string { return m.path }

// Len returns the number of distinct keys.
func (m *Map) Len() int { return len(m.order) }

// KeysForPage returns the keys associated with page, or an empty slice.
func (m *Map) KeysForPage(page string) []string {
	keys := m.keysByPage[page]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// PagesFor returns the pages the key points at, or an empty slice.
func (m *Map) PagesFor(key string) []string {
	pages := m.pagesByKey[key]
	out := make([]string, len(pages))
	copy(out, pages)
	return out
}

// Pages returns every page that has at least one key, in no particular order.
func (m *Map) Pages() []string {
	out := make([]string, 0, len(m.keysByPage))
	for p := range m.keysByPage {
		out = append(out, p)
	}
	return out
}

// AddEntry associates key with page. It returns false when the pair already exists.
func (m *Map) AddEntry(page, key string) bool {
	pages, known := m.pagesByKey[key]
	for _, p := range pages {
		if p == page {
			return false
		}
	}
	if !known {
		m.order = append(m.order, key)
	}
	m.pagesByKey[key] = append(pages, page)
	m.keysByPage[page] = append(m.keysByPage[page], key)
	return true
}

// WriteTo serializes the full map in index file format.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, key := range m.order {
		c, err := bw.WriteString(key + "\t" + strings.Join(m.pagesByKey[key], "\t") + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Rewrite regenerates the index file from memory. The file is replaced as a
// whole so readers never observe a partially appended state.
func (m *Map) Rewrite() error {
	if m.path == "" {
		return errors.New("index map has no backing file")
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := m.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace index %s: %w", m.path, err)
	}
	return nil
}
