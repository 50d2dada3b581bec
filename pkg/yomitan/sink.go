package yomitan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/content"
)

// DefaultChunkSize is the number of entries per term bank file.
const DefaultChunkSize = 10000

var chunkPattern = regexp.MustCompile(`^term_bank_(\d+)\.json$`)

var (
	ErrEmptyEntry = &SinkError{"entry must not be empty"}
	ErrSinkClosed = &SinkError{"sink closed"}
)

type SinkError struct{ msg string }

func (e *SinkError) Error() string { return e.msg }

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithChunkSize sets the number of entries buffered before a flush.
func WithChunkSize(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) SinkOption {
	return func(s *Sink) { s.log = l }
}

// WithFlushHook registers fn to be called after each chunk is written.
func WithFlushHook(fn func(file string, entries int)) SinkOption {
	return func(s *Sink) { s.onFlush = fn }
}

// Sink buffers entries and writes them to numbered term bank files in dir.
// It serializes its own calls, but entries reach the files in the order Add
// is called, so a single producer should own it.
type Sink struct {
	mu     sync.Mutex
	dir    string
	buf    []*Entry
	cap    int
	total  int
	chunks int
	closed bool

	log     zerolog.Logger
	onFlush func(file string, entries int)
}

// NewSink creates dir if needed and removes any term bank files already in
// it, so reruns start from term_bank_1.json.
func NewSink(dir string, opts ...SinkOption) (*Sink, error) {
	s := &Sink{dir: dir, cap: DefaultChunkSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]*Entry, 0, s.cap)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() || !chunkPattern.MatchString(f.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, f.Name())); err != nil {
			return nil, fmt.Errorf("purge %s: %w", f.Name(), err)
		}
		s.log.Debug().Str("file", f.Name()).Msg("removed previous term bank")
	}
	return s, nil
}

// Add buffers e, flushing when the chunk is full.
func (s *Sink) Add(e *Entry) error {
	if e == nil || e.Headword == "" {
		return ErrEmptyEntry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.buf = append(s.buf, e)
	s.total++
	if len(s.buf) >= s.cap {
		return s.flushLocked()
	}
	return nil
}

// Flush writes the buffered entries as a new chunk.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	return s.flushLocked()
}

// Export flushes the remainder and closes the sink.
func (s *Sink) Export() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Total returns the number of entries accepted so far.
func (s *Sink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Chunks returns the number of files written.
func (s *Sink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// flushLocked assumes s.mu is held.
func (s *Sink) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}
	n, err := s.nextNumber()
	if err != nil {
		return err
	}
	name := fmt.Sprintf("term_bank_%d.json", n)

	raw, err := content.Marshal(s.buf)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := writeFile(filepath.Join(s.dir, name), raw); err != nil {
		return err
	}

	count := len(s.buf)
	s.buf = make([]*Entry, 0, s.cap)
	s.chunks++
	s.log.Info().Str("file", name).Int("entries", count).Msg("term bank written")
	if s.onFlush != nil {
		s.onFlush(name, count)
	}
	return nil
}

func (s *Sink) nextNumber() (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, f := range files {
		m := chunkPattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("term bank number in %s: %w", f.Name(), err)
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// writeFile writes through a temporary file so a chunk is either complete
// or absent.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".term_bank-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
