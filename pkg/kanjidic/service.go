package kanjidic

import (
	"context"
	"database/sql"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/japaniel/termbank/pkg/db"
)

// WordReadings supplies whole-word readings for multi-character surfaces.
// *dictionary.Lexicon satisfies it.
type WordReadings interface {
	Readings(term string) []string
}

// Option configures a Service.
type Option func(*Service)

// WithCharacters uses an already loaded KANJIDIC2 dictionary.
func WithCharacters(d *Dictionary) Option {
	return func(s *Service) {
		s.loadChars = func() (*Dictionary, error) { return d, nil }
	}
}

// WithCharactersFile loads kanjidic2.xml from path on first use.
func WithCharactersFile(path string) Option {
	return func(s *Service) {
		s.loadChars = func() (*Dictionary, error) { return Load(path) }
	}
}

// WithWords sets the fallback for surfaces longer than one character.
func WithWords(w WordReadings) Option {
	return func(s *Service) { s.words = w }
}

// WithCache persists lookup results in the sqlite store.
func WithCache(conn *sql.DB) Option {
	return func(s *Service) { s.cache = conn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service answers reading lookups from an in-memory memo, then the sqlite
// cache, then the underlying sources. It is safe for concurrent use.
type Service struct {
	loadChars func() (*Dictionary, error)
	charsOnce sync.Once
	chars     *Dictionary
	charsErr  error

	words WordReadings
	cache *sql.DB
	log   zerolog.Logger

	mu   sync.RWMutex
	memo map[string]readings
}

// NewService builds a lookup service. Sources are loaded lazily.
func NewService(opts ...Option) *Service {
	s := &Service{
		log:  zerolog.Nop(),
		memo: make(map[string]readings),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preload forces the character dictionary to load, returning its error.
func (s *Service) Preload() error {
	s.characters()
	return s.charsErr
}

func (s *Service) characters() *Dictionary {
	if s.loadChars == nil {
		return nil
	}
	s.charsOnce.Do(func() {
		d, err := s.loadChars()
		if err != nil {
			s.charsErr = err
			s.log.Error().Err(err).Msg("kanjidic unavailable, single-character readings disabled")
			return
		}
		s.log.Info().Int("characters", d.Len()).Msg("kanjidic loaded")
		s.chars = d
	})
	return s.chars
}

// Readings implements Lookup.
func (s *Service) Readings(surface string) (on, kun []string) {
	if surface == "" {
		return nil, nil
	}

	s.mu.RLock()
	rd, ok := s.memo[surface]
	s.mu.RUnlock()
	if ok {
		return rd.on, rd.kun
	}

	ctx := context.Background()
	if s.cache != nil {
		cached, found, err := db.GetKanjiReadings(ctx, s.cache, surface)
		if err != nil {
			s.log.Warn().Err(err).Str("surface", surface).Msg("reading cache read failed")
		} else if found {
			rd = readings{on: cached.On, kun: cached.Kun}
			s.remember(surface, rd)
			return rd.on, rd.kun
		}
	}

	rd = s.compute(surface)
	s.remember(surface, rd)

	if s.cache != nil {
		err := db.PutKanjiReadings(ctx, s.cache, db.KanjiReading{Surface: surface, On: rd.on, Kun: rd.kun})
		if err != nil {
			s.log.Warn().Err(err).Str("surface", surface).Msg("reading cache write failed")
		}
	}
	return rd.on, rd.kun
}

func (s *Service) compute(surface string) readings {
	if utf8.RuneCountInString(surface) > 1 {
		if s.words == nil {
			return readings{}
		}
		return readings{on: s.words.Readings(surface)}
	}
	on, kun := s.characters().Readings(surface)
	return readings{on: on, kun: kun}
}

func (s *Service) remember(surface string, rd readings) {
	s.mu.Lock()
	s.memo[surface] = rd
	s.mu.Unlock()
}
