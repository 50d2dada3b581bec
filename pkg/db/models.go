package db

import "time"

// KanjiReading is a cached character-reading lookup result. Readings are
// katakana.
type KanjiReading struct {
	Surface string
	On      []string
	Kun     []string
}

// ManualMatch is a hand-curated headword/reading pair for a page whose index
// keys could not be resolved automatically.
type ManualMatch struct {
	ID           int64
	Dictionary   string
	PageID       string
	Orthographic string
	Phonetic     string
}

// SkippedPage records why a page contributed no entries during a run.
type SkippedPage struct {
	ID         int64
	RunID      string
	Dictionary string
	PageID     string
	Reason     string
	Detail     string
	Keys       []string
	CreatedAt  time.Time
}
