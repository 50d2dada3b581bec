package db

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Reading lists never contain tabs, so they are stored tab-joined.
const listSep = "\t"

func joinList(values []string) string {
	return strings.Join(values, listSep)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, listSep)
}

// GetKanjiReadings returns the cached readings for surface. found is false
// when the surface has never been cached.
func GetKanjiReadings(ctx context.Context, db DBExecutor, surface string) (r KanjiReading, found bool, err error) {
	query, args, err := builder.
		Select("surface", "onyomi", "kunyomi").
		From("kanji_readings").
		Where(sq.Eq{"surface": surface}).
		ToSql()
	if err != nil {
		return KanjiReading{}, false, err
	}

	var on, kun string
	err = db.QueryRowContext(ctx, query, args...).Scan(&r.Surface, &on, &kun)
	if err == sql.ErrNoRows {
		return KanjiReading{}, false, nil
	}
	if err != nil {
		return KanjiReading{}, false, fmt.Errorf("select kanji readings: %w", err)
	}
	r.On = splitList(on)
	r.Kun = splitList(kun)
	return r, true, nil
}

// PutKanjiReadings stores or replaces the cached readings for r.Surface.
// Empty reading lists are cached too so unknown surfaces are not looked up
// again.
func PutKanjiReadings(ctx context.Context, db DBExecutor, r KanjiReading) error {
	if strings.TrimSpace(r.Surface) == "" {
		return fmt.Errorf("surface must be non-empty")
	}
	query, args, err := builder.
		Insert("kanji_readings").
		Columns("surface", "onyomi", "kunyomi").
		Values(r.Surface, joinList(r.On), joinList(r.Kun)).
		Suffix(`ON CONFLICT(surface) DO UPDATE SET
			onyomi = excluded.onyomi,
			kunyomi = excluded.kunyomi,
			updated_at = CURRENT_TIMESTAMP`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert kanji readings: %w", err)
	}
	return nil
}

// AddManualMatch stores a manual override pair. It returns false when the
// exact pair is already stored for the page.
func AddManualMatch(ctx context.Context, db DBExecutor, m ManualMatch) (bool, error) {
	if strings.TrimSpace(m.Dictionary) == "" {
		return false, fmt.Errorf("dictionary must be non-empty")
	}
	if strings.TrimSpace(m.PageID) == "" {
		return false, fmt.Errorf("pageID must be non-empty")
	}
	if m.Orthographic == "" && m.Phonetic == "" {
		return false, fmt.Errorf("manual match for page %s has neither headword nor reading", m.PageID)
	}

	query, args, err := builder.
		Insert("manual_matches").
		Columns("dictionary", "page_id", "orthographic", "phonetic").
		Values(m.Dictionary, m.PageID, m.Orthographic, m.Phonetic).
		Suffix("ON CONFLICT(dictionary, page_id, orthographic, phonetic) DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert manual match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ManualMatchesForPage returns the override pairs for a page in insertion order.
func ManualMatchesForPage(ctx context.Context, db DBExecutor, dictionary, pageID string) ([]ManualMatch, error) {
	query, args, err := builder.
		Select("id", "dictionary", "page_id", "orthographic", "phonetic").
		From("manual_matches").
		Where(sq.Eq{"dictionary": dictionary, "page_id": pageID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ManualMatch
	for rows.Next() {
		var m ManualMatch
		if err := rows.Scan(&m.ID, &m.Dictionary, &m.PageID, &m.Orthographic, &m.Phonetic); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportManualMatches reads tab-separated "page<TAB>headword<TAB>reading"
// lines into the store inside a single transaction. Blank lines and lines
// starting with '#' are ignored. It returns the number of new pairs.
func ImportManualMatches(ctx context.Context, conn *sql.DB, dictionary string, r io.Reader) (int, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added := 0
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			return 0, fmt.Errorf("line %d: expected page and at least one form", lineNo)
		}
		m := ManualMatch{Dictionary: dictionary, PageID: strings.TrimSpace(parts[0]), Orthographic: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			m.Phonetic = strings.TrimSpace(parts[2])
		}
		ok, err := AddManualMatch(ctx, tx, m)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// RecordSkippedPage appends a diagnostic row for a page that produced no
// entries.
func RecordSkippedPage(ctx context.Context, db DBExecutor, s SkippedPage) error {
	if strings.TrimSpace(s.Reason) == "" {
		return fmt.Errorf("reason must be non-empty")
	}
	query, args, err := builder.
		Insert("skipped_pages").
		Columns("run_id", "dictionary", "page_id", "reason", "detail", "keys").
		Values(s.RunID, s.Dictionary, s.PageID, s.Reason, s.Detail, joinList(s.Keys)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert skipped page: %w", err)
	}
	return nil
}

// SkippedPages returns the skip log of one run, oldest first.
func SkippedPages(ctx context.Context, db DBExecutor, runID string) ([]SkippedPage, error) {
	query, args, err := builder.
		Select("id", "run_id", "dictionary", "page_id", "reason", "detail", "keys", "created_at").
		From("skipped_pages").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SkippedPage
	for rows.Next() {
		var s SkippedPage
		var keys string
		if err := rows.Scan(&s.ID, &s.RunID, &s.Dictionary, &s.PageID, &s.Reason, &s.Detail, &keys, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Keys = splitList(keys)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSkippedByReason aggregates the skip log of one run.
func CountSkippedByReason(ctx context.Context, db DBExecutor, runID string) (map[string]int, error) {
	query, args, err := builder.
		Select("reason", "COUNT(*)").
		From("skipped_pages").
		Where(sq.Eq{"run_id": runID}).
		GroupBy("reason").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
