// Package journal persists every sink call to SQLite so dispatches can be
// audited per page session.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/mixptrack/dbopen"
	"github.com/hazyhaar/mixptrack/idgen"
	"github.com/hazyhaar/mixptrack/mixptrack/directive"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/sink"
)

// Schema for the mixp_calls table.
const Schema = `
CREATE TABLE IF NOT EXISTS mixp_calls (
	id         TEXT PRIMARY KEY,
	page_id    TEXT NOT NULL,
	op         TEXT NOT NULL,
	identity   TEXT DEFAULT '',
	selector   TEXT DEFAULT '',
	name       TEXT DEFAULT '',
	attrs      TEXT DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mixp_calls_page ON mixp_calls(page_id, created_at);
`

// Store is the call journal.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Store{db: db, newID: idgen.Prefixed("call_", idgen.Default)}, nil
}

// Record appends one call.
func (s *Store) Record(ctx context.Context, call directive.Call) error {
	attrs, err := json.Marshal(call.Attrs)
	if err != nil {
		return fmt.Errorf("journal: marshal attrs: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.db, `
		INSERT INTO mixp_calls (id, page_id, op, identity, selector, name, attrs, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		s.newID(), call.PageID, string(call.Op), call.ID, call.Selector, call.Name,
		string(attrs), call.Timestamp)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit calls, newest first. An empty pageID matches
// every page.
func (s *Store) Recent(ctx context.Context, pageID string, limit int) ([]directive.Call, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_id, op, identity, selector, name, attrs, created_at
		FROM mixp_calls
		WHERE ? = '' OR page_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, pageID, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var calls []directive.Call
	for rows.Next() {
		var c directive.Call
		var op, attrs string
		if err := rows.Scan(&c.PageID, &op, &c.ID, &c.Selector, &c.Name, &attrs, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		c.Op = directive.Op(op)
		if err := json.Unmarshal([]byte(attrs), &c.Attrs); err != nil {
			return nil, fmt.Errorf("journal: attrs: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Sink returns a sink recording every call into the store.
func (s *Store) Sink() sink.Sink {
	return sink.NewCallback(s.Record)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
