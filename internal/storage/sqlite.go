// Package storage persists a built taxonomy into SQLite so bulk report data
// can be joined against it later without re-parsing XBRL. It is an optional
// sidecar to the JSON output, enabled with the --db flag.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cdrkit/internal/taxonomy"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS taxonomies (
			form_number TEXT,
			quarter TEXT,
			PRIMARY KEY (form_number, quarter)
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			form_number TEXT,
			quarter TEXT,
			code TEXT,
			label TEXT,
			PRIMARY KEY (form_number, quarter, code)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			form_number TEXT,
			quarter TEXT,
			parent TEXT,
			child TEXT,
			position INTEGER,
			PRIMARY KEY (form_number, quarter, parent, child)
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			form_number TEXT,
			quarter TEXT,
			mnemonic TEXT,
			schedule TEXT,
			line_ids JSON,
			column_ids JSON,
			ref_line TEXT,
			ref_column TEXT,
			PRIMARY KEY (form_number, quarter, mnemonic, schedule)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_schedule ON entries(schedule);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveTaxonomy upserts the relationship graph and the serialized hierarchy
// for one form/quarter in a single transaction.
func (s *SQLiteStore) SaveTaxonomy(ctx context.Context, g *taxonomy.Graph, doc *taxonomy.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO taxonomies (form_number, quarter) VALUES (?, ?)
		ON CONFLICT(form_number, quarter) DO NOTHING
	`, doc.FormNumber, doc.Quarter); err != nil {
		return err
	}

	// 1. Save Nodes
	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (form_number, quarter, code, label) VALUES (?, ?, ?, ?)
		ON CONFLICT(form_number, quarter, code) DO UPDATE SET label=excluded.label
	`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, code := range g.Nodes() {
		var label sql.NullString
		if text := g.Label(code); text != nil {
			label = sql.NullString{String: *text, Valid: true}
		}
		if _, err := nodeStmt.Exec(doc.FormNumber, doc.Quarter, code, label); err != nil {
			return err
		}
	}

	// 2. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (form_number, quarter, parent, child, position) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(form_number, quarter, parent, child) DO UPDATE SET position=excluded.position
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, edge := range g.Edges() {
		if _, err := edgeStmt.Exec(doc.FormNumber, doc.Quarter, edge.Parent, edge.Child, edge.Position); err != nil {
			return err
		}
	}

	// 3. Save hierarchy entries
	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (form_number, quarter, mnemonic, schedule, line_ids, column_ids, ref_line, ref_column)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(form_number, quarter, mnemonic, schedule) DO UPDATE SET
			line_ids=excluded.line_ids,
			column_ids=excluded.column_ids,
			ref_line=excluded.ref_line,
			ref_column=excluded.ref_column
	`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	for mnemonic, schedules := range doc.Data {
		for schedule, entry := range schedules {
			lineIDs, err := nullableJSON(entry.LineIDs)
			if err != nil {
				return err
			}
			columnIDs, err := nullableJSON(entry.ColumnIDs)
			if err != nil {
				return err
			}
			var refLine, refColumn sql.NullString
			if entry.Reference != nil {
				refLine = sql.NullString{String: entry.Reference.Line, Valid: true}
				refColumn = sql.NullString{String: entry.Reference.Column, Valid: true}
			}
			if _, err := entryStmt.Exec(doc.FormNumber, doc.Quarter, mnemonic, schedule, lineIDs, columnIDs, refLine, refColumn); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// CountEntries reports how many hierarchy entries are stored for one
// form/quarter.
func (s *SQLiteStore) CountEntries(ctx context.Context, formNumber, quarter string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE form_number = ? AND quarter = ?", formNumber, quarter)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func nullableJSON(ids map[string]taxonomy.LabeledCode) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
