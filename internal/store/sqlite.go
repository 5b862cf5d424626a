package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"funcsmith/internal/funcdef"
)

// SQLiteStore persists definitions in a single-table SQLite database. The
// parameter schema is stored as its JSON encoding so records round-trip
// byte-identical through Put/Get.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS functions (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	parameters  TEXT NOT NULL,
	code        TEXT NOT NULL,
	is_internal INTEGER NOT NULL DEFAULT 0
);`

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, def funcdef.Definition) error {
	if def.Name == "" {
		return errors.New("definition name is empty")
	}
	params, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO functions (name, description, parameters, code, is_internal)
		 VALUES (?, ?, ?, ?, ?)`,
		def.Name, def.Description, string(params), def.Code, boolToInt(def.IsInternal))
	if err != nil {
		return fmt.Errorf("put %q: %w", def.Name, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (funcdef.Definition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, parameters, code, is_internal FROM functions WHERE name = ?`, name)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return funcdef.Definition{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return funcdef.Definition{}, fmt.Errorf("get %q: %w", name, err)
	}
	return def, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]funcdef.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, parameters, code, is_internal FROM functions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	defer rows.Close()

	var out []funcdef.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM functions WHERE is_internal = 0`); err != nil {
		return fmt.Errorf("clear functions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (funcdef.Definition, error) {
	var def funcdef.Definition
	var params string
	var internal int
	if err := row.Scan(&def.Name, &def.Description, &params, &def.Code, &internal); err != nil {
		return funcdef.Definition{}, err
	}
	if err := json.Unmarshal([]byte(params), &def.Parameters); err != nil {
		return funcdef.Definition{}, fmt.Errorf("decode parameters: %w", err)
	}
	def.IsInternal = internal != 0
	return def, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
