//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "triggerd/pkg/logx"

	_ "modernc.org/sqlite"
)

const migrations = `
CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	context    TEXT,
	metadata   TEXT,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_name ON entities(name);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutEntity(ctx context.Context, rec EntityRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return errors.New("entity record requires an id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities(id, name, context, metadata, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, context=excluded.context,
		   metadata=excluded.metadata, updated_at=excluded.updated_at`,
		rec.ID, rec.Name, nullRaw(rec.Context), nullRaw(rec.Metadata),
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetEntity(ctx context.Context, id string) (EntityRecord, bool, error) {
	if s == nil || s.db == nil {
		return EntityRecord{}, false, ErrDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return EntityRecord{}, false, nil
	}
	var (
		rec          EntityRecord
		ctxS, metaS  sql.NullString
		updatedAtRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, context, metadata, updated_at FROM entities WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &ctxS, &metaS, &updatedAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return EntityRecord{}, false, nil
	}
	if err != nil {
		return EntityRecord{}, false, err
	}
	if ctxS.Valid {
		rec.Context = json.RawMessage(ctxS.String)
	}
	if metaS.Valid {
		rec.Metadata = json.RawMessage(metaS.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtRaw); err == nil {
		rec.UpdatedAt = t
	}
	return rec, true, nil
}

func (s *sqliteStore) ListEntities(ctx context.Context) ([]EntityRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, context, metadata, updated_at FROM entities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		var (
			rec          EntityRecord
			ctxS, metaS  sql.NullString
			updatedAtRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &ctxS, &metaS, &updatedAtRaw); err != nil {
			return nil, err
		}
		if ctxS.Valid {
			rec.Context = json.RawMessage(ctxS.String)
		}
		if metaS.Valid {
			rec.Metadata = json.RawMessage(metaS.String)
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAtRaw); err == nil {
			rec.UpdatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullRaw(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
