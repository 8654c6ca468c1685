package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "triggerd/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.entities.snapshot.json (periodic snapshot, id -> record)
//   - <prefix>.entities.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot. Startup loads
// the snapshot and replays the journal on top, so the newest write wins.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	entities     map[string]EntityRecord

	writes int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".entities.snapshot.json"
	journalPath := prefix + ".entities.journal.jsonl"

	entities := map[string]EntityRecord{}
	_ = loadEntitySnapshot(snapPath, entities)
	_ = replayEntityJournal(journalPath, entities)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		entities:     entities,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Compact on close so the next start doesn't replay a long journal.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("entity compact on close failed", logx.Any("err", err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) PutEntity(ctx context.Context, rec EntityRecord) error {
	_ = ctx
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return errors.New("entity record requires an id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("entity journal closed")
	}
	if s.entities == nil {
		s.entities = map[string]EntityRecord{}
	}
	s.entities[rec.ID] = rec

	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	s.writes++
	if s.writes%500 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("entity compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) GetEntity(ctx context.Context, id string) (EntityRecord, bool, error) {
	_ = ctx
	id = strings.TrimSpace(id)
	if id == "" {
		return EntityRecord{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	return rec, ok, nil
}

func (s *fileStore) ListEntities(ctx context.Context) ([]EntityRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntityRecord, 0, len(s.entities))
	for _, rec := range s.entities {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	if s.entities == nil {
		return nil
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.entities); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadEntitySnapshot(path string, out map[string]EntityRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]EntityRecord
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayEntityJournal(path string, out map[string]EntityRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec EntityRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if rec.ID == "" {
			continue
		}
		out[rec.ID] = rec
	}
	return sc.Err()
}
