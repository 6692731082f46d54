package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sessionguard/sessionguard/internal/metrics"
	"github.com/sessionguard/sessionguard/pkg/snapshot"
)

const (
	// slotKey is the fixed key the whole session list lives under.
	slotKey = "sessions"

	// schemaVersion tags the persisted envelope so a future shape change
	// has a migration path.
	schemaVersion = 1
)

// envelope is the persisted shape: a version tag around the raw list.
type envelope struct {
	Version  int                      `json:"version"`
	Sessions []snapshot.SessionRecord `json:"sessions"`
}

// SQLite is the durable Store implementation. The entire list is one JSON
// document in a key-value table, rewritten whole on every mutation so no
// partial-write state is ever observable.
//
// All mutations are read-modify-write of the full list under one mutex;
// interleaved savers are last-write-wins, which is acceptable for a
// single-user local daemon.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. The parent directory is created
	// if missing.
	Path   string
	Logger zerolog.Logger
}

// NewSQLite opens (creating if necessary) the session store.
func NewSQLite(cfg Config) (*SQLite, error) {
	metrics.EnsureRegistered()

	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS slots (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store schema: %w", err)
	}

	s := &SQLite{
		db:     db,
		logger: cfg.Logger,
	}

	s.logger.Info().Str("path", cfg.Path).Msg("Session store opened")
	metrics.SetSessionsStored(len(s.ListAll(context.Background())))

	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ListAll returns all records, most-recent-first. A storage read failure is
// logged and degrades to an empty list; the caller is never failed.
func (s *SQLite) ListAll(ctx context.Context) []snapshot.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		metrics.RecordStoreError("list")
		s.logger.Error().Err(err).Msg("Failed to read session list, returning empty")
		return []snapshot.SessionRecord{}
	}
	return records
}

// Get returns the record with the given id, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (snapshot.SessionRecord, error) {
	for _, record := range s.ListAll(ctx) {
		if record.ID == id {
			return record, nil
		}
	}
	return snapshot.SessionRecord{}, ErrNotFound
}

// Save inserts the record at the front of the list, replacing any existing
// auto-save when the record itself is an auto-save, then truncates to the
// cap and persists the whole list in a single write.
func (s *SQLite) Save(ctx context.Context, record snapshot.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		metrics.RecordStoreError("save")
		s.logger.Error().Err(err).Msg("Failed to read session list for save")
		return fmt.Errorf("failed to read session list: %w", err)
	}

	if record.Kind == snapshot.KindAuto {
		kept := records[:0]
		for _, existing := range records {
			if existing.Kind != snapshot.KindAuto {
				kept = append(kept, existing)
			}
		}
		records = kept
	}

	records = append([]snapshot.SessionRecord{record}, records...)
	if len(records) > MaxSessions {
		records = records[:MaxSessions]
	}

	if err := s.persistLocked(ctx, records); err != nil {
		metrics.RecordStoreError("save")
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to persist session list")
		return fmt.Errorf("failed to persist session list: %w", err)
	}

	metrics.SetSessionsStored(len(records))
	s.logger.Debug().
		Str("id", record.ID).
		Str("kind", string(record.Kind)).
		Int("total", len(records)).
		Msg("Session saved")

	return nil
}

// Update rewrites the record with the same id in place. Unlike Save it
// never reorders the list; the record keeps its position.
func (s *SQLite) Update(ctx context.Context, record snapshot.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		metrics.RecordStoreError("update")
		s.logger.Error().Err(err).Msg("Failed to read session list for update")
		return fmt.Errorf("failed to read session list: %w", err)
	}

	found := false
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}

	if err := s.persistLocked(ctx, records); err != nil {
		metrics.RecordStoreError("update")
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to persist session list after update")
		return fmt.Errorf("failed to persist session list: %w", err)
	}

	s.logger.Debug().Str("id", record.ID).Msg("Session updated in place")

	return nil
}

// Delete removes the record with the given id. Absent ids are a no-op.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		metrics.RecordStoreError("delete")
		s.logger.Error().Err(err).Msg("Failed to read session list for delete")
		return fmt.Errorf("failed to read session list: %w", err)
	}

	kept := records[:0]
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return nil
	}

	if err := s.persistLocked(ctx, kept); err != nil {
		metrics.RecordStoreError("delete")
		s.logger.Error().Err(err).Str("id", id).Msg("Failed to persist session list after delete")
		return fmt.Errorf("failed to persist session list: %w", err)
	}

	metrics.SetSessionsStored(len(kept))
	s.logger.Debug().Str("id", id).Msg("Session deleted")

	return nil
}

// FindLatestAuto returns the single auto-save record, if present. Storage
// failure degrades to "none".
func (s *SQLite) FindLatestAuto(ctx context.Context) (snapshot.SessionRecord, bool) {
	for _, record := range s.ListAll(ctx) {
		if record.Kind == snapshot.KindAuto {
			return record, true
		}
	}
	return snapshot.SessionRecord{}, false
}

func (s *SQLite) loadLocked(ctx context.Context) ([]snapshot.SessionRecord, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, slotKey).Scan(&value)
	if err == sql.ErrNoRows {
		return []snapshot.SessionRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(value, &env); err == nil && env.Version > 0 {
		return env.Sessions, nil
	}

	// Pre-versioning layout was a bare JSON array.
	var legacy []snapshot.SessionRecord
	if err := json.Unmarshal(value, &legacy); err != nil {
		return nil, fmt.Errorf("corrupt session slot: %w", err)
	}
	return legacy, nil
}

func (s *SQLite) persistLocked(ctx context.Context, records []snapshot.SessionRecord) error {
	value, err := json.Marshal(envelope{
		Version:  schemaVersion,
		Sessions: records,
	})
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slots (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		slotKey, value)
	return err
}
