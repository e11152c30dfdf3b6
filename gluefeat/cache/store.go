// Package cache persists converted features in a libsql database so repeated
// runs over the same task, split, model, length and token layout skip
// conversion.
package cache

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

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// Key identifies one cached conversion. Layout is a Fingerprint of whatever
// else shapes the features, such as builder options and tokenizer settings.
type Key struct {
	Task         string
	Split        string
	Model        string
	MaxSeqLength int
	Layout       string
}

// String renders the key as cached_<split>_<model>_<maxlen>_<task>, with
// _<layout> appended when Layout is set.
func (k Key) String() string {
	s := fmt.Sprintf("cached_%s_%s_%d_%s", k.Split, k.Model, k.MaxSeqLength, k.Task)
	if k.Layout != "" {
		s += "_" + k.Layout
	}
	return s
}

// Fingerprint hashes the JSON encoding of parts into a 16 hex digit digest.
func Fingerprint(parts ...any) (string, error) {
	h := xxhash.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("failed to fingerprint layout: %w", err)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Entry describes a stored conversion without its features.
type Entry struct {
	ID        uuid.UUID
	Key       Key
	Count     int
	CreatedAt time.Time
}

// Store is a feature cache backed by libsql.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to dsn and creates the cache table. A bare path is opened as
// a local file, creating its directory.
func Open(dsn string, logger zerolog.Logger) (*Store, error) {
	url, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug().Str("dsn", url).Msg("feature cache opened")
	return s, nil
}

func resolveDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("empty cache dsn")
	}
	if strings.Contains(dsn, "://") {
		return dsn, nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create cache directory: %w", err)
	}
	return "file:" + path, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS feature_cache (
		id TEXT PRIMARY KEY UNIQUE,
		cache_key TEXT NOT NULL UNIQUE,
		task TEXT NOT NULL,
		split TEXT NOT NULL,
		model TEXT NOT NULL,
		max_seq_length INTEGER NOT NULL,
		layout TEXT NOT NULL DEFAULT '',
		feature_count INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		features BLOB
	)`)
	if err != nil {
		return fmt.Errorf("failed to create feature_cache table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores feats under key, replacing any earlier entry, and returns the
// id of the new entry.
func (s *Store) Put(ctx context.Context, key Key, feats []features.Feature) (uuid.UUID, error) {
	blob, err := json.Marshal(feats)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode features: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM feature_cache WHERE cache_key = ?", key.String()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to replace cache entry: %w", err)
	}

	id := uuid.New()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO feature_cache (id, cache_key, task, split, model, max_seq_length, layout, feature_count, created_at, features)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), key.String(), key.Task, key.Split, key.Model, key.MaxSeqLength, key.Layout, len(feats),
		time.Now().UTC().Format(time.RFC3339Nano), blob,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert cache entry: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n != 1 {
		return uuid.Nil, fmt.Errorf("expected 1 row affected, got %d", n)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug().Str("key", key.String()).Int("features", len(feats)).Msg("features cached")
	return id, nil
}

// Get loads the features stored under key. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key Key) ([]features.Feature, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT features FROM feature_cache WHERE cache_key = ?", key.String()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	var feats []features.Feature
	if err := json.Unmarshal(blob, &feats); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached features: %w", err)
	}
	return feats, true, nil
}

// Delete removes the entry under key, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, key Key) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM feature_cache WHERE cache_key = ?", key.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns every entry ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, task, split, model, max_seq_length, layout, feature_count, created_at FROM feature_cache ORDER BY cache_key")
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id, createdAt string
		if err := rows.Scan(&id, &e.Key.Task, &e.Key.Split, &e.Key.Model, &e.Key.MaxSeqLength, &e.Key.Layout, &e.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse cache entry id: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse cache entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
