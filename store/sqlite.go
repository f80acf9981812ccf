package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/metrics"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a local sqlite database. It is the default
// backend: no external services, a single file on disk.
type SQLiteStore struct {
	path string
	db   *sql.DB

	hits   int64
	misses int64
}

// NewSQLiteStore opens (creating if necessary) the record database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." {
		return nil, fmt.Errorf("sqlite store path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		// WAL is an optimization, not a requirement.
		log.Printf("[STORE] WARNING: failed to set PRAGMA journal_mode = WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key            TEXT PRIMARY KEY,
		format_version INTEGER NOT NULL,
		scope          TEXT NOT NULL,
		mode           TEXT NOT NULL,
		members        TEXT NOT NULL,
		checksum       TEXT NOT NULL DEFAULT '',
		updated_at     TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_scope ON records(scope);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store ping failed: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) Put(ctx context.Context, key string, rec msgset.Record) (err error) {
	defer func(start time.Time) { observe("sqlite", "put", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}
	if err = validateRecord(rec); err != nil {
		return err
	}

	// Members are stored in compact range form; sparse UID sets compress
	// by orders of magnitude.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (key, format_version, scope, mode, members, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			format_version = excluded.format_version,
			scope = excluded.scope,
			mode = excluded.mode,
			members = excluded.members,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at`,
		key, rec.FormatVersion, rec.Scope, rec.Mode,
		msgset.EncodeRanges(rec.Members), rec.Checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store record %q: %w", key, err)
	}

	s.updateRecordGauge(ctx)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (rec msgset.Record, err error) {
	defer func(start time.Time) { observe("sqlite", "get", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return msgset.Record{}, err
	}

	var members string
	row := s.db.QueryRowContext(ctx, `
		SELECT format_version, scope, mode, members, checksum
		FROM records WHERE key = ?`, key)
	if err = row.Scan(&rec.FormatVersion, &rec.Scope, &rec.Mode, &members, &rec.Checksum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			atomic.AddInt64(&s.misses, 1)
			err = fmt.Errorf("%w: %q", consts.ErrRecordNotFound, key)
			return msgset.Record{}, err
		}
		err = fmt.Errorf("failed to read record %q: %w", key, err)
		return msgset.Record{}, err
	}

	rec.Members, err = msgset.DecodeRanges(members)
	if err != nil {
		err = fmt.Errorf("corrupt members for record %q: %w", key, err)
		return msgset.Record{}, err
	}
	if err = validateRecord(rec); err != nil {
		return msgset.Record{}, err
	}

	atomic.AddInt64(&s.hits, 1)
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { observe("sqlite", "delete", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete record %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", consts.ErrRecordNotFound, key)
	}

	s.updateRecordGauge(ctx)
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { observe("sqlite", "list", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM records
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY key`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Stats reports hit/miss counters since the store was opened.
func (s *SQLiteStore) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses)
}

func (s *SQLiteStore) updateRecordGauge(ctx context.Context) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err == nil {
		metrics.StoreRecordsTotal.WithLabelValues("sqlite").Set(float64(n))
	}
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		log.Println("[STORE] closing sqlite record store")
		return s.db.Close()
	}
	return nil
}
