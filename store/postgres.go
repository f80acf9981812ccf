package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/logger"
	"github.com/migadu/msgset/msgset"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps records in PostgreSQL, for deployments where several
// processes share one record cache.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore connects to PostgreSQL and applies pending schema
// migrations before returning.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	sslMode := "disable"
	if cfg.TLSMode {
		sslMode = "require"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, sslMode)

	logger.Info("connecting to record store database",
		"host", cfg.Host, "port", cfg.Port, "name", cfg.Name, "sslmode", sslMode)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	if err := runMigrations(connString); err != nil {
		pool.Close()
		return nil, err
	}

	timeout, err := cfg.GetQueryTimeout()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, queryTimeout: timeout}, nil
}

// runMigrations applies embedded migrations through the database/sql pgx
// driver; the pgxpool is only used for queries.
func runMigrations(connString string) error {
	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	dbDriver, err := pgxv5.WithInstance(sqlDB, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *PostgresStore) Put(ctx context.Context, key string, rec msgset.Record) (err error) {
	defer func(start time.Time) { observe("postgres", "put", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}
	if err = validateRecord(rec); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO msgset_records (key, format_version, scope, mode, members, checksum, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (key) DO UPDATE SET
			format_version = EXCLUDED.format_version,
			scope = EXCLUDED.scope,
			mode = EXCLUDED.mode,
			members = EXCLUDED.members,
			checksum = EXCLUDED.checksum,
			updated_at = now()`,
		key, rec.FormatVersion, rec.Scope, rec.Mode,
		msgset.EncodeRanges(rec.Members), rec.Checksum)
	if err != nil {
		return fmt.Errorf("failed to store record %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (rec msgset.Record, err error) {
	defer func(start time.Time) { observe("postgres", "get", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return msgset.Record{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var members string
	row := s.pool.QueryRow(ctx, `
		SELECT format_version, scope, mode, members, checksum
		FROM msgset_records WHERE key = $1`, key)
	if err = row.Scan(&rec.FormatVersion, &rec.Scope, &rec.Mode, &members, &rec.Checksum); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { observe("postgres", "delete", start, err) }(time.Now())

	if err = ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM msgset_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete record %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", consts.ErrRecordNotFound, key)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { observe("postgres", "list", start, err) }(time.Now())

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT key FROM msgset_records
		WHERE key LIKE $1
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

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
