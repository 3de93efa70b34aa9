package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Pragmas applied to every connection.
const dsnOptions = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// dataSourceName is the write pool DSN. Its transactions start with
// BEGIN IMMEDIATE so concurrent writers queue on busy_timeout instead of
// failing on lock upgrade.
func dataSourceName(dbPath string) string {
	return dbPath + "?" + dsnOptions + "&_txlock=immediate"
}

// readDataSourceName is the read pool DSN: deferred transactions, which in
// WAL mode read a snapshot without waiting for writers.
func readDataSourceName(dbPath string) string {
	return dbPath + "?" + dsnOptions + "&_txlock=deferred"
}

type SQLiteRepository struct {
	db          *sql.DB
	readDB      *sql.DB
	queries     *Queries
	readQueries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", readDataSourceName(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite read pool: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath)

	return &SQLiteRepository{
		db:          db,
		readDB:      readDB,
		queries:     New(db),
		readQueries: New(readDB),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	var err error
	if r.readDB != nil {
		err = r.readDB.Close()
	}
	if r.db != nil {
		if cerr := r.db.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}

// Queries returns statements bound to the pool, outside any transaction.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// Ping checks the database is reachable; backs /readyz.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InReadTx runs fn inside one deferred transaction on the read pool. All of
// fn's reads see one snapshot; fn must not write.
func (r *SQLiteRepository) InReadTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.readDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to end read transaction", "error", rbErr)
		}
	}()
	return fn(r.readQueries.WithTx(tx))
}

// InTx runs fn inside one storage write transaction. It commits when fn returns nil
// and rolls back otherwise, returning fn's error unchanged.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
