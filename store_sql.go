package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"colordle/internal/types"
)

// sqlDialect captures what differs between the supported databases.
type sqlDialect struct {
	name        string
	driver      string
	createTable string
	upsert      string
	numbered    bool // $1, $2 placeholders instead of ?
}

var sqlDialects = map[string]sqlDialect{
	"sqlite": {
		name:   "sqlite",
		driver: "sqlite3",
		createTable: `CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id TEXT PRIMARY KEY,
			game_date TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		upsert: `INSERT INTO session_snapshots (session_id, game_date, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				game_date = excluded.game_date,
				payload = excluded.payload,
				updated_at = excluded.updated_at`,
	},
	"postgres": {
		name:   "postgres",
		driver: "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id TEXT PRIMARY KEY,
			game_date TEXT NOT NULL,
			payload TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		upsert: `INSERT INTO session_snapshots (session_id, game_date, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET
				game_date = EXCLUDED.game_date,
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at`,
		numbered: true,
	},
	"mysql": {
		name:   "mysql",
		driver: "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id VARCHAR(36) PRIMARY KEY,
			game_date CHAR(10) NOT NULL,
			payload TEXT NOT NULL,
			updated_at DATETIME(3) NOT NULL
		)`,
		upsert: `INSERT INTO session_snapshots (session_id, game_date, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				game_date = VALUES(game_date),
				payload = VALUES(payload),
				updated_at = VALUES(updated_at)`,
	},
}

// rewrite turns ? placeholders into $n for dialects that need it.
func (d sqlDialect) rewrite(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlSnapshotStore keeps snapshots in a session_snapshots table.
type sqlSnapshotStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// newSQLSnapshotStore opens the database, checks the connection and creates
// the table if needed. dsn is a file path for sqlite and a URL otherwise.
func newSQLSnapshotStore(ctx context.Context, backend, dsn string) (*sqlSnapshotStore, error) {
	dialect, ok := sqlDialects[backend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s storage needs a connection string", backend)
	}
	if dialect.name == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open(dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if dialect.name == "sqlite" {
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", backend, err)
	}
	if _, err := db.ExecContext(ctx, dialect.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session_snapshots: %w", err)
	}
	return &sqlSnapshotStore{db: db, dialect: dialect}, nil
}

func (s *sqlSnapshotStore) Save(ctx context.Context, sessionID string, snap *types.Snapshot) error {
	if !validSessionID(sessionID) {
		logWarn("Skipping save for invalid session ID: %s", sessionID)
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for session %s: %w", sessionID, err)
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rewrite(s.dialect.upsert),
		sessionID, snap.Date, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *sqlSnapshotStore) Load(ctx context.Context, sessionID string) (*types.Snapshot, error) {
	if !validSessionID(sessionID) {
		return nil, errSnapshotNotFound
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.dialect.rewrite(`SELECT payload FROM session_snapshots WHERE session_id = ?`),
		sessionID,
	).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errSnapshotNotFound
	case err != nil:
		return nil, fmt.Errorf("load snapshot for session %s: %w", sessionID, err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", errSnapshotInvalid, err)
	}
	return &snap, nil
}

func (s *sqlSnapshotStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		s.dialect.rewrite(`DELETE FROM session_snapshots WHERE updated_at < ?`),
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqlSnapshotStore) Close() error { return s.db.Close() }

// openSnapshotStore picks the store named by cfg.StorageBackend.
func openSnapshotStore(ctx context.Context, cfg Config) (SnapshotStore, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "", "file":
		return newFileSnapshotStore(cfg.SessionDir)
	case "memory":
		return newMemorySnapshotStore(), nil
	case "sqlite", "sqlite3":
		return newSQLSnapshotStore(ctx, "sqlite", cfg.DatabasePath)
	case "postgres", "postgresql":
		return newSQLSnapshotStore(ctx, "postgres", cfg.DatabaseURL)
	case "mysql":
		return newSQLSnapshotStore(ctx, "mysql", cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
