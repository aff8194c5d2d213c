package profile

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/get-profile.sql
var getProfileSQL string

//go:embed sql/upsert-profile.sql
var upsertProfileSQL string

// SQLiteStore keeps profiles in a single keyed table. Each save is one upsert,
// so a record is always replaced as a whole.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer at a time keeps "database is locked" away.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func buildDSN(path string) (string, error) {
	params := "_busy_timeout=5000&_journal_mode=WAL"
	if path == ":memory:" {
		return "file::memory:?" + params, nil
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, params), nil
}

func (s *SQLiteStore) Load(ctx context.Context, username string) (UserProfile, error) {
	if err := ValidateUsername(username); err != nil {
		return UserProfile{}, err
	}

	var (
		p      UserProfile
		status string
	)
	err := s.db.QueryRowContext(ctx, getProfileSQL, username).
		Scan(&p.Username, &p.Age, &status, &p.Height, &p.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("query profile %q: %w", username, err)
	}
	p.HealthStatus = HealthStatus(status)
	return p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, p UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertProfileSQL,
		p.Username, p.Age, string(p.HealthStatus), p.Height, p.Weight); err != nil {
		return fmt.Errorf("upsert profile %q: %w", p.Username, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
