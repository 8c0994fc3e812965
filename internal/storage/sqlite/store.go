// Package sqlite is the SQLite implementation of the storage interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			installation_id TEXT NOT NULL UNIQUE,
			app_version TEXT NOT NULL,
			device_type TEXT,
			city TEXT,
			country TEXT,
			last_access TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS llm_usage (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			model_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			duration_ms INTEGER,
			prompt_tokens INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_llm_usage_created ON llm_usage(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_llm_usage_model ON llm_usage(model_name)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateUsageRecord(ctx context.Context, record *domain.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `INSERT INTO llm_usage (id, user_id, model_name, success, duration_ms, prompt_tokens, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, nullString(record.UserID), record.ModelName, record.Success,
		record.DurationMs, record.PromptTokens, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (s *Store) ListUsageRecords(ctx context.Context, limit, offset int) ([]domain.UsageRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_usage`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count usage records: %w", err)
	}

	query := `SELECT id, user_id, model_name, success, duration_ms, prompt_tokens, created_at
	          FROM llm_usage ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var record domain.UsageRecord
		var userID sql.NullString
		if err := rows.Scan(&record.ID, &userID, &record.ModelName, &record.Success,
			&record.DurationMs, &record.PromptTokens, &record.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan usage record: %w", err)
		}
		record.UserID = userID.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate usage records: %w", err)
	}

	return records, total, nil
}

func (s *Store) UpsertUser(ctx context.Context, params storage.UpsertUserParams) (*storage.User, error) {
	now := time.Now()

	query := `INSERT INTO users (id, installation_id, app_version, device_type, city, country, last_access, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(installation_id) DO UPDATE SET
	              app_version = excluded.app_version,
	              device_type = excluded.device_type,
	              city = CASE WHEN excluded.city != '' THEN excluded.city ELSE users.city END,
	              country = CASE WHEN excluded.country != '' THEN excluded.country ELSE users.country END,
	              last_access = excluded.last_access`

	appVersion := params.AppVersion
	if appVersion == "" {
		appVersion = "unknown"
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), params.InstallationID, appVersion, params.DeviceType,
		params.City, params.Country, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return s.FindUser(ctx, params.InstallationID)
}

func (s *Store) FindUser(ctx context.Context, installationID string) (*storage.User, error) {
	query := `SELECT id, installation_id, app_version, device_type, city, country, last_access, created_at
	          FROM users WHERE installation_id = ?`

	var user storage.User
	var deviceType, city, country sql.NullString
	err := s.db.QueryRowContext(ctx, query, installationID).Scan(
		&user.ID, &user.InstallationID, &user.AppVersion,
		&deviceType, &city, &country, &user.LastAccess, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user.DeviceType = deviceType.String
	user.City = city.String
	user.Country = country.String
	return &user, nil
}

func (s *Store) CreateInteraction(ctx context.Context, userID string, kind storage.InteractionKind) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists == 0 {
		return nil
	}

	query := `INSERT INTO interactions (id, user_id, kind, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), userID, string(kind), time.Now()); err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
