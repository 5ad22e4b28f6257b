package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"relaybot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		chat_id     TEXT PRIMARY KEY,
		first_name  TEXT,
		username    TEXT,
		phone       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chats (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id       TEXT NOT NULL REFERENCES users(chat_id),
		user_input    TEXT NOT NULL,
		bot_response  TEXT NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(chat_id, created_at);

	CREATE TABLE IF NOT EXISTS files (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id      TEXT NOT NULL REFERENCES users(chat_id),
		file_id      TEXT,
		file_path    TEXT NOT NULL,
		description  TEXT NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_files_user ON files(chat_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, chatID string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	var username, phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, first_name, username, phone, created_at, updated_at
		 FROM users WHERE chat_id = ?`, chatID,
	).Scan(&u.ChatID, &u.FirstName, &username, &phone, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.Phone = phone.String
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.UserProfile) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (chat_id, first_name, username, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ChatID, u.FirstName, u.Username, u.Phone, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) SetPhone(ctx context.Context, chatID, phone string, lazyCreate bool) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET phone = ?, updated_at = ? WHERE chat_id = ?`,
		phone, now, chatID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if !lazyCreate {
		return domain.ErrNoProfile
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (chat_id, first_name, username, phone, created_at, updated_at)
		 VALUES (?, '', '', ?, ?, ?)`,
		chatID, phone, now, now,
	)
	return err
}

func (s *SQLiteStore) AddChat(ctx context.Context, rec domain.ChatRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, user_input, bot_response, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.ChatID, rec.UserInput, rec.BotResponse, rec.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) AddFile(ctx context.Context, rec domain.FileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (chat_id, file_id, file_path, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ChatID, rec.FileID, rec.FilePath, rec.Description, rec.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) RecentChats(ctx context.Context, chatID string, limit int) ([]domain.ChatRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	// Last N exchanges, returned oldest first
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_input, bot_response, created_at
		 FROM chats WHERE chat_id = ?
		 ORDER BY id DESC LIMIT ?`, chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.ChatRecord
	for rows.Next() {
		var r domain.ChatRecord
		if err := rows.Scan(&r.ID, &r.ChatID, &r.UserInput, &r.BotResponse, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, "users")
}

func (s *SQLiteStore) CountChats(ctx context.Context) (int64, error) {
	return s.count(ctx, "chats")
}

func (s *SQLiteStore) CountFiles(ctx context.Context) (int64, error) {
	return s.count(ctx, "files")
}

func (s *SQLiteStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
