package domain

import (
	"context"
	"time"
)

// UserProfile is the per-user record keyed by the platform chat ID. Created on
// first contact, phone filled in when the user shares their contact card,
// never deleted.
type UserProfile struct {
	ChatID    string    `json:"chat_id"`
	FirstName string    `json:"first_name"`
	Username  string    `json:"username,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatRecord is one free-text exchange: what the user sent and what the AI
// answered. Immutable once written.
type ChatRecord struct {
	ID          int64     `json:"id"`
	ChatID      string    `json:"chat_id"`
	UserInput   string    `json:"user_input"`
	BotResponse string    `json:"bot_response"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileRecord is one file/image analysis. Immutable once written.
type FileRecord struct {
	ID          int64     `json:"id"`
	ChatID      string    `json:"chat_id"`
	FileID      string    `json:"file_id"`
	FilePath    string    `json:"file_path"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists user profiles and interaction records.
type Store interface {
	// GetUser returns nil, nil when no profile exists for the chat ID.
	GetUser(ctx context.Context, chatID string) (*UserProfile, error)
	CreateUser(ctx context.Context, u UserProfile) error
	// SetPhone updates the phone of an existing profile. With lazyCreate it
	// inserts a minimal profile when none exists; otherwise it reports
	// ErrNoProfile.
	SetPhone(ctx context.Context, chatID, phone string, lazyCreate bool) error

	AddChat(ctx context.Context, rec ChatRecord) error
	AddFile(ctx context.Context, rec FileRecord) error
	RecentChats(ctx context.Context, chatID string, limit int) ([]ChatRecord, error)

	CountUsers(ctx context.Context) (int64, error)
	CountChats(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)

	Close() error
}
