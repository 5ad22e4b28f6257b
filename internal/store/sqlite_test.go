package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"relaybot/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetUser_Missing(t *testing.T) {
	s := testStore(t)
	u, err := s.GetUser(context.Background(), "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for missing user, got %+v", u)
	}
}

func TestCreateUser_ThenGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42", FirstName: "Ada", Username: "ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	u, err := s.GetUser(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u == nil || u.FirstName != "Ada" || u.Username != "ada" || u.Phone != "" {
		t.Fatalf("unexpected profile: %+v", u)
	}
}

func TestCreateUser_DuplicateIgnored(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42", FirstName: "Ada"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42", FirstName: "Eve"}); err != nil {
		t.Fatalf("second create should not error: %v", err)
	}

	u, err := s.GetUser(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.FirstName != "Ada" {
		t.Errorf("first profile should win, got %q", u.FirstName)
	}
	n, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one profile, got %d", n)
	}
}

func TestSetPhone_ExistingUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42", FirstName: "Ada"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetPhone(ctx, "42", "+15551234", false); err != nil {
		t.Fatalf("set phone: %v", err)
	}

	u, _ := s.GetUser(ctx, "42")
	if u.Phone != "+15551234" {
		t.Errorf("expected phone set, got %q", u.Phone)
	}
}

func TestSetPhone_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetPhone(ctx, "42", "+15551234", false); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := s.SetPhone(ctx, "42", "+15551234", false); err != nil {
		t.Fatalf("second set: %v", err)
	}

	n, _ := s.CountUsers(ctx)
	if n != 1 {
		t.Errorf("expected one profile after double submit, got %d", n)
	}
	u, _ := s.GetUser(ctx, "42")
	if u.Phone != "+15551234" {
		t.Errorf("unexpected phone: %q", u.Phone)
	}
}

func TestSetPhone_LazyCreate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SetPhone(ctx, "99", "+15550000", true); err != nil {
		t.Fatalf("lazy set: %v", err)
	}

	u, err := s.GetUser(ctx, "99")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u == nil || u.Phone != "+15550000" {
		t.Fatalf("expected lazily created profile with phone, got %+v", u)
	}
}

func TestSetPhone_NoProfileStrict(t *testing.T) {
	s := testStore(t)

	err := s.SetPhone(context.Background(), "99", "+15550000", false)
	if !errors.Is(err, domain.ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}

func TestAddChat_RecentChats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserProfile{ChatID: "42"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, in := range []string{"one", "two", "three"} {
		if err := s.AddChat(ctx, domain.ChatRecord{ChatID: "42", UserInput: in, BotResponse: "re: " + in}); err != nil {
			t.Fatalf("add chat: %v", err)
		}
	}

	recs, err := s.RecentChats(ctx, "42", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Oldest first within the window
	if recs[0].UserInput != "two" || recs[1].UserInput != "three" {
		t.Errorf("unexpected order: %q, %q", recs[0].UserInput, recs[1].UserInput)
	}
	if recs[1].BotResponse != "re: three" {
		t.Errorf("unexpected response: %q", recs[1].BotResponse)
	}
}

func TestRecentChats_OtherUserInvisible(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.CreateUser(ctx, domain.UserProfile{ChatID: "1"})
	_ = s.CreateUser(ctx, domain.UserProfile{ChatID: "2"})
	_ = s.AddChat(ctx, domain.ChatRecord{ChatID: "1", UserInput: "hi", BotResponse: "hello"})

	recs, err := s.RecentChats(ctx, "2", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records for other user, got %d", len(recs))
	}
}

func TestAddFile_Counts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.CreateUser(ctx, domain.UserProfile{ChatID: "42"})
	err := s.AddFile(ctx, domain.FileRecord{
		ChatID:      "42",
		FileID:      "file-abc",
		FilePath:    "https://files.example/file-abc.jpg",
		Description: "a cat on a keyboard",
	})
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	n, err := s.CountFiles(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 file record, got %d", n)
	}
}
