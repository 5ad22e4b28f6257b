package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxConcurrent_OutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.General.MaxConcurrentMessages = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxConcurrentMessages=0")
	}

	cfg.General.MaxConcurrentMessages = 101
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxConcurrentMessages=101")
	}
}

func TestValidate_MaxResults_Boundary(t *testing.T) {
	cfg := Defaults()

	cfg.Search.MaxResults = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxResults=1 should be valid: %v", err)
	}

	cfg.Search.MaxResults = 11
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxResults=11")
	}
}

func TestValidate_InvalidParseMode(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.ParseMode = "BBCode"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid parse mode")
	}
}

func TestValidate_UnsupportedSearchProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Search.Provider = "bing"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported search provider")
	}
}

// --- ValidateCredentials ---

func TestValidateCredentials_AllPresent(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456:token"
	p := cfg.Providers["gemini"]
	p.APIKey = "gemini-key"
	cfg.Providers["gemini"] = p
	cfg.Search.APIKey = "serp-key"

	if err := ValidateCredentials(cfg); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidateCredentials_Missing(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = ""
	p := cfg.Providers["gemini"]
	p.APIKey = ""
	cfg.Providers["gemini"] = p
	cfg.Search.APIKey = ""

	err := ValidateCredentials(cfg)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	for _, want := range []string{"telegram.token", "gemini.apiKey", "search.apiKey"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidateCredentials_UnexpandedEnvVar(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456:token"
	cfg.Search.APIKey = "serp-key"
	// gemini apiKey is left at the ${GEMINI_API_KEY} placeholder

	if err := ValidateCredentials(cfg); err == nil {
		t.Fatal("expected error for unexpanded env var placeholder")
	}
}

func TestValidateCredentials_UnknownDefaultProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "123456:token"
	cfg.Search.APIKey = "serp-key"
	cfg.General.DefaultProvider = "claude"

	if err := ValidateCredentials(cfg); err == nil {
		t.Fatal("expected error for unknown default provider")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Channels.Telegram.Token = "round-trip-token"
	cfg.Search.MaxResults = 5
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Channels.Telegram.Token != "round-trip-token" {
		t.Errorf("token not preserved: %q", loaded.Channels.Telegram.Token)
	}
	if loaded.Search.MaxResults != 5 {
		t.Errorf("maxResults not preserved: %d", loaded.Search.MaxResults)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RELAYBOT_TEST_TOKEN", "tok-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "${RELAYBOT_TEST_TOKEN}"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Channels.Telegram.Token != "tok-from-env" {
		t.Errorf("expected env expansion, got %q", loaded.Channels.Telegram.Token)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("RELAYBOT_UNSET_VAR")
	got := ExpandEnvVars("${RELAYBOT_UNSET_VAR:-fallback}")
	if got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestExpandEnvVars_UnsetNoDefault(t *testing.T) {
	os.Unsetenv("RELAYBOT_UNSET_VAR")
	got := ExpandEnvVars("${RELAYBOT_UNSET_VAR}")
	if got != "${RELAYBOT_UNSET_VAR}" {
		t.Errorf("expected original string kept, got %q", got)
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var f FlexStringList
	if err := json.Unmarshal([]byte(`["123", 456]`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(f) != 2 || f[0] != "123" || f[1] != "456" {
		t.Errorf("unexpected result: %v", f)
	}
}

// --- Accessor ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "search.maxResults")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n, ok := v.(float64); !ok || n != 3 {
		t.Errorf("expected 3, got %v", v)
	}

	if _, err := GetByPath(cfg, "search.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_TypeCoercion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "search.maxResults", "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("expected 5, got %d", cfg.Search.MaxResults)
	}

	if err := SetByPath(cfg, "registration.lazyContactCreate", "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Registration.LazyContactCreate {
		t.Error("expected lazyContactCreate=false")
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Token = "1234567890:ABCDEF"
	cfg.Search.APIKey = "serpapi-secret-key"

	s := Sanitize(cfg)
	if s.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Error("telegram token not masked")
	}
	if s.Search.APIKey == cfg.Search.APIKey {
		t.Error("search apiKey not masked")
	}
	// Original untouched
	if cfg.Search.APIKey != "serpapi-secret-key" {
		t.Error("sanitize mutated the original config")
	}
}
