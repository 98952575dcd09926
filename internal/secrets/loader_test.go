package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  token-value \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	secret, err := Load(Source{Name: "api key", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "token-value" {
		t.Fatalf("expected trimmed secret, got %q", secret)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEARTMATCH_TEST_KEY", "env-value")

	secret, err := Load(Source{Name: "api key", Env: "HEARTMATCH_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "env-value" {
		t.Fatalf("expected env secret, got %q", secret)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatal("expected error for unconfigured secret")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(Source{Name: "api key", File: path}); err == nil {
		t.Fatal("expected error for empty secret file")
	}
}

func TestLoadOptionalUnset(t *testing.T) {
	secret, err := LoadOptional(Source{Name: "cloud key", Env: "HEARTMATCH_UNSET_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "" {
		t.Fatalf("expected empty secret, got %q", secret)
	}
}

func TestLoadOptionalBrokenFile(t *testing.T) {
	if _, err := LoadOptional(Source{Name: "cloud key", File: "/nonexistent/path"}); err == nil {
		t.Fatal("expected error for unreadable secret file")
	}
}
