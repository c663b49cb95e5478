package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGenerateAPIKeyRoundTrip(t *testing.T) {
	tests := []struct {
		username, password string
	}{
		{"alice", "secret"},
		{"bob@example.com", "p@ss:with:colons"},
		{"", ""},
		{"ünïcødé", "пароль"},
	}

	for _, tt := range tests {
		key := GenerateAPIKey(tt.username, tt.password)
		if again := GenerateAPIKey(tt.username, tt.password); again != key {
			t.Errorf("GenerateAPIKey not deterministic: %q vs %q", key, again)
		}
		user, pass, err := DecodeAPIKey(key)
		if err != nil {
			t.Fatalf("DecodeAPIKey(%q) failed: %v", key, err)
		}
		if user != tt.username || pass != tt.password {
			t.Errorf("roundtrip got %q:%q, want %q:%q", user, pass, tt.username, tt.password)
		}
	}
}

func TestGenerateAPIKeyKnownValue(t *testing.T) {
	// base64("user:pass")
	if got := GenerateAPIKey("user", "pass"); got != "dXNlcjpwYXNz" {
		t.Errorf("GenerateAPIKey = %q", got)
	}
}

func TestDecodeAPIKeyRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeAPIKey("!!not-base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	// base64("nocolon")
	if _, _, err := DecodeAPIKey("bm9jb2xvbg=="); err == nil {
		t.Error("expected error when no colon separator")
	}
}

func TestResolveAPIKeyPriority(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "apikey")
	if err := WriteKeyFile(keyFile, "from-file"); err != nil {
		t.Fatal(err)
	}

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "from-env")
		c := &Config{Username: "u", Password: "p", APIKey: "from-config"}
		source, present := c.ResolveAPIKey("from-flag", keyFile)
		if c.APIKey != "from-flag" || source != KeySourceFlag {
			t.Errorf("got %q from %q", c.APIKey, source)
		}
		if len(present) != 5 {
			t.Errorf("expected 5 present sources, got %v", present)
		}
	})

	t.Run("env beats username/password", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "from-env")
		c := &Config{Username: "u", Password: "p"}
		source, _ := c.ResolveAPIKey("", keyFile)
		if c.APIKey != "from-env" || source != KeySourceEnv {
			t.Errorf("got %q from %q", c.APIKey, source)
		}
	})

	t.Run("username/password encoded", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "")
		c := &Config{Username: "u", Password: "p"}
		source, _ := c.ResolveAPIKey("", keyFile)
		if c.APIKey != GenerateAPIKey("u", "p") || source != KeySourceUserPass {
			t.Errorf("got %q from %q", c.APIKey, source)
		}
	})

	t.Run("key file before config", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "")
		c := &Config{APIKey: "from-config"}
		source, _ := c.ResolveAPIKey("", keyFile)
		if c.APIKey != "from-file" || source != KeySourceKeyFile {
			t.Errorf("got %q from %q", c.APIKey, source)
		}
	})

	t.Run("config as last resort", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "")
		c := &Config{APIKey: "from-config"}
		source, _ := c.ResolveAPIKey("", filepath.Join(dir, "missing"))
		if c.APIKey != "from-config" || source != KeySourceConfig {
			t.Errorf("got %q from %q", c.APIKey, source)
		}
	})
}

func TestWriteKeyFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "apikey")
	if err := WriteKeyFile(path, "  abc123  "); err != nil {
		t.Fatalf("WriteKeyFile failed: %v", err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600, got %04o", info.Mode().Perm())
		}
	}
	key, err := ReadKeyFile(path)
	if err != nil {
		t.Fatalf("ReadKeyFile failed: %v", err)
	}
	if key != "abc123" {
		t.Errorf("expected trimmed key, got %q", key)
	}

	if err := WriteKeyFile(path, "   "); err == nil {
		t.Error("expected error writing empty key")
	}
}
