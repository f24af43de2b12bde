package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "sync.db" {
			t.Errorf("expected database path sync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Sync.Concurrency != 3 {
			t.Errorf("expected sync concurrency 3, got %d", config.Sync.Concurrency)
		}

		if config.Sync.AlbumThreshold != 0.6 {
			t.Errorf("expected album threshold 0.6, got %f", config.Sync.AlbumThreshold)
		}

		if config.Credentials.Spotify.RedirectURI == "" {
			t.Error("expected a default spotify redirect URI")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("Valid File", func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.toml")

			content := `
[credentials.spotify]
client_id = "cid"
client_secret = "secret"

[sync]
concurrency = 8
album_threshold = 0.8

[database]
path = "/tmp/test.db"

[server]
port = 9001
secret = "signing-key"
`
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			config, err := LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if config.Credentials.Spotify.ClientID != "cid" {
				t.Errorf("expected client_id cid, got %s", config.Credentials.Spotify.ClientID)
			}
			if config.Sync.Concurrency != 8 {
				t.Errorf("expected concurrency 8, got %d", config.Sync.Concurrency)
			}
			if config.Sync.AlbumThreshold != 0.8 {
				t.Errorf("expected album threshold 0.8, got %f", config.Sync.AlbumThreshold)
			}
			if config.Server.Secret != "signing-key" {
				t.Errorf("expected server secret, got %q", config.Server.Secret)
			}
		})

		t.Run("Missing File", func(t *testing.T) {
			if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
				t.Error("expected error for missing file")
			}
		})

		t.Run("Invalid TOML", func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.toml")
			if err := os.WriteFile(configPath, []byte("not [valid toml"), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			if _, err := LoadConfig(configPath); err == nil {
				t.Error("expected error for invalid TOML")
			}
		})
	})
}
