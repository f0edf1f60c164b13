package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Create temporary config file
	content := `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

quota:
  defaultWeeklyCredits: 25
  strictReserve: true

generation:
  apiKey: "test-key"
`

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load config
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Database.Host != "testdb" {
		t.Errorf("Expected database host testdb, got %s", cfg.Database.Host)
	}

	if cfg.Quota.DefaultWeeklyCredits != 25 {
		t.Errorf("Expected 25 default weekly credits, got %d", cfg.Quota.DefaultWeeklyCredits)
	}

	if !cfg.Quota.StrictReserve {
		t.Error("Expected strictReserve to be true")
	}

	if cfg.Generation.APIKey != "test-key" {
		t.Errorf("Expected generation API key test-key, got %s", cfg.Generation.APIKey)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte("server:\n  port: 8080\n")); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Quota.DefaultWeeklyCredits != 100 {
		t.Errorf("Expected default of 100 weekly credits, got %d", cfg.Quota.DefaultWeeklyCredits)
	}

	if cfg.Quota.StrictReserve {
		t.Error("Expected strictReserve to default to false")
	}

	if cfg.Storage.BucketName != "generations" {
		t.Errorf("Expected bucket generations, got %s", cfg.Storage.BucketName)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}
