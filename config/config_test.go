package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadFrom(t *testing.T, yaml string) (*Config, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	return LoadConfig()
}

func TestDefaults(t *testing.T) {
	cfg, err := loadFrom(t, "http:\n  addr: \":8084\"\n")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mesh.Backend != "memory" {
		t.Fatalf("backend = %s, want memory", cfg.Mesh.Backend)
	}
	if cfg.Mesh.HistoryLimit != 500 {
		t.Fatalf("historyLimit = %d, want 500", cfg.Mesh.HistoryLimit)
	}
	if cfg.Logging.Service != "mesh-service" {
		t.Fatalf("service = %s", cfg.Logging.Service)
	}
	if cfg.PeerWaitDuration() != 30*time.Second {
		t.Fatalf("peerWait = %s, want 30s", cfg.PeerWaitDuration())
	}
}

func TestPeerWaitParsed(t *testing.T) {
	cfg, err := loadFrom(t, "http:\n  addr: \":8084\"\nmesh:\n  peerWait: 5s\n")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PeerWaitDuration() != 5*time.Second {
		t.Fatalf("peerWait = %s, want 5s", cfg.PeerWaitDuration())
	}
}

func TestValidation(t *testing.T) {
	if _, err := loadFrom(t, "logging:\n  env: dev\n"); err == nil {
		t.Fatal("missing http.addr must fail")
	}
	if _, err := loadFrom(t, "http:\n  addr: \":8084\"\nmesh:\n  backend: postgres\n"); err == nil {
		t.Fatal("postgres backend without dsn must fail")
	}
	if _, err := loadFrom(t, "http:\n  addr: \":8084\"\nmesh:\n  backend: kafka\n"); err == nil {
		t.Fatal("unknown backend must fail")
	}
}
