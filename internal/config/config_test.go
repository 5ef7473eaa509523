package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.OwnerID != "local" {
		t.Errorf("owner = %q, want local", cfg.OwnerID)
	}
	if cfg.DBPath != "board.db" {
		t.Errorf("db path = %q, want board.db", cfg.DBPath)
	}
	if cfg.DashboardPort != 8710 {
		t.Errorf("port = %d, want 8710", cfg.DashboardPort)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("owner_id: alice\ndb_path: custom.db\ndashboard_port: 9000\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", cfg.OwnerID)
	}
	if cfg.DashboardPort != 9000 {
		t.Errorf("port = %d, want 9000", cfg.DashboardPort)
	}
	// Relative db path resolves into the workspace directory.
	if cfg.DBPath != filepath.Join(dir, "custom.db") {
		t.Errorf("db path = %q, want it joined to %s", cfg.DBPath, dir)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FB_OWNER_ID", "bob")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.OwnerID != "bob" {
		t.Errorf("owner = %q, want env override bob", cfg.OwnerID)
	}
}

func TestLoad_MissingConfigFileTolerated(t *testing.T) {
	if _, err := Load(t.TempDir()); err != nil {
		t.Fatalf("Load() of workspace without config.yaml failed: %v", err)
	}
}

func TestInit(t *testing.T) {
	root := t.TempDir()

	dir, err := Init(root)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if dir != filepath.Join(root, DirName) {
		t.Errorf("dir = %q", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}

	// Second init refuses to clobber.
	if _, err := Init(root); err == nil {
		t.Fatal("Init() overwrote an existing config")
	}

	// The written file loads back to the defaults.
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.OwnerID != Defaults().OwnerID {
		t.Errorf("owner = %q, want default", cfg.OwnerID)
	}
}
