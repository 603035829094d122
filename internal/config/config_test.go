package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.ResultDelay != 8*time.Second {
		t.Errorf("expected 8s result delay, got %v", cfg.Session.ResultDelay)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected backend url %q", cfg.Backend.BaseURL)
	}
	if cfg.Transcript.URL != "ws://localhost:8080/ws" {
		t.Errorf("unexpected transcript url %q", cfg.Transcript.URL)
	}
	if len(cfg.Media.ICEServers) != 1 {
		t.Errorf("expected one default ICE server, got %v", cfg.Media.ICEServers)
	}
	if cfg.Media.FrameSize != 20*time.Millisecond {
		t.Errorf("unexpected frame size %v", cfg.Media.FrameSize)
	}
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	body := []byte("mode: debug\nsession:\n  result_delay: 1s\n  result_attempts: 5\nbackend:\n  base_url: http://backend:9000\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INTERVIEWER_BACKEND_BASE_URL", "http://override:1234")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != "debug" {
		t.Errorf("expected debug mode, got %q", cfg.Mode)
	}
	if cfg.Session.ResultDelay != time.Second || cfg.Session.ResultAttempts != 5 {
		t.Errorf("session config not read: %+v", cfg.Session)
	}
	if cfg.Backend.BaseURL != "http://override:1234" {
		t.Errorf("env override not applied, got %q", cfg.Backend.BaseURL)
	}
}
