package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"matclass/ml"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Predictor.Endpoint != ml.DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.Predictor.Endpoint)
	}
	if cfg.Predictor.Timeout != 0 {
		t.Fatalf("expected no predictor timeout by default, got %v", cfg.Predictor.Timeout)
	}
	if cfg.Session.OrderedResults {
		t.Fatal("expected ordered_results off by default")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
http:
  port: 9090
predictor:
  endpoint: "https://classifier.example.com/predict"
  timeout: 5s
session:
  ordered_results: true
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Http.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Http.Port)
	}
	if cfg.Predictor.Endpoint != "https://classifier.example.com/predict" {
		t.Fatalf("unexpected endpoint %q", cfg.Predictor.Endpoint)
	}
	if cfg.Predictor.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.Predictor.Timeout)
	}
	if !cfg.Session.OrderedResults {
		t.Fatal("expected ordered_results true")
	}
	if cfg.Session.MaxSessions != Default().Session.MaxSessions {
		t.Fatalf("expected default max_sessions to survive, got %d", cfg.Session.MaxSessions)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Http.Timeout != 30*time.Second {
		t.Fatalf("expected default http timeout, got %v", cfg.Http.Timeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad port", "http:\n  port: 70000\n", "http.port"},
		{"relative endpoint", "predictor:\n  endpoint: /predict\n", "predictor.endpoint"},
		{"ftp endpoint", "predictor:\n  endpoint: ftp://host/predict\n", "predictor.endpoint"},
		{"zero sessions", "session:\n  max_sessions: 0\n", "max_sessions"},
		{"negative timeout", "predictor:\n  timeout: -1s\n", "predictor.timeout"},
		{"bad yaml", "http: [\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Http.Port != Default().Http.Port {
		t.Fatalf("expected defaults, got port %d", cfg.Http.Port)
	}
}

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "log:\n  level: info\n")

	changed := make(chan Config, 16)
	w, err := Watch(path, func(c Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "log:\n  level: debug\n")

	// 截断与写入可能产生多个事件，等到最终内容为止
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Log.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for reload")
		}
	}
}
