package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `shell: bash
charset: UTF_8
prefix: "[build] "
secrets: [DB_PASSWORD, API_TOKEN]

runtime:
  pool_min: 4
  pool_max: 16
  keep_alive: 30s
  adjust_interval: 2s
  backlog_factor: 10
  drain_timeout: 5m
  fail_on_drain_timeout: true
  shutdown_timeout: 10s
  error_tail: 50
  capture_output: true
  continue_on_error: true

quality:
  url: https://quality.example.com
  element_type: linuxScript
  timeout: 15s
  retries: 2
  headers:
    X-Tenant: acme

storage:
  dataset: scriptrun
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

policy:
  name: streaming
  flush_count: 500
  flush_interval: 2s

adapter:
  type: webhook
  url: https://hooks.example.com/scriptrun
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "shell", cfg.Shell, "bash")
	assertEqual(t, "charset", cfg.Charset, "UTF_8")
	assertEqual(t, "prefix", cfg.Prefix, "[build] ")
	if strings.Join(cfg.Secrets, ",") != "DB_PASSWORD,API_TOKEN" {
		t.Errorf("secrets: got %v", cfg.Secrets)
	}

	rt := cfg.Runtime
	if rt.PoolMin != 4 || rt.PoolMax != 16 || rt.BacklogFactor != 10 || rt.ErrorTail != 50 {
		t.Errorf("runtime ints: got %+v", rt)
	}
	if rt.KeepAlive.Duration != 30*time.Second {
		t.Errorf("keep_alive: got %v", rt.KeepAlive.Duration)
	}
	if rt.DrainTimeout.Duration != 5*time.Minute {
		t.Errorf("drain_timeout: got %v", rt.DrainTimeout.Duration)
	}
	if !rt.FailOnDrainTimeout || !rt.CaptureOutput || !rt.ContinueOnError {
		t.Errorf("runtime flags: got %+v", rt)
	}

	assertEqual(t, "quality.url", cfg.Quality.URL, "https://quality.example.com")
	assertEqual(t, "quality.element_type", cfg.Quality.ElementType, "linuxScript")
	if cfg.Quality.Timeout.Duration != 15*time.Second {
		t.Errorf("quality.timeout: got %v", cfg.Quality.Timeout.Duration)
	}
	if cfg.Quality.Retries == nil || *cfg.Quality.Retries != 2 {
		t.Error("expected quality.retries=2")
	}
	assertEqual(t, "quality.headers", cfg.Quality.Headers["X-Tenant"], "acme")

	assertEqual(t, "storage.dataset", cfg.Storage.Dataset, "scriptrun")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	assertEqual(t, "policy.name", cfg.Policy.Name, "streaming")
	if cfg.Policy.FlushCount != 500 {
		t.Errorf("policy.flush_count: got %d", cfg.Policy.FlushCount)
	}
	if cfg.Policy.FlushInterval.Duration != 2*time.Second {
		t.Errorf("policy.flush_interval: got %v", cfg.Policy.FlushInterval.Duration)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/scriptrun")
	assertEqual(t, "adapter.headers", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout: got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Shell != "" || cfg.Runtime.PoolMax != 0 || cfg.Adapter.Retries != nil {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SR_HOOK_URL", "https://hooks.internal/step")
	yaml := `adapter:
  type: webhook
  url: ${SR_HOOK_URL}
storage:
  backend: ${SR_BACKEND_UNSET:-fs}
  path: ${SR_ARCHIVE_DIR:-/var/lib/scriptrun}
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.internal/step")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "fs")
	assertEqual(t, "storage.path", cfg.Storage.Path, "/var/lib/scriptrun")
}

func TestLoad_RedisAdapterChannelOmitted(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "runtime: [", "invalid YAML"},
		{"unknown key", "executor: ./x.js\n", "invalid YAML"},
		{"bad duration", "runtime:\n  drain_timeout: soon\n", "invalid duration"},
		{"negative duration", "policy:\n  flush_interval: -1s\n", "negative duration"},
		{"bad backend", "storage:\n  backend: gcs\n", "storage.backend"},
		{"bad policy", "policy:\n  name: buffered\n", "policy.name"},
		{"bad adapter", "adapter:\n  type: kafka\n", "adapter.type"},
		{"pool bounds", "runtime:\n  pool_min: 8\n  pool_max: 2\n", "exceeds pool_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scriptrun.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
