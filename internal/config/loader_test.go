package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmanifest: /tmp/models.yaml\nmemory_budget_mb: 6144\nmemory_margin_mb: 512\nquorum: 3\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ManifestPath != "/tmp/models.yaml" || cfg.MemoryBudgetMB != 6144 || cfg.MemoryMarginMB != 512 || cfg.Quorum != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","manifest":"/m.yaml","memory_budget_mb":42,"memory_margin_mb":2,"cache_entries":8}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ManifestPath != "/m.yaml" || cfg.MemoryBudgetMB != 42 || cfg.MemoryMarginMB != 2 || cfg.CacheEntries != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmanifest=\"/x.yaml\"\nmemory_budget_mb=9\nmodel_timeout_sec=15\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ManifestPath != "/x.yaml" || cfg.MemoryBudgetMB != 9 || cfg.ModelTimeoutSec != 15 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
	p = writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "manifest": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	if cfg.Addr != DefaultAddr {
		t.Fatalf("addr default: %q", cfg.Addr)
	}
	if cfg.ModelTimeout() != time.Duration(DefaultModelTimeoutSec)*time.Second {
		t.Fatalf("model timeout default: %v", cfg.ModelTimeout())
	}
	if cfg.AcquireWait() != time.Duration(DefaultAcquireWaitSec)*time.Second {
		t.Fatalf("acquire wait default: %v", cfg.AcquireWait())
	}
	if cfg.CacheEntries != DefaultCacheEntries || cfg.MinImageDim != DefaultMinImageDim {
		t.Fatalf("cache/min-dim defaults: %+v", cfg)
	}
	// quorum intentionally stays zero; resolved against registry size later
	if cfg.Quorum != 0 {
		t.Fatalf("quorum should stay unset, got %d", cfg.Quorum)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := Config{Addr: ":1", ModelTimeoutSec: 5, AcquireWaitSec: 2, CacheEntries: 3, MinImageDim: 128}
	cfg.Normalize()
	if cfg.Addr != ":1" || cfg.ModelTimeoutSec != 5 || cfg.AcquireWaitSec != 2 || cfg.CacheEntries != 3 || cfg.MinImageDim != 128 {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}
