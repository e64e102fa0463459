package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetters(t *testing.T) {
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "forty")
	t.Setenv("CFG_BOOL", "true")
	t.Setenv("CFG_DUR_INT", "3")
	t.Setenv("CFG_DUR", "750ms")
	t.Setenv("CFG_LIST", " a, ,b ,c")

	if got := GetInt("CFG_INT", 1); got != 42 {
		t.Fatalf("GetInt = %d", got)
	}
	if got := GetInt("CFG_BAD_INT", 7); got != 7 {
		t.Fatalf("GetInt fallback = %d", got)
	}
	if !GetBool("CFG_BOOL", false) {
		t.Fatal("GetBool should read true")
	}
	if got := GetDuration("CFG_DUR_INT", time.Second, 0); got != 3*time.Second {
		t.Fatalf("GetDuration int = %s", got)
	}
	if got := GetDuration("CFG_DUR", time.Second, 0); got != 750*time.Millisecond {
		t.Fatalf("GetDuration string = %s", got)
	}
	list := GetList("CFG_LIST", nil)
	if len(list) != 3 || list[0] != "a" || list[2] != "c" {
		t.Fatalf("GetList = %v", list)
	}
	if got := GetString("CFG_UNSET_FOR_TEST", "dflt"); got != "dflt" {
		t.Fatalf("GetString fallback = %q", got)
	}
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "PORT", "STORE_DRIVER", "CORS_ORIGINS", "WS_LOG_BUFFER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg := LoadAPIConfig()
	if cfg.Addr != ":5000" {
		t.Fatalf("default addr = %q", cfg.Addr)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("default driver = %q", cfg.StoreDriver)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("default origins = %v", cfg.CORSOrigins)
	}
	if cfg.LogBuffer != 100 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadAPIConfigOverrides(t *testing.T) {
	t.Setenv("API_ADDR", "")
	os.Unsetenv("API_ADDR")
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SSE_HEARTBEAT_SECONDS", "5")
	cfg := LoadAPIConfig()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("driver = %q", cfg.StoreDriver)
	}
	if cfg.SSEHeartbeat != 5*time.Second {
		t.Fatalf("heartbeat = %s", cfg.SSEHeartbeat)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_ONLY=file\nDOTENV_BOTH=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOTENV_BOTH", "process")
	t.Setenv("DOTENV_ONLY", "")
	os.Unsetenv("DOTENV_ONLY")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_ONLY"); got != "file" {
		t.Fatalf("DOTENV_ONLY = %q", got)
	}
	if got := os.Getenv("DOTENV_BOTH"); got != "process" {
		t.Fatalf("process environment should win, got %q", got)
	}
}
