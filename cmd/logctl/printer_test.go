package main

import (
	"bytes"
	"strings"
	"testing"

	apiclient "github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/api/client"
)

func sampleRecord() apiclient.Record {
	return apiclient.Record{
		Level:      "warn",
		Message:    "High memory usage detected",
		ResourceID: "server-1234",
		Timestamp:  "2025-09-15T08:05:00Z",
		TraceID:    "def-uvw-456",
		SpanID:     "span-789",
		Commit:     "5e5342f",
		Metadata:   map[string]any{"threshold": "80%"},
	}
}

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	newPrinter(&buf, false).print(sampleRecord())
	want := `2025-09-15T08:05:00Z WARN  [server-1234] High memory usage detected trace=def-uvw-456 span=span-789 commit=5e5342f {"threshold":"80%"}` + "\n"
	if buf.String() != want {
		t.Fatalf("unexpected line\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	rec := sampleRecord()
	rec.Metadata = nil
	newPrinter(&buf, true).print(rec)
	out := buf.String()
	if !strings.Contains(out, "\x1b[33mWARN \x1b[0m") {
		t.Fatalf("expected colored level, got %q", out)
	}
	if strings.Contains(out, "{") {
		t.Fatalf("empty metadata should be omitted, got %q", out)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBase {
		t.Fatalf("unexpected default %q", cfg.APIBaseURL)
	}
	if err := saveConfig(cliConfig{APIBaseURL: "http://logs.internal:8080"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://logs.internal:8080" {
		t.Fatalf("unexpected stored url %q", cfg.APIBaseURL)
	}
}
