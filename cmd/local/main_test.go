package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line string
		k, v string
		ok   bool
	}{
		{"BOT_TOKEN=abc", "BOT_TOKEN", "abc", true},
		{"export ADMIN_ID = 42", "ADMIN_ID", "42", true},
		{`CATALOG_PATH="data/db.json"`, "CATALOG_PATH", "data/db.json", true},
		{"PORT=:7955", "PORT", "7955", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"novalue", "", "", false},
		{"=x", "", "", false},
	}
	for _, tc := range cases {
		k, v, ok := parseEnvLine(tc.line)
		if k != tc.k || v != tc.v || ok != tc.ok {
			t.Fatalf("parseEnvLine(%q) = %q %q %t", tc.line, k, v, ok)
		}
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\nADMIN_ID=5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ADMIN_ID", "")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Fatalf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("ADMIN_ID"); got != "5" {
		t.Fatalf("expected ADMIN_ID from file, got %q", got)
	}
}

func TestClassifyCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"classify", "#سریال #Dark #S01E02"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	for _, want := range []string{"category: سریال", "title: Dark", "season: 1", "episode: 2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
}

func TestSearchAndStatsCommands(t *testing.T) {
	dir := t.TempDir()
	catalog := `{"categories":{"فیلم":{"Inception":{"type":"single","file_id":"x","media":"video","title":""}}},"_stats":{"item_requests":{"فیلم|Inception":3}}}`
	if err := os.WriteFile(filepath.Join(dir, "db.json"), []byte(catalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, k := range []string{"CATALOG_BOT_CONFIG", "MONGODB_URI", "TTL_SECONDS", "COUNTDOWN_STEP_SECONDS", "ADMIN_ID", "CHANNEL_ID", "UPLOAD_LOG_LIMIT", "AUTO_REGISTER", "WATCH_DEBOUNCE_MS"} {
		t.Setenv(k, "")
	}
	t.Setenv("CATALOG_PATH", filepath.Join(dir, "db.json"))
	t.Setenv("LOG_LEVEL", "error")

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("Execute %v: %v", args, err)
		}
		return out.String()
	}
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if got := run("search", "incep"); !strings.Contains(got, "فیلم | Inception") {
		t.Fatalf("unexpected search output %q", got)
	}
	if got := run("search", "zzz"); !strings.Contains(got, "no matches") {
		t.Fatalf("unexpected empty search output %q", got)
	}
	if got := run("stats"); !strings.Contains(got, "فیلم|Inception: 3") {
		t.Fatalf("unexpected stats output %q", got)
	}
}
