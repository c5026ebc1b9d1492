package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logvault/internal/query"
	"logvault/pkg/models"
)

func seedLogs(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	now := time.Now().UTC()
	lines := []string{
		`{"timestamp":"` + now.Add(-time.Minute).Format(time.RFC3339) + `","message":"login failed","severity":"high","action":"BLOCK"}`,
		`{"timestamp":"` + now.Add(-2*time.Minute).Format(time.RFC3339) + `","message":"login ok","severity":"low","action":"ALLOW"}`,
	}
	if err := os.WriteFile(filepath.Join(dir, "auth-info-20240601.log"), []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("logvault %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestFilesJSON(t *testing.T) {
	dir := seedLogs(t)

	var files []models.LogFileDescriptor
	if err := json.Unmarshal([]byte(run(t, "files", "--log-dir", dir, "-o", "json")), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "auth-info-20240601.log" || files[0].EstimatedLines != 2 {
		t.Errorf("files = %+v", files)
	}
}

func TestEntriesFromEnvironment(t *testing.T) {
	dir := seedLogs(t)
	t.Setenv("LOGVAULT_LOG_DIR", dir)
	t.Setenv("LOGVAULT_OUTPUT", "json")

	var page query.Page
	if err := json.Unmarshal([]byte(run(t, "entries", "--severity", "high")), &page); err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 1 || page.Entries[0].Message != "login failed" {
		t.Errorf("page = %+v", page)
	}
}

func TestExportToStdout(t *testing.T) {
	dir := seedLogs(t)

	out := run(t, "export", "--log-dir", dir, "--search", "LOGIN")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 || lines[0] != query.CSVHeader {
		t.Errorf("export = %q", out)
	}
}

func TestTail(t *testing.T) {
	dir := seedLogs(t)

	var lines []string
	if err := json.Unmarshal([]byte(run(t, "tail", "auth-info-20240601.log", "--log-dir", dir, "-n", "1", "-o", "json")), &lines); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "login ok") {
		t.Errorf("tail = %q", lines)
	}
}

func TestTailNotFound(t *testing.T) {
	dir := seedLogs(t)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"tail", "../etc/passwd", "--log-dir", dir})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestStatsText(t *testing.T) {
	dir := seedLogs(t)

	out := run(t, "stats", "--log-dir", dir)
	for _, want := range []string{"total 1", "INFO_LOGS", "BLOCK"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("log_dir = \"/from/file\"\nworkers = 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOGVAULT_WORKERS", "7")
	t.Setenv("LOGVAULT_WATCH", "false")

	a := newApp()
	if err := a.rootCmd().PersistentFlags().Parse([]string{"--config", cfgPath}); err != nil {
		t.Fatal(err)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogDir != "/from/file" {
		t.Errorf("LogDir = %q, want value from file", cfg.LogDir)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want env override 7", cfg.Workers)
	}
	if cfg.Watch {
		t.Error("Watch = true, want env override false")
	}
}

func TestExportToFile(t *testing.T) {
	dir := seedLogs(t)
	target := filepath.Join(t.TempDir(), "out.csv")

	if out := run(t, "export", "--log-dir", dir, "--file", target); out != "" {
		t.Errorf("stdout = %q, want nothing when writing a file", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), query.CSVHeader+"\n") {
		t.Errorf("export file = %q", data)
	}
}

func TestWriteExportFileReportsErrors(t *testing.T) {
	// A directory cannot be created as a file.
	if err := writeExportFile(t.TempDir(), "x"); err == nil {
		t.Error("writeExportFile() into a directory should fail")
	}
}
