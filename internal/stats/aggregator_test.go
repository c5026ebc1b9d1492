package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logvault/internal/discovery"
	"logvault/internal/ingestion"
	"logvault/internal/parser"
	"logvault/internal/query"
	"logvault/internal/storage"
	"logvault/pkg/models"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"svc-info-20240101.txt", TypeInfo},
		{"svc-severe-20240102.log", TypeError},
		{"svc-combined-logs-20240103.txt", TypeCombined},
		{"svc-combined-logs-20240103.log", TypeCombined},
		{"auth-warning-20240101.log", TypeError},
		{"auth-config-20240101.log", TypeConfig},
		{"auth-debug-20240101.log", "DEBUG_LOG"},
		{"auth-Fine-20240101.txt", "FINE_TXT"},
		{"sub/dir/svc-info-20240101.log", TypeInfo},
		{"standalone.log", TypeOther},
	}
	for _, tt := range tests {
		if got := ClassifyFile(tt.name); got != tt.want {
			t.Errorf("ClassifyFile(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func entry(ts time.Time, severity, action string) string {
	return fmt.Sprintf(`{"timestamp":%q,"message":"m","severity":%q,"action":%q}`, ts.UTC().Format(time.RFC3339), severity, action)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	dir := t.TempDir()

	writeFile(t, dir, "svc-info-20240101.txt",
		now.Add(-90*time.Minute).UTC().Format("2006-01-02 15:04:05")+",10.0.0.1,R1,hello,info,ALLOW,/a\n",
		now.Add(-10*time.Minute))
	writeFile(t, dir, "svc-severe-20240102.log", strings.Join([]string{
		entry(now.Add(-5*time.Minute), "high", "BLOCK"),
		entry(now.Add(-20*time.Minute), "high", "BLOCK"),
		entry(now.Add(-3*time.Hour), "critical", "ALERT"),
		entry(now.Add(-48*time.Hour), "low", "ALLOW"),
	}, "\n")+"\n", now.Add(-5*time.Hour))
	writeFile(t, dir, "svc-combined-logs-20240103.txt", "", now.Add(-72*time.Hour))

	svc, err := query.New(query.Options{Dir: dir, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	svc.Preload()

	agg := NewAggregator(svc)
	agg.now = func() time.Time { return now }
	got := agg.Summarize()

	if got.Error != "" {
		t.Fatalf("Summarize() error = %s", got.Error)
	}
	if got.TotalFiles != 3 || got.TotalEstimatedLines != 5 {
		t.Errorf("totals = %d files / %d lines, want 3 / 5", got.TotalFiles, got.TotalEstimatedLines)
	}

	wantTypes := map[string]int{TypeInfo: 1, TypeError: 1, TypeCombined: 1}
	for k, v := range wantTypes {
		if got.FileTypeDistribution[k] != v {
			t.Errorf("FileTypeDistribution[%s] = %d, want %d", k, got.FileTypeDistribution[k], v)
		}
	}
	if got.ExtensionDistribution[".txt"] != 2 || got.ExtensionDistribution[".log"] != 1 {
		t.Errorf("ExtensionDistribution = %v", got.ExtensionDistribution)
	}

	// The 48h-old entry falls outside the 24h sample.
	if got.SeverityDistribution["high"] != 2 || got.SeverityDistribution["critical"] != 1 ||
		got.SeverityDistribution["info"] != 1 || got.SeverityDistribution["low"] != 0 {
		t.Errorf("SeverityDistribution = %v", got.SeverityDistribution)
	}
	if got.ActionDistribution["BLOCK"] != 2 || got.ActionDistribution["ALLOW"] != 1 {
		t.Errorf("ActionDistribution = %v", got.ActionDistribution)
	}

	// Only the info file was modified in the last hour; the severe file in the last day.
	if got.RecentEntries.LastHour != 1 || got.RecentEntries.Last24Hours != 5 {
		t.Errorf("RecentEntries = %+v, want {1 5}", got.RecentEntries)
	}

	if len(got.HourlyCounts) != HourlyBuckets {
		t.Fatalf("len(HourlyCounts) = %d", len(got.HourlyCounts))
	}
	if got.HourlyCounts[0] != 2 || got.HourlyCounts[1] != 1 || got.HourlyCounts[3] != 1 {
		t.Errorf("HourlyCounts = %v", got.HourlyCounts)
	}
	if !got.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, now)
	}
}

func TestSummarizeDoesNotTouchCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-info-1.log", "x\n", time.Now())
	svc, err := query.New(query.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	svc.Preload()

	before, _ := svc.Cache().Peek("a-info-1.log")
	NewAggregator(svc).Summarize()
	after, _ := svc.Cache().Peek("a-info-1.log")
	if before.LastAccessed != after.LastAccessed {
		t.Errorf("LastAccessed changed from %d to %d", before.LastAccessed, after.LastAccessed)
	}
}

type failingSource struct {
	cache *storage.MetadataCache
}

func (f failingSource) Cache() *storage.MetadataCache { return f.cache }
func (f failingSource) Pipeline() *ingestion.Pipeline {
	return ingestion.NewPipeline(parser.NewAutoParser(), 1)
}
func (f failingSource) Files() ([]discovery.File, error) {
	return nil, errors.New("permission denied")
}

func TestSummarizePartialOnFailure(t *testing.T) {
	cache, err := storage.NewMetadataCache(10)
	if err != nil {
		t.Fatal(err)
	}
	cache.Put("svc-info-1.log", models.FileMetadata{LastModified: time.Now()}, 7)

	got := NewAggregator(failingSource{cache: cache}).Summarize()
	if got.Error == "" {
		t.Fatal("expected an error in the summary")
	}
	if got.TotalFiles != 1 || got.TotalEstimatedLines != 7 {
		t.Errorf("partial totals = %d / %d, want 1 / 7", got.TotalFiles, got.TotalEstimatedLines)
	}
	if got.FileTypeDistribution[TypeInfo] != 1 {
		t.Errorf("FileTypeDistribution = %v", got.FileTypeDistribution)
	}
}

func TestSummarizeRecoversFromPanics(t *testing.T) {
	got := NewAggregator(failingSource{}).Summarize()
	if got.Error == "" {
		t.Fatal("expected an error after a nil cache")
	}
	if got.HourlyCounts == nil || got.SeverityDistribution == nil {
		t.Error("partial summary should keep its initialised fields")
	}
}
