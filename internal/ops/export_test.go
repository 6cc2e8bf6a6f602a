package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/trajectory"
)

func unsafeConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open export file: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func seedTestCatalog(t *testing.T, ctx context.Context, tmpDir string) *sql.DB {
	t.Helper()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if _, err := SeedCatalog(ctx, database, SeedCatalogInput{}); err != nil {
		t.Fatalf("SeedCatalog failed: %v", err)
	}
	return database
}

func TestExportCatalog_HappyPath(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	database := seedTestCatalog(t, ctx, tmpDir)

	exportPath := filepath.Join(tmpDir, "catalog.jsonl")
	output, err := ExportCatalog(ctx, database, unsafeConfig(), ExportCatalogInput{Path: exportPath})
	if err != nil {
		t.Fatalf("ExportCatalog failed: %v", err)
	}

	want := len(catalog.SeedItems())
	if output.Path != exportPath {
		t.Errorf("Path = %q, want %q", output.Path, exportPath)
	}
	if output.Count != want {
		t.Errorf("Count = %d, want %d", output.Count, want)
	}
	if output.ExportedAt == 0 {
		t.Error("ExportedAt should be set")
	}

	lines := readLines(t, exportPath)
	if len(lines) != want+1 {
		t.Fatalf("lines = %d, want header + %d", len(lines), want)
	}

	var header ExportHeader
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	if !header.ReelExport || header.Kind != ExportKindCatalog || header.SchemaVersion != ExportSchemaVersion {
		t.Errorf("header = %+v", header)
	}

	var first catalog.Item
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == "" || first.Title == "" || len(first.Genres) == 0 {
		t.Errorf("first record incomplete: %+v", first)
	}
	for _, line := range lines {
		if strings.Contains(line, `\u0026`) {
			t.Errorf("export should not HTML-escape: %s", line)
		}
	}

	// No temp files left behind
	matches, _ := filepath.Glob(filepath.Join(tmpDir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestExportCatalog_PathRejected(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	database := seedTestCatalog(t, ctx, tmpDir)

	// Default config only allows ~/.reel/exports
	_, err := ExportCatalog(ctx, database, config.DefaultConfig(), ExportCatalogInput{Path: filepath.Join(tmpDir, "out.jsonl")})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}

	_, err = ExportCatalog(ctx, database, unsafeConfig(), ExportCatalogInput{Path: filepath.Join(tmpDir, "out.json")})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for extension, got %v", err)
	}
}

func TestExportCatalog_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	database := seedTestCatalog(t, context.Background(), tmpDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exportPath := filepath.Join(tmpDir, "cancelled.jsonl")
	_, err := ExportCatalog(ctx, database, unsafeConfig(), ExportCatalogInput{Path: exportPath})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, statErr := os.Stat(exportPath); !os.IsNotExist(statErr) {
		t.Error("cancelled export must not leave a file")
	}
}

func TestExportCatalog_PreservesExistingOnFailure(t *testing.T) {
	tmpDir := t.TempDir()
	database := seedTestCatalog(t, context.Background(), tmpDir)

	exportPath := filepath.Join(tmpDir, "keep.jsonl")
	if err := os.WriteFile(exportPath, []byte("original\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ExportCatalog(ctx, database, unsafeConfig(), ExportCatalogInput{Path: exportPath}); err == nil {
		t.Fatal("expected error")
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "original\n" {
		t.Errorf("existing file changed: %q", data)
	}
}

func TestExportTrajectories_WithFeedback(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	defer database.Close()

	now := time.Now().UTC()
	old := trajectory.New("req-old", "s", "", emotion.MoodEngage, emotion.GoalThink, now.Add(-10*24*time.Hour))
	recent := trajectory.New("req-new", "s", "", emotion.MoodUnwind, emotion.GoalLaugh, now)
	recent.Complete(trajectory.Recommendation{ContentID: "fr-comedy-001", Title: "Les Intouchables"})
	for _, tr := range []*trajectory.Trajectory{old, recent} {
		if err := db.InsertTrajectory(ctx, database, tr); err != nil {
			t.Fatalf("InsertTrajectory: %v", err)
		}
	}
	fb := &trajectory.Feedback{
		ID:           trajectory.NewID(),
		RequestID:    "req-new",
		ContentID:    "fr-comedy-001",
		Interaction:  trajectory.InteractionComplete,
		Satisfaction: 0.9,
		CreatedAt:    now,
	}
	if err := db.InsertFeedback(ctx, database, fb); err != nil {
		t.Fatalf("InsertFeedback: %v", err)
	}

	days := 7
	exportPath := filepath.Join(tmpDir, "trajectories.jsonl")
	output, err := ExportTrajectories(ctx, database, unsafeConfig(), ExportTrajectoriesInput{Path: exportPath, SinceDays: &days})
	if err != nil {
		t.Fatalf("ExportTrajectories failed: %v", err)
	}
	if output.Count != 1 {
		t.Fatalf("Count = %d, want 1 (only the recent one)", output.Count)
	}

	lines := readLines(t, exportPath)
	var rec TrajectoryRecord
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Trajectory.RequestID != "req-new" {
		t.Errorf("RequestID = %q", rec.Trajectory.RequestID)
	}
	if len(rec.Feedback) != 1 || rec.Verdict == nil || !rec.Verdict.Success {
		t.Errorf("feedback/verdict = %+v / %+v", rec.Feedback, rec.Verdict)
	}

	// Without a window both are exported
	all, err := ExportTrajectories(ctx, database, unsafeConfig(), ExportTrajectoriesInput{Path: filepath.Join(tmpDir, "all.jsonl")})
	if err != nil {
		t.Fatalf("ExportTrajectories failed: %v", err)
	}
	if all.Count != 2 {
		t.Errorf("Count = %d, want 2", all.Count)
	}

	negative := -1
	if _, err := ExportTrajectories(ctx, database, unsafeConfig(), ExportTrajectoriesInput{Path: exportPath, SinceDays: &negative}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for negative since_days, got %v", err)
	}
}

func TestDefaultExportPath(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	path, err := defaultExportPath(ExportKindTrajectories, now)
	if err != nil {
		t.Fatalf("defaultExportPath: %v", err)
	}
	if filepath.Base(path) != "trajectories-2026-05-06T070809.jsonl" {
		t.Errorf("base = %q", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "exports" {
		t.Errorf("dir = %q", filepath.Dir(path))
	}
}
