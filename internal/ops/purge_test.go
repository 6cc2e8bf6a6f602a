package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/trajectory"
)

func TestPurgeTrajectories_OlderThanDays(t *testing.T) {
	ctx := context.Background()
	_, database := setupImportDB(t)
	now := time.Now().UTC()

	for _, tc := range []struct {
		id  string
		age time.Duration
	}{
		{"old-1", 10 * 24 * time.Hour},
		{"old-2", 8 * 24 * time.Hour},
		{"fresh", time.Hour},
	} {
		tr := trajectory.New(tc.id, "sess", "", emotion.MoodUnwind, emotion.GoalFeel, now.Add(-tc.age))
		if err := db.InsertTrajectory(ctx, database, tr); err != nil {
			t.Fatalf("InsertTrajectory(%s): %v", tc.id, err)
		}
	}

	out, err := PurgeTrajectories(ctx, database, PurgeTrajectoriesInput{OlderThanDays: 7})
	if err != nil {
		t.Fatalf("PurgeTrajectories failed: %v", err)
	}
	if out.Purged != 2 {
		t.Errorf("Purged = %d, want 2", out.Purged)
	}
	if out.Message != "Permanently deleted 2 trajectories (created more than 7 days ago)" {
		t.Errorf("Message = %q", out.Message)
	}

	if _, err := db.GetTrajectory(ctx, database, "fresh"); err != nil {
		t.Errorf("fresh trajectory should survive: %v", err)
	}
	if _, err := db.GetTrajectory(ctx, database, "old-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("old-1 should be gone, got %v", err)
	}
}

func TestPurgeTrajectories_NothingToPurge(t *testing.T) {
	_, database := setupImportDB(t)

	out, err := PurgeTrajectories(context.Background(), database, PurgeTrajectoriesInput{OlderThanDays: 30})
	if err != nil {
		t.Fatalf("PurgeTrajectories failed: %v", err)
	}
	if out.Purged != 0 || out.Message != "No trajectories to purge" {
		t.Errorf("output = %+v", out)
	}
}

func TestPurgeTrajectories_NegativeDays(t *testing.T) {
	_, database := setupImportDB(t)

	_, err := PurgeTrajectories(context.Background(), database, PurgeTrajectoriesInput{OlderThanDays: -1})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestFormatPurgeMessage(t *testing.T) {
	tests := []struct {
		count int
		days  int
		want  string
	}{
		{0, 7, "No trajectories to purge"},
		{1, 0, "Permanently deleted 1 trajectory"},
		{3, 0, "Permanently deleted 3 trajectories"},
		{1, 30, "Permanently deleted 1 trajectory (created more than 30 days ago)"},
	}

	for _, tt := range tests {
		if got := formatPurgeMessage(tt.count, tt.days); got != tt.want {
			t.Errorf("formatPurgeMessage(%d, %d) = %q, want %q", tt.count, tt.days, got, tt.want)
		}
	}
}
