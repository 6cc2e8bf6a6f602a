package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/trajectory"
)

func newTestTrajectory(requestID string, createdAt time.Time) *trajectory.Trajectory {
	tr := trajectory.New(requestID, "sess-1", "user-1", emotion.MoodUnwind, emotion.GoalLaugh, createdAt)
	tr.AddStep("intent", "map_state", map[string]any{"mood": "unwind"}, nil, 2*time.Millisecond, createdAt)
	tr.Complete(trajectory.Recommendation{
		ContentID:  "fr-comedy-001",
		Title:      "Les Intouchables",
		Runtime:    112,
		MatchScore: 0.8,
	})
	return tr
}

func newTestFeedback(requestID, contentID string, interaction trajectory.Interaction, at time.Time) *trajectory.Feedback {
	return &trajectory.Feedback{
		ID:           trajectory.NewID(),
		RequestID:    requestID,
		ContentID:    contentID,
		Interaction:  interaction,
		Satisfaction: trajectory.Satisfaction(interaction, nil, nil, nil),
		CreatedAt:    at,
	}
}

func TestTrajectoryStore_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewTrajectoryStore(db)

	now := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	tr := newTestTrajectory("req-1", now)
	require.NoError(t, store.Store(ctx, tr))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, tr.ID, got.ID)
	require.Equal(t, trajectory.StatusCompleted, got.Status)
	require.Equal(t, []string{"intent"}, got.Stages())
	require.NotNil(t, got.Recommendation)
	require.Equal(t, "fr-comedy-001", got.Recommendation.ContentID)
	require.True(t, got.CreatedAt.Equal(now))

	// duplicate request id
	err = store.Store(ctx, newTestTrajectory("req-1", now))
	require.True(t, errors.Is(err, errors.ErrConflict), "err = %v", err)

	_, err = store.Get(ctx, "missing")
	require.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestTrajectoryStore_Feedback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewTrajectoryStore(db)
	now := time.Now().UTC()

	require.NoError(t, store.Store(ctx, newTestTrajectory("req-1", now)))

	require.NoError(t, store.AddFeedback(ctx, newTestFeedback("req-1", "fr-comedy-001", trajectory.InteractionView, now)))
	require.NoError(t, store.AddFeedback(ctx, newTestFeedback("req-1", "fr-comedy-001", trajectory.InteractionComplete, now.Add(time.Second))))

	fbs, err := store.Feedback(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, fbs, 2)
	require.Equal(t, trajectory.InteractionView, fbs[0].Interaction)
	require.Equal(t, trajectory.InteractionComplete, fbs[1].Interaction)

	err = store.AddFeedback(ctx, newTestFeedback("nope", "x", trajectory.InteractionSkip, now))
	require.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)

	empty, err := store.Feedback(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestListTrajectories_PaginationAndFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tr := newTestTrajectory(fmt.Sprintf("req-%d", i), base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			tr.SessionID = "sess-2"
			tr.Fail("INSUFFICIENT_CANDIDATES", fmt.Errorf("too few"))
		}
		require.NoError(t, InsertTrajectory(ctx, db, tr))
	}
	require.NoError(t, InsertFeedback(ctx, db, newTestFeedback("req-3", "fr-comedy-001", trajectory.InteractionSkip, base)))

	items, total, err := ListTrajectories(ctx, db, TrajectoryFilter{}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, items, 2)
	require.Equal(t, "req-4", items[0].RequestID)
	require.Equal(t, "req-3", items[1].RequestID)
	require.Equal(t, 1, items[1].FeedbackCount)
	require.Equal(t, "fr-comedy-001", items[1].TopContentID)

	page2, _, err := ListTrajectories(ctx, db, TrajectoryFilter{}, 2, 4)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Equal(t, "req-0", page2[0].RequestID)

	failed, total, err := ListTrajectories(ctx, db, TrajectoryFilter{Status: "failed"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "INSUFFICIENT_CANDIDATES", failed[0].ErrorCode)

	_, total, err = ListTrajectories(ctx, db, TrajectoryFilter{SessionID: "sess-1"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 4, total)
}

func TestPurgeTrajectories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := newTestTrajectory("old", now.Add(-48*time.Hour))
	recent := newTestTrajectory("recent", now)
	require.NoError(t, InsertTrajectory(ctx, db, old))
	require.NoError(t, InsertTrajectory(ctx, db, recent))
	require.NoError(t, InsertFeedback(ctx, db, newTestFeedback("old", "fr-comedy-001", trajectory.InteractionComplete, now)))

	n, err := PurgeTrajectories(ctx, db, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = GetTrajectory(ctx, db, "old")
	require.True(t, errors.Is(err, errors.ErrNotFound))
	fbs, err := ListFeedback(ctx, db, "old")
	require.NoError(t, err)
	require.Empty(t, fbs)

	_, err = GetTrajectory(ctx, db, "recent")
	require.NoError(t, err)
}

func TestStreamTrajectories_Since(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, InsertTrajectory(ctx, db, newTestTrajectory(fmt.Sprintf("req-%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	since := base.Add(time.Hour)
	rows, err := StreamTrajectories(ctx, db, &since)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, data string
		require.NoError(t, rows.Scan(&id, &data))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"req-1", "req-2"}, ids)
}

func TestEvidenceProvider(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	provider := NewEvidenceProvider(db)

	ev, err := provider.Evidence(ctx, "fr-comedy-001")
	require.NoError(t, err)
	require.True(t, ev.Placeholder)
	require.Equal(t, 0, ev.Count)
	require.Equal(t, 0.5, ev.SuccessRate)

	for i, interactions := range [][]trajectory.Interaction{
		{trajectory.InteractionView, trajectory.InteractionComplete}, // best 0.9: success
		{trajectory.InteractionSkip},                                 // failure
		{trajectory.InteractionComplete},                             // success
		{trajectory.InteractionAbandon},                              // failure
	} {
		reqID := fmt.Sprintf("req-%d", i)
		require.NoError(t, InsertTrajectory(ctx, db, newTestTrajectory(reqID, now)))
		for j, in := range interactions {
			require.NoError(t, InsertFeedback(ctx, db, newTestFeedback(reqID, "fr-comedy-001", in, now.Add(time.Duration(j)*time.Second))))
		}
	}

	ev, err = provider.Evidence(ctx, "fr-comedy-001")
	require.NoError(t, err)
	require.False(t, ev.Placeholder)
	require.Equal(t, 4, ev.Count)
	require.InDelta(t, 0.5, ev.SuccessRate, 1e-9)

	other, err := provider.Evidence(ctx, "fr-drama-001")
	require.NoError(t, err)
	require.True(t, other.Placeholder)
}
