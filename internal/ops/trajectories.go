package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/trajectory"
	"github.com/hpungsan/reel/internal/validation"
)

// ListTrajectoriesInput contains parameters for ListTrajectories.
type ListTrajectoriesInput struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status" validate:"omitempty,oneof=running completed failed"`
	Limit     int    `json:"limit" validate:"gte=0"` // default: 20, max: 100
	Offset    int    `json:"offset" validate:"gte=0"`
}

// ListTrajectoriesOutput contains the result of ListTrajectories.
type ListTrajectoriesOutput struct {
	Items      []db.TrajectorySummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
	Sort       string                 `json:"sort"`
}

// ListTrajectories returns stored sessions, newest first.
func ListTrajectories(ctx context.Context, database *sql.DB, input ListTrajectoriesInput) (*ListTrajectoriesOutput, error) {
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}
	limit := clampLimit(input.Limit)

	items, total, err := db.ListTrajectories(ctx, database, db.TrajectoryFilter{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Status:    input.Status,
	}, limit, input.Offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.TrajectorySummary{}
	}

	return &ListTrajectoriesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  input.Offset,
			HasMore: input.Offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// FetchTrajectoryOutput is a stored session with its feedback.
type FetchTrajectoryOutput struct {
	Trajectory *trajectory.Trajectory `json:"trajectory"`
	Feedback   []trajectory.Feedback  `json:"feedback"`
	Verdict    *trajectory.Verdict    `json:"verdict,omitempty"`
}

// FetchTrajectory loads one session by request id. Verdict judges the most
// recent feedback and is nil when there is none.
func FetchTrajectory(ctx context.Context, database *sql.DB, requestID string) (*FetchTrajectoryOutput, error) {
	t, err := db.GetTrajectory(ctx, database, requestID)
	if err != nil {
		return nil, err
	}
	fbs, err := db.ListFeedback(ctx, database, requestID)
	if err != nil {
		return nil, err
	}
	rec := newTrajectoryRecord(t, fbs)
	return &FetchTrajectoryOutput{
		Trajectory: rec.Trajectory,
		Feedback:   rec.Feedback,
		Verdict:    rec.Verdict,
	}, nil
}
