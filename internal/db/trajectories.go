package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/trajectory"
)

// TrajectorySummary is the listing view of a stored trajectory.
type TrajectorySummary struct {
	RequestID       string `json:"request_id"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id,omitempty"`
	Mood            string `json:"mood"`
	Goal            string `json:"goal"`
	Status          string `json:"status"`
	ErrorCode       string `json:"error_code,omitempty"`
	TopContentID    string `json:"top_content_id,omitempty"`
	OverBudget      bool   `json:"over_budget"`
	ParentRequestID string `json:"parent_request_id,omitempty"`
	RefinementCount int    `json:"refinement_count"`
	LatencyMS       int64  `json:"latency_ms"`
	FeedbackCount   int    `json:"feedback_count"`
	CreatedAt       int64  `json:"created_at"`
}

// TrajectoryFilter narrows ListTrajectories. Empty fields match everything.
type TrajectoryFilter struct {
	SessionID string
	UserID    string
	Status    string
}

// InsertTrajectory stores t. A second trajectory for the same request id
// is a CONFLICT.
func InsertTrajectory(ctx context.Context, db *sql.DB, t *trajectory.Trajectory) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errors.NewInternal(err)
	}

	var topContentID sql.NullString
	if t.Recommendation != nil {
		topContentID = nullString(t.Recommendation.ContentID)
	}
	overBudget := 0
	if t.OverBudget {
		overBudget = 1
	}

	query := `
		INSERT INTO trajectories (
			id, request_id, session_id, user_id, mood, goal, status, error_code,
			top_content_id, over_budget, parent_request_id, refinement_count,
			latency_ms, data_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		t.ID, t.RequestID, t.SessionID, nullString(t.UserID), string(t.Mood), string(t.Goal),
		string(t.Status), nullString(t.ErrorCode), topContentID, overBudget,
		nullString(t.ParentRequestID), t.RefinementCount, t.LatencyMS, string(data),
		t.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("trajectory already stored for request " + t.RequestID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetTrajectory loads the full trajectory for requestID.
func GetTrajectory(ctx context.Context, db *sql.DB, requestID string) (*trajectory.Trajectory, error) {
	var data string
	err := db.QueryRowContext(ctx, `SELECT data_json FROM trajectories WHERE request_id = ?`, requestID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("request", requestID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var t trajectory.Trajectory
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &t, nil
}

// ListTrajectories returns summaries newest first along with the total
// number of matching rows.
func ListTrajectories(ctx context.Context, db *sql.DB, filter TrajectoryFilter, limit, offset int) ([]TrajectorySummary, int, error) {
	var where []string
	var args []any
	if filter.SessionID != "" {
		where = append(where, "t.session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.UserID != "" {
		where = append(where, "t.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trajectories t`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT t.request_id, t.session_id, t.user_id, t.mood, t.goal, t.status, t.error_code,
			t.top_content_id, t.over_budget, t.parent_request_id, t.refinement_count,
			t.latency_ms, t.created_at,
			(SELECT COUNT(*) FROM feedback f WHERE f.request_id = t.request_id)
		FROM trajectories t` + clause + `
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []TrajectorySummary
	for rows.Next() {
		var (
			s                                 TrajectorySummary
			userID, errorCode, top, parentReq sql.NullString
			overBudget                        int
		)
		if err := rows.Scan(
			&s.RequestID, &s.SessionID, &userID, &s.Mood, &s.Goal, &s.Status, &errorCode,
			&top, &overBudget, &parentReq, &s.RefinementCount,
			&s.LatencyMS, &s.CreatedAt, &s.FeedbackCount,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.UserID = userID.String
		s.ErrorCode = errorCode.String
		s.TopContentID = top.String
		s.ParentRequestID = parentReq.String
		s.OverBudget = overBudget != 0
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// StreamTrajectories returns data_json rows, oldest first, for export. The
// caller must close them.
func StreamTrajectories(ctx context.Context, db *sql.DB, since *time.Time) (*sql.Rows, error) {
	query := `SELECT request_id, data_json FROM trajectories`
	var args []any
	if since != nil {
		query += ` WHERE created_at >= ?`
		args = append(args, since.Unix())
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// PurgeTrajectories deletes trajectories created before cutoff along with
// their feedback, and returns how many trajectories went.
func PurgeTrajectories(ctx context.Context, db *sql.DB, cutoff time.Time) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM feedback WHERE request_id IN (
			SELECT request_id FROM trajectories WHERE created_at < ?
		)`, cutoff.Unix()); err != nil {
		return 0, errors.NewInternal(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM trajectories WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// InsertFeedback stores f. The referenced request must exist.
func InsertFeedback(ctx context.Context, db *sql.DB, f *trajectory.Feedback) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM trajectories WHERE request_id = ?`, f.RequestID).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("request", f.RequestID)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return errors.NewInternal(err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO feedback (id, request_id, content_id, interaction, satisfaction, data_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RequestID, nullString(f.ContentID), string(f.Interaction), f.Satisfaction,
		string(data), f.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("feedback already stored: " + f.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// ListFeedback returns the feedback for requestID, oldest first.
func ListFeedback(ctx context.Context, db *sql.DB, requestID string) ([]trajectory.Feedback, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT data_json FROM feedback WHERE request_id = ? ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []trajectory.Feedback{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var f trajectory.Feedback
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// FeedbackSince returns feedback grouped by request id, oldest first, for
// trajectories created at or after since (all when since is nil).
func FeedbackSince(ctx context.Context, db *sql.DB, since *time.Time) (map[string][]trajectory.Feedback, error) {
	query := `SELECT f.request_id, f.data_json FROM feedback f`
	var args []any
	if since != nil {
		query += ` JOIN trajectories t ON t.request_id = f.request_id WHERE t.created_at >= ?`
		args = append(args, since.Unix())
	}
	query += ` ORDER BY f.created_at, f.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make(map[string][]trajectory.Feedback)
	for rows.Next() {
		var requestID, data string
		if err := rows.Scan(&requestID, &data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var f trajectory.Feedback
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, errors.NewInternal(err)
		}
		out[requestID] = append(out[requestID], f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ContentEvidence returns how many distinct requests recommended contentID
// and got feedback, and how many of those reached threshold satisfaction.
// A request counts once, by its best feedback.
func ContentEvidence(ctx context.Context, db *sql.DB, contentID string, threshold float64) (count, successes int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN best >= ? THEN 1 ELSE 0 END), 0)
		FROM (
			SELECT request_id, MAX(satisfaction) AS best
			FROM feedback
			WHERE content_id = ?
			GROUP BY request_id
		)`
	if err := db.QueryRowContext(ctx, query, threshold, contentID).Scan(&count, &successes); err != nil {
		return 0, 0, errors.NewInternal(err)
	}
	return count, successes, nil
}
