// Package trajectory records what happened during one recommendation
// session and what the user did with the result. Trajectories are the raw
// material for offline learning; nothing here feeds back into ranking.
package trajectory

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
)

// Status is the final outcome of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Step is one stage invocation.
type Step struct {
	Seq       int            `json:"seq"`
	Stage     string         `json:"stage"`
	Action    string         `json:"action"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	At        time.Time      `json:"at"`
}

// Recommendation summarises what was shown to the user.
type Recommendation struct {
	ContentID        string   `json:"content_id"`
	Title            string   `json:"title"`
	Genres           []string `json:"genres,omitempty"`
	Runtime          int      `json:"runtime,omitempty"`
	MatchScore       float64  `json:"match_score"`
	UtilityScore     float64  `json:"utility_score"`
	VectorSimilarity float64  `json:"vector_similarity"`
	Alternatives     []string `json:"alternatives,omitempty"`
}

// Trajectory is the audit record of one session. The orchestrator only
// appends to it; stores keep their own copy.
type Trajectory struct {
	ID              string                  `json:"id"`
	RequestID       string                  `json:"request_id"`
	SessionID       string                  `json:"session_id"`
	UserID          string                  `json:"user_id,omitempty"`
	Mood            emotion.Mood            `json:"mood"`
	Goal            emotion.Goal            `json:"goal"`
	Context         *emotion.RequestContext `json:"context,omitempty"`
	Constraints     catalog.Constraints     `json:"constraints"`
	State           emotion.State           `json:"state"`
	Steps           []Step                  `json:"steps"`
	Recommendation  *Recommendation         `json:"recommendation,omitempty"`
	Status          Status                  `json:"status"`
	Error           string                  `json:"error,omitempty"`
	ErrorCode       string                  `json:"error_code,omitempty"`
	OverBudget      bool                    `json:"over_budget"`
	LatencyMS       int64                   `json:"latency_ms"`
	ParentRequestID string                  `json:"parent_request_id,omitempty"`
	RefinementCount int                     `json:"refinement_count"`
	CreatedAt       time.Time               `json:"created_at"`
}

// NewID returns a new ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// New starts a running trajectory.
func New(requestID, sessionID, userID string, mood emotion.Mood, goal emotion.Goal, now time.Time) *Trajectory {
	return &Trajectory{
		ID:        NewID(),
		RequestID: requestID,
		SessionID: sessionID,
		UserID:    userID,
		Mood:      mood,
		Goal:      goal,
		Steps:     []Step{},
		Status:    StatusRunning,
		CreatedAt: now.UTC(),
	}
}

// AddStep appends a step and returns its sequence number.
func (t *Trajectory) AddStep(stage, action string, in, out map[string]any, latency time.Duration, at time.Time) int {
	seq := len(t.Steps) + 1
	t.Steps = append(t.Steps, Step{
		Seq:       seq,
		Stage:     stage,
		Action:    action,
		Input:     in,
		Output:    out,
		LatencyMS: latency.Milliseconds(),
		At:        at.UTC(),
	})
	return seq
}

// Stages returns the stage names of the recorded steps, in order.
func (t *Trajectory) Stages() []string {
	out := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.Stage
	}
	return out
}

// HasStage reports whether a step for stage was recorded.
func (t *Trajectory) HasStage(stage string) bool {
	for _, s := range t.Steps {
		if s.Stage == stage {
			return true
		}
	}
	return false
}

// Complete marks the session as successful.
func (t *Trajectory) Complete(rec Recommendation) {
	t.Recommendation = &rec
	t.Status = StatusCompleted
}

// Fail marks the session as failed with err.
func (t *Trajectory) Fail(code string, err error) {
	t.Status = StatusFailed
	t.ErrorCode = code
	if err != nil {
		t.Error = err.Error()
	}
}

// Clone returns a deep copy. Step input and output maps are copied one
// level deep; their values are treated as immutable.
func (t *Trajectory) Clone() *Trajectory {
	if t == nil {
		return nil
	}
	c := *t
	if t.Context != nil {
		rc := *t.Context
		c.Context = &rc
	}
	c.Constraints = cloneConstraints(t.Constraints)
	c.Steps = make([]Step, len(t.Steps))
	for i, s := range t.Steps {
		s.Input = cloneMap(s.Input)
		s.Output = cloneMap(s.Output)
		c.Steps[i] = s
	}
	if t.Recommendation != nil {
		r := *t.Recommendation
		r.Genres = append([]string(nil), r.Genres...)
		r.Alternatives = append([]string(nil), r.Alternatives...)
		c.Recommendation = &r
	}
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneConstraints(c catalog.Constraints) catalog.Constraints {
	c.Languages = append([]string(nil), c.Languages...)
	c.ExcludeLanguages = append([]string(nil), c.ExcludeLanguages...)
	c.Genres = append([]string(nil), c.Genres...)
	c.ExcludeGenres = append([]string(nil), c.ExcludeGenres...)
	c.ExcludeIDs = append([]string(nil), c.ExcludeIDs...)
	return c
}
