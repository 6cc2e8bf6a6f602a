package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/errors"
)

// PurgeTrajectoriesInput contains parameters for PurgeTrajectories.
type PurgeTrajectoriesInput struct {
	OlderThanDays int // required, >= 0; 0 purges everything created before now
}

// PurgeOutput contains the result of PurgeTrajectories.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeTrajectories permanently deletes old trajectories and their feedback.
func PurgeTrajectories(ctx context.Context, database *sql.DB, input PurgeTrajectoriesInput) (*PurgeOutput, error) {
	if input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must be >= 0")
	}

	count, err := db.PurgeTrajectories(ctx, database, daysAgo(time.Now(), input.OlderThanDays))
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count, olderThanDays int) string {
	if count == 0 {
		return "No trajectories to purge"
	}

	word := "trajectory"
	if count > 1 {
		word = "trajectories"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)
	if olderThanDays > 0 {
		msg += fmt.Sprintf(" (created more than %d days ago)", olderThanDays)
	}
	return msg
}
