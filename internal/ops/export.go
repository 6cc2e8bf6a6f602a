package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/trajectory"
)

// ExportOutput contains the result of an export.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportCatalogInput contains parameters for ExportCatalog.
type ExportCatalogInput struct {
	Path string // optional, default: ~/.reel/exports/catalog-<timestamp>.jsonl
}

// ExportCatalog writes every catalog item to a JSONL file.
func ExportCatalog(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportCatalogInput) (*ExportOutput, error) {
	return export(ctx, cfg, input.Path, ExportKindCatalog, func(emit func(any) error) error {
		rows, err := db.StreamContent(ctx, database)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			it, err := db.ScanContentFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := emit(it); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
}

// ExportTrajectoriesInput contains parameters for ExportTrajectories.
type ExportTrajectoriesInput struct {
	Path      string // optional, default: ~/.reel/exports/trajectories-<timestamp>.jsonl
	SinceDays *int   // optional, only trajectories from the last N days
}

// TrajectoryRecord is one line of a trajectory export: the session, what the
// user did with it, and the verdict on the latest feedback.
type TrajectoryRecord struct {
	Trajectory *trajectory.Trajectory `json:"trajectory"`
	Feedback   []trajectory.Feedback  `json:"feedback"`
	Verdict    *trajectory.Verdict    `json:"verdict,omitempty"`
}

// ExportTrajectories writes stored trajectories with their feedback to a
// JSONL file, oldest first.
func ExportTrajectories(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportTrajectoriesInput) (*ExportOutput, error) {
	var since *time.Time
	if input.SinceDays != nil {
		if *input.SinceDays < 0 {
			return nil, errors.NewInvalidRequest("since_days must be >= 0")
		}
		t := daysAgo(time.Now(), *input.SinceDays)
		since = &t
	}

	return export(ctx, cfg, input.Path, ExportKindTrajectories, func(emit func(any) error) error {
		// Loaded before rows are opened: with db_max_open_conns=1 a nested
		// query would block.
		feedback, err := db.FeedbackSince(ctx, database, since)
		if err != nil {
			return err
		}

		rows, err := db.StreamTrajectories(ctx, database, since)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var requestID, data string
			if err := rows.Scan(&requestID, &data); err != nil {
				return errors.NewInternal(err)
			}
			var t trajectory.Trajectory
			if err := json.Unmarshal([]byte(data), &t); err != nil {
				return errors.NewInternal(err)
			}
			if err := emit(newTrajectoryRecord(&t, feedback[requestID])); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
}

func newTrajectoryRecord(t *trajectory.Trajectory, fbs []trajectory.Feedback) TrajectoryRecord {
	if fbs == nil {
		fbs = []trajectory.Feedback{}
	}
	rec := TrajectoryRecord{Trajectory: t, Feedback: fbs}
	if len(fbs) > 0 {
		v := trajectory.Judge(fbs[len(fbs)-1])
		rec.Verdict = &v
	}
	return rec
}

// export writes a header line plus whatever fill emits to path. The file is
// written under a temporary name and renamed into place, so an existing file
// survives a failed export.
func export(ctx context.Context, cfg *config.Config, path, kind string, fill func(emit func(any) error) error) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	exportPath := path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(kind, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)

	header := ExportHeader{
		ReelExport:    true,
		Kind:          kind,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	emit := func(v any) error {
		select {
		case <-ctx.Done():
			return errors.NewCancelled("export")
		default:
		}
		if err := enc.Encode(v); err != nil {
			return errors.NewInternal(err)
		}
		count++
		return nil
	}
	if err := fill(emit); err != nil {
		return nil, err
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if isSymlink(exportPath) {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails when the destination exists; the existing
	// file is kept rather than risking a delete followed by a failed rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}

// defaultExportPath returns ~/.reel/exports/<kind>-<timestamp>.jsonl.
func defaultExportPath(kind string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s-%s.jsonl", SanitizeForFilename(kind), now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
