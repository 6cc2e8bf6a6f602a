package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/validation"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
	ImportModeSkip    ImportMode = "skip"    // keep the stored item on collision
)

// maxImportLine bounds one JSONL record.
const maxImportLine = 1 << 20

// ImportCatalogInput contains parameters for ImportCatalog.
type ImportCatalogInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of an import.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line or record.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	item catalog.Item
}

// ImportCatalog loads catalog items from a JSONL file, such as one written by
// ExportCatalog. In error mode nothing is written unless every line parses
// and no id is taken.
func ImportCatalog(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportCatalogInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeReplace, ImportModeSkip:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseCatalogFile(file)

	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	switch input.Mode {
	case ImportModeError:
		return importAtomic(ctx, database, records)
	default:
		return importEach(ctx, database, records, parseErrors, input.Mode)
	}
}

// parseCatalogFile reads catalog records, skipping the export header.
func parseCatalogFile(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(line, &header); err == nil && header.ReelExport {
			if header.Kind != "" && header.Kind != ExportKindCatalog {
				parseErrors = append(parseErrors, ImportError{
					Line:    lineNum,
					Code:    "WRONG_EXPORT_KIND",
					Message: fmt.Sprintf("file is a %s export, not a catalog export", header.Kind),
				})
			}
			continue
		}

		var it catalog.Item
		if err := json.Unmarshal(line, &it); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if err := validation.Struct(&it); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      it.ID,
				Code:    "INVALID_RECORD",
				Message: err.Error(),
			})
			continue
		}

		records = append(records, importRecord{line: lineNum, item: it})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importAtomic inserts every record in one transaction and rolls back on the
// first id collision, including collisions within the file.
func importAtomic(ctx context.Context, database *sql.DB, records []importRecord) (*ImportOutput, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		err := db.InsertContent(ctx, tx, rec.item)
		if err == db.ErrUniqueConstraint {
			return &ImportOutput{
				Errors: []ImportError{{
					Line:    rec.line,
					ID:      rec.item.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("content with id %q already exists", rec.item.ID),
				}},
			}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: len(records), Errors: []ImportError{}}, nil
}

// importEach writes records one by one; parse errors count as skipped.
func importEach(ctx context.Context, database *sql.DB, records []importRecord, parseErrors []ImportError, mode ImportMode) (*ImportOutput, error) {
	out := &ImportOutput{Errors: append([]ImportError{}, parseErrors...)}
	out.Skipped = len(parseErrors)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("import")
		}

		if mode == ImportModeReplace {
			if err := db.UpsertContent(ctx, database, rec.item); err != nil {
				return nil, err
			}
			out.Imported++
			continue
		}

		err := db.InsertContent(ctx, database, rec.item)
		if err == db.ErrUniqueConstraint {
			out.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Imported++
	}

	return out, nil
}
