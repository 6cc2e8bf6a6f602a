package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ReelError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const contentColumns = `id, title, year, runtime, language, genres_json, overview, director,
	kind, poster_url, streaming_url, tmdb_id, regions_json,
	energy, valence, arousal, cognitive_load`

// InsertContent stores a new catalog item. An existing id yields ErrUniqueConstraint.
func InsertContent(ctx context.Context, db Querier, it catalog.Item) error {
	args, err := contentArgs(it)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	query := `INSERT INTO content (` + contentColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := db.ExecContext(ctx, query, append(args, now, now)...); err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UpsertContent inserts it or replaces the stored row with the same id.
// created_at survives a replace.
func UpsertContent(ctx context.Context, db Querier, it catalog.Item) error {
	args, err := contentArgs(it)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	query := `INSERT INTO content (` + contentColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			runtime = excluded.runtime,
			language = excluded.language,
			genres_json = excluded.genres_json,
			overview = excluded.overview,
			director = excluded.director,
			kind = excluded.kind,
			poster_url = excluded.poster_url,
			streaming_url = excluded.streaming_url,
			tmdb_id = excluded.tmdb_id,
			regions_json = excluded.regions_json,
			energy = excluded.energy,
			valence = excluded.valence,
			arousal = excluded.arousal,
			cognitive_load = excluded.cognitive_load,
			updated_at = excluded.updated_at`

	if _, err := db.ExecContext(ctx, query, append(args, now, now)...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ContentExists reports whether a row with id is stored.
func ContentExists(ctx context.Context, db Querier, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM content WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetContent retrieves one catalog item by id.
func GetContent(ctx context.Context, db *sql.DB, id string) (*catalog.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = ?`, id)
	it, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("content", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return it, nil
}

// ListContent returns the whole catalog ordered by id.
func ListContent(ctx context.Context, db *sql.DB) ([]catalog.Item, error) {
	rows, err := StreamContent(ctx, db)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := ScanContentFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// StreamContent returns rows over the whole catalog ordered by id. The caller
// must close them.
func StreamContent(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+contentColumns+` FROM content ORDER BY id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanContentFromRows scans the current row of StreamContent.
func ScanContentFromRows(rows *sql.Rows) (*catalog.Item, error) {
	return scanContent(rows)
}

// CountContent returns the number of catalog rows.
func CountContent(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// DeleteContent removes one catalog row.
func DeleteContent(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("content", id)
	}
	return nil
}

// ContentStats summarises the catalog.
type ContentStats struct {
	Total      int            `json:"total"`
	ByLanguage map[string]int `json:"by_language"`
	ByKind     map[string]int `json:"by_kind"`
	ByGenre    map[string]int `json:"by_genre"`
}

// GetContentStats counts catalog rows per language, kind and genre.
func GetContentStats(ctx context.Context, db *sql.DB) (*ContentStats, error) {
	stats := &ContentStats{
		ByLanguage: map[string]int{},
		ByKind:     map[string]int{},
		ByGenre:    map[string]int{},
	}

	rows, err := db.QueryContext(ctx, `SELECT language, kind, genres_json FROM content`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var language, genresJSON string
		var kind sql.NullString
		if err := rows.Scan(&language, &kind, &genresJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		stats.Total++
		stats.ByLanguage[strings.ToLower(language)]++
		if kind.Valid && kind.String != "" {
			stats.ByKind[kind.String]++
		}
		var genres []string
		if err := json.Unmarshal([]byte(genresJSON), &genres); err != nil {
			return nil, errors.NewInternal(err)
		}
		for _, g := range genres {
			stats.ByGenre[catalog.NormalizeGenre(g)]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return stats, nil
}

func contentArgs(it catalog.Item) ([]any, error) {
	genres := it.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var regionsJSON sql.NullString
	if len(it.Regions) > 0 {
		data, err := json.Marshal(it.Regions)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		regionsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var cognitive sql.NullFloat64
	if it.Profile.CognitiveLoad > 0 {
		cognitive = sql.NullFloat64{Float64: it.Profile.CognitiveLoad, Valid: true}
	}

	return []any{
		it.ID, it.Title, nullInt(it.Year), nullInt(it.Runtime), it.Language, string(genresJSON),
		nullString(it.Overview), nullString(it.Director), nullString(it.Kind),
		nullString(it.PosterURL), nullString(it.StreamingURL), nullString(it.TMDBID), regionsJSON,
		it.Profile.Energy, it.Profile.Valence, it.Profile.Arousal, cognitive,
	}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(r rowScanner) (*catalog.Item, error) {
	var (
		it                              catalog.Item
		year, runtime                   sql.NullInt64
		genresJSON                      string
		overview, director, kind        sql.NullString
		posterURL, streamingURL, tmdbID sql.NullString
		regionsJSON                     sql.NullString
		cognitive                       sql.NullFloat64
	)
	err := r.Scan(
		&it.ID, &it.Title, &year, &runtime, &it.Language, &genresJSON,
		&overview, &director, &kind, &posterURL, &streamingURL, &tmdbID, &regionsJSON,
		&it.Profile.Energy, &it.Profile.Valence, &it.Profile.Arousal, &cognitive,
	)
	if err != nil {
		return nil, err
	}

	it.Year = int(year.Int64)
	it.Runtime = int(runtime.Int64)
	it.Overview = overview.String
	it.Director = director.String
	it.Kind = kind.String
	it.PosterURL = posterURL.String
	it.StreamingURL = streamingURL.String
	it.TMDBID = tmdbID.String
	it.Profile.CognitiveLoad = cognitive.Float64

	if err := json.Unmarshal([]byte(genresJSON), &it.Genres); err != nil {
		return nil, err
	}
	if regionsJSON.Valid && regionsJSON.String != "" {
		if err := json.Unmarshal([]byte(regionsJSON.String), &it.Regions); err != nil {
			return nil, err
		}
	}
	return &it, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
