package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/emotion"
	"github.com/hpungsan/reel/internal/errors"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestItem(id, title string, genres ...string) catalog.Item {
	return catalog.Item{
		Metadata: catalog.Metadata{
			ID:       id,
			Title:    title,
			Year:     2010,
			Runtime:  95,
			Language: "fr",
			Genres:   genres,
			Kind:     "movie",
		},
		Profile: catalog.Profile{Energy: 0.5, Valence: 0.7, Arousal: 0.4},
	}
}

func TestInsertAndGetContent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	it := newTestItem("fr-1", "Amélie", "Comedy", "Romance")
	it.Regions = []string{"FR", "BE"}
	it.TMDBID = "194"
	it.Profile.CognitiveLoad = 0.3

	if err := InsertContent(ctx, db, it); err != nil {
		t.Fatalf("InsertContent() error = %v", err)
	}

	got, err := GetContent(ctx, db, "fr-1")
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if got.Title != "Amélie" {
		t.Errorf("Title = %q, want Amélie", got.Title)
	}
	if len(got.Genres) != 2 || got.Genres[1] != "Romance" {
		t.Errorf("Genres = %v", got.Genres)
	}
	if len(got.Regions) != 2 || got.Regions[0] != "FR" {
		t.Errorf("Regions = %v", got.Regions)
	}
	if got.TMDBID != "194" {
		t.Errorf("TMDBID = %q, want 194", got.TMDBID)
	}
	if got.Profile.CognitiveLoad != 0.3 {
		t.Errorf("CognitiveLoad = %g, want 0.3", got.Profile.CognitiveLoad)
	}
	if got.Overview != "" || got.PosterURL != "" {
		t.Errorf("unset optional fields should stay empty: %+v", got.Metadata)
	}
}

func TestInsertContent_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := InsertContent(ctx, db, newTestItem("fr-1", "A", "Drama")); err != nil {
		t.Fatalf("InsertContent() error = %v", err)
	}
	err := InsertContent(ctx, db, newTestItem("fr-1", "B", "Drama"))
	if err != ErrUniqueConstraint {
		t.Fatalf("InsertContent() duplicate error = %v, want ErrUniqueConstraint", err)
	}
}

func TestUpsertContent_Replaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := UpsertContent(ctx, db, newTestItem("fr-1", "Old", "Drama")); err != nil {
		t.Fatalf("UpsertContent() error = %v", err)
	}
	if err := UpsertContent(ctx, db, newTestItem("fr-1", "New", "Comedy")); err != nil {
		t.Fatalf("UpsertContent() error = %v", err)
	}

	got, err := GetContent(ctx, db, "fr-1")
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if got.Title != "New" || got.Genres[0] != "Comedy" {
		t.Errorf("got %q %v, want New [Comedy]", got.Title, got.Genres)
	}
	n, _ := CountContent(ctx, db)
	if n != 1 {
		t.Errorf("CountContent() = %d, want 1", n)
	}
}

func TestGetContent_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := GetContent(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("GetContent() error = %v, want NOT_FOUND", err)
	}
}

func TestDeleteContent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := InsertContent(ctx, db, newTestItem("fr-1", "A", "Drama")); err != nil {
		t.Fatalf("InsertContent() error = %v", err)
	}
	if err := DeleteContent(ctx, db, "fr-1"); err != nil {
		t.Fatalf("DeleteContent() error = %v", err)
	}
	if exists, _ := ContentExists(ctx, db, "fr-1"); exists {
		t.Error("content still exists after delete")
	}
	if err := DeleteContent(ctx, db, "fr-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteContent() error = %v, want NOT_FOUND", err)
	}
}

func TestListContent_OrderedByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := InsertContent(ctx, db, newTestItem(id, id, "Drama")); err != nil {
			t.Fatalf("InsertContent(%s) error = %v", id, err)
		}
	}

	items, err := ListContent(ctx, db)
	if err != nil {
		t.Fatalf("ListContent() error = %v", err)
	}
	if len(items) != 3 || items[0].ID != "a" || items[2].ID != "c" {
		t.Errorf("ListContent() ids = %v", catalogIDs(items))
	}
}

func TestGetContentStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, it := range catalog.SeedItems() {
		if err := InsertContent(ctx, db, it); err != nil {
			t.Fatalf("InsertContent() error = %v", err)
		}
	}

	stats, err := GetContentStats(ctx, db)
	if err != nil {
		t.Fatalf("GetContentStats() error = %v", err)
	}
	if stats.Total != len(catalog.SeedItems()) {
		t.Errorf("Total = %d, want %d", stats.Total, len(catalog.SeedItems()))
	}
	if stats.ByLanguage["fr"] != stats.Total {
		t.Errorf("ByLanguage[fr] = %d, want %d", stats.ByLanguage["fr"], stats.Total)
	}
	if stats.ByGenre["comedy"] == 0 {
		t.Error("expected comedy titles in stats")
	}
	if stats.ByKind["movie"] == 0 || stats.ByKind["series"] == 0 {
		t.Errorf("ByKind = %v, want movies and series", stats.ByKind)
	}
}

func TestContentIndex_LoadsLazilyAndReloads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, it := range catalog.SeedItems() {
		if err := InsertContent(ctx, db, it); err != nil {
			t.Fatalf("InsertContent() error = %v", err)
		}
	}

	idx := NewContentIndex(db)
	if idx.Len() != 0 {
		t.Fatalf("Len() before first search = %d, want 0", idx.Len())
	}

	state := emotion.State{Energy: 0.4, Valence: 0.6, Arousal: 0.4}
	query := catalog.Encode(state)
	cands, err := idx.Search(ctx, query, catalog.Constraints{}, 100, -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(cands) != len(catalog.SeedItems()) {
		t.Fatalf("Search() returned %d candidates, want %d", len(cands), len(catalog.SeedItems()))
	}
	if idx.Len() != len(catalog.SeedItems()) {
		t.Errorf("Len() = %d, want %d", idx.Len(), len(catalog.SeedItems()))
	}

	if err := InsertContent(ctx, db, newTestItem("zz-new", "Nouveau", "Drama")); err != nil {
		t.Fatalf("InsertContent() error = %v", err)
	}
	if err := idx.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if idx.Len() != len(catalog.SeedItems())+1 {
		t.Errorf("Len() after reload = %d", idx.Len())
	}
}

func catalogIDs(items []catalog.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
