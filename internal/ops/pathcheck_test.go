package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/reel/internal/catalog"
	"github.com/hpungsan/reel/internal/config"
	"github.com/hpungsan/reel/internal/db"
	"github.com/hpungsan/reel/internal/errors"
)

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !errors.Is(err, code) {
		t.Fatalf("expected %s, got: %v", code, err)
	}
}

// allowedConfig permits exactly dir besides ~/.reel/exports.
func allowedConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return cfg
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
}

func TestImportCatalog_PathRules(t *testing.T) {
	ctx := context.Background()
	items := []catalog.Item{
		newTestItemForImport("fr-comedy-101", "Le Dîner de cons"),
		newTestItemForImport("fr-comedy-102", "La Cité de la peur"),
	}

	allowedDir := t.TempDir()
	outsideDir := t.TempDir()

	good := filepath.Join(allowedDir, "catalog-2026-03-01T200000.jsonl")
	writeCatalogFile(t, good, items)
	outside := filepath.Join(outsideDir, "catalog.jsonl")
	writeCatalogFile(t, outside, items)
	wrongExt := filepath.Join(allowedDir, "catalog.json")
	writeCatalogFile(t, wrongExt, items)

	nestedDir := filepath.Join(allowedDir, "2026")
	if err := os.MkdirAll(nestedDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(nestedDir, "catalog.jsonl")
	writeCatalogFile(t, nested, items)

	linked := filepath.Join(allowedDir, "linked-catalog.jsonl")
	symlinkOrSkip(t, outside, linked)

	rejected := []struct {
		name string
		path string
		code errors.ErrorCode
	}{
		{"empty path", "", errors.ErrInvalidRequest},
		{"traversal", allowedDir + string(filepath.Separator) + ".." + string(filepath.Separator) + "catalog.jsonl", errors.ErrInvalidRequest},
		{"wrong extension", wrongExt, errors.ErrInvalidRequest},
		{"outside allowed dirs", outside, errors.ErrInvalidRequest},
		{"subdirectory of allowed dir", nested, errors.ErrInvalidRequest},
		{"symlink to outside file", linked, errors.ErrInvalidRequest},
		{"missing file", filepath.Join(allowedDir, "missing.jsonl"), errors.ErrFileNotFound},
	}

	for _, mode := range []ImportMode{ImportModeError, ImportModeReplace, ImportModeSkip} {
		t.Run(string(mode), func(t *testing.T) {
			_, database := setupImportDB(t)
			cfg := allowedConfig(allowedDir)

			for _, tc := range rejected {
				_, err := ImportCatalog(ctx, database, cfg, ImportCatalogInput{Path: tc.path, Mode: mode})
				if err == nil {
					t.Fatalf("%s: expected %s, got nil", tc.name, tc.code)
				}
				if !errors.Is(err, tc.code) {
					t.Fatalf("%s: expected %s, got: %v", tc.name, tc.code, err)
				}
			}

			n, err := db.CountContent(ctx, database)
			if err != nil {
				t.Fatalf("CountContent: %v", err)
			}
			if n != 0 {
				t.Fatalf("rejected imports wrote %d items", n)
			}

			out, err := ImportCatalog(ctx, database, cfg, ImportCatalogInput{Path: good, Mode: mode})
			if err != nil {
				t.Fatalf("import from allowed dir: %v", err)
			}
			if out.Imported != len(items) {
				t.Errorf("Imported = %d, want %d", out.Imported, len(items))
			}
		})
	}
}

func TestImportCatalog_UnsafePathsStillRejectSymlinks(t *testing.T) {
	ctx := context.Background()
	_, database := setupImportDB(t)
	dir := t.TempDir()

	target := filepath.Join(dir, "catalog.jsonl")
	writeCatalogFile(t, target, []catalog.Item{newTestItemForImport("fr-drama-201", "Amour")})
	link := filepath.Join(dir, "catalog-link.jsonl")
	symlinkOrSkip(t, target, link)

	// allow_unsafe_paths lifts the directory rule only; opens use O_NOFOLLOW
	_, err := ImportCatalog(ctx, database, unsafeConfig(), ImportCatalogInput{Path: link, Mode: ImportModeSkip})
	requireCode(t, err, errors.ErrInvalidRequest)

	out, err := ImportCatalog(ctx, database, unsafeConfig(), ImportCatalogInput{Path: target, Mode: ImportModeSkip})
	if err != nil {
		t.Fatalf("import of the real file: %v", err)
	}
	if out.Imported != 1 {
		t.Errorf("Imported = %d, want 1", out.Imported)
	}
}

func TestExportCatalog_PathRules(t *testing.T) {
	ctx := context.Background()
	database := seedTestCatalog(t, ctx, t.TempDir())
	allowedDir := t.TempDir()
	cfg := allowedConfig(allowedDir)

	out, err := ExportCatalog(ctx, database, cfg, ExportCatalogInput{Path: filepath.Join(allowedDir, "catalog.jsonl")})
	if err != nil {
		t.Fatalf("export to allowed dir: %v", err)
	}
	if out.Count != len(catalog.SeedItems()) {
		t.Errorf("Count = %d, want %d", out.Count, len(catalog.SeedItems()))
	}

	_, err = ExportCatalog(ctx, database, cfg, ExportCatalogInput{Path: filepath.Join(allowedDir, "backups", "catalog.jsonl")})
	requireCode(t, err, errors.ErrInvalidRequest)
	if _, statErr := os.Stat(filepath.Join(allowedDir, "backups")); !os.IsNotExist(statErr) {
		t.Error("rejected export created the subdirectory")
	}

	_, err = ExportCatalog(ctx, database, cfg, ExportCatalogInput{Path: filepath.Join(t.TempDir(), "catalog.jsonl")})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = ExportCatalog(ctx, database, cfg, ExportCatalogInput{Path: filepath.Join(allowedDir, "catalog.csv")})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestExportCatalog_SymlinkDestinationUntouched(t *testing.T) {
	ctx := context.Background()
	database := seedTestCatalog(t, ctx, t.TempDir())
	dir := t.TempDir()

	victim := filepath.Join(t.TempDir(), "notes.jsonl")
	if err := os.WriteFile(victim, []byte("keep me\n"), 0600); err != nil {
		t.Fatalf("write victim: %v", err)
	}
	link := filepath.Join(dir, "catalog.jsonl")
	symlinkOrSkip(t, victim, link)

	_, err := ExportCatalog(ctx, database, unsafeConfig(), ExportCatalogInput{Path: link})
	requireCode(t, err, errors.ErrInvalidRequest)

	data, err := os.ReadFile(victim)
	if err != nil {
		t.Fatalf("read victim: %v", err)
	}
	if string(data) != "keep me\n" {
		t.Errorf("symlink target was overwritten: %q", data)
	}
}

func TestExportTrajectories_PathRules(t *testing.T) {
	ctx := context.Background()
	_, database := setupImportDB(t)
	allowedDir := t.TempDir()
	cfg := allowedConfig(allowedDir)
	week := 7

	out, err := ExportTrajectories(ctx, database, cfg, ExportTrajectoriesInput{
		Path:      filepath.Join(allowedDir, "trajectories-week.jsonl"),
		SinceDays: &week,
	})
	if err != nil {
		t.Fatalf("export to allowed dir: %v", err)
	}
	if out.Count != 0 {
		t.Errorf("Count = %d, want 0 for an empty store", out.Count)
	}

	// A symlinked directory does not count as the allowed directory it points to
	linkDir := filepath.Join(t.TempDir(), "exports-link")
	symlinkOrSkip(t, allowedDir, linkDir)
	_, err = ExportTrajectories(ctx, database, cfg, ExportTrajectoriesInput{Path: filepath.Join(linkDir, "trajectories.jsonl")})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = ExportTrajectories(ctx, database, cfg, ExportTrajectoriesInput{Path: "../trajectories.jsonl"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestValidatePath_SymlinkedAllowedEntryResolves(t *testing.T) {
	realDir := t.TempDir()
	link := filepath.Join(t.TempDir(), "reel-exports")
	symlinkOrSkip(t, realDir, link)

	cfg := allowedConfig(link)
	if err := ValidatePath(filepath.Join(realDir, "catalog.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Fatalf("file in the resolved allowed dir: %v", err)
	}
}

func TestValidatePath_RelativeAllowedEntryIgnored(t *testing.T) {
	cfg := allowedConfig("exports")
	err := ValidatePath(filepath.Join("exports", "catalog.jsonl"), PathCheckWrite, cfg)
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/home/me/.reel/exports/catalog.jsonl", false},
		{"../catalog.jsonl", true},
		{"/home/me/.reel/../.ssh/id.jsonl", true},
		{"./trajectories.jsonl", false},
		{"catalog..backup.jsonl", false},
		{`exports\..\catalog.jsonl`, filepath.Separator == '\\'},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := containsTraversal(tc.path); got != tc.want {
				t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{ExportKindCatalog, "catalog"},
		{ExportKindTrajectories, "trajectories"},
		{"sess/2026/03", "sess-2026-03"},
		{`user\alice`, "user-alice"},
		{"../../etc", "etc"},
		{"a\x00b\x1fc", "abc"},
		{"--", "unnamed"},
		{"séance-ciné", "séance-ciné"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := SanitizeForFilename(tc.input); got != tc.want {
				t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
