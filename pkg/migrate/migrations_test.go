package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/platecost-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedSourceMatchesDir(t *testing.T) {
	source, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.ValidateFS(source); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	for _, path := range onDisk {
		if _, err := fs.Stat(source, filepath.Base(path)); err != nil {
			t.Errorf("%s is not embedded: %v", path, err)
		}
	}
}

func TestUomMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_uom_and_ingredients"), []string{
		"CREATE TABLE IF NOT EXISTS uoms",
		"CHECK (factor_to_base > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_uoms_set_base ON uoms (uom_set_id) WHERE is_base",
		"CREATE INDEX IF NOT EXISTS idx_ingredient_costs_latest ON ingredient_costs (ingredient_id, effective_at DESC, id DESC)",
		"DROP TABLE IF EXISTS ingredient_costs",
	})
}

func TestMenuMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_dishes_and_menus"), []string{
		"CREATE TYPE menu_cost_mode_enum AS ENUM ('live', 'locked')",
		"cost_mode menu_cost_mode_enum NOT NULL DEFAULT 'live'",
		"CHECK (yield_servings > 0)",
		"FOREIGN KEY (menu_group_id) REFERENCES menu_groups(id) ON DELETE CASCADE",
		"DROP TYPE IF EXISTS menu_type_enum",
	})
}

func TestImportMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_snapshots_imports_audit"), []string{
		"CREATE TYPE cost_import_row_status_enum AS ENUM ('matched_ok', 'missing_ingredient', 'invalid_uom', 'invalid_number')",
		"FOREIGN KEY (cost_import_id) REFERENCES cost_imports(id) ON DELETE CASCADE",
		"before_state jsonb NULL",
		"ON menu_cost_snapshots (menu_id, sequence)",
		"DROP TABLE IF EXISTS menu_cost_snapshots",
	})
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Menu Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_menu_notes.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration does not validate: %v", err)
	}
}
