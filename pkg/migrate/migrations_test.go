package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unicampus/campus-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("embedded set has %d files, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateRejectsMissingDownSection(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE clubs_tmp (id int);\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_clubs_tmp.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "goose Down") {
		t.Fatalf("expected missing Down error, got %v", err)
	}
}

func TestOrdersMigrationContainsSchema(t *testing.T) {
	content := readMigration(t, "*_create_campus_orders.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS campus_orders",
		"CREATE TABLE IF NOT EXISTS campus_order_items",
		"status order_status NOT NULL DEFAULT 'placed'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_campus_orders_qr_code",
		"subtotal numeric(12,2) NOT NULL",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLoyaltyMigrationGuardsBalances(t *testing.T) {
	users := readMigration(t, "*_create_users_and_catalog.sql")
	if !strings.Contains(users, "points_balance integer NOT NULL DEFAULT 0 CHECK (points_balance >= 0)") {
		t.Error("users.points_balance must not go negative")
	}
	loyalty := readMigration(t, "*_create_points_and_vouchers.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS engagement",
		"CREATE TABLE IF NOT EXISTS activity_points_history",
		"remaining integer CHECK (remaining IS NULL OR remaining >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_voucher_redemptions_code",
	} {
		if !strings.Contains(loyalty, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Club Events!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_club_events.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
