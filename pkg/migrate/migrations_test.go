package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestBalanceAndSkillMigrationGuardsNonNegative(t *testing.T) {
	content := readMigration(t, "create_balances_and_skills")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS user_balances",
		"CHECK (credits >= 0)",
		"CHECK (available_slots >= 0)",
		"CHECK (credits_per_hour > 0)",
		"version integer NOT NULL DEFAULT 0",
		"DROP TABLE IF EXISTS user_balances",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestLedgerMigrationEnforcesPairs(t *testing.T) {
	content := readMigration(t, "create_ledger_entries")
	require.Contains(t, content, "ux_ledger_entries_booking_kind ON ledger_entries (booking_id, kind)")
	require.Contains(t, content, "CHECK (kind IN ('spent', 'earned'))")
}

func TestReviewMigrationHasUniqueBooking(t *testing.T) {
	content := readMigration(t, "create_reviews")
	require.Contains(t, content, "CONSTRAINT reviews_booking_id_key UNIQUE (booking_id)")
	require.Contains(t, content, "CHECK (rating BETWEEN 1 AND 5)")
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Meeting Links!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_meeting_links.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		DB:           config.DBConfig{Driver: config.DriverSQLite, DSN: "file:autorun_test?mode=memory&cache=shared"},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	client, err := db.New(context.Background(), cfg.DB, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, nil, client))
	require.True(t, client.DB().Migrator().HasTable("ledger_entries"))
	require.True(t, client.DB().Migrator().HasTable("outbox_events"))
}

func TestEmbeddedMigrationsMatchDir(t *testing.T) {
	fsys, err := migrate.Source("")
	require.NoError(t, err)
	require.NoError(t, migrate.ValidateFS(fsys))

	embeddedFiles, err := migrate.ListFiles(fsys)
	require.NoError(t, err)
	onDisk, err := migrate.ListFiles(os.DirFS("migrations"))
	require.NoError(t, err)
	require.Equal(t, onDisk, embeddedFiles)
	require.Len(t, embeddedFiles, 5)
}

func TestCreateSQLMigrationBumpsPastLatest(t *testing.T) {
	dir := t.TempDir()
	first, err := migrate.CreateSQLMigration(dir, "first")
	require.NoError(t, err)
	second, err := migrate.CreateSQLMigration(dir, "second")
	require.NoError(t, err)
	require.NotEqual(t, filepath.Base(first)[:14], filepath.Base(second)[:14])

	files, err := migrate.ListFiles(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Less(t, files[0].Version, files[1].Version)
	require.True(t, strings.HasSuffix(files[1].Name, "_second.sql"))
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"20260101000000_empty_up.sql":  "-- +goose Up\n-- nothing\n-- +goose Down\nDROP TABLE x;\n",
		"20260101000000_no_down.sql":   "-- +goose Up\nCREATE TABLE x (id int);\n",
		"20260101000000_sql_first.sql": "CREATE TABLE x (id int);\n-- +goose Up\n-- +goose Down\n",
		"2026_bad_name.sql":            "-- +goose Up\nSELECT 1;\n-- +goose Down\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
			require.Error(t, migrate.ValidateDir(dir))
		})
	}
}
