package db

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type counterRow struct {
	ID      int
	Value   int
	Version int
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:client_test?mode=memory&cache=shared"), gormConfig())
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.Migrator().DropTable(&counterRow{}))
	require.NoError(t, conn.AutoMigrate(&counterRow{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&counterRow{Value: 1}).Error
	}))

	var count int64
	require.NoError(t, db.Model(&counterRow{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&counterRow{Value: 2}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	require.NoError(t, db.Model(&counterRow{}).Count(&count).Error)
	require.EqualValues(t, 1, count, "rollback should leave a single row")
}

func TestWithTx_VersionedUpdateDetectsStaleWrite(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	ctx := context.Background()

	row := counterRow{Value: 10}
	require.NoError(t, db.Create(&row).Error)

	casUpdate := func(tx *gorm.DB, expectedVersion int) error {
		res := tx.Model(&counterRow{}).
			Where("id = ? AND version = ?", row.ID, expectedVersion).
			Updates(map[string]any{"value": gorm.Expr("value - 1"), "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleWrite
		}
		return nil
	}

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error { return casUpdate(tx, 0) }))
	err := client.WithTx(ctx, func(tx *gorm.DB) error { return casUpdate(tx, 0) })
	require.ErrorIs(t, err, ErrStaleWrite)
	require.True(t, IsConflict(err))

	var reloaded counterRow
	require.NoError(t, db.First(&reloaded, row.ID).Error)
	require.Equal(t, 9, reloaded.Value)
	require.Equal(t, 1, reloaded.Version)
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestDialectorForDriver(t *testing.T) {
	require.Equal(t, "sqlite", dialectorFor(config.DBConfig{Driver: config.DriverSQLite, DSN: "file::memory:"}).Name())
	require.Equal(t, "postgres", dialectorFor(config.DBConfig{Driver: config.DriverPostgres, DSN: "postgres://localhost/db"}).Name())
}
