package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/models"
)

func TestConnectRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "designhub:ping", "1", 0).Err())
	require.True(t, server.Exists("designhub:ping"))
}

func TestConnectRedisFailures(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "not a url")
	require.Error(t, err)

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	_, err = ConnectRedis(context.Background(), "redis://"+addr)
	require.Error(t, err)
}

func TestConnectRequiresAddresses(t *testing.T) {
	_, err := ConnectPostgres("")
	require.Error(t, err)

	_, err = ConnectNATS("", "designhub")
	require.Error(t, err)
}

func TestMigrateCreatesPlatformTables(t *testing.T) {
	db := openMigrated(t)
	for _, model := range models.All() {
		require.True(t, db.Migrator().HasTable(model))
	}
}

func TestConnectionConfigTranslatesUniqueViolations(t *testing.T) {
	db := openMigrated(t)

	require.NoError(t, db.Create(&models.BattleVote{BattleID: 1, EntryID: 1, VoterID: 9}).Error)
	err := db.Create(&models.BattleVote{BattleID: 1, EntryID: 2, VoterID: 9}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func openMigrated(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), gormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}
