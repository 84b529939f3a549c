package platforms

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/stagesync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_platforms_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Platform{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func seedPlatform(t *testing.T, repo *Repository, id string, ct entities.ConnectionType) {
	t.Helper()
	err := repo.Save(&entities.Platform{ID: id, Name: id, ConnectionType: ct})
	require.NoError(t, err)
}

func TestRepository_GetAndList(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedPlatform(t, repo, "gigdesk", entities.ConnectionTypeAPI)
	seedPlatform(t, repo, "stagebook", entities.ConnectionTypeOAuthAPI)

	platform, err := repo.Get("gigdesk")
	require.NoError(t, err)
	assert.Equal(t, entities.ConnectionTypeAPI, platform.ConnectionType)
	assert.False(t, platform.Connected)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_Get_Missing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Get("nothere")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_MarkTested(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedPlatform(t, repo, "gigdesk", entities.ConnectionTypeAPI)

	err := repo.MarkTested("gigdesk", entities.TestOutcomeFailed)
	require.NoError(t, err)

	platform, err := repo.Get("gigdesk")
	require.NoError(t, err)
	assert.Equal(t, entities.TestOutcomeFailed, platform.TestResult)
	assert.NotNil(t, platform.LastTested)
	// Probe outcome must not touch sync state
	assert.Nil(t, platform.LastSync)
	assert.False(t, platform.Connected)
}

func TestRepository_MarkSynced_ClearsLastError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedPlatform(t, repo, "gigdesk", entities.ConnectionTypeAPI)
	require.NoError(t, repo.SetLastError("gigdesk", "push rejected"))

	platform, err := repo.Get("gigdesk")
	require.NoError(t, err)
	assert.Equal(t, "push rejected", platform.LastError)

	syncedAt := time.Now()
	require.NoError(t, repo.MarkSynced("gigdesk", syncedAt))

	platform, err = repo.Get("gigdesk")
	require.NoError(t, err)
	assert.Empty(t, platform.LastError)
	require.NotNil(t, platform.LastSync)
	assert.WithinDuration(t, syncedAt, *platform.LastSync, time.Second)
}

func TestRepository_Save_UpdatesConnectionState(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedPlatform(t, repo, "stagebook", entities.ConnectionTypeOAuthAPI)

	platform, err := repo.Get("stagebook")
	require.NoError(t, err)

	platform.Connected = true
	require.NoError(t, platform.SetSettingsMap(map[entities.DataType]bool{entities.DataTypeProfile: true}))
	require.NoError(t, repo.Save(platform))

	reloaded, err := repo.Get("stagebook")
	require.NoError(t, err)
	assert.True(t, reloaded.Connected)
	assert.True(t, reloaded.SyncEnabled(entities.DataTypeProfile))

	// Disconnecting clears the sync stamp along with the flag
	now := time.Now()
	reloaded.LastSync = &now
	require.NoError(t, repo.Save(reloaded))

	reloaded.Connected = false
	reloaded.LastSync = nil
	require.NoError(t, repo.Save(reloaded))

	final, err := repo.Get("stagebook")
	require.NoError(t, err)
	assert.False(t, final.Connected)
	assert.Nil(t, final.LastSync)
}
