package profilestore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/stagesync/internal/entities"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	dbPath := "./test_profilestore_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AggregateSlice{})
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return New(db), cleanup
}

func TestStore_GetMissingScope(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	payload, err := store.Get("profile")
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestStore_PutAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.Put("profile", `{"stageName":"The Marlowe Trio"}`)
	require.NoError(t, err)

	payload, err := store.Get("profile")
	require.NoError(t, err)
	assert.Equal(t, `{"stageName":"The Marlowe Trio"}`, payload)
}

func TestStore_PutOverwrites(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	require.NoError(t, store.Put("availability", `["2026-09-01"]`))
	require.NoError(t, store.Put("availability", `["2026-09-01","2026-09-02"]`))

	payload, err := store.Get("availability")
	require.NoError(t, err)
	assert.Equal(t, `["2026-09-01","2026-09-02"]`, payload)
}

func TestStore_ScopesAreIndependent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	require.NoError(t, store.Put("profile", `{"a":1}`))
	require.NoError(t, store.Put("media", `["clip.mp4"]`))

	profile, err := store.Get("profile")
	require.NoError(t, err)
	media, err := store.Get("media")
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, profile)
	assert.Equal(t, `["clip.mp4"]`, media)
}

func TestStore_UpdatedAt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ts, err := store.UpdatedAt("profile")
	require.NoError(t, err)
	assert.Nil(t, ts)

	require.NoError(t, store.Put("profile", `{}`))

	ts, err = store.UpdatedAt("profile")
	require.NoError(t, err)
	assert.NotNil(t, ts)
}
