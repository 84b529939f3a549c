package state

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/profilestore"
)

func setupManager(t *testing.T) (*Manager, *profilestore.Store, func()) {
	dbPath := "./test_state_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AggregateSlice{})
	require.NoError(t, err)

	store := profilestore.New(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return NewManager(store), store, cleanup
}

func TestManager_ApplyAndCommit(t *testing.T) {
	manager, store, cleanup := setupManager(t)
	defer cleanup()

	require.NoError(t, store.Put("profile", `{"bio":"old"}`))

	snap, err := manager.Begin("profile")
	require.NoError(t, err)
	assert.Equal(t, `{"bio":"old"}`, snap.Prior())

	require.NoError(t, snap.Apply(`{"bio":"new"}`))

	// Speculative value is readable before resolution
	current, err := store.Get("profile")
	require.NoError(t, err)
	assert.Equal(t, `{"bio":"new"}`, current)

	require.NoError(t, snap.Commit())

	current, err = store.Get("profile")
	require.NoError(t, err)
	assert.Equal(t, `{"bio":"new"}`, current)
}

func TestManager_Rollback(t *testing.T) {
	manager, store, cleanup := setupManager(t)
	defer cleanup()

	require.NoError(t, store.Put("availability", `["A","B"]`))

	snap, err := manager.Begin("availability")
	require.NoError(t, err)
	require.NoError(t, snap.Apply(`["A","B","C"]`))
	require.NoError(t, snap.Rollback())

	current, err := store.Get("availability")
	require.NoError(t, err)
	assert.Equal(t, `["A","B"]`, current)
}

func TestManager_RollbackRestoresEmptyScope(t *testing.T) {
	manager, store, cleanup := setupManager(t)
	defer cleanup()

	snap, err := manager.Begin("media")
	require.NoError(t, err)
	require.NoError(t, snap.Apply(`["clip.mp4"]`))
	require.NoError(t, snap.Rollback())

	current, err := store.Get("media")
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestManager_DoubleResolveFails(t *testing.T) {
	manager, _, cleanup := setupManager(t)
	defer cleanup()

	snap, err := manager.Begin("profile")
	require.NoError(t, err)
	require.NoError(t, snap.Commit())

	assert.ErrorIs(t, snap.Commit(), ErrSnapshotResolved)
	assert.ErrorIs(t, snap.Rollback(), ErrSnapshotResolved)
	assert.ErrorIs(t, snap.Apply("x"), ErrSnapshotResolved)
}

func TestManager_SerializesSameScope(t *testing.T) {
	manager, store, cleanup := setupManager(t)
	defer cleanup()

	first, err := manager.Begin("profile")
	require.NoError(t, err)

	secondStarted := make(chan struct{})
	secondDone := make(chan struct{})
	go func() {
		close(secondStarted)
		snap, err := manager.Begin("profile")
		assert.NoError(t, err)
		assert.NoError(t, snap.Apply("second"))
		assert.NoError(t, snap.Commit())
		close(secondDone)
	}()

	<-secondStarted
	// The competing Begin must block while the first snapshot is open
	select {
	case <-secondDone:
		t.Fatal("second mutation resolved before first snapshot was released")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Apply("first"))
	require.NoError(t, first.Commit())

	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second mutation never proceeded after first resolved")
	}

	current, err := store.Get("profile")
	require.NoError(t, err)
	assert.Equal(t, "second", current)
}

func TestManager_IndependentScopesDoNotBlock(t *testing.T) {
	manager, _, cleanup := setupManager(t)
	defer cleanup()

	profileSnap, err := manager.Begin("profile")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		snap, err := manager.Begin("availability")
		assert.NoError(t, err)
		assert.NoError(t, snap.Commit())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated scope blocked behind open snapshot")
	}

	wg.Wait()
	require.NoError(t, profileSnap.Commit())
}
