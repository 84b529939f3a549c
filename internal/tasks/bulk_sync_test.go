package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
)

type fakeSyncer struct {
	platformIDs []string
	dataTypes   []entities.DataType
	result      *orchestrator.BulkResult
	err         error
}

func (f *fakeSyncer) SyncMany(ctx context.Context, platformIDs []string, dataTypes []entities.DataType) (*orchestrator.BulkResult, error) {
	f.platformIDs = platformIDs
	f.dataTypes = dataTypes
	return f.result, f.err
}

func TestBulkSyncProcessor(t *testing.T) {
	syncer := &fakeSyncer{result: &orchestrator.BulkResult{
		Succeeded: []string{"gigdesk", "showcal"},
	}}

	processor := BulkSyncProcessor(syncer)
	err := processor(context.Background(), BulkSyncTask{
		PlatformIDs: []string{"gigdesk", "showcal"},
		DataTypes:   []string{"profile"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gigdesk", "showcal"}, syncer.platformIDs)
	assert.Equal(t, []entities.DataType{entities.DataTypeProfile}, syncer.dataTypes)
}

func TestBulkSyncProcessor_EmptyTaskSyncsEverything(t *testing.T) {
	syncer := &fakeSyncer{result: &orchestrator.BulkResult{}}

	processor := BulkSyncProcessor(syncer)
	require.NoError(t, processor(context.Background(), BulkSyncTask{}))

	assert.Empty(t, syncer.platformIDs)
	assert.Empty(t, syncer.dataTypes)
}

func TestBulkSyncProcessor_SyncerError(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("registry unavailable")}

	processor := BulkSyncProcessor(syncer)
	err := processor(context.Background(), BulkSyncTask{PlatformIDs: []string{"gigdesk"}})
	assert.Error(t, err)
}

func TestBulkSyncProcessor_NotConfigured(t *testing.T) {
	processor := BulkSyncProcessor(nil)
	assert.Error(t, processor(context.Background(), BulkSyncTask{}))
}
