package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/transport"
)

func TestSyncMany_FireAndCollect(t *testing.T) {
	e, cleanup := setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// showcal is down, gigdesk accepts everything
		if strings.Contains(r.URL.Path, "/showcal/") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(transport.Result{Accepted: []string{"A"}})
	}), "")
	defer cleanup()

	e.markConnected(t, "gigdesk", map[entities.DataType]bool{entities.DataTypeAvailability: true})
	e.markConnected(t, "showcal", map[entities.DataType]bool{entities.DataTypeAvailability: true})
	require.NoError(t, e.profiles.Put("availability", `[{"id":"A"}]`))

	result, err := e.orch.SyncMany(context.Background(),
		[]string{"gigdesk", "showcal", "fairlist"},
		[]entities.DataType{entities.DataTypeAvailability})
	require.NoError(t, err)

	// One platform failing never stops the others
	assert.Equal(t, []string{"gigdesk"}, result.Succeeded)
	assert.Empty(t, result.Partial)
	assert.Contains(t, result.Failed, "showcal")
	assert.Contains(t, result.Failed, "fairlist")

	// Every attempt resolved before the batch did
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	// gigdesk carries a success record, showcal a failed one
	records, err := e.history.Recent(10, "gigdesk")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entities.SyncStatusSuccess, records[0].Status)

	records, err = e.history.Recent(10, "showcal")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entities.SyncStatusFailed, records[0].Status)

	// fairlist was capability-gated before any history write
	count, err := e.history.CountByPlatform("fairlist")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSyncMany_DefaultsToConnectedPlatforms(t *testing.T) {
	e, cleanup := setupEnv(t, acceptAll(), "")
	defer cleanup()

	e.markConnected(t, "gigdesk", map[entities.DataType]bool{entities.DataTypeProfile: true})
	require.NoError(t, e.profiles.Put("profile", `{"bio":"x"}`))

	result, err := e.orch.SyncMany(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gigdesk"}, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestSyncMany_PartialClassification(t *testing.T) {
	e, cleanup := setupEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transport.Result{
			Accepted: []string{"A"},
			Rejected: []transport.RejectedItem{{ItemID: "B", Reason: "conflict"}},
		})
	}), "")
	defer cleanup()

	e.markConnected(t, "gigdesk", map[entities.DataType]bool{entities.DataTypeAvailability: true})
	require.NoError(t, e.profiles.Put("availability", `[{"id":"A"},{"id":"B"}]`))

	result, err := e.orch.SyncMany(context.Background(), []string{"gigdesk"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gigdesk"}, result.Partial)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestSyncMany_NoConnectedPlatforms(t *testing.T) {
	e, cleanup := setupEnv(t, acceptAll(), "")
	defer cleanup()

	result, err := e.orch.SyncMany(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Partial)
	assert.Empty(t, result.Failed)
}
