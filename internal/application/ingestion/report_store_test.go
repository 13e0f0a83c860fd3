package ingestion

import (
	"fmt"
	"testing"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore_EvictsOldest(t *testing.T) {
	store := NewReportStore(2)
	for i := 1; i <= 3; i++ {
		store.Put(ingestion.NewRunReport(fmt.Sprintf("run-%d", i), TriggerManual))
	}

	_, err := store.Get("run-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got, err := store.Get("run-3")
	require.NoError(t, err)
	assert.Equal(t, "run-3", got.ID)

	recent := store.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "run-3", recent[0].ID)
	assert.Equal(t, "run-2", recent[1].ID)
}

func TestReportStore_PutSameIDDoesNotGrow(t *testing.T) {
	store := NewReportStore(0)
	r := ingestion.NewRunReport("run-1", TriggerManual)
	store.Put(r)
	store.Put(r)

	assert.Len(t, store.Recent(10), 1)
}
