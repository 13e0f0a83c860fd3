package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/feedsync/backend/internal/domain/shared"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistry(t *testing.T) {
	reg := NewStaticRegistry([]config.SupplierConfig{
		{ID: "scoop", Name: "Scoop", URL: "https://scoop.example/feed.xml", Type: "xml-scoop", Enabled: true},
		{ID: "csvco", Name: "CSV Co", URL: "https://csv.example/p.csv", Type: "CSV", Enabled: false},
		{ID: "odd", Name: "Odd", Type: "json"},
	})
	ctx := context.Background()

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "scoop", list[0].ID)
	assert.Equal(t, supplier.FormatScoop, list[0].Format)
	assert.Equal(t, supplier.FormatCSV, list[1].Format)
	assert.False(t, list[1].Enabled)
	assert.Equal(t, supplier.FormatUnknown, list[2].Format)

	list[0].ID = "mutated"
	got, err := reg.Get(ctx, "scoop")
	require.NoError(t, err)
	assert.Equal(t, "Scoop", got.Name)

	_, err = reg.Get(ctx, "missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
