package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
	"github.com/framevist/framevist/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagCounts(t *testing.T, svc *Service) map[string]int64 {
	t.Helper()
	tags, err := svc.Tags(context.Background())
	require.NoError(t, err)
	out := make(map[string]int64, len(tags))
	for _, tag := range tags {
		out[tag.Name] = tag.Count
	}
	return out
}

func TestSaveCapsuleTracksTags(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := New(mem, mem)

	a, err := svc.SaveCapsule(ctx, catalog.Capsule{Title: "Harbor at Dusk", Price: decimal.NewFromInt(40), Tags: []string{"Sea", "sea", "night"}})
	require.NoError(t, err)
	assert.Equal(t, "harbor-at-dusk", a.Slug)
	assert.Equal(t, []string{"sea", "night"}, a.Tags)

	_, err = svc.SaveCapsule(ctx, catalog.Capsule{Title: "Reef", Price: decimal.NewFromInt(20), Tags: []string{"sea"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"sea": 2, "night": 1}, tagCounts(t, svc))

	a.Tags = []string{"sea", "dawn"}
	_, err = svc.SaveCapsule(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"sea": 2, "dawn": 1}, tagCounts(t, svc))

	require.NoError(t, svc.DeleteCapsule(ctx, a.ID))
	assert.Equal(t, map[string]int64{"sea": 1}, tagCounts(t, svc))
}

func TestSaveCapsuleWithUnknownIDCreates(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := New(mem, mem)

	c, err := svc.SaveCapsule(ctx, catalog.Capsule{ID: "harbor", Title: "Harbor", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "harbor", c.ID)
}

func TestSaveCapsuleRejectsInvalid(t *testing.T) {
	mem := memory.New()
	svc := New(mem, mem)
	_, err := svc.SaveCapsule(context.Background(), catalog.Capsule{Title: " ", Price: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestPublishedVisibility(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := New(mem, mem)

	c, err := svc.SaveCapsule(ctx, catalog.Capsule{Title: "Harbor", Price: decimal.NewFromInt(1), Tags: []string{"sea"}})
	require.NoError(t, err)

	_, err = svc.GetPublished(ctx, c.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	published, err := svc.SetPublished(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, published.Published)

	list, err := svc.ListPublished(ctx, "SEA")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListPublished(ctx, "forest")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteMissingCapsule(t *testing.T) {
	mem := memory.New()
	svc := New(mem, mem)
	assert.ErrorIs(t, svc.DeleteCapsule(context.Background(), "nope"), store.ErrNotFound)
}
