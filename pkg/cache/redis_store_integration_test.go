//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/testhelpers"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	store := NewRedisStore(testRedis.Client, zap.NewNop())
	ctx := context.Background()

	key := "tax:test:" + uuid.NewString()
	store.Set(ctx, key, []byte("value"), time.Minute)

	val, ok := store.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), val)

	_, ok = store.Get(ctx, "tax:test:missing-"+uuid.NewString())
	assert.False(t, ok)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	store := NewRedisStore(testRedis.Client, zap.NewNop())
	ctx := context.Background()

	key := "tax:test:ttl-" + uuid.NewString()
	store.Set(ctx, key, []byte("value"), 100*time.Millisecond)

	_, ok := store.Get(ctx, key)
	require.True(t, ok)

	time.Sleep(200 * time.Millisecond)
	_, ok = store.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisStoreInvalidatePattern(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	store := NewRedisStore(testRedis.Client, zap.NewNop())
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()
	otherTaxonomy := uuid.New()

	store.Set(ctx, TreeKey(tenantID, taxonomyID, 0), []byte("a"), time.Minute)
	store.Set(ctx, TreeKey(tenantID, taxonomyID, 3), []byte("b"), time.Minute)
	store.Set(ctx, DetailKey(tenantID, taxonomyID), []byte("c"), time.Minute)
	store.Set(ctx, TreeKey(tenantID, otherTaxonomy, 0), []byte("d"), time.Minute)

	store.InvalidatePattern(ctx, TaxonomyPattern(tenantID, taxonomyID))

	for _, key := range []string{
		TreeKey(tenantID, taxonomyID, 0),
		TreeKey(tenantID, taxonomyID, 3),
		DetailKey(tenantID, taxonomyID),
	} {
		_, ok := store.Get(ctx, key)
		assert.False(t, ok, "key %s should be invalidated", key)
	}

	_, ok := store.Get(ctx, TreeKey(tenantID, otherTaxonomy, 0))
	assert.True(t, ok, "other taxonomy should survive")
}

// Invalidation walks the keyspace in SCAN batches of 100; verify it clears
// more keys than one batch holds.
func TestRedisStoreInvalidateManyKeys(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	store := NewRedisStore(testRedis.Client, zap.NewNop())
	ctx := context.Background()
	tenantID := uuid.New()

	for i := 0; i < 250; i++ {
		store.Set(ctx, ListKey(tenantID, map[string]string{"offset": fmt.Sprint(i)}), []byte("x"), time.Minute)
	}

	store.InvalidatePattern(ctx, ListPattern(tenantID))

	for i := 0; i < 250; i++ {
		_, ok := store.Get(ctx, ListKey(tenantID, map[string]string{"offset": fmt.Sprint(i)}))
		require.False(t, ok)
	}
}

func TestCoordinatorOverRedis(t *testing.T) {
	testRedis := testhelpers.GetTestRedis(t)
	store := NewRedisStore(testRedis.Client, zap.NewNop())
	coord := NewCoordinator(store, TTLs{Tree: time.Minute, Detail: time.Minute, List: time.Minute}, zap.NewNop())
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()

	tree := []*models.CategoryTreeNode{
		{Category: models.Category{ID: uuid.New(), Name: "Music"}, Children: []*models.CategoryTreeNode{}},
	}
	coord.SetTree(ctx, tenantID, taxonomyID, 0, tree)

	got, ok := coord.GetTree(ctx, tenantID, taxonomyID, 0)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Music", got[0].Name)

	coord.InvalidateTaxonomy(ctx, tenantID, taxonomyID)
	_, ok = coord.GetTree(ctx, tenantID, taxonomyID, 0)
	assert.False(t, ok)
}
