package cache

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

type stubStore struct {
	entries map[string][]byte
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string][]byte)}
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := s.entries[key]
	return val, ok
}

func (s *stubStore) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	s.entries[key] = value
}

func (s *stubStore) InvalidatePattern(_ context.Context, pattern string) {
	for key := range s.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.entries, key)
		}
	}
}

func newTestCoordinator(store Store) *Coordinator {
	return NewCoordinator(store, TTLs{Tree: time.Minute, Detail: time.Minute, List: time.Minute}, zap.NewNop())
}

func TestCoordinatorTreeRoundTrip(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()

	tree := []*models.CategoryTreeNode{
		{
			Category: models.Category{ID: uuid.New(), Name: "Music"},
			Children: []*models.CategoryTreeNode{
				{Category: models.Category{ID: uuid.New(), Name: "Rock"}, Children: []*models.CategoryTreeNode{}},
			},
		},
	}

	coord.SetTree(ctx, tenantID, taxonomyID, 0, tree)

	got, ok := coord.GetTree(ctx, tenantID, taxonomyID, 0)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Music", got[0].Name)
	require.Len(t, got[0].Children, 1)
	assert.Equal(t, "Rock", got[0].Children[0].Name)
}

func TestCoordinatorTaxonomyRoundTrip(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()

	tax := &models.Taxonomy{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "Music Events",
		Slug:     "music-events",
		Version:  3,
	}

	coord.SetTaxonomy(ctx, tax)

	got, ok := coord.GetTaxonomy(ctx, tax.TenantID, tax.ID)
	require.True(t, ok)
	assert.Equal(t, tax.Slug, got.Slug)
	assert.Equal(t, 3, got.Version)
}

func TestCoordinatorListRoundTrip(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()
	tenantID := uuid.New()
	params := map[string]string{"namespace": "events"}

	list := []*models.Taxonomy{{ID: uuid.New(), Name: "Music Events"}}
	coord.SetList(ctx, tenantID, params, list)

	got, ok := coord.GetList(ctx, tenantID, params)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Music Events", got[0].Name)
}

func TestCoordinatorMissOnEmptyStore(t *testing.T) {
	coord := newTestCoordinator(newStubStore())
	ctx := context.Background()

	_, ok := coord.GetTree(ctx, uuid.New(), uuid.New(), 0)
	assert.False(t, ok)
	_, ok = coord.GetTaxonomy(ctx, uuid.New(), uuid.New())
	assert.False(t, ok)
	_, ok = coord.GetList(ctx, uuid.New(), nil)
	assert.False(t, ok)
}

func TestCoordinatorCorruptEntryIsMiss(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()

	store.entries[TreeKey(tenantID, taxonomyID, 0)] = []byte("not json")

	_, ok := coord.GetTree(ctx, tenantID, taxonomyID, 0)
	assert.False(t, ok, "corrupt entries degrade to a miss")
}

func TestCoordinatorNilStoreDisablesCaching(t *testing.T) {
	coord := newTestCoordinator(nil)
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()

	coord.SetTree(ctx, tenantID, taxonomyID, 0, []*models.CategoryTreeNode{})
	_, ok := coord.GetTree(ctx, tenantID, taxonomyID, 0)
	assert.False(t, ok)

	// Invalidation on a nil store must not panic.
	coord.InvalidateTaxonomy(ctx, tenantID, taxonomyID)
	coord.InvalidateLists(ctx, tenantID)
}

func TestCoordinatorInvalidateTaxonomy(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()
	otherTaxonomy := uuid.New()

	coord.SetTree(ctx, tenantID, taxonomyID, 0, []*models.CategoryTreeNode{})
	coord.SetTree(ctx, tenantID, otherTaxonomy, 0, []*models.CategoryTreeNode{})
	coord.SetTaxonomy(ctx, &models.Taxonomy{ID: taxonomyID, TenantID: tenantID})
	coord.SetList(ctx, tenantID, map[string]string{"namespace": "events"}, nil)

	coord.InvalidateTaxonomy(ctx, tenantID, taxonomyID)

	_, ok := coord.GetTree(ctx, tenantID, taxonomyID, 0)
	assert.False(t, ok, "tree entry should be invalidated")
	_, ok = coord.GetTaxonomy(ctx, tenantID, taxonomyID)
	assert.False(t, ok, "detail entry should be invalidated")
	_, ok = coord.GetList(ctx, tenantID, map[string]string{"namespace": "events"})
	assert.False(t, ok, "list entries should be invalidated")

	_, ok = coord.GetTree(ctx, tenantID, otherTaxonomy, 0)
	assert.True(t, ok, "other taxonomies stay cached")
}

func TestCoordinatorInvalidateListsOnly(t *testing.T) {
	store := newStubStore()
	coord := newTestCoordinator(store)
	ctx := context.Background()
	tenantID := uuid.New()
	taxonomyID := uuid.New()

	coord.SetTree(ctx, tenantID, taxonomyID, 0, []*models.CategoryTreeNode{})
	coord.SetList(ctx, tenantID, map[string]string{"namespace": "events"}, nil)

	coord.InvalidateLists(ctx, tenantID)

	_, ok := coord.GetList(ctx, tenantID, map[string]string{"namespace": "events"})
	assert.False(t, ok)
	_, ok = coord.GetTree(ctx, tenantID, taxonomyID, 0)
	assert.True(t, ok, "tree entries survive a list-only invalidation")
}
