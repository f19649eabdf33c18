package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

// TTLs holds the per-artifact cache TTLs.
type TTLs struct {
	Tree   time.Duration
	Detail time.Duration
	List   time.Duration
}

// Coordinator caches read-mostly taxonomy artifacts and invalidates them
// on structural mutations. A nil Store disables caching entirely: every
// read misses and every write is a no-op, so callers never branch on
// whether a cache is configured.
type Coordinator struct {
	store  Store
	ttls   TTLs
	logger *zap.Logger
}

// NewCoordinator creates a Coordinator over the given store. store may be nil.
func NewCoordinator(store Store, ttls TTLs, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		ttls:   ttls,
		logger: logger.Named("cache-coordinator"),
	}
}

// GetTree returns the cached tree for (tenant, taxonomy, depth), or false on miss.
func (c *Coordinator) GetTree(ctx context.Context, tenantID, taxonomyID uuid.UUID, depth int) ([]*models.CategoryTreeNode, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok := c.store.Get(ctx, TreeKey(tenantID, taxonomyID, depth))
	if !ok {
		return nil, false
	}
	var tree []*models.CategoryTreeNode
	if err := json.Unmarshal(raw, &tree); err != nil {
		c.logger.Warn("Corrupt cached tree, treating as miss",
			zap.String("taxonomy_id", taxonomyID.String()),
			zap.Error(err))
		return nil, false
	}
	return tree, true
}

// SetTree caches the tree for (tenant, taxonomy, depth).
func (c *Coordinator) SetTree(ctx context.Context, tenantID, taxonomyID uuid.UUID, depth int, tree []*models.CategoryTreeNode) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		c.logger.Warn("Failed to marshal tree for cache", zap.Error(err))
		return
	}
	c.store.Set(ctx, TreeKey(tenantID, taxonomyID, depth), raw, c.ttls.Tree)
}

// GetTaxonomy returns the cached taxonomy detail, or false on miss.
func (c *Coordinator) GetTaxonomy(ctx context.Context, tenantID, taxonomyID uuid.UUID) (*models.Taxonomy, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok := c.store.Get(ctx, DetailKey(tenantID, taxonomyID))
	if !ok {
		return nil, false
	}
	var tax models.Taxonomy
	if err := json.Unmarshal(raw, &tax); err != nil {
		c.logger.Warn("Corrupt cached taxonomy, treating as miss",
			zap.String("taxonomy_id", taxonomyID.String()),
			zap.Error(err))
		return nil, false
	}
	return &tax, true
}

// SetTaxonomy caches a single taxonomy detail.
func (c *Coordinator) SetTaxonomy(ctx context.Context, tax *models.Taxonomy) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(tax)
	if err != nil {
		c.logger.Warn("Failed to marshal taxonomy for cache", zap.Error(err))
		return
	}
	c.store.Set(ctx, DetailKey(tax.TenantID, tax.ID), raw, c.ttls.Detail)
}

// GetList returns the cached list page for the given query params, or false on miss.
func (c *Coordinator) GetList(ctx context.Context, tenantID uuid.UUID, params map[string]string) ([]*models.Taxonomy, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok := c.store.Get(ctx, ListKey(tenantID, params))
	if !ok {
		return nil, false
	}
	var list []*models.Taxonomy
	if err := json.Unmarshal(raw, &list); err != nil {
		c.logger.Warn("Corrupt cached list, treating as miss", zap.Error(err))
		return nil, false
	}
	return list, true
}

// SetList caches a list page for the given query params.
func (c *Coordinator) SetList(ctx context.Context, tenantID uuid.UUID, params map[string]string, list []*models.Taxonomy) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		c.logger.Warn("Failed to marshal list for cache", zap.Error(err))
		return
	}
	c.store.Set(ctx, ListKey(tenantID, params), raw, c.ttls.List)
}

// InvalidateTaxonomy removes every tree and detail entry for the taxonomy
// plus the tenant's list entries. Called after any structural mutation.
func (c *Coordinator) InvalidateTaxonomy(ctx context.Context, tenantID, taxonomyID uuid.UUID) {
	if c.store == nil {
		return
	}
	c.store.InvalidatePattern(ctx, TaxonomyPattern(tenantID, taxonomyID))
	c.store.InvalidatePattern(ctx, ListPattern(tenantID))
}

// InvalidateLists removes the tenant's list entries only. Used after a
// create or clone, where no existing tree/detail entry can be stale.
func (c *Coordinator) InvalidateLists(ctx context.Context, tenantID uuid.UUID) {
	if c.store == nil {
		return
	}
	c.store.InvalidatePattern(ctx, ListPattern(tenantID))
}
