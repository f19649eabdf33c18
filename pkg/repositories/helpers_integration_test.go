//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/taxonomy-engine/pkg/database"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/testhelpers"
)

// scopedContext acquires a tenant-scoped connection for tenantID and
// returns a context repositories can run against. The scope is released
// when the test finishes.
func scopedContext(t *testing.T, tenantID uuid.UUID) context.Context {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	scope, err := testDB.DB.WithTenant(context.Background(), tenantID)
	require.NoError(t, err)
	t.Cleanup(scope.Close)

	return database.SetTenantScope(context.Background(), scope)
}

func newTestTaxonomy(tenantID uuid.UUID) *models.Taxonomy {
	return &models.Taxonomy{
		TenantID:       tenantID,
		Namespace:      "events",
		Name:           "Music Events",
		Slug:           "music-events-" + uuid.NewString()[:8],
		Description:    "Genres and venues",
		Version:        1,
		Status:         models.TaxonomyStatusActive,
		IsHierarchical: true,
		MaxDepth:       5,
		Metadata:       models.JSONBMap{},
		CreatedBy:      "tester",
		UpdatedBy:      "tester",
	}
}

func newTestCategory(tax *models.Taxonomy, parent *models.Category, name, slug string) *models.Category {
	cat := &models.Category{
		TenantID:   tax.TenantID,
		TaxonomyID: tax.ID,
		Name:       name,
		Slug:       slug,
		Path:       "/" + slug,
		IsLeaf:     true,
		IsActive:   true,
		Metadata:   models.JSONBMap{},
		CreatedBy:  "tester",
		UpdatedBy:  "tester",
	}
	if parent != nil {
		cat.ParentID = &parent.ID
		cat.Level = parent.Level + 1
		cat.Path = parent.Path + "/" + slug
	}
	return cat
}
