package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

func cloneSource() *models.Taxonomy {
	return &models.Taxonomy{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		Namespace:      "events",
		Name:           "Music Events",
		Slug:           "music-events",
		Description:    "live music",
		Version:        4,
		Status:         models.TaxonomyStatusActive,
		IsSystem:       true,
		IsHierarchical: true,
		MaxDepth:       3,
	}
}

func sourceCategory(tenantID, taxonomyID, id uuid.UUID, parentID *uuid.UUID, name string, level int) *models.Category {
	return &models.Category{
		ID:         id,
		TenantID:   tenantID,
		TaxonomyID: taxonomyID,
		ParentID:   parentID,
		Name:       name,
		Slug:       Slugify(name),
		Level:      level,
		Path:       "/" + Slugify(name),
		IsActive:   true,
		UsageCount: 42,
		Metadata:   models.JSONBMap{"color": "red"},
	}
}

func TestBuildClonePlanNewTaxonomy(t *testing.T) {
	source := cloneSource()

	newTax, clones := BuildClonePlan(source, nil, CloneInput{Name: "Music Events Copy"}, "cloner")

	assert.Equal(t, "events", newTax.Namespace, "namespace defaults to the source's")
	assert.Equal(t, "music-events-copy", newTax.Slug, "slug defaults to a slugified name")
	assert.Equal(t, 1, newTax.Version, "clone starts a fresh version history")
	assert.Equal(t, models.TaxonomyStatusDraft, newTax.Status)
	assert.False(t, newTax.IsSystem, "clones are never system taxonomies")
	assert.Equal(t, source.MaxDepth, newTax.MaxDepth)
	assert.Equal(t, source.IsHierarchical, newTax.IsHierarchical)
	assert.Equal(t, source.ID.String(), newTax.Metadata[MetadataClonedFrom])
	assert.Equal(t, "cloner", newTax.CreatedBy)
	assert.Empty(t, clones)
}

func TestBuildClonePlanExplicitTarget(t *testing.T) {
	source := cloneSource()

	newTax, _ := BuildClonePlan(source, nil, CloneInput{
		Name:      "Copy",
		Namespace: "archive",
		Slug:      "music-v2",
	}, "cloner")

	assert.Equal(t, "archive", newTax.Namespace)
	assert.Equal(t, "music-v2", newTax.Slug)
}

func TestBuildClonePlanRemapsParents(t *testing.T) {
	source := cloneSource()
	rootID := uuid.New()
	childID := uuid.New()
	grandID := uuid.New()

	// Level order: every parent precedes its children.
	categories := []*models.Category{
		sourceCategory(source.TenantID, source.ID, rootID, nil, "Music", 0),
		sourceCategory(source.TenantID, source.ID, childID, &rootID, "Rock", 1),
		sourceCategory(source.TenantID, source.ID, grandID, &childID, "Metal", 2),
	}

	_, clones := BuildClonePlan(source, categories, CloneInput{Name: "Copy"}, "cloner")
	require.Len(t, clones, 3)

	oldIDs := map[uuid.UUID]bool{rootID: true, childID: true, grandID: true}
	for _, clone := range clones {
		assert.False(t, oldIDs[clone.ID], "clone ids must be freshly generated")
		assert.Equal(t, 0, clone.UsageCount, "usage counters reset on clone")
		assert.Equal(t, "cloner", clone.CreatedBy)
	}

	assert.Nil(t, clones[0].ParentID)
	require.NotNil(t, clones[1].ParentID)
	assert.Equal(t, clones[0].ID, *clones[1].ParentID)
	require.NotNil(t, clones[2].ParentID)
	assert.Equal(t, clones[1].ID, *clones[2].ParentID)
}

func TestBuildClonePlanRecordsSourceIDs(t *testing.T) {
	source := cloneSource()
	rootID := uuid.New()
	categories := []*models.Category{
		sourceCategory(source.TenantID, source.ID, rootID, nil, "Music", 0),
	}

	_, clones := BuildClonePlan(source, categories, CloneInput{Name: "Copy"}, "cloner")
	require.Len(t, clones, 1)

	assert.Equal(t, rootID.String(), clones[0].Metadata[MetadataClonedFrom])
	assert.Equal(t, "red", clones[0].Metadata["color"], "source metadata carries over")

	// The source's metadata map must not be mutated.
	assert.NotContains(t, categories[0].Metadata, MetadataClonedFrom)
}

func TestBuildClonePlanDropsOrphanedBranches(t *testing.T) {
	source := cloneSource()
	missingID := uuid.New() // inactive parent, excluded from the input
	orphanID := uuid.New()
	rootID := uuid.New()

	categories := []*models.Category{
		sourceCategory(source.TenantID, source.ID, rootID, nil, "Music", 0),
		sourceCategory(source.TenantID, source.ID, orphanID, &missingID, "Lost", 1),
	}

	_, clones := BuildClonePlan(source, categories, CloneInput{Name: "Copy"}, "cloner")

	require.Len(t, clones, 1)
	assert.Equal(t, "Music", clones[0].Name)
}
