package services

import (
	"github.com/google/uuid"

	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

// MetadataClonedFrom is the metadata key recording the source id on a
// cloned taxonomy and on each cloned category.
const MetadataClonedFrom = "cloned_from"

// CloneInput names the taxonomy a clone operation should produce.
// Namespace and Slug default to the source's namespace and a slug derived
// from Name when empty.
type CloneInput struct {
	Name      string
	Namespace string
	Slug      string
}

// BuildClonePlan produces the new taxonomy row and remapped category rows
// for cloning source's active subtree. categories must be ordered by
// (level ascending, sort_order ascending): level order is topological
// order in a tree, so one forward pass resolves every parent reference
// from ids already generated earlier in the walk. No recursion or
// fixup passes are needed.
//
// Cloned categories copy the source's structure and flags, reset
// usage_count to zero and record their source id under "cloned_from".
// A category whose parent is not part of the plan (an active child of an
// inactive parent) is dropped, mirroring the tree builder's orphan policy.
func BuildClonePlan(source *models.Taxonomy, categories []*models.Category, input CloneInput, userID string) (*models.Taxonomy, []*models.Category) {
	namespace := input.Namespace
	if namespace == "" {
		namespace = source.Namespace
	}
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}

	newTax := &models.Taxonomy{
		TenantID:       source.TenantID,
		Namespace:      namespace,
		Name:           input.Name,
		Slug:           slug,
		Description:    source.Description,
		Version:        1,
		Status:         models.TaxonomyStatusDraft,
		IsSystem:       false,
		IsHierarchical: source.IsHierarchical,
		MaxDepth:       source.MaxDepth,
		Metadata: models.JSONBMap{
			MetadataClonedFrom: source.ID.String(),
		},
		CreatedBy: userID,
		UpdatedBy: userID,
	}

	idMap := make(map[uuid.UUID]uuid.UUID, len(categories))
	clones := make([]*models.Category, 0, len(categories))

	for _, src := range categories {
		var parentID *uuid.UUID
		if src.ParentID != nil {
			mapped, ok := idMap[*src.ParentID]
			if !ok {
				continue
			}
			parentID = &mapped
		}

		newID := uuid.New()
		idMap[src.ID] = newID

		metadata := make(models.JSONBMap, len(src.Metadata)+1)
		for k, v := range src.Metadata {
			metadata[k] = v
		}
		metadata[MetadataClonedFrom] = src.ID.String()

		clones = append(clones, &models.Category{
			ID:              newID,
			TenantID:        src.TenantID,
			ParentID:        parentID,
			Name:            src.Name,
			Slug:            src.Slug,
			Description:     src.Description,
			Level:           src.Level,
			Path:            src.Path,
			SortOrder:       src.SortOrder,
			IsLeaf:          src.IsLeaf,
			IsActive:        src.IsActive,
			AIGenerated:     src.AIGenerated,
			ConfidenceScore: src.ConfidenceScore,
			UsageCount:      0,
			Metadata:        metadata,
			CreatedBy:       userID,
			UpdatedBy:       userID,
		})
	}

	return newTax, clones
}
