package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/audit"
	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/cache"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
)

// CreateCategoryInput carries the fields for creating a category node.
type CreateCategoryInput struct {
	TaxonomyID      uuid.UUID       `json:"taxonomy_id"`
	ParentID        *uuid.UUID      `json:"parent_id,omitempty"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug,omitempty"`
	Description     string          `json:"description,omitempty"`
	SortOrder       int             `json:"sort_order,omitempty"`
	AIGenerated     bool            `json:"ai_generated,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	Metadata        models.JSONBMap `json:"metadata,omitempty"`
}

// CategoryService manages category nodes inside a taxonomy. Level, path
// and is_leaf are derived here, never accepted from callers: a node's
// level is parent level plus one, its path is the parent path plus its
// own slug, and is_leaf tracks whether it has active children.
type CategoryService interface {
	// Create inserts a category under the given parent (or as a root when
	// ParentID is nil). Fails with apperrors.ErrValidation when the parent
	// belongs to another taxonomy or the taxonomy's max depth is exceeded.
	Create(ctx context.Context, input CreateCategoryInput) (*models.Category, error)

	// Get returns a single category.
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)

	// Update applies a patch. Re-parenting and slug changes are restricted
	// to nodes without active children, since descendant paths embed the
	// node's slug and position; either mutation on an interior node fails
	// with apperrors.ErrValidation.
	Update(ctx context.Context, id uuid.UUID, patch *models.CategoryPatch) (*models.Category, error)

	// Remove soft-deletes a category that has no active children.
	Remove(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	catRepo   repositories.CategoryRepository
	taxRepo   repositories.TaxonomyRepository
	cache     *cache.Coordinator
	auditor   audit.Recorder
	getTenant TenantContextFunc
	logger    *zap.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(
	catRepo repositories.CategoryRepository,
	taxRepo repositories.TaxonomyRepository,
	cacheCoord *cache.Coordinator,
	auditor audit.Recorder,
	getTenant TenantContextFunc,
	logger *zap.Logger,
) CategoryService {
	return &categoryService{
		catRepo:   catRepo,
		taxRepo:   taxRepo,
		cache:     cacheCoord,
		auditor:   auditor,
		getTenant: getTenant,
		logger:    logger.Named("category-service"),
	}
}

var _ CategoryService = (*categoryService)(nil)

func (s *categoryService) Create(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	tax, err := s.taxRepo.GetByID(tenantCtx, input.TaxonomyID, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	level := 0
	path := "/" + slug
	var parent *models.Category
	if input.ParentID != nil {
		parent, err = s.catRepo.GetByID(tenantCtx, *input.ParentID, actor.TenantID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: parent category not found", apperrors.ErrValidation)
			}
			return nil, fmt.Errorf("load parent category: %w", err)
		}
		if parent.TaxonomyID != input.TaxonomyID {
			return nil, fmt.Errorf("%w: parent belongs to a different taxonomy", apperrors.ErrValidation)
		}
		level = parent.Level + 1
		path = parent.Path + "/" + slug
	}

	if tax.IsHierarchical && level > tax.MaxDepth {
		return nil, fmt.Errorf("%w: level %d exceeds max depth %d", apperrors.ErrValidation, level, tax.MaxDepth)
	}
	if !tax.IsHierarchical && level > 0 {
		return nil, fmt.Errorf("%w: taxonomy is flat, nested categories are not allowed", apperrors.ErrValidation)
	}

	cat := &models.Category{
		TenantID:        actor.TenantID,
		TaxonomyID:      input.TaxonomyID,
		ParentID:        input.ParentID,
		Name:            input.Name,
		Slug:            slug,
		Description:     input.Description,
		Level:           level,
		Path:            path,
		SortOrder:       input.SortOrder,
		IsLeaf:          true,
		IsActive:        true,
		AIGenerated:     input.AIGenerated,
		ConfidenceScore: input.ConfidenceScore,
		Metadata:        input.Metadata,
		CreatedBy:       actor.UserID,
		UpdatedBy:       actor.UserID,
	}

	if err := s.catRepo.Create(tenantCtx, cat); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrConflict
		}
		s.logger.Error("Failed to create category",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", input.TaxonomyID.String()),
			zap.String("slug", slug),
			zap.Error(err))
		return nil, fmt.Errorf("create category: %w", err)
	}

	// The parent just gained a child.
	if parent != nil && parent.IsLeaf {
		if err := s.catRepo.SetLeaf(tenantCtx, parent.ID, actor.TenantID, false); err != nil {
			s.logger.Warn("Failed to clear parent leaf flag",
				zap.String("category_id", parent.ID.String()),
				zap.Error(err))
		}
	}

	s.auditor.Record(ctx, audit.ActionCategoryCreate, "category", cat.ID, nil, cat, nil)
	s.cache.InvalidateTaxonomy(ctx, actor.TenantID, input.TaxonomyID)

	s.logger.Info("Created category",
		zap.String("category_id", cat.ID.String()),
		zap.String("taxonomy_id", input.TaxonomyID.String()),
		zap.String("path", cat.Path))

	return cat, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	cat, err := s.catRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return cat, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, patch *models.CategoryPatch) (*models.Category, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	current, err := s.catRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load category: %w", err)
	}

	old := *current
	updated := *current

	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Slug != nil {
		updated.Slug = *patch.Slug
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.SortOrder != nil {
		updated.SortOrder = *patch.SortOrder
	}
	if patch.IsActive != nil {
		updated.IsActive = *patch.IsActive
	}
	if patch.Metadata != nil {
		updated.Metadata = patch.Metadata
	}

	var oldParent, newParent *models.Category
	reparented := patch.ParentID != nil && !sameParent(current.ParentID, *patch.ParentID)
	slugChanged := patch.Slug != nil && *patch.Slug != current.Slug

	if reparented || slugChanged {
		// Descendant paths embed this node's slug, so moving or renaming an
		// interior node would require rewriting the whole subtree. Only
		// childless nodes change their position or slug.
		children, err := s.catRepo.CountActiveChildren(tenantCtx, id, actor.TenantID)
		if err != nil {
			return nil, fmt.Errorf("count active children: %w", err)
		}
		if children > 0 {
			if reparented {
				return nil, fmt.Errorf("%w: cannot move a category with active children", apperrors.ErrValidation)
			}
			return nil, fmt.Errorf("%w: cannot change the slug of a category with active children", apperrors.ErrValidation)
		}
	}

	if reparented {
		if *patch.ParentID != uuid.Nil {
			if *patch.ParentID == id {
				return nil, fmt.Errorf("%w: category cannot be its own parent", apperrors.ErrValidation)
			}
			newParent, err = s.catRepo.GetByID(tenantCtx, *patch.ParentID, actor.TenantID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, fmt.Errorf("%w: parent category not found", apperrors.ErrValidation)
				}
				return nil, fmt.Errorf("load parent category: %w", err)
			}
			if newParent.TaxonomyID != current.TaxonomyID {
				return nil, fmt.Errorf("%w: parent belongs to a different taxonomy", apperrors.ErrValidation)
			}
			pid := *patch.ParentID
			updated.ParentID = &pid
			updated.Level = newParent.Level + 1
		} else {
			updated.ParentID = nil
			updated.Level = 0
		}

		tax, err := s.taxRepo.GetByID(tenantCtx, current.TaxonomyID, actor.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		if tax.IsHierarchical && updated.Level > tax.MaxDepth {
			return nil, fmt.Errorf("%w: level %d exceeds max depth %d", apperrors.ErrValidation, updated.Level, tax.MaxDepth)
		}

		if current.ParentID != nil {
			oldParent, err = s.catRepo.GetByID(tenantCtx, *current.ParentID, actor.TenantID)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("load previous parent: %w", err)
			}
		}
	}

	// Path is derived, so any slug or parent change recomputes it.
	if reparented || slugChanged {
		if updated.ParentID != nil {
			p := newParent
			if p == nil {
				p, err = s.catRepo.GetByID(tenantCtx, *updated.ParentID, actor.TenantID)
				if err != nil {
					return nil, fmt.Errorf("load parent category: %w", err)
				}
			}
			updated.Path = p.Path + "/" + updated.Slug
		} else {
			updated.Path = "/" + updated.Slug
		}
	}

	updated.UpdatedBy = actor.UserID

	if err := s.catRepo.Update(tenantCtx, &updated); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		s.logger.Error("Failed to update category",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("category_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("update category: %w", err)
	}

	if reparented {
		s.maintainLeafFlags(tenantCtx, actor.TenantID, oldParent, newParent)
	}

	s.auditor.Record(ctx, audit.ActionCategoryUpdate, "category", id, &old, &updated, nil)
	s.cache.InvalidateTaxonomy(ctx, actor.TenantID, current.TaxonomyID)

	return &updated, nil
}

func (s *categoryService) Remove(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	current, err := s.catRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("load category: %w", err)
	}

	children, err := s.catRepo.CountActiveChildren(tenantCtx, id, actor.TenantID)
	if err != nil {
		return fmt.Errorf("count active children: %w", err)
	}
	if children > 0 {
		return fmt.Errorf("%w: category has active children", apperrors.ErrValidation)
	}

	if err := s.catRepo.SoftDelete(tenantCtx, id, actor.TenantID, actor.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		s.logger.Error("Failed to delete category",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("category_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("delete category: %w", err)
	}

	// If this was the parent's last active child, the parent is a leaf again.
	if current.ParentID != nil {
		remaining, err := s.catRepo.CountActiveChildren(tenantCtx, *current.ParentID, actor.TenantID)
		if err != nil {
			s.logger.Warn("Failed to count remaining siblings",
				zap.String("category_id", current.ParentID.String()),
				zap.Error(err))
		} else if remaining == 0 {
			if err := s.catRepo.SetLeaf(tenantCtx, *current.ParentID, actor.TenantID, true); err != nil {
				s.logger.Warn("Failed to restore parent leaf flag",
					zap.String("category_id", current.ParentID.String()),
					zap.Error(err))
			}
		}
	}

	s.auditor.Record(ctx, audit.ActionCategoryDelete, "category", id, current, nil, nil)
	s.cache.InvalidateTaxonomy(ctx, actor.TenantID, current.TaxonomyID)

	s.logger.Info("Deleted category",
		zap.String("category_id", id.String()),
		zap.String("taxonomy_id", current.TaxonomyID.String()))

	return nil
}

// maintainLeafFlags reconciles is_leaf on both sides of a move. Errors are
// logged and swallowed: a stale leaf flag is advisory, not structural.
func (s *categoryService) maintainLeafFlags(ctx context.Context, tenantID uuid.UUID, oldParent, newParent *models.Category) {
	if newParent != nil && newParent.IsLeaf {
		if err := s.catRepo.SetLeaf(ctx, newParent.ID, tenantID, false); err != nil {
			s.logger.Warn("Failed to clear parent leaf flag",
				zap.String("category_id", newParent.ID.String()),
				zap.Error(err))
		}
	}
	if oldParent == nil {
		return
	}
	remaining, err := s.catRepo.CountActiveChildren(ctx, oldParent.ID, tenantID)
	if err != nil {
		s.logger.Warn("Failed to count remaining siblings",
			zap.String("category_id", oldParent.ID.String()),
			zap.Error(err))
		return
	}
	if remaining == 0 {
		if err := s.catRepo.SetLeaf(ctx, oldParent.ID, tenantID, true); err != nil {
			s.logger.Warn("Failed to restore parent leaf flag",
				zap.String("category_id", oldParent.ID.String()),
				zap.Error(err))
		}
	}
}

// sameParent reports whether the requested parent target matches the
// current one. uuid.Nil targets the root level.
func sameParent(current *uuid.UUID, next uuid.UUID) bool {
	if next == uuid.Nil {
		return current == nil
	}
	return current != nil && *current == next
}
