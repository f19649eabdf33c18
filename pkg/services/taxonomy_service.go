package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/audit"
	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/cache"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
)

// CreateTaxonomyInput carries the fields for creating a taxonomy.
type CreateTaxonomyInput struct {
	Namespace      string          `json:"namespace"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug,omitempty"`
	Description    string          `json:"description,omitempty"`
	IsHierarchical bool            `json:"is_hierarchical"`
	MaxDepth       int             `json:"max_depth,omitempty"`
	Metadata       models.JSONBMap `json:"metadata,omitempty"`
}

// BulkOp is an operation applied to a set of taxonomies.
type BulkOp string

const (
	BulkOpActivate   BulkOp = "activate"
	BulkOpDeactivate BulkOp = "deactivate"
	BulkOpDelete     BulkOp = "delete"
)

// BulkResult aggregates per-id outcomes of a bulk operation.
// A failure on one id never aborts the others.
type BulkResult struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Errors    map[uuid.UUID]string `json:"errors,omitempty"`
}

// TaxonomyService orchestrates taxonomy lifecycle operations: it is the
// only component that accepts external intent, and the sole writer of the
// side effects around each mutation (audit entry, cache invalidation).
// Side effects are ordered store write -> audit -> invalidation;
// invalidation is best-effort and never fails the operation.
type TaxonomyService interface {
	// Create inserts a new taxonomy. Fails with apperrors.ErrConflict when
	// (namespace, slug) is already taken within the tenant.
	Create(ctx context.Context, input CreateTaxonomyInput) (*models.Taxonomy, error)

	// Get returns a single taxonomy, cache-first.
	Get(ctx context.Context, id uuid.UUID) (*models.Taxonomy, error)

	// List returns a filtered, paginated taxonomy page, cache-first.
	List(ctx context.Context, filter repositories.TaxonomyListFilter) ([]*models.Taxonomy, error)

	// Update applies a patch. The version counter bumps when name, status
	// or max_depth change. Fails with apperrors.ErrForbidden when the
	// taxonomy is system-owned and the actor is not elevated.
	Update(ctx context.Context, id uuid.UUID, patch *models.TaxonomyPatch) (*models.Taxonomy, error)

	// Remove soft-deletes a taxonomy, forcing status to archived. Fails
	// with apperrors.ErrHasDependencies while classifications reference it.
	Remove(ctx context.Context, id uuid.UUID) error

	// GetCategoryTree returns the materialized category tree, cache-first.
	// maxDepth <= 0 means unbounded.
	GetCategoryTree(ctx context.Context, id uuid.UUID, maxDepth int) ([]*models.CategoryTreeNode, error)

	// Clone copies the source taxonomy and its entire active category
	// subtree into a new draft taxonomy. The copy is atomic: a failure
	// leaves no partial rows.
	Clone(ctx context.Context, sourceID uuid.UUID, input CloneInput) (*models.Taxonomy, error)

	// BulkOperation applies op to each id independently and reports
	// per-id outcomes.
	BulkOperation(ctx context.Context, op BulkOp, ids []uuid.UUID) (*BulkResult, error)
}

type taxonomyService struct {
	taxRepo   repositories.TaxonomyRepository
	catRepo   repositories.CategoryRepository
	clsRepo   repositories.ClassificationRepository
	cache     *cache.Coordinator
	auditor   audit.Recorder
	getTenant TenantContextFunc
	logger    *zap.Logger
}

// NewTaxonomyService creates a new TaxonomyService.
func NewTaxonomyService(
	taxRepo repositories.TaxonomyRepository,
	catRepo repositories.CategoryRepository,
	clsRepo repositories.ClassificationRepository,
	cacheCoord *cache.Coordinator,
	auditor audit.Recorder,
	getTenant TenantContextFunc,
	logger *zap.Logger,
) TaxonomyService {
	return &taxonomyService{
		taxRepo:   taxRepo,
		catRepo:   catRepo,
		clsRepo:   clsRepo,
		cache:     cacheCoord,
		auditor:   auditor,
		getTenant: getTenant,
		logger:    logger.Named("taxonomy-service"),
	}
}

var _ TaxonomyService = (*taxonomyService)(nil)

func (s *taxonomyService) Create(ctx context.Context, input CreateTaxonomyInput) (*models.Taxonomy, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if input.Namespace == "" {
		return nil, fmt.Errorf("%w: namespace is required", apperrors.ErrValidation)
	}
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}
	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	existing, err := s.taxRepo.GetByNamespaceAndSlug(tenantCtx, actor.TenantID, input.Namespace, slug)
	if err != nil {
		s.logger.Error("Failed to check taxonomy uniqueness",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("namespace", input.Namespace),
			zap.String("slug", slug),
			zap.Error(err))
		return nil, fmt.Errorf("check taxonomy uniqueness: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrConflict
	}

	tax := &models.Taxonomy{
		TenantID:       actor.TenantID,
		Namespace:      input.Namespace,
		Name:           input.Name,
		Slug:           slug,
		Description:    input.Description,
		Version:        1,
		Status:         models.TaxonomyStatusDraft,
		IsHierarchical: input.IsHierarchical,
		MaxDepth:       maxDepth,
		Metadata:       input.Metadata,
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
	}

	if err := s.taxRepo.Create(tenantCtx, tax); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrConflict
		}
		s.logger.Error("Failed to create taxonomy",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("namespace", input.Namespace),
			zap.String("slug", slug),
			zap.Error(err))
		return nil, fmt.Errorf("create taxonomy: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionCreate, "taxonomy", tax.ID, nil, tax, nil)
	s.cache.InvalidateLists(ctx, actor.TenantID)

	s.logger.Info("Created taxonomy",
		zap.String("taxonomy_id", tax.ID.String()),
		zap.String("namespace", tax.Namespace),
		zap.String("slug", tax.Slug))

	return tax, nil
}

func (s *taxonomyService) Get(ctx context.Context, id uuid.UUID) (*models.Taxonomy, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if tax, ok := s.cache.GetTaxonomy(ctx, actor.TenantID, id); ok {
		return tax, nil
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	tax, err := s.taxRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		s.logger.Error("Failed to get taxonomy",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("get taxonomy: %w", err)
	}

	s.cache.SetTaxonomy(ctx, tax)
	return tax, nil
}

func (s *taxonomyService) List(ctx context.Context, filter repositories.TaxonomyListFilter) ([]*models.Taxonomy, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	params := map[string]string{
		"namespace": filter.Namespace,
		"status":    string(filter.Status),
		"limit":     strconv.Itoa(filter.Limit),
		"offset":    strconv.Itoa(filter.Offset),
	}

	if list, ok := s.cache.GetList(ctx, actor.TenantID, params); ok {
		return list, nil
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	list, err := s.taxRepo.List(tenantCtx, actor.TenantID, filter)
	if err != nil {
		s.logger.Error("Failed to list taxonomies",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("list taxonomies: %w", err)
	}

	s.cache.SetList(ctx, actor.TenantID, params, list)
	return list, nil
}

func (s *taxonomyService) Update(ctx context.Context, id uuid.UUID, patch *models.TaxonomyPatch) (*models.Taxonomy, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	current, err := s.taxRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	if current.IsSystem && !actor.Elevated {
		return nil, apperrors.ErrForbidden
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *patch.Status)
	}
	if patch.MaxDepth != nil && *patch.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: max_depth must be at least 1", apperrors.ErrValidation)
	}

	// Slug uniqueness is re-checked only when the slug actually changes.
	if patch.Slug != nil && *patch.Slug != current.Slug {
		existing, err := s.taxRepo.GetByNamespaceAndSlug(tenantCtx, actor.TenantID, current.Namespace, *patch.Slug)
		if err != nil {
			return nil, fmt.Errorf("check taxonomy uniqueness: %w", err)
		}
		if existing != nil {
			return nil, apperrors.ErrConflict
		}
	}

	old := *current
	updated := *current
	if current.StructuralChange(patch) {
		updated.Version++
	}
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Slug != nil {
		updated.Slug = *patch.Slug
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.MaxDepth != nil {
		updated.MaxDepth = *patch.MaxDepth
	}
	if patch.Metadata != nil {
		updated.Metadata = patch.Metadata
	}
	updated.UpdatedBy = actor.UserID

	if err := s.taxRepo.Update(tenantCtx, &updated); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		s.logger.Error("Failed to update taxonomy",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("update taxonomy: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionUpdate, "taxonomy", id, &old, &updated, nil)
	s.cache.InvalidateTaxonomy(ctx, actor.TenantID, id)

	s.logger.Info("Updated taxonomy",
		zap.String("taxonomy_id", id.String()),
		zap.Int("version", updated.Version))

	return &updated, nil
}

func (s *taxonomyService) Remove(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	current, err := s.taxRepo.GetByID(tenantCtx, id, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("load taxonomy: %w", err)
	}

	if current.IsSystem && !actor.Elevated {
		return apperrors.ErrForbidden
	}

	dependents, err := s.clsRepo.CountByTaxonomy(tenantCtx, id, actor.TenantID)
	if err != nil {
		s.logger.Error("Failed to count dependent classifications",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("count dependent classifications: %w", err)
	}
	if dependents > 0 {
		return apperrors.ErrHasDependencies
	}

	if err := s.taxRepo.SoftDelete(tenantCtx, id, actor.TenantID, actor.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		s.logger.Error("Failed to delete taxonomy",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("delete taxonomy: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionDelete, "taxonomy", id, current, nil, nil)
	s.cache.InvalidateTaxonomy(ctx, actor.TenantID, id)

	s.logger.Info("Deleted taxonomy",
		zap.String("taxonomy_id", id.String()))

	return nil
}

func (s *taxonomyService) GetCategoryTree(ctx context.Context, id uuid.UUID, maxDepth int) ([]*models.CategoryTreeNode, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if maxDepth < 0 {
		maxDepth = 0
	}

	if tree, ok := s.cache.GetTree(ctx, actor.TenantID, id, maxDepth); ok {
		return tree, nil
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	if _, err := s.taxRepo.GetByID(tenantCtx, id, actor.TenantID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	rows, err := s.catRepo.MaterializeTree(tenantCtx, id, actor.TenantID, maxDepth)
	if err != nil {
		s.logger.Error("Failed to materialize category tree",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("materialize category tree: %w", err)
	}

	tree := BuildCategoryTree(rows)
	s.cache.SetTree(ctx, actor.TenantID, id, maxDepth, tree)

	return tree, nil
}

func (s *taxonomyService) Clone(ctx context.Context, sourceID uuid.UUID, input CloneInput) (*models.Taxonomy, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	source, err := s.taxRepo.GetByID(tenantCtx, sourceID, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load source taxonomy: %w", err)
	}

	categories, err := s.catRepo.ListActiveByTaxonomy(tenantCtx, sourceID, actor.TenantID)
	if err != nil {
		s.logger.Error("Failed to list source categories",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("taxonomy_id", sourceID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("list source categories: %w", err)
	}

	newTax, clones := BuildClonePlan(source, categories, input, actor.UserID)

	existing, err := s.taxRepo.GetByNamespaceAndSlug(tenantCtx, actor.TenantID, newTax.Namespace, newTax.Slug)
	if err != nil {
		return nil, fmt.Errorf("check taxonomy uniqueness: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrConflict
	}

	if err := s.taxRepo.CreateWithCategories(tenantCtx, newTax, clones); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrConflict
		}
		s.logger.Error("Failed to clone taxonomy",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("clone taxonomy: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionClone, "taxonomy", newTax.ID, nil, newTax, map[string]any{
		"source_id":  sourceID.String(),
		"categories": len(clones),
	})
	// Only list caches go stale: the source taxonomy is untouched by a clone.
	s.cache.InvalidateLists(ctx, actor.TenantID)

	s.logger.Info("Cloned taxonomy",
		zap.String("source_id", sourceID.String()),
		zap.String("taxonomy_id", newTax.ID.String()),
		zap.Int("categories", len(clones)))

	return newTax, nil
}

func (s *taxonomyService) BulkOperation(ctx context.Context, op BulkOp, ids []uuid.UUID) (*BulkResult, error) {
	if _, err := auth.RequireActorFromContext(ctx); err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	result := &BulkResult{Errors: make(map[uuid.UUID]string)}

	for _, id := range ids {
		var err error
		switch op {
		case BulkOpActivate:
			status := models.TaxonomyStatusActive
			_, err = s.Update(ctx, id, &models.TaxonomyPatch{Status: &status})
		case BulkOpDeactivate:
			status := models.TaxonomyStatusDeprecated
			_, err = s.Update(ctx, id, &models.TaxonomyPatch{Status: &status})
		case BulkOpDelete:
			err = s.Remove(ctx, id)
		default:
			return nil, fmt.Errorf("%w: unknown bulk operation %q", apperrors.ErrValidation, op)
		}

		if err != nil {
			result.Failed++
			result.Errors[id] = err.Error()
			continue
		}
		result.Succeeded++
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	return result, nil
}
