package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/database"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

// CategoryRepository provides data access for category nodes.
type CategoryRepository interface {
	Create(ctx context.Context, cat *models.Category) error
	Update(ctx context.Context, cat *models.Category) error
	SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Category, error)
	// ListActiveByTaxonomy returns all active, non-deleted categories of a
	// taxonomy ordered by (level, sort_order). Level order guarantees every
	// parent precedes its children, which the clone engine relies on.
	ListActiveByTaxonomy(ctx context.Context, taxonomyID, tenantID uuid.UUID) ([]*models.Category, error)
	// MaterializeTree walks the category tree from its roots and returns
	// the flat, ordered row sequence annotated with ancestor chains and
	// traversal depth. maxDepth <= 0 means unbounded.
	MaterializeTree(ctx context.Context, taxonomyID, tenantID uuid.UUID, maxDepth int) ([]*models.CategoryTreeRow, error)
	CountActiveChildren(ctx context.Context, parentID, tenantID uuid.UUID) (int, error)
	SetLeaf(ctx context.Context, id, tenantID uuid.UUID, isLeaf bool) error
}

type categoryRepository struct{}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository() CategoryRepository {
	return &categoryRepository{}
}

var _ CategoryRepository = (*categoryRepository)(nil)

const categoryColumns = `id, tenant_id, taxonomy_id, parent_id, name, slug, description,
	       level, path, sort_order, is_leaf, is_active, ai_generated,
	       confidence_score, usage_count, metadata,
	       created_by, updated_by, created_at, updated_at, deleted_at`

func (r *categoryRepository) Create(ctx context.Context, cat *models.Category) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO categories (
			tenant_id, taxonomy_id, parent_id, name, slug, description,
			level, path, sort_order, is_leaf, is_active, ai_generated,
			confidence_score, usage_count, metadata,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		cat.TenantID,
		cat.TaxonomyID,
		cat.ParentID,
		cat.Name,
		cat.Slug,
		nullString(cat.Description),
		cat.Level,
		cat.Path,
		cat.SortOrder,
		cat.IsLeaf,
		cat.IsActive,
		cat.AIGenerated,
		cat.ConfidenceScore,
		cat.UsageCount,
		cat.Metadata,
		cat.CreatedBy,
		cat.UpdatedBy,
		now,
		now,
	).Scan(&cat.ID, &cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

func (r *categoryRepository) Update(ctx context.Context, cat *models.Category) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE categories
		SET name = $3, slug = $4, description = $5, parent_id = $6, level = $7,
		    path = $8, sort_order = $9, is_leaf = $10, is_active = $11,
		    metadata = $12, updated_by = $13, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		cat.ID,
		cat.TenantID,
		cat.Name,
		cat.Slug,
		nullString(cat.Description),
		cat.ParentID,
		cat.Level,
		cat.Path,
		cat.SortOrder,
		cat.IsLeaf,
		cat.IsActive,
		cat.Metadata,
		cat.UpdatedBy,
	).Scan(&cat.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	return nil
}

func (r *categoryRepository) SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE categories
		SET deleted_at = now(), is_active = false, updated_by = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	result, err := scope.Conn.Exec(ctx, query, id, tenantID, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to soft-delete category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Category, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	row := scope.Conn.QueryRow(ctx, query, id, tenantID)
	cat, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return cat, nil
}

func (r *categoryRepository) ListActiveByTaxonomy(ctx context.Context, taxonomyID, tenantID uuid.UUID) ([]*models.Category, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE taxonomy_id = $1 AND tenant_id = $2
		  AND is_active = true AND deleted_at IS NULL
		ORDER BY level, sort_order`

	rows, err := scope.Conn.Query(ctx, query, taxonomyID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *categoryRepository) MaterializeTree(ctx context.Context, taxonomyID, tenantID uuid.UUID, maxDepth int) ([]*models.CategoryTreeRow, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		WITH RECURSIVE tree AS (
			SELECT c.*, ARRAY[]::uuid[] AS ancestors, 0 AS depth
			FROM categories c
			WHERE c.taxonomy_id = $1 AND c.tenant_id = $2
			  AND c.parent_id IS NULL
			  AND c.is_active = true AND c.deleted_at IS NULL
			UNION ALL
			SELECT c.*, t.ancestors || t.id, t.depth + 1
			FROM categories c
			JOIN tree t ON c.parent_id = t.id
			WHERE c.tenant_id = $2
			  AND c.is_active = true AND c.deleted_at IS NULL
			  AND ($3 <= 0 OR t.depth + 1 <= $3)
		)
		SELECT id, tenant_id, taxonomy_id, parent_id, name, slug, description,
		       level, path, sort_order, is_leaf, is_active, ai_generated,
		       confidence_score, usage_count, metadata,
		       created_by, updated_by, created_at, updated_at, deleted_at,
		       ancestors, depth
		FROM tree
		ORDER BY level, sort_order, name`

	rows, err := scope.Conn.Query(ctx, query, taxonomyID, tenantID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize category tree: %w", err)
	}
	defer rows.Close()

	var result []*models.CategoryTreeRow
	for rows.Next() {
		row, err := scanCategoryTreeRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category tree: %w", err)
	}

	return result, nil
}

func (r *categoryRepository) CountActiveChildren(ctx context.Context, parentID, tenantID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*)
		FROM categories
		WHERE parent_id = $1 AND tenant_id = $2
		  AND is_active = true AND deleted_at IS NULL`

	var count int
	if err := scope.Conn.QueryRow(ctx, query, parentID, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active children: %w", err)
	}

	return count, nil
}

func (r *categoryRepository) SetLeaf(ctx context.Context, id, tenantID uuid.UUID, isLeaf bool) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE categories
		SET is_leaf = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	result, err := scope.Conn.Exec(ctx, query, id, tenantID, isLeaf)
	if err != nil {
		return fmt.Errorf("failed to set leaf flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanCategoryFields(row pgx.Row, c *models.Category, extra ...any) error {
	var description *string

	dest := []any{
		&c.ID,
		&c.TenantID,
		&c.TaxonomyID,
		&c.ParentID,
		&c.Name,
		&c.Slug,
		&description,
		&c.Level,
		&c.Path,
		&c.SortOrder,
		&c.IsLeaf,
		&c.IsActive,
		&c.AIGenerated,
		&c.ConfidenceScore,
		&c.UsageCount,
		&c.Metadata,
		&c.CreatedBy,
		&c.UpdatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("failed to scan category: %w", err)
	}

	if description != nil {
		c.Description = *description
	}

	return nil
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := scanCategoryFields(row, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCategoryTreeRow(row pgx.Row) (*models.CategoryTreeRow, error) {
	var r models.CategoryTreeRow
	if err := scanCategoryFields(row, &r.Category, &r.Ancestors, &r.Depth); err != nil {
		return nil, err
	}
	return &r, nil
}
