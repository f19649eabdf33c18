// Package repositories provides tenant-scoped data access for
// taxonomy-engine. Every query carries explicit tenant_id and
// deleted_at IS NULL predicates; a row that exists under another tenant is
// indistinguishable from a row that does not exist.
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

// TaxonomyListFilter narrows and pages a taxonomy list query.
type TaxonomyListFilter struct {
	Namespace string
	Status    models.TaxonomyStatus
	Limit     int
	Offset    int
}

// TaxonomyRepository provides data access for taxonomies.
type TaxonomyRepository interface {
	Create(ctx context.Context, tax *models.Taxonomy) error
	Update(ctx context.Context, tax *models.Taxonomy) error
	SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Taxonomy, error)
	GetByNamespaceAndSlug(ctx context.Context, tenantID uuid.UUID, namespace, slug string) (*models.Taxonomy, error)
	List(ctx context.Context, tenantID uuid.UUID, filter TaxonomyListFilter) ([]*models.Taxonomy, error)
	// CreateWithCategories inserts the taxonomy and all category rows in a
	// single transaction. Used by the clone engine: a failure at any insert
	// leaves zero rows for the new taxonomy.
	CreateWithCategories(ctx context.Context, tax *models.Taxonomy, categories []*models.Category) error
}

type taxonomyRepository struct{}

// NewTaxonomyRepository creates a new TaxonomyRepository.
func NewTaxonomyRepository() TaxonomyRepository {
	return &taxonomyRepository{}
}

var _ TaxonomyRepository = (*taxonomyRepository)(nil)

const taxonomyColumns = `id, tenant_id, namespace, name, slug, description, version, status,
	       is_system, is_hierarchical, max_depth, metadata,
	       created_by, updated_by, created_at, updated_at, deleted_at`

func (r *taxonomyRepository) Create(ctx context.Context, tax *models.Taxonomy) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO taxonomies (
			tenant_id, namespace, name, slug, description, version, status,
			is_system, is_hierarchical, max_depth, metadata,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		tax.TenantID,
		tax.Namespace,
		tax.Name,
		tax.Slug,
		nullString(tax.Description),
		tax.Version,
		tax.Status,
		tax.IsSystem,
		tax.IsHierarchical,
		tax.MaxDepth,
		tax.Metadata,
		tax.CreatedBy,
		tax.UpdatedBy,
		now,
		now,
	).Scan(&tax.ID, &tax.CreatedAt, &tax.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create taxonomy: %w", err)
	}

	return nil
}

func (r *taxonomyRepository) Update(ctx context.Context, tax *models.Taxonomy) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE taxonomies
		SET name = $3, slug = $4, description = $5, version = $6, status = $7,
		    max_depth = $8, metadata = $9, updated_by = $10, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		tax.ID,
		tax.TenantID,
		tax.Name,
		tax.Slug,
		nullString(tax.Description),
		tax.Version,
		tax.Status,
		tax.MaxDepth,
		tax.Metadata,
		tax.UpdatedBy,
	).Scan(&tax.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update taxonomy: %w", err)
	}

	return nil
}

// SoftDelete marks the taxonomy deleted and forces its status to archived.
// Downstream consumers filter on status, so the coupling is load-bearing.
func (r *taxonomyRepository) SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE taxonomies
		SET deleted_at = now(), status = $3, updated_by = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	result, err := scope.Conn.Exec(ctx, query, id, tenantID, models.TaxonomyStatusArchived, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to soft-delete taxonomy: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *taxonomyRepository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Taxonomy, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + taxonomyColumns + `
		FROM taxonomies
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	row := scope.Conn.QueryRow(ctx, query, id, tenantID)
	tax, err := scanTaxonomy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return tax, nil
}

func (r *taxonomyRepository) GetByNamespaceAndSlug(ctx context.Context, tenantID uuid.UUID, namespace, slug string) (*models.Taxonomy, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + taxonomyColumns + `
		FROM taxonomies
		WHERE tenant_id = $1 AND namespace = $2 AND slug = $3 AND deleted_at IS NULL`

	row := scope.Conn.QueryRow(ctx, query, tenantID, namespace, slug)
	tax, err := scanTaxonomy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // not found: callers use this for uniqueness checks
		}
		return nil, err
	}

	return tax, nil
}

func (r *taxonomyRepository) List(ctx context.Context, tenantID uuid.UUID, filter TaxonomyListFilter) ([]*models.Taxonomy, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + taxonomyColumns + `
		FROM taxonomies
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR namespace = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY namespace, name
		LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := scope.Conn.Query(ctx, query, tenantID, filter.Namespace, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query taxonomies: %w", err)
	}
	defer rows.Close()

	var taxonomies []*models.Taxonomy
	for rows.Next() {
		tax, err := scanTaxonomy(rows)
		if err != nil {
			return nil, err
		}
		taxonomies = append(taxonomies, tax)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating taxonomies: %w", err)
	}

	return taxonomies, nil
}

func (r *taxonomyRepository) CreateWithCategories(ctx context.Context, tax *models.Taxonomy, categories []*models.Category) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	now := time.Now()

	err = tx.QueryRow(ctx, `
		INSERT INTO taxonomies (
			tenant_id, namespace, name, slug, description, version, status,
			is_system, is_hierarchical, max_depth, metadata,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		tax.TenantID,
		tax.Namespace,
		tax.Name,
		tax.Slug,
		nullString(tax.Description),
		tax.Version,
		tax.Status,
		tax.IsSystem,
		tax.IsHierarchical,
		tax.MaxDepth,
		tax.Metadata,
		tax.CreatedBy,
		tax.UpdatedBy,
		now,
		now,
	).Scan(&tax.ID, &tax.CreatedAt, &tax.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create taxonomy: %w", err)
	}

	// Category ids are assigned by the caller (the clone engine resolves
	// parent references before any row exists), so they are inserted verbatim.
	for _, cat := range categories {
		cat.TaxonomyID = tax.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO categories (
				id, tenant_id, taxonomy_id, parent_id, name, slug, description,
				level, path, sort_order, is_leaf, is_active, ai_generated,
				confidence_score, usage_count, metadata,
				created_by, updated_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			RETURNING created_at, updated_at`,
			cat.ID,
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
		).Scan(&cat.CreatedAt, &cat.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create category %q: %w", cat.Slug, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit taxonomy with categories: %w", err)
	}

	return nil
}

func scanTaxonomy(row pgx.Row) (*models.Taxonomy, error) {
	var t models.Taxonomy
	var description *string

	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.Namespace,
		&t.Name,
		&t.Slug,
		&description,
		&t.Version,
		&t.Status,
		&t.IsSystem,
		&t.IsHierarchical,
		&t.MaxDepth,
		&t.Metadata,
		&t.CreatedBy,
		&t.UpdatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan taxonomy: %w", err)
	}

	if description != nil {
		t.Description = *description
	}

	return &t, nil
}
