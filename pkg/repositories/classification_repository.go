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

// ClassificationRepository provides data access for entity classifications.
type ClassificationRepository interface {
	Create(ctx context.Context, cl *models.Classification) error
	// CountByTaxonomy returns the number of non-deleted classifications
	// referencing the taxonomy. A nonzero count blocks taxonomy deletion.
	CountByTaxonomy(ctx context.Context, taxonomyID, tenantID uuid.UUID) (int, error)
	ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string) ([]*models.Classification, error)
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status models.ClassificationStatus) error
}

type classificationRepository struct{}

// NewClassificationRepository creates a new ClassificationRepository.
func NewClassificationRepository() ClassificationRepository {
	return &classificationRepository{}
}

var _ ClassificationRepository = (*classificationRepository)(nil)

func (r *classificationRepository) Create(ctx context.Context, cl *models.Classification) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO classifications (
			tenant_id, taxonomy_id, category_id, entity_type, entity_id,
			confidence_score, status, assigned_by, expires_at, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		cl.TenantID,
		cl.TaxonomyID,
		cl.CategoryID,
		cl.EntityType,
		cl.EntityID,
		cl.ConfidenceScore,
		cl.Status,
		cl.AssignedBy,
		cl.ExpiresAt,
		cl.Metadata,
		now,
		now,
	).Scan(&cl.ID, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create classification: %w", err)
	}

	return nil
}

func (r *classificationRepository) CountByTaxonomy(ctx context.Context, taxonomyID, tenantID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT COUNT(*)
		FROM classifications
		WHERE taxonomy_id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	var count int
	if err := scope.Conn.QueryRow(ctx, query, taxonomyID, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count classifications: %w", err)
	}

	return count, nil
}

func (r *classificationRepository) ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string) ([]*models.Classification, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, tenant_id, taxonomy_id, category_id, entity_type, entity_id,
		       confidence_score, status, assigned_by, expires_at, metadata,
		       created_at, updated_at, deleted_at
		FROM classifications
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		  AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, tenantID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	var classifications []*models.Classification
	for rows.Next() {
		cl, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		classifications = append(classifications, cl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classifications: %w", err)
	}

	return classifications, nil
}

func (r *classificationRepository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status models.ClassificationStatus) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE classifications
		SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	result, err := scope.Conn.Exec(ctx, query, id, tenantID, status)
	if err != nil {
		return fmt.Errorf("failed to update classification status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanClassification(row pgx.Row) (*models.Classification, error) {
	var c models.Classification

	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.TaxonomyID,
		&c.CategoryID,
		&c.EntityType,
		&c.EntityID,
		&c.ConfidenceScore,
		&c.Status,
		&c.AssignedBy,
		&c.ExpiresAt,
		&c.Metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan classification: %w", err)
	}

	return &c, nil
}
