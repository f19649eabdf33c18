package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/audit"
	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
)

// AssignInput carries the fields for classifying an entity.
type AssignInput struct {
	CategoryID      uuid.UUID       `json:"category_id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	AssignedBy      string          `json:"assigned_by,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Metadata        models.JSONBMap `json:"metadata,omitempty"`
}

// ClassificationService assigns external entities to category nodes and
// moves assignments through their review lifecycle.
type ClassificationService interface {
	// Assign classifies an entity under a category. The classification
	// starts pending unless assigned by a user, which confirms immediately.
	Assign(ctx context.Context, input AssignInput) (*models.Classification, error)

	// Resolve moves a classification to confirmed or rejected.
	Resolve(ctx context.Context, id uuid.UUID, status models.ClassificationStatus) error

	// ListByEntity returns all live classifications of one entity.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.Classification, error)
}

type classificationService struct {
	clsRepo   repositories.ClassificationRepository
	catRepo   repositories.CategoryRepository
	auditor   audit.Recorder
	getTenant TenantContextFunc
	logger    *zap.Logger
}

// NewClassificationService creates a new ClassificationService.
func NewClassificationService(
	clsRepo repositories.ClassificationRepository,
	catRepo repositories.CategoryRepository,
	auditor audit.Recorder,
	getTenant TenantContextFunc,
	logger *zap.Logger,
) ClassificationService {
	return &classificationService{
		clsRepo:   clsRepo,
		catRepo:   catRepo,
		auditor:   auditor,
		getTenant: getTenant,
		logger:    logger.Named("classification-service"),
	}
}

var _ ClassificationService = (*classificationService)(nil)

func (s *classificationService) Assign(ctx context.Context, input AssignInput) (*models.Classification, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	if input.EntityType == "" || input.EntityID == "" {
		return nil, fmt.Errorf("%w: entity_type and entity_id are required", apperrors.ErrValidation)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	cat, err := s.catRepo.GetByID(tenantCtx, input.CategoryID, actor.TenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load category: %w", err)
	}
	if !cat.IsActive {
		return nil, fmt.Errorf("%w: category is inactive", apperrors.ErrValidation)
	}

	assignedBy := input.AssignedBy
	if assignedBy == "" {
		assignedBy = models.AssignedByUser
	}
	status := models.ClassificationStatusPending
	if assignedBy == models.AssignedByUser {
		status = models.ClassificationStatusConfirmed
	}

	cl := &models.Classification{
		TenantID:        actor.TenantID,
		TaxonomyID:      cat.TaxonomyID,
		CategoryID:      cat.ID,
		EntityType:      input.EntityType,
		EntityID:        input.EntityID,
		ConfidenceScore: input.ConfidenceScore,
		Status:          status,
		AssignedBy:      assignedBy,
		ExpiresAt:       input.ExpiresAt,
		Metadata:        input.Metadata,
	}

	if err := s.clsRepo.Create(tenantCtx, cl); err != nil {
		s.logger.Error("Failed to create classification",
			zap.String("tenant_id", actor.TenantID.String()),
			zap.String("category_id", cat.ID.String()),
			zap.String("entity_type", input.EntityType),
			zap.Error(err))
		return nil, fmt.Errorf("create classification: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionClassificationAssign, "classification", cl.ID, nil, cl, map[string]any{
		"entity_type": input.EntityType,
		"entity_id":   input.EntityID,
	})

	s.logger.Info("Classified entity",
		zap.String("classification_id", cl.ID.String()),
		zap.String("category_id", cat.ID.String()),
		zap.String("entity_type", input.EntityType),
		zap.String("entity_id", input.EntityID))

	return cl, nil
}

func (s *classificationService) Resolve(ctx context.Context, id uuid.UUID, status models.ClassificationStatus) error {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return fmt.Errorf("authentication required: %w", err)
	}

	if status != models.ClassificationStatusConfirmed && status != models.ClassificationStatusRejected {
		return fmt.Errorf("%w: resolution must be confirmed or rejected", apperrors.ErrValidation)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	if err := s.clsRepo.UpdateStatus(tenantCtx, id, actor.TenantID, status); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("resolve classification: %w", err)
	}

	s.auditor.Record(ctx, audit.ActionClassificationResolve, "classification", id, nil, nil, map[string]any{
		"status": string(status),
	})

	return nil
}

func (s *classificationService) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.Classification, error) {
	actor, err := auth.RequireActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant context: %w", err)
	}
	defer cleanup()

	list, err := s.clsRepo.ListByEntity(tenantCtx, actor.TenantID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}

	return list, nil
}
