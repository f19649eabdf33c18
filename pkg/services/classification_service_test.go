package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/audit"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
)

type recordedAudit struct {
	action     audit.Action
	resourceID uuid.UUID
	metadata   map[string]any
}

type capturingRecorder struct {
	entries []recordedAudit
}

func (r *capturingRecorder) Record(_ context.Context, action audit.Action, _ string, resourceID uuid.UUID, _, _ any, metadata map[string]any) {
	r.entries = append(r.entries, recordedAudit{action: action, resourceID: resourceID, metadata: metadata})
}

type classificationServiceFixture struct {
	svc      ClassificationService
	clsRepo  *fakeClassificationRepo
	catRepo  *fakeCategoryRepo
	auditor  *capturingRecorder
	tenantID uuid.UUID
	category *models.Category
}

func newClassificationServiceFixture() *classificationServiceFixture {
	clsRepo := newFakeClassificationRepo()
	catRepo := newFakeCategoryRepo()
	auditor := &capturingRecorder{}

	tenantID := uuid.New()
	category := &models.Category{
		ID:         uuid.New(),
		TenantID:   tenantID,
		TaxonomyID: uuid.New(),
		Name:       "Rock",
		Slug:       "rock",
		Path:       "/rock",
		IsActive:   true,
		IsLeaf:     true,
	}
	catRepo.categories[category.ID] = category

	svc := NewClassificationService(clsRepo, catRepo, auditor, passthroughTenant, zap.NewNop())
	return &classificationServiceFixture{
		svc:      svc,
		clsRepo:  clsRepo,
		catRepo:  catRepo,
		auditor:  auditor,
		tenantID: tenantID,
		category: category,
	}
}

func TestAssignClassification(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	cl, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: f.category.ID,
		EntityType: "listing",
		EntityID:   "listing-123",
	})
	require.NoError(t, err)

	assert.Equal(t, f.category.TaxonomyID, cl.TaxonomyID, "taxonomy derived from the category")
	assert.Equal(t, models.AssignedByUser, cl.AssignedBy)
	assert.Equal(t, models.ClassificationStatusConfirmed, cl.Status, "user assignments confirm immediately")
}

func TestAssignClassificationByAIStartsPending(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	score := 0.87
	cl, err := f.svc.Assign(ctx, AssignInput{
		CategoryID:      f.category.ID,
		EntityType:      "listing",
		EntityID:        "listing-123",
		AssignedBy:      models.AssignedByAI,
		ConfidenceScore: &score,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ClassificationStatusPending, cl.Status)
	require.NotNil(t, cl.ConfidenceScore)
	assert.InDelta(t, 0.87, *cl.ConfidenceScore, 1e-9)
}

func TestAssignClassificationValidation(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	_, err := f.svc.Assign(ctx, AssignInput{CategoryID: f.category.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAssignClassificationInactiveCategory(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)
	f.catRepo.categories[f.category.ID].IsActive = false

	_, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: f.category.ID,
		EntityType: "listing",
		EntityID:   "listing-123",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAssignClassificationUnknownCategory(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	_, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: uuid.New(),
		EntityType: "listing",
		EntityID:   "listing-123",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveClassification(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	cl, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: f.category.ID,
		EntityType: "listing",
		EntityID:   "listing-123",
		AssignedBy: models.AssignedByAI,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Resolve(ctx, cl.ID, models.ClassificationStatusConfirmed))

	list, err := f.svc.ListByEntity(ctx, "listing", "listing-123")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ClassificationStatusConfirmed, list[0].Status)
}

func TestClassificationLifecycleIsAudited(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	cl, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: f.category.ID,
		EntityType: "listing",
		EntityID:   "listing-123",
		AssignedBy: models.AssignedByAI,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Resolve(ctx, cl.ID, models.ClassificationStatusRejected))

	require.Len(t, f.auditor.entries, 2)

	assign := f.auditor.entries[0]
	assert.Equal(t, audit.ActionClassificationAssign, assign.action)
	assert.Equal(t, cl.ID, assign.resourceID)
	assert.Equal(t, "listing", assign.metadata["entity_type"])
	assert.Equal(t, "listing-123", assign.metadata["entity_id"])

	resolve := f.auditor.entries[1]
	assert.Equal(t, audit.ActionClassificationResolve, resolve.action)
	assert.Equal(t, cl.ID, resolve.resourceID)
	assert.Equal(t, "rejected", resolve.metadata["status"])
}

func TestResolveClassificationRejectsOtherStatuses(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	err := f.svc.Resolve(ctx, uuid.New(), models.ClassificationStatusExpired)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListByEntityScopedToTenant(t *testing.T) {
	f := newClassificationServiceFixture()
	ctx := actorContext(f.tenantID)

	_, err := f.svc.Assign(ctx, AssignInput{
		CategoryID: f.category.ID,
		EntityType: "listing",
		EntityID:   "listing-123",
	})
	require.NoError(t, err)

	list, err := f.svc.ListByEntity(actorContext(uuid.New()), "listing", "listing-123")
	require.NoError(t, err)
	assert.Empty(t, list)
}
