package models

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationStatus is the review state of an entity classification.
type ClassificationStatus string

const (
	ClassificationStatusPending   ClassificationStatus = "pending"
	ClassificationStatusConfirmed ClassificationStatus = "confirmed"
	ClassificationStatusRejected  ClassificationStatus = "rejected"
	ClassificationStatusExpired   ClassificationStatus = "expired"
)

// AssignedBy constants for Classification.AssignedBy.
const (
	AssignedBySystem = "system"
	AssignedByUser   = "user"
	AssignedByAI     = "ai"
	AssignedByImport = "import"
)

// Classification assigns an external entity (entity_type + entity_id) to a
// category. Non-deleted classifications block deletion of their taxonomy.
type Classification struct {
	ID              uuid.UUID            `json:"id"`
	TenantID        uuid.UUID            `json:"tenant_id"`
	TaxonomyID      uuid.UUID            `json:"taxonomy_id"`
	CategoryID      uuid.UUID            `json:"category_id"`
	EntityType      string               `json:"entity_type"`
	EntityID        string               `json:"entity_id"`
	ConfidenceScore *float64             `json:"confidence_score,omitempty"`
	Status          ClassificationStatus `json:"status"`
	AssignedBy      string               `json:"assigned_by"`
	ExpiresAt       *time.Time           `json:"expires_at,omitempty"`
	Metadata        JSONBMap             `json:"metadata,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	DeletedAt       *time.Time           `json:"deleted_at,omitempty"`
}
