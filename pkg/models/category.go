package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is one node in a taxonomy's tree.
//
// Invariants: Level equals parent.Level+1 (0 for roots), Level never
// exceeds the owning taxonomy's MaxDepth, and Path is the slash-joined
// slug chain from root to self (e.g. "/music-events/rock-concerts").
type Category struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	TaxonomyID      uuid.UUID  `json:"taxonomy_id"`
	ParentID        *uuid.UUID `json:"parent_id,omitempty"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Description     string     `json:"description,omitempty"`
	Level           int        `json:"level"`
	Path            string     `json:"path"`
	SortOrder       int        `json:"sort_order"`
	IsLeaf          bool       `json:"is_leaf"`
	IsActive        bool       `json:"is_active"`
	AIGenerated     bool       `json:"ai_generated"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
	UsageCount      int        `json:"usage_count"`
	Metadata        JSONBMap   `json:"metadata,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
	UpdatedBy       string     `json:"updated_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// CategoryPatch carries the mutable category fields for an update.
// Nil pointers leave the current value untouched. ParentID set to
// uuid.Nil moves the node to the root level.
type CategoryPatch struct {
	Name        *string    `json:"name,omitempty"`
	Slug        *string    `json:"slug,omitempty"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	SortOrder   *int       `json:"sort_order,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	Metadata    JSONBMap   `json:"metadata,omitempty"`
}

// CategoryTreeRow is one row of a materialized tree query: the category
// plus its ancestor chain and the traversal depth at which it was reached.
type CategoryTreeRow struct {
	Category
	Ancestors []uuid.UUID `json:"ancestors"`
	Depth     int         `json:"depth"`
}

// CategoryTreeNode is a category with its resolved children, produced by
// the tree builder from a flat row sequence.
type CategoryTreeNode struct {
	Category
	Children []*CategoryTreeNode `json:"children"`
}
