// Package models contains domain types for taxonomy-engine.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaxonomyStatus is the lifecycle state of a taxonomy.
type TaxonomyStatus string

const (
	TaxonomyStatusDraft      TaxonomyStatus = "draft"
	TaxonomyStatusActive     TaxonomyStatus = "active"
	TaxonomyStatusDeprecated TaxonomyStatus = "deprecated"
	TaxonomyStatusArchived   TaxonomyStatus = "archived"
)

// Valid reports whether s is one of the known taxonomy statuses.
func (s TaxonomyStatus) Valid() bool {
	switch s {
	case TaxonomyStatusDraft, TaxonomyStatusActive, TaxonomyStatusDeprecated, TaxonomyStatusArchived:
		return true
	}
	return false
}

// Taxonomy is a named, namespaced classification scheme owned by one tenant.
// (tenant_id, namespace, slug) is unique among non-deleted rows.
type Taxonomy struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	Namespace      string         `json:"namespace"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Description    string         `json:"description,omitempty"`
	Version        int            `json:"version"`
	Status         TaxonomyStatus `json:"status"`
	IsSystem       bool           `json:"is_system"`
	IsHierarchical bool           `json:"is_hierarchical"`
	MaxDepth       int            `json:"max_depth"`
	Metadata       JSONBMap       `json:"metadata,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	UpdatedBy      string         `json:"updated_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// TaxonomyPatch carries the mutable taxonomy fields for an update.
// Nil pointers leave the current value untouched.
type TaxonomyPatch struct {
	Name        *string         `json:"name,omitempty"`
	Slug        *string         `json:"slug,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *TaxonomyStatus `json:"status,omitempty"`
	MaxDepth    *int            `json:"max_depth,omitempty"`
	Metadata    JSONBMap        `json:"metadata,omitempty"`
}

// StructuralChange reports whether applying the patch changes name, status
// or max_depth. Those are the fields that bump the version counter.
func (t *Taxonomy) StructuralChange(p *TaxonomyPatch) bool {
	if p.Name != nil && *p.Name != t.Name {
		return true
	}
	if p.Status != nil && *p.Status != t.Status {
		return true
	}
	if p.MaxDepth != nil && *p.MaxDepth != t.MaxDepth {
		return true
	}
	return false
}

// JSONBMap is a map type that handles PostgreSQL JSONB serialization.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer for database serialization.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database deserialization.
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	return json.Unmarshal(bytes, j)
}
