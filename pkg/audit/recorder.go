// Package audit provides fire-and-forget audit logging for taxonomy
// mutations. Entries are emitted as structured JSON on a dedicated logger
// namespace so downstream pipelines can filter them without touching the
// rest of the application log stream. Recording an entry never fails the
// business operation that produced it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/auth"
)

// Action identifies the mutation being audited.
type Action string

const (
	ActionCreate Action = "taxonomy.create"
	ActionUpdate Action = "taxonomy.update"
	ActionDelete Action = "taxonomy.delete"
	ActionClone  Action = "taxonomy.clone"

	ActionCategoryCreate Action = "category.create"
	ActionCategoryUpdate Action = "category.update"
	ActionCategoryDelete Action = "category.delete"

	ActionClassificationAssign  Action = "classification.assign"
	ActionClassificationResolve Action = "classification.resolve"
)

// Entry is one audit record.
type Entry struct {
	Timestamp    time.Time      `json:"timestamp"`
	Action       Action         `json:"action"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	UserID       string         `json:"user_id,omitempty"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	OldValues    any            `json:"old_values,omitempty"`
	NewValues    any            `json:"new_values,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Recorder emits audit entries. Implementations must be fire-and-forget:
// a failed write is the recorder's problem, never the caller's.
type Recorder interface {
	Record(ctx context.Context, action Action, resourceType string, resourceID uuid.UUID, oldValues, newValues any, metadata map[string]any)
}

// LogRecorder writes audit entries through a dedicated zap namespace.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a Recorder logging under the "audit" namespace.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.Named("audit")}
}

var _ Recorder = (*LogRecorder)(nil)

// Record emits one entry. Tenant and user come from the actor in context.
func (r *LogRecorder) Record(ctx context.Context, action Action, resourceType string, resourceID uuid.UUID, oldValues, newValues any, metadata map[string]any) {
	entry := Entry{
		Timestamp:    time.Now().UTC(),
		Action:       action,
		TenantID:     auth.GetTenantIDFromContext(ctx),
		UserID:       auth.GetUserIDFromContext(ctx),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldValues,
		NewValues:    newValues,
		Metadata:     metadata,
	}

	// Ignoring error as marshaling known types should never fail
	entryJSON, _ := json.Marshal(entry)

	r.logger.Info("Audit entry",
		zap.String("entry_json", string(entryJSON)),
		zap.String("action", string(action)),
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID.String()),
		zap.String("user_id", entry.UserID),
	)
}

// NopRecorder discards all entries. Useful in tests.
type NopRecorder struct{}

var _ Recorder = (*NopRecorder)(nil)

// Record discards the entry.
func (NopRecorder) Record(context.Context, Action, string, uuid.UUID, any, any, map[string]any) {}
