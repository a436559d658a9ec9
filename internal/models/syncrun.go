package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies an external data source
type SourceType string

const (
	SourceSheet     SourceType = "SHEET"
	SourceWarehouse SourceType = "WAREHOUSE"
	// SourceLocation is the location search API. It never produces
	// sync runs but shares the adapter error types.
	SourceLocation SourceType = "LOCATION"
)

// SyncType represents the scope of a sync run
type SyncType string

const (
	// SyncTypeFull updates catalog fields, variants and stock.
	SyncTypeFull SyncType = "FULL"
	// SyncTypeStock updates variant stock quantities only and marks
	// canonical products absent from the batch as NOT_FOUND.
	SyncTypeStock SyncType = "STOCK"
)

// RunStatus represents the lifecycle state of a sync run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// TriggerType represents what triggered the sync
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// SyncRun is the append-only audit record for one reconciliation
// invocation against one source. It is finalized once and never
// mutated afterwards.
type SyncRun struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Source SourceType `gorm:"type:varchar(50);not null;index:idx_sync_runs_source" json:"source"`

	SyncType SyncType  `gorm:"type:varchar(50);not null;default:'FULL'" json:"syncType"`
	Status   RunStatus `gorm:"type:varchar(50);not null;default:'RUNNING';index:idx_sync_runs_status" json:"status"`

	// Totals
	Processed     int `gorm:"default:0" json:"processed"`
	Created       int `gorm:"default:0" json:"created"`
	Updated       int `gorm:"default:0" json:"updated"`
	Skipped       int `gorm:"default:0" json:"skipped"`
	ErrorCount    int `gorm:"default:0" json:"errorCount"`
	ConflictCount int `gorm:"default:0" json:"conflictCount"`

	// Failure details
	ErrorMessage string       `gorm:"type:text" json:"errorMessage,omitempty"`
	ErrorDetails RowErrorList `gorm:"type:jsonb;default:'[]'" json:"errorDetails,omitempty"`

	// Timing
	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Audit
	TriggeredBy TriggerType `gorm:"type:varchar(50);default:'MANUAL'" json:"triggeredBy,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "catalog_sync_runs"
}
