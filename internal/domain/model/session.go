// Package model contains domain models passed between layers.
package model

// Status is the lifecycle state of a raw session row.
type Status string

// Known session statuses. Other values may appear in the source table.
const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusScheduled Status = "scheduled"
)

// RawEvent is one row of the sessions_raw table. Timestamps are kept as the
// strings the store returned; parsing happens during aggregation.
type RawEvent struct {
	SessionID  string  `json:"session_id"`
	EmployeeID string  `json:"employee_id"`
	Status     Status  `json:"status"`
	StartAt    string  `json:"start_at"`
	EndAt      *string `json:"end_at"` // nil while the session is open
	CreatedAt  string  `json:"created_at,omitempty"`
}

// MetricsRecord is one row of the session_metrics table.
type MetricsRecord struct {
	EmployeeID             string `json:"employee_id"`
	CompletedCount         int    `json:"completed_count"`
	CancelledCount         int    `json:"cancelled_count"`
	DaysSinceLastCompleted *int   `json:"days_since_last_completed"`
	ComputedAt             string `json:"computed_at"`
}
