package shift

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Shift is a unit of delivered support. It is owned by the scheduling system and read-only here.
type Shift struct {
	Id        int
	TenantId  int
	ClientId  *int
	UserId    *int
	StartTime *time.Time
	EndTime   *time.Time
	Status    Status
	// StaffRatio is "workers:participants", e.g. "1:2". Empty means 1:1.
	StaffRatio string
	// FundingCategory, when set, names the budget category the shift is charged to.
	FundingCategory string
}

// Eligible reports whether the shift can be charged: completed with both times recorded.
func (s Shift) Eligible() bool {
	return s.Status == StatusCompleted && s.StartTime != nil && s.EndTime != nil
}
