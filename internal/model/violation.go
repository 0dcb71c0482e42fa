package model

import "time"

// Violation records a zone exceeding its contractor limit. At most one
// unresolved violation exists per zone; the reconciler keeps it that way.
//
// Fields:
//
//	ZoneID             – owning zone (cascade delete).
//	ExcessVehicles     – vehicles above the limit when last evaluated.
//	PenaltyAmountCents – ExcessVehicles * zone penalty rate.
//	Severity           – warning or critical.
//	Resolved           – true once occupancy returned within limits.
//	ResolvedAt         – set together with Resolved.
//	Notes              – free text, auto-resolution lines are appended.
type Violation struct {
	ID                 uint64
	ZoneID             uint64
	ExcessVehicles     int
	PenaltyAmountCents int64
	Severity           string
	Resolved           bool
	ResolvedAt         *time.Time
	Notes              string
	DetectedAt         time.Time
	UpdatedAt          time.Time

	// ZoneName is populated by joined reads only.
	ZoneName string
}

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	ZoneName string // substring match
	Status   string // "", "pending" or "resolved"
	Severity string
	Page     int
	Limit    int
}

// ViolationStats summarises the violations table.
type ViolationStats struct {
	Total            int
	Pending          int
	Resolved         int
	CriticalPending  int
	TotalPenaltyOpen int64
}
