package model

import "time"

// Zone statuses.
const (
	ZoneStatusActive      = "active"
	ZoneStatusInactive    = "inactive"
	ZoneStatusMaintenance = "maintenance"
)

// Violation severities and the advisory zone status values.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	StatusNormal = "normal"
)

// Two separate thresholds are in use and they intentionally do not agree:
//
//	CriticalExcessRatio   severity of a recorded violation is critical when
//	                      excess > limit*0.3.
//	WarningOccupancyRatio the advisory ViolationStatus turns to warning when
//	                      occupancy > limit*0.85.
const (
	CriticalExcessRatio   = 0.3
	WarningOccupancyRatio = 0.85
)

// Zone is a managed parking area stored in `parking_zones`. Money
// columns are integer paise.
//
// Fields:
//
//	ID                     – primary key.
//	ZoneName, Address      – display data.
//	Latitude, Longitude    – location inside the Delhi NCR box.
//	TotalCapacity          – physical spaces (1..5000).
//	CurrentOccupancy       – vehicles currently parked (0..TotalCapacity).
//	ContractorLimit        – enforcement limit (1..TotalCapacity).
//	ContractorID           – owning contractor user, if any.
//	HourlyRateCents        – booking rate per started hour.
//	PenaltyPerVehicleCents – penalty for each vehicle above the limit.
//	Status                 – active, inactive or maintenance.
type Zone struct {
	ID                     uint64
	ZoneName               string
	Address                string
	Latitude               float64
	Longitude              float64
	TotalCapacity          int
	CurrentOccupancy       int
	ContractorLimit        int
	ContractorName         string
	ContractorContact      *string
	ContractorEmail        *string
	ContractorID           *uint64
	HourlyRateCents        int64
	PenaltyPerVehicleCents int64
	OperatingHours         string
	Status                 string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// OccupancyPercentage is occupancy over capacity in percent. A zero
// capacity is treated as one to avoid dividing by zero.
func (z Zone) OccupancyPercentage() float64 {
	capacity := z.TotalCapacity
	if capacity < 1 {
		capacity = 1
	}
	return float64(z.CurrentOccupancy) / float64(capacity) * 100
}

// ViolationStatus is the advisory status shown on dashboards.
func (z Zone) ViolationStatus() string {
	switch {
	case z.CurrentOccupancy > z.ContractorLimit:
		return SeverityCritical
	case float64(z.CurrentOccupancy) > float64(z.ContractorLimit)*WarningOccupancyRatio:
		return SeverityWarning
	default:
		return StatusNormal
	}
}

// ExcessVehicles is how many vehicles exceed the contractor limit.
func (z Zone) ExcessVehicles() int {
	return ExcessFor(z.CurrentOccupancy, z.ContractorLimit)
}

// ExcessFor returns max(0, occupancy-limit).
func ExcessFor(occupancy, limit int) int {
	if occupancy > limit {
		return occupancy - limit
	}
	return 0
}

// SeverityFor classifies a violation with the given excess.
func SeverityFor(excess, limit int) string {
	if float64(excess) > float64(limit)*CriticalExcessRatio {
		return SeverityCritical
	}
	return SeverityWarning
}

// ZoneFilter narrows zone listings. Occupancy bounds are percentages.
type ZoneFilter struct {
	Status       string
	MinOccupancy *float64
	MaxOccupancy *float64
	ContractorID *uint64
	Search       string
	Sort         string // name, occupancy, capacity, created
	Order        string // asc or desc
}

// ZoneStats is the dashboard overview across all zones.
type ZoneStats struct {
	TotalZones     int
	ActiveZones    int
	ViolatingZones int
	TotalCapacity  int
	TotalOccupancy int
}

// OccupancyPercentage across all zones.
func (s ZoneStats) OccupancyPercentage() float64 {
	capacity := s.TotalCapacity
	if capacity < 1 {
		capacity = 1
	}
	return float64(s.TotalOccupancy) / float64(capacity) * 100
}

// AverageOccupancy is vehicles per zone.
func (s ZoneStats) AverageOccupancy() float64 {
	if s.TotalZones == 0 {
		return 0
	}
	return float64(s.TotalOccupancy) / float64(s.TotalZones)
}

// Slot is a numbered space inside a zone (`parking_slots`).
type Slot struct {
	ID         uint64
	ZoneID     uint64
	SlotNumber string
	SlotType   string
	Status     string
	CreatedAt  time.Time
}
