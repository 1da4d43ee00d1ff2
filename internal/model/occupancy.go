package model

import "time"

// OccupancyEvent represents one occupancy movement (check-in or check-out).
// Events are immutable once created; occupancy is always derived by summing
// them, never stored as a counter.
type OccupancyEvent struct {
	ID         int64     `json:"id"`
	FacilityID int64     `json:"facility_id"`
	Direction  string    `json:"direction"`
	Amount     int       `json:"amount"`
	OccurredOn string    `json:"occurred_on"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Occupancy event directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// DayFormat is the date layout used for day-granularity event grouping.
const DayFormat = "2006-01-02"

// DailyMovement is one day's aggregated movement for a facility or fleet.
type DailyMovement struct {
	Day string `json:"day"`
	In  int    `json:"in"`
	Out int    `json:"out"`
}

// OccupancySnapshot is the derived occupancy state of a facility.
type OccupancySnapshot struct {
	FacilityID int64  `json:"facility_id"`
	Current    int    `json:"current"`
	Capacity   int    `json:"capacity"`
	Status     string `json:"status"`
}
