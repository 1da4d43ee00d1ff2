package model

import "time"

// Facility represents a shelter or a supply hub.
type Facility struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	District  string     `json:"district,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Capacity  int        `json:"capacity"`
	PhotoMime string     `json:"photo_mime,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Facility types.
const (
	FacilityTypeShelter = "shelter"
	FacilityTypeHub     = "hub"
)

// Capacity statuses.
const (
	CapacityNormal   = "normal"
	CapacityNearFull = "near-full"
	CapacityOver     = "over-capacity"
)

// nearFullPercent is the occupancy percentage at which a shelter is
// considered near full.
const nearFullPercent = 80

// ClassifyCapacity maps an occupancy count and a capacity to a status.
// A facility with no configured capacity is always "normal". This is the
// single classification point; every read path that shows or filters on
// capacity status must go through it.
func ClassifyCapacity(occupancy, capacity int) string {
	if capacity <= 0 {
		return CapacityNormal
	}
	if occupancy >= capacity {
		return CapacityOver
	}
	if occupancy*100 >= capacity*nearFullPercent {
		return CapacityNearFull
	}
	return CapacityNormal
}
