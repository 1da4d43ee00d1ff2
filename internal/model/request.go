package model

import "time"

// ResourceRequest is a shelter's or hub's request for a quantity of an item.
// Requests are never deleted; the status column is the audit trail's state.
type ResourceRequest struct {
	ID             int64      `json:"id"`
	FacilityID     int64      `json:"facility_id"`
	ItemName       string     `json:"item_name"`
	Category       string     `json:"category"`
	Amount         int        `json:"amount"`
	Unit           string     `json:"unit"`
	Urgency        string     `json:"urgency"`
	Status         string     `json:"status"`
	SourceHubID    *int64     `json:"source_hub_id,omitempty"`
	ApprovedAmount *int       `json:"approved_amount,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`

	// Joined field (not always populated).
	FacilityName string `json:"facility_name,omitempty"`
}

// Request statuses. Pending is the initial state; rejected and received
// are terminal.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
	RequestReceived = "received"
)

// Request urgencies.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// ValidUrgency reports whether s is a known urgency level.
func ValidUrgency(s string) bool {
	return s == UrgencyLow || s == UrgencyMedium || s == UrgencyHigh
}
