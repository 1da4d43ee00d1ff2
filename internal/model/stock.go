package model

import "time"

// StockBatch is a discrete quantity of one item held at a source facility.
// A NULL source means the central (unassigned) pool. Batches are consumed
// oldest-first; a drained batch stays around as a record.
type StockBatch struct {
	ID        int64      `json:"id"`
	ItemName  string     `json:"item_name"`
	Category  string     `json:"category"`
	Quantity  int        `json:"quantity"`
	Unit      string     `json:"unit"`
	SourceID  *int64     `json:"source_id,omitempty"`
	Supplier  string     `json:"supplier,omitempty"`
	ExpiresOn string     `json:"expires_on,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Joined field (not always populated).
	SourceName string `json:"source_name,omitempty"`
}

// SourceScope identifies which batches are eligible for an allocation:
// either a specific facility, or the shared hub pool (central batches plus
// batches owned by hub facilities).
type SourceScope struct {
	kind     string
	sourceID int64
}

const (
	scopeAnyHub = "any_hub"
	scopeSource = "source"
)

// AnyHub returns the scope covering the shared hub pool.
func AnyHub() SourceScope {
	return SourceScope{kind: scopeAnyHub}
}

// SpecificSource returns the scope covering a single facility's batches.
func SpecificSource(id int64) SourceScope {
	return SourceScope{kind: scopeSource, sourceID: id}
}

// IsAnyHub reports whether the scope is the shared hub pool.
func (s SourceScope) IsAnyHub() bool { return s.kind == scopeAnyHub }

// SourceID returns the facility ID for a specific-source scope.
func (s SourceScope) SourceID() int64 { return s.sourceID }

// BatchAllocation records an amount taken from one batch during a
// disbursement.
type BatchAllocation struct {
	BatchID     int64 `json:"batch_id"`
	AmountTaken int   `json:"amount_taken"`
}
