package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/zavetisce/internal/model"
)

// CreateRequest creates a resource request in the pending state.
func CreateRequest(ctx context.Context, db *sql.DB, facilityID int64, itemName, category string, amount int, unit, urgency string, sourceHubID *int64) (*model.ResourceRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if itemName == "" || category == "" {
		return nil, fmt.Errorf("item name and category are required")
	}
	if urgency == "" {
		urgency = model.UrgencyMedium
	}
	if !model.ValidUrgency(urgency) {
		return nil, fmt.Errorf("invalid urgency %q", urgency)
	}

	exists, err := facilityExists(ctx, db, facilityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	if sourceHubID != nil {
		hub, err := GetFacility(ctx, db, *sourceHubID)
		if err != nil {
			return nil, err
		}
		if hub == nil || hub.DeletedAt != nil {
			return nil, ErrNotFound
		}
		if hub.Type != model.FacilityTypeHub {
			return nil, fmt.Errorf("source facility %d is not a hub", *sourceHubID)
		}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO resource_requests (facility_id, item_name, category, amount, unit, urgency, source_hub_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		facilityID, itemName, category, amount, unit, urgency, sourceHubID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting request id: %w", err)
	}

	return GetRequest(ctx, db, id)
}

// GetRequest returns a resource request by ID.
func GetRequest(ctx context.Context, db *sql.DB, id int64) (*model.ResourceRequest, error) {
	r := &model.ResourceRequest{}
	var unit sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT r.id, r.facility_id, r.item_name, r.category, r.amount, r.unit,
		        r.urgency, r.status, r.source_hub_id, r.approved_amount,
		        r.requested_at, r.resolved_at, r.received_at, f.name
		 FROM resource_requests r
		 JOIN facilities f ON f.id = r.facility_id
		 WHERE r.id = ?`, id,
	).Scan(&r.ID, &r.FacilityID, &r.ItemName, &r.Category, &r.Amount, &unit,
		&r.Urgency, &r.Status, &r.SourceHubID, &r.ApprovedAmount,
		&r.RequestedAt, &r.ResolvedAt, &r.ReceivedAt, &r.FacilityName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	r.Unit = unit.String
	return r, nil
}

// ListRequests returns requests, optionally filtered by facility and status.
func ListRequests(ctx context.Context, db *sql.DB, facilityID int64, status string) ([]model.ResourceRequest, error) {
	query := `SELECT r.id, r.facility_id, r.item_name, r.category, r.amount, r.unit,
	                 r.urgency, r.status, r.source_hub_id, r.approved_amount,
	                 r.requested_at, r.resolved_at, r.received_at, f.name
	          FROM resource_requests r
	          JOIN facilities f ON f.id = r.facility_id
	          WHERE 1=1`
	var args []any

	if facilityID > 0 {
		query += ` AND r.facility_id = ?`
		args = append(args, facilityID)
	}
	if status != "" {
		query += ` AND r.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY r.requested_at DESC, r.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.ResourceRequest
	for rows.Next() {
		var r model.ResourceRequest
		var unit sql.NullString
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.ItemName, &r.Category, &r.Amount, &unit,
			&r.Urgency, &r.Status, &r.SourceHubID, &r.ApprovedAmount,
			&r.RequestedAt, &r.ResolvedAt, &r.ReceivedAt, &r.FacilityName); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		r.Unit = unit.String
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// RejectRequest moves a pending request to rejected. No stock is touched.
func RejectRequest(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE resource_requests SET status = ?, resolved_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.RequestRejected, id, model.RequestPending,
	)
	if err != nil {
		return fmt.Errorf("rejecting request: %w", err)
	}
	return checkTransition(ctx, db, id, result)
}

// ApproveRequest moves a pending request to approved, deducting the
// approved amount from eligible batches oldest-first. The deduction and the
// status flip commit together: a shortfall leaves the request pending and
// every batch untouched. A non-nil amountOverride fulfills a different
// quantity than requested. Returns the per-batch allocations on success.
func ApproveRequest(ctx context.Context, db *sql.DB, id int64, amountOverride *int) ([]model.BatchAllocation, error) {
	request, err := GetRequest(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrNotFound
	}
	if request.Status != model.RequestPending {
		return nil, ErrInvalidState
	}

	amount := request.Amount
	if amountOverride != nil {
		if *amountOverride <= 0 {
			return nil, ErrInvalidAmount
		}
		amount = *amountOverride
	}

	// Resolve the source scope once, here: either the hub hinted at on the
	// request or the shared hub pool.
	scope := model.AnyHub()
	if request.SourceHubID != nil {
		scope = model.SpecificSource(*request.SourceHubID)
	}

	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		allocs, err := approveOnce(ctx, db, request, scope, amount)
		if errors.Is(err, errPlanStale) {
			continue
		}
		return allocs, err
	}
	return nil, ErrStockContention
}

// approveOnce runs one plan-then-apply attempt inside a single transaction.
func approveOnce(ctx context.Context, db *sql.DB, request *model.ResourceRequest, scope model.SourceScope, amount int) ([]model.BatchAllocation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	allocs, err := planAllocation(ctx, tx, request.ItemName, request.Category, scope, amount)
	if err != nil {
		return nil, err
	}
	if err := applyAllocation(ctx, tx, allocs); err != nil {
		return nil, err
	}

	// Guard against a racing approval of the same request: the status flip
	// only lands if the request is still pending.
	result, err := tx.ExecContext(ctx,
		`UPDATE resource_requests
		 SET status = ?, approved_amount = ?, resolved_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.RequestApproved, amount, request.ID, model.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("approving request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking approval: %w", err)
	}
	if affected == 0 {
		return nil, ErrInvalidState
	}

	for _, a := range allocs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO disbursements (request_id, batch_id, amount_taken) VALUES (?, ?, ?)`,
			request.ID, a.BatchID, a.AmountTaken,
		); err != nil {
			return nil, fmt.Errorf("recording disbursement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing approval: %w", err)
	}
	return allocs, nil
}

// MarkReceived moves an approved request to received and adds the approved
// amount to the requesting facility's stock, merging into a matching batch
// or creating a new one. Status flip and increment commit together.
func MarkReceived(ctx context.Context, db *sql.DB, id int64) error {
	request, err := GetRequest(ctx, db, id)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrNotFound
	}
	if request.Status != model.RequestApproved {
		return ErrInvalidState
	}

	amount := request.Amount
	if request.ApprovedAmount != nil {
		amount = *request.ApprovedAmount
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE resource_requests SET status = ?, received_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.RequestReceived, id, model.RequestApproved,
	)
	if err != nil {
		return fmt.Errorf("marking request received: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking receive transition: %w", err)
	}
	if affected == 0 {
		return ErrInvalidState
	}

	if _, err := upsertBatchTx(ctx, tx, request.ItemName, request.Category, amount, request.Unit, &request.FacilityID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing receive: %w", err)
	}
	return nil
}

// ListDisbursements returns the batch deductions recorded for a request.
func ListDisbursements(ctx context.Context, db *sql.DB, requestID int64) ([]model.BatchAllocation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT batch_id, amount_taken FROM disbursements
		 WHERE request_id = ? ORDER BY id`, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing disbursements: %w", err)
	}
	defer rows.Close()

	var allocs []model.BatchAllocation
	for rows.Next() {
		var a model.BatchAllocation
		if err := rows.Scan(&a.BatchID, &a.AmountTaken); err != nil {
			return nil, fmt.Errorf("scanning disbursement: %w", err)
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// checkTransition distinguishes a missing request from a forbidden
// transition after a conditional status update affected no rows.
func checkTransition(ctx context.Context, db *sql.DB, id int64, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking transition: %w", err)
	}
	if affected > 0 {
		return nil
	}

	request, err := GetRequest(ctx, db, id)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrNotFound
	}
	return ErrInvalidState
}
