package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/zavetisce/internal/model"
)

// maxAllocationAttempts bounds the retry loop on contested batch decrements.
const maxAllocationAttempts = 3

// errPlanStale signals that a conditional decrement lost a race and the
// allocation plan must be recomputed.
var errPlanStale = errors.New("allocation plan stale")

// CreateStockBatch creates a new stock batch. A nil sourceID puts the batch
// in the central (unassigned) pool.
func CreateStockBatch(ctx context.Context, db *sql.DB, itemName, category string, quantity int, unit string, sourceID *int64, supplier, expiresOn, notes string) (*model.StockBatch, error) {
	if quantity <= 0 {
		return nil, ErrInvalidAmount
	}
	if itemName == "" || category == "" {
		return nil, fmt.Errorf("item name and category are required")
	}
	if sourceID != nil {
		exists, err := facilityExists(ctx, db, *sourceID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO stock_batches (item_name, category, quantity, unit, source_id, supplier, expires_on, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		itemName, category, quantity, unit, sourceID, supplier, nullIfEmpty(expiresOn), notes,
	)
	if err != nil {
		return nil, fmt.Errorf("creating stock batch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting batch id: %w", err)
	}

	return GetStockBatch(ctx, db, id)
}

// GetStockBatch returns a stock batch by ID.
func GetStockBatch(ctx context.Context, db *sql.DB, id int64) (*model.StockBatch, error) {
	b := &model.StockBatch{}
	var supplier, expiresOn, notes, sourceName sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT b.id, b.item_name, b.category, b.quantity, b.unit, b.source_id,
		        b.supplier, b.expires_on, b.notes, b.created_at, f.name
		 FROM stock_batches b
		 LEFT JOIN facilities f ON f.id = b.source_id
		 WHERE b.id = ?`, id,
	).Scan(&b.ID, &b.ItemName, &b.Category, &b.Quantity, &b.Unit, &b.SourceID,
		&supplier, &expiresOn, &notes, &b.CreatedAt, &sourceName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock batch: %w", err)
	}
	b.Supplier = supplier.String
	b.ExpiresOn = expiresOn.String
	b.Notes = notes.String
	b.SourceName = sourceName.String
	return b, nil
}

// ListStockBatches returns batches, optionally filtered by source facility
// and item identity. A sourceID of 0 lists all batches.
func ListStockBatches(ctx context.Context, db *sql.DB, sourceID int64, itemName, category string) ([]model.StockBatch, error) {
	query := `SELECT b.id, b.item_name, b.category, b.quantity, b.unit, b.source_id,
	                 b.supplier, b.expires_on, b.notes, b.created_at, f.name
	          FROM stock_batches b
	          LEFT JOIN facilities f ON f.id = b.source_id
	          WHERE 1=1`
	var args []any

	if sourceID > 0 {
		query += ` AND b.source_id = ?`
		args = append(args, sourceID)
	}
	if itemName != "" {
		query += ` AND b.item_name = ? COLLATE NOCASE`
		args = append(args, itemName)
	}
	if category != "" {
		query += ` AND b.category = ?`
		args = append(args, category)
	}

	query += ` ORDER BY b.created_at, b.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stock batches: %w", err)
	}
	defer rows.Close()

	return scanBatches(rows)
}

// UpsertStockBatch merges quantity into the newest batch matching the
// natural key (case-insensitive item name, category, source), or creates a
// new batch when none matches. The bulk-import subsystem and the received
// transition both funnel through this so the identity rule stays in one
// place.
func UpsertStockBatch(ctx context.Context, db *sql.DB, itemName, category string, quantity int, unit string, sourceID *int64) (*model.StockBatch, error) {
	if quantity <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := upsertBatchTx(ctx, tx, itemName, category, quantity, unit, sourceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock upsert: %w", err)
	}

	return GetStockBatch(ctx, db, id)
}

// upsertBatchTx is UpsertStockBatch's body, reusable inside a caller's
// transaction (the received transition needs it atomically with the status
// flip). Returns the touched batch's ID.
func upsertBatchTx(ctx context.Context, tx *sql.Tx, itemName, category string, quantity int, unit string, sourceID *int64) (int64, error) {
	query := `SELECT id FROM stock_batches
	          WHERE item_name = ? COLLATE NOCASE AND category = ? AND `
	args := []any{itemName, category}
	if sourceID == nil {
		query += `source_id IS NULL`
	} else {
		query += `source_id = ?`
		args = append(args, *sourceID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var id int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO stock_batches (item_name, category, quantity, unit, source_id)
			 VALUES (?, ?, ?, ?, ?)`,
			itemName, category, quantity, unit, sourceID,
		)
		if err != nil {
			return 0, fmt.Errorf("creating stock batch: %w", err)
		}
		return result.LastInsertId()
	}
	if err != nil {
		return 0, fmt.Errorf("finding matching batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_batches SET quantity = quantity + ? WHERE id = ?`,
		quantity, id,
	); err != nil {
		return 0, fmt.Errorf("incrementing stock batch: %w", err)
	}
	return id, nil
}

// AvailableStock returns the total quantity of an item within a scope.
func AvailableStock(ctx context.Context, db *sql.DB, itemName, category string, scope model.SourceScope) (int, error) {
	clause, scopeArgs := scopeClause(scope)
	args := append([]any{itemName, category}, scopeArgs...)

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_batches
		 WHERE item_name = ? COLLATE NOCASE AND category = ? AND `+clause,
		args...,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing available stock: %w", err)
	}
	return total, nil
}

// AllocateStock deducts amount from eligible batches oldest-first, all or
// nothing. On a shortfall nothing is mutated and an InsufficientStockError
// carries the missing amount. Contested decrements are retried against a
// fresh plan up to maxAllocationAttempts times.
func AllocateStock(ctx context.Context, db *sql.DB, itemName, category string, scope model.SourceScope, amount int) ([]model.BatchAllocation, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		allocs, err := allocateOnce(ctx, db, itemName, category, scope, amount)
		if errors.Is(err, errPlanStale) {
			continue
		}
		return allocs, err
	}
	return nil, ErrStockContention
}

func allocateOnce(ctx context.Context, db *sql.DB, itemName, category string, scope model.SourceScope, amount int) ([]model.BatchAllocation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	allocs, err := planAllocation(ctx, tx, itemName, category, scope, amount)
	if err != nil {
		return nil, err
	}
	if err := applyAllocation(ctx, tx, allocs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing allocation: %w", err)
	}
	return allocs, nil
}

// planAllocation computes the FIFO deduction plan from a point-in-time read
// of eligible batches. The plan is validated against the total available
// quantity before any batch is touched: a shortfall returns
// InsufficientStockError and the caller never applies a partial plan.
func planAllocation(ctx context.Context, tx *sql.Tx, itemName, category string, scope model.SourceScope, amount int) ([]model.BatchAllocation, error) {
	clause, scopeArgs := scopeClause(scope)
	args := append([]any{itemName, category}, scopeArgs...)

	rows, err := tx.QueryContext(ctx,
		`SELECT id, quantity FROM stock_batches
		 WHERE item_name = ? COLLATE NOCASE AND category = ? AND quantity > 0 AND `+clause+`
		 ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("reading eligible batches: %w", err)
	}
	defer rows.Close()

	var plan []model.BatchAllocation
	remaining := amount
	for rows.Next() {
		var id int64
		var quantity int
		if err := rows.Scan(&id, &quantity); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		if remaining == 0 {
			break
		}
		take := quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, model.BatchAllocation{BatchID: id, AmountTaken: take})
		remaining -= take
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading eligible batches: %w", err)
	}

	if remaining > 0 {
		return nil, &InsufficientStockError{Shortfall: remaining}
	}
	return plan, nil
}

// applyAllocation decrements each planned batch with a conditional update
// that refuses to go below zero. A lost race (zero rows affected) surfaces
// as errPlanStale so the caller rolls back and replans; availability is
// therefore re-validated at apply time, not only at plan time.
func applyAllocation(ctx context.Context, tx *sql.Tx, plan []model.BatchAllocation) error {
	for _, step := range plan {
		result, err := tx.ExecContext(ctx,
			`UPDATE stock_batches SET quantity = quantity - ?
			 WHERE id = ? AND quantity >= ?`,
			step.AmountTaken, step.BatchID, step.AmountTaken,
		)
		if err != nil {
			return fmt.Errorf("decrementing batch %d: %w", step.BatchID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking decrement of batch %d: %w", step.BatchID, err)
		}
		if affected == 0 {
			return errPlanStale
		}
	}
	return nil
}

// scopeClause returns the SQL condition selecting batches eligible under
// the given scope. The hub pool covers central (unowned) batches plus
// batches held by hub facilities; hub identity comes from the facility
// registry, never from name matching.
func scopeClause(scope model.SourceScope) (string, []any) {
	if scope.IsAnyHub() {
		return `(source_id IS NULL OR source_id IN
		         (SELECT id FROM facilities WHERE type = 'hub' AND deleted_at IS NULL))`, nil
	}
	return `source_id = ?`, []any{scope.SourceID()}
}

func scanBatches(rows *sql.Rows) ([]model.StockBatch, error) {
	var batches []model.StockBatch
	for rows.Next() {
		var b model.StockBatch
		var supplier, expiresOn, notes, sourceName sql.NullString
		if err := rows.Scan(&b.ID, &b.ItemName, &b.Category, &b.Quantity, &b.Unit, &b.SourceID,
			&supplier, &expiresOn, &notes, &b.CreatedAt, &sourceName); err != nil {
			return nil, fmt.Errorf("scanning stock batch: %w", err)
		}
		b.Supplier = supplier.String
		b.ExpiresOn = expiresOn.String
		b.Notes = notes.String
		b.SourceName = sourceName.String
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
