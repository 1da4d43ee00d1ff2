package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/zavetisce/internal/model"
)

// AppendOccupancyEvent appends a check-in or check-out event to a
// facility's occupancy ledger. The event is immutable once stored; totals
// are always derived at read time. An empty occurredOn defaults to today.
func AppendOccupancyEvent(ctx context.Context, db *sql.DB, facilityID int64, direction string, amount int, occurredOn, note string) (*model.OccupancyEvent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if direction != model.DirectionIn && direction != model.DirectionOut {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}

	if occurredOn == "" {
		occurredOn = time.Now().Format(model.DayFormat)
	} else if _, err := time.Parse(model.DayFormat, occurredOn); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", occurredOn, err)
	}

	exists, err := facilityExists(ctx, db, facilityID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO occupancy_events (facility_id, direction, amount, occurred_on, note)
		 VALUES (?, ?, ?, ?, ?)`,
		facilityID, direction, amount, occurredOn, note,
	)
	if err != nil {
		return nil, fmt.Errorf("appending occupancy event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting event id: %w", err)
	}

	return GetOccupancyEvent(ctx, db, id)
}

// GetOccupancyEvent returns an occupancy event by ID.
func GetOccupancyEvent(ctx context.Context, db *sql.DB, id int64) (*model.OccupancyEvent, error) {
	e := &model.OccupancyEvent{}
	var note sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, facility_id, direction, amount, occurred_on, note, created_at
		 FROM occupancy_events WHERE id = ?`, id,
	).Scan(&e.ID, &e.FacilityID, &e.Direction, &e.Amount, &e.OccurredOn, &note, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting occupancy event: %w", err)
	}
	e.Note = note.String
	return e, nil
}

// CurrentOccupancy derives a facility's occupancy from its ledger:
// sum(in) - sum(out), floored at 0. A negative raw total means more
// check-outs than check-ins were ever recorded; it is tolerated (bulk
// imports can carry partial histories) but logged as a data-quality signal.
func CurrentOccupancy(ctx context.Context, db *sql.DB, facilityID int64) (int, error) {
	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN direction = 'in' THEN amount ELSE -amount END), 0)
		 FROM occupancy_events WHERE facility_id = ?`, facilityID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing occupancy events: %w", err)
	}

	if total < 0 {
		slog.Warn("occupancy ledger sums below zero", "facility", facilityID, "raw_total", total)
		return 0, nil
	}
	return total, nil
}

// GetOccupancySnapshot returns the derived occupancy and capacity status
// for a facility. Reads are idempotent: no writes happen on this path.
func GetOccupancySnapshot(ctx context.Context, db *sql.DB, facilityID int64) (*model.OccupancySnapshot, error) {
	facility, err := GetFacility(ctx, db, facilityID)
	if err != nil {
		return nil, err
	}
	if facility == nil {
		return nil, ErrNotFound
	}

	current, err := CurrentOccupancy(ctx, db, facilityID)
	if err != nil {
		return nil, err
	}

	return &model.OccupancySnapshot{
		FacilityID: facilityID,
		Current:    current,
		Capacity:   facility.Capacity,
		Status:     model.ClassifyCapacity(current, facility.Capacity),
	}, nil
}

// DailyMovement returns per-day (in, out) totals ordered by day.
// A facilityID of 0 aggregates the whole fleet. Empty from/to leave the
// range unbounded on that side. Consumers rebuild the occupancy trend by
// walking back from the current total and undoing each day's net movement.
func DailyMovement(ctx context.Context, db *sql.DB, facilityID int64, from, to string) ([]model.DailyMovement, error) {
	query := `SELECT occurred_on,
	                 COALESCE(SUM(CASE WHEN direction = 'in' THEN amount ELSE 0 END), 0),
	                 COALESCE(SUM(CASE WHEN direction = 'out' THEN amount ELSE 0 END), 0)
	          FROM occupancy_events WHERE 1=1`
	var args []any

	if facilityID > 0 {
		query += ` AND facility_id = ?`
		args = append(args, facilityID)
	}
	if from != "" {
		query += ` AND occurred_on >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND occurred_on <= ?`
		args = append(args, to)
	}

	query += ` GROUP BY occurred_on ORDER BY occurred_on`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying daily movement: %w", err)
	}
	defer rows.Close()

	var days []model.DailyMovement
	for rows.Next() {
		var d model.DailyMovement
		if err := rows.Scan(&d.Day, &d.In, &d.Out); err != nil {
			return nil, fmt.Errorf("scanning daily movement: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// FleetMovement returns total (in, out) movement across the given
// facilities over a date range. An empty facilityIDs covers all facilities.
func FleetMovement(ctx context.Context, db *sql.DB, facilityIDs []int64, from, to string) (in, out int, err error) {
	query := `SELECT COALESCE(SUM(CASE WHEN direction = 'in' THEN amount ELSE 0 END), 0),
	                 COALESCE(SUM(CASE WHEN direction = 'out' THEN amount ELSE 0 END), 0)
	          FROM occupancy_events WHERE 1=1`
	var args []any

	if len(facilityIDs) > 0 {
		query += ` AND facility_id IN (?` + strings.Repeat(", ?", len(facilityIDs)-1) + `)`
		for _, id := range facilityIDs {
			args = append(args, id)
		}
	}
	if from != "" {
		query += ` AND occurred_on >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND occurred_on <= ?`
		args = append(args, to)
	}

	if err := db.QueryRowContext(ctx, query, args...).Scan(&in, &out); err != nil {
		return 0, 0, fmt.Errorf("querying fleet movement: %w", err)
	}
	return in, out, nil
}

// ListOccupancyEvents returns a facility's raw ledger, newest first.
func ListOccupancyEvents(ctx context.Context, db *sql.DB, facilityID int64) ([]model.OccupancyEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, facility_id, direction, amount, occurred_on, note, created_at
		 FROM occupancy_events WHERE facility_id = ?
		 ORDER BY occurred_on DESC, id DESC`, facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing occupancy events: %w", err)
	}
	defer rows.Close()

	var events []model.OccupancyEvent
	for rows.Next() {
		var e model.OccupancyEvent
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.FacilityID, &e.Direction, &e.Amount, &e.OccurredOn, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning occupancy event: %w", err)
		}
		e.Note = note.String
		events = append(events, e)
	}
	return events, rows.Err()
}
