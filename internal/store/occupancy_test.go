package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/zavetisce/internal/db"
	"github.com/erazemk/zavetisce/internal/model"
)

func createTestShelter(t *testing.T, ctx context.Context, database *sql.DB, name string, capacity int) *model.Facility {
	t.Helper()
	f, err := CreateFacility(ctx, database, name, model.FacilityTypeShelter, "", "", capacity)
	if err != nil {
		t.Fatalf("CreateFacility: %v", err)
	}
	return f
}

func TestAppendOccupancyEventValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	if _, err := AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 0, "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, -5, "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := AppendOccupancyEvent(ctx, database, shelter.ID, "sideways", 5, "", ""); err == nil {
		t.Error("expected error for unknown direction")
	}
	if _, err := AppendOccupancyEvent(ctx, database, 9999, model.DirectionIn, 5, "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown facility: expected ErrNotFound, got %v", err)
	}
	if _, err := AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 5, "not-a-date", ""); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestCurrentOccupancyDerivation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 30, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 10, "2026-08-02", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 5, "2026-08-03", "")

	current, err := CurrentOccupancy(ctx, database, shelter.ID)
	if err != nil {
		t.Fatalf("CurrentOccupancy: %v", err)
	}
	if current != 25 {
		t.Errorf("expected occupancy 25, got %d", current)
	}

	// Reading again is idempotent.
	again, _ := CurrentOccupancy(ctx, database, shelter.ID)
	if again != 25 {
		t.Errorf("expected occupancy 25 on re-read, got %d", again)
	}
}

func TestCurrentOccupancyFloorsAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 5, "", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 20, "", "")

	current, err := CurrentOccupancy(ctx, database, shelter.ID)
	if err != nil {
		t.Fatalf("CurrentOccupancy: %v", err)
	}
	if current != 0 {
		t.Errorf("expected occupancy floored at 0, got %d", current)
	}
}

func TestOccupancySnapshotStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	check := func(want int, wantStatus string) {
		t.Helper()
		snap, err := GetOccupancySnapshot(ctx, database, shelter.ID)
		if err != nil {
			t.Fatalf("GetOccupancySnapshot: %v", err)
		}
		if snap.Current != want {
			t.Errorf("expected occupancy %d, got %d", want, snap.Current)
		}
		if snap.Status != wantStatus {
			t.Errorf("expected status %q at occupancy %d, got %q", wantStatus, want, snap.Status)
		}
	}

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 90, "", "")
	check(90, model.CapacityNearFull)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 15, "", "")
	check(105, model.CapacityOver)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 10, "", "")
	check(95, model.CapacityNearFull)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 20, "", "")
	check(75, model.CapacityNormal)
}

func TestOccupancySnapshotUnknownFacility(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := GetOccupancySnapshot(ctx, database, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDailyMovementGrouping(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 10, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 5, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 3, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 7, "2026-08-02", "")

	days, err := DailyMovement(ctx, database, shelter.ID, "", "")
	if err != nil {
		t.Fatalf("DailyMovement: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Day != "2026-08-01" || days[0].In != 15 || days[0].Out != 3 {
		t.Errorf("day 1: got %+v", days[0])
	}
	if days[1].Day != "2026-08-02" || days[1].In != 7 || days[1].Out != 0 {
		t.Errorf("day 2: got %+v", days[1])
	}
}

func TestDailyMovementDateRange(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 1, "2026-07-31", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 2, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 3, "2026-08-15", "")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 4, "2026-09-01", "")

	days, err := DailyMovement(ctx, database, shelter.ID, "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("DailyMovement: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days in range, got %d", len(days))
	}
	if days[0].Day != "2026-08-01" || days[1].Day != "2026-08-15" {
		t.Errorf("unexpected days: %+v", days)
	}
}

func TestFleetMovement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	north := createTestShelter(t, ctx, database, "North Shelter", 100)
	south := createTestShelter(t, ctx, database, "South Shelter", 50)
	other := createTestShelter(t, ctx, database, "Excluded Shelter", 50)

	AppendOccupancyEvent(ctx, database, north.ID, model.DirectionIn, 10, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, south.ID, model.DirectionIn, 20, "2026-08-01", "")
	AppendOccupancyEvent(ctx, database, south.ID, model.DirectionOut, 5, "2026-08-02", "")
	AppendOccupancyEvent(ctx, database, other.ID, model.DirectionIn, 99, "2026-08-01", "")

	in, out, err := FleetMovement(ctx, database, []int64{north.ID, south.ID}, "", "")
	if err != nil {
		t.Fatalf("FleetMovement: %v", err)
	}
	if in != 30 || out != 5 {
		t.Errorf("expected in=30 out=5, got in=%d out=%d", in, out)
	}

	// Empty ID list covers everything.
	in, out, err = FleetMovement(ctx, database, nil, "", "")
	if err != nil {
		t.Fatalf("FleetMovement: %v", err)
	}
	if in != 129 || out != 5 {
		t.Errorf("expected in=129 out=5, got in=%d out=%d", in, out)
	}
}

func TestListOccupancyEvents(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	shelter := createTestShelter(t, ctx, database, "North Shelter", 100)

	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionIn, 10, "2026-08-01", "bus arrival")
	AppendOccupancyEvent(ctx, database, shelter.ID, model.DirectionOut, 2, "2026-08-02", "")

	events, err := ListOccupancyEvents(ctx, database, shelter.ID)
	if err != nil {
		t.Fatalf("ListOccupancyEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Newest day first.
	if events[0].OccurredOn != "2026-08-02" {
		t.Errorf("expected newest event first, got %q", events[0].OccurredOn)
	}
	if events[1].Note != "bus arrival" {
		t.Errorf("expected note to round-trip, got %q", events[1].Note)
	}
}
