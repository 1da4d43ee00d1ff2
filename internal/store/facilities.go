package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zavetisce/internal/model"
)

// CreateFacility creates a new facility (shelter or hub).
func CreateFacility(ctx context.Context, db *sql.DB, name, facilityType, district, phone string, capacity int) (*model.Facility, error) {
	if facilityType != model.FacilityTypeShelter && facilityType != model.FacilityTypeHub {
		return nil, fmt.Errorf("invalid facility type %q", facilityType)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("capacity must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO facilities (name, type, district, phone, capacity) VALUES (?, ?, ?, ?, ?)`,
		name, facilityType, district, phone, capacity,
	)
	if err != nil {
		return nil, fmt.Errorf("creating facility: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting facility id: %w", err)
	}

	return GetFacility(ctx, db, id)
}

// GetFacility returns a facility by ID.
func GetFacility(ctx context.Context, db *sql.DB, id int64) (*model.Facility, error) {
	f := &model.Facility{}
	var district, phone, photoMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, type, district, phone, capacity, photo_mime, created_at, deleted_at
		 FROM facilities WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Type, &district, &phone, &f.Capacity, &photoMime, &f.CreatedAt, &f.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting facility: %w", err)
	}
	f.District = district.String
	f.Phone = phone.String
	f.PhotoMime = photoMime.String
	return f, nil
}

// ListFacilities returns all non-deleted facilities, optionally filtered by type.
func ListFacilities(ctx context.Context, db *sql.DB, facilityType string) ([]model.Facility, error) {
	var rows *sql.Rows
	var err error

	if facilityType != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, type, district, phone, capacity, photo_mime, created_at, deleted_at
			 FROM facilities WHERE deleted_at IS NULL AND type = ? ORDER BY name`, facilityType,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, type, district, phone, capacity, photo_mime, created_at, deleted_at
			 FROM facilities WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing facilities: %w", err)
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		var district, phone, photoMime sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &district, &phone, &f.Capacity, &photoMime, &f.CreatedAt, &f.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		f.District = district.String
		f.Phone = phone.String
		f.PhotoMime = photoMime.String
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

// UpdateFacility updates a facility's metadata. The type is fixed at
// creation time since hub identity decides stock-pool eligibility.
func UpdateFacility(ctx context.Context, db *sql.DB, id int64, name, district, phone string, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	_, err := db.ExecContext(ctx,
		`UPDATE facilities SET name = ?, district = ?, phone = ?, capacity = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		name, district, phone, capacity, id,
	)
	if err != nil {
		return fmt.Errorf("updating facility: %w", err)
	}
	return nil
}

// DeleteFacility soft-deletes a facility. Fails if the facility still holds
// stock so batches never point at a deleted source.
func DeleteFacility(ctx context.Context, db *sql.DB, id int64) error {
	var held int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE source_id = ?`, id,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("checking facility stock: %w", err)
	}
	if held > 0 {
		return fmt.Errorf("cannot delete facility: still holds %d units of stock", held)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE facilities SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting facility: %w", err)
	}
	return nil
}

// SetFacilityPhoto sets a facility's photo data.
func SetFacilityPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE facilities SET photo = ?, photo_mime = ? WHERE id = ? AND deleted_at IS NULL`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting facility photo: %w", err)
	}
	return nil
}

// GetFacilityPhoto returns a facility's photo data and MIME type.
func GetFacilityPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM facilities WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting facility photo: %w", err)
	}
	return photo, mime.String, nil
}

// facilityExists reports whether a non-deleted facility with the given ID exists.
func facilityExists(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM facilities WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking facility: %w", err)
	}
	return count > 0, nil
}
