package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	devices "smarthome-cloud/internal/devices/domain"
	"smarthome-cloud/internal/resource"
)

// DeviceRepository is a Postgres gateway storing devices as JSONB
// documents.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// GetByID fetches a device document by id.
func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
SELECT doc
FROM devices
WHERE id = $1`, deviceID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", deviceID, resource.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return scanDevice(doc)
}

// List returns all device documents in creation order.
func (r *DeviceRepository) List(ctx context.Context) ([]devices.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT doc
FROM devices
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []devices.Device
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		device, err := scanDevice(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or replaces a device document wholesale.
func (r *DeviceRepository) Upsert(ctx context.Context, device *devices.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	doc, err := json.Marshal(device)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO devices (id, doc, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, device.DeviceID, doc, device.CreatedAt)
	return err
}

// Delete removes a device document.
func (r *DeviceRepository) Delete(ctx context.Context, deviceID string) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
DELETE FROM devices
WHERE id = $1`, deviceID)
	if err != nil {
		return err
	}
	count, _ := result.RowsAffected()
	if count == 0 {
		return fmt.Errorf("device %s: %w", deviceID, resource.ErrNotFound)
	}
	return nil
}

func scanDevice(doc []byte) (*devices.Device, error) {
	var device devices.Device
	if err := json.Unmarshal(doc, &device); err != nil {
		return nil, err
	}
	return &device, nil
}
