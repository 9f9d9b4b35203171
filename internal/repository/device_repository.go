package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
)

// DeviceRepo provides access to the devices table and the dashboard view
// built on top of it.
type DeviceRepo struct {
	db *database.DB
}

// NewDeviceRepo returns a new DeviceRepo bound to the given database.
func NewDeviceRepo(db *database.DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Create registers deviceID for userID.  Device ids are unique across all
// users; a taken id yields ErrDeviceExists.
func (r *DeviceRepo) Create(ctx context.Context, userID uint64, deviceID string) error {
	_, err := r.db.Execute(ctx,
		"INSERT INTO devices (user_id, device_id) VALUES (?, ?)", false,
		userID, deviceID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDeviceExists
		}
		return err
	}
	return nil
}

// GetOwned returns the device only when userID owns it.  A device that
// exists under another user is reported as ErrNotFound.
func (r *DeviceRepo) GetOwned(ctx context.Context, deviceID string, userID uint64) (model.Device, error) {
	res, err := r.db.Execute(ctx,
		"SELECT device_id, user_id, created_at FROM devices WHERE device_id = ? AND user_id = ? LIMIT 1", true,
		deviceID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return model.Device{}, ErrNotFound
		}
		return model.Device{}, err
	}
	return deviceFromRow(res.Row), nil
}

// statusQuery reads each owned device with its latest button report and
// latest LED command in one statement, so the dashboard sees a single
// consistent snapshot.  Missing events come back NULL and read as false.
const statusQuery = `SELECT d.device_id,
       (SELECT dd.button_state FROM device_data dd
         WHERE dd.device_id = d.device_id
         ORDER BY dd.timestamp DESC, dd.id DESC LIMIT 1) AS button_state,
       (SELECT lc.led_state FROM led_commands lc
         WHERE lc.device_id = d.device_id
         ORDER BY lc.timestamp DESC, lc.id DESC LIMIT 1) AS led_state
  FROM devices d
 WHERE d.user_id = ?
 ORDER BY d.id`

// StatusByUser returns the dashboard rows for userID.  A user without
// devices gets an empty, non-nil slice.
func (r *DeviceRepo) StatusByUser(ctx context.Context, userID uint64) ([]model.DeviceStatus, error) {
	res, err := r.db.Execute(ctx, statusQuery, false, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.DeviceStatus, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, model.DeviceStatus{
			DeviceID:    row.String("device_id"),
			ButtonState: row.Bool("button_state"),
			LedState:    row.Bool("led_state"),
		})
	}
	return out, nil
}

func deviceFromRow(row database.Row) model.Device {
	return model.Device{
		DeviceID:  row.String("device_id"),
		UserID:    row.Uint64("user_id"),
		CreatedAt: row.Time("created_at"),
	}
}
