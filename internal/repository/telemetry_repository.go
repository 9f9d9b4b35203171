package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
)

// TelemetryRepo appends and reads device_data rows.
type TelemetryRepo struct {
	db *database.DB
}

// NewTelemetryRepo returns a new TelemetryRepo bound to the given database.
func NewTelemetryRepo(db *database.DB) *TelemetryRepo { return &TelemetryRepo{db: db} }

// InsertIfRegistered appends a button report for deviceID.  The existence
// check and the insert are one statement: when deviceID is not registered
// nothing is written and ErrNotFound is returned.
func (r *TelemetryRepo) InsertIfRegistered(ctx context.Context, deviceID string, buttonState bool) error {
	res, err := r.db.Execute(ctx,
		`INSERT INTO device_data (device_id, button_state)
		 SELECT device_id, ? FROM devices WHERE device_id = ?`, false,
		buttonState, deviceID)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Latest returns the most recent report for deviceID, or ErrNotFound.
func (r *TelemetryRepo) Latest(ctx context.Context, deviceID string) (model.DeviceData, error) {
	res, err := r.db.Execute(ctx,
		`SELECT id, device_id, button_state, timestamp FROM device_data
		  WHERE device_id = ?
		  ORDER BY timestamp DESC, id DESC LIMIT 1`, true, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return model.DeviceData{}, ErrNotFound
		}
		return model.DeviceData{}, err
	}
	return model.DeviceData{
		ID:          res.Row.Uint64("id"),
		DeviceID:    res.Row.String("device_id"),
		ButtonState: res.Row.Bool("button_state"),
		Timestamp:   res.Row.Time("timestamp"),
	}, nil
}
