package repository

import (
	"context"
	"errors"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
)

// LedRepo appends and reads led_commands rows.
type LedRepo struct {
	db *database.DB
}

// NewLedRepo returns a new LedRepo bound to the given database.
func NewLedRepo(db *database.DB) *LedRepo { return &LedRepo{db: db} }

const latestLedQuery = `SELECT id, device_id, led_state, timestamp FROM led_commands
  WHERE device_id = ?
  ORDER BY timestamp DESC, id DESC LIMIT 1`

type executor interface {
	Execute(ctx context.Context, query string, fetchOne bool, args ...any) (*database.Result, error)
}

// Latest returns the most recent command for deviceID, or ErrNotFound.
func (r *LedRepo) Latest(ctx context.Context, deviceID string) (model.LedCommand, error) {
	return latestLed(ctx, r.db, deviceID)
}

// State returns the current LED state for deviceID.  A device with no
// recorded command, registered or not, is off.
func (r *LedRepo) State(ctx context.Context, deviceID string) (bool, error) {
	cmd, err := r.Latest(ctx, deviceID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cmd.LedState, nil
}

// Toggle flips the LED of a device owned by userID and returns the new
// state.  See ToggleTx.
func (r *LedRepo) Toggle(ctx context.Context, deviceID string, userID uint64) (bool, error) {
	var next bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		next, err = r.ToggleTx(ctx, tx, deviceID, userID)
		return err
	})
	return next, err
}

// ToggleTx runs the ownership check, the read of the current state and the
// append of its negation inside the caller's transaction.  The owned device
// row is locked first, so concurrent toggles of one device queue behind each
// other and strictly alternate.  A device not owned by userID yields
// ErrNotFound and writes nothing.
func (r *LedRepo) ToggleTx(ctx context.Context, tx *database.Tx, deviceID string, userID uint64) (bool, error) {
	_, err := tx.Execute(ctx,
		"SELECT device_id FROM devices WHERE device_id = ? AND user_id = ?"+tx.LockClause(), true,
		deviceID, userID)
	if errors.Is(err, database.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	current := false
	cmd, err := latestLed(ctx, tx, deviceID)
	switch {
	case err == nil:
		current = cmd.LedState
	case !errors.Is(err, ErrNotFound):
		return false, err
	}

	next := !current
	if _, err := tx.Execute(ctx,
		"INSERT INTO led_commands (device_id, led_state) VALUES (?, ?)", false,
		deviceID, next); err != nil {
		return false, err
	}
	return next, nil
}

func latestLed(ctx context.Context, q executor, deviceID string) (model.LedCommand, error) {
	res, err := q.Execute(ctx, latestLedQuery, true, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return model.LedCommand{}, ErrNotFound
		}
		return model.LedCommand{}, err
	}
	return model.LedCommand{
		ID:        res.Row.Uint64("id"),
		DeviceID:  res.Row.String("device_id"),
		LedState:  res.Row.Bool("led_state"),
		Timestamp: res.Row.Time("timestamp"),
	}, nil
}
