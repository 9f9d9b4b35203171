package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/testutil"
)

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	users := NewUserRepo(db)

	id, err := users.Create(ctx, "alice", "pw", 4)
	require.NoError(t, err)
	assert.NotZero(t, id)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := users.Create(ctx, "alice", "other", 4)
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("get by username", func(t *testing.T) {
		u, err := users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.NotEqual(t, "pw", u.PasswordHash)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("authenticate", func(t *testing.T) {
		u, err := users.Authenticate(ctx, "alice", "pw")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)

		_, err = users.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = users.Authenticate(ctx, "nobody", "pw")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeviceRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	devices := NewDeviceRepo(db)
	alice := testutil.CreateTestUser(t, db, "alice", "x")
	bob := testutil.CreateTestUser(t, db, "bob", "x")

	require.NoError(t, devices.Create(ctx, alice, "dev-b"))
	require.NoError(t, devices.Create(ctx, alice, "dev-a"))

	t.Run("device id is globally unique", func(t *testing.T) {
		assert.ErrorIs(t, devices.Create(ctx, alice, "dev-a"), ErrDeviceExists)
		assert.ErrorIs(t, devices.Create(ctx, bob, "dev-a"), ErrDeviceExists)
	})

	t.Run("get owned", func(t *testing.T) {
		d, err := devices.GetOwned(ctx, "dev-a", alice)
		require.NoError(t, err)
		assert.Equal(t, "dev-a", d.DeviceID)
		assert.Equal(t, alice, d.UserID)
		assert.False(t, d.CreatedAt.IsZero())

		_, err = devices.GetOwned(ctx, "dev-a", bob)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStatusByUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	devices := NewDeviceRepo(db)
	telemetry := NewTelemetryRepo(db)
	leds := NewLedRepo(db)
	alice := testutil.CreateTestUser(t, db, "alice", "x")
	testutil.CreateTestDevice(t, db, alice, "quiet")
	testutil.CreateTestDevice(t, db, alice, "busy")

	statuses, err := devices.StatusByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.False(t, s.ButtonState)
		assert.False(t, s.LedState)
	}

	require.NoError(t, telemetry.InsertIfRegistered(ctx, "busy", true))
	require.NoError(t, telemetry.InsertIfRegistered(ctx, "busy", false))
	require.NoError(t, telemetry.InsertIfRegistered(ctx, "busy", true))
	_, err = leds.Toggle(ctx, "busy", alice)
	require.NoError(t, err)

	statuses, err = devices.StatusByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "quiet", statuses[0].DeviceID)
	assert.False(t, statuses[0].ButtonState)
	assert.False(t, statuses[0].LedState)
	assert.Equal(t, "busy", statuses[1].DeviceID)
	assert.True(t, statuses[1].ButtonState)
	assert.True(t, statuses[1].LedState)

	none, err := devices.StatusByUser(ctx, alice+1)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTelemetryRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	telemetry := NewTelemetryRepo(db)
	alice := testutil.CreateTestUser(t, db, "alice", "x")
	testutil.CreateTestDevice(t, db, alice, "dev-1")

	_, err := telemetry.Latest(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("unregistered device writes nothing", func(t *testing.T) {
		err := telemetry.InsertIfRegistered(ctx, "ghost", true)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, testutil.CountRows(t, db, "device_data", "ghost"))
	})

	t.Run("latest wins", func(t *testing.T) {
		require.NoError(t, telemetry.InsertIfRegistered(ctx, "dev-1", true))
		require.NoError(t, telemetry.InsertIfRegistered(ctx, "dev-1", false))

		d, err := telemetry.Latest(ctx, "dev-1")
		require.NoError(t, err)
		assert.False(t, d.ButtonState)
		assert.Equal(t, "dev-1", d.DeviceID)
		assert.False(t, d.Timestamp.IsZero())
		assert.Equal(t, 2, testutil.CountRows(t, db, "device_data", "dev-1"))
	})
}

func TestLedRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	leds := NewLedRepo(db)
	alice := testutil.CreateTestUser(t, db, "alice", "x")
	bob := testutil.CreateTestUser(t, db, "bob", "x")
	testutil.CreateTestDevice(t, db, alice, "dev-1")

	t.Run("no commands means off", func(t *testing.T) {
		on, err := leds.State(ctx, "dev-1")
		require.NoError(t, err)
		assert.False(t, on)

		on, err = leds.State(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, on)
	})

	t.Run("toggle alternates", func(t *testing.T) {
		for _, want := range []bool{true, false, true} {
			got, err := leds.Toggle(ctx, "dev-1", alice)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			on, err := leds.State(ctx, "dev-1")
			require.NoError(t, err)
			assert.Equal(t, want, on)
		}
		assert.Equal(t, 3, testutil.CountRows(t, db, "led_commands", "dev-1"))
	})

	t.Run("non-owner cannot toggle", func(t *testing.T) {
		_, err := leds.Toggle(ctx, "dev-1", bob)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = leds.Toggle(ctx, "ghost", alice)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 3, testutil.CountRows(t, db, "led_commands", "dev-1"))
	})

	t.Run("toggle inside caller transaction rolls back", func(t *testing.T) {
		err := db.WithTx(ctx, func(tx *database.Tx) error {
			_, err := leds.ToggleTx(ctx, tx, "dev-1", alice)
			require.NoError(t, err)
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, testutil.CountRows(t, db, "led_commands", "dev-1"))
	})
}

func TestConcurrentToggleAlternates(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	leds := NewLedRepo(db)
	alice := testutil.CreateTestUser(t, db, "alice", "x")
	testutil.CreateTestDevice(t, db, alice, "dev-1")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := leds.Toggle(ctx, "dev-1", alice); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("toggle failed: %v", err)
	}

	res, err := db.Execute(ctx,
		"SELECT led_state FROM led_commands WHERE device_id = ? ORDER BY id", false, "dev-1")
	require.NoError(t, err)
	require.Len(t, res.Rows, n)
	for i, row := range res.Rows {
		assert.Equal(t, i%2 == 0, row.Bool("led_state"), "command %d", i)
	}

	on, err := leds.State(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, on)
}
