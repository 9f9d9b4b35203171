// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
	"github.com/iliyamo/greenhouse-led-hub/internal/database"
)

// TestSecret signs sessions and tokens in tests.
const TestSecret = "test-secret-key"

// SetupTestDB opens a fresh SQLite database with the full schema in a
// temporary directory.  It is closed automatically when the test ends.
func SetupTestDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(config.DBConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.CreateSchema(context.Background()), "create schema")
	return db
}

// GetTestConfig returns a standard test configuration.  The bcrypt cost is
// the minimum so password tests stay fast.
func GetTestConfig() config.Config {
	return config.Config{
		Env:          "test",
		Port:         "0",
		SecretKey:    TestSecret,
		JWTSecret:    TestSecret,
		AccessTTLMin: 15,
		BcryptCost:   4,
		SessionName:  "session",
		DB:           config.DBConfig{Driver: database.DriverSQLite, MaxOpenConns: 1},
		Log:          config.LogConfig{Level: "error", Format: "json"},
	}
}

// CreateTestUser inserts a user row directly and returns its id.
func CreateTestUser(t testing.TB, db *database.DB, username, passwordHash string) uint64 {
	t.Helper()

	res, err := db.Execute(context.Background(),
		"INSERT INTO users (username, password_hash) VALUES (?, ?)", false, username, passwordHash)
	require.NoError(t, err, "create test user")
	return uint64(res.LastInsertID)
}

// CreateTestDevice inserts a device owned by userID.
func CreateTestDevice(t testing.TB, db *database.DB, userID uint64, deviceID string) {
	t.Helper()

	_, err := db.Execute(context.Background(),
		"INSERT INTO devices (user_id, device_id) VALUES (?, ?)", false, userID, deviceID)
	require.NoError(t, err, "create test device")
}

// CountRows returns the number of rows in table matching device_id.
func CountRows(t testing.TB, db *database.DB, table, deviceID string) int {
	t.Helper()

	res, err := db.Execute(context.Background(),
		"SELECT COUNT(*) AS n FROM "+table+" WHERE device_id = ?", true, deviceID)
	require.NoError(t, err, "count %s", table)
	return int(res.Row.Int64("n"))
}

// SetupTestRedis starts an in-process Redis server and returns a client for
// it.  Both are shut down when the test ends.
func SetupTestRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, srv
}

// GetTestCacheConfig returns an enabled LED poll cache configuration.
func GetTestCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		Prefix:       "ledcache",
		MaxBodyBytes: 4096,
	}
}
