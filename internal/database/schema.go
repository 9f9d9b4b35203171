package database

import (
	"context"
	"fmt"
)

// CreateSchema creates all tables needed by the application in the dialect
// of the open driver.  Safe to call multiple times - uses IF NOT EXISTS.
//
// device_data and led_commands are append-only; "current" state is the row
// with the greatest (timestamp, id).  The auto-increment id breaks ties
// between rows written within the same clock tick.
func (db *DB) CreateSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if db.driver == DriverMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(80)  NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS devices (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		device_id  VARCHAR(64)     NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_devices_device_id (device_id),
		KEY idx_devices_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS device_data (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		device_id    VARCHAR(64) NOT NULL,
		button_state BOOLEAN     NOT NULL,
		timestamp    DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_device_data_latest (device_id, timestamp, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS led_commands (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		device_id VARCHAR(64) NOT NULL,
		led_state BOOLEAN     NOT NULL,
		timestamp DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		KEY idx_led_commands_latest (device_id, timestamp, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT     NOT NULL UNIQUE,
		password_hash TEXT     NOT NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id  TEXT     NOT NULL UNIQUE,
		user_id    INTEGER  NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_user ON devices(user_id)`,
	`CREATE TABLE IF NOT EXISTS device_data (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id    TEXT     NOT NULL,
		button_state BOOLEAN  NOT NULL,
		timestamp    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_data_latest ON device_data(device_id, timestamp, id)`,
	`CREATE TABLE IF NOT EXISTS led_commands (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT     NOT NULL,
		led_state BOOLEAN  NOT NULL,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_led_commands_latest ON led_commands(device_id, timestamp, id)`,
}
