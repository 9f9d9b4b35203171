// Package repository defines the data access for users, devices and the two
// append-only device event tables.  The sentinel values below let handlers
// distinguish expected outcomes from infrastructure failures, which are
// always returned wrapped.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist, or when a device
// exists but belongs to another user.  Handlers translate it into a 404 on
// API routes and a flashed "not found" message on web routes.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when registering a taken username.
var ErrUsernameExists = errors.New("username already exists")

// ErrDeviceExists is returned when a device_id is already registered by any
// user.  Device ids are globally unique.
var ErrDeviceExists = errors.New("device id already exists")
