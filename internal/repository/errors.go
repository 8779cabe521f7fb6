package repository

import "errors"

var (
	// ErrCaptureNotFound indicates no capture has the requested id
	ErrCaptureNotFound = errors.New("capture not found")

	// ErrUnsupportedDriver indicates a database driver this package has no schema for
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrInvalidRecord indicates a record missing a required field
	ErrInvalidRecord = errors.New("invalid record")
)
