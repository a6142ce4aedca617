package core

import "errors"

var (
	// ErrConfiguration marks invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotConfigured is returned when a fetch is attempted before a usable configuration exists.
	ErrNotConfigured = errors.New("rematerializer is not configured")

	// ErrConnectivity marks an unreachable or failed backing database.
	ErrConnectivity = errors.New("connectivity error")

	// ErrBinding marks a primary key value that cannot be bound to its column type.
	ErrBinding = errors.New("binding error")

	// ErrMapping marks a result value that cannot be converted to its logical type.
	ErrMapping = errors.New("mapping error")
)
