package weather

import (
	"context"
	"time"
)

// Store is the read-only contract of the observation database.
// Bounds are half-open: from <= measurement_time < to.
type Store interface {
	Observations(ctx context.Context, device string, from, to time.Time) ([]Observation, error)
	// DistinctMonths returns the YYYY-MM values holding data, newest first.
	DistinctMonths(ctx context.Context, device string) ([]string, error)
	// FirstDate and LastDate return midnight of the first and last day with
	// data, or nil when the device has none.
	FirstDate(ctx context.Context, device string) (*time.Time, error)
	LastDate(ctx context.Context, device string) (*time.Time, error)
	// LastObservation returns nil when the device has no data.
	LastObservation(ctx context.Context, device string) (*Observation, error)
}

// DeviceRegistry answers questions about registered devices.
type DeviceRegistry interface {
	DeviceExists(ctx context.Context, name string) (bool, error)
	ListDevices(ctx context.Context) ([]Device, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	Store
	DeviceRegistry
	Ping(ctx context.Context) error
	Close()
}
