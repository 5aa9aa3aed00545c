package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/plot-weather/internal/dateutil"
	"github.com/i474232898/plot-weather/internal/weather"
)

var (
	// ErrUnknownDevice is returned when appending rows for an unregistered device.
	ErrUnknownDevice = errors.New("device is not registered")
)

// deviceHistory holds a time-ordered list of observations for a device.
type deviceHistory struct {
	observations []weather.Observation
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Backend.
type MemoryStore struct {
	mu sync.RWMutex

	// registration order, mirrors the id order of the SQL stores
	order []string
	// key: device name
	data map[string]*deviceHistory

	loc *time.Location
}

// NewMemoryStore creates an empty store reporting dates in loc.
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryStore{
		data: make(map[string]*deviceHistory),
		loc:  loc,
	}
}

// AddDevice registers a device. Registering twice is a no-op.
func (s *MemoryStore) AddDevice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[name]; ok {
		return
	}
	s.data[name] = &deviceHistory{}
	s.order = append(s.order, name)
}

// Append adds observations for a registered device, keeping them ordered by time.
func (s *MemoryStore) Append(device string, obs ...weather.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[device]
	if !ok {
		return ErrUnknownDevice
	}

	history.observations = append(history.observations, obs...)
	sort.SliceStable(history.observations, func(i, j int) bool {
		return history.observations[i].MeasurementTime.Before(history.observations[j].MeasurementTime)
	})
	return nil
}

// Observations returns the rows with from <= measurement_time < to.
func (s *MemoryStore) Observations(_ context.Context, device string, from, to time.Time) ([]weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.Observation, 0)
	history, ok := s.data[device]
	if !ok {
		return result, nil
	}

	for _, o := range history.observations {
		if !o.MeasurementTime.Before(from) && o.MeasurementTime.Before(to) {
			result = append(result, o)
		}
	}
	return result, nil
}

// DistinctMonths returns the months holding data, newest first.
func (s *MemoryStore) DistinctMonths(_ context.Context, device string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	months := make([]string, 0)
	history, ok := s.data[device]
	if !ok {
		return months, nil
	}

	seen := make(map[string]struct{})
	for _, o := range history.observations {
		ym := o.MeasurementTime.In(s.loc).Format(dateutil.LayoutYearMonth)
		if _, dup := seen[ym]; dup {
			continue
		}
		seen[ym] = struct{}{}
		months = append(months, ym)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months, nil
}

// FirstDate returns midnight of the first day with data.
func (s *MemoryStore) FirstDate(_ context.Context, device string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[device]
	if !ok || len(history.observations) == 0 {
		return nil, nil
	}
	d := s.dateOf(history.observations[0].MeasurementTime)
	return &d, nil
}

// LastDate returns midnight of the last day with data.
func (s *MemoryStore) LastDate(_ context.Context, device string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[device]
	if !ok || len(history.observations) == 0 {
		return nil, nil
	}
	d := s.dateOf(history.observations[len(history.observations)-1].MeasurementTime)
	return &d, nil
}

// LastObservation returns the most recent observation of a device.
func (s *MemoryStore) LastObservation(_ context.Context, device string) (*weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[device]
	if !ok || len(history.observations) == 0 {
		return nil, nil
	}
	last := history.observations[len(history.observations)-1]
	return &last, nil
}

// DeviceExists reports whether name was registered.
func (s *MemoryStore) DeviceExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[name]
	return ok, nil
}

// ListDevices returns the devices in registration order.
func (s *MemoryStore) ListDevices(_ context.Context) ([]weather.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]weather.Device, 0, len(s.order))
	for _, name := range s.order {
		devices = append(devices, weather.Device{Name: name})
	}
	return devices, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) dateOf(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
