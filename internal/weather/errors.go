package weather

import (
	"errors"
	"fmt"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

var (
	// ErrInvalidWindow matches every InvalidWindowParameterError.
	ErrInvalidWindow = errors.New("invalid window parameter")

	// ErrDataAccess matches every DataAccessError.
	ErrDataAccess = errors.New("data access failure")
)

// InvalidWindowParameterError rejects a window parameter outside its
// allowed values, e.g. before_days=5 or month 13.
type InvalidWindowParameterError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidWindowParameterError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidWindowParameterError) Is(target error) bool {
	return target == ErrInvalidWindow
}

// DataAccessError wraps a failure of the data store. It is the only error
// that indicates a server-side fault.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// IsClientError reports whether err was caused by bad caller input.
func IsClientError(err error) bool {
	var dfe *dateutil.DateFormatError
	return errors.As(err, &dfe) || errors.Is(err, ErrInvalidWindow)
}
