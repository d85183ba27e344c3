// pkg/mlyerr/errors.go - Validation error taxonomy shared by all packages
package mlyerr

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidRangeError reports a numeric parameter outside its open interval
type InvalidRangeError struct {
	Param  string
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %v: %s", e.Param, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: must be between %v and %v (exclusive)", e.Param, e.Value, e.Min, e.Max)
}

// InvalidZoomError reports a zoom level the target layer does not serve
type InvalidZoomError struct {
	Layer string
	Zoom  int
	Min   int
	Max   int
}

func (e *InvalidZoomError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("invalid zoom %d for layer %q: must be %d", e.Zoom, e.Layer, e.Min)
	}
	return fmt.Sprintf("invalid zoom %d for layer %q: must be between %d and %d", e.Zoom, e.Layer, e.Min, e.Max)
}

// InvalidOptionError reports a value outside a closed set of options
type InvalidOptionError struct {
	Param   string
	Value   string
	Options []string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid %s %q: must be one of [%s]", e.Param, e.Value, strings.Join(e.Options, ", "))
}

// InvalidFieldError reports a requested field the endpoint does not expose
type InvalidFieldError struct {
	Field    string
	Endpoint string
	Valid    []string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %q for endpoint %q: valid fields are [%s]", e.Field, e.Endpoint, strings.Join(e.Valid, ", "))
}

// InvalidDateError reports a date string that cannot be normalized
type InvalidDateError struct {
	Input  string
	Field  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid date %q: %s %s", e.Input, e.Field, e.Reason)
}

// IsValidation reports whether err is, or wraps, one of the validation errors
// of this package
func IsValidation(err error) bool {
	var (
		rangeErr  *InvalidRangeError
		zoomErr   *InvalidZoomError
		optionErr *InvalidOptionError
		fieldErr  *InvalidFieldError
		dateErr   *InvalidDateError
	)
	return errors.As(err, &rangeErr) ||
		errors.As(err, &zoomErr) ||
		errors.As(err, &optionErr) ||
		errors.As(err, &fieldErr) ||
		errors.As(err, &dateErr)
}
