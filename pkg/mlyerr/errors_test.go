// pkg/mlyerr/errors_test.go - Tests for validation error messages
package mlyerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&InvalidRangeError{Param: "longitude", Value: 181, Min: -180, Max: 180}, "invalid longitude 181: must be between -180 and 180 (exclusive)"},
		{&InvalidRangeError{Param: "east", Value: 1, Reason: "must not be less than west"}, "invalid east 1: must not be less than west"},
		{&InvalidZoomError{Layer: "image", Zoom: 13, Min: 14, Max: 14}, `invalid zoom 13 for layer "image": must be 14`},
		{&InvalidZoomError{Layer: "sequence", Zoom: 3, Min: 6, Max: 14}, `invalid zoom 3 for layer "sequence": must be between 6 and 14`},
		{&InvalidOptionError{Param: "image_type", Value: "x", Options: []string{"pano", "flat", "all"}}, `invalid image_type "x": must be one of [pano, flat, all]`},
		{&InvalidFieldError{Field: "bogus", Endpoint: "image", Valid: []string{"altitude"}}, `invalid field "bogus" for endpoint "image": valid fields are [altitude]`},
		{&InvalidDateError{Input: "2020-13", Field: "month", Reason: "must be between 1 and 12"}, `invalid date "2020-13": month must be between 1 and 12`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(&InvalidZoomError{}))
	assert.True(t, IsValidation(fmt.Errorf("query: %w", &InvalidFieldError{})))
	assert.False(t, IsValidation(errors.New("connection refused")))
	assert.False(t, IsValidation(nil))
}
