package classifier

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrExtractionFailure = errors.New("model response could not be understood")
	ErrUpstreamFailure   = errors.New("upstream model call failed")
)

const (
	KindInvalidInput      = "invalid_input"
	KindExtractionFailure = "extraction_failure"
	KindUpstreamFailure   = "upstream_failure"
	KindInternal          = "internal"
)

// Kind names the class of a classifier error for transports.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrExtractionFailure):
		return KindExtractionFailure
	case errors.Is(err, ErrUpstreamFailure):
		return KindUpstreamFailure
	default:
		return KindInternal
	}
}

func invalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func upstreamFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
}
