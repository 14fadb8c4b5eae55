package models

import (
	"errors"
	"fmt"
)

// DataError marks missing or malformed requirement/evidence data.
// It aborts scoring for the affected requirement only - the requirement is
// excluded from the portfolio average with an incomplete marker, never
// silently treated as score 0.
type DataError struct {
	Subject string
	Reason  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error (%s): %s", e.Subject, e.Reason)
}

// IntegrityError marks a condition that would corrupt compliance state:
// hash mismatch, dependency cycle, or duplicate change ID with differing
// content. Fatal to the current cycle step, prior persisted state is
// untouched.
type IntegrityError struct {
	Subject string
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error (%s): %s", e.Subject, e.Reason)
}

// TransientError wraps a store or channel failure that is worth retrying
// with backoff before being downgraded to a recorded failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ConfigurationError marks an invalid configuration value.
// Configuration is validated at startup - this error never surfaces at
// runtime.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Reason)
}

// IsDataError reports whether err is (or wraps) a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsTransientError reports whether err is (or wraps) a TransientError.
func IsTransientError(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
