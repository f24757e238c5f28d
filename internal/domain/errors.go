package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors abort the whole run.

type CircularDependencyError struct {
	Scope      string
	Unresolved []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected in %s: unresolved %s", e.Scope, strings.Join(e.Unresolved, ", "))
}

type MissingDependencyError struct {
	Field  string
	Target string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("field '%s' depends on unknown field '%s'", e.Field, e.Target)
}

type MissingRequiredFieldError struct {
	Domain string
	Fields []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("domain '%s': required fields for unique combinations are missing: %s", e.Domain, strings.Join(e.Fields, ", "))
}

type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format: %s", e.Format)
}

// KeyRangeExhaustedError is raised when a primary-key range cannot hold
// another unique key. Requested is zero when raised by a single allocation.
type KeyRangeExhaustedError struct {
	Field     string
	Start     int64
	End       int64
	Requested int
}

func (e *KeyRangeExhaustedError) Error() string {
	size := e.End - e.Start + 1
	if e.Requested > 0 {
		return fmt.Sprintf("primary key '%s': range [%d, %d] holds %d keys, %d requested", e.Field, e.Start, e.End, size, e.Requested)
	}
	return fmt.Sprintf("primary key '%s': range [%d, %d] exhausted", e.Field, e.Start, e.End)
}

// Field-generation errors discard a single record.

type MissingReferenceError struct {
	Domain string
	Field  string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("no generated records for referenced domain '%s' (field '%s')", e.Domain, e.Field)
}

type UnresolvedDependencyError struct {
	Field  string
	Target string
	Value  any
	Absent bool
}

func (e *UnresolvedDependencyError) Error() string {
	if e.Absent {
		return fmt.Sprintf("dependency field '%s' not found in the record", e.Target)
	}
	return fmt.Sprintf("field '%s': no outcome for %s=%v", e.Field, e.Target, e.Value)
}

type ComputedFieldError struct {
	Field   string
	Formula string
	Err     error
}

func (e *ComputedFieldError) Error() string {
	return fmt.Sprintf("computed field '%s' (%s): %v", e.Field, e.Formula, e.Err)
}

func (e *ComputedFieldError) Unwrap() error { return e.Err }

// DiscardedRecordError reports why the record builder dropped a record.
type DiscardedRecordError struct {
	Domain string
	Field  string
	Err    error
}

func (e *DiscardedRecordError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("domain '%s': field '%s' generated no value", e.Domain, e.Field)
	}
	return fmt.Sprintf("domain '%s': field '%s': %v", e.Domain, e.Field, e.Err)
}

func (e *DiscardedRecordError) Unwrap() error { return e.Err }

var ErrNilValue = errors.New("generated a nil value")

// IsConfigError reports whether err must abort the run rather than a single record.
func IsConfigError(err error) bool {
	var (
		cycle   *CircularDependencyError
		missing *MissingDependencyError
		anchors *MissingRequiredFieldError
		format  *UnsupportedFormatError
	)
	return errors.As(err, &cycle) || errors.As(err, &missing) ||
		errors.As(err, &anchors) || errors.As(err, &format)
}
