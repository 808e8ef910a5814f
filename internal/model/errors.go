package model

import (
	"errors"
	"fmt"
)

// Process exit codes, one per failure category.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitBadSchema        = 2
	ExitConfiguration    = 3
	ExitIncompatible     = 4
	ExitInsufficientData = 5
)

// ParseError is a malformed row or field. The row is dropped and the stage continues.
type ParseError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: field %s=%q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// SchemaError reports a required input column that is absent.
type SchemaError struct {
	Path   string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("missing required column %q", e.Column)
	}
	return fmt.Sprintf("%s: missing required column %q", e.Path, e.Column)
}

// ConfigurationError is an invalid parameter or missing input. The stage aborts.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Param, e.Reason)
}

// IncompatibleWindowError is raised when series with different widths are merged.
type IncompatibleWindowError struct {
	Source   string
	Delta    float64
	Expected float64
}

func (e *IncompatibleWindowError) Error() string {
	return fmt.Sprintf("source %s has window width %g, expected %g", e.Source, e.Delta, e.Expected)
}

// InsufficientDataError means a single feature cannot be computed at the requested
// parameters. Sibling features are unaffected.
type InsufficientDataError struct {
	Feature  string
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s needs at least %d samples, got %d", e.Feature, e.Required, e.Got)
}

// ExitCode maps an error to the process exit code of its category.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		schemaErr       *SchemaError
		cfgErr          *ConfigurationError
		incompatibleErr *IncompatibleWindowError
		insufficientErr *InsufficientDataError
	)
	switch {
	case errors.As(err, &schemaErr):
		return ExitBadSchema
	case errors.As(err, &cfgErr):
		return ExitConfiguration
	case errors.As(err, &incompatibleErr):
		return ExitIncompatible
	case errors.As(err, &insufficientErr):
		return ExitInsufficientData
	default:
		return ExitFailure
	}
}
