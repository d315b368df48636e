// Package errors provides the error taxonomy and warning system for the
// biotypes analysis pipeline. Errors carry structured fields and stack
// traces via cockroachdb/errors and marshal themselves onto zerolog events.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("biotypes-warning: %v\n", w)
	}
	// zerolog sink, installed lazily by pkg/log to avoid an import cycle.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler. Warnings
// such as NumericalInstabilityWarning are reported through it; they never
// abort the computation that raised them.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the zerolog warning sink (set by pkg/log).
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a warning. If a zerolog sink is installed it takes
// precedence over the plain handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// InvalidParameterError indicates caller misuse: a malformed k, mismatched
// column sets, or non-aligned row counts. It aborts the whole run.
type InvalidParameterError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("biotypes: invalid parameter '%s': %s (got: %v)", e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *InvalidParameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidParameterError")
}

// NewInvalidParameterError creates an InvalidParameterError with a stack trace.
func NewInvalidParameterError(param, reason string, value interface{}) error {
	err := &InvalidParameterError{Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// RankDeficiencyError indicates that a matrix offered to the CCA fitter has
// fewer independent dimensions than required. Inside resampling loops the
// iteration that hit it is recorded as absent and the loop continues; for
// the single full-data fit it is fatal.
type RankDeficiencyError struct {
	Op     string
	Rank   int
	Needed int
}

func (e *RankDeficiencyError) Error() string {
	return fmt.Sprintf("biotypes: %s: rank-deficient input (rank %d, need %d); reduce k or collect more subjects", e.Op, e.Rank, e.Needed)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *RankDeficiencyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rank", e.Rank).
		Int("needed", e.Needed).
		Str("type", "RankDeficiencyError")
}

// NewRankDeficiencyError creates a RankDeficiencyError with a stack trace.
func NewRankDeficiencyError(op string, rank, needed int) error {
	err := &RankDeficiencyError{Op: op, Rank: rank, Needed: needed}
	return errors.WithStack(err)
}

// IsRankDeficiency reports whether err is (or wraps) a RankDeficiencyError.
func IsRankDeficiency(err error) bool {
	var target *RankDeficiencyError
	return errors.As(err, &target)
}

// NotFittedError is returned when Project or loading extraction is called
// on a model that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("biotypes: %s: not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports an axis-level shape mismatch between two matrices
// or between a matrix and a fitted model.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows/subjects, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("biotypes: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// NumericalInstabilityWarning flags a near-singular covariance or
// ill-conditioned decomposition. The result is still produced but should
// be treated as low-confidence.
type NumericalInstabilityWarning struct {
	Op              string
	ConditionNumber float64
	Detail          string
}

func (w *NumericalInstabilityWarning) Error() string {
	if w.ConditionNumber > 0 {
		return fmt.Sprintf("%s: near-singular system (condition number %.3g): %s", w.Op, w.ConditionNumber, w.Detail)
	}
	return fmt.Sprintf("%s: numerical instability: %s", w.Op, w.Detail)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (w *NumericalInstabilityWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", w.Op).
		Float64("condition_number", w.ConditionNumber).
		Str("detail", w.Detail).
		Str("type", "NumericalInstabilityWarning")
}

// NewNumericalInstabilityWarning creates a NumericalInstabilityWarning.
func NewNumericalInstabilityWarning(op string, cond float64, detail string) *NumericalInstabilityWarning {
	return &NumericalInstabilityWarning{Op: op, ConditionNumber: cond, Detail: detail}
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}
