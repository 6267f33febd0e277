package service

import (
	"errors"
	"fmt"
)

// Training stages reported by StartupFatalError.
const (
	StageLoad    = "load"
	StageBalance = "balance"
	StageSplit   = "split"
	StageScale   = "scale"
	StageTrain   = "train"
)

// StartupFatalError means the model could not be built. The process must not
// start serving.
type StartupFatalError struct {
	Stage string
	Err   error
}

func (e *StartupFatalError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupFatalError) Unwrap() error { return e.Err }

// ErrNotFinite is the cause of an InputConversionError for NaN or infinite values.
var ErrNotFinite = errors.New("value is not a finite number")

// InputConversionError reports a form field that is missing or not a number.
type InputConversionError struct {
	Field string
	Value string
	Err   error
}

func (e *InputConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("field %s is missing", e.Field)
	}
	if errors.Is(e.Err, ErrNotFinite) {
		return fmt.Sprintf("field %s: %q is not a finite number", e.Field, e.Value)
	}
	return fmt.Sprintf("field %s: could not convert %q to a number", e.Field, e.Value)
}

func (e *InputConversionError) Unwrap() error { return e.Err }

// PersistenceError reports a failed record store write. The prediction it
// belongs to is still valid.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("prediction not saved: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
