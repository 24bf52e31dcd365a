package runtime

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownOp = errors.New("unknown operation")
	ErrClosed    = errors.New("runtime closed")
	ErrNoWorkers = errors.New("no workers available")
)

// Strategy tells the runtime what to do with a failed task
type Strategy uint8

const (
	// Terminate aborts the whole directive the task belongs to
	Terminate Strategy = iota
	// Ignore drops the failed item
	Ignore
)

// FatalError marks an operation failure that must not be retried
type FatalError struct {
	Err      error
	Strategy Strategy
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func Fatal(err error, s Strategy) error {
	if err == nil {
		return nil
	}

	return &FatalError{Err: err, Strategy: s}
}

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// TaskError is a task failure as it crosses the wire
type TaskError struct {
	Msg      string   `msgpack:"m"`
	Fatal    bool     `msgpack:"f"`
	Strategy Strategy `msgpack:"s"`
}

func (e *TaskError) Error() string {
	return e.Msg
}

func NewTaskError(err error) *TaskError {
	te := &TaskError{Msg: err.Error()}

	var f *FatalError
	if errors.As(err, &f) {
		te.Fatal = true
		te.Strategy = f.Strategy
	}

	return te
}

// Err restores the fatal classification of a remote failure
func (e *TaskError) Err() error {
	if e.Fatal {
		return Fatal(e, e.Strategy)
	}

	return e
}
