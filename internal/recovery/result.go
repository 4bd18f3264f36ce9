package recovery

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/storage/models"
)

type Outcome int

const (
	Success Outcome = iota
	Recoverable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

const kindPanic = "panic"

// PanicError carries a recovered panic value.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Result is the outcome of one pipeline stage. A recoverable result still
// carries a usable Value; a fatal one does not.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Stage   string
	Err     error
	Stack   string
}

func (r Result[T]) OK() bool {
	return r.Outcome == Success
}

func Ok[T any](stage string, v T) Result[T] {
	return Result[T]{Value: v, Outcome: Success, Stage: stage}
}

// Recovered reports a stage that failed internally but produced a fallback
// value.
func Recovered[T any](stage string, v T, err error) Result[T] {
	metrics.StageFailures.WithLabelValues(stage, Recoverable.String()).Inc()
	return Result[T]{Value: v, Outcome: Recoverable, Stage: stage, Err: err}
}

func Failed[T any](stage string, err error) Result[T] {
	return failed[T](stage, err, string(debug.Stack()))
}

func failed[T any](stage string, err error, stack string) Result[T] {
	metrics.StageFailures.WithLabelValues(stage, Fatal.String()).Inc()
	return Result[T]{Outcome: Fatal, Stage: stage, Err: err, Stack: stack}
}

// Panicked builds the fatal result for a recovered panic value. Call it
// from the deferred function so the stack still shows the panic site.
func Panicked[T any](stage string, v interface{}) Result[T] {
	return failed[T](stage, &PanicError{Value: v}, string(debug.Stack()))
}

// Guard runs fn as the named stage. A returned error or a panic becomes a
// fatal result with the stack captured.
func Guard[T any](stage string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			res = Panicked[T](stage, v)
		}
	}()

	v, err := fn()
	if err != nil {
		return Failed[T](stage, err)
	}
	return Ok(stage, v)
}

// Kind names the error for the error log: "panic" for recovered panics,
// otherwise the dynamic type of the innermost wrapped error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return kindPanic
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

// ErrorRecord converts a failed result into an error log entry.
func (r Result[T]) ErrorRecord(turnID string, now time.Time) models.ErrorRecord {
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return models.ErrorRecord{
		TurnID:     turnID,
		Timestamp:  now,
		Stage:      r.Stage,
		Kind:       Kind(r.Err),
		Message:    msg,
		StackTrace: r.Stack,
	}
}
