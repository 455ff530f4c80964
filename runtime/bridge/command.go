package bridge

import (
	"time"

	"github.com/google/uuid"

	"github.com/scriptshift/scriptshift/core/value"
)

// CommandClass selects the default timeout band for a command. Interactive
// commands answer a user and fail fast; bulk commands move corpora and get a
// long leash. The zero value takes the configured default.
type CommandClass int

const (
	ClassDefault CommandClass = iota
	ClassInteractive
	ClassBulk
)

// Shape constrains the kind of value a command may return. ShapeAny accepts
// everything.
type Shape int

const (
	ShapeAny Shape = iota
	ShapeScalar
	ShapeMapping
	ShapeSequence
)

// Admits reports whether a returned value satisfies the shape. Null is
// admitted everywhere; a legacy fragment with no output yields null.
func (s Shape) Admits(k value.Kind) bool {
	switch s {
	case ShapeScalar:
		return k == value.KindScalar || k == value.KindNull
	case ShapeMapping:
		return k == value.KindMapping || k == value.KindNull
	case ShapeSequence:
		return k == value.KindSequence || k == value.KindNull
	default:
		return true
	}
}

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeMapping:
		return "mapping"
	case ShapeSequence:
		return "sequence"
	default:
		return "any"
	}
}

// Command is a request to run one legacy fragment in the external
// interpreter. Zero-valued fields take configured defaults when invoked.
type Command struct {
	// ID correlates the result back to this submission. Assigned when empty.
	ID string
	// Text is the verbatim legacy fragment.
	Text string
	// Params are the variable bindings the fragment closes over.
	Params map[string]value.Value
	// Expect constrains the returned value's kind. A mismatch is a marshal
	// failure carrying the offending type descriptor.
	Expect Shape

	// Timeout bounds each attempt. Zero selects by Class.
	Timeout time.Duration
	// MaxAttempts caps retries of transient failures, first try included.
	MaxAttempts int

	// SessionKey routes the command to a long-lived interpreter session.
	// Empty means a fresh process per invocation.
	SessionKey string
	// ConcurrencySafe lets the command share its session with others up to
	// the session's concurrency limit. Unsafe commands run exclusively.
	ConcurrencySafe bool

	Class CommandClass
}

// normalized fills defaults from config. Returns a copy; the caller's
// Command is never mutated.
func (c Command) normalized(cfg Config) Command {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timeout <= 0 {
		switch c.Class {
		case ClassInteractive:
			c.Timeout = time.Duration(cfg.InteractiveTimeout)
		case ClassBulk:
			c.Timeout = time.Duration(cfg.BulkTimeout)
		default:
			c.Timeout = time.Duration(cfg.DefaultTimeout)
		}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = cfg.MaxAttempts
	}
	return c
}

func (c Command) request() request {
	return request{
		Command:   c.Text,
		Params:    c.Params,
		TimeoutMs: c.Timeout.Milliseconds(),
	}
}

// ExecutionResult is the outcome of one Command. Exactly one is produced per
// command regardless of retries.
type ExecutionResult struct {
	// CommandID echoes the submission identifier.
	CommandID string
	// OK reports interpreter-confirmed success.
	OK bool
	// Value is the returned typed envelope; null on failure.
	Value value.Value
	// Diagnostic is the interpreter's or the bridge's failure text.
	Diagnostic string
	// ExitCode is the interpreter process exit code, when one was observed.
	ExitCode int
	// Attempts counts underlying invocations, successful one included.
	Attempts int
	// Failure classifies the terminal failure; FailureNone on success.
	Failure FailureKind
}
