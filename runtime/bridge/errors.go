package bridge

import "fmt"

// FailureKind tags the failure class recorded on an ExecutionResult. The
// bridge never raises for interpreter-side problems; it classifies them and
// surfaces the classification in the result.
type FailureKind int

const (
	// FailureNone marks a successful result.
	FailureNone FailureKind = iota
	// FailureTimeout is a command exceeding its per-attempt timeout. Always
	// transient: retried until the attempt budget is exhausted.
	FailureTimeout
	// FailureProcess is a non-zero interpreter exit, an unanswered exchange,
	// or an explicit interpreter error. Permanent unless the diagnostic is on
	// the transient list.
	FailureProcess
	// FailureMarshal is a response whose value shape has no representable
	// mapping, or a clean exit with an unparseable envelope. Never retried.
	FailureMarshal
	// FailureCanceled is cooperative cancellation observed before the command
	// produced a terminal result.
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureProcess:
		return "process"
	case FailureMarshal:
		return "marshal"
	case FailureCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// transientDiagnostics lists interpreter diagnostics that indicate a
// retryable condition: throttling, a dropped connection, or an expired
// session (the retry transparently gets a fresh one). Anything else from the
// interpreter is permanent, syntax errors above all.
var transientDiagnostics = map[string]struct{}{
	"throttled":        {},
	"connection-reset": {},
	expiredDiagnostic:  {},
}

func transientDiagnostic(diag string) bool {
	_, ok := transientDiagnostics[diag]
	return ok
}

// failure is the internal error carried between an attempt and the retry
// loop. It never leaves the package; callers read FailureKind off the result.
type failure struct {
	Kind       FailureKind
	Transient  bool
	Diagnostic string
}

func (f *failure) Error() string {
	return fmt.Sprintf("bridge %s failure: %s", f.Kind, f.Diagnostic)
}

func permanentFailure(kind FailureKind, diag string) *failure {
	return &failure{Kind: kind, Diagnostic: diag}
}

func transientFailure(kind FailureKind, diag string) *failure {
	return &failure{Kind: kind, Transient: true, Diagnostic: diag}
}
