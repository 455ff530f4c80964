// Package invariant provides contract assertions for scriptshift.
//
// Assertions guard programmer contracts, not user input: a violation is a bug
// in the caller, so every function here panics. User-facing failures (parse
// errors, bridge failures) are modeled as values, never as panics.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
//
// Example:
//
//	func Convert(unit *script.Unit) Result {
//	    invariant.Precondition(unit.Name != "", "unit must be named")
//	    // ... work ...
//	}
func Precondition(condition bool, format string, args ...any) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before a function returns.
// Panics with POSTCONDITION VIOLATION if condition is false.
func Postcondition(condition bool, format string, args ...any) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal consistency condition mid-function.
// Panics with INVARIANT VIOLATION if condition is false.
//
// Use for loop progress checks and state-machine consistency.
func Invariant(condition bool, format string, args ...any) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils such as (*T)(nil).
func NotNil(value any, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// Positive panics if value <= 0. Used for pool sizes, attempt budgets and
// other counts that are meaningless at zero.
func Positive(value int, name string) {
	if value <= 0 {
		fail("PRECONDITION", "%s must be positive, got %d", name, value)
	}
}

// ExpectNoError panics if err is non-nil. Reserved for operations that cannot
// fail absent a programming error (e.g. marshaling a struct we control).
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("INVARIANT", "%s must not fail: %v", msg, err)
	}
}

// fail panics with a formatted message plus the violation site.
func fail(kind, format string, args ...any) {
	pc := make([]uintptr, 8)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]any{kind}, args...)...)
	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}
	panic(msg)
}
