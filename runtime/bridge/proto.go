package bridge

import (
	"github.com/scriptshift/scriptshift/core/value"
)

// Wire protocol: one JSON request object on the interpreter's stdin, one JSON
// response object on its stdout. Session transports carry a stream of such
// pairs over a single long-lived process; one-shot transports spawn a process
// per pair.
const (
	// handshakeCommand must be answered ok before a session is Connected.
	handshakeCommand = "__handshake__"
	// pingCommand is the liveness probe for idle Connected sessions.
	pingCommand = "__ping__"
	// expiredDiagnostic is the interpreter's expiry signal. A session that
	// sees it transitions to Expired and is never reused.
	expiredDiagnostic = "session-expired"
)

type request struct {
	Command   string                 `json:"command"`
	Params    map[string]value.Value `json:"params,omitempty"`
	TimeoutMs int64                  `json:"timeoutMs"`
}

type response struct {
	OK         bool        `json:"ok"`
	Value      value.Value `json:"value"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}
