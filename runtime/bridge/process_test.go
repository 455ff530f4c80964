package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptshift/scriptshift/core/value"
)

const helperEnv = "SCRIPTSHIFT_BRIDGE_HELPER"

// TestHelperInterpreter is not a test: it is the fake interpreter binary the
// process-transport tests spawn, re-executing this test binary with
// helperEnv set. It speaks the wire protocol on stdin/stdout until EOF.
func TestHelperInterpreter(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		t.Skip("helper process entry point")
	}

	dec := json.NewDecoder(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			os.Exit(0)
		}

		switch req.Command {
		case handshakeCommand, pingCommand:
			writeHelperResponse(enc, response{OK: true})
		case "Exit-Hard":
			os.Exit(3)
		case "Write-Garbage":
			fmt.Println("this is not an envelope")
			os.Exit(0)
		case "Invoke-Broken":
			writeHelperResponse(enc, response{OK: false, Diagnostic: "syntax error"})
		default:
			writeHelperResponse(enc, response{OK: true, Value: value.String("ran " + req.Command)})
		}
	}
}

func writeHelperResponse(enc *json.Encoder, resp response) {
	if err := enc.Encode(&resp); err != nil {
		os.Exit(1)
	}
}

func helperConfig() Config {
	cfg := testConfig()
	cfg.Interpreter = os.Args[0]
	cfg.Args = []string{"-test.run=TestHelperInterpreter"}
	cfg.Env = append(os.Environ(), helperEnv+"=1")
	cfg.GracePeriod = Duration(2 * time.Second)
	return cfg
}

func TestProcessOneshotRoundTrip(t *testing.T) {
	b := New(helperConfig())

	res := b.Invoke(context.Background(), Command{Text: "Get-Date"})

	require.True(t, res.OK, "diagnostic: %s", res.Diagnostic)
	assert.True(t, res.Value.Equal(value.String("ran Get-Date")))
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 1, res.Attempts)
}

func TestProcessSessionRoundTrip(t *testing.T) {
	b := New(helperConfig())
	defer b.Close()

	first := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops"})
	second := b.Invoke(context.Background(), Command{Text: "Set-State", SessionKey: "ops"})

	require.True(t, first.OK, "diagnostic: %s", first.Diagnostic)
	require.True(t, second.OK, "diagnostic: %s", second.Diagnostic)
	assert.True(t, second.Value.Equal(value.String("ran Set-State")))
}

func TestProcessNonZeroExit(t *testing.T) {
	b := New(helperConfig())

	res := b.Invoke(context.Background(), Command{Text: "Exit-Hard"})

	require.False(t, res.OK)
	assert.Equal(t, FailureProcess, res.Failure)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, 1, res.Attempts)
}

func TestProcessUnparseableEnvelope(t *testing.T) {
	b := New(helperConfig())

	res := b.Invoke(context.Background(), Command{Text: "Write-Garbage"})

	require.False(t, res.OK)
	assert.Equal(t, FailureMarshal, res.Failure)
}

func TestProcessCancellationKillsInterpreter(t *testing.T) {
	cfg := helperConfig()
	// The silent helper never answers, so the exchange stays blocked on
	// stdout until the context cancels and the process is killed.
	cfg.Args = []string{"-test.run=TestHelperSilentInterpreter"}
	b := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := b.Invoke(ctx, Command{Text: "Wait-Forever"})

	assert.Equal(t, FailureCanceled, res.Failure)
	assert.Less(t, time.Since(start), 3*time.Second, "process reaped within the grace period")
}

// TestHelperSilentInterpreter reads one request and then blocks forever
// without answering, for cancellation tests. It must not exit on stdin EOF:
// a oneshot's stdin is a finite buffer, and a clean early exit would read as
// a marshal failure instead of leaving the exchange in flight.
func TestHelperSilentInterpreter(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		t.Skip("helper process entry point")
	}

	var req request
	_ = json.NewDecoder(os.Stdin).Decode(&req)
	// A bare select{} would trip the runtime deadlock detector and exit the
	// helper with a non-zero code; sleeping blocks just as indefinitely.
	for {
		time.Sleep(time.Hour)
	}
}
