package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptshift/scriptshift/core/value"
)

func TestSessionConnectsOnFirstUseAndIsReused(t *testing.T) {
	fake := &fakeTransport{}
	b := newBridge(testConfig(), fake)

	first := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops"})
	second := b.Invoke(context.Background(), Command{Text: "Set-State", SessionKey: "ops"})

	require.True(t, first.OK)
	require.True(t, second.OK)
	assert.Equal(t, int64(1), fake.opens.Load(), "one process serves both commands")

	session, err := b.sessions.acquire(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, session.State())
}

func TestExpiredSessionIsReplacedTransparently(t *testing.T) {
	fake := &fakeTransport{}
	conns := make([]*fakeConn, 0, 2)
	fake.openFn = func(ctx context.Context) (conn, error) {
		c := &fakeConn{}
		if len(conns) == 0 {
			c.exchangeFn = func(ctx context.Context, req request) wireResult {
				if req.Command == handshakeCommand {
					return okResult(value.Null())
				}
				return wireResult{resp: response{OK: false, Diagnostic: expiredDiagnostic}, parsed: true}
			}
		}
		conns = append(conns, c)
		return c, nil
	}
	b := newBridge(testConfig(), fake)

	res := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops"})

	require.True(t, res.OK)
	assert.Equal(t, 2, res.Attempts, "expiry retried on a fresh session")
	assert.Equal(t, int64(2), fake.opens.Load())
	require.Len(t, conns, 2)
	assert.True(t, conns[0].closed.Load(), "expired session's process is terminated")

	session, err := b.sessions.acquire(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, session.State(), "the replacement is live; the expired one is never reused")
}

func TestLivenessProbeFailureCreatesFreshSession(t *testing.T) {
	fake := &fakeTransport{}
	fake.openFn = func(ctx context.Context) (conn, error) {
		c := &fakeConn{}
		if fake.opens.Load() == 1 {
			c.exchangeFn = func(ctx context.Context, req request) wireResult {
				if req.Command == pingCommand {
					return wireResult{resp: response{OK: false}, parsed: true}
				}
				return okResult(value.Null())
			}
		}
		return c, nil
	}
	cfg := testConfig()
	cfg.LivenessInterval = Duration(time.Nanosecond)
	b := newBridge(cfg, fake)

	first := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops"})
	second := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops"})

	require.True(t, first.OK)
	require.True(t, second.OK)
	assert.Equal(t, 1, second.Attempts, "session replacement is not an attempt")
	assert.Equal(t, int64(2), fake.opens.Load())
}

func TestUnsafeCommandsSerializeOnTheirSession(t *testing.T) {
	fake := &fakeTransport{}
	shared := &fakeConn{}
	shared.exchangeFn = func(ctx context.Context, req request) wireResult {
		if req.Command != handshakeCommand {
			time.Sleep(10 * time.Millisecond)
		}
		return okResult(value.Null())
	}
	fake.openFn = func(ctx context.Context) (conn, error) { return shared, nil }

	cfg := testConfig()
	cfg.SessionConcurrency = 3
	b := newBridge(cfg, fake)

	cmds := make([]Command, 4)
	for i := range cmds {
		cmds[i] = Command{Text: fmt.Sprintf("Set-State %d", i), SessionKey: "ops"}
	}
	results := b.InvokeBatch(context.Background(), cmds)

	for i, res := range results {
		require.True(t, res.OK, "command %d: %s", i, res.Diagnostic)
	}
	assert.Equal(t, int64(1), shared.peakConcurrency(),
		"commands not marked concurrency-safe must run exclusively")
}

func TestConcurrencySafeCommandsShareSessionUpToLimit(t *testing.T) {
	fake := &fakeTransport{}
	shared := &fakeConn{}
	shared.exchangeFn = func(ctx context.Context, req request) wireResult {
		if req.Command != handshakeCommand {
			time.Sleep(10 * time.Millisecond)
		}
		return okResult(value.Null())
	}
	fake.openFn = func(ctx context.Context) (conn, error) { return shared, nil }

	cfg := testConfig()
	cfg.SessionConcurrency = 3
	cfg.PoolSize = 8
	b := newBridge(cfg, fake)

	cmds := make([]Command, 6)
	for i := range cmds {
		cmds[i] = Command{Text: fmt.Sprintf("Get-State %d", i), SessionKey: "ops", ConcurrencySafe: true}
	}
	results := b.InvokeBatch(context.Background(), cmds)

	for i, res := range results {
		require.True(t, res.OK, "command %d: %s", i, res.Diagnostic)
	}
	assert.LessOrEqual(t, shared.peakConcurrency(), int64(3))
}

func TestHandshakeRejectionSurfaces(t *testing.T) {
	fake := &fakeTransport{}
	fake.openFn = func(ctx context.Context) (conn, error) {
		c := &fakeConn{}
		c.exchangeFn = func(ctx context.Context, req request) wireResult {
			return wireResult{resp: response{OK: false, Diagnostic: "auth failed"}, parsed: true}
		}
		return c, nil
	}
	b := newBridge(testConfig(), fake)

	res := b.Invoke(context.Background(), Command{Text: "Get-State", SessionKey: "ops", MaxAttempts: 1})

	require.False(t, res.OK)
	assert.Equal(t, FailureProcess, res.Failure)
	assert.Contains(t, res.Diagnostic, "auth failed")
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "expired", StateExpired.String())
}
