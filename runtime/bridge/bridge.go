// Package bridge executes legacy script fragments in an external interpreter
// process: one-shot or session-bound, with typed value marshaling, transient
// retry, per-command timeouts, a bounded worker pool, and cooperative batch
// cancellation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scriptshift/scriptshift/core/invariant"
	"github.com/scriptshift/scriptshift/core/value"
)

// Bridge runs BridgeCommands against the configured interpreter. Safe for
// concurrent use; commands queue on a bounded worker pool.
type Bridge struct {
	cfg       Config
	transport transport
	sessions  *sessionPool
	slots     *semaphore.Weighted
	logger    *zap.Logger
}

// New builds a bridge spawning the interpreter configured in cfg.
func New(cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return newBridge(cfg, newProcessTransport(cfg))
}

func newBridge(cfg Config, t transport) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		cfg:       cfg,
		transport: t,
		sessions:  newSessionPool(t, cfg),
		slots:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		logger:    cfg.Logger,
	}
}

// Close expires all sessions, terminating their interpreter processes.
func (b *Bridge) Close() {
	b.sessions.close()
}

// Invoke runs one command to completion: queue on the pool, execute, retry
// transient failures with capped exponential backoff. Exactly one result is
// returned regardless of retry count; interpreter failures are classified on
// the result, never raised.
func (b *Bridge) Invoke(ctx context.Context, cmd Command) ExecutionResult {
	invariant.Precondition(cmd.Text != "", "bridge command must carry fragment text")
	cmd = cmd.normalized(b.cfg)

	if err := b.slots.Acquire(ctx, 1); err != nil {
		return canceledResult(cmd, 0)
	}
	defer b.slots.Release(1)

	return b.run(ctx, cmd)
}

// InvokeBatch runs commands concurrently within the pool bound. Results are
// positionally correlated to submissions (and carry the command ID), never
// ordered by completion. Cancelling ctx cooperatively terminates every
// in-flight interpreter process in the batch; each is reaped within the
// configured grace period.
func (b *Bridge) InvokeBatch(ctx context.Context, cmds []Command) []ExecutionResult {
	results := make([]ExecutionResult, len(cmds))
	g, gctx := errgroup.WithContext(ctx)
	for i := range cmds {
		i := i
		g.Go(func() error {
			results[i] = b.Invoke(gctx, cmds[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *Bridge) run(ctx context.Context, cmd Command) ExecutionResult {
	var result ExecutionResult
	attempts := 0

	_ = retry.Do(
		func() error {
			attempts++
			res, f := b.attempt(ctx, cmd)
			res.Attempts = attempts
			result = res
			if f == nil {
				return nil
			}
			if f.Transient && attempts < cmd.MaxAttempts {
				b.logger.Warn("bridge attempt failed, retrying",
					zap.String("command", cmd.ID),
					zap.Int("attempt", attempts),
					zap.String("failure", f.Kind.String()),
					zap.String("diagnostic", f.Diagnostic))
			}
			return f
		},
		retry.Attempts(uint(cmd.MaxAttempts)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var f *failure
			return errors.As(err, &f) && f.Transient
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			delay := time.Duration(b.cfg.RetryBase) << n
			if limit := time.Duration(b.cfg.RetryCap); delay > limit {
				delay = limit
			}
			return delay
		}),
	)

	return result
}

// attempt performs one underlying invocation under the per-attempt timeout.
func (b *Bridge) attempt(ctx context.Context, cmd Command) (ExecutionResult, *failure) {
	attemptCtx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	var wr wireResult
	if cmd.SessionKey == "" {
		wr = b.transport.oneshot(attemptCtx, cmd.request())
	} else {
		session, err := b.sessions.acquire(attemptCtx, cmd.SessionKey)
		if err != nil {
			wr = wireResult{err: err}
		} else {
			wr = session.exchange(attemptCtx, cmd.request(), cmd.ConcurrencySafe)
		}
	}

	return b.classify(ctx, attemptCtx, cmd, wr)
}

// classify maps a raw wire outcome onto the failure taxonomy.
func (b *Bridge) classify(ctx, attemptCtx context.Context, cmd Command, wr wireResult) (ExecutionResult, *failure) {
	base := ExecutionResult{CommandID: cmd.ID, ExitCode: wr.exitCode}

	if wr.parsed {
		if wr.resp.OK {
			if !cmd.Expect.Admits(wr.resp.Value.Kind) {
				base.Failure = FailureMarshal
				base.Diagnostic = fmt.Sprintf("returned %s where %s was expected",
					wr.resp.Value.Kind, cmd.Expect)
				return base, permanentFailure(FailureMarshal, base.Diagnostic)
			}
			base.OK = true
			base.Value = wr.resp.Value
			base.Diagnostic = wr.resp.Diagnostic
			return base, nil
		}
		base.Diagnostic = wr.resp.Diagnostic
		base.Failure = FailureProcess
		if transientDiagnostic(wr.resp.Diagnostic) {
			return base, transientFailure(FailureProcess, wr.resp.Diagnostic)
		}
		return base, permanentFailure(FailureProcess, wr.resp.Diagnostic)
	}

	switch {
	case ctx.Err() != nil:
		base.Failure = FailureCanceled
		base.Diagnostic = "canceled"
		return base, permanentFailure(FailureCanceled, "canceled")

	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded),
		errors.Is(wr.err, context.DeadlineExceeded):
		base.Failure = FailureTimeout
		base.Diagnostic = fmt.Sprintf("timed out after %s", cmd.Timeout)
		return base, transientFailure(FailureTimeout, base.Diagnostic)

	case isUnrepresentable(wr.err):
		base.Failure = FailureMarshal
		base.Diagnostic = wr.err.Error()
		return base, permanentFailure(FailureMarshal, base.Diagnostic)

	case wr.exited && wr.exitCode != 0:
		base.Failure = FailureProcess
		base.Diagnostic = fmt.Sprintf("interpreter exited with code %d", wr.exitCode)
		if wr.err != nil {
			base.Diagnostic = fmt.Sprintf("%s: %v", base.Diagnostic, wr.err)
		}
		return base, permanentFailure(FailureProcess, base.Diagnostic)

	case wr.exited:
		// Clean exit without a parseable envelope: the value never made it
		// into a representable shape.
		base.Failure = FailureMarshal
		base.Diagnostic = fmt.Sprintf("unparseable response envelope: %v", wr.err)
		return base, permanentFailure(FailureMarshal, base.Diagnostic)

	default:
		base.Failure = FailureProcess
		base.Diagnostic = fmt.Sprintf("connection failure: %v", wr.err)
		return base, transientFailure(FailureProcess, base.Diagnostic)
	}
}

func isUnrepresentable(err error) bool {
	var unrep *value.UnrepresentableError
	return errors.As(err, &unrep)
}

func canceledResult(cmd Command, attempts int) ExecutionResult {
	return ExecutionResult{
		CommandID:  cmd.ID,
		Diagnostic: "canceled",
		Attempts:   attempts,
		Failure:    FailureCanceled,
	}
}
