package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// transport abstracts how the bridge reaches an interpreter. The process
// transport spawns the configured binary; tests install an in-process fake.
type transport interface {
	// oneshot spawns an interpreter for a single request/response exchange.
	oneshot(ctx context.Context, req request) wireResult
	// open starts a long-lived interpreter conversation for a session.
	open(ctx context.Context) (conn, error)
}

// conn is one session's interpreter stream: a sequence of request/response
// exchanges over a single process.
type conn interface {
	exchange(ctx context.Context, req request) wireResult
	close() error
}

// wireResult is the raw outcome of one exchange, before classification.
type wireResult struct {
	resp   response
	parsed bool

	exitCode int
	exited   bool

	// err holds the spawn/IO/codec failure when parsed is false.
	err error
}

var errConnClosed = errors.New("bridge: interpreter connection is closed")

type processTransport struct {
	interpreter string
	args        []string
	env         []string
	grace       time.Duration
}

func newProcessTransport(cfg Config) *processTransport {
	return &processTransport{
		interpreter: cfg.Interpreter,
		args:        cfg.Args,
		env:         cfg.Env,
		grace:       time.Duration(cfg.GracePeriod),
	}
}

func (t *processTransport) oneshot(ctx context.Context, req request) wireResult {
	payload, err := json.Marshal(req)
	if err != nil {
		return wireResult{err: fmt.Errorf("encode request: %w", err)}
	}

	cmd := exec.CommandContext(ctx, t.interpreter, t.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if t.env != nil {
		cmd.Env = t.env
	}
	// Bounds reaping after cancellation: kill is followed by a Wait that
	// returns within the grace period even if pipes are still open.
	cmd.WaitDelay = t.grace

	result := wireResult{}
	if runErr := cmd.Run(); runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return wireResult{err: fmt.Errorf("spawn interpreter: %w", runErr)}
		}
		result.exited = true
		result.exitCode = exitErr.ExitCode()
	} else {
		result.exited = true
	}

	var resp response
	if decErr := json.NewDecoder(&stdout).Decode(&resp); decErr != nil {
		result.err = fmt.Errorf("decode response envelope: %w", decErr)
		return result
	}
	result.resp = resp
	result.parsed = true
	return result
}

func (t *processTransport) open(ctx context.Context) (conn, error) {
	cmd := exec.Command(t.interpreter, t.args...)
	if t.env != nil {
		cmd.Env = t.env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("interpreter stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("interpreter stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start interpreter: %w", err)
	}

	c := &processConn{
		cmd:   cmd,
		stdin: stdin,
		out:   json.NewDecoder(stdoutPipe),
		grace: t.grace,
	}
	c.alive.Store(true)
	return c, nil
}

// processConn is a persistent interpreter process speaking newline-delimited
// request/response JSON. Exchanges serialize on the pipe pair; the session
// layer is responsible for any higher-level concurrency admission.
type processConn struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *json.Decoder
	grace time.Duration

	mu        sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
}

func (c *processConn) exchange(ctx context.Context, req request) wireResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alive.Load() {
		return wireResult{err: errConnClosed}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return wireResult{err: fmt.Errorf("encode request: %w", err)}
	}
	payload = append(payload, '\n')
	if _, err := c.stdin.Write(payload); err != nil {
		_ = c.close()
		return wireResult{err: fmt.Errorf("write request: %w", err)}
	}

	type decoded struct {
		resp response
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		var d decoded
		d.err = c.out.Decode(&d.resp)
		ch <- d
	}()

	select {
	case <-ctx.Done():
		// Stream position is unknown after an abandoned exchange; the
		// process is killed rather than resynchronized.
		_ = c.close()
		return wireResult{err: ctx.Err()}
	case d := <-ch:
		if d.err != nil {
			_ = c.close()
			return wireResult{err: fmt.Errorf("decode response envelope: %w", d.err)}
		}
		return wireResult{resp: d.resp, parsed: true}
	}
}

func (c *processConn) close() error {
	c.closeOnce.Do(func() {
		c.alive.Store(false)
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}

		done := make(chan struct{})
		go func() {
			_ = c.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(c.grace):
		}
	})
	return nil
}
