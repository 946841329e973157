// Package supervisor spawns a sandboxed Python child, enforces its CPU,
// wall-clock, and memory bounds, and captures its stdout and stderr
// separately while handing the RPC pipes to the hostbridge server.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sandsheet/hostbridge"
	"sandsheet/policy"
	"sandsheet/pysandbox"
	"sandsheet/workbook"
)

// ExitKind classifies how an execution ended (spec.md §4.7).
type ExitKind string

const (
	ExitNormal         ExitKind = "normal"
	ExitTimeout        ExitKind = "timeout"
	ExitMemoryExceeded ExitKind = "memory_exceeded"
	ExitAbnormal       ExitKind = "abnormal"
)

// ExecutionResult is what a single Execute call returns.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitKind ExitKind
	ExitCode int
}

// AbnormalExitError is returned when the child exits non-zero without
// timing out or exceeding its memory bound (spec.md §7). Stderr carries
// whatever traceback the child printed before exiting.
type AbnormalExitError struct {
	ExitCode int
	Stderr   string
}

func (e *AbnormalExitError) Error() string {
	return fmt.Sprintf("supervisor: child exited abnormally (code %d): %s", e.ExitCode, e.Stderr)
}

// killGrace is how long the child is given to exit after SIGTERM before
// SIGKILL is sent. Execute enforces it through cmd.Cancel (SIGTERM on
// context expiry) and cmd.WaitDelay (SIGKILL once the grace has passed).
const killGrace = 250 * time.Millisecond

// PythonInterpreter is the interpreter binary the supervisor execs. It is a
// package variable so tests can point it at a fake interpreter that never
// touches a real CPython install.
var PythonInterpreter = "python3"

// Supervisor spawns one fresh Python process per Execute call: the
// strongest isolation mode, and the default backend for runtime.Runtime.
type Supervisor struct {
	Budget int
}

// Execute runs script against doc under pol, blocking until the child
// exits, is killed for exceeding pol's bounds, or ctx is canceled.
func (s *Supervisor) Execute(ctx context.Context, doc workbook.Document, pol policy.Policy, script string) (ExecutionResult, error) {
	program, err := pysandbox.Render(pol, script)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("supervisor: render bootstrap: %w", err)
	}

	if pol.TimeoutMillis() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(pol.TimeoutMillis())*time.Millisecond)
		defer cancel()
	}

	// fd pair 1: child writes RPC requests, host reads them.
	reqRead, reqWrite, err := os.Pipe()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("supervisor: request pipe: %w", err)
	}
	// fd pair 2: host writes RPC responses, child reads them.
	respRead, respWrite, err := os.Pipe()
	if err != nil {
		reqRead.Close()
		reqWrite.Close()
		return ExecutionResult{}, fmt.Errorf("supervisor: response pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, PythonInterpreter, "-")
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace
	cmd.Stdin = bytes.NewBufferString(program)
	var stdout, stderr syncBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.ExtraFiles = []*os.File{reqWrite, respRead} // fd 3, fd 4 in the child
	applyResourceLimits(cmd, pol)

	budget := s.Budget
	if budget <= 0 {
		budget = hostbridge.DefaultCellBudget
	}
	server := hostbridge.New(doc, budget)

	if err := cmd.Start(); err != nil {
		reqRead.Close()
		reqWrite.Close()
		respRead.Close()
		respWrite.Close()
		return ExecutionResult{}, fmt.Errorf("supervisor: start child: %w", err)
	}
	// The host only ever uses its own ends; the child's ends must be closed
	// here so the host's Read sees EOF when the child exits.
	reqWrite.Close()
	respRead.Close()

	if err := tightenRlimits(cmd.Process.Pid, pol); err != nil {
		_ = err // best-effort: a platform that rejects prlimit still runs, just without the hard cap
	}

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(reqRead, respWrite)
	})

	waitErr := cmd.Wait()
	serveErr := group.Wait()
	reqRead.Close()
	respWrite.Close()

	result := ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitKind = ExitTimeout
		return result, nil
	}
	if isMemoryExceeded(waitErr) {
		result.ExitKind = ExitMemoryExceeded
		return result, nil
	}
	if waitErr != nil {
		result.ExitKind = ExitAbnormal
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, &AbnormalExitError{ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	if serveErr != nil && !errors.Is(serveErr, io.EOF) {
		result.ExitKind = ExitAbnormal
		return result, fmt.Errorf("supervisor: bridge serve: %w", serveErr)
	}

	result.ExitKind = ExitNormal
	return result, nil
}

// syncBuffer guards bytes.Buffer with a mutex: os/exec may copy into
// Cmd.Stdout/Cmd.Stderr from a goroutine it owns internally.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
