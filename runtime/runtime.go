// Package runtime ties the supervisor, policy, and workbook bridge together
// into a long-lived handle user code executes scripts against, and
// FIFO-serializes concurrent callers that share one underlying backend.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"sandsheet/policy"
	"sandsheet/supervisor"
	"sandsheet/workbook"
)

// ErrDestroyed is returned by Execute once the Runtime (or the Shared
// executor it was built on) has been destroyed, and by any call still
// queued at the moment of destruction.
var ErrDestroyed = errors.New("runtime: destroyed")

// Backend runs a single script to completion. *supervisor.Supervisor
// satisfies this; tests may substitute a fake.
type Backend interface {
	Execute(ctx context.Context, doc workbook.Document, pol policy.Policy, script string) (supervisor.ExecutionResult, error)
}

// Hooks are optional side channels a Runtime reports to. Each is
// best-effort: a failing hook never fails the execution itself.
type Hooks struct {
	OnStart    func(script string)
	OnFinish   func(result supervisor.ExecutionResult, err error)
	RecordLog  func(script string, result supervisor.ExecutionResult, err error)
}

// Runtime is the handle callers hold. It may be backed by a private Shared
// executor (one subprocess per call, the default/strong-isolation mode) or
// attached to a Shared executor other Runtimes also use (the embedded,
// single-interpreter mode spec.md §4.7 requires FIFO serialization for).
type Runtime struct {
	doc    workbook.Document
	shared *Shared
	hooks  Hooks
}

// New returns a Runtime with its own private, single-slot Shared executor
// wrapping backend.
func New(doc workbook.Document, backend Backend, hooks Hooks) *Runtime {
	return &Runtime{doc: doc, shared: NewShared(backend), hooks: hooks}
}

// NewAttached returns a Runtime whose Execute calls are FIFO-serialized
// against every other Runtime attached to the same Shared executor.
func NewAttached(doc workbook.Document, shared *Shared, hooks Hooks) *Runtime {
	return &Runtime{doc: doc, shared: shared, hooks: hooks}
}

// Execute runs script under pol against this Runtime's document, queuing
// behind any other call already in flight on the same Shared executor.
func (r *Runtime) Execute(ctx context.Context, pol policy.Policy, script string) (supervisor.ExecutionResult, error) {
	if r.hooks.OnStart != nil {
		r.hooks.OnStart(script)
	}
	result, err := r.shared.run(ctx, r.doc, pol, script)
	if r.hooks.OnFinish != nil {
		r.hooks.OnFinish(result, err)
	}
	if r.hooks.RecordLog != nil {
		r.hooks.RecordLog(script, result, err)
	}
	return result, err
}

// Destroy tears down the Shared executor this Runtime is attached to.
// Every call already queued on it, and every call made after, fails with
// ErrDestroyed. Destroying a Runtime that shares its executor with other
// Runtimes destroys the executor for all of them — this is the intended
// behavior for the embedded single-interpreter mode, where one underlying
// process genuinely cannot outlive any one of its callers' lifetimes.
func (r *Runtime) Destroy() {
	r.shared.destroy()
}

type job struct {
	ctx    context.Context
	doc    workbook.Document
	pol    policy.Policy
	script string
	result chan jobResult
}

type jobResult struct {
	result supervisor.ExecutionResult
	err    error
}

// Shared serializes Execute calls from one or more Runtimes onto a single
// Backend, FIFO, one script at a time.
type Shared struct {
	backend Backend
	queue   chan *job
	done    chan struct{}
}

// NewShared starts the FIFO worker loop over backend.
func NewShared(backend Backend) *Shared {
	s := &Shared{
		backend: backend,
		queue:   make(chan *job),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Shared) loop() {
	for {
		select {
		case <-s.done:
			return
		case j := <-s.queue:
			result, err := s.backend.Execute(j.ctx, j.doc, j.pol, j.script)
			j.result <- jobResult{result: result, err: err}
		}
	}
}

func (s *Shared) run(ctx context.Context, doc workbook.Document, pol policy.Policy, script string) (supervisor.ExecutionResult, error) {
	j := &job{ctx: ctx, doc: doc, pol: pol, script: script, result: make(chan jobResult, 1)}
	select {
	case <-s.done:
		return supervisor.ExecutionResult{}, ErrDestroyed
	default:
	}
	select {
	case s.queue <- j:
	case <-s.done:
		return supervisor.ExecutionResult{}, ErrDestroyed
	case <-ctx.Done():
		return supervisor.ExecutionResult{}, fmt.Errorf("runtime: %w", ctx.Err())
	}
	select {
	case r := <-j.result:
		return r.result, r.err
	case <-s.done:
		return supervisor.ExecutionResult{}, ErrDestroyed
	}
}

func (s *Shared) destroy() {
	select {
	case <-s.done:
		return // already destroyed
	default:
		close(s.done)
	}
}
