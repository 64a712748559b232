// Package executor validates, schedules, and runs macro sequences: the
// sequence executor described in spec.md §4.6. It draws timing from the
// shared oracle, serializes conundrum-key access through the traffic
// controller, and routes opt-in side effects (volume, mic, TTS) by step
// name.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
	"github.com/kidandcat-derived/macroengine/internal/traffic"
	"go.uber.org/zap"
)

// heldState is a key kept down past the end of its own step because it
// carried hold_through_next; its release is owed to a later buffer
// window (spec.md §4.6 point 9).
type heldState struct {
	key          keys.QualifiedKey
	token        traffic.Token
	releaseDelay profile.DurationRange
}

// Executor runs macro sequences. Different bindings run concurrently
// without limit; the same binding may not overlap itself
// (spec.md §4.6, "Concurrency contract").
type Executor struct {
	sink    OutputSink
	audio   AudioCollaborator
	tts     TTSCollaborator
	traffic *traffic.Controller
	oracle  *timing.Oracle
	logger  *zap.Logger
	onEvent EventListener

	mu        sync.Mutex
	active    map[string]context.CancelFunc
	wg        sync.WaitGroup
	destroyed bool
}

// Option configures optional Executor collaborators.
type Option func(*Executor)

func WithAudio(a AudioCollaborator) Option    { return func(e *Executor) { e.audio = a } }
func WithTTS(t TTSCollaborator) Option        { return func(e *Executor) { e.tts = t } }
func WithLogger(l *zap.Logger) Option         { return func(e *Executor) { e.logger = l } }
func WithEventListener(f EventListener) Option { return func(e *Executor) { e.onEvent = f } }

// New builds an Executor. tc may be nil, meaning the profile failed to
// compile and every key is treated as safe (spec.md §7): concurrency
// safety degrades but liveness is preserved.
func New(sink OutputSink, tc *traffic.Controller, oracle *timing.Oracle, opts ...Option) *Executor {
	e := &Executor{
		sink:    sink,
		traffic: tc,
		oracle:  oracle,
		audio:   NopAudio{},
		tts:     NopTTS{},
		active:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func nowMs() int64 { return time.Now().UnixMilli() }

func (e *Executor) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

func (e *Executor) bestEffort(label string, fn func() error) {
	if err := fn(); err != nil && e.logger != nil {
		e.logger.Warn("executor: collaborator call failed", zap.String("collaborator", label), zap.Error(err))
	}
}

// Execute runs binding b to completion, returning when the last step's
// last echo hit finishes, the binding is cancelled, or validation
// fails. It is safe to call concurrently for different bindings; a
// second concurrent call for the same binding name returns
// ErrBindingAlreadyRunning without starting anything.
func (e *Executor) Execute(ctx context.Context, b profile.Binding) error {
	e.wg.Add(1)
	defer e.wg.Done()
	return e.execute(ctx, b)
}

// execute holds the actual run logic; it does not touch e.wg itself so
// that both Execute and ExecuteDetached can account for it exactly
// once, at the point most convenient for avoiding the Destroy race
// (see ExecuteDetached's comment).
func (e *Executor) execute(ctx context.Context, b profile.Binding) error {
	if err := profile.ValidateBinding(b); err != nil {
		e.emit(Event{Type: EventError, BindingName: b.Name, Err: err.Error(), TimestampMs: nowMs()})
		return err
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return fmt.Errorf("executor: destroyed")
	}
	if _, exists := e.active[b.Name]; exists {
		e.mu.Unlock()
		return profile.ErrBindingAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.active[b.Name] = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.active, b.Name)
		e.mu.Unlock()
		cancel()
	}()

	runID := uuid.NewString()
	e.emit(Event{Type: EventStarted, BindingName: b.Name, RunID: runID, TimestampMs: nowMs()})

	err := e.runSequence(runCtx, b, runID)
	switch {
	case err == nil:
		e.emit(Event{Type: EventCompleted, BindingName: b.Name, RunID: runID, TimestampMs: nowMs()})
		return nil
	case errors.Is(err, context.Canceled):
		e.emit(Event{Type: EventCancelled, BindingName: b.Name, RunID: runID, TimestampMs: nowMs()})
		return nil
	default:
		e.emit(Event{Type: EventError, BindingName: b.Name, RunID: runID, Err: err.Error(), TimestampMs: nowMs()})
		return err
	}
}

// ExecuteDetached is the fire-and-forget variant: it launches Execute
// on its own goroutine. If the binding is already running, it logs a
// warning and returns immediately (spec.md §4.6).
//
// The WaitGroup add happens synchronously here, before the goroutine is
// scheduled, so that a Destroy racing with a freshly-launched detached
// run always waits for it — Execute's own wg.Add would otherwise run
// inside the new goroutine, after Destroy could already have observed
// an empty WaitGroup.
func (e *Executor) ExecuteDetached(b profile.Binding) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.execute(context.Background(), b)
		if errors.Is(err, profile.ErrBindingAlreadyRunning) && e.logger != nil {
			e.logger.Warn("executor: binding already running, ignoring duplicate trigger", zap.String("binding", b.Name))
		}
	}()
}

// IsBindingExecuting reports whether a binding with this name currently
// has an in-flight run.
func (e *Executor) IsBindingExecuting(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[name]
	return ok
}

// ActiveCount returns the number of currently running sequences.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// ActiveBindings returns the names of every currently running binding.
func (e *Executor) ActiveBindings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.active))
	for name := range e.active {
		names = append(names, name)
	}
	return names
}

// Cancel cooperatively stops a running binding. The executor checks
// cancellation between every step and every echo hit; no keys are
// pressed after the check observes cancellation.
func (e *Executor) Cancel(name string) {
	e.mu.Lock()
	cancel, ok := e.active[name]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelAll cancels every currently running sequence.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.active))
	for _, c := range e.active {
		cancels = append(cancels, c)
	}
	e.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Destroy cancels every running sequence, waits for all of them to
// finish, and rejects any further Execute calls.
func (e *Executor) Destroy() {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	e.CancelAll()
	e.wg.Wait()
}
