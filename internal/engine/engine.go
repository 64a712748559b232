// Package engine wires the platform hook, gesture orchestrator, traffic
// controller, sequence executor, and binding dispatcher into one
// runnable unit, and applies hot-reloaded configuration across all of
// them consistently.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kidandcat-derived/macroengine/internal/config"
	"github.com/kidandcat-derived/macroengine/internal/dispatch"
	"github.com/kidandcat-derived/macroengine/internal/executor"
	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/platform"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
	"github.com/kidandcat-derived/macroengine/internal/traffic"
)

// Engine owns every long-lived collaborator started by `macroengine
// run`: the platform hook, the gesture orchestrator, the sequence
// executor, and the dispatcher routing one to the other.
type Engine struct {
	logger *zap.Logger

	hook    platform.Hook
	orch    *gesture.Orchestrator
	exec    *executor.Executor
	disp    *dispatch.Dispatcher
	traffic *traffic.Controller
	oracle  *timing.Oracle

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New builds an Engine from an initial configuration. The platform hook
// and output sink are chosen by the build-tagged platform.NewHook /
// platform.NewRobotgoSink for the running OS.
func New(cfg config.EngineConfig, logger *zap.Logger) *Engine {
	oracle := timing.New(nil, nil)
	compiled := profile.Compile(cfg.Profile, cfg.AltShiftPolicy())
	tc := traffic.New(compiled, cfg.Profile, oracle)

	exec := executor.New(platform.NewRobotgoSink(), tc, oracle, executor.WithLogger(logger))
	disp := dispatch.New(exec, cfg.Profile, logger)

	orch := gesture.New(cfg.Profile.Timing, disp.Listener(), logger)

	return &Engine{
		logger:  logger,
		hook:    platform.NewHook(),
		orch:    orch,
		exec:    exec,
		disp:    disp,
		traffic: tc,
		oracle:  oracle,
	}
}

// Dispatcher exposes the engine's dispatcher, e.g. for tray wiring.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.disp }

// Executor exposes the engine's executor, e.g. for tray active-count
// polling.
func (e *Engine) Executor() *executor.Executor { return e.exec }

// ApplyConfig hot-swaps the gesture timing and the dispatcher's profile
// to reflect a reloaded configuration. The traffic controller's
// conundrum-key compilation is intentionally NOT recomputed here: a
// profile's binding set only changes between a reload and the next
// trigger in practice, and a mid-run compiled-set swap could reclassify
// a key a currently-running sequence is holding, leaving a token never
// released. Applying the full effect of a binding-set change requires a
// process restart.
func (e *Engine) ApplyConfig(cfg config.EngineConfig) {
	e.orch.SetTiming(cfg.Profile.Timing)
	e.disp.SetProfile(cfg.Profile)
	e.logger.Info("engine: configuration reloaded", zap.String("profile", cfg.Profile.Name))
}

// Run starts the orchestrator and the platform hook, and forwards every
// raw event from the hook into the orchestrator until Stop is called.
// The forwarding loop runs under an errgroup so Stop can observe its
// exit before declaring shutdown complete.
func (e *Engine) Run() error {
	e.orch.Start()

	events, err := e.hook.Start()
	if err != nil {
		return fmt.Errorf("engine: start platform hook: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	g, _ := errgroup.WithContext(ctx)
	e.group = g

	g.Go(func() error {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if ev.Down {
					e.orch.HandleKeyDown(ev.Input)
				} else {
					e.orch.HandleKeyUp(ev.Input)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	return nil
}

// Stop tears down the hook, orchestrator, and executor in dependency
// order: capture first, then classification, then in-flight sequences.
// It waits for the event-forwarding goroutine to exit before returning.
func (e *Engine) Stop() {
	if err := e.hook.Stop(); err != nil {
		e.logger.Warn("engine: stop hook", zap.Error(err))
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.group != nil {
		if err := e.group.Wait(); err != nil {
			e.logger.Warn("engine: event loop", zap.Error(err))
		}
	}
	e.orch.Destroy()
	e.exec.Destroy()
}
