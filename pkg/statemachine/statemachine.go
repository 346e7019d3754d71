package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/gameflow/pkg/flow"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/notify"
	"github.com/cbodonnell/gameflow/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HookFunc is an enter or exit side effect. It may block, for example while
// a scene finishes loading, and should return when ctx is done.
type HookFunc func(ctx context.Context) error

// Hooks holds the side effects of one mode. A nil hook is a no-op.
type Hooks struct {
	Enter HookFunc
	Exit  HookFunc
}

// StateMachine holds the single active mode. RequestTransition is the only
// mutator; a request made while another transition is running is rejected
// with ErrTransitionInProgress.
type StateMachine struct {
	bus         *notify.Bus
	tracer      trace.Tracer
	hookTimeout time.Duration

	// hooks is fixed at construction.
	hooks map[flow.Mode]Hooks

	modeLock    sync.RWMutex
	activeMode  flow.Mode
	initialized bool

	transitioning atomic.Bool
}

// NewStateMachineOptions contains options for creating a new StateMachine.
type NewStateMachineOptions struct {
	Hooks map[flow.Mode]Hooks
	// Bus receives a KindStateChanged event after every completed transition.
	Bus    *notify.Bus
	Tracer trace.Tracer
	// HookTimeout bounds every hook when positive. Zero waits indefinitely.
	HookTimeout time.Duration
}

func New(opts NewStateMachineOptions) *StateMachine {
	hooks := make(map[flow.Mode]Hooks, len(opts.Hooks))
	for mode, h := range opts.Hooks {
		hooks[mode] = h
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	bus := opts.Bus
	if bus == nil {
		bus = notify.NewBus()
	}
	return &StateMachine{
		bus:         bus,
		tracer:      tracer,
		hookTimeout: opts.HookTimeout,
		hooks:       hooks,
	}
}

// ActiveMode returns the current mode.
func (sm *StateMachine) ActiveMode() flow.Mode {
	sm.modeLock.RLock()
	defer sm.modeLock.RUnlock()
	return sm.activeMode
}

// ActiveModeEquals reports whether mode is the current mode.
func (sm *StateMachine) ActiveModeEquals(mode flow.Mode) bool {
	return sm.ActiveMode() == mode
}

// Transitioning reports whether a transition is running.
func (sm *StateMachine) Transitioning() bool {
	return sm.transitioning.Load()
}

// Init enters the initial mode. No exit hook runs.
func (sm *StateMachine) Init(ctx context.Context, mode flow.Mode) error {
	if !sm.transitioning.CompareAndSwap(false, true) {
		return ErrTransitionInProgress
	}
	defer sm.transitioning.Store(false)

	sm.modeLock.RLock()
	initialized := sm.initialized
	sm.modeLock.RUnlock()
	if initialized {
		return ErrAlreadyInitialized
	}

	hooks, err := sm.lookup(mode)
	if err != nil {
		return err
	}

	ctx, span := sm.tracer.Start(ctx, "statemachine.init",
		trace.WithAttributes(attribute.String("mode.to", mode.String())))
	defer span.End()

	previous := sm.ActiveMode()
	sm.setActiveMode(mode)
	log.Info("Mode enter: %s", mode)
	if err := sm.runHook(ctx, hooks.Enter); err != nil {
		sm.setActiveMode(previous)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to enter mode %s: %w", mode, err)
	}

	sm.modeLock.Lock()
	sm.initialized = true
	sm.modeLock.Unlock()

	return nil
}

// RequestTransition exits the current mode, makes newMode active, enters it
// and then publishes a state-changed event. Both modes are validated before
// any hook runs. If the exit hook fails the current mode stays active; if
// the enter hook fails the previous mode is restored. No event is published
// for a failed transition.
func (sm *StateMachine) RequestTransition(ctx context.Context, newMode flow.Mode) error {
	if !sm.transitioning.CompareAndSwap(false, true) {
		log.Debug("Transition to %s rejected: transition in progress", newMode)
		return ErrTransitionInProgress
	}
	defer sm.transitioning.Store(false)

	previous := sm.ActiveMode()
	exitHooks, err := sm.lookup(previous)
	if err != nil {
		return err
	}
	enterHooks, err := sm.lookup(newMode)
	if err != nil {
		return err
	}

	ctx, span := sm.tracer.Start(ctx, "statemachine.transition",
		trace.WithAttributes(
			attribute.String("mode.from", previous.String()),
			attribute.String("mode.to", newMode.String()),
		))
	defer span.End()

	log.Info("Mode exit: %s", previous)
	if err := sm.runHook(ctx, exitHooks.Exit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to exit mode %s: %w", previous, err)
	}

	sm.setActiveMode(newMode)

	log.Info("Mode enter: %s", newMode)
	if err := sm.runHook(ctx, enterHooks.Enter); err != nil {
		sm.setActiveMode(previous)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to enter mode %s: %w", newMode, err)
	}

	sm.bus.Publish(notify.Event{
		Kind:     notify.KindStateChanged,
		Previous: previous,
		Mode:     newMode,
	})

	return nil
}

func (sm *StateMachine) lookup(mode flow.Mode) (Hooks, error) {
	hooks, ok := sm.hooks[mode]
	if !ok {
		return Hooks{}, &ErrUnknownMode{Mode: mode}
	}
	return hooks, nil
}

func (sm *StateMachine) setActiveMode(mode flow.Mode) {
	sm.modeLock.Lock()
	defer sm.modeLock.Unlock()
	sm.activeMode = mode
}

// runHook runs the hook under the hook timeout. A hook that ignores its
// context keeps running in the background after a timeout, but its result
// is discarded.
func (sm *StateMachine) runHook(ctx context.Context, hook HookFunc) error {
	if hook == nil {
		return nil
	}
	if sm.hookTimeout <= 0 {
		return hook(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, sm.hookTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- hook(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrHookTimeout, sm.hookTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrHookTimeout, sm.hookTimeout)
		}
		return ctx.Err()
	}
}
