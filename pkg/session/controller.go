package session

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
	"github.com/cbodonnell/gameflow/pkg/statemachine"
	"github.com/cbodonnell/gameflow/pkg/timeramp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRampDuration = time.Second
	DefaultBootDelay    = time.Second

	DefaultBootScene     = "Boot"
	DefaultMainMenuScene = "MainMenu"
	DefaultLevelScene    = "MiniGameLevel"
)

// Session is a point-in-time copy of the session state.
type Session struct {
	ID                  string    `json:"id"`
	Score               int64     `json:"score"`
	IsPaused            bool      `json:"isPaused"`
	IsGameOver          bool      `json:"isGameOver"`
	TransactionInFlight bool      `json:"transactionInFlight"`
	Ramping             bool      `json:"ramping"`
	Mode                flow.Mode `json:"-"`
	ModeName            string    `json:"mode"`
	TimeScale           float64   `json:"timeScale"`
	FixedDeltaTime      float64   `json:"fixedDeltaTime"`
	StartedAt           time.Time `json:"startedAt"`
}

// gameOverRampPriority keeps pause and resume from superseding the game
// over ramp.
const gameOverRampPriority = 1

// Controller orchestrates pause, resume, game over, restart and quit on top
// of the state machine and the time-scale ramp.
type Controller struct {
	machine   *statemachine.StateMachine
	ramper    *timeramp.Ramper
	timeScale *TimeScale
	bus       *notify.Bus
	logger    *log.Logger

	scenes     SceneLoader
	controls   ControlSurface
	audio      AudioCollaborator
	statistics StatisticsCollaborator

	rampDuration     time.Duration
	rampEase         timeramp.EaseFunc
	bootDelay        time.Duration
	sceneLoadTimeout time.Duration
	bootScene        string
	mainMenuScene    string
	levelScene       string

	// transaction guards PauseGame and ResumeGame.
	transaction atomic.Bool
	// rampGate makes the game over check and the start of a ramp atomic.
	rampGate sync.Mutex

	lock      sync.RWMutex
	id        string
	score     int64
	paused    bool
	gameOver  bool
	endings   int // game overs in progress
	startedAt time.Time
}

// NewControllerOptions contains options for creating a new Controller.
// Zero durations and empty scene names fall back to the defaults, except
// HookTimeout and SceneLoadTimeout where zero means no timeout.
type NewControllerOptions struct {
	Scenes     SceneLoader
	Controls   ControlSurface
	Audio      AudioCollaborator
	Statistics StatisticsCollaborator
	Bus        *notify.Bus
	Tracer     trace.Tracer
	// Logger defaults to the default logger tagged with the session component.
	Logger *log.Logger

	Clock            timeramp.Clock
	RampTick         time.Duration
	RampDuration     time.Duration
	RampEase         timeramp.EaseFunc
	BootDelay        time.Duration
	HookTimeout      time.Duration
	SceneLoadTimeout time.Duration

	BootScene     string
	MainMenuScene string
	LevelScene    string
}

func NewController(opts NewControllerOptions) *Controller {
	bus := opts.Bus
	if bus == nil {
		bus = notify.NewBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithComponent("session")
	}
	c := &Controller{
		ramper: timeramp.NewRamper(timeramp.NewRamperOptions{
			Clock: opts.Clock,
			Tick:  opts.RampTick,
		}),
		timeScale:        NewTimeScale(),
		bus:              bus,
		logger:           logger,
		scenes:           opts.Scenes,
		controls:         opts.Controls,
		audio:            opts.Audio,
		statistics:       opts.Statistics,
		rampDuration:     durationOrDefault(opts.RampDuration, DefaultRampDuration),
		rampEase:         opts.RampEase,
		bootDelay:        opts.BootDelay,
		sceneLoadTimeout: opts.SceneLoadTimeout,
		bootScene:        stringOrDefault(opts.BootScene, DefaultBootScene),
		mainMenuScene:    stringOrDefault(opts.MainMenuScene, DefaultMainMenuScene),
		levelScene:       stringOrDefault(opts.LevelScene, DefaultLevelScene),
		id:               uuid.NewString(),
		startedAt:        time.Now(),
	}
	c.machine = statemachine.New(statemachine.NewStateMachineOptions{
		Hooks:       c.hooks(),
		Bus:         bus,
		Tracer:      opts.Tracer,
		HookTimeout: opts.HookTimeout,
	})
	return c
}

func durationOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func stringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Bus returns the bus session events are published on.
func (c *Controller) Bus() *notify.Bus {
	return c.bus
}

// ActiveMode returns the current mode of the underlying state machine.
func (c *Controller) ActiveMode() flow.Mode {
	return c.machine.ActiveMode()
}

// Start enters the boot mode matching the initial scene and then moves on:
// Boot settles into the main menu, CustomSceneBoot goes straight to play.
func (c *Controller) Start(ctx context.Context) error {
	initial := flow.ModeCustomSceneBoot
	if c.scenes.InitialSceneIs(c.bootScene) {
		initial = flow.ModeBoot
	}
	if err := c.machine.Init(ctx, initial); err != nil {
		return fmt.Errorf("failed to initialize state machine: %w", err)
	}

	next := flow.ModeCustomScene
	if initial == flow.ModeBoot {
		next = flow.ModeMainMenu
	}
	if err := c.machine.RequestTransition(ctx, next); err != nil {
		return fmt.Errorf("failed to leave %s: %w", initial, err)
	}
	return nil
}

// StartNewGame moves from the main menu into a fresh play session.
func (c *Controller) StartNewGame(ctx context.Context) error {
	return c.machine.RequestTransition(ctx, flow.ModePlayGame)
}

// PauseGame ramps the simulation down to a standstill and hands input over
// to the menu. It does nothing unless a playable mode is active and settled,
// the game is not over or ending, and no pause or resume is running.
func (c *Controller) PauseGame(ctx context.Context) error {
	if !c.transaction.CompareAndSwap(false, true) {
		c.logger.Debug("PauseGame ignored: transaction in flight")
		return nil
	}
	defer c.transaction.Store(false)

	c.rampGate.Lock()
	if reason := c.pauseBlocked(); reason != "" {
		c.rampGate.Unlock()
		c.logger.Debug("PauseGame ignored: %s", reason)
		return nil
	}

	c.logger.Info("Game paused")
	fixedDelta := c.timeScale.FixedDeltaTime()
	c.controls.DisablePlayControls()
	c.controls.UnlockPointer()
	c.setPaused(true)
	c.publishPause(true)
	done := c.startRamp(ctx, 0, 0)
	c.rampGate.Unlock()

	if err := <-done; err != nil {
		if errors.Is(err, timeramp.ErrSuperseded) {
			c.logger.Debug("Pause ramp superseded")
			return nil
		}
		return fmt.Errorf("failed to ramp time scale: %w", err)
	}

	c.controls.EnableMenuControls()
	c.timeScale.SetFixedDeltaTime(fixedDelta)
	return nil
}

// ResumeGame is the inverse of PauseGame and is guarded the same way.
func (c *Controller) ResumeGame(ctx context.Context) error {
	if !c.transaction.CompareAndSwap(false, true) {
		c.logger.Debug("ResumeGame ignored: transaction in flight")
		return nil
	}
	defer c.transaction.Store(false)

	c.rampGate.Lock()
	if reason := c.pauseBlocked(); reason != "" {
		c.rampGate.Unlock()
		c.logger.Debug("ResumeGame ignored: %s", reason)
		return nil
	}

	c.logger.Info("Game resumed")
	c.setPaused(false)
	c.publishPause(false)
	c.controls.EnablePlayControls()
	c.controls.LockPointer()
	done := c.startRamp(ctx, 1, 0)
	c.rampGate.Unlock()

	if err := <-done; err != nil {
		if errors.Is(err, timeramp.ErrSuperseded) {
			c.logger.Debug("Resume ramp superseded")
			return nil
		}
		return fmt.Errorf("failed to ramp time scale: %w", err)
	}

	c.controls.DisableMenuControls()
	return nil
}

// pauseBlocked returns why pause and resume must not run now, or "".
// The caller must hold rampGate.
func (c *Controller) pauseBlocked() string {
	if c.machine.Transitioning() {
		return "mode transition in progress"
	}
	if mode := c.machine.ActiveMode(); !mode.Playable() {
		return fmt.Sprintf("mode %s is not playable", mode)
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.gameOver || c.endings > 0 {
		return "game over"
	}
	return ""
}

// RunGameOver ends the session. It ignores the transaction guard, supersedes
// any pause or resume ramp and leaves the simulation at normal speed. A
// restart or a return to the menu during its ramp takes over, and the game
// over is then dropped.
func (c *Controller) RunGameOver(ctx context.Context) error {
	c.rampGate.Lock()
	c.lock.Lock()
	c.endings++
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		c.endings--
		c.lock.Unlock()
	}()

	c.logger.Info("Game over")
	c.statistics.FinalizeSession()
	c.controls.DisablePlayControls()
	done := c.startRamp(ctx, 1, gameOverRampPriority)
	c.rampGate.Unlock()

	if err := <-done; err != nil {
		if errors.Is(err, timeramp.ErrSuperseded) {
			c.logger.Debug("Game over superseded")
			return nil
		}
		c.logger.Warn("Game over ramp interrupted: %v", err)
		c.ramper.Cancel()
		c.timeScale.Set(1)
	}

	c.controls.UnlockPointer()
	c.controls.EnableMenuControls()

	c.lock.Lock()
	c.gameOver = true
	c.paused = false
	id, score := c.id, c.score
	c.lock.Unlock()

	c.bus.Publish(notify.Event{
		Kind:      notify.KindGameOver,
		SessionID: id,
		Score:     score,
	})
	return nil
}

// RestartGame starts a new session by way of the restart mode. The previous
// session is finalized by the restart enter hook, so a rejected restart
// changes nothing.
func (c *Controller) RestartGame(ctx context.Context) error {
	if err := c.machine.RequestTransition(ctx, flow.ModeRestartGame); err != nil {
		return fmt.Errorf("failed to enter restart: %w", err)
	}
	if err := c.machine.RequestTransition(ctx, flow.ModePlayGame); err != nil {
		return fmt.Errorf("failed to start new game: %w", err)
	}
	return nil
}

// QuitGame moves to GameQuit, whose enter hook flushes the statistics.
// Quitting twice is a no-op.
func (c *Controller) QuitGame(ctx context.Context) error {
	if c.machine.ActiveModeEquals(flow.ModeGameQuit) {
		c.logger.Debug("QuitGame ignored: already quit")
		return nil
	}
	return c.machine.RequestTransition(ctx, flow.ModeGameQuit)
}

// GoToMainMenu finalizes the session and returns to the main menu.
func (c *Controller) GoToMainMenu(ctx context.Context) error {
	return c.machine.RequestTransition(ctx, flow.ModeMainMenu)
}

// PrepareToPlay resets the session for a new round of play. A pause ramp
// still in flight is dropped and time runs at normal speed.
func (c *Controller) PrepareToPlay() {
	c.ramper.Cancel()
	c.timeScale.Set(1)

	c.audio.PlayMusic(MusicBattle)
	c.controls.LockPointer()
	c.controls.EnablePlayControls()
	c.controls.DisableMenuControls()
	c.statistics.ResetSessionRecords()

	c.lock.Lock()
	c.id = uuid.NewString()
	c.score = 0
	c.paused = false
	c.gameOver = false
	c.startedAt = time.Now()
	id := c.id
	c.lock.Unlock()

	c.logger.Debug("Prepared session %s", id)
}

// AddScore adds a non-negative value to the session score.
func (c *Controller) AddScore(value int64) error {
	if value < 0 {
		return fmt.Errorf("%w: score increment %d is negative", ErrInvalidArgument, value)
	}

	c.lock.Lock()
	c.score += value
	id, total := c.id, c.score
	c.lock.Unlock()

	c.statistics.RecordScore(total)
	c.bus.Publish(notify.Event{
		Kind:      notify.KindScoreChanged,
		SessionID: id,
		Score:     total,
	})
	return nil
}

// HandleCharacterDead credits the score carried by a defeated character.
func (c *Controller) HandleCharacterDead(score int64) error {
	if err := c.AddScore(score); err != nil {
		c.logger.Error("Failed to add score for dead character: %v", err)
		return err
	}
	return nil
}

func (c *Controller) IsPaused() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.paused
}

func (c *Controller) IsGameOver() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.gameOver
}

func (c *Controller) Score() int64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.score
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Session {
	mode := c.machine.ActiveMode()
	c.lock.RLock()
	defer c.lock.RUnlock()
	return Session{
		ID:                  c.id,
		Score:               c.score,
		IsPaused:            c.paused,
		IsGameOver:          c.gameOver,
		TransactionInFlight: c.transaction.Load(),
		Ramping:             c.ramper.Running(),
		Mode:                mode,
		ModeName:            mode.String(),
		TimeScale:           c.timeScale.Scale(),
		FixedDeltaTime:      c.timeScale.FixedDeltaTime(),
		StartedAt:           c.startedAt,
	}
}

func (c *Controller) setPaused(paused bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.paused = paused
}

func (c *Controller) publishPause(paused bool) {
	c.lock.RLock()
	id := c.id
	c.lock.RUnlock()
	c.bus.Publish(notify.Event{
		Kind:      notify.KindPauseChanged,
		SessionID: id,
		Paused:    paused,
	})
}

// startRamp eases the time scale from its current value to target on the
// ramper's clock. The ramp has taken over, or been refused, on return.
func (c *Controller) startRamp(ctx context.Context, target float64, priority int) <-chan error {
	return c.ramper.Start(ctx, timeramp.Job{
		From:     c.timeScale.Scale(),
		To:       target,
		Duration: c.rampDuration,
		Ease:     c.rampEase,
		OnStep:   c.timeScale.Set,
		Priority: priority,
	})
}
