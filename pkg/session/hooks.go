package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/gameflow/pkg/flow"
	"github.com/cbodonnell/gameflow/pkg/statemachine"
)

// bootSettle is the pause taken when leaving Boot.
const bootSettle = time.Millisecond

func (c *Controller) hooks() map[flow.Mode]statemachine.Hooks {
	return map[flow.Mode]statemachine.Hooks{
		flow.ModeCustomSceneBoot: {
			Enter: c.enterCustomSceneBoot,
		},
		flow.ModeBoot: {
			Enter: c.enterBoot,
			Exit:  c.exitBoot,
		},
		flow.ModeMainMenu: {
			Enter: c.enterMainMenu,
		},
		flow.ModePlayGame: {
			Enter: c.enterPlayGame,
			Exit:  c.exitPlayGame,
		},
		flow.ModeCustomScene: {
			Enter: c.enterCustomScene,
			Exit:  c.exitPlayGame,
		},
		flow.ModeRestartGame: {
			Enter: c.enterRestartGame,
		},
		flow.ModeGamePause: {},
		flow.ModeGameQuit: {
			Enter: c.enterGameQuit,
		},
	}
}

func (c *Controller) enterCustomSceneBoot(ctx context.Context) error {
	c.scenes.ShowActiveScene()
	return nil
}

func (c *Controller) enterBoot(ctx context.Context) error {
	c.scenes.ShowActiveScene()
	return wait(ctx, c.bootDelay)
}

func (c *Controller) exitBoot(ctx context.Context) error {
	return wait(ctx, bootSettle)
}

func (c *Controller) enterMainMenu(ctx context.Context) error {
	c.ramper.Cancel()
	c.timeScale.Set(1)
	c.setPaused(false)

	if err := c.loadScene(ctx, c.mainMenuScene); err != nil {
		return err
	}
	c.statistics.FinalizeSession()
	c.audio.PlayMusic(MusicMenu)
	c.controls.DisablePlayControls()
	c.controls.UnlockPointer()
	c.controls.EnableMenuControls()
	return nil
}

func (c *Controller) enterPlayGame(ctx context.Context) error {
	c.controls.LockPointer()
	if err := c.loadScene(ctx, c.levelScene); err != nil {
		c.controls.UnlockPointer()
		return err
	}
	c.PrepareToPlay()
	return nil
}

// enterRestartGame closes the previous session. PlayGame prepares the next.
func (c *Controller) enterRestartGame(ctx context.Context) error {
	c.ramper.Cancel()
	c.timeScale.Set(1)
	c.lock.Lock()
	c.gameOver = false
	c.lock.Unlock()
	c.statistics.FinalizeSession()
	return nil
}

func (c *Controller) enterCustomScene(ctx context.Context) error {
	c.PrepareToPlay()
	return nil
}

func (c *Controller) exitPlayGame(ctx context.Context) error {
	c.controls.UnlockPointer()
	return nil
}

func (c *Controller) enterGameQuit(ctx context.Context) error {
	c.statistics.FinalizeSession()
	return nil
}

// loadScene waits for the scene to finish loading, bounded by the scene
// load timeout when one is set.
func (c *Controller) loadScene(ctx context.Context, name string) error {
	if c.sceneLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.sceneLoadTimeout)
		defer cancel()
	}

	select {
	case err := <-c.scenes.LoadScene(ctx, name):
		if err != nil {
			return fmt.Errorf("failed to load scene %s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to load scene %s: %w", name, ctx.Err())
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
