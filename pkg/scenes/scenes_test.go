package scenes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadScene(t *testing.T) {
	l := NewLoader(NewLoaderOptions{
		InitialScene: "Boot",
		Scenes:       []string{"Boot", "MainMenu"},
		LoadLatency:  5 * time.Millisecond,
	})
	assert.True(t, l.InitialSceneIs("Boot"))
	assert.False(t, l.InitialSceneIs("MainMenu"))

	name, visible := l.ActiveScene()
	assert.Equal(t, "Boot", name)
	assert.False(t, visible)
	l.ShowActiveScene()
	_, visible = l.ActiveScene()
	assert.True(t, visible)

	require.NoError(t, <-l.LoadScene(context.Background(), "MainMenu"))
	name, _ = l.ActiveScene()
	assert.Equal(t, "MainMenu", name)

	assert.Error(t, <-l.LoadScene(context.Background(), "Nowhere"))
}

func TestLoader_LoadSceneCancelled(t *testing.T) {
	l := NewLoader(NewLoaderOptions{InitialScene: "Boot", LoadLatency: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := l.LoadScene(ctx, "Level")
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	name, _ := l.ActiveScene()
	assert.Equal(t, "Boot", name)
}
