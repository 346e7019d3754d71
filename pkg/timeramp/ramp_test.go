package timeramp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the values delivered to OnStep.
type recorder struct {
	lock   sync.Mutex
	values []float64
}

func (r *recorder) step(v float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]float64(nil), r.values...)
}

// drive advances the manual clock until the ramp returns.
func drive(t *testing.T, clock *ManualClock, tick time.Duration, done <-chan error) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("ramp did not complete")
			return nil
		default:
			clock.Advance(tick)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRamper_RunReachesTarget(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		ease     EaseFunc
	}{
		{name: "pause fade", from: 1, to: 0, ease: EaseOutQuad},
		{name: "resume fade", from: 0, to: 1, ease: EaseLinear},
		{name: "in-out", from: 0.25, to: 1, ease: EaseInOutQuad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewManualClock(time.Unix(0, 0))
			tick := 10 * time.Millisecond
			r := NewRamper(NewRamperOptions{Clock: clock, Tick: tick})
			rec := &recorder{}

			done := make(chan error, 1)
			go func() {
				done <- r.Run(context.Background(), Job{
					From:     tt.from,
					To:       tt.to,
					Duration: 100 * time.Millisecond,
					Ease:     tt.ease,
					OnStep:   rec.step,
				})
			}()

			require.NoError(t, drive(t, clock, tick, done))

			values := rec.snapshot()
			require.NotEmpty(t, values)
			assert.Equal(t, tt.to, values[len(values)-1])
			for i := 1; i < len(values); i++ {
				if tt.to < tt.from {
					assert.LessOrEqual(t, values[i], values[i-1])
				} else {
					assert.GreaterOrEqual(t, values[i], values[i-1])
				}
			}
			assert.False(t, r.Running())
			assert.Equal(t, 0, clock.Tickers())
		})
	}
}

func TestRamper_ZeroDurationAppliesTargetImmediately(t *testing.T) {
	r := NewRamper(NewRamperOptions{Clock: NewManualClock(time.Unix(0, 0))})
	rec := &recorder{}

	err := r.Run(context.Background(), Job{From: 0.3, To: 1, OnStep: rec.step})

	require.NoError(t, err)
	assert.Equal(t, []float64{1}, rec.snapshot())
}

func TestRamper_NewJobSupersedesInFlight(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tick := 10 * time.Millisecond
	r := NewRamper(NewRamperOptions{Clock: clock, Tick: tick})

	var lock sync.Mutex
	value := 1.0
	set := func(v float64) {
		lock.Lock()
		value = v
		lock.Unlock()
	}

	first := make(chan error, 1)
	go func() {
		first <- r.Run(context.Background(), Job{From: 1, To: 0, Duration: time.Second, OnStep: set})
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	clock.Advance(tick)

	second := make(chan error, 1)
	go func() {
		second <- r.Run(context.Background(), Job{From: 0.5, To: 1, Duration: 50 * time.Millisecond, OnStep: set})
	}()

	select {
	case err := <-first:
		assert.True(t, errors.Is(err, ErrSuperseded))
	case <-time.After(5 * time.Second):
		t.Fatal("first ramp was not superseded")
	}

	require.NoError(t, drive(t, clock, tick, second))

	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, 1.0, value)
}

func TestRamper_LowerPriorityCannotSupersede(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tick := 10 * time.Millisecond
	r := NewRamper(NewRamperOptions{Clock: clock, Tick: tick})
	rec := &recorder{}

	high := make(chan error, 1)
	go func() {
		high <- r.Run(context.Background(), Job{From: 0, To: 1, Duration: 50 * time.Millisecond, OnStep: rec.step, Priority: 1})
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	low := &recorder{}
	err := r.Run(context.Background(), Job{From: 1, To: 0, Duration: time.Second, OnStep: low.step})
	assert.ErrorIs(t, err, ErrOutranked)
	assert.Empty(t, low.snapshot())

	require.NoError(t, drive(t, clock, tick, high))
	values := rec.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 1.0, values[len(values)-1])

	// once the high priority job is done anyone may run
	require.NoError(t, r.Run(context.Background(), Job{From: 1, To: 0, OnStep: low.step}))
	assert.Equal(t, []float64{0}, low.snapshot())
}

func TestRamper_CancelStopsWrites(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tick := 10 * time.Millisecond
	r := NewRamper(NewRamperOptions{Clock: clock, Tick: tick})
	rec := &recorder{}

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), Job{From: 1, To: 0, Duration: time.Second, OnStep: rec.step})
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	r.Cancel()
	applied := len(rec.snapshot())
	clock.Advance(100 * time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled ramp did not return")
	}
	assert.Len(t, rec.snapshot(), applied)
}

func TestRamper_ContextCancelled(t *testing.T) {
	r := NewRamper(NewRamperOptions{Clock: NewManualClock(time.Unix(0, 0))})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, Job{From: 1, To: 0, Duration: time.Second})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRamper_RealClock(t *testing.T) {
	r := NewRamper(NewRamperOptions{Tick: time.Millisecond})
	rec := &recorder{}

	err := r.Run(context.Background(), Job{From: 1, To: 0, Duration: 20 * time.Millisecond, OnStep: rec.step})

	require.NoError(t, err)
	values := rec.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 0.0, values[len(values)-1])
}

func TestEasing(t *testing.T) {
	eases := map[string]EaseFunc{
		"linear":   EaseLinear,
		"out-quad": EaseOutQuad,
		"in-out":   EaseInOutQuad,
	}
	for name, ease := range eases {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, 0, ease(0), 1e-9)
			assert.InDelta(t, 1, ease(1), 1e-9)
		})
	}
	assert.InDelta(t, 0.75, EaseOutQuad(0.5), 1e-9)
	assert.InDelta(t, 0.5, EaseInOutQuad(0.5), 1e-9)
	assert.Equal(t, 5.0, Lerp(0, 10, 0.5))
}

func TestParseEase(t *testing.T) {
	for _, name := range []string{"", "linear", "out-quad", "in-out-quad"} {
		ease, err := ParseEase(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1, ease(1), 1e-9, name)
	}

	ease, _ := ParseEase("in-out-quad")
	assert.InDelta(t, 0.5, ease(0.5), 1e-9)

	_, err := ParseEase("bounce")
	assert.Error(t, err)
}
