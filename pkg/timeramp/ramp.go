package timeramp

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultTick is the interval between two steps of a ramp.
	DefaultTick = 16 * time.Millisecond
)

// ErrSuperseded is returned by Run when a newer job, or Cancel, took over
// the ramped value before the job completed.
var ErrSuperseded = errors.New("ramp superseded")

// ErrOutranked is returned by Run, before any value is applied, when the
// job in flight has a higher priority than the new one.
var ErrOutranked = errors.New("ramp outranked by job in flight")

// Job describes one interpolation from From to To over Duration.
type Job struct {
	From     float64
	To       float64
	Duration time.Duration
	// Ease defaults to EaseOutQuad.
	Ease EaseFunc
	// OnStep receives every interpolated value, ending with To.
	OnStep func(value float64)
	// Priority keeps lower-priority jobs from superseding this one while it
	// runs. Cancel ignores priority.
	Priority int
}

// Ramper runs at most one job at a time for a single ramped value.
// Starting a job supersedes the one in flight unless the one in flight has a
// higher priority: among equals the last writer wins.
type Ramper struct {
	clock Clock
	tick  time.Duration

	lock       sync.Mutex
	generation uint64
	priority   int
	cancel     context.CancelFunc
}

type NewRamperOptions struct {
	Clock Clock
	Tick  time.Duration
}

func NewRamper(opts NewRamperOptions) *Ramper {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Ramper{
		clock: clock,
		tick:  tick,
	}
}

// Run drives the job to completion, blocking until the target value has
// been delivered. It returns ErrSuperseded if another job or Cancel took
// over, ErrOutranked if it could not start, or the context error if ctx is
// done first.
func (r *Ramper) Run(ctx context.Context, job Job) error {
	return <-r.Start(ctx, job)
}

// Start supersedes the job in flight, or fails with ErrOutranked, before it
// returns, and then runs the job in the background. The channel receives
// the result Run would have returned.
func (r *Ramper) Start(ctx context.Context, job Job) <-chan error {
	done := make(chan error, 1)
	ctx, generation, err := r.begin(ctx, job.Priority)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		err := r.run(ctx, generation, job)
		r.end(generation)
		done <- err
	}()
	return done
}

func (r *Ramper) run(ctx context.Context, generation uint64, job Job) error {
	ease := job.Ease
	if ease == nil {
		ease = EaseOutQuad
	}

	if job.Duration <= 0 {
		if !r.apply(generation, job.OnStep, job.To) {
			return ErrSuperseded
		}
		return nil
	}

	start := r.clock.Now()
	ticker := r.clock.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !r.current(generation) {
				return ErrSuperseded
			}
			return ctx.Err()
		case now := <-ticker.C():
			progress := float64(now.Sub(start)) / float64(job.Duration)
			value := job.To
			if progress < 1 {
				if progress < 0 {
					progress = 0
				}
				value = Lerp(job.From, job.To, ease(progress))
			}
			if !r.apply(generation, job.OnStep, value) {
				return ErrSuperseded
			}
			if progress >= 1 {
				return nil
			}
		}
	}
}

// Cancel supersedes the job in flight, if any. No value from a cancelled
// job is applied after Cancel returns.
func (r *Ramper) Cancel() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Running reports whether a job is in flight.
func (r *Ramper) Running() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.cancel != nil
}

func (r *Ramper) begin(ctx context.Context, priority int) (context.Context, uint64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cancel != nil {
		if priority < r.priority {
			return nil, 0, ErrOutranked
		}
		r.cancel()
	}
	r.generation++
	r.priority = priority
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	return ctx, r.generation, nil
}

func (r *Ramper) end(generation uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.generation == generation && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Ramper) current(generation uint64) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.generation == generation
}

// apply calls onStep while holding the lock so that a superseding job or
// Cancel cannot interleave with a stale write.
func (r *Ramper) apply(generation uint64, onStep func(float64), value float64) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.generation != generation {
		return false
	}
	if onStep != nil {
		onStep(value)
	}
	return true
}
