package session

import "sync"

// BaseFixedDelta is the fixed simulation step, in seconds, at scale 1.
const BaseFixedDelta = 0.02

// TimeScale is the simulation rate together with the fixed step derived
// from it.
type TimeScale struct {
	lock       sync.RWMutex
	scale      float64
	fixedDelta float64
}

func NewTimeScale() *TimeScale {
	return &TimeScale{
		scale:      1,
		fixedDelta: BaseFixedDelta,
	}
}

// Set changes the scale and recomputes the fixed step.
func (t *TimeScale) Set(scale float64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.scale = scale
	t.fixedDelta = scale * BaseFixedDelta
}

func (t *TimeScale) Scale() float64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.scale
}

func (t *TimeScale) FixedDeltaTime() float64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.fixedDelta
}

// SetFixedDeltaTime overrides the fixed step without touching the scale.
func (t *TimeScale) SetFixedDeltaTime(d float64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.fixedDelta = d
}
