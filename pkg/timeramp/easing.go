package timeramp

import "fmt"

// EaseFunc maps progress t in [0, 1] to eased progress in [0, 1].
type EaseFunc func(t float64) float64

// EaseLinear is constant speed.
func EaseLinear(t float64) float64 {
	return t
}

// EaseOutQuad starts fast and slows down towards the target.
func EaseOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// EaseInOutQuad starts and ends slowly.
func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}

// ParseEase returns the easing function with the given name: linear,
// out-quad or in-out-quad. An empty name selects out-quad.
func ParseEase(name string) (EaseFunc, error) {
	switch name {
	case "linear":
		return EaseLinear, nil
	case "", "out-quad":
		return EaseOutQuad, nil
	case "in-out-quad":
		return EaseInOutQuad, nil
	default:
		return nil, fmt.Errorf("unknown easing: %s", name)
	}
}

// Lerp interpolates between a and b. t=0 returns a, t=1 returns b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
