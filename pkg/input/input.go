package input

import (
	"sync"

	"github.com/cbodonnell/gameflow/pkg/log"
)

// State is the current control surface configuration.
type State struct {
	PlayEnabled   bool `json:"playEnabled"`
	MenuEnabled   bool `json:"menuEnabled"`
	PointerLocked bool `json:"pointerLocked"`
}

// Controls tracks which input maps are enabled and whether the pointer is
// captured.
type Controls struct {
	lock  sync.RWMutex
	state State
}

func NewControls() *Controls {
	return &Controls{}
}

func (c *Controls) EnablePlayControls()  { c.set("play controls", &c.state.PlayEnabled, true) }
func (c *Controls) DisablePlayControls() { c.set("play controls", &c.state.PlayEnabled, false) }
func (c *Controls) EnableMenuControls()  { c.set("menu controls", &c.state.MenuEnabled, true) }
func (c *Controls) DisableMenuControls() { c.set("menu controls", &c.state.MenuEnabled, false) }
func (c *Controls) LockPointer()         { c.set("pointer lock", &c.state.PointerLocked, true) }
func (c *Controls) UnlockPointer()       { c.set("pointer lock", &c.state.PointerLocked, false) }

func (c *Controls) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

func (c *Controls) set(name string, field *bool, value bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if *field == value {
		return
	}
	*field = value
	log.Trace("%s: %t", name, value)
}
