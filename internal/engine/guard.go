package engine

import "sync"

// Action names a user-triggered flow for busy tracking.
type Action string

const (
	ActionConnect   Action = "connect"
	ActionInventory Action = "inventory"
	ActionStart     Action = "start"
	ActionChoose    Action = "choose"
	ActionLink      Action = "link"
	ActionBind      Action = "bind"
	ActionSync      Action = "sync"
)

// SideActionKey is the busy key for one side action.
func SideActionKey(name string) Action { return Action("side:" + name) }

// Guard allows one in-flight call per action.
type Guard struct {
	mu   sync.Mutex
	busy map[Action]bool
}

// Begin marks a as in flight. It returns false if a already is.
func (g *Guard) Begin(a Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy == nil {
		g.busy = make(map[Action]bool)
	}
	if g.busy[a] {
		return false
	}
	g.busy[a] = true
	return true
}

// End clears a.
func (g *Guard) End(a Action) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, a)
}

// Busy reports whether a is in flight.
func (g *Guard) Busy(a Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[a]
}
