package calling

import (
	"github.com/refract-dev/refract/internal/ir"
)

// SiteKind identifies which kind of site an event concerns.
type SiteKind int

const (
	EntrySite SiteKind = iota + 1
	CallSite
	ReturnSite
)

func (k SiteKind) String() string {
	switch k {
	case EntrySite:
		return "entry"
	case CallSite:
		return "call"
	case ReturnSite:
		return "return"
	default:
		return "unknown"
	}
}

// Event describes a hook being installed at or removed from one site. Site
// is zero for entry events.
type Event struct {
	Func ir.FuncID
	Site ir.StmtID
	Kind SiteKind
}

// Listener observes hook installation and removal. Delivery is synchronous
// on the instrumenting goroutine; listeners must not call back into the
// Hooks engine.
type Listener interface {
	HookInstalled(Event)
	HookRemoved(Event)
}

// Subscribe registers a listener for hook events.
func (h *Hooks) Subscribe(l Listener) {
	h.listeners = append(h.listeners, l)
}

// Unsubscribe removes a previously registered listener. Unknown listeners
// are ignored.
func (h *Hooks) Unsubscribe(l Listener) {
	for i, cur := range h.listeners {
		if cur == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

func (h *Hooks) notifyInstalled(ev Event) {
	for _, l := range h.listeners {
		l.HookInstalled(ev)
	}
}

func (h *Hooks) notifyRemoved(ev Event) {
	for _, l := range h.listeners {
		l.HookRemoved(ev)
	}
}
