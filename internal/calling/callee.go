package calling

import (
	"fmt"

	"github.com/refract-dev/refract/internal/ir"
)

// CalleeKind discriminates the three ways a call target can be identified.
type CalleeKind int

const (
	// CalleeEntry identifies a target by its resolved entry address.
	CalleeEntry CalleeKind = iota + 1
	// CalleeCallSite identifies the unknown target of an unresolved
	// indirect call by the call statement itself.
	CalleeCallSite
	// CalleeFunction identifies a function that has no known entry
	// address by its function handle.
	CalleeFunction
)

// CalleeID is a comparable value identifying the target of a call. Two sites
// calling the same resolved address share a CalleeID and therefore share the
// assigned convention and signature; unresolved indirect calls each get their
// own abstract identity.
type CalleeID struct {
	kind CalleeKind
	addr uint64
	site ir.StmtID
	fn   ir.FuncID
}

// EntryCallee identifies a target by entry address.
func EntryCallee(addr uint64) CalleeID {
	return CalleeID{kind: CalleeEntry, addr: addr}
}

// CallSiteCallee identifies the unknown target of an indirect call.
func CallSiteCallee(site ir.StmtID) CalleeID {
	return CalleeID{kind: CalleeCallSite, site: site}
}

// FunctionCallee identifies a function without a known entry address.
func FunctionCallee(fn ir.FuncID) CalleeID {
	return CalleeID{kind: CalleeFunction, fn: fn}
}

// CalleeOfFunction returns the identity under which a function's own
// convention and signature are registered: its entry address when known,
// otherwise its function handle.
func CalleeOfFunction(fn *ir.Function) CalleeID {
	if addr := fn.EntryAddr(); addr != 0 {
		return EntryCallee(addr)
	}
	return FunctionCallee(fn.ID())
}

// CalleeOfCall returns the identity of a call's target. Direct calls and
// indirect calls with a dataflow-resolved address are identified by that
// address; unresolved indirect calls are identified by the call site itself.
func CalleeOfCall(call *ir.Call, resolvedAddr uint64, resolved bool) CalleeID {
	if !call.Indirect {
		return EntryCallee(call.Addr)
	}
	if resolved {
		return EntryCallee(resolvedAddr)
	}
	return CallSiteCallee(call.ID())
}

// Valid reports whether the identity was produced by one of the
// constructors.
func (id CalleeID) Valid() bool { return id.kind != 0 }

// Kind returns the identity's discriminator.
func (id CalleeID) Kind() CalleeKind { return id.kind }

// Addr returns the entry address for CalleeEntry identities.
func (id CalleeID) Addr() uint64 { return id.addr }

func (id CalleeID) String() string {
	switch id.kind {
	case CalleeEntry:
		return fmt.Sprintf("entry:%#x", id.addr)
	case CalleeCallSite:
		return fmt.Sprintf("callsite:%d", id.site)
	case CalleeFunction:
		return fmt.Sprintf("function:%d", id.fn)
	default:
		return "invalid"
	}
}
