package calling

import (
	"github.com/refract-dev/refract/internal/ir"
)

// A hook record is an immutable description of the marker statements built
// for one site under one resolved (convention, signature[, target address])
// combination. Records are created once per distinct cache key, owned by the
// Hooks engine, and handed out only as non-owning references, so callers can
// detect "hook changed" by comparing identities.

func argMarkers(p *ir.Program, args []Location) []ir.Statement {
	markers := make([]ir.Statement, 0, len(args))
	for _, loc := range args {
		if loc.OnStack {
			markers = append(markers, p.NewStackSlotMarker(loc.Offset))
			continue
		}
		markers = append(markers, p.NewRegisterMarker(ir.ReadRegister, loc.Reg))
	}
	return markers
}

func markerIDs(groups ...[]ir.Statement) []ir.StmtID {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	ids := make([]ir.StmtID, 0, n)
	for _, g := range groups {
		for _, s := range g {
			ids = append(ids, s.ID())
		}
	}
	return ids
}

// EntryHook records the markers inserted at a function's entry: one read per
// argument location, in argument order.
type EntryHook struct {
	conv    *Convention
	sig     *Signature
	markers []ir.Statement
}

func newEntryHook(p *ir.Program, conv *Convention, sig *Signature) *EntryHook {
	return &EntryHook{
		conv:    conv,
		sig:     sig,
		markers: argMarkers(p, sig.Args()),
	}
}

// Convention returns the convention the hook was built against.
func (h *EntryHook) Convention() *Convention { return h.conv }

// Signature returns the signature the hook was built against.
func (h *EntryHook) Signature() *Signature { return h.sig }

// Markers returns the hook's marker statements in insertion order. Callers
// must not mutate the returned slice.
func (h *EntryHook) Markers() []ir.Statement { return h.markers }

// MarkerIDs returns the handles of the hook's marker statements.
func (h *EntryHook) MarkerIDs() []ir.StmtID { return markerIDs(h.markers) }

// CallHook records the markers inserted around a call: argument reads before
// it, a return-register definition and, for callee-cleanup conventions, a
// stack adjustment after it.
type CallHook struct {
	conv   *Convention
	sig    *Signature
	before []ir.Statement
	after  []ir.Statement
}

func newCallHook(p *ir.Program, conv *Convention, sig *Signature) *CallHook {
	h := &CallHook{
		conv:   conv,
		sig:    sig,
		before: argMarkers(p, sig.Args()),
	}
	if ret, ok := sig.ReturnValue(); ok && !ret.OnStack {
		h.after = append(h.after, p.NewRegisterMarker(ir.DefineRegister, ret.Reg))
	}
	if conv.CalleeCleanup() {
		var stackArgs int
		for _, loc := range sig.Args() {
			if loc.OnStack {
				stackArgs++
			}
		}
		if stackArgs > 0 {
			h.after = append(h.after, p.NewStackMarker(int64(stackArgs*conv.WordSize())))
		}
	}
	return h
}

// Convention returns the convention the hook was built against.
func (h *CallHook) Convention() *Convention { return h.conv }

// Signature returns the signature the hook was built against.
func (h *CallHook) Signature() *Signature { return h.sig }

// Markers returns all of the hook's marker statements, before-group first.
func (h *CallHook) Markers() []ir.Statement {
	return append(append([]ir.Statement(nil), h.before...), h.after...)
}

// MarkerIDs returns the handles of the hook's marker statements.
func (h *CallHook) MarkerIDs() []ir.StmtID { return markerIDs(h.before, h.after) }

// ReturnHook records the markers inserted before a return statement: a read
// of the return register when the function signature has one.
type ReturnHook struct {
	conv    *Convention
	sig     *Signature
	markers []ir.Statement
}

func newReturnHook(p *ir.Program, conv *Convention, sig *Signature) *ReturnHook {
	h := &ReturnHook{conv: conv, sig: sig}
	if ret, ok := sig.ReturnValue(); ok && !ret.OnStack {
		h.markers = append(h.markers, p.NewRegisterMarker(ir.ReadRegister, ret.Reg))
	}
	return h
}

// Convention returns the convention the hook was built against.
func (h *ReturnHook) Convention() *Convention { return h.conv }

// Signature returns the signature the hook was built against.
func (h *ReturnHook) Signature() *Signature { return h.sig }

// Markers returns the hook's marker statements in insertion order.
func (h *ReturnHook) Markers() []ir.Statement { return h.markers }

// MarkerIDs returns the handles of the hook's marker statements.
func (h *ReturnHook) MarkerIDs() []ir.StmtID { return markerIDs(h.markers) }
