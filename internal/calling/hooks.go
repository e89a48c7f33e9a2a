package calling

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/refract-dev/refract/internal/dataflow"
	"github.com/refract-dev/refract/internal/ir"
)

// ConventionDetector is invoked when a callee's convention is requested but
// unknown. It is expected to detect the convention and assign it in the
// Conventions registry as a side effect; the engine re-queries the registry
// exactly once afterwards. The detector is invoked at most once per callee id
// per Instrument call.
type ConventionDetector func(CalleeID)

// Hook cache keys. A changed convention, signature, or resolved call target
// yields a different key and therefore a different (possibly newly built)
// hook record.

type entryKey struct {
	fn   ir.FuncID
	conv ConventionID
	sig  SigID
}

type callKey struct {
	site    ir.StmtID
	conv    ConventionID
	sig     SigID
	addr    uint64
	hasAddr bool
}

type returnKey struct {
	site ir.StmtID
	conv ConventionID
	sig  SigID
}

// Hooks instruments functions with the marker statements of their resolved
// calling conventions and keeps that instrumentation consistent across the
// repeated passes of an iterative analysis.
//
// The engine is driven synchronously by the outer fixpoint loop and is not
// safe for concurrent use: confine each instance to a single goroutine per
// decompilation unit.
//
// Traversal order is program order: the function entry first, then every
// block in body order, then every statement in block order. Given identical
// input, repeated passes visit sites in the same order.
type Hooks struct {
	logger      zerolog.Logger
	conventions *Conventions
	signatures  *Signatures
	detector    ConventionDetector

	// Append-only memoization caches. Entries are never evicted; the
	// last* maps hold the ≤1 record currently installed per site.
	entryHooks  map[entryKey]*EntryHook
	lastEntry   map[ir.FuncID]*EntryHook
	callHooks   map[callKey]*CallHook
	lastCall    map[ir.StmtID]*CallHook
	returnHooks map[returnKey]*ReturnHook
	lastReturn  map[ir.StmtID]*ReturnHook

	// Functions with any installed hook, and the call/return sites
	// instrumented inside each.
	instrumented map[ir.FuncID]*ir.Function
	sites        map[ir.FuncID]map[ir.StmtID]SiteKind

	listeners []Listener

	// Callee ids the detector has already been invoked for during the
	// current Instrument call.
	detected map[CalleeID]bool
}

// NewHooks creates an engine over the given registries.
func NewHooks(conventions *Conventions, signatures *Signatures, logger zerolog.Logger) *Hooks {
	return &Hooks{
		logger:       logger.With().Str("component", "hooks").Logger(),
		conventions:  conventions,
		signatures:   signatures,
		entryHooks:   make(map[entryKey]*EntryHook),
		lastEntry:    make(map[ir.FuncID]*EntryHook),
		callHooks:    make(map[callKey]*CallHook),
		lastCall:     make(map[ir.StmtID]*CallHook),
		returnHooks:  make(map[returnKey]*ReturnHook),
		lastReturn:   make(map[ir.StmtID]*ReturnHook),
		instrumented: make(map[ir.FuncID]*ir.Function),
		sites:        make(map[ir.FuncID]map[ir.StmtID]SiteKind),
		detected:     make(map[CalleeID]bool),
	}
}

// Conventions returns the registry the engine resolves against.
func (h *Hooks) Conventions() *Conventions { return h.conventions }

// SetConventionDetector sets the procedure invoked when a callee's
// convention is requested but unknown.
func (h *Hooks) SetConventionDetector(d ConventionDetector) {
	h.detector = d
}

// Convention resolves the convention for a callee. If the registry has no
// assignment and a detector is set, the detector is invoked once and the
// registry queried once more; a still-missing convention resolves to nil,
// which is the normal "not yet known" state, not an error.
func (h *Hooks) Convention(id CalleeID) *Convention {
	if c := h.conventions.Lookup(id); c != nil {
		return c
	}
	if h.detector == nil || h.detected[id] {
		return nil
	}
	h.detected[id] = true
	h.detector(id)
	return h.conventions.Lookup(id)
}

// EntryHookFor returns the entry hook currently installed in a function, or
// nil.
func (h *Hooks) EntryHookFor(fn ir.FuncID) *EntryHook { return h.lastEntry[fn] }

// CallHookFor returns the hook currently installed at a call site, or nil.
func (h *Hooks) CallHookFor(site ir.StmtID) *CallHook { return h.lastCall[site] }

// ReturnHookFor returns the hook currently installed at a return site, or
// nil.
func (h *Hooks) ReturnHookFor(site ir.StmtID) *ReturnHook { return h.lastReturn[site] }

// Instrument brings the function's instrumentation in line with the
// currently known conventions, signatures, and resolved call targets. Sites
// whose convention or signature is unknown are left (or become)
// uninstrumented; sites whose key is unchanged since the last pass are left
// untouched; everything else is deinstalled before the new generation is
// installed, so two hook generations never coexist.
func (h *Hooks) Instrument(fn *ir.Function, df *dataflow.Dataflow) error {
	h.detected = make(map[CalleeID]bool)
	h.logger.Debug().
		Uint32("function", uint32(fn.ID())).
		Str("name", fn.Name()).
		Msg("instrumenting function")

	if err := h.instrumentEntry(fn); err != nil {
		return err
	}

	// Collect sites first: installing markers mutates the blocks being
	// walked.
	var found []ir.Statement
	fn.Walk(func(s ir.Statement) bool {
		if s.Kind() == ir.KindCall || s.Kind() == ir.KindReturn {
			found = append(found, s)
		}
		return true
	})

	for _, s := range found {
		if s.Owner() != fn.ID() {
			return fmt.Errorf("site %d belongs to function %d, not function %d being instrumented",
				s.ID(), s.Owner(), fn.ID())
		}
		switch site := s.(type) {
		case *ir.Call:
			if err := h.instrumentCall(fn, site, df); err != nil {
				return err
			}
		case *ir.Return:
			if err := h.instrumentReturn(fn, site); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hooks) instrumentEntry(fn *ir.Function) error {
	calleeID := CalleeOfFunction(fn)
	conv := h.Convention(calleeID)
	if conv == nil {
		return h.deinstrumentEntry(fn)
	}
	sig := h.signatures.FunctionSignature(calleeID)
	if sig == nil {
		return h.deinstrumentEntry(fn)
	}

	key := entryKey{fn: fn.ID(), conv: conv.ID(), sig: sig.ID()}
	hook, ok := h.entryHooks[key]
	if !ok {
		hook = newEntryHook(fn.Program(), conv, sig)
		h.entryHooks[key] = hook
	}
	if h.lastEntry[fn.ID()] == hook {
		return nil
	}
	if err := h.deinstrumentEntry(fn); err != nil {
		return err
	}
	if err := fn.InsertAtEntry(hook.markers); err != nil {
		return err
	}
	h.lastEntry[fn.ID()] = hook
	h.instrumented[fn.ID()] = fn
	h.logger.Debug().
		Uint32("function", uint32(fn.ID())).
		Str("convention", conv.Name()).
		Int("markers", len(hook.markers)).
		Msg("entry hook installed")
	h.notifyInstalled(Event{Func: fn.ID(), Kind: EntrySite})
	return nil
}

func (h *Hooks) instrumentCall(fn *ir.Function, call *ir.Call, df *dataflow.Dataflow) error {
	var addr uint64
	var hasAddr bool
	if call.Indirect {
		addr, hasAddr = df.ResolvedTarget(call.ID())
	} else {
		addr, hasAddr = call.Addr, true
	}

	calleeID := CalleeOfCall(call, addr, hasAddr)
	conv := h.Convention(calleeID)
	if conv == nil {
		return h.deinstrumentCall(fn, call.ID())
	}
	sig := h.signatures.CallSignature(call.ID())
	if sig == nil {
		return h.deinstrumentCall(fn, call.ID())
	}

	key := callKey{site: call.ID(), conv: conv.ID(), sig: sig.ID(), addr: addr, hasAddr: hasAddr}
	hook, ok := h.callHooks[key]
	if !ok {
		hook = newCallHook(fn.Program(), conv, sig)
		h.callHooks[key] = hook
	}
	if h.lastCall[call.ID()] == hook {
		return nil
	}
	if err := h.deinstrumentCall(fn, call.ID()); err != nil {
		return err
	}
	if err := fn.InsertBefore(call.ID(), hook.before); err != nil {
		return err
	}
	if err := fn.InsertAfter(call.ID(), hook.after); err != nil {
		// Do not leave a partial generation behind.
		if len(hook.before) > 0 {
			_ = fn.RemoveStatements(markerIDs(hook.before))
		}
		return err
	}
	h.lastCall[call.ID()] = hook
	h.trackSite(fn, call.ID(), CallSite)
	h.notifyInstalled(Event{Func: fn.ID(), Site: call.ID(), Kind: CallSite})
	return nil
}

func (h *Hooks) instrumentReturn(fn *ir.Function, ret *ir.Return) error {
	calleeID := CalleeOfFunction(fn)
	conv := h.Convention(calleeID)
	if conv == nil {
		return h.deinstrumentReturn(fn, ret.ID())
	}
	sig := h.signatures.FunctionSignature(calleeID)
	if sig == nil {
		return h.deinstrumentReturn(fn, ret.ID())
	}

	key := returnKey{site: ret.ID(), conv: conv.ID(), sig: sig.ID()}
	hook, ok := h.returnHooks[key]
	if !ok {
		hook = newReturnHook(fn.Program(), conv, sig)
		h.returnHooks[key] = hook
	}
	if h.lastReturn[ret.ID()] == hook {
		return nil
	}
	if err := h.deinstrumentReturn(fn, ret.ID()); err != nil {
		return err
	}
	if err := fn.InsertBefore(ret.ID(), hook.markers); err != nil {
		return err
	}
	h.lastReturn[ret.ID()] = hook
	h.trackSite(fn, ret.ID(), ReturnSite)
	h.notifyInstalled(Event{Func: fn.ID(), Site: ret.ID(), Kind: ReturnSite})
	return nil
}

// Deinstrument removes every marker the engine installed into the function
// and clears the per-site hook references. Calling it on a function without
// installed hooks is a no-op.
func (h *Hooks) Deinstrument(fn *ir.Function) error {
	if err := h.deinstrumentEntry(fn); err != nil {
		return err
	}
	tracked := h.sites[fn.ID()]
	ids := make([]ir.StmtID, 0, len(tracked))
	for id := range tracked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		var err error
		switch tracked[id] {
		case CallSite:
			err = h.deinstrumentCall(fn, id)
		case ReturnSite:
			err = h.deinstrumentReturn(fn, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DeinstrumentAll deinstruments every function with any installed hook.
func (h *Hooks) DeinstrumentAll() error {
	ids := make([]ir.FuncID, 0, len(h.instrumented))
	for id := range h.instrumented {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := h.Deinstrument(h.instrumented[id]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) deinstrumentEntry(fn *ir.Function) error {
	hook := h.lastEntry[fn.ID()]
	if hook == nil {
		return nil
	}
	if err := fn.RemoveStatements(hook.MarkerIDs()); err != nil {
		return err
	}
	delete(h.lastEntry, fn.ID())
	h.maybeUntrack(fn.ID())
	h.notifyRemoved(Event{Func: fn.ID(), Kind: EntrySite})
	return nil
}

func (h *Hooks) deinstrumentCall(fn *ir.Function, site ir.StmtID) error {
	hook := h.lastCall[site]
	if hook == nil {
		return nil
	}
	if err := fn.RemoveStatements(hook.MarkerIDs()); err != nil {
		return err
	}
	delete(h.lastCall, site)
	h.untrackSite(fn.ID(), site)
	h.notifyRemoved(Event{Func: fn.ID(), Site: site, Kind: CallSite})
	return nil
}

func (h *Hooks) deinstrumentReturn(fn *ir.Function, site ir.StmtID) error {
	hook := h.lastReturn[site]
	if hook == nil {
		return nil
	}
	if len(hook.markers) > 0 {
		if err := fn.RemoveStatements(hook.MarkerIDs()); err != nil {
			return err
		}
	}
	delete(h.lastReturn, site)
	h.untrackSite(fn.ID(), site)
	h.notifyRemoved(Event{Func: fn.ID(), Site: site, Kind: ReturnSite})
	return nil
}

func (h *Hooks) trackSite(fn *ir.Function, site ir.StmtID, kind SiteKind) {
	h.instrumented[fn.ID()] = fn
	tracked, ok := h.sites[fn.ID()]
	if !ok {
		tracked = make(map[ir.StmtID]SiteKind)
		h.sites[fn.ID()] = tracked
	}
	tracked[site] = kind
}

func (h *Hooks) untrackSite(fn ir.FuncID, site ir.StmtID) {
	if tracked, ok := h.sites[fn]; ok {
		delete(tracked, site)
		if len(tracked) == 0 {
			delete(h.sites, fn)
		}
	}
	h.maybeUntrack(fn)
}

func (h *Hooks) maybeUntrack(fn ir.FuncID) {
	if h.lastEntry[fn] == nil && len(h.sites[fn]) == 0 {
		delete(h.instrumented, fn)
	}
}
