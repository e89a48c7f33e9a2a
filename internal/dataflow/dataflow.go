// Package dataflow holds the results of dataflow analysis that the
// calling-convention layer consumes. Only the call-target resolution facade
// lives here; the fixpoint engine producing these results is a separate
// component.
package dataflow

import (
	"github.com/refract-dev/refract/internal/ir"
)

// Dataflow stores per-function dataflow results. For the instrumentation
// layer the interesting part is the resolved target address of indirect
// calls, which may appear or change between analysis passes.
type Dataflow struct {
	targets map[ir.StmtID]uint64
}

// New creates an empty dataflow result set.
func New() *Dataflow {
	return &Dataflow{
		targets: make(map[ir.StmtID]uint64),
	}
}

// SetResolvedTarget records the address an indirect call was resolved to.
func (d *Dataflow) SetResolvedTarget(site ir.StmtID, addr uint64) {
	d.targets[site] = addr
}

// ClearResolvedTarget forgets the resolved target of a call site.
func (d *Dataflow) ClearResolvedTarget(site ir.StmtID) {
	delete(d.targets, site)
}

// ResolvedTarget returns the resolved target address of a call site, if any.
// Safe to call on a nil receiver, which reports nothing resolved.
func (d *Dataflow) ResolvedTarget(site ir.StmtID) (uint64, bool) {
	if d == nil {
		return 0, false
	}
	addr, ok := d.targets[site]
	return addr, ok
}

// Dataflows is the per-unit collection of dataflow results, one per
// function.
type Dataflows struct {
	byFunc map[ir.FuncID]*Dataflow
}

// NewDataflows creates an empty collection.
func NewDataflows() *Dataflows {
	return &Dataflows{
		byFunc: make(map[ir.FuncID]*Dataflow),
	}
}

// At returns the dataflow results for a function, creating an empty set on
// first use.
func (ds *Dataflows) At(fn ir.FuncID) *Dataflow {
	d, ok := ds.byFunc[fn]
	if !ok {
		d = New()
		ds.byFunc[fn] = d
	}
	return d
}
