package dataflow

import (
	"testing"

	"github.com/refract-dev/refract/internal/ir"
)

func TestResolvedTarget(t *testing.T) {
	d := New()
	site := ir.StmtID(7)

	if _, ok := d.ResolvedTarget(site); ok {
		t.Fatal("empty dataflow reports a resolved target")
	}

	d.SetResolvedTarget(site, 0x2000)
	addr, ok := d.ResolvedTarget(site)
	if !ok || addr != 0x2000 {
		t.Fatalf("ResolvedTarget = (%#x, %t), want (0x2000, true)", addr, ok)
	}

	d.ClearResolvedTarget(site)
	if _, ok := d.ResolvedTarget(site); ok {
		t.Fatal("cleared target still resolved")
	}
}

func TestNilReceiverResolvesNothing(t *testing.T) {
	var d *Dataflow
	if _, ok := d.ResolvedTarget(1); ok {
		t.Fatal("nil dataflow reports a resolved target")
	}
}

func TestDataflowsAt(t *testing.T) {
	ds := NewDataflows()
	a := ds.At(1)
	if a == nil {
		t.Fatal("At returned nil")
	}
	if ds.At(1) != a {
		t.Fatal("At is not stable per function")
	}
	if ds.At(2) == a {
		t.Fatal("functions share a dataflow")
	}
}
