package calling

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/refract-dev/refract/internal/ir"
)

// SigID is the registry-issued identity of a Signature. Refining a signature
// (discovering another parameter) registers a new signature with a new SigID,
// which is what invalidates hook cache entries built against the old one.
type SigID uint64

// Location is where a single argument or return value lives: a register, or
// a stack slot at a fixed offset from the stack pointer.
type Location struct {
	Reg     x86asm.Reg
	Offset  int64
	OnStack bool
}

// RegArg places a value in a register.
func RegArg(r x86asm.Reg) Location { return Location{Reg: r} }

// StackArg places a value in the stack slot at the given offset.
func StackArg(offset int64) Location { return Location{Offset: offset, OnStack: true} }

func (l Location) String() string {
	if l.OnStack {
		return fmt.Sprintf("stack+%d", l.Offset)
	}
	return l.Reg.String()
}

// Signature is an immutable description of the parameters and return
// location in effect at one site. Signatures are owned by the Signatures
// registry; the hooks engine holds non-owning references and compares them
// by ID.
type Signature struct {
	id   SigID
	args []Location
	ret  Location
	has  bool
}

// ID returns the registry-issued identity.
func (s *Signature) ID() SigID { return s.id }

// Args returns the argument locations in argument order. Callers must not
// mutate the returned slice.
func (s *Signature) Args() []Location { return s.args }

// ReturnValue returns the return location and whether the signature has one.
func (s *Signature) ReturnValue() (Location, bool) { return s.ret, s.has }

// Signatures is the registry of signatures discovered for functions and call
// sites. It is populated by the outer analysis; the hooks engine only reads
// from it.
type Signatures struct {
	nextID   SigID
	byCallee map[CalleeID]*Signature
	bySite   map[ir.StmtID]*Signature
}

// NewSignatures creates an empty registry.
func NewSignatures() *Signatures {
	return &Signatures{
		byCallee: make(map[CalleeID]*Signature),
		bySite:   make(map[ir.StmtID]*Signature),
	}
}

// New registers a signature with the given argument locations and optional
// return location, issuing a fresh identity.
func (ss *Signatures) New(args []Location, ret *Location) *Signature {
	ss.nextID++
	sig := &Signature{id: ss.nextID, args: append([]Location(nil), args...)}
	if ret != nil {
		sig.ret = *ret
		sig.has = true
	}
	return sig
}

// NewForConvention registers a signature with n arguments laid out per the
// convention, returning in the convention's return register.
func (ss *Signatures) NewForConvention(conv *Convention, n int) *Signature {
	var ret *Location
	if conv.RetReg() != 0 {
		r := RegArg(conv.RetReg())
		ret = &r
	}
	return ss.New(conv.Locations(n), ret)
}

// SetFunctionSignature records the signature of the function identified by
// the callee id.
func (ss *Signatures) SetFunctionSignature(id CalleeID, sig *Signature) {
	ss.byCallee[id] = sig
}

// FunctionSignature returns the signature of the function identified by the
// callee id, or nil.
func (ss *Signatures) FunctionSignature(id CalleeID) *Signature {
	return ss.byCallee[id]
}

// SetCallSignature records the signature in effect at a particular call site.
func (ss *Signatures) SetCallSignature(site ir.StmtID, sig *Signature) {
	ss.bySite[site] = sig
}

// CallSignature returns the signature in effect at a call site, or nil.
func (ss *Signatures) CallSignature(site ir.StmtID) *Signature {
	return ss.bySite[site]
}
