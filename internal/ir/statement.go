package ir

import "golang.org/x/arch/x86/x86asm"

// FuncID is an opaque handle to a function, issued by its owning Program.
type FuncID uint32

// StmtID is an opaque handle to a statement, issued by its owning Program.
// The zero value is never issued and means "no statement".
type StmtID uint64

// StmtKind discriminates statement types without a type switch.
type StmtKind int

const (
	KindAssign StmtKind = iota
	KindCall
	KindReturn
	KindMarker
)

// Statement is a single IR statement. Statements are created detached through
// the Program arena and acquire an owner when inserted into a function body.
type Statement interface {
	ID() StmtID
	Kind() StmtKind
	// Owner reports the function the statement currently belongs to,
	// or zero if the statement is detached.
	Owner() FuncID

	setOwner(FuncID)
}

type stmtBase struct {
	id    StmtID
	owner FuncID
}

func (s *stmtBase) ID() StmtID         { return s.id }
func (s *stmtBase) Owner() FuncID      { return s.owner }
func (s *stmtBase) setOwner(fn FuncID) { s.owner = fn }

// Assign is a computation statement. The calling-convention layer treats it
// as opaque; it exists so function bodies contain ordinary statements between
// the call and return sites the layer cares about.
type Assign struct {
	stmtBase
	Dst x86asm.Reg
}

func (*Assign) Kind() StmtKind { return KindAssign }

// Call transfers control to another function. Direct calls carry the target
// address recovered from the instruction; indirect calls carry none and rely
// on dataflow analysis to resolve a concrete target.
type Call struct {
	stmtBase
	Addr     uint64
	Indirect bool
}

func (*Call) Kind() StmtKind { return KindCall }

// Return transfers control back to the caller.
type Return struct {
	stmtBase
}

func (*Return) Kind() StmtKind { return KindReturn }

// MarkerEffect is the convention-specific effect a Marker stands for.
type MarkerEffect int

const (
	// ReadRegister marks a register as read at this point.
	ReadRegister MarkerEffect = iota
	// DefineRegister marks a register as defined at this point.
	DefineRegister
	// ReadStackSlot marks the stack slot at offset Amount from the stack
	// pointer as read at this point.
	ReadStackSlot
	// AdjustStack marks a stack-pointer adjustment of Amount bytes.
	AdjustStack
)

func (e MarkerEffect) String() string {
	switch e {
	case ReadRegister:
		return "read"
	case DefineRegister:
		return "define"
	case ReadStackSlot:
		return "read-stack"
	case AdjustStack:
		return "adjust-stack"
	default:
		return "unknown"
	}
}

// Marker is a hook marker statement. Markers are inserted and removed by the
// calling-convention layer and interpreted by the dataflow analyzer to
// materialize convention effects; they have no meaning of their own in the IR.
type Marker struct {
	stmtBase
	Effect MarkerEffect
	Reg    x86asm.Reg
	Amount int64
}

func (*Marker) Kind() StmtKind { return KindMarker }
