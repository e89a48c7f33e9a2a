package calling

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// ConventionID is the registry-issued identity of a Convention. It is the
// value that participates in hook cache keys; a convention is never compared
// by its contents.
type ConventionID uint32

// Definition describes a calling convention before it is registered. All
// fields are value types so definitions can be declared as literals or
// decoded from configuration files.
type Definition struct {
	Name          string
	ArgRegs       []x86asm.Reg
	RetReg        x86asm.Reg
	StackPointer  x86asm.Reg
	CalleeCleanup bool
	WordSize      int
	StackAlign    int
	ShadowSpace   int
}

// Validate checks the definition for the holes that make a convention
// unusable for instrumentation.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("convention has no name")
	}
	if d.StackPointer == 0 {
		return fmt.Errorf("convention %q has no stack pointer register", d.Name)
	}
	if d.WordSize <= 0 {
		return fmt.Errorf("convention %q has invalid word size %d", d.Name, d.WordSize)
	}
	seen := make(map[x86asm.Reg]bool, len(d.ArgRegs))
	for _, r := range d.ArgRegs {
		if r == 0 {
			return fmt.Errorf("convention %q has an invalid argument register", d.Name)
		}
		if seen[r] {
			return fmt.Errorf("convention %q lists argument register %v twice", d.Name, r)
		}
		seen[r] = true
	}
	return nil
}

// Convention is an immutable description of a calling convention: which
// registers carry arguments and the return value, and who cleans up the
// stack. Conventions are owned by the Conventions registry; everything else
// holds non-owning references and compares them by ID.
type Convention struct {
	id  ConventionID
	def Definition
}

// ID returns the registry-issued identity.
func (c *Convention) ID() ConventionID { return c.id }

// Name returns the convention's name, e.g. "cdecl".
func (c *Convention) Name() string { return c.def.Name }

// ArgRegs returns the registers carrying the first arguments, in argument
// order. Callers must not mutate the returned slice.
func (c *Convention) ArgRegs() []x86asm.Reg { return c.def.ArgRegs }

// RetReg returns the register carrying the return value, or zero.
func (c *Convention) RetReg() x86asm.Reg { return c.def.RetReg }

// StackPointer returns the stack pointer register.
func (c *Convention) StackPointer() x86asm.Reg { return c.def.StackPointer }

// CalleeCleanup reports whether the callee pops its own arguments.
func (c *Convention) CalleeCleanup() bool { return c.def.CalleeCleanup }

// WordSize returns the size of a stack argument slot in bytes.
func (c *Convention) WordSize() int { return c.def.WordSize }

// StackAlign returns the required stack alignment in bytes.
func (c *Convention) StackAlign() int { return c.def.StackAlign }

// ShadowSpace returns the bytes of caller-reserved spill space, e.g. 32 on
// Microsoft x64.
func (c *Convention) ShadowSpace() int { return c.def.ShadowSpace }

// Locations maps the first n argument positions to their locations under
// this convention: registers first, then consecutive stack slots.
func (c *Convention) Locations(n int) []Location {
	locs := make([]Location, 0, n)
	for i := 0; i < n; i++ {
		if i < len(c.def.ArgRegs) {
			locs = append(locs, RegArg(c.def.ArgRegs[i]))
			continue
		}
		off := int64(c.def.ShadowSpace) + int64(i-len(c.def.ArgRegs))*int64(c.def.WordSize)
		locs = append(locs, StackArg(off))
	}
	return locs
}

func (c *Convention) String() string {
	return fmt.Sprintf("%s#%d", c.def.Name, c.id)
}

// Builtin x86/amd64 definitions. Register assignments follow the usual ABI
// documents; these are starting points, binaries routinely carry custom
// conventions discovered by analysis.

// Cdecl is the x86 C convention: all arguments on the stack, caller cleanup.
func Cdecl() Definition {
	return Definition{
		Name:         "cdecl",
		RetReg:       x86asm.EAX,
		StackPointer: x86asm.ESP,
		WordSize:     4,
		StackAlign:   4,
	}
}

// Stdcall is the Win32 API convention: stack arguments, callee cleanup.
func Stdcall() Definition {
	d := Cdecl()
	d.Name = "stdcall"
	d.CalleeCleanup = true
	return d
}

// Fastcall is the Microsoft x86 fastcall convention: first two arguments in
// ECX and EDX, the rest on the stack, callee cleanup.
func Fastcall() Definition {
	return Definition{
		Name:          "fastcall",
		ArgRegs:       []x86asm.Reg{x86asm.ECX, x86asm.EDX},
		RetReg:        x86asm.EAX,
		StackPointer:  x86asm.ESP,
		CalleeCleanup: true,
		WordSize:      4,
		StackAlign:    4,
	}
}

// SysVAMD64 is the System V AMD64 convention used on Linux and macOS.
func SysVAMD64() Definition {
	return Definition{
		Name: "sysv-amd64",
		ArgRegs: []x86asm.Reg{
			x86asm.RDI, x86asm.RSI, x86asm.RDX, x86asm.RCX, x86asm.R8, x86asm.R9,
		},
		RetReg:       x86asm.RAX,
		StackPointer: x86asm.RSP,
		WordSize:     8,
		StackAlign:   16,
	}
}

// Win64 is the Microsoft x64 convention.
func Win64() Definition {
	return Definition{
		Name:         "win64",
		ArgRegs:      []x86asm.Reg{x86asm.RCX, x86asm.RDX, x86asm.R8, x86asm.R9},
		RetReg:       x86asm.RAX,
		StackPointer: x86asm.RSP,
		WordSize:     8,
		StackAlign:   16,
		ShadowSpace:  32,
	}
}

// Builtins returns every builtin definition, in a fixed order.
func Builtins() []Definition {
	return []Definition{Cdecl(), Stdcall(), Fastcall(), SysVAMD64(), Win64()}
}

// Conventions is the registry of calling conventions assigned to callees. It
// owns the Convention objects and issues their identities. The registry is
// mutated from outside the hooks engine: by the analysis when it recognizes a
// convention, and by the convention detector invoked through the engine's
// resolution bridge.
type Conventions struct {
	nextID   ConventionID
	byCallee map[CalleeID]*Convention
}

// NewConventions creates an empty registry.
func NewConventions() *Conventions {
	return &Conventions{
		byCallee: make(map[CalleeID]*Convention),
	}
}

// Register validates a definition and turns it into an owned Convention with
// a fresh identity. Registering the same definition twice yields two distinct
// conventions.
func (cs *Conventions) Register(def Definition) (*Convention, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	cs.nextID++
	return &Convention{id: cs.nextID, def: def}, nil
}

// Assign records that calls to the given callee follow conv.
func (cs *Conventions) Assign(id CalleeID, conv *Convention) {
	cs.byCallee[id] = conv
}

// Lookup returns the convention assigned to the callee, or nil.
func (cs *Conventions) Lookup(id CalleeID) *Convention {
	return cs.byCallee[id]
}
