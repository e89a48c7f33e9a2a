package ir

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Program is the arena owning every function and statement of one
// decompilation unit. It issues all FuncID and StmtID handles.
type Program struct {
	nextFunc FuncID
	nextStmt StmtID
	funcs    map[FuncID]*Function
	order    []FuncID
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{
		funcs: make(map[FuncID]*Function),
	}
}

// NewFunction creates a function with a single empty entry block and adds it
// to the program.
func (p *Program) NewFunction(name string, entryAddr uint64) *Function {
	p.nextFunc++
	fn := &Function{
		id:      p.nextFunc,
		name:    name,
		entry:   entryAddr,
		program: p,
		index:   make(map[StmtID]*BasicBlock),
	}
	fn.NewBlock()
	p.funcs[fn.id] = fn
	p.order = append(p.order, fn.id)
	return fn
}

// Function returns the function with the given handle, or nil.
func (p *Program) Function(id FuncID) *Function {
	return p.funcs[id]
}

// Functions returns all functions in creation (program) order.
func (p *Program) Functions() []*Function {
	fns := make([]*Function, 0, len(p.order))
	for _, id := range p.order {
		fns = append(fns, p.funcs[id])
	}
	return fns
}

func (p *Program) newStmtID() StmtID {
	p.nextStmt++
	return p.nextStmt
}

// NewAssign creates a detached assignment statement.
func (p *Program) NewAssign(dst x86asm.Reg) *Assign {
	return &Assign{stmtBase: stmtBase{id: p.newStmtID()}, Dst: dst}
}

// NewDirectCall creates a detached call statement with a known target address.
func (p *Program) NewDirectCall(addr uint64) *Call {
	return &Call{stmtBase: stmtBase{id: p.newStmtID()}, Addr: addr}
}

// NewIndirectCall creates a detached call statement with an unknown target.
func (p *Program) NewIndirectCall() *Call {
	return &Call{stmtBase: stmtBase{id: p.newStmtID()}, Indirect: true}
}

// NewReturn creates a detached return statement.
func (p *Program) NewReturn() *Return {
	return &Return{stmtBase: stmtBase{id: p.newStmtID()}}
}

// NewRegisterMarker creates a detached register-effect marker.
func (p *Program) NewRegisterMarker(effect MarkerEffect, reg x86asm.Reg) *Marker {
	return &Marker{stmtBase: stmtBase{id: p.newStmtID()}, Effect: effect, Reg: reg}
}

// NewStackSlotMarker creates a detached marker reading the stack slot at the
// given offset from the stack pointer.
func (p *Program) NewStackSlotMarker(offset int64) *Marker {
	return &Marker{stmtBase: stmtBase{id: p.newStmtID()}, Effect: ReadStackSlot, Amount: offset}
}

// NewStackMarker creates a detached stack-adjustment marker.
func (p *Program) NewStackMarker(amount int64) *Marker {
	return &Marker{stmtBase: stmtBase{id: p.newStmtID()}, Effect: AdjustStack, Amount: amount}
}

// Function is a single function's body: an ordered list of basic blocks, the
// first of which is the entry block. Block and statement order is program
// order and is the traversal order used by instrumentation.
type Function struct {
	id      FuncID
	name    string
	entry   uint64
	program *Program
	blocks  []*BasicBlock
	index   map[StmtID]*BasicBlock
}

// ID returns the function's handle.
func (f *Function) ID() FuncID { return f.id }

// Name returns the function's (possibly synthetic) name.
func (f *Function) Name() string { return f.name }

// EntryAddr returns the address of the function's entry point.
func (f *Function) EntryAddr() uint64 { return f.entry }

// Program returns the owning arena.
func (f *Function) Program() *Program { return f.program }

// NewBlock appends a new empty basic block to the function.
func (f *Function) NewBlock() *BasicBlock {
	b := &BasicBlock{fn: f}
	f.blocks = append(f.blocks, b)
	return b
}

// Blocks returns the function's basic blocks in program order.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the function's entry block.
func (f *Function) Entry() *BasicBlock { return f.blocks[0] }

// Contains reports whether the statement is currently part of this function's
// body.
func (f *Function) Contains(id StmtID) bool {
	_, ok := f.index[id]
	return ok
}

// Statement returns the statement with the given handle if it is part of this
// function's body, or nil.
func (f *Function) Statement(id StmtID) Statement {
	b, ok := f.index[id]
	if !ok {
		return nil
	}
	for _, s := range b.stmts {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// Walk visits every statement in program order until the visitor returns
// false.
func (f *Function) Walk(visit func(Statement) bool) {
	for _, b := range f.blocks {
		for _, s := range b.stmts {
			if !visit(s) {
				return
			}
		}
	}
}

func (f *Function) attach(b *BasicBlock, stmts []Statement) error {
	for _, s := range stmts {
		if owner := s.Owner(); owner != 0 {
			return fmt.Errorf("statement %d already attached to function %d", s.ID(), owner)
		}
	}
	for _, s := range stmts {
		s.setOwner(f.id)
		f.index[s.ID()] = b
	}
	return nil
}

// Append adds statements to the end of a block. It is the primary way of
// building function bodies.
func (f *Function) Append(b *BasicBlock, stmts ...Statement) error {
	if b.fn != f {
		return fmt.Errorf("block does not belong to function %d", f.id)
	}
	if err := f.attach(b, stmts); err != nil {
		return err
	}
	b.stmts = append(b.stmts, stmts...)
	return nil
}

// InsertAtEntry inserts statements at the very beginning of the entry block,
// preserving their relative order.
func (f *Function) InsertAtEntry(stmts []Statement) error {
	b := f.Entry()
	if err := f.attach(b, stmts); err != nil {
		return err
	}
	b.stmts = append(append(make([]Statement, 0, len(b.stmts)+len(stmts)), stmts...), b.stmts...)
	return nil
}

// InsertBefore inserts statements immediately before the anchor statement,
// preserving their relative order and the order of all surrounding
// statements.
func (f *Function) InsertBefore(anchor StmtID, stmts []Statement) error {
	return f.insertAt(anchor, stmts, 0)
}

// InsertAfter inserts statements immediately after the anchor statement,
// preserving their relative order and the order of all surrounding
// statements.
func (f *Function) InsertAfter(anchor StmtID, stmts []Statement) error {
	return f.insertAt(anchor, stmts, 1)
}

func (f *Function) insertAt(anchor StmtID, stmts []Statement, offset int) error {
	b, ok := f.index[anchor]
	if !ok {
		return fmt.Errorf("anchor statement %d not in function %d", anchor, f.id)
	}
	pos := -1
	for i, s := range b.stmts {
		if s.ID() == anchor {
			pos = i + offset
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("anchor statement %d missing from block index", anchor)
	}
	if err := f.attach(b, stmts); err != nil {
		return err
	}
	out := make([]Statement, 0, len(b.stmts)+len(stmts))
	out = append(out, b.stmts[:pos]...)
	out = append(out, stmts...)
	out = append(out, b.stmts[pos:]...)
	b.stmts = out
	return nil
}

// RemoveStatements removes the given statements from the function body.
// Removal is all-or-nothing: if any handle is not part of this function, no
// statement is removed and an error is returned. Removed statements become
// detached and may be re-inserted later.
func (f *Function) RemoveStatements(ids []StmtID) error {
	for _, id := range ids {
		if _, ok := f.index[id]; !ok {
			return fmt.Errorf("statement %d not in function %d", id, f.id)
		}
	}
	remove := make(map[StmtID]bool, len(ids))
	blocks := make(map[*BasicBlock]bool)
	for _, id := range ids {
		remove[id] = true
		blocks[f.index[id]] = true
	}
	for b := range blocks {
		kept := b.stmts[:0]
		for _, s := range b.stmts {
			if remove[s.ID()] {
				s.setOwner(0)
				delete(f.index, s.ID())
				continue
			}
			kept = append(kept, s)
		}
		b.stmts = kept
	}
	return nil
}

// BasicBlock is an ordered sequence of statements.
type BasicBlock struct {
	fn    *Function
	stmts []Statement
}

// Statements returns the block's statements in program order. The returned
// slice is the block's backing storage; callers must not mutate it.
func (b *BasicBlock) Statements() []Statement { return b.stmts }
