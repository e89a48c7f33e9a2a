package calling

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestBuiltinDefinitionsValidate(t *testing.T) {
	for _, def := range Builtins() {
		if err := def.Validate(); err != nil {
			t.Errorf("builtin %q does not validate: %v", def.Name, err)
		}
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{
			name: "valid",
			def:  Fastcall(),
		},
		{
			name:    "missing name",
			def:     Definition{StackPointer: x86asm.ESP, WordSize: 4},
			wantErr: true,
		},
		{
			name:    "missing stack pointer",
			def:     Definition{Name: "x", WordSize: 4},
			wantErr: true,
		},
		{
			name:    "zero word size",
			def:     Definition{Name: "x", StackPointer: x86asm.ESP},
			wantErr: true,
		},
		{
			name: "duplicate argument register",
			def: Definition{
				Name:         "x",
				ArgRegs:      []x86asm.Reg{x86asm.ECX, x86asm.ECX},
				StackPointer: x86asm.ESP,
				WordSize:     4,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterIssuesDistinctIdentities(t *testing.T) {
	cs := NewConventions()
	a, err := cs.Register(Cdecl())
	if err != nil {
		t.Fatal(err)
	}
	b, err := cs.Register(Cdecl())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Errorf("two registrations share identity %d", a.ID())
	}
}

func TestLocations(t *testing.T) {
	cs := NewConventions()
	conv, err := cs.Register(Win64())
	if err != nil {
		t.Fatal(err)
	}

	locs := conv.Locations(6)
	if len(locs) != 6 {
		t.Fatalf("Locations(6) returned %d locations", len(locs))
	}
	want := []x86asm.Reg{x86asm.RCX, x86asm.RDX, x86asm.R8, x86asm.R9}
	for i, reg := range want {
		if locs[i].OnStack || locs[i].Reg != reg {
			t.Errorf("arg %d = %v, want register %v", i, locs[i], reg)
		}
	}
	// Fifth and sixth arguments land above the 32-byte shadow space.
	if !locs[4].OnStack || locs[4].Offset != 32 {
		t.Errorf("arg 4 = %v, want stack+32", locs[4])
	}
	if !locs[5].OnStack || locs[5].Offset != 40 {
		t.Errorf("arg 5 = %v, want stack+40", locs[5])
	}
}

func TestAssignLookup(t *testing.T) {
	cs := NewConventions()
	conv, err := cs.Register(Stdcall())
	if err != nil {
		t.Fatal(err)
	}

	id := EntryCallee(0x4010)
	if got := cs.Lookup(id); got != nil {
		t.Fatalf("Lookup before Assign = %v", got)
	}
	cs.Assign(id, conv)
	if got := cs.Lookup(id); got != conv {
		t.Fatalf("Lookup after Assign = %v, want %v", got, conv)
	}
	if got := cs.Lookup(EntryCallee(0x4011)); got != nil {
		t.Fatalf("Lookup of other callee = %v", got)
	}
}
