// Package config loads convention-definition files. Binaries routinely use
// conventions beyond the builtin ABI set (compiler-specific register
// conventions, syscall shims), so analysts can describe them in YAML and load
// them alongside the builtins.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
	"golang.org/x/arch/x86/x86asm"
	"gopkg.in/yaml.v3"

	"github.com/refract-dev/refract/internal/calling"
	"github.com/refract-dev/refract/internal/errors"
)

// File is the top-level shape of a convention-definition file.
type File struct {
	Conventions []ConventionSpec `yaml:"conventions"`
}

// ConventionSpec is one convention as written in YAML. Register names are
// case-insensitive x86/amd64 names ("eax", "rdi", ...).
type ConventionSpec struct {
	Name          string   `yaml:"name"`
	Args          []string `yaml:"args"`
	Ret           string   `yaml:"ret"`
	StackPointer  string   `yaml:"stack_pointer"`
	CalleeCleanup bool     `yaml:"callee_cleanup"`
	WordSize      int      `yaml:"word_size"`
	StackAlign    int      `yaml:"stack_align"`
	ShadowSpace   int      `yaml:"shadow_space"`
}

// fingerprint hashes the parts of a spec that determine its behavior, so two
// entries differing only in name are still reported as duplicates.
func (s ConventionSpec) fingerprint() uint64 {
	var b strings.Builder
	for _, a := range s.Args {
		b.WriteString(strings.ToLower(a))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "|%s|%s|%t|%d|%d|%d",
		strings.ToLower(s.Ret), strings.ToLower(s.StackPointer),
		s.CalleeCleanup, s.WordSize, s.StackAlign, s.ShadowSpace)
	return xxh3.HashString(b.String())
}

// Definition converts the spec into a registerable definition.
func (s ConventionSpec) Definition() (calling.Definition, error) {
	def := calling.Definition{
		Name:          s.Name,
		CalleeCleanup: s.CalleeCleanup,
		WordSize:      s.WordSize,
		StackAlign:    s.StackAlign,
		ShadowSpace:   s.ShadowSpace,
	}
	for _, name := range s.Args {
		reg, err := parseRegister(name)
		if err != nil {
			return calling.Definition{}, fmt.Errorf("convention %q: %w", s.Name, err)
		}
		def.ArgRegs = append(def.ArgRegs, reg)
	}
	if s.Ret != "" {
		reg, err := parseRegister(s.Ret)
		if err != nil {
			return calling.Definition{}, fmt.Errorf("convention %q: %w", s.Name, err)
		}
		def.RetReg = reg
	}
	if s.StackPointer != "" {
		reg, err := parseRegister(s.StackPointer)
		if err != nil {
			return calling.Definition{}, fmt.Errorf("convention %q: %w", s.Name, err)
		}
		def.StackPointer = reg
	}
	if err := def.Validate(); err != nil {
		return calling.Definition{}, err
	}
	return def, nil
}

// LoadDefinitions reads a convention-definition file and converts every
// entry. Duplicate names and behaviorally identical duplicate entries are
// rejected.
func LoadDefinitions(logger zerolog.Logger, path string) ([]calling.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open convention file: %w", err)
	}
	defer errors.DeferClose(logger, f, "failed to close convention file")

	var file File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Conventions) == 0 {
		return nil, fmt.Errorf("%s defines no conventions", path)
	}

	names := make(map[string]bool, len(file.Conventions))
	prints := make(map[uint64]string, len(file.Conventions))
	defs := make([]calling.Definition, 0, len(file.Conventions))
	for _, spec := range file.Conventions {
		if names[spec.Name] {
			return nil, fmt.Errorf("%s: duplicate convention name %q", path, spec.Name)
		}
		names[spec.Name] = true
		fp := spec.fingerprint()
		if prev, ok := prints[fp]; ok {
			return nil, fmt.Errorf("%s: convention %q duplicates %q", path, spec.Name, prev)
		}
		prints[fp] = spec.Name

		def, err := spec.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	logger.Debug().
		Str("path", path).
		Int("conventions", len(defs)).
		Msg("loaded convention definitions")
	return defs, nil
}

// registerNames covers the registers a convention definition may reference.
var registerNames = func() map[string]x86asm.Reg {
	regs := []x86asm.Reg{
		x86asm.AL, x86asm.CL, x86asm.DL, x86asm.BL,
		x86asm.AX, x86asm.CX, x86asm.DX, x86asm.BX, x86asm.SP, x86asm.BP, x86asm.SI, x86asm.DI,
		x86asm.EAX, x86asm.ECX, x86asm.EDX, x86asm.EBX,
		x86asm.ESP, x86asm.EBP, x86asm.ESI, x86asm.EDI,
		x86asm.RAX, x86asm.RCX, x86asm.RDX, x86asm.RBX,
		x86asm.RSP, x86asm.RBP, x86asm.RSI, x86asm.RDI,
		x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11,
		x86asm.R12, x86asm.R13, x86asm.R14, x86asm.R15,
	}
	m := make(map[string]x86asm.Reg, len(regs))
	for _, r := range regs {
		m[strings.ToLower(r.String())] = r
	}
	return m
}()

func parseRegister(name string) (x86asm.Reg, error) {
	if reg, ok := registerNames[strings.ToLower(name)]; ok {
		return reg, nil
	}
	return 0, fmt.Errorf("unknown register %q", name)
}

// KnownRegisters returns the register names accepted in definition files,
// sorted.
func KnownRegisters() []string {
	names := make([]string, 0, len(registerNames))
	for name := range registerNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
