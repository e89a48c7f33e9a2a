package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/refract-dev/refract/internal/testutil"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conventions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefinitions(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	path := writeFile(t, `
conventions:
  - name: watcom
    args: [eax, edx, ebx, ecx]
    ret: eax
    stack_pointer: esp
    callee_cleanup: true
    word_size: 4
    stack_align: 4
  - name: syscall-amd64
    args: [rdi, rsi, rdx, r10, r8, r9]
    ret: rax
    stack_pointer: rsp
    word_size: 8
    stack_align: 8
`)

	defs, err := LoadDefinitions(logger, path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	watcom := defs[0]
	assert.Equal(t, "watcom", watcom.Name)
	assert.Equal(t, []x86asm.Reg{x86asm.EAX, x86asm.EDX, x86asm.EBX, x86asm.ECX}, watcom.ArgRegs)
	assert.Equal(t, x86asm.EAX, watcom.RetReg)
	assert.True(t, watcom.CalleeCleanup)

	sys := defs[1]
	assert.Equal(t, x86asm.R10, sys.ArgRegs[3])
	assert.False(t, sys.CalleeCleanup)
}

func TestLoadDefinitionsErrors(t *testing.T) {
	logger := testutil.NewTestLogger(t)

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "empty file",
			content: "conventions: []\n",
		},
		{
			name: "unknown register",
			content: `
conventions:
  - name: bad
    args: [xmm9000]
    stack_pointer: esp
    word_size: 4
`,
		},
		{
			name: "duplicate name",
			content: `
conventions:
  - name: dup
    args: [ecx]
    stack_pointer: esp
    word_size: 4
  - name: dup
    args: [edx]
    stack_pointer: esp
    word_size: 4
`,
		},
		{
			name: "behavioral duplicate",
			content: `
conventions:
  - name: one
    args: [ecx, edx]
    ret: eax
    stack_pointer: esp
    word_size: 4
  - name: two
    args: [ecx, edx]
    ret: eax
    stack_pointer: esp
    word_size: 4
`,
		},
		{
			name: "unknown field",
			content: `
conventions:
  - name: x
    stack_pointer: esp
    word_size: 4
    frobnicate: yes
`,
		},
		{
			name: "missing stack pointer",
			content: `
conventions:
  - name: x
    word_size: 4
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDefinitions(logger, writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadDefinitionsMissingFile(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	_, err := LoadDefinitions(logger, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestKnownRegistersSorted(t *testing.T) {
	names := KnownRegisters()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Contains(t, names, "eax")
	assert.Contains(t, names, "r15")
}
