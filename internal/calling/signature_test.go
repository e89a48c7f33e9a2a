package calling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRefinementChangesIdentity(t *testing.T) {
	cs := NewConventions()
	conv, err := cs.Register(SysVAMD64())
	require.NoError(t, err)

	ss := NewSignatures()
	callee := EntryCallee(0x1000)

	two := ss.NewForConvention(conv, 2)
	ss.SetFunctionSignature(callee, two)
	require.Same(t, two, ss.FunctionSignature(callee))

	three := ss.NewForConvention(conv, 3)
	ss.SetFunctionSignature(callee, three)
	assert.NotEqual(t, two.ID(), three.ID())
	assert.Same(t, three, ss.FunctionSignature(callee))
	assert.Len(t, three.Args(), 3)

	ret, ok := three.ReturnValue()
	require.True(t, ok)
	assert.Equal(t, conv.RetReg(), ret.Reg)
}

func TestSignatureWithoutReturnValue(t *testing.T) {
	ss := NewSignatures()
	sig := ss.New(nil, nil)
	_, ok := sig.ReturnValue()
	assert.False(t, ok)
	assert.Empty(t, sig.Args())
}

func TestCalleeIdentities(t *testing.T) {
	a := EntryCallee(0x1000)
	b := EntryCallee(0x1000)
	c := EntryCallee(0x1001)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, EntryCallee(5), CallSiteCallee(5))
	assert.True(t, a.Valid())
	assert.False(t, CalleeID{}.Valid())
}
