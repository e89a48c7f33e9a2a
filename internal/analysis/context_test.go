package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/refract-dev/refract/internal/calling"
	"github.com/refract-dev/refract/internal/ir"
	"github.com/refract-dev/refract/internal/testutil"
)

func addFunction(t *testing.T, c *Context, addr uint64, params int) *ir.Function {
	t.Helper()
	fn := c.Program().NewFunction("fn", addr)
	require.NoError(t, fn.Append(fn.Entry(), c.Program().NewAssign(x86asm.RBX), c.Program().NewReturn()))

	conv, err := c.Conventions().Register(calling.SysVAMD64())
	require.NoError(t, err)
	callee := calling.CalleeOfFunction(fn)
	c.Conventions().Assign(callee, conv)
	c.Signatures().SetFunctionSignature(callee, c.Signatures().NewForConvention(conv, params))
	return fn
}

func TestContextUnitIDsDistinct(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	a := NewContext(logger)
	b := NewContext(logger)
	assert.NotEqual(t, a.UnitID(), b.UnitID())
}

func TestInstrumentAll(t *testing.T) {
	c := NewContext(testutil.NewTestLogger(t))
	f1 := addFunction(t, c, 0x1000, 1)
	f2 := addFunction(t, c, 0x2000, 2)

	require.NoError(t, c.InstrumentAll(context.Background()))
	assert.NotNil(t, c.Hooks().EntryHookFor(f1.ID()))
	assert.NotNil(t, c.Hooks().EntryHookFor(f2.ID()))
}

func TestInstrumentAllCancelledUpFront(t *testing.T) {
	c := NewContext(testutil.NewTestLogger(t))
	fn := addFunction(t, c, 0x1000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.InstrumentAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, c.Hooks().EntryHookFor(fn.ID()))
}

type cancellingListener struct {
	cancel context.CancelFunc
}

func (l *cancellingListener) HookInstalled(calling.Event) { l.cancel() }
func (l *cancellingListener) HookRemoved(calling.Event)   {}

func TestInstrumentAllCancelsBetweenFunctions(t *testing.T) {
	c := NewContext(testutil.NewTestLogger(t))
	f1 := addFunction(t, c, 0x1000, 1)
	f2 := addFunction(t, c, 0x2000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Hooks().Subscribe(&cancellingListener{cancel: cancel})

	err := c.InstrumentAll(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The first function was fully instrumented before the cancellation
	// was observed; the second was never started.
	assert.NotNil(t, c.Hooks().EntryHookFor(f1.ID()))
	assert.Nil(t, c.Hooks().EntryHookFor(f2.ID()))
}
