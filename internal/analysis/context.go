// Package analysis bundles the per-unit state produced and consumed during
// decompilation: the IR program, the convention and signature registries,
// dataflow results, and the instrumentation engine wired over them.
package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/refract-dev/refract/internal/calling"
	"github.com/refract-dev/refract/internal/dataflow"
	"github.com/refract-dev/refract/internal/ir"
)

// Context stores everything one decompilation unit needs across analysis
// passes. It is confined to a single goroutine; the fixpoint driver owns it.
type Context struct {
	unitID      uuid.UUID
	logger      zerolog.Logger
	program     *ir.Program
	conventions *calling.Conventions
	signatures  *calling.Signatures
	dataflows   *dataflow.Dataflows
	hooks       *calling.Hooks
}

// NewContext creates a context with empty registries and a fresh unit id.
func NewContext(logger zerolog.Logger) *Context {
	id := uuid.New()
	l := logger.With().Str("unit", id.String()).Logger()
	conventions := calling.NewConventions()
	signatures := calling.NewSignatures()
	return &Context{
		unitID:      id,
		logger:      l,
		program:     ir.NewProgram(),
		conventions: conventions,
		signatures:  signatures,
		dataflows:   dataflow.NewDataflows(),
		hooks:       calling.NewHooks(conventions, signatures, l),
	}
}

// UnitID returns the unit's identifier, used to correlate log lines across
// passes.
func (c *Context) UnitID() uuid.UUID { return c.unitID }

// Program returns the unit's IR program.
func (c *Context) Program() *ir.Program { return c.program }

// SetProgram replaces the unit's IR program, e.g. after control-flow
// recovery rebuilt it. Hooks installed into the previous program must be
// deinstrumented first.
func (c *Context) SetProgram(p *ir.Program) { c.program = p }

// Conventions returns the unit's convention registry.
func (c *Context) Conventions() *calling.Conventions { return c.conventions }

// Signatures returns the unit's signature registry.
func (c *Context) Signatures() *calling.Signatures { return c.signatures }

// Dataflows returns the unit's dataflow results.
func (c *Context) Dataflows() *dataflow.Dataflows { return c.dataflows }

// Hooks returns the unit's instrumentation engine.
func (c *Context) Hooks() *calling.Hooks { return c.hooks }

// InstrumentAll instruments every function of the program in program order.
// Cancellation is checked between functions, never mid-function, so a
// cancelled pass leaves every function either fully re-instrumented or
// untouched by this pass.
func (c *Context) InstrumentAll(ctx context.Context) error {
	for _, fn := range c.program.Functions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.hooks.Instrument(fn, c.dataflows.At(fn.ID())); err != nil {
			return fmt.Errorf("instrument %s: %w", fn.Name(), err)
		}
	}
	return nil
}
