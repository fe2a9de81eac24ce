// Package costmodel tracks the bookkeeping the scheduler needs to decide
// whether a vectorization attempt paid for itself: every pack folds several
// scalar ops into one vector op (a saving), but every expand/pack/unpack/
// signext the transformer has to insert to glue mismatched packs together
// costs something too. This is the Go rendering of spec.md §6's CostModel
// collaborator, grounded on the external-interface shape named there; the
// PyPy cost model it mirrors was not present in original_source/, so the
// concrete weights below are this module's own heuristic (see SPEC_FULL.md
// §11): count instructions saved minus instructions inserted, and call it
// profitable if that is positive.
package costmodel

import "github.com/tracevec/simdjit/internal/vectorizer/ir"

// CostModel is the interface schedule.State records savings and
// overheads against, and consults once at the end to decide whether to
// keep the vectorized trace or fall back to the scalar one.
type CostModel interface {
	// RecordPackSavings is called once per emitted pack with its member
	// count: numops scalar operations collapsed into a single vector op.
	RecordPackSavings(pack *ir.Pack, numops int)

	// RecordCastInt is called whenever the transformer inserts a
	// sign-extend/cast glue op between two packs of different element
	// sizes.
	RecordCastInt(fromSize, toSize, count int)

	// RecordVectorUnpack/RecordVectorPack are called whenever the
	// transformer inserts VEC_UNPACK/VEC_PACK glue to reconcile a pack
	// argument coming from, or feeding into, a different lane layout.
	RecordVectorUnpack(arg ir.ValueID, index, count int)
	RecordVectorPack(arg ir.ValueID, index, count int)

	// Profitable reports whether the accumulated savings outweigh the
	// accumulated overhead. For Default, calling it before any Record*
	// call reports false (no savings to outweigh the zero overhead).
	Profitable() bool
}

// Default is the concrete CostModel this module ships: a flat per-op
// counter model, documented in SPEC_FULL.md §11 as a simple stand-in for
// PyPy's (unretrieved) real cost model rather than an attempt to replicate
// unknown internals.
type Default struct {
	savings  int
	overhead int
}

// NewDefault returns a Default cost model with a clean slate.
func NewDefault() *Default { return &Default{} }

func (c *Default) RecordPackSavings(pack *ir.Pack, numops int) {
	if numops > 1 {
		c.savings += numops - 1
	}
}

func (c *Default) RecordCastInt(fromSize, toSize, count int) {
	c.overhead++
}

func (c *Default) RecordVectorUnpack(arg ir.ValueID, index, count int) {
	c.overhead++
}

func (c *Default) RecordVectorPack(arg ir.ValueID, index, count int) {
	c.overhead++
}

func (c *Default) Profitable() bool {
	return c.savings > c.overhead
}

// Savings and Overhead expose the running totals for tests and debug
// logging.
func (c *Default) Savings() int  { return c.savings }
func (c *Default) Overhead() int { return c.overhead }
