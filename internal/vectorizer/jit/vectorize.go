// Package jit wires the ir, restrict, costmodel, schedule, and isa/amd64
// packages together into the single entry point a compilation worker
// calls: Vectorize. Grounded on schedule.py's module-level flow
// (Scheduler().walk_and_emit(VecScheduleState(...))) plus the teacher's
// convention of one top-level entry point per compilation unit
// (internal/engine/wazevo/engine.go's CompileModule).
package jit

import (
	"fmt"

	"github.com/tracevec/simdjit/internal/vectorizer/costmodel"
	"github.com/tracevec/simdjit/internal/vectorizer/ir"
	"github.com/tracevec/simdjit/internal/vectorizer/isa/amd64"
	"github.com/tracevec/simdjit/internal/vectorizer/restrict"
	"github.com/tracevec/simdjit/internal/vectorizer/schedule"
)

// Config carries the knobs Vectorize needs beyond the graph and pack set
// itself: the target's vector register width and feature set, and the
// cost model to consult. A nil CostModel falls back to
// costmodel.NewDefault(), and a zero FeatureSet
// behaves as a plain SSE2-only CPU.
type Config struct {
	VecRegSize int
	Features   amd64.FeatureSet
	CostModel  costmodel.CostModel
}

// DefaultConfig returns a Config for the running CPU's detected feature
// set and a 16-byte (SSE2/SSE4.1/SSE4.2) vector register.
func DefaultConfig() Config {
	return Config{
		VecRegSize: 16,
		Features:   amd64.DetectFeatureSet(),
		CostModel:  costmodel.NewDefault(),
	}
}

// Result is what a successful vectorization run hands back: the rewritten
// loop body (ir.Graph.Loop, already mutated in place by PostSchedule) and
// the machine code the isa/amd64 emitter produced for it.
type Result struct {
	Loop *ir.Loop
	Code []byte
}

// Vectorize runs the pack scheduler and transformer over graph/packset,
// then emits machine code for the resulting op list. It is not safe to
// call concurrently on the same *ir.Graph (spec.md §5; mirrors the
// teacher's single-goroutine-per-compilation machine convention).
//
// A scheduling deadlock (schedule.Scheduler.WalkAndEmit's *ir.CycleError)
// is recovered here and turned into a returned error rather than a panic
// escaping to the caller — the one place in this module a panic is
// intentionally converted back to an error, since every other caller of
// the scheduler is internal to this package and may rely on the panic to
// unwind past intermediate bookkeeping.
func Vectorize(graph *ir.Graph, packset *ir.PackSet, cfg Config) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ir.CycleError); ok {
				err = fmt.Errorf("jit: %w", ce)
				return
			}
			panic(r)
		}
	}()

	cm := cfg.CostModel
	if cm == nil {
		cm = costmodel.NewDefault()
	}
	vecRegSize := cfg.VecRegSize
	if vecRegSize == 0 {
		vecRegSize = 16
	}

	var gate restrict.FeatureGate = cfg.Features
	state := schedule.NewState(graph, packset, vecRegSize, cm, gate)
	state.Prepare()

	sch := &schedule.Scheduler{}
	if err := sch.WalkAndEmit(state, schedule.DefaultEmit); err != nil {
		return nil, fmt.Errorf("jit: vectorize: %w", err)
	}
	state.PostSchedule()

	if !cm.Profitable() {
		return nil, fmt.Errorf("jit: vectorize: %w", ir.ErrNotProfitable)
	}

	emitter := amd64.NewEmitter(cfg.Features)
	lookup := state.VecInfoOf
	for i := range graph.Loop.Prefix {
		if err := emitter.EmitOp(&graph.Loop.Prefix[i], lookup); err != nil {
			return nil, fmt.Errorf("jit: emit prefix op %d: %w", i, err)
		}
	}
	for i := range graph.Loop.Operations {
		if err := emitter.EmitOp(&graph.Loop.Operations[i], lookup); err != nil {
			return nil, fmt.Errorf("jit: emit op %d: %w", i, err)
		}
	}

	return &Result{Loop: &graph.Loop, Code: emitter.Writer.Bytes()}, nil
}
