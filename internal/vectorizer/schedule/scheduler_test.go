package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracevec/simdjit/internal/vectorizer/costmodel"
	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

func newTestState(graph *ir.Graph, packset *ir.PackSet) *State {
	return NewState(graph, packset, 16, costmodel.NewDefault(), nil)
}

func resultsOf(ops []ir.Op) []ir.ValueID {
	out := make([]ir.ValueID, len(ops))
	for i, op := range ops {
		out[i] = op.Result
	}
	return out
}

func TestScheduler_PrepareSeedsInOriginalTraceOrder(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Result: 1}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Result: 2}},
		},
	}
	state := newTestState(graph, nil)
	state.Prepare()

	sch := &Scheduler{}
	require.NoError(t, sch.WalkAndEmit(state, DefaultEmit))
	require.Equal(t, []ir.ValueID{1, 2}, resultsOf(state.OpList))
}

func TestScheduler_HigherPriorityDependentRunsFirst(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Result: 1}},                   // A
			{Op: ir.Op{Opcode: ir.OpIntAdd, Result: 2}, Priority: 1, Index: 1}, // B
			{Op: ir.Op{Opcode: ir.OpIntAdd, Result: 3}, Priority: 5, Index: 2}, // C
		},
	}
	graph.AddEdge(0, 1)
	graph.AddEdge(0, 2)

	state := newTestState(graph, nil)
	state.Prepare()

	sch := &Scheduler{}
	require.NoError(t, sch.WalkAndEmit(state, DefaultEmit))
	require.Equal(t, []ir.ValueID{1, 3, 2}, resultsOf(state.OpList), "C (priority 5) must be scheduled before B (priority 1) once both become ready")
}

func TestScheduler_TryToTrashPackUnblocksPlainPack(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{1, 2}, Result: 10}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{3, 4}, Result: 11}},
		},
	}
	pack := ir.NewPack(graph, []ir.NodeID{0, 1})
	graph.Nodes[1].DependsCount = 1 // waiting on some dependency outside the pack

	state := newTestState(graph, nil)
	state.Worklist = []ir.NodeID{0}

	sch := &Scheduler{}
	require.True(t, sch.TryToTrashPack(state))
	require.Nil(t, graph.Nodes[0].Pack)
	require.Nil(t, graph.Nodes[1].Pack)
	_ = pack
}

// TestScheduler_AccumulatingPackDeadlockPanics constructs an AccumPack whose
// first member's result is consumed by a node outside the pack: Delay()
// treats this as permanently blocked (every Provides edge of an
// accumulating pack member must stay inside the pack), and
// TryToTrashPack's trash condition only inspects DependsCount, never this
// provides-escaped-the-pack condition, so nothing can unblock it.
func TestScheduler_AccumulatingPackDeadlockPanics(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{10, 11}, Result: 12}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{13, 14}, Result: 15}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{12, 16}, Result: 17}},
		},
	}
	graph.AddEdge(0, 2)
	ir.NewAccumPack(graph, []ir.NodeID{0, 1}, '+', 0)

	state := newTestState(graph, nil)
	state.Prepare()
	sch := &Scheduler{}

	require.Panics(t, func() {
		_ = sch.WalkAndEmit(state, DefaultEmit)
	})
}

func TestScheduler_MarkEmittedSkipsRenameForImaginaryNodes(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{1, 2}, Result: 9}, Imaginary: true},
		},
	}
	state := newTestState(graph, nil)
	state.Prepare()
	state.Renamer.StartRenaming(1, 99)

	sch := &Scheduler{}
	sch.MarkEmitted(0, state, true)

	require.True(t, graph.Nodes[0].Emitted)
	require.Equal(t, []ir.ValueID{1, 2}, graph.Nodes[0].Op.Args, "an imaginary node's op must not be renamed or unpacked")
}

func TestScheduler_MarkEmittedRenamesOrdinaryNodes(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{1, 2}, Result: 9}},
		},
	}
	state := newTestState(graph, nil)
	state.Prepare()
	state.Renamer.StartRenaming(1, 99)

	sch := &Scheduler{}
	sch.MarkEmitted(0, state, true)

	require.Equal(t, []ir.ValueID{99, 2}, graph.Nodes[0].Op.Args)
}
