package jit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
	"github.com/tracevec/simdjit/internal/vectorizer/isa/amd64"
)

type stubCostModel struct{ profitable bool }

func (s *stubCostModel) RecordPackSavings(*ir.Pack, int)         {}
func (s *stubCostModel) RecordCastInt(int, int, int)             {}
func (s *stubCostModel) RecordVectorUnpack(ir.ValueID, int, int) {}
func (s *stubCostModel) RecordVectorPack(ir.ValueID, int, int)   {}
func (s *stubCostModel) Profitable() bool                        { return s.profitable }

func emptyLoopGraph() *ir.Graph {
	return &ir.Graph{
		Loop: ir.Loop{
			Label: ir.Op{Opcode: ir.OpLabel},
			Jump:  ir.Op{Opcode: ir.OpJump},
		},
	}
}

func TestVectorize_EmptyGraphSucceedsWithStubCostModel(t *testing.T) {
	graph := emptyLoopGraph()
	cfg := Config{
		VecRegSize: 16,
		Features:   amd64.NewFixedFeatureSet(true, true, true),
		CostModel:  &stubCostModel{profitable: true},
	}
	result, err := Vectorize(graph, nil, cfg)
	require.NoError(t, err)
	require.Empty(t, result.Code)
	require.Empty(t, result.Loop.Operations)
}

func TestVectorize_NoSavingsIsNotProfitable(t *testing.T) {
	graph := emptyLoopGraph()
	result, err := Vectorize(graph, nil, DefaultConfig())
	require.Nil(t, result)
	require.True(t, errors.Is(err, ir.ErrNotProfitable))
}

func TestVectorize_EmitErrorIsWrappedWithOpIndex(t *testing.T) {
	graph := emptyLoopGraph()
	graph.Nodes = []ir.Node{
		{Op: ir.Op{Opcode: ir.OpLabel, Result: 1}, PackPosition: -1},
	}
	cfg := Config{
		VecRegSize: 16,
		Features:   amd64.NewFixedFeatureSet(true, true, true),
		CostModel:  &stubCostModel{profitable: true},
	}
	result, err := Vectorize(graph, nil, cfg)
	require.Nil(t, result)
	require.Error(t, err)
	require.Contains(t, err.Error(), "emit op 0")
}

func TestVectorize_UndersizedPackReturnsErrorNotPanic(t *testing.T) {
	graph := emptyLoopGraph()
	graph.Nodes = []ir.Node{
		{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{10, 11}, Result: 12}, PackPosition: -1},
	}
	pack := ir.NewPack(graph, []ir.NodeID{0})
	cfg := Config{
		VecRegSize: 16,
		Features:   amd64.NewFixedFeatureSet(true, true, true),
		CostModel:  &stubCostModel{profitable: true},
	}
	result, err := Vectorize(graph, ir.NewPackSet([]*ir.Pack{pack}), cfg)
	require.Nil(t, result)
	require.True(t, errors.Is(err, ir.ErrNotVectorizeable))
}

// TestVectorize_AccumulatingPackDeadlockReturnsErrorNotPanic builds an
// AccumPack whose first member's result is consumed by a node outside the
// pack before the pack can be emitted: an accumulating pack requires every
// provide of every member to stay inside the pack, and nothing in the
// scheduler can repair that by trashing (try_to_trash_pack only inspects
// DependsCount, never the accumulating-provides condition), so this is a
// genuine deadlock. Vectorize must recover the resulting *ir.CycleError
// panic and return it as a plain error.
func TestVectorize_AccumulatingPackDeadlockReturnsErrorNotPanic(t *testing.T) {
	graph := emptyLoopGraph()
	graph.Nodes = []ir.Node{
		{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{10, 11}, Result: 12}, PackPosition: -1},
		{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{13, 14}, Result: 15}, PackPosition: -1},
		{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{12, 16}, Result: 17}, PackPosition: -1},
	}
	graph.AddEdge(0, 2)
	pack := ir.NewAccumPack(graph, []ir.NodeID{0, 1}, '+', 0)

	cfg := Config{
		VecRegSize: 16,
		Features:   amd64.NewFixedFeatureSet(true, true, true),
		CostModel:  &stubCostModel{profitable: true},
	}
	result, err := Vectorize(graph, ir.NewPackSet([]*ir.Pack{pack}), cfg)
	require.Nil(t, result)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestDefaultConfig_HasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 16, cfg.VecRegSize)
	require.NotNil(t, cfg.CostModel)
}
