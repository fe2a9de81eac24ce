package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

func TestState_VecInfoRoundTrips(t *testing.T) {
	graph := &ir.Graph{}
	state := newTestState(graph, nil)
	vi := ir.Scalar(ir.DataTypeInt, 4, true)
	state.SetVecInfo(5, vi)
	require.Equal(t, vi, state.VecInfoOf(5))
}

func TestState_GetSetVectorOf(t *testing.T) {
	graph := &ir.Graph{}
	state := newTestState(graph, nil)
	_, _, ok := state.GetVectorOf(1)
	require.False(t, ok)

	state.SetVectorOf(1, 3, 100)
	pos, vecOp, ok := state.GetVectorOf(1)
	require.True(t, ok)
	require.Equal(t, 3, pos)
	require.Equal(t, ir.ValueID(100), vecOp)
}

func TestState_IsConstReadsGraphNode(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Result: 1, Const: true}},
			{Op: ir.Op{Result: 2, Const: false}},
		},
	}
	state := newTestState(graph, nil)
	require.True(t, state.IsConst(1))
	require.False(t, state.IsConst(2))
	require.False(t, state.IsConst(999), "a value with no defining node is not a constant")
}

func TestState_AllocValueStartsAfterHighestExistingResult(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Result: 7}},
			{Op: ir.Op{Result: 3}},
		},
	}
	state := newTestState(graph, nil)
	require.Equal(t, ir.ValueID(8), state.AllocValue())
	require.Equal(t, ir.ValueID(9), state.AllocValue())
}

func TestState_PreventSignextRejectsNarrowCrossing(t *testing.T) {
	state := newTestState(&ir.Graph{}, nil)
	require.NoError(t, state.PreventSignext(8, 8))
	require.NoError(t, state.PreventSignext(8, 4))
	require.Error(t, state.PreventSignext(2, 4))
	require.Error(t, state.PreventSignext(4, 1))
}

func TestState_RememberArgsInVectorStopsAtLaneCount(t *testing.T) {
	graph := &ir.Graph{
		Nodes: []ir.Node{
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{1, 2}, Result: 10}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{3, 4}, Result: 11}},
			{Op: ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{5, 6}, Result: 12}},
		},
	}
	pack := ir.NewPack(graph, []ir.NodeID{0, 1, 2})
	state := newTestState(graph, nil)
	// First member's arg reports room for 3 lanes, so the loop keeps going;
	// the second member's arg reports room for only 1, so the boundary check
	// trips at lane index 1 and the third member is never reached.
	state.SetVecInfo(1, ir.Vector(ir.DataTypeInt, 4, 3, false))
	state.SetVecInfo(3, ir.Vector(ir.DataTypeInt, 4, 1, false))

	state.RememberArgsInVector(pack, 0, 999)
	_, vecOp, ok := state.GetVectorOf(1)
	require.True(t, ok)
	require.Equal(t, ir.ValueID(999), vecOp)
	_, _, ok = state.GetVectorOf(3)
	require.False(t, ok, "lane 1's own VecInfo.Count of 1 stops the loop before it is recorded")
	_, _, ok = state.GetVectorOf(5)
	require.False(t, ok)
}

func TestState_EnsureUnpackedInsertsVecUnpackOnce(t *testing.T) {
	graph := &ir.Graph{}
	state := newTestState(graph, nil)
	state.SetVecInfo(50, ir.Vector(ir.DataTypeInt, 4, 4, false))
	state.SetVectorOf(7, 2, 50)

	got := state.EnsureUnpacked(0, 7)
	require.NotEqual(t, ir.ValueID(7), got)
	require.Len(t, state.OpList, 1)
	require.Equal(t, ir.OpVecUnpack, state.OpList[0].Opcode)
	require.Equal(t, []ir.ValueID{50, 2, 1}, state.OpList[0].Args)

	// Once a value is in Seen (as the unpack's own result now is), a later
	// lookup of that same value resolves without inserting another VEC_UNPACK.
	got2 := state.EnsureUnpacked(0, got)
	require.Equal(t, got, got2)
	require.Len(t, state.OpList, 1)
}

func TestState_EnsureUnpackedLeavesInvariantVectorsAlone(t *testing.T) {
	graph := &ir.Graph{}
	state := newTestState(graph, nil)
	state.SetVecInfo(50, ir.Vector(ir.DataTypeInt, 4, 4, false))
	state.SetVectorOf(7, 2, 50)
	state.InvariantVectorVars = append(state.InvariantVectorVars, 50)

	got := state.EnsureUnpacked(0, 7)
	require.Equal(t, ir.ValueID(7), got)
	require.Empty(t, state.OpList)
}

func TestState_PostScheduleAugmentsLabelAndJumpWithInvariants(t *testing.T) {
	graph := &ir.Graph{
		Loop: ir.Loop{
			Label: ir.Op{Opcode: ir.OpLabel, Args: []ir.ValueID{1, 2}},
			Jump:  ir.Op{Opcode: ir.OpJump, Args: []ir.ValueID{3}},
		},
	}
	state := newTestState(graph, nil)
	state.InvariantVectorVars = []ir.ValueID{42}
	state.InvariantOpList = []ir.Op{{Opcode: ir.OpVecExpand, Result: 42}}

	state.PostSchedule()

	require.NotNil(t, graph.Loop.PrefixLabel)
	require.Equal(t, []ir.ValueID{1, 2, 42}, graph.Loop.PrefixLabel.Args)
	require.Equal(t, []ir.ValueID{3, 42}, graph.Loop.Jump.Args)
	require.Equal(t, state.InvariantOpList, graph.Loop.Prefix)
}

func TestState_PostScheduleSkipsPrefixLabelWithNoInvariants(t *testing.T) {
	graph := &ir.Graph{
		Loop: ir.Loop{
			Label: ir.Op{Opcode: ir.OpLabel},
			Jump:  ir.Op{Opcode: ir.OpJump},
		},
	}
	state := newTestState(graph, nil)
	state.PostSchedule()
	require.Nil(t, graph.Loop.PrefixLabel)
}
