package amd64

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

func vecInfoLookup(m map[ir.ValueID]ir.VecInfo) ir.VecInfoLookup {
	return func(v ir.ValueID) ir.VecInfo { return m[v] }
}

func TestEmitter_IntAddDispatchesBySize(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpIntAdd, Args: []ir.ValueID{1, 2}, Result: 3}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{3: ir.Vector(ir.DataTypeInt, 4, 4, true)})
	require.NoError(t, e.EmitOp(op, lookup))
	require.NotEmpty(t, e.Writer.Bytes())
}

func TestEmitter_IntMul4ByteNeedsSSE41(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, false, false))
	op := &ir.Op{Opcode: ir.OpIntMul, Args: []ir.ValueID{1, 2}, Result: 3}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{3: ir.Vector(ir.DataTypeInt, 4, 4, true)})
	err := e.EmitOp(op, lookup)
	require.Error(t, err)
}

func TestEmitter_IntMul4ByteWithSSE41Succeeds(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpIntMul, Args: []ir.ValueID{1, 2}, Result: 3}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{3: ir.Vector(ir.DataTypeInt, 4, 4, true)})
	require.NoError(t, e.EmitOp(op, lookup))
}

func TestEmitter_FloatAddPicksPackedDoubleForEightByteElements(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpFloatAdd, Args: []ir.ValueID{1, 2}, Result: 3}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{3: ir.Vector(ir.DataTypeFloat, 8, 2, false)})
	require.NoError(t, e.EmitOp(op, lookup))
	require.Equal(t, []byte{0x66, 0x0F, 0x58, 0xC1}, e.Writer.Bytes())
}

func TestEmitter_IntIsTrueAppliesPCMPEQTwice(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpIntIsTrue, Args: []ir.ValueID{1}, Result: 2}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	count := 0
	for i := 0; i+1 < len(bytes); i++ {
		if bytes[i] == 0x0F && bytes[i+1] == 0x76 {
			count++
		}
	}
	require.Equal(t, 2, count, "genop_vec_int_is_true must apply PCMPEQD twice")
}

func TestEmitter_UnknownOpcodeErrors(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpLabel}
	err := e.EmitOp(op, vecInfoLookup(nil))
	require.Error(t, err)
}

func TestEmitter_LoadUsesAlignedFormWhenDescrSaysSo(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{
		Opcode: ir.OpRawLoad,
		Args:   []ir.ValueID{1},
		Result: 2,
		Descr:  &ir.ArrayDescr{Aligned: true},
	}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, byte(0x66), bytes[0], "aligned load must use the 0x66 MOVDQA prefix, not 0xF3 MOVDQU")
}

func TestEmitter_LoadPicksMOVUPSForFloatFourByteItems(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{
		Opcode: ir.OpRawLoad,
		Args:   []ir.ValueID{1},
		Result: 2,
		Descr:  &ir.ArrayDescr{IsArrayOfFloats: true, ItemSize: 4},
	}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0x0F, 0x10}, bytes[:2], "float item size 4 must use MOVUPS, not MOVDQU")
}

func TestEmitter_LoadPicksMOVUPDForFloatEightByteItems(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{
		Opcode: ir.OpRawLoad,
		Args:   []ir.ValueID{1},
		Result: 2,
		Descr:  &ir.ArrayDescr{ConcreteType: ir.DataTypeFloat, ItemSize: 8},
	}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0x66, 0x0F, 0x10}, bytes[:3], "float item size 8 must use MOVUPD, not MOVDQA/MOVDQU")
}

func TestEmitter_LoadStillUsesMOVDQUForUnalignedIntItems(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{
		Opcode: ir.OpRawLoad,
		Args:   []ir.ValueID{1},
		Result: 2,
		Descr:  &ir.ArrayDescr{ItemSize: 4},
	}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, byte(0xF3), bytes[0])
}

func TestEmitter_StorePicksMOVUPSForFloatFourByteItems(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{
		Opcode: ir.OpRawStore,
		Args:   []ir.ValueID{1, 2},
		Descr:  &ir.ArrayDescr{IsArrayOfFloats: true, ItemSize: 4},
	}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0x0F, 0x11}, bytes[:2], "float item size 4 must use MOVUPS, not MOVDQU")
}

func TestEmitter_VecExpandFourByteUsesPSHUFD(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecExpand, Args: []ir.ValueID{1}, Result: 2}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{2: ir.Vector(ir.DataTypeInt, 4, 4, true)})
	require.NoError(t, e.EmitOp(op, lookup))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0x66, 0x0F, 0x70}, bytes[:3])
	require.Equal(t, byte(0), bytes[len(bytes)-1], "broadcast mask selects lane 0 for every destination lane")
}

func TestEmitter_VecExpandEightByteUsesMOVDDUP(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecExpand, Args: []ir.ValueID{1}, Result: 2}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{2: ir.Vector(ir.DataTypeFloat, 8, 2, false)})
	require.NoError(t, e.EmitOp(op, lookup))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0xF2, 0x0F, 0x12}, bytes[:3])
}

func TestEmitter_VecMakeEmptyZeroesFreshRegister(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecMakeEmpty, Result: 1}
	require.NoError(t, e.EmitOp(op, vecInfoLookup(nil)))
	bytes := e.Writer.Bytes()
	require.Equal(t, []byte{0x66, 0x0F, 0xEF}, bytes[:3])
}

func TestEmitter_VecPackIntInsertsOneLaneViaGPScratch(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecPack, Args: []ir.ValueID{1, 2, 0, 1}, Result: 3}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{3: ir.Vector(ir.DataTypeInt, 4, 1, true)})
	require.NoError(t, e.EmitOp(op, lookup))
	bytes := e.Writer.Bytes()
	require.Contains(t, string(bytes), string([]byte{0x0F, 0x3A, 0x16}), "PEXTRD must extract the source lane")
	require.Contains(t, string(bytes), string([]byte{0x0F, 0x3A, 0x22}), "PINSRD must insert it into the target")
}

func TestEmitter_VecUnpackFloatNonzeroLaneUsesUnpckhpdShufpd(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecUnpack, Args: []ir.ValueID{1, 1, 1}, Result: 2}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{2: ir.Vector(ir.DataTypeFloat, 8, 1, false)})
	require.NoError(t, e.EmitOp(op, lookup))
	bytes := e.Writer.Bytes()
	require.Contains(t, string(bytes), string([]byte{0x0F, 0x15}), "UNPCKHPD must move the source's high lane down")
	require.Contains(t, string(bytes), string([]byte{0x0F, 0xC6}), "SHUFPD must then swap it into lane 0")
}

func TestEmitter_SignextOnlySupports4And8Byte(t *testing.T) {
	e := NewEmitter(NewFixedFeatureSet(true, true, true))
	op := &ir.Op{Opcode: ir.OpVecIntSignext, Args: []ir.ValueID{1}, Result: 2}
	lookup := vecInfoLookup(map[ir.ValueID]ir.VecInfo{2: ir.Vector(ir.DataTypeInt, 2, 8, true)})
	err := e.EmitOp(op, lookup)
	require.Error(t, err)
	require.True(t, errors.Is(err, err), "sanity: error path returns non-nil")
}
