package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

func TestBlendUnusedSlots_MaskCoversTrailingWords(t *testing.T) {
	w := NewMachineCodeWriter()
	BlendUnusedSlots(w, XMM0, XMM1, 4)
	// usedWords16=4 out of 8 words -> mask bits 4..7 set = 0xF0.
	require.Equal(t, []byte{0x66, 0x0F, 0x3A, 0x0E, 0xC1, 0xF0}, w.Bytes())
}

func TestBlendUnusedSlots_FullVectorEmitsNothing(t *testing.T) {
	w := NewMachineCodeWriter()
	BlendUnusedSlots(w, XMM0, XMM1, 8)
	require.Empty(t, w.Bytes())
}

func TestGuardVector_TrueFullVectorReturnsZ(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	cc := GuardVector(w, ra, XMM0, true, true, 8)
	require.Equal(t, CCZero, cc)
	require.NotEmpty(t, w.Bytes())
}

func TestGuardVector_FalseFullVectorReturnsNZ(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	cc := GuardVector(w, ra, XMM0, false, true, 8)
	require.Equal(t, CCNotZero, cc)
	require.NotEmpty(t, w.Bytes())
}

func TestGuardVector_PartialVectorBlendsBeforeTest(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	GuardVector(w, ra, XMM0, true, false, 4)
	// The blend-unused-slots PBLENDW must precede the final PTEST byte
	// sequence (0x66 0x0F 0x38 0x17).
	bytes := w.Bytes()
	blendIdx := indexOf(bytes, []byte{0x0F, 0x3A, 0x0E})
	testIdx := indexOf(bytes, []byte{0x0F, 0x38, 0x17})
	require.GreaterOrEqual(t, blendIdx, 0)
	require.GreaterOrEqual(t, testIdx, 0)
	require.Less(t, blendIdx, testIdx)
}

func TestGuardVector_ReturnsScratchRegistersToPool(t *testing.T) {
	ra := NewRegAlloc()
	before := len(ra.free[RegTypeXMM])
	w := NewMachineCodeWriter()
	GuardVector(w, ra, XMM0, true, false, 4)
	require.Equal(t, before, len(ra.free[RegTypeXMM]))
}

func TestAccumReduceSumFloat_EmitsHADDPD(t *testing.T) {
	w := NewMachineCodeWriter()
	AccumReduceSumFloat(w, XMM0)
	require.Equal(t, []byte{0x66, 0x0F, 0x7C, 0xC0}, w.Bytes())
}

func TestAccumReduceMulFloat_SwapsThenMultiplies(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	AccumReduceMulFloat(w, ra, XMM0)
	bytes := w.Bytes()
	shufIdx := indexOf(bytes, []byte{0x0F, 0xC6})
	mulIdx := indexOf(bytes, []byte{0xF2, 0x0F, 0x59})
	require.GreaterOrEqual(t, shufIdx, 0)
	require.GreaterOrEqual(t, mulIdx, 0)
	require.Less(t, shufIdx, mulIdx)
}

func TestAccumReduceSumInt_ExtractsBothLanesThenAdds(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	result := AccumReduceSumInt(w, ra, XMM0)
	require.NotEqual(t, RealRegInvalid, result)
	bytes := w.Bytes()
	extractCount := 0
	for i := 0; i+2 < len(bytes); i++ {
		if bytes[i] == 0x0F && bytes[i+1] == 0x3A && bytes[i+2] == 0x16 {
			extractCount++
		}
	}
	require.Equal(t, 2, extractCount, "both PEXTRQ lanes must be extracted")
}

func TestUpdateAtExit_DispatchesPerAccumulatorOperator(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	descr := &ir.ResumeGuardDescr{AccumInfos: []ir.AccumInfo{
		{Original: 1, Operator: '+'},
		{Original: 2, Operator: '*'},
	}}
	reg := map[ir.ValueID]RealReg{1: XMM0, 2: XMM1}
	UpdateAtExit(w, ra, descr,
		func(info ir.AccumInfo) RealReg { return reg[info.Original] },
		func(info ir.AccumInfo) bool { return true },
	)
	require.NotEmpty(t, w.Bytes())
}

func TestUpdateAtExit_UnsupportedOperatorPanics(t *testing.T) {
	w := NewMachineCodeWriter()
	ra := NewRegAlloc()
	descr := &ir.ResumeGuardDescr{AccumInfos: []ir.AccumInfo{{Original: 1, Operator: '-'}}}
	require.Panics(t, func() {
		UpdateAtExit(w, ra, descr,
			func(ir.AccumInfo) RealReg { return XMM0 },
			func(ir.AccumInfo) bool { return false },
		)
	})
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
