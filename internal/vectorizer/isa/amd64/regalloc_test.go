package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegAlloc_MakeSureInRegAllocatesOnce(t *testing.T) {
	ra := NewRegAlloc()
	v := VReg(1).SetRegType(RegTypeXMM)
	r1 := ra.MakeSureInReg(v)
	r2 := ra.MakeSureInReg(v)
	require.Equal(t, r1, r2, "second lookup must return the same binding, not a fresh register")
}

func TestRegAlloc_ForceResultInRegAllocatesDistinctRegisters(t *testing.T) {
	ra := NewRegAlloc()
	a := ra.ForceResultInReg(VReg(1).SetRegType(RegTypeXMM))
	b := ra.ForceResultInReg(VReg(2).SetRegType(RegTypeXMM))
	require.NotEqual(t, a, b)
}

func TestRegAlloc_FreeReturnsRegisterToPool(t *testing.T) {
	ra := NewRegAlloc()
	v1 := VReg(1).SetRegType(RegTypeXMM)
	r1 := ra.ForceResultInReg(v1)
	ra.Free(v1)

	seen := map[RealReg]bool{}
	var regs []RealReg
	for i := 0; i < len(xmmPool); i++ {
		regs = append(regs, ra.ForceResultInReg(VReg(uint32(100+i)).SetRegType(RegTypeXMM)))
	}
	for _, r := range regs {
		seen[r] = true
	}
	require.True(t, seen[r1], "freed register must be reusable")
}

func TestRegAlloc_LookupReportsUnbound(t *testing.T) {
	ra := NewRegAlloc()
	_, ok := ra.Lookup(VReg(99).SetRegType(RegTypeXMM))
	require.False(t, ok)
}

func TestRegAlloc_BindPreColorsWithoutConsumingPool(t *testing.T) {
	ra := NewRegAlloc()
	v := VReg(5).SetRegType(RegTypeXMM)
	ra.Bind(v, XMM3)
	r, ok := ra.Lookup(v)
	require.True(t, ok)
	require.Equal(t, XMM3, r)
}

func TestRegAlloc_PoolExhaustionPanics(t *testing.T) {
	ra := NewRegAlloc()
	require.Panics(t, func() {
		for i := 0; i < len(xmmPool)+1; i++ {
			ra.ForceResultInReg(VReg(uint32(i)).SetRegType(RegTypeXMM))
		}
	})
}
