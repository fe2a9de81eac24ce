package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVReg_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		v      VReg
		r      RealReg
		t      RegType
		isReal bool
	}{
		{name: "gp rax", v: FromRealReg(RAX, RegTypeGP), r: RAX, t: RegTypeGP, isReal: true},
		{name: "xmm15", v: FromRealReg(XMM15, RegTypeXMM), r: XMM15, t: RegTypeXMM, isReal: true},
		{name: "virtual xmm, unbound", v: VReg(42).SetRegType(RegTypeXMM), r: RealRegInvalid, t: RegTypeXMM, isReal: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.r, tt.v.RealReg())
			require.Equal(t, tt.t, tt.v.RegType())
			require.Equal(t, tt.isReal, tt.v.IsRealReg())
		})
	}
}

func TestVReg_SetRealRegPreservesID(t *testing.T) {
	v := VReg(7).SetRegType(RegTypeXMM)
	bound := v.SetRealReg(XMM3)
	require.Equal(t, VRegID(7), bound.ID())
	require.Equal(t, XMM3, bound.RealReg())
	require.Equal(t, RegTypeXMM, bound.RegType())
}

func TestRealReg_String(t *testing.T) {
	tests := []struct {
		r   RealReg
		exp string
	}{
		{RAX, "rax"},
		{R15, "r15"},
		{XMM0, "xmm0"},
		{XMM15, "xmm15"},
		{RealRegInvalid, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.exp, func(t *testing.T) {
			require.Equal(t, tt.exp, tt.r.String())
		})
	}
}

func TestRealReg_EncodingHighBit(t *testing.T) {
	tests := []struct {
		r        RealReg
		bits     byte
		highBit  bool
	}{
		{RAX, 0, false},
		{RDI, 7, false},
		{R8, 0, true},
		{R15, 7, true},
		{XMM0, 0, false},
		{XMM7, 7, false},
		{XMM8, 0, true},
		{XMM15, 7, true},
	}
	for _, tt := range tests {
		bits, high := tt.r.encoding()
		require.Equal(t, tt.bits, bits, tt.r.String())
		require.Equal(t, tt.highBit, high, tt.r.String())
	}
}

func TestRealReg_EncodingInvalidPanics(t *testing.T) {
	require.Panics(t, func() { RealRegInvalid.encoding() })
}
