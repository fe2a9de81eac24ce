package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPXOR_SameLowRegisterNoREX(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PXOR(XMM0, XMM0)
	require.Equal(t, []byte{0x66, 0x0F, 0xEF, 0xC0}, w.Bytes())
}

func TestPXOR_HighRegistersSetRexRAndB(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PXOR(XMM8, XMM8)
	require.Equal(t, []byte{0x66, 0x45, 0x0F, 0xEF, 0xC0}, w.Bytes())
}

func TestPADDD_DistinctRegistersEncodeModRM(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PADDD(XMM1, XMM2)
	require.Equal(t, []byte{0x66, 0x0F, 0xFE, 0xCA}, w.Bytes())
}

func TestPMULLD_UsesThreeByteSSE41Opcode(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PMULLD(XMM0, XMM1)
	require.Equal(t, []byte{0x66, 0x0F, 0x38, 0x40, 0xC1}, w.Bytes())
}

func TestPBLENDW_CarriesImmediateMask(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PBLENDW(XMM0, XMM1, 0xF0)
	require.Equal(t, []byte{0x66, 0x0F, 0x3A, 0x0E, 0xC1, 0xF0}, w.Bytes())
}

func TestADDPS_HasNoMandatoryPrefix(t *testing.T) {
	w := NewMachineCodeWriter()
	w.ADDPS(XMM0, XMM1)
	require.Equal(t, []byte{0x0F, 0x58, 0xC1}, w.Bytes())
}

func TestADD_GPUsesRexW(t *testing.T) {
	w := NewMachineCodeWriter()
	w.ADD(RAX, RCX)
	require.Equal(t, []byte{0x48, 0x01, 0xC8}, w.Bytes())
}

func TestPEXTRQ_CombinesMandatoryPrefixRexWAndImmediate(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PEXTRQ(RAX, XMM0, 1)
	require.Equal(t, []byte{0x66, 0x48, 0x0F, 0x3A, 0x16, 0xC0, 0x01}, w.Bytes())
}

func TestMOVDQULoad_EncodesDisp32LittleEndian(t *testing.T) {
	w := NewMachineCodeWriter()
	w.MOVDQULoad(XMM0, RDI, 0x100)
	require.Equal(t, []byte{0xF3, 0x0F, 0x6F, 0x87, 0x00, 0x01, 0x00, 0x00}, w.Bytes())
}

func TestPSRLQImm_EncodesOpcodeExtensionDigit(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PSRLQ(XMM0, 1)
	require.Equal(t, []byte{0x66, 0x0F, 0x73, 0xD0, 0x01}, w.Bytes())
}

func TestMultipleInstructionsAccumulateInOrder(t *testing.T) {
	w := NewMachineCodeWriter()
	w.PXOR(XMM0, XMM0)
	w.PADDD(XMM0, XMM1)
	require.Len(t, w.Bytes(), 4+4)
}
