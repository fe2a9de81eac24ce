// Package amd64 is the x86-64 SSE2/SSE4.1/SSE4.2 back end: register
// representation and allocation, CPU feature detection, and the machine
// code emitter that turns a vectorized op list into bytes.
package amd64

import "fmt"

// VReg represents a register assigned to an IR value, packing an id, a
// RegType, and (once allocated) a RealReg into one uint64. Copied-and-
// adapted from the teacher's backend/regalloc/reg.go: same
// id | type<<40 | realreg<<32 layout, narrowed to the two register files
// this ISA needs (general purpose and XMM) instead of the teacher's
// three-way split. The teacher's VRegTable/VRegSet program-counter bitset
// machinery is dropped — that exists to serve a CFG-wide linear-scan
// allocator, and this module's allocator runs over a single already-
// scheduled linear op list (see DESIGN.md).
type VReg uint64

// VRegID is the lower 32 bits of a VReg: its identifier stripped of
// RegType/RealReg info.
type VRegID uint32

// RealReg returns the RealReg this VReg is bound to, or RealRegInvalid if
// unbound.
func (v VReg) RealReg() RealReg { return RealReg(v >> 32) }

// IsRealReg reports whether this VReg is backed by a physical register.
func (v VReg) IsRealReg() bool { return v.RealReg() != RealRegInvalid }

// SetRealReg returns v bound to r.
func (v VReg) SetRealReg(r RealReg) VReg {
	return VReg(r)<<32 | (v & 0xff_00_ffffffff)
}

// RegType returns the register file this VReg belongs to.
func (v VReg) RegType() RegType { return RegType(v >> 40) }

// SetRegType returns v tagged with RegType t.
func (v VReg) SetRegType(t RegType) VReg {
	return VReg(t)<<40 | (v & 0xff_00_ffffffff)
}

// ID returns the VRegID of v.
func (v VReg) ID() VRegID { return VRegID(v) }

// FromRealReg builds a pre-colored VReg directly bound to r.
func FromRealReg(r RealReg, t RegType) VReg {
	return VReg(r).SetRealReg(r).SetRegType(t)
}

// RegType distinguishes the general-purpose file (used for base/scratch
// addressing) from the XMM file (used for every vector value).
type RegType byte

const (
	RegTypeInvalid RegType = iota
	RegTypeGP
	RegTypeXMM
)

func (t RegType) String() string {
	switch t {
	case RegTypeGP:
		return "gp"
	case RegTypeXMM:
		return "xmm"
	default:
		return "invalid"
	}
}

// RealReg identifies a physical register: 0 is RealRegInvalid, GP registers
// are 1-16 and XMM registers 17-32, each file in x86-64 encoding order
// (register number within its own file equals RealReg - base).
type RealReg byte

const (
	RealRegInvalid RealReg = iota

	RAX
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// encoding returns the 3-bit field that goes into ModRM/SIB/opcode-extend,
// and highBit reports whether a REX.R/X/B extension bit must be set.
func (r RealReg) encoding() (bits byte, highBit bool) {
	var n int
	switch {
	case r >= RAX && r <= R15:
		n = int(r - RAX)
	case r >= XMM0 && r <= XMM15:
		n = int(r - XMM0)
	default:
		panic(fmt.Sprintf("amd64: invalid RealReg %d", r))
	}
	return byte(n & 7), n >= 8
}

func (r RealReg) String() string {
	names := [...]string{
		"invalid",
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "invalid"
}
