package amd64

import "fmt"

// xmmPool and gpPool list the physical registers RegAlloc hands out.
// RSP/RBP are reserved for frame/stack addressing and never allocated; R12
// is left out too, since as a memory base it would need a SIB byte that
// emitSSEMem does not encode.
var (
	xmmPool = []RealReg{
		XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7,
		XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15,
	}
	gpPool = []RealReg{
		RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R13, R14, R15,
	}
)

// RegAlloc binds VRegs to RealRegs for one already-scheduled linear op
// list. Grounded line-for-line on vector_ext.py's VectorRegallocMixin
// consider_vec_* dispatch (force_result_in_reg -> ForceResultInReg,
// make_sure_var_in_reg -> MakeSureInReg), adapted onto this module's
// VReg/RealReg representation. Unlike the teacher's CFG-wide linear-scan
// allocator, this one tracks liveness with a flat map instead of the
// teacher's VRegTable/VRegSet bitsets (see DESIGN.md).
type RegAlloc struct {
	bound map[VRegID]RealReg
	free  map[RegType][]RealReg
}

// NewRegAlloc returns an allocator with every XMM and scratch GP register
// free.
func NewRegAlloc() *RegAlloc {
	ra := &RegAlloc{bound: make(map[VRegID]RealReg)}
	ra.free = map[RegType][]RealReg{
		RegTypeXMM: append([]RealReg(nil), xmmPool...),
		RegTypeGP:  append([]RealReg(nil), gpPool...),
	}
	return ra
}

func (ra *RegAlloc) takeFree(t RegType) RealReg {
	pool := ra.free[t]
	if len(pool) == 0 {
		panic(fmt.Sprintf("amd64: register pool exhausted for %s", t))
	}
	r := pool[0]
	ra.free[t] = pool[1:]
	return r
}

// ForceResultInReg allocates a fresh physical register for a value that is
// about to be produced, binding it in place of v's previous binding (if
// any — the old one, if it has no more uses, is the caller's to Free).
// Mirrors VectorRegallocMixin.force_result_in_reg.
func (ra *RegAlloc) ForceResultInReg(v VReg) RealReg {
	r := ra.takeFree(v.RegType())
	ra.bound[v.ID()] = r
	return r
}

// MakeSureInReg returns v's bound register, allocating one if this is its
// first use. Mirrors VectorRegallocMixin.make_sure_var_in_reg.
func (ra *RegAlloc) MakeSureInReg(v VReg) RealReg {
	if r, ok := ra.bound[v.ID()]; ok {
		return r
	}
	r := ra.takeFree(v.RegType())
	ra.bound[v.ID()] = r
	return r
}

// Bind records that v is already in physical register r (used for
// pre-colored arguments: the first lane of an accumulator, or a value
// that arrives already in a specific register).
func (ra *RegAlloc) Bind(v VReg, r RealReg) {
	ra.bound[v.ID()] = r
}

// Free returns v's bound register to its pool and forgets the binding.
// Called once a value's last consumer has been emitted.
func (ra *RegAlloc) Free(v VReg) {
	r, ok := ra.bound[v.ID()]
	if !ok {
		return
	}
	delete(ra.bound, v.ID())
	t := v.RegType()
	ra.free[t] = append(ra.free[t], r)
}

// Lookup returns v's bound register and whether one exists.
func (ra *RegAlloc) Lookup(v VReg) (RealReg, bool) {
	r, ok := ra.bound[v.ID()]
	return r, ok
}

// ScratchXMM allocates a temporary XMM register not bound to any VReg,
// for glue sequences that need a register with no IR-visible lifetime
// (the emitter's and guard_vector's own temps take theirs from the pool
// directly).
// The caller frees it with FreeScratch once the sequence is done.
func (ra *RegAlloc) ScratchXMM() RealReg { return ra.takeFree(RegTypeXMM) }

// FreeScratch returns a register obtained from ScratchXMM to its pool.
func (ra *RegAlloc) FreeScratch(r RealReg, t RegType) {
	ra.free[t] = append(ra.free[t], r)
}
