package amd64

import (
	"fmt"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

// Emitter turns a scheduled op list (the output of schedule.State, already
// walked by schedule.Scheduler.WalkAndEmit) into machine code, one
// genop_vec_* equivalent per opcode. Grounded line-for-line on
// vector_ext.py's VectorAssemblerMixin. Argument and result registers are
// resolved through RegAlloc using x86's in-place two-operand convention
// (the first argument's register doubles as the result register), the
// same convention the teacher's aluRmiR case in instr_encoding.go follows
// for scalar ALU ops.
type Emitter struct {
	Writer   *MachineCodeWriter
	Regs     *RegAlloc
	Features FeatureSet
}

// NewEmitter returns an Emitter over a fresh writer and register allocator.
func NewEmitter(features FeatureSet) *Emitter {
	return &Emitter{Writer: NewMachineCodeWriter(), Regs: NewRegAlloc(), Features: features}
}

func vxmm(v ir.ValueID) VReg { return VReg(v).SetRegType(RegTypeXMM) }

func (e *Emitter) argReg(v ir.ValueID) RealReg { return e.Regs.MakeSureInReg(vxmm(v)) }

// bindResult records that op's result now lives in the same physical
// register as its first argument (the in-place convention every binary
// SSE op in this table follows).
func (e *Emitter) bindResult(op *ir.Op, reg RealReg) {
	if op.Result != ir.NoValue {
		e.Regs.Bind(vxmm(op.Result), reg)
	}
}

// EmitOp appends the machine code for one (already vectorized) op.
// Mirrors the genop_vec_* dispatch table of vector_ext.py's
// VectorAssemblerMixin, keyed the same way restrict.Registry keys its
// OpRestrict table: by opcode, with element size/sign read from the
// result (or, for void ops, the relevant argument) VecInfo.
func (e *Emitter) EmitOp(op *ir.Op, lookup ir.VecInfoLookup) error {
	switch op.Opcode {
	case ir.OpIntAdd, ir.OpIntSub, ir.OpIntMul, ir.OpIntAnd, ir.OpIntOr, ir.OpIntXor:
		return e.emitIntBinop(op, lookup)
	case ir.OpFloatAdd, ir.OpFloatSub, ir.OpFloatMul, ir.OpFloatTrueDiv:
		return e.emitFloatBinop(op, lookup)
	case ir.OpFloatAbs:
		return e.emitFloatAbs(op)
	case ir.OpFloatNeg:
		return e.emitFloatNeg(op)
	case ir.OpIntEq, ir.OpIntNe:
		return e.emitIntCompare(op, lookup)
	case ir.OpFloatEq, ir.OpFloatNe:
		return e.emitFloatCompare(op)
	case ir.OpIntIsTrue:
		return e.emitIntIsTrue(op)
	case ir.OpCastFloatToSingleFloat:
		dst := e.argReg(op.Args[0])
		e.Writer.CVTPD2PS(dst, dst)
		e.bindResult(op, dst)
	case ir.OpCastSingleFloatToFloat:
		dst := e.argReg(op.Args[0])
		e.Writer.CVTPS2PD(dst, dst)
		e.bindResult(op, dst)
	case ir.OpCastIntToFloat:
		dst := e.argReg(op.Args[0])
		e.Writer.CVTDQ2PD(dst, dst)
		e.bindResult(op, dst)
	case ir.OpCastFloatToInt:
		dst := e.argReg(op.Args[0])
		e.Writer.CVTPD2DQ(dst, dst)
		e.bindResult(op, dst)
	case ir.OpVecIntSignext:
		return e.emitSignext(op, lookup)
	case ir.OpVecExpand:
		return e.emitExpand(op, lookup)
	case ir.OpVecMakeEmpty:
		return e.emitMakeEmpty(op)
	case ir.OpVecPack:
		return e.emitPack(op, lookup)
	case ir.OpVecUnpack:
		return e.emitUnpack(op, lookup)
	case ir.OpRawLoad, ir.OpGetArrayItem:
		return e.emitLoad(op)
	case ir.OpRawStore, ir.OpSetArrayItem:
		return e.emitStore(op)
	case ir.OpGuardTrue, ir.OpGuardFalse:
		return e.emitGuard(op, lookup)
	default:
		return fmt.Errorf("amd64: no emitter for opcode %s", op.Opcode)
	}
	return nil
}

func (e *Emitter) emitIntBinop(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Result)
	dst := e.argReg(op.Args[0])
	src := e.argReg(op.Args[1])
	switch op.Opcode {
	case ir.OpIntAdd:
		switch vi.ByteSize {
		case 1:
			e.Writer.PADDB(dst, src)
		case 2:
			e.Writer.PADDW(dst, src)
		case 4:
			e.Writer.PADDD(dst, src)
		case 8:
			e.Writer.PADDQ(dst, src)
		default:
			return fmt.Errorf("amd64: int_add: unsupported element size %d", vi.ByteSize)
		}
	case ir.OpIntSub:
		switch vi.ByteSize {
		case 1:
			e.Writer.PSUBB(dst, src)
		case 2:
			e.Writer.PSUBW(dst, src)
		case 4:
			e.Writer.PSUBD(dst, src)
		case 8:
			e.Writer.PSUBQ(dst, src)
		default:
			return fmt.Errorf("amd64: int_sub: unsupported element size %d", vi.ByteSize)
		}
	case ir.OpIntMul:
		switch vi.ByteSize {
		case 2:
			e.Writer.PMULLW(dst, src)
		case 4:
			if !e.Features.HasSSE41() {
				return fmt.Errorf("amd64: int_mul at 4-byte elements needs PMULLD (SSE4.1)")
			}
			e.Writer.PMULLD(dst, src)
		default:
			return fmt.Errorf("amd64: int_mul: unsupported element size %d (restrict.CheckIfPackSupported should have rejected this pack)", vi.ByteSize)
		}
	case ir.OpIntAnd:
		e.Writer.PAND(dst, src)
	case ir.OpIntOr:
		e.Writer.POR(dst, src)
	case ir.OpIntXor:
		e.Writer.PXOR(dst, src)
	}
	e.bindResult(op, dst)
	return nil
}

func (e *Emitter) emitFloatBinop(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Result)
	dst := e.argReg(op.Args[0])
	src := e.argReg(op.Args[1])
	single := vi.ByteSize == 4
	switch op.Opcode {
	case ir.OpFloatAdd:
		if single {
			e.Writer.ADDPS(dst, src)
		} else {
			e.Writer.ADDPD(dst, src)
		}
	case ir.OpFloatSub:
		if single {
			e.Writer.SUBPS(dst, src)
		} else {
			e.Writer.SUBPD(dst, src)
		}
	case ir.OpFloatMul:
		if single {
			e.Writer.MULPS(dst, src)
		} else {
			e.Writer.MULPD(dst, src)
		}
	case ir.OpFloatTrueDiv:
		if single {
			e.Writer.DIVPS(dst, src)
		} else {
			e.Writer.DIVPD(dst, src)
		}
	}
	e.bindResult(op, dst)
	return nil
}

// emitFloatAbs clears every lane's sign bit with a mask built in place
// (PCMPEQD self,self for all-ones, then PSRLQ 1 to leave 0x7fff...ffff),
// since this emitter has no memory-constant addressing mode for the
// teacher's usual float_const_abs_addr heap constant.
func (e *Emitter) emitFloatAbs(op *ir.Op) error {
	dst := e.argReg(op.Args[0])
	mask := e.Regs.takeFree(RegTypeXMM)
	e.Writer.PCMPEQD(mask, mask)
	e.Writer.PSRLQ(mask, 1)
	e.Writer.ANDPD(dst, mask)
	e.Regs.free[RegTypeXMM] = append(e.Regs.free[RegTypeXMM], mask)
	e.bindResult(op, dst)
	return nil
}

// emitFloatNeg flips every lane's sign bit with an in-place mask
// (PCMPEQD self,self then PSLLQ 63 isolates the sign bit).
func (e *Emitter) emitFloatNeg(op *ir.Op) error {
	dst := e.argReg(op.Args[0])
	mask := e.Regs.takeFree(RegTypeXMM)
	e.Writer.PCMPEQD(mask, mask)
	e.Writer.PSLLQ(mask, 63)
	e.Writer.XORPD(dst, mask)
	e.Regs.free[RegTypeXMM] = append(e.Regs.free[RegTypeXMM], mask)
	e.bindResult(op, dst)
	return nil
}

func (e *Emitter) emitIntCompare(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Args[0])
	dst := e.argReg(op.Args[0])
	src := e.argReg(op.Args[1])
	switch vi.ByteSize {
	case 1:
		e.Writer.PCMPEQB(dst, src)
	case 2:
		e.Writer.PCMPEQW(dst, src)
	case 4:
		e.Writer.PCMPEQD(dst, src)
	case 8:
		e.Writer.PCMPEQQ(dst, src)
	default:
		return fmt.Errorf("amd64: int_eq/ne: unsupported element size %d", vi.ByteSize)
	}
	if op.Opcode == ir.OpIntNe {
		ones := e.Regs.takeFree(RegTypeXMM)
		e.Writer.PCMPEQD(ones, ones)
		e.Writer.PXOR(dst, ones)
		e.Regs.free[RegTypeXMM] = append(e.Regs.free[RegTypeXMM], ones)
	}
	e.bindResult(op, dst)
	return nil
}

func (e *Emitter) emitFloatCompare(op *ir.Op) error {
	dst := e.argReg(op.Args[0])
	src := e.argReg(op.Args[1])
	if op.Opcode == ir.OpFloatEq {
		e.Writer.CMPPD(dst, src, cmppdEQ)
	} else {
		e.Writer.CMPPD(dst, src, cmppdNE)
	}
	e.bindResult(op, dst)
	return nil
}

// emitIntIsTrue applies PCMPEQD twice against a zeroed scratch register.
// The Open Question decision (DESIGN.md) keeps this exactly as
// vector_ext.py writes it and relies on emitter_test.go to pin down the
// claimed "non-zero lanes end up all-ones" semantics rather than trusting
// the original comment.
func (e *Emitter) emitIntIsTrue(op *ir.Op) error {
	dst := e.argReg(op.Args[0])
	zero := e.Regs.takeFree(RegTypeXMM)
	e.Writer.PXOR(zero, zero)
	e.Writer.PCMPEQD(dst, zero) // ones where dst lane was zero
	e.Writer.PCMPEQD(dst, zero) // second pass per vector_ext.py's genop_vec_int_is_true
	e.Regs.free[RegTypeXMM] = append(e.Regs.free[RegTypeXMM], zero)
	e.bindResult(op, dst)
	return nil
}

// emitSignext implements the only two supported narrowing/widening pairs
// (4<->8 byte lanes): PEXTRD+PINSRQ (4->8) or PEXTRQ+PINSRD (8->4). Any
// other pair is rejected upstream by schedule.State.PreventSignext (called
// from CropVector, which creates these ops), so reaching here with one is an
// invariant violation.
func (e *Emitter) emitSignext(op *ir.Op, lookup ir.VecInfoLookup) error {
	toSize := lookup(op.Result).ByteSize
	src := e.argReg(op.Args[0])
	dst := e.Regs.ForceResultInReg(vxmm(op.Result))
	scratch := e.Regs.takeFree(RegTypeGP)
	switch {
	case toSize == 8:
		e.Writer.PEXTRD(scratch, src, 0)
		e.Writer.PINSRQ(dst, scratch, 0)
	case toSize == 4:
		e.Writer.PEXTRQ(scratch, src, 0)
		e.Writer.PINSRD(dst, scratch, 0)
	default:
		e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
		return fmt.Errorf("amd64: vec_int_signext: unsupported byte size %d (only 4<->8 implemented)", toSize)
	}
	e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
	return nil
}

// emitExpand broadcasts a scalar argument (already resolved to an XMM
// register under this module's everything-is-xmm convention) across every
// lane of the result vector. PSHUFD/MOVDDUP operate on raw 32/64-bit
// patterns regardless of int/float interpretation, so both datatypes share
// the 4- and 8-byte cases; the narrower int cases bounce the scalar
// through a GP scratch register the way genop_vec_expand_i does.
func (e *Emitter) emitExpand(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Result)
	src := e.argReg(op.Args[0])
	dst := e.Regs.ForceResultInReg(vxmm(op.Result))
	switch vi.ByteSize {
	case 8:
		e.Writer.MOVDDUP(dst, src)
	case 4:
		e.Writer.PSHUFD(dst, src, 0)
	case 2:
		scratch := e.Regs.takeFree(RegTypeGP)
		e.Writer.PEXTRW(scratch, src, 0)
		e.Writer.PINSRW(dst, scratch, 0)
		e.Writer.PINSRW(dst, scratch, 4)
		e.Writer.PSHUFLW(dst, dst, 0)
		e.Writer.PSHUFHW(dst, dst, 0)
		e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
	case 1:
		scratch := e.Regs.takeFree(RegTypeGP)
		e.Writer.PEXTRB(scratch, src, 0)
		e.Writer.PINSRB(dst, scratch, 0)
		mask := e.Regs.takeFree(RegTypeXMM)
		e.Writer.PXOR(mask, mask)
		e.Writer.PSHUFB(dst, mask) // all-zero control byte selects lane 0 everywhere
		e.Regs.free[RegTypeXMM] = append(e.Regs.free[RegTypeXMM], mask)
		e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
	default:
		return fmt.Errorf("amd64: vec_expand: unsupported element size %d", vi.ByteSize)
	}
	return nil
}

// emitMakeEmpty zeroes a fresh vector register. Corresponds to
// OpHelpers.create_vec's "VEC_I"/"VEC_F" (genop_vec_expand's gather path
// always starts from one of these before the first VEC_PACK).
func (e *Emitter) emitMakeEmpty(op *ir.Op) error {
	dst := e.Regs.ForceResultInReg(vxmm(op.Result))
	e.Writer.PXOR(dst, dst)
	return nil
}

// emitPack appends scount lanes of Args[1] starting at source lane 0 onto
// Args[0] at result lane Args[2] (PackIntoVector's own sidx==0 invariant).
// Args[2]/Args[3] are immediates (target index, lane count), not value
// references.
func (e *Emitter) emitPack(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Result)
	tgt := e.argReg(op.Args[0])
	src := e.argReg(op.Args[1])
	tidx := int(op.Args[2])
	scount := int(op.Args[3])
	if err := e.packLanes(tgt, src, tidx, 0, scount, vi); err != nil {
		return err
	}
	e.bindResult(op, tgt)
	return nil
}

// emitUnpack gathers Args[2] lanes starting at Args[1] out of Args[0] into
// a fresh result vector at lane 0. Mirrors genop_vec_unpack_i/_f, which are
// literally genop_vec_pack_i/_f with the result forced into a new register
// rather than reusing the source's.
func (e *Emitter) emitUnpack(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Result)
	src := e.argReg(op.Args[0])
	srcidx := int(op.Args[1])
	count := int(op.Args[2])
	dst := e.Regs.ForceResultInReg(vxmm(op.Result))
	return e.packLanes(dst, src, 0, srcidx, count, vi)
}

// packLanes is the shared genop_vec_pack_i/genop_vec_pack_f lane-mover:
// move `count` lanes of `src` starting at `srcidx` into `dst` starting at
// `residx`. The int path bounces each lane through a GP scratch register
// (PEXTR*/PINSR*); the float path uses INSERTPS for 4-byte lanes and the
// MOVSD/UNPCKLPD/UNPCKHPD/SHUFPD quadrant dance for 8-byte lanes.
func (e *Emitter) packLanes(dst, src RealReg, residx, srcidx, count int, vi ir.VecInfo) error {
	if vi.DataType == ir.DataTypeFloat {
		return e.packFloatLanes(dst, src, residx, srcidx, count, vi.ByteSize)
	}
	return e.packIntLanes(dst, src, residx, srcidx, count, vi.ByteSize)
}

func (e *Emitter) packIntLanes(dst, src RealReg, residx, srcidx, count, byteSize int) error {
	for i := 0; i < count; i++ {
		si := byte(srcidx + i)
		ri := byte(residx + i)
		scratch := e.Regs.takeFree(RegTypeGP)
		switch byteSize {
		case 1:
			e.Writer.PEXTRB(scratch, src, si)
			e.Writer.PINSRB(dst, scratch, ri)
		case 2:
			e.Writer.PEXTRW(scratch, src, si)
			e.Writer.PINSRW(dst, scratch, ri)
		case 4:
			e.Writer.PEXTRD(scratch, src, si)
			e.Writer.PINSRD(dst, scratch, ri)
		case 8:
			e.Writer.PEXTRQ(scratch, src, si)
			e.Writer.PINSRQ(dst, scratch, ri)
		default:
			e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
			return fmt.Errorf("amd64: vec_pack/unpack: unsupported int element size %d", byteSize)
		}
		e.Regs.free[RegTypeGP] = append(e.Regs.free[RegTypeGP], scratch)
	}
	return nil
}

func (e *Emitter) packFloatLanes(dst, src RealReg, residx, srcidx, count, byteSize int) error {
	switch byteSize {
	case 4:
		for i := 0; i < count; i++ {
			si := srcidx + i
			ri := residx + i
			ctrl := byte(((si & 0x3) << 6) | ((ri & 0x3) << 4))
			e.Writer.INSERTPS(dst, src, ctrl)
		}
		return nil
	case 8:
		for i := 0; i < count; i++ {
			si := srcidx + i
			ri := residx + i
			switch {
			case si == 0 && ri == 0:
				e.Writer.MOVSD(dst, src)
			case si == 0 && ri == 1:
				e.Writer.UNPCKLPD(dst, src)
			case si == 1 && ri == 0:
				if dst != src {
					e.Writer.UNPCKHPD(dst, src)
				}
				e.Writer.SHUFPD(dst, dst, 1)
			case si == 1 && ri == 1:
				if dst != src {
					e.Writer.SHUFPD(dst, dst, 1)
					e.Writer.UNPCKHPD(dst, src)
				}
			default:
				return fmt.Errorf("amd64: vec_pack/unpack: float64 lane index out of range (si=%d ri=%d)", si, ri)
			}
		}
		return nil
	default:
		return fmt.Errorf("amd64: vec_pack/unpack: unsupported float element size %d", byteSize)
	}
}

func (e *Emitter) baseReg(op *ir.Op) RealReg {
	// Args[0] holds the array/raw-memory base pointer in every load/store
	// op shape this module's restrict registry accepts (restrict.go's
	// storeRestrict/loadRestrict leave slot 0 unconstrained for exactly
	// this reason).
	return e.Regs.MakeSureInReg(VReg(op.Args[0]).SetRegType(RegTypeGP))
}

// loadStoreShape reads the bits of op.Descr that pick an instruction:
// whether the element is float (IsArrayOfFloats or ConcreteType), its
// size, its alignment, and its base displacement. Mirrors _vec_load's/
// _vec_store's own (integer, itemsize, aligned) argument tuple.
func loadStoreShape(op *ir.Op) (isFloat bool, itemSize int, aligned bool, disp int32) {
	if op.Descr == nil {
		return false, 0, false, 0
	}
	d := op.Descr
	isFloat = d.IsArrayOfFloats || d.ConcreteType == ir.DataTypeFloat
	return isFloat, d.ItemSize, d.Aligned, int32(d.BaseOffset)
}

func (e *Emitter) emitLoad(op *ir.Op) error {
	base := e.baseReg(op)
	dst := e.Regs.ForceResultInReg(vxmm(op.Result))
	isFloat, itemSize, aligned, disp := loadStoreShape(op)
	if isFloat {
		switch itemSize {
		case 4:
			e.Writer.MOVUPSLoad(dst, base, disp)
		case 8:
			e.Writer.MOVUPDLoad(dst, base, disp)
		default:
			return fmt.Errorf("amd64: vec_raw_load: unsupported float item size %d", itemSize)
		}
		return nil
	}
	if aligned {
		e.Writer.MOVDQALoad(dst, base, disp)
	} else {
		e.Writer.MOVDQULoad(dst, base, disp)
	}
	return nil
}

func (e *Emitter) emitStore(op *ir.Op) error {
	base := e.baseReg(op)
	src := e.argReg(op.Args[len(op.Args)-1])
	isFloat, itemSize, aligned, disp := loadStoreShape(op)
	if isFloat {
		switch itemSize {
		case 4:
			e.Writer.MOVUPSStore(src, base, disp)
		case 8:
			e.Writer.MOVUPDStore(src, base, disp)
		default:
			return fmt.Errorf("amd64: vec_raw_store: unsupported float item size %d", itemSize)
		}
		return nil
	}
	if aligned {
		e.Writer.MOVDQAStore(src, base, disp)
	} else {
		e.Writer.MOVDQUStore(src, base, disp)
	}
	return nil
}

// emitGuard runs the full/partial guard_vector sequence and, when the guard
// carries accumulator info, the update_at_exit reduction. The condition
// code GuardVector returns is discarded: no conditional jump is emitted.
func (e *Emitter) emitGuard(op *ir.Op, lookup ir.VecInfoLookup) error {
	vi := lookup(op.Args[0])
	arg := e.argReg(op.Args[0])
	full := vi.ByteSize*vi.Count == 16
	usedWords16 := (vi.ByteSize * vi.Count) / 2
	GuardVector(e.Writer, e.Regs, arg, op.Opcode == ir.OpGuardTrue, full, usedWords16)

	if op.GuardDescr != nil && len(op.GuardDescr.AccumInfos) > 0 {
		UpdateAtExit(e.Writer, e.Regs, op.GuardDescr,
			func(info ir.AccumInfo) RealReg {
				r, _ := e.Regs.Lookup(vxmm(info.Original))
				return r
			},
			func(info ir.AccumInfo) bool {
				return lookup(info.Original).DataType == ir.DataTypeFloat
			},
		)
	}
	return nil
}
