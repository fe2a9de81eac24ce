package amd64

import "github.com/tracevec/simdjit/internal/vectorizer/ir"

// SuccessCC is the condition code the caller must wire into the guard's
// conditional jump: "Z" (jump-if-zero) for guard_true, "NZ" for
// guard_false.
type SuccessCC string

const (
	CCZero    SuccessCC = "Z"
	CCNotZero SuccessCC = "NZ"
)

// BlendUnusedSlots ORs ones (or zeros) into the unused trailing 16-bit
// words of a partially-filled vector register before a guard test, so
// spurious high lanes cannot corrupt the boolean reduction. usedWords16 is
// the count of 16-bit words actually holding data (e.g. 4 for two live
// 32-bit lanes in a 128-bit register). Mirrors vector_ext.py's
// _blend_unused_slots (spec.md §4.7/§4.8 example 6).
func BlendUnusedSlots(w *MachineCodeWriter, target, fill RealReg, usedWords16 int) {
	var mask byte
	for i := usedWords16; i < 8; i++ {
		mask |= 1 << uint(i)
	}
	if mask == 0 {
		return
	}
	w.PBLENDW(target, fill, mask)
}

// GuardVector emits the vector guard_true/guard_false check sequence and
// returns the condition code the caller should branch on. full reports
// whether the pack exactly fills the vector register; when it does not,
// the unused high lanes are pre-blended with all-ones (guard_true) or
// zeros (guard_false) via BlendUnusedSlots first, using usedWords16 16-bit
// words of real data. Mirrors vector_ext.py's guard_vector.
func GuardVector(w *MachineCodeWriter, ra *RegAlloc, arg RealReg, isTrue bool, full bool, usedWords16 int) SuccessCC {
	if isTrue {
		if !full {
			ones := ra.takeFree(RegTypeXMM)
			w.PXOR(ones, ones)
			w.PCMPEQQ(ones, ones)
			BlendUnusedSlots(w, arg, ones, usedWords16)
			ra.free[RegTypeXMM] = append(ra.free[RegTypeXMM], ones)
		}
		temp := ra.takeFree(RegTypeXMM)
		w.PXOR(temp, temp)
		w.PCMPEQD(arg, temp)
		w.PCMPEQQ(temp, temp)
		w.PTEST(arg, temp)
		ra.free[RegTypeXMM] = append(ra.free[RegTypeXMM], temp)
		return CCZero
	}

	if !full {
		zero := ra.takeFree(RegTypeXMM)
		w.PXOR(zero, zero)
		BlendUnusedSlots(w, arg, zero, usedWords16)
		ra.free[RegTypeXMM] = append(ra.free[RegTypeXMM], zero)
	}
	w.PTEST(arg, arg)
	return CCNotZero
}

// AccumReduceSumFloat horizontally adds the two float64 lanes of acc,
// leaving the sum in acc's low lane. Mirrors _accum_reduce_sum's '+' on
// FLOAT path.
func AccumReduceSumFloat(w *MachineCodeWriter, acc RealReg) {
	w.HADDPD(acc, acc)
}

// AccumReduceMulFloat swaps acc's two float64 lanes into a scratch
// register and multiplies, leaving the product in acc's low lane. Mirrors
// _accum_reduce_sum's '*' on FLOAT path (SHUFPD imm=0x01 then MULSD).
func AccumReduceMulFloat(w *MachineCodeWriter, ra *RegAlloc, acc RealReg) {
	tmp := ra.takeFree(RegTypeXMM)
	w.MOVAPD(tmp, acc)
	w.SHUFPD(tmp, tmp, 0x01)
	w.MULSD(acc, tmp)
	ra.free[RegTypeXMM] = append(ra.free[RegTypeXMM], tmp)
}

// AccumReduceSumInt extracts both 64-bit integer lanes of acc into GP
// scratch registers and adds them, returning the GP register holding the
// sum. Mirrors _accum_reduce_sum's '+' on INT path (two PEXTRQ then ADD).
func AccumReduceSumInt(w *MachineCodeWriter, ra *RegAlloc, acc RealReg) RealReg {
	lo := ra.takeFree(RegTypeGP)
	hi := ra.takeFree(RegTypeGP)
	w.PEXTRQ(lo, acc, 0)
	w.PEXTRQ(hi, acc, 1)
	w.ADD(lo, hi)
	ra.free[RegTypeGP] = append(ra.free[RegTypeGP], hi)
	return lo
}

// UpdateAtExit walks a guard descriptor's accumulator list at deopt time
// and reduces each live vector accumulator back down to its scalar seed
// value, dispatching on the reduction operator and element datatype.
// reg must return the physical register the accumulator currently lives
// in, and isFloat whether its datatype is DataTypeFloat. Mirrors
// vector_ext.py's _update_at_exit.
func UpdateAtExit(w *MachineCodeWriter, ra *RegAlloc, descr *ir.ResumeGuardDescr, reg func(ir.AccumInfo) RealReg, isFloat func(ir.AccumInfo) bool) {
	for _, info := range descr.AccumInfos {
		acc := reg(info)
		switch {
		case isFloat(info) && info.Operator == '+':
			AccumReduceSumFloat(w, acc)
		case isFloat(info) && info.Operator == '*':
			AccumReduceMulFloat(w, ra, acc)
		case !isFloat(info) && info.Operator == '+':
			AccumReduceSumInt(w, ra, acc)
		default:
			panic("amd64: unsupported accumulator reduction operator " + string(info.Operator))
		}
	}
}
