// Package restrict holds the per-opcode argument type/size/count
// restrictions the transformer consults while turning a pack into a vector
// operation, and the opcode -> restriction registry it looks them up from.
// This is the Go rendering of schedule.py's TypeRestrict/OpRestrict class
// hierarchy and its module-level trans.MAPPING table.
package restrict

import (
	"fmt"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

// Sentinel values for TypeRestrict fields that mean "don't care", mirroring
// TypeRestrict.ANY_TYPE/ANY_SIZE/ANY_SIGN/ANY_COUNT.
const (
	AnyType  = ir.DataTypeVoid
	AnySize  = -1
	AnySign  = -1
	AnyCount = -1
)

// Sign values, mirroring TypeRestrict.SIGNED/UNSIGNED.
const (
	Signed   = 1
	Unsigned = 0
)

// TypeRestrict constrains one argument slot of a vector operation: its
// element datatype, byte size, lane count, and signedness. Any field may be
// left at its "any" sentinel. Mirrors schedule.py's TypeRestrict.
type TypeRestrict struct {
	Type     ir.DataType
	ByteSize int
	Count    int
	Sign     int
}

// AnySizeOK reports whether this restriction leaves byte size unconstrained.
func (r TypeRestrict) AnySizeOK() bool { return r.ByteSize == AnySize }

// AnyCountOK reports whether this restriction leaves lane count unconstrained.
func (r TypeRestrict) AnyCountOK() bool { return r.Count == AnyCount }

// Check verifies a value's VecInfo satisfies the restriction, returning
// ir.ErrNotVectorizeable wrapped with detail on the first violated
// constraint. Mirrors TypeRestrict.check.
func (r TypeRestrict) Check(vi ir.VecInfo) error {
	if vi.DataType == ir.DataTypeVoid {
		return fmt.Errorf("%w: value has no datatype", ir.ErrNotVectorizeable)
	}
	if r.Type != AnyType && r.Type != vi.DataType {
		return fmt.Errorf("%w: type mismatch %s != %s", ir.ErrNotVectorizeable, r.Type, vi.DataType)
	}
	if vi.ByteSize <= 0 {
		return fmt.Errorf("%w: non-positive bytesize", ir.ErrNotVectorizeable)
	}
	if !r.AnySizeOK() && r.ByteSize != vi.ByteSize {
		return fmt.Errorf("%w: bytesize mismatch %d != %d", ir.ErrNotVectorizeable, r.ByteSize, vi.ByteSize)
	}
	if vi.Count <= 0 {
		return fmt.Errorf("%w: non-positive count", ir.ErrNotVectorizeable)
	}
	if r.Count != AnyCount && vi.Count < r.Count {
		return fmt.Errorf("%w: count mismatch %d < %d", ir.ErrNotVectorizeable, vi.Count, r.Count)
	}
	if r.Sign != AnySign && boolToSign(vi.Signed) != r.Sign {
		return fmt.Errorf("%w: sign mismatch", ir.ErrNotVectorizeable)
	}
	return nil
}

func boolToSign(signed bool) int {
	if signed {
		return Signed
	}
	return Unsigned
}

// MaxInputCount returns the lane count that must be used to fill this slot:
// the restriction's own count if fixed, otherwise the caller-supplied count.
// Mirrors TypeRestrict.max_input_count.
func (r TypeRestrict) MaxInputCount(count int) int {
	if r.Count != AnyCount {
		return r.Count
	}
	return count
}

// Kind tags which OpRestrict behavior a given entry uses. Tagged-struct
// dispatch (a Kind field + switch) rather than an interface per restriction
// kind, mirroring the teacher's avoidance of per-case vtables on hot-path
// dispatch tables (backend/isa/amd64/instr.go's instructionKind tag).
type Kind byte

const (
	KindPlain Kind = iota
	KindGuard
	KindLoad
	KindStore
	KindMatchSizeTypeFirst
)

// OpRestrict is one entry of the opcode registry: which argument slots are
// constrained by which TypeRestrict, and how the opcode computes how many
// of itself fill a vector register. Mirrors schedule.py's OpRestrict and its
// GuardRestrict/LoadRestrict/StoreRestrict/OpMatchSizeTypeFirst subclasses,
// collapsed into one tagged struct per DESIGN NOTES.
type OpRestrict struct {
	Kind     Kind
	Argument []*TypeRestrict // nil entry at index i means "ignore this argument"
}

// NewPlain builds a plain OpRestrict (schedule.py's bare OpRestrict()).
func NewPlain(args ...*TypeRestrict) *OpRestrict {
	return &OpRestrict{Kind: KindPlain, Argument: args}
}

// CheckOperation runs any extra whole-operation validation this kind of
// restriction performs; only OpMatchSizeTypeFirst does anything here.
// Mirrors OpRestrict.check_operation / OpMatchSizeTypeFirst.check_operation.
func (o *OpRestrict) CheckOperation(op *ir.Op, lookup ir.VecInfoLookup, isConst func(ir.ValueID) bool) error {
	if o.Kind != KindMatchSizeTypeFirst {
		return nil
	}
	i := 0
	for i < len(op.Args) && isConst(op.Args[i]) {
		i++
	}
	if i >= len(op.Args) {
		return nil
	}
	seed := lookup(op.Args[i])
	for _, arg := range op.Args {
		if isConst(arg) {
			continue
		}
		vi := lookup(arg)
		if vi.ByteSize != seed.ByteSize || vi.DataType != seed.DataType {
			return ir.ErrNotVectorizeable
		}
	}
	return nil
}

// MustCropVector reports whether the argument at index needs a
// sign-extend/truncate cast inserted before this op can consume it: true
// when the restriction fixes a byte size that disagrees with the argument's
// current one. Mirrors OpRestrict.must_crop_vector / StoreRestrict's
// override (which instead compares against the store descriptor's item
// size).
func (o *OpRestrict) MustCropVector(index int, curByteSize int, storeItemSize int) bool {
	if o.Kind == KindStore {
		return storeItemSize != curByteSize
	}
	if index >= len(o.Argument) || o.Argument[index] == nil {
		return false
	}
	r := o.Argument[index]
	return !r.AnySizeOK() && r.ByteSize != curByteSize
}

// CropToSize returns the byte size an argument must be cropped to. Mirrors
// OpRestrict.crop_to_size / StoreRestrict.crop_to_size.
func (o *OpRestrict) CropToSize(index int, storeItemSize int) int {
	if o.Kind == KindStore {
		return storeItemSize
	}
	return o.Argument[index].ByteSize
}

// OpcountFillingVectorRegister answers "how many scalar occurrences of this
// opcode does one machine vector instruction of vecRegSize bytes replace?"
// Mirrors OpRestrict.opcount_filling_vector_register and its Guard/Load/
// Store overrides.
func (o *OpRestrict) OpcountFillingVectorRegister(op *ir.Op, vecRegSize int, lookup ir.VecInfoLookup) int {
	switch o.Kind {
	case KindGuard:
		vi := lookup(op.Args[0])
		return vecRegSize / vi.ByteSize
	case KindLoad, KindStore:
		return vecRegSize / op.Descr.ItemSize
	default:
		if op.Opcode.IsTypecast() {
			if ir.CastsDown(op.Opcode) {
				return vecRegSize / ir.CastFromByteSize(op.Opcode)
			}
			return vecRegSize / ir.CastToByteSize(op.Opcode)
		}
		vi := lookup(op.Result)
		return vecRegSize / vi.ByteSize
	}
}
