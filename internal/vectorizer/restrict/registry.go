package restrict

import (
	"fmt"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
)

// Shared TypeRestrict instances, mirroring trans.TR_ANY/TR_ANY_FLOAT/
// TR_ANY_INTEGER/TR_FLOAT_2/TR_DOUBLE_2/TR_INT32_2.
var (
	TRAny         = &TypeRestrict{Type: AnyType, ByteSize: AnySize, Count: AnyCount, Sign: AnySign}
	TRAnyFloat    = &TypeRestrict{Type: ir.DataTypeFloat, ByteSize: AnySize, Count: AnyCount, Sign: AnySign}
	TRAnyInteger  = &TypeRestrict{Type: ir.DataTypeInt, ByteSize: AnySize, Count: AnyCount, Sign: AnySign}
	TRFloat2      = &TypeRestrict{Type: ir.DataTypeFloat, ByteSize: 4, Count: 2, Sign: AnySign}
	TRDouble2     = &TypeRestrict{Type: ir.DataTypeFloat, ByteSize: 8, Count: 2, Sign: AnySign}
	TRInt32_2     = &TypeRestrict{Type: ir.DataTypeInt, ByteSize: 4, Count: 2, Sign: AnySign}
)

var (
	orMatchSizeTypeFirstInt   = &OpRestrict{Kind: KindMatchSizeTypeFirst, Argument: []*TypeRestrict{TRAnyInteger, TRAnyInteger}}
	orMatchSizeTypeFirstFloat = &OpRestrict{Kind: KindMatchSizeTypeFirst, Argument: []*TypeRestrict{TRAnyFloat, TRAnyFloat}}
	storeRestrict             = &OpRestrict{Kind: KindStore, Argument: []*TypeRestrict{nil, nil, TRAny}}
	loadRestrict              = &OpRestrict{Kind: KindLoad}
	guardRestrict             = &OpRestrict{Kind: KindGuard, Argument: []*TypeRestrict{TRAnyInteger}}
)

// Registry maps a (vector) opcode to the OpRestrict governing its
// arguments, mirroring trans.MAPPING. Built once at package init since the
// table is fixed for this ISA, same as the original's class-level dict.
var Registry = map[ir.Opcode]*OpRestrict{
	ir.OpIntAdd: orMatchSizeTypeFirstInt,
	ir.OpIntSub: orMatchSizeTypeFirstInt,
	ir.OpIntMul: orMatchSizeTypeFirstInt,
	ir.OpIntAnd: orMatchSizeTypeFirstInt,
	ir.OpIntOr:  orMatchSizeTypeFirstInt,
	ir.OpIntXor: orMatchSizeTypeFirstInt,
	ir.OpIntEq:  orMatchSizeTypeFirstInt,
	ir.OpIntNe:  orMatchSizeTypeFirstInt,

	ir.OpFloatAdd:     orMatchSizeTypeFirstFloat,
	ir.OpFloatSub:     orMatchSizeTypeFirstFloat,
	ir.OpFloatMul:     orMatchSizeTypeFirstFloat,
	ir.OpFloatTrueDiv: orMatchSizeTypeFirstFloat,
	ir.OpFloatAbs:     NewPlain(TRAnyFloat),
	ir.OpFloatNeg:     NewPlain(TRAnyFloat),

	ir.OpRawStore:      storeRestrict,
	ir.OpSetArrayItem:  storeRestrict,
	ir.OpRawLoad:       loadRestrict,
	ir.OpGetArrayItem:  loadRestrict,

	ir.OpGuardTrue:  guardRestrict,
	ir.OpGuardFalse: guardRestrict,

	// irregular
	ir.OpVecIntSignext: NewPlain(TRAnyInteger),

	ir.OpCastFloatToSingleFloat: NewPlain(TRDouble2),
	// weird but the trace stores single floats in int-typed values
	ir.OpCastSingleFloatToFloat: NewPlain(TRInt32_2),
	ir.OpCastFloatToInt:         NewPlain(TRDouble2),
	ir.OpCastIntToFloat:         NewPlain(TRInt32_2),

	ir.OpFloatEq:     NewPlain(TRAnyFloat, TRAnyFloat),
	ir.OpFloatNe:     NewPlain(TRAnyFloat, TRAnyFloat),
	ir.OpIntIsTrue:   NewPlain(TRAnyInteger, TRAnyInteger),
}

// Get looks up the OpRestrict for a (scalar or vector) opcode. Mirrors
// trans.get, which fails the whole transformation if nothing is registered.
func Get(op ir.Opcode) (*OpRestrict, error) {
	r, ok := Registry[op]
	if !ok {
		return nil, fmt.Errorf("%w: no OpRestrict registered for %s", ir.ErrNotVectorizeable, op)
	}
	return r, nil
}

// FeatureGate is the minimal CPU-capability surface CheckIfPackSupported
// needs. isa/amd64.FeatureSet satisfies this structurally; restrict itself
// never imports isa/amd64; to keep ir -> restrict -> schedule -> isa/amd64
// a one-way chain (schedule.py has no such layering concern, it's all one
// module, but this module's package boundaries make the direction matter).
type FeatureGate interface {
	HasSSE41() bool
}

// CheckIfPackSupported rejects packs this ISA cannot actually execute:
// narrowing typecasts to int16/int8 (unimplemented sign-extend encodings),
// and INT_MUL at 1-byte or 8-byte element size (no packed byte/qword
// multiply on SSE2/SSE4.1). Additionally gates 4-byte INT_MUL on
// FeatureSet.HasSSE41, since PMULLD is an SSE4.1 instruction while PMULLW
// (2-byte) is plain SSE2 — a supplement over spec.md's stated 1/8-byte gap
// (SPEC_FULL.md §10). Mirrors schedule.py's check_if_pack_supported.
func CheckIfPackSupported(left *ir.Op, lookup ir.VecInfoLookup, gate FeatureGate) error {
	vi := lookup(left.Result)
	insize := vi.ByteSize

	if left.Opcode.IsTypecast() {
		if err := preventSignext(ir.CastToByteSize(left.Opcode), ir.CastFromByteSize(left.Opcode)); err != nil {
			return err
		}
	}

	if left.Opcode == ir.OpIntMul {
		switch insize {
		case 8, 1:
			return fmt.Errorf("%w: int_mul at %d-byte elements has no packed multiply", ir.ErrNotProfitable, insize)
		case 4:
			if gate != nil && !gate.HasSSE41() {
				return fmt.Errorf("%w: int_mul at 4-byte elements needs PMULLD (SSE4.1)", ir.ErrNotProfitable)
			}
		}
	}
	return nil
}

// preventSignext rejects sign-extensions to/from 1 or 2 byte elements: the
// amd64 emitter only encodes 4<->8 byte lane sign-extends. Mirrors
// VecScheduleState._prevent_signext.
func preventSignext(toSize, fromSize int) error {
	if toSize == 1 || toSize == 2 || fromSize == 1 || fromSize == 2 {
		return fmt.Errorf("%w: sign-extend to/from byte or short lanes is unsupported", ir.ErrNotVectorizeable)
	}
	return nil
}
