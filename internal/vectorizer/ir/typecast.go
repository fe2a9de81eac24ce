package ir

// Typecast byte sizes are fixed per opcode (unlike VEC_INT_SIGNEXT, whose
// sizes are chosen per occurrence by the transformer and therefore carried
// on the Op/VecInfo rather than here). Mirrors the various
// cast_from_bytesize()/cast_to_bytesize()/casts_down() methods scattered
// across rpython's ResOperation subclasses for each concrete typecast.
func castByteSizes(op Opcode) (from, to int) {
	switch op {
	case OpCastFloatToSingleFloat:
		return 8, 4
	case OpCastSingleFloatToFloat:
		return 4, 8
	case OpCastFloatToInt:
		return 8, 4
	case OpCastIntToFloat:
		return 4, 8
	default:
		panic("BUG: castByteSizes on non-typecast opcode")
	}
}

// castsDown reports whether the cast narrows its element (casts_down() in
// the original source).
func castsDown(op Opcode) bool {
	from, to := castByteSizes(op)
	return to < from
}

// castInputByteSize mirrors Op.cast_input_bytesize(vec_reg_size). For every
// typecast this core vectorizes, the narrowing side's *input* operand is
// exactly what must fill a full vector register (e.g. 2 doubles = 16 bytes
// feeding a FLOAT_TO_INT cast that only half-fills the output register with
// 2 int32s); the original source computes this as simply vec_reg_size
// itself (see the commented-out duplicate call in schedule.py's pack_load,
// left there as a breadcrumb that the two call sites agree).
func castInputByteSize(_, _, vecRegSize int) int {
	return vecRegSize
}

// CastFromByteSize, CastToByteSize, CastsDown and CastInputByteSize expose
// the typecast arithmetic above to other packages (restrict's
// OpcountFillingVectorRegister needs it exactly as schedule.py's OpRestrict
// does via op.cast_from_bytesize()/op.cast_to_bytesize()/op.casts_down()/
// op.cast_input_bytesize()).
func CastFromByteSize(op Opcode) int { from, _ := castByteSizes(op); return from }
func CastToByteSize(op Opcode) int   { _, to := castByteSizes(op); return to }
func CastsDown(op Opcode) bool       { return castsDown(op) }
func CastInputByteSize(op Opcode, vecRegSize int) int {
	from, to := castByteSizes(op)
	return castInputByteSize(from, to, vecRegSize)
}
