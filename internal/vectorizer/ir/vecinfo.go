package ir

// DataType is the coarse type of an SSA value for vectorization purposes.
type DataType byte

const (
	DataTypeVoid DataType = iota
	DataTypeInt
	DataTypeFloat
)

// String implements fmt.Stringer.
func (d DataType) String() string {
	switch d {
	case DataTypeInt:
		return "int"
	case DataTypeFloat:
		return "float"
	default:
		return "void"
	}
}

// VecInfo is the per-value vectorization metadata tracked for every SSA
// value: its datatype, element byte size, lane count, and signedness.
// Invariant: ByteSize*Count <= vector register size (16 on x86-64); scalars
// always have Count == 1. This is the Go rendering of VectorizationInfo
// (spec.md §3).
type VecInfo struct {
	DataType DataType
	ByteSize int
	Count    int
	Signed   bool
}

// IsVector reports whether the value lives in a SIMD register (Count > 1).
func (v VecInfo) IsVector() bool { return v.Count > 1 }

// Scalar returns a VecInfo describing a scalar (Count == 1) value of the
// given datatype/size/sign.
func Scalar(dt DataType, byteSize int, signed bool) VecInfo {
	return VecInfo{DataType: dt, ByteSize: byteSize, Count: 1, Signed: signed}
}

// Vector returns a VecInfo describing a count-wide vector value.
func Vector(dt DataType, byteSize, count int, signed bool) VecInfo {
	return VecInfo{DataType: dt, ByteSize: byteSize, Count: count, Signed: signed}
}
