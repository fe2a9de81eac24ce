package ir

import "errors"

// ErrNotVectorizeable is the Go rendering of PyPy's NotAVectorizeableLoop:
// a pack violates a static invariant (heterogeneous types, a restriction
// mismatch). Callers should abort vectorization and keep the scalar trace;
// this is never a panic because it is an expected, recoverable outcome of
// trying to vectorize an arbitrary trace.
var ErrNotVectorizeable = errors.New("vectorizer: loop is not vectorizeable")

// ErrNotProfitable is the Go rendering of PyPy's NotAProfitableLoop: the
// pack is legal but the hardware has no efficient primitive for it (e.g.
// 8-byte or 1-byte integer multiply), or the cost model rejects the result.
var ErrNotProfitable = errors.New("vectorizer: loop vectorization is not profitable")

// CycleError reports that the scheduler could not make forward progress
// even after trashing a pack — a bug in the upstream dependency-graph
// construction, not a recoverable per-loop condition. The scheduler panics
// with a *CycleError; Vectorize recovers it at the top level and turns it
// into a returned error (see jit.Vectorize and DESIGN.md).
type CycleError struct {
	Msg string
}

func (e *CycleError) Error() string {
	return "vectorizer: schedule failed, cannot continue (possible cause: dependency cycle): " + e.Msg
}
