// Package vecapi holds constants shared across the vectorizer packages.
//
// This mirrors the teacher's wazevoapi.debug_consts.go: instead of spreading
// "where do we log this?" decisions across every file, the toggles live here
// so they can be flipped in one place while debugging a failing vectorization.
package vecapi

// ----- Debug logging -----
// These must be false by default. Flip them locally when chasing a bug.

const (
	SchedulerLoggingEnabled = false
	TransformLoggingEnabled = false
	RegAllocLoggingEnabled  = false
)

// ----- Output prints -----

const (
	PrintVectorizedOplist = false
	PrintMachineCodeHex   = false
)

// ----- Validations -----
// Unlike the logging toggles above, these default to on: they are cheap
// sanity checks on scheduler/pack invariants, not diagnostics, and should
// only be disabled once the vectorizer has seen real-world mileage.

const (
	ScheduleValidationEnabled = true
	PackValidationEnabled     = true
)

// VectorRegisterSize is the size, in bytes, of an x86-64 XMM register.
// The scheduler IR is architecture independent but this core only ever
// targets SSE2/SSE4.1/SSE4.2, so 16 is effectively a constant rather than
// a configuration knob; it is still threaded through CPUInfo so the IR
// layer never hard-codes it (see vecapi.CPUInfo).
const VectorRegisterSize = 16
