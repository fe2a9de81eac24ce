package amd64

import "golang.org/x/sys/cpu"

// FeatureSet reports which SSE extensions the running CPU supports. Its
// interface shape is grounded on the teacher's internal/platform
// CpuFeatureFlags (Has/HasExtra gating instruction availability); the
// detection itself is backed by golang.org/x/sys/cpu because the
// teacher's own amd64 CPUID detection source (asm-based) was not present
// in the retrieval pack — janpfeifer-go-highway's dispatch_amd64.go uses
// the same x/sys/cpu package for portable feature gating, and that usage
// is the template here.
type FeatureSet struct {
	sse2  bool
	sse41 bool
	sse42 bool
}

// HasSSE2 reports SSE2 support. Present on every amd64 CPU; kept as an
// explicit field rather than assumed true so tests can construct a
// FeatureSet describing a hypothetical CPU without it.
func (f FeatureSet) HasSSE2() bool { return f.sse2 }

// HasSSE41 reports SSE4.1 support (PMULLD, PBLENDW, PTEST, PEXTRD/Q,
// PINSRD/Q, INSERTPS).
func (f FeatureSet) HasSSE41() bool { return f.sse41 }

// HasSSE42 reports SSE4.2 support (PCMPGTQ and friends; unused by the
// instruction table in DESIGN.md's scope today, detected for completeness).
func (f FeatureSet) HasSSE42() bool { return f.sse42 }

// DetectFeatureSet reads the running CPU's capabilities via
// golang.org/x/sys/cpu.
func DetectFeatureSet() FeatureSet {
	return FeatureSet{
		sse2:  cpu.X86.HasSSE2,
		sse41: cpu.X86.HasSSE41,
		sse42: cpu.X86.HasSSE42,
	}
}

// NewFixedFeatureSet builds a FeatureSet with fixed capabilities, for
// tests that need to exercise a specific (including downlevel) CPU without
// depending on the test runner's actual hardware.
func NewFixedFeatureSet(sse2, sse41, sse42 bool) FeatureSet {
	return FeatureSet{sse2: sse2, sse41: sse41, sse42: sse42}
}
