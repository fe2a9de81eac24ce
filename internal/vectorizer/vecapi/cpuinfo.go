package vecapi

// CPUInfo is the minimal target-machine description the scheduler and cost
// model need: how many bytes a full vector register holds. Mirrors spec.md
// §6's CPUInfo collaborator; FixedCPUInfo below is the implementation this
// module provides (isa/amd64.FeatureSet does not implement it).
type CPUInfo interface {
	VectorRegisterSize() int
}

// FixedCPUInfo is the simplest CPUInfo: a constant register width, useful
// for tests that don't care about CPU feature gating.
type FixedCPUInfo int

func (f FixedCPUInfo) VectorRegisterSize() int { return int(f) }
