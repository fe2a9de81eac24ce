package ir

// PackSet is the collection of candidate Packs/AccumPacks already formed by
// the (out of scope) combiner, handed to the scheduler. Mirrors spec.md §6's
// PackSet external input.
type PackSet struct {
	Packs []*Pack

	// accumulators maps the seed value of an accumulating pack to the pack
	// itself, mirroring VecScheduleState.accumulation — populated by
	// AccumulatePrepare so the scheduler's pre_emit can attach AccumInfo to
	// guard descriptors without re-deriving which packs are reductions.
	accumulators map[ValueID]*Pack
}

// NewPackSet wraps a list of packs (schedule.py keeps a flat PackSet
// collaborator; this module gives it a constructor for discoverability).
func NewPackSet(packs []*Pack) *PackSet {
	return &PackSet{Packs: packs}
}

// AccumulatePrepare populates the seed->pack map used by pre_emit to attach
// AccumInfo to guard descriptors. Mirrors schedule.py's
// PackSet.accumulate_prepare (called from VecScheduleState.prepare).
func (ps *PackSet) AccumulatePrepare() {
	ps.accumulators = make(map[ValueID]*Pack)
	for _, p := range ps.Packs {
		if !p.IsAccumulating() {
			continue
		}
		for _, seed := range p.GetSeeds() {
			ps.accumulators[seed] = p
		}
	}
}

// AccumulatorFor returns the AccumPack whose carry-chain seed is v, if any.
func (ps *PackSet) AccumulatorFor(v ValueID) (*Pack, bool) {
	p, ok := ps.accumulators[v]
	return p, ok
}

// AccumInfo is attached to a guard descriptor for every reduction
// accumulator live across that guard, so the emitter's guard-exit code can
// recombine lanes back into a scalar. Mirrors resume.AccumInfo (spec.md §6).
type AccumInfo struct {
	FailArgIndex int
	Original     ValueID
	Operator     byte // '+' or '*'
}

// ResumeGuardDescr is the Go rendering of the resume/deopt descriptor a
// guard Op points to: it carries the linked accumulator info the emitter
// consumes at guard exit (spec.md §6's rd_vector_info).
type ResumeGuardDescr struct {
	AccumInfos []AccumInfo
}

// Attach appends an AccumInfo, mirroring
// AbstractResumeGuardDescr.attach_vector_info.
func (d *ResumeGuardDescr) Attach(info AccumInfo) {
	d.AccumInfos = append(d.AccumInfos, info)
}
