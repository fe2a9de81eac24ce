// Package schedule implements the pack scheduler: the topological emit
// loop that walks a dependency graph honoring priority and pack membership,
// and the transformer that turns a scheduled pack into a vector operation.
// This is the Go rendering of schedule.py's Scheduler/SchedulerState/
// VecScheduleState and its module-level turn_into_vector/prepare_arguments
// family of functions.
package schedule

import (
	"github.com/tracevec/simdjit/internal/vectorizer/costmodel"
	"github.com/tracevec/simdjit/internal/vectorizer/ir"
	"github.com/tracevec/simdjit/internal/vectorizer/restrict"
)

// vbox is one entry of box_to_vbox: which lane of which vector-producing
// value a scalar value currently lives in.
type vbox struct {
	pos   int
	vecOp ir.ValueID
}

// noVBox is the box_to_vbox "not present" sentinel, mirroring the
// original's (-1, None).
var noVBox = vbox{pos: -1, vecOp: ir.NoValue}

// expansion is one entry of expanded_map: a previously-created expand/pack
// chain value, tagged with the argument-slot index it was built for (-1
// when a single argument was expanded, matching find_expanded's sentinel).
type expansion struct {
	vecOp ir.ValueID
	index int
}

// State carries everything the scheduler and transformer need across one
// vectorization run: the emitted instruction stream under construction,
// the priority worklist, and the box_to_vbox/expanded_map/accumulation side
// tables that stand in for information the original attaches directly to
// each box.
//
// schedule.py splits this into an abstract SchedulerState base (mostly
// no-op hooks) and a single concrete VecScheduleState subclass. Since this
// module never runs the scheduler over anything but a vectorizing state,
// the two are merged into one concrete type here — documented in
// DESIGN.md rather than carried as an unused abstraction.
type State struct {
	Graph *ir.Graph

	OpList               []ir.Op
	Worklist             []ir.NodeID
	InvariantOpList      []ir.Op
	InvariantVectorVars  []ir.ValueID
	Seen                 map[ir.ValueID]struct{}
	Renamer              *Renamer

	boxToVBox   map[ir.ValueID]vbox
	vecRegSize  int
	expandedMap map[ir.ValueID][]expansion
	CostModel   costmodel.CostModel
	inputArgs   map[ir.ValueID]struct{}
	PackSet     *ir.PackSet
	accumulation map[ir.ValueID]*ir.Pack
	FeatureGate restrict.FeatureGate

	vecInfo   map[ir.ValueID]ir.VecInfo
	nextID    ir.ValueID
	valueNode map[ir.ValueID]ir.NodeID
}

// NewState builds scheduler state for graph, vectorizing against packset
// using vecRegSize-byte registers and recording cost bookkeeping into cm.
// Mirrors VecScheduleState.__init__.
func NewState(graph *ir.Graph, packset *ir.PackSet, vecRegSize int, cm costmodel.CostModel, gate restrict.FeatureGate) *State {
	s := &State{
		Graph:        graph,
		Seen:         make(map[ir.ValueID]struct{}),
		Renamer:      NewRenamer(),
		boxToVBox:    make(map[ir.ValueID]vbox),
		vecRegSize:   vecRegSize,
		expandedMap:  make(map[ir.ValueID][]expansion),
		CostModel:    cm,
		inputArgs:    make(map[ir.ValueID]struct{}),
		PackSet:      packset,
		accumulation: make(map[ir.ValueID]*ir.Pack),
		FeatureGate:  gate,
		vecInfo:      make(map[ir.ValueID]ir.VecInfo),
	}
	for _, a := range graph.Loop.InputArgs {
		s.inputArgs[a] = struct{}{}
	}
	var maxID ir.ValueID
	s.valueNode = make(map[ir.ValueID]ir.NodeID, len(graph.Nodes))
	for i := range graph.Nodes {
		r := graph.Nodes[i].Op.Result
		if r > maxID {
			maxID = r
		}
		if r != ir.NoValue {
			s.valueNode[r] = ir.NodeID(i)
		}
	}
	s.nextID = maxID + 1
	return s
}

// VecRegSize returns the byte width of a full vector register for this run.
func (s *State) VecRegSize() int { return s.vecRegSize }

// AllocValue returns a fresh ValueID for a newly synthesized op, since this
// IR has no allocator of its own (the original just creates a new
// ResOperation object; identity is the allocation).
func (s *State) AllocValue() ir.ValueID {
	v := s.nextID
	s.nextID++
	return v
}

// VecInfoOf looks up the vectorization metadata for v. Satisfies
// ir.VecInfoLookup. This module keeps VecInfo in a side table rather than
// on Op itself (see ir.Pack's VecInfoLookup doc) since Go has nothing
// resembling the original's mutable "forwarded" slot on each box.
func (s *State) VecInfoOf(v ir.ValueID) ir.VecInfo {
	return s.vecInfo[v]
}

// SetVecInfo records the vectorization metadata produced for v. Every
// transform function that allocates a new vector-producing value must call
// this so later lookups (including this same run's) see it.
func (s *State) SetVecInfo(v ir.ValueID, vi ir.VecInfo) {
	s.vecInfo[v] = vi
}

// IsConst reports whether v is a literal constant rather than a value
// produced by some node in the graph — mirroring is_constant() on a box
// that was built as a ConstInt/ConstFloat. Exposed for
// restrict.OpRestrict.CheckOperation's isConst callback.
func (s *State) IsConst(v ir.ValueID) bool {
	id, ok := s.valueNode[v]
	if !ok {
		return false
	}
	return s.Graph.Node(id).Op.Const
}

// GetVectorOf returns the (lane position, vector-producing value) pair a
// scalar value currently resolves to, or ok=false if it is not known to
// live in any vector. Mirrors VecScheduleState.getvector_of_box.
func (s *State) GetVectorOf(arg ir.ValueID) (pos int, vecOp ir.ValueID, ok bool) {
	vb, found := s.boxToVBox[arg]
	if !found {
		return -1, ir.NoValue, false
	}
	return vb.pos, vb.vecOp, true
}

// SetVectorOf records that scalar value v lives at lane off of vecOp.
// Mirrors VecScheduleState.setvector_of_box.
func (s *State) SetVectorOf(v ir.ValueID, off int, vecOp ir.ValueID) {
	s.boxToVBox[v] = vbox{pos: off, vecOp: vecOp}
}

// RememberArgsInVector records, for every member of pack, that its
// argument at index now lives inside box (one lane per member, in pack
// order), stopping once lanes run out. Mirrors
// VecScheduleState.remember_args_in_vector.
func (s *State) RememberArgsInVector(pack *ir.Pack, index int, box ir.ValueID) {
	for i, nodeArg := range pack.ArgAt(index) {
		vi := s.VecInfoOf(nodeArg)
		if i >= vi.Count {
			break
		}
		s.SetVectorOf(nodeArg, i, box)
	}
}

// Expand records that vecOp was built by expanding the given scalar
// arguments (one entry if a single value was broadcast, several if they
// were gathered one at a time into a pack chain). Mirrors
// VecScheduleState.expand.
func (s *State) Expand(args []ir.ValueID, vecOp ir.ValueID) {
	index := 0
	if len(args) == 1 {
		index = -1
	}
	for _, a := range args {
		s.expandedMap[a] = append(s.expandedMap[a], expansion{vecOp: vecOp, index: index})
		index++
	}
}

// FindExpanded looks for a previously expanded value built from exactly
// this set of arguments, so the transformer can reuse it instead of
// re-emitting an identical expand/pack chain. Mirrors
// VecScheduleState.find_expanded.
func (s *State) FindExpanded(args []ir.ValueID) (ir.ValueID, bool) {
	if len(args) == 1 {
		for _, e := range s.expandedMap[args[0]] {
			if e.index == -1 {
				return e.vecOp, true
			}
		}
		return ir.NoValue, false
	}

	possible := make(map[ir.ValueID]bool)
	for i, arg := range args {
		var candidates []ir.ValueID
		candidateSet := make(map[ir.ValueID]bool)
		for _, e := range s.expandedMap[arg] {
			if e.index != i {
				continue
			}
			allowed, tracked := possible[e.vecOp]
			if !tracked || allowed {
				candidates = append(candidates, e.vecOp)
				candidateSet[e.vecOp] = true
			}
		}
		for _, c := range candidates {
			for key := range possible {
				if !candidateSet[key] {
					possible[key] = false
				}
			}
			possible[c] = true
		}
		if len(possible) == 0 {
			return ir.NoValue, false
		}
	}
	for v, ok := range possible {
		if ok {
			return v, true
		}
	}
	return ir.NoValue, false
}

// Profitable reports whether the accumulated vectorization is worth
// keeping. Mirrors VecScheduleState.profitable.
func (s *State) Profitable() bool {
	if s.CostModel == nil {
		return true
	}
	return s.CostModel.Profitable()
}

// Prepare seeds the worklist with every zero-in-degree node and primes the
// accumulator lookup table. Mirrors SchedulerState.prepare +
// VecScheduleState.prepare (PackSet.accumulate_prepare).
func (s *State) Prepare() {
	for i := range s.Graph.Nodes {
		if s.Graph.Nodes[i].DependsCount == 0 {
			s.Worklist = append([]ir.NodeID{ir.NodeID(i)}, s.Worklist...)
		}
	}
	if s.PackSet != nil {
		s.PackSet.AccumulatePrepare()
		for i := range s.PackSet.Packs {
			p := s.PackSet.Packs[i]
			if !p.IsAccumulating() {
				continue
			}
			for _, seed := range p.GetSeeds() {
				s.accumulation[seed] = p
			}
		}
	}
	for _, a := range s.Graph.Loop.Label.Args {
		s.Seen[a] = struct{}{}
	}
}

// HasMore reports whether any node remains to be scheduled. Mirrors
// SchedulerState.has_more.
func (s *State) HasMore() bool { return len(s.Worklist) > 0 }

// Delay reports whether node must wait: an accumulating pack waits for
// every external (non-pack) dependency; any other pack waits for every
// member's dependencies to clear; a lone node is never delayed here
// (Scheduler.delay checks its DependsCount). Mirrors
// VecScheduleState.delay.
func (s *State) Delay(node *ir.Node) bool {
	if node.Pack == nil {
		return false
	}
	pack := node.Pack
	if pack.IsAccumulating() {
		for _, id := range pack.Operations {
			n := s.Graph.Node(id)
			for _, depID := range n.Provides {
				dep := s.Graph.Node(depID)
				if dep.Pack != pack {
					return true
				}
			}
		}
		return false
	}
	for _, id := range pack.Operations {
		if s.Graph.Node(id).DependsCount > 0 {
			return true
		}
	}
	return false
}

// PreEmit attaches accumulator bookkeeping to a guard's resume descriptor
// just before the node is handed to mark_emitted. Mirrors
// VecScheduleState.pre_emit.
func (s *State) PreEmit(node *ir.Node) {
	op := &node.Op
	if !op.Opcode.IsGuard() {
		return
	}
	descr := op.GuardDescr
	if descr == nil {
		return
	}
	for i, arg := range op.FailArgs {
		if arg == ir.NoValue {
			continue
		}
		accum, ok := s.accumulation[arg]
		if !ok {
			continue
		}
		descr.Attach(ir.AccumInfo{FailArgIndex: i, Original: arg, Operator: accum.Operator()})
		seed := accum.GetLeftmostSeed()
		op.FailArgs[i] = s.Renamer.Resolve(seed)
	}
}

// PostEmit is a no-op hook kept for symmetry with schedule.py's
// post_emit(node), which every concrete state in the original also leaves
// empty.
func (s *State) PostEmit(*ir.Node) {}

// EnsureArgsUnpacked rewrites op's arguments (and fail arguments) in place,
// inserting a VEC_UNPACK for any argument still living packed inside a
// vector where a scalar consumer needs it bare. Mirrors
// VecScheduleState.ensure_args_unpacked.
func (s *State) EnsureArgsUnpacked(op *ir.Op) {
	for i, arg := range op.Args {
		if s.IsConst(arg) {
			continue
		}
		got := s.EnsureUnpacked(i, arg)
		if got != arg {
			op.Args[i] = got
		}
	}
	if !op.Opcode.IsGuard() {
		return
	}
	for i, arg := range op.FailArgs {
		if arg == ir.NoValue || s.IsConst(arg) {
			continue
		}
		got := s.EnsureUnpacked(i, arg)
		if got != arg {
			op.FailArgs[i] = got
		}
	}
}

// EnsureUnpacked returns a scalar value equivalent to arg, inserting a
// VEC_UNPACK of whatever vector currently holds it if necessary. Mirrors
// VecScheduleState.ensure_unpacked.
func (s *State) EnsureUnpacked(index int, arg ir.ValueID) ir.ValueID {
	if _, seen := s.Seen[arg]; seen {
		return arg
	}
	pos, vecOp, ok := s.GetVectorOf(arg)
	if !ok {
		return arg
	}
	for _, v := range s.InvariantVectorVars {
		if v == vecOp {
			return arg
		}
	}
	if _, accumulating := s.accumulation[arg]; accumulating {
		return arg
	}
	vi := s.VecInfoOf(vecOp)
	result := s.AllocValue()
	unpackOp := ir.Op{
		Opcode: ir.OpVecUnpack,
		Args:   []ir.ValueID{vecOp, ir.ValueID(pos), 1},
		Result: result,
	}
	s.SetVecInfo(result, ir.Scalar(vi.DataType, vi.ByteSize, vi.Signed))
	s.Renamer.StartRenaming(arg, result)
	s.Seen[result] = struct{}{}
	s.CostModel.RecordVectorUnpack(vecOp, pos, 1)
	s.OpList = append(s.OpList, unpackOp)
	return result
}

// PreventSignext rejects a cast whose byte sizes straddle 4 bytes asymmetrically
// in a way this ISA cannot encode (mirrors VecScheduleState._prevent_signext;
// called by CropVector; restrict.CheckIfPackSupported uses its own
// preventSignext).
func (s *State) PreventSignext(outSize, inSize int) error {
	if inSize != outSize && (outSize < 4 || inSize < 4) {
		return ir.ErrNotProfitable
	}
	return nil
}

// PostSchedule finalizes the loop after walk_and_emit completes: renames
// the jump, unpacks anything the jump still needs packed, and (if any
// values were hoisted invariant) augments the label/jump with the extra
// arguments. Mirrors SchedulerState.post_schedule.
func (s *State) PostSchedule() {
	loop := &s.Graph.Loop
	s.Renamer.Rename(&loop.Jump)
	s.EnsureArgsUnpacked(&loop.Jump)
	loop.Operations = s.OpList
	loop.Prefix = s.InvariantOpList

	if len(s.InvariantVectorVars)+len(s.InvariantOpList) == 0 {
		return
	}

	labelArgs := append(append([]ir.ValueID{}, loop.Label.Args...), s.InvariantVectorVars...)
	prefixLabel := loop.Label
	prefixLabel.Args = labelArgs
	s.Renamer.Rename(&prefixLabel)
	loop.PrefixLabel = &prefixLabel

	jumpArgs := append(append([]ir.ValueID{}, loop.Jump.Args...), s.InvariantVectorVars...)
	newJump := loop.Jump
	newJump.Args = jumpArgs
	s.Renamer.Rename(&newJump)
	loop.Jump = newJump
}
