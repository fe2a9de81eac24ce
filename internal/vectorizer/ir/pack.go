package ir

// Pack is an ordered set of NodeIDs whose scalar operations are isomorphic
// (same opcode and compatible descriptors) and independent (no member
// depends on another). This is the Go rendering of schedule.py's Pack.
//
// FULL is the pack_load sentinel meaning "exactly fills a vector register".
const FULL = 0

type Pack struct {
	graph *Graph // back-reference, needed for leftmost()/rightmost() op lookups

	// Operations holds the member node IDs in trace order.
	Operations []NodeID

	// set by AccumPack; zero-valued for a plain Pack.
	operator byte // 0, '+', '*'
	position int  // argument index of the accumulator; -1 if not accumulating
}

// NewPack constructs a Pack over the given nodes and marks each node as a
// member (schedule.py: Pack.__init__ -> update_pack_of_nodes).
func NewPack(g *Graph, nodes []NodeID) *Pack {
	p := &Pack{graph: g, Operations: nodes, position: -1}
	p.updatePackOfNodes()
	return p
}

// NewPair is a two-element Pack, the unit the (out of scope) combiner
// starts from before chaining pairs into longer packs via
// RightmostMatchesLeftmost. Supplemented per SPEC_FULL.md §13.
func NewPair(g *Graph, left, right NodeID) *Pack {
	return NewPack(g, []NodeID{left, right})
}

func (p *Pack) updatePackOfNodes() {
	for i, id := range p.Operations {
		n := p.graph.Node(id)
		n.Pack = p
		n.PackPosition = i
	}
}

// Clear detaches every member node from this pack (schedule.py: Pack.clear,
// used by try_to_trash_pack to recover from a scheduling deadlock).
func (p *Pack) Clear() {
	for _, id := range p.Operations {
		n := p.graph.Node(id)
		n.Pack = nil
		n.PackPosition = -1
	}
}

// NumOps returns the pack cardinality.
func (p *Pack) NumOps() int { return len(p.Operations) }

// Leftmost returns the first member's Op.
func (p *Pack) Leftmost() *Op { return &p.graph.Node(p.Operations[0]).Op }

// LeftmostNode returns the first member's Node.
func (p *Pack) LeftmostNode() *Node { return p.graph.Node(p.Operations[0]) }

// Rightmost returns the last member's Op.
func (p *Pack) Rightmost() *Op { return &p.graph.Node(p.Operations[len(p.Operations)-1]).Op }

// Opnum returns the (scalar) opcode shared by every member.
func (p *Pack) Opnum() Opcode { return p.Leftmost().Opcode }

// IsAccumulating reports whether this is (dynamically) an AccumPack. A
// plain Pack always answers false; AccumPack overrides this by construction
// (see below) — Go has no virtual dispatch here, so the flag lives on Pack
// itself and AccumPack just sets it via NewAccumPack.
func (p *Pack) IsAccumulating() bool { return p.operator != 0 }

// Operator returns '+' or '*' for an accumulating pack, 0 otherwise.
func (p *Pack) Operator() byte { return p.operator }

// Position returns the accumulator argument index for an accumulating
// pack, -1 otherwise.
func (p *Pack) Position() int { return p.position }

// vecinfoOf is a small helper standing in for schedule.py's
// forwarded_vecinfo(value): in this module VecInfo travels with the value
// through a side table owned by the scheduler state, so Pack itself cannot
// look it up without one; PackLoad and friends take it as a parameter.
type VecInfoLookup func(ValueID) VecInfo

// PackLoad returns the load a vector register would hold just after
// executing this pack: negative means room to spare, zero means exactly
// full, positive means overflow. Mirrors schedule.py's Pack.pack_load,
// dispatched by op class exactly as spec.md §4.1 describes.
func (p *Pack) PackLoad(vecRegSize int, lookup VecInfoLookup) int {
	n := p.NumOps()
	if n == 0 {
		return -1
	}

	left := p.Leftmost()

	if left.ReturnsVoid() {
		switch {
		case left.Opcode.IsPrimitiveStore():
			return left.Descr.ItemSize*n - vecRegSize
		case left.Opcode.IsGuard():
			vi := lookup(left.Args[0])
			return vi.ByteSize*n - vecRegSize
		default:
			return 0
		}
	}

	if left.Opcode.IsTypecast() {
		castFrom, castTo := castByteSizes(left.Opcode)
		if castsDown(left.Opcode) {
			size := castInputByteSize(castFrom, castTo, vecRegSize)
			return castFrom*n - size
		}
		return castTo*n - vecRegSize
	}

	vi := lookup(left.Result)
	return vi.ByteSize*n - vecRegSize
}

// IsFull reports whether the pack exactly fills a vector register.
func (p *Pack) IsFull(vecRegSize int, lookup VecInfoLookup) bool {
	return p.PackLoad(vecRegSize, lookup) == FULL
}

// Clone returns a fresh Pack (or AccumPack, for an accumulating receiver)
// over the given nodes, carrying over operator/position. Mirrors
// schedule.py's Pack.clone/AccumPack.clone.
func (p *Pack) Clone(nodes []NodeID) *Pack {
	np := NewPack(p.graph, nodes)
	np.operator = p.operator
	np.position = p.position
	return np
}

// Split repeatedly slices full-register-sized prefixes off the pack until
// it fits, appending the overflow as new packs to packlist, and discarding
// a too-small remainder back to scalar. Mirrors schedule.py's Pack.split.
func (p *Pack) Split(packlist *[]*Pack, vecRegSize int, lookup VecInfoLookup, fillCount func(*Pack) int) {
	cur := p
	for cur.PackLoad(vecRegSize, lookup) > FULL {
		cur.Clear()
		oplist, newOplist := cur.sliceOperations(fillCount)
		cur.Operations = oplist
		cur.updatePackOfNodes()

		newPack := cur.Clone(newOplist)
		load := newPack.PackLoad(vecRegSize, lookup)
		if load >= FULL {
			cur.updatePackOfNodes()
			*packlist = append(*packlist, newPack)
			cur = newPack
		} else {
			newPack.Clear()
			newPack.Operations = nil
			break
		}
	}
	cur.updatePackOfNodes()
}

func (p *Pack) sliceOperations(fillCount func(*Pack) int) (head, tail []NodeID) {
	count := fillCount(p)
	if count <= 0 {
		panic("BUG: opcount_filling_vector_register returned <= 0")
	}
	if count >= len(p.Operations) {
		return p.Operations, nil
	}
	return p.Operations[:count], p.Operations[count:]
}

// RightmostMatchesLeftmost reports whether this pack's last node is the
// same node as other's first node, meaning an external combiner may chain
// them into one longer pack. For accumulating packs the accumulator
// argument position must also match. Mirrors
// schedule.py's Pack.rightmost_match_leftmost.
func (p *Pack) RightmostMatchesLeftmost(other *Pack) bool {
	if p.IsAccumulating() {
		if !other.IsAccumulating() || p.position != other.position {
			return false
		}
	}
	return p.Operations[len(p.Operations)-1] == other.Operations[0]
}

// ArgAt returns the argument at index for every pack member, in pack
// order — the pack_args_index list schedule.py's various helpers build
// with a list comprehension before passing it along (e.g. argument_vectors,
// remember_args_in_vector).
func (p *Pack) ArgAt(index int) []ValueID {
	out := make([]ValueID, len(p.Operations))
	for i, id := range p.Operations {
		out[i] = p.graph.Node(id).Op.Args[index]
	}
	return out
}

// ArgumentVectors returns, for argument slot index, the distinct (position,
// vector-op) pairs that the pack members' argument at that slot currently
// resolve to, in pack order with consecutive duplicates collapsed. Mirrors
// schedule.py's Pack.argument_vectors.
func (p *Pack) ArgumentVectors(index int, getVectorOf func(ValueID) (int, ValueID, bool)) []ScatteredArg {
	var vectors []ScatteredArg
	var last ValueID
	haveLast := false
	for _, id := range p.Operations {
		arg := p.graph.Node(id).Op.Args[index]
		pos, vecOp, ok := getVectorOf(arg)
		if !ok {
			continue
		}
		if !haveLast || vecOp != last {
			vectors = append(vectors, ScatteredArg{Pos: pos, VecOp: vecOp})
			last, haveLast = vecOp, true
		}
	}
	return vectors
}

// ScatteredArg is one entry of ArgumentVectors: the lane position and the
// vector-producing value it came from.
type ScatteredArg struct {
	Pos   int
	VecOp ValueID
}

// --- AccumPack ---

// SupportedReduceOps lists the reductions the vectorizer understands,
// mirroring schedule.py's AccumPack.SUPPORTED.
var SupportedReduceOps = map[Opcode]byte{
	OpFloatAdd: '+',
	OpIntAdd:   '+',
	OpFloatMul: '*',
}

// NewAccumPack builds a Pack whose operations form a reduction: operator is
// '+' or '*', position is the argument index of the accumulator across all
// member ops. Mirrors schedule.py's AccumPack.__init__.
func NewAccumPack(g *Graph, nodes []NodeID, operator byte, position int) *Pack {
	p := NewPack(g, nodes)
	p.operator = operator
	p.position = position
	return p
}

// GetLeftmostSeed returns the accumulator argument of the first member —
// the value flowing into the reduction before any iteration of this loop.
// Mirrors schedule.py's AccumPack.getleftmostseed.
func (p *Pack) GetLeftmostSeed() ValueID {
	return p.Leftmost().Args[p.position]
}

// GetSeeds returns the accumulator-position argument across every member,
// i.e. the full reduction carry-chain. Mirrors AccumPack.getseeds.
func (p *Pack) GetSeeds() []ValueID {
	seeds := make([]ValueID, len(p.Operations))
	for i, id := range p.Operations {
		seeds[i] = p.graph.Node(id).Op.Args[p.position]
	}
	return seeds
}

// ReduceInit returns the reduction's identity element: 0 for '+', 1 for
// '*'. Mirrors AccumPack.reduce_init.
func (p *Pack) ReduceInit() int64 {
	if p.operator == '*' {
		return 1
	}
	return 0
}
