package schedule

import "github.com/tracevec/simdjit/internal/vectorizer/ir"

// Emitter is the callback the scheduler invokes once a node is actually
// ready to leave the worklist: for a lone node it appends the scalar op to
// the oplist; for the first node of a pack it turns the whole pack into a
// vector op. Returning true means the node (and, for a pack, every member)
// has already been marked emitted and appended; false means the scheduler
// should do the plain scalar append itself. Mirrors VecScheduleState.emit.
type Emitter func(node *ir.Node, s *Scheduler, state *State) (bool, error)

// Scheduler walks a dependency graph's worklist in priority order,
// honoring pack membership, and hands ready nodes to an Emitter. This is
// the Go rendering of schedule.py's Scheduler class.
type Scheduler struct{}

// Next selects the next node to emit, skipping already-emitted entries and
// cycling delayed ones back in, or returns ok=false once nothing in the
// worklist can make progress right now. Mirrors Scheduler.next.
func (sch *Scheduler) Next(state *State) (ir.NodeID, bool) {
	visited := 0
	for len(state.Worklist) > 0 {
		if visited == len(state.Worklist) {
			return 0, false
		}
		n := len(state.Worklist) - 1
		id := state.Worklist[n]
		state.Worklist = state.Worklist[:n]
		node := state.Graph.Node(id)
		if node.Emitted {
			continue
		}
		if !sch.delay(id, state) {
			return id, true
		}
		state.Worklist = append([]ir.NodeID{id}, state.Worklist...)
		visited++
	}
	return 0, false
}

func (sch *Scheduler) delay(id ir.NodeID, state *State) bool {
	node := state.Graph.Node(id)
	if state.Delay(node) {
		return true
	}
	return node.DependsCount != 0
}

// TryToTrashPack breaks a deadlocked pack: if the worklist's first packed
// node has any member still waiting on an outside dependency, the whole
// pack is cleared (falling back to scalar) so the scheduler can make
// progress. Returns whether it broke anything. Mirrors
// Scheduler.try_to_trash_pack.
func (sch *Scheduler) TryToTrashPack(state *State) bool {
	if len(state.Worklist) == 0 {
		return false
	}
	i := 0
	node := state.Graph.Node(state.Worklist[i])
	i++
	for i < len(state.Worklist) && node.Pack == nil {
		node = state.Graph.Node(state.Worklist[i])
		i++
	}
	if node.Pack == nil {
		return false
	}
	pack := node.Pack
	for _, id := range pack.Operations {
		if state.Graph.Node(id).DependsCount > 0 {
			pack.Clear()
			return true
		}
	}
	return false
}

// MarkEmitted records node as emitted, releases every dependent whose
// in-degree just hit zero back into the worklist (priority-sorted, ties
// broken by original trace position), and — unless node is imaginary —
// renames its op and (if unpack is true) unpacks its arguments. Mirrors
// Scheduler.mark_emitted.
func (sch *Scheduler) MarkEmitted(id ir.NodeID, state *State, unpack bool) {
	node := state.Graph.Node(id)
	provides := append([]ir.NodeID(nil), node.Provides...)
	for _, targetID := range provides {
		target := state.Graph.Node(targetID)
		target.DependsCount--
		if !target.Emitted && target.DependsCount == 0 {
			insertByPriority(state, targetID)
		}
	}
	node.Provides = nil
	node.DependsCount = 0
	node.Emitted = true
	if !node.Imaginary {
		state.Renamer.Rename(&node.Op)
		if unpack {
			state.EnsureArgsUnpacked(&node.Op)
		}
		state.PostEmit(node)
	}
}

func insertByPriority(state *State, targetID ir.NodeID) {
	target := state.Graph.Node(targetID)
	w := state.Worklist
	i := len(w) - 1
	for ; i >= 0; i-- {
		cur := state.Graph.Node(w[i])
		c := cur.Priority - target.Priority
		if c < 0 {
			insertAt(state, i+1, targetID)
			return
		} else if c == 0 && target.Index < cur.Index {
			insertAt(state, i+1, targetID)
			return
		}
	}
	insertAt(state, 0, targetID)
}

func insertAt(state *State, pos int, id ir.NodeID) {
	w := state.Worklist
	w = append(w, 0)
	copy(w[pos+1:], w[pos:])
	w[pos] = id
	state.Worklist = w
}

// WalkAndEmit runs the scheduling loop to completion: repeatedly pull the
// next ready node, hand it to emit (for pack transformation) or append it
// directly, until the worklist is empty. Panics with *ir.CycleError if no
// progress can be made and no pack can be trashed to unblock it. Mirrors
// Scheduler.walk_and_emit.
func (sch *Scheduler) WalkAndEmit(state *State, emit Emitter) error {
	for state.HasMore() {
		id, ok := sch.Next(state)
		if ok {
			node := state.Graph.Node(id)
			handled, err := emit(node, sch, state)
			if err != nil {
				return err
			}
			if !handled {
				if !node.Emitted {
					state.PreEmit(node)
					sch.MarkEmitted(id, state, true)
					if !node.Imaginary {
						state.Seen[node.Op.Result] = struct{}{}
						state.OpList = append(state.OpList, node.Op)
					}
				}
			}
			continue
		}

		if !state.HasMore() {
			break
		}

		if sch.TryToTrashPack(state) {
			continue
		}

		panic(&ir.CycleError{Msg: "schedule failed: cannot continue, possible reason: cycle"})
	}
	return nil
}
