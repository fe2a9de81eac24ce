package schedule

import (
	"fmt"

	"github.com/tracevec/simdjit/internal/vectorizer/ir"
	"github.com/tracevec/simdjit/internal/vectorizer/restrict"
)

// DefaultEmit is the Emitter this module hands to Scheduler.WalkAndEmit: if
// the ready node belongs to a pack, every member is marked emitted (without
// unpacking their arguments yet — the vector op replaces them) and the
// pack is turned into one vector instruction; otherwise the scheduler falls
// back to its own plain scalar append. Mirrors VecScheduleState.emit.
func DefaultEmit(node *ir.Node, sch *Scheduler, state *State) (bool, error) {
	if node.Pack == nil {
		return false, nil
	}
	if node.Pack.NumOps() <= 1 {
		return false, fmt.Errorf("%w: pack with fewer than 2 members reached emit", ir.ErrNotVectorizeable)
	}
	for _, id := range node.Pack.Operations {
		state.PreEmit(state.Graph.Node(id))
		sch.MarkEmitted(id, state, false)
	}
	if err := TurnIntoVector(state, node.Pack); err != nil {
		return false, err
	}
	return true, nil
}

// TurnIntoVector replaces a scheduled pack with a single vector operation:
// validates the pack is actually encodable, records the cost savings,
// prepares its argument list (expanding/packing/cropping/repositioning as
// needed), creates the vector op, and records which pack member's result
// now lives at which lane. Mirrors schedule.py's turn_into_vector.
func TurnIntoVector(state *State, pack *ir.Pack) error {
	if err := restrict.CheckIfPackSupported(pack.Leftmost(), state.VecInfoOf, state.FeatureGate); err != nil {
		return err
	}
	state.CostModel.RecordPackSavings(pack, pack.NumOps())

	left := pack.Leftmost()
	oprestrict, err := restrict.Get(left.Opcode)
	if err != nil {
		return err
	}
	if err := oprestrict.CheckOperation(left, state.VecInfoOf, state.IsConst); err != nil {
		return err
	}

	args := append([]ir.ValueID(nil), left.Args...)
	if err := PrepareArguments(state, pack, oprestrict, args); err != nil {
		return err
	}

	result := ir.NoValue
	if !left.ReturnsVoid() {
		result = state.AllocValue()
	}
	vecOp := ir.Op{
		Opcode: left.Opcode,
		Args:   args,
		Result: result,
		Descr:  left.Descr,
	}
	if result != ir.NoValue {
		leftVI := state.VecInfoOf(left.Result)
		state.SetVecInfo(result, ir.Vector(leftVI.DataType, leftVI.ByteSize, pack.NumOps(), leftVI.Signed))
	}

	for i, id := range pack.Operations {
		node := state.Graph.Node(id)
		if node.Op.ReturnsVoid() {
			continue
		}
		state.SetVectorOf(node.Op.Result, i, result)
		if pack.IsAccumulating() && !node.Op.Opcode.IsGuard() {
			state.Renamer.StartRenaming(node.Op.Result, result)
		}
	}

	if left.Opcode.IsGuard() {
		if err := PrepareFailArguments(state, pack, left, &vecOp); err != nil {
			return err
		}
	}

	state.OpList = append(state.OpList, vecOp)
	return nil
}

// PrepareArguments rewrites args in place, one argument slot at a time,
// turning each scalar operand into the vector value the new instruction
// must actually consume: reusing an already-vectorized value, cropping it
// to the right element size, gathering it from several scattered vectors,
// repositioning it to lane zero, or expanding a scalar/constant into a
// fresh vector. Mirrors schedule.py's prepare_arguments.
func PrepareArguments(state *State, pack *ir.Pack, oprestrict *restrict.OpRestrict, args []ir.ValueID) error {
	for i, arg := range args {
		if i >= len(oprestrict.Argument) || oprestrict.Argument[i] == nil {
			continue
		}
		r := oprestrict.Argument[i]

		if vi := state.VecInfoOf(arg); vi.IsVector() {
			if err := r.Check(vi); err != nil {
				return err
			}
			continue
		}

		pos, vecOp, ok := state.GetVectorOf(arg)
		if !ok {
			if err := Expand(state, pack, args, arg, i); err != nil {
				return err
			}
			if err := r.Check(state.VecInfoOf(args[i])); err != nil {
				return err
			}
			continue
		}

		args[i] = vecOp
		if err := AssembleScatteredValues(state, pack, args, i); err != nil {
			return err
		}
		if err := CropVector(state, oprestrict, r, pack, args, i); err != nil {
			return err
		}
		PositionValues(state, r, pack, args, i, pos)
		if err := r.Check(state.VecInfoOf(args[i])); err != nil {
			return err
		}
	}
	return nil
}

// PrepareFailArguments rewrites a guard's fail arguments for the new
// vectorized guard: any that still live in a vector are unpacked (lane
// zero) so the deopt path reads a scalar, since a guard exit always
// resumes into scalar code. Mirrors schedule.py's prepare_fail_arguments.
func PrepareFailArguments(state *State, pack *ir.Pack, left *ir.Op, vecOp *ir.Op) error {
	args := append([]ir.ValueID(nil), left.FailArgs...)
	for i, arg := range args {
		if arg == ir.NoValue {
			continue
		}
		_, newArg, ok := state.GetVectorOf(arg)
		if !ok {
			newArg = arg
		}
		if vi := state.VecInfoOf(newArg); vi.IsVector() {
			u, err := UnpackFromVector(state, newArg, 0, 1)
			if err != nil {
				return err
			}
			newArg = u
		}
		args[i] = newArg
	}
	vecOp.FailArgs = args
	vecOp.GuardDescr = left.GuardDescr
	return nil
}

// CropVector inserts a sign-extend when an argument's element size
// disagrees with what the restriction demands (e.g. an i64 value feeding
// an op that wants i32 lanes). Mirrors schedule.py's crop_vector.
func CropVector(state *State, oprestrict *restrict.OpRestrict, r *restrict.TypeRestrict, pack *ir.Pack, args []ir.ValueID, i int) error {
	arg := args[i]
	vi := state.VecInfoOf(arg)
	size := vi.ByteSize
	left := pack.Leftmost()
	if !oprestrict.MustCropVector(i, size, descrItemSize(left)) {
		return nil
	}
	newSize := oprestrict.CropToSize(i, descrItemSize(left))
	if err := state.PreventSignext(newSize, size); err != nil {
		return err
	}
	count := vi.Count
	result := state.AllocValue()
	vecOp := ir.Op{
		Opcode: ir.OpVecIntSignext,
		Args:   []ir.ValueID{arg, ir.ValueID(newSize)},
		Result: result,
	}
	state.SetVecInfo(result, ir.Vector(vi.DataType, newSize, count, vi.Signed))
	state.OpList = append(state.OpList, vecOp)
	state.CostModel.RecordCastInt(size, newSize, count)
	args[i] = result
	return nil
}

func descrItemSize(op *ir.Op) int {
	if op.Descr == nil {
		return 0
	}
	return op.Descr.ItemSize
}

// AssembleScatteredValues gathers an argument that lives split across
// several vector values at index (one pack member pointing at one vector,
// another member pointing at a different one) into a single vector.
// Mirrors schedule.py's assemble_scattered_values.
func AssembleScatteredValues(state *State, pack *ir.Pack, args []ir.ValueID, index int) error {
	argsAtIndex := pack.ArgAt(index)
	argsAtIndex[0] = args[index]
	vectors := pack.ArgumentVectors(index, func(v ir.ValueID) (int, ir.ValueID, bool) {
		return state.GetVectorOf(v)
	})
	if len(vectors) <= 1 {
		return nil
	}
	gathered, err := Gather(state, vectors, pack.NumOps())
	if err != nil {
		return err
	}
	args[index] = gathered
	state.RememberArgsInVector(pack, index, args[index])
	return nil
}

// Gather chains a list of scattered (position, vector) pairs into one
// vector by repeated pack_into_vector calls, stopping before it would
// overflow the target lane count. Mirrors schedule.py's gather.
func Gather(state *State, vectors []ir.ScatteredArg, count int) (ir.ValueID, error) {
	arg := vectors[0].VecOp
	for i := 1; i < len(vectors); i++ {
		newArg := vectors[i].VecOp
		newPos := vectors[i].Pos
		vi := state.VecInfoOf(arg)
		newVI := state.VecInfoOf(newArg)
		if vi.Count+newVI.Count <= count {
			packed, err := PackIntoVector(state, arg, vi.Count, newArg, newPos, newVI.Count)
			if err != nil {
				return ir.NoValue, err
			}
			arg = packed
		}
	}
	return arg, nil
}

// PositionValues unpacks arg to lane zero if it currently occupies a
// nonzero position but the consuming op needs it at position zero.
// Mirrors schedule.py's position_values; the `if position == 0: pass`
// dead branch there is dropped (it had no effect in the original either).
func PositionValues(state *State, r *restrict.TypeRestrict, pack *ir.Pack, args []ir.ValueID, index int, position int) {
	if position == 0 {
		return
	}
	arg := args[index]
	vi := state.VecInfoOf(arg)
	count := r.MaxInputCount(vi.Count)
	unpacked, err := UnpackFromVector(state, arg, position, count)
	if err != nil {
		// UnpackFromVector only fails on a programming-invariant violation
		// (count <= 0 or out of range), which CropVector/Gather having run
		// first rule out; surfacing it here would change this function's
		// signature for a case that cannot occur on a correctly scheduled
		// pack, so it is treated as the panic-worthy bug it is.
		panic(err)
	}
	args[index] = unpacked
	state.RememberArgsInVector(pack, index, args[index])
}

// UnpackFromVector extracts count lanes starting at index out of arg into
// a fresh vector value. Mirrors schedule.py's unpack_from_vector.
func UnpackFromVector(state *State, arg ir.ValueID, index, count int) (ir.ValueID, error) {
	if count <= 0 {
		return ir.NoValue, fmt.Errorf("%w: unpack with non-positive count", ir.ErrNotVectorizeable)
	}
	vi := state.VecInfoOf(arg)
	if index+count > vi.Count {
		return ir.NoValue, fmt.Errorf("%w: unpack range exceeds vector lane count", ir.ErrNotVectorizeable)
	}
	result := state.AllocValue()
	vecOp := ir.Op{
		Opcode: ir.OpVecUnpack,
		Args:   []ir.ValueID{arg, ir.ValueID(index), ir.ValueID(count)},
		Result: result,
	}
	state.SetVecInfo(result, ir.Vector(vi.DataType, vi.ByteSize, count, vi.Signed))
	state.CostModel.RecordVectorUnpack(arg, index, count)
	state.OpList = append(state.OpList, vecOp)
	return result, nil
}

// PackIntoVector appends scount lanes of src starting at sidx onto the end
// of tgt (which already holds tidx lanes), returning the combined vector.
// Mirrors schedule.py's pack_into_vector (sidx must be 0, same restriction
// as the original: "tgt = [1,2,3,4,_,_,_,_]; src=[5,6,_,_]" only ever
// combines from the front of src).
func PackIntoVector(state *State, tgt ir.ValueID, tidx int, src ir.ValueID, sidx, scount int) (ir.ValueID, error) {
	if sidx != 0 {
		return ir.NoValue, fmt.Errorf("%w: pack_into_vector requires sidx == 0", ir.ErrNotVectorizeable)
	}
	vi := state.VecInfoOf(tgt)
	newCount := vi.Count + scount
	result := state.AllocValue()
	vecOp := ir.Op{
		Opcode: ir.OpVecPack,
		Args:   []ir.ValueID{tgt, src, ir.ValueID(tidx), ir.ValueID(scount)},
		Result: result,
	}
	state.SetVecInfo(result, ir.Vector(vi.DataType, vi.ByteSize, newCount, vi.Signed))
	state.OpList = append(state.OpList, vecOp)
	state.CostModel.RecordVectorPack(src, sidx, scount)
	return result, nil
}

// Expand broadcasts or gathers a scalar/constant argument into a vector
// value sized to fill the pack: if every pack member reads the exact same
// value at this argument slot, a single VEC_EXPAND broadcasts it; otherwise
// each member's distinct value is packed in one at a time. Reuses a
// previous expansion of the same value(s) when one exists. Mirrors
// schedule.py's expand.
func Expand(state *State, pack *ir.Pack, args []ir.ValueID, arg ir.ValueID, index int) error {
	left := pack.Leftmost()
	sameAcrossPack := true
	for _, id := range pack.Operations {
		if state.Graph.Node(id).Op.Args[index] != arg {
			sameAcrossPack = false
			break
		}
	}

	_, isInputArg := state.inputArgs[arg]

	// Defaults to hoisting the expansion before the loop label (it need
	// only be computed once); falls back to the per-iteration oplist when
	// arg is neither a constant nor a loop-invariant input, since it is
	// then a fresh value computed inside the loop body.
	oplist := &state.InvariantOpList
	var variables *[]ir.ValueID = &state.InvariantVectorVars
	if !state.IsConst(arg) && !isInputArg {
		oplist = &state.OpList
		variables = nil
	}

	if sameAcrossPack {
		if vecOp, ok := state.FindExpanded([]ir.ValueID{arg}); ok {
			args[index] = vecOp
			return nil
		}
		leftVI := state.VecInfoOf(left.Result)
		result := state.AllocValue()
		vecOp := ir.Op{Opcode: ir.OpVecExpand, Args: []ir.ValueID{arg}, Result: result}
		state.SetVecInfo(result, ir.Vector(leftVI.DataType, leftVI.ByteSize, pack.NumOps(), leftVI.Signed))
		*oplist = append(*oplist, vecOp)
		if variables != nil {
			*variables = append(*variables, result)
		}
		state.Expand([]ir.ValueID{arg}, result)
		args[index] = result
		return nil
	}

	expandArgs := pack.ArgAt(index)
	if vecOp, ok := state.FindExpanded(expandArgs); ok {
		args[index] = vecOp
		return nil
	}

	argVI := state.VecInfoOf(arg)
	result := state.AllocValue()
	makeOp := ir.Op{Opcode: ir.OpVecMakeEmpty, Result: result}
	state.SetVecInfo(result, ir.Vector(argVI.DataType, argVI.ByteSize, 0, argVI.Signed))
	*oplist = append(*oplist, makeOp)
	cur := result
	for i, id := range pack.Operations {
		memberArg := state.Graph.Node(id).Op.Args[index]
		curVI := state.VecInfoOf(cur)
		next := state.AllocValue()
		packOp := ir.Op{
			Opcode: ir.OpVecPack,
			Args:   []ir.ValueID{cur, memberArg, ir.ValueID(i), 1},
			Result: next,
		}
		state.SetVecInfo(next, ir.Vector(curVI.DataType, curVI.ByteSize, curVI.Count+1, curVI.Signed))
		*oplist = append(*oplist, packOp)
		cur = next
	}
	state.Expand(expandArgs, cur)
	if variables != nil {
		*variables = append(*variables, cur)
	}
	args[index] = cur
	return nil
}
