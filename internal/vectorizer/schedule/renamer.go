package schedule

import "github.com/tracevec/simdjit/internal/vectorizer/ir"

// Renamer tracks value substitutions introduced while vectorizing (a scalar
// value replaced by a lane of a vector value, or folded into one) and
// applies them to an Op's arguments in place. Mirrors schedule.py's
// Renamer collaborator.
type Renamer struct {
	m map[ir.ValueID]ir.ValueID
}

// NewRenamer returns an empty Renamer.
func NewRenamer() *Renamer {
	return &Renamer{m: make(map[ir.ValueID]ir.ValueID)}
}

// StartRenaming records that future references to from should resolve to
// to. Mirrors Renamer.start_renaming.
func (r *Renamer) StartRenaming(from, to ir.ValueID) {
	r.m[from] = to
}

// Resolve follows the rename chain for v (or returns v unchanged if it was
// never renamed). Mirrors renamer.rename_map.get(v, v).
func (r *Renamer) Resolve(v ir.ValueID) ir.ValueID {
	if to, ok := r.m[v]; ok {
		return to
	}
	return v
}

// Rename rewrites op's arguments (and, if present, fail arguments) in place
// through the current substitution map. Mirrors Renamer.rename.
func (r *Renamer) Rename(op *ir.Op) {
	for i, a := range op.Args {
		op.Args[i] = r.Resolve(a)
	}
	for i, a := range op.FailArgs {
		if a != ir.NoValue {
			op.FailArgs[i] = r.Resolve(a)
		}
	}
}
