package msgset

import "fmt"

// Union returns a set containing every member of a or b. Both operands must
// share scope and mode, and neither may be the unresolved all sentinel.
// Union is commutative and idempotent.
func Union(a, b *Set) (*Set, error) {
	if err := checkCompatible(a, b); err != nil {
		return nil, err
	}

	x, y := a.members, b.members
	out := make([]uint64, 0, len(x)+len(y))
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] < y[j]:
			out = append(out, x[i])
			i++
		case x[i] > y[j]:
			out = append(out, y[j])
			j++
		default:
			out = append(out, x[i])
			i++
			j++
		}
	}
	out = append(out, x[i:]...)
	out = append(out, y[j:]...)
	return newSorted(a.scope, a.mode, out), nil
}

// Intersect returns a set containing the members present in both a and b.
// Commutative and idempotent, same operand rules as Union.
func Intersect(a, b *Set) (*Set, error) {
	if err := checkCompatible(a, b); err != nil {
		return nil, err
	}

	x, y := a.members, b.members
	var out []uint64
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] < y[j]:
			i++
		case x[i] > y[j]:
			j++
		default:
			out = append(out, x[i])
			i++
			j++
		}
	}
	return newSorted(a.scope, a.mode, out), nil
}

// Difference returns the members of a that are not in b. Not commutative.
func Difference(a, b *Set) (*Set, error) {
	if err := checkCompatible(a, b); err != nil {
		return nil, err
	}

	x, y := a.members, b.members
	var out []uint64
	i, j := 0, 0
	for i < len(x) {
		switch {
		case j >= len(y) || x[i] < y[j]:
			out = append(out, x[i])
			i++
		case x[i] > y[j]:
			j++
		default:
			i++
			j++
		}
	}
	return newSorted(a.scope, a.mode, out), nil
}

// checkCompatible enforces the algebra preconditions. Sets from different
// mailboxes are meaningless to combine, and mixing UIDs with sequence
// numbers silently corrupts results, so both are hard errors. The all
// sentinel is opaque here: only a collaborator with live mailbox knowledge
// can combine it.
func checkCompatible(a, b *Set) error {
	if a.scope != b.scope || a.mode != b.mode {
		return fmt.Errorf("%w: %s/%s vs %s/%s",
			ErrIncompatibleSets, a.scope, a.mode, b.scope, b.mode)
	}
	if a.all || b.all {
		return fmt.Errorf("%w: resolve %q before combining", ErrUnresolvedAll, allCompact)
	}
	return nil
}
