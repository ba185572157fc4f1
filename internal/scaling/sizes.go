package scaling

import "sort"

// OrderSizes returns a copy of specs sorted ascending by MaxSize. The
// caller's slice is never mutated. Equal sizes keep their input order, so
// enumeration is fully deterministic.
func OrderSizes(specs []SizeSpec) []SizeSpec {
	ordered := make([]SizeSpec, len(specs))
	copy(ordered, specs)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MaxSize < ordered[j].MaxSize
	})

	return ordered
}
