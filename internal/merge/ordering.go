package merge

import "cmp"

// TieBreak orders two distinct source ids whose front items have equal keys. Source ids are the
// registration positions of the sources passed to New.
type TieBreak func(a, b int) int

// RegistrationOrder emits equal keys from earlier registered sources first.
func RegistrationOrder(a, b int) int {
	return cmp.Compare(a, b)
}

// ReverseRegistrationOrder emits equal keys from later registered sources first, useful when
// newer runs are registered last and should shadow older ones.
func ReverseRegistrationOrder(a, b int) int {
	return cmp.Compare(b, a)
}

// Ordering is the total order over (key, source id) pairs used by the frontier.
type Ordering[K any] struct {
	compare  func(a, b K) int
	tieBreak TieBreak
}

// NewOrdering returns an Ordering comparing keys with compare and resolving equal keys with
// tieBreak. A nil tieBreak means RegistrationOrder.
func NewOrdering[K any](compare func(a, b K) int, tieBreak TieBreak) Ordering[K] {
	if tieBreak == nil {
		tieBreak = RegistrationOrder
	}
	return Ordering[K]{compare: compare, tieBreak: tieBreak}
}

// Compare returns a negative number when (aKey, aSource) orders before (bKey, bSource), zero only
// when aSource == bSource and the keys are equal, and a positive number otherwise.
func (o Ordering[K]) Compare(aKey K, aSource int, bKey K, bSource int) int {
	if c := o.compare(aKey, bKey); c != 0 {
		return c
	}
	if aSource == bSource {
		return 0
	}
	if c := o.tieBreak(aSource, bSource); c != 0 {
		return c
	}
	// a custom tie-break that cannot tell two sources apart falls back to registration order
	return cmp.Compare(aSource, bSource)
}

func (o Ordering[K]) Less(aKey K, aSource int, bKey K, bSource int) bool {
	return o.Compare(aKey, aSource, bKey, bSource) < 0
}
