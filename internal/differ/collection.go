package differ

import "strings"

type match[T any] struct {
	source T
	target T
}

// matchCollection pairs source and target items. For each source item the
// predicates are tried in order and the first unmatched target accepted by a
// predicate is taken, so an earlier predicate always wins over a later one.
// Unpaired items are returned as removed (source) and added (target), each
// in its original order.
func matchCollection[T any](source, target []T, predicates ...func(s, t T) bool) (pairs []match[T], removed, added []T) {
	taken := make([]bool, len(target))

	for _, s := range source {
		found := -1
		for _, pred := range predicates {
			for i, t := range target {
				if !taken[i] && pred(s, t) {
					found = i
					break
				}
			}
			if found >= 0 {
				break
			}
		}
		if found < 0 {
			removed = append(removed, s)
			continue
		}
		taken[found] = true
		pairs = append(pairs, match[T]{source: s, target: target[found]})
	}

	for i, t := range target {
		if !taken[i] {
			added = append(added, t)
		}
	}
	return pairs, removed, added
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
