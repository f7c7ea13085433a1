package services

import (
	"sort"

	"github.com/baristaq/baristaq/internal/domain/order"
)

// lookupTable is the secondary index from "<milk>_<texture>" keys to
// positions in the live queue. Keys are fixed at startup from the
// configured milk and texture lists; positions for unknown keys
// (including "No Milk" drinks) are silently dropped, mirroring the
// dense-index rule that no-milk drinks are never indexed.
//
// Every structural queue mutation flows through shiftInsert/shiftRemove
// so the table can never disagree with the sequence.
type lookupTable struct {
	keys map[string]map[int]struct{}
}

func newLookupTable(milks, textures []string) *lookupTable {
	keys := make(map[string]map[int]struct{})
	for _, milk := range milks {
		for _, texture := range textures {
			keys[order.MilkKey(milk, texture)] = make(map[int]struct{})
		}
	}
	return &lookupTable{keys: keys}
}

// add records position pos under key. Unknown keys are ignored.
func (t *lookupTable) add(key string, pos int) {
	if set, ok := t.keys[key]; ok {
		set[pos] = struct{}{}
	}
}

// remove drops position pos from key, if present.
func (t *lookupTable) remove(key string, pos int) {
	if set, ok := t.keys[key]; ok {
		delete(set, pos)
	}
}

// contains reports whether pos is recorded under key.
func (t *lookupTable) contains(key string, pos int) bool {
	set, ok := t.keys[key]
	if !ok {
		return false
	}
	_, ok = set[pos]
	return ok
}

// candidates returns the positions recorded under key within
// [low, high), descending, so the closest lookback comes first.
func (t *lookupTable) candidates(key string, low, high int) []int {
	set, ok := t.keys[key]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(set))
	for pos := range set {
		if pos >= low && pos < high {
			out = append(out, pos)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// shiftInsert renumbers the table for an insertion at pos: every
// recorded position >= pos moves back by one. The caller then records
// the new entry for pos under the inserted item's key.
func (t *lookupTable) shiftInsert(pos int) {
	for key, set := range t.keys {
		t.keys[key] = shiftPositions(set, pos, +1)
	}
}

// shiftRemove renumbers the table for a removal at pos: the position
// itself is purged from every key and every recorded position > pos
// moves forward by one.
func (t *lookupTable) shiftRemove(pos int) {
	for key, set := range t.keys {
		delete(set, pos)
		t.keys[key] = shiftPositions(set, pos+1, -1)
	}
}

func shiftPositions(set map[int]struct{}, from, delta int) map[int]struct{} {
	out := make(map[int]struct{}, len(set))
	for pos := range set {
		if pos >= from {
			out[pos+delta] = struct{}{}
		} else {
			out[pos] = struct{}{}
		}
	}
	return out
}

// entries returns a copy of the sets, for snapshots and tests.
func (t *lookupTable) entries() map[string][]int {
	out := make(map[string][]int, len(t.keys))
	for key, set := range t.keys {
		if len(set) == 0 {
			continue
		}
		positions := make([]int, 0, len(set))
		for pos := range set {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		out[key] = positions
	}
	return out
}
