// Copyright 2024 The Dragonfly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package strset

// Iterator is a forward iterator over all keys of a Set. It holds an
// index pair (bucket id, position within the bucket) and re-resolves its
// slot pointer on every reposition, so it never dangles into a chain the
// container has since restructured. Any mutation other than Set.Erase
// invalidates all iterators.
type Iterator struct {
	s   *Set
	cur *Slot
	bid uint32
	idx int
}

// Iter returns an iterator positioned on the first key of the set. When
// the set is empty the iterator starts out invalid.
func (s *Set) Iter() Iterator {
	it := Iterator{s: s}
	it.seek(0, 0)
	return it
}

// Valid reports whether the iterator is positioned on a key.
func (it *Iterator) Valid() bool {
	return it.cur != nil
}

// Key returns the key the iterator is positioned on. The returned slice
// aliases the container-owned buffer and is valid only until the next
// mutation.
func (it *Iterator) Key() []byte {
	return decodeKey(it.cur.keyPtr())
}

// Next advances the iterator to the following key, walking the current
// bucket's chain before moving to the next non-empty bucket.
func (it *Iterator) Next() {
	it.seek(it.bid, it.idx+1)
}

// seek positions the iterator on the idx'th key of bucket bid, or on the
// first key of the first non-empty bucket after it.
func (it *Iterator) seek(bid uint32, idx int) {
	s := it.s
	for ; bid < uint32(len(s.slots)); bid, idx = bid+1, 0 {
		sl := &s.slots[bid]
		if sl.empty() {
			continue
		}
		if !sl.isLink() {
			if idx == 0 {
				it.cur, it.bid, it.idx = sl, bid, 0
				return
			}
			continue
		}
		i := idx
		for n := sl.node(); ; n = n.next.node() {
			if i == 0 {
				it.cur, it.bid, it.idx = &n.key, bid, idx
				return
			}
			i--
			if !n.next.isLink() {
				if i == 0 {
					it.cur, it.bid, it.idx = &n.next, bid, idx
					return
				}
				break
			}
		}
	}
	it.cur = nil
}

// Erase removes the key the iterator is positioned on and advances the
// iterator to the following key. This is the only mutation permitted
// during an iteration.
func (s *Set) Erase(it *Iterator) {
	bid, idx := it.bid, it.idx
	key := append([]byte(nil), it.Key()...)
	s.Remove(key)
	// Removal shifts the bucket's remaining keys up by one position and
	// preserves their order, so the old index now names the next key.
	it.seek(bid, idx)
}

// All calls yield sequentially for each key in the set until yield
// returns false. The set must not be mutated during the iteration.
func (s *Set) All(yield func(key []byte) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		switch {
		case sl.empty():
		case !sl.isLink():
			if !yield(decodeKey(sl.keyPtr())) {
				return
			}
		default:
			for n := sl.node(); ; n = n.next.node() {
				if !yield(decodeKey(n.key.keyPtr())) {
					return
				}
				if !n.next.isLink() {
					if !yield(decodeKey(n.next.keyPtr())) {
						return
					}
					break
				}
			}
		}
	}
}

// Scan resumes a stable scan from cursor, invoking fn for every key homed
// at the cursor's bucket, and returns the cursor for the next call. A
// zero cursor starts a new scan and a zero return value means the scan
// has completed. The guarantees match the SCAN command: every key present
// for the whole duration of the scan is yielded at least once, even if
// the table is rehashed between calls.
//
// The cursor is the bucket id left-aligned in 32 bits, so a cursor taken
// under one table size reinterprets correctly after the table doubles or
// halves; see the package comment for why top-bit bucket addressing makes
// this sound.
func (s *Set) Scan(cursor uint32, fn func(key []byte)) uint32 {
	if s.slots == nil {
		return 0
	}
	bid := cursor >> (32 - uint(s.capacityLog))
	s.scanBucket(bid, fn)
	bid++
	if bid >= uint32(len(s.slots)) {
		return 0
	}
	return bid << (32 - uint(s.capacityLog))
}

// scanBucket emits every key whose home bucket is bid: the bucket's own
// undisplaced resident or chain, plus any displaced neighbor that is
// homed here. Emitting displaced keys from their home bucket rather than
// their physical bucket is what keeps the cursor's coverage argument
// exact across rehashes.
func (s *Set) scanBucket(bid uint32, fn func(key []byte)) {
	sl := &s.slots[bid]
	switch {
	case sl.isLink():
		for n := sl.node(); ; n = n.next.node() {
			fn(decodeKey(n.key.keyPtr()))
			if !n.next.isLink() {
				fn(decodeKey(n.next.keyPtr()))
				break
			}
		}
	case sl.isInline() && !sl.isDisplaced():
		fn(decodeKey(sl.keyPtr()))
	}
	if bid > 0 {
		if nb := &s.slots[bid-1]; nb.isInline() && nb.isDisplaced() && s.homeOf(nb) == bid {
			fn(decodeKey(nb.keyPtr()))
		}
	}
	if bid+1 < uint32(len(s.slots)) {
		if nb := &s.slots[bid+1]; nb.isInline() && nb.isDisplaced() && s.homeOf(nb) == bid {
			fn(decodeKey(nb.keyPtr()))
		}
	}
}

// homeOf computes the home bucket of the key stored inline in sl.
func (s *Set) homeOf(sl *Slot) uint32 {
	return s.bucketID(s.hash(decodeKey(sl.keyPtr()), s.seed))
}
