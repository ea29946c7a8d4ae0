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

// Package strset implements a memory-compact set of short byte strings,
// the container backing SADD/SISMEMBER/SMEMBERS style commands.
//
// # Layout
//
// The set is an open-addressed table of Slot entries, one per bucket.
// A slot is a pointer plus a tag byte and encodes one of three states:
// empty, an inline pointer to a length-prefixed key buffer, or a pointer
// to the head of a singly-linked overflow chain. The home bucket of a
// key is the top capacity_log bits of its 64-bit hash.
//
// Collisions are first absorbed hop-scotch style: a key may be placed in
// its home bucket or in one of the two adjacent buckets, in which case
// its slot carries a displaced tag. Lookup therefore examines at most
// three slots. If the whole neighborhood is occupied the key is linked
// into an overflow chain rooted at the home bucket; every key reachable
// through a bucket's chain has that bucket as its home, including the
// chain's terminal key, which is stored in the last node's next slot
// rather than in a node of its own.
//
// # Scan stability
//
// Deriving bucket ids from the most significant hash bits is what makes
// the external scan cursor stable with respect to rehashes, without the
// bit-reversal trick classic SCAN uses. With table log size 4, entries
// in bucket 1110 come from hashes 1110xxxx...; when the table grows to
// log size 5 those entries can move only to 11100 or 11101. A cursor
// that covered [0000, 1110] before the growth has therefore covered
// [00000, 11101] after it. Scan returns cursors left-aligned in 32 bits
// so that a cursor taken under one table size reinterprets correctly
// under another.
//
// # Concurrency
//
// A Set is single-owner and NOT goroutine-safe. The surrounding server
// shards data across threads and pins each shard to one owner;
// cross-thread use of a Set is a caller bug.
package strset

import (
	"bytes"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"unsafe"
)

const debug = false

// minCapacityLog is the log2 size of the bucket array allocated by the
// first insertion into an empty set.
const minCapacityLog = 1

// Set is a set of unique byte strings optimized for memory footprint.
// The zero value is not usable; construct with New.
type Set struct {
	// The hash function applied to keys, and its per-set seed.
	hash hashFn
	seed uint64
	// The allocator for the slot array, key buffers, and chain nodes.
	allocator Allocator
	// The bucket array, always a power of two in length (1<<capacityLog),
	// or nil until the first Add or Reserve and again after Close.
	slots []Slot
	// Number of live keys.
	size uint32
	// Number of overflow chain nodes (the bucket-slot chain heads are not
	// counted).
	chainEntries uint32
	// Sum of encoded key buffer lengths, maintained on every insert and
	// erase so external memory-budget observers read consistent totals.
	objMallocUsed uint64
	capacityLog   uint8
}

// New constructs a Set with capacity for at least initialCapacity keys.
// If initialCapacity is 0 the set starts with no bucket array and
// allocates one on the first Add.
func New(initialCapacity int, options ...option) *Set {
	s := &Set{
		hash:      defaultHash,
		seed:      rand.Uint64(),
		allocator: defaultAllocator{},
	}
	for _, op := range options {
		op.apply(s)
	}
	if initialCapacity > 0 {
		s.Reserve(initialCapacity)
	}
	return s
}

// Len returns the number of keys in the set.
func (s *Set) Len() int {
	return int(s.size)
}

// Empty reports whether the set holds no keys.
func (s *Set) Empty() bool {
	return s.size == 0
}

// BucketCount returns the current size of the bucket array.
func (s *Set) BucketCount() int {
	return len(s.slots)
}

// ChainCount returns the number of overflow chain nodes, i.e. the number
// of keys that did not fit into the flat bucket surface.
func (s *Set) ChainCount() int {
	return int(s.chainEntries)
}

// ObjMallocUsed returns the total bytes of key buffers owned by the set.
// Each key accounts for its encoded buffer length: the payload plus a
// 1-byte header, or a 5-byte header for keys of 255 bytes and longer.
func (s *Set) ObjMallocUsed() uint64 {
	return s.objMallocUsed
}

// SetMallocUsed returns the bytes used by the container spine: the slot
// array plus the overflow chain nodes.
func (s *Set) SetMallocUsed() uint64 {
	return uint64(len(s.slots))*uint64(unsafe.Sizeof(Slot{})) +
		uint64(s.chainEntries)*uint64(unsafe.Sizeof(Node{}))
}

// Reserve ensures the bucket array can hold at least n keys without
// growing. It may grow the table immediately.
func (s *Set) Reserve(n int) {
	if n <= 1 {
		n = 2
	}
	log := uint8(bits.Len(uint(n - 1)))
	if log < minCapacityLog {
		log = minCapacityLog
	}
	if s.slots == nil {
		s.capacityLog = log
		s.slots = s.allocator.AllocSlots(1 << log)
		return
	}
	if log > s.capacityLog {
		s.growTo(log)
	}
}

// Add inserts key into the set. It returns true if the key was inserted
// and false if it was already present.
func (s *Set) Add(key []byte) bool {
	if s.slots == nil {
		s.capacityLog = minCapacityLog
		s.slots = s.allocator.AllocSlots(1 << minCapacityLog)
	}
	h := s.hash(key, s.seed)
	bid := s.bucketID(h)
	if s.findAround(key, bid) != 2 || s.chainContains(key, bid) {
		return false
	}
	// The key buffer is allocated before any slot is touched so that a
	// failure of this allocation leaves the set unchanged. A chain node
	// allocation that fails during a grow or while a displaced key is
	// being relocated leaves the set partially updated.
	kp := s.newKey(key)
	s.insert(kp, h)
	s.objMallocUsed += uint64(storedLen(kp))
	s.size++
	s.checkInvariants()
	return true
}

// Contains reports whether key is in the set.
func (s *Set) Contains(key []byte) bool {
	if s.size == 0 {
		return false
	}
	bid := s.bucketID(s.hash(key, s.seed))
	return s.findAround(key, bid) != 2 || s.chainContains(key, bid)
}

// Remove erases key from the set. It returns true if the key was present.
func (s *Set) Remove(key []byte) bool {
	if s.size == 0 {
		return false
	}
	bid := s.bucketID(s.hash(key, s.seed))
	if offs := s.findAround(key, bid); offs != 2 {
		sl := &s.slots[uint32(int64(bid)+int64(offs))]
		s.freeKey(sl.keyPtr())
		sl.clear()
		s.size--
		s.checkInvariants()
		return true
	}
	if s.unchain(key, bid) {
		s.size--
		s.checkInvariants()
		return true
	}
	return false
}

// BucketDepth returns the number of keys stored at bucket bid: zero for
// an empty slot, one for an inline key, and the chain length plus its
// terminal for a chain head. Intended for diagnostics and tests.
func (s *Set) BucketDepth(bid uint32) uint {
	sl := &s.slots[bid]
	if sl.empty() {
		return 0
	}
	if !sl.isLink() {
		return 1
	}
	d := uint(0)
	for n := sl.node(); ; n = n.next.node() {
		d++
		if !n.next.isLink() {
			return d + 1
		}
	}
}

// Clear removes all keys, retaining the bucket array.
func (s *Set) Clear() {
	s.freeContents()
	for i := range s.slots {
		s.slots[i].clear()
	}
	s.size = 0
}

// Close releases all memory back to the configured allocator. It is
// unnecessary to close a set using the default allocator. Close is
// idempotent, but no other method may be used afterwards.
func (s *Set) Close() {
	s.freeContents()
	if s.slots != nil {
		s.allocator.FreeSlots(s.slots)
		s.slots = nil
	}
	s.size = 0
	s.capacityLog = 0
}

// freeContents returns every key buffer and chain node to the allocator.
func (s *Set) freeContents() {
	for i := range s.slots {
		sl := &s.slots[i]
		switch {
		case sl.empty():
		case !sl.isLink():
			s.freeKey(sl.keyPtr())
		default:
			n := sl.node()
			for {
				s.freeKey(n.key.keyPtr())
				if !n.next.isLink() {
					s.freeKey(n.next.keyPtr())
					s.freeNode(n)
					break
				}
				next := n.next.node()
				s.freeNode(n)
				n = next
			}
		}
	}
}

func (s *Set) bucketID(h uint64) uint32 {
	return uint32(h >> (64 - uint(s.capacityLog)))
}

// newKey copies key into a freshly allocated length-prefixed buffer and
// returns its pointer. The caller accounts the bytes once the key is
// placed; a grow triggered mid-placement must see counters that match
// the table contents.
func (s *Set) newKey(key []byte) unsafe.Pointer {
	buf := s.allocator.AllocBytes(encodedLen(len(key)))
	encodeKey(buf, key)
	return unsafe.Pointer(unsafe.SliceData(buf))
}

func (s *Set) freeKey(p unsafe.Pointer) {
	n := storedLen(p)
	s.objMallocUsed -= uint64(n)
	s.allocator.FreeBytes(unsafe.Slice((*byte)(p), n))
}

func (s *Set) freeNode(n *Node) {
	*n = Node{}
	s.allocator.FreeNode(n)
	s.chainEntries--
}

// findAround searches the three-slot neighborhood of bid for key.
// Returns the relative offset of the matching slot: 0, -1 or 1 if found,
// 2 otherwise. Neighbors match only when their displaced tag is set,
// since an undisplaced neighbor belongs to a different home bucket.
func (s *Set) findAround(key []byte, bid uint32) int {
	if sl := &s.slots[bid]; sl.isInline() && bytes.Equal(decodeKey(sl.keyPtr()), key) {
		return 0
	}
	if bid > 0 {
		if sl := &s.slots[bid-1]; sl.isInline() && sl.isDisplaced() && bytes.Equal(decodeKey(sl.keyPtr()), key) {
			return -1
		}
	}
	if bid+1 < uint32(len(s.slots)) {
		if sl := &s.slots[bid+1]; sl.isInline() && sl.isDisplaced() && bytes.Equal(decodeKey(sl.keyPtr()), key) {
			return 1
		}
	}
	return 2
}

// findEmptyAround returns the offset (0, -1 or 1) of an empty slot in the
// neighborhood of bid, preferring the home slot and then the lower
// neighbor. Returns 2 if no empty slot is in the vicinity.
func (s *Set) findEmptyAround(bid uint32) int {
	if s.slots[bid].empty() {
		return 0
	}
	if bid > 0 && s.slots[bid-1].empty() {
		return -1
	}
	if bid+1 < uint32(len(s.slots)) && s.slots[bid+1].empty() {
		return 1
	}
	return 2
}

// chainContains walks the overflow chain rooted at bid comparing each
// node key and the terminal key against key.
func (s *Set) chainContains(key []byte, bid uint32) bool {
	sl := &s.slots[bid]
	if !sl.isLink() {
		return false
	}
	for n := sl.node(); ; n = n.next.node() {
		if bytes.Equal(decodeKey(n.key.keyPtr()), key) {
			return true
		}
		if !n.next.isLink() {
			return bytes.Equal(decodeKey(n.next.keyPtr()), key)
		}
	}
}

// insert places the key buffer kp, whose hash is h, into the table. The
// key must not already be present. Grows the table when the flat surface
// around the home bucket is exhausted and the load factor has reached
// one.
func (s *Set) insert(kp unsafe.Pointer, h uint64) {
	for {
		bid := s.bucketID(h)
		if offs := s.findEmptyAround(bid); offs != 2 {
			dst := &s.slots[uint32(int64(bid)+int64(offs))]
			dst.setKey(kp)
			if offs != 0 {
				dst.setDisplaced()
			}
			return
		}
		if s.size >= uint32(len(s.slots)) {
			s.growTo(s.capacityLog + 1)
			continue
		}
		s.link(kp, bid)
		return
	}
}

// link adds the key buffer kp to the overflow chain rooted at bucket bid.
// If the bucket slot holds a key displaced from a neighboring bucket,
// the new key takes over the slot and that resident is relocated to its
// true home so that every key reachable through a bucket's chain is
// homed at that bucket; burying a displaced key under a foreign chain
// would make it unreachable through the three-slot-plus-chain lookup
// path.
func (s *Set) link(kp unsafe.Pointer, bid uint32) {
	dst := &s.slots[bid]
	if dst.empty() {
		dst.setKey(kp)
		return
	}
	if dst.isInline() && dst.isDisplaced() {
		rp := dst.keyPtr()
		home := s.bucketID(s.hash(decodeKey(rp), s.seed))
		if debug {
			fmt.Printf("link(%d): relocating displaced resident to home %d\n", bid, home)
		}
		// The new key is placed before the resident moves, so a cascade
		// that comes back to bid chains onto it instead of being
		// overwritten. The relocation clears one displaced slot and
		// never sets a new one, so the recursion terminates.
		dst.setKey(kp)
		s.link(rp, home)
		return
	}
	n := s.allocator.AllocNode()
	n.key.setKey(kp)
	n.next = *dst
	dst.setLink(n)
	s.chainEntries++
}

// growTo doubles (or multiply-doubles) the bucket array to 1<<newLog and
// reinserts every key. Key buffers are reused; only the slot array and
// the chain nodes are rebuilt.
//
// TODO: halve the table on sustained low load. The scan cursor already
// tolerates halving since merged buckets keep their top-bit prefix.
func (s *Set) growTo(newLog uint8) {
	if debug {
		fmt.Printf("grow: %d -> %d buckets, %d keys\n", len(s.slots), 1<<newLog, s.size)
	}
	old := s.slots
	s.slots = s.allocator.AllocSlots(1 << newLog)
	s.capacityLog = newLog
	for i := range old {
		sl := old[i]
		switch {
		case sl.empty():
		case !sl.isLink():
			p := sl.keyPtr()
			s.insert(p, s.hash(decodeKey(p), s.seed))
		default:
			n := sl.node()
			for {
				p := n.key.keyPtr()
				s.insert(p, s.hash(decodeKey(p), s.seed))
				if !n.next.isLink() {
					p = n.next.keyPtr()
					s.freeNode(n)
					s.insert(p, s.hash(decodeKey(p), s.seed))
					break
				}
				next := n.next.node()
				s.freeNode(n)
				n = next
			}
		}
	}
	if old != nil {
		s.allocator.FreeSlots(old)
	}
	s.checkInvariants()
}

// unchain removes key from the chain rooted at bid, splicing the chain
// and collapsing it back to an inline slot when a single key remains.
func (s *Set) unchain(key []byte, bid uint32) bool {
	cur := &s.slots[bid]
	for cur.isLink() {
		n := cur.node()
		if bytes.Equal(decodeKey(n.key.keyPtr()), key) {
			s.freeKey(n.key.keyPtr())
			*cur = n.next
			s.freeNode(n)
			return true
		}
		if !n.next.isLink() {
			if bytes.Equal(decodeKey(n.next.keyPtr()), key) {
				s.freeKey(n.next.keyPtr())
				// The node's own key becomes the new terminal, stored
				// inline in whatever slot referenced the node.
				kp := n.key.keyPtr()
				s.freeNode(n)
				cur.setKey(kp)
				return true
			}
			return false
		}
		cur = &n.next
	}
	return false
}
