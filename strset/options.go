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

// option provides an interface to do work on a Set while it is being
// created.
type option interface {
	apply(s *Set)
}

type hashOption struct {
	hash hashFn
}

func (op hashOption) apply(s *Set) {
	s.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Set.
// The table addresses buckets with the top bits of the hash, so the
// supplied function must distribute those bits uniformly.
func WithHash(hash func(key []byte, seed uint64) uint64) option {
	return hashOption{hash}
}

type seedOption struct {
	seed uint64
}

func (op seedOption) apply(s *Set) {
	s.seed = op.seed
}

// WithSeed is an option to fix the hash seed of a Set. Useful for tests
// that need reproducible placement.
func WithSeed(seed uint64) option {
	return seedOption{seed}
}

// Allocator specifies an interface for allocating and releasing the
// memory used by a Set: the slot array, the length-prefixed key buffers,
// and the overflow chain nodes. The default allocator uses Go's builtin
// make/new and lets the GC reclaim memory.
//
// If the allocator manages memory manually then Set.Close must be called
// so that every Free method sees its allocation back.
type Allocator interface {
	// AllocSlots should return a slice equivalent to make([]Slot, n).
	AllocSlots(n int) []Slot

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot)

	// AllocBytes should return a slice equivalent to make([]byte, n),
	// with len(v) == cap(v) == n.
	AllocBytes(n int) []byte

	// FreeBytes can optionally release a buffer previously returned by
	// AllocBytes. The slice passed in has the same length as the
	// original allocation.
	FreeBytes(v []byte)

	// AllocNode should return a zeroed *Node.
	AllocNode() *Node

	// FreeNode can optionally release a node previously returned by
	// AllocNode. The node is zeroed before it is passed in.
	FreeNode(n *Node)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocSlots(n int) []Slot {
	return make([]Slot, n)
}

func (defaultAllocator) FreeSlots(v []Slot) {
}

func (defaultAllocator) AllocBytes(n int) []byte {
	return make([]byte, n)
}

func (defaultAllocator) FreeBytes(v []byte) {
}

func (defaultAllocator) AllocNode() *Node {
	return new(Node)
}

func (defaultAllocator) FreeNode(n *Node) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(s *Set) {
	s.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a
// Set.
func WithAllocator(allocator Allocator) option {
	return allocatorOption{allocator}
}
