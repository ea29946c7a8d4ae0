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

import (
	"fmt"
	"strings"
)

func (s *Set) checkInvariants() {
	if invariants {
		s.verify()
	}
}

// verify walks the whole table and panics on any violated structural
// invariant: displaced slots must be homed at an adjacent bucket,
// undisplaced inline slots at their own bucket, every chained key at the
// chain's bucket, every key must be reachable through the three-slot-
// plus-chain lookup path, and the size, chain and byte counters must
// match what the walk observes.
func (s *Set) verify() {
	var keys, chains uint32
	var obj uint64

	checkKey := func(sl *Slot, bid uint32, wantHome func(home uint32) bool, what string) {
		key := decodeKey(sl.keyPtr())
		keys++
		obj += uint64(storedLen(sl.keyPtr()))
		if home := s.homeOf(sl); !wantHome(home) {
			panic(fmt.Sprintf("invariant failed: %s %q at bucket %d has home %d\n%s",
				what, key, bid, home, s.debugString()))
		}
		if !s.Contains(key) {
			panic(fmt.Sprintf("invariant failed: %s %q at bucket %d not reachable\n%s",
				what, key, bid, s.debugString()))
		}
	}

	for i := range s.slots {
		sl := &s.slots[i]
		bid := uint32(i)
		switch {
		case sl.empty():
		case !sl.isLink():
			if sl.isDisplaced() {
				checkKey(sl, bid, func(home uint32) bool {
					return home == bid-1 || home == bid+1
				}, "displaced key")
			} else {
				checkKey(sl, bid, func(home uint32) bool { return home == bid }, "inline key")
			}
		default:
			atHome := func(home uint32) bool { return home == bid }
			for n := sl.node(); ; n = n.next.node() {
				chains++
				checkKey(&n.key, bid, atHome, "chained key")
				if n.key.tags != 0 {
					panic(fmt.Sprintf("invariant failed: chained key slot at bucket %d carries tags %#x", bid, n.key.tags))
				}
				if !n.next.isLink() {
					checkKey(&n.next, bid, atHome, "terminal key")
					break
				}
			}
		}
	}

	if keys != s.size {
		panic(fmt.Sprintf("invariant failed: found %d keys, but size is %d\n%s",
			keys, s.size, s.debugString()))
	}
	if chains != s.chainEntries {
		panic(fmt.Sprintf("invariant failed: found %d chain nodes, but counter is %d\n%s",
			chains, s.chainEntries, s.debugString()))
	}
	if obj != s.objMallocUsed {
		panic(fmt.Sprintf("invariant failed: found %d key bytes, but counter is %d\n%s",
			obj, s.objMallocUsed, s.debugString()))
	}
}

func (s *Set) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d size=%d chain-entries=%d\n",
		len(s.slots), s.size, s.chainEntries)
	for i := range s.slots {
		sl := &s.slots[i]
		switch {
		case sl.empty():
		case !sl.isLink():
			tag := ""
			if sl.isDisplaced() {
				tag = " displaced"
			}
			fmt.Fprintf(&buf, "  %4d: %q%s\n", i, decodeKey(sl.keyPtr()), tag)
		default:
			fmt.Fprintf(&buf, "  %4d:", i)
			for n := sl.node(); ; n = n.next.node() {
				fmt.Fprintf(&buf, " -> %q", decodeKey(n.key.keyPtr()))
				if !n.next.isLink() {
					fmt.Fprintf(&buf, " -> %q", decodeKey(n.next.keyPtr()))
					break
				}
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
