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
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func benchSizes(f func(b *testing.B, n int)) func(*testing.B) {
	cases := []int{16, 128, 1024, 8192, 1 << 16}
	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n) })
		}
	}
}

func benchKeys(start, end int) [][]byte {
	keys := make([][]byte, end-start)
	for i := range keys {
		keys[i] = []byte("key-" + strconv.Itoa(start+i))
	}
	return keys
}

func BenchmarkAddGrow(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			m := make(map[string]struct{})
			for _, k := range keys {
				m[string(k)] = struct{}{}
			}
		}
		b.StopTimer()
		cs.Stop()
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s := New(0)
			for _, k := range keys {
				s.Add(k)
			}
		}
		b.StopTimer()
		cs.Stop()
	}))
}

func BenchmarkAddPreAllocate(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			m := make(map[string]struct{}, n)
			for _, k := range keys {
				m[string(k)] = struct{}{}
			}
		}
		b.StopTimer()
		cs.Stop()
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s := New(n)
			for _, k := range keys {
				s.Add(k)
			}
		}
		b.StopTimer()
		cs.Stop()
	}))
}

func BenchmarkContainsHit(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		m := make(map[string]struct{}, n)
		for _, k := range keys {
			m[string(k)] = struct{}{}
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var ok bool
		for i := 0; i < b.N; i++ {
			_, ok = m[string(keys[i%n])]
		}
		b.StopTimer()
		cs.Stop()
		_ = ok
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		s := New(n)
		for _, k := range keys {
			s.Add(k)
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var ok bool
		for i := 0; i < b.N; i++ {
			ok = s.Contains(keys[i%n])
		}
		b.StopTimer()
		cs.Stop()
		_ = ok
	}))
}

func BenchmarkContainsMiss(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		miss := benchKeys(-n, 0)
		m := make(map[string]struct{}, n)
		for _, k := range keys {
			m[string(k)] = struct{}{}
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var ok bool
		for i := 0; i < b.N; i++ {
			_, ok = m[string(miss[i%n])]
		}
		b.StopTimer()
		cs.Stop()
		_ = ok
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		miss := benchKeys(-n, 0)
		s := New(n)
		for _, k := range keys {
			s.Add(k)
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var ok bool
		for i := 0; i < b.N; i++ {
			ok = s.Contains(miss[i%n])
		}
		b.StopTimer()
		cs.Stop()
		_ = ok
	}))
}

func BenchmarkAddRemove(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		m := make(map[string]struct{}, n)
		for _, k := range keys {
			m[string(k)] = struct{}{}
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			k := keys[i%n]
			delete(m, string(k))
			m[string(k)] = struct{}{}
		}
		b.StopTimer()
		cs.Stop()
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		s := New(n)
		for _, k := range keys {
			s.Add(k)
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			k := keys[i%n]
			s.Remove(k)
			s.Add(k)
		}
		b.StopTimer()
		cs.Stop()
	}))
}

func BenchmarkIter(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		m := make(map[string]struct{}, n)
		for _, k := range keys {
			m[string(k)] = struct{}{}
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var total int
		for i := 0; i < b.N; i++ {
			for k := range m {
				total += len(k)
			}
		}
		b.StopTimer()
		cs.Stop()
		_ = total
	}))
	b.Run("impl=strset", benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		s := New(n)
		for _, k := range keys {
			s.Add(k)
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var total int
		for i := 0; i < b.N; i++ {
			s.All(func(k []byte) bool {
				total += len(k)
				return true
			})
		}
		b.StopTimer()
		cs.Stop()
		_ = total
	}))
}

func BenchmarkScan(b *testing.B) {
	benchSizes(func(b *testing.B, n int) {
		keys := benchKeys(0, n)
		s := New(n)
		for _, k := range keys {
			s.Add(k)
		}
		cs := perfbench.Open(b)
		b.ResetTimer()
		var total int
		for i := 0; i < b.N; i++ {
			for cursor := uint32(0); ; {
				cursor = s.Scan(cursor, func(k []byte) {
					total += len(k)
				})
				if cursor == 0 {
					break
				}
			}
		}
		b.StopTimer()
		cs.Stop()
		_ = total
	})(b)
}
