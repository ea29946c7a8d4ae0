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
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestKeyEncoding(t *testing.T) {
	// 254 is the longest key with a 1-byte header; 255 needs the long
	// form.
	for _, n := range []int{0, 1, 44, 254, 255, 1 << 16} {
		key := []byte(strings.Repeat("k", n))
		buf := make([]byte, encodedLen(n))
		encodeKey(buf, key)
		p := unsafe.Pointer(unsafe.SliceData(buf))
		require.Equal(t, key, append([]byte{}, decodeKey(p)...))
		require.Equal(t, len(buf), storedLen(p))
	}
	require.Equal(t, 255, encodedLen(254))
	require.Equal(t, 260, encodedLen(255))
}

func TestSlotStates(t *testing.T) {
	var sl Slot
	require.True(t, sl.empty())
	require.False(t, sl.isInline())
	require.False(t, sl.isLink())

	buf := make([]byte, encodedLen(3))
	encodeKey(buf, []byte("abc"))
	sl.setKey(unsafe.Pointer(unsafe.SliceData(buf)))
	require.True(t, sl.isInline())
	require.False(t, sl.isDisplaced())
	require.Equal(t, []byte("abc"), sl.keyBytes())

	sl.setDisplaced()
	require.True(t, sl.isDisplaced())
	sl.clearDisplaced()
	require.False(t, sl.isDisplaced())

	// A chain head resolves its key bytes through the terminal slot.
	term := make([]byte, encodedLen(3))
	encodeKey(term, []byte("xyz"))
	n := &Node{}
	n.key.setKey(unsafe.Pointer(unsafe.SliceData(buf)))
	n.next.setKey(unsafe.Pointer(unsafe.SliceData(term)))
	sl.setLink(n)
	require.True(t, sl.isLink())
	require.False(t, sl.isInline())
	require.Equal(t, []byte("xyz"), sl.keyBytes())

	sl.clear()
	require.True(t, sl.empty())
}
