//go:build linux

package kernel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeStackBytesStopsAtZero(t *testing.T) {
	raw := make([]byte, 127*8)
	binary.LittleEndian.PutUint64(raw[0:8], 0xdeadbeef)
	binary.LittleEndian.PutUint64(raw[8:16], 0xfeedface)
	// remaining bytes stay zero

	trace := decodeStackBytes(raw)
	require.EqualValues(t, 2, trace.Len)
	require.EqualValues(t, 0xdeadbeef, trace.IPs[0])
	require.EqualValues(t, 0xfeedface, trace.IPs[1])
}

func TestDecodeStackBytesFullDepth(t *testing.T) {
	raw := make([]byte, 127*8)
	for i := 0; i < 127; i++ {
		binary.LittleEndian.PutUint64(raw[i*8:i*8+8], uint64(i+1))
	}
	trace := decodeStackBytes(raw)
	require.EqualValues(t, 127, trace.Len)
	require.EqualValues(t, 127, trace.IPs[126])
}

func TestDecodeStackBytesEmpty(t *testing.T) {
	raw := make([]byte, 127*8)
	trace := decodeStackBytes(raw)
	require.EqualValues(t, 0, trace.Len)
}
