package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorAdvance(t *testing.T) {
	var v vector
	v.reset([]byte("abc"), nil, []byte("de"), []byte{}, []byte("f"))
	require.Len(t, v.bufs, 3)
	require.Equal(t, 6, v.remaining())

	v.advance(2)
	require.Equal(t, [][]byte{[]byte("c"), []byte("de"), []byte("f")}, v.bufs)
	v.advance(3)
	require.Equal(t, [][]byte{[]byte("f")}, v.bufs)
	v.advance(1)
	require.True(t, v.empty())
}

func TestVectorHeadIsCapped(t *testing.T) {
	var v vector
	for range maxIOV + 10 {
		v.push([]byte{1})
	}
	require.Len(t, v.head(), maxIOV)
	v.advance(maxIOV)
	require.Len(t, v.head(), 10)
}
