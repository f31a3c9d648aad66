package buffer

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// specsOf converts signed lengths (negative = direct) to specs.
func specsOf(lengths ...int) []Spec {
	out := make([]Spec, len(lengths))
	for i, n := range lengths {
		if n < 0 {
			out[i] = Spec{Size: -n, Direct: true}
		} else {
			out[i] = Spec{Size: n}
		}
	}
	return out
}

func TestAllocateMergesRunsByKind(t *testing.T) {
	l, err := NewAllocator().Allocate(specsOf(5, 3, -4, -2, 6))
	require.NoError(t, err)
	defer l.Release()

	require.Len(t, l.Blocks, 3)
	require.Equal(t, 8, l.Blocks[0].Len())
	require.False(t, l.Blocks[0].Direct())
	require.Equal(t, 6, l.Blocks[1].Len())
	require.True(t, l.Blocks[1].Direct())
	require.Equal(t, 6, l.Blocks[2].Len())
	require.False(t, l.Blocks[2].Direct())

	wantOwner := []int{0, 0, 1, 1, 2}
	wantLen := []int{5, 3, 4, 2, 6}
	for i, v := range l.Views {
		require.Len(t, v, wantLen[i])
		require.Equal(t, cap(v), len(v), "view %d must not reach into its neighbour", i)
		require.Same(t, l.Blocks[wantOwner[i]], l.Owners[i])
	}

	// Views inside a block are contiguous.
	base := unsafe.Pointer(&l.Blocks[0].Bytes()[0])
	require.Equal(t, base, unsafe.Pointer(&l.Views[0][0]))
	require.Equal(t, unsafe.Add(base, 5), unsafe.Pointer(&l.Views[1][0]))
	base = unsafe.Pointer(&l.Blocks[1].Bytes()[0])
	require.Equal(t, unsafe.Add(base, 4), unsafe.Pointer(&l.Views[3][0]))

	// Writes through one view never leak into another.
	for i, v := range l.Views {
		for j := range v {
			v[j] = byte(i + 1)
		}
	}
	require.Equal(t, []byte{1, 1, 1, 1, 1, 2, 2, 2}, l.Blocks[0].Bytes())
	require.Equal(t, []byte{3, 3, 3, 3, 4, 4}, l.Blocks[1].Bytes())
}

func TestAllocateSingleFieldRun(t *testing.T) {
	l, err := NewAllocator().Allocate(specsOf(-7))
	require.NoError(t, err)
	require.Len(t, l.Blocks, 1)
	require.Equal(t, 7, l.Blocks[0].Len())
	require.Equal(t, 1, l.Blocks[0].Refs())
	l.Release()
	require.Nil(t, l.Blocks[0].Bytes())
}

func TestAllocateRespectsMaxBlockSize(t *testing.T) {
	l, err := NewAllocator(WithMaxBlockSize(10)).Allocate(specsOf(4, 4, 4, 10, 1))
	require.NoError(t, err)
	defer l.Release()

	sizes := make([]int, len(l.Blocks))
	for i, b := range l.Blocks {
		sizes[i] = b.Len()
	}
	require.Equal(t, []int{8, 4, 10, 1}, sizes)
}

func TestAllocateRejectsOversizedField(t *testing.T) {
	_, err := NewAllocator(WithMaxBlockSize(10)).Allocate(specsOf(2, 11))
	require.True(t, errors.Is(err, ErrAllocationTooLarge))

	_, err = NewAllocator().Allocate([]Spec{{Size: -1}})
	require.ErrorIs(t, err, ErrNegativeSize)
}

func TestAllocateZeroSizedRun(t *testing.T) {
	specs := []Spec{{Size: 0}, {Size: 0}, {Size: 0, Direct: true}, {Size: 3}}
	l, err := NewAllocator().Allocate(specs)
	require.NoError(t, err)
	defer l.Release()

	require.Len(t, l.Blocks, 3)
	require.Equal(t, 0, l.Blocks[0].Len())
	require.Equal(t, 0, l.Blocks[1].Len())
	require.True(t, l.Blocks[1].Direct())
	for _, v := range l.Views[:3] {
		require.Empty(t, v)
	}
	require.Len(t, l.Views[3], 3)
}

func TestAllocateEmpty(t *testing.T) {
	l, err := NewAllocator().Allocate(nil)
	require.NoError(t, err)
	require.Empty(t, l.Blocks)
	require.Empty(t, l.Views)
}

func TestBlockRefCounting(t *testing.T) {
	l, err := NewAllocator().Allocate(specsOf(-16, -16))
	require.NoError(t, err)
	blk := l.Blocks[0]
	require.Equal(t, 2, blk.Refs())

	blk.Retain()
	l.Release()
	require.Equal(t, 1, blk.Refs())
	require.Len(t, blk.Bytes(), 32)

	blk.Release()
	require.Nil(t, blk.Bytes())
	// Extra releases are harmless.
	blk.Release()
}

func TestViewOutlivesReleasedDirectBlock(t *testing.T) {
	l, err := NewAllocator().Allocate(specsOf(-64<<10, -16))
	require.NoError(t, err)
	view := l.Views[0]
	for i := range view {
		view[i] = 0xAB
	}
	l.Release()
	l = nil

	for i := 0; i < 5; i++ {
		runtime.GC()
		_ = make([]byte, 64<<10)
	}
	for i, b := range view {
		require.Equal(t, byte(0xAB), b, "byte %d", i)
	}
	view[0] = 0x01
	require.Equal(t, byte(0x01), view[0])
}
