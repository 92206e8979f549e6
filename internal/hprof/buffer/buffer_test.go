package buffer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAdvancesAndAliasesWindow(t *testing.T) {
	b := New(bytes.NewReader([]byte{1, 2, 3, 4, 5}))

	v, err := b.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)
	assert.True(t, &v[0] == &b.window[0], "Get must return a view into the window, not a copy")
	assert.EqualValues(t, 3, b.TotalConsumed())

	v2, err := b.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, v2)
	assert.EqualValues(t, 5, b.TotalConsumed())
}

func TestGetCopyIsIndependentOfSubsequentReads(t *testing.T) {
	b := New(bytes.NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD}))

	first, err := b.GetCopy(2)
	require.NoError(t, err)

	_, err = b.Get(2)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xAA, 0xBB}, first)
}

func TestEnsureRefillsAcrossSmallChunks(t *testing.T) {
	// A reader that dribbles out one byte at a time forces the refill in
	// ensure() to assemble the window from many short reads.
	r := &iotest_oneByteReader{data: []byte("java/lang/Object")}
	b := New(r)

	v, err := b.Get(len("java/lang/Object"))
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", string(v))
}

func TestSkipNeverReturnsData(t *testing.T) {
	b := New(bytes.NewReader(make([]byte, 100)))
	require.NoError(t, b.Skip(40))
	assert.EqualValues(t, 40, b.TotalConsumed())

	v, err := b.Get(10)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), v)
}

func TestTakeStopsAtTerminatorAndConsumesIt(t *testing.T) {
	b := New(bytes.NewReader([]byte("JAVA PROFILE 1.0.2\x00rest")))

	banner, err := b.Take(0)
	require.NoError(t, err)
	assert.Equal(t, "JAVA PROFILE 1.0.2", string(banner))

	rest, err := b.Get(4)
	require.NoError(t, err)
	assert.Equal(t, "rest", string(rest))
}

func TestTypedReadersAreBigEndian(t *testing.T) {
	b := New(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x01, 0xFF, 0xFF}))

	u32, err := b.U32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, u32)

	u16, err := b.U16()
	require.NoError(t, err)
	assert.EqualValues(t, 0xFFFF, u16)
}

func TestEndOfStreamOnShortRead(t *testing.T) {
	b := New(bytes.NewReader([]byte{1, 2}))
	_, err := b.Get(10)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

// iotest_oneByteReader returns at most one byte per Read call, exercising
// a refill built from many short reads without pulling in a test-only
// third-party dependency for something this small.
type iotest_oneByteReader struct {
	data []byte
}

func (r *iotest_oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}
