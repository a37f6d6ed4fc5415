package lineio_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/taffy/lineio"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainPeekNextTell(t *testing.T) {
	in := "first\n\nthird\nlast has no newline"
	r, err := lineio.NewReader(strings.NewReader(in))
	require.NoError(t, err)
	expect.True(t, r.Indexable())

	line, err := r.Peek()
	require.NoError(t, err)
	assert.Equal(t, "first", line)
	assert.Equal(t, int64(0), r.Tell())

	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	// Blank lines are preserved.
	assert.Equal(t, int64(6), r.Tell())
	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", line)

	assert.Equal(t, int64(7), r.Tell())
	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "third", line)

	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "last has no newline", line)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	_, err = r.Peek()
	assert.Equal(t, io.EOF, err)
}

func TestPlainSeek(t *testing.T) {
	in := "alpha\nbeta\ngamma\n"
	r, err := lineio.NewReader(strings.NewReader(in))
	require.NoError(t, err)

	var offsets []int64
	var lines []string
	for {
		off := r.Tell()
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		offsets = append(offsets, off)
		lines = append(lines, line)
	}
	require.Equal(t, 3, len(lines))

	for i := len(offsets) - 1; i >= 0; i-- {
		require.NoError(t, r.Seek(offsets[i]))
		assert.Equal(t, offsets[i], r.Tell())
		line, err := r.Peek()
		require.NoError(t, err)
		assert.Equal(t, lines[i], line)
		line, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, lines[i], line)
	}
}

func TestSetPeek(t *testing.T) {
	r, err := lineio.NewReader(strings.NewReader("one\ntwo\n"))
	require.NoError(t, err)
	r.SetPeek("rewritten")
	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "rewritten", line)
	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", line)
}

func TestBGZFRoundTrip(t *testing.T) {
	var compressed bytes.Buffer
	w := lineio.NewBGZFWriter(&compressed, 1)
	lines := []string{"##maf version=1", "", "a", "s hg.chr1 0 4 + 8 ACGT", ""}
	for _, line := range lines {
		_, err := w.WriteString(line + "\n")
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r, err := lineio.NewReader(bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	expect.True(t, r.Indexable())

	var offsets []int64
	for _, want := range lines {
		off := r.Tell()
		line, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, line)
		offsets = append(offsets, off)
	}
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)

	// Virtual offsets seek back to every line.
	for i := len(lines) - 1; i >= 0; i-- {
		require.NoError(t, r.Seek(offsets[i]))
		line, err := r.Peek()
		require.NoError(t, err)
		assert.Equal(t, lines[i], line)
	}
}

func TestGzipReadableNotIndexable(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := lineio.NewReader(bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	expect.False(t, r.Indexable())

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", line)
	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", line)

	assert.Equal(t, lineio.ErrNotIndexable, r.Seek(0))
}

func TestNonSeekableStreamNotIndexable(t *testing.T) {
	// An io.Reader without Seek still reads fine.
	r, err := lineio.NewReader(iotest{strings.NewReader("x\ny\n")})
	require.NoError(t, err)
	expect.False(t, r.Indexable())
	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "x", line)
}

func TestPackOffset(t *testing.T) {
	for _, v := range []int64{0, 1, 0xffff, 0x10000, 0x123456789} {
		assert.Equal(t, v, lineio.PackOffset(lineio.UnpackOffset(v)))
	}
}

// iotest hides the Seek method of the wrapped reader.
type iotest struct {
	r io.Reader
}

func (i iotest) Read(p []byte) (int, error) { return i.r.Read(p) }
