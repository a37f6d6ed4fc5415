package tai_test

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/taffy/align"
	"github.com/grailbio/taffy/encoding/taf"
	"github.com/grailbio/taffy/encoding/tai"
	"github.com/grailbio/taffy/lineio"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineReader(t *testing.T, in string) *lineio.Reader {
	li, err := lineio.NewReader(strings.NewReader(in))
	require.NoError(t, err)
	return li
}

// testTAF builds a TAF document with four adjacent 1000-column single-row
// blocks on hg.chr1 starting at 0, 1000, 2000 and 3000.  With the chosen
// repeat interval the block at 2000 restates its coordinates, so the file
// carries restart anchors at 0 and 2000.
func testTAF(t *testing.T) string {
	var out bytes.Buffer
	w := taf.NewWriter(&out, taf.WriterOpts{RepeatCoordinatesEveryNColumns: 1500})
	require.NoError(t, w.WriteHeader(nil))
	bases := strings.Repeat("ACGT", 250)
	var prev *align.Block
	for start := int64(0); start < 4000; start += 1000 {
		row := &align.Row{
			Name:      "hg.chr1",
			Start:     start,
			Length:    1000,
			SeqLength: 10000,
			Strand:    true,
			Bases:     []byte(bases),
		}
		block := &align.Block{Rows: []*align.Row{row}}
		if prev != nil {
			align.Link(prev, block, true)
		}
		require.NoError(t, w.Write(block))
		prev = block
	}
	return out.String()
}

func createIndex(t *testing.T, doc string, blockSize int64) (*tai.Index, string) {
	var out bytes.Buffer
	require.NoError(t, tai.Create(lineReader(t, doc), &out, blockSize))
	maf := taf.SniffFormat(strings.Split(doc, "\n")[0]) == taf.FormatMAF
	idx, err := tai.Load(bytes.NewReader(out.Bytes()), maf)
	require.NoError(t, err)
	return idx, out.String()
}

func TestCreateTAF(t *testing.T) {
	doc := testTAF(t)
	_, raw := createIndex(t, doc, 1500)
	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	require.Equal(t, 2, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "hg.chr1\t0\t"), "line %q", lines[0])
	// The continuation row holds deltas.
	assert.True(t, strings.HasPrefix(lines[1], "*\t2000\t"), "line %q", lines[1])
}

// collect drains an iterator.
func collect(t *testing.T, it *tai.Iterator) []*align.Block {
	var blocks []*align.Block
	for {
		block, err := it.Next()
		if err == io.EOF {
			return blocks
		}
		require.NoError(t, err)
		blocks = append(blocks, block)
	}
}

func TestRangeQuery(t *testing.T) {
	doc := testTAF(t)
	idx, _ := createIndex(t, doc, 1500)

	tests := []struct {
		start, length int64
		wantStarts    []int64
		wantLengths   []int64
	}{
		// Inside the anchored block at 2000.
		{2500, 100, []int64{2500}, []int64{100}},
		// Spanning the 2000/3000 block boundary.
		{2900, 200, []int64{2900, 3000}, []int64{100, 100}},
		// Before the first anchor, scanning from offset 0.
		{500, 100, []int64{500}, []int64{100}},
		// Starting inside the unanchored block at 1000 requires scanning
		// forward from the anchor at 0.
		{1500, 600, []int64{1500, 2000}, []int64{500, 100}},
		// A full block exactly.
		{1000, 1000, []int64{1000}, []int64{1000}},
		// Running off the end of the covered reference.
		{3900, 500, []int64{3900}, []int64{100}},
	}
	for _, tt := range tests {
		it, err := idx.NewIterator(lineReader(t, doc), false, "hg.chr1", tt.start, tt.length)
		require.NoError(t, err, "query %d+%d", tt.start, tt.length)
		blocks := collect(t, it)
		require.Equal(t, len(tt.wantStarts), len(blocks), "query %d+%d", tt.start, tt.length)
		for i, block := range blocks {
			row := block.Rows[0]
			assert.Equal(t, "hg.chr1", row.Name)
			assert.True(t, row.Strand)
			assert.Equal(t, tt.wantStarts[i], row.Start, "query %d+%d block %d", tt.start, tt.length, i)
			assert.Equal(t, tt.wantLengths[i], row.Length, "query %d+%d block %d", tt.start, tt.length, i)
			expect.EQ(t, len(row.Bases), block.Columns())
		}
	}
}

func TestRangeQueryMisses(t *testing.T) {
	doc := testTAF(t)
	idx, _ := createIndex(t, doc, 1500)

	// Unknown contig.
	_, err := idx.NewIterator(lineReader(t, doc), false, "mm.chr1", 0, 100)
	assert.Equal(t, tai.ErrNotFound, err)

	// Past the end of the covered reference.
	_, err = idx.NewIterator(lineReader(t, doc), false, "hg.chr1", 4500, 100)
	assert.Equal(t, tai.ErrNotFound, err)
}

func TestIndexMAF(t *testing.T) {
	var doc strings.Builder
	doc.WriteString("##maf version=1\n\n")
	bases := strings.Repeat("GATTACAT", 125)
	for start := 0; start < 4000; start += 1000 {
		fmt.Fprintf(&doc, "a\ns hg.chr1 %d 1000 + 10000 %s\n\n", start, bases)
	}
	idx, raw := createIndex(t, doc.String(), 1500)
	// Every MAF block is seekable, so entries land at 0, 2000 (and not at
	// 1000 or 3000, which are within blockSize of their predecessors).
	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	require.Equal(t, 2, len(lines))

	it, err := idx.NewIterator(lineReader(t, doc.String()), false, "hg.chr1", 1500, 600)
	require.NoError(t, err)
	blocks := collect(t, it)
	require.Equal(t, 2, len(blocks))
	assert.Equal(t, int64(1500), blocks[0].Rows[0].Start)
	assert.Equal(t, int64(500), blocks[0].Rows[0].Length)
	assert.Equal(t, int64(2000), blocks[1].Rows[0].Start)
	assert.Equal(t, int64(100), blocks[1].Rows[0].Length)
}

func TestNegativeStrandReferenceRejected(t *testing.T) {
	doc := "##maf\n\na\ns hg.chr1 0 4 - 100 ACGT\n\n"
	var out bytes.Buffer
	err := tai.Create(lineReader(t, doc), &out, 1000)
	assert.Error(t, err)
}

func TestSequenceLengths(t *testing.T) {
	doc := testTAF(t)
	idx, _ := createIndex(t, doc, 1500)
	lengths, err := idx.SequenceLengths(lineReader(t, doc))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"hg.chr1": 10000}, lengths)
}

func TestLoadSkipsShortLines(t *testing.T) {
	idx, err := tai.Load(strings.NewReader("garbage\nhg.chr1\t0\t16\n*\t2000\t128\n"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hg.chr1"}, idx.Contigs())
}

func TestLoadRelativeRowWithoutName(t *testing.T) {
	_, err := tai.Load(strings.NewReader("*\t100\t10\n"), false)
	assert.Error(t, err)
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		region string
		contig string
		start  int64
		length int64
		err    bool
	}{
		{"chr1:10-13", "chr1", 10, 3, false},
		{"chr1:10", "chr1", 10, 1, false},
		{"chr1", "chr1", 0, -1, false},
		{"hg.chr1:0-1000", "hg.chr1", 0, 1000, false},
		{"chr1:13-10", "", 0, 0, true},
		{"chr1:", "", 0, 0, true},
		{"", "", 0, 0, true},
		{"chr1:ten", "", 0, 0, true},
	}
	for _, tt := range tests {
		contig, start, length, err := tai.ParseRegion(tt.region)
		if tt.err {
			assert.Error(t, err, "region %q", tt.region)
			continue
		}
		require.NoError(t, err, "region %q", tt.region)
		assert.Equal(t, tt.contig, contig)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.length, length)
	}
}

func TestPath(t *testing.T) {
	expect.EQ(t, tai.Path("aln.taf"), "aln.taf.tai")
}
