package align_test

import (
	"testing"

	"github.com/grailbio/taffy/align"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags(t *testing.T) {
	tags, err := align.ParseTags([]string{"k1:v1", "k2:v2", "k1:v3"}, ":")
	require.NoError(t, err)
	assert.Equal(t, align.Tags{{"k1", "v1"}, {"k2", "v2"}, {"k1", "v3"}}, tags)

	v, ok := tags.Find("k2")
	expect.True(t, ok)
	expect.EQ(t, v, "v2")
	_, ok = tags.Find("missing")
	expect.False(t, ok)

	// Remove drops only the first occurrence and preserves order.
	removed := tags.Remove("k1")
	assert.Equal(t, align.Tags{{"k2", "v2"}, {"k1", "v3"}}, removed)
	// The original is not disturbed.
	assert.Equal(t, 3, len(tags))

	assert.Equal(t, " k2:v2 k1:v3", removed.Format(":"))

	_, err = align.ParseTags([]string{"novalue"}, ":")
	assert.Error(t, err)
	_, err = align.ParseTags([]string{"a:b:c"}, ":")
	assert.Error(t, err)
}

func TestPrecedes(t *testing.T) {
	tests := []struct {
		left, right *align.Row
		want        bool
	}{
		{&align.Row{Name: "hg.chr1", Start: 10, Length: 5, Strand: true},
			&align.Row{Name: "hg.chr1", Start: 15, Strand: true}, true},
		{&align.Row{Name: "hg.chr1", Start: 10, Length: 5, Strand: true},
			&align.Row{Name: "hg.chr1", Start: 20, Strand: true}, true},
		// Overlapping segments are not predecessors.
		{&align.Row{Name: "hg.chr1", Start: 10, Length: 5, Strand: true},
			&align.Row{Name: "hg.chr1", Start: 14, Strand: true}, false},
		// Different sequence or strand never precedes.
		{&align.Row{Name: "hg.chr1", Start: 10, Length: 5, Strand: true},
			&align.Row{Name: "mm.chr1", Start: 15, Strand: true}, false},
		{&align.Row{Name: "hg.chr1", Start: 10, Length: 5, Strand: true},
			&align.Row{Name: "hg.chr1", Start: 15, Strand: false}, false},
	}
	for i, tt := range tests {
		expect.EQ(t, tt.left.Precedes(tt.right), tt.want, "case %d", i)
	}
}

func TestBlockColumns(t *testing.T) {
	block := &align.Block{Rows: []*align.Row{
		{Name: "a", Bases: []byte("ACG")},
		{Name: "b", Bases: []byte("A-G")},
	}}
	expect.EQ(t, block.Columns(), 3)
	expect.EQ(t, block.Column(0), "AA")
	expect.EQ(t, block.Column(1), "C-")
	expect.EQ(t, block.Column(2), "GG")
}

func TestMaskReferenceBases(t *testing.T) {
	block := &align.Block{Rows: []*align.Row{
		{Name: "hg", Bases: []byte("ACGT")},
		{Name: "mm", Bases: []byte("acUT")},
		{Name: "rn", Bases: []byte("A-G-")},
	}}
	block.MaskReferenceBases('*')
	assert.Equal(t, "ACGT", string(block.Rows[0].Bases))
	assert.Equal(t, "**U*", string(block.Rows[1].Bases))
	assert.Equal(t, "*-*-", string(block.Rows[2].Bases))
}

func TestTotalGapLength(t *testing.T) {
	l := &align.Row{Name: "hg.chr1", Start: 100, Length: 3, Strand: true}
	r := &align.Row{Name: "hg.chr1", Start: 105, Length: 2, Strand: true}
	l.Succ, r.Pred = r, l
	left := &align.Block{Rows: []*align.Row{l}}
	right := &align.Block{Rows: []*align.Row{r}}
	expect.EQ(t, left.TotalGapLength(), int64(2))
	expect.EQ(t, align.SharedRowCount(left, right), 1)
}
