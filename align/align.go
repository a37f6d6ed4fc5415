// Package align holds the in-memory model shared by the MAF and TAF codecs:
// alignment blocks, their rows, and the key:value tags attached to headers
// and columns.  It also provides the cross-block row linker and the block
// merger used for normalization.
package align

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
)

// QualityTagKey is the reserved column tag key carrying per-row base
// qualities, as transposed from MAF q lines.
const QualityTagKey = "q"

// Tag is one key:value annotation.
type Tag struct {
	Key, Value string
}

// Tags is an ordered tag list.  Keys may repeat; order is preserved by
// parsers and writers.
type Tags []Tag

// Find returns the value of the first tag with the given key.
func (t Tags) Find(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// Remove returns t without the first tag with the given key.
func (t Tags) Remove(key string) Tags {
	for i, tag := range t {
		if tag.Key == key {
			return append(t[:i:i], t[i+1:]...)
		}
	}
	return t
}

// ParseTags parses each token as key<delim>value.
func ParseTags(tokens []string, delim string) (Tags, error) {
	var tags Tags
	for _, tok := range tokens {
		i := strings.Index(tok, delim)
		if i < 0 || strings.Index(tok[i+len(delim):], delim) >= 0 {
			return nil, errors.E("tag not separated by", delim, "character:", tok)
		}
		tags = append(tags, Tag{Key: tok[:i], Value: tok[i+len(delim):]})
	}
	return tags, nil
}

// Format renders the tags as " key<delim>value" pairs, the shared layout of
// the ##maf and #taf header lines and of TAF column tags.
func (t Tags) Format(delim string) string {
	var sb strings.Builder
	for _, tag := range t {
		sb.WriteByte(' ')
		sb.WriteString(tag.Key)
		sb.WriteString(delim)
		sb.WriteString(tag.Value)
	}
	return sb.String()
}

// Row is one aligned sequence segment within a block.
type Row struct {
	Name      string // sequence name; identity is byte equality of Name plus Strand
	Start     int64  // 0-based start on the forward strand
	Length    int64  // number of non-gap bases in Bases
	SeqLength int64  // length of the whole sequence
	Strand    bool   // true is "+"
	Bases     []byte // [A-Za-z*+-]* of length equal to the block's column count

	// LeftGapSeq is the optional interstitial gap sequence: the unaligned
	// substring between the end of the predecessor row and Start.  nil if
	// unspecified.
	LeftGapSeq []byte

	// Pred and Succ connect the row to its continuation in the previous and
	// next block of the same stream.  They are weak: neither side owns the
	// other, and both are meaningless once the owning block is dropped.
	Pred, Succ *Row
}

// End returns Start + Length.
func (r *Row) End() int64 { return r.Start + r.Length }

// Precedes reports whether r represents a segment on the same sequence and
// strand as s that ends no later than s begins, i.e. r is a strict
// predecessor of s.
func (r *Row) Precedes(s *Row) bool {
	return r.Name == s.Name && r.Strand == s.Strand && r.Start+r.Length <= s.Start
}

// String returns a MAF-style rendering of the row, useful for debugging.
func (r *Row) String() string {
	strand := "-"
	if r.Strand {
		strand = "+"
	}
	return fmt.Sprintf("%s %d %d %s %d %s", r.Name, r.Start, r.Length, strand, r.SeqLength, r.Bases)
}

// Block is one alignment block: an ordered list of rows sharing a common
// column count, plus optional per-column tag lists.
type Block struct {
	Rows []*Row
	// ColumnTags holds one tag list per column.  nil means no column carries
	// tags; otherwise its length equals Columns().
	ColumnTags []Tags
}

// Columns returns the number of columns in the block.
func (b *Block) Columns() int {
	if len(b.Rows) == 0 {
		return 0
	}
	return len(b.Rows[0].Bases)
}

// Column materializes column i as a string with one character per row.
func (b *Block) Column(i int) string {
	buf := make([]byte, len(b.Rows))
	for j, row := range b.Rows {
		buf[j] = row.Bases[i]
	}
	return unsafe.BytesToString(buf)
}

// Tags returns the tag list of column i, or nil.
func (b *Block) Tags(i int) Tags {
	if b.ColumnTags == nil {
		return nil
	}
	return b.ColumnTags[i]
}

// MaskReferenceBases replaces, in every row but the first, each base that
// matches the reference (row 0) base in the same column, ignoring case, with
// the mask character.  Gaps are never masked.
func (b *Block) MaskReferenceBases(mask byte) {
	if len(b.Rows) == 0 {
		return
	}
	ref := b.Rows[0].Bases
	for _, row := range b.Rows[1:] {
		for i, base := range row.Bases {
			if base != '-' && toUpper(base) == toUpper(ref[i]) {
				row.Bases[i] = mask
			}
		}
	}
}

func toUpper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// TotalGapLength returns the longest interstitial gap between b and the next
// block, over all rows of b linked to a strict successor.
func (b *Block) TotalGapLength() int64 {
	var total int64
	for _, row := range b.Rows {
		if row.Succ != nil && row.Precedes(row.Succ) {
			if g := row.Succ.Start - row.End(); g > total {
				total = g
			}
		}
	}
	return total
}

// SharedRowCount returns the number of rows of right whose link to left is a
// strict predecessor.
func SharedRowCount(left, right *Block) int {
	n := 0
	for _, row := range right.Rows {
		if row.Pred != nil && row.Pred.Precedes(row) {
			n++
		}
	}
	return n
}

// Source is a forward cursor over alignment blocks.  Next returns io.EOF
// when the stream is exhausted.
type Source interface {
	Next() (*Block, error)
}
