package tai

import (
	"io"
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/taffy/align"
	"github.com/grailbio/taffy/encoding/maf"
	"github.com/grailbio/taffy/encoding/taf"
	"github.com/grailbio/taffy/lineio"
)

// Iterator yields the blocks of one contig range, clipped to the range
// bounds.  It is a one-shot forward cursor and owns its line source for the
// duration of the iteration.
type Iterator struct {
	name       string
	start, end int64
	read       func() (*align.Block, error)
	cur        *align.Block // next block to clip and return
	prev       *align.Block // last returned block
}

// NewIterator seeks li to the index entry at or before (contig, start),
// scans forward to the first block intersecting [start, start+length), and
// returns an iterator over the intersecting blocks.  length < 0 means the
// rest of the contig.  rle is the indexed TAF's run_length_encode_bases
// setting (ignored for MAF).  ErrNotFound is returned when the region is
// not covered by the index.
func (idx *Index) NewIterator(li *lineio.Reader, rle bool, contig string, start, length int64) (*Iterator, error) {
	it := &Iterator{name: contig, start: start}
	if length < 0 {
		it.end = math.MaxInt64
	} else {
		it.end = start + length
	}

	e1 := idx.floor(contig, start)
	if e1 == nil || e1.name != contig {
		// The contig is not in the index, or the start position precedes
		// every entry for it.
		return nil, ErrNotFound
	}
	// The region start lies between e1 and e2, if e2 exists.
	e2 := idx.ceil(contig, it.end)

	if err := li.Seek(e1.filePos); err != nil {
		return nil, err
	}
	if idx.maf {
		r := maf.NewReader(li)
		var prev *align.Block
		it.read = func() (*align.Block, error) {
			block, err := r.Next()
			if err != nil {
				return nil, err
			}
			if prev != nil {
				align.Link(prev, block, true)
			}
			prev = block
			return block, nil
		}
	} else {
		// Force the anchor line to start a fresh block: express every
		// coordinate as an insertion so no previous block is needed.
		line, err := li.Peek()
		if err != nil {
			return nil, err
		}
		rewritten, err := taf.RewriteAnchor(line)
		if err != nil {
			return nil, err
		}
		li.SetPeek(rewritten)
		it.read = taf.NewReader(li, rle).Next
	}

	// Scan forward until a block overlaps the region.  Arriving at the next
	// index bucket first means the region is not covered.
	scanned := 0
	for {
		if e2 != nil && li.Tell() >= e2.filePos {
			return nil, ErrNotFound
		}
		block, err := it.read()
		if err == io.EOF {
			return nil, ErrNotFound
		} else if err != nil {
			return nil, err
		}
		scanned++
		if len(block.Rows) == 0 {
			continue
		}
		row := block.Rows[0]
		if row.Name == contig && row.Start < it.end && row.End() > start {
			// Cut the block loose from its predecessors so its absolute
			// coordinates stand.
			for _, r := range block.Rows {
				if r.Pred != nil {
					r.Pred.Succ = nil
					r.Pred = nil
				}
			}
			it.cur = block
			break
		}
	}
	log.Debug.Printf("tai: scanned %d blocks to find start of %s:%d", scanned, contig, start)
	return it, nil
}

// Next returns the current intersecting block clipped to the region, having
// already advanced past it, or io.EOF when the region is exhausted.
func (it *Iterator) Next() (*align.Block, error) {
	if it.cur == nil {
		return nil, io.EOF
	}
	cur := it.cur

	// Read the continuation before clipping cur: the TAF reader derives the
	// next block's row list from cur's unclipped coordinates.  A block
	// reaching past the region end is the last one returned.
	var next *align.Block
	if cur.Rows[0].End() <= it.end {
		block, err := it.read()
		switch {
		case err == io.EOF:
		case err != nil:
			return nil, err
		case len(block.Rows) == 0:
		case block.Rows[0].Name != it.name || block.Rows[0].Start >= it.end:
		default:
			next = block
		}
	}

	clipBlock(cur, it.start, it.end)
	it.prev = cur
	it.cur = next
	return cur, nil
}

// clipBlock trims the block in place to the reference window [start, end),
// counting non-gap bases of row 0, and drops rows the trimming empties.
func clipBlock(b *align.Block, start, end int64) {
	ref := b.Rows[0]

	if leftTrim := start - ref.Start; leftTrim > 0 {
		// Find the column index whose prefix holds exactly leftTrim non-gap
		// reference bases.
		cut := 0
		for count := int64(0); cut < len(ref.Bases) && count < leftTrim; cut++ {
			if ref.Bases[cut] != '-' {
				count++
			}
		}
		for _, row := range b.Rows {
			for col := 0; col < cut; col++ {
				if row.Bases[col] != '-' {
					row.Start++
					row.Length--
				}
			}
			row.Bases = row.Bases[cut:]
		}
		if b.ColumnTags != nil {
			b.ColumnTags = b.ColumnTags[cut:]
		}
	}

	if rightTrim := ref.End() - end; rightTrim > 0 {
		cut := len(ref.Bases) - 1
		for count := int64(0); count < rightTrim && cut >= 0; cut-- {
			if ref.Bases[cut] != '-' {
				count++
			}
		}
		for _, row := range b.Rows {
			for col := len(row.Bases) - 1; col > cut; col-- {
				if row.Bases[col] != '-' {
					row.Length--
				}
			}
			row.Bases = row.Bases[:cut+1]
		}
		if b.ColumnTags != nil {
			b.ColumnTags = b.ColumnTags[:cut+1]
		}
	}

	// Drop rows trimmed down to nothing, unlinking them on both sides.  Row
	// 0 always retains bases because the block intersects the window.
	rows := b.Rows[:0]
	for _, row := range b.Rows {
		if row.Length == 0 && row != ref {
			if row.Pred != nil {
				row.Pred.Succ = nil
				row.Pred = nil
			}
			if row.Succ != nil {
				row.Succ.Pred = nil
				row.Succ = nil
			}
			continue
		}
		rows = append(rows, row)
	}
	b.Rows = rows
}
