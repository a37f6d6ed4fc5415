package align

import (
	"bytes"

	"github.com/grailbio/taffy/ond"
)

// GapAligner aligns the interstitial gap sequences of a block against each
// other, leaving every row's LeftGapSeq padded to a common length, and
// returns that length.  Rows without a strict predecessor end up all-gap.
type GapAligner func(*Block) int

func gapRun(n int) []byte {
	return bytes.Repeat([]byte{'-'}, n)
}

// AlignInterstitialGaps is the default GapAligner: a star alignment of every
// gap sequence against the longest one, each pairwise alignment computed
// with the wavefront diff over bytes.  Rows linked to a strict predecessor
// that carry no gap sequence are first filled with Ns, since the underlying
// bases are unknown without external sequence retrieval.
func AlignInterstitialGaps(b *Block) int {
	for _, row := range b.Rows {
		if row.Pred != nil && row.Pred.Precedes(row) && row.LeftGapSeq == nil {
			row.LeftGapSeq = bytes.Repeat([]byte{'N'}, int(row.Start-row.Pred.End()))
		}
	}

	// Collect the participating gap strings and find the longest.
	var (
		participants []*Row
		longest      []byte
	)
	for _, row := range b.Rows {
		if row.LeftGapSeq == nil {
			continue
		}
		participants = append(participants, row)
		if len(row.LeftGapSeq) > len(longest) {
			longest = row.LeftGapSeq
		}
	}
	if len(participants) == 0 {
		return 0
	}

	// Align each gap string to the longest one.
	cols := make([][]int, len(participants))
	for i, row := range participants {
		s := row.LeftGapSeq
		cols[i], _ = ond.Align(len(longest), len(s),
			func(x, y int) bool { return longest[x] == s[y] }, 1, 1)
	}

	padded, msaLen := buildMSA(cols, participants, len(longest))
	for i, row := range participants {
		row.LeftGapSeq = padded[i]
	}
	for _, row := range b.Rows {
		if row.LeftGapSeq == nil {
			row.LeftGapSeq = gapRun(msaLen)
		}
	}
	return msaLen
}

// buildMSA converts the per-string alignments to the longest string into a
// conventional gapped MSA.  cols[i][j] is the index in string i aligned to
// position j of the longest string, or -1.
func buildMSA(cols [][]int, rows []*Row, longestLen int) ([][]byte, int) {
	n := len(rows)
	offsets := make([]int, n)
	out := make([][]byte, n)
	for i := range offsets {
		offsets[i] = -1
	}
	for j := 0; j < longestLen; j++ {
		// Work out the longest unaligned run any string inserts before the
		// position aligned to column j.
		maxIndel := 0
		for i := 0; i < n; i++ {
			if k := cols[i][j]; k != -1 {
				if d := k - offsets[i] - 1; d > maxIndel {
					maxIndel = d
				}
			}
		}
		// Fill in the runs, padding, and the aligned position itself.
		for i := 0; i < n; i++ {
			k := cols[i][j]
			if k == -1 {
				for l := 0; l <= maxIndel; l++ {
					out[i] = append(out[i], '-')
				}
				continue
			}
			s := rows[i].LeftGapSeq
			run := 0
			for offsets[i]+1 < k {
				offsets[i]++
				out[i] = append(out[i], s[offsets[i]])
				run++
			}
			for ; run < maxIndel; run++ {
				out[i] = append(out[i], '-')
			}
			offsets[i] = k
			out[i] = append(out[i], s[k])
		}
	}
	// Suffix runs after the last aligned position.
	maxIndel := 0
	for i := 0; i < n; i++ {
		if d := len(rows[i].LeftGapSeq) - offsets[i] - 1; d > maxIndel {
			maxIndel = d
		}
	}
	for i := 0; i < n; i++ {
		s := rows[i].LeftGapSeq
		run := 0
		for offsets[i]+1 < len(s) {
			offsets[i]++
			out[i] = append(out[i], s[offsets[i]])
			run++
		}
		for ; run < maxIndel; run++ {
			out[i] = append(out[i], '-')
		}
	}
	msaLen := 0
	if n > 0 {
		msaLen = len(out[0])
	}
	return out, msaLen
}

// Merge merges right into left using the default interstitial gap aligner.
func Merge(left, right *Block) *Block {
	return MergeWith(left, right, AlignInterstitialGaps)
}

// MergeWith collapses two linked adjacent blocks (see Link) into one,
// returning left.  Rows of right without a predecessor become new left rows
// with leading gaps; left rows without a successor are padded with trailing
// gaps; continuations are concatenated through their aligned interstitial
// gap sequences.  right's rows are consumed and its shell is emptied.
func MergeWith(left, right *Block, gapAlign GapAligner) *Block {
	// Substitution links cannot be merged; break them first.
	for _, r := range right.Rows {
		if r.Pred != nil && !r.Pred.Precedes(r) {
			r.Pred.Succ = nil
			r.Pred = nil
		}
	}

	leftCols := left.Columns()
	rightCols := right.Columns()

	// Weave a new left row in front of the continuation point for every
	// right row that is an insertion.
	pos := 0
	for _, r := range right.Rows {
		if r.Pred != nil {
			for i, l := range left.Rows {
				if l == r.Pred {
					pos = i + 1
					break
				}
			}
			continue
		}
		l := &Row{
			Name:      r.Name,
			Start:     r.Start,
			Length:    0,
			SeqLength: r.SeqLength,
			Strand:    r.Strand,
			Bases:     gapRun(leftCols),
			Succ:      r,
		}
		r.Pred = l
		left.Rows = append(left.Rows, nil)
		copy(left.Rows[pos+1:], left.Rows[pos:])
		left.Rows[pos] = l
		pos++
	}

	// Align the interstitial sequences, padding every LeftGapSeq to a common
	// width.
	gapCols := gapAlign(right)

	// Extend each left row across the gap columns and the right block.
	for _, l := range left.Rows {
		if l.Succ == nil {
			// Deletion: trailing gaps only.
			bases := make([]byte, 0, leftCols+gapCols+rightCols)
			bases = append(bases, l.Bases...)
			for i := 0; i < gapCols+rightCols; i++ {
				bases = append(bases, '-')
			}
			l.Bases = bases
			continue
		}
		r := l.Succ
		bases := make([]byte, 0, leftCols+gapCols+rightCols)
		bases = append(bases, l.Bases...)
		bases = append(bases, r.LeftGapSeq...)
		bases = append(bases, r.Bases...)
		l.Bases = bases
		l.Length += (r.Start - l.End()) + r.Length
		l.Succ = r.Succ
		if l.Succ != nil {
			l.Succ.Pred = l
		}
		r.Pred, r.Succ = nil, nil
	}

	// Concatenate the per-column tags with empty slots for the gap columns.
	if left.ColumnTags != nil || right.ColumnTags != nil {
		tags := make([]Tags, 0, leftCols+gapCols+rightCols)
		tags = append(tags, columnTagsOrEmpty(left.ColumnTags, leftCols)...)
		tags = append(tags, make([]Tags, gapCols)...)
		tags = append(tags, columnTagsOrEmpty(right.ColumnTags, rightCols)...)
		left.ColumnTags = tags
	}

	right.Rows = nil
	right.ColumnTags = nil
	return left
}

func columnTagsOrEmpty(tags []Tags, n int) []Tags {
	if tags == nil {
		return make([]Tags, n)
	}
	return tags
}
