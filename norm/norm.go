// Package norm normalizes an alignment stream by merging unnecessarily
// small adjacent blocks.  Two adjacent blocks merge when one of them is
// short enough and the unaligned sequence between them is small enough;
// substituted row slots never merge.
package norm

import (
	"io"

	"github.com/grailbio/taffy/align"
)

const (
	// DefaultMaximumBlockLengthToMerge: only merge two adjacent blocks if
	// one or both spans at most this many columns.
	DefaultMaximumBlockLengthToMerge = 10
	// DefaultMaximumGapLength: only merge two adjacent blocks if the
	// longest run of unaligned bases between them is at most this long.
	DefaultMaximumGapLength = 10
)

// Options configures a Normalizer.  The zero value uses the defaults above
// and the wavefront interstitial gap aligner.
type Options struct {
	MaximumBlockLengthToMerge int
	MaximumGapLength          int64
	// GapAligner aligns interstitial gap sequences during merges; nil means
	// align.AlignInterstitialGaps.
	GapAligner align.GapAligner
}

// lookahead is how many blocks are read ahead of the one being merged into.
// A differential reader derives each block from the one before it, so the
// blocks under merge must trail the reader's own chain.
const lookahead = 3

// Normalizer reads blocks from a source and yields them with mergeable
// neighbors collapsed.
type Normalizer struct {
	src     align.Source
	opts    Options
	queue   []*align.Block
	pending *align.Block
	srcErr  error
}

// New returns a Normalizer over src.  src's blocks must appear in stream
// order; their cross-block links are recomputed here.
func New(src align.Source, opts Options) *Normalizer {
	if opts.MaximumBlockLengthToMerge == 0 {
		opts.MaximumBlockLengthToMerge = DefaultMaximumBlockLengthToMerge
	}
	if opts.MaximumGapLength == 0 {
		opts.MaximumGapLength = DefaultMaximumGapLength
	}
	if opts.GapAligner == nil {
		opts.GapAligner = align.AlignInterstitialGaps
	}
	return &Normalizer{src: src, opts: opts}
}

// read pops the next source block through the lookahead queue.
func (n *Normalizer) read() (*align.Block, error) {
	for n.srcErr == nil && len(n.queue) < lookahead {
		block, err := n.src.Next()
		if err != nil {
			n.srcErr = err
			break
		}
		n.queue = append(n.queue, block)
	}
	if len(n.queue) == 0 {
		return nil, n.srcErr
	}
	block := n.queue[0]
	n.queue = n.queue[:copy(n.queue, n.queue[1:])]
	return block, nil
}

// Next returns the next normalized block, or io.EOF.
func (n *Normalizer) Next() (*align.Block, error) {
	cur := n.pending
	n.pending = nil
	if cur == nil {
		var err error
		if cur, err = n.read(); err != nil {
			return nil, err
		}
	}
	for {
		next, err := n.read()
		if err == io.EOF {
			return cur, nil
		} else if err != nil {
			return nil, err
		}
		align.Link(cur, next, false)
		if (cur.Columns() <= n.opts.MaximumBlockLengthToMerge ||
			next.Columns() <= n.opts.MaximumBlockLengthToMerge) &&
			cur.TotalGapLength() <= n.opts.MaximumGapLength {
			cur = align.MergeWith(cur, next, n.opts.GapAligner)
			continue
		}
		n.pending = next
		return cur, nil
	}
}
