// Package ond implements the O(ND) wavefront alignment algorithm of Myers,
// using the terminology of S. Marco-Sola et al., "Fast gap-affine pairwise
// alignment using the wavefront algorithm".  It computes an optimal global
// alignment of two sequences of opaque elements under unit-style gap and
// mismatch costs, and is useful for quickly diffing two similar lists.
//
// In the dynamic programming matrix the first sequence runs along the rows
// (coordinate x) and the second along the columns (coordinate y).  The
// antidiagonal is k = x-y, and furthest points are represented as x
// coordinates along each antidiagonal.
package ond

// Sentinel values for points that are off a wavefront or on a score with no
// wavefront.  They only need to be small enough that the max calculations in
// the expansion and traceback never pick them.
const (
	offDiagonal = -1000000
	noWavefront = -100000
	noMinDiag   = 1000000000
	noMaxDiag   = -1000000000
)

// wavefront is a series of furthest points along the antidiagonals reachable
// at one score.
type wavefront struct {
	minDiag, maxDiag int // inclusive bounds on the antidiagonal
	// origMinDiag is the minDiag the wavefront was created with; fp is
	// indexed relative to it even if the bounds are later trimmed.
	origMinDiag int
	fp          []int
}

func newWavefront(minDiag, maxDiag int) *wavefront {
	return &wavefront{
		minDiag:     minDiag,
		maxDiag:     maxDiag,
		origMinDiag: minDiag,
		fp:          make([]int, 1+maxDiag-minDiag),
	}
}

// furthest returns the furthest point (an x coordinate) on the x-y = k
// antidiagonal.
func (wf *wavefront) furthest(k int) int {
	if k < wf.minDiag || k > wf.maxDiag {
		return offDiagonal
	}
	return wf.fp[k-wf.origMinDiag]
}

func (wf *wavefront) setFurthest(k, h int) {
	wf.fp[k-wf.origMinDiag] = h
}

// aligner holds the wavefront set for one alignment problem.  The wavefront
// for score s lives at index s; intermediate scores with no wavefront hold
// nil.
type aligner struct {
	n, m          int
	equal         func(i, j int) bool
	gap, mismatch int
	s             int
	wfs           []*wavefront
}

func (a *aligner) wavefrontAt(s int) *wavefront {
	if s < 0 || s >= len(a.wfs) {
		return nil
	}
	return a.wfs[s]
}

func (a *aligner) furthestAt(s, k int) int {
	wf := a.wavefrontAt(s)
	if wf == nil {
		return noWavefront
	}
	return wf.furthest(k)
}

func (a *aligner) minDiagAt(s int) int {
	wf := a.wavefrontAt(s)
	if wf == nil {
		return noMinDiag
	}
	return wf.minDiag
}

func (a *aligner) maxDiagAt(s int) int {
	wf := a.wavefrontAt(s)
	if wf == nil {
		return noMaxDiag
	}
	return wf.maxDiag
}

// extend walks each furthest point on the current wavefront along matches.
func (a *aligner) extend() {
	wf := a.wfs[a.s]
	for k := wf.minDiag; k <= wf.maxDiag; k++ {
		h := wf.furthest(k)
		if h < 0 || h-k < 0 {
			continue
		}
		for h < a.n && h-k < a.m && a.equal(h, h-k) {
			h++
			wf.setFurthest(k, h)
		}
	}
}

// done reports whether the bottom-right cell of the matrix is reached.
func (a *aligner) done() bool {
	return a.furthestAt(a.s, a.n-a.m) == a.n
}

// next raises the score until a prior wavefront exists at score minus a gap
// or mismatch cost, then computes the new furthest points.
func (a *aligner) next() {
	for {
		a.s++
		if a.wavefrontAt(a.s-a.gap) != nil || a.wavefrontAt(a.s-a.mismatch) != nil {
			break
		}
	}
	minDiag := min(a.minDiagAt(a.s-a.gap), a.minDiagAt(a.s-a.mismatch)) - 1
	maxDiag := max(a.maxDiagAt(a.s-a.gap), a.maxDiagAt(a.s-a.mismatch)) + 1
	wf := newWavefront(minDiag, maxDiag)
	for a.s > len(a.wfs) {
		a.wfs = append(a.wfs, nil)
	}
	a.wfs = append(a.wfs, wf)
	for k := minDiag; k <= maxDiag; k++ {
		wf.setFurthest(k, max(
			max(a.furthestAt(a.s-a.gap, k-1)+1, // insert in the first sequence
				a.furthestAt(a.s-a.gap, k+1)), // insert in the second sequence
			a.furthestAt(a.s-a.mismatch, k)+1)) // mismatch
	}
}

// traceback reconstructs the pairing from the completed wavefront set.  The
// result has one entry per element of the first sequence: the index of the
// second-sequence element it is aligned to, or -1 for a gap.
func (a *aligner) traceback() []int {
	pairing := make([]int, a.n)
	for i := range pairing {
		pairing[i] = -1
	}
	t := a.s
	k := a.n - a.m
	f := a.n
	for k != 0 || f != 0 {
		ma := a.furthestAt(t-a.mismatch, k) // mismatch
		ga := a.furthestAt(t-a.gap, k-1)    // insert in the first sequence
		gb := a.furthestAt(t-a.gap, k+1)    // insert in the second sequence
		// The plus one for an insert in the first sequence is necessary.
		for f > max(max(ma, ga+1), max(gb, 0)) {
			x := f
			y := f - k
			pairing[x-1] = y - 1 // y == 0 leaves a gap
			f--
		}
		switch {
		case ma >= ga && ma >= gb:
			t -= a.mismatch
		case ga >= gb:
			k--
			f--
			t -= a.gap
		default:
			k++
			t -= a.gap
		}
	}
	return pairing
}

// Align globally aligns two sequences of lengths n and m under the given
// element equality, returning for each element of the first sequence the
// index of the second-sequence element it is aligned to (-1 for a gap), and
// the alignment score.  equal(i, j) reports whether element i of the first
// sequence matches element j of the second.  gapCost is charged per
// unaligned element, mismatchCost per aligned non-matching pair; both must
// be positive.
func Align(n, m int, equal func(i, j int) bool, gapCost, mismatchCost int) ([]int, int) {
	a := &aligner{
		n:        n,
		m:        m,
		equal:    equal,
		gap:      gapCost,
		mismatch: mismatchCost,
		wfs:      []*wavefront{newWavefront(0, 0)},
	}
	for {
		a.extend()
		if a.done() {
			break
		}
		a.next()
	}
	return a.traceback(), a.s
}

func max(i, j int) int {
	if i > j {
		return i
	}
	return j
}

func min(i, j int) int {
	if i < j {
		return i
	}
	return j
}
