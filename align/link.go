package align

import (
	"github.com/grailbio/taffy/ond"
)

// A mismatch cost large enough that the wavefront diff never pairs rows on
// different sequences when substitutions are disallowed.
const forbiddenSubstitutionCost = 100000000

// Link diffs the row lists of two adjacent blocks and connects their rows so
// that continuations can be determined: each linked pair is either a strict
// predecessor or, when allowSubstitutions is set, a reuse of the same row
// slot by an unrelated segment.  Existing cross-block links on either side
// are cleared first.  The MAF to TAF writer links with substitutions allowed
// so slot reuse encodes as a single s op; normalization links with
// substitutions forbidden because substituted rows cannot be merged.
func Link(left, right *Block, allowSubstitutions bool) {
	mismatch := 1
	if !allowSubstitutions {
		mismatch = forbiddenSubstitutionCost
	}
	pairing, _ := ond.Align(len(left.Rows), len(right.Rows),
		func(i, j int) bool { return left.Rows[i].Precedes(right.Rows[j]) },
		1, mismatch)
	for _, row := range left.Rows {
		row.Succ = nil
	}
	for _, row := range right.Rows {
		row.Pred = nil
	}
	for i, j := range pairing {
		if j == -1 {
			continue
		}
		left.Rows[i].Succ = right.Rows[j]
		right.Rows[j].Pred = left.Rows[i]
	}
}
