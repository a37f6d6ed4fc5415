package ond_test

import (
	"strings"
	"testing"

	"github.com/grailbio/taffy/ond"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func alignStrings(a, b string, gap, mismatch int) ([]int, int) {
	return ond.Align(len(a), len(b),
		func(i, j int) bool { return a[i] == b[j] }, gap, mismatch)
}

func TestAlign(t *testing.T) {
	tests := []struct {
		a, b          string
		gap, mismatch int
		wantPairing   []int
		wantScore     int
	}{
		{"", "", 1, 1, []int{}, 0},
		{"ACGT", "ACGT", 1, 1, []int{0, 1, 2, 3}, 0},
		// One inserted element costs one gap; either G may take it.
		{"ACGGT", "ACGT", 1, 1, nil, 1},
		{"ACT", "ACGT", 1, 1, []int{0, 1, 3}, 1},
		// A substitution under unit mismatch cost.
		{"ACGT", "AGGT", 1, 1, []int{0, 1, 2, 3}, 1},
		// With mismatches effectively forbidden the same pair costs two
		// gaps.
		{"ACGT", "AGGT", 1, 100000000, nil, 2},
		{"AAAA", "", 1, 1, []int{-1, -1, -1, -1}, 4},
		{"", "AAAA", 1, 1, []int{}, 4},
	}
	for _, tt := range tests {
		pairing, score := alignStrings(tt.a, tt.b, tt.gap, tt.mismatch)
		assert.Equal(t, tt.wantScore, score, "%s vs %s", tt.a, tt.b)
		if tt.wantPairing != nil {
			assert.Equal(t, tt.wantPairing, pairing, "%s vs %s", tt.a, tt.b)
		}
	}
}

func TestAlignPairingIsConsistent(t *testing.T) {
	// The pairing must be strictly increasing over its non-gap entries and
	// in range.
	a := "GATTACAGATTACA"
	b := "GCATGCATTACA"
	pairing, score := alignStrings(a, b, 1, 1)
	expect.EQ(t, len(pairing), len(a))
	last := -1
	aligned := 0
	for i, j := range pairing {
		if j == -1 {
			continue
		}
		expect.True(t, j > last, "pairing not increasing at %d", i)
		expect.True(t, j >= 0 && j < len(b))
		last = j
		aligned++
	}
	expect.True(t, aligned > 0)
	expect.True(t, score > 0)
}

func TestAlignIdenticalLong(t *testing.T) {
	s := strings.Repeat("ACGT", 64)
	pairing, score := alignStrings(s, s, 1, 1)
	expect.EQ(t, score, 0)
	for i, j := range pairing {
		expect.EQ(t, j, i)
	}
}
