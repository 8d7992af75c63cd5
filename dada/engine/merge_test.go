package engine

import (
	"context"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/sixvable/q2-dada2/dada"
	"github.com/stretchr/testify/require"
)

func TestReverseComplement(t *testing.T) {
	expect.EQ(t, reverseComplement("AACG"), "CGTT")
	expect.EQ(t, reverseComplement("ACGT"), "ACGT")
	expect.EQ(t, reverseComplement("AANA"), "TNTT")
	expect.EQ(t, reverseComplement(""), "")
}

func TestOverlapMerge(t *testing.T) {
	tests := []struct {
		f, r       string
		minOverlap int
		want       string
		ok         bool
	}{
		{"AACCGG", "CCGGTT", 4, "AACCGGTT", true},
		{"AACCGG", "CCGGTT", 5, "", false},
		// Full containment merges to the longer sequence.
		{"AACCGG", "AACCGG", 4, "AACCGG", true},
		// The longest of several possible overlaps wins.
		{"ATATAT", "ATATAT", 2, "ATATAT", true},
		{"ATATAT", "ATATGG", 2, "ATATATGG", true},
	}
	for _, test := range tests {
		got, ok := overlapMerge(test.f, test.r, test.minOverlap)
		if !test.ok {
			expect.False(t, ok, "overlapMerge(%q, %q, %d)", test.f, test.r, test.minOverlap)
			continue
		}
		require.True(t, ok, "overlapMerge(%q, %q, %d)", test.f, test.r, test.minOverlap)
		expect.EQ(t, got, test.want)
	}
}

// mergeFixture models a 20 base amplicon read as a 16 base forward read and
// a 16 base reverse read overlapping it by 12.
const (
	amplicon = "AACCGGTTAACCGGTTAACC"
	fwdSeq   = "AACCGGTTAACCGGTT" // amplicon[:16]
	revSeq   = "GGTTAACCGGTTAACC" // reverse complement of amplicon[4:]
)

func mergeFixture(count int) (*dada.DenoiseResult, *dada.Derep, *dada.DenoiseResult, *dada.Derep) {
	derepF := makeDerep([]string{fwdSeq}, []int{count}, 40)
	derepR := makeDerep([]string{revSeq}, []int{count}, 40)
	fwd := &dada.DenoiseResult{
		Variants:   []dada.Variant{{Seq: fwdSeq, Abundance: count}},
		Assignment: []int{0},
	}
	rev := &dada.DenoiseResult{
		Variants:   []dada.Variant{{Seq: revSeq, Abundance: count}},
		Assignment: []int{0},
	}
	return fwd, derepF, rev, derepR
}

func TestMerge(t *testing.T) {
	e := New(Opts{})
	fwd, derepF, rev, derepR := mergeFixture(3)
	res, err := e.Merge(context.Background(), fwd, derepF, rev, derepR, 12)
	require.NoError(t, err)
	require.Len(t, res.Seqs, 1)
	expect.EQ(t, res.Seqs[0], dada.MergedSeq{Seq: amplicon, Abundance: 3})
}

func TestMergeInsufficientOverlap(t *testing.T) {
	e := New(Opts{})
	fwd, derepF, rev, derepR := mergeFixture(3)
	res, err := e.Merge(context.Background(), fwd, derepF, rev, derepR, 13)
	require.NoError(t, err)
	expect.EQ(t, len(res.Seqs), 0)
}

func TestMergeSkipsUnassigned(t *testing.T) {
	e := New(Opts{})
	fwd, derepF, rev, derepR := mergeFixture(3)
	// A second forward unique the denoiser left unassigned: its reads must
	// not contribute to any merged abundance.
	derepF.Seqs = append(derepF.Seqs, "TTTTTTTTTTTTTTTT")
	derepF.Counts = append(derepF.Counts, 2)
	derepF.Quals = append(derepF.Quals, derepF.Quals[0])
	derepF.Map = append(derepF.Map, 1, 1)
	fwd.Assignment = append(fwd.Assignment, -1)
	derepR.Counts[0] = 5
	derepR.Map = append(derepR.Map, 0, 0)

	res, err := e.Merge(context.Background(), fwd, derepF, rev, derepR, 12)
	require.NoError(t, err)
	require.Len(t, res.Seqs, 1)
	expect.EQ(t, res.Seqs[0].Abundance, 3)
}

func TestMergeReadCountMismatch(t *testing.T) {
	e := New(Opts{})
	fwd, derepF, rev, derepR := mergeFixture(3)
	derepR.Map = derepR.Map[:2]
	_, err := e.Merge(context.Background(), fwd, derepF, rev, derepR, 12)
	require.Error(t, err)
}
