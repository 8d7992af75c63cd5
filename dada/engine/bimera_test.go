package engine

import (
	"context"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/sixvable/q2-dada2/dada"
	"github.com/stretchr/testify/require"
)

// The candidate "AAAAGGGG" splits exactly into a prefix of "AAAATTTT" and
// a suffix of "CCCCGGGG".
var bimeraSeqs = []string{"AAAATTTT", "CCCCGGGG", "AAAAGGGG"}

func TestIsBimera(t *testing.T) {
	expect.True(t, isBimera(bimeraSeqs, []int{10, 10, 1}, 2, 1.0))
	// Parents must clear the abundance fold.
	expect.False(t, isBimera(bimeraSeqs, []int{10, 10, 1}, 2, 20.0))
	// A single qualifying parent is not enough.
	expect.False(t, isBimera(bimeraSeqs, []int{10, 0, 1}, 2, 1.0))
	// The halves must cover the candidate end to end.
	expect.False(t, isBimera([]string{"AAAATTTT", "CCCCGGGG", "AAAGCGGG"}, []int{10, 10, 1}, 2, 1.0))
	// An abundant sequence is not explained by rarer ones.
	expect.False(t, isBimera(bimeraSeqs, []int{10, 10, 50}, 2, 1.0))
}

func bimeraTable(counts [][]int) *dada.SequenceTable {
	samples := make([]string, len(counts))
	for i := range counts {
		samples[i] = string(rune('a' + i))
	}
	return &dada.SequenceTable{Samples: samples, Seqs: bimeraSeqs, Counts: counts}
}

func TestRemoveBimerasPooled(t *testing.T) {
	e := New(Opts{})
	tab := bimeraTable([][]int{{6, 4, 1}, {4, 6, 0}})
	out, err := e.RemoveBimeras(context.Background(), tab, dada.ChimeraPooled, 1.0)
	require.NoError(t, err)
	expect.EQ(t, out.Seqs, []string{"AAAATTTT", "CCCCGGGG"})
	expect.EQ(t, out.Counts, [][]int{{6, 4}, {4, 6}})
	// The input table is left intact.
	expect.EQ(t, len(tab.Seqs), 3)
}

func TestRemoveBimerasConsensus(t *testing.T) {
	e := New(Opts{})
	ctx := context.Background()

	// Flagged in every sample containing it: removed.
	tab := bimeraTable([][]int{{10, 10, 1}, {8, 12, 2}})
	out, err := e.RemoveBimeras(ctx, tab, dada.ChimeraConsensus, 1.0)
	require.NoError(t, err)
	expect.EQ(t, out.Seqs, []string{"AAAATTTT", "CCCCGGGG"})

	// Flagged in only one of two containing samples: half is below the
	// consensus fraction, so it stays.
	tab = bimeraTable([][]int{{10, 10, 1}, {0, 0, 5}})
	out, err = e.RemoveBimeras(ctx, tab, dada.ChimeraConsensus, 1.0)
	require.NoError(t, err)
	expect.EQ(t, out.Seqs, bimeraSeqs)
}

func TestRemoveBimerasUnsupportedMethod(t *testing.T) {
	e := New(Opts{})
	tab := bimeraTable([][]int{{1, 1, 1}})
	_, err := e.RemoveBimeras(context.Background(), tab, dada.ChimeraNone, 1.0)
	require.Error(t, err)
}
