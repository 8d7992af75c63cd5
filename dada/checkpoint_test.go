package dada_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/sixvable/q2-dada2/dada"
	"github.com/stretchr/testify/require"
)

func checkpointFixture() (dada.Opts, *dada.Result) {
	opts := dada.DefaultOpts
	opts.TruncLenF = 240
	opts.Pooling = dada.PoolPseudo
	table := dada.NewSequenceTable([]string{"s1", "s3"}, []*dada.MergedResult{
		{Seqs: []dada.MergedSeq{{Seq: "AAAA", Abundance: 8}, {Seq: "AACC", Abundance: 2}}},
		{Seqs: []dada.MergedSeq{{Seq: "AAAA", Abundance: 5}}},
	})
	res := &dada.Result{
		Table: table,
		Tracking: []dada.TrackingRow{
			{Sample: "s1", Input: 20, Filtered: 15, Denoised: 12, Merged: 10, NonChimeric: 10},
			{Sample: "s2", Input: 7}, // eliminated at the filter
			{Sample: "s3", Input: 9, Filtered: 8, Denoised: 6, Merged: 5, NonChimeric: 5},
		},
	}
	return opts, res
}

func TestCheckpointRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "run.rio")

	opts, res := checkpointFixture()
	require.NoError(t, dada.NewCheckpoint(opts, res).Write(ctx, path))

	c, err := dada.ReadCheckpoint(ctx, path)
	require.NoError(t, err)
	expect.EQ(t, c.Opts, opts)
	expect.EQ(t, c.Table.Samples, res.Table.Samples)
	expect.EQ(t, c.Table.Seqs, res.Table.Seqs)
	expect.EQ(t, c.Table.Counts, res.Table.Counts)
	// Eliminated samples survive the round trip; merged and non-chimeric
	// counts do not, since Finish recomputes them.
	require.Len(t, c.Rows, 3)
	expect.EQ(t, c.Rows[1], dada.TrackingRow{Sample: "s2", Input: 7})
	expect.EQ(t, c.Rows[0], dada.TrackingRow{Sample: "s1", Input: 20, Filtered: 15, Denoised: 12})
}

func TestCheckpointFinish(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "run.rio")

	opts, res := checkpointFixture()
	require.NoError(t, dada.NewCheckpoint(opts, res).Write(ctx, path))
	c, err := dada.ReadCheckpoint(ctx, path)
	require.NoError(t, err)

	eng := newFakeEngine()
	eng.dropSeqs = map[string]bool{"AACC": true}
	out, err := c.Finish(ctx, eng, dada.ChimeraConsensus, 1.5)
	require.NoError(t, err)
	expect.EQ(t, out.NonChimeric.Seqs, []string{"AAAA"})
	require.Len(t, out.Tracking, 3)
	expect.EQ(t, out.Tracking[0], dada.TrackingRow{
		Sample: "s1", Input: 20, Filtered: 15, Denoised: 12, Merged: 10, NonChimeric: 8,
	})
	expect.EQ(t, out.Tracking[1], dada.TrackingRow{Sample: "s2", Input: 7})
	expect.EQ(t, out.Tracking[2], dada.TrackingRow{
		Sample: "s3", Input: 9, Filtered: 8, Denoised: 6, Merged: 5, NonChimeric: 5,
	})
	checkMonotonic(t, out.Tracking)

	// Rerunning with chimera removal off restores the pre-chimera counts.
	out, err = c.Finish(ctx, eng, dada.ChimeraNone, 1.0)
	require.NoError(t, err)
	expect.EQ(t, out.Tracking[0].NonChimeric, 10)
}
