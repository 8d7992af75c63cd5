package fastq_test

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/sixvable/q2-dada2/encoding/fastq"
	"github.com/stretchr/testify/require"
)

// record renders one FASTQ record with a uniform quality score.
func record(id, seq string, qual int) string {
	return fmt.Sprintf("@%s\n%s\n+\n%s\n", id, seq, strings.Repeat(string(rune(qual+33)), len(seq)))
}

func TestFilterPair(t *testing.T) {
	tests := []struct {
		name           string
		r1, r2         string
		r1Opts, r2Opts fastq.FilterOpts
		in, out        int
		r1Want         string
	}{
		{
			name:   "no filtering",
			r1:     record("a", "ACGT", 40) + record("b", "GGCC", 40),
			r2:     record("a", "TTTT", 40) + record("b", "AAAA", 40),
			in:     2,
			out:    2,
			r1Want: record("a", "ACGT", 40) + record("b", "GGCC", 40),
		},
		{
			name:   "trunc len discards short reads",
			r1:     record("a", "ACGTACGT", 40) + record("b", "ACG", 40),
			r2:     record("a", "TTTTTTTT", 40) + record("b", "TTTTTTTT", 40),
			r1Opts: fastq.FilterOpts{TruncLen: 4},
			in:     2,
			out:    1,
			r1Want: record("a", "ACGT", 40),
		},
		{
			name:   "trim left",
			r1:     record("a", "ACGTAC", 40),
			r2:     record("a", "TTTTTT", 40),
			r1Opts: fastq.FilterOpts{TrimLeft: 2},
			in:     1,
			out:    1,
			r1Want: record("a", "GTAC", 40),
		},
		{
			name: "quality truncation then length check",
			// The low-quality tail is cut at Q2, leaving the read too
			// short for TruncLen.
			r1:     record("a", "ACGT", 40) + record("b", "AC", 40) + record("c", "ACGT", 2),
			r2:     record("a", "TTTT", 40) + record("b", "TT", 40) + record("c", "TTTT", 40),
			r1Opts: fastq.FilterOpts{TruncLen: 3, TruncQ: 2},
			in:     3,
			out:    1,
			r1Want: record("a", "ACG", 40),
		},
		{
			name:   "max expected errors",
			r1:     record("a", "ACGT", 40) + record("b", "GGCC", 10),
			r2:     record("a", "TTTT", 40) + record("b", "AAAA", 40),
			r1Opts: fastq.FilterOpts{MaxEE: 0.1},
			in:     2,
			out:    1,
			r1Want: record("a", "ACGT", 40),
		},
		{
			name:   "ambiguous bases rejected",
			r1:     record("a", "ACNT", 40) + record("b", "ACGT", 40),
			r2:     record("a", "TTTT", 40) + record("b", "TTTT", 40),
			in:     2,
			out:    1,
			r1Want: record("b", "ACGT", 40),
		},
		{
			name: "pair dropped when only reverse fails",
			r1:   record("a", "ACGT", 40) + record("b", "GGCC", 40),
			r2:   record("a", "TTTT", 40) + record("b", "AAAA", 10),
			r2Opts: fastq.FilterOpts{
				MaxEE: 0.1,
			},
			in:     2,
			out:    1,
			r1Want: record("a", "ACGT", 40),
		},
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for idx, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r1Path := fmt.Sprintf("%s/%d_r1.fastq", tempDir, idx)
			r2Path := fmt.Sprintf("%s/%d_r2.fastq", tempDir, idx)
			assert.NoError(t, ioutil.WriteFile(r1Path, []byte(test.r1), 0600))
			assert.NoError(t, ioutil.WriteFile(r2Path, []byte(test.r2), 0600))
			var r1Out, r2Out bytes.Buffer
			in, out, err := fastq.FilterPair(ctx, r1Path, r2Path, &r1Out, &r2Out, test.r1Opts, test.r2Opts)
			assert.NoError(t, err)
			expect.EQ(t, in, test.in)
			expect.EQ(t, out, test.out)
			expect.EQ(t, r1Out.String(), test.r1Want)
			nPairs := strings.Count(r2Out.String(), "@")
			expect.EQ(t, nPairs, test.out)
		})
	}
}

func TestFilterPairDiscordant(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	r1Path := tempDir + "/r1.fastq"
	r2Path := tempDir + "/r2.fastq"
	assert.NoError(t, ioutil.WriteFile(r1Path, []byte(record("a", "ACGT", 40)+record("b", "ACGT", 40)), 0600))
	assert.NoError(t, ioutil.WriteFile(r2Path, []byte(record("a", "TTTT", 40)), 0600))
	var r1Out, r2Out bytes.Buffer
	_, _, err := fastq.FilterPair(ctx, r1Path, r2Path, &r1Out, &r2Out, fastq.FilterOpts{}, fastq.FilterOpts{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "discordant")
}
