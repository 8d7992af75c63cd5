package engine

import (
	"context"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/sixvable/q2-dada2/dada"
)

// Merge implements dada.Engine. Each read pair is mapped through the
// dereplication maps and denoising assignments to a (forward variant,
// reverse variant) pair; pairs are reconciled by aligning the forward
// variant against the reverse complement of the reverse variant, requiring
// an exact suffix/prefix overlap of at least minOverlap bases. Pairs with
// no such overlap are dropped.
func (e *Engine) Merge(ctx context.Context, fwd *dada.DenoiseResult, derepF *dada.Derep, rev *dada.DenoiseResult, derepR *dada.Derep, minOverlap int) (*dada.MergedResult, error) {
	if derepF.NReads() != derepR.NReads() {
		return nil, errors.E("forward and reverse read counts differ:", derepF.NReads(), "vs", derepR.NReads())
	}
	type pair struct{ f, r int }
	pairCount := map[pair]int{}
	for i := 0; i < derepF.NReads(); i++ {
		vf := fwd.Assignment[derepF.Map[i]]
		vr := rev.Assignment[derepR.Map[i]]
		if vf < 0 || vr < 0 {
			continue
		}
		pairCount[pair{vf, vr}]++
	}
	pairs := make([]pair, 0, len(pairCount))
	for p := range pairCount {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].f != pairs[b].f {
			return pairs[a].f < pairs[b].f
		}
		return pairs[a].r < pairs[b].r
	})
	var (
		res   = &dada.MergedResult{}
		index = map[string]int{}
	)
	for _, p := range pairs {
		merged, ok := overlapMerge(fwd.Variants[p.f].Seq, reverseComplement(rev.Variants[p.r].Seq), minOverlap)
		if !ok {
			continue
		}
		i, seen := index[merged]
		if !seen {
			i = len(res.Seqs)
			index[merged] = i
			res.Seqs = append(res.Seqs, dada.MergedSeq{Seq: merged})
		}
		res.Seqs[i].Abundance += pairCount[p]
	}
	sort.SliceStable(res.Seqs, func(a, b int) bool {
		return res.Seqs[a].Abundance > res.Seqs[b].Abundance
	})
	return res, nil
}

// overlapMerge joins f and r (already reverse-complemented) at their
// longest exact overlap of at least minOverlap bases, where a suffix of f
// equals a prefix of r.
func overlapMerge(f, r string, minOverlap int) (string, bool) {
	max := len(f)
	if len(r) < max {
		max = len(r)
	}
	for ov := max; ov >= minOverlap; ov-- {
		if f[len(f)-ov:] == r[:ov] {
			return f + r[ov:], true
		}
	}
	return "", false
}

var complement = func() [256]byte {
	var c [256]byte
	for i := range c {
		c[i] = 'N'
	}
	c['A'], c['C'], c['G'], c['T'] = 'T', 'G', 'C', 'A'
	return c
}()

// reverseComplement returns the reverse complement of seq. Bases outside
// ACGT complement to N.
func reverseComplement(seq string) string {
	b := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		b[len(seq)-1-i] = complement[seq[i]]
	}
	return string(b)
}
