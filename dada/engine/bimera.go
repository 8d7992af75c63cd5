package engine

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/sixvable/q2-dada2/dada"
)

// RemoveBimeras implements dada.Engine. A sequence is a bimera when it can
// be covered exactly by a prefix of one parent and a suffix of another,
// with both parents at least minParentFold times as abundant. Pooled mode
// makes one verdict from abundances summed over all samples; consensus
// mode collects a verdict from each sample containing the sequence and
// removes it when at least ConsensusFraction of them flag it.
func (e *Engine) RemoveBimeras(ctx context.Context, table *dada.SequenceTable, method dada.ChimeraMethod, minParentFold float64) (*dada.SequenceTable, error) {
	keep := make([]bool, len(table.Seqs))
	switch method {
	case dada.ChimeraPooled:
		pooled := make([]int, len(table.Seqs))
		for j := range table.Seqs {
			pooled[j] = table.ColSum(j)
		}
		for j := range table.Seqs {
			keep[j] = !isBimera(table.Seqs, pooled, j, minParentFold)
		}
	case dada.ChimeraConsensus:
		for j := range table.Seqs {
			present, flagged := 0, 0
			for i := range table.Samples {
				if table.Counts[i][j] == 0 {
					continue
				}
				present++
				if isBimera(table.Seqs, table.Counts[i], j, minParentFold) {
					flagged++
				}
			}
			keep[j] = present == 0 || float64(flagged) < e.opts.ConsensusFraction*float64(present)
		}
	default:
		return nil, errors.E("unsupported chimera method:", method)
	}
	return table.Subset(keep), nil
}

// isBimera reports whether seqs[self] can be assembled from a prefix of
// one parent and a suffix of another under the given abundances. Parents
// must be distinct sequences, each with abundance >= minParentFold times
// the candidate's.
func isBimera(seqs []string, abund []int, self int, minParentFold float64) bool {
	target := seqs[self]
	need := minParentFold * float64(abund[self])
	var parents []int
	for j, a := range abund {
		if j != self && a > 0 && float64(a) >= need {
			parents = append(parents, j)
		}
	}
	if len(parents) < 2 {
		return false
	}
	// Longest shared prefix and suffix of each parent with the candidate.
	prefix := make([]int, len(parents))
	suffix := make([]int, len(parents))
	for k, j := range parents {
		prefix[k] = commonPrefix(target, seqs[j])
		suffix[k] = commonSuffix(target, seqs[j])
	}
	for a := range parents {
		if prefix[a] == 0 || prefix[a] == len(target) {
			// A full-length match is the same sequence, not a parent pair.
			continue
		}
		for b := range parents {
			if a == b || suffix[b] == 0 {
				continue
			}
			if prefix[a]+suffix[b] >= len(target) {
				return true
			}
		}
	}
	return false
}

func commonPrefix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
