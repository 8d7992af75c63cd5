package engine

import (
	"context"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/sixvable/q2-dada2/dada"
)

// Denoise implements dada.Engine. Unique sequences are visited in
// descending abundance. Each either joins the existing variant that best
// explains it as sequencing errors, or founds a new variant when no
// variant plausibly does: the abundance p-value against the best candidate
// falls below OmegaA, the sequence is a prior, or no variant lies within
// MaxClusterDist.
func (e *Engine) Denoise(ctx context.Context, derep *dada.Derep, em dada.ErrorModel, priors dada.Priors) (*dada.DenoiseResult, error) {
	m, ok := em.(*model)
	if !ok {
		return nil, errors.E("error model was not produced by this engine")
	}
	res := &dada.DenoiseResult{Assignment: make([]int, len(derep.Seqs))}
	var founders []int // unique index that founded each variant
	for u, seq := range derep.Seqs {
		count := derep.Counts[u]
		best, bestLambda := -1, 0.0
		for v, fu := range founders {
			d, ok := hamming(seq, derep.Seqs[fu], e.opts.MaxClusterDist)
			if !ok {
				continue
			}
			if d == 0 {
				// Identical to a founder; cannot happen across distinct
				// uniques, but assign defensively.
				best, bestLambda = v, float64(res.Variants[v].Abundance)
				break
			}
			lambda := float64(res.Variants[v].Abundance) * misreadProb(seq, derep.Quals[u], derep.Seqs[fu], m)
			if lambda > bestLambda {
				best, bestLambda = v, lambda
			}
		}
		isNew := best < 0
		if !isNew && priors != nil && priors[seq] {
			isNew = true
		}
		if !isNew && poissonTail(count, bestLambda) < e.opts.OmegaA {
			isNew = true
		}
		if isNew {
			res.Assignment[u] = len(res.Variants)
			res.Variants = append(res.Variants, dada.Variant{Seq: seq, Abundance: count})
			founders = append(founders, u)
			continue
		}
		res.Assignment[u] = best
		res.Variants[best].Abundance += count
	}
	return res, nil
}

// hamming returns the Hamming distance between a and b, or ok=false when
// the sequences have different lengths or the distance exceeds max.
func hamming(a, b string, max int) (int, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	d := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			if d++; d > max {
				return 0, false
			}
		}
	}
	return d, true
}

// misreadProb estimates the probability that a read of variant seq v is
// miscalled as u: the product over mismatching positions of the error rate
// at u's observed quality there, split evenly over the three wrong bases.
func misreadProb(u string, uQuals []float64, v string, m *model) float64 {
	p := 1.0
	for i := 0; i < len(u); i++ {
		if u[i] != v[i] {
			p *= m.errorRate(int(math.Round(uQuals[i]))) / 3
		}
	}
	return p
}

// poissonTail returns P[X >= k] for X ~ Poisson(lambda).
func poissonTail(k int, lambda float64) float64 {
	if k <= 0 || lambda <= 0 {
		if lambda <= 0 && k > 0 {
			return 0
		}
		return 1
	}
	term := math.Exp(-lambda)
	cum := term
	for i := 1; i < k; i++ {
		term *= lambda / float64(i)
		cum += term
	}
	p := 1 - cum
	if p < 0 {
		return 0
	}
	return p
}
