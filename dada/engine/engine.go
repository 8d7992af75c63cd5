// Package engine provides the built-in denoising engine driven by the dada
// pipeline: a learned per-quality error model, abundance-ranked variant
// inference, exact-overlap read-pair merging and two-parent bimera
// detection. The pipeline only depends on the dada.Engine interface, so
// this implementation can be swapped out wholesale.
package engine

import "github.com/sixvable/q2-dada2/dada"

// Opts tunes the engine's inference thresholds.
type Opts struct {
	// OmegaA is the abundance p-value below which a unique sequence is too
	// abundant to be explained as errors of an existing variant and founds
	// a new one.
	OmegaA float64
	// MaxClusterDist is the largest Hamming distance at which a unique
	// sequence can be absorbed into an existing variant.
	MaxClusterDist int
	// ConsensusFraction is the fraction of per-sample verdicts that must
	// flag a sequence for the consensus chimera decision to remove it.
	ConsensusFraction float64
}

// DefaultOpts holds the default engine thresholds.
var DefaultOpts = Opts{
	OmegaA:            1e-40,
	MaxClusterDist:    16,
	ConsensusFraction: 0.9,
}

// Engine implements dada.Engine.
type Engine struct {
	opts Opts
}

var _ dada.Engine = (*Engine)(nil)

// New returns an Engine with the given thresholds. Zero fields fall back to
// DefaultOpts.
func New(opts Opts) *Engine {
	if opts.OmegaA <= 0 {
		opts.OmegaA = DefaultOpts.OmegaA
	}
	if opts.MaxClusterDist <= 0 {
		opts.MaxClusterDist = DefaultOpts.MaxClusterDist
	}
	if opts.ConsensusFraction <= 0 {
		opts.ConsensusFraction = DefaultOpts.ConsensusFraction
	}
	return &Engine{opts: opts}
}
