package dada

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Pooling selects how sample denoising cooperates across samples.
type Pooling int

const (
	// PoolIndependent denoises every sample on its own, in a single pass.
	PoolIndependent Pooling = iota
	// PoolPseudo runs a first pass over all samples to collect recurring
	// sequence variants, then a second pass seeded with them.
	PoolPseudo
)

// String implements fmt.Stringer.
func (p Pooling) String() string {
	switch p {
	case PoolIndependent:
		return "independent"
	case PoolPseudo:
		return "pseudo"
	}
	return fmt.Sprintf("pooling(%d)", int(p))
}

// ParsePooling parses the commandline spelling of a Pooling value.
func ParsePooling(s string) (Pooling, error) {
	switch s {
	case "independent":
		return PoolIndependent, nil
	case "pseudo":
		return PoolPseudo, nil
	}
	return 0, errors.E("unknown pooling mode:", s)
}

// ChimeraMethod selects the cross-sample policy for chimera removal.
type ChimeraMethod int

const (
	// ChimeraNone disables chimera removal.
	ChimeraNone ChimeraMethod = iota
	// ChimeraPooled judges each sequence against all samples pooled together.
	ChimeraPooled
	// ChimeraConsensus judges each sequence per sample and combines the
	// verdicts.
	ChimeraConsensus
)

// String implements fmt.Stringer.
func (m ChimeraMethod) String() string {
	switch m {
	case ChimeraNone:
		return "none"
	case ChimeraPooled:
		return "pooled"
	case ChimeraConsensus:
		return "consensus"
	}
	return fmt.Sprintf("chimeramethod(%d)", int(m))
}

// ParseChimeraMethod parses the commandline spelling of a ChimeraMethod.
func ParseChimeraMethod(s string) (ChimeraMethod, error) {
	switch s {
	case "none":
		return ChimeraNone, nil
	case "pooled":
		return ChimeraPooled, nil
	case "consensus":
		return ChimeraConsensus, nil
	}
	return 0, errors.E("unknown chimera method:", s)
}

// Opts configures a pipeline run. The zero value is not usable; start from
// DefaultOpts.
type Opts struct {
	// FilteredDir is the directory filtered read pair files are written to.
	FilteredDir string

	// TruncLenF and TruncLenR truncate forward and reverse reads to the
	// given lengths; 0 disables truncation.
	TruncLenF, TruncLenR int
	// TrimLeftF and TrimLeftR remove leading bases from forward and reverse
	// reads.
	TrimLeftF, TrimLeftR int
	// MaxEEF and MaxEER discard reads whose expected errors exceed the
	// threshold; 0 disables the check.
	MaxEEF, MaxEER float64
	// TruncQ truncates reads at the first base with quality at or below
	// this score.
	TruncQ int

	// NReadsLearn is the number of reads used to learn each direction's
	// error model. 0 uses all available reads.
	NReadsLearn int

	// Pooling selects single-pass or pseudo-pooled denoising.
	Pooling Pooling

	// MinOverlap is the minimum forward/reverse overlap required to merge a
	// denoised read pair.
	MinOverlap int

	// ChimeraMethod selects the chimera-removal policy.
	ChimeraMethod ChimeraMethod
	// MinParentFold is the abundance multiple a parent sequence must reach,
	// relative to a candidate chimera, to be considered as its parent. Must
	// be >= 1.
	MinParentFold float64

	// Parallelism bounds the number of samples processed concurrently
	// within a stage. 0 uses all available parallelism, 1 runs strictly
	// sequentially.
	Parallelism int

	// KeepGoing continues the run when a single sample fails a stage,
	// reporting that sample with zero counts. The default is to abort.
	KeepGoing bool
}

// DefaultOpts holds the default option values.
var DefaultOpts = Opts{
	TruncQ:        2,
	NReadsLearn:   1000000,
	Pooling:       PoolIndependent,
	MinOverlap:    12,
	ChimeraMethod: ChimeraConsensus,
	MinParentFold: 1.0,
}

// Check validates opts before any processing starts.
func (o Opts) Check() error {
	if o.TruncLenF < 0 || o.TruncLenR < 0 || o.TrimLeftF < 0 || o.TrimLeftR < 0 {
		return errors.E("truncation and trim lengths must be non-negative")
	}
	if o.TruncLenF > 0 && o.TrimLeftF >= o.TruncLenF {
		return errors.E("forward trim-left must be smaller than trunc-len")
	}
	if o.TruncLenR > 0 && o.TrimLeftR >= o.TruncLenR {
		return errors.E("reverse trim-left must be smaller than trunc-len")
	}
	if o.MaxEEF < 0 || o.MaxEER < 0 {
		return errors.E("max expected errors must be non-negative")
	}
	if o.NReadsLearn < 0 {
		return errors.E("reads-learn must be non-negative")
	}
	if o.MinOverlap < 1 {
		return errors.E("min-overlap must be at least 1")
	}
	if o.ChimeraMethod != ChimeraNone && o.MinParentFold < 1 {
		return errors.E("min-parent-fold must be at least 1")
	}
	if o.Parallelism < 0 {
		return errors.E("parallelism must be non-negative")
	}
	return nil
}
