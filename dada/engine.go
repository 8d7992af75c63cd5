package dada

import "context"

// Direction distinguishes the forward and reverse reads of a pair.
type Direction int

const (
	// Forward is the R1 direction.
	Forward Direction = iota
	// Reverse is the R2 direction.
	Reverse
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// ErrorModel is a learned per-direction error model. The pipeline treats it
// as an opaque immutable value: it is produced once per direction by
// Engine.LearnErrors and handed read-only to every Denoise call for that
// direction. Only the engine that produced it looks inside.
type ErrorModel interface{}

// Priors is the set of sequence variants seeding a second, more sensitive
// denoising pass.
type Priors map[string]bool

// Variant is one inferred sequence variant and the number of sample reads
// assigned to it.
type Variant struct {
	Seq       string
	Abundance int
}

// DenoiseResult holds the outcome of denoising one sample in one
// direction.
type DenoiseResult struct {
	// Variants are the inferred sequence variants, in engine order.
	Variants []Variant
	// Assignment[u] is the index in Variants of the variant the u'th unique
	// sequence of the sample's Derep was assigned to, or -1 if the engine
	// left it unassigned.
	Assignment []int
}

// DenoisedReads returns the number of reads assigned to any variant.
func (r *DenoiseResult) DenoisedReads() int {
	n := 0
	for _, v := range r.Variants {
		n += v.Abundance
	}
	return n
}

// MergedSeq is one merged sequence and its per-sample abundance.
type MergedSeq struct {
	Seq       string
	Abundance int
}

// MergedResult holds one sample's merged sequence abundances, in a
// deterministic engine order.
type MergedResult struct {
	Seqs []MergedSeq
}

// Engine is the denoising engine the pipeline orchestrates. Implementations
// must be safe for concurrent Denoise and Merge calls on distinct samples;
// values returned by LearnErrors are shared read-only across those calls.
type Engine interface {
	// LearnErrors consumes reads from the given filtered files, in order,
	// until nReads reads have been seen or the files are exhausted
	// (nReads == 0 reads everything), and returns the direction's error
	// model.
	LearnErrors(ctx context.Context, dir Direction, paths []string, nReads int) (ErrorModel, error)

	// Denoise infers sequence variants for one sample from its
	// dereplicated reads and the direction's error model. A non-nil priors
	// set marks sequences to be accepted as variants regardless of their
	// abundance in this sample.
	Denoise(ctx context.Context, derep *Derep, model ErrorModel, priors Priors) (*DenoiseResult, error)

	// Merge reconciles one sample's forward and reverse denoising results
	// into merged sequences. Read pairs whose variants cannot be aligned
	// with at least minOverlap overlapping bases are dropped.
	Merge(ctx context.Context, fwd *DenoiseResult, derepF *Derep, rev *DenoiseResult, derepR *Derep, minOverlap int) (*MergedResult, error)

	// RemoveBimeras returns a copy of table without the columns judged
	// chimeric under the given method. Candidate parents must be at least
	// minParentFold times as abundant as the sequence they explain.
	RemoveBimeras(ctx context.Context, table *SequenceTable, method ChimeraMethod, minParentFold float64) (*SequenceTable, error)
}
