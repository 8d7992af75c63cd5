// Package dada orchestrates a paired-end amplicon denoising pipeline: read
// pairs are quality-filtered per sample, a per-direction error model is
// learned over all samples, each sample is denoised against the shared
// model (optionally in two pseudo-pooled passes), denoised pairs are merged
// and assembled into a sample-by-variant abundance table, chimeric variants
// are removed, and every stage's per-sample read survival is accounted for.
//
// The statistical engines behind each stage are collaborators supplied
// through the Engine interface; this package owns the control flow, the
// cross-sample synchronization points, and the bookkeeping.
package dada

import (
	"context"
	stderrors "errors"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/gzip"
	"github.com/sixvable/q2-dada2/encoding/fastq"
)

// ErrNoFilteredReads is returned when filtering leaves no sample with any
// surviving reads. Callers treat it as a distinct failure from other
// pipeline errors.
var ErrNoFilteredReads = stderrors.New("no reads passed the filter in any sample")

// FilterStat counts one sample's reads entering and surviving the filter
// stage.
type FilterStat struct {
	Input, Output int
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Table is the merged abundance table before chimera removal.
	Table *SequenceTable
	// NonChimeric is the table after chimera removal. With ChimeraNone it
	// is Table itself.
	NonChimeric *SequenceTable
	// Tracking has one row per input sample, in discovery order, including
	// samples eliminated mid-pipeline.
	Tracking []TrackingRow
}

// sampleState accumulates one sample's intermediates as it moves through
// the stages. Each stage writes only its own sample's state, so per-sample
// workers never share mutable data.
type sampleState struct {
	Sample
	stat           FilterStat
	derepF, derepR *Derep
	dnF, dnR       *DenoiseResult
	merged         *MergedResult
	denoised       int
	failedAt       string // stage name, or "" while healthy
}

// Sequence variants seen with a total first-pass abundance of at least
// minPriorAbundance across all samples seed the second pseudo-pooling
// pass. minPriorAbundancePooled is the companion threshold applied to the
// pooled abundance; it is never reached and so contributes no priors.
const (
	minPriorAbundance       = 2
	minPriorAbundancePooled = int64(1) << 62
)

// Run executes the full pipeline over samples. The samples slice defines
// discovery order for every downstream table. Run is deterministic for a
// given set of inputs and options.
func Run(ctx context.Context, samples []Sample, opts Opts, eng Engine) (*Result, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.E("no samples to process")
	}
	if opts.FilteredDir == "" {
		return nil, errors.E("no filtered-read directory configured")
	}
	states := make([]*sampleState, len(samples))
	for i, s := range samples {
		states[i] = &sampleState{Sample: s}
	}

	log.Printf("filtering %d samples", len(states))
	err := forEachSample(opts, states, "filter", func(st *sampleState) error {
		return filterSample(ctx, st, opts)
	})
	if err != nil {
		return nil, err
	}
	live := liveSamples(states)
	if len(live) == 0 {
		return nil, ErrNoFilteredReads
	}
	log.Printf("%d of %d samples have reads after filtering", len(live), len(states))

	// Learning is a full barrier: no sample is denoised until both
	// directions' models are final.
	modelF, err := eng.LearnErrors(ctx, Forward, filtPaths(live, Forward), opts.NReadsLearn)
	if err != nil {
		return nil, errors.E(err, "learn forward error model")
	}
	modelR, err := eng.LearnErrors(ctx, Reverse, filtPaths(live, Reverse), opts.NReadsLearn)
	if err != nil {
		return nil, errors.E(err, "learn reverse error model")
	}

	err = forEachSample(opts, live, "dereplicate", func(st *sampleState) error {
		var err error
		if st.derepF, err = DereplicateFile(ctx, st.FiltF); err != nil {
			return err
		}
		st.derepR, err = DereplicateFile(ctx, st.FiltR)
		return err
	})
	if err != nil {
		return nil, err
	}
	live = liveSamples(states)

	denoisePass := func(pass string, targets []*sampleState, priorsF, priorsR Priors) error {
		log.Printf("denoising %d samples (%s)", len(targets), pass)
		return forEachSample(opts, targets, "denoise", func(st *sampleState) error {
			var err error
			if st.dnF, err = eng.Denoise(ctx, st.derepF, modelF, priorsF); err != nil {
				return errors.E(err, Forward)
			}
			if st.dnR, err = eng.Denoise(ctx, st.derepR, modelR, priorsR); err != nil {
				return errors.E(err, Reverse)
			}
			return nil
		})
	}
	if err = denoisePass("pass 1", live, nil, nil); err != nil {
		return nil, err
	}
	live = liveSamples(states)
	if opts.Pooling == PoolPseudo {
		// The first pass exists only to seed the priors. Every sample must
		// finish it before the priors are final; the second pass then
		// replaces the first pass's results wholesale.
		priorsF := collectPriors(live, Forward)
		priorsR := collectPriors(live, Reverse)
		log.Printf("pseudo-pooling: %d forward, %d reverse prior sequences", len(priorsF), len(priorsR))
		if err = denoisePass("pass 2", live, priorsF, priorsR); err != nil {
			return nil, err
		}
		live = liveSamples(states)
	}
	for _, st := range live {
		st.denoised = st.dnF.DenoisedReads()
	}

	err = forEachSample(opts, live, "merge", func(st *sampleState) error {
		var err error
		st.merged, err = eng.Merge(ctx, st.dnF, st.derepF, st.dnR, st.derepR, opts.MinOverlap)
		return err
	})
	if err != nil {
		return nil, err
	}
	live = liveSamples(states)

	names := make([]string, len(live))
	merged := make([]*MergedResult, len(live))
	for i, st := range live {
		names[i] = st.Name
		merged[i] = st.merged
	}
	table := NewSequenceTable(names, merged)
	log.Printf("sequence table: %d samples x %d sequence variants", len(table.Samples), len(table.Seqs))

	nonchim, err := RemoveChimeras(ctx, eng, table, opts.ChimeraMethod, opts.MinParentFold)
	if err != nil {
		return nil, err
	}
	return &Result{
		Table:       table,
		NonChimeric: nonchim,
		Tracking:    buildTracking(states, table, nonchim),
	}, nil
}

// forEachSample runs op over states with the configured parallelism. On
// failure the sample's name and stage are attached to the error; with
// KeepGoing the sample is marked failed and processing continues.
func forEachSample(opts Opts, states []*sampleState, stage string, op func(*sampleState) error) error {
	run := func(i int) error {
		st := states[i]
		err := op(st)
		if err == nil {
			return nil
		}
		err = errors.E(err, "sample", st.Name, "stage", stage)
		if !opts.KeepGoing {
			return err
		}
		log.Error.Printf("%v (continuing)", err)
		st.failedAt = stage
		return nil
	}
	n := len(states)
	p := opts.Parallelism
	if p <= 0 || p >= n {
		return traverse.Each(n, run)
	}
	return traverse.Each(p, func(job int) error {
		for i := (job * n) / p; i < ((job + 1) * n) / p; i++ {
			if err := run(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// liveSamples returns the samples still in the pipeline: filtered reads
// remain and no stage has failed. Order follows states, which follows
// sample discovery order.
func liveSamples(states []*sampleState) []*sampleState {
	var live []*sampleState
	for _, st := range states {
		if st.stat.Output > 0 && st.failedAt == "" {
			live = append(live, st)
		}
	}
	return live
}

func filtPaths(states []*sampleState, dir Direction) []string {
	paths := make([]string, len(states))
	for i, st := range states {
		if dir == Forward {
			paths[i] = st.FiltF
		} else {
			paths[i] = st.FiltR
		}
	}
	return paths
}

// filterSample writes the sample's filtered, gzip-compressed read pair
// files and records its input/output counts.
func filterSample(ctx context.Context, st *sampleState, opts Opts) (err error) {
	st.FiltF = file.Join(opts.FilteredDir, st.Name+"_F_filt.fastq.gz")
	st.FiltR = file.Join(opts.FilteredDir, st.Name+"_R_filt.fastq.gz")
	outF, err := file.Create(ctx, st.FiltF)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, outF, &err)
	outR, err := file.Create(ctx, st.FiltR)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, outR, &err)
	gzF := gzip.NewWriter(outF.Writer(ctx))
	gzR := gzip.NewWriter(outR.Writer(ctx))
	in, out, err := fastq.FilterPair(ctx, st.RawF, st.RawR, gzF, gzR,
		fastq.FilterOpts{TruncLen: opts.TruncLenF, TrimLeft: opts.TrimLeftF, MaxEE: opts.MaxEEF, TruncQ: opts.TruncQ},
		fastq.FilterOpts{TruncLen: opts.TruncLenR, TrimLeft: opts.TrimLeftR, MaxEE: opts.MaxEER, TruncQ: opts.TruncQ})
	if err != nil {
		return err
	}
	if err := gzF.Close(); err != nil {
		return err
	}
	if err := gzR.Close(); err != nil {
		return err
	}
	st.stat = FilterStat{Input: in, Output: out}
	log.Printf("%s: %d of %d read pairs passed the filter", st.Name, out, in)
	return nil
}

// collectPriors pools the given direction's first-pass variant abundances
// across samples and returns the sequences abundant enough to seed the
// second pass.
func collectPriors(states []*sampleState, dir Direction) Priors {
	total := map[string]int64{}
	for _, st := range states {
		res := st.dnF
		if dir == Reverse {
			res = st.dnR
		}
		for _, v := range res.Variants {
			total[v.Seq] += int64(v.Abundance)
		}
	}
	priors := Priors{}
	for seq, n := range total {
		if n >= minPriorAbundance || n >= minPriorAbundancePooled {
			priors[seq] = true
		}
	}
	return priors
}
