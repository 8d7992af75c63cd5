package main

/*
dada-paired runs the paired-end amplicon denoising pipeline: it discovers
forward/reverse FASTQ pairs in an input directory, quality-filters them,
learns per-direction error models, denoises each sample, merges read pairs,
removes chimeras, and writes a sequence-variant abundance table plus a
per-sample read tracking table.

A run can be checkpointed after merging (-checkpoint) and later resumed
(-resume) to redo only chimera removal and reporting, e.g. with a different
chimera method.

The process exits with status 2 when filtering leaves no reads in any
sample, and 1 on other errors.
*/

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/sixvable/q2-dada2/dada"
	"github.com/sixvable/q2-dada2/dada/engine"
)

var (
	filteredDir = flag.String("filtered-dir", "filtered", "Directory to write filtered read pair files to")
	tablePath   = flag.String("table", "table.tsv", "Output path for the sequence-variant abundance table")
	trackPath   = flag.String("tracking", "tracking.tsv", "Output path for the per-sample read tracking table")

	truncLenF = flag.Int("trunc-len-f", dada.DefaultOpts.TruncLenF, "Truncate forward reads to this length; 0 disables. Shorter reads are discarded")
	truncLenR = flag.Int("trunc-len-r", dada.DefaultOpts.TruncLenR, "Truncate reverse reads to this length; 0 disables. Shorter reads are discarded")
	trimLeftF = flag.Int("trim-left-f", dada.DefaultOpts.TrimLeftF, "Remove this many leading bases from forward reads")
	trimLeftR = flag.Int("trim-left-r", dada.DefaultOpts.TrimLeftR, "Remove this many leading bases from reverse reads")
	maxEEF    = flag.Float64("max-ee-f", dada.DefaultOpts.MaxEEF, "Discard forward reads with more than this many expected errors; 0 disables")
	maxEER    = flag.Float64("max-ee-r", dada.DefaultOpts.MaxEER, "Discard reverse reads with more than this many expected errors; 0 disables")
	truncQ    = flag.Int("trunc-q", dada.DefaultOpts.TruncQ, "Truncate reads at the first base with quality at or below this score")

	readsLearn    = flag.Int("reads-learn", dada.DefaultOpts.NReadsLearn, "Number of reads used to learn each direction's error model; 0 uses all")
	pooling       = flag.String("pooling", dada.DefaultOpts.Pooling.String(), "Denoising pooling mode: independent or pseudo")
	minOverlap    = flag.Int("min-overlap", dada.DefaultOpts.MinOverlap, "Minimum forward/reverse overlap required to merge a read pair")
	chimeraMethod = flag.String("chimera-method", dada.DefaultOpts.ChimeraMethod.String(), "Chimera removal method: none, pooled or consensus")
	minParentFold = flag.Float64("min-parent-fold", dada.DefaultOpts.MinParentFold, "Abundance multiple a parent must reach over a candidate chimera; must be >= 1")

	parallelism = flag.Int("parallelism", dada.DefaultOpts.Parallelism, "Maximum number of samples processed concurrently per stage; 0 uses all cores, 1 is sequential")
	keepGoing   = flag.Bool("keep-going", dada.DefaultOpts.KeepGoing, "Continue when a single sample fails a stage, reporting it with zero counts")

	checkpointPath = flag.String("checkpoint", "", "If set, write a checkpoint after merging to this path")
	resumePath     = flag.String("resume", "", "If set, resume from this checkpoint instead of processing reads; only chimera removal and reporting run")
)

func usageFn() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] input-dir\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s [OPTIONS] -resume checkpoint.rio\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usageFn
	shutdown := grail.Init()
	defer shutdown()
	ctx := vcontext.Background()

	poolMode, err := dada.ParsePooling(*pooling)
	if err != nil {
		log.Fatal(err)
	}
	chimera, err := dada.ParseChimeraMethod(*chimeraMethod)
	if err != nil {
		log.Fatal(err)
	}
	opts := dada.Opts{
		FilteredDir:   *filteredDir,
		TruncLenF:     *truncLenF,
		TruncLenR:     *truncLenR,
		TrimLeftF:     *trimLeftF,
		TrimLeftR:     *trimLeftR,
		MaxEEF:        *maxEEF,
		MaxEER:        *maxEER,
		TruncQ:        *truncQ,
		NReadsLearn:   *readsLearn,
		Pooling:       poolMode,
		MinOverlap:    *minOverlap,
		ChimeraMethod: chimera,
		MinParentFold: *minParentFold,
		Parallelism:   *parallelism,
		KeepGoing:     *keepGoing,
	}
	if err := opts.Check(); err != nil {
		log.Fatal(err)
	}
	eng := engine.New(engine.Opts{})

	var res *dada.Result
	if *resumePath != "" {
		cp, err := dada.ReadCheckpoint(ctx, *resumePath)
		if err != nil {
			log.Fatal(err)
		}
		if res, err = cp.Finish(ctx, eng, opts.ChimeraMethod, opts.MinParentFold); err != nil {
			log.Fatal(err)
		}
	} else {
		if flag.NArg() != 1 {
			log.Fatalf("exactly one input directory argument is required; got %d", flag.NArg())
		}
		samples, err := dada.FindSamples(ctx, flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("found %d samples in %s", len(samples), flag.Arg(0))
		res, err = dada.Run(ctx, samples, opts, eng)
		if errors.Is(err, dada.ErrNoFilteredReads) {
			log.Error.Printf("%v", err)
			shutdown()
			os.Exit(2)
		}
		if err != nil {
			log.Fatal(err)
		}
		if *checkpointPath != "" {
			if err := dada.NewCheckpoint(opts, res).Write(ctx, *checkpointPath); err != nil {
				log.Fatal(err)
			}
			log.Printf("wrote checkpoint to %s", *checkpointPath)
		}
	}

	if err := writeTSV(ctx, *tablePath, res.NonChimeric.WriteTSV); err != nil {
		log.Fatal(err)
	}
	if err := writeTSV(ctx, *trackPath, func(w io.Writer) error { return dada.WriteTrackingTSV(w, res.Tracking) }); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s and %s", *tablePath, *trackPath)
}

func writeTSV(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return write(out.Writer(ctx))
}
