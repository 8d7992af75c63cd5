package fastq

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// FilterOpts controls per-read trimming and filtering for one direction of
// a read pair.
type FilterOpts struct {
	// TruncLen > 0 truncates reads to that length. Reads shorter than
	// TruncLen after quality truncation are discarded.
	TruncLen int
	// TrimLeft removes that many leading bases after truncation. Reads left
	// empty are discarded.
	TrimLeft int
	// MaxEE > 0 discards reads whose summed expected errors exceed it.
	MaxEE float64
	// TruncQ truncates each read before its first base with Phred quality
	// at or below this score.
	TruncQ int
}

// filterRead applies opts to r in place, reporting whether the read
// survives. With both TruncLen and TrimLeft set, surviving reads have
// length TruncLen - TrimLeft.
func filterRead(r *Read, opts FilterOpts) bool {
	r.TruncateAtQuality(opts.TruncQ)
	if opts.TruncLen > 0 {
		if len(r.Seq) < opts.TruncLen {
			return false
		}
		r.Truncate(opts.TruncLen)
	}
	if opts.TrimLeft > 0 {
		if len(r.Seq) <= opts.TrimLeft {
			return false
		}
		r.TrimLeft(opts.TrimLeft)
	}
	if len(r.Seq) == 0 || r.HasAmbiguous() {
		return false
	}
	if opts.MaxEE > 0 && r.ExpectedErrors() > opts.MaxEE {
		return false
	}
	return true
}

// FilterPair reads the paired FASTQ files at r1Path and r2Path, which may
// be gzip-compressed, and writes surviving read pairs to r1Out and r2Out.
// A pair survives only if both reads independently pass their direction's
// filter. FilterPair returns the number of input pairs and the number of
// pairs written.
func FilterPair(ctx context.Context, r1Path, r2Path string, r1Out, r2Out io.Writer, r1Opts, r2Opts FilterOpts) (in, out int, err error) {
	in1, err := file.Open(ctx, r1Path)
	if err != nil {
		return 0, 0, err
	}
	defer file.CloseAndReport(ctx, in1, &err)
	in2, err := file.Open(ctx, r2Path)
	if err != nil {
		return 0, 0, err
	}
	defer file.CloseAndReport(ctx, in2, &err)
	var (
		rd1 io.Reader = in1.Reader(ctx)
		rd2 io.Reader = in2.Reader(ctx)
	)
	if u := compress.NewReaderPath(rd1, in1.Name()); u != nil {
		rd1 = u
	}
	if u := compress.NewReaderPath(rd2, in2.Name()); u != nil {
		rd2 = u
	}
	sc := NewPairScanner(rd1, rd2)
	w1, w2 := NewWriter(r1Out), NewWriter(r2Out)
	var r1, r2 Read
	for sc.Scan(&r1, &r2) {
		in++
		if !filterRead(&r1, r1Opts) || !filterRead(&r2, r2Opts) {
			continue
		}
		if werr := w1.Write(&r1); werr != nil {
			return in, out, errors.Wrap(werr, "write R1 output")
		}
		if werr := w2.Write(&r2); werr != nil {
			return in, out, errors.Wrap(werr, "write R2 output")
		}
		out++
	}
	if serr := sc.Err(); serr != nil {
		return in, out, errors.Wrapf(serr, "filter %s, %s", r1Path, r2Path)
	}
	if werr := w1.Flush(); werr != nil {
		return in, out, errors.Wrap(werr, "write R1 output")
	}
	if werr := w2.Flush(); werr != nil {
		return in, out, errors.Wrap(werr, "write R2 output")
	}
	return in, out, nil
}
