package engine

import (
	"context"
	"io"
	"math"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/sixvable/q2-dada2/dada"
	"github.com/sixvable/q2-dada2/encoding/fastq"
)

// maxQual is the highest Phred score the model tracks.
const maxQual = 93

// errRateFloor keeps the per-quality error rate away from zero so that
// mismatch likelihoods never vanish entirely.
const errRateFloor = 1e-7

// model is the per-direction error model: the estimated probability of a
// miscalled base at each quality score, plus the quality-score usage
// observed while learning. Models are immutable once LearnErrors returns.
type model struct {
	dir dada.Direction
	// rates[q] is the substitution probability at Phred quality q.
	rates [maxQual + 1]float64
	// qualCount[q] is the number of bases observed at quality q.
	qualCount [maxQual + 1]int64
	reads     int
}

// errorRate returns the substitution probability for a base of quality q.
func (m *model) errorRate(q int) float64 {
	if q < 0 {
		q = 0
	}
	if q > maxQual {
		q = maxQual
	}
	return m.rates[q]
}

// LearnErrors implements dada.Engine. It streams reads from paths in
// order, stopping once nReads reads have been consumed (nReads == 0 reads
// everything), and derives the per-quality substitution rates from the
// observed quality distribution.
func (e *Engine) LearnErrors(ctx context.Context, dir dada.Direction, paths []string, nReads int) (dada.ErrorModel, error) {
	m := &model{dir: dir}
	for _, path := range paths {
		if nReads > 0 && m.reads >= nReads {
			break
		}
		if err := m.consumeFile(ctx, path, nReads); err != nil {
			return nil, errors.E(err, "learn errors", path)
		}
	}
	if m.reads == 0 {
		return nil, errors.E("no reads available to learn the", dir, "error model")
	}
	for q := 0; q <= maxQual; q++ {
		rate := math.Pow(10, -float64(q)/10)
		if rate > 0.75 {
			rate = 0.75
		}
		if rate < errRateFloor {
			rate = errRateFloor
		}
		m.rates[q] = rate
	}
	log.Printf("learned %s error model from %d reads", dir, m.reads)
	return m, nil
}

func (m *model) consumeFile(ctx context.Context, path string, nReads int) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	var (
		sc   = fastq.NewScanner(r)
		read fastq.Read
	)
	for sc.Scan(&read) {
		for i := 0; i < len(read.Qual); i++ {
			q := read.Quality(i)
			if q < 0 {
				q = 0
			}
			if q > maxQual {
				q = maxQual
			}
			m.qualCount[q]++
		}
		m.reads++
		if nReads > 0 && m.reads >= nReads {
			return sc.Err()
		}
	}
	return sc.Err()
}
