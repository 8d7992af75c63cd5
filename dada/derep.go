package dada

import (
	"context"
	"io"
	"sort"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/sixvable/q2-dada2/encoding/fastq"
)

// Derep holds the dereplicated reads of one sample in one direction:
// identical reads collapsed into counted unique sequences, ordered by
// descending abundance (ties broken by first appearance in the file).
type Derep struct {
	// Seqs are the unique sequences.
	Seqs []string
	// Counts[i] is the number of reads collapsed into Seqs[i].
	Counts []int
	// Map[r] is the index in Seqs of the r'th read of the file. It links a
	// read to its unique sequence, and through a denoising assignment, to
	// its sequence variant.
	Map []int
	// Quals[i][p] is the mean quality score at position p over the reads
	// collapsed into Seqs[i].
	Quals [][]float64
}

// NReads returns the number of reads dereplicated.
func (d *Derep) NReads() int { return len(d.Map) }

// Dereplicate collapses the FASTQ reads from r into counted unique
// sequences.
func Dereplicate(r io.Reader) (*Derep, error) {
	var (
		sc       = fastq.NewScanner(r)
		read     fastq.Read
		index    = map[string]int{}
		d        = &Derep{}
		qualSums [][]float64
	)
	for sc.Scan(&read) {
		i, ok := index[read.Seq]
		if !ok {
			i = len(d.Seqs)
			index[read.Seq] = i
			d.Seqs = append(d.Seqs, read.Seq)
			d.Counts = append(d.Counts, 0)
			qualSums = append(qualSums, make([]float64, len(read.Seq)))
		}
		d.Counts[i]++
		for p := 0; p < len(read.Qual) && p < len(qualSums[i]); p++ {
			qualSums[i][p] += float64(read.Quality(p))
		}
		d.Map = append(d.Map, i)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	d.Quals = qualSums
	for i, sums := range d.Quals {
		for p := range sums {
			sums[p] /= float64(d.Counts[i])
		}
	}
	d.sortByAbundance()
	return d, nil
}

// DereplicateFile dereplicates the possibly gzip-compressed FASTQ file at
// path.
func DereplicateFile(ctx context.Context, path string) (d *Derep, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if d, err = Dereplicate(r); err != nil {
		return nil, errors.E(err, "dereplicate", path)
	}
	return d, nil
}

// sortByAbundance reorders the unique sequences by descending count,
// breaking ties by first appearance, and rewrites Map accordingly.
func (d *Derep) sortByAbundance() {
	order := make([]int, len(d.Seqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return d.Counts[order[a]] > d.Counts[order[b]]
	})
	rank := make([]int, len(order))
	for newIdx, oldIdx := range order {
		rank[oldIdx] = newIdx
	}
	seqs := make([]string, len(d.Seqs))
	counts := make([]int, len(d.Counts))
	quals := make([][]float64, len(d.Quals))
	for newIdx, oldIdx := range order {
		seqs[newIdx] = d.Seqs[oldIdx]
		counts[newIdx] = d.Counts[oldIdx]
		quals[newIdx] = d.Quals[oldIdx]
	}
	d.Seqs, d.Counts, d.Quals = seqs, counts, quals
	for r, u := range d.Map {
		d.Map[r] = rank[u]
	}
}
