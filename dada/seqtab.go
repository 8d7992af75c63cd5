package dada

import (
	"io"

	"github.com/grailbio/base/tsv"
)

// variantIDLabel heads the first column of the persisted abundance table.
// Downstream consumers key on this label; do not change it.
const variantIDLabel = "#OTU ID"

// SequenceTable is the (sample x sequence variant) abundance matrix. Rows
// are samples in discovery order; columns are the distinct merged sequences
// observed across all samples, in first-observed order. A table is
// immutable once built; chimera removal produces a new table with a subset
// of the columns.
type SequenceTable struct {
	// Samples are the row names.
	Samples []string
	// Seqs are the column sequences.
	Seqs []string
	// Counts[i][j] is the abundance of Seqs[j] in Samples[i].
	Counts [][]int
}

// NewSequenceTable assembles per-sample merged results into one table.
// samples and merged are parallel, in sample discovery order. The column
// set is exactly the union of sequences with nonzero abundance in some
// sample; no all-zero column is created.
func NewSequenceTable(samples []string, merged []*MergedResult) *SequenceTable {
	t := &SequenceTable{Samples: samples}
	col := map[string]int{}
	for _, m := range merged {
		for _, s := range m.Seqs {
			if s.Abundance <= 0 {
				continue
			}
			if _, ok := col[s.Seq]; !ok {
				col[s.Seq] = len(t.Seqs)
				t.Seqs = append(t.Seqs, s.Seq)
			}
		}
	}
	t.Counts = make([][]int, len(samples))
	for i, m := range merged {
		row := make([]int, len(t.Seqs))
		for _, s := range m.Seqs {
			if s.Abundance > 0 {
				row[col[s.Seq]] += s.Abundance
			}
		}
		t.Counts[i] = row
	}
	return t
}

// RowSum returns the total abundance of the i'th sample.
func (t *SequenceTable) RowSum(i int) int {
	n := 0
	for _, c := range t.Counts[i] {
		n += c
	}
	return n
}

// ColSum returns the total abundance of the j'th sequence across samples.
func (t *SequenceTable) ColSum(j int) int {
	n := 0
	for _, row := range t.Counts {
		n += row[j]
	}
	return n
}

// Subset returns a new table with only the columns for which keep is true.
// Rows are unchanged.
func (t *SequenceTable) Subset(keep []bool) *SequenceTable {
	s := &SequenceTable{Samples: t.Samples}
	var cols []int
	for j, k := range keep {
		if k {
			cols = append(cols, j)
			s.Seqs = append(s.Seqs, t.Seqs[j])
		}
	}
	s.Counts = make([][]int, len(t.Counts))
	for i, row := range t.Counts {
		sub := make([]int, len(cols))
		for jj, j := range cols {
			sub[jj] = row[j]
		}
		s.Counts[i] = sub
	}
	return s
}

// WriteTSV writes the table in the persisted orientation: one row per
// sequence variant, one column per sample, the header row prefixed with the
// variant-ID label.
func (t *SequenceTable) WriteTSV(w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString(variantIDLabel)
	for _, name := range t.Samples {
		out.WriteString(name)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for j, seq := range t.Seqs {
		out.WriteString(seq)
		for i := range t.Samples {
			out.WriteInt64(int64(t.Counts[i][j]))
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
