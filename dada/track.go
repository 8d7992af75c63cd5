package dada

import (
	"io"

	"github.com/grailbio/base/tsv"
)

// TrackingRow reports, for one sample, the number of reads surviving each
// pipeline stage. Counts are non-increasing left to right: a later stage
// can only lose reads.
type TrackingRow struct {
	Sample      string
	Input       int
	Filtered    int
	Denoised    int
	Merged      int
	NonChimeric int
}

// buildTracking assembles one TrackingRow per sample, in discovery order,
// from the per-stage outputs. A sample with zero filtered reads, or one
// that failed a stage, reports zero for every later stage regardless of any
// counts recorded for it. Merged and non-chimeric counts are the sample's
// row sums over the pre- and post-chimera tables, so merged >= non-chimeric
// holds by construction.
func buildTracking(states []*sampleState, table, nonchim *SequenceTable) []TrackingRow {
	rowOf := make(map[string]int, len(table.Samples))
	for i, name := range table.Samples {
		rowOf[name] = i
	}
	rows := make([]TrackingRow, len(states))
	for i, st := range states {
		row := TrackingRow{
			Sample: st.Name,
			Input:  st.stat.Input,
		}
		if st.stat.Output > 0 && st.failedAt == "" {
			row.Filtered = st.stat.Output
			row.Denoised = st.denoised
			if j, ok := rowOf[st.Name]; ok {
				row.Merged = table.RowSum(j)
				row.NonChimeric = nonchim.RowSum(j)
			}
		}
		rows[i] = row
	}
	return rows
}

// WriteTrackingTSV writes the per-sample stage counts as a tab-delimited
// table, one row per sample.
func WriteTrackingTSV(w io.Writer, rows []TrackingRow) error {
	out := tsv.NewWriter(w)
	for _, col := range []string{"sample-id", "input", "filtered", "denoised", "merged", "non-chimeric"} {
		out.WriteString(col)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, r := range rows {
		out.WriteString(r.Sample)
		out.WriteInt64(int64(r.Input))
		out.WriteInt64(int64(r.Filtered))
		out.WriteInt64(int64(r.Denoised))
		out.WriteInt64(int64(r.Merged))
		out.WriteInt64(int64(r.NonChimeric))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
