package dada

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

// A Checkpoint captures everything the reporting tail of the pipeline
// needs: the pre-chimera sequence table plus each sample's counts from the
// earlier stages. Writing one after merging lets chimera removal and
// tracking be rerun with different settings without repeating filtering
// and denoising.
type Checkpoint struct {
	// Opts are the options the table was produced under.
	Opts Opts
	// Table is the pre-chimera sequence table.
	Table *SequenceTable
	// Rows carries per-sample input/filtered/denoised counts for every
	// sample, including those eliminated before merging. The merged and
	// non-chimeric fields are ignored.
	Rows []TrackingRow
}

const (
	checkpointVersionHeader = "dada2version"
	checkpointVersion       = "DADA2_GO_V1"
)

// checkpointTrailer is gob-encoded into the recordio trailer.
type checkpointTrailer struct {
	Opts    Opts
	Samples []string
	Seqs    []string
}

// checkpointRecord is one gob-encoded recordio record: a sample's stage
// counts and, when present, its table row.
type checkpointRecord struct {
	Sample                    string
	Input, Filtered, Denoised int
	InTable                   bool
	Counts                    []int
}

// NewCheckpoint builds a Checkpoint from a finished run.
func NewCheckpoint(opts Opts, res *Result) *Checkpoint {
	rows := make([]TrackingRow, len(res.Tracking))
	for i, r := range res.Tracking {
		rows[i] = TrackingRow{Sample: r.Sample, Input: r.Input, Filtered: r.Filtered, Denoised: r.Denoised}
	}
	return &Checkpoint{Opts: opts, Table: res.Table, Rows: rows}
}

// Write stores the checkpoint at path as a zstd-compressed recordio file.
func (c *Checkpoint) Write(ctx context.Context, path string) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(checkpointVersionHeader, checkpointVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	rowOf := make(map[string]int, len(c.Table.Samples))
	for i, name := range c.Table.Samples {
		rowOf[name] = i
	}
	for _, row := range c.Rows {
		rec := checkpointRecord{
			Sample:   row.Sample,
			Input:    row.Input,
			Filtered: row.Filtered,
			Denoised: row.Denoised,
		}
		if i, ok := rowOf[row.Sample]; ok {
			rec.InTable = true
			rec.Counts = c.Table.Counts[i]
		}
		b := bytes.Buffer{}
		if err := gob.NewEncoder(&b).Encode(rec); err != nil {
			return errors.E(err, "encode checkpoint record", row.Sample)
		}
		w.Append(b.Bytes())
	}
	b := bytes.Buffer{}
	trailer := checkpointTrailer{Opts: c.Opts, Seqs: c.Table.Seqs}
	for _, row := range c.Rows {
		trailer.Samples = append(trailer.Samples, row.Sample)
	}
	if err := gob.NewEncoder(&b).Encode(trailer); err != nil {
		return errors.E(err, "encode checkpoint trailer")
	}
	w.SetTrailer(b.Bytes())
	if err := w.Finish(); err != nil {
		return errors.E(err, "write checkpoint", path)
	}
	return nil
}

// ReadCheckpoint loads a checkpoint written by Write.
func ReadCheckpoint(ctx context.Context, path string) (c *Checkpoint, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionOK := false
	for _, kv := range r.Header() {
		if kv.Key == checkpointVersionHeader {
			v, _ := kv.Value.(string)
			if v != checkpointVersion {
				return nil, errors.E("checkpoint version mismatch: got", v, "want", checkpointVersion)
			}
			versionOK = true
			break
		}
	}
	if !versionOK {
		return nil, errors.E("not a checkpoint file:", path)
	}
	var trailer checkpointTrailer
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&trailer); err != nil {
		return nil, errors.E(err, "decode checkpoint trailer")
	}
	c = &Checkpoint{
		Opts:  trailer.Opts,
		Table: &SequenceTable{Seqs: trailer.Seqs},
	}
	for r.Scan() {
		var rec checkpointRecord
		if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&rec); err != nil {
			return nil, errors.E(err, "decode checkpoint record")
		}
		c.Rows = append(c.Rows, TrackingRow{
			Sample:   rec.Sample,
			Input:    rec.Input,
			Filtered: rec.Filtered,
			Denoised: rec.Denoised,
		})
		if rec.InTable {
			c.Table.Samples = append(c.Table.Samples, rec.Sample)
			c.Table.Counts = append(c.Table.Counts, rec.Counts)
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.E(err, "read checkpoint", path)
	}
	if len(c.Rows) != len(trailer.Samples) {
		return nil, errors.E("truncated checkpoint:", path)
	}
	return c, nil
}

// Finish reruns the reporting tail of the pipeline from the checkpoint:
// chimera removal under the given settings, then tracking.
func (c *Checkpoint) Finish(ctx context.Context, eng Engine, method ChimeraMethod, minParentFold float64) (*Result, error) {
	nonchim, err := RemoveChimeras(ctx, eng, c.Table, method, minParentFold)
	if err != nil {
		return nil, err
	}
	rowOf := make(map[string]int, len(c.Table.Samples))
	for i, name := range c.Table.Samples {
		rowOf[name] = i
	}
	rows := make([]TrackingRow, len(c.Rows))
	for i, r := range c.Rows {
		row := TrackingRow{Sample: r.Sample, Input: r.Input}
		if r.Filtered > 0 {
			row.Filtered = r.Filtered
			row.Denoised = r.Denoised
			if j, ok := rowOf[r.Sample]; ok {
				row.Merged = c.Table.RowSum(j)
				row.NonChimeric = nonchim.RowSum(j)
			}
		}
		rows[i] = row
	}
	return &Result{Table: c.Table, NonChimeric: nonchim, Tracking: rows}, nil
}
