package dada

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// RemoveChimeras applies the configured chimera-removal policy to table.
// ChimeraNone returns table itself, column for column. Other methods
// delegate the per-sequence verdicts to the engine.
func RemoveChimeras(ctx context.Context, eng Engine, table *SequenceTable, method ChimeraMethod, minParentFold float64) (*SequenceTable, error) {
	if method == ChimeraNone {
		return table, nil
	}
	if minParentFold < 1 {
		return nil, errors.E("min-parent-fold must be at least 1, got", minParentFold)
	}
	out, err := eng.RemoveBimeras(ctx, table, method, minParentFold)
	if err != nil {
		return nil, errors.E(err, "remove chimeras")
	}
	log.Printf("chimera removal (%s): kept %d of %d sequence variants", method, len(out.Seqs), len(table.Seqs))
	return out, nil
}
