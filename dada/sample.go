package dada

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Sample is one sequenced specimen, identified by a stable name derived
// from its forward read filename. The name is carried through every
// pipeline stage, so per-sample accounting never relies on positional
// alignment between stages.
type Sample struct {
	// Name identifies the sample in tables and logs.
	Name string
	// RawF and RawR are the raw forward and reverse read files.
	RawF, RawR string
	// FiltF and FiltR are the filtered forward and reverse read files,
	// assigned when the filter stage runs.
	FiltF, FiltR string
}

var fastqSuffixes = []string{".fastq.gz", ".fq.gz", ".fastq", ".fq"}

// forwardTags are the filename markers distinguishing forward read files
// from their reverse mates. "_1"/"_2" are only recognized at the end of the
// extension-stripped name; "_R1"/"_R2" may appear anywhere, last occurrence
// winning (Casava names carry trailing lane and chunk fields).
var forwardTags = [][2]string{{"_R1", "_R2"}, {"_1", "_2"}}

// splitFASTQName splits the basename of path into the name with its FASTQ
// extension removed and the extension itself. ok is false if path has no
// recognized FASTQ extension.
func splitFASTQName(path string) (stem, ext string, ok bool) {
	name := filepath.Base(path)
	for _, suffix := range fastqSuffixes {
		if strings.HasSuffix(name, suffix) {
			return name[:len(name)-len(suffix)], suffix, true
		}
	}
	return "", "", false
}

// forwardTagIndex locates the forward-read tag in the extension-stripped
// basename stem. It returns the tag pair and the tag's index in stem, or
// ok=false if stem is not a forward read file.
func forwardTagIndex(stem string) (tags [2]string, idx int, ok bool) {
	if i := strings.LastIndex(stem, "_R1"); i >= 0 {
		return forwardTags[0], i, true
	}
	if strings.HasSuffix(stem, "_1") {
		return forwardTags[1], len(stem) - 2, true
	}
	return [2]string{}, 0, false
}

// SampleName derives the sample name from a forward read filename: the
// basename with its FASTQ extension and everything from the forward-read
// tag onward removed.
func SampleName(path string) string {
	stem, _, ok := splitFASTQName(path)
	if !ok {
		return filepath.Base(path)
	}
	if _, i, ok := forwardTagIndex(stem); ok {
		return stem[:i]
	}
	return stem
}

// FindSamples scans dir for paired FASTQ files and returns one Sample per
// forward/reverse pair, sorted by name. A forward file without a matching
// reverse mate, or two pairs mapping to the same name, is a configuration
// error.
func FindSamples(ctx context.Context, dir string) ([]Sample, error) {
	lister := file.List(ctx, dir, false)
	var paths []string
	for lister.Scan() {
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", dir)
	}
	have := make(map[string]bool, len(paths))
	for _, p := range paths {
		have[p] = true
	}
	var samples []Sample
	for _, p := range paths {
		stem, ext, ok := splitFASTQName(p)
		if !ok {
			continue
		}
		tags, i, ok := forwardTagIndex(stem)
		if !ok {
			continue
		}
		prefix := p[:len(p)-len(filepath.Base(p))]
		mate := prefix + stem[:i] + tags[1] + stem[i+len(tags[0]):] + ext
		if !have[mate] {
			return nil, errors.E("no reverse mate found for", p)
		}
		samples = append(samples, Sample{Name: SampleName(p), RawF: p, RawR: mate})
	}
	if len(samples) == 0 {
		return nil, errors.E("no paired FASTQ files found in", dir)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	for i := 1; i < len(samples); i++ {
		if samples[i].Name == samples[i-1].Name {
			return nil, errors.E("duplicate sample name:", samples[i].Name)
		}
	}
	return samples, nil
}
