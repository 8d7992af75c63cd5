package fastq

import (
	"bufio"
	"io"
)

// Writer is a buffered FASTQ file writer. Callers must call Flush after the
// last Write.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter constructs a new FASTQ writer that writes reads to the
// underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes the read r in FASTQ format. An error is returned if the
// write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

// Flush writes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = w.w.WriteString(line); w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}
