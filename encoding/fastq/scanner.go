// Package fastq reads, filters and writes FASTQ read data, including the
// paired-end form in which the forward and reverse files must stay in
// lockstep.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"math"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// qualOffset is the Phred+33 quality encoding offset.
const qualOffset = 33

// A Read is a FASTQ read, comprising an ID, sequence, line 3 ("unknown"),
// and a quality string. Qualities are Phred+33 encoded.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Quality returns the Phred quality score of the i'th base.
func (r *Read) Quality(i int) int {
	return int(r.Qual[i]) - qualOffset
}

// Truncate cuts the read and quality lengths to at most n.
func (r *Read) Truncate(n int) {
	if n >= len(r.Seq) {
		return
	}
	r.Seq = r.Seq[:n]
	r.Qual = r.Qual[:n]
}

// TrimLeft removes the first n bases and their qualities.
func (r *Read) TrimLeft(n int) {
	r.Seq = r.Seq[n:]
	r.Qual = r.Qual[n:]
}

// TruncateAtQuality truncates the read before the first base whose Phred
// quality score is q or lower.
func (r *Read) TruncateAtQuality(q int) {
	for i := 0; i < len(r.Qual); i++ {
		if r.Quality(i) <= q {
			r.Truncate(i)
			return
		}
	}
}

// ExpectedErrors returns the expected number of erroneous base calls in the
// read, the sum of 10^(-Q/10) over its quality scores.
func (r *Read) ExpectedErrors() float64 {
	var ee float64
	for i := 0; i < len(r.Qual); i++ {
		ee += math.Pow(10, -float64(r.Quality(i))/10)
	}
	return ee
}

// HasAmbiguous reports whether the sequence contains a base other than
// A, C, G or T.
func (r *Read) HasAmbiguous() bool {
	for i := 0; i < len(r.Seq); i++ {
		switch r.Seq[i] {
		case 'A', 'C', 'G', 'T':
		default:
			return true
		}
	}
	return false
}

var errEOF = errors.New("eof")

// Scanner provides a convenient interface for reading FASTQ read data. The
// Scan method returns the next read, returning a boolean indicating whether
// the read succeeded. Scanners are not threadsafe.
//
// Scanner performs some validation: it requires ID lines to begin with "@",
// line 3 to begin with "+", and the sequence and quality lines to have equal
// length.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it never
// returns true again. Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Text()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = id
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Text()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	read.Unk = unk
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	if len(read.Qual) != len(read.Seq) {
		f.err = ErrInvalid
		return false
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ streams.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided R1 and
// R2 readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1),
		r2: NewScanner(r2),
	}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it never
// returns true again. Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked after Scan
// returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
