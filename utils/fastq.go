// Copyright 2018, the QC-pipeline contributors.

package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Fastq holds the components of a CASAVA-style fastq file name, e.g.
// NA10831_ATCACG_L002_R1_001.fastq.gz.  The sample name may itself
// contain underscores, so the name is parsed from the right.
type Fastq struct {

	// The sample name, as given in the sample sheet.
	SampleName string

	// The index (barcode) sequence, or "NoIndex".
	Barcode string

	// The lane number, 1-8.
	Lane int

	// The read number, 1 for single end, 1 or 2 for paired end.
	Read int

	// The set number within the lane.
	Set int

	// True if the file name carried a .gz extension.
	Compressed bool
}

// ParseFastq extracts the naming components from a fastq file name.
// Any leading directory components are ignored.
func ParseFastq(name string) (*Fastq, error) {

	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	fq := new(Fastq)
	if strings.HasSuffix(base, ".gz") {
		fq.Compressed = true
		base = strings.TrimSuffix(base, ".gz")
	}
	if !strings.HasSuffix(base, ".fastq") {
		return nil, errors.Errorf("%s is not a fastq file name", name)
	}
	base = strings.TrimSuffix(base, ".fastq")

	toks := strings.Split(base, "_")
	if len(toks) < 5 {
		return nil, errors.Errorf("%s does not follow CASAVA naming", name)
	}

	var err error
	n := len(toks)
	fq.Set, err = strconv.Atoi(toks[n-1])
	if err != nil {
		return nil, errors.Errorf("%s has a malformed set number", name)
	}
	if !strings.HasPrefix(toks[n-2], "R") {
		return nil, errors.Errorf("%s has a malformed read number", name)
	}
	fq.Read, err = strconv.Atoi(toks[n-2][1:])
	if err != nil {
		return nil, errors.Errorf("%s has a malformed read number", name)
	}
	if !strings.HasPrefix(toks[n-3], "L") {
		return nil, errors.Errorf("%s has a malformed lane number", name)
	}
	fq.Lane, err = strconv.Atoi(toks[n-3][1:])
	if err != nil {
		return nil, errors.Errorf("%s has a malformed lane number", name)
	}
	fq.Barcode = toks[n-4]
	fq.SampleName = strings.Join(toks[:n-4], "_")
	if fq.SampleName == "" {
		return nil, errors.Errorf("%s has an empty sample name", name)
	}

	return fq, nil
}

// Name reconstructs the CASAVA file name for the fastq.
func (fq *Fastq) Name() string {
	s := fmt.Sprintf("%s_%s_L%03d_R%d_%03d.fastq", fq.SampleName, fq.Barcode, fq.Lane, fq.Read, fq.Set)
	if fq.Compressed {
		s += ".gz"
	}
	return s
}
