// Copyright 2018, the QC-pipeline contributors.

// Package split wraps the split_fastq helper, which separates a
// multi-lane fastq file into one file per lane.  Each lane is
// extracted by the external splitter and piped into gzip inside a
// small scipipe workflow.
package split

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/scipipe/scipipe"

	"github.com/htnani/genomics/utils"
)

// Tool is the splitter executable, resolved on the search path.
const Tool = "split_fastq"

// Splitter holds the inputs for one split operation.
type Splitter struct {

	// The multi-lane fastq file to split.  Must follow CASAVA
	// naming so that per-lane output names can be derived.
	Fastq string

	// The lanes to extract.
	Lanes []int

	// Directory where the per-lane files are written.  Defaults
	// to the current directory.
	OutputDir string

	// Flag-style arguments inserted verbatim into the splitter
	// command line.
	Passthrough []string

	Runner utils.Runner
	Out    io.Writer
}

func (s *Splitter) printf(format string, args ...interface{}) {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// laneOutput derives the output file name for one lane from the
// input file name, with the lane field replaced.
func (s *Splitter) laneOutput(lane int) (string, error) {
	fq, err := utils.ParseFastq(s.Fastq)
	if err != nil {
		return "", err
	}
	fq.Lane = lane
	fq.Compressed = false
	dir := s.OutputDir
	if dir == "" {
		dir = "."
	}
	return path.Join(dir, fq.Name()), nil
}

// commands returns the splitter and compressor command templates for
// one lane, in scipipe form.  The templates are joined into a shell
// line, so the paths involved must not contain whitespace; Run
// rejects such paths up front.
func (s *Splitter) commands(lane int) (string, string) {
	parts := []string{Tool}
	parts = append(parts, s.Passthrough...)
	parts = append(parts, "-l", fmt.Sprintf("%d", lane), s.Fastq, "> {o:split}")
	gz := "gzip -c {i:ins} > {o:gz}"
	return strings.Join(parts, " "), gz
}

// Run validates the inputs and extracts each requested lane through
// a splitter-then-gzip workflow.
func (s *Splitter) Run() error {

	runner := s.Runner
	if runner == nil {
		runner = utils.ExecRunner{}
	}

	if _, err := os.Stat(s.Fastq); err != nil {
		return errors.Errorf("no fastq file %s", s.Fastq)
	}
	if len(s.Lanes) == 0 {
		return errors.New("no lanes requested")
	}
	if strings.ContainsAny(s.Fastq, " \t") || strings.ContainsAny(s.OutputDir, " \t") {
		return errors.New("fastq and output paths must not contain whitespace")
	}
	if _, err := runner.LookPath(Tool); err != nil {
		return errors.Errorf("%s not found on the search path", Tool)
	}
	if s.OutputDir != "" {
		if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}

	for _, lane := range s.Lanes {

		outname, err := s.laneOutput(lane)
		if err != nil {
			return err
		}

		s.printf("Extracting lane %d to %s.gz", lane, outname)
		wf := scipipe.NewWorkflow("split", 4)

		sc, gzc := s.commands(lane)

		sp := wf.NewProc("sp", sc)
		sp.SetOut("split", outname)

		gz := wf.NewProc("gz", gzc)
		gz.SetOut("gz", outname+".gz")

		gz.In("ins").From(sp.Out("split"))

		wf.Run()

		// The uncompressed intermediate and its audit trail are no
		// longer needed.
		for _, f := range []string{outname, outname + ".audit.json"} {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "removing intermediate file")
			}
		}
	}

	s.printf("fastq splitting finished")

	return nil
}
