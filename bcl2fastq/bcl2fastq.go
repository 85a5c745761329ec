// Copyright 2018, the QC-pipeline contributors.

// Package bcl2fastq wraps the CASAVA configureBclToFastq.pl tool,
// which converts raw sequencer base calls into fastq files.  The
// conversion itself is entirely the external tool's business: this
// package validates the run directory layout, builds the invocation,
// runs the configuration step, then runs the generated Makefile.
package bcl2fastq

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/pkg/errors"

	"github.com/htnani/genomics/utils"
)

// Converter is the name of the CASAVA configuration script, resolved
// on the process search path.
const Converter = "configureBclToFastq.pl"

// The number of mismatches allowed when demultiplexing.  CASAVA's own
// default; not configurable here.
const nMismatches = 0

// Pipeline holds the validated inputs for one conversion.
type Pipeline struct {

	// Top-level run directory, containing Data/Intensities/BaseCalls.
	RunDir string

	// Directory where the converted fastq files are written.  It
	// does not need to exist; if it does, the conversion is forced.
	OutputDir string

	// Sample sheet path.  If blank, SampleSheet.csv in the base
	// calls directory is used when present.
	SampleSheet string

	// Number of processes for the Makefile stage (make -j).
	NumProcesses int

	// Flag-style arguments passed through verbatim to the
	// converter, after the computed arguments.
	Passthrough []string

	// Runner launches the external tools.  Defaults to
	// utils.ExecRunner.
	Runner utils.Runner

	// Destination for diagnostic lines.  Defaults to stdout.
	Out io.Writer
}

// Status reports the exit statuses of the two external stages.
type Status struct {
	Configure int
	Make      int
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// BaseCalls returns the conventional base calls directory under the
// run directory.
func (p *Pipeline) BaseCalls() string {
	return path.Join(p.RunDir, "Data", "Intensities", "BaseCalls")
}

// Run validates the preconditions, invokes the converter, checks
// that the Makefile was generated, and runs it.  Precondition
// failures are returned as errors; external tool failures are
// reported through the returned statuses.
func (p *Pipeline) Run() (Status, error) {

	var status Status

	runner := p.Runner
	if runner == nil {
		runner = utils.ExecRunner{}
	}

	if _, err := os.Stat(p.RunDir); err != nil {
		return status, errors.Errorf("no directory %s", p.RunDir)
	}
	basecalls := p.BaseCalls()
	if _, err := os.Stat(basecalls); err != nil {
		return status, errors.Errorf("no BaseCalls directory %s", basecalls)
	}

	sampleSheet := p.SampleSheet
	if sampleSheet == "" {
		sampleSheet = path.Join(basecalls, "SampleSheet.csv")
		if _, err := os.Stat(sampleSheet); err != nil {
			p.printf("WARNING no sample sheet at %s, continuing without one", sampleSheet)
			sampleSheet = ""
		}
	} else if _, err := os.Stat(sampleSheet); err != nil {
		return status, errors.Errorf("no sample sheet %s", sampleSheet)
	}

	force := false
	if _, err := os.Stat(p.OutputDir); err == nil {
		p.printf("WARNING output directory %s already exists, conversion will be forced", p.OutputDir)
		force = true
	}

	converter, err := runner.LookPath(Converter)
	if err != nil {
		return status, errors.Errorf("%s not found on the search path", Converter)
	}

	args := []string{
		"--mismatches", strconv.Itoa(nMismatches),
		"--input-dir", basecalls,
		"--output-dir", p.OutputDir,
	}
	if sampleSheet != "" {
		args = append(args, "--sample-sheet", sampleSheet)
	}
	if force {
		args = append(args, "--force")
	}
	args = append(args, p.Passthrough...)

	p.printf("Running %s with arguments: %v", converter, args)
	status.Configure, err = runner.Run("", converter, args...)
	if err != nil {
		return status, err
	}
	p.printf("%s finished: exit status %d", Converter, status.Configure)

	makefile := path.Join(p.OutputDir, "Makefile")
	if _, err := os.Stat(makefile); err != nil {
		return status, errors.Errorf("no Makefile %s after configuration", makefile)
	}

	nproc := p.NumProcesses
	if nproc < 1 {
		nproc = 1
	}
	p.printf("Running make -j %d in %s", nproc, p.OutputDir)
	status.Make, err = runner.Run(p.OutputDir, "make", "-j", strconv.Itoa(nproc))
	if err != nil {
		return status, err
	}
	p.printf("make finished: exit status %d", status.Make)
	p.printf("bcl to fastq conversion finished")

	return status, nil
}
