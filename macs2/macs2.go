// Copyright 2018, the QC-pipeline contributors.

// Package macs2 wraps the MACS2 peak caller.  Only the callpeak
// subcommand is driven here; all peak calling logic belongs to the
// external tool.
package macs2

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/htnani/genomics/utils"
)

// Tool is the peak caller executable, resolved on the search path.
const Tool = "macs2"

// Caller holds the inputs for one callpeak invocation.
type Caller struct {

	// Treatment (ChIP) BAM file.  Required.
	Treatment string

	// Control (input) BAM file.  Optional.
	Control string

	// Directory where MACS2 writes its outputs.
	OutputDir string

	// Experiment name (-n).  Defaults to the treatment file base
	// name without its extension.
	Name string

	// Genome size code (-g), e.g. "hs" or "mm".  Defaults to "hs".
	Genome string

	// Flag-style arguments passed through verbatim.
	Passthrough []string

	Runner utils.Runner
	Out    io.Writer
}

func (c *Caller) printf(format string, args ...interface{}) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// name returns the experiment name, deriving it from the treatment
// file when unset.
func (c *Caller) name() string {
	if c.Name != "" {
		return c.Name
	}
	b := path.Base(c.Treatment)
	return strings.TrimSuffix(b, path.Ext(b))
}

// Run validates the inputs, invokes macs2 callpeak, and checks that
// the peaks file was produced.  The returned int is the exit status
// of the external tool.
func (c *Caller) Run() (int, error) {

	runner := c.Runner
	if runner == nil {
		runner = utils.ExecRunner{}
	}

	if _, err := os.Stat(c.Treatment); err != nil {
		return 0, errors.Errorf("no treatment file %s", c.Treatment)
	}
	if c.Control != "" {
		if _, err := os.Stat(c.Control); err != nil {
			return 0, errors.Errorf("no control file %s", c.Control)
		}
	}
	if _, err := os.Stat(c.OutputDir); err == nil {
		c.printf("WARNING output directory %s already exists", c.OutputDir)
	} else if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return 0, errors.Wrap(err, "creating output directory")
	}

	tool, err := runner.LookPath(Tool)
	if err != nil {
		return 0, errors.Errorf("%s not found on the search path", Tool)
	}

	genome := c.Genome
	if genome == "" {
		genome = "hs"
	}
	name := c.name()

	args := []string{
		"callpeak",
		"-t", c.Treatment,
	}
	if c.Control != "" {
		args = append(args, "-c", c.Control)
	}
	args = append(args,
		"-f", "BAM",
		"-g", genome,
		"-n", name,
		"--outdir", c.OutputDir,
	)
	args = append(args, c.Passthrough...)

	c.printf("Running %s with arguments: %v", tool, args)
	status, err := runner.Run("", tool, args...)
	if err != nil {
		return status, err
	}
	c.printf("%s finished: exit status %d", Tool, status)

	peaks := path.Join(c.OutputDir, name+"_peaks.xls")
	if _, err := os.Stat(peaks); err != nil {
		return status, errors.Errorf("no peaks file %s after peak calling", peaks)
	}

	return status, nil
}
