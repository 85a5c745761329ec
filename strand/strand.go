// Copyright 2018, the QC-pipeline contributors.

// Package strand wraps the fastq_strand utility, which estimates the
// strandedness of a sequencing run.  Gzipped inputs are decompressed
// on the fly through named FIFOs fed by gzip subprocesses, so the
// wrapped tool always sees plain fastq.
//
// Since FIFOs are used, this only runs on Unix-like systems, and may
// not work on filesystems without FIFO support.
package strand

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/htnani/genomics/utils"
)

// Tool is the strandedness checker executable, resolved on the
// search path.
const Tool = "fastq_strand"

// Checker holds the inputs for one strandedness check.
type Checker struct {

	// One (single end) or two (paired end) fastq files, possibly
	// gzipped.
	Fastqs []string

	// Directory where the output file is written.  Defaults to
	// the current directory.
	OutputDir string

	// Flag-style arguments passed through verbatim.
	Passthrough []string

	Runner utils.Runner
	Out    io.Writer

	// pipedir holds the FIFOs for the duration of one run.
	pipedir string
}

func (c *Checker) printf(format string, args ...interface{}) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// pipefromgz creates a FIFO and starts a goroutine decompressing the
// given gzipped file into it.  The goroutine blocks until the wrapped
// tool opens the FIFO for reading, then sends its result (nil on
// success) on errch.
func (c *Checker) pipefromgz(fname string, k int, errch chan<- error) (string, error) {

	name := path.Join(c.pipedir, fmt.Sprintf("pipe%d", k))
	if err := unix.Mkfifo(name, 0755); err != nil {
		return "", errors.Wrap(err, "creating pipe")
	}

	go func() {
		fifo, err := os.OpenFile(name, os.O_WRONLY, 0)
		if err != nil {
			errch <- errors.Wrapf(err, "opening pipe for %s", fname)
			return
		}
		defer fifo.Close()
		cmd := exec.Command("gzip", "-cd", fname)
		cmd.Env = os.Environ()
		cmd.Stdout = fifo
		cmd.Stderr = os.Stderr
		errch <- errors.Wrapf(cmd.Run(), "decompressing %s", fname)
	}()

	return name, nil
}

// drainPipes collects the result of each started decompressor,
// waiting briefly for stragglers.  The pipe directory is removed only
// once every decompressor has reported; a decompressor that never
// unblocks means the tool never opened its FIFO, and removing the
// directory would not release it, so it is left in place with a
// warning.  The first decompressor error is returned.
func (c *Checker) drainPipes(nwriters int, errch <-chan error) error {

	var first error
	for ; nwriters > 0; nwriters-- {
		select {
		case err := <-errch:
			if err != nil && first == nil {
				first = err
			}
		case <-time.After(time.Second):
			c.printf("WARNING pipe directory %s left in place, a decompressor is still blocked", c.pipedir)
			return first
		}
	}

	if err := os.RemoveAll(c.pipedir); err != nil && first == nil {
		first = err
	}

	return first
}

// outputName returns the conventional output file name for the first
// fastq input.
func (c *Checker) outputName() string {
	b := path.Base(c.Fastqs[0])
	b = strings.TrimSuffix(b, ".gz")
	b = strings.TrimSuffix(b, ".fastq")
	dir := c.OutputDir
	if dir == "" {
		dir = "."
	}
	return path.Join(dir, b+"_fastq_strand.txt")
}

// Run validates the inputs, invokes fastq_strand with plain or
// FIFO-decompressed inputs, and checks that the output file was
// produced.  The returned int is the exit status of the external
// tool.
func (c *Checker) Run() (int, error) {

	runner := c.Runner
	if runner == nil {
		runner = utils.ExecRunner{}
	}

	if len(c.Fastqs) < 1 || len(c.Fastqs) > 2 {
		return 0, errors.Errorf("expected one or two fastq files, got %d", len(c.Fastqs))
	}
	for _, f := range c.Fastqs {
		if _, err := os.Stat(f); err != nil {
			return 0, errors.Errorf("no fastq file %s", f)
		}
	}

	tool, err := runner.LookPath(Tool)
	if err != nil {
		return 0, errors.Errorf("%s not found on the search path", Tool)
	}

	c.pipedir, err = os.MkdirTemp("/tmp", "qcpipe-pipes-")
	if err != nil {
		return 0, errors.Wrap(err, "creating pipe directory")
	}

	errch := make(chan error, 2)
	nwriters := 0
	drained := false
	defer func() {
		if !drained {
			if err := c.drainPipes(nwriters, errch); err != nil {
				c.printf("WARNING %v", err)
			}
		}
	}()

	var args []string
	for k, f := range c.Fastqs {
		if strings.HasSuffix(f, ".gz") {
			name, err := c.pipefromgz(f, k, errch)
			if err != nil {
				return 0, err
			}
			nwriters++
			args = append(args, name)
		} else {
			// The tool runs in the output directory, so plain
			// inputs must be absolute.  FIFO paths already are.
			abs, err := filepath.Abs(f)
			if err != nil {
				return 0, errors.Wrap(err, "resolving fastq path")
			}
			args = append(args, abs)
		}
	}
	args = append(args, c.Passthrough...)

	dir := c.OutputDir
	if dir == "" {
		dir = "."
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Wrap(err, "creating output directory")
	}

	c.printf("Running %s with arguments: %v", tool, args)
	status, err := runner.Run(dir, tool, args...)

	perr := c.drainPipes(nwriters, errch)
	drained = true

	if err != nil {
		return status, err
	}
	if perr != nil {
		return status, perr
	}
	c.printf("%s finished: exit status %d", Tool, status)

	outname := c.outputName()
	if _, err := os.Stat(outname); err != nil {
		return status, errors.Errorf("no output file %s after strand check", outname)
	}

	return status, nil
}
