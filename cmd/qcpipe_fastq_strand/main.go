// Copyright 2018, the QC-pipeline contributors.

// qcpipe_fastq_strand estimates the strandedness of a sequencing run
// by driving the external fastq_strand utility.  Gzipped inputs are
// decompressed on the fly through FIFOs, so fastq_strand always sees
// plain fastq.
//
// Usage:
//
//	qcpipe_fastq_strand [options] <fastq_r1> [<fastq_r2>] <output_dir>
//
// Leading flag-style options are passed through verbatim to
// fastq_strand.
package main

import (
	"fmt"
	"os"

	"github.com/htnani/genomics/strand"
	"github.com/htnani/genomics/utils"
)

const description = `Determine the strandedness of fastq files using fastq_strand.

One fastq (single end) or two (paired end) can be supplied, plain or
gzipped.  The output file <fastq_base>_fastq_strand.txt is written to
the output directory.  Any leading options are passed through to
fastq_strand, which must be on the search path.`

func usage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [options] <fastq_r1> [<fastq_r2>] <output_dir>\n", os.Args[0])
}

func main() {

	flags, args, help := utils.SplitArgs(os.Args[1:])
	if help {
		usage(os.Stdout)
		fmt.Println()
		fmt.Println(description)
		os.Exit(0)
	}
	if len(args) < 2 || len(args) > 3 {
		usage(os.Stderr)
		os.Exit(1)
	}

	c := &strand.Checker{
		Fastqs:      args[:len(args)-1],
		OutputDir:   args[len(args)-1],
		Passthrough: flags,
	}

	status, err := c.Run()
	if err != nil {
		fmt.Printf("ERROR %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("fastq_strand exit status %d\n", status)
}
