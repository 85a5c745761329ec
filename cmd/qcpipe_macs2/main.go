// Copyright 2018, the QC-pipeline contributors.

// qcpipe_macs2 calls peaks on a ChIP-seq alignment by driving the
// MACS2 callpeak subcommand.
//
// Usage:
//
//	qcpipe_macs2 [options] <chip.bam> <output_dir> [<control.bam>]
//
// Leading flag-style options are passed through verbatim to macs2
// callpeak, after the computed arguments.  The genome size code is
// taken from the QCPIPE_GENOME environment variable ("hs" when
// unset).
package main

import (
	"fmt"
	"os"

	"github.com/htnani/genomics/macs2"
	"github.com/htnani/genomics/utils"
)

const description = `Call peaks on a ChIP-seq BAM file using MACS2.

The treatment BAM file is required; a control BAM can be supplied as
a third positional argument.  The file format (-f BAM) is fixed.  The
genome size code defaults to "hs" and can be overridden with the
QCPIPE_GENOME environment variable.  Any leading options are passed
through to macs2 callpeak, which must be on the search path.`

func usage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [options] <chip.bam> <output_dir> [<control.bam>]\n", os.Args[0])
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

	c := &macs2.Caller{
		Treatment:   args[0],
		OutputDir:   args[1],
		Genome:      os.Getenv("QCPIPE_GENOME"),
		Passthrough: flags,
	}
	if len(args) == 3 {
		c.Control = args[2]
	}

	status, err := c.Run()
	if err != nil {
		fmt.Printf("ERROR %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("macs2 exit status %d\n", status)
}
