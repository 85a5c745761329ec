// Copyright 2018, the QC-pipeline contributors.

// qcpipe_bcl2fastq converts the base calls of an Illumina sequencing
// run into fastq files by driving the CASAVA configureBclToFastq.pl
// tool and the Makefile it generates.
//
// Usage:
//
//	qcpipe_bcl2fastq [options] <run_dir> <output_dir> [<sample_sheet>]
//
// Leading flag-style options are passed through verbatim to
// configureBclToFastq.pl.
package main

import (
	"fmt"
	"os"

	"github.com/htnani/genomics/bcl2fastq"
	"github.com/htnani/genomics/utils"
)

const description = `Convert the base calls of an Illumina sequencing run into fastq files.

The run directory must contain the Data/Intensities/BaseCalls
substructure written by the sequencer.  If no sample sheet is given,
SampleSheet.csv in the base calls directory is used when present.
Any leading options are passed through to configureBclToFastq.pl,
which must be available on the search path.  After configuration the
generated Makefile is run with make.`

// Processes for the Makefile stage.
const nProcesses = 4

func usage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [options] <run_dir> <output_dir> [<sample_sheet>]\n", os.Args[0])
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

	p := &bcl2fastq.Pipeline{
		RunDir:       args[0],
		OutputDir:    args[1],
		NumProcesses: nProcesses,
		Passthrough:  flags,
	}
	if len(args) == 3 {
		p.SampleSheet = args[2]
	}

	if _, err := p.Run(); err != nil {
		fmt.Printf("ERROR %v\n", err)
		os.Exit(1)
	}
}
