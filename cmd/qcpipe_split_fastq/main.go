// Copyright 2018, the QC-pipeline contributors.

// qcpipe_split_fastq separates a multi-lane fastq file into one
// gzipped file per lane by driving the external split_fastq helper.
//
// Usage:
//
//	qcpipe_split_fastq [options] <fastq> <lanes> [<output_dir>]
//
// Lanes are given as a comma-separated list, e.g. 1,2,5.  Leading
// flag-style options are passed through verbatim to split_fastq.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/htnani/genomics/split"
	"github.com/htnani/genomics/utils"
)

const description = `Split a multi-lane fastq file into per-lane gzipped files.

The input file must follow CASAVA naming so that per-lane output
names can be derived from it.  Each requested lane is extracted by
split_fastq, which must be on the search path, and compressed with
gzip.  Any leading options are passed through to split_fastq.`

func usage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [options] <fastq> <lanes> [<output_dir>]\n", os.Args[0])
}

func parseLanes(s string) ([]int, error) {
	var lanes []int
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("bad lane %q", tok)
		}
		lanes = append(lanes, n)
	}
	return lanes, nil
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

	lanes, err := parseLanes(args[1])
	if err != nil {
		fmt.Printf("ERROR %v\n", err)
		os.Exit(1)
	}

	s := &split.Splitter{
		Fastq:       args[0],
		Lanes:       lanes,
		Passthrough: flags,
	}
	if len(args) == 3 {
		s.OutputDir = args[2]
	}

	if err := s.Run(); err != nil {
		fmt.Printf("ERROR %v\n", err)
		os.Exit(1)
	}
}
