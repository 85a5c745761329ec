// Copyright 2018, the QC-pipeline contributors.

// qcpipe_report generates a QC report for each directory containing
// the outputs of a QC run, or just verifies that the expected QC
// outputs are present.
//
// Usage:
//
//	qcpipe_report [-verify] [-qc_dir NAME] DIR [DIR ...]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/htnani/genomics/report"
)

var (
	verify = flag.Bool("verify", false, "don't generate a report, just verify the QC outputs")
	qcDir  = flag.String("qc_dir", "qc", "name of the QC results subdirectory")
)

func main() {

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] DIR [DIR ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ok := true
	for _, dir := range flag.Args() {
		r := &report.Reporter{Dir: dir, QCSubDir: *qcDir}
		if *verify {
			v, err := r.Verify()
			if err != nil {
				fmt.Printf("ERROR %v\n", err)
				os.Exit(1)
			}
			if v {
				fmt.Printf("%s: OK\n", dir)
			} else {
				fmt.Printf("%s: FAILED\n", dir)
				ok = false
			}
			continue
		}
		if _, err := r.Report(); err != nil {
			fmt.Printf("ERROR %v\n", err)
			os.Exit(1)
		}
	}

	if !ok {
		os.Exit(1)
	}
}
