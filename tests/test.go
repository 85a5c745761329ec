// Copyright 2018, the QC-pipeline contributors.

// test is a script that runs a series of end-to-end tests on the
// wrapper commands, using stub external tools placed on the search
// path.  The commands under test must be installed (go install ./...)
// before running.
//
// To run the tests, use:
//
// go run test.go
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/snappy"
)

var (
	logger *log.Logger

	// sandbox is the working directory for one harness run.
	sandbox string
)

type Test struct {
	Name    string
	Command string
	Args    []string

	// Expected exit status of the command.
	Status int

	// Substrings that must appear in the combined output.
	Expect []string

	// Pairs of files that must have identical contents.
	Files [][2]string
}

func getTests() []Test {

	fid, err := os.Open("tests.toml")
	if err != nil {
		panic(err)
	}
	s, err := io.ReadAll(fid)
	if err != nil {
		panic(err)
	}
	fid.Close()

	type vd struct {
		Test []Test
	}

	var v vd
	if _, err := toml.Decode(string(s), &v); err != nil {
		panic(err)
	}

	logger.Printf("Found %d tests\n", len(v.Test))

	return v.Test
}

// getScanner returns a scanner for reading the contents of a file.
// Snappy compression is handled automatically.  An array of values
// that should be closed when the scanner is no longer needed is also
// returned.
func getScanner(f string) (*bufio.Scanner, []io.Closer) {

	var toclose []io.Closer
	var g io.Reader

	h, err := os.Open(f)
	if err != nil {
		panic(err)
	}
	toclose = append(toclose, h)
	g = h

	if strings.HasSuffix(f, ".sz") {
		g = snappy.NewReader(g)
	}

	s := bufio.NewScanner(g)
	return s, toclose
}

// compare returns true if and only if the contents of the files
// named by the arguments f1 and f2 are identical.  Snappy
// compression is handled automatically.
func compare(f1, f2 string) bool {

	s1, tc1 := getScanner(f1)
	s2, tc2 := getScanner(f2)

	defer func() {
		for _, c := range append(tc1, tc2...) {
			c.Close()
		}
	}()

	for {
		q1 := s1.Scan()
		q2 := s2.Scan()

		if q1 != q2 {
			logger.Printf("files %s and %s have different numbers of lines\n", f1, f2)
			return false
		}
		if !q1 {
			break
		}

		if s1.Text() != s2.Text() {
			logger.Printf("%s differs from %s\n", f1, f2)
			return false
		}
	}

	return s1.Err() == nil && s2.Err() == nil
}

// makeRun builds a mock Illumina run directory with the conventional
// base calls substructure and a sample sheet.
func makeRun() string {

	run := path.Join(sandbox, "160621_M00123_0001_AB2CDE")
	basecalls := path.Join(run, "Data", "Intensities", "BaseCalls")
	if err := os.MkdirAll(basecalls, 0755); err != nil {
		panic(err)
	}
	sheet := "FCID,Lane,SampleID,SampleRef,Index,Description,Control,Recipe,Operator,SampleProject\n" +
		"AB2CDE,1,PJB1,hg38,ATCACG,qc,N,,PB,PJB\n"
	if err := os.WriteFile(path.Join(basecalls, "SampleSheet.csv"), []byte(sheet), 0644); err != nil {
		panic(err)
	}

	return run
}

// makeStubs writes stub external tools into a directory that is
// prepended to PATH.  The stub converter creates the output
// directory and a trivial Makefile, standing in for CASAVA.
func makeStubs() string {

	bin := path.Join(sandbox, "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		panic(err)
	}

	converter := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output-dir" ]; then out="$2"; shift; fi
  shift
done
mkdir -p "$out"
printf 'all:\n\ttrue\n' > "$out/Makefile"
`
	if err := os.WriteFile(path.Join(bin, "configureBclToFastq.pl"), []byte(converter), 0755); err != nil {
		panic(err)
	}

	macs2 := `#!/bin/sh
out=""
name=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--outdir" ]; then out="$a"; fi
  if [ "$prev" = "-n" ]; then name="$a"; fi
  prev="$a"
done
mkdir -p "$out"
printf 'peaks\n' > "$out/${name}_peaks.xls"
`
	if err := os.WriteFile(path.Join(bin, "macs2"), []byte(macs2), 0755); err != nil {
		panic(err)
	}

	// The wrapper runs the tool in the output directory, so the
	// stub writes to its working directory.
	strand := `#!/bin/sh
b=""
for a in "$@"; do
  case "$a" in
    -*) ;;
    *) if [ -z "$b" ]; then b="$a"; fi ;;
  esac
done
b=$(basename "$b")
b=${b%.gz}
b=${b%.fastq}
printf '1st\t2nd\n' > "${b}_fastq_strand.txt"
`
	if err := os.WriteFile(path.Join(bin, "fastq_strand"), []byte(strand), 0755); err != nil {
		panic(err)
	}

	return bin
}

// makeQCData builds a mock analysis directory holding one fastq file
// with a complete set of QC products, plus a BAM file for peak
// calling.
func makeQCData() {

	if err := os.WriteFile(path.Join(sandbox, "chip.bam"), []byte("BAM\n"), 0644); err != nil {
		panic(err)
	}

	adir := path.Join(sandbox, "160621_M00123_0001_AB2CDE_analysis", "PJB")
	qcdir := path.Join(adir, "qc")
	if err := os.MkdirAll(qcdir, 0755); err != nil {
		panic(err)
	}

	fq := "PJB1_ATCACG_L001_R1_001.fastq"
	if err := os.WriteFile(path.Join(adir, fq), []byte("@r1\nACGT\n+\n!!!!\n"), 0644); err != nil {
		panic(err)
	}

	base := strings.TrimSuffix(fq, ".fastq")
	if err := os.MkdirAll(path.Join(qcdir, base+"_fastqc"), 0755); err != nil {
		panic(err)
	}
	products := []string{base + "_fastqc.zip"}
	for _, s := range []string{"model_organisms_screen", "other_organisms_screen", "rRNA_screen"} {
		products = append(products, base+"_"+s+".txt", base+"_"+s+".png")
	}
	for _, p := range products {
		if err := os.WriteFile(path.Join(qcdir, p), []byte("x\n"), 0644); err != nil {
			panic(err)
		}
	}
}

func runTest(tst Test) bool {

	args := make([]string, len(tst.Args))
	for i, a := range tst.Args {
		a = strings.Replace(a, "{sandbox}", sandbox, -1)
		args[i] = a
	}

	logger.Printf("Running command: '%s %s'\n", tst.Command, strings.Join(args, " "))
	cmd := exec.Command(tst.Command, args...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()

	status := 0
	if err != nil {
		xe, ok := err.(*exec.ExitError)
		if !ok {
			logger.Printf("%s failed: %v\n", tst.Name, err)
			return false
		}
		status = xe.ExitCode()
	}
	if status != tst.Status {
		logger.Printf("%s: exit status %d, want %d\n", tst.Name, status, tst.Status)
		return false
	}

	for _, e := range tst.Expect {
		if !strings.Contains(string(out), e) {
			logger.Printf("%s: output does not contain %q\n", tst.Name, e)
			return false
		}
	}

	for _, f := range tst.Files {
		p1 := strings.Replace(f[0], "{sandbox}", sandbox, -1)
		if !compare(p1, f[1]) {
			logger.Printf("%s: file %s does not match %s\n", tst.Name, p1, f[1])
			return false
		}
	}

	return true
}

func main() {

	logger = log.New(os.Stdout, "", log.Ltime)

	var err error
	sandbox, err = os.MkdirTemp("", "qcpipe-tests-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(sandbox)

	makeRun()
	makeQCData()
	bin := makeStubs()
	os.Setenv("PATH", bin+":"+os.Getenv("PATH"))

	nfail := 0
	for _, tst := range getTests() {
		if runTest(tst) {
			logger.Printf("%s ok\n", tst.Name)
		} else {
			nfail++
		}
	}

	if nfail > 0 {
		fmt.Printf("%d tests failed\n", nfail)
		os.Exit(1)
	}
	fmt.Printf("All tests passed\n")
}
