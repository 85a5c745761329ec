// Copyright 2018, the QC-pipeline contributors.

package strand

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	missing bool
	calls   [][]string
	onRun   func(dir string, args []string)
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing {
		return "", errors.Errorf("%s not found", name)
	}
	return "/usr/bin/" + name, nil
}

func (r *fakeRunner) Run(dir string, name string, args ...string) (int, error) {
	if r.onRun != nil {
		r.onRun(dir, args)
	}
	r.calls = append(r.calls, append([]string{name}, args...))
	return 0, nil
}

const fastqText = "@r1\nACGT\n+\n!!!!\n"

func makeFastq(t *testing.T, dir, name string) string {
	t.Helper()
	fname := path.Join(dir, name)
	require.NoError(t, os.WriteFile(fname, []byte(fastqText), 0644))
	return fname
}

// makeFastqGz writes a valid gzipped fastq file.
func makeFastqGz(t *testing.T, dir, name string) string {
	t.Helper()
	fname := path.Join(dir, name)
	fid, err := os.Create(fname)
	require.NoError(t, err)
	defer fid.Close()
	gz := gzip.NewWriter(fid)
	_, err = gz.Write([]byte(fastqText))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return fname
}

// outputMaker simulates fastq_strand writing its output file into
// the working directory.
func outputMaker(t *testing.T, outname string) func(string, []string) {
	t.Helper()
	return func(dir string, args []string) {
		require.NoError(t, os.WriteFile(path.Join(dir, outname), []byte("1st\t2nd\n"), 0644))
	}
}

func TestBadInputCount(t *testing.T) {

	c := &Checker{Runner: &fakeRunner{}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one or two fastq files")
}

func TestMissingFastq(t *testing.T) {

	c := &Checker{Fastqs: []string{"no/such.fastq"}, Runner: &fakeRunner{}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fastq file")
}

func TestMissingTool(t *testing.T) {

	dir := t.TempDir()
	fq := makeFastq(t, dir, "reads_NoIndex_L001_R1_001.fastq")

	c := &Checker{Fastqs: []string{fq}, Runner: &fakeRunner{missing: true}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), Tool)
}

func TestPlainInputs(t *testing.T) {

	dir := t.TempDir()
	r1 := makeFastq(t, dir, "reads_NoIndex_L001_R1_001.fastq")
	r2 := makeFastq(t, dir, "reads_NoIndex_L001_R2_001.fastq")
	out := path.Join(dir, "out")

	r := &fakeRunner{}
	r.onRun = outputMaker(t, "reads_NoIndex_L001_R1_001_fastq_strand.txt")
	var diag bytes.Buffer

	c := &Checker{
		Fastqs:      []string{r1, r2},
		OutputDir:   out,
		Passthrough: []string{"--subset", "10000"},
		Runner:      r,
		Out:         &diag,
	}
	status, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	require.Len(t, r.calls, 1)
	call := r.calls[0]
	assert.Equal(t, r1, call[1])
	assert.Equal(t, r2, call[2])
	assert.Equal(t, []string{"--subset", "10000"}, call[3:])
	assert.Contains(t, diag.String(), "exit status 0")
}

// The tool runs in the output directory, so a fastq path given
// relative to the caller's working directory must be absolutized.
func TestRelativeInputAbsolutized(t *testing.T) {

	dir := t.TempDir()
	fq := makeFastq(t, dir, "reads_NoIndex_L001_R1_001.fastq")

	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, fq)
	require.NoError(t, err)

	r := &fakeRunner{}
	r.onRun = outputMaker(t, "reads_NoIndex_L001_R1_001_fastq_strand.txt")

	c := &Checker{Fastqs: []string{rel}, OutputDir: path.Join(dir, "out"), Runner: r}
	_, err = c.Run()
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.True(t, filepath.IsAbs(r.calls[0][1]))
	assert.Equal(t, fq, r.calls[0][1])
}

// TestGzippedInputsDecompressed runs a gzipped input through the FIFO
// path with a tool that actually reads it, and checks that the pipe
// directory is cleaned up afterwards.
func TestGzippedInputsDecompressed(t *testing.T) {

	dir := t.TempDir()
	fq := makeFastqGz(t, dir, "reads_NoIndex_L001_R1_001.fastq.gz")
	out := path.Join(dir, "out")

	var content []byte
	r := &fakeRunner{}
	r.onRun = func(wdir string, args []string) {
		fifo, err := os.Open(args[0])
		require.NoError(t, err)
		defer fifo.Close()
		content, err = io.ReadAll(fifo)
		require.NoError(t, err)
		outputMaker(t, "reads_NoIndex_L001_R1_001_fastq_strand.txt")(wdir, args)
	}

	c := &Checker{Fastqs: []string{fq}, OutputDir: out, Runner: r}
	status, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	require.Len(t, r.calls, 1)
	// The tool sees a FIFO path, not the gzipped file.
	assert.NotEqual(t, fq, r.calls[0][1])
	assert.Contains(t, r.calls[0][1], "qcpipe-pipes-")
	assert.Equal(t, fastqText, string(content))

	// Every decompressor finished, so the pipe directory is gone.
	_, err = os.Stat(c.pipedir)
	assert.True(t, os.IsNotExist(err))
}

// TestUnreadPipeLeftInPlace covers a tool that never opens its input
// FIFO: the run must still complete without a panic, and the pipe
// directory is left behind for the blocked decompressor rather than
// removed out from under it.
func TestUnreadPipeLeftInPlace(t *testing.T) {

	dir := t.TempDir()
	fq := makeFastqGz(t, dir, "reads_NoIndex_L001_R1_001.fastq.gz")
	out := path.Join(dir, "out")

	r := &fakeRunner{}
	r.onRun = outputMaker(t, "reads_NoIndex_L001_R1_001_fastq_strand.txt")
	var diag bytes.Buffer

	c := &Checker{Fastqs: []string{fq}, OutputDir: out, Runner: r, Out: &diag}
	status, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	assert.Contains(t, diag.String(), "WARNING pipe directory")
	_, err = os.Stat(c.pipedir)
	assert.NoError(t, err)
}

func TestNoOutputFile(t *testing.T) {

	dir := t.TempDir()
	fq := makeFastq(t, dir, "reads_NoIndex_L001_R1_001.fastq")

	c := &Checker{Fastqs: []string{fq}, OutputDir: path.Join(dir, "out"), Runner: &fakeRunner{}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output file")
}

func TestOutputName(t *testing.T) {

	c := &Checker{Fastqs: []string{"/data/reads_NoIndex_L001_R1_001.fastq.gz"}, OutputDir: "out"}
	assert.Equal(t, "out/reads_NoIndex_L001_R1_001_fastq_strand.txt", c.outputName())

	c = &Checker{Fastqs: []string{"reads.fastq"}}
	assert.Equal(t, "reads_fastq_strand.txt", c.outputName())
}
