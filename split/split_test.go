// Copyright 2018, the QC-pipeline contributors.

package split

import (
	"bytes"
	"io"
	"os"
	"path"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	missing bool
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing {
		return "", errors.Errorf("%s not found", name)
	}
	return "/usr/bin/" + name, nil
}

func (r *fakeRunner) Run(dir string, name string, args ...string) (int, error) {
	return 0, nil
}

func TestLaneOutput(t *testing.T) {

	s := &Splitter{Fastq: "/data/PJB_ATCACG_L000_R1_001.fastq", OutputDir: "out"}
	name, err := s.laneOutput(3)
	require.NoError(t, err)
	assert.Equal(t, "out/PJB_ATCACG_L003_R1_001.fastq", name)

	// Output is uncompressed even when the input is gzipped; the
	// workflow compresses it afterwards.
	s = &Splitter{Fastq: "PJB_ATCACG_L000_R1_001.fastq.gz"}
	name, err = s.laneOutput(5)
	require.NoError(t, err)
	assert.Equal(t, "PJB_ATCACG_L005_R1_001.fastq", name)

	s = &Splitter{Fastq: "not-a-fastq.txt"}
	_, err = s.laneOutput(1)
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {

	s := &Splitter{Fastq: "PJB_ATCACG_L000_R1_001.fastq"}
	sc, gz := s.commands(2)
	assert.Equal(t, "split_fastq -l 2 PJB_ATCACG_L000_R1_001.fastq > {o:split}", sc)
	assert.Contains(t, gz, "gzip -c")

	s = &Splitter{Fastq: "in.fastq", Passthrough: []string{"--strict"}}
	sc, _ = s.commands(1)
	assert.Equal(t, "split_fastq --strict -l 1 in.fastq > {o:split}", sc)
}

func TestPreconditions(t *testing.T) {

	s := &Splitter{Fastq: "no/such.fastq", Lanes: []int{1}, Runner: &fakeRunner{}}
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fastq file")

	dir := t.TempDir()
	fq := path.Join(dir, "PJB_ATCACG_L000_R1_001.fastq")
	require.NoError(t, os.WriteFile(fq, []byte("@r\nA\n+\n!\n"), 0644))

	s = &Splitter{Fastq: fq, Runner: &fakeRunner{}}
	err = s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lanes")

	s = &Splitter{Fastq: fq, Lanes: []int{1}, Runner: &fakeRunner{missing: true}}
	err = s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), Tool)
}

func TestWhitespacePathRejected(t *testing.T) {

	dir := path.Join(t.TempDir(), "with space")
	require.NoError(t, os.MkdirAll(dir, 0755))
	fq := path.Join(dir, "PJB_ATCACG_L000_R1_001.fastq")
	require.NoError(t, os.WriteFile(fq, []byte("@r\nA\n+\n!\n"), 0644))

	// The workflow commands are shell lines, so such paths cannot
	// be carried safely.
	s := &Splitter{Fastq: fq, Lanes: []int{1}, Runner: &fakeRunner{}}
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitespace")
}

const fastqText = "@r1\nACGT\n+\n!!!!\n@r2\nTTTT\n+\n!!!!\n"

// TestRunWorkflow runs the real splitter-then-gzip workflow against
// a stub split_fastq placed on the search path.
func TestRunWorkflow(t *testing.T) {

	dir := t.TempDir()

	bin := path.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))
	stub := "#!/bin/sh\nfor f in \"$@\"; do last=\"$f\"; done\ncat \"$last\"\n"
	require.NoError(t, os.WriteFile(path.Join(bin, "split_fastq"), []byte(stub), 0755))
	t.Setenv("PATH", bin+":"+os.Getenv("PATH"))

	fq := path.Join(dir, "PJB_ATCACG_L000_R1_001.fastq")
	require.NoError(t, os.WriteFile(fq, []byte(fastqText), 0644))
	out := path.Join(dir, "out")

	s := &Splitter{Fastq: fq, Lanes: []int{2}, OutputDir: out, Out: new(bytes.Buffer)}
	require.NoError(t, s.Run())

	// The intermediate uncompressed file is cleaned up.
	_, err := os.Stat(path.Join(out, "PJB_ATCACG_L002_R1_001.fastq"))
	assert.True(t, os.IsNotExist(err))

	fid, err := os.Open(path.Join(out, "PJB_ATCACG_L002_R1_001.fastq.gz"))
	require.NoError(t, err)
	defer fid.Close()
	gz, err := gzip.NewReader(fid)
	require.NoError(t, err)
	defer gz.Close()
	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, fastqText, string(content))
}
