// Copyright 2018, the QC-pipeline contributors.

package macs2

import (
	"bytes"
	"os"
	"path"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	missing bool
	calls   [][]string
	status  int
	onRun   func(args []string)
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing {
		return "", errors.Errorf("%s not found", name)
	}
	return "/usr/bin/" + name, nil
}

func (r *fakeRunner) Run(dir string, name string, args ...string) (int, error) {
	if r.onRun != nil {
		r.onRun(args)
	}
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.status, nil
}

// peaksMaker simulates macs2 writing its peaks file.
func peaksMaker(t *testing.T) func([]string) {
	t.Helper()
	return func(args []string) {
		var outdir, name string
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "--outdir":
				outdir = args[i+1]
			case "-n":
				name = args[i+1]
			}
		}
		require.NotEmpty(t, outdir)
		require.NotEmpty(t, name)
		require.NoError(t, os.WriteFile(path.Join(outdir, name+"_peaks.xls"), []byte("# peaks\n"), 0644))
	}
}

func makeBam(t *testing.T, dir, name string) string {
	t.Helper()
	fname := path.Join(dir, name)
	require.NoError(t, os.WriteFile(fname, []byte("BAM"), 0644))
	return fname
}

func TestMissingTreatment(t *testing.T) {

	c := &Caller{Treatment: "no/such.bam", OutputDir: "out", Runner: &fakeRunner{}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no treatment file")
}

func TestMissingControl(t *testing.T) {

	dir := t.TempDir()
	chip := makeBam(t, dir, "chip.bam")

	c := &Caller{
		Treatment: chip,
		Control:   path.Join(dir, "input.bam"),
		OutputDir: path.Join(dir, "out"),
		Runner:    &fakeRunner{},
	}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no control file")
}

func TestMissingTool(t *testing.T) {

	dir := t.TempDir()
	chip := makeBam(t, dir, "chip.bam")

	c := &Caller{Treatment: chip, OutputDir: path.Join(dir, "out"), Runner: &fakeRunner{missing: true}}
	_, err := c.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), Tool)
}

func TestCallPeaks(t *testing.T) {

	dir := t.TempDir()
	chip := makeBam(t, dir, "chip.bam")
	ctrl := makeBam(t, dir, "input.bam")

	r := &fakeRunner{}
	r.onRun = peaksMaker(t)
	var diag bytes.Buffer

	c := &Caller{
		Treatment:   chip,
		Control:     ctrl,
		OutputDir:   path.Join(dir, "out"),
		Genome:      "mm",
		Passthrough: []string{"--broad"},
		Runner:      r,
		Out:         &diag,
	}
	status, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	require.Len(t, r.calls, 1)
	call := r.calls[0]
	assert.Equal(t, "callpeak", call[1])
	// The file format is fixed.
	assert.Contains(t, call, "-f")
	assert.Contains(t, call, "BAM")
	assert.Contains(t, call, "mm")
	assert.Contains(t, call, ctrl)
	assert.Equal(t, "--broad", call[len(call)-1])

	// Name defaults to the treatment base name.
	assert.Contains(t, call, "chip")
}

func TestExistingOutputDirWarns(t *testing.T) {

	dir := t.TempDir()
	chip := makeBam(t, dir, "chip.bam")
	out := path.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0755))

	r := &fakeRunner{}
	r.onRun = peaksMaker(t)
	var diag bytes.Buffer

	c := &Caller{Treatment: chip, OutputDir: out, Runner: r, Out: &diag}
	_, err := c.Run()
	require.NoError(t, err)
	assert.Contains(t, diag.String(), "WARNING output directory")
}

func TestNoPeaksFile(t *testing.T) {

	dir := t.TempDir()
	chip := makeBam(t, dir, "chip.bam")

	r := &fakeRunner{status: 1} // macs2 ran but produced nothing
	c := &Caller{Treatment: chip, OutputDir: path.Join(dir, "out"), Runner: r}
	status, err := c.Run()
	require.Error(t, err)
	assert.Equal(t, 1, status)
	assert.Contains(t, err.Error(), "no peaks file")
}
