// Copyright 2018, the QC-pipeline contributors.

package utils

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Runner launches external tools.  The pipeline packages accept a
// Runner rather than calling exec directly so that tests can
// substitute a recording implementation and inspect the constructed
// invocations.
type Runner interface {

	// LookPath resolves the named tool on the process search
	// path, returning its full path.
	LookPath(name string) (string, error)

	// Run executes the tool synchronously in the given working
	// directory (blank for the current directory) and returns its
	// exit status.  A nonzero status is not an error; err is
	// reserved for failures to launch the process at all.
	Run(dir string, name string, args ...string) (int, error)
}

// ExecRunner is the Runner used outside of tests.  The child process
// inherits the environment and writes directly to this process's
// stdout/stderr.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(dir string, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var xe *exec.ExitError
	if errors.As(err, &xe) {
		return xe.ExitCode(), nil
	}

	return -1, errors.Wrapf(err, "running %s", name)
}
