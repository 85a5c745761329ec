// Copyright 2018, the QC-pipeline contributors.

package utils

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

type Config struct {

	// The top-level directory of the sequencing run, containing
	// the Data/Intensities/BaseCalls substructure produced by the
	// sequencer.
	RunDir string

	// The directory where the converted fastq files are written.
	OutputDir string

	// The sample sheet describing sample/lane/index assignments.
	// If blank, SampleSheet.csv in the base calls directory is
	// used when present.
	SampleSheet string

	// The number of processes passed to the generated Makefile
	// via make -j.
	NumProcesses int

	// The maximum number of QC processes that are run
	// simultaneously.
	MaxQCProcs int

	// Directory holding the fastq_screen configuration files.  If
	// blank, the screening step is skipped.
	ScreenConfDir string

	// Use this location to place temporary files.  If blank, a
	// directory of the form qcpipe_tmp/######## is generated in
	// the local directory.
	TempDir string

	// The directory where log files are written.  By default the
	// logs are placed into qcpipe_logs/######, where the number
	// matches the suffix of the temporary directory.
	LogDir string

	// If true, temporary files are not removed upon program
	// completion.  If false, which is the default, the temporary
	// files are removed.
	NoCleanTemp bool

	// The directories scanned by the QC reporting stage.  If
	// empty, the output directory is scanned.
	QCDirs []string

	// The name of the subdirectory holding QC outputs within each
	// reported directory.  Defaults to "qc".
	QCSubDir string
}

// ReadConfig loads a configuration file in JSON format.
func ReadConfig(filename string) (*Config, error) {
	fid, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening config file")
	}
	defer fid.Close()
	dec := json.NewDecoder(fid)
	config := new(Config)
	if err := dec.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "decoding config file %s", filename)
	}

	return config, nil
}

// WriteConfig saves the configuration in JSON format, so that a run
// can be reproduced from its log directory.
func WriteConfig(config *Config, filename string) error {
	fid, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating config file")
	}
	defer fid.Close()
	enc := json.NewEncoder(fid)
	if err := enc.Encode(config); err != nil {
		return errors.Wrapf(err, "encoding config file %s", filename)
	}

	return nil
}
