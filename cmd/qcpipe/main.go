// Copyright 2018, the QC-pipeline contributors.

// qcpipe is the entry point for the QC pipeline.  Normally this is
// the only command that will be run directly; it drives the other
// tools in turn: the CASAVA BCL to fastq conversion, per-fastq QC
// (FastQC and fastq_screen), and report generation.
//
// qcpipe can be invoked either using a configuration file in JSON
// format, or using command-line flags.  A typical invocation using
// flags is:
//
// qcpipe --RunDir=160621_M00123_0001_AB2CDE --OutputDir=fastqs --MaxQCProcs=4
//
// To use a JSON config file, create a file with the flag information
// in JSON format, e.g.
//
//	{"RunDir": "160621_M00123_0001_AB2CDE", "OutputDir": "fastqs", ...}
//
// Then provide the configuration file path when invoking qcpipe, e.g.
//
// qcpipe --ConfigFileName=config.json
//
// See utils/config.go for the full set of configuration parameters.
//
// qcpipe places its logs into the directory qcpipe_logs/#####, where
// ##### is a generated unique id, along with a snapshot of the
// configuration and a compressed run summary.  Temporary files go to
// qcpipe_tmp/##### and are removed after a successful run unless
// NoCleanTemp is set.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/htnani/genomics/bcl2fastq"
	"github.com/htnani/genomics/report"
	"github.com/htnani/genomics/utils"
)

var (
	config *utils.Config
	logger *log.Logger

	// Directories under OutputDir that contain fastq files,
	// filled in by the QC stage.
	fastqDirs []string
)

func handleArgs() bool {

	configFileName := flag.String("ConfigFileName", "", "JSON file containing configuration parameters")
	runDir := flag.String("RunDir", "", "Illumina run directory")
	outputDir := flag.String("OutputDir", "", "Directory for converted fastq files")
	sampleSheet := flag.String("SampleSheet", "", "Sample sheet file (defaults to SampleSheet.csv in the base calls directory)")
	numProcesses := flag.Int("NumProcesses", 0, "Number of processes for the Makefile stage")
	maxQCProcs := flag.Int("MaxQCProcs", 0, "Run this number of QC processes concurrently")
	screenConfDir := flag.String("ScreenConfDir", "", "Directory holding fastq_screen configuration files")
	tempDir := flag.String("TempDir", "", "Workspace for temporary files")
	logDir := flag.String("LogDir", "", "Directory for log files")
	qcSubDir := flag.String("QCSubDir", "", "Name of the QC results subdirectory")
	noCleanTemp := flag.Bool("NoCleanTemp", false, "Do not delete temporary files from TempDir")
	doProfile := flag.Bool("Profile", false, "Write a CPU profile to the current directory")

	flag.Parse()

	if *configFileName != "" {
		var err error
		config, err = utils.ReadConfig(*configFileName)
		if err != nil {
			fmt.Printf("ERROR %v\n", err)
			os.Exit(1)
		}
	} else {
		config = new(utils.Config)
	}

	if *runDir != "" {
		config.RunDir = *runDir
	}
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	if *sampleSheet != "" {
		config.SampleSheet = *sampleSheet
	}
	if *numProcesses != 0 {
		config.NumProcesses = *numProcesses
	}
	if *maxQCProcs != 0 {
		config.MaxQCProcs = *maxQCProcs
	}
	if *screenConfDir != "" {
		config.ScreenConfDir = *screenConfDir
	}
	if *tempDir != "" {
		config.TempDir = *tempDir
	}
	if *logDir != "" {
		config.LogDir = *logDir
	}
	if *qcSubDir != "" {
		config.QCSubDir = *qcSubDir
	}
	if *noCleanTemp {
		config.NoCleanTemp = true
	}

	return *doProfile
}

func checkArgs() {

	if config.RunDir == "" {
		os.Stderr.WriteString("RunDir not provided, run 'qcpipe --help' for more information.\n\n")
		os.Exit(1)
	}
	if config.OutputDir == "" {
		config.OutputDir = path.Base(path.Clean(config.RunDir)) + "_fastq"
		fmt.Fprintf(os.Stderr, "OutputDir not provided, defaulting to '%s'\n\n", config.OutputDir)
	}
	if config.NumProcesses == 0 {
		os.Stderr.WriteString("NumProcesses not provided, defaulting to 4\n\n")
		config.NumProcesses = 4
	}
	if config.MaxQCProcs == 0 {
		os.Stderr.WriteString("MaxQCProcs not provided, defaulting to 3\n\n")
		config.MaxQCProcs = 3
	}
	if config.QCSubDir == "" {
		config.QCSubDir = "qc"
	}
	if config.ScreenConfDir == "" {
		os.Stderr.WriteString("ScreenConfDir not provided, fastq_screen step will be skipped\n\n")
	}
}

// makeTemp creates the directories for temporary and log files.
func makeTemp() {

	xuid, err := uuid.NewUUID()
	if err != nil {
		panic(err)
	}
	uid := xuid.String()

	if config.TempDir == "" {
		config.TempDir = path.Join("qcpipe_tmp", uid)
	} else {
		config.TempDir = path.Join(config.TempDir, uid)
	}
	if err := os.MkdirAll(config.TempDir, 0755); err != nil {
		panic(err)
	}

	if config.LogDir == "" {
		config.LogDir = "qcpipe_logs"
	}
	config.LogDir = path.Join(config.LogDir, uid)
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		panic(err)
	}
}

// saveConfig snapshots the configuration into the log directory so
// the run can be reproduced.
func saveConfig() {
	if err := utils.WriteConfig(config, path.Join(config.LogDir, "config.json")); err != nil {
		panic(err)
	}
}

func setupLog() {
	logname := path.Join(config.LogDir, "qcpipe.log")
	fid, err := os.Create(logname)
	if err != nil {
		panic(err)
	}
	logger = log.New(fid, "", log.Ltime)
}

func convert() {

	logger.Printf("Starting bcl to fastq conversion")

	p := &bcl2fastq.Pipeline{
		RunDir:       config.RunDir,
		OutputDir:    config.OutputDir,
		SampleSheet:  config.SampleSheet,
		NumProcesses: config.NumProcesses,
	}
	status, err := p.Run()
	if err != nil {
		fmt.Printf("ERROR %v\n", err)
		logger.Printf("conversion failed: %v", err)
		os.Exit(1)
	}
	logger.Printf("configure exit status %d, make exit status %d", status.Configure, status.Make)

	logger.Printf("Conversion done")
}

// findFastqs walks the output directory and records every fastq
// file, grouped by the directory containing it.
func findFastqs() map[string][]string {

	dirs := make(map[string][]string)
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			panic(err)
		}
		for _, e := range entries {
			p1 := path.Join(dir, e.Name())
			if e.IsDir() {
				walk(p1)
				continue
			}
			if strings.HasSuffix(e.Name(), ".fastq") || strings.HasSuffix(e.Name(), ".fastq.gz") {
				dirs[dir] = append(dirs[dir], p1)
			}
		}
	}
	walk(config.OutputDir)

	return dirs
}

// sortedDirs returns the keys of a fastq directory map in sorted
// order, so the QC and report stages process directories
// deterministically.
func sortedDirs(dirs map[string][]string) []string {
	var names []string
	for dir := range dirs {
		names = append(names, dir)
	}
	sort.Strings(names)
	return names
}

// qcCommands returns the QC invocations for one fastq file.
func qcCommands(fastq, qcdir string) [][]string {

	cmds := [][]string{
		{"fastqc", "--outdir", qcdir, "--dir", config.TempDir, "--nogroup", fastq},
	}
	if config.ScreenConfDir != "" {
		for _, s := range report.Screens {
			conf := path.Join(config.ScreenConfDir, "fastq_screen_"+s+".conf")
			cmds = append(cmds, []string{
				"fastq_screen", "--conf", conf, "--outdir", qcdir, fastq,
			})
		}
	}

	return cmds
}

// runQC runs the QC tools over every converted fastq file, starting
// at most MaxQCProcs processes at a time.
func runQC() {

	logger.Printf("Starting QC")

	dirs := findFastqs()
	var pending [][]string
	for _, dir := range sortedDirs(dirs) {
		fastqDirs = append(fastqDirs, dir)
		qcdir := path.Join(dir, config.QCSubDir)
		if err := os.MkdirAll(qcdir, 0755); err != nil {
			panic(err)
		}
		for _, fq := range dirs[dir] {
			pending = append(pending, qcCommands(fq, qcdir)...)
		}
	}

	fp := 0
	for {
		nproc := config.MaxQCProcs
		if nproc > len(pending)-fp {
			nproc = len(pending) - fp
		}
		if nproc == 0 {
			break
		}

		var cmds []*exec.Cmd
		for k := fp; k < fp+nproc; k++ {
			logger.Printf("Running command: '%s'", strings.Join(pending[k], " "))
			cmd := exec.Command(pending[k][0], pending[k][1:]...)
			cmd.Env = os.Environ()
			cmd.Stderr = os.Stderr
			if err := cmd.Start(); err != nil {
				panic(err)
			}
			cmds = append(cmds, cmd)
		}

		for _, cmd := range cmds {
			if err := cmd.Wait(); err != nil {
				logger.Printf("QC command failed: %v", err)
				fmt.Printf("WARNING QC command failed: %v\n", err)
			}
		}
		fp += nproc
	}

	logger.Printf("QC done")
}

// reportDirs returns the directories covered by the reporting stage.
func reportDirs() []string {
	if len(config.QCDirs) > 0 {
		return config.QCDirs
	}
	return fastqDirs
}

func runReports() {

	logger.Printf("Starting reports")

	for _, dir := range reportDirs() {
		r := &report.Reporter{Dir: dir, QCSubDir: config.QCSubDir}
		htmlPath, err := r.Report()
		if err != nil {
			logger.Printf("report for %s failed: %v", dir, err)
			fmt.Printf("WARNING report for %s failed: %v\n", dir, err)
			continue
		}
		logger.Printf("wrote %s", htmlPath)
	}

	logger.Printf("Reports done")
}

// writeSummary writes a compressed per-fastq summary table into the
// log directory.
func writeSummary() {

	logger.Printf("Starting summary")

	outname := path.Join(config.LogDir, "summary.txt.sz")
	out, err := os.Create(outname)
	if err != nil {
		panic(err)
	}
	defer out.Close()
	wtr := snappy.NewBufferedWriter(out)
	defer wtr.Close()

	for _, dir := range reportDirs() {
		r := &report.Reporter{Dir: dir, QCSubDir: config.QCSubDir}
		samples, err := r.Scan()
		if err != nil {
			logger.Printf("summary for %s failed: %v", dir, err)
			continue
		}
		for _, s := range samples {
			status := "OK"
			if !s.Verified() {
				status = "FAILED"
			}
			line := fmt.Sprintf("%s\t%s\t%d\t%s\n", dir, s.Fastq, s.Reads, status)
			if _, err := wtr.Write([]byte(line)); err != nil {
				panic(err)
			}
		}
	}

	logger.Printf("Summary written to %s", outname)
}

func cleanTmp() {
	if !config.NoCleanTemp {
		logger.Printf("Removing temporary files from %s", config.TempDir)
		if err := os.RemoveAll(config.TempDir); err != nil {
			logger.Print("Can't remove temporary files:")
			logger.Print(err)
			logger.Printf("Continuing anyway...\n")
		}
	}
}

func run() {
	convert()
	runQC()
	runReports()
	writeSummary()
}

func main() {

	if handleArgs() {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}
	checkArgs()
	makeTemp()
	saveConfig()
	setupLog()

	defer cleanTmp()

	logger.Printf("Storing temporary files in %s", config.TempDir)
	logger.Printf("Storing log files in %s", config.LogDir)

	run()

	logger.Printf("All done, exit after cleanup")
}
