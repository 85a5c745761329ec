// Copyright 2018, the QC-pipeline contributors.

// Package report verifies and summarizes the outputs of a QC run.
// For each fastq file in a directory it checks that the expected
// FastQC and fastq_screen products are present in the qc
// subdirectory, and it can render the result as an HTML report plus
// a zip archive suitable for viewing elsewhere.  The QC products
// themselves are produced by the wrapped external tools; this
// package only inspects and packages them.
package report

import (
	"archive/zip"
	"bufio"
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/htnani/genomics/utils"
)

// Screens lists the fastq_screen configurations run by the QC
// scripts.  Each one leaves a .txt and a .png in the qc directory.
var Screens = []string{
	"model_organisms_screen",
	"other_organisms_screen",
	"rRNA_screen",
}

// Sample describes one fastq file and the state of its QC outputs.
type Sample struct {

	// The fastq file name (without directory).
	Fastq string

	// Parsed naming components.
	Info *utils.Fastq

	// Number of reads in the fastq file.
	Reads int64

	// QC products that were expected but not found.
	Missing []string
}

// Verified reports whether all expected QC outputs are present.
func (s *Sample) Verified() bool {
	return len(s.Missing) == 0
}

// Reporter scans one directory of QC outputs.
type Reporter struct {

	// The directory holding the fastq files and the QC
	// subdirectory.
	Dir string

	// Name of the QC subdirectory.  Defaults to "qc".
	QCSubDir string

	// If true, Scan skips read counting, which requires a pass
	// over each fastq file.
	NoCounts bool

	Out io.Writer
}

func (r *Reporter) printf(format string, args ...interface{}) {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format+"\n", args...)
}

func (r *Reporter) qcdir() string {
	sub := r.QCSubDir
	if sub == "" {
		sub = "qc"
	}
	return path.Join(r.Dir, sub)
}

// CountReads returns the number of reads in a fastq file, handling
// gzip compression by extension.  Four lines per read.
func CountReads(fname string) (int64, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return 0, errors.Wrap(err, "opening fastq file")
	}
	defer fid.Close()

	var rdr io.Reader = fid
	if strings.HasSuffix(fname, ".gz") {
		gz, err := gzip.NewReader(fid)
		if err != nil {
			return 0, errors.Wrapf(err, "decompressing %s", fname)
		}
		defer gz.Close()
		rdr = gz
	}

	var lines int64
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrapf(err, "reading %s", fname)
	}

	return lines / 4, nil
}

// expected returns the QC products that should exist for one fastq
// file, relative to the qc subdirectory.
func expected(fastq string) []string {

	base := strings.TrimSuffix(fastq, ".gz")
	base = strings.TrimSuffix(base, ".fastq")

	products := []string{
		base + "_fastqc",
		base + "_fastqc.zip",
	}
	for _, s := range Screens {
		products = append(products, base+"_"+s+".txt")
		products = append(products, base+"_"+s+".png")
	}

	return products
}

// Scan enumerates the fastq files in the directory and verifies
// their QC outputs.  Files that do not follow CASAVA naming are
// skipped with a warning.
func (r *Reporter) Scan() ([]*Sample, error) {

	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading directory %s", r.Dir)
	}

	qcdir := r.qcdir()
	var samples []*Sample
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".fastq") && !strings.HasSuffix(name, ".fastq.gz") {
			continue
		}
		info, err := utils.ParseFastq(name)
		if err != nil {
			r.printf("WARNING skipping %s: %v", name, err)
			continue
		}

		s := &Sample{Fastq: name, Info: info}
		for _, prod := range expected(name) {
			if _, err := os.Stat(path.Join(qcdir, prod)); err != nil {
				s.Missing = append(s.Missing, prod)
			}
		}
		if !r.NoCounts {
			s.Reads, err = CountReads(path.Join(r.Dir, name))
			if err != nil {
				return nil, err
			}
		}
		samples = append(samples, s)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Fastq < samples[j].Fastq
	})

	if len(samples) == 0 {
		return nil, errors.Errorf("no fastq files in %s", r.Dir)
	}

	return samples, nil
}

// Verify checks the QC outputs for every fastq in the directory and
// reports each failure.  It returns true if everything is present.
func (r *Reporter) Verify() (bool, error) {

	r.NoCounts = true
	samples, err := r.Scan()
	if err != nil {
		return false, err
	}

	ok := true
	for _, s := range samples {
		if s.Verified() {
			continue
		}
		ok = false
		for _, m := range s.Missing {
			r.printf("WARNING %s: missing QC output %s", s.Fastq, m)
		}
	}

	return ok, nil
}

var reportTmpl = template.Must(template.New("report").Parse(`<html>
<head><title>QC report: {{.Run}}/{{.Name}}</title></head>
<body>
<h1>QC report: {{.Run}}/{{.Name}}</h1>
<table border="1">
<tr><th>Fastq</th><th>Sample</th><th>Lane</th><th>Read</th><th>Reads</th><th>Status</th></tr>
{{range .Samples}}<tr>
<td>{{.Fastq}}</td><td>{{.Info.SampleName}}</td><td>{{.Info.Lane}}</td><td>{{.Info.Read}}</td>
<td>{{.Reads}}</td><td>{{if .Verified}}OK{{else}}FAILED: missing {{.Missing}}{{end}}</td>
</tr>{{end}}
</table>
</body>
</html>
`))

// Report scans the directory, writes qc_report.<run>.<name>.html
// into it along with a zip archive of the report, and returns the
// path of the HTML file.  The run and name fields come from the last
// two components of the directory path.
func (r *Reporter) Report() (string, error) {

	samples, err := r.Scan()
	if err != nil {
		return "", err
	}

	dir := path.Clean(r.Dir)
	name := path.Base(dir)
	run := path.Base(path.Dir(dir))
	stem := fmt.Sprintf("qc_report.%s.%s", run, name)

	htmlPath := path.Join(dir, stem+".html")
	fid, err := os.Create(htmlPath)
	if err != nil {
		return "", errors.Wrap(err, "creating report file")
	}
	data := struct {
		Run, Name string
		Samples   []*Sample
	}{run, name, samples}
	if err := reportTmpl.Execute(fid, data); err != nil {
		fid.Close()
		return "", errors.Wrap(err, "writing report")
	}
	if err := fid.Close(); err != nil {
		return "", errors.Wrap(err, "closing report file")
	}

	if err := r.archive(path.Join(dir, stem+".zip"), htmlPath, stem); err != nil {
		return "", err
	}

	r.printf("QC report written to %s", htmlPath)

	return htmlPath, nil
}

// archive packs the report into a zip file for unpacking and viewing
// elsewhere.
func (r *Reporter) archive(zipPath, htmlPath, stem string) error {

	zf, err := os.Create(zipPath)
	if err != nil {
		return errors.Wrap(err, "creating zip archive")
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	w, err := zw.Create(stem + "/" + path.Base(htmlPath))
	if err != nil {
		return errors.Wrap(err, "adding report to archive")
	}
	src, err := os.Open(htmlPath)
	if err != nil {
		return errors.Wrap(err, "reading report back")
	}
	defer src.Close()
	if _, err := io.Copy(w, src); err != nil {
		return errors.Wrap(err, "compressing report")
	}

	return errors.Wrap(zw.Close(), "finalizing archive")
}
