package formatters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"file-validator-service/internal/logging"
	"file-validator-service/internal/reporter"
	"file-validator-service/web"
)

// Output formats
const (
	Text       = "text"
	CSV        = "csv"
	JSON       = "json"
	XLSX       = "xlsx"
	HTML       = "html"
	Prometheus = "prometheus"
)

// Sheet names of the xlsx report
const (
	SummarySheet  = "Summary Report"
	DetailedSheet = "Detailed Report"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Options controls where and how a report is written
type Options struct {
	// Dir receives every file output
	Dir string
	// Name is the base file name, without extension
	Name    string
	Formats []string
	// Stdout receives the text format; os.Stdout when nil
	Stdout io.Writer
}

// SupportedFormats returns the formats Write understands
func SupportedFormats() []string {
	return []string{Text, CSV, JSON, XLSX, HTML, Prometheus}
}

// Write renders report in every requested format and returns the written
// file paths. A failing format does not stop the others; their errors are
// combined.
func Write(report *reporter.Report, opts Options) ([]string, error) {
	log := logging.Component("formatters")
	if opts.Name == "" {
		opts.Name = "validation-report"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	var (
		paths []string
		errs  error
	)
	for _, format := range opts.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		written, err := writeFormat(report, format, opts)
		if err != nil {
			log.Error().Err(err).Str("format", format).Msg("failed to write report")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", format, err))
			continue
		}
		for _, p := range written {
			log.Info().Str("format", format).Str("path", p).Msg("report written")
		}
		paths = append(paths, written...)
	}
	return paths, errs
}

func writeFormat(report *reporter.Report, format string, opts Options) ([]string, error) {
	base := filepath.Join(opts.Dir, opts.Name)
	switch format {
	case Text:
		return nil, WriteText(opts.Stdout, report)
	case CSV:
		summary, detailed := base+"-summary.csv", base+"-detailed.csv"
		if err := writeCSVFile(summary, report.Summary); err != nil {
			return nil, err
		}
		if err := writeCSVFile(detailed, report.Detailed); err != nil {
			return []string{summary}, err
		}
		return []string{summary, detailed}, nil
	case JSON:
		return single(base+".json", func(w io.Writer) error { return WriteJSON(w, report) })
	case XLSX:
		path := base + ".xlsx"
		return []string{path}, WriteExcel(path, report)
	case HTML:
		return single(base+".html", func(w io.Writer) error { return WriteHTML(w, report) })
	case Prometheus:
		path := base + ".prom"
		return []string{path}, WritePrometheus(path, report)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func single(path string, write func(io.Writer) error) ([]string, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return []string{path}, nil
}

// WriteText writes a human-readable report
func WriteText(w io.Writer, report *reporter.Report) error {
	status := "PASSED"
	if !report.Passed {
		status = "FAILED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Validation Report for %s\n", report.FilePath)
	fmt.Fprintf(&b, "=====================================\n\n")
	fmt.Fprintf(&b, "Result: %s\n\n", status)

	if report.FileFailed {
		b.WriteString("File checks:\n------------\n")
		for _, row := range report.Summary.Rows {
			fmt.Fprintf(&b, "[%s] %s: %s\n", row[1], row[0], row[2])
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, row := range report.Summary.Rows {
		if row[0] == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "%-25s %s\n", row[0], row[1])
	}
	if report.Detailed.Len() > 0 {
		b.WriteString("\nFailures:\n---------\n")
		for _, rec := range report.Detailed.Records() {
			fmt.Fprintf(&b, "%s %s[%s]: %s\n", rec["Rule ID"], rec["Attribute"], rec["Unique ID"], rec["Fail Message"])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCSVFile(path string, t reporter.Table) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, t)
}

// WriteCSV writes one table with its header row
func WriteCSV(w io.Writer, t reporter.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// jsonReport is the JSON layout: tables as lists of objects
type jsonReport struct {
	Passed     bool                 `json:"passed"`
	FilePath   string               `json:"file_path"`
	SchemaType string               `json:"schema_type"`
	RanAt      string               `json:"ran_at"`
	FileFailed bool                 `json:"file_failed"`
	Summary    []map[string]string  `json:"summary"`
	Detailed   []map[string]string  `json:"detailed"`
	Rules      []reporter.RuleCount `json:"rule_summary"`
}

// MarshalJSON encodes report in the JSON output layout
func MarshalJSON(report *reporter.Report) ([]byte, error) {
	out := jsonReport{
		Passed:     report.Passed,
		FilePath:   report.FilePath,
		SchemaType: report.SchemaType,
		RanAt:      report.RanAt.Format("2006-01-02T15:04:05Z07:00"),
		FileFailed: report.FileFailed,
		Summary:    report.Summary.Records(),
		Detailed:   report.Detailed.Records(),
		Rules:      report.RuleCounts,
	}
	if out.Rules == nil {
		out.Rules = []reporter.RuleCount{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// WriteJSON writes the JSON report
func WriteJSON(w io.Writer, report *reporter.Report) error {
	data, err := MarshalJSON(report)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteExcel writes a workbook with a summary and a detailed sheet
func WriteExcel(path string, report *reporter.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailedSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := fillSheet(f, SummarySheet, report.Summary); err != nil {
		return err
	}
	if err := fillSheet(f, DetailedSheet, report.Detailed); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, sheet string, t reporter.Table) error {
	rows := append([][]string{t.Columns}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// htmlData feeds templates/report.html
type htmlData struct {
	Report *reporter.Report
	Status string
	CSS    template.CSS
	JS     template.JS
}

// WriteHTML renders the embedded HTML report template
func WriteHTML(w io.Writer, report *reporter.Report) error {
	tmpl, err := template.New("report.html").Funcs(templateFuncs()).ParseFS(web.Templates, "templates/report.html")
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	data := htmlData{
		Report: report,
		Status: statusClass(report.Passed),
		CSS:    template.CSS(web.CSS),
		JS:     template.JS(web.JS),
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func statusClass(passed bool) string {
	if passed {
		return "status-passed"
	}
	return "status-failed"
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"statusClass": func(s string) string {
			switch s {
			case "passed":
				return "status-passed"
			case "failed":
				return "status-failed"
			}
			return ""
		},
		"isFailureLine": func(label string) bool {
			return strings.HasSuffix(label, ": Failures")
		},
		"ranAt": func(r *reporter.Report) string {
			return r.RanAt.Format("2006-01-02 15:04:05")
		},
	}
}

// WritePrometheus writes the run as a node_exporter textfile
func WritePrometheus(path string, report *reporter.Report) error {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	labels := prometheus.Labels{"file": report.FilePath, "schema_type": report.SchemaType}
	passed := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "file_validation_passed",
		Help:        "Whether the last validation of the file passed (1) or failed (0)",
		ConstLabels: labels,
	})
	timestamp := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "file_validation_last_run_timestamp_seconds",
		Help:        "Unix time of the last validation run",
		ConstLabels: labels,
	})
	failures := factory.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "file_validation_rule_failures",
		Help:        "Number of failed records per rule id",
		ConstLabels: labels,
	}, []string{"rule_id", "type"})
	passes := factory.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "file_validation_rule_passes",
		Help:        "Number of passed records per rule id",
		ConstLabels: labels,
	}, []string{"rule_id", "type"})

	if report.Passed {
		passed.Set(1)
	}
	timestamp.Set(float64(report.RanAt.Unix()))
	for _, c := range report.RuleCounts {
		failures.WithLabelValues(c.ID, c.Type).Set(float64(c.Failures))
		passes.WithLabelValues(c.ID, c.Type).Set(float64(c.Passes))
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write textfile: %w", err)
	}
	return nil
}
