// Package reporter turns a validation run into summary and detailed tables.
package reporter

import (
	"fmt"
	"strings"
	"time"

	"file-validator-service/internal/engine"
	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
	"file-validator-service/internal/rules"
)

// Summary table columns
const (
	ColSummary = "Summary"
	ColDetails = "Details"
)

// Log table columns, used when the file itself failed
const (
	ColName        = "Name"
	ColStatus      = "Status"
	ColDescription = "Description"
)

// NotApplicable fills the Value cell of file rule rows
const NotApplicable = "N/A"

// DetailedColumns is the column order of the detailed table
var DetailedColumns = []string{
	"Rule ID", "Category", "Sub Category", "Type", "Unique ID", "Attribute", "Value", "Fail Message",
}

// Table is a rectangular grid of rendered cells
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func newTable(columns ...string) Table {
	return Table{Columns: columns, Rows: [][]string{}}
}

func (t *Table) add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of rows
func (t Table) Len() int { return len(t.Rows) }

// Records returns the rows keyed by column name
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				m[c] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Report is the rendered outcome of one run
type Report struct {
	Passed     bool      `json:"passed"`
	FilePath   string    `json:"file_path"`
	SchemaType string    `json:"schema_type"`
	RanAt      time.Time `json:"ran_at"`
	// FileFailed is set when the summary holds the log table
	FileFailed bool `json:"file_failed"`
	Summary  Table `json:"summary"`
	Detailed Table `json:"detailed"`
	// RuleCounts holds pass and fail counts per rule id in first-seen order
	RuleCounts []RuleCount `json:"rule_counts"`
}

// RuleCount aggregates the results of every rule sharing an id
type RuleCount struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Passes   int    `json:"passes"`
	Failures int    `json:"failures"`
}

// Options describes the file a run validated
type Options struct {
	FilePath    string
	FileType    string
	RecordCount int
}

// MessageMap maps rule type names to the rule ids shown in reports
type MessageMap map[string]string

// DefaultMessageMap returns one id per built-in kind
func DefaultMessageMap() MessageMap {
	m := make(MessageMap)
	for k := rules.KindFileName; k.Valid(); k++ {
		m[k.String()] = fmt.Sprintf("FV_%03d", int(k))
	}
	return m
}

// ID returns the id of r. Types without an entry use their type name.
func (m MessageMap) ID(r *rules.Rule) string {
	if id, ok := m[r.Type()]; ok {
		return id
	}
	return r.Type()
}

// Reporter builds reports
type Reporter struct {
	messages MessageMap
	now      func() time.Time
}

// Option configures a Reporter
type Option func(*Reporter)

// WithMessageMap adds or overrides rule ids
func WithMessageMap(m MessageMap) Option {
	return func(r *Reporter) {
		for k, v := range m {
			r.messages[k] = v
		}
	}
}

// WithClock sets the clock used when a run carries no timestamp
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a reporter
func New(opts ...Option) *Reporter {
	r := &Reporter{messages: DefaultMessageMap(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build renders run. A reader or header failure, logged against the file
// itself, replaces the summary with the run's log table and leaves the
// detailed table empty.
func (rp *Reporter) Build(run *engine.Run, opts Options) *Report {
	log := logging.Component("reporter")
	report := &Report{
		FilePath: opts.FilePath,
		Summary:  newTable(ColSummary, ColDetails),
		Detailed: newTable(DetailedColumns...),
		RanAt:    rp.now(),
	}
	if run == nil {
		report.FileFailed = true
		report.Summary = newTable(ColName, ColStatus, ColDescription)
		return report
	}
	if !run.RanAt.IsZero() {
		report.RanAt = run.RanAt
	}
	if run.Schema != nil {
		report.SchemaType = run.Schema.Type()
	}
	report.Passed = run.Passed

	all := records.NewStream()
	all.Merge(run.Log)
	all.Merge(run.Records)

	if fileFailed(run, opts.FilePath) {
		log.Info().Str("file", opts.FilePath).Msg("file level failure, reporting logs only")
		report.Passed = false
		report.FileFailed = true
		report.Summary = logTable(all)
		return report
	}

	report.Detailed = rp.detailed(run, opts)
	report.RuleCounts = rp.counts(run)
	report.Summary = rp.summary(run, report, opts)
	log.Debug().Int("failures", report.Detailed.Len()).Msg("report built")
	return report
}

// fileFailed reports whether the file could not be validated at all: no
// schema, a failed header check, or a failed reader step. Rule outcomes,
// file rules included, are logged under the rule name and never count.
func fileFailed(run *engine.Run, path string) bool {
	if run.Schema == nil || !run.HeaderPassed && !run.Schema.Empty() {
		return true
	}
	for _, rec := range run.Log.BySubject(path) {
		if !rec.Passed {
			return true
		}
	}
	return false
}

func logTable(all *records.Stream) Table {
	t := newTable(ColName, ColStatus, ColDescription)
	for _, rec := range all.Records() {
		t.add(rec.Subject, rec.Status(), rec.Message)
	}
	return t
}

func (rp *Reporter) summary(run *engine.Run, report *Report, opts Options) Table {
	t := newTable(ColSummary, ColDetails)
	schemaType := opts.FileType
	if report.SchemaType != "" {
		schemaType = report.SchemaType
	}
	var fields []string
	if run.Schema != nil {
		fields = run.Schema.Fields()
	}
	count := opts.RecordCount
	if count == 0 {
		count = run.Rows
	}

	t.add("File path", opts.FilePath)
	t.add("File Type", schemaType)
	t.add("Ran at", report.RanAt.Format(time.DateTime))
	t.add("Validated Attributes", rules.FormatValue(fields))
	t.add("Total Number of Records", fmt.Sprint(count))
	t.add("", "")
	t.add("Rule Summary", "")
	t.add("", "")

	for _, c := range report.RuleCounts {
		if c.Failures > 0 {
			t.add(c.ID+": Failures", fmt.Sprint(c.Failures))
			t.add(c.ID+": Passes", fmt.Sprint(c.Passes))
		}
	}
	return t
}

func (rp *Reporter) counts(run *engine.Run) []RuleCount {
	var out []RuleCount
	index := make(map[string]int)
	for _, r := range run.Rules() {
		id := rp.messages.ID(r)
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, RuleCount{ID: id, Type: r.Type()})
		}
		out[i].Passes += len(r.PassedObjects())
		out[i].Failures += len(r.FailedObjects())
	}
	return out
}

func (rp *Reporter) detailed(run *engine.Run, opts Options) Table {
	t := newTable(DetailedColumns...)
	schemaType := opts.FileType
	if run.Schema != nil {
		schemaType = run.Schema.Type()
	}
	for _, r := range run.Rules() {
		failed := r.FailedObjects()
		if len(failed) == 0 {
			continue
		}
		id := rp.messages.ID(r)
		if r.IsFileRule() {
			t.add(id, r.Category(), r.SubCategory(), schemaType, opts.FilePath, r.Attribute(), NotApplicable, r.FailMessage(failed[0]))
			continue
		}
		for _, res := range failed {
			t.add(id, r.Category(), r.SubCategory(), schemaType, uniqueID(res), r.Attribute(),
				rules.CleanValue(res.Value), r.FailMessage(res))
		}
	}
	return t
}

func uniqueID(res rules.Result) string {
	parts := make([]string, len(res.Keys))
	for i, k := range res.Keys {
		parts[i] = rules.CleanValue(k)
	}
	return strings.Join(parts, ",")
}
