package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"file-validator-service/internal/dataset"
	"file-validator-service/internal/loaders"
	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
	"file-validator-service/internal/rules"
	"file-validator-service/internal/schema"
)

// Options controls what a Validator records.
type Options struct {
	// StorePasses adds one record per passed row, and per failed row.
	StorePasses bool
	// LogRows adds one record per failed row and debug-logs every row.
	LogRows bool
	// Transforms resolves pre-validation names. Defaults to rules.DefaultTransforms().
	Transforms rules.Transforms
	// Now is the clock used for Run.RanAt.
	Now func() time.Time
}

// Run is the outcome of validating one dataset.
type Run struct {
	Passed       bool
	HeaderPassed bool
	// Log holds the file-level records: reading and header checks.
	Log *records.Stream
	// Records holds one summary record per rule, plus row records when enabled.
	Records *records.Stream
	Schema  *schema.Schema
	Rows    int
	Ignored []string
	// Errors maps rule names to the first error the rule raised.
	Errors map[string]error
	RanAt  time.Time
}

// Rules returns the executed rules, each carrying its passed and failed results.
func (r *Run) Rules() []*rules.Rule {
	if r.Schema == nil {
		return nil
	}
	return r.Schema.Rules()
}

// Validator runs a compiled schema against a dataset. It composes a header
// checker, which can abort the run, and a rule executor.
type Validator struct {
	header   headerChecker
	executor ruleExecutor
	now      func() time.Time
	log      zerolog.Logger
}

// NewValidator creates a validator
func NewValidator(opts Options) *Validator {
	if opts.Transforms == nil {
		opts.Transforms = rules.DefaultTransforms()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := logging.Component("validator")
	return &Validator{
		header: headerChecker{log: log},
		executor: ruleExecutor{
			transforms:  opts.Transforms,
			storePasses: opts.StorePasses,
			logRows:     opts.LogRows,
			log:         log,
		},
		now: opts.Now,
		log: log,
	}
}

// Validate runs every rule of s against ds in declaration order. A failing
// header check stops the run before any other rule executes. Rule errors
// never stop the run; the rule is recorded as failed and the next one runs.
func (v *Validator) Validate(ds *dataset.Dataset, s *schema.Schema, ctx rules.Context) *Run {
	run := &Run{
		Log:     records.NewStream(),
		Records: records.NewStream(),
		Schema:  s,
		Errors:  make(map[string]error),
		RanAt:   v.now(),
	}
	if ds != nil {
		run.Rows = ds.Len()
	}

	if s == nil || ds == nil {
		v.log.Warn().Str("file", ctx.FilePath).Msg("no schema or dataset to validate")
		run.Log.Add(ctx.FilePath, headerNoSchema, false)
		return run
	}
	if s.Empty() {
		v.log.Warn().Str("file", ctx.FilePath).Str("schema_type", s.Type()).Msg("schema is empty, passing through")
		run.Log.Add(ctx.FilePath, headerNoSchema, true)
		run.HeaderPassed = true
		run.Passed = true
		return run
	}

	ds.CleanColumnNames()

	v.log.Info().Str("file", ctx.FilePath).Msgf("Verify field names: %s", ctx.FilePath)
	run.HeaderPassed = v.header.check(ds, s, ctx, run.Log)
	if !run.HeaderPassed {
		return run
	}

	run.Ignored = ignoredColumns(ds, s)
	if len(run.Ignored) > 0 {
		msg := fmt.Sprintf("Source columns %s will be ignored.", rules.FormatValue(run.Ignored))
		v.log.Info().Strs("columns", run.Ignored).Msg("source columns will be ignored")
		run.Log.Add(ctx.FilePath, msg, true)
	}

	passed := true
	for _, r := range s.Rules() {
		if r.Kind() == rules.KindHeader {
			continue
		}
		v.log.Debug().Str("rule", r.Name()).Msg("running rule")

		out := v.executor.run(r, ds, ctx, run.Records)
		if out.err != nil {
			run.Errors[r.Name()] = out.err
			v.log.Error().Err(out.err).Str("rule", r.Name()).Msg("rule raised an error")
			passed = false
		}
		v.executor.record(r, out, run.Records)
		if !r.Passed() {
			passed = false
		}
	}

	run.Passed = passed
	v.log.Info().Str("file", ctx.FilePath).Bool("passed", run.Passed).
		Int("rules", len(s.Rules())).Int("rows", run.Rows).Msg("validation finished")
	return run
}

func ignoredColumns(ds *dataset.Dataset, s *schema.Schema) []string {
	declared := make(map[string]struct{})
	for _, f := range s.Fields() {
		declared[f] = struct{}{}
	}
	var ignored []string
	for _, c := range ds.Columns() {
		if _, ok := declared[c]; !ok {
			ignored = append(ignored, c)
		}
	}
	return ignored
}

// ValidateFile reads path and validates it. A read failure aborts before any
// rule runs; the returned run then carries the reader's records only.
func (v *Validator) ValidateFile(ctx context.Context, path, fileType string, s *schema.Schema, readOpts loaders.Options) (*Run, *dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ok, readLog, ds := loaders.ValidateAndRead(path, fileType, readOpts)
	if !ok {
		v.log.Error().Str("file", path).Strs("log", readLog.Strings()).Msg("failed to read file")
		return &Run{
			Log:     readLog,
			Records: records.NewStream(),
			Schema:  s,
			Errors:  make(map[string]error),
			RanAt:   v.now(),
		}, nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	run := v.Validate(ds, s, rules.Context{FilePath: path, FileType: fileType})
	merged := records.NewStream()
	merged.Merge(readLog)
	merged.Merge(run.Log)
	run.Log = merged
	return run, ds, nil
}
