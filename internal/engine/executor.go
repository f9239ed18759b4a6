package engine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"file-validator-service/internal/dataset"
	"file-validator-service/internal/records"
	"file-validator-service/internal/rules"
	"file-validator-service/internal/schema"
)

const (
	headerPassed    = "Verify field names: Passed for %s"
	headerFailed    = "Verify field names: Failed for %s"
	headerNoSchema  = "Verify field names: Failed No file validation schema specified. Passing through..."
	noPreValidation = "No pre-validation configured"
)

// headerChecker runs the header-kind rules before anything else
type headerChecker struct {
	log zerolog.Logger
}

// check returns false when any header rule fails or errors
func (h headerChecker) check(ds *dataset.Dataset, s *schema.Schema, ctx rules.Context, log *records.Stream) bool {
	verified := true
	for _, r := range s.Rules() {
		if r.Kind() != rules.KindHeader {
			continue
		}
		r.Reset()
		ok, err := safeExecute(r, ds, ctx)
		r.ProcessResult([]rules.Result{{Row: -1, Subject: r.Name(), Passed: ok && err == nil}})

		switch {
		case err != nil:
			h.log.Error().Err(err).Str("rule", r.Name()).Msg("header check failed")
			log.Add(ctx.FilePath, fmt.Sprintf(headerFailed, ctx.FilePath), false)
			verified = false
		case !ok:
			msg := r.FailMessage(rules.Result{Row: -1, Subject: r.Name()})
			h.log.Info().Str("rule", r.Name()).Msg(msg)
			log.Add(ctx.FilePath, msg, false)
			verified = false
		default:
			log.Add(ctx.FilePath, fmt.Sprintf(headerPassed, ctx.FilePath), true)
		}
	}
	return verified
}

// ruleOutcome is what running one rule produced
type ruleOutcome struct {
	results []rules.Result
	err     error
}

// ruleExecutor applies a single rule across a dataset
type ruleExecutor struct {
	transforms  rules.Transforms
	storePasses bool
	logRows     bool
	log         zerolog.Logger
}

func (e ruleExecutor) run(r *rules.Rule, ds *dataset.Dataset, ctx rules.Context, stream *records.Stream) ruleOutcome {
	r.Reset()

	var fns []rules.Transform
	if pre := r.PreValidation(); len(pre) == 0 {
		stream.Add(r.Name(), noPreValidation, true)
	} else {
		var err error
		if fns, err = e.transforms.Lookup(pre); err != nil {
			return e.failAll(r, ds, fmt.Errorf("pre-validation: %w", err))
		}
	}

	if r.IsFileRule() {
		if len(fns) > 0 && ds.HasColumn(r.Attribute()) {
			transformed, err := ds.MapColumn(r.Attribute(), func(v any) (any, error) {
				return prepare(v, fns)
			})
			if err != nil {
				return e.failAll(r, ds, err)
			}
			ds = transformed
		}
		ok, err := safeExecute(r, ds, ctx)
		res := []rules.Result{{Row: -1, Subject: r.Name(), Passed: ok && err == nil}}
		r.ProcessResult(res)
		return ruleOutcome{results: res, err: err}
	}

	column, ok := ds.Column(r.Attribute())
	if !ok {
		return e.failAll(r, ds, fmt.Errorf("%w: %q", rules.ErrMissingColumn, r.Attribute()))
	}

	results := make([]rules.Result, len(column))
	var firstErr error
	for i, original := range column {
		results[i] = rules.Result{
			Row:     i,
			Subject: r.Attribute(),
			Keys:    rowKeys(ds, i, r.Unique()),
			Value:   original,
		}

		value, err := prepare(original, fns)
		if err == nil {
			results[i].Passed, err = safeExecute(r, value, ctx)
		}
		if err != nil {
			results[i].Passed = false
			if firstErr == nil {
				firstErr = fmt.Errorf("row %d: %w", i, err)
			}
		}
		if e.logRows {
			e.log.Debug().Str("rule", r.Name()).Int("row", i).Bool("passed", results[i].Passed).
				Str("value", rules.CleanValue(original)).Msg("row evaluated")
		}
	}
	r.ProcessResult(results)
	return ruleOutcome{results: results, err: firstErr}
}

// failAll marks every row as failed when a rule cannot run at all
func (e ruleExecutor) failAll(r *rules.Rule, ds *dataset.Dataset, err error) ruleOutcome {
	if r.IsFileRule() {
		res := []rules.Result{{Row: -1, Subject: r.Name()}}
		r.ProcessResult(res)
		return ruleOutcome{results: res, err: err}
	}
	results := make([]rules.Result, ds.Len())
	for i := range results {
		results[i] = rules.Result{
			Row:     i,
			Subject: r.Attribute(),
			Keys:    rowKeys(ds, i, r.Unique()),
			Value:   ds.Value(i, r.Attribute()),
		}
	}
	r.ProcessResult(results)
	return ruleOutcome{results: results, err: err}
}

// prepare runs the pre-validation chain and trims string results
func prepare(v any, fns []rules.Transform) (any, error) {
	value, err := rules.Chain(v, fns)
	if err != nil {
		return nil, err
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return value, nil
}

// record appends the per-rule summary and, when enabled, per-row entries.
// Only the reader and the header check log under the file path.
func (e ruleExecutor) record(r *rules.Rule, out ruleOutcome, stream *records.Stream) {
	subject := r.Name()

	failed := r.FailedObjects()
	switch {
	case out.err != nil:
		stream.Add(subject, fmt.Sprintf("%s errored: %v", r.Name(), out.err), false)
	case r.IsFileRule() && len(failed) > 0:
		stream.Add(subject, r.FailMessage(failed[0]), false)
	case len(failed) > 0:
		stream.Add(subject, fmt.Sprintf("%s failed for %d of %d records", r.Name(), len(failed), len(out.results)), false)
	default:
		stream.Add(subject, fmt.Sprintf("%s passed for %d records", r.Name(), len(out.results)), true)
	}

	if r.IsFileRule() {
		return
	}
	if e.logRows || e.storePasses {
		for _, res := range failed {
			stream.Add(r.Attribute(), r.FailMessage(res), false)
		}
	}
	if e.storePasses {
		for _, res := range r.PassedObjects() {
			stream.Add(r.Attribute(), r.PassMessage(res), true)
		}
	}
}

// safeExecute runs a rule and turns a panic into an error
func safeExecute(r *rules.Rule, target any, ctx rules.Context) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = fmt.Errorf("panic in %s: %v", r.Name(), p)
		}
	}()
	return r.Execute(target, ctx)
}

func rowKeys(ds *dataset.Dataset, row int, unique []string) []any {
	keys := make([]any, len(unique))
	for i, k := range unique {
		keys[i] = ds.Value(row, k)
	}
	return keys
}
