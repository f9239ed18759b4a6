// Package rules implements the validation rules a compiled schema is made of:
// the closed set of rule kinds, the registry that maps schema keys to them,
// and the pre-validation transforms applied to cells before a rule runs.
package rules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"file-validator-service/internal/dataset"
)

// Reserved attribute names.
const (
	AttributeFile = "FILE"
	AttributeAll  = "ALL"
)

var (
	alphaNumericRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	emailRe        = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)
	phoneRe        = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// Context is the ambient information file rules run with.
type Context struct {
	FilePath string
	FileType string
}

// Result is the outcome of a rule for one row, or for the whole file when
// Row is -1.
type Result struct {
	Row     int
	Subject string
	// Keys holds the unique-key values identifying the row.
	Keys   []any
	Value  any
	Passed bool
}

// Params are the per-schema-entry values a rule is bound with.
type Params struct {
	ValidateKey   string
	Attribute     string
	Unique        []string
	Constraint    any
	Message       string
	Tags          []string
	PreValidation []string
}

// Rule is one check bound to an attribute or to the whole file.
// Each rule owns its result state; nothing is shared between instances.
type Rule struct {
	def         Definition
	validateKey string
	attribute   string
	unique      []string
	constraint  any
	message     string
	tags        []string
	pre         []string

	patterns []*regexp.Regexp

	passed     []Result
	failed     []Result
	failedInfo any
}

// New binds def to p. An empty message or tag list falls back to the
// definition and then to the kind defaults.
func New(def Definition, p Params) *Rule {
	r := &Rule{
		def:         def,
		validateKey: p.ValidateKey,
		attribute:   p.Attribute,
		unique:      append([]string(nil), p.Unique...),
		constraint:  p.Constraint,
		message:     p.Message,
		tags:        append([]string(nil), p.Tags...),
		pre:         append([]string(nil), p.PreValidation...),
	}
	if r.message == "" {
		r.message = def.Message
	}
	if r.message == "" {
		r.message = DefaultMessage(def.Kind)
	}
	if len(r.tags) == 0 {
		r.tags = append([]string(nil), def.Tags...)
	}
	if len(r.tags) == 0 {
		r.tags = DefaultTags(def.Kind)
	}
	return r
}

// Name is the stable identifier of the rule, used as a log subject and to
// join report rows back to their rule.
func (r *Rule) Name() string {
	return fmt.Sprintf("%s<key=%s,attribute=%s>", r.Type(), r.validateKey, r.attribute)
}

func (r *Rule) String() string { return r.Name() }

func (r *Rule) Kind() Kind { return r.def.Kind }
func (r *Rule) Type() string { return r.def.TypeName() }
func (r *Rule) ValidateKey() string { return r.validateKey }
func (r *Rule) Attribute() string { return r.attribute }
func (r *Rule) Constraint() any { return r.constraint }
func (r *Rule) Message() string { return r.message }
func (r *Rule) IsFileRule() bool { return r.def.Kind.IsFileRule() }
func (r *Rule) Unique() []string { return append([]string(nil), r.unique...) }
func (r *Rule) Tags() []string { return append([]string(nil), r.tags...) }
func (r *Rule) PreValidation() []string { return append([]string(nil), r.pre...) }
func (r *Rule) PassedObjects() []Result { return append([]Result(nil), r.passed...) }
func (r *Rule) FailedObjects() []Result { return append([]Result(nil), r.failed...) }
func (r *Rule) FailedInfo() any { return r.failedInfo }
func (r *Rule) Passed() bool { return len(r.failed) == 0 }

// Category returns the first tag, or "".
func (r *Rule) Category() string {
	if len(r.tags) > 0 {
		return r.tags[0]
	}
	return ""
}

// SubCategory returns the second tag, or "".
func (r *Rule) SubCategory() string {
	if len(r.tags) > 1 {
		return r.tags[1]
	}
	return ""
}

// Reset clears the result state left by a previous run.
func (r *Rule) Reset() {
	r.passed = nil
	r.failed = nil
	r.failedInfo = nil
}

// ProcessResult partitions results into the passed and failed sets.
func (r *Rule) ProcessResult(results []Result) {
	r.passed = r.passed[:0]
	r.failed = r.failed[:0]
	for _, res := range results {
		if res.Passed {
			r.passed = append(r.passed, res)
		} else {
			r.failed = append(r.failed, res)
		}
	}
}

// Execute runs the rule. Attribute rules take a single, already transformed
// cell. File rules take the *dataset.Dataset, which FileName and FileType
// rules may leave nil.
func (r *Rule) Execute(target any, ctx Context) (bool, error) {
	if r.IsFileRule() {
		var ds *dataset.Dataset
		if target != nil {
			d, ok := target.(*dataset.Dataset)
			if !ok {
				return false, fmt.Errorf("%w: %s expects a dataset, got %T", ErrUnsupportedValue, r.Name(), target)
			}
			ds = d
		}
		return r.executeFile(ds, ctx)
	}
	if !r.def.Kind.checksEmpty() && IsEmpty(target) {
		return true, nil
	}
	return r.executeAttribute(target)
}

func (r *Rule) executeFile(ds *dataset.Dataset, ctx Context) (bool, error) {
	switch r.def.Kind {
	case KindFileName:
		base := filepath.Base(ctx.FilePath)
		r.failedInfo = base
		patterns, err := r.compiledPatterns()
		if err != nil {
			return false, err
		}
		for _, p := range patterns {
			if p.MatchString(base) {
				return true, nil
			}
		}
		return false, nil

	case KindFileType:
		r.failedInfo = ctx.FilePath
		exts, err := stringList(r.constraint)
		if err != nil {
			return false, err
		}
		for _, ext := range exts {
			if strings.Contains(ctx.FilePath, ext) {
				return true, nil
			}
		}
		return false, nil

	case KindHeader:
		if ds == nil {
			return false, fmt.Errorf("%w: %s needs a dataset", ErrUnsupportedValue, r.Name())
		}
		required, err := stringList(r.constraint)
		if err != nil {
			return false, err
		}
		missing := missingColumns(required, ds.Columns())
		if len(missing) == 0 {
			return true, nil
		}
		r.failedInfo = missing
		return false, nil

	case KindUnique:
		if ds == nil {
			return false, fmt.Errorf("%w: %s needs a dataset", ErrUnsupportedValue, r.Name())
		}
		column, ok := ds.Column(r.attribute)
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrMissingColumn, r.attribute)
		}
		counts := make(map[any]int, len(column))
		for _, v := range column {
			if IsEmpty(v) {
				continue
			}
			counts[countKey(v)]++
		}
		duplicates := make(map[any]int)
		for v, n := range counts {
			if n > 1 {
				duplicates[v] = n
			}
		}
		r.failedInfo = duplicates
		return len(duplicates) == 0, nil
	}
	return false, fmt.Errorf("%w: %s is not a file rule", ErrInvalidDefinition, r.def.Kind)
}

func (r *Rule) executeAttribute(v any) (bool, error) {
	switch r.def.Kind {
	case KindRequired, KindIsNull:
		return !IsEmpty(v), nil

	case KindIsString:
		return TypeName(v) == "str", nil

	case KindIsInteger:
		return TypeName(coerceInt(v)) == "int", nil

	case KindDataType:
		allowed, err := stringList(r.constraint)
		if err != nil {
			return false, err
		}
		if len(allowed) == 0 {
			return false, fmt.Errorf("%w: data type rule %s has no types", ErrInvalidConstraint, r.Name())
		}
		got := TypeName(v)
		for _, t := range allowed {
			want := normalizeTypeName(t)
			if want == got {
				return true, nil
			}
			if want == "int" && TypeName(coerceInt(v)) == "int" {
				return true, nil
			}
		}
		return false, nil

	case KindIsDate, KindDateFormat:
		s, ok := asString(v)
		if !ok {
			return false, fmt.Errorf("%w: date rule needs a string, got %T", ErrUnsupportedValue, v)
		}
		var formats []string
		if r.def.Kind == KindDateFormat {
			var err error
			if formats, err = stringList(r.constraint); err != nil {
				return false, err
			}
		}
		return IsDate(s, formats), nil

	case KindAttributeLength:
		s, ok := asString(v)
		if !ok {
			return false, fmt.Errorf("%w: length rule needs a string, got %T", ErrUnsupportedValue, v)
		}
		lo, hi, err := lengthBounds(r.constraint)
		if err != nil {
			return false, err
		}
		n := utf8.RuneCountInString(s)
		return lo <= n && n <= hi, nil

	case KindRegex:
		s, ok := asString(v)
		if !ok {
			return false, fmt.Errorf("%w: regex rule needs a string, got %T", ErrUnsupportedValue, v)
		}
		patterns, err := r.compiledPatterns()
		if err != nil {
			return false, err
		}
		for _, p := range patterns {
			if p.MatchString(s) {
				return true, nil
			}
		}
		return false, nil

	case KindEnum:
		for _, allowed := range anyList(r.constraint) {
			if valuesEqual(v, allowed) {
				return true, nil
			}
		}
		return false, nil

	case KindAlphaNumeric:
		return matchString(alphaNumericRe, v)

	case KindEmail:
		return matchString(emailRe, v)

	case KindPhone:
		s, ok := asString(v)
		if !ok {
			return false, fmt.Errorf("%w: phone rule needs a string, got %T", ErrUnsupportedValue, v)
		}
		return phoneRe.MatchString(phoneSeparator.Replace(s)), nil

	case KindCustom:
		if r.def.Check == nil {
			return false, fmt.Errorf("%w: %s has no check", ErrInvalidDefinition, r.Name())
		}
		return r.def.Check(v)
	}
	return false, fmt.Errorf("%w: %s is not an attribute rule", ErrInvalidDefinition, r.def.Kind)
}

func matchString(re *regexp.Regexp, v any) (bool, error) {
	s, ok := asString(v)
	if !ok {
		return false, fmt.Errorf("%w: expected a string, got %T", ErrUnsupportedValue, v)
	}
	return re.MatchString(s), nil
}

// compiledPatterns compiles the constraint patterns once. Patterns are
// anchored at the start of the value only.
func (r *Rule) compiledPatterns() ([]*regexp.Regexp, error) {
	if r.patterns != nil {
		return r.patterns, nil
	}
	raw, err := stringList(r.constraint)
	if err != nil {
		return nil, err
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConstraint, p, err)
		}
		patterns = append(patterns, re)
	}
	r.patterns = patterns
	return patterns, nil
}

func missingColumns(required, actual []string) []string {
	have := make(map[string]struct{}, len(actual))
	for _, c := range actual {
		have[c] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{})
	for _, c := range required {
		if _, ok := have[c]; ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		missing = append(missing, c)
	}
	sort.Strings(missing)
	return missing
}

// FailMessage renders the message for a failed result.
func (r *Rule) FailMessage(res Result) string {
	value := CleanValue(res.Value)
	named := map[string]any{
		"value":      value,
		"attribute":  r.attribute,
		"constraint": r.constraint,
		"info":       r.failedInfo,
		"key":        r.validateKey,
	}

	var positional []any
	switch r.def.Kind {
	case KindFileName, KindFileType:
		positional = []any{r.failedInfo, r.constraint}
	case KindHeader, KindUnique:
		positional = []any{r.failedInfo}
	case KindAttributeLength:
		positional = []any{r.attribute, r.constraint, value}
	case KindRegex, KindEnum, KindDateFormat:
		positional = []any{value, r.constraint}
	default:
		positional = []any{value}
	}
	return renderMessage(r.message, positional, named)
}

// PassMessage describes a passed result.
func (r *Rule) PassMessage(res Result) string {
	if r.IsFileRule() {
		return fmt.Sprintf("%s passed", r.Name())
	}
	return fmt.Sprintf("%s on column %s passed for record %s", r.Type(), r.attribute, CleanValue(res.Value))
}
