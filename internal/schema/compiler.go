// Package schema turns a schema document into an ordered list of bound
// validation rules.
package schema

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"file-validator-service/internal/logging"
	"file-validator-service/internal/rules"
)

// Options select, per document-shape problem, between returning an error
// and compiling an empty schema.
type Options struct {
	SilentEmpty       bool `koanf:"silent_empty"`
	SilentInvalid     bool `koanf:"silent_invalid"`
	SilentMissingKeys bool `koanf:"silent_missing_keys"`
}

// DefaultOptions silences every document-shape problem.
func DefaultOptions() Options {
	return Options{SilentEmpty: true, SilentInvalid: true, SilentMissingKeys: true}
}

// Schema is a compiled schema. Its rule list is fixed once compiled; the
// rules themselves receive execution results.
type Schema struct {
	schemaType string
	fields     []string
	unique     []string
	rules      []*rules.Rule
}

// Type returns the schema type the schema was compiled for.
func (s *Schema) Type() string { return s.schemaType }

// Fields returns the declared fields in document order.
func (s *Schema) Fields() []string { return append([]string(nil), s.fields...) }

// Unique returns the declared unique-key fields.
func (s *Schema) Unique() []string { return append([]string(nil), s.unique...) }

// Rules returns the compiled rules in declaration order.
func (s *Schema) Rules() []*rules.Rule { return append([]*rules.Rule(nil), s.rules...) }

// Empty reports whether compilation was skipped.
func (s *Schema) Empty() bool { return len(s.fields) == 0 && len(s.rules) == 0 }

// Compiler compiles documents against a rule registry.
type Compiler struct {
	registry *rules.Registry
	opts     Options
	log      zerolog.Logger
}

// NewCompiler creates a compiler. A nil registry gets the base registry.
func NewCompiler(registry *rules.Registry, opts Options) *Compiler {
	if registry == nil {
		registry = rules.NewBaseRegistry()
	}
	return &Compiler{
		registry: registry,
		opts:     opts,
		log:      logging.Component("schema"),
	}
}

// Registry returns the registry rule keys are resolved against.
func (c *Compiler) Registry() *rules.Registry { return c.registry }

// Register adds feature-level rule keys to the compiler's registry.
func (c *Compiler) Register(m rules.Mapping) ([]rules.DuplicateMapping, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: empty mapping", rules.ErrInvalidDefinition)
	}
	return c.registry.Register(m)
}

// Compile binds every validation in doc to its declared fields.
func (c *Compiler) Compile(schemaType string, doc *Document) (*Schema, error) {
	empty := &Schema{schemaType: schemaType}

	if doc.Empty() {
		if c.opts.SilentEmpty {
			c.log.Warn().Str("schema_type", schemaType).Msg("empty schema document, skipping")
			return empty, nil
		}
		return nil, ErrEmptySchema
	}
	if doc.Invalid {
		if c.opts.SilentInvalid {
			c.log.Warn().Str("schema_type", schemaType).Strs("messages", doc.Messages).Msg("invalid schema document, skipping")
			return empty, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(doc.Messages, "; "))
	}
	if missing := doc.MissingKeys(); len(missing) > 0 {
		if c.opts.SilentMissingKeys {
			c.log.Warn().Str("schema_type", schemaType).Strs("missing", missing).Msg("schema document missing keys, skipping")
			return empty, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrSchemaMissingFields, strings.Join(missing, ", "))
	}

	if c.registry.Len() == 0 {
		return nil, fmt.Errorf("%w: base validation mapping needs to be declared", ErrNotDeclaredValidationMapping)
	}
	if len(doc.Fields) == 0 {
		return nil, ErrNotDeclaredFields
	}
	if len(doc.Unique) == 0 {
		return nil, ErrNotDeclaredUniqueFields
	}

	s := &Schema{
		schemaType: schemaType,
		fields:     append([]string(nil), doc.Fields...),
		unique:     append([]string(nil), doc.Unique...),
	}
	declared := make(map[string]struct{}, len(s.fields)+2)
	for _, f := range s.fields {
		declared[f] = struct{}{}
	}
	declared[rules.AttributeFile] = struct{}{}
	declared[rules.AttributeAll] = struct{}{}

	for _, key := range doc.Validations.Keys() {
		v, _ := doc.Validations.Get(key)
		def, ok := c.registry.Resolve(key)
		if !ok {
			return nil, fmt.Errorf("%w: please define rule for %q", ErrNotDeclaredValidationMapping, key)
		}

		if v.AllowMultipleConfig && len(v.Configs) > 0 {
			for _, sub := range v.Configs {
				params := resolve(v.SubConfig, sub)
				s.rules = append(s.rules, c.bind(s, def, key, sub.Fields, declared, params)...)
			}
			continue
		}
		params := resolve(v.SubConfig, SubConfig{})
		s.rules = append(s.rules, c.bind(s, def, key, v.Fields, declared, params)...)
	}

	c.log.Debug().Str("schema_type", schemaType).Int("rules", len(s.rules)).Int("fields", len(s.fields)).Msg("schema compiled")
	return s, nil
}

// resolve applies sub-config over parent. Empty values count as absent;
// anything still empty falls back to the definition defaults in rules.New.
func resolve(parent, sub SubConfig) rules.Params {
	p := rules.Params{
		Constraint:    parent.Constraint,
		Message:       parent.Message,
		Tags:          parent.Tags,
		PreValidation: parent.PreValidation,
	}
	if !emptyConstraint(sub.Constraint) {
		p.Constraint = sub.Constraint
	}
	if sub.Message != "" {
		p.Message = sub.Message
	}
	if len(sub.Tags) > 0 {
		p.Tags = sub.Tags
	}
	if len(sub.PreValidation) > 0 {
		p.PreValidation = sub.PreValidation
	}
	if emptyConstraint(p.Constraint) {
		p.Constraint = nil
	}
	return p
}

func emptyConstraint(c any) bool {
	switch x := c.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// bind creates one rule per field of the entry that is declared in the
// schema or reserved.
func (c *Compiler) bind(s *Schema, def rules.Definition, key string, fields []string, declared map[string]struct{}, p rules.Params) []*rules.Rule {
	bindsColumn := !def.Kind.IsFileRule() || def.Kind == rules.KindUnique

	var attributes []string
	seen := make(map[string]struct{})
	add := func(a string) {
		if _, dup := seen[a]; !dup {
			seen[a] = struct{}{}
			attributes = append(attributes, a)
		}
	}
	for _, field := range fields {
		if _, ok := declared[field]; !ok {
			continue
		}
		switch {
		case bindsColumn && field == rules.AttributeAll:
			for _, f := range s.fields {
				add(f)
			}
		case bindsColumn && field == rules.AttributeFile:
			c.log.Warn().Str("key", key).Msg("column rule declared on FILE, skipping")
		default:
			add(field)
		}
	}

	if def.Kind == rules.KindHeader && p.Constraint == nil {
		p.Constraint = s.Fields()
	}

	out := make([]*rules.Rule, 0, len(attributes))
	for _, attr := range attributes {
		params := p
		params.ValidateKey = key
		params.Attribute = attr
		params.Unique = s.unique
		out = append(out, rules.New(def, params))
	}
	return out
}
