package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"file-validator-service/internal/logging"
)

var (
	ErrInvalidDefinition = errors.New("invalid rule definition")
	ErrInvalidConstraint = errors.New("invalid constraint")
	ErrUnsupportedValue  = errors.New("unsupported value")
	ErrUnknownTransform  = errors.New("unknown pre-validation transform")
	ErrMissingColumn     = errors.New("column not found in dataset")
)

// CheckFunc is the predicate of a custom attribute rule.
type CheckFunc func(value any) (bool, error)

// Definition is what a rule key resolves to: the kind to run plus the
// defaults a schema entry may override.
type Definition struct {
	Kind Kind
	// Type overrides the kind's display name, so custom rules can be told apart.
	Type    string
	Message string
	Tags    []string
	Check   CheckFunc
}

// TypeName returns the display type name of rules built from d.
func (d Definition) TypeName() string {
	if d.Type != "" {
		return d.Type
	}
	return d.Kind.String()
}

func (d Definition) validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidDefinition, int(d.Kind))
	}
	if d.Kind == KindCustom && d.Check == nil {
		return fmt.Errorf("%w: custom rule %s has no check", ErrInvalidDefinition, d.TypeName())
	}
	return nil
}

// Mapping maps schema rule keys to definitions.
type Mapping map[string]Definition

// BaseMapping returns the built-in rule keys.
func BaseMapping() Mapping {
	return Mapping{
		"required":             {Kind: KindRequired},
		"check_not_null":       {Kind: KindIsNull},
		"check_date":           {Kind: KindIsDate},
		"file_name":            {Kind: KindFileName},
		"file_type":            {Kind: KindFileType},
		"check_column_headers": {Kind: KindHeader},
		"check_string":         {Kind: KindIsString},
		"check_int":            {Kind: KindIsInteger},
		"check_data_type":      {Kind: KindDataType},
		"check_unique":         {Kind: KindUnique},
		"attribute_length":     {Kind: KindAttributeLength},
		"match_regex":          {Kind: KindRegex},
		"match_enum":           {Kind: KindEnum},
		"match_date_format":    {Kind: KindDateFormat},
		"check_alphanumeric":   {Kind: KindAlphaNumeric},
		"email":                {Kind: KindEmail},
		"phone":                {Kind: KindPhone},
	}
}

// DuplicateMapping describes a registration that collided with an existing
// entry, either on the key or on the rule type.
type DuplicateMapping struct {
	Key         string
	ExistingKey string
	Previous    string
	Current     string
}

// KeyCollision reports whether the same key was registered twice.
func (d DuplicateMapping) KeyCollision() bool {
	return d.Key == d.ExistingKey
}

func (d DuplicateMapping) Error() string {
	if d.KeyCollision() {
		return fmt.Sprintf("duplicate rule mapping: key %q remapped from %s to %s", d.Key, d.Previous, d.Current)
	}
	return fmt.Sprintf("duplicate rule mapping: type %s registered under %q and %q", d.Current, d.ExistingKey, d.Key)
}

// Registry resolves schema rule keys. One registry belongs to one compiler;
// it is not safe for concurrent registration.
type Registry struct {
	defs       map[string]Definition
	duplicates []DuplicateMapping
	log        zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
		log:  logging.Component("registry"),
	}
}

// NewBaseRegistry creates a registry seeded with BaseMapping.
func NewBaseRegistry() *Registry {
	r := NewRegistry()
	if _, err := r.Register(BaseMapping()); err != nil {
		panic(err)
	}
	return r
}

// Register adds m to the registry. Definitions are validated first and
// nothing is registered when one is invalid. A key that is already present
// is remapped, and every key or type collision is logged, kept on the
// registry and returned.
func (r *Registry) Register(m Mapping) ([]DuplicateMapping, error) {
	keys := make([]string, 0, len(m))
	for k, def := range m {
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("register %q: %w", k, err)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var found []DuplicateMapping
	for _, key := range keys {
		def := m[key]
		if prev, ok := r.defs[key]; ok {
			found = append(found, DuplicateMapping{
				Key:         key,
				ExistingKey: key,
				Previous:    prev.TypeName(),
				Current:     def.TypeName(),
			})
		}
		for _, existing := range r.sortedKeys() {
			if existing != key && r.defs[existing].TypeName() == def.TypeName() {
				found = append(found, DuplicateMapping{
					Key:         key,
					ExistingKey: existing,
					Previous:    r.defs[existing].TypeName(),
					Current:     def.TypeName(),
				})
			}
		}
		def.Tags = append([]string(nil), def.Tags...)
		r.defs[key] = def
	}

	for _, d := range found {
		r.log.Warn().Str("key", d.Key).Str("existing_key", d.ExistingKey).
			Str("previous", d.Previous).Str("current", d.Current).Msg("duplicate rule mapping")
	}
	r.duplicates = append(r.duplicates, found...)
	return found, nil
}

// Resolve looks up the definition registered under key.
func (r *Registry) Resolve(key string) (Definition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	return r.sortedKeys()
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Duplicates returns every collision seen by this registry.
func (r *Registry) Duplicates() []DuplicateMapping {
	return append([]DuplicateMapping(nil), r.duplicates...)
}

func (r *Registry) sortedKeys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
