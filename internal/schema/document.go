package schema

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a schema document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension,
// defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// StringList decodes from either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*l = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	return fmt.Errorf("line %d: expected string or list of strings", node.Line)
}

// Flag is a boolean that also accepts "true"/"false" strings.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected boolean: %w", err)
	}
	return f.parse(s)
}

func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*f = false
		return nil
	}
	return f.parse(node.Value)
}

func (f *Flag) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("expected boolean, got %q", s)
	}
	*f = Flag(b)
	return nil
}

// SubConfig is one entry of a multi-config validation.
type SubConfig struct {
	Fields        StringList `json:"fields" yaml:"fields"`
	Constraint    any        `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Message       string     `json:"message,omitempty" yaml:"message,omitempty"`
	Tags          StringList `json:"tags,omitempty" yaml:"tags,omitempty"`
	PreValidation StringList `json:"pre-validation,omitempty" yaml:"pre-validation,omitempty"`
}

// Validation is the declaration of one rule key.
type Validation struct {
	SubConfig           `yaml:",inline"`
	AllowMultipleConfig Flag        `json:"allow_multiple_config,omitempty" yaml:"allow_multiple_config,omitempty"`
	Configs             []SubConfig `json:"configs,omitempty" yaml:"configs,omitempty"`
}

// ValidationSet keeps validations in declaration order.
type ValidationSet struct {
	m *orderedmap.OrderedMap[string, Validation]
}

// NewValidationSet creates an empty set.
func NewValidationSet() *ValidationSet {
	return &ValidationSet{m: orderedmap.New[string, Validation]()}
}

func (s *ValidationSet) init() {
	if s.m == nil {
		s.m = orderedmap.New[string, Validation]()
	}
}

// Set adds or replaces the validation for key. Replacing keeps the original
// position.
func (s *ValidationSet) Set(key string, v Validation) *ValidationSet {
	s.init()
	s.m.Set(key, v)
	return s
}

// Get returns the validation declared for key.
func (s *ValidationSet) Get(key string) (Validation, bool) {
	if s == nil || s.m == nil {
		return Validation{}, false
	}
	return s.m.Get(key)
}

// Len returns the number of declared keys.
func (s *ValidationSet) Len() int {
	if s == nil || s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Keys returns the declared keys in order.
func (s *ValidationSet) Keys() []string {
	if s == nil || s.m == nil {
		return nil
	}
	keys := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (s *ValidationSet) UnmarshalJSON(data []byte) error {
	s.m = orderedmap.New[string, Validation]()
	return s.m.UnmarshalJSON(data)
}

func (s *ValidationSet) MarshalJSON() ([]byte, error) {
	s.init()
	return s.m.MarshalJSON()
}

func (s *ValidationSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: validations must be a mapping", node.Line)
	}
	s.m = orderedmap.New[string, Validation]()
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v Validation
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("validation %q: %w", node.Content[i].Value, err)
		}
		s.m.Set(node.Content[i].Value, v)
	}
	return nil
}

// Document is a parsed schema document. A document that could not be read
// or parsed is still a Document, with Invalid set.
type Document struct {
	Fields      []string
	Unique      []string
	Validations *ValidationSet
	Invalid     bool
	Messages    []string

	keys           int
	hasFields      bool
	hasValidations bool
}

type rawDocument struct {
	Fields      *StringList    `json:"fields" yaml:"fields"`
	Unique      *StringList    `json:"unique" yaml:"unique"`
	Validations *ValidationSet `json:"validations" yaml:"validations"`
	Invalid     Flag           `json:"invalid" yaml:"invalid"`
	Message     StringList     `json:"message" yaml:"message"`
}

// NewDocument builds a document in code.
func NewDocument(fields, unique []string, validations *ValidationSet) *Document {
	if validations == nil {
		validations = NewValidationSet()
	}
	return &Document{
		Fields:         append([]string(nil), fields...),
		Unique:         append([]string(nil), unique...),
		Validations:    validations,
		keys:           3,
		hasFields:      true,
		hasValidations: true,
	}
}

// InvalidDocument returns the sentinel for an unreadable document.
func InvalidDocument(messages ...string) *Document {
	return &Document{Invalid: true, Messages: messages, keys: 2}
}

// ParseDocument decodes data. It never fails: blank input gives an empty
// document and undecodable input gives the invalid sentinel.
func ParseDocument(data []byte, format Format) *Document {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Document{}
	}

	var (
		raw  rawDocument
		keys map[string]any
	)
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return InvalidDocument(fmt.Sprintf("invalid yaml document: %v", err))
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return InvalidDocument(fmt.Sprintf("invalid yaml document: %v", err))
		}
	default:
		if err := json.Unmarshal(data, &keys); err != nil {
			return InvalidDocument(fmt.Sprintf("invalid json document: %v", err))
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return InvalidDocument(fmt.Sprintf("invalid json document: %v", err))
		}
	}

	doc := &Document{
		Invalid:        bool(raw.Invalid),
		Messages:       raw.Message,
		Validations:    raw.Validations,
		keys:           len(keys),
		hasFields:      raw.Fields != nil,
		hasValidations: raw.Validations != nil,
	}
	if raw.Fields != nil {
		doc.Fields = *raw.Fields
	}
	if raw.Unique != nil {
		doc.Unique = *raw.Unique
	}
	if doc.Validations == nil {
		doc.Validations = NewValidationSet()
	}
	return doc
}

// Empty reports whether the document declares nothing at all.
func (d *Document) Empty() bool {
	return d == nil || (!d.Invalid && d.keys == 0)
}

// MissingKeys returns the required top-level keys the document lacks.
func (d *Document) MissingKeys() []string {
	var missing []string
	if !d.hasFields {
		missing = append(missing, "fields")
	}
	if !d.hasValidations {
		missing = append(missing, "validations")
	}
	return missing
}
