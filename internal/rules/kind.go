package rules

import "fmt"

// Kind selects the check a Rule performs. The set is closed: every kind is
// handled by the switch in Rule.Execute.
type Kind int

const (
	KindFileName Kind = iota + 1
	KindFileType
	KindHeader
	KindUnique
	KindDataType
	KindIsString
	KindIsInteger
	KindIsNull
	KindRequired
	KindIsDate
	KindDateFormat
	KindAttributeLength
	KindRegex
	KindEnum
	KindAlphaNumeric
	KindEmail
	KindPhone
	KindCustom
)

var kindNames = map[Kind]string{
	KindFileName:        "FileNameValidation",
	KindFileType:        "FileTypeValidation",
	KindHeader:          "HeaderValidation",
	KindUnique:          "UniqueAttributeValidation",
	KindDataType:        "DataTypeAttributeValidation",
	KindIsString:        "IsStringAttributeValidation",
	KindIsInteger:       "IsIntegerAttributeValidation",
	KindIsNull:          "IsNullAttributeValidation",
	KindRequired:        "RequiredAttributeValidation",
	KindIsDate:          "IsDateAttributeValidation",
	KindDateFormat:      "DateFormatAttributeValidation",
	KindAttributeLength: "AttributeLengthValidation",
	KindRegex:           "RegexAttributeValidation",
	KindEnum:            "EnumAttributeValidation",
	KindAlphaNumeric:    "AlphaNumericAttributeValidation",
	KindEmail:           "EmailValidation",
	KindPhone:           "PhoneValidation",
	KindCustom:          "CustomAttributeValidation",
}

// String returns the display type name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsFileRule reports whether rules of this kind run once against the whole
// dataset instead of once per cell.
func (k Kind) IsFileRule() bool {
	switch k {
	case KindFileName, KindFileType, KindHeader, KindUnique:
		return true
	}
	return false
}

// checksEmpty reports whether the kind inspects empty values itself.
// All other attribute kinds pass on an empty cell without running.
func (k Kind) checksEmpty() bool {
	return k == KindRequired || k == KindIsNull
}

const (
	prefixFileName   = "Verify File Name: "
	prefixFileExtn   = "Verify File Extension: "
	prefixHeader     = "Verify field names: "
	prefixDuplicates = "Verify duplicates: "
)

// defaultMessages are used when neither the schema nor the definition
// supplies a message template.
var defaultMessages = map[Kind]string{
	KindFileName:        prefixFileName + "Failed for {}. Expected format is {}",
	KindFileType:        prefixFileExtn + "Failed for {}. Expected format is {}",
	KindHeader:          prefixHeader + "Failed Missing columns are {}",
	KindUnique:          prefixDuplicates + "Failed for {}",
	KindDataType:        "Value {value} of {attribute} is not of type {constraint}",
	KindIsString:        "Value {value} of {attribute} is not a string",
	KindIsInteger:       "Value {value} of {attribute} is not an integer",
	KindIsNull:          "{attribute} must not be null",
	KindRequired:        "{attribute} is required",
	KindIsDate:          "Value {value} of {attribute} is not a date",
	KindDateFormat:      "Value {} of {attribute} does not match date format {}",
	KindAttributeLength: "Length of {} must be within {}, got {}",
	KindRegex:           "Value {} of {attribute} does not match {}",
	KindEnum:            "Value {} of {attribute} must be one of {}",
	KindAlphaNumeric:    "Value {} of {attribute} is not alphanumeric",
	KindEmail:           "Value {} of {attribute} is not a valid email",
	KindPhone:           "Value {} of {attribute} is not a valid phone number",
	KindCustom:          "Value {value} of {attribute} failed validation",
}

// defaultTags are the report category labels of a kind.
var defaultTags = map[Kind][]string{
	KindFileName:        {"File Structure"},
	KindFileType:        {"File Structure"},
	KindHeader:          {"File Structure"},
	KindUnique:          {"Attribute", "Duplicates"},
	KindDataType:        {"Attribute", "Data Type"},
	KindIsString:        {"Attribute", "Data Type"},
	KindIsInteger:       {"Attribute", "Data Type"},
	KindIsDate:          {"Attribute", "Data Type"},
	KindDateFormat:      {"Attribute", "Format"},
	KindAttributeLength: {"Attribute", "Length"},
	KindRegex:           {"Attribute", "Format"},
	KindEnum:            {"Attribute", "Allowed Values"},
	KindAlphaNumeric:    {"Attribute", "Format"},
	KindEmail:           {"Attribute", "Format"},
	KindPhone:           {"Attribute", "Format"},
	KindIsNull:          {"Attribute", "Completeness"},
	KindRequired:        {"Attribute", "Completeness"},
	KindCustom:          {"Attribute"},
}

// DefaultMessage returns the built-in message template of the kind.
func DefaultMessage(k Kind) string {
	return defaultMessages[k]
}

// DefaultTags returns a copy of the built-in tags of the kind.
func DefaultTags(k Kind) []string {
	return append([]string(nil), defaultTags[k]...)
}
