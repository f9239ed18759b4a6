package rules

import (
	"strings"

	"github.com/itchyny/timefmt-go"
)

// DefaultDateFormats are tried in order by date rules without formats.
var DefaultDateFormats = []string{
	"%Y-%m-%d",
	"%Y/%m/%d",
	"%d/%m/%Y",
	"%d-%m-%Y",
}

var dateTokens = strings.NewReplacer(
	"YYYY", "%Y",
	"YY", "%y",
	"MM", "%m",
	"DD", "%d",
	"HH", "%H",
	"mm", "%M",
	"ss", "%S",
)

// StrftimeFormat converts a token format such as "DD/MM/YYYY" to its
// strftime form. Formats already containing a directive are returned as is.
func StrftimeFormat(format string) string {
	if strings.Contains(format, "%") {
		return format
	}
	return dateTokens.Replace(format)
}

// IsDate reports whether value parses under any of formats, or under
// DefaultDateFormats when formats is empty.
func IsDate(value string, formats []string) bool {
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	value = strings.TrimSpace(value)
	for _, f := range formats {
		if _, err := timefmt.Parse(value, StrftimeFormat(f)); err == nil {
			return true
		}
	}
	return false
}
