package rules

import (
	"io"
	"strconv"

	"github.com/valyala/fasttemplate"
)

// renderMessage fills a message template. "{}" takes the next positional
// argument, "{N}" the N-th, and "{name}" a named argument. Placeholders that
// resolve to nothing are written back unchanged.
func renderMessage(tpl string, positional []any, named map[string]any) string {
	next := 0
	return fasttemplate.ExecuteFuncString(tpl, "{", "}", func(w io.Writer, tag string) (int, error) {
		if tag == "" {
			if next < len(positional) {
				v := positional[next]
				next++
				return io.WriteString(w, FormatValue(v))
			}
			return io.WriteString(w, "{}")
		}
		if i, err := strconv.Atoi(tag); err == nil {
			if i >= 0 && i < len(positional) {
				return io.WriteString(w, FormatValue(positional[i]))
			}
			return io.WriteString(w, "{"+tag+"}")
		}
		if v, ok := named[tag]; ok {
			return io.WriteString(w, FormatValue(v))
		}
		return io.WriteString(w, "{"+tag+"}")
	})
}
