package dal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"unicode/utf8"
)

const (
	redactMask   = "********"
	redactMaxLen = 20
)

var (
	sensitiveNameRe = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|key|hash)`)

	// boundColumnRe finds "col = ?" style comparisons so positional arguments
	// can be named after the column they bind to.
	boundColumnRe = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_]*)["\x60]?\s*(?:=|<>|!=|<=|>=|<|>|\bLIKE\b)\s*\?`)
)

// Param is a named bound value as it appears in logs.
type Param struct {
	Name  string
	Value any
}

// Redact masks values whose name looks sensitive and shortens long strings to
// their first and last three characters.
func Redact(params []Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: p.Name, Value: redactValue(p.Name, p.Value)}
	}
	return out
}

func redactValue(name string, v any) any {
	if sensitiveNameRe.MatchString(name) {
		return redactMask
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		return v
	}
	if utf8.RuneCountInString(s) <= redactMaxLen {
		return s
	}
	r := []rune(s)
	return string(r[:3]) + "…" + string(r[len(r)-3:])
}

// positional names args after the columns they are compared against in query
// when every placeholder can be attributed, and "1", "2", ... otherwise.
func positional(query string, args []any) []Param {
	names := make([]string, len(args))
	matches := boundColumnRe.FindAllStringSubmatch(query, -1)
	for i := range names {
		names[i] = strconv.Itoa(i + 1)
	}
	if len(matches) == len(args) {
		for i, m := range matches {
			names[i] = m[1]
		}
	}
	params := make([]Param, len(args))
	for i, a := range args {
		params[i] = Param{Name: names[i], Value: a}
	}
	return params
}

func paramsValue(params []Param) slog.Value {
	attrs := make([]slog.Attr, len(params))
	for i, p := range params {
		attrs[i] = slog.Any(p.Name, p.Value)
	}
	return slog.GroupValue(attrs...)
}
