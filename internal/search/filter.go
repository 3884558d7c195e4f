package search

import "strings"

// Filter is one structured filter clause. Building the index expression
// from typed clauses keeps user-supplied values out of the expression
// syntax.
type Filter struct {
	Field string
	Value string
}

// Eq builds an equality clause.
func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// CompileFilters renders clauses as an AND-joined equality expression in
// the index's filter language. Clauses with an empty value are skipped;
// an empty result means "no filter".
func CompileFilters(filters []Filter) string {
	var parts []string
	for _, f := range filters {
		if f.Field == "" || f.Value == "" {
			continue
		}
		parts = append(parts, f.Field+` = "`+escapeValue(f.Value)+`"`)
	}
	return strings.Join(parts, " AND ")
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
