package clean

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Essential fields the cleaner tries to resolve from the raw table. A missing
// visitor column is a structural failure; the others degrade the output.
const (
	FieldName     = "name"
	FieldCity     = "city"
	FieldCountry  = "country"
	FieldVisitors = "visitors"
)

// Schema maps cleaned field names to column indexes in the raw table.
type Schema struct {
	VisitorCol int
	Fields     map[string]int // name/city/country -> column index
}

// NormalizeLabel standardizes a raw column label: trim, lowercase, spaces to
// underscores. Matching is only ever done against normalized labels.
func NormalizeLabel(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// visitorColumnPriority lists exact normalized names tried first when
// locating the visitor-count column.
var visitorColumnPriority = []string{"visitors_in_2024", "visitors"}

// DiscoverSchema resolves column meaning for a semi-structured table by
// best-effort name matching. The visitor-text column is located by priority:
// exact "visitors_in_2024", exact "visitors", then any column containing
// "visitors" together with "2024" or "year". Failure to find it is a
// structural error. Name, city, and country resolve exact-match first, then
// substring; an unresolved one is simply absent from Fields.
func DiscoverSchema(columns []string) (*Schema, error) {
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeLabel(c)
	}

	visitorCol := -1
	for _, want := range visitorColumnPriority {
		for i, col := range normalized {
			if col == want {
				visitorCol = i
				break
			}
		}
		if visitorCol >= 0 {
			break
		}
	}
	if visitorCol < 0 {
		for i, col := range normalized {
			if strings.Contains(col, "visitors") &&
				(strings.Contains(col, "2024") || strings.Contains(col, "year")) {
				visitorCol = i
				break
			}
		}
	}
	if visitorCol < 0 {
		return nil, eris.Errorf("schema: no visitor column among %v", normalized)
	}

	s := &Schema{VisitorCol: visitorCol, Fields: make(map[string]int)}
	for _, target := range []string{FieldName, FieldCity, FieldCountry} {
		if idx, ok := matchColumn(normalized, target, visitorCol); ok {
			s.Fields[target] = idx
		}
	}
	return s, nil
}

// matchColumn finds the column for a target field: exact normalized match
// first, then the first column containing the target as a substring. The
// visitor column is excluded so "visitors" never shadows another field.
func matchColumn(normalized []string, target string, visitorCol int) (int, bool) {
	for i, col := range normalized {
		if i != visitorCol && col == target {
			return i, true
		}
	}
	for i, col := range normalized {
		if i != visitorCol && strings.Contains(col, target) {
			return i, true
		}
	}
	return 0, false
}
