package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Optional top-level money fields we may drop or normalize so the overall
// document can still validate. Required fields are never touched.
var optMoney = []string{"vatAmount"}

// Optional per-row money fields.
var optRowMoney = []string{"quantity", "unitPrice", "exclVAT", "vatRate"}

// SanitizeOptionalFields removes or normalizes OPTIONAL fields that do not
// meet the stricter schema, so a mostly-good extraction is not discarded
// over one malformed optional.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}

	for _, k := range optMoney {
		if !sanitizeMoney(m, k) {
			dropped = append(dropped, k)
		}
	}
	if v, ok := m["dueDate"].(string); ok && strings.TrimSpace(v) == "" {
		delete(m, "dueDate")
		dropped = append(dropped, "dueDate")
	}

	if rows, ok := m["articleRows"].([]any); ok {
		for i, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range optRowMoney {
				if !sanitizeMoney(row, k) {
					dropped = append(dropped, fmt.Sprintf("articleRows[%d].%s", i, k))
				}
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, err
	}
	return out, dropped, nil
}

// sanitizeMoney normalizes a money value in place. Reports false when the
// field had to be dropped.
func sanitizeMoney(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return true
	}
	switch t := v.(type) {
	case nil:
		delete(m, k)
		return false
	case float64:
		m[k] = fmt.Sprintf("%.2f", t)
		return true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, k)
			return false
		}
		m[k] = s
		return true
	default:
		delete(m, k)
		return false
	}
}
