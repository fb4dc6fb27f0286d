package memory

import (
	"fmt"
	"strings"
)

// matches evaluates a query clause against a document's fields.
// A nil clause matches everything.
func matches(clause map[string]any, fields map[string]any) (bool, error) {
	if len(clause) == 0 {
		return true, nil
	}
	if len(clause) != 1 {
		return false, fmt.Errorf("query clause must have exactly one key, got %d", len(clause))
	}

	for kind, body := range clause {
		switch kind {
		case "match_all":
			return true, nil

		case "term":
			field, want, err := single(body)
			if err != nil {
				return false, err
			}
			got, ok := fields[field]
			return ok && fmt.Sprint(got) == fmt.Sprint(want), nil

		case "match":
			field, want, err := single(body)
			if err != nil {
				return false, err
			}
			got, ok := fields[field]
			if !ok {
				return false, nil
			}
			return strings.Contains(strings.ToLower(fmt.Sprint(got)), strings.ToLower(fmt.Sprint(want))), nil

		case "bool":
			parts, ok := body.(map[string]any)
			if !ok {
				return false, fmt.Errorf("bool clause must be an object")
			}
			for occur, list := range parts {
				if occur != "must" && occur != "filter" {
					return false, fmt.Errorf("unsupported bool occurrence %q", occur)
				}
				clauses, err := clauseList(list)
				if err != nil {
					return false, err
				}
				for _, sub := range clauses {
					ok, err := matches(sub, fields)
					if err != nil || !ok {
						return false, err
					}
				}
			}
			return true, nil

		default:
			return false, fmt.Errorf("unsupported query clause %q", kind)
		}
	}
	return false, nil
}

func single(body any) (string, any, error) {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, fmt.Errorf("clause must name exactly one field")
	}
	for field, v := range m {
		// {"field": {"value": x}} long form
		if inner, ok := v.(map[string]any); ok {
			if value, ok := inner["value"]; ok {
				return field, value, nil
			}
			if value, ok := inner["query"]; ok {
				return field, value, nil
			}
		}
		return field, v, nil
	}
	return "", nil, nil
}

func clauseList(v any) ([]map[string]any, error) {
	switch list := v.(type) {
	case map[string]any:
		return []map[string]any{list}, nil
	case []map[string]any:
		return list, nil
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("bool clause entries must be objects")
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("bool clause must be an object or a list")
}
