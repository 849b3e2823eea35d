package model

import "fmt"

// BuildList builds every row of a decoded JSON array. Rows that fail are
// skipped and collected into a *ListError; the good rows are always
// returned.
func BuildList[T any](entity string, rows []any, build func(map[string]any, ...Option) (T, error), opts ...Option) ([]T, error) {
	out := make([]T, 0, len(rows))
	var skipped map[int]error
	for i, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			if skipped == nil {
				skipped = make(map[int]error)
			}
			skipped[i] = &ValidationError{Entity: entity, Issues: []Issue{{
				Kind:   TypeMismatch,
				Detail: fmt.Sprintf("row is %s, not an object", kindOf(row)),
			}}}
			continue
		}
		v, err := build(m, opts...)
		if err != nil {
			if skipped == nil {
				skipped = make(map[int]error)
			}
			skipped[i] = err
			continue
		}
		out = append(out, v)
	}
	if len(skipped) > 0 {
		return out, &ListError{Entity: entity, Skipped: skipped}
	}
	return out, nil
}
