package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/missuo/flux-panel/internal/diag"
)

// Option configures entity construction.
type Option func(*options)

type options struct {
	reporter diag.Reporter
}

// WithReporter routes recoverable data-quality warnings to r.
func WithReporter(r diag.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	o.reporter = diag.OrDiscard(o.reporter)
	return o
}

// reader pulls typed values out of a decoded JSON object and records every
// problem instead of stopping at the first one.
type reader struct {
	entity string
	fields map[string]any
	issues []Issue
	rep    diag.Reporter
}

func newReader(entity string, fields map[string]any, o options) *reader {
	if fields == nil {
		fields = map[string]any{}
	}
	return &reader{entity: entity, fields: fields, rep: o.reporter}
}

func (r *reader) add(field string, kind IssueKind, detail string) {
	r.issues = append(r.issues, Issue{Field: field, Kind: kind, Detail: detail})
}

func (r *reader) hasIssue(field string) bool {
	for _, is := range r.issues {
		if is.Field == field {
			return true
		}
	}
	return false
}

func (r *reader) warn(kind diag.Kind, field, detail string, count int) {
	r.rep.Warn(diag.Warning{Kind: kind, Entity: r.entity, Field: field, Detail: detail, Count: count})
}

func (r *reader) err() error {
	if len(r.issues) == 0 {
		return nil
	}
	return &ValidationError{Entity: r.entity, Issues: r.issues}
}

func (r *reader) lookup(key string, required bool) (any, bool) {
	v, ok := r.fields[key]
	if !ok || v == nil {
		if required {
			r.add(key, MissingField, "")
		}
		return nil, false
	}
	return v, true
}

func (r *reader) has(key string) bool {
	v, ok := r.fields[key]
	return ok && v != nil
}

func (r *reader) getInt64(key string, required bool) int64 {
	v, ok := r.lookup(key, required)
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		r.add(key, TypeMismatch, err.Error())
		return 0
	}
	return n
}

func (r *reader) getInt(key string, required bool) int {
	n := r.getInt64(key, required)
	if n > math.MaxInt32 || n < math.MinInt32 {
		r.add(key, OutOfRangeValue, fmt.Sprintf("%d does not fit", n))
		return 0
	}
	return int(n)
}

func (r *reader) getString(key string, required bool) string {
	v, ok := r.lookup(key, required)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		r.add(key, TypeMismatch, fmt.Sprintf("expected string, got %s", kindOf(v)))
		return ""
	}
	return s
}

// text accepts a string or an integer and returns its textual form. Used for
// timestamps the backend sends either as dates or as epoch millis.
func (r *reader) getText(key string) string {
	v, ok := r.lookup(key, false)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	n, err := toInt64(v)
	if err != nil {
		r.add(key, TypeMismatch, fmt.Sprintf("expected string or integer, got %s", kindOf(v)))
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func (r *reader) getFloat(key string, required bool, def float64) float64 {
	v, ok := r.lookup(key, required)
	if !ok {
		return def
	}
	f, err := toFloat64(v)
	if err != nil {
		r.add(key, TypeMismatch, err.Error())
		return def
	}
	return f
}

func (r *reader) getBool(key string) (value, present bool) {
	v, ok := r.lookup(key, false)
	if !ok {
		return false, false
	}
	b, isBool := v.(bool)
	if !isBool {
		r.add(key, TypeMismatch, fmt.Sprintf("expected bool, got %s", kindOf(v)))
		return false, false
	}
	return b, true
}

func (r *reader) getObject(key string, required bool) map[string]any {
	v, ok := r.lookup(key, required)
	if !ok {
		return nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		r.add(key, TypeMismatch, fmt.Sprintf("expected object, got %s", kindOf(v)))
		return nil
	}
	return m
}

func (r *reader) getList(key string) []any {
	v, ok := r.lookup(key, false)
	if !ok {
		return nil
	}
	l, isList := v.([]any)
	if !isList {
		r.add(key, TypeMismatch, fmt.Sprintf("expected array, got %s", kindOf(v)))
		return nil
	}
	return l
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows", n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows", n)
		}
		return int64(n), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf("expected integer, got %s", kindOf(v))
	}
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	if f < -9.223372036854775808e18 || f >= 9.223372036854775808e18 {
		return 0, fmt.Errorf("integer %v overflows", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n.String())
		}
		return f, nil
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %s", kindOf(v))
		}
		return float64(i), nil
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float32, float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
