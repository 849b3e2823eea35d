package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report backend keys, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRanges runs the struct's validate tags and records violations as
// OutOfRangeValue issues. Fields that already failed decoding are skipped so
// a missing value is not reported twice.
func (r *reader) checkRanges(v any) {
	err := validate.Struct(v)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		r.add("", OutOfRangeValue, err.Error())
		return
	}
	for _, fe := range verrs {
		key := fe.Field()
		if r.hasIssue(key) {
			continue
		}
		r.add(key, OutOfRangeValue, describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte", "min":
		return fmt.Sprintf("%v must be >= %s", fe.Value(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%v must be <= %s", fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("%v must be > %s", fe.Value(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%v must not be below the range start", fe.Value())
	default:
		return fmt.Sprintf("%v fails %s", fe.Value(), fe.Tag())
	}
}
