package core

// checks.go provides the rule builders contracts are assembled from.
//
// Bound and membership checks delegate to go-playground/validator tags so the
// comparison semantics (numeric kinds, quoted enum members) are the library's;
// patterns and temporal checks are plain Go.

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// tagCheck runs a validator tag against the value and reports msg on failure.
func tagCheck(tag, msg string) Check {
	return func(v any, _ time.Time) error {
		if err := validate.Var(v, tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return errors.New(msg)
			}
			return fmt.Errorf("%s: %w", msg, err)
		}
		return nil
	}
}

// NonNegative rejects values below zero.
func NonNegative() Check {
	return tagCheck("gte=0", "must be greater than or equal to 0")
}

// Between rejects integers outside [lo, hi].
func Between(lo, hi int) Check {
	return tagCheck(fmt.Sprintf("gte=%d,lte=%d", lo, hi),
		fmt.Sprintf("must be between %d and %d", lo, hi))
}

// OneOf rejects strings that are not exactly one of values.
func OneOf(values ...string) Check {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	tag := "oneof=" + strings.Join(quoted, " ")
	allowed := strings.Join(values, ", ")

	return func(v any, _ time.Time) error {
		if err := validate.Var(v, tag); err != nil {
			return fmt.Errorf("%q is invalid, must be one of: %s", v, allowed)
		}
		return nil
	}
}

// Matches rejects strings that do not match pattern. format describes the
// expected shape in the error message.
func Matches(pattern, format string) Check {
	re := regexp.MustCompile(pattern)
	return func(v any, _ time.Time) error {
		s, _ := v.(string)
		if !re.MatchString(s) {
			return fmt.Errorf("must be in the format %s", format)
		}
		return nil
	}
}

// PrefixedLetters requires prefix followed by one or more letters only,
// e.g. "Rep " + "Alice".
func PrefixedLetters(prefix string) Check {
	return func(v any, _ time.Time) error {
		s, _ := v.(string)
		rest, ok := strings.CutPrefix(s, prefix)
		if !ok || rest == "" || strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			return fmt.Errorf("must start with %q followed by letters", prefix)
		}
		return nil
	}
}

// NotInFuture rejects timestamps after the validation clock.
func NotInFuture() Check {
	return func(v any, now time.Time) error {
		t, _ := v.(time.Time)
		if t.After(now) {
			return errors.New("cannot be in the future")
		}
		return nil
	}
}

// ============================================================================
// Cross-field rules
// ============================================================================

// StrictlyAfter requires field to be later than earlier.
func StrictlyAfter(field, earlier string) CrossRule {
	return CrossRule{
		Name:   field,
		Fields: []string{field, earlier},
		Check: func(r Row) error {
			end, _ := r[field].(time.Time)
			start, _ := r[earlier].(time.Time)
			if !end.After(start) {
				return fmt.Errorf("must be strictly after %s", earlier)
			}
			return nil
		},
	}
}

// NotGreaterThan requires field <= limit. A null field passes.
func NotGreaterThan(field, limit string) CrossRule {
	return CrossRule{
		Name:   field,
		Fields: []string{field, limit},
		Check: func(r Row) error {
			if r[field] == nil || r[limit] == nil {
				return nil
			}
			v, err := CoerceFloat(r[field])
			if err != nil {
				return err
			}
			l, err := CoerceFloat(r[limit])
			if err != nil {
				return err
			}
			if v > l {
				return fmt.Errorf("cannot be greater than %s", limit)
			}
			return nil
		},
	}
}

// SumEquals requires field to equal the sum of parts exactly. Parts are
// summed left to right in float64, so any nonzero difference fails.
func SumEquals(field string, parts ...string) CrossRule {
	fields := append([]string{field}, parts...)
	return CrossRule{
		Name:   field,
		Fields: fields,
		Check: func(r Row) error {
			total, err := CoerceFloat(r[field])
			if err != nil {
				return err
			}
			var sum float64
			for _, p := range parts {
				v, err := CoerceFloat(r[p])
				if err != nil {
					return err
				}
				sum += v
			}
			if total != sum {
				return fmt.Errorf("%v does not match the sum of %s (%v)", total, strings.Join(parts, " + "), sum)
			}
			return nil
		},
	}
}
