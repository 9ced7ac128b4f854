package core

// convert.go coerces untyped snapshot values into the primitives contracts
// declare.
//
// Snapshot values arrive already typed when the parquet column was typed, or
// as strings when the sheet carried text. Coercion is lax in the usual ways:
//   - integers accept whole floats ("3.0") and numeric strings
//   - floats accept integers and numeric strings
//   - booleans accept yes/no, true/false, t/f, y/n, 1/0
//   - timestamps accept ISO, US and EU date layouts with optional time
//
// Text fields only accept strings. NaN floats are treated as null, the way
// columnar writers encode missing numbers.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Timestamp layouts, most specific first.
var (
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

// isNull reports whether v is a missing value.
func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	default:
		return false
	}
}

// Coerce converts v to the Go type backing ft:
// string, int64, float64, bool or time.Time.
func Coerce(v any, ft FieldType) (any, error) {
	switch ft {
	case FieldInteger:
		return CoerceInteger(v)
	case FieldFloat:
		return CoerceFloat(v)
	case FieldBool:
		return CoerceBool(v)
	case FieldTimestamp:
		return CoerceTimestamp(v)
	default:
		return CoerceText(v)
	}
}

// CoerceText accepts strings only.
func CoerceText(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("must be a string, got %s", typeName(v))
	}
	return s, nil
}

// CoerceInteger accepts integer kinds, whole floats and integer strings.
func CoerceInteger(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		return wholeFloat(x)
	case float32:
		return wholeFloat(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if numericRegex.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return wholeFloat(f)
			}
		}
		return 0, fmt.Errorf("must be a valid integer, got %q", x)
	default:
		return 0, fmt.Errorf("must be a valid integer, got %s", typeName(v))
	}
}

func wholeFloat(f float64) (int64, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("must be a valid integer, got %v", f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a valid integer, got a number with a fractional part")
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("integer out of range: %v", f)
	}
	return int64(f), nil
}

// CoerceFloat accepts numeric kinds and numeric strings.
func CoerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if numericRegex.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
		return 0, fmt.Errorf("must be a valid number, got %q", x)
	default:
		return 0, fmt.Errorf("must be a valid number, got %s", typeName(v))
	}
}

// CoerceBool accepts booleans, 0/1 integers and the usual spellings.
func CoerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case string:
		if b, ok := ParseBool(x); ok {
			return b, nil
		}
		return false, fmt.Errorf("must be yes/no, true/false, or 1/0, got %q", x)
	}
	return false, fmt.Errorf("must be a valid boolean, got %s", typeName(v))
}

// ParseBool converts common spellings of true and false.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// CoerceTimestamp accepts time.Time and date or date-time strings.
func CoerceTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		if t, ok := ParseTimestamp(x); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("must be a valid datetime, got %q", x)
	default:
		return time.Time{}, fmt.Errorf("must be a valid datetime, got %s", typeName(v))
	}
}

// ParseTimestamp parses s with the supported layouts. A value without a zone
// is a wall-clock time in time.Local, the zone the validation clock runs in.
// Two-digit years are pivoted so they never land too far in the future.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseNumeric parses spreadsheet-formatted numbers.
// Handles currency symbols, thousands separators, and accounting format
// (parentheses for negative).
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if isNegative {
		f = -f
	}
	return f, true
}

// typeName describes v's dynamic type for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case time.Time:
		return "datetime"
	default:
		return fmt.Sprintf("%T", v)
	}
}
