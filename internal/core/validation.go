package core

// validation.go partitions a sheet's rows against a contract.
//
// Validation happens in three passes per row:
//  1. Column names are normalized with NormalizeIdentifier
//  2. Each declared field is checked for presence, nullability, type and rules
//  3. Cross-field rules run over the fields that passed step 2
//
// A row with any failure is rejected whole, carrying every failure found.
// Validation never returns an error: a sheet where nothing passes simply
// yields no valid rows.

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Normalized column name
	Value   string // The offending value, formatted
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Reason joins every violation into the text stored in the quarantine
// errors column.
func (r InvalidRow) Reason() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Validate splits rows into those satisfying c and those that do not.
// Every input row lands on exactly one side, in input order. Valid rows have
// normalized column names and coerced values; invalid rows keep the original
// values under normalized names. now is the clock temporal rules compare to.
func Validate(rows []Row, c Contract, now time.Time) ([]Row, []InvalidRow) {
	valid := make([]Row, 0, len(rows))
	var invalid []InvalidRow

	for _, raw := range rows {
		norm := NormalizeRow(raw)
		out, errs := validateRow(norm, c, now)
		if len(errs) > 0 {
			invalid = append(invalid, InvalidRow{Row: norm, Errors: errs})
			continue
		}
		valid = append(valid, out)
	}

	return valid, invalid
}

// NormalizeRow renames every column with NormalizeIdentifier. When two raw
// names collide, the one sorting first wins.
func NormalizeRow(raw Row) Row {
	keys := raw.Columns()
	sort.Strings(keys)

	out := make(Row, len(raw))
	for _, k := range keys {
		name := NormalizeIdentifier(k)
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = raw[k]
	}
	return out
}

func validateRow(row Row, c Contract, now time.Time) (Row, []ValidationError) {
	out := make(Row, len(row))
	var errs []ValidationError
	failed := make(map[string]bool)

	for _, f := range c.Fields {
		v, present := row[f.Name]
		if !present {
			if f.Optional {
				continue
			}
			failed[f.Name] = true
			errs = append(errs, ValidationError{Field: f.Name, Message: "field required"})
			continue
		}

		if isNull(v) {
			if f.Nullable || f.Optional {
				out[f.Name] = nil
				continue
			}
			failed[f.Name] = true
			errs = append(errs, ValidationError{Field: f.Name, Message: "must not be null"})
			continue
		}

		cv, err := Coerce(v, f.Type)
		if err != nil {
			failed[f.Name] = true
			errs = append(errs, ValidationError{Field: f.Name, Value: FormatValue(v), Message: err.Error()})
			continue
		}

		for _, check := range f.Checks {
			if err := check(cv, now); err != nil {
				failed[f.Name] = true
				errs = append(errs, ValidationError{Field: f.Name, Value: FormatValue(v), Message: err.Error()})
			}
		}
		out[f.Name] = cv
	}

	for _, rule := range c.CrossRules {
		if !crossRuleReady(rule, out, failed) {
			continue
		}
		if err := rule.Check(out); err != nil {
			errs = append(errs, ValidationError{Field: rule.Name, Value: FormatValue(out[rule.Name]), Message: err.Error()})
		}
	}

	for name, v := range row {
		if _, declared := c.Field(name); declared {
			continue
		}
		switch c.Extra {
		case ExtraPermissive:
			out[name] = v
		case ExtraStrict:
			errs = append(errs, ValidationError{Field: name, Value: FormatValue(v), Message: "extra inputs are not permitted"})
		}
	}

	// map iteration above makes strict-mode extras unordered
	sortExtraErrors(errs, c)
	return out, errs
}

// crossRuleReady reports whether every field the rule reads passed its own
// checks and holds a value.
func crossRuleReady(rule CrossRule, row Row, failed map[string]bool) bool {
	for _, f := range rule.Fields {
		if failed[f] || row[f] == nil {
			return false
		}
	}
	return true
}

// sortExtraErrors orders undeclared-column errors by name, after all others.
func sortExtraErrors(errs []ValidationError, c Contract) {
	isExtra := func(e ValidationError) bool {
		_, declared := c.Field(e.Field)
		return !declared && e.Message == "extra inputs are not permitted"
	}
	sort.SliceStable(errs, func(i, j int) bool {
		ei, ej := isExtra(errs[i]), isExtra(errs[j])
		if ei != ej {
			return !ei
		}
		if ei {
			return errs[i].Field < errs[j].Field
		}
		return false
	})
}

// FormatValue renders a cell for error messages, text columns and quarantine files.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
