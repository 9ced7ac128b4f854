package core

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letterReplacer spells out letters that do not decompose into ASCII.
var letterReplacer = strings.NewReplacer(
	"ß", "ss", "ẞ", "ss",
	"æ", "ae", "Æ", "ae",
	"œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
	"þ", "th", "Þ", "th",
)

// foldDiacritics strips combining marks, so "é" becomes "e".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, letterReplacer.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// NormalizeIdentifier turns a column or sheet name into the identifier used
// for validation, DDL and inserts alike:
//
//	"Sales Amount"            -> "sales_amount"
//	"Conversion Rate (%)"     -> "conversion_rate_percent"
//	"  Quarter 1 Target  "    -> "quarter_1_target"
//	"Größe"                   -> "grosse"
//	"#"                       -> "col_23"
//
// Whitespace runs become a single underscore, "%" becomes "percent", and
// accented Latin letters lose their accents. Any other character that is not
// an ASCII letter, digit or underscore is dropped. A name with nothing left
// becomes "col_" followed by the hex bytes of the trimmed name, and an empty
// name becomes "unnamed", so the result is never empty.
//
// Distinct names can still normalize alike ("A-B" and "AB"); NormalizeRow
// decides which one is kept.
func NormalizeIdentifier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}

	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range foldDiacritics(name) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = true
			continue
		case r == '%':
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteString("percent")
			continue
		case r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		default:
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	if id := collapseUnderscores(b.String()); id != "" {
		return id
	}
	return "col_" + hex.EncodeToString([]byte(name))
}

// collapseUnderscores merges the "__" left behind when punctuation between two
// separators is stripped, and trims separators at either end.
func collapseUnderscores(s string) string {
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// TableNameFromFile derives the target table from a snapshot file name:
// the extension is dropped and the stem normalized like a column name.
func TableNameFromFile(name string) string {
	base := filepath.Base(name)
	return NormalizeIdentifier(strings.TrimSuffix(base, filepath.Ext(base)))
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualifiedName returns schema.table with both parts quoted.
func qualifiedName(schema, table string) string {
	if schema == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}
