package core

import (
	"fmt"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkParseNumeric benchmarks numeric text parsing.
// Every numeric cell of a snapshot passes through here during type inference.
func BenchmarkParseNumeric(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"$1,234.56",
		"(123.45)",     // Accounting negative
		"1,234,567.89", // Thousands separators
		"  999.99  ",   // Whitespace
		"not a number",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumeric(tc)
		}
	}
}

// BenchmarkParseTimestamp benchmarks date text parsing.
func BenchmarkParseTimestamp(b *testing.B) {
	testCases := []string{
		"2024-01-15",
		"2024-01-15 10:30:00",
		"01/15/2024",
		"Jan 15, 2024",
		"garbage",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseTimestamp(tc)
		}
	}
}

// BenchmarkCoerceInteger benchmarks integer coercion of mixed inputs.
func BenchmarkCoerceInteger(b *testing.B) {
	inputs := []any{int64(42), 42.0, "42", "1,000"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, v := range inputs {
			CoerceInteger(v)
		}
	}
}

// ============================================================================
// Identifier Benchmarks
// ============================================================================

func BenchmarkNormalizeIdentifier(b *testing.B) {
	names := []string{"Order ID", "Sales Amount ($)", "  Geo   Location ", "quantity"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, n := range names {
			NormalizeIdentifier(n)
		}
	}
}

func BenchmarkQuoteIdentifier(b *testing.B) {
	for i := 0; i < b.N; i++ {
		quoteIdentifier("sales_amount")
	}
}

// ============================================================================
// Validation Benchmarks
// ============================================================================

func benchRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		count := any(int64(i))
		if i%10 == 0 {
			count = int64(-1) // every tenth row is invalid
		}
		rows[i] = widget(fmt.Sprintf("W%d", i), count)
	}
	return rows
}

// BenchmarkValidate benchmarks validating a typical sheet.
func BenchmarkValidate(b *testing.B) {
	rows := benchRows(1000)
	c := testContract(ExtraPermissive)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(rows, c, validationNow)
	}
}

// BenchmarkValidate_Large benchmarks validating a large sheet.
func BenchmarkValidate_Large(b *testing.B) {
	rows := benchRows(50000)
	c := testContract(ExtraPermissive)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(rows, c, validationNow)
	}
}

// ============================================================================
// Load Benchmarks
// ============================================================================

// BenchmarkBuildInsert benchmarks rendering one INSERT chunk.
func BenchmarkBuildInsert(b *testing.B) {
	valid, _ := Validate(benchRows(DefaultLoadBatchSize), testContract(ExtraPermissive), validationNow)
	cols := InferColumns(valid)
	normalized := make([]Row, len(valid))
	for i, r := range valid {
		normalized[i] = NormalizeRow(r)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := buildInsert("public", "widgets", cols, normalized); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInferColumns(b *testing.B) {
	valid, _ := Validate(benchRows(DefaultLoadBatchSize), testContract(ExtraPermissive), validationNow)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		InferColumns(valid)
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

func BenchmarkParseNumericParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ParseNumeric("$1,234.56")
		}
	})
}

func BenchmarkValidateParallel(b *testing.B) {
	rows := benchRows(100)
	c := testContract(ExtraPermissive)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Validate(rows, c, validationNow)
		}
	})
}
