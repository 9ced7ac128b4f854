package core

import (
	"math"
	"strings"
	"testing"
	"time"
)

var checkNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// ----------------------------------------------------------------------------
// Field check Tests
// ----------------------------------------------------------------------------

func TestFieldChecks(t *testing.T) {
	tests := []struct {
		name    string
		check   Check
		input   any
		wantErr string
	}{
		{name: "non-negative zero int", check: NonNegative(), input: int64(0)},
		{name: "non-negative float", check: NonNegative(), input: 0.01},
		{name: "negative int", check: NonNegative(), input: int64(-1), wantErr: "greater than or equal to 0"},
		{name: "negative float", check: NonNegative(), input: -0.5, wantErr: "greater than or equal to 0"},

		{name: "between low edge", check: Between(18, 65), input: int64(18)},
		{name: "between high edge", check: Between(18, 65), input: int64(65)},
		{name: "below range", check: Between(18, 65), input: int64(17), wantErr: "between 18 and 65"},
		{name: "above range", check: Between(18, 65), input: int64(66), wantErr: "between 18 and 65"},

		{name: "one of member", check: OneOf("North", "South"), input: "South"},
		{name: "one of with dash", check: OneOf("Call", "Follow-up"), input: "Follow-up"},
		{name: "one of is case sensitive", check: OneOf("North", "South"), input: "north", wantErr: "must be one of: North, South"},
		{name: "one of rejects padding", check: OneOf("North"), input: " North", wantErr: "must be one of"},

		{name: "pattern ok", check: Matches(`^Customer \d+$`, "'Customer X'"), input: "Customer 12"},
		{name: "pattern mismatch", check: Matches(`^Customer \d+$`, "'Customer X'"), input: "Customer X", wantErr: "format 'Customer X'"},
		{name: "pattern suffix", check: Matches(`^Product [A-Z]$`, "'Product X'"), input: "Product AB", wantErr: "format"},

		{name: "rep with letters", check: PrefixedLetters("Rep "), input: "Rep Alice"},
		{name: "rep with digits", check: PrefixedLetters("Rep "), input: "Rep 7", wantErr: "followed by letters"},
		{name: "rep without name", check: PrefixedLetters("Rep "), input: "Rep ", wantErr: "followed by letters"},
		{name: "rep wrong prefix", check: PrefixedLetters("Rep "), input: "Agent Bob", wantErr: "followed by letters"},
		{name: "rep with space in name", check: PrefixedLetters("Rep "), input: "Rep Al Bo", wantErr: "followed by letters"},

		{name: "past timestamp", check: NotInFuture(), input: checkNow.Add(-time.Hour)},
		{name: "now timestamp", check: NotInFuture(), input: checkNow},
		{name: "future timestamp", check: NotInFuture(), input: checkNow.Add(time.Second), wantErr: "future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.input, checkNow)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Cross rule Tests
// ----------------------------------------------------------------------------

func TestStrictlyAfter(t *testing.T) {
	rule := StrictlyAfter("end_date", "start_date")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := rule.Check(Row{"start_date": start, "end_date": start.Add(time.Minute)}); err != nil {
		t.Errorf("later end rejected: %v", err)
	}
	if err := rule.Check(Row{"start_date": start, "end_date": start}); err == nil {
		t.Error("equal end accepted, want strictly after")
	}
	if err := rule.Check(Row{"start_date": start, "end_date": start.Add(-time.Hour)}); err == nil {
		t.Error("earlier end accepted")
	}
	if rule.Name != "end_date" {
		t.Errorf("rule reports against %q, want end_date", rule.Name)
	}
}

func TestNotGreaterThan(t *testing.T) {
	rule := NotGreaterThan("reorder_level", "stock_level")

	tests := []struct {
		name    string
		row     Row
		wantErr bool
	}{
		{name: "below", row: Row{"reorder_level": int64(5), "stock_level": int64(10)}},
		{name: "equal", row: Row{"reorder_level": int64(10), "stock_level": int64(10)}},
		{name: "above", row: Row{"reorder_level": int64(11), "stock_level": int64(10)}, wantErr: true},
		{name: "above zero stock", row: Row{"reorder_level": int64(1), "stock_level": int64(0)}, wantErr: true},
		{name: "null reorder", row: Row{"reorder_level": nil, "stock_level": int64(0)}},
	}

	for _, tt := range tests {
		err := rule.Check(tt.row)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSumEquals(t *testing.T) {
	rule := SumEquals("yearly_target", "q1", "q2", "q3", "q4")
	row := func(yearly float64) Row {
		return Row{"q1": 100.0, "q2": 200.0, "q3": 300.0, "q4": 400.0, "yearly_target": yearly}
	}

	if err := rule.Check(row(1000)); err != nil {
		t.Errorf("exact sum rejected: %v", err)
	}
	if err := rule.Check(row(math.Nextafter(1000, 2000))); err == nil {
		t.Error("sum off by one ulp accepted, want exact comparison")
	}
	if err := rule.Check(row(999.99)); err == nil {
		t.Error("short sum accepted")
	}

	// 0.1 + 0.2 summed left to right is not 0.3 in float64
	q1, q2 := 0.1, 0.2
	fractional := Row{"q1": q1, "q2": q2, "q3": 0.0, "q4": 0.0, "yearly_target": q1 + q2}
	if err := rule.Check(fractional); err != nil {
		t.Errorf("left-to-right float sum rejected: %v", err)
	}
	fractional["yearly_target"] = 0.3
	if err := rule.Check(fractional); err == nil {
		t.Error("0.3 accepted although 0.1+0.2 != 0.3 in float64")
	}
}

// ----------------------------------------------------------------------------
// Local wall-clock Tests
// ----------------------------------------------------------------------------

// withLocalZone sets time.Local for the duration of the test.
func withLocalZone(t *testing.T, loc *time.Location) {
	t.Helper()
	old := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = old })
}

func TestNotInFuture_LocalWallClock(t *testing.T) {
	for _, offset := range []int{4, -5, 0} {
		loc := time.FixedZone("test", offset*3600)
		withLocalZone(t, loc)

		now := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
		tests := []struct {
			input   string
			wantErr bool
		}{
			{now.Add(-time.Hour).Format("2006-01-02 15:04:05"), false},
			{now.Add(-time.Minute).Format("1/2/2006 15:04"), false},
			{now.Format("2006-01-02"), false},
			{now.Add(time.Hour).Format("2006-01-02 15:04:05"), true},
		}

		for _, tt := range tests {
			ts, err := CoerceTimestamp(tt.input)
			if err != nil {
				t.Fatalf("UTC%+d CoerceTimestamp(%q) error: %v", offset, tt.input, err)
			}
			err = NotInFuture()(ts, now)
			if (err != nil) != tt.wantErr {
				t.Errorf("UTC%+d NotInFuture(%q) error = %v, wantErr %v", offset, tt.input, err, tt.wantErr)
			}
		}
	}
}
