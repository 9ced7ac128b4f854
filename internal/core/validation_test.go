package core

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

var validationNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testContract(extra ExtraMode) Contract {
	return Contract{
		Table: "widgets",
		Extra: extra,
		Fields: []FieldSpec{
			{Name: "widget_id", Type: FieldText, Checks: []Check{Matches(`^W\d+$`, "'W<digits>'")}},
			{Name: "count", Type: FieldInteger, Checks: []Check{NonNegative()}},
			{Name: "price", Type: FieldFloat, Checks: []Check{NonNegative()}},
			{Name: "limit", Type: FieldInteger, Nullable: true},
			{Name: "note", Type: FieldText, Optional: true},
			{Name: "seen_at", Type: FieldTimestamp, Checks: []Check{NotInFuture()}},
		},
		CrossRules: []CrossRule{NotGreaterThan("limit", "count")},
	}
}

func widget(id string, count any) Row {
	return Row{
		"Widget ID": id,
		"Count":     count,
		"Price":     1.5,
		"Limit":     nil,
		"Seen At":   "2024-01-01",
	}
}

// ----------------------------------------------------------------------------
// Partition Tests
// ----------------------------------------------------------------------------

func TestValidate_PartitionIsComplete(t *testing.T) {
	var rows []Row
	for i := 0; i < 50; i++ {
		count := any(int64(i % 7))
		if i%5 == 0 {
			count = int64(-1)
		}
		id := fmt.Sprintf("W%d", i)
		if i%11 == 0 {
			id = "bad"
		}
		rows = append(rows, widget(id, count))
	}

	valid, invalid := Validate(rows, testContract(ExtraPermissive), validationNow)

	if len(valid)+len(invalid) != len(rows) {
		t.Fatalf("valid (%d) + invalid (%d) != input (%d)", len(valid), len(invalid), len(rows))
	}
	for _, r := range invalid {
		if len(r.Errors) == 0 {
			t.Errorf("invalid row %v has no errors", r.Row)
		}
	}

	// input order is kept on both sides
	prev := -1
	for _, r := range valid {
		var n int
		fmt.Sscanf(r["widget_id"].(string), "W%d", &n)
		if n <= prev {
			t.Errorf("valid rows out of order: W%d after W%d", n, prev)
		}
		prev = n
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	valid, invalid := Validate(nil, testContract(ExtraPermissive), validationNow)
	if len(valid) != 0 || len(invalid) != 0 {
		t.Errorf("Validate(nil) = %d valid, %d invalid", len(valid), len(invalid))
	}
}

func TestValidate_SingleViolationRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Row)
		field   string
		message string
	}{
		{name: "negative count", mutate: func(r Row) { r["Count"] = int64(-3) }, field: "count", message: "greater than or equal to 0"},
		{name: "count not a number", mutate: func(r Row) { r["Count"] = "many" }, field: "count", message: "valid integer"},
		{name: "id pattern", mutate: func(r Row) { r["Widget ID"] = "X1" }, field: "widget_id", message: "format 'W<digits>'"},
		{name: "id wrong type", mutate: func(r Row) { r["Widget ID"] = int64(1) }, field: "widget_id", message: "must be a string"},
		{name: "missing price", mutate: func(r Row) { delete(r, "Price") }, field: "price", message: "field required"},
		{name: "null price", mutate: func(r Row) { r["Price"] = nil }, field: "price", message: "must not be null"},
		{name: "nan price", mutate: func(r Row) { r["Price"] = math.NaN() }, field: "price", message: "must not be null"},
		{name: "future", mutate: func(r Row) { r["Seen At"] = validationNow.Add(time.Minute) }, field: "seen_at", message: "future"},
		{name: "bad timestamp", mutate: func(r Row) { r["Seen At"] = "soon" }, field: "seen_at", message: "valid datetime"},
		{name: "limit above count", mutate: func(r Row) { r["Limit"] = int64(9) }, field: "limit", message: "cannot be greater than count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := widget("W1", int64(5))
			tt.mutate(row)

			valid, invalid := Validate([]Row{row}, testContract(ExtraPermissive), validationNow)
			if len(valid) != 0 || len(invalid) != 1 {
				t.Fatalf("got %d valid, %d invalid, want 0 and 1", len(valid), len(invalid))
			}
			errs := invalid[0].Errors
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%s), want 1", len(errs), invalid[0].Reason())
			}
			if errs[0].Field != tt.field {
				t.Errorf("error field = %q, want %q", errs[0].Field, tt.field)
			}
			if !strings.Contains(errs[0].Message, tt.message) {
				t.Errorf("error message = %q, want it to contain %q", errs[0].Message, tt.message)
			}
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	row := widget("nope", int64(-1))
	row["Price"] = -2.0
	row["Seen At"] = "later"

	_, invalid := Validate([]Row{row}, testContract(ExtraPermissive), validationNow)
	if len(invalid) != 1 {
		t.Fatalf("want one invalid row, got %d", len(invalid))
	}

	var fields []string
	for _, e := range invalid[0].Errors {
		fields = append(fields, e.Field)
	}
	if got := strings.Join(fields, ","); got != "widget_id,count,price,seen_at" {
		t.Errorf("failing fields = %s, want widget_id,count,price,seen_at", got)
	}

	reason := invalid[0].Reason()
	if !strings.HasPrefix(reason, "widget_id: ") || strings.Count(reason, "; ") != 3 {
		t.Errorf("Reason() = %q", reason)
	}
}

func TestValidate_CoercesValidRows(t *testing.T) {
	row := widget("W7", "12")
	row["Price"] = int64(3)
	row["Limit"] = 4.0

	valid, invalid := Validate([]Row{row}, testContract(ExtraPermissive), validationNow)
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid row: %s", invalid[0].Reason())
	}

	got := valid[0]
	if got["count"] != int64(12) {
		t.Errorf("count = %#v, want int64(12)", got["count"])
	}
	if got["price"] != 3.0 {
		t.Errorf("price = %#v, want 3.0", got["price"])
	}
	if got["limit"] != int64(4) {
		t.Errorf("limit = %#v, want int64(4)", got["limit"])
	}
	if ts, ok := got["seen_at"].(time.Time); !ok || !ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)) {
		t.Errorf("seen_at = %#v", got["seen_at"])
	}
	if _, ok := got["note"]; ok {
		t.Error("absent optional field should stay absent")
	}
}

func TestValidate_InvalidRowKeepsOriginalValues(t *testing.T) {
	row := widget("W1", "-3")
	_, invalid := Validate([]Row{row}, testContract(ExtraPermissive), validationNow)
	if len(invalid) != 1 {
		t.Fatal("expected one invalid row")
	}
	if invalid[0].Row["count"] != "-3" {
		t.Errorf("invalid row count = %#v, want original string", invalid[0].Row["count"])
	}
	if _, ok := invalid[0].Row["Count"]; ok {
		t.Error("invalid row should use normalized column names")
	}
}

// ----------------------------------------------------------------------------
// Extra column Tests
// ----------------------------------------------------------------------------

func TestValidate_ExtraModes(t *testing.T) {
	tests := []struct {
		mode      ExtraMode
		wantValid bool
		wantKept  bool
	}{
		{mode: ExtraPermissive, wantValid: true, wantKept: true},
		{mode: ExtraIgnore, wantValid: true, wantKept: false},
		{mode: ExtraStrict, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			row := widget("W1", int64(1))
			row["Colour"] = "red"
			row["Batch Note"] = "x"

			valid, invalid := Validate([]Row{row}, testContract(tt.mode), validationNow)
			if (len(valid) == 1) != tt.wantValid {
				t.Fatalf("valid = %d, want valid %v", len(valid), tt.wantValid)
			}
			if !tt.wantValid {
				errs := invalid[0].Errors
				if len(errs) != 2 || errs[0].Field != "batch_note" || errs[1].Field != "colour" {
					t.Errorf("strict errors = %v, want batch_note then colour", errs)
				}
				return
			}
			_, kept := valid[0]["colour"]
			if kept != tt.wantKept {
				t.Errorf("extra column kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// NormalizeRow Tests
// ----------------------------------------------------------------------------

func TestNormalizeRow(t *testing.T) {
	got := NormalizeRow(Row{"Sales Amount": 1.0, " Region ": "North", "Rate (%)": 2.0})
	want := map[string]any{"sales_amount": 1.0, "region": "North", "rate_percent": 2.0}

	if len(got) != len(want) {
		t.Fatalf("NormalizeRow = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestNormalizeRow_CollisionFirstSortedWins(t *testing.T) {
	got := NormalizeRow(Row{"Order ID": 1, "order_id": 2, "Order  Id": 3})
	if len(got) != 1 {
		t.Fatalf("want a single column, got %v", got)
	}
	// "Order  Id" < "Order ID" < "order_id" byte-wise
	if got["order_id"] != 3 {
		t.Errorf("order_id = %v, want 3", got["order_id"])
	}
}

func TestValidate_RecentLocalTimestampAhead(t *testing.T) {
	loc := time.FixedZone("UTC+4", 4*3600)
	withLocalZone(t, loc)

	now := time.Now()
	row := widget("W8", int64(1))
	row["Seen At"] = now.In(loc).Add(-time.Hour).Format("2006-01-02 15:04:05")

	valid, invalid := Validate([]Row{row}, testContract(ExtraStrict), now)
	if len(invalid) != 0 {
		t.Fatalf("timestamp one hour ago rejected: %s", invalid[0].Reason())
	}
	if len(valid) != 1 {
		t.Fatalf("valid = %d, want 1", len(valid))
	}
}

func TestValidate_SymbolHeaderGetsColumnName(t *testing.T) {
	row := widget("W9", int64(2))
	row["#"] = int64(1)
	row["数量"] = "x"

	valid, invalid := Validate([]Row{row}, testContract(ExtraPermissive), validationNow)
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid row: %s", invalid[0].Reason())
	}
	got := valid[0]
	if _, ok := got[""]; ok {
		t.Fatal("valid row carries an empty column name")
	}
	if got["col_23"] != int64(1) {
		t.Errorf("col_23 = %#v, want int64(1)", got["col_23"])
	}
	if got["col_e695b0e9878f"] != "x" {
		t.Errorf("col_e695b0e9878f = %#v, want \"x\"", got["col_e695b0e9878f"])
	}

	ddl := CreateTableSQL("public", "widgets", InferColumns(valid))
	if strings.Contains(ddl, `""`) {
		t.Errorf("DDL has an empty identifier: %s", ddl)
	}
	if !strings.Contains(ddl, `"col_23" BIGINT`) {
		t.Errorf("DDL = %s, want col_23 BIGINT", ddl)
	}
}
