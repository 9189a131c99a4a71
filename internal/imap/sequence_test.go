package imap

import (
	"reflect"
	"testing"
	"time"
)

func TestParseSequenceSet_Resolve(t *testing.T) {
	tests := []struct {
		expr     string
		lastVal  int
		expected []int
	}{
		{"2", 10, []int{2}},
		{"2:5", 10, []int{2, 3, 4, 5}},
		{"2:2", 10, []int{2}},
		{"5:2", 10, []int{2, 3, 4, 5}}, // swapped bounds normalize
		{"2:*", 5, []int{2, 3, 4, 5}},
		{"*", 5, []int{5}},
		{"1,,3", 10, []int{1, 3}},
		{"1, 2: 5, 7", 10, []int{1, 2, 3, 4, 5, 7}},
		{"abc", 10, nil},
		{"", 10, nil},
		{"3,1:2,3", 10, []int{3, 1, 2}}, // dedup, first-seen order
		{"8:*", 5, nil},                 // start beyond last
		{"4:*", 5, []int{4, 5}},
	}

	for _, tt := range tests {
		set := ParseSequenceSet(tt.expr)
		got := set.Resolve(tt.lastVal)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ParseSequenceSet(%q).Resolve(%d): expected %v, got %v",
				tt.expr, tt.lastVal, tt.expected, got)
		}
	}
}

func TestParseSequenceSet_Empty(t *testing.T) {
	if !ParseSequenceSet("abc").Empty() {
		t.Error("Expected 'abc' to parse to an empty set")
	}
	if !ParseSequenceSet("").Empty() {
		t.Error("Expected '' to parse to an empty set")
	}
	if !ParseSequenceSet("x:y,-3,0").Empty() {
		t.Error("Expected all-garbage expression to parse to an empty set")
	}
	if ParseSequenceSet("1,,3").Empty() {
		t.Error("Expected '1,,3' to keep its valid tokens")
	}
	if ParseSequenceSet("*").Empty() {
		t.Error("Expected '*' to be a non-empty set")
	}
}

func TestSequenceSet_Matches(t *testing.T) {
	tests := []struct {
		expr    string
		n       int
		lastVal int
		want    bool
	}{
		{"7", 7, 10, true},
		{"7", 8, 10, false},
		{"2:5", 3, 10, true},
		{"2:5", 6, 10, false},
		{"2:*", 100, 10, true}, // open range ignores lastVal
		{"2:*", 1, 10, false},
		{"*", 10, 10, true},
		{"*", 9, 10, false},
		{"1,2:5,7", 7, 10, true},
		{"1,2:5,7", 6, 10, false},
	}

	for _, tt := range tests {
		set := ParseSequenceSet(tt.expr)
		if got := set.Matches(tt.n, tt.lastVal); got != tt.want {
			t.Errorf("ParseSequenceSet(%q).Matches(%d, %d): expected %v, got %v",
				tt.expr, tt.n, tt.lastVal, tt.want, got)
		}
	}
}

func TestSequenceSet_CanonicalRoundTrip(t *testing.T) {
	// Re-parsing a set's own canonical serialization is idempotent.
	exprs := []string{"2", "2:5", "2:*", "*", "1, 2: 5, 7", "5:2", "1,,3"}
	for _, expr := range exprs {
		set := ParseSequenceSet(expr)
		canonical := set.String()
		reparsed := ParseSequenceSet(canonical)
		if reparsed.String() != canonical {
			t.Errorf("Round trip of %q: expected '%s', got '%s'",
				expr, canonical, reparsed.String())
		}
		if !reflect.DeepEqual(reparsed.Resolve(10), set.Resolve(10)) {
			t.Errorf("Round trip of %q resolves differently: %v vs %v",
				expr, set.Resolve(10), reparsed.Resolve(10))
		}
	}
}

func TestSequenceSet_String(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
	}{
		{"2", "2"},
		{"2:5", "2:5"},
		{"2:2", "2"},
		{"5:2", "2:5"},
		{"2:*", "2:*"},
		{"*", "*"},
		{"1, 2: 5, 7", "1,2:5,7"},
	}
	for _, tt := range tests {
		if got := ParseSequenceSet(tt.expr).String(); got != tt.expected {
			t.Errorf("ParseSequenceSet(%q).String(): expected '%s', got '%s'",
				tt.expr, tt.expected, got)
		}
	}
}

func TestParseIMAPDate(t *testing.T) {
	d, err := ParseIMAPDate("08-Jan-2026")
	if err != nil {
		t.Fatalf("ParseIMAPDate failed: %v", err)
	}
	expected := time.Date(2026, time.January, 8, 0, 0, 0, 0, time.UTC)
	if !d.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, d)
	}

	// Quoted form is tolerated
	d, err = ParseIMAPDate("\"24-Aug-2026\"")
	if err != nil {
		t.Fatalf("ParseIMAPDate failed for quoted date: %v", err)
	}
	if d.Day() != 24 || d.Month() != time.August {
		t.Errorf("Unexpected parsed date: %v", d)
	}

	if _, err := ParseIMAPDate("2026-01-08"); err == nil {
		t.Error("Expected error for non-IMAP date format")
	}
}
