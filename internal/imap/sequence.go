package imap

import (
	"strconv"
	"strings"
	"time"
)

// last is the internal sentinel for '*' in a sequence set. Ranges
// ending in '*' keep the sentinel until Resolve/Matches, because the
// same parsed set may be evaluated against different collections.
const last = -1

// seqRange is one comma-separated part of a sequence set. A single
// number has Start == End. A bare '*' has Start == End == last. An
// open range "a:*" has End == last.
type seqRange struct {
	Start int
	End   int
}

// SequenceSet is the parsed form of an IMAP sequence-set expression
// such as "1,2:5,7" or "2:*".
type SequenceSet struct {
	ranges []seqRange
}

// ParseSequenceSet parses a sequence-set expression. Malformed parts
// (non-numeric, empty between commas) are skipped, never fatal; an
// expression with no valid parts parses to an empty set. Whitespace
// around commas and colons is tolerated.
func ParseSequenceSet(expr string) SequenceSet {
	var set SequenceSet

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if part == "*" {
			set.ranges = append(set.ranges, seqRange{Start: last, End: last})
			continue
		}

		if colon := strings.Index(part, ":"); colon != -1 {
			startStr := strings.TrimSpace(part[:colon])
			endStr := strings.TrimSpace(part[colon+1:])

			start, err := strconv.Atoi(startStr)
			if err != nil || start < 1 {
				continue
			}

			if endStr == "*" {
				set.ranges = append(set.ranges, seqRange{Start: start, End: last})
				continue
			}

			end, err := strconv.Atoi(endStr)
			if err != nil || end < 1 {
				continue
			}
			if start > end {
				start, end = end, start
			}
			set.ranges = append(set.ranges, seqRange{Start: start, End: end})
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			continue
		}
		set.ranges = append(set.ranges, seqRange{Start: n, End: n})
	}

	return set
}

// Empty reports whether the expression parsed to zero valid parts.
func (s SequenceSet) Empty() bool {
	return len(s.ranges) == 0
}

// Resolve expands the set against a collection whose last element is
// lastValue, deduplicating while preserving first-seen order. Bare
// '*' resolves to the single last element; "a:*" to [a..lastValue].
// Values beyond lastValue are dropped.
func (s SequenceSet) Resolve(lastValue int) []int {
	seen := make(map[int]bool)
	var out []int

	add := func(n int) {
		if n < 1 || n > lastValue || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	for _, r := range s.ranges {
		switch {
		case r.Start == last:
			add(lastValue)
		case r.End == last:
			for n := r.Start; n <= lastValue; n++ {
				add(n)
			}
		default:
			for n := r.Start; n <= r.End; n++ {
				add(n)
			}
		}
	}

	return out
}

// Matches reports whether n is addressed by the set, where lastValue
// is the terminal element of the collection being addressed. Unlike
// Resolve this never expands open ranges, so it is the right tool for
// sparse UID spaces.
func (s SequenceSet) Matches(n, lastValue int) bool {
	for _, r := range s.ranges {
		switch {
		case r.Start == last:
			if n == lastValue {
				return true
			}
		case r.End == last:
			if n >= r.Start {
				return true
			}
		default:
			if n >= r.Start && n <= r.End {
				return true
			}
		}
	}
	return false
}

// String renders the set in canonical form; re-parsing the result
// yields an equivalent set.
func (s SequenceSet) String() string {
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		switch {
		case r.Start == last:
			parts = append(parts, "*")
		case r.End == last:
			parts = append(parts, strconv.Itoa(r.Start)+":*")
		case r.Start == r.End:
			parts = append(parts, strconv.Itoa(r.Start))
		default:
			parts = append(parts, strconv.Itoa(r.Start)+":"+strconv.Itoa(r.End))
		}
	}
	return strings.Join(parts, ",")
}

// imapDateLayout is the RFC 3501 date form used by SEARCH SINCE.
// time.Parse accepts both "8-Jan-2026" and "08-Jan-2026" with this layout.
const imapDateLayout = "2-Jan-2006"

// ParseIMAPDate parses a SEARCH date ("08-Jan-2026") as UTC midnight.
func ParseIMAPDate(s string) (time.Time, error) {
	s = strings.Trim(s, "\"")
	t, err := time.Parse(imapDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
