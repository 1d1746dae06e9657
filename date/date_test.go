package date

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekday(t *testing.T) {
	testCases := []struct {
		t        time.Time
		expected bool
	}{
		{day(2025, time.January, 3), true},  // Friday
		{day(2025, time.January, 4), false}, // Saturday
		{day(2025, time.January, 5), false}, // Sunday
		{day(2025, time.January, 6), true},  // Monday
		{day(2025, time.January, 8), true},  // Wednesday
	}

	for _, testCase := range testCases {
		answer := Weekday(testCase.t)
		if answer != testCase.expected {
			t.Errorf("For %v expected %t, got %t", testCase.t, testCase.expected, answer)
		}
	}
}

func TestPrevious(t *testing.T) {
	testCases := []struct {
		t        time.Time
		expected time.Time
	}{
		// Weekday maps to itself
		{day(2025, time.January, 10), day(2025, time.January, 10)},
		// Saturday and Sunday walk back to Friday
		{day(2025, time.January, 11), day(2025, time.January, 10)},
		{day(2025, time.January, 12), day(2025, time.January, 10)},
	}

	for _, testCase := range testCases {
		answer := Previous(testCase.t, Weekday)
		if !answer.Equal(testCase.expected) {
			t.Errorf("For %v expected %v, got %v", testCase.t, testCase.expected, answer)
		}
	}
}

func TestCandidateExpirations(t *testing.T) {
	testCases := []struct {
		start            time.Time
		end              time.Time
		includeIntraweek bool
		expected         []time.Time
	}{
		// Wed 2025-01-01 .. Fri 2025-01-10, with intraweek
		{
			day(2025, time.January, 1), day(2025, time.January, 10), true,
			[]time.Time{
				day(2025, time.January, 1),  // Wednesday
				day(2025, time.January, 3),  // Friday
				day(2025, time.January, 6),  // Monday
				day(2025, time.January, 8),  // Wednesday
				day(2025, time.January, 10), // Friday
			},
		},
		// Same range, Fridays only
		{
			day(2025, time.January, 1), day(2025, time.January, 10), false,
			[]time.Time{
				day(2025, time.January, 3),
				day(2025, time.January, 10),
			},
		},
		// Empty range
		{
			day(2025, time.January, 10), day(2025, time.January, 1), true,
			nil,
		},
	}

	for _, testCase := range testCases {
		answer := CandidateExpirations(testCase.start, testCase.end, testCase.includeIntraweek, Weekday)
		if len(answer) != len(testCase.expected) {
			t.Errorf("For %v - %v expected %v, got %v", testCase.start, testCase.end, testCase.expected, answer)
			continue
		}
		for i := range answer {
			if !answer[i].Equal(testCase.expected[i]) {
				t.Errorf("For %v - %v expected %v, got %v", testCase.start, testCase.end, testCase.expected, answer)
				break
			}
		}
	}
}

// Generation is deterministic: two runs over the same range agree.
func TestCandidateExpirationsDeterministic(t *testing.T) {
	first := CandidateExpirations(day(2025, time.January, 1), day(2025, time.March, 31), true, Weekday)
	second := CandidateExpirations(day(2025, time.January, 1), day(2025, time.March, 31), true, Weekday)

	if len(first) != len(second) {
		t.Fatalf("Expected identical lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("Run mismatch at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

// A predicate that treats 2025-01-03 as a holiday pulls the Friday candidate
// back to Thursday.
func TestCandidateExpirationsHoliday(t *testing.T) {
	holiday := day(2025, time.January, 3)
	calendar := func(d time.Time) bool {
		return Weekday(d) && !d.Equal(holiday)
	}

	answer := CandidateExpirations(day(2025, time.January, 2), day(2025, time.January, 3), false, calendar)
	if len(answer) != 1 || !answer[0].Equal(day(2025, time.January, 2)) {
		t.Errorf("Expected [2025-01-02], got %v", answer)
	}
}

func TestDTE(t *testing.T) {
	testCases := []struct {
		quote    time.Time
		expire   time.Time
		expected int
	}{
		{day(2025, time.January, 2), day(2025, time.January, 17), 15},
		{day(2025, time.January, 17), day(2025, time.January, 17), 0},
		{day(2024, time.December, 31), day(2025, time.January, 3), 3},
	}

	for _, testCase := range testCases {
		answer := DTE(testCase.quote, testCase.expire)
		if answer != testCase.expected {
			t.Errorf("For %v -> %v expected %d, got %d", testCase.quote, testCase.expire, testCase.expected, answer)
		}
	}
}

func TestRunTime(t *testing.T) {
	// 21:00 UTC is 16:00 Eastern (January, EST)
	answer := RunTime(time.Date(2025, time.January, 6, 21, 0, 0, 0, time.UTC))
	if answer != "16:00:00" {
		t.Errorf("Expected 16:00:00, got %s", answer)
	}
}
