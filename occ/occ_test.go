package occ

import (
	"testing"
	"time"
)

func TestBuild(t *testing.T) {
	testCases := []struct {
		symbol     string
		expiration time.Time
		side       byte
		strike     float64
		expected   string
	}{
		{"AAPL", time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC), Call, 150.0, "AAPL250117C00150000"},
		{"AAPL", time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC), Put, 150.0, "AAPL250117P00150000"},
		{"F", time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC), Put, 9.5, "F241220P00009500"},
		{"spy", time.Date(2025, time.March, 21, 0, 0, 0, 0, time.UTC), Call, 612.0, "SPY250321C00612000"},
		{"TSLA", time.Date(2025, time.June, 6, 0, 0, 0, 0, time.UTC), Call, 1000.0, "TSLA250606C01000000"},
		// 0.005 rounds up, not truncates
		{"IWM", time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC), Call, 217.005, "IWM250103C00217005"},
	}

	for _, testCase := range testCases {
		answer := Build(testCase.symbol, testCase.expiration, testCase.side, testCase.strike)
		if answer != testCase.expected {
			t.Errorf("For %s %v %c %f expected %s, got %s", testCase.symbol, testCase.expiration, testCase.side, testCase.strike, testCase.expected, answer)
		}
	}
}
