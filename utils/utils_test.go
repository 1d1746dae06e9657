package utils

import (
	"testing"
)

func TestCombine(t *testing.T) {
	testCases := []struct {
		lists    [][]string
		skip     []string
		expected []string
	}{
		{[][]string{{"AAPL", "MSFT"}, {"msft ", "TSLA"}}, nil, []string{"AAPL", "MSFT", "TSLA"}},
		{[][]string{{"AAPL", "VXX"}}, []string{"VXX"}, []string{"AAPL"}},
		{[][]string{{"", "AAPL"}}, nil, []string{"AAPL"}},
		{nil, nil, nil},
	}

	for _, testCase := range testCases {
		answer := Combine(testCase.lists, testCase.skip)
		if len(answer) != len(testCase.expected) {
			t.Errorf("For %v expected %v, got %v", testCase.lists, testCase.expected, answer)
			continue
		}
		for i := range answer {
			if answer[i] != testCase.expected[i] {
				t.Errorf("For %v expected %v, got %v", testCase.lists, testCase.expected, answer)
				break
			}
		}
	}
}

func TestAlphaNumeric(t *testing.T) {
	testCases := []struct {
		s        string
		expected bool
	}{
		{"AAPL", true},
		{"BRK1", true},
		{"BRK.B", false},
		{"SPX-W", false},
		{"", false},
	}

	for _, testCase := range testCases {
		answer := AlphaNumeric(testCase.s)
		if answer != testCase.expected {
			t.Errorf("For %s expected %t, got %t", testCase.s, testCase.expected, answer)
		}
	}
}
