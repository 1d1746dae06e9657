// Package date holds the trading-calendar heuristics used to enumerate
// candidate option expirations. There is no holiday calendar here; a
// "trading day" is any weekday. Callers that need a real exchange
// calendar can substitute their own TradingDay predicate.
package date

import (
	"sort"
	"time"
)

// TradingDay reports whether the market was (heuristically) open on a day.
type TradingDay func(time.Time) bool

// Weekday is the default TradingDay: Monday through Friday.
func Weekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Previous walks backward from t to the most recent trading day at or before it.
func Previous(t time.Time, isTradingDay TradingDay) time.Time {
	for !isTradingDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// CandidateExpirations enumerates plausible option expirations in [start, end].
// Fridays are always candidates. Mondays and Wednesdays are candidates when
// includeIntraweek is set. Each candidate maps to the most recent trading day
// at or before it, so a weekend-landing date collapses onto the prior weekday.
// The result is deduplicated and ascending.
func CandidateExpirations(start, end time.Time, includeIntraweek bool, isTradingDay TradingDay) []time.Time {
	if isTradingDay == nil {
		isTradingDay = Weekday
	}

	seen := make(map[time.Time]bool)

	for d := Midnight(start); !d.After(Midnight(end)); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Friday:
			seen[Previous(d, isTradingDay)] = true
		case time.Monday, time.Wednesday:
			if includeIntraweek {
				seen[Previous(d, isTradingDay)] = true
			}
		}
	}

	var expirations []time.Time
	for d := range seen {
		expirations = append(expirations, d)
	}

	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })

	return expirations
}

// Midnight truncates t to the start of its day in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DTE returns whole days between the quote date and the expiration date.
func DTE(quoteDate, expireDate time.Time) int {
	return int(Midnight(expireDate).Sub(Midnight(quoteDate)).Hours() / 24)
}

// RunTime returns the current Eastern wall-clock time as HH:MM:SS. The EOD
// snapshot runs on a market-hours schedule, so the stored key uses market time.
func RunTime(now time.Time) string {
	// The market runs on Eastern time.
	eastern, _ := time.LoadLocation("America/New_York")
	return now.In(eastern).Format("15:04:05")
}
