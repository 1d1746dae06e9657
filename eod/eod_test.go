package eod

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikbryant/optionsdb/store"
	"github.com/erikbryant/optionsdb/tradier"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

type fakeSource struct {
	last        *float64
	expirations []string
	chains      map[string][]tradier.ChainOption
	failQuote   error
}

func (f *fakeSource) Quote(symbol string) (*float64, error) {
	return f.last, f.failQuote
}

func (f *fakeSource) Expirations(symbol string) ([]string, error) {
	return f.expirations, nil
}

func (f *fakeSource) Chain(symbol, expiration string) ([]tradier.ChainOption, error) {
	return f.chains[expiration], nil
}

type fakeSink struct {
	rows []store.ChainRow
}

func (f *fakeSink) UpsertChain(rows []store.ChainRow) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func TestChainRows(t *testing.T) {
	quoteDate := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	expireDate := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)

	chain := []tradier.ChainOption{
		{Symbol: "XYZ250117C00100000", Strike: f64(100), Bid: f64(4.0), Ask: f64(6.0), Volume: i64(12), OptionType: "call"},
		{Symbol: "XYZ250117P00100000", Strike: f64(100), Bid: f64(1.0), Ask: f64(2.0), OptionType: "put"},
		// Put-only strike
		{Symbol: "XYZ250117P00090000", Strike: f64(90), Bid: f64(0.5), OptionType: "put"},
		// Strikeless entries are dropped
		{Symbol: "XYZ250117C00000000", OptionType: "call"},
	}

	rows := chainRows("XYZ", quoteDate, "16:00:00", f64(110), expireDate, chain)
	require.Len(t, rows, 2)

	// Ascending by strike
	assert.Equal(t, 90.0, rows[0].Strike)
	assert.Equal(t, 100.0, rows[1].Strike)

	paired := rows[1]
	require.NotNil(t, paired.CallMid)
	assert.Equal(t, 5.0, *paired.CallMid)
	require.NotNil(t, paired.PutMid)
	assert.Equal(t, 1.5, *paired.PutMid)
	require.NotNil(t, paired.CallSymbol)
	assert.Equal(t, "XYZ250117C00100000", *paired.CallSymbol)
	assert.Equal(t, 15, paired.DTE)

	require.NotNil(t, paired.ItmPercCalls)
	assert.InDelta(t, 10.0, *paired.ItmPercCalls, 1e-9)
	require.NotNil(t, paired.ItmPercPuts)
	assert.InDelta(t, -10.0, *paired.ItmPercPuts, 1e-9)

	putOnly := rows[0]
	assert.Nil(t, putOnly.CallSymbol)
	assert.Nil(t, putOnly.CallMid)
	assert.Nil(t, putOnly.PutMid, "missing ask means no mid")
	require.NotNil(t, putOnly.PutBid)
}

func TestItmPercentsNullCases(t *testing.T) {
	c, p := itmPercents(nil, 100)
	assert.Nil(t, c)
	assert.Nil(t, p)

	c, p = itmPercents(f64(0), 100)
	assert.Nil(t, c)
	assert.Nil(t, p)

	c, p = itmPercents(f64(100), 0)
	assert.Nil(t, c)
	assert.Nil(t, p)
}

// Pacing: with pauses configured, a run sleeps between tickers and between
// each ticker's expirations.
func TestRunHonorsPauses(t *testing.T) {
	src := &fakeSource{
		last:        f64(110),
		expirations: []string{"2025-01-17", "2025-01-24"},
		chains: map[string][]tradier.ChainOption{
			"2025-01-17": {{Symbol: "XYZ250117C00100000", Strike: f64(100), OptionType: "call"}},
			"2025-01-24": {{Symbol: "XYZ250124C00100000", Strike: f64(100), OptionType: "call"}},
		},
	}
	sink := &fakeSink{}

	job := NewJob(src, sink, []string{"XYZ", "ABC"})
	job.TickerPause = 20 * time.Millisecond
	job.ExpirationPause = 10 * time.Millisecond

	t0 := time.Now()
	require.NoError(t, job.Run(time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC)))

	// 2 tickers x 2 expirations x 10ms plus 2 x 20ms between tickers.
	assert.GreaterOrEqual(t, time.Since(t0), 80*time.Millisecond)
	assert.Len(t, sink.rows, 4)
}

func TestRunSkipsFailingTicker(t *testing.T) {
	good := &fakeSource{
		last:        f64(110),
		expirations: []string{"2025-01-17"},
		chains: map[string][]tradier.ChainOption{
			"2025-01-17": {
				{Symbol: "C1", Strike: f64(100), Bid: f64(1), Ask: f64(3), OptionType: "call"},
			},
		},
	}

	sink := &fakeSink{}

	// First ticker fails at the quote; the second succeeds.
	src := &switchSource{
		bad:  &fakeSource{failQuote: errors.New("boom")},
		good: good,
	}

	job := NewJob(src, sink, []string{"BAD", "GOOD"})
	err := job.Run(time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, sink.rows, 1)
	assert.Equal(t, "GOOD", sink.rows[0].Symbol)
	assert.Equal(t, "16:00:00", sink.rows[0].RunTime)
}

// switchSource routes BAD to the failing source and everything else to good.
type switchSource struct {
	bad  *fakeSource
	good *fakeSource
}

func (s *switchSource) pick(symbol string) *fakeSource {
	if symbol == "BAD" {
		return s.bad
	}
	return s.good
}

func (s *switchSource) Quote(symbol string) (*float64, error) {
	return s.pick(symbol).Quote(symbol)
}

func (s *switchSource) Expirations(symbol string) ([]string, error) {
	return s.pick(symbol).Expirations(symbol)
}

func (s *switchSource) Chain(symbol, expiration string) ([]tradier.ChainOption, error) {
	return s.pick(symbol).Chain(symbol, expiration)
}
