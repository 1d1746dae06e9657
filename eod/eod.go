// Package eod takes end-of-day option chain snapshots. Unlike the
// historical pipeline, the API serves authoritative expiration and strike
// lists here, so there is no inference: fetch, pair calls with puts by
// strike, derive mids, and upsert.
package eod

import (
	"math"
	"sort"
	"time"

	"github.com/erikbryant/optionsdb/date"
	"github.com/erikbryant/optionsdb/store"
	"github.com/erikbryant/optionsdb/tradier"
	log "github.com/sirupsen/logrus"
)

// Source is the slice of the market-data API the snapshot consumes.
type Source interface {
	Quote(symbol string) (*float64, error)
	Expirations(symbol string) ([]string, error)
	Chain(symbol, expiration string) ([]tradier.ChainOption, error)
}

// Sink receives the snapshot rows.
type Sink interface {
	UpsertChain(rows []store.ChainRow) error
}

// Job snapshots the full chain for a list of tickers. One row per strike,
// keyed by (quoteDate, runTime, symbol, expireDate, strike) so morning and
// closing runs on the same day coexist.
type Job struct {
	src     Source
	db      Sink
	Tickers []string
	// Pauses between tickers and between a ticker's expirations. Both
	// default to zero; the client's 429 backoff handles throttling, so set
	// these only when a run keeps tripping the rate limit anyway.
	TickerPause     time.Duration
	ExpirationPause time.Duration
}

// NewJob wires a Source and Sink into a snapshot job.
func NewJob(src Source, db Sink, tickers []string) *Job {
	return &Job{src: src, db: db, Tickers: tickers}
}

// Run snapshots every ticker. A ticker's failure is logged and skipped; one
// bad symbol must not sink the whole run.
func (j *Job) Run(now time.Time) error {
	quoteDate := date.Midnight(now)
	runTime := date.RunTime(now)

	log.Infof("run start: %d tickers, quoteDate=%s runTime=%s",
		len(j.Tickers), quoteDate.Format("2006-01-02"), runTime)

	for _, ticker := range j.Tickers {
		t0 := time.Now()

		total, err := j.snapshot(ticker, quoteDate, runTime)
		if err != nil {
			log.Errorf("%s: failed: %v", ticker, err)
			continue
		}

		log.Infof("%s: saved %d rows in %.2fs", ticker, total, time.Since(t0).Seconds())

		if j.TickerPause > 0 {
			time.Sleep(j.TickerPause)
		}
	}

	log.Infof("run complete: quoteDate=%s runTime=%s", quoteDate.Format("2006-01-02"), runTime)

	return nil
}

// snapshot stores one ticker's full chain and returns the row count.
func (j *Job) snapshot(ticker string, quoteDate time.Time, runTime string) (int, error) {
	underlyingLast, err := j.src.Quote(ticker)
	if err != nil {
		return 0, err
	}
	if underlyingLast == nil {
		log.Warnf("%s: no last price from quotes; itm percentages will be null", ticker)
	}

	expirations, err := j.src.Expirations(ticker)
	if err != nil {
		return 0, err
	}
	if len(expirations) == 0 {
		log.Warnf("%s: no expirations", ticker)
		return 0, nil
	}

	total := 0

	for _, expiration := range expirations {
		chain, err := j.src.Chain(ticker, expiration)
		if err != nil {
			return total, err
		}
		if len(chain) == 0 {
			continue
		}

		expireDate, err := time.Parse("2006-01-02", expiration)
		if err != nil {
			log.Warnf("%s: unparseable expiration %s", ticker, expiration)
			continue
		}

		rows := chainRows(ticker, quoteDate, runTime, underlyingLast, expireDate, chain)
		if err := j.db.UpsertChain(rows); err != nil {
			return total, err
		}

		total += len(rows)

		if j.ExpirationPause > 0 {
			time.Sleep(j.ExpirationPause)
		}
	}

	return total, nil
}

// chainRows pairs the chain's calls and puts by strike and derives the
// per-strike fields. Strikes are keyed in mils to dodge float equality.
func chainRows(symbol string, quoteDate time.Time, runTime string, underlyingLast *float64, expireDate time.Time, chain []tradier.ChainOption) []store.ChainRow {
	calls := make(map[int64]tradier.ChainOption)
	puts := make(map[int64]tradier.ChainOption)

	for _, o := range chain {
		if o.Strike == nil {
			continue
		}
		strikeMils := int64(math.Round(*o.Strike * 1000))
		switch o.OptionType {
		case "call":
			calls[strikeMils] = o
		case "put":
			puts[strikeMils] = o
		}
	}

	strikeSet := make(map[int64]bool)
	for k := range calls {
		strikeSet[k] = true
	}
	for k := range puts {
		strikeSet[k] = true
	}

	var strikes []int64
	for k := range strikeSet {
		strikes = append(strikes, k)
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i] < strikes[j] })

	dte := date.DTE(quoteDate, expireDate)

	var rows []store.ChainRow

	for _, strikeMils := range strikes {
		strike := float64(strikeMils) / 1000.0
		call := calls[strikeMils]
		put := puts[strikeMils]

		row := store.ChainRow{
			Symbol:         symbol,
			QuoteDate:      quoteDate,
			RunTime:        runTime,
			UnderlyingLast: underlyingLast,
			ExpireDate:     expireDate,
			Strike:         strike,
			CallVolume:     call.Volume,
			CallBid:        call.Bid,
			CallAsk:        call.Ask,
			CallMid:        mid(call.Bid, call.Ask),
			PutVolume:      put.Volume,
			PutBid:         put.Bid,
			PutAsk:         put.Ask,
			PutMid:         mid(put.Bid, put.Ask),
			DTE:            dte,
		}

		if call.Symbol != "" {
			row.CallSymbol = &call.Symbol
		}
		if put.Symbol != "" {
			row.PutSymbol = &put.Symbol
		}

		row.ItmPercCalls, row.ItmPercPuts = itmPercents(underlyingLast, strike)

		rows = append(rows, row)
	}

	return rows
}

// mid returns (bid+ask)/2, or nil when either side is missing.
func mid(bid, ask *float64) *float64 {
	if bid == nil || ask == nil {
		return nil
	}
	m := (*bid + *ask) / 2
	return &m
}

// itmPercents returns how far in the money each side is, as a percent of the
// strike. Null when the last price or the strike is unusable.
func itmPercents(underlyingLast *float64, strike float64) (*float64, *float64) {
	if underlyingLast == nil || *underlyingLast == 0 || strike == 0 {
		return nil, nil
	}

	itmCalls := (*underlyingLast - strike) / strike * 100
	itmPuts := -itmCalls

	return &itmCalls, &itmPuts
}
