// Package history discovers historical option contracts by probing the
// market-data API with synthetic OCC identifiers. There is no authoritative
// list of past expirations or strikes, so the engine infers expirations from
// the calendar, confirms them with near-the-money probes, and then brute
// forces a strike grid, upserting every contract it finds.
package history

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/erikbryant/optionsdb/date"
	"github.com/erikbryant/optionsdb/occ"
	"github.com/erikbryant/optionsdb/store"
	"github.com/erikbryant/optionsdb/tradier"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyLoaded means the symbol already has stored history rows. The
// pipeline runs once per symbol; a rerun would burn hours of API quota
// re-probing data we already have.
var ErrAlreadyLoaded = errors.New("symbol already loaded; refusing duplicate run")

// Source is the slice of the market-data API the engine consumes. A nil day
// slice with a nil error means the identifier has no data (the contract did
// not exist); an error means the lookup failed and proves nothing.
type Source interface {
	History(symbol, start, end string) ([]tradier.Day, error)
	CloseOnDate(symbol string, d time.Time) (float64, bool, error)
}

// Sink is the slice of the row store the engine produces to.
type Sink interface {
	HasSymbol(symbol string) (bool, error)
	UpsertHistory(rows []store.HistoryRow) error
	QuoteDateRange(symbol string) (time.Time, time.Time, bool, error)
	FillUnderlyingLast(symbol string, closes map[string]float64) (int64, error)
}

// Config holds every tunable of the pipeline. The strike grid and ATM window
// assume an underlying priced within $1..$1000 trading in $1 increments;
// anything outside that range needs these widened.
type Config struct {
	ValidatePause    time.Duration // delay between validation probes
	ScanPause        time.Duration // delay between scan probes
	StrikeMin        int
	StrikeMax        int
	ATMWindow        int // strikes probed either side of at-the-money
	LookbackDays     int // probe window length ending at the expiration
	IncludeIntraweek bool
	TradingDay       date.TradingDay
}

// DefaultConfig mirrors the pacing the API tolerates: validation probes every
// 250ms, scan probes every 800ms. The scan delay dominates the runtime
// (2000 probes per confirmed expiration).
func DefaultConfig() Config {
	return Config{
		ValidatePause:    250 * time.Millisecond,
		ScanPause:        800 * time.Millisecond,
		StrikeMin:        1,
		StrikeMax:        1000,
		ATMWindow:        10,
		LookbackDays:     31,
		IncludeIntraweek: true,
		TradingDay:       date.Weekday,
	}
}

// Engine runs the discovery pipeline. Single-threaded and synchronous; the
// pauses are the rate limiter.
type Engine struct {
	src Source
	db  Sink
	cfg Config
}

// NewEngine wires a Source and a Sink into an Engine.
func NewEngine(src Source, db Sink, cfg Config) *Engine {
	return &Engine{src: src, db: db, cfg: cfg}
}

// window returns the trailing probe window ending at the expiration.
func (e *Engine) window(expiration time.Time) (string, string) {
	start := expiration.AddDate(0, 0, -e.cfg.LookbackDays)
	return start.Format("2006-01-02"), expiration.Format("2006-01-02")
}

func (e *Engine) pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Run discovers every option contract for symbol whose expiration falls in
// [start, end] and persists it. Transport failures abort the run; rows
// already upserted stay valid, but a rerun requires clearing the symbol
// first (the duplicate-run guard applies to partial loads too).
func (e *Engine) Run(symbol string, start, end time.Time) error {
	loaded, err := e.db.HasSymbol(symbol)
	if err != nil {
		return err
	}
	if loaded {
		return fmt.Errorf("%s: %w", symbol, ErrAlreadyLoaded)
	}

	candidates := date.CandidateExpirations(start, end, e.cfg.IncludeIntraweek, e.cfg.TradingDay)
	log.Infof("%s: %d candidate expirations between %s and %s",
		symbol, len(candidates), start.Format("2006-01-02"), end.Format("2006-01-02"))

	for _, expiration := range candidates {
		ok, err := e.validExpiration(symbol, expiration)
		if err != nil {
			return fmt.Errorf("validating expiration %s: %w", expiration.Format("2006-01-02"), err)
		}
		if !ok {
			log.Infof("%s: no listed options for %s", symbol, expiration.Format("2006-01-02"))
			continue
		}

		if err := e.scanExpiration(symbol, expiration); err != nil {
			return fmt.Errorf("scanning expiration %s: %w", expiration.Format("2006-01-02"), err)
		}
	}

	e.backfillUnderlying(symbol)

	return nil
}

// validExpiration is a cheap existence check: estimate the at-the-money
// strike from the underlying's close on the candidate date, then probe a
// window of call identifiers around it. One hit confirms the expiration.
func (e *Engine) validExpiration(symbol string, expiration time.Time) (bool, error) {
	close, ok, err := e.src.CloseOnDate(symbol, expiration)
	if err != nil {
		return false, err
	}
	if !ok {
		// No close price means a non-trading day or bad data. Either way
		// nothing could have expired.
		return false, nil
	}

	atm := int(math.Round(close))
	startDate, endDate := e.window(expiration)

	total := 2*e.cfg.ATMWindow + 1
	i := 0

	for strike := atm - e.cfg.ATMWindow; strike <= atm+e.cfg.ATMWindow; strike++ {
		i++
		fmt.Printf("%d/%d testing strike %d\r", i, total, strike)

		id := occ.Build(symbol, expiration, occ.Call, float64(strike))
		days, err := e.src.History(id, startDate, endDate)
		if err != nil {
			return false, err
		}
		if len(days) > 0 {
			fmt.Printf("%60s\r", "")
			log.Infof("%s: expiration %s accepted at strike %d", symbol, expiration.Format("2006-01-02"), strike)
			return true, nil
		}

		e.pause(e.cfg.ValidatePause)
	}

	fmt.Printf("%60s\r", "")
	return false, nil
}

// scanExpiration brute-forces the strike grid for a confirmed expiration,
// both sides, upserting rows as soon as each probe hits so an interrupted
// scan loses at most one contract's worth of work.
func (e *Engine) scanExpiration(symbol string, expiration time.Time) error {
	startDate, endDate := e.window(expiration)

	total := 2 * (e.cfg.StrikeMax - e.cfg.StrikeMin + 1)
	count := 0

	for _, side := range []byte{occ.Call, occ.Put} {
		for strike := e.cfg.StrikeMin; strike <= e.cfg.StrikeMax; strike++ {
			count++
			fmt.Printf("%d/%d testing %c strike %d\r", count, total, side, strike)

			id := occ.Build(symbol, expiration, side, float64(strike))
			days, err := e.src.History(id, startDate, endDate)
			if err != nil {
				return err
			}

			if len(days) > 0 {
				fmt.Printf("%80s\r", "")
				log.Infof("%s: found %s %c strike %d (%d days)",
					symbol, expiration.Format("2006-01-02"), side, strike, len(days))

				rows := materialize(symbol, expiration, float64(strike), side, days)
				if err := e.db.UpsertHistory(rows); err != nil {
					return err
				}
			}

			e.pause(e.cfg.ScanPause)
		}
	}

	return nil
}

// materialize converts one probe's day series into storage rows. Only the
// probed side's fields are populated; underlyingLast stays null until the
// backfill pass. Entries without a date are dropped.
func materialize(symbol string, expiration time.Time, strike float64, side byte, days []tradier.Day) []store.HistoryRow {
	expireDate := date.Midnight(expiration)

	var rows []store.HistoryRow

	for _, day := range days {
		if day.Date == "" {
			continue
		}

		quoteDate, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}

		row := store.HistoryRow{
			Symbol:     symbol,
			QuoteDate:  quoteDate,
			ExpireDate: expireDate,
			Strike:     strike,
			DTE:        date.DTE(quoteDate, expireDate),
		}

		switch side {
		case occ.Call:
			row.CallOpen = day.Open
			row.CallHigh = day.High
			row.CallLow = day.Low
			row.CallClose = day.Close
			row.CallVolume = day.Volume
		case occ.Put:
			row.PutOpen = day.Open
			row.PutHigh = day.High
			row.PutLow = day.Low
			row.PutClose = day.Close
			row.PutVolume = day.Volume
		}

		rows = append(rows, row)
	}

	return rows
}

// backfillUnderlying fills the denormalized underlyingLast column with the
// underlying's own daily closes over the stored quote-date range. One remote
// fetch serves every row sharing a quote date. A fetch failure leaves the
// column null; there is no per-column retry.
func (e *Engine) backfillUnderlying(symbol string) {
	min, max, ok, err := e.db.QuoteDateRange(symbol)
	if err != nil {
		log.Warnf("%s: unable to read quote date range: %v", symbol, err)
		return
	}
	if !ok {
		log.Infof("%s: no rows stored; nothing to backfill", symbol)
		return
	}

	days, err := e.src.History(symbol, min.Format("2006-01-02"), max.Format("2006-01-02"))
	if err != nil {
		log.Warnf("%s: underlying close fetch failed, leaving underlyingLast null: %v", symbol, err)
		return
	}

	closes := make(map[string]float64)
	for _, day := range days {
		if day.Date == "" || day.Close == nil {
			continue
		}
		closes[day.Date] = *day.Close
	}

	n, err := e.db.FillUnderlyingLast(symbol, closes)
	if err != nil {
		log.Warnf("%s: underlyingLast fill failed: %v", symbol, err)
		return
	}

	log.Infof("%s: backfilled underlyingLast on %d rows (%s..%s)",
		symbol, n, min.Format("2006-01-02"), max.Format("2006-01-02"))
}
