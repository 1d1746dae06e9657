// Package tradier is a client for the Tradier market-data API. The same
// /markets/history endpoint serves double duty: underlying daily closes and
// existence probes for synthetic OCC contract identifiers.
package tradier

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"time"

	"github.com/erikbryant/optionsdb/cache"
	"github.com/erikbryant/web"
	log "github.com/sirupsen/logrus"
)

// Client talks to the Tradier API. All state is explicit; construct one with
// New and pass it around rather than initializing package globals.
type Client struct {
	Token      string
	BaseURL    string
	MaxRetries int
	// CacheDir enables a file-backed read-through cache of history responses.
	// Historical lookups are immutable, so cache hits are always valid. Live
	// endpoints (quotes, expirations, chains) are never cached.
	CacheDir string
}

// New returns a Client for the production Tradier API.
func New(token string) *Client {
	return &Client{
		Token:      token,
		BaseURL:    "https://api.tradier.com/v1",
		MaxRetries: 5,
	}
}

// Day is one daily OHLCV record. Fields the API omits stay nil.
type Day struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *int64   `json:"volume"`
}

// ChainOption is one leg of an option chain snapshot.
type ChainOption struct {
	Symbol     string   `json:"symbol"`
	Strike     *float64 `json:"strike"`
	Bid        *float64 `json:"bid"`
	Ask        *float64 `json:"ask"`
	Volume     *int64   `json:"volume"`
	OptionType string   `json:"option_type"`
}

type quote struct {
	Symbol string   `json:"symbol"`
	Last   *float64 `json:"last"`
}

// webRequest issues one authenticated GET. When retry is set it follows the
// rate-limit dance: 429 sleeps capped exponential plus jitter and tries again,
// up to MaxRetries. When retry is false any non-200 is returned to the caller
// so probe loops can tell a transport failure from "no such contract".
func (c *Client) webRequest(fullURL string, retry bool) ([]byte, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + c.Token,
		"Accept":        "application/json",
	}

	attempts := 1
	if retry {
		attempts = c.MaxRetries
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := web.Request2(fullURL, headers)
		if err != nil {
			lastErr = fmt.Errorf("error requesting %s %s", fullURL, err)
			if retry {
				backoff(attempt)
				continue
			}
			return nil, lastErr
		}

		if response.StatusCode == 429 {
			lastErr = fmt.Errorf("throttled on %s", fullURL)
			if retry {
				log.Warnf("429 rate limit on %s (attempt %d/%d)", fullURL, attempt, attempts)
				backoff(attempt)
				continue
			}
			return nil, lastErr
		}

		if response.StatusCode != 200 {
			return nil, fmt.Errorf("URL %s got an unexpected StatusCode %d", fullURL, response.StatusCode)
		}

		contents, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, err
		}

		return contents, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// backoff sleeps 2^attempt seconds, capped at 30, plus jitter.
func backoff(attempt int) {
	s := 1 << attempt
	if s > 30 {
		s = 30
	}
	time.Sleep(time.Duration(s)*time.Second + time.Duration(rand.Intn(1000))*time.Millisecond)
}

// fetch GETs a URL, consulting the response cache when one is configured and
// the response is cacheable. Only historical lookups are cacheable: their
// responses are immutable for a closed window. Quotes, expirations, and
// chains are live and always go to the API, since their URLs never change
// from one day to the next.
func (c *Client) fetch(fullURL string, retry, cacheable bool) ([]byte, error) {
	useCache := cacheable && c.CacheDir != ""

	if useCache {
		if contents, err := cache.Read(c.CacheDir, fullURL); err == nil {
			return contents, nil
		}
	}

	contents, err := c.webRequest(fullURL, retry)
	if err != nil {
		return nil, err
	}

	if useCache {
		cache.Update(c.CacheDir, fullURL, contents)
	}

	return contents, nil
}

// oneOrMany unmarshals a JSON value that the API serves either as a single
// object or as a list, depending on how many records matched.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `"null"` {
		return nil, nil
	}

	var many []T
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("unable to unmarshal json %s", err)
	}

	return []T{one}, nil
}

// parseHistory normalizes a /markets/history body. A nil, nil return means
// the API reported no data for the identifier, which for an OCC probe means
// the contract did not exist in the window.
func parseHistory(body []byte) ([]Day, error) {
	var envelope struct {
		History json.RawMessage `json:"history"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unable to unmarshal history %s", err)
	}

	if len(envelope.History) == 0 || string(envelope.History) == "null" || string(envelope.History) == `"null"` {
		return nil, nil
	}

	var h struct {
		Day json.RawMessage `json:"day"`
	}

	if err := json.Unmarshal(envelope.History, &h); err != nil {
		return nil, fmt.Errorf("unable to unmarshal history days %s", err)
	}

	return oneOrMany[Day](h.Day)
}

// History returns the daily series for a symbol (underlying ticker or OCC
// contract identifier) over [start, end]. Dates are YYYY-MM-DD. A nil slice
// with a nil error means the API has no data for that identifier; an error
// means the lookup itself failed and says nothing about existence.
func (c *Client) History(symbol, start, end string) ([]Day, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("start", start)
	params.Set("end", end)

	body, err := c.fetch(c.BaseURL+"/markets/history?"+params.Encode(), false, true)
	if err != nil {
		return nil, err
	}

	return parseHistory(body)
}

// CloseOnDate returns the underlying's closing price on a single date. The
// bool is false when the market has no close for that date.
func (c *Client) CloseOnDate(symbol string, d time.Time) (float64, bool, error) {
	ds := d.Format("2006-01-02")

	days, err := c.History(symbol, ds, ds)
	if err != nil {
		return 0, false, err
	}

	for _, day := range days {
		if day.Close != nil {
			return *day.Close, true, nil
		}
	}

	return 0, false, nil
}

// Quote returns the last trade price for a symbol, or nil if the API has none.
func (c *Client) Quote(symbol string) (*float64, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")

	body, err := c.fetch(c.BaseURL+"/markets/quotes?"+params.Encode(), true, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Quotes struct {
			Quote json.RawMessage `json:"quote"`
		} `json:"quotes"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unable to unmarshal quotes %s", err)
	}

	quotes, err := oneOrMany[quote](envelope.Quotes.Quote)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, nil
	}

	return quotes[0].Last, nil
}

// Expirations returns the authoritative expiration list for a symbol.
func (c *Client) Expirations(symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")
	params.Set("strikes", "false")

	body, err := c.fetch(c.BaseURL+"/markets/options/expirations?"+params.Encode(), true, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Expirations struct {
			Date json.RawMessage `json:"date"`
		} `json:"expirations"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unable to unmarshal expirations %s", err)
	}

	return oneOrMany[string](envelope.Expirations.Date)
}

// Chain returns the full option chain for a symbol and expiration.
func (c *Client) Chain(symbol, expiration string) ([]ChainOption, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", "false")

	body, err := c.fetch(c.BaseURL+"/markets/options/chains?"+params.Encode(), true, false)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Options struct {
			Option json.RawMessage `json:"option"`
		} `json:"options"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unable to unmarshal chain %s", err)
	}

	return oneOrMany[ChainOption](envelope.Options.Option)
}
