// Package occ builds the synthetic OCC option contract identifiers the
// market-data API resolves historical lookups by.
package occ

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Call and Put are the side markers embedded in an OCC symbol.
const (
	Call = byte('C')
	Put  = byte('P')
)

// Build returns the OCC identifier for a contract:
// <underlying><expiration as YYMMDD><C or P><strike*1000, zero-padded to 8>.
// e.g. AAPL, 2025-01-17, 'C', 150.00 -> AAPL250117C00150000
func Build(symbol string, expiration time.Time, side byte, strike float64) string {
	strikeMils := int64(math.Round(strike * 1000))
	return fmt.Sprintf("%s%s%c%08d", strings.ToUpper(symbol), expiration.Format("060102"), side, strikeMils)
}
