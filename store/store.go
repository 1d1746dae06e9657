// Package store persists option rows and disk-usage snapshots in postgres.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store wraps a postgres connection pool.
type Store struct {
	db *sqlx.DB
}

// Connect opens a postgres connection for the given DSN.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database %s", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// HistoryRow is one (symbol, quoteDate, expireDate, strike) row discovered by
// the historical probe pipeline. A row may arrive with only its call side or
// only its put side populated; the upsert merges the two.
type HistoryRow struct {
	Symbol         string    `db:"symbol" csv:"symbol"`
	QuoteDate      time.Time `db:"quotedate" csv:"quotedate"`
	UnderlyingLast *float64  `db:"underlyinglast" csv:"underlyinglast"`
	ExpireDate     time.Time `db:"expiredate" csv:"expiredate"`
	CallVolume     *int64    `db:"callvolume" csv:"callvolume"`
	CallOpen       *float64  `db:"callopen" csv:"callopen"`
	CallHigh       *float64  `db:"callhigh" csv:"callhigh"`
	CallLow        *float64  `db:"calllow" csv:"calllow"`
	CallClose      *float64  `db:"callclose" csv:"callclose"`
	Strike         float64   `db:"strike" csv:"strike"`
	PutClose       *float64  `db:"putclose" csv:"putclose"`
	PutLow         *float64  `db:"putlow" csv:"putlow"`
	PutHigh        *float64  `db:"puthigh" csv:"puthigh"`
	PutOpen        *float64  `db:"putopen" csv:"putopen"`
	PutVolume      *int64    `db:"putvolume" csv:"putvolume"`
	ItmPercCalls   *float64  `db:"itmperccalls" csv:"itmperccalls"`
	ItmPercPuts    *float64  `db:"itmpercputs" csv:"itmpercputs"`
	DTE            int       `db:"dte" csv:"dte"`
}

// ChainRow is one strike of an end-of-day chain snapshot. Unlike history
// rows these are complete when written, so the upsert overwrites.
type ChainRow struct {
	Symbol         string    `db:"symbol" csv:"symbol"`
	QuoteDate      time.Time `db:"quotedate" csv:"quotedate"`
	RunTime        string    `db:"runtime" csv:"runtime"`
	UnderlyingLast *float64  `db:"underlyinglast" csv:"underlyinglast"`
	ExpireDate     time.Time `db:"expiredate" csv:"expiredate"`
	Strike         float64   `db:"strike" csv:"strike"`
	CallSymbol     *string   `db:"callsymbol" csv:"callsymbol"`
	CallVolume     *int64    `db:"callvolume" csv:"callvolume"`
	CallBid        *float64  `db:"callbid" csv:"callbid"`
	CallAsk        *float64  `db:"callask" csv:"callask"`
	CallMid        *float64  `db:"callmid" csv:"callmid"`
	PutSymbol      *string   `db:"putsymbol" csv:"putsymbol"`
	PutVolume      *int64    `db:"putvolume" csv:"putvolume"`
	PutBid         *float64  `db:"putbid" csv:"putbid"`
	PutAsk         *float64  `db:"putask" csv:"putask"`
	PutMid         *float64  `db:"putmid" csv:"putmid"`
	ItmPercCalls   *float64  `db:"itmperccalls" csv:"itmperccalls"`
	ItmPercPuts    *float64  `db:"itmpercputs" csv:"itmpercputs"`
	DTE            int       `db:"dte" csv:"dte"`
}

// DiskRow is one daily disk-usage snapshot.
type DiskRow struct {
	CapturedAt     time.Time `db:"captured_at" csv:"captured_at"`
	RootPath       string    `db:"root_path" csv:"root_path"`
	VolumePath     string    `db:"volume_path" csv:"volume_path"`
	RootTotalBytes int64     `db:"root_total_bytes" csv:"root_total_bytes"`
	RootUsedBytes  int64     `db:"root_used_bytes" csv:"root_used_bytes"`
	VolTotalBytes  int64     `db:"vol_total_bytes" csv:"vol_total_bytes"`
	VolUsedBytes   int64     `db:"vol_used_bytes" csv:"vol_used_bytes"`
}

var historyColumns = []string{
	"symbol", "quotedate", "underlyinglast", "expiredate",
	"callvolume", "callopen", "callhigh", "calllow", "callclose",
	"strike",
	"putclose", "putlow", "puthigh", "putopen", "putvolume",
	"itmperccalls", "itmpercputs", "dte",
}

var historyKey = []string{"symbol", "quotedate", "expiredate", "strike"}

var chainColumns = []string{
	"symbol", "quotedate", "runtime", "underlyinglast", "expiredate", "strike",
	"callsymbol", "callvolume", "callbid", "callask", "callmid",
	"putsymbol", "putvolume", "putbid", "putask", "putmid",
	"itmperccalls", "itmpercputs", "dte",
}

var chainKey = []string{"quotedate", "runtime", "symbol", "expiredate", "strike"}

var diskColumns = []string{
	"captured_at", "root_path", "volume_path",
	"root_total_bytes", "root_used_bytes", "vol_total_bytes", "vol_used_bytes",
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema() error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS option_history_eod (
			symbol         TEXT NOT NULL,
			quoteDate      DATE NOT NULL,
			underlyingLast NUMERIC,
			expireDate     DATE NOT NULL,

			callVolume     BIGINT,
			callOpen       NUMERIC,
			callHigh       NUMERIC,
			callLow        NUMERIC,
			callClose      NUMERIC,

			strike         NUMERIC NOT NULL,

			putClose       NUMERIC,
			putLow         NUMERIC,
			putHigh        NUMERIC,
			putOpen        NUMERIC,
			putVolume      BIGINT,

			itmPercCalls   NUMERIC,
			itmPercPuts    NUMERIC,
			dte            INTEGER,

			PRIMARY KEY (symbol, quoteDate, expireDate, strike)
		)`,
		`CREATE TABLE IF NOT EXISTS option_chain_eod (
			symbol           TEXT NOT NULL,
			quoteDate        DATE NOT NULL,
			runTime          TIME NOT NULL,
			underlyingLast   NUMERIC,
			expireDate       DATE NOT NULL,
			strike           NUMERIC NOT NULL,

			callSymbol       TEXT,
			callVolume       BIGINT,
			callBid          NUMERIC,
			callAsk          NUMERIC,
			callMid          NUMERIC,

			putSymbol        TEXT,
			putVolume        BIGINT,
			putBid           NUMERIC,
			putAsk           NUMERIC,
			putMid           NUMERIC,

			itmPercCalls     NUMERIC,
			itmPercPuts      NUMERIC,
			dte              INTEGER,

			PRIMARY KEY (quoteDate, runTime, symbol, expireDate, strike)
		)`,
		`CREATE TABLE IF NOT EXISTS disk_usage_daily (
			captured_at        TIMESTAMPTZ PRIMARY KEY,
			root_path          TEXT NOT NULL,
			volume_path        TEXT NOT NULL,

			root_total_bytes   BIGINT NOT NULL,
			root_used_bytes    BIGINT NOT NULL,

			vol_total_bytes    BIGINT NOT NULL,
			vol_used_bytes     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS disk_usage_daily_captured_at_idx
			ON disk_usage_daily (captured_at)`,
	}

	for _, ddl := range ddls {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("unable to ensure schema %s", err)
		}
	}

	return nil
}

// namedValues renders the VALUES tuple for a NamedExec insert.
func namedValues(cols []string) string {
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		placeholders[i] = ":" + col
	}
	return "(" + strings.Join(placeholders, ", ") + ")"
}

// coalesceAssignments renders the DO UPDATE SET list that keeps incoming
// values only when they are non-null, so a call-side batch never erases a
// previously stored put side (and vice versa).
func coalesceAssignments(table string, cols, key []string) string {
	keySet := make(map[string]bool)
	for _, k := range key {
		keySet[k] = true
	}

	var assignments []string
	for _, col := range cols {
		if keySet[col] {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, %s.%s)", col, col, table, col))
	}

	return strings.Join(assignments, ", ")
}

// overwriteAssignments renders a DO UPDATE SET list that takes the incoming
// value unconditionally.
func overwriteAssignments(cols, key []string) string {
	keySet := make(map[string]bool)
	for _, k := range key {
		keySet[k] = true
	}

	var assignments []string
	for _, col := range cols {
		if keySet[col] {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	return strings.Join(assignments, ", ")
}

// UpsertHistory merges a batch of history rows. One transaction per batch.
// Re-applying the same batch is a no-op.
func (s *Store) UpsertHistory(rows []HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		"INSERT INTO option_history_eod (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(historyColumns, ", "),
		namedValues(historyColumns),
		strings.Join(historyKey, ", "),
		coalesceAssignments("option_history_eod", historyColumns, historyKey),
	)

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	if _, err := tx.NamedExec(query, rows); err != nil {
		tx.Rollback()
		return fmt.Errorf("unable to upsert history rows %s", err)
	}

	return tx.Commit()
}

// UpsertChain writes a batch of EOD chain rows, overwriting on conflict.
func (s *Store) UpsertChain(rows []ChainRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		"INSERT INTO option_chain_eod (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(chainColumns, ", "),
		namedValues(chainColumns),
		strings.Join(chainKey, ", "),
		overwriteAssignments(chainColumns, chainKey),
	)

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	if _, err := tx.NamedExec(query, rows); err != nil {
		tx.Rollback()
		return fmt.Errorf("unable to upsert chain rows %s", err)
	}

	return tx.Commit()
}

// HasSymbol reports whether any history row exists for the symbol. The
// historical pipeline runs once per symbol; this is the duplicate-run guard.
func (s *Store) HasSymbol(symbol string) (bool, error) {
	var exists bool

	err := s.db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM option_history_eod WHERE symbol = $1)", symbol)
	if err != nil {
		return false, fmt.Errorf("unable to check for existing symbol %s", err)
	}

	return exists, nil
}

// QuoteDateRange returns the min and max stored quote dates for a symbol.
// The bool is false when the symbol has no rows.
func (s *Store) QuoteDateRange(symbol string) (time.Time, time.Time, bool, error) {
	var r struct {
		Min sql.NullTime `db:"min_qd"`
		Max sql.NullTime `db:"max_qd"`
	}

	err := s.db.Get(&r,
		"SELECT MIN(quotedate) AS min_qd, MAX(quotedate) AS max_qd FROM option_history_eod WHERE symbol = $1",
		symbol)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	if !r.Min.Valid || !r.Max.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	return r.Min.Time, r.Max.Time, true, nil
}

// FillUnderlyingLast bulk-fills underlyingLast from a quoteDate -> close map,
// touching only rows where the column is still null. Rerunning after success
// is a no-op. Dates are keyed as YYYY-MM-DD.
func (s *Store) FillUnderlyingLast(symbol string, closes map[string]float64) (int64, error) {
	if len(closes) == 0 {
		return 0, nil
	}

	var tuples []string
	var args []interface{}

	args = append(args, symbol)
	i := 2
	for ds, close := range closes {
		tuples = append(tuples, fmt.Sprintf("($%d::date, $%d::numeric)", i, i+1))
		args = append(args, ds, close)
		i += 2
	}

	query := fmt.Sprintf(`
		UPDATE option_history_eod t
		SET underlyinglast = v.price
		FROM (VALUES %s) AS v(quotedate, price)
		WHERE t.symbol = $1
		  AND t.quotedate = v.quotedate
		  AND t.underlyinglast IS NULL`,
		strings.Join(tuples, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("unable to fill underlyingLast %s", err)
	}

	return result.RowsAffected()
}

// InsertDiskSnapshot records a disk-usage snapshot, at most one per calendar day.
func (s *Store) InsertDiskSnapshot(row DiskRow) error {
	query := fmt.Sprintf(`
		INSERT INTO disk_usage_daily (%s)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM disk_usage_daily WHERE captured_at::date = $8
		)`, strings.Join(diskColumns, ", "))

	_, err := s.db.Exec(query,
		row.CapturedAt, row.RootPath, row.VolumePath,
		row.RootTotalBytes, row.RootUsedBytes, row.VolTotalBytes, row.VolUsedBytes,
		row.CapturedAt.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("unable to insert disk snapshot %s", err)
	}

	return nil
}

// SelectDiskUsage returns all snapshots in capture order.
func (s *Store) SelectDiskUsage() ([]DiskRow, error) {
	var rows []DiskRow

	err := s.db.Select(&rows,
		fmt.Sprintf("SELECT %s FROM disk_usage_daily ORDER BY captured_at ASC", strings.Join(diskColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("unable to select disk usage %s", err)
	}

	return rows, nil
}
