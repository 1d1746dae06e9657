package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/erikbryant/optionsdb/config"
	"github.com/erikbryant/optionsdb/disk"
	"github.com/erikbryant/optionsdb/eod"
	"github.com/erikbryant/optionsdb/export"
	"github.com/erikbryant/optionsdb/gdrive"
	"github.com/erikbryant/optionsdb/history"
	"github.com/erikbryant/optionsdb/skiplist"
	"github.com/erikbryant/optionsdb/store"
	"github.com/erikbryant/optionsdb/tradier"
	"github.com/erikbryant/optionsdb/utils"
	"github.com/erikbryant/optionsdb/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	passPhrase string

	symbol    string
	startStr  string
	endStr    string
	intraweek bool

	addr string

	tickerPause     time.Duration
	expirationPause time.Duration

	table  string
	out    string
	upload bool
	parent string
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "optionsdb",
		Short: "Collect and browse end-of-day option data",
	}

	root.PersistentFlags().StringVar(&passPhrase, "passphrase", "", "passphrase to decrypt the Tradier token (if stored encrypted)")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Discover and load historical EOD option prices for one symbol",
		RunE:  runHistory,
	}
	historyCmd.Flags().StringVar(&symbol, "symbol", "", "underlying ticker (required)")
	historyCmd.Flags().StringVar(&startStr, "start", "", "first expiration date to consider, YYYY-MM-DD (required)")
	historyCmd.Flags().StringVar(&endStr, "end", "", "last expiration date to consider, YYYY-MM-DD (required)")
	historyCmd.Flags().BoolVar(&intraweek, "intraweek", true, "also probe Monday/Wednesday expirations")
	historyCmd.MarkFlagRequired("symbol")
	historyCmd.MarkFlagRequired("start")
	historyCmd.MarkFlagRequired("end")

	eodCmd := &cobra.Command{
		Use:   "eod",
		Short: "Snapshot today's option chains for the configured tickers",
		RunE:  runEOD,
	}
	eodCmd.Flags().DurationVar(&tickerPause, "ticker-pause", 0, "pause between tickers (set if runs keep hitting the rate limit)")
	eodCmd.Flags().DurationVar(&expirationPause, "expiration-pause", 0, "pause between a ticker's expirations")

	diskCmd := &cobra.Command{
		Use:   "disk-snapshot",
		Short: "Record today's disk usage",
		RunE:  runDisk,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only dashboard",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a table to CSV, optionally uploading to Google Drive",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&table, "table", "historical", "table to export (historical or options)")
	exportCmd.Flags().StringVar(&out, "out", "", "output file (required)")
	exportCmd.Flags().BoolVar(&upload, "upload", false, "upload the CSV to Google Drive as a Sheet")
	exportCmd.Flags().StringVar(&parent, "parent", "root", "Drive folder ID to upload into")
	exportCmd.MarkFlagRequired("out")

	root.AddCommand(historyCmd, eodCmd, diskCmd, serveCmd, exportCmd)

	return root
}

// connect loads config and opens the store for dsn, ensuring the schema.
func connect(dsn string) (*store.Store, error) {
	db, err := store.Connect(dsn)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(passPhrase)
	if err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return fmt.Errorf("unable to parse --start %s", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return fmt.Errorf("unable to parse --end %s", err)
	}

	db, err := connect(cfg.HistoryDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	client := tradier.New(cfg.TradierToken)
	client.CacheDir = cfg.CacheDir

	engineCfg := history.DefaultConfig()
	engineCfg.IncludeIntraweek = intraweek

	engine := history.NewEngine(client, db, engineCfg)

	err = engine.Run(strings.ToUpper(symbol), start, end)
	if errors.Is(err, history.ErrAlreadyLoaded) {
		log.WithField("symbol", symbol).Warn("Symbol already loaded, skipping")
		return nil
	}

	return err
}

func runEOD(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(passPhrase)
	if err != nil {
		return err
	}

	db, err := connect(cfg.EODDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	client := tradier.New(cfg.TradierToken)
	client.CacheDir = cfg.CacheDir

	tickers := utils.Combine([][]string{cfg.Tickers}, skiplist.Skip)

	job := eod.NewJob(client, db, tickers)
	job.TickerPause = tickerPause
	job.ExpirationPause = expirationPause

	return job.Run(time.Now())
}

func runDisk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(passPhrase)
	if err != nil {
		return err
	}

	db, err := connect(cfg.EODDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return disk.Snapshot(db, cfg.RootMount, cfg.VolumeMount, time.Now())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(passPhrase)
	if err != nil {
		return err
	}

	db, err := connect(cfg.HistoryDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return web.NewServer(db).ListenAndServe(addr)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(passPhrase)
	if err != nil {
		return err
	}

	db, err := connect(cfg.HistoryDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Export everything; callers filter offline.
	query := store.Query{Limit: 1 << 30}

	switch table {
	case "historical":
		rows, err := db.SelectHistory(query)
		if err != nil {
			return err
		}
		err = export.WriteCSV(out, rows)
		if err != nil {
			return err
		}
	case "options":
		rows, err := db.SelectChain(query)
		if err != nil {
			return err
		}
		err = export.WriteCSV(out, rows)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown table %s (want historical or options)", table)
	}

	log.WithFields(log.Fields{"table": table, "file": out}).Info("Exported CSV")

	if upload {
		file, err := gdrive.NewUploader().CreateSheet(out, parent)
		if err != nil {
			return err
		}
		log.WithField("id", file.Id).Info("Uploaded to Google Drive")
	}

	return nil
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
