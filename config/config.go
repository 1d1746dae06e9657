// Package config loads runtime settings from the environment. A .env file in
// the working directory is honored if present.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/erikbryant/aes"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds everything the commands need to talk to Tradier and postgres.
type Config struct {
	TradierToken string
	HistoryDSN   string
	EODDSN       string
	Tickers      []string
	RootMount    string
	VolumeMount  string
	CacheDir     string
}

// Load reads the environment (and .env, if one exists) and returns the
// resolved configuration. passPhrase is only consulted when the Tradier token
// is stored encrypted.
func Load(passPhrase string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debug("No .env file found, using environment as-is")
	}

	cfg := &Config{}

	cfg.TradierToken, err = tradierToken(passPhrase)
	if err != nil {
		return nil, err
	}

	cfg.HistoryDSN = os.Getenv("PG_DSN_HIST")
	if cfg.HistoryDSN == "" {
		cfg.HistoryDSN = os.Getenv("PG_DSN")
	}
	if cfg.HistoryDSN == "" {
		return nil, fmt.Errorf("PG_DSN is not set")
	}

	cfg.EODDSN = os.Getenv("PG_DSN_EOD")
	if cfg.EODDSN == "" {
		cfg.EODDSN = cfg.HistoryDSN
	}

	tickers := os.Getenv("FRONTEND_TICKERS")
	if tickers == "" {
		tickers = "AAPL,MSFT,TSLA,AMD"
	}
	for _, ticker := range strings.Split(tickers, ",") {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker != "" {
			cfg.Tickers = append(cfg.Tickers, ticker)
		}
	}

	cfg.RootMount = os.Getenv("ROOT_MOUNT_PATH")
	if cfg.RootMount == "" {
		cfg.RootMount = "/"
	}
	cfg.VolumeMount = os.Getenv("VOLUME_MOUNT_PATH")

	cfg.CacheDir = os.Getenv("TRADIER_CACHE_DIR")

	return cfg, nil
}

// tradierToken resolves the Tradier API token. A plaintext token in the
// environment wins; otherwise the encrypted token is decrypted with
// passPhrase.
func tradierToken(passPhrase string) (string, error) {
	token := os.Getenv("TRADIER_ACCESS_TOKEN")
	if token != "" {
		return token, nil
	}

	cipher := os.Getenv("TRADIER_TOKEN_CIPHER")
	if cipher == "" {
		return "", fmt.Errorf("TRADIER_ACCESS_TOKEN is not set")
	}
	if passPhrase == "" {
		return "", fmt.Errorf("passphrase required to decrypt Tradier token")
	}

	token, err := aes.Decrypt(cipher, passPhrase)
	if err != nil {
		return "", fmt.Errorf("unable to decrypt Tradier token %s", err)
	}

	return token, nil
}
