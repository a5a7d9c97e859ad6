package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
)

// Defaults for the remote endpoints and local storage.
const (
	DefaultCoopStatusURL = "https://www.auxbrain.com/ei/coop_status"
	DefaultRosterURL     = "https://eiapi-production.up.railway.app/majCoops"
	DefaultContractsURL  = "https://raw.githubusercontent.com/carpetsage/egg/main/periodicals/data/contracts.json"
	DefaultDataPath      = "coopboard-data"
	DefaultWorkers       = 8
	DefaultClientVersion = 70
	DefaultPlatform      = "IOS"
)

// Config holds the settings read from .config.json and the environment.
type Config struct {
	EIUserID      string `json:"EIUserID"`
	ClientVersion uint32 `json:"ClientVersion"`
	Version       string `json:"Version"`
	Build         string `json:"Build"`
	Platform      string `json:"Platform"`
	CoopStatusURL string `json:"CoopStatusURL"`
	RosterURL     string `json:"RosterURL"`
	ContractsURL  string `json:"ContractsURL"`
	DataPath      string `json:"DataPath"`
	Workers       int    `json:"Workers"`
	CacheTTLStr   string `json:"CacheTTL"`
	TimeoutStr    string `json:"Timeout"`
	ArchiveKey    string `json:"ArchiveKey"`

	CacheTTL time.Duration `json:"-"`
	Timeout  time.Duration `json:"-"`
}

// ReadConfig loads .env when present, then the JSON config file. A missing
// config file yields the defaults.
func ReadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}

	cfg := &Config{}
	file, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("config: %s not found, using defaults", filename)
	case err != nil:
		return nil, err
	default:
		log.Printf("config: reading %s", filename)
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("EI_USER_ID"); v != "" {
		cfg.EIUserID = v
	}
	if v := os.Getenv("COOPBOARD_ARCHIVE_KEY"); v != "" {
		cfg.ArchiveKey = v
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.ClientVersion == 0 {
		c.ClientVersion = DefaultClientVersion
	}
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}
	if c.CoopStatusURL == "" {
		c.CoopStatusURL = DefaultCoopStatusURL
	}
	if c.RosterURL == "" {
		c.RosterURL = DefaultRosterURL
	}
	if c.ContractsURL == "" {
		c.ContractsURL = DefaultContractsURL
	}
	if c.DataPath == "" {
		c.DataPath = DefaultDataPath
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	var err error
	if c.CacheTTL, err = parseDuration(c.CacheTTLStr, 0); err != nil {
		return err
	}
	if c.Timeout, err = parseDuration(c.TimeoutStr, 30*time.Second); err != nil {
		return err
	}
	return nil
}

// parseDuration accepts day units, e.g. "1d2h".
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return str2duration.ParseDuration(s)
}
