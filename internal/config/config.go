package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Record store backends.
const (
	StoreJSON     = "json"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Unit conversion rules for TCM_UNIT_RULE.
const (
	UnitRuleBaseline = "baseline"
	UnitRuleAdjusted = "adjusted"
)

// minSigningKeyBytes is the shortest accepted HS256 key once hex decoded.
const minSigningKeyBytes = 32

// devSigningKey signs tokens in development when JWT_SIGNING_KEY is unset.
var devSigningKey = []byte("tcm-log-development-signing-key-not-for-production")

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	RecordStore string `mapstructure:"RECORD_STORE"`
	RecordsPath string `mapstructure:"RECORDS_PATH"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RosterPath      string `mapstructure:"ROSTER_PATH"`
	CredentialsPath string `mapstructure:"CREDENTIALS_PATH"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`

	TCMUnitRule string  `mapstructure:"TCM_UNIT_RULE"`
	PayRate     float64 `mapstructure:"PAY_RATE"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"PORT":             "8000",
	"ENV":              "development",
	"RECORD_STORE":     StoreJSON,
	"RECORDS_PATH":     "log_entries.json",
	"SQLITE_PATH":      "tcm_log.db",
	"DB_MAX_CONNS":     10,
	"DB_MIN_CONNS":     2,
	"ROSTER_PATH":      "members.xlsx",
	"CREDENTIALS_PATH": "credentials.yaml",
	"JWT_ISSUER":       "tcm-claims-focus",
	"TOKEN_TTL":        "8h",
	"SESSION_TTL":      "2h",
	"TCM_UNIT_RULE":    UnitRuleBaseline,
	"PAY_RATE":         25.0,
	"CORS_ORIGINS":     "http://localhost:3000",
	"RATE_LIMIT_RPS":   20,
	"RATE_LIMIT_BURST": 40,
	"BODY_LIMIT":       "1M",
	"REQUEST_TIMEOUT":  "30s",
}

// unset keys have no default but are still read from the environment.
var unset = []string{"DATABASE_URL", "JWT_SIGNING_KEY"}

// Load reads .env when present, then the environment. It does not validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
		_ = v.BindEnv(k)
	}
	for _, k := range unset {
		_ = v.BindEnv(k)
	}

	// a missing .env is fine
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.RecordStore = strings.ToLower(strings.TrimSpace(cfg.RecordStore))
	cfg.TCMUnitRule = strings.ToLower(strings.TrimSpace(cfg.TCMUnitRule))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SigningKey decodes JWT_SIGNING_KEY. Development falls back to a fixed key
// when none is set.
func (c *Config) SigningKey() ([]byte, error) {
	if c.JWTSigningKey == "" {
		if c.IsDev() {
			return devSigningKey, nil
		}
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required outside development")
	}
	key, err := hex.DecodeString(c.JWTSigningKey)
	if err != nil {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is not valid hex: %w", err)
	}
	if len(key) < minSigningKeyBytes && !c.IsDev() {
		return nil, fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes (%d hex chars), got %d bytes",
			minSigningKeyBytes, minSigningKeyBytes*2, len(key))
	}
	return key, nil
}

// Validate checks that the configuration is safe to serve with.
func (c *Config) Validate() error {
	switch c.RecordStore {
	case StoreJSON:
		if c.RecordsPath == "" {
			return fmt.Errorf("RECORDS_PATH is required for the json record store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite record store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres record store")
		}
	default:
		return fmt.Errorf("RECORD_STORE must be %q, %q or %q, got %q", StoreJSON, StoreSQLite, StorePostgres, c.RecordStore)
	}

	if c.TCMUnitRule != UnitRuleBaseline && c.TCMUnitRule != UnitRuleAdjusted {
		return fmt.Errorf("TCM_UNIT_RULE must be %q or %q, got %q", UnitRuleBaseline, UnitRuleAdjusted, c.TCMUnitRule)
	}
	if c.PayRate <= 0 {
		return fmt.Errorf("PAY_RATE must be greater than 0, got %v", c.PayRate)
	}
	if _, err := c.SigningKey(); err != nil {
		return err
	}
	if c.RosterPath == "" {
		return fmt.Errorf("ROSTER_PATH is required")
	}
	if c.CredentialsPath == "" {
		return fmt.Errorf("CREDENTIALS_PATH is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
