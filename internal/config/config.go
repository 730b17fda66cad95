package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string `mapstructure:"PORT"`
	DBDriver        string `mapstructure:"DB_DRIVER"` // sqlite | pgx
	DBDSN           string `mapstructure:"DB_DSN"`
	LogFile         string `mapstructure:"LOG_FILE"`
	SeedDemo        bool   `mapstructure:"SEED_DEMO"`
	KafkaBrokersCSV string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string `mapstructure:"KAFKA_TOPIC"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	ServiceName     string `mapstructure:"SERVICE_NAME"`
	BcryptCost      int    `mapstructure:"BCRYPT_COST"`
	RateLimitPerMin int    `mapstructure:"RATE_LIMIT_PER_MIN"`
	SecureCookies   bool   `mapstructure:"SECURE_COOKIES"`
}

var defaults = map[string]any{
	"PORT":               "8080",
	"DB_DRIVER":          "sqlite",
	"DB_DSN":             "agriconnect.db", // sqlite file in project root
	"LOG_FILE":           "./agriconnect.log",
	"SEED_DEMO":          true,
	"KAFKA_BROKERS":      "",
	"KAFKA_TOPIC":        "agriconnect.orders",
	"REDIS_ADDR":         "",
	"SERVICE_NAME":       "agriconnect-api",
	"BCRYPT_COST":        12,
	"RATE_LIMIT_PER_MIN": 60,
	"SECURE_COOKIES":     false,
}

// Load resolves configuration from the environment, with an optional .env
// file underneath it. Real environment variables win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("[warn] config unmarshal: %v; using defaults", err)
		cfg = Default()
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBDriver != "pgx" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 12
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 60
	}

	log.Printf("[config] PORT=%s DB_DRIVER=%s DB_DSN=%s LOG_FILE=%s KAFKA_BROKERS=%q REDIS_ADDR=%q",
		cfg.Port, cfg.DBDriver, redactDSN(cfg.DBDSN), cfg.LogFile, cfg.KafkaBrokersCSV, cfg.RedisAddr)
	return cfg
}

// Default is the configuration used by tests and as a fallback.
func Default() Config {
	return Config{
		Port:            "8080",
		DBDriver:        "sqlite",
		DBDSN:           "agriconnect.db",
		LogFile:         "./agriconnect.log",
		SeedDemo:        true,
		KafkaTopic:      "agriconnect.orders",
		ServiceName:     "agriconnect-api",
		BcryptCost:      12,
		RateLimitPerMin: 60,
	}
}

func (c Config) KafkaBrokers() []string {
	parts := strings.Split(c.KafkaBrokersCSV, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// redactDSN hides the password part of a URL-style DSN.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}
