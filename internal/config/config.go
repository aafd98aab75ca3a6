package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "language_buddy.db"
)

type Config struct {
	Environment         string        `mapstructure:"ENV"`
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBDSN               string        `mapstructure:"DB_DSN"`
	CredentialsPath     string        `mapstructure:"CREDENTIALS_PATH"`
	LogFile             string        `mapstructure:"LOG_FILE"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	BcryptCost          int           `mapstructure:"BCRYPT_COST"`
	RatingsOnePerRater  bool          `mapstructure:"RATINGS_ONE_PER_RATER"`
	RecentChatsLimit    int           `mapstructure:"RECENT_CHATS_LIMIT"`
	OrphanSweepInterval time.Duration `mapstructure:"ORPHAN_SWEEP_INTERVAL"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; plain environment variables work the same way
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	return FromViper(viper.New())
}

// FromViper applies defaults and environment bindings to v and decodes the result.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("CREDENTIALS_PATH", "account_store.yaml")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("RATINGS_ONE_PER_RATER", false)
	v.SetDefault("RECENT_CHATS_LIMIT", 3)
	v.SetDefault("ORPHAN_SWEEP_INTERVAL", time.Hour)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBDSN == "" {
			c.DBDSN = defaultSQLiteDSN
		}
	case DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (use sqlite or postgres)", c.DBDriver)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		c.BcryptCost = bcrypt.DefaultCost
	}

	if c.RecentChatsLimit <= 0 {
		c.RecentChatsLimit = 3
	}

	if c.OrphanSweepInterval < 0 {
		c.OrphanSweepInterval = 0
	}

	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
