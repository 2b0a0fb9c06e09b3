package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64   `mapstructure:"admin_chat_id"`
		AdminIDs    []int64 `mapstructure:"admin_ids"`
		MemberIDs   []int64 `mapstructure:"member_ids"`
		PollTimeout int     `mapstructure:"poll_timeout"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Storage struct {
		Driver string
	} `mapstructure:"storage"`

	Redis struct {
		Addr     string
		Password string
		DB       int
	} `mapstructure:"redis"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Alerts struct {
		Enabled      bool
		Threshold    float64
		ExpiryWindow time.Duration `mapstructure:"expiry_window"`
		// Schedule is weekly, daily or interval.
		Schedule  string
		Weekday   string
		At        string
		Interval  time.Duration
		Recipient int64
	} `mapstructure:"alerts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "Africa/Lagos")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.threshold", 50)
	v.SetDefault("alerts.expiry_window", 90*24*time.Hour)
	v.SetDefault("alerts.schedule", "weekly")
	v.SetDefault("alerts.weekday", "friday")
	v.SetDefault("alerts.at", "10:00")
	v.SetDefault("alerts.interval", time.Hour)
}

// Load reads the YAML file at path. Values from .env and APP_* variables
// override the file, e.g. APP_POSTGRES_DSN for postgres.dsn.
func Load(path string) (Config, error) {
	// a missing .env is normal outside local development
	_ = gotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("config: app.timezone: %w", err)
	}
	if c.Alerts.Threshold < 0 {
		return fmt.Errorf("config: alerts.threshold must not be negative")
	}
	if c.Alerts.ExpiryWindow <= 0 {
		return fmt.Errorf("config: alerts.expiry_window must be positive")
	}
	return nil
}

// Location returns the configured timezone; Load has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
