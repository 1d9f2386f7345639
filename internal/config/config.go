package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
	"github.com/werawoot/Krua-Thai1-sub006/internal/services"
)

// Config is the process configuration. Secrets and endpoints come from the
// environment; optimizer tuning may also come from a YAML file.
type Config struct {
	Port        string `yaml:"-"`
	Environment string `yaml:"-"`
	LogLevel    string `yaml:"-"`

	DatabaseURL string `yaml:"-"`
	DBPath      string `yaml:"-"`

	JWTSecret string `yaml:"-"`
	RedisURL  string `yaml:"-"`

	GoogleProjectID         string `yaml:"-"`
	GoogleAPIKey            string `yaml:"-"`
	GoogleCredentialsBase64 string `yaml:"-"`
	GoogleCredentialsFile   string `yaml:"-"`

	FirebaseCredentialsBase64 string `yaml:"-"`
	FirebaseCredentialsFile   string `yaml:"-"`

	OptimizeRatePerMinute int `yaml:"-"`

	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// OptimizerConfig is the YAML-tunable part of the route optimizer
type OptimizerConfig struct {
	Restaurant        routing.LatLng            `yaml:"restaurant"`
	Timezone          string                    `yaml:"timezone"`
	PerItemPrice      float64                   `yaml:"per_item_price"`
	PickupDwell       time.Duration             `yaml:"pickup_dwell"`
	DeliveryDwell     time.Duration             `yaml:"delivery_dwell"`
	DispatchStartHour int                       `yaml:"dispatch_start_hour"`
	DispatchEndHour   int                       `yaml:"dispatch_end_hour"`
	SolverTimeout     time.Duration             `yaml:"solver_timeout"`
	Defaults          routing.Params            `yaml:"defaults"`
	Bounds            routing.Bounds            `yaml:"bounds"`
	Zones             map[string]routing.LatLng `yaml:"zones"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	s := routing.DefaultSettings()
	return &Config{
		Port:                  "8080",
		Environment:           "development",
		LogLevel:              "info",
		OptimizeRatePerMinute: 6,
		Optimizer: OptimizerConfig{
			Restaurant:        s.Restaurant,
			Timezone:          "America/Los_Angeles",
			PerItemPrice:      s.PerItemPrice,
			PickupDwell:       s.PickupDwell,
			DeliveryDwell:     s.DeliveryDwell,
			DispatchStartHour: s.DispatchStartHour,
			DispatchEndHour:   s.DispatchEndHour,
			SolverTimeout:     s.SolverTimeout,
			Defaults:          s.Defaults,
			Bounds:            s.Bounds,
		},
	}
}

// LoadEnvFile loads .env into the environment. It reports false when the
// file does not exist so the caller can log it.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return true, nil
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Port, "PORT")
	setString(&c.Environment, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.JWTSecret, "APP_JWT_SECRET")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.GoogleProjectID, "GOOGLE_CLOUD_PROJECT")
	setString(&c.GoogleAPIKey, "GOOGLE_ROUTE_OPTIMIZATION_API_KEY")
	setString(&c.GoogleCredentialsBase64, "GOOGLE_APPLICATION_CREDENTIALS_BASE64")
	setString(&c.GoogleCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.FirebaseCredentialsBase64, "FIREBASE_CREDENTIALS_BASE64")
	setString(&c.FirebaseCredentialsFile, "FIREBASE_CREDENTIALS_FILE")

	if v := os.Getenv("SOLVER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_TIMEOUT %q: %w", v, err)
		}
		c.Optimizer.SolverTimeout = d
	}
	if v := os.Getenv("OPTIMIZE_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OPTIMIZE_RATE_PER_MINUTE %q: %w", v, err)
		}
		c.OptimizeRatePerMinute = n
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks settings every command needs
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DBPath == "" {
		return errors.New("DATABASE_URL or DB_PATH must be set")
	}
	o := c.Optimizer
	if err := o.Bounds.Validate(); err != nil {
		return err
	}
	if o.DispatchStartHour < 0 || o.DispatchEndHour > 24 || o.DispatchStartHour >= o.DispatchEndHour {
		return fmt.Errorf("dispatch hours %d-%d are invalid", o.DispatchStartHour, o.DispatchEndHour)
	}
	if o.PerItemPrice <= 0 {
		return fmt.Errorf("per_item_price must be positive, got %g", o.PerItemPrice)
	}
	if o.SolverTimeout <= 0 {
		return fmt.Errorf("solver_timeout must be positive, got %s", o.SolverTimeout)
	}
	if c.OptimizeRatePerMinute < 0 {
		return fmt.Errorf("OPTIMIZE_RATE_PER_MINUTE must not be negative")
	}
	if _, err := time.LoadLocation(o.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", o.Timezone, err)
	}
	return nil
}

// Settings converts the optimizer section into routing settings. YAML zones
// are layered over the compiled-in table.
func (c *Config) Settings() (routing.Settings, error) {
	o := c.Optimizer
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return routing.Settings{}, fmt.Errorf("invalid timezone %q: %w", o.Timezone, err)
	}

	zones := make(map[string]routing.LatLng, len(routing.DefaultZones)+len(o.Zones))
	for code, z := range routing.DefaultZones {
		zones[code] = z
	}
	for code, z := range o.Zones {
		zones[routing.NormalizePostalCode(code)] = z
	}

	return routing.Settings{
		Restaurant:        o.Restaurant,
		Location:          loc,
		Zones:             zones,
		PerItemPrice:      o.PerItemPrice,
		PickupDwell:       o.PickupDwell,
		DeliveryDwell:     o.DeliveryDwell,
		DispatchStartHour: o.DispatchStartHour,
		DispatchEndHour:   o.DispatchEndHour,
		LoadType:          routing.LoadTypeItems,
		SolverTimeout:     o.SolverTimeout,
		Bounds:            o.Bounds,
		Defaults:          o.Defaults,
	}, nil
}

// SolverCredentials returns the Route Optimization credential settings
func (c *Config) SolverCredentials() services.SolverCredentials {
	return services.SolverCredentials{
		ProjectID:         c.GoogleProjectID,
		APIKey:            c.GoogleAPIKey,
		CredentialsBase64: c.GoogleCredentialsBase64,
		CredentialsFile:   c.GoogleCredentialsFile,
	}
}
