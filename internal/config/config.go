// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vrp/internal/geo"
	"vrp/internal/opt"
)

// Server holds HTTP settings and the request size limits. MaxIterations caps
// sa_params.max_iterations accepted from callers. X-Forwarded-For is only honored
// from peers in TrustedProxies (IPs or CIDRs).
type Server struct {
	Port           int           `yaml:"port"`
	AllowOrigins   string        `yaml:"allow_origins"`
	SolveTimeout   time.Duration `yaml:"solve_timeout"`
	MaxOrders      int           `yaml:"max_orders"`
	MaxVehicles    int           `yaml:"max_vehicles"`
	MaxIterations  int           `yaml:"max_iterations"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Jobs sizes the async worker pool. Timeout is the wall-clock budget of one annealing job.
type Jobs struct {
	Workers int           `yaml:"workers"`
	Queue   int           `yaml:"queue"`
	Retain  time.Duration `yaml:"retain"`
	Timeout time.Duration `yaml:"timeout"`
}

type Annealing struct {
	InitialTemp   float64 `yaml:"initial_temp"`
	FinalTemp     float64 `yaml:"final_temp"`
	CoolingRate   float64 `yaml:"cooling_rate"`
	MaxIterations int     `yaml:"max_iterations"`
}

type Storage struct {
	DatabaseURL string `yaml:"database_url"`
}

type Broker struct {
	RedisURL string `yaml:"redis_url"`
}

type Webhooks struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Secret      string `yaml:"secret"`
}

type Auth struct {
	Mode       string `yaml:"mode"`
	HMACSecret string `yaml:"hmac_secret"`
}

// Config is the full service configuration.
type Config struct {
	Server       Server    `yaml:"server"`
	Rate         Rate      `yaml:"rate"`
	Jobs         Jobs      `yaml:"jobs"`
	Annealing    Annealing `yaml:"annealing"`
	DistanceUnit string    `yaml:"distance_unit"`
	Storage      Storage   `yaml:"storage"`
	Broker       Broker    `yaml:"broker"`
	Webhooks     Webhooks  `yaml:"webhooks"`
	Auth         Auth      `yaml:"auth"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: Server{
			Port:          8080,
			AllowOrigins:  "*",
			SolveTimeout:  30 * time.Second,
			MaxOrders:     5000,
			MaxVehicles:   500,
			MaxIterations: 1_000_000,
		},
		Rate: Rate{RPS: 0, Burst: 20},
		Jobs: Jobs{Workers: 4, Queue: 64, Retain: time.Hour, Timeout: 5 * time.Minute},
		Annealing: Annealing{
			InitialTemp:   1000,
			FinalTemp:     1,
			CoolingRate:   0.995,
			MaxIterations: 10000,
		},
		DistanceUnit: string(geo.Kilometers),
		Webhooks:     Webhooks{MaxAttempts: 10},
		Auth:         Auth{Mode: "off"},
	}
}

// Load builds the configuration. path may be empty, in which case VRP_CONFIG is consulted.
// A missing .env file is not an error; a missing YAML file named explicitly is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VRP_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Server.Port)
	str("ALLOW_ORIGINS", &c.Server.AllowOrigins)
	dur("SOLVE_TIMEOUT", &c.Server.SolveTimeout)
	num("MAX_ORDERS", &c.Server.MaxOrders)
	num("MAX_VEHICLES", &c.Server.MaxVehicles)
	num("MAX_ITERATIONS", &c.Server.MaxIterations)
	if v := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); v != "" {
		c.Server.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Server.TrustedProxies = append(c.Server.TrustedProxies, p)
			}
		}
	}
	float("RATE_RPS", &c.Rate.RPS)
	num("RATE_BURST", &c.Rate.Burst)
	num("JOB_WORKERS", &c.Jobs.Workers)
	num("JOB_QUEUE", &c.Jobs.Queue)
	dur("JOB_RETAIN", &c.Jobs.Retain)
	dur("JOB_TIMEOUT", &c.Jobs.Timeout)
	float("SA_INITIAL_TEMP", &c.Annealing.InitialTemp)
	float("SA_FINAL_TEMP", &c.Annealing.FinalTemp)
	float("SA_COOLING_RATE", &c.Annealing.CoolingRate)
	num("SA_MAX_ITERATIONS", &c.Annealing.MaxIterations)
	str("DISTANCE_UNIT", &c.DistanceUnit)
	str("DATABASE_URL", &c.Storage.DatabaseURL)
	str("REDIS_URL", &c.Broker.RedisURL)
	num("WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
	str("WEBHOOK_SECRET", &c.Webhooks.Secret)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	c.Auth.Mode = strings.ToLower(c.Auth.Mode)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	case c.Server.SolveTimeout <= 0:
		return fmt.Errorf("config: solve_timeout must be positive")
	case c.Server.MaxOrders <= 0 || c.Server.MaxVehicles <= 0:
		return fmt.Errorf("config: max_orders and max_vehicles must be positive")
	case c.Rate.RPS < 0 || (c.Rate.RPS > 0 && c.Rate.Burst <= 0):
		return fmt.Errorf("config: invalid rate limit %v/%d", c.Rate.RPS, c.Rate.Burst)
	case c.Jobs.Workers <= 0:
		return fmt.Errorf("config: jobs.workers must be positive")
	case c.Jobs.Queue <= 0:
		return fmt.Errorf("config: jobs.queue must be positive")
	case c.Jobs.Timeout <= 0:
		return fmt.Errorf("config: jobs.timeout must be positive")
	case c.Server.MaxIterations <= 0:
		return fmt.Errorf("config: server.max_iterations must be positive")
	case c.Annealing.MaxIterations > c.Server.MaxIterations:
		return fmt.Errorf("config: annealing.max_iterations %d exceeds server.max_iterations %d", c.Annealing.MaxIterations, c.Server.MaxIterations)
	case c.Webhooks.MaxAttempts <= 0:
		return fmt.Errorf("config: webhooks.max_attempts must be positive")
	}
	switch c.Auth.Mode {
	case "off", "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("config: auth mode hmac needs AUTH_HMAC_SECRET")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	for _, p := range c.Server.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("config: trusted proxy %q is not an IP or CIDR", p)
		}
	}
	if _, err := geo.ParseUnit(c.DistanceUnit); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ac := c.AnnealConfig()
	if err := ac.Validate(); err != nil {
		return fmt.Errorf("config: annealing: %w", err)
	}
	return nil
}

// Unit returns the default distance unit in canonical form.
func (c Config) Unit() geo.Unit {
	u, err := geo.ParseUnit(c.DistanceUnit)
	if err != nil {
		return geo.Kilometers
	}
	return u
}

// AnnealConfig returns the annealing defaults as a solver config.
func (c Config) AnnealConfig() opt.Config {
	return opt.Config{
		InitialTemperature: c.Annealing.InitialTemp,
		FinalTemperature:   c.Annealing.FinalTemp,
		CoolingRate:        c.Annealing.CoolingRate,
		MaxIterations:      c.Annealing.MaxIterations,
		Unit:               c.Unit(),
	}
}

// Redacted returns the settings for display, with secrets reduced to presence flags.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"server":         c.Server,
		"rate":           c.Rate,
		"jobs":           c.Jobs,
		"annealing":      c.Annealing,
		"distance_unit":  c.Unit(),
		"database":       c.Storage.DatabaseURL != "",
		"redis":          c.Broker.RedisURL != "",
		"webhook_secret": c.Webhooks.Secret != "",
		"webhook_max":    c.Webhooks.MaxAttempts,
		"auth_mode":      c.Auth.Mode,
		"auth_secret":    c.Auth.HMACSecret != "",
	}
}
