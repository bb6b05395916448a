// Package config loads pizzeria settings from defaults, an optional YAML file,
// .env files and PIZZERIA_* environment variables.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/deicod/pizzeria/errors"
)

const (
	EnvPrefix = "PIZZERIA"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultAddr        = ":5555"
	DefaultDatabaseURL = "file:app.db"
	DefaultServiceName = "pizzeria"
)

// Drivers lists the accepted database.driver values.
var Drivers = []string{DriverSQLite, DriverPostgres}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver      string     `mapstructure:"driver"`
	URL         string     `mapstructure:"url"`
	AutoMigrate bool       `mapstructure:"auto_migrate"`
	Pool        PoolConfig `mapstructure:"pool"`
}

type PoolConfig struct {
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// SetDefaults configures default values for all configuration options.
// database.driver has none; it follows database.url unless set explicitly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", DefaultDatabaseURL)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.pool.max_conns", 10)
	v.SetDefault("database.pool.min_conns", 2)
	v.SetDefault("database.pool.max_conn_lifetime", time.Hour)
	v.SetDefault("database.pool.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", DefaultServiceName)
}

// BindEnv binds the PIZZERIA_* variables plus the legacy DB_URI.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.driver", EnvPrefix+"_DATABASE_DRIVER")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DB_URI")
}

// DriverFromURL picks the driver a database URL names. postgres:// and
// postgresql:// select Postgres; anything else is a SQLite path or URI.
func DriverFromURL(url string) string {
	lower := strings.ToLower(strings.TrimSpace(url))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. When empty, pizzeria.yaml is
	// looked up in the working directory and ignored if absent.
	ConfigFile string
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are skipped. Defaults to ".env".
	EnvFiles []string
}

// Load resolves the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", opts.ConfigFile)
		}
	} else {
		v.SetConfigName("pizzeria")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read pizzeria.yaml")
			}
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates an already prepared viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverFromURL(cfg.Database.URL)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if files == nil {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return errors.Wrap(err, "load env files")
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !isKnownDriver(c.Database.Driver) {
		err := errors.Newf("unsupported database.driver %q", c.Database.Driver)
		if s := SuggestDriver(c.Database.Driver); s != "" {
			err = errors.WithHint(err, "did you mean "+s+"?")
		}
		return err
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url cannot be empty")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Database.Pool.MaxConns < 0 || c.Database.Pool.MinConns < 0 {
		return errors.New("database.pool connection counts must not be negative")
	}
	if c.Database.Pool.MaxConns > 0 && c.Database.Pool.MinConns > c.Database.Pool.MaxConns {
		return errors.Newf("database.pool.min_conns (%d) exceeds max_conns (%d)", c.Database.Pool.MinConns, c.Database.Pool.MaxConns)
	}
	return nil
}

func isKnownDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}

// SuggestDriver returns the closest known driver within edit distance 3.
func SuggestDriver(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	type candidate struct {
		driver string
		dist   int
	}
	var candidates []candidate
	for _, d := range Drivers {
		if dist := levenshtein.ComputeDistance(name, d); dist <= 3 {
			candidates = append(candidates, candidate{d, dist})
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	return candidates[0].driver
}
