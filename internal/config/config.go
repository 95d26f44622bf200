// Package config loads widgetd configuration.
//
// Values are layered: built-in defaults, then a YAML or TOML file, then
// WIDGETD_* environment variables. The merged result is validated against an
// embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Profiles select the repository implementation.
const (
	ProfileMemory = "memory"
	ProfileDB     = "db"
)

// Id generator kinds.
const (
	IDsCounter = "counter"
	IDsRedis   = "redis"
)

// Config is the complete widgetd configuration.
type Config struct {
	Profile    string     `yaml:"profile" toml:"profile" json:"profile"`
	Database   Database   `yaml:"database" toml:"database" json:"database"`
	HTTP       HTTP       `yaml:"http" toml:"http" json:"http"`
	IDs        IDs        `yaml:"ids" toml:"ids" json:"ids"`
	Lock       Lock       `yaml:"lock" toml:"lock" json:"lock"`
	Pagination Pagination `yaml:"pagination" toml:"pagination" json:"pagination"`
	Log        Log        `yaml:"log" toml:"log" json:"log"`
}

// Database configures the db profile.
type Database struct {
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// IDs configures the widget id generator.
type IDs struct {
	Kind      string `yaml:"kind" toml:"kind" json:"kind"`
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr" json:"redis_addr"`
	RedisKey  string `yaml:"redis_key" toml:"redis_key" json:"redis_key"`
}

// Lock configures the repository lock.
type Lock struct {
	// Timeout bounds the wait for the lock. Zero waits until the request's
	// context is done.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// Pagination configures paged listings.
type Pagination struct {
	DefaultSize int `yaml:"default_size" toml:"default_size" json:"default_size"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Profile: ProfileMemory,
		Database: Database{
			Driver: "sqlite3",
			DSN:    "widgets.db",
		},
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		IDs: IDs{
			Kind:     IDsCounter,
			RedisKey: "widgetd:widget:id",
		},
		Pagination: Pagination{DefaultSize: 50},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}
	return nil
}

// envVar binds one WIDGETD_* variable to a field.
type envVar struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

var envVars = []envVar{
	{"WIDGETD_PROFILE", str(func(c *Config) *string { return &c.Profile })},
	{"WIDGETD_DATABASE_DRIVER", str(func(c *Config) *string { return &c.Database.Driver })},
	{"WIDGETD_DATABASE_DSN", str(func(c *Config) *string { return &c.Database.DSN })},
	{"WIDGETD_HTTP_ADDR", str(func(c *Config) *string { return &c.HTTP.Addr })},
	{"WIDGETD_HTTP_READ_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.HTTP.ReadTimeout })},
	{"WIDGETD_HTTP_WRITE_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.HTTP.WriteTimeout })},
	{"WIDGETD_HTTP_SHUTDOWN_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.HTTP.ShutdownTimeout })},
	{"WIDGETD_IDS_KIND", str(func(c *Config) *string { return &c.IDs.Kind })},
	{"WIDGETD_IDS_REDIS_ADDR", str(func(c *Config) *string { return &c.IDs.RedisAddr })},
	{"WIDGETD_IDS_REDIS_KEY", str(func(c *Config) *string { return &c.IDs.RedisKey })},
	{"WIDGETD_LOCK_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Lock.Timeout })},
	{"WIDGETD_PAGINATION_DEFAULT_SIZE", integer(func(c *Config) *int { return &c.Pagination.DefaultSize })},
	{"WIDGETD_LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"WIDGETD_LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			return fmt.Errorf("environment %s=%q: %w", ev.name, v, err)
		}
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename("config"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}
