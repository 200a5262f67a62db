// Package config loads the suggestd configuration: defaults, then the YAML file, then
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is given
const DefaultPath = "config/suggestd.yml"

// Engine types
const (
	EngineMemory  = "memory"
	EngineElastic = "elastic"
	EngineRedis   = "redis"
	EngineSolr    = "solr"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	FSuggest FSuggestConfig `yaml:"fsuggest"`
	Pool     PoolConfig     `yaml:"pool"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	MaxBodySize     string        `yaml:"max_body_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type EngineConfig struct {
	Type           string   `yaml:"type"`
	Hosts          []string `yaml:"hosts"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	IndexSuffix    string   `yaml:"index_suffix"`
	ConnectRetries uint64   `yaml:"connect_retries"`
	// Refresh is the elastic refresh policy of writes
	Refresh string `yaml:"refresh"`
	// PrefixMatchWeights are static per-index weights, used when the engine keeps no index metadata
	PrefixMatchWeights map[string]float64 `yaml:"prefix_match_weights"`
}

type FSuggestConfig struct {
	// NGQuery is the comma separated list of queries never sent to the engine
	NGQuery       string             `yaml:"ngquery"`
	PopularWords  PopularWordsConfig `yaml:"pwords"`
	DefaultFields []string           `yaml:"default_fields"`
}

type PopularWordsConfig struct {
	Excludes   string `yaml:"excludes"`
	WindowSize int    `yaml:"window_size"`
}

type PoolConfig struct {
	Name      string `yaml:"name"`
	Size      int    `yaml:"size"`
	QueueSize int    `yaml:"queue_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Caller bool   `yaml:"caller"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":9280",
			MaxBodySize:     "1M",
			ShutdownTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			Type:           EngineMemory,
			IndexSuffix:    ".suggest",
			ConnectRetries: 5,
			Refresh:        "false",
		},
		FSuggest: FSuggestConfig{
			PopularWords:  PopularWordsConfig{WindowSize: 20},
			DefaultFields: []string{"content"},
		},
		Pool: PoolConfig{
			Name:      "suggest",
			QueueSize: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies the environment. A missing file is not an
// error; an empty path reads DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnvOverrides overrides the file values with SUGGESTD_* variables
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("SUGGESTD_ENGINE"); v != "" {
		c.Engine.Type = v
	}
	if v := os.Getenv("SUGGESTD_HOSTS"); v != "" {
		c.Engine.Hosts = splitList(v)
	}
	if v := os.Getenv("SUGGESTD_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("SUGGESTD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("SUGGESTD_NGQUERY"); ok {
		c.FSuggest.NGQuery = v
	}
	if v, ok := os.LookupEnv("SUGGESTD_PWORDS_EXCLUDES"); ok {
		c.FSuggest.PopularWords.Excludes = v
	}
	if v := os.Getenv("SUGGESTD_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUGGESTD_POOL_SIZE: %w", err)
		}
		c.Pool.Size = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Engine.Type {
	case EngineMemory:
	case EngineElastic, EngineRedis, EngineSolr:
		if len(c.Engine.Hosts) == 0 {
			return fmt.Errorf("engine %s needs at least one host", c.Engine.Type)
		}
	default:
		return fmt.Errorf("unknown engine type %q", c.Engine.Type)
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	if c.Pool.Size < 0 || c.Pool.QueueSize <= 0 {
		return fmt.Errorf("invalid pool size %d / queue size %d", c.Pool.Size, c.Pool.QueueSize)
	}
	if c.FSuggest.PopularWords.WindowSize <= 0 {
		return fmt.Errorf("invalid popular words window size %d", c.FSuggest.PopularWords.WindowSize)
	}
	return nil
}

// MaxBodyBytes parses server.max_body_size ("1M", "512K")
func (c *Config) MaxBodyBytes() (int64, error) {
	n, err := bytefmt.ToBytes(c.Server.MaxBodySize)
	if err != nil {
		return 0, fmt.Errorf("server.max_body_size: %w", err)
	}
	return int64(n), nil
}

func splitList(v string) []string {
	var ret []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ret = append(ret, s)
		}
	}
	return ret
}
