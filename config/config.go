package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // mesh-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Mesh struct {
	App          string `yaml:"app"`          // namespace в имени топика
	Version      string `yaml:"version"`      // версия схемы в имени топика
	Backend      string `yaml:"backend"`      // memory|postgres
	PeerWait     string `yaml:"peerWait"`     // таймаут ожидания пиров, "30s"
	HistoryLimit int    `yaml:"historyLimit"` // глубина бэкфилла
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Mesh     Mesh     `yaml:"mesh"`
	Postgres Postgres `yaml:"postgres"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Mesh.Backend {
	case "", "memory":
		c.Mesh.Backend = "memory"
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for mesh.backend=postgres")
		}
	default:
		return errors.New("mesh.backend must be memory or postgres")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "mesh-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Mesh.HistoryLimit <= 0 {
		c.Mesh.HistoryLimit = 500
	}
	return nil
}

// PeerWaitDuration — таймаут ожидания пиров; по умолчанию 30s.
func (c *Config) PeerWaitDuration() time.Duration {
	return parseDurationOr(30*time.Second, c.Mesh.PeerWait)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
