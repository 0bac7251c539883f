// Package config loads the pipeline's configuration surface: a YAML file
// for structural/deployment settings plus the environment-variable
// overrides enumerated in spec §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the structural configuration loaded from config.yaml.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		Driver   string `yaml:"driver"` // mysql | postgres
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	S3 struct {
		Region     string `yaml:"region"`
		BucketName string `yaml:"bucketName"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
	} `yaml:"s3"`

	StoreBackend string `yaml:"storeBackend"` // "minio" | "s3"

	AI Runtime `yaml:"-"`
}

// Runtime holds the environment-driven knobs from spec §6, all optional
// with the documented defaults.
type Runtime struct {
	AIEnabled            bool
	AIAPIKey             string
	AIModelID            string
	AIMaxTokens          int
	AITemperature        float64
	AITimeout            time.Duration
	RuleMaxBytesPerFile  int64
	ScanWorkers          int
	GlobalDeadline       time.Duration
	IgnoredPathExtra     []string
}

// Load reads path as YAML and layers the environment-variable overrides
// from spec §6 on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.AI = LoadRuntimeFromEnv()
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "minio"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	return &cfg, nil
}

// LoadRuntimeFromEnv reads the environment-variable surface from spec §6,
// falling back to the documented defaults for anything unset.
func LoadRuntimeFromEnv() Runtime {
	r := Runtime{
		AIEnabled:           envBool("AI_ENABLED", true),
		AIAPIKey:            os.Getenv("AI_API_KEY"),
		AIModelID:           envString("AI_MODEL_ID", ""),
		AIMaxTokens:         envInt("AI_MAX_TOKENS", 2000),
		AITemperature:       envFloat("AI_TEMPERATURE", 0.1),
		AITimeout:           time.Duration(envInt("AI_TIMEOUT_MS", 30000)) * time.Millisecond,
		RuleMaxBytesPerFile: int64(envInt("RULE_MAX_BYTES_PER_FILE", 1048576)),
		ScanWorkers:         envInt("SCAN_WORKERS", 4),
		GlobalDeadline:      time.Duration(envInt("GLOBAL_DEADLINE_MS", 900000)) * time.Millisecond,
	}
	if extra := os.Getenv("IGNORED_PATH_EXTRA"); extra != "" {
		for _, p := range strings.Split(extra, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				r.IgnoredPathExtra = append(r.IgnoredPathExtra, p)
			}
		}
	}
	return r
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// MySQLDSN builds a MySQL DSN from the configured connection fields.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// PostgresDSN builds a Postgres DSN for the lib/pq driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name)
}
