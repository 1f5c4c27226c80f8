// Package config provides configuration management for the strand CLI.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the strand CLI configuration
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`

	// Project configuration
	Project ProjectConfig `yaml:"project"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Queue configuration
	Queue QueueConfig `yaml:"queue"`
}

// ProjectConfig contains project-level settings
type ProjectConfig struct {
	// Name of the project
	Name string `yaml:"name"`

	// Service name reported in metrics and traces
	Service string `yaml:"service"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Driver is the store driver (postgres, memory)
	Driver string `yaml:"driver"`

	// URL is the database connection string
	URL string `yaml:"url,omitempty"`

	// Schema is the database schema to use
	Schema string `yaml:"schema"`
}

// RedisConfig contains dedup store settings
type RedisConfig struct {
	// Addr is the Redis address (host:port). Empty disables Redis dedup.
	Addr string `yaml:"addr,omitempty"`

	// KeyPrefix namespaces dedup keys
	KeyPrefix string `yaml:"key_prefix"`
}

// QueueConfig contains queue transport settings
type QueueConfig struct {
	// Driver is the queue driver (kafka, sns, memory)
	Driver string `yaml:"driver"`

	// Brokers are the Kafka broker addresses
	Brokers []string `yaml:"brokers,omitempty"`

	// TopicPrefix prefixes job type topic names
	TopicPrefix string `yaml:"topic_prefix"`

	// TopicARN is the SNS topic for the sns driver
	TopicARN string `yaml:"topic_arn,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Project: ProjectConfig{
			Name:    "my-strand-app",
			Service: "my-strand-app",
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Schema: "strand",
		},
		Redis: RedisConfig{
			KeyPrefix: "strand:dedup:",
		},
		Queue: QueueConfig{
			Driver:      "kafka",
			Brokers:     []string{"localhost:9092"},
			TopicPrefix: "strand.",
		},
	}
}

// ConfigFileName is the default config file name
const ConfigFileName = "strand.yaml"

// Load loads configuration from the specified directory
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save saves the configuration to the specified directory
func (c *Config) Save(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	return c.SaveFile(path)
}

// SaveFile saves the configuration to a specific file path
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Exists checks if a config file exists in the directory
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindConfig searches for a config file starting from dir and going up
func FindConfig(dir string) (string, *Config, error) {
	current := dir
	for {
		configPath := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := LoadFile(configPath)
			if err != nil {
				return "", nil, err
			}
			return current, cfg, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached root, config not found
			return "", nil, os.ErrNotExist
		}
		current = parent
	}
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errors []string

	if c.Project.Name == "" {
		errors = append(errors, "project.name is required")
	}

	if c.Database.Driver == "" {
		errors = append(errors, "database.driver is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		errors = append(errors, "database.driver must be 'postgres' or 'memory'")
	}

	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		errors = append(errors, "database.url is required for postgres driver")
	}

	switch c.Queue.Driver {
	case "", "kafka", "sns", "memory":
	default:
		errors = append(errors, "queue.driver must be 'kafka', 'sns' or 'memory'")
	}

	if c.Queue.Driver == "kafka" && len(c.Queue.Brokers) == 0 {
		errors = append(errors, "queue.brokers is required for kafka driver")
	}

	if c.Queue.Driver == "sns" && c.Queue.TopicARN == "" {
		errors = append(errors, "queue.topic_arn is required for sns driver")
	}

	return errors
}
