// Package config loads Tide configuration from a JSON file with
// TIDE_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Merge       MergeConfig       `json:"merge"`
	Log         LogConfig         `json:"log"`
	MetricsAddr string            `json:"metrics_addr"`
}

// ObjectStoreConfig selects the store backend holding the table.
type ObjectStoreConfig struct {
	Type      string `json:"type"` // memory, filesystem, s3
	RootPath  string `json:"root_path,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Region    string `json:"region,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

// MergeConfig bounds merge execution.
type MergeConfig struct {
	// Workers caps parallelism for scans and classification.
	// 0 means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
	// TargetFileRows is the row budget per written data file.
	// 0 means the writer default.
	TargetFileRows int `json:"target_file_rows,omitempty"`
	// MaxOutputFiles caps the files one operation may write.
	// 0 means the writer default.
	MaxOutputFiles int `json:"max_output_files,omitempty"`
}

// LogConfig tunes the transaction log.
type LogConfig struct {
	// CheckpointInterval is the number of versions between checkpoints.
	// 0 means the log default.
	CheckpointInterval int `json:"checkpoint_interval,omitempty"`
}

func Default() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{Type: "memory"},
		MetricsAddr: "",
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TIDE_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("TIDE_OBJECT_STORE_TYPE"); env != "" {
		cfg.ObjectStore.Type = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_ROOT"); env != "" {
		cfg.ObjectStore.RootPath = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_ENDPOINT"); env != "" {
		cfg.ObjectStore.Endpoint = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_BUCKET"); env != "" {
		cfg.ObjectStore.Bucket = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_ACCESS_KEY"); env != "" {
		cfg.ObjectStore.AccessKey = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_SECRET_KEY"); env != "" {
		cfg.ObjectStore.SecretKey = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_REGION"); env != "" {
		cfg.ObjectStore.Region = env
	}
	if env := os.Getenv("TIDE_OBJECT_STORE_USE_SSL"); env != "" {
		cfg.ObjectStore.UseSSL = env == "true" || env == "1"
	}
	if env := os.Getenv("TIDE_MERGE_WORKERS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Merge.Workers = n
		}
	}
	if env := os.Getenv("TIDE_MERGE_TARGET_FILE_ROWS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Merge.TargetFileRows = n
		}
	}
	if env := os.Getenv("TIDE_MERGE_MAX_OUTPUT_FILES"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Merge.MaxOutputFiles = n
		}
	}
	if env := os.Getenv("TIDE_LOG_CHECKPOINT_INTERVAL"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			cfg.Log.CheckpointInterval = n
		}
	}
	if env := os.Getenv("TIDE_METRICS_ADDR"); env != "" {
		cfg.MetricsAddr = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.ObjectStore.Type {
	case "memory":
	case "filesystem":
		if c.ObjectStore.RootPath == "" {
			return fmt.Errorf("filesystem object store requires root_path")
		}
	case "s3":
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("s3 object store requires bucket")
		}
	default:
		return fmt.Errorf("unknown object store type %q", c.ObjectStore.Type)
	}
	if c.Merge.Workers < 0 {
		return fmt.Errorf("merge workers must be >= 0")
	}
	if c.Merge.TargetFileRows < 0 {
		return fmt.Errorf("target_file_rows must be >= 0")
	}
	if c.Merge.MaxOutputFiles < 0 {
		return fmt.Errorf("max_output_files must be >= 0")
	}
	if c.Log.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval must be >= 0")
	}
	return nil
}
