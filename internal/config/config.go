package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Tracking TrackingConfig `yaml:"tracking"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	DefaultFPS         int     `yaml:"default_fps"`
	MaxFPS             int     `yaml:"max_fps"`
	WorkerCount        int     `yaml:"worker_count"`
	FrameWidth         int     `yaml:"frame_width"`
}

// TrackingConfig tunes the short-term IoU tracker that issues ephemeral
// track bindings.
type TrackingConfig struct {
	MaxAge       int     `yaml:"max_age"`
	IoUThreshold float64 `yaml:"iou_threshold"`
}

// SessionConfig tunes the visit session state machine.
type SessionConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a face to
	// resolve to an existing visitor instead of registering a new one.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// ExitTimeout is how long a visitor must be absent, with zero
	// reappearance, before an exit event is logged.
	ExitTimeout time.Duration `yaml:"exit_timeout"`
}

type StorageConfig struct {
	// FrameRetention is how many raw frames to keep per stream (0 = keep all).
	FrameRetention int `yaml:"frame_retention"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DefaultFPS == 0 {
		cfg.Vision.DefaultFPS = 5
	}
	if cfg.Vision.MaxFPS == 0 {
		cfg.Vision.MaxFPS = 10
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Vision.FrameWidth == 0 {
		cfg.Vision.FrameWidth = 640
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Tracking.MaxAge == 0 {
		cfg.Tracking.MaxAge = 1
	}
	if cfg.Tracking.IoUThreshold == 0 {
		cfg.Tracking.IoUThreshold = 0.3
	}
	if cfg.Session.SimilarityThreshold == 0 {
		cfg.Session.SimilarityThreshold = 0.6
	}
	if cfg.Session.ExitTimeout == 0 {
		cfg.Session.ExitTimeout = 3 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VT_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("VT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("VT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("VT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("VT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("VT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("VT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VT_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("VT_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("VT_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("VT_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("VT_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("VT_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("VT_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Session.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("VT_EXIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.ExitTimeout = d
		}
	}
}
