package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	Camera    CameraConfig
	Pipeline  PipelineConfig
	OCR       OCRConfig
	Artifacts ArtifactConfig
	Database  DatabaseConfig
	Batch     BatchConfig
}

type CameraConfig struct {
	ID        int
	Source    string // opencv, synthetic or directory
	Width     int
	Height    int
	FPS       int
	Dir       string
	AutoStart bool
}

type PipelineConfig struct {
	Cooldown            time.Duration
	ConfidenceThreshold float64
	RingCapacity        int
	AcquisitionInterval time.Duration
	ProcessingInterval  time.Duration
	IdleInterval        time.Duration
	ReadBackoff         time.Duration
	OracleTimeout       time.Duration
	// QueueWithoutArtifact keeps a capture whose artifact could not be stored.
	QueueWithoutArtifact bool
}

type OCRConfig struct {
	Languages []string
}

type ArtifactConfig struct {
	Backend          string // local or azure
	Dir              string
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
}

type DatabaseConfig struct {
	Driver string // sqlite3 or mysql
	DSN    string
}

type BatchConfig struct {
	Enabled       bool
	DrainInterval time.Duration
	Workers       int
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("CAMERA_ID", 0)
	v.SetDefault("CAMERA_SOURCE", "opencv")
	v.SetDefault("CAMERA_WIDTH", 1280)
	v.SetDefault("CAMERA_HEIGHT", 720)
	v.SetDefault("CAMERA_FPS", 30)
	v.SetDefault("CAMERA_DIR", "./frames")
	v.SetDefault("CAMERA_AUTOSTART", false)

	v.SetDefault("COOLDOWN", 2*time.Second)
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.65)
	v.SetDefault("RING_CAPACITY", 5)
	v.SetDefault("ACQUISITION_INTERVAL", 10*time.Millisecond)
	v.SetDefault("PROCESSING_INTERVAL", 500*time.Millisecond)
	v.SetDefault("IDLE_INTERVAL", 100*time.Millisecond)
	v.SetDefault("READ_BACKOFF", 100*time.Millisecond)
	v.SetDefault("ORACLE_TIMEOUT", 10*time.Second)
	v.SetDefault("QUEUE_UNDELIVERABLE", false)

	v.SetDefault("OCR_LANGUAGES", "eng")

	v.SetDefault("ARTIFACT_BACKEND", "local")
	v.SetDefault("ARTIFACT_DIR", "./media/captures")
	v.SetDefault("AZURE_CONTAINER", "captures")

	v.SetDefault("DB_DRIVER", "sqlite3")
	v.SetDefault("DB_DSN", "file:captures.db?_busy_timeout=5000")

	v.SetDefault("BATCH_ENABLED", true)
	v.SetDefault("DRAIN_INTERVAL", 5*time.Second)
	v.SetDefault("BATCH_WORKERS", 2)
}

// LoadFromEnv reads configuration from the environment. When CONFIG_FILE
// is set the file is read first and environment variables override it.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", file, err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:               v.GetString("HOST"),
		Port:               v.GetString("PORT"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		ImageFetchTimeout:  v.GetDuration("IMAGE_FETCH_TIMEOUT"),
		MaxRequestBodySize: v.GetInt64("MAX_REQUEST_BODY_SIZE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Camera: CameraConfig{
			ID:        v.GetInt("CAMERA_ID"),
			Source:    strings.ToLower(v.GetString("CAMERA_SOURCE")),
			Width:     v.GetInt("CAMERA_WIDTH"),
			Height:    v.GetInt("CAMERA_HEIGHT"),
			FPS:       v.GetInt("CAMERA_FPS"),
			Dir:       v.GetString("CAMERA_DIR"),
			AutoStart: v.GetBool("CAMERA_AUTOSTART"),
		},
		Pipeline: PipelineConfig{
			Cooldown:             v.GetDuration("COOLDOWN"),
			ConfidenceThreshold:  v.GetFloat64("CONFIDENCE_THRESHOLD"),
			RingCapacity:         v.GetInt("RING_CAPACITY"),
			AcquisitionInterval:  v.GetDuration("ACQUISITION_INTERVAL"),
			ProcessingInterval:   v.GetDuration("PROCESSING_INTERVAL"),
			IdleInterval:         v.GetDuration("IDLE_INTERVAL"),
			ReadBackoff:          v.GetDuration("READ_BACKOFF"),
			OracleTimeout:        v.GetDuration("ORACLE_TIMEOUT"),
			QueueWithoutArtifact: v.GetBool("QUEUE_UNDELIVERABLE"),
		},
		OCR: OCRConfig{
			Languages: splitList(v.GetString("OCR_LANGUAGES")),
		},
		Artifacts: ArtifactConfig{
			Backend:          strings.ToLower(v.GetString("ARTIFACT_BACKEND")),
			Dir:              v.GetString("ARTIFACT_DIR"),
			AzureAccountName: v.GetString("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  v.GetString("AZURE_ACCOUNT_KEY"),
			AzureContainer:   v.GetString("AZURE_CONTAINER"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
		},
		Batch: BatchConfig{
			Enabled:       v.GetBool("BATCH_ENABLED"),
			DrainInterval: v.GetDuration("DRAIN_INTERVAL"),
			Workers:       v.GetInt("BATCH_WORKERS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges the rest of the service relies on.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}

	pc := c.Pipeline
	if pc.Cooldown < 0 {
		return fmt.Errorf("COOLDOWN must be >= 0 (got %s)", pc.Cooldown)
	}
	if pc.ConfidenceThreshold < 0 || pc.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1] (got %g)", pc.ConfidenceThreshold)
	}
	if pc.RingCapacity < 1 {
		return fmt.Errorf("RING_CAPACITY must be >= 1 (got %d)", pc.RingCapacity)
	}
	if pc.AcquisitionInterval <= 0 || pc.ProcessingInterval <= 0 || pc.IdleInterval <= 0 || pc.ReadBackoff <= 0 {
		return fmt.Errorf("pipeline intervals must be > 0 (got acquisition=%s, processing=%s, idle=%s, backoff=%s)",
			pc.AcquisitionInterval, pc.ProcessingInterval, pc.IdleInterval, pc.ReadBackoff)
	}
	if pc.OracleTimeout < 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be >= 0 (got %s)", pc.OracleTimeout)
	}

	switch c.Camera.Source {
	case "opencv", "synthetic", "directory":
	default:
		return fmt.Errorf("unsupported CAMERA_SOURCE: %q", c.Camera.Source)
	}
	switch c.Artifacts.Backend {
	case "local":
	case "azure":
		if c.Artifacts.AzureAccountName == "" || c.Artifacts.AzureAccountKey == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for the azure backend")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACT_BACKEND: %q", c.Artifacts.Backend)
	}
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.Database.Driver)
	}
	if c.Batch.Enabled && (c.Batch.DrainInterval <= 0 || c.Batch.Workers < 1) {
		return fmt.Errorf("DRAIN_INTERVAL must be > 0 and BATCH_WORKERS >= 1 (got %s, %d)",
			c.Batch.DrainInterval, c.Batch.Workers)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '+' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
