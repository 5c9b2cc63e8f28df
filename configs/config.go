package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sfincsrun/pkg/models"
)

type Config struct {
	LogLevel    string `yaml:"log_level"`
	LogEncoding string `yaml:"log_encoding"`

	DockerBin       string `yaml:"docker_bin"`
	ApptainerBin    string `yaml:"apptainer_bin"`
	ImageRepository string `yaml:"image_repository"`
	ImageTag        string `yaml:"image_tag"`
	ContainerMount  string `yaml:"container_mount"`
	Executable      string `yaml:"executable"`

	Store StoreConfig `yaml:"store"`

	MetricsFile string `yaml:"metrics_file"`

	TracingEnabled  bool    `yaml:"tracing_enabled"`
	TracingEndpoint string  `yaml:"tracing_endpoint"`
	TracingSampling float64 `yaml:"tracing_sampling"`

	PublishFailureThreshold int `yaml:"publish_failure_threshold"`
}

// StoreConfig selects where run logs and archives are published. An empty
// Kind disables publishing.
type StoreConfig struct {
	Kind            string `yaml:"kind"` // "", "local" or "s3"
	LocalDir        string `yaml:"local_dir"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LoadConfig reads the optional YAML file named by SFINCSRUN_CONFIG and then
// applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	if path := getEnv("SFINCSRUN_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel:                "info",
		LogEncoding:             "console",
		DockerBin:               "docker",
		ApptainerBin:            "apptainer",
		ImageRepository:         "deltares/sfincs-cpu",
		ImageTag:                models.DefaultImageTag,
		ContainerMount:          "/data",
		TracingEndpoint:         "localhost:4318",
		TracingSampling:         1.0,
		PublishFailureThreshold: 3,
	}
}

// mergeFile decodes path over the current values. Unknown keys are errors so
// typos do not silently fall back to defaults.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("SFINCSRUN_LOG_LEVEL", c.LogLevel)
	c.LogEncoding = getEnv("SFINCSRUN_LOG_ENCODING", c.LogEncoding)
	c.DockerBin = getEnv("SFINCSRUN_DOCKER_BIN", c.DockerBin)
	c.ApptainerBin = getEnv("SFINCSRUN_APPTAINER_BIN", c.ApptainerBin)
	c.ImageRepository = getEnv("SFINCSRUN_IMAGE_REPOSITORY", c.ImageRepository)
	c.ImageTag = getEnv("SFINCSRUN_IMAGE_TAG", c.ImageTag)
	c.ContainerMount = getEnv("SFINCSRUN_CONTAINER_MOUNT", c.ContainerMount)
	c.Executable = getEnv("SFINCSRUN_EXECUTABLE", c.Executable)

	c.Store.Kind = strings.ToLower(getEnv("SFINCSRUN_STORE", c.Store.Kind))
	c.Store.LocalDir = getEnv("SFINCSRUN_STORE_DIR", c.Store.LocalDir)
	c.Store.Bucket = getEnv("SFINCSRUN_S3_BUCKET", c.Store.Bucket)
	c.Store.Prefix = getEnv("SFINCSRUN_S3_PREFIX", c.Store.Prefix)
	c.Store.Region = getEnv("AWS_REGION", c.Store.Region)
	c.Store.Endpoint = getEnv("SFINCSRUN_S3_ENDPOINT", c.Store.Endpoint)
	c.Store.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Store.AccessKeyID)
	c.Store.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Store.SecretAccessKey)

	c.MetricsFile = getEnv("SFINCSRUN_METRICS_FILE", c.MetricsFile)

	c.TracingEnabled = getEnvAsBool("SFINCSRUN_TRACING_ENABLED", c.TracingEnabled)
	c.TracingEndpoint = getEnv("SFINCSRUN_TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingSampling = getEnvAsFloat("SFINCSRUN_TRACING_SAMPLING", c.TracingSampling)

	c.PublishFailureThreshold = getEnvAsInt("SFINCSRUN_PUBLISH_FAILURE_THRESHOLD", c.PublishFailureThreshold)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}
