package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aeye-server-go/internal/platform/errors"
)

const (
	defaultConfigPath = "config.yaml"
	envConfigPath     = "AEYE_CONFIG"
)

// Loader reads config.yaml on top of DefaultConfig and applies env overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads $AEYE_CONFIG or ./config.yaml.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load returns defaults when no config file exists; a file that exists but does
// not parse is an error.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// .env is optional
		_ = godotenv.Load()
	}

	path := l.path
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg := DefaultConfig()
	origin := "defaults"
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.parse", fmt.Sprintf("invalid config file %s", path), err)
		}
		origin = path
	case !os.IsNotExist(err):
		return nil, errors.Wrap(errors.KindConfig, "config.read", fmt.Sprintf("cannot read config file %s", path), err)
	}

	applyEnv(cfg)
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: origin}, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AEYE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AEYE_ORACLE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
		cfg.Oracle.Mode = "remote"
	}
	if v := os.Getenv("AEYE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("AEYE_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	invalid := func(msg string) error {
		return errors.New(errors.KindConfig, "config.validate", msg)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return invalid(fmt.Sprintf("server.port out of range: %d", cfg.Server.Port))
	}
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		return invalid(fmt.Sprintf("unsupported database.driver %q", cfg.Database.Driver))
	}
	switch cfg.Artifacts.Driver {
	case "local":
		if cfg.Artifacts.Dir == "" {
			return invalid("artifacts.dir is required for the local driver")
		}
	case "minio":
		if cfg.Artifacts.MinIO.Endpoint == "" || cfg.Artifacts.MinIO.Bucket == "" {
			return invalid("artifacts.minio.endpoint and bucket are required for the minio driver")
		}
	default:
		return invalid(fmt.Sprintf("unsupported artifacts.driver %q", cfg.Artifacts.Driver))
	}
	switch cfg.Oracle.Mode {
	case "local":
		if cfg.Oracle.ProbabilityDiabetes < 0 || cfg.Oracle.ProbabilityDiabetes > 1 ||
			cfg.Oracle.QualityPassRate < 0 || cfg.Oracle.QualityPassRate > 1 {
			return invalid("oracle probabilities must be within [0,1]")
		}
	case "remote":
		if cfg.Oracle.BaseURL == "" {
			return invalid("oracle.base_url is required in remote mode")
		}
	default:
		return invalid(fmt.Sprintf("unsupported oracle.mode %q", cfg.Oracle.Mode))
	}
	if cfg.Image.MaxFileSize <= 0 {
		return invalid("image.max_file_size must be positive")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return invalid("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return invalid("redis.addr is required when redis is enabled")
	}
	return nil
}

// Credentials authenticate the telemetry write endpoint. Loaded once at start.
type Credentials struct {
	UserID string
	APIKey string
}

// LoadCredentials reads {"USER_ID": ..., "API_KEY": ...}; USER_ID may be a number or a string.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, errors.Wrap(errors.KindConfig, "credentials.read", "cannot read telemetry credentials", err)
	}

	var raw struct {
		UserID json.RawMessage `json:"USER_ID"`
		APIKey string          `json:"API_KEY"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Credentials{}, errors.Wrap(errors.KindConfig, "credentials.parse", "invalid telemetry credentials file", err)
	}

	userID := strings.Trim(strings.TrimSpace(string(raw.UserID)), `"`)
	if userID == "" || raw.APIKey == "" {
		return Credentials{}, errors.New(errors.KindConfig, "credentials.parse", "USER_ID and API_KEY are required")
	}
	return Credentials{UserID: userID, APIKey: raw.APIKey}, nil
}
