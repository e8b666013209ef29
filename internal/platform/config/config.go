package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Image     ImageConfig     `yaml:"image"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Redis     RedisConfig     `yaml:"redis"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

type ServerConfig struct {
	IP               string        `yaml:"ip"`
	Port             int           `yaml:"port"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir     string   `yaml:"static_dir"`
	WebsocketPath string   `yaml:"websocket_path"`
	AllowOrigins  []string `yaml:"allow_origins"`
}

// DatabaseConfig selects the gorm dialector: sqlite, postgres or mysql.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type ArtifactsConfig struct {
	Driver string      `yaml:"driver"` // local | minio
	Dir    string      `yaml:"dir"`
	MinIO  MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// OracleConfig picks between the in-process simulator and a remote oracle service.
type OracleConfig struct {
	Mode                string        `yaml:"mode"` // local | remote
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	ProbabilityDiabetes float64       `yaml:"probability_diabetes"`
	QualityPassRate     float64       `yaml:"quality_pass_rate"`
	MinLatency          time.Duration `yaml:"min_latency"`
	MaxLatency          time.Duration `yaml:"max_latency"`
}

type ImageConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

type PipelineConfig struct {
	SimulatedDelayMax time.Duration `yaml:"simulated_delay_max"`
	QueueSize         int           `yaml:"queue_size"`
}

type TelemetryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint"`
	Source          string        `yaml:"source"`
	CredentialsFile string        `yaml:"credentials_file"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	Timeout         time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

type JobsConfig struct {
	SweepSchedule string        `yaml:"sweep_schedule"`
	PendingTTL    time.Duration `yaml:"pending_ttl"`
}
