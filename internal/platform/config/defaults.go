package config

import "time"

// DefaultConfig returns a configuration that runs fully local: sqlite, files on
// disk, simulated oracles and telemetry switched off.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:               "0.0.0.0",
			Port:             8000,
			HandshakeTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "aeye.log",
		},
		Web: WebConfig{
			StaticDir:     "./web",
			WebsocketPath: "/ws/process/",
			AllowOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "data/aeye.db?_busy_timeout=5000",
			MaxOpenConns: 1,
		},
		Artifacts: ArtifactsConfig{
			Driver: "local",
			Dir:    "data/media",
			MinIO: MinIOConfig{
				Bucket: "fundus-images",
			},
		},
		Oracle: OracleConfig{
			Mode:                "local",
			Timeout:             10 * time.Second,
			ProbabilityDiabetes: 0.3,
			QualityPassRate:     0.9,
			MinLatency:          200 * time.Millisecond,
			MaxLatency:          2 * time.Second,
		},
		Image: ImageConfig{
			MaxFileSize: 10 * 1024 * 1024,
		},
		Pipeline: PipelineConfig{
			SimulatedDelayMax: time.Second,
			QueueSize:         8,
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "https://influx-prod-13-prod-us-east-0.grafana.net/api/v1/push/influx/write",
			Source:          "AEyeServer",
			CredentialsFile: "credentials.json",
			Workers:         4,
			QueueSize:       1000,
			Timeout:         5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:   "127.0.0.1:6379",
			Stream: "screening:reports",
		},
		Jobs: JobsConfig{
			SweepSchedule: "@every 5m",
			PendingTTL:    15 * time.Minute,
		},
	}
}
