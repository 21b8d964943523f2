package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"srtingest/pkg/srt"
)

// DefaultConfigPath 기본 설정 파일 경로 (프로젝트 루트 기준)
var DefaultConfigPath = filepath.Join("configs", "default.yaml")

type Config struct {
	SRT     SRTConfig     `yaml:"srt"`
	Ingest  IngestConfig  `yaml:"ingest"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type SRTConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	ReadBufferSize      int           `yaml:"read_buffer_size"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
	MaxConnections      int           `yaml:"max_connections"`
	AckInterval         uint32        `yaml:"ack_interval"`
	RTTBias             time.Duration `yaml:"rtt_bias"`
	AvailableBufferSize uint32        `yaml:"available_buffer_size"`
}

type IngestConfig struct {
	RelayAddr       string `yaml:"relay_addr"`        // 비어 있으면 페이로드를 버린다
	EventBuffer     int    `yaml:"event_buffer"`      // 이벤트 채널 크기
	RequireStreamID bool   `yaml:"require_stream_id"` // 스트림 ID 없는 발행자 거부
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// GetConfigWithDefaults returns default configuration values
func GetConfigWithDefaults() *Config {
	return &Config{
		SRT: SRTConfig{
			Port:                srt.DefaultPort,
			ReadBufferSize:      srt.DefaultReadBufferSize,
			IdleTimeout:         srt.DefaultIdleTimeout,
			HandshakeTimeout:    srt.DefaultHandshakeTimeout,
			MaxConnections:      srt.DefaultMaxConnections,
			AckInterval:         srt.DefaultAckInterval,
			RTTBias:             srt.DefaultRTTBias,
			AvailableBufferSize: srt.DefaultAvailableBufferSize,
		},
		Ingest: IngestConfig{
			EventBuffer: 1024,
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from a yaml file. 빈 경로는 DefaultConfigPath를 뜻하고,
// 기본 경로에 파일이 없으면 기본값을 사용한다.
func LoadConfig(path string) (*Config, error) {
	// 기본 설정값으로 초기화
	config := GetConfigWithDefaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			slog.Info("Config file not found, using default values", "path", path)
			return config, config.validate()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML 파싱 - 기존 기본값 위에 덮어쓰기
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// 설정 검증
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Info("Config loaded", "path", path, "srtPort", config.SRT.Port, "apiPort", config.API.Port, "logLevel", config.Logging.Level)
	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	// SRT 설정 검증은 엔진 쪽 규칙을 그대로 사용
	srtConfig := c.ToSRTConfig()
	if err := srtConfig.ValidateConfig(); err != nil {
		return fmt.Errorf("srt: %w", err)
	}

	if c.Ingest.EventBuffer < 0 {
		return fmt.Errorf("invalid event_buffer: %d (must be non-negative)", c.Ingest.EventBuffer)
	}

	// API 포트 검증
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port: %d (must be between 1-65535)", c.API.Port)
	}

	// 로그 레벨 검증
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}

	return nil
}

// ToSRTConfig converts Config.SRT to srt.SRTConfig
func (c *Config) ToSRTConfig() srt.SRTConfig {
	return srt.SRTConfig{
		Host:                c.SRT.Host,
		Port:                c.SRT.Port,
		ReadBufferSize:      c.SRT.ReadBufferSize,
		IdleTimeout:         c.SRT.IdleTimeout,
		HandshakeTimeout:    c.SRT.HandshakeTimeout,
		MaxConnections:      c.SRT.MaxConnections,
		AckInterval:         c.SRT.AckInterval,
		RTTBias:             c.SRT.RTTBias,
		AvailableBufferSize: c.SRT.AvailableBufferSize,
	}
}

// GetSlogLevel returns slog.Level from config
func (c *Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // 기본값
	}
}
