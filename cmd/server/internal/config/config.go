package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 统一配置结构
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Health     HealthConfig     `yaml:"health"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, production
	Port string `yaml:"port"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`   // 为空时仅输出到 stdout
}

// RecognizerConfig 语音识别后端（Cloudflare Workers AI）配置
type RecognizerConfig struct {
	AccountID    string        `yaml:"account_id"`
	APIToken     string        `yaml:"api_token"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`
}

// PipelineConfig 切片与转写流水线配置
type PipelineConfig struct {
	WorkDir            string        `yaml:"work_dir"`
	SizeThresholdBytes int64         `yaml:"size_threshold_bytes"`
	SegmentDuration    int           `yaml:"segment_duration"` // 秒
	FFmpegPath         string        `yaml:"ffmpeg_path"`
	SplitTimeout       time.Duration `yaml:"split_timeout"`
}

// JobsConfig 任务存储与调度配置
type JobsConfig struct {
	Store          string        `yaml:"store"` // memory, redis
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	TTL            time.Duration `yaml:"ttl"`
	MaxConcurrent  int64         `yaml:"max_concurrent"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// HealthConfig 识别后端健康检查配置
type HealthConfig struct {
	Interval      time.Duration `yaml:"interval"`
	FailThreshold int           `yaml:"fail_threshold"`
}

const (
	defaultModel   = "@cf/openai/whisper"
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	megabyte       = 1024 * 1024
)

// LoadConfig 从环境变量加载配置，CONFIG_FILE 指定的 YAML 文件会覆盖环境变量中的值
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Env:  getEnv("ENV", "dev"),
			Port: getEnv("PORT", "8000"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", ""),
		},
		Recognizer: RecognizerConfig{
			AccountID:    getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			APIToken:     getEnv("CLOUDFLARE_API_TOKEN", ""),
			Model:        getEnv("WHISPER_MODEL", defaultModel),
			BaseURL:      getEnv("CLOUDFLARE_API_BASE_URL", defaultBaseURL),
			ChunkTimeout: getDuration("CHUNK_TIMEOUT", 300*time.Second),
		},
		Pipeline: PipelineConfig{
			WorkDir:            getEnv("TEMP_DIR", "./temp"),
			SizeThresholdBytes: int64(getInt("CHUNK_SIZE_MB", 9)) * megabyte,
			SegmentDuration:    getInt("SEGMENT_SECONDS", 300),
			FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
			SplitTimeout:       getDuration("SPLIT_TIMEOUT", 10*time.Minute),
		},
		Jobs: JobsConfig{
			Store:          getEnv("JOB_STORE", "memory"),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getInt("REDIS_DB", 0),
			TTL:            getDuration("JOB_TTL", 24*time.Hour),
			MaxConcurrent:  int64(getInt("MAX_CONCURRENT_JOBS", 2)),
			MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 500)) * megabyte,
		},
		Health: HealthConfig{
			Interval:      getDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute),
			FailThreshold: getInt("HEALTH_FAIL_THRESHOLD", 3),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// overlayFile 读取 YAML 配置文件，文件中出现的字段覆盖已有值
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ValidateConfig 验证配置的有效性，汇总所有错误后一次返回
func ValidateConfig(cfg *Config) error {
	var errors []string

	// 1. 识别后端凭据
	if cfg.Recognizer.AccountID == "" {
		errors = append(errors, "CLOUDFLARE_ACCOUNT_ID is required")
	}
	if cfg.Recognizer.APIToken == "" {
		errors = append(errors, "CLOUDFLARE_API_TOKEN is required")
	}
	if cfg.Recognizer.ChunkTimeout <= 0 {
		errors = append(errors, "CHUNK_TIMEOUT must be positive")
	}

	// 2. 端口验证
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid PORT value: %s (must be 1-65535)", cfg.Server.Port))
	}

	// 3. 日志级别与格式
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL: %s (must be: debug, info, warn, error)", cfg.Log.Level))
	}
	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Log.Format] {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT: %s (must be: console, json)", cfg.Log.Format))
	}

	// 4. 环境验证
	validEnvs := map[string]bool{"dev": true, "development": true, "staging": true, "production": true}
	if !validEnvs[cfg.Server.Env] {
		errors = append(errors, fmt.Sprintf("invalid ENV: %s (must be: dev, development, staging, production)", cfg.Server.Env))
	}

	// 5. 流水线参数
	if cfg.Pipeline.SizeThresholdBytes <= 0 {
		errors = append(errors, "CHUNK_SIZE_MB must be positive")
	}
	if cfg.Pipeline.SegmentDuration <= 0 {
		errors = append(errors, "SEGMENT_SECONDS must be positive")
	}
	if cfg.Pipeline.WorkDir == "" {
		errors = append(errors, "TEMP_DIR cannot be empty")
	}

	// 6. 任务存储
	switch cfg.Jobs.Store {
	case "memory", "redis":
	default:
		errors = append(errors, fmt.Sprintf("invalid JOB_STORE: %s (must be: memory, redis)", cfg.Jobs.Store))
	}
	if cfg.Jobs.MaxConcurrent <= 0 {
		errors = append(errors, "MAX_CONCURRENT_JOBS must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsProduction 判断是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetServerAddr 获取服务器监听地址
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// LoggerEnvironment 将日志格式映射为 logger 包使用的环境名
func (c *Config) LoggerEnvironment() string {
	if c.Log.Format == "json" || c.IsProduction() {
		return "prod"
	}
	return "dev"
}

// PrintConfig 打印配置（脱敏）
func (c *Config) PrintConfig() string {
	return fmt.Sprintf(`Configuration Loaded:
  Environment: %s
  Server Port: %s
  Logging:
    - Level: %s
    - Format: %s
  Recognizer:
    - Account: %s
    - Token: %s
    - Model: %s
    - Chunk Timeout: %s
  Pipeline:
    - Work Dir: %s
    - Size Threshold: %d bytes
    - Segment Duration: %ds
  Jobs:
    - Store: %s
    - Max Concurrent: %d`,
		c.Server.Env,
		c.Server.Port,
		c.Log.Level,
		c.Log.Format,
		maskSecret(c.Recognizer.AccountID),
		maskSecret(c.Recognizer.APIToken),
		c.Recognizer.Model,
		c.Recognizer.ChunkTimeout,
		c.Pipeline.WorkDir,
		c.Pipeline.SizeThresholdBytes,
		c.Pipeline.SegmentDuration,
		c.Jobs.Store,
		c.Jobs.MaxConcurrent,
	)
}

// 辅助函数

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 获取整数环境变量，解析失败时返回默认值
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDuration 获取时长环境变量，纯数字按秒解析
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

// maskSecret 对敏感信息进行脱敏
func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}
