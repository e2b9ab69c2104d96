package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 应用配置结构
type Config struct {
	// Gemini 视觉理解后端
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// fal.ai 渲染后端与 fal CDN 存储（共用同一个 Key）
	FalAPIKey           string
	FalRunURL           string
	FalQueueURL         string
	FalStorageURL       string
	FalModel            string
	FalMode             string // queue 或 sync
	FalPollIntervalMS   int
	FalInferenceSteps   int     // 0 表示不传
	FalGuidanceScale    float64 // 0 表示不传
	SeedreamAPIKey      string
	SeedreamBaseURL     string
	SeedreamModel       string
	SeedreamSize        string
	GenAITimeoutSeconds int

	// 共享素材存储: fal 或 oss
	StorageProvider string
	OSSEndpoint     string
	OSSRegion       string
	OSSAccessKey    string
	OSSSecretKey    string
	OSSBucket       string
	// 大于 0 时返回带签名的临时 URL（私有桶）
	OSSSignedURLSeconds int

	// 生成流程参数
	DefaultStyle             string
	ComposedStrength         float64 // 视觉模型先改写提示词时使用
	DirectStrength           float64 // 只走渲染后端时使用
	FittingTimeoutSeconds    int
	MaxConcurrentGenerations int

	// MCP 服务
	MCPTransport  string // stdio 或 http
	ServerAddress string
	ServerPort    string

	// 日志配置
	LogLevel  string
	LogFormat string
	LogOutput string
	LogFile   string
}

// LoadConfig 从 .env 文件和环境变量加载配置
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// stdout 留给 MCP 协议
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		FalAPIKey:           getEnv("FAL_API_KEY", ""),
		FalRunURL:           getEnv("FAL_RUN_URL", "https://fal.run"),
		FalQueueURL:         getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalStorageURL:       getEnv("FAL_STORAGE_URL", "https://rest.alpha.fal.ai"),
		FalModel:            getEnv("FAL_MODEL", "fal-ai/flux/dev/image-to-image"),
		FalMode:             strings.ToLower(getEnv("FAL_MODE", "queue")),
		FalPollIntervalMS:   getEnvInt("FAL_POLL_INTERVAL_MS", 1000),
		FalInferenceSteps:   getEnvInt("FAL_NUM_INFERENCE_STEPS", 0),
		FalGuidanceScale:    getEnvFloat("FAL_GUIDANCE_SCALE", 0),
		SeedreamAPIKey:      getEnv("SEEDREAM_API_KEY", ""),
		SeedreamBaseURL:     getEnv("SEEDREAM_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		SeedreamModel:       getEnv("SEEDREAM_MODEL", "doubao-seedream-4-5-251128"),
		SeedreamSize:        getEnv("SEEDREAM_SIZE", "1024x1024"),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 60),

		StorageProvider: strings.ToLower(getEnv("STORAGE_PROVIDER", "fal")),
		OSSEndpoint:     getEnv("OSS_ENDPOINT", ""),
		OSSRegion:       getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:    getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:    getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:       getEnv("OSS_BUCKET", ""),

		OSSSignedURLSeconds: getEnvInt("OSS_SIGNED_URL_SECONDS", 0),

		DefaultStyle:             getEnv("FITTING_DEFAULT_STYLE", "Studio"),
		ComposedStrength:         getEnvFloat("FITTING_COMPOSED_STRENGTH", 0.6),
		DirectStrength:           getEnvFloat("FITTING_DIRECT_STRENGTH", 0.65),
		FittingTimeoutSeconds:    getEnvInt("FITTING_TIMEOUT_SECONDS", 180),
		MaxConcurrentGenerations: getEnvInt("MAX_CONCURRENT_GENERATIONS", 1),

		MCPTransport:  strings.ToLower(getEnv("MCP_TRANSPORT", "stdio")),
		ServerAddress: getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// Validate 校验必需的配置项
func (c *Config) Validate() error {
	// 渲染后端是所有路由的最后一步，fal 存储也依赖同一个 Key
	if c.FalAPIKey == "" {
		return fmt.Errorf("FAL_API_KEY is required")
	}

	switch c.FalMode {
	case "queue", "sync":
	default:
		return fmt.Errorf("unsupported FAL_MODE: %s", c.FalMode)
	}

	// NaN 与任何数比较都为 false，用取反写法一并拒绝
	if !(c.ComposedStrength >= 0 && c.ComposedStrength <= 1) {
		return fmt.Errorf("FITTING_COMPOSED_STRENGTH must be within [0, 1], got %v", c.ComposedStrength)
	}
	if !(c.DirectStrength >= 0 && c.DirectStrength <= 1) {
		return fmt.Errorf("FITTING_DIRECT_STRENGTH must be within [0, 1], got %v", c.DirectStrength)
	}

	switch c.StorageProvider {
	case "fal":
	case "oss":
		if c.OSSBucket == "" || c.OSSAccessKey == "" || c.OSSSecretKey == "" {
			return fmt.Errorf("OSS_BUCKET, OSS_ACCESS_KEY and OSS_SECRET_KEY are required when STORAGE_PROVIDER=oss")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER: %s", c.StorageProvider)
	}

	switch c.MCPTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unsupported MCP_TRANSPORT: %s", c.MCPTransport)
	}

	if c.MaxConcurrentGenerations <= 0 {
		c.MaxConcurrentGenerations = 1
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// getEnvFloat 获取浮点型环境变量
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// HasGemini 是否配置了视觉后端
func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// HasSeedream 是否配置了 Seedream 后端
func (c *Config) HasSeedream() bool {
	return c.SeedreamAPIKey != ""
}
