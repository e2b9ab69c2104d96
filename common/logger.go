package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
)

// LogConfig 日志配置
type LogConfig struct {
	Level    string // 日志级别: debug, info, warn, error
	Format   string // 日志格式: json, text
	Output   string // 输出位置: stdout, stderr, file
	FilePath string // 日志文件路径（当 Output 为 file 时）
}

// InitLogger 初始化日志系统
func InitLogger(cfg *LogConfig) error {
	logger := logrus.New()
	logger.SetReportCaller(true)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter(cfg.Format))

	output, err := openLogOutput(cfg.Output, cfg.FilePath)
	if err != nil {
		return err
	}
	logger.SetOutput(output)

	Logger = logger
	return nil
}

// openLogOutput 解析日志输出位置。
// stdio 模式下 stdout 承载 MCP 协议，所以默认写 stderr。
func openLogOutput(output, filePath string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if filePath == "" {
			return os.Stderr, nil
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		return file, nil
	default:
		return os.Stderr, nil
	}
}

// GetLogger 获取日志实例
func GetLogger() *logrus.Logger {
	if Logger == nil {
		logger := logrus.New()
		logger.SetReportCaller(true)
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(newFormatter("text"))
		logger.SetOutput(os.Stderr)
		Logger = logger
	}
	return Logger
}

// newFormatter 创建带有文件名和行号信息的 Formatter
func newFormatter(format string) logrus.Formatter {
	// 只输出 "filename.go:line"
	callerPretty := func(frame *runtime.Frame) (function string, file string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
	}

	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{
			TimestampFormat:  "2006-01-02 15:04:05",
			CallerPrettyfier: callerPretty,
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05",
		CallerPrettyfier: callerPretty,
	}
}

// Infof 记录 Info 级别日志（格式化）
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warnf 记录 Warn 级别日志（格式化）
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Fatalf 记录 Fatal 级别日志并退出（格式化）
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithField 添加字段到日志
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields(fields))
}

// WithError 添加错误到日志
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}
