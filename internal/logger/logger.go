package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ticket-template/internal/models"
)

var (
	mu           sync.RWMutex
	activeLogger = zap.NewNop()
	sugar        = activeLogger.Sugar()
	level        = zap.NewAtomicLevelAt(zap.InfoLevel)
	logFile      *os.File
)

// InitLogger 初始化日志系统。未调用前所有日志被丢弃
func InitLogger(config *models.Config) error {
	lvl, err := parseLevel(config.LogLevel)
	if err != nil {
		return err
	}

	var sinks []zapcore.WriteSyncer
	if config.LogToStd == nil || *config.LogToStd {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	var file *os.File
	if config.LogFile != "" {
		file, err = openLogFile(config.LogFile)
		if err != nil {
			return err
		}
		sinks = append(sinks, zapcore.AddSync(file))
	}
	if len(sinks) == 0 {
		// stdout 被占用时 (命令行输出或 MCP stdio) 退回到 stderr
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	atomic := zap.NewAtomicLevelAt(lvl)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.NewMultiWriteSyncer(sinks...), atomic)
	opts := []zap.Option{zap.AddCallerSkip(1)}
	if config.LogShowCaller {
		opts = append(opts, zap.AddCaller())
	}

	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	activeLogger = zap.New(core, opts...)
	sugar = activeLogger.Sugar()
	level = atomic
	logFile = file
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return file, nil
}

func parseLevel(raw string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("未知日志级别: %s", raw)
	}
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// SetLogLevel 设置日志级别。
func SetLogLevel(raw string) error {
	lvl, err := parseLevel(raw)
	if err != nil {
		return err
	}
	mu.RLock()
	defer mu.RUnlock()
	level.SetLevel(lvl)
	return nil
}

// GetLogger 获取 zap logger 实例, 供需要结构化字段的调用方使用。
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return activeLogger
}

// Close 刷新缓冲并关闭日志文件。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	activeLogger = zap.NewNop()
	sugar = activeLogger.Sugar()
}

func closeLocked() {
	_ = activeLogger.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}
