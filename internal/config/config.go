package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"ticket-template/internal/models"
)

const (
	defaultAPIBind        = ":8080"
	defaultDataDir        = "data"
	defaultLogLevel       = "info"
	defaultBundleDebounce = "500ms"
)

// LoadConfig 加载配置文件 并叠加同目录下的运行时配置
func LoadConfig(configFile string) (*models.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	runtime, err := loadRuntimeConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyRuntimeConfig(&config, runtime)
	applyDefaults(&config)

	return &config, nil
}

// 设置默认值
func applyDefaults(config *models.Config) {
	config.APIBind = strings.TrimSpace(config.APIBind)
	if config.APIBind == "" {
		config.APIBind = defaultAPIBind
	}
	config.DataDir = strings.TrimSpace(config.DataDir)
	if config.DataDir == "" {
		config.DataDir = defaultDataDir
	}
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
	if config.LogLevel == "" {
		config.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(config.BundleDebounce) == "" {
		config.BundleDebounce = defaultBundleDebounce
	}
	if config.LogToStd == nil {
		enabled := true
		config.LogToStd = &enabled
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("日志级别不合法: %s", config.LogLevel)
	}
	if config.DataDir == "" {
		return fmt.Errorf("数据目录不能为空")
	}
	if config.BundleWatch && strings.TrimSpace(config.BundleFile) == "" {
		return fmt.Errorf("开启 bundle_watch 时 bundle_file 不能为空")
	}
	if _, err := BundleDebounce(config); err != nil {
		return err
	}
	if config.LogToStd != nil && !*config.LogToStd && strings.TrimSpace(config.LogFile) == "" {
		return fmt.Errorf("关闭 log_to_std 时必须配置 log_file")
	}
	return nil
}

// BundleDebounce 解析模板包监听的去抖时长
func BundleDebounce(config *models.Config) (time.Duration, error) {
	raw := strings.TrimSpace(config.BundleDebounce)
	if raw == "" {
		raw = defaultBundleDebounce
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("bundle_debounce 格式错误: %s", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("bundle_debounce 必须大于 0: %s", raw)
	}
	return d, nil
}
