// 本文件用于运行时配置的读取与持久化
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"ticket-template/internal/models"
)

// RuntimeOverrides 是可在不修改主配置的情况下调整的字段
type RuntimeOverrides struct {
	LogLevel       *string `yaml:"log_level,omitempty"`
	APICORSOrigins *string `yaml:"api_cors_origins,omitempty"`
	BundleFile     *string `yaml:"bundle_file,omitempty"`
	BundleWatch    *bool   `yaml:"bundle_watch,omitempty"`
}

// RuntimeConfigPath 返回 config.yaml 对应的 config.runtime.yaml
func RuntimeConfigPath(configPath string) string {
	cleaned := strings.TrimSpace(configPath)
	if cleaned == "" {
		return ""
	}
	ext := filepath.Ext(cleaned)
	if ext == "" {
		return cleaned + ".runtime.yaml"
	}
	return strings.TrimSuffix(cleaned, ext) + ".runtime" + ext
}

func loadRuntimeConfig(configPath string) (*RuntimeOverrides, error) {
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取运行时配置文件失败: %s: %w", path, err)
	}
	var cfg RuntimeOverrides
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析运行时配置文件失败: %s: %w", path, err)
	}
	return &cfg, nil
}

func applyRuntimeConfig(cfg *models.Config, runtime *RuntimeOverrides) {
	if cfg == nil || runtime == nil {
		return
	}
	if runtime.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*runtime.LogLevel)
	}
	if runtime.APICORSOrigins != nil {
		cfg.APICORSOrigins = strings.TrimSpace(*runtime.APICORSOrigins)
	}
	if runtime.BundleFile != nil {
		cfg.BundleFile = strings.TrimSpace(*runtime.BundleFile)
	}
	if runtime.BundleWatch != nil {
		cfg.BundleWatch = *runtime.BundleWatch
	}
}

// SaveRuntimeConfig 合并已有的运行时配置后原子写回
func SaveRuntimeConfig(configPath string, overrides RuntimeOverrides) error {
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return nil
	}
	current, err := loadRuntimeConfig(configPath)
	if err != nil {
		return err
	}
	if current == nil {
		current = &RuntimeOverrides{}
	}
	if overrides.LogLevel != nil {
		current.LogLevel = overrides.LogLevel
	}
	if overrides.APICORSOrigins != nil {
		current.APICORSOrigins = overrides.APICORSOrigins
	}
	if overrides.BundleFile != nil {
		current.BundleFile = overrides.BundleFile
	}
	if overrides.BundleWatch != nil {
		current.BundleWatch = overrides.BundleWatch
	}
	data, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("序列化运行时配置失败: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("写入运行时配置文件失败: %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "ticket-template-config-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
