package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ticket-template/internal/config"
	"ticket-template/internal/logger"
	"ticket-template/internal/models"
	"ticket-template/internal/service"
	"ticket-template/internal/store"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ticket-template",
	Short: "Content templates for issues and knowledge-base articles",
	Long: `ticket-template keeps per-project content templates and appends or
retracts them on issues and articles as their fields and tags change.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.Version = version
}

// app 是各子命令共享的依赖
type app struct {
	cfg   *models.Config
	store *store.Store
	svc   *service.Service
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	logger.Close()
}

func loadConfig() (*models.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp 初始化日志与存储 adjust 可在初始化日志前修改配置
func openApp(adjust func(*models.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("打开数据存储失败: %w", err)
	}
	return &app{cfg: cfg, store: st, svc: service.New(st)}, nil
}

// quietLogs 命令行工具只把日志写到文件 避免污染输出
func quietLogs(cfg *models.Config) {
	off := false
	cfg.LogToStd = &off
}
