package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ticket-template/internal/api"
	"ticket-template/internal/bundle"
	"ticket-template/internal/config"
	"ticket-template/internal/logger"
	"ticket-template/internal/models"
	"ticket-template/internal/sysinfo"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()
		logConfig(a.cfg)

		var watcher *bundle.Watcher
		if file := strings.TrimSpace(a.cfg.BundleFile); file != "" {
			importer := bundle.NewImporter(a.svc)
			if _, err := importer.ImportFile(file); err != nil {
				logger.Error("导入模板包失败: %v", err)
				return err
			}
			if a.cfg.BundleWatch {
				debounce, _ := config.BundleDebounce(a.cfg)
				watcher, err = bundle.NewWatcher(importer, file, debounce)
				if err != nil {
					return err
				}
				if err := watcher.Start(); err != nil {
					_ = watcher.Close()
					return err
				}
			}
		}

		sys, err := sysinfo.NewCollector(sysinfo.Options{})
		if err != nil {
			logger.Warn("进程指标不可用: %v", err)
		}
		apiServer := api.NewServer(a.cfg, a.svc, sys)
		apiServer.Start()

		waitForShutdown(watcher, apiServer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("API 监听: %s", cfg.APIBind)
	logger.Info("数据目录: %s", cfg.DataDir)
	if strings.TrimSpace(cfg.APICORSOrigins) != "" {
		logger.Info("CORS 白名单: %s", cfg.APICORSOrigins)
	}
	logToStd := cfg.LogToStd == nil || *cfg.LogToStd
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
	logger.Info("日志输出到标准输出: %v", logToStd)
	if cfg.BundleFile != "" {
		logger.Info("模板包: %s (监听: %v, 防抖: %s)", cfg.BundleFile, cfg.BundleWatch, cfg.BundleDebounce)
	}
}

func waitForShutdown(watcher *bundle.Watcher, apiServer *api.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn("关闭模板包监控失败: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("关闭 API 服务失败: %v", err)
	}
	logger.Info("程序已退出")
}
