package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticket-template/internal/config"
	"ticket-template/internal/logger"
)

var (
	setLogLevel    string
	setCORSOrigins string
	setBundleFile  string
	setBundleWatch bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runtime configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Write overrides to the runtime config file",
	Long: `Writes the given flags to config.runtime.yaml next to the main config.
The overrides apply on the next start; only flags that are passed change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overrides config.RuntimeOverrides
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			if err := logger.SetLogLevel(setLogLevel); err != nil {
				return err
			}
			overrides.LogLevel = &setLogLevel
		}
		if flags.Changed("cors-origins") {
			overrides.APICORSOrigins = &setCORSOrigins
		}
		if flags.Changed("bundle-file") {
			overrides.BundleFile = &setBundleFile
		}
		if flags.Changed("bundle-watch") {
			overrides.BundleWatch = &setBundleWatch
		}
		if overrides == (config.RuntimeOverrides{}) {
			return fmt.Errorf("no override given")
		}
		if err := config.SaveRuntimeConfig(configPath, overrides); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s\n", config.RuntimeConfigPath(configPath))
		return nil
	},
}

func init() {
	flags := configSetCmd.Flags()
	flags.StringVar(&setLogLevel, "log-level", "", "日志级别 debug|info|warn|error")
	flags.StringVar(&setCORSOrigins, "cors-origins", "", "CORS 白名单 逗号分隔")
	flags.StringVar(&setBundleFile, "bundle-file", "", "模板包路径")
	flags.BoolVar(&setBundleWatch, "bundle-watch", false, "监听模板包变化")
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
