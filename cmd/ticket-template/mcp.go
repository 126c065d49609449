package main

import (
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ticket-template/internal/mcptools"
	"ticket-template/internal/models"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the template tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout 属于 MCP 协议 日志只能写文件
		a, err := openApp(func(cfg *models.Config) {
			quietLogs(cfg)
			if strings.TrimSpace(cfg.LogFile) == "" {
				cfg.LogFile = filepath.Join(cfg.DataDir, "mcp.log")
			}
		})
		if err != nil {
			return err
		}
		defer a.Close()
		return server.ServeStdio(mcptools.New(a.svc, version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
