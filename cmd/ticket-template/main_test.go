package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ticket-template/internal/config"
)

const cliBundle = `
projects:
  - id: DEMO
    articles:
      - id: KB-1
        summary: Checklist
        content: Check the logs.
    templates:
      - id: t1
        name: Log checklist
        articleId: KB-1
        validCondition: []
        addCondition: null
`

func writeCLIConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("data_dir: %q\n", filepath.Join(dir, "data"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return dir, cfgPath
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("执行 %v 失败: %v", args, err)
	}
	return out.String()
}

func TestImportThenListTemplates(t *testing.T) {
	dir, cfgPath := writeCLIConfig(t)
	bundlePath := filepath.Join(dir, "bundle.yaml")
	if err := os.WriteFile(bundlePath, []byte(cliBundle), 0o644); err != nil {
		t.Fatalf("写入模板包失败: %v", err)
	}

	out := runCLI(t, "--config", cfgPath, "import", bundlePath)
	var report struct {
		Templates   int      `json:"templates"`
		TemplateIDs []string `json:"templateIds"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("解析导入结果失败: %v, 输出=%s", err, out)
	}
	if report.Templates != 1 || report.TemplateIDs[0] != "t1" {
		t.Fatalf("导入结果不符合预期: %+v", report)
	}

	out = runCLI(t, "--config", cfgPath, "templates", "list", "DEMO")
	if !strings.Contains(out, "t1") || !strings.Contains(out, "Log checklist") || !strings.Contains(out, "manual") {
		t.Fatalf("模板列表不符合预期: %s", out)
	}

	out = runCLI(t, "--config", cfgPath, "templates", "show", "DEMO", "t1")
	if !strings.Contains(out, `"articleId": "KB-1"`) {
		t.Fatalf("模板详情不符合预期: %s", out)
	}
}

func TestConfigSetWritesRuntimeFile(t *testing.T) {
	_, cfgPath := writeCLIConfig(t)
	runCLI(t, "--config", cfgPath, "config", "set", "--log-level", "debug", "--cors-origins", "http://localhost:5173")

	if _, err := os.Stat(config.RuntimeConfigPath(cfgPath)); err != nil {
		t.Fatalf("运行时配置未写入: %v", err)
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.APICORSOrigins != "http://localhost:5173" {
		t.Fatalf("运行时覆盖未生效: %+v", cfg)
	}
}
