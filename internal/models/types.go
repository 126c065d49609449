// 本文件用于定义配置与业务模型
package models

// Config 配置结构体
type Config struct {
	APIBind        string `yaml:"api_bind"` // API 服务监听地址
	APIAuthToken   string `yaml:"api_auth_token"`
	APICORSOrigins string `yaml:"api_cors_origins"`
	DataDir        string `yaml:"data_dir"` // sqlite 数据目录
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	LogToStd       *bool  `yaml:"log_to_std"`
	LogShowCaller  bool   `yaml:"log_show_caller"`
	BundleFile     string `yaml:"bundle_file"`
	BundleWatch    bool   `yaml:"bundle_watch"`
	BundleDebounce string `yaml:"bundle_debounce"`
}

// ProcessStats 表示服务进程的资源占用
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	RSS        string  `json:"rss"`
	CPUPercent float64 `json:"cpuPercent"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
}

// HealthSnapshot 表示健康检查返回的运行指标
type HealthSnapshot struct {
	Status    string        `json:"status"`
	Projects  int           `json:"projects"`
	Issues    int           `json:"issues"`
	Articles  int           `json:"articles"`
	Templates int           `json:"templates"`
	Process   *ProcessStats `json:"process,omitempty"`
}
