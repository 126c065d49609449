package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"ticket-template/internal/logger"
	"ticket-template/internal/metrics"
	"ticket-template/internal/models"
	"ticket-template/internal/service"
	"ticket-template/internal/store"
	"ticket-template/internal/sysinfo"
	"ticket-template/internal/templates"
)

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
}

type handler struct {
	cfg *models.Config
	svc *service.Service
	sys *sysinfo.Collector
}

const maxBodyBytes = 1 << 20

// NewServer builds the HTTP server. sys may be nil, in which case /api/health
// omits process stats.
func NewServer(cfg *models.Config, svc *service.Service, sys *sysinfo.Collector) *Server {
	h := &handler{cfg: cfg, svc: svc, sys: sys}
	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      h.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return &Server{httpServer: srv}
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/", h.projectRoutes)
	mux.HandleFunc("/api/issues/", h.issueRoutes)
	mux.HandleFunc("/api/articles/", h.articleRoutes)
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/metrics", h.prometheusMetrics)
	return withCORS(h.cfg, withAPIAuth(h.cfg, mux))
}

// Start boots the API server asynchronously.
func (s *Server) Start() {
	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "method not allowed"})
		return
	}
	snapshot := models.HealthSnapshot{Status: "ok"}
	st := h.svc.Store()
	stats, err := st.Stats()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snapshot.Projects = stats.Projects
	snapshot.Issues = stats.Issues
	snapshot.Articles = stats.Articles
	projects, err := st.ListProjects()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for _, p := range projects {
		list, err := h.svc.Templates(p.ID)
		if err != nil {
			// 单个项目模板损坏不影响健康检查
			snapshot.Status = "degraded"
			continue
		}
		snapshot.Templates += len(list)
	}
	if h.sys != nil {
		if proc, err := h.sys.Snapshot(); err == nil {
			snapshot.Process = &proc
		} else {
			logger.Warn("采集进程指标失败: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *handler) prometheusMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, metrics.Global().RenderPrometheus())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// writeServiceError maps service errors to status codes. Only validation and
// not-found messages reach the caller verbatim.
func writeServiceError(w http.ResponseWriter, err error) {
	if msg, ok := service.IsValidation(err); ok {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, templates.ErrCorrupt):
		logger.Error("模板配置损坏: %v", err)
		writeFailure(w, http.StatusInternalServerError, "stored template list is corrupt")
	default:
		logger.Error("请求处理失败: %v", err)
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves out untouched.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func methodNotAllowed(w http.ResponseWriter) {
	writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
}

// splitPath returns the id and the optional action below prefix.
func splitPath(path, prefix string) (string, string, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	id, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(id) == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return id, "", true
	}
	return id, parts[1], true
}

func withAPIAuth(cfg *models.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := effectiveToken(cfg)
		if token == "" || authDisabledByEnv() || r.Method == http.MethodOptions || r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(got, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(got, "Bearer ")) != token {
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(cfg *models.Config, next http.Handler) http.Handler {
	allowList := parseOrigins(cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !originAllowed(cfg, allowList, origin, r.Host) {
			writeFailure(w, http.StatusForbidden, "origin not allowed")
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed 显式白名单优先 未配置白名单时
// 关闭鉴权则放行所有来源 开启鉴权则只放行本机与同主机来源
func originAllowed(cfg *models.Config, allowList map[string]struct{}, origin, host string) bool {
	if len(allowList) > 0 {
		_, ok := allowList[origin]
		return ok
	}
	if effectiveToken(cfg) == "" || authDisabledByEnv() {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := u.Hostname()
	if originHost == "localhost" || originHost == "127.0.0.1" || originHost == "::1" {
		return true
	}
	requestHost := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		requestHost = h
	}
	return strings.EqualFold(originHost, requestHost)
}

func parseOrigins(cfg *models.Config) map[string]struct{} {
	out := make(map[string]struct{})
	if cfg == nil {
		return out
	}
	for _, item := range strings.Split(cfg.APICORSOrigins, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out[item] = struct{}{}
		}
	}
	return out
}

// effectiveToken 将 ${...} 占位符视为未配置
func effectiveToken(cfg *models.Config) string {
	if cfg == nil {
		return ""
	}
	token := strings.TrimSpace(cfg.APIAuthToken)
	if strings.HasPrefix(token, "${") && strings.HasSuffix(token, "}") {
		return ""
	}
	return token
}

func authDisabledByEnv() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("API_AUTH_DISABLED")), "true")
}
