package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "NetBank-Chain/internal/errors"
	"NetBank-Chain/internal/observability/alerting"
	"NetBank-Chain/internal/observability/metrics"
	"NetBank-Chain/internal/orchestrator"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/pkg/logger"
)

// Server 负责暴露 REST 接口，供外部渠道驱动对话。
type Server struct {
	addr   string
	core   *orchestrator.Orchestrator
	alerts alerting.Dispatcher
	logger *slog.Logger
}

// NewServer 构造 API 服务实例。alerts 允许为 nil。
func NewServer(addr string, core *orchestrator.Orchestrator, alerts alerting.Dispatcher) *Server {
	return &Server{
		addr:   addr,
		core:   core,
		alerts: alerts,
		logger: logger.Named("api"),
	}
}

// Handler 返回路由表，便于测试直接挂载。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", s.instrument("sessions", s.handleSessions))
	mux.HandleFunc("/api/v1/sessions/", s.instrument("turns", s.handleTurns))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}
	sessionID, err := s.core.NewSession(r.Context())
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

type turnRequest struct {
	Input string `json:"input"`
}

// handleTurns 处理 /api/v1/sessions/<id>/turns。
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "仅支持 POST")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
		s.writeError(w, r, http.StatusNotFound, "未知路径")
		return
	}
	sessionID := parts[0]

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "请求体解析失败")
		return
	}

	result, err := s.core.HandleTurn(r.Context(), sessionID, req.Input)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeCoreError 把核心层错误映射为 HTTP 状态码，并在需要时触发告警。
func (s *Server) writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	code := xerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound), code == xerrors.CodeNotFound:
		status = http.StatusNotFound
	case code == xerrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("请求处理失败",
			slog.String("path", r.URL.Path),
			slog.String("code", string(code)),
			slog.String("error", err.Error()),
		)
		if s.alerts != nil && xerrors.ShouldAlert(err) {
			if notifyErr := s.alerts.Notify(r.Context(), alerting.FromError(err, "", "")); notifyErr != nil {
				s.logger.Warn("告警发送失败", slog.String("error", notifyErr.Error()))
			}
		}
	}

	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// instrument 记录每个接口的请求量与耗时指标。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
