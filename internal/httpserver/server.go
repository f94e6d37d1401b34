package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/health"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// Deps HTTP 层依赖
type Deps struct {
	Session        *session.Session
	Health         *health.Aggregator
	Hub            *Hub
	MetricsPath    string
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// Server HTTP 服务封装
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// New 创建 Gin + HTTP Server，注册探针、指标与 /api/v1 路由
func New(cfg cfgpkg.HTTPConfig, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Health == nil {
		d.Health = health.NewAggregator()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders: []string{"Origin", "Content-Type", "X-API-Key", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.Health.Ready(c.Request.Context()) {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	health.RegisterHTTPRoutes(r, d.Health)

	if d.MetricsPath == "" {
		d.MetricsPath = "/metrics"
	}
	if d.MetricsHandler != nil {
		r.GET(d.MetricsPath, gin.WrapH(d.MetricsHandler))
	}

	if d.Session != nil {
		h := &api{session: d.Session, logger: d.Logger}
		v1 := r.Group("/api/v1")
		var guard []gin.HandlerFunc
		if len(cfg.APIKeys) > 0 {
			guard = append(guard, APIKeyAuth(cfg.APIKeys, d.Logger))
		}
		h.register(v1, guard...)
		if d.Hub != nil {
			v1.GET("/stream", d.Hub.Serve(d.Session))
		}
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, engine: r}
}

// Handler 用于测试
func (s *Server) Handler() http.Handler { return s.engine }

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
