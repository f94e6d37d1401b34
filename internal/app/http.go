package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/health"
	"github.com/taoyao-code/daly-bms/internal/httpserver"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；hub 同时注册为会话下游
func NewHTTPServer(cfg *cfgpkg.Config, s *session.Session, agg *health.Aggregator, metricsHandler http.Handler, logger *zap.Logger) (*httpserver.Server, *httpserver.Hub) {
	hub := httpserver.NewHub(cfg.HTTP.AllowOrigins, logger.Named("stream"))
	s.AddSink(hub)

	deps := httpserver.Deps{
		Session: s,
		Health:  agg,
		Hub:     hub,
		Logger:  logger.Named("http"),
	}
	if cfg.Metrics.Enable {
		deps.MetricsPath = cfg.Metrics.Path
		deps.MetricsHandler = metricsHandler
	}
	return httpserver.New(cfg.HTTP, deps), hub
}
