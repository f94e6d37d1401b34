package app

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/health"
	"github.com/taoyao-code/daly-bms/internal/publish"
)

// NewNATSPublisher 未启用时返回 nil
func NewNATSPublisher(cfg cfgpkg.NATSConfig, logger *zap.Logger) (*publish.Publisher, *nats.Conn, error) {
	if !cfg.Enabled {
		logger.Info("nats is disabled, skipping initialization")
		return nil, nil, nil
	}
	nc, err := publish.Connect(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()), zap.String("subject_prefix", cfg.SubjectPrefix))
	return publish.NewPublisher(nc, cfg.SubjectPrefix), nc, nil
}

// AddNATSChecker 添加NATS检查器到聚合器
func AddNATSChecker(aggregator *health.Aggregator, p *publish.Publisher) {
	if p != nil {
		aggregator.AddChecker(health.NewNATSChecker(p))
	}
}
