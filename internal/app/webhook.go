package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	redisstorage "github.com/taoyao-code/daly-bms/internal/storage/redis"
	"github.com/taoyao-code/daly-bms/internal/thirdparty"
)

// NewAlarmNotifier 未启用时返回 nil；Redis 可用时启用多实例去重
func NewAlarmNotifier(cfg cfgpkg.WebhookConfig, client *redisstorage.Client, appm *metrics.AppMetrics, logger *zap.Logger) *thirdparty.AlarmNotifier {
	if !cfg.Enabled {
		logger.Info("webhook is disabled, skipping initialization")
		return nil
	}

	pusher := thirdparty.NewPusher(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey, cfg.Secret)
	if cfg.Retries >= 0 {
		pusher.Retries = cfg.Retries
	}

	opts := []thirdparty.NotifierOption{
		thirdparty.WithNotifierLogger(logger.Named("webhook")),
		thirdparty.WithNotifierMetrics(appm),
	}
	if client != nil {
		opts = append(opts, thirdparty.WithDeduper(thirdparty.NewRedisDeduper(client.Client, cfg.DedupTTL)))
	}

	logger.Info("alarm webhook enabled",
		zap.String("url", cfg.URL),
		zap.Bool("dedup", client != nil))
	return thirdparty.NewAlarmNotifier(cfg.URL, pusher, cfg.QueueSize, opts...)
}
