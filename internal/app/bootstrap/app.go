package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/app"
	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// Run 统一启动流程：会话与下游就绪后再启动链路，最后开放 HTTP
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting daly bms gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env))

	// ========== 阶段1: 指标与会话 ==========
	reg, appm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)

	sess, err := app.NewSession(cfg.BMS, appm, log)
	if err != nil {
		log.Error("session initialization failed", zap.Error(err))
		return err
	}

	// ========== 阶段2: 下游（Redis 快照、NATS 发布、告警推送）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sess.AddSink(app.NewSnapshotStore(redisClient))
	}

	publisher, nc, err := app.NewNATSPublisher(cfg.NATS, log)
	if err != nil {
		log.Error("nats initialization failed", zap.Error(err))
		return err
	}
	if nc != nil {
		defer nc.Close()
		sess.AddSink(publisher)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 上次运行留下的外部快照不代表本次会话
	resetCtx, resetCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := sess.ResetSnapshot(resetCtx); err != nil {
		log.Warn("stale snapshot reset failed", zap.Error(err))
	}
	resetCancel()

	if notifier := app.NewAlarmNotifier(cfg.Webhook, redisClient, appm, log); notifier != nil {
		sess.AddSink(notifier)
		go notifier.Run(ctx)
	}

	// ========== 阶段3: 链路与轮询 ==========

	poller := session.NewPoller(sess, cfg.BMS.PollInterval)
	go poller.Run(ctx)

	link, err := app.StartLink(ctx, cfg, sess, appm, log)
	if err != nil {
		log.Error("link start failed", zap.Error(err))
		return err
	}
	go func() {
		if err := <-link.Done(); err != nil {
			log.Error("link stopped", zap.Error(err))
		}
	}()

	// ========== 阶段4: 健康检查与 HTTP ==========
	healthAgg := app.NewHealthAggregator(sess, cfg.BMS.StaleAfter, link)
	app.AddRedisChecker(healthAgg, redisClient)
	app.AddNATSChecker(healthAgg, publisher)

	httpSrv, hub := app.NewHTTPServer(cfg, sess, healthAgg, metricsHandler, log)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段5: 等待关闭信号 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("received shutdown signal, gracefully shutting down...")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if link.Bridge != nil {
		_ = link.Bridge.Shutdown(shutdownCtx)
	}
	log.Info("shutdown complete")
	return nil
}
