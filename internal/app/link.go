package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/replay"
	"github.com/taoyao-code/daly-bms/internal/session"
	"github.com/taoyao-code/daly-bms/internal/tcpserver"
	"github.com/taoyao-code/daly-bms/internal/transport"
)

// Link 已启动的上行链路
type Link struct {
	// Serial 仅串口模式非 nil
	Serial *transport.Link
	// Player 仅回放模式非 nil
	Player *replay.Player
	// Bridge 仅 TCP 网关模式非 nil，关闭时需 Shutdown
	Bridge *tcpserver.Server
	done   chan error
}

// Breaker 下行写熔断器；回放与 HTTP 推送模式为 nil
func (l *Link) Breaker() *transport.Breaker {
	switch {
	case l == nil:
		return nil
	case l.Serial != nil:
		return l.Serial.Breaker()
	case l.Bridge != nil:
		return l.Bridge.Breaker()
	}
	return nil
}

// Done 链路退出（回放结束、ctx 取消）时返回；HTTP 推送与 TCP 网关模式永不返回
func (l *Link) Done() <-chan error { return l.done }

// StartLink 按配置启动回放、串口或 TCP 网关链路；都未启用时等待外部 BLE 桥通过 HTTP 推送通知
func StartLink(ctx context.Context, cfg *cfgpkg.Config, s *session.Session, appm *metrics.AppMetrics, logger *zap.Logger) (*Link, error) {
	l := &Link{done: make(chan error, 1)}

	switch {
	case cfg.Replay.Enabled:
		capture, err := replay.Load(cfg.Replay.File)
		if err != nil {
			return nil, err
		}
		l.Player = replay.NewPlayer(capture, cfg.Replay.Interval, cfg.Replay.Loop, logger.Named("replay"))
		s.Attach(l.Player)
		logger.Info("replay link started",
			zap.String("file", cfg.Replay.File),
			zap.Int("notifications", len(capture.Notifications)),
			zap.Bool("loop", cfg.Replay.Loop))
		go func() {
			err := l.Player.Run(ctx, func(ctx context.Context, raw []byte) error {
				_, err := s.HandleNotification(ctx, raw)
				return err
			})
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info("replay finished", zap.Int("commands", len(l.Player.Commands())))
			l.done <- err
		}()

	case cfg.Serial.Enabled:
		l.Serial = transport.NewLink(cfg.Serial,
			transport.WithLinkLogger(logger.Named("serial")),
			transport.WithLinkMetrics(appm))
		go func() { l.done <- l.Serial.Run(ctx, s) }()

	case cfg.Bridge.Enabled:
		l.Bridge = tcpserver.New(cfg.Bridge, s,
			tcpserver.WithLogger(logger.Named("bridge")),
			tcpserver.WithMetrics(appm))
		if err := l.Bridge.Start(); err != nil {
			return nil, fmt.Errorf("bridge listen %s: %w", cfg.Bridge.Addr, err)
		}

	default:
		logger.Info("no local link configured, waiting for notifications over HTTP")
	}
	return l, nil
}
