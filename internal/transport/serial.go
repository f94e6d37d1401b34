package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/adapter"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// Port 串口抽象，测试中可替换
type Port interface {
	io.ReadWriteCloser
}

// Opener 打开串口
type Opener func(cfg config.SerialConfig) (Port, error)

// OpenSerial 使用 go.bug.st/serial 打开 8N1 串口
func OpenSerial(cfg config.SerialConfig) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return port, nil
}

// Link BLE-UART 透传链路：上行字节流切帧后交给会话，下行写入经过熔断器
type Link struct {
	cfg     config.SerialConfig
	open    Opener
	breaker *Breaker
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	mu        sync.Mutex
	port      Port
	connected bool
}

// LinkOption 链路选项
type LinkOption func(*Link)

func WithOpener(o Opener) LinkOption { return func(l *Link) { l.open = o } }

func WithLinkLogger(lg *zap.Logger) LinkOption { return func(l *Link) { l.logger = lg } }

func WithLinkMetrics(m *metrics.AppMetrics) LinkOption { return func(l *Link) { l.metrics = m } }

// NewLink 创建串口链路
func NewLink(cfg config.SerialConfig, opts ...LinkOption) *Link {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	l := &Link{
		cfg:     cfg,
		open:    OpenSerial,
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.logger = l.logger.With(zap.String("port", cfg.Port))
	l.breaker.OnStateChange(func(from, to BreakerState) {
		l.logger.Warn("link breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
	})
	return l
}

// Write 实现 session.Writer
func (l *Link) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return session.ErrNoLink
	}
	return l.breaker.Call(func() error {
		n, err := port.Write(frame)
		if err != nil {
			return err
		}
		if n != len(frame) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(frame))
		}
		return nil
	})
}

// Connected 串口是否已打开
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Breaker 熔断器（健康检查使用）
func (l *Link) Breaker() *Breaker { return l.breaker }

// Run 打开串口并持续读取，断线后按 ReconnectDelay 重连，直到 ctx 结束
func (l *Link) Run(ctx context.Context, s *session.Session) error {
	for {
		err := l.serve(ctx, s)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("serial link lost, reconnecting", zap.Error(err), zap.Duration("delay", l.cfg.ReconnectDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Link) serve(ctx context.Context, s *session.Session) error {
	port, err := l.open(l.cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	a := daly.NewAdapter(s.Profile(), func(raw []byte) error {
		_, err := s.HandleNotification(ctx, raw)
		return err
	})

	l.breaker.Reset()
	l.setPort(port)
	defer l.setPort(nil)

	l.logger.Info("serial link opened", zap.Int("baud", l.cfg.Baud))
	if l.metrics != nil {
		l.metrics.LinkConnects.WithLabelValues("serial").Inc()
	}
	s.Attach(l)
	defer s.Detach()

	return l.readLoop(ctx, port, a)
}

func (l *Link) setPort(p Port) {
	l.mu.Lock()
	l.port = p
	l.connected = p != nil
	l.mu.Unlock()
}

// readLoop 读超时返回 0 字节，借此检查 ctx
func (l *Link) readLoop(ctx context.Context, port Port, a adapter.Adapter) error {
	err := Pump(ctx, port, a, l.logger, l.metrics)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("serial closed: %w", err)
	}
	return err
}
