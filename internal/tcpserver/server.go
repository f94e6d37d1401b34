package tcpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
	"github.com/taoyao-code/daly-bms/internal/transport"
)

// Server BLE 网关 TCP 接入：网关把特征通知原样转发过来，并把下行帧写回特征
type Server struct {
	cfg     cfgpkg.BridgeConfig
	session *session.Session
	limiter *ConnectionLimiter
	breaker *transport.Breaker
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	ln         net.Listener
	wg         sync.WaitGroup
	stopC      chan struct{}
	stopOnce   sync.Once
	nextConnID atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[uint64]*Conn
}

// Option 服务选项
type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

func WithMetrics(m *metrics.AppMetrics) Option { return func(s *Server) { s.metrics = m } }

// New 创建网关接入服务
func New(cfg cfgpkg.BridgeConfig, s *session.Session, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:     cfg,
		session: s,
		limiter: NewConnectionLimiter(cfg.MaxConns),
		breaker: transport.NewBreaker(0, 0),
		stopC:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[uint64]*Conn),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.logger == nil {
		srv.logger = zap.NewNop()
	}
	srv.breaker.OnStateChange(func(from, to transport.BreakerState) {
		srv.logger.Warn("bridge breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
	})
	return srv
}

// Breaker 下行写熔断器（健康检查使用）
func (s *Server) Breaker() *transport.Breaker { return s.breaker }

// Stats 连接统计
func (s *Server) Stats() LimiterStats { return s.limiter.Stats() }

// Addr 实际监听地址，Start 之前为 nil
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("bridge listener started", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}

			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handle(c)
			}(conn)
		}
	}()
	return nil
}

func (s *Server) handle(nc net.Conn) {
	defer nc.Close()
	remote := nc.RemoteAddr().String()

	if !s.limiter.TryAcquire() {
		s.logger.Warn("bridge connection rejected: already attached", zap.String("remote", remote))
		if s.metrics != nil {
			s.metrics.LinkRejected.Inc()
		}
		return
	}
	defer s.limiter.Release()

	cc := newConn(nc, s.nextConnID.Add(1), s.cfg.WriteTimeout, s.breaker)
	if !s.track(cc) {
		return
	}
	defer s.untrack(cc)

	logger := s.logger.With(zap.Uint64("conn_id", cc.ID()), zap.String("remote", remote))
	logger.Info("bridge connected")
	if s.metrics != nil {
		s.metrics.LinkConnects.WithLabelValues("bridge").Inc()
	}

	a := daly.NewAdapter(s.session.Profile(), func(raw []byte) error {
		_, err := s.session.HandleNotification(s.ctx, raw)
		return err
	})

	s.breaker.Reset()
	s.session.Attach(cc)
	defer s.session.Detach()

	err := transport.Pump(s.ctx, cc.read(s.cfg.IdleTimeout), a, logger, s.metrics)
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		logger.Info("bridge disconnected")
	case errors.As(err, &ne) && ne.Timeout():
		logger.Warn("bridge idle, closing", zap.Duration("idle", s.cfg.IdleTimeout))
	default:
		logger.Warn("bridge read failed", zap.Error(err))
	}
}

func (s *Server) track(cc *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopC:
		return false
	default:
	}
	s.conns[cc.ID()] = cc
	return true
}

func (s *Server) untrack(cc *Conn) {
	s.mu.Lock()
	delete(s.conns, cc.ID())
	s.mu.Unlock()
	_ = cc.Close()
}

// Shutdown 关闭监听与所有连接并等待处理协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopC)
		for _, cc := range s.conns {
			_ = cc.Close()
		}
		s.mu.Unlock()
		s.cancel()
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
