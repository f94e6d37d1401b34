package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// Publisher 将每帧读数以 JSON 发布到 <prefix>.<device>.<kind>
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// Message NATS 消息体
type Message struct {
	Device  string       `json:"device"`
	Kind    string       `json:"kind"`
	At      time.Time    `json:"at"`
	Reading daly.Reading `json:"reading"`
}

// Connect 按配置连接 NATS，断线自动重连
func Connect(cfg cfgpkg.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("nats is not enabled")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NewPublisher 创建发布器
func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "daly"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Subject 读数主题
func (p *Publisher) Subject(device, kind string) string {
	return p.prefix + "." + device + "." + kind
}

func (p *Publisher) Name() string { return "nats" }

// Publish 发布单帧读数
func (p *Publisher) Publish(_ context.Context, u session.Update) error {
	data, err := json.Marshal(Message{Device: u.Device, Kind: u.Kind, At: u.At, Reading: u.Reading})
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	if err := p.conn.Publish(p.Subject(u.Device, u.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.Subject(u.Device, u.Kind), err)
	}
	return nil
}

// Status 连接状态
func (p *Publisher) Status() nats.Status { return p.conn.Status() }
