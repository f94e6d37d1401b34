package tcpserver

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

func statusFrame(t *testing.T, totalVoltage uint16) []byte {
	t.Helper()
	p, err := daly.LookupProfile("standard")
	require.NoError(t, err)
	payload := make([]byte, 0x7C)
	payload[80], payload[81] = byte(totalVoltage>>8), byte(totalVoltage)
	payload[82], payload[83] = 0x75, 0x30
	return daly.EncodeFrame(p, 0x7C, payload)
}

func startServer(t *testing.T, cfg cfgpkg.BridgeConfig, m *metrics.AppMetrics) (*Server, *session.Session) {
	t.Helper()
	p, err := daly.LookupProfile("standard")
	require.NoError(t, err)
	s := session.New("bms0", daly.NewEngine(p),
		session.WithMetrics(m), session.WithPacer(session.NewPacer(1000, 100)))

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv := New(cfg, s, WithMetrics(m))
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, s
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServer_NotificationsAndCommands(t *testing.T) {
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	srv, s := startServer(t, cfgpkg.BridgeConfig{}, m)
	c := dial(t, srv)

	frame := statusFrame(t, 132)
	_, err := c.Write(append([]byte{0xAA}, frame[:50]...))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = c.Write(frame[50:])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := s.Field("total_voltage")
		return ok
	}, time.Second, 5*time.Millisecond)
	v, _ := s.Field("total_voltage")
	assert.InDelta(t, 13.2, v.Float, 1e-9)
	assert.True(t, s.Connected())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkConnects.WithLabelValues("bridge")))

	cmd, err := s.RequestStatus(context.Background())
	require.NoError(t, err)

	buf := make([]byte, 8)
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, cmd.Frame, strings.ToUpper(hex.EncodeToString(buf)))
	assert.Equal(t, "D2030000003ED7B9", cmd.Frame)
}

func TestServer_RejectsSecondBridge(t *testing.T) {
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	srv, s := startServer(t, cfgpkg.BridgeConfig{MaxConns: 1}, m)

	dial(t, srv)
	require.Eventually(t, s.Connected, time.Second, 5*time.Millisecond)

	second := dial(t, srv)
	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	_, err := second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "多余的网关连接被直接关闭")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkRejected))
	assert.EqualValues(t, 1, srv.Stats().RejectedTotal)
	assert.True(t, s.Connected(), "已接入的网关不受影响")
}

func TestServer_DetachOnDisconnect(t *testing.T) {
	srv, s := startServer(t, cfgpkg.BridgeConfig{}, nil)

	c := dial(t, srv)
	_, err := c.Write(statusFrame(t, 130))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := s.Field("total_voltage")
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return !s.Connected() }, time.Second, 5*time.Millisecond)

	_, err = s.RequestStatus(context.Background())
	assert.ErrorIs(t, err, session.ErrNoLink)
	_, ok := s.Field("total_voltage")
	assert.True(t, ok, "断开后保留快照")

	// 槽位释放后允许重新接入
	dial(t, srv)
	require.Eventually(t, s.Connected, time.Second, 5*time.Millisecond)
}

func TestServer_IdleTimeout(t *testing.T) {
	srv, s := startServer(t, cfgpkg.BridgeConfig{IdleTimeout: 200 * time.Millisecond}, nil)

	c := dial(t, srv)
	require.Eventually(t, s.Connected, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Connected() }, time.Second, 5*time.Millisecond)

	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	_, err := c.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	srv, s := startServer(t, cfgpkg.BridgeConfig{}, nil)
	dial(t, srv)
	require.Eventually(t, s.Connected, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, s.Connected())
	assert.NoError(t, srv.Shutdown(ctx), "重复关闭无副作用")
}
