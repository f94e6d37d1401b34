package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (w *fakeWriter) Write(_ context.Context, frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, append([]byte(nil), frame...))
	return nil
}

func (w *fakeWriter) sent() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.frames...)
}

type fakeSink struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Publish(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return s.err
}

func newTestSession(t *testing.T, profile string, opts ...Option) (*Session, *metrics.AppMetrics) {
	t.Helper()
	p, err := daly.LookupProfile(profile)
	require.NoError(t, err)
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m), WithPacer(NewPacer(1000, 100))}, opts...)
	return New("bms0", daly.NewEngine(p), opts...), m
}

func statusFrame(t *testing.T, totalVoltage uint16) []byte {
	t.Helper()
	p, err := daly.LookupProfile("standard")
	require.NoError(t, err)
	payload := make([]byte, 0x7C)
	payload[99] = 1 // cell count = 1
	payload[0], payload[1] = 0x0C, 0xE4
	payload[80], payload[81] = byte(totalVoltage>>8), byte(totalVoltage)
	payload[82], payload[83] = 0x75, 0x30
	return daly.EncodeFrame(p, 0x7C, payload)
}

func TestHandleNotification_MergesSnapshot(t *testing.T) {
	sink := &fakeSink{}
	s, m := newTestSession(t, "standard", WithSinks(sink))

	r, err := s.HandleNotification(context.Background(), statusFrame(t, 132))
	require.NoError(t, err)
	assert.InDelta(t, 13.2, r["total_voltage"].Float, 1e-9)

	_, err = s.HandleNotification(context.Background(), statusFrame(t, 134))
	require.NoError(t, err)

	v, ok := s.Field("total_voltage")
	require.True(t, ok)
	assert.InDelta(t, 13.4, v.Float, 1e-9, "后到的值覆盖")
	_, ok = s.Field("software_version")
	assert.False(t, ok)
	assert.False(t, s.LastFrame().IsZero())

	require.Len(t, sink.updates, 2)
	assert.Equal(t, "bms0", sink.updates[1].Device)
	assert.Equal(t, "status", sink.updates[1].Kind)
	assert.Equal(t, len(s.Snapshot()), len(sink.updates[1].Snapshot))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("status", "ok")))
	assert.Equal(t, float64(len(s.Snapshot())), testutil.ToFloat64(m.SnapshotFields.WithLabelValues("bms0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SinkTotal.WithLabelValues("fake", "ok")))
}

func TestHandleNotification_DropsBadFrames(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, m := newTestSession(t, "standard", WithLogger(zap.New(core)))

	raw := statusFrame(t, 132)
	raw[len(raw)-1] ^= 0xFF

	r, err := s.HandleNotification(context.Background(), raw)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, daly.ErrChecksumMismatch)
	assert.Empty(t, s.Snapshot(), "坏帧不修改快照")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("unknown", "checksum_mismatch")))

	entries := logs.FilterMessage("drop notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "checksum_mismatch", entries[0].ContextMap()["reason"])

	// 后续正常帧不受影响
	_, err = s.HandleNotification(context.Background(), statusFrame(t, 132))
	assert.NoError(t, err)
}

func TestHandleNotification_SinkErrorDoesNotFail(t *testing.T) {
	sink := &fakeSink{err: errors.New("down")}
	s, m := newTestSession(t, "standard", WithSinks(sink))

	_, err := s.HandleNotification(context.Background(), statusFrame(t, 132))
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkTotal.WithLabelValues("fake", "error")))
}

func TestSend_Commands(t *testing.T) {
	s, m := newTestSession(t, "standard")

	_, err := s.RequestStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoLink)

	w := &fakeWriter{}
	s.Attach(w)
	assert.True(t, s.Connected())

	cmd, err := s.SetSOC(context.Background(), 68)
	require.NoError(t, err)
	assert.Equal(t, "set_soc", cmd.Name)
	assert.Equal(t, "D20600A702A82B54", cmd.Frame)
	assert.Len(t, cmd.ID, 36)

	_, err = s.SetChargingMOS(context.Background(), true)
	require.NoError(t, err)
	_, err = s.Action(context.Background(), daly.ActionFactoryReset)
	require.NoError(t, err)

	sent := w.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []byte{0xD2, 0x06, 0x00, 0xD9, 0x00, 0x01, 0x8A, 0x52}, sent[1])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("factory_reset", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("request_status", "no_link")))
}

func TestSend_UnsupportedNeverWrites(t *testing.T) {
	s, m := newTestSession(t, "legacy")
	w := &fakeWriter{}
	s.Attach(w)

	_, err := s.Action(context.Background(), daly.ActionFactoryReset)
	assert.ErrorIs(t, err, daly.ErrUnsupportedCommand)
	_, err = s.SetSOC(context.Background(), 50)
	assert.ErrorIs(t, err, daly.ErrUnsupportedCommand)
	assert.Empty(t, w.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("factory_reset", "unsupported")))
	assert.Equal(t, int64(0), s.Info().Pacer.AllowedTotal)
}

func TestSend_WriteError(t *testing.T) {
	s, _ := newTestSession(t, "standard")
	s.Attach(&fakeWriter{err: errors.New("gatt busy")})

	cmd, err := s.RequestSettings(context.Background())
	assert.Nil(t, cmd)
	assert.ErrorContains(t, err, "gatt busy")
}

func TestSend_RateLimited(t *testing.T) {
	s, m := newTestSession(t, "standard", WithPacer(NewPacer(0.001, 1)))
	s.Attach(&fakeWriter{})

	_, err := s.RequestStatus(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.RequestStatus(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("request_status", "rate_limited")))
}

func TestDetachKeepsSnapshot(t *testing.T) {
	s, _ := newTestSession(t, "standard")
	s.Attach(&fakeWriter{})
	_, err := s.HandleNotification(context.Background(), statusFrame(t, 132))
	require.NoError(t, err)

	s.Detach()
	assert.False(t, s.Connected())
	assert.NotEmpty(t, s.Snapshot())

	info := s.Info()
	assert.Equal(t, "standard", info.Profile)
	assert.NotNil(t, info.LastFrame)

	require.NoError(t, s.ResetSnapshot(context.Background()))
	assert.Empty(t, s.Snapshot())
}

type resettingSink struct {
	fakeSink
	resets []string
	err    error
}

func (s *resettingSink) Reset(_ context.Context, device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, device)
	return s.err
}

func TestResetSnapshotSinks(t *testing.T) {
	t.Run("清理外部快照", func(t *testing.T) {
		store := &resettingSink{}
		plain := &fakeSink{}
		s, _ := newTestSession(t, "standard", WithSinks(plain, store))
		_, err := s.HandleNotification(context.Background(), statusFrame(t, 132))
		require.NoError(t, err)

		require.NoError(t, s.ResetSnapshot(context.Background()))
		assert.Empty(t, s.Snapshot())
		assert.Equal(t, []string{"bms0"}, store.resets)
	})

	t.Run("下游失败仍清空内存快照", func(t *testing.T) {
		store := &resettingSink{err: errors.New("redis down")}
		s, _ := newTestSession(t, "standard", WithSinks(store))
		_, err := s.HandleNotification(context.Background(), statusFrame(t, 132))
		require.NoError(t, err)

		err = s.ResetSnapshot(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
		assert.Empty(t, s.Snapshot())
	})
}
