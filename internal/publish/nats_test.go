package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

func TestSubject(t *testing.T) {
	p := NewPublisher(nil, "")
	assert.Equal(t, "daly.pack-a.status", p.Subject("pack-a", "status"))
	assert.Equal(t, "nats", p.Name())
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(cfgpkg.NATSConfig{}, zap.NewNop())
	assert.Error(t, err)
}

// 需要本地 NATS（nats://127.0.0.1:4222），不可用时跳过
func TestPublish_RoundTrip(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL, nats.Timeout(200*time.Millisecond))
	if err != nil {
		t.Skipf("NATS不可用，跳过测试: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("test-daly.>")
	require.NoError(t, err)

	p := NewPublisher(nc, "test-daly")
	require.NoError(t, p.Publish(context.Background(), session.Update{
		Device:  "pack-a",
		Kind:    "status",
		Reading: daly.Reading{"state_of_charge": daly.Float(90, "%")},
		At:      time.Now(),
	}))
	require.NoError(t, nc.Flush())

	msg, err := sub.NextMsg(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test-daly.pack-a.status", msg.Subject)

	var body struct {
		Device  string                     `json:"device"`
		Reading map[string]json.RawMessage `json:"reading"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "pack-a", body.Device)
	assert.JSONEq(t, `{"type":"float","value":90,"unit":"%"}`, string(body.Reading["state_of_charge"]))
}
