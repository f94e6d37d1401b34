package thirdparty

import (
	"fmt"
	"time"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

// 事件类型
const (
	EventAlarmRaised  = "alarm.raised"
	EventAlarmCleared = "alarm.cleared"
)

// Event 推送给第三方的事件体；ID 每次跳变唯一，供接收方幂等
type Event struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Device    string         `json:"device"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`

	bit int
}

// StateKey 告警位的状态键，去重按该键比较最近一次推送的状态
func (e Event) StateKey() string { return fmt.Sprintf("%s:%d", e.Device, e.bit) }

// AlarmEvents 对比前后两次告警掩码，每个跳变的 bit 生成一个事件
func AlarmEvents(device string, prev, cur uint8, at time.Time) []Event {
	var events []Event
	for bit := 0; bit < 8; bit++ {
		m := uint8(1) << bit
		var kind string
		switch {
		case cur&m != 0 && prev&m == 0:
			kind = EventAlarmRaised
		case cur&m == 0 && prev&m != 0:
			kind = EventAlarmCleared
		default:
			continue
		}
		events = append(events, Event{
			ID:        fmt.Sprintf("%s:%s:%d:%d", device, kind, bit, at.UnixNano()),
			Event:     kind,
			Device:    device,
			Timestamp: at.Unix(),
			Data: map[string]any{
				"alarm":         daly.AlarmNames(m)[0],
				"bit":           bit,
				"error_bitmask": cur,
				"active":        daly.AlarmNames(cur),
			},
			bit: bit,
		})
	}
	return events
}
