package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// updatedAtField 快照 hash 中记录最后更新时间的保留字段
const updatedAtField = "_updated_at"

// SnapshotStore 当前快照存储：每个设备一个 hash（字段名 -> JSON 值），不保留历史
// 每次合并后向 channel 发布一条通知；会话清空快照时整个 hash 一并删除
type SnapshotStore struct {
	client *Client
}

// Notification 更新通知
type Notification struct {
	Device string    `json:"device"`
	Kind   string    `json:"kind"`
	Fields []string  `json:"fields"`
	At     time.Time `json:"at"`
}

// NewSnapshotStore key 与频道命名由 client 决定
func NewSnapshotStore(client *Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

func (s *SnapshotStore) Name() string { return "redis" }

// Publish 将本帧字段写入 hash（HSET 覆盖同名字段，其余字段保持），并发布通知
func (s *SnapshotStore) Publish(ctx context.Context, u session.Update) error {
	values, err := encodeFields(u.Reading)
	if err != nil {
		return err
	}
	values[updatedAtField] = u.At.UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.client.SnapshotKey(u.Device), values)
	if ch := s.client.Channel(); ch != "" {
		note, err := json.Marshal(Notification{Device: u.Device, Kind: u.Kind, Fields: fieldNames(u.Reading), At: u.At})
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		pipe.Publish(ctx, ch, note)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot %s: %w", u.Device, err)
	}
	return nil
}

// Reset 实现 session.Resetter：删除设备快照 hash
func (s *SnapshotStore) Reset(ctx context.Context, device string) error {
	if err := s.client.Del(ctx, s.client.SnapshotKey(device)).Err(); err != nil {
		return fmt.Errorf("reset snapshot %s: %w", device, err)
	}
	return nil
}

func encodeFields(r daly.Reading) (map[string]any, error) {
	values := make(map[string]any, len(r)+1)
	for name, v := range r {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", name, err)
		}
		values[name] = string(b)
	}
	return values, nil
}

func fieldNames(r daly.Reading) []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
