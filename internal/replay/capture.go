package replay

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Capture 抓包文件：按顺序回放的原始通知
type Capture struct {
	Device        string         `yaml:"device"`
	Profile       string         `yaml:"profile"`
	Notifications []Notification `yaml:"notifications"`
}

// Notification 单条通知；Expect 为可选的期望字段值，用于校验解码
type Notification struct {
	Label  string             `yaml:"label"`
	Hex    string             `yaml:"hex"`
	Delay  time.Duration      `yaml:"delay"`
	Expect map[string]float64 `yaml:"expect,omitempty"`
}

// Bytes 解析十六进制文本
func (n Notification) Bytes() ([]byte, error) {
	return ParseHex(n.Hex)
}

// ParseHex 宽松十六进制解析：忽略空白、冒号、连字符与 0x 前缀
func ParseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", ":", "", "-", "").Replace(s)
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex: %w", err)
	}
	return b, nil
}

// Parse 解析 YAML 抓包
func Parse(data []byte) (*Capture, error) {
	var c Capture
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	if len(c.Notifications) == 0 {
		return nil, fmt.Errorf("capture has no notifications")
	}
	for i, n := range c.Notifications {
		if _, err := n.Bytes(); err != nil {
			return nil, fmt.Errorf("notification %d (%s): %w", i, n.Label, err)
		}
	}
	return &c, nil
}

// Load 读取抓包文件
func Load(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return Parse(data)
}

// Marshal 输出 YAML（dalyctl 录制使用）
func (c *Capture) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
