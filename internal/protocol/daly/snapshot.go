package daly

import (
	"fmt"
	"path"
	"sort"
)

// Snapshot 单个连接的合并读数：按字段名覆盖，未出现过的字段保持缺失
type Snapshot struct {
	fields map[string]Value
}

func NewSnapshot() *Snapshot {
	return &Snapshot{fields: make(map[string]Value)}
}

// Merge 将一帧读数叠加到快照，返回被写入的字段数
func (s *Snapshot) Merge(r Reading) int {
	for k, v := range r {
		s.fields[k] = v
	}
	return len(r)
}

// Get 读取字段
func (s *Snapshot) Get(name string) (Value, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Len 已出现的字段数
func (s *Snapshot) Len() int { return len(s.fields) }

// Fields 返回字段副本
func (s *Snapshot) Fields() map[string]Value {
	out := make(map[string]Value, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Names 已排序的字段名
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.fields))
	for k := range s.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone 深拷贝
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{fields: s.Fields()}
}

// Reset 清空（断开重连后使用）
func (s *Snapshot) Reset() {
	s.fields = make(map[string]Value)
}

// FieldSelector 集成方关心的字段集合（glob 模式，如 "cell_voltage_*"），为空表示全部
type FieldSelector struct {
	patterns []string
}

// NewFieldSelector 校验并创建字段选择器
func NewFieldSelector(patterns []string) (*FieldSelector, error) {
	for _, pt := range patterns {
		if _, err := path.Match(pt, ""); err != nil {
			return nil, fmt.Errorf("bad field pattern %q: %w", pt, err)
		}
	}
	return &FieldSelector{patterns: append([]string(nil), patterns...)}, nil
}

// Match 判断字段是否被选中
func (fs *FieldSelector) Match(name string) bool {
	if fs == nil || len(fs.patterns) == 0 {
		return true
	}
	for _, pt := range fs.patterns {
		if ok, _ := path.Match(pt, name); ok {
			return true
		}
	}
	return false
}

// Filter 返回只包含选中字段的新读数
func (fs *FieldSelector) Filter(r Reading) Reading {
	if fs == nil || len(fs.patterns) == 0 {
		return r
	}
	out := make(Reading, len(r))
	for k, v := range r {
		if fs.Match(k) {
			out[k] = v
		}
	}
	return out
}
