package daly

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType 读数值类型
type ValueType uint8

const (
	TypeFloat ValueType = iota + 1
	TypeBool
	TypeInt
	TypeText
)

func (t ValueType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	default:
		return "invalid"
	}
}

// Value 单个字段的解码结果（已换算为物理单位）
type Value struct {
	Type  ValueType
	Float float64
	Bool  bool
	Int   int64
	Text  string
	Unit  string
}

func Float(v float64, unit string) Value { return Value{Type: TypeFloat, Float: v, Unit: unit} }
func Bool(v bool) Value                  { return Value{Type: TypeBool, Bool: v} }
func Int(v int64, unit string) Value     { return Value{Type: TypeInt, Int: v, Unit: unit} }
func Text(v string) Value                { return Value{Type: TypeText, Text: v} }

// Number 以 float64 返回数值型字段；布尔映射为 0/1，文本返回 false
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case TypeFloat:
		return v.Float, true
	case TypeInt:
		return float64(v.Int), true
	case TypeBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	var s string
	switch v.Type {
	case TypeFloat:
		s = strconv.FormatFloat(v.Float, 'f', -1, 64)
	case TypeBool:
		s = strconv.FormatBool(v.Bool)
	case TypeInt:
		s = strconv.FormatInt(v.Int, 10)
	case TypeText:
		return v.Text
	default:
		return "<invalid>"
	}
	if v.Unit != "" {
		s += " " + v.Unit
	}
	return s
}

type valueJSON struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// MarshalJSON 对外输出 {type,value,unit}
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Type: v.Type.String(), Unit: v.Unit}
	switch v.Type {
	case TypeFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			out.Value = nil
		} else {
			out.Value = v.Float
		}
	case TypeBool:
		out.Value = v.Bool
	case TypeInt:
		out.Value = v.Int
	case TypeText:
		out.Value = v.Text
	default:
		return nil, fmt.Errorf("marshal value: invalid type %d", v.Type)
	}
	return json.Marshal(out)
}

// Reading 一帧的解码结果：语义字段名 -> 值
type Reading map[string]Value

// Len 字段数
func (r Reading) Len() int { return len(r) }

// CellVoltageField 第 i 节（1 起）单体电压字段名
func CellVoltageField(i int) string { return "cell_voltage_" + strconv.Itoa(i) }

// TemperatureField 第 i 个（1 起）温度字段名
func TemperatureField(i int) string { return "temperature_" + strconv.Itoa(i) }
