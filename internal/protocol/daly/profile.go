package daly

import (
	"fmt"
	"sort"
)

const (
	// MaxCells 单体电压数组容量
	MaxCells = 16
	// MaxTemperatures 温度探头数组容量
	MaxTemperatures = 8

	FunctionRead  byte = 0x03
	FunctionWrite byte = 0x06
)

// CommandShape 下行命令的编址方式
type CommandShape uint8

const (
	// ShapeAddressed [addr hi][addr lo][qty/value hi][qty/value lo]
	ShapeAddressed CommandShape = iota
	// ShapeFixedOpcode [op hi][op lo][value hi][value lo]，不支持独立寻址
	ShapeFixedOpcode
)

func (s CommandShape) String() string {
	if s == ShapeFixedOpcode {
		return "fixed_opcode"
	}
	return "addressed"
}

// Action 固定操作码动作（按钮）
type Action uint8

const (
	ActionRetrieveSettings Action = iota + 1
	ActionFactoryReset
	ActionResetChargingCycles
	ActionResetTotalCharged
	ActionResetTotalDischarged
)

var actionNames = map[Action]string{
	ActionRetrieveSettings:     "retrieve_settings",
	ActionFactoryReset:         "factory_reset",
	ActionResetChargingCycles:  "reset_charging_cycles",
	ActionResetTotalCharged:    "reset_total_charged_capacity",
	ActionResetTotalDischarged: "reset_total_discharged_capacity",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction 由名称解析动作
func ParseAction(name string) (Action, bool) {
	for a, n := range actionNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}

// KindSpec 类型字节对应的帧类型与期望负载长度
type KindSpec struct {
	Kind       Kind
	PayloadLen int
}

// StatusLayout 状态帧字段偏移（相对 payload，单位字节，均为大端 16 位字）
type StatusLayout struct {
	Cells              int
	Temperatures       int
	TotalVoltage       int
	Current            int
	StateOfCharge      int
	MaxCellVoltage     int
	MinCellVoltage     int
	MaxTemperature     int
	MinTemperature     int
	ChargeState        int
	CapacityRemaining  int
	CellCount          int
	TemperatureSensors int
	ChargingCycles     int
	Balancer           int
	ChargingMOS        int
	DischargingMOS     int
	AverageCellVoltage int
	DeltaCellVoltage   int
	Alarm1             int

	// DeltaScale 压差缩放系数，部分固件为 0.0001
	DeltaScale float64
	// TemperatureBias 温度偏置（raw - bias）
	TemperatureBias int
	// CurrentZero 电流零点（(raw - zero) * 0.1）
	CurrentZero int
}

func (l *StatusLayout) words() map[string]int {
	return map[string]int{
		"total_voltage":        l.TotalVoltage,
		"current":              l.Current,
		"state_of_charge":      l.StateOfCharge,
		"max_cell_voltage":     l.MaxCellVoltage,
		"min_cell_voltage":     l.MinCellVoltage,
		"max_temperature":      l.MaxTemperature,
		"min_temperature":      l.MinTemperature,
		"charge_state":         l.ChargeState,
		"capacity_remaining":   l.CapacityRemaining,
		"cell_count":           l.CellCount,
		"temperature_sensors":  l.TemperatureSensors,
		"charging_cycles":      l.ChargingCycles,
		"balancer":             l.Balancer,
		"charging_mos":         l.ChargingMOS,
		"discharging_mos":      l.DischargingMOS,
		"average_cell_voltage": l.AverageCellVoltage,
		"delta_cell_voltage":   l.DeltaCellVoltage,
		"alarm1":               l.Alarm1,
	}
}

// CellInfoLayout 单体信息帧：数量字 + 浮点电压数组（每个 float32 由两个大端半字组成）
type CellInfoLayout struct {
	CellCount int
	Cells     int
}

// TextField 定宽文本字段
type TextField struct {
	Name   string
	Offset int
	Width  int
}

// RegisterMap 寄存器地址与读取数量
type RegisterMap struct {
	StatusStart    uint16
	StatusQty      uint16
	SettingsStart  uint16
	SettingsQty    uint16
	VersionsStart  uint16
	VersionsQty    uint16
	PasswordStart  uint16
	PasswordQty    uint16
	CellInfoStart  uint16
	CellInfoQty    uint16
	ChargingMOS    uint16
	DischargingMOS uint16
	SOC            uint16
	// ActionRegister 写入动作操作码的控制寄存器（仅 ShapeAddressed）
	ActionRegister uint16
}

// Profile 固件/协议修订版本的配置表，启动时选定一次，之后只读
type Profile struct {
	Name        string
	Description string

	Marker        [2]byte
	DeviceAddress byte
	KindOffset    int
	Kinds         map[byte]KindSpec

	Status   *StatusLayout
	CellInfo *CellInfoLayout
	Versions []TextField
	Password []TextField

	Shape     CommandShape
	Registers RegisterMap
	// Opcodes ShapeFixedOpcode 下寄存器地址到操作码的映射
	Opcodes map[uint16]uint16
	// Actions 支持的动作及其操作码，缺失即不支持
	Actions map[Action]uint16
}

func (p *Profile) headerSize() int { return p.KindOffset + 1 }

// KindByte 返回某帧类型在本 profile 中的类型字节
func (p *Profile) KindByte(k Kind) (byte, bool) {
	for b, s := range p.Kinds {
		if s.Kind == k {
			return b, true
		}
	}
	return 0, false
}

// PayloadLen 返回某帧类型的期望负载长度
func (p *Profile) PayloadLen(k Kind) (int, bool) {
	b, ok := p.KindByte(k)
	if !ok {
		return 0, false
	}
	return p.Kinds[b].PayloadLen, true
}

// Validate 校验偏移表不会越过期望负载长度
func (p *Profile) Validate() error {
	if p.KindOffset < 2 {
		return fmt.Errorf("profile %s: kind offset %d overlaps marker", p.Name, p.KindOffset)
	}
	if p.headerSize()+crcSize < MinFrameSize {
		return fmt.Errorf("profile %s: header too short", p.Name)
	}
	for b, s := range p.Kinds {
		if p.headerSize()+s.PayloadLen+crcSize > MaxFrameSize {
			return fmt.Errorf("profile %s: kind 0x%02X exceeds max frame size", p.Name, b)
		}
		var err error
		switch s.Kind {
		case KindStatus:
			err = p.validateStatus(s.PayloadLen)
		case KindSettings:
			err = checkSpan(p.Name, "settings", 0, len(settingsFields)*2, s.PayloadLen)
		case KindCellInfo:
			err = p.validateCellInfo(s.PayloadLen)
		case KindVersions:
			err = checkText(p.Name, p.Versions, s.PayloadLen)
		case KindPassword:
			err = checkText(p.Name, p.Password, s.PayloadLen)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) validateStatus(n int) error {
	if p.Status == nil {
		return fmt.Errorf("profile %s: status kind without layout", p.Name)
	}
	l := p.Status
	if err := checkSpan(p.Name, "cells", l.Cells, MaxCells*2, n); err != nil {
		return err
	}
	if err := checkSpan(p.Name, "temperatures", l.Temperatures, MaxTemperatures*2, n); err != nil {
		return err
	}
	for name, off := range l.words() {
		if err := checkSpan(p.Name, name, off, 2, n); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) validateCellInfo(n int) error {
	if p.CellInfo == nil {
		return fmt.Errorf("profile %s: cell info kind without layout", p.Name)
	}
	if err := checkSpan(p.Name, "cell_info_count", p.CellInfo.CellCount, 2, n); err != nil {
		return err
	}
	return checkSpan(p.Name, "cell_info_cells", p.CellInfo.Cells, MaxCells*4, n)
}

func checkText(profile string, fields []TextField, n int) error {
	for _, f := range fields {
		if err := checkSpan(profile, f.Name, f.Offset, f.Width, n); err != nil {
			return err
		}
	}
	return nil
}

func checkSpan(profile, field string, off, width, n int) error {
	if off < 0 || off+width > n {
		return fmt.Errorf("profile %s: field %s [%d,%d) outside payload of %d bytes", profile, field, off, off+width, n)
	}
	return nil
}

var daly2024Status = &StatusLayout{
	Cells:              0,
	Temperatures:       64,
	TotalVoltage:       80,
	Current:            82,
	StateOfCharge:      84,
	MaxCellVoltage:     86,
	MinCellVoltage:     88,
	MaxTemperature:     90,
	MinTemperature:     92,
	ChargeState:        94,
	CapacityRemaining:  96,
	CellCount:          98,
	TemperatureSensors: 100,
	ChargingCycles:     102,
	Balancer:           104,
	ChargingMOS:        106,
	DischargingMOS:     108,
	AverageCellVoltage: 110,
	DeltaCellVoltage:   112,
	Alarm1:             116,
	DeltaScale:         0.001,
	TemperatureBias:    40,
	CurrentZero:        30000,
}

// 16 串精简布局：单体区只有 16 个槽位，其余字段整体前移
var compactStatus = &StatusLayout{
	Cells:              0,
	Temperatures:       32,
	TotalVoltage:       48,
	Current:            50,
	StateOfCharge:      52,
	MaxCellVoltage:     54,
	MinCellVoltage:     56,
	MaxTemperature:     58,
	MinTemperature:     60,
	ChargeState:        62,
	CapacityRemaining:  64,
	CellCount:          66,
	TemperatureSensors: 68,
	ChargingCycles:     70,
	Balancer:           72,
	ChargingMOS:        74,
	DischargingMOS:     76,
	AverageCellVoltage: 78,
	DeltaCellVoltage:   80,
	Alarm1:             84,
	DeltaScale:         0.0001,
	TemperatureBias:    40,
	CurrentZero:        30000,
}

var versionFields = []TextField{
	{Name: "software_version", Offset: 0, Width: 32},
	{Name: "hardware_version", Offset: 32, Width: 32},
}

var passwordFields = []TextField{
	{Name: "password", Offset: 0, Width: 6},
}

var standardRegisters = RegisterMap{
	StatusStart:    0x0000,
	StatusQty:      0x003E,
	SettingsStart:  0x0080,
	SettingsQty:    0x0029,
	VersionsStart:  0x00A9,
	VersionsQty:    0x0020,
	PasswordStart:  0x00C9,
	PasswordQty:    0x0003,
	ChargingMOS:    0x00D9,
	DischargingMOS: 0x0086,
	SOC:            0x00A7,
	ActionRegister: 0x00CC,
}

var standardActions = map[Action]uint16{
	ActionRetrieveSettings:     0x5600,
	ActionFactoryReset:         0xCCCC,
	ActionResetChargingCycles:  0xAA55,
	ActionResetTotalCharged:    0xCB00,
	ActionResetTotalDischarged: 0xCA00,
}

var profiles = map[string]*Profile{}

func register(p *Profile) {
	if err := p.Validate(); err != nil {
		panic(err)
	}
	profiles[p.Name] = p
}

func init() {
	register(&Profile{
		Name:          "standard",
		Description:   "Modbus-style BLE firmware, 32-slot status frame (0x7C)",
		Marker:        [2]byte{0xD2, 0x03},
		DeviceAddress: 0xD2,
		KindOffset:    2,
		Kinds: map[byte]KindSpec{
			0x7C: {Kind: KindStatus, PayloadLen: 0x7C},
			0x52: {Kind: KindSettings, PayloadLen: 0x52},
			0x40: {Kind: KindVersions, PayloadLen: 0x40},
			0x06: {Kind: KindPassword, PayloadLen: 0x06},
		},
		Status:    daly2024Status,
		Versions:  versionFields,
		Password:  passwordFields,
		Shape:     ShapeAddressed,
		Registers: standardRegisters,
		Actions:   standardActions,
	})

	compactRegs := standardRegisters
	compactRegs.StatusQty = 0x002E
	register(&Profile{
		Name:          "compact",
		Description:   "16-cell firmware, 16-slot status frame (0x5C), delta voltage in 0.1 mV",
		Marker:        [2]byte{0xD2, 0x03},
		DeviceAddress: 0xD2,
		KindOffset:    2,
		Kinds: map[byte]KindSpec{
			0x5C: {Kind: KindStatus, PayloadLen: 0x5C},
			0x52: {Kind: KindSettings, PayloadLen: 0x52},
			0x40: {Kind: KindVersions, PayloadLen: 0x40},
			0x06: {Kind: KindPassword, PayloadLen: 0x06},
		},
		Status:    compactStatus,
		Versions:  versionFields,
		Password:  passwordFields,
		Shape:     ShapeAddressed,
		Registers: compactRegs,
		Actions:   standardActions,
	})

	register(&Profile{
		Name:          "legacy",
		Description:   "early firmware, fixed opcode commands, no settings/password frames, no factory reset",
		Marker:        [2]byte{0xD2, 0x03},
		DeviceAddress: 0xD2,
		KindOffset:    2,
		Kinds: map[byte]KindSpec{
			0x7C: {Kind: KindStatus, PayloadLen: 0x7C},
			0x40: {Kind: KindVersions, PayloadLen: 0x40},
		},
		Status:   daly2024Status,
		Versions: versionFields,
		Shape:    ShapeFixedOpcode,
		Registers: RegisterMap{
			StatusStart:    0x0000,
			StatusQty:      0x003E,
			VersionsStart:  0x00A9,
			VersionsQty:    0x0020,
			ChargingMOS:    0x00D9,
			DischargingMOS: 0x0086,
		},
		Opcodes: map[uint16]uint16{
			0x0000: 0x9000,
			0x00A9: 0x6200,
			0x00D9: 0xDA00,
			0x0086: 0xD900,
		},
		Actions: map[Action]uint16{
			ActionResetChargingCycles: 0xAA55,
		},
	})

	cellRegs := standardRegisters
	cellRegs.CellInfoStart = 0x0100
	cellRegs.CellInfoQty = 0x0021
	register(&Profile{
		Name:          "cellinfo",
		Description:   "standard layout plus float32 cell info frame (0x42)",
		Marker:        [2]byte{0xD2, 0x03},
		DeviceAddress: 0xD2,
		KindOffset:    2,
		Kinds: map[byte]KindSpec{
			0x7C: {Kind: KindStatus, PayloadLen: 0x7C},
			0x52: {Kind: KindSettings, PayloadLen: 0x52},
			0x40: {Kind: KindVersions, PayloadLen: 0x40},
			0x06: {Kind: KindPassword, PayloadLen: 0x06},
			0x42: {Kind: KindCellInfo, PayloadLen: 0x42},
		},
		Status:    daly2024Status,
		CellInfo:  &CellInfoLayout{CellCount: 0, Cells: 2},
		Versions:  versionFields,
		Password:  passwordFields,
		Shape:     ShapeAddressed,
		Registers: cellRegs,
		Actions:   standardActions,
	})
}

// DefaultProfile 默认 profile 名称
const DefaultProfile = "standard"

// LookupProfile 按名称查找 profile
func LookupProfile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown revision profile %q (known: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames 返回全部 profile 名称（已排序）
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
