package daly

import (
	"fmt"
	"math"
)

// CommandSize 下行命令帧固定长度
const CommandSize = 8

// buildCommand [device][function][hi][lo][hi][lo][crc lo][crc hi]
func buildCommand(device, function byte, first, second uint16) []byte {
	frame := make([]byte, 6, CommandSize)
	frame[0] = device
	frame[1] = function
	frame[2] = byte(first >> 8)
	frame[3] = byte(first)
	frame[4] = byte(second >> 8)
	frame[5] = byte(second)
	return appendChecksum(frame)
}

func (p *Profile) opcode(address uint16) (uint16, error) {
	op, ok := p.Opcodes[address]
	if !ok {
		return 0, fmt.Errorf("%w: profile %s has no opcode for register 0x%04X", ErrUnsupportedCommand, p.Name, address)
	}
	return op, nil
}

// BuildRead 读 quantity 个寄存器
// 固定操作码的 profile 仅支持其操作码表中的起始地址，quantity 由固件决定
func BuildRead(p *Profile, address, quantity uint16) ([]byte, error) {
	if p.Shape == ShapeFixedOpcode {
		op, err := p.opcode(address)
		if err != nil {
			return nil, err
		}
		return buildCommand(p.DeviceAddress, FunctionRead, op, 0x0000), nil
	}
	if quantity == 0 {
		return nil, fmt.Errorf("%w: zero quantity read at 0x%04X", ErrInvalidValue, address)
	}
	return buildCommand(p.DeviceAddress, FunctionRead, address, quantity), nil
}

// BuildWrite 写单个寄存器
func BuildWrite(p *Profile, address, value uint16) ([]byte, error) {
	if p.Shape == ShapeFixedOpcode {
		op, err := p.opcode(address)
		if err != nil {
			return nil, err
		}
		return buildCommand(p.DeviceAddress, FunctionWrite, op, value), nil
	}
	return buildCommand(p.DeviceAddress, FunctionWrite, address, value), nil
}

// BuildAction 构造固定操作码动作；profile 不支持时返回 ErrUnsupportedCommand，不会生成空操作帧
func BuildAction(p *Profile, a Action) ([]byte, error) {
	op, ok := p.Actions[a]
	if !ok {
		return nil, fmt.Errorf("%w: %s on profile %s", ErrUnsupportedCommand, a, p.Name)
	}
	if p.Shape == ShapeFixedOpcode {
		return buildCommand(p.DeviceAddress, FunctionWrite, op, 0x0000), nil
	}
	if a == ActionRetrieveSettings && p.Registers.SettingsQty > 0 {
		return BuildRead(p, p.Registers.SettingsStart, p.Registers.SettingsQty)
	}
	return buildCommand(p.DeviceAddress, FunctionWrite, p.Registers.ActionRegister, op), nil
}

func (p *Profile) request(k Kind, start, qty uint16) ([]byte, error) {
	if _, ok := p.KindByte(k); !ok {
		return nil, fmt.Errorf("%w: profile %s has no %s frame", ErrUnsupportedCommand, p.Name, k)
	}
	return BuildRead(p, start, qty)
}

// RequestStatus 请求状态帧
func RequestStatus(p *Profile) ([]byte, error) {
	return p.request(KindStatus, p.Registers.StatusStart, p.Registers.StatusQty)
}

// RequestSettings 请求设置帧
func RequestSettings(p *Profile) ([]byte, error) {
	return p.request(KindSettings, p.Registers.SettingsStart, p.Registers.SettingsQty)
}

// RequestVersions 请求版本帧
func RequestVersions(p *Profile) ([]byte, error) {
	return p.request(KindVersions, p.Registers.VersionsStart, p.Registers.VersionsQty)
}

// RequestPassword 请求密码帧
func RequestPassword(p *Profile) ([]byte, error) {
	return p.request(KindPassword, p.Registers.PasswordStart, p.Registers.PasswordQty)
}

// RequestCellInfo 请求单体信息帧
func RequestCellInfo(p *Profile) ([]byte, error) {
	return p.request(KindCellInfo, p.Registers.CellInfoStart, p.Registers.CellInfoQty)
}

func boolWord(on bool) uint16 {
	if on {
		return 1
	}
	return 0
}

// SetChargingMOS 充电 MOS 开关
func SetChargingMOS(p *Profile, on bool) ([]byte, error) {
	return BuildWrite(p, p.Registers.ChargingMOS, boolWord(on))
}

// SetDischargingMOS 放电 MOS 开关
func SetDischargingMOS(p *Profile, on bool) ([]byte, error) {
	return BuildWrite(p, p.Registers.DischargingMOS, boolWord(on))
}

// SetSOC 设置 SOC（0..100 %，按 0.1% 存储）
func SetSOC(p *Profile, percent float64) ([]byte, error) {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: soc %.1f out of range [0,100]", ErrInvalidValue, percent)
	}
	if p.Registers.SOC == 0 {
		return nil, fmt.Errorf("%w: profile %s has no soc register", ErrUnsupportedCommand, p.Name)
	}
	return BuildWrite(p, p.Registers.SOC, uint16(math.Round(percent*10)))
}
