package replay

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

// StatusParams 模拟状态帧的输入
type StatusParams struct {
	Cells        []float64 // V
	Temperatures []float64 // °C
	Current      float64   // A，放电为负
	SOC          float64   // %
	Capacity     float64   // Ah
	Cycles       int
	Charging     bool
	Discharging  bool
	Balancing    bool
	AlarmMask    uint8
}

// SimulateStatus 按 profile 布局生成一条完整的状态通知（含校验）
// 总压、单体极值与压差由 Cells 推算
func SimulateStatus(p *daly.Profile, sp StatusParams) ([]byte, error) {
	kb, ok := p.KindByte(daly.KindStatus)
	if !ok || p.Status == nil {
		return nil, fmt.Errorf("profile %s has no status frame", p.Name)
	}
	n, _ := p.PayloadLen(daly.KindStatus)
	if len(sp.Cells) > daly.MaxCells {
		return nil, fmt.Errorf("at most %d cells, got %d", daly.MaxCells, len(sp.Cells))
	}
	if len(sp.Temperatures) > daly.MaxTemperatures {
		return nil, fmt.Errorf("at most %d temperatures, got %d", daly.MaxTemperatures, len(sp.Temperatures))
	}

	l := p.Status
	payload := make([]byte, n)
	var rangeErr error
	put := func(off int, v float64) {
		v = math.Round(v)
		if v < 0 || v > math.MaxUint16 {
			if rangeErr == nil {
				rangeErr = fmt.Errorf("value %v at offset %d does not fit a 16-bit word", v, off)
			}
			return
		}
		binary.BigEndian.PutUint16(payload[off:], uint16(v))
	}

	var total, lo, hi float64
	lo = math.Inf(1)
	for i, v := range sp.Cells {
		put(l.Cells+i*2, v*1000)
		total += v
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	put(l.CellCount, float64(len(sp.Cells)))
	if len(sp.Cells) > 0 {
		put(l.MinCellVoltage, lo*1000)
		put(l.MaxCellVoltage, hi*1000)
		put(l.AverageCellVoltage, total/float64(len(sp.Cells))*1000)
		put(l.DeltaCellVoltage, (hi-lo)/l.DeltaScale)
	}

	tlo, thi := math.Inf(1), math.Inf(-1)
	for i, t := range sp.Temperatures {
		put(l.Temperatures+i*2, t+float64(l.TemperatureBias))
		tlo, thi = math.Min(tlo, t), math.Max(thi, t)
	}
	put(l.TemperatureSensors, float64(len(sp.Temperatures)))
	if len(sp.Temperatures) > 0 {
		put(l.MinTemperature, tlo+float64(l.TemperatureBias))
		put(l.MaxTemperature, thi+float64(l.TemperatureBias))
	}

	put(l.TotalVoltage, total*10)
	put(l.Current, sp.Current*10+float64(l.CurrentZero))
	put(l.StateOfCharge, sp.SOC*10)
	put(l.CapacityRemaining, sp.Capacity*10)
	put(l.ChargingCycles, float64(sp.Cycles))

	switch {
	case sp.Current > 0:
		put(l.ChargeState, 1)
	case sp.Current < 0:
		put(l.ChargeState, 2)
	}
	put(l.ChargingMOS, b2f(sp.Charging))
	put(l.DischargingMOS, b2f(sp.Discharging))
	put(l.Balancer, b2f(sp.Balancing))
	put(l.Alarm1, float64(sp.AlarmMask))
	if rangeErr != nil {
		return nil, rangeErr
	}
	return daly.EncodeFrame(p, kb, payload), nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
