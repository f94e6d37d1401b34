package daly

import "math"

// decodeCellInfo 单体信息帧：数量字 + 最多 16 个 float32 电压
func decodeCellInfo(p *Profile, b []byte, _ decodeOptions) Reading {
	l := p.CellInfo
	r := make(Reading, MaxCells+8)

	count := word(b, l.CellCount)
	cells := clamp(count, MaxCells)
	volts := make([]float64, 0, cells)
	for i := 0; i < cells; i++ {
		v := float64(float32At(b, l.Cells+i*4))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			// 无效槽位按未安装处理
			volts = append(volts, 0)
			continue
		}
		volts = append(volts, v)
		r[CellVoltageField(i+1)] = Float(v, "V")
	}
	r["cell_count"] = Int(int64(count), "")
	cellStats(r, volts)
	return r
}
