package daly

import "math"

// 充放电状态（0=idle, 1=charging, 2=discharging）
func chargeStateText(v uint16) string {
	switch v {
	case 0:
		return "Idle"
	case 1:
		return "Charging"
	case 2:
		return "Discharging"
	default:
		return "Unknown"
	}
}

// decodeStatus 解码状态帧
// 线上的功率字段为无符号值，不可信，功率由 总压*电流 计算
func decodeStatus(p *Profile, b []byte, opts decodeOptions) Reading {
	l := p.Status
	r := make(Reading, 64)

	cellCount := word(b, l.CellCount)
	cells := clamp(cellCount, MaxCells)
	volts := make([]float64, cells)
	for i := 0; i < cells; i++ {
		volts[i] = float64(word(b, l.Cells+i*2)) / 1000
		r[CellVoltageField(i+1)] = Float(volts[i], "V")
	}
	r["cell_count"] = Int(int64(cellCount), "")
	cellStats(r, volts)

	sensorCount := word(b, l.TemperatureSensors)
	sensors := clamp(sensorCount, MaxTemperatures)
	for i := 0; i < sensors; i++ {
		r[TemperatureField(i+1)] = Float(temperature(word(b, l.Temperatures+i*2), l.TemperatureBias), "°C")
	}
	r["temperature_sensors"] = Int(int64(sensorCount), "")

	totalVoltage := float64(word(b, l.TotalVoltage)) / 10
	current := float64(int(word(b, l.Current))-l.CurrentZero) / 10
	power := totalVoltage * current
	r["total_voltage"] = Float(totalVoltage, "V")
	r["current"] = Float(current, "A")
	r["power"] = Float(power, "W")
	r["charging_power"] = Float(max(0, power), "W")
	r["discharging_power"] = Float(math.Abs(min(0, power)), "W")

	r["state_of_charge"] = Float(float64(word(b, l.StateOfCharge))/10, "%")
	r["reported_max_cell_voltage"] = Float(float64(word(b, l.MaxCellVoltage))/1000, "V")
	r["reported_min_cell_voltage"] = Float(float64(word(b, l.MinCellVoltage))/1000, "V")
	r["reported_average_cell_voltage"] = Float(float64(word(b, l.AverageCellVoltage))/1000, "V")
	r["max_temperature"] = Float(temperature(word(b, l.MaxTemperature), l.TemperatureBias), "°C")
	r["min_temperature"] = Float(temperature(word(b, l.MinTemperature), l.TemperatureBias), "°C")
	r["charge_state"] = Text(chargeStateText(word(b, l.ChargeState)))
	r["capacity_remaining"] = Float(float64(word(b, l.CapacityRemaining))/10, "Ah")
	r["charging_cycles"] = Int(int64(word(b, l.ChargingCycles)), "")
	r["balancing"] = Bool(word(b, l.Balancer) != 0)
	r["charging"] = Bool(word(b, l.ChargingMOS) != 0)
	r["discharging"] = Bool(word(b, l.DischargingMOS) != 0)
	r["delta_cell_voltage"] = Float(float64(word(b, l.DeltaCellVoltage))*l.DeltaScale, "V")

	mask := uint8(word(b, l.Alarm1))
	r["error_bitmask"] = Int(int64(mask), "")
	r["errors"] = Text(DecodeAlarms(mask, opts.alarmDelimiter))
	return r
}

func temperature(raw uint16, bias int) float64 {
	return float64(int(raw) - bias)
}
