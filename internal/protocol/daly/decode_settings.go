package daly

type settingsConv uint8

const (
	convInt settingsConv = iota
	convTenth
	convMilli
	convTemperature
	convCurrent
	convBool
	convBatteryType
)

type settingsField struct {
	name string
	conv settingsConv
	unit string
}

// settingsFields 设置帧字段，下标 i 对应寄存器 0x80+i，payload 偏移 2*i
var settingsFields = []settingsField{
	{"rated_capacity", convTenth, "Ah"},                           // 0x80
	{"cell_reference_voltage", convMilli, "V"},                    // 0x81
	{"acquisition_boards", convInt, ""},                           // 0x82
	{"board_1_cells", convInt, ""},                                // 0x83
	{"board_2_cells", convInt, ""},                                // 0x84
	{"board_3_cells", convInt, ""},                                // 0x85
	{"board_1_temperature_sensors", convInt, ""},                  // 0x86
	{"board_2_temperature_sensors", convInt, ""},                  // 0x87
	{"board_3_temperature_sensors", convInt, ""},                  // 0x88
	{"battery_type", convBatteryType, ""},                         // 0x89
	{"sleep_wait_time", convInt, "s"},                             // 0x8A
	{"level_1_cell_voltage_high", convMilli, "V"},                 // 0x8B
	{"level_2_cell_voltage_high", convMilli, "V"},                 // 0x8C
	{"level_1_cell_voltage_low", convMilli, "V"},                  // 0x8D
	{"level_2_cell_voltage_low", convMilli, "V"},                  // 0x8E
	{"level_1_total_voltage_high", convTenth, "V"},                // 0x8F
	{"level_2_total_voltage_high", convTenth, "V"},                // 0x90
	{"level_1_total_voltage_low", convTenth, "V"},                 // 0x91
	{"level_2_total_voltage_low", convTenth, "V"},                 // 0x92
	{"level_1_charge_current_high", convCurrent, "A"},             // 0x93
	{"level_2_charge_current_high", convCurrent, "A"},             // 0x94
	{"level_1_discharge_current_high", convCurrent, "A"},          // 0x95
	{"level_2_discharge_current_high", convCurrent, "A"},          // 0x96
	{"level_1_charge_temperature_high", convTemperature, "°C"},    // 0x97
	{"level_2_charge_temperature_high", convTemperature, "°C"},    // 0x98
	{"level_1_charge_temperature_low", convTemperature, "°C"},     // 0x99
	{"level_2_charge_temperature_low", convTemperature, "°C"},     // 0x9A
	{"level_1_discharge_temperature_high", convTemperature, "°C"}, // 0x9B
	{"level_2_discharge_temperature_high", convTemperature, "°C"}, // 0x9C
	{"level_1_discharge_temperature_low", convTemperature, "°C"},  // 0x9D
	{"level_2_discharge_temperature_low", convTemperature, "°C"},  // 0x9E
	{"level_1_voltage_difference", convMilli, "V"},                // 0x9F
	{"level_2_voltage_difference", convMilli, "V"},                // 0xA0
	{"level_1_temperature_difference", convInt, "°C"},             // 0xA1
	{"level_2_temperature_difference", convInt, "°C"},             // 0xA2
	{"balancing_turn_on_voltage", convMilli, "V"},                 // 0xA3
	{"balancing_voltage_difference", convMilli, "V"},              // 0xA4
	{"charging_switch", convBool, ""},                             // 0xA5
	{"discharging_switch", convBool, ""},                          // 0xA6
	{"soc_setting", convTenth, "%"},                               // 0xA7
	{"mos_temperature_protection", convTemperature, "°C"},         // 0xA8
}

func batteryTypeText(v uint16) string {
	switch v {
	case 0:
		return "LiFePO4"
	case 1:
		return "Li-ion"
	case 2:
		return "LTO"
	default:
		return "Unknown"
	}
}

// decodeSettings 解码设置帧（寄存器 0x80..0xA8）
// 温度与电流的偏置与状态帧一致（-40 / -30000）
func decodeSettings(p *Profile, b []byte, _ decodeOptions) Reading {
	bias, zero := 40, 30000
	if p.Status != nil {
		bias, zero = p.Status.TemperatureBias, p.Status.CurrentZero
	}
	r := make(Reading, len(settingsFields))
	for i, f := range settingsFields {
		raw := word(b, i*2)
		switch f.conv {
		case convTenth:
			r[f.name] = Float(float64(raw)/10, f.unit)
		case convMilli:
			r[f.name] = Float(float64(raw)/1000, f.unit)
		case convTemperature:
			r[f.name] = Float(temperature(raw, bias), f.unit)
		case convCurrent:
			r[f.name] = Float(float64(int(raw)-zero)/10, f.unit)
		case convBool:
			r[f.name] = Bool(raw != 0)
		case convBatteryType:
			r[f.name] = Text(batteryTypeText(raw))
		default:
			r[f.name] = Int(int64(raw), f.unit)
		}
	}
	return r
}
