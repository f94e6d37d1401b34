package daly

import "strings"

// DefaultAlarmDelimiter 告警名称分隔符
const DefaultAlarmDelimiter = ";"

// alarmNames 告警位定义，下标即 bit 位置
var alarmNames = [8]string{
	"Total voltage overcharge protection",  // 0000 0001
	"Single voltage overcharge protection", // 0000 0010
	"Charge overcurrent protection",        // 0000 0100
	"Discharge overcurrent protection",     // 0000 1000
	"Total voltage overdischarge",          // 0001 0000
	"Single voltage overdischarge",         // 0010 0000
	"High temperature protection",          // 0100 0000
	"Short circuit protection",             // 1000 0000
}

// AlarmNames 按 bit 升序返回掩码中置位的告警名称；mask=0 返回空切片
func AlarmNames(mask uint8) []string {
	names := make([]string, 0, 8)
	for i := 0; i < len(alarmNames); i++ {
		if mask&(1<<i) != 0 {
			names = append(names, alarmNames[i])
		}
	}
	return names
}

// DecodeAlarms 将告警掩码转为分隔的名称列表，空掩码返回 ""
func DecodeAlarms(mask uint8, delimiter string) string {
	return strings.Join(AlarmNames(mask), delimiter)
}
