package daly

import "github.com/sigurn/crc16"

// CRC16/MODBUS：init=0xFFFF，反射多项式 0xA001，结果不异或
var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum 计算 Daly 帧使用的 CRC16
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// Verify 校验整帧：对除末尾2字节外的所有字节重新计算，与末尾小端 CRC 比较
func Verify(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	remote := uint16(frame[n]) | uint16(frame[n+1])<<8
	return Checksum(frame[:n]) == remote
}

// appendChecksum 追加小端 CRC
func appendChecksum(b []byte) []byte {
	crc := Checksum(b)
	return append(b, byte(crc), byte(crc>>8))
}
