package daly

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustProfile(t *testing.T, name string) *Profile {
	t.Helper()
	p, err := LookupProfile(name)
	require.NoError(t, err)
	return p
}

// putFrameWord 按帧绝对偏移写入大端字（帧头 3 字节）
func putFrameWord(payload []byte, frameOff int, v uint16) {
	binary.BigEndian.PutUint16(payload[frameOff-3:], v)
}

// exampleStatusPayload 实机抓包的状态帧（4 串，充电 3A）
func exampleStatusPayload() []byte {
	b := make([]byte, 0x7C)
	putFrameWord(b, 3, 0x101F)
	putFrameWord(b, 5, 0x1029)
	putFrameWord(b, 7, 0x1033)
	putFrameWord(b, 9, 0x103D)
	putFrameWord(b, 67, 0x003C)
	putFrameWord(b, 69, 0x003D)
	putFrameWord(b, 71, 0x003E)
	putFrameWord(b, 73, 0x003F)
	putFrameWord(b, 83, 0x008C)
	putFrameWord(b, 85, 0x754E)
	putFrameWord(b, 87, 0x0384)
	putFrameWord(b, 89, 0x103D)
	putFrameWord(b, 91, 0x101F)
	putFrameWord(b, 93, 0x003F)
	putFrameWord(b, 95, 0x003C)
	putFrameWord(b, 97, 0x0001)
	putFrameWord(b, 99, 0x0D80)
	putFrameWord(b, 101, 0x0004)
	putFrameWord(b, 103, 0x0004)
	putFrameWord(b, 105, 0x0039)
	putFrameWord(b, 107, 0x0001)
	putFrameWord(b, 109, 0x0001)
	putFrameWord(b, 111, 0x0000)
	putFrameWord(b, 113, 0x102E)
	putFrameWord(b, 115, 0x001E)
	putFrameWord(b, 117, 0x002A)
	return b
}

func exampleStatusFrame(t *testing.T) []byte {
	t.Helper()
	raw := EncodeFrame(mustProfile(t, "standard"), 0x7C, exampleStatusPayload())
	require.Len(t, raw, MaxFrameSize)
	return raw
}

func exampleSettingsPayload() []byte {
	regs := []uint16{
		0x041A, 0x0C80, 0x0001, 0x0004, 0x0000, 0x0000, 0x0100, 0x0000, 0x0000, 0x0000,
		0x1C20, 0x0DAC, 0x0DAC, 0x0A28, 0x0A28, 0x008C, 0x008C, 0x0068, 0x0068, 0x74CC,
		0x74CC, 0x7490, 0x75D0, 0x0055, 0x0055, 0x0028, 0x0028, 0x006E, 0x006E, 0x0027,
		0x0027, 0x00FF, 0x00FF, 0x00FF, 0x00FF, 0x0C80, 0x0014, 0x0001, 0x0001, 0x02A8,
		0x0057,
	}
	b := make([]byte, 0, len(regs)*2)
	for _, r := range regs {
		b = binary.BigEndian.AppendUint16(b, r)
	}
	return b
}

func textPayload(width int, parts ...string) []byte {
	b := make([]byte, width*len(parts))
	for i, s := range parts {
		copy(b[i*width:], s)
	}
	return b
}
