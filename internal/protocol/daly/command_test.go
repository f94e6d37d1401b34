package daly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_Standard(t *testing.T) {
	p := mustProfile(t, "standard")

	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  []byte
	}{
		{
			name:  "读取状态",
			build: func() ([]byte, error) { return RequestStatus(p) },
			want:  []byte{0xD2, 0x03, 0x00, 0x00, 0x00, 0x3E, 0xD7, 0xB9},
		},
		{
			name:  "读取设置",
			build: func() ([]byte, error) { return RequestSettings(p) },
			want:  []byte{0xD2, 0x03, 0x00, 0x80, 0x00, 0x29, 0x96, 0x5F},
		},
		{
			name:  "读取版本",
			build: func() ([]byte, error) { return RequestVersions(p) },
			want:  []byte{0xD2, 0x03, 0x00, 0xA9, 0x00, 0x20, 0x87, 0x91},
		},
		{
			name:  "打开充电MOS",
			build: func() ([]byte, error) { return SetChargingMOS(p, true) },
			want:  []byte{0xD2, 0x06, 0x00, 0xD9, 0x00, 0x01, 0x8A, 0x52},
		},
		{
			name:  "关闭充电MOS",
			build: func() ([]byte, error) { return SetChargingMOS(p, false) },
			want:  []byte{0xD2, 0x06, 0x00, 0xD9, 0x00, 0x00, 0x4B, 0x92},
		},
		{
			name:  "关闭放电MOS",
			build: func() ([]byte, error) { return SetDischargingMOS(p, false) },
			want:  []byte{0xD2, 0x06, 0x00, 0x86, 0x00, 0x00, 0x7B, 0x80},
		},
		{
			name:  "设置SOC为68%",
			build: func() ([]byte, error) { return SetSOC(p, 68.0) },
			want:  []byte{0xD2, 0x06, 0x00, 0xA7, 0x02, 0xA8, 0x2B, 0x54},
		},
		{
			name:  "设置SOC为0",
			build: func() ([]byte, error) { return SetSOC(p, 0) },
			want:  []byte{0xD2, 0x06, 0x00, 0xA7, 0x00, 0x00, 0x2B, 0x8A},
		},
		{
			name:  "设置SOC为100%",
			build: func() ([]byte, error) { return SetSOC(p, 100) },
			want:  []byte{0xD2, 0x06, 0x00, 0xA7, 0x03, 0xE8, 0x2B, 0x34},
		},
		{
			name:  "恢复出厂",
			build: func() ([]byte, error) { return BuildAction(p, ActionFactoryReset) },
			want:  []byte{0xD2, 0x06, 0x00, 0xCC, 0xCC, 0xCC, 0x0F, 0x03},
		},
		{
			name:  "清零循环次数",
			build: func() ([]byte, error) { return BuildAction(p, ActionResetChargingCycles) },
			want:  []byte{0xD2, 0x06, 0x00, 0xCC, 0xAA, 0x55, 0xE4, 0xC9},
		},
		{
			name:  "读取设置动作等同设置请求",
			build: func() ([]byte, error) { return BuildAction(p, ActionRetrieveSettings) },
			want:  []byte{0xD2, 0x03, 0x00, 0x80, 0x00, 0x29, 0x96, 0x5F},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got % X", got)
			assert.Len(t, got, CommandSize)
			assert.True(t, Verify(got))
		})
	}
}

func TestCommands_Legacy(t *testing.T) {
	p := mustProfile(t, "legacy")

	got, err := RequestStatus(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD2, 0x03, 0x90, 0x00, 0x00, 0x00, 0x7B, 0x69}, got)

	got, err = SetChargingMOS(p, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD2, 0x06, 0xDA, 0x00, 0x00, 0x01, 0x60, 0xB1}, got)

	got, err = BuildAction(p, ActionResetChargingCycles)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD2, 0x06, 0xAA, 0x55, 0x00, 0x00, 0xAB, 0xA1}, got)
}

func TestCommands_Unsupported(t *testing.T) {
	legacy := mustProfile(t, "legacy")
	standard := mustProfile(t, "standard")

	tests := []struct {
		name  string
		build func() ([]byte, error)
	}{
		{name: "legacy恢复出厂", build: func() ([]byte, error) { return BuildAction(legacy, ActionFactoryReset) }},
		{name: "legacy读取设置", build: func() ([]byte, error) { return RequestSettings(legacy) }},
		{name: "legacy读取密码", build: func() ([]byte, error) { return RequestPassword(legacy) }},
		{name: "legacy设置SOC", build: func() ([]byte, error) { return SetSOC(legacy, 50) }},
		{name: "legacy任意地址读", build: func() ([]byte, error) { return BuildRead(legacy, 0x0080, 0x29) }},
		{name: "legacy任意地址写", build: func() ([]byte, error) { return BuildWrite(legacy, 0x00A7, 1) }},
		{name: "standard无单体信息帧", build: func() ([]byte, error) { return RequestCellInfo(standard) }},
		{name: "未知动作", build: func() ([]byte, error) { return BuildAction(standard, Action(99)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrUnsupportedCommand)
			assert.Equal(t, "unsupported", ErrorLabel(err))
		})
	}
}

func TestSetSOC_OutOfRange(t *testing.T) {
	p := mustProfile(t, "standard")
	for _, v := range []float64{-0.1, 100.1, math.NaN(), math.Inf(1)} {
		got, err := SetSOC(p, v)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrInvalidValue, "soc %v", v)
	}
}

func TestBuildRead_ZeroQuantity(t *testing.T) {
	got, err := BuildRead(mustProfile(t, "standard"), 0x0080, 0)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.NotErrorIs(t, err, ErrUnsupportedCommand)
	assert.Equal(t, "invalid_value", ErrorLabel(err))

	// 固定操作码的 profile 忽略 quantity
	got, err = BuildRead(mustProfile(t, "legacy"), 0x0000, 0)
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestRequestCellInfo(t *testing.T) {
	got, err := RequestCellInfo(mustProfile(t, "cellinfo"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD2, 0x03, 0x01, 0x00, 0x00, 0x21, 0x97, 0x8D}, got)
}

func TestParseAction(t *testing.T) {
	for a, name := range actionNames {
		got, ok := ParseAction(name)
		require.True(t, ok)
		assert.Equal(t, a, got)
		assert.Equal(t, name, a.String())
	}
	_, ok := ParseAction("reboot")
	assert.False(t, ok)
	assert.Equal(t, "action(99)", Action(99).String())
}
