package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/daly-bms/internal/replay"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "状态请求", args: []string{"build", "request", "status"}, want: "D2030000003ED7B9"},
		{name: "读设置", args: []string{"build", "read", "0x80", "0x29"}, want: "D20300800029965F"},
		{name: "设置SOC", args: []string{"build", "soc", "68"}, want: "D20600A702A82B54"},
		{name: "legacy状态请求", args: []string{"-p", "legacy", "build", "request", "status"}, want: "D203900000007B69"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := run(t, "", "-p", "legacy", "build", "action", "factory_reset")
	assert.ErrorContains(t, err, "not supported")

	_, err = run(t, "", "build", "action", "explode")
	assert.ErrorContains(t, err, "unknown action")

	_, err = run(t, "", "build", "charging", "maybe")
	assert.ErrorContains(t, err, "on|off")

	_, err = run(t, "", "build", "read", "0x10000", "1")
	assert.ErrorContains(t, err, "16-bit")

	_, err = run(t, "", "-p", "v9", "build", "request", "status")
	assert.Error(t, err)
}

func TestDecodeAndSimulate(t *testing.T) {
	frame, err := run(t, "", "simulate", "--cells", "3.3,3.31", "--current", "2.5", "--soc", "88")
	require.NoError(t, err)
	frame = strings.TrimSpace(frame)

	out, err := run(t, "", "decode", frame, "--fields", "current,state_of_charge,charge_state")
	require.NoError(t, err)
	assert.Contains(t, out, "# status (3 fields)")
	assert.Contains(t, out, "current = 2.5 A")
	assert.Contains(t, out, "state_of_charge = 88 %")
	assert.Contains(t, out, "charge_state = Charging")

	out, err = run(t, "# comment\n"+frame+"\nD2030000003ED7B8\n", "decode", "--json", "--fields", "current")
	require.NoError(t, err, "stdin 模式下坏帧只报告不退出")
	assert.Contains(t, out, `"kind":"status"`)
	assert.Contains(t, out, "checksum_mismatch")
}

func TestSimulateToCaptureAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")

	_, err := run(t, "", "simulate", "-o", path, "--label", "idle", "--soc", "50")
	require.NoError(t, err)
	_, err = run(t, "", "simulate", "-o", path, "--label", "charging", "--current", "5")
	require.NoError(t, err)

	c, err := replay.Load(path)
	require.NoError(t, err)
	require.Len(t, c.Notifications, 2)
	assert.Equal(t, "standard", c.Profile)

	// 写入期望值后校验
	c.Notifications[1].Expect = map[string]float64{"current": 5, "total_voltage": 13.2}
	data, err := c.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := run(t, "", "replay", path, "--check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "idle: status")
	assert.Contains(t, out, "snapshot:")

	c.Notifications[1].Expect["current"] = 6
	data, err = c.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err = run(t, "", "replay", path, "--check")
	assert.ErrorContains(t, err, "1 expectation(s) failed")
	assert.Contains(t, out, "FAIL charging.current")
}

func TestProfiles(t *testing.T) {
	out, err := run(t, "", "profiles")
	require.NoError(t, err)
	for _, name := range []string{"standard", "compact", "legacy", "cellinfo"} {
		assert.Contains(t, out, name)
	}
}

func TestReplaySampleCapture(t *testing.T) {
	out, err := run(t, "", "replay", filepath.Join("..", "..", "testdata", "status_capture.yaml"), "--check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "versions: versions")
	assert.Contains(t, out, "corrupted: dropped (checksum_mismatch)")
}
