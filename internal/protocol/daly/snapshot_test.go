package daly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_MergeLastWins(t *testing.T) {
	s := NewSnapshot()
	assert.Equal(t, 0, s.Len())

	n := s.Merge(Reading{"total_voltage": Float(13.2, "V"), "charging": Bool(false)})
	assert.Equal(t, 2, n)

	s.Merge(Reading{"total_voltage": Float(13.4, "V"), "password": Text("123456")})

	v, ok := s.Get("total_voltage")
	require.True(t, ok)
	assert.Equal(t, 13.4, v.Float)

	v, ok = s.Get("charging")
	require.True(t, ok, "未在新帧出现的字段保留旧值")
	assert.False(t, v.Bool)

	_, ok = s.Get("current")
	assert.False(t, ok, "从未出现的字段保持缺失")

	assert.Equal(t, []string{"charging", "password", "total_voltage"}, s.Names())
}

func TestSnapshot_MergeAcrossKinds(t *testing.T) {
	p := mustProfile(t, "standard")
	e := NewEngine(p)
	s := NewSnapshot()

	_, r, err := e.Process(exampleStatusFrame(t))
	require.NoError(t, err)
	s.Merge(r)
	_, r, err = e.Process(EncodeFrame(p, 0x40, textPayload(32, "401012", "BMS")))
	require.NoError(t, err)
	s.Merge(r)

	assert.Contains(t, s.Names(), "cell_voltage_1")
	assert.Contains(t, s.Names(), "software_version")
	assert.NotContains(t, s.Names(), "rated_capacity")
}

func TestSnapshot_CopiesAreIndependent(t *testing.T) {
	s := NewSnapshot()
	s.Merge(Reading{"a": Int(1, "")})

	fields := s.Fields()
	fields["a"] = Int(2, "")
	clone := s.Clone()
	s.Merge(Reading{"a": Int(3, "")})

	v, _ := clone.Get("a")
	assert.Equal(t, int64(1), v.Int)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, clone.Len())
}

func TestFieldSelector(t *testing.T) {
	_, err := NewFieldSelector([]string{"cell_voltage_["})
	require.Error(t, err)

	var nilSel *FieldSelector
	assert.True(t, nilSel.Match("anything"))

	empty, err := NewFieldSelector(nil)
	require.NoError(t, err)
	r := Reading{"a": Int(1, "")}
	assert.Equal(t, r, empty.Filter(r))

	sel, err := NewFieldSelector([]string{"temperature_?", "errors"})
	require.NoError(t, err)
	assert.True(t, sel.Match("temperature_1"))
	assert.True(t, sel.Match("errors"))
	assert.False(t, sel.Match("temperature_sensors"))
	assert.False(t, sel.Match("error_bitmask"))
}
