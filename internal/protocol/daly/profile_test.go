package daly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)

	_, err = LookupProfile("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "standard")

	assert.Equal(t, []string{"cellinfo", "compact", "legacy", "standard"}, ProfileNames())
}

func TestProfiles_Validate(t *testing.T) {
	for _, name := range ProfileNames() {
		t.Run(name, func(t *testing.T) {
			p := mustProfile(t, name)
			require.NoError(t, p.Validate())
			for b, s := range p.Kinds {
				got, ok := p.KindByte(s.Kind)
				require.True(t, ok)
				assert.Equal(t, b, got)
			}
		})
	}
}

func TestProfile_ValidateRejectsBadLayout(t *testing.T) {
	bad := *mustProfile(t, "standard")
	layout := *bad.Status
	layout.Alarm1 = 0x7C - 1
	bad.Status = &layout
	bad.Name = "bad"
	assert.ErrorContains(t, bad.Validate(), "alarm1")

	noLayout := *mustProfile(t, "cellinfo")
	noLayout.CellInfo = nil
	assert.Error(t, noLayout.Validate())

	tooBig := *mustProfile(t, "standard")
	tooBig.Kinds = map[byte]KindSpec{0x7E: {Kind: KindPassword, PayloadLen: 0x7E}}
	assert.ErrorContains(t, tooBig.Validate(), "max frame size")

	shortHeader := *mustProfile(t, "standard")
	shortHeader.KindOffset = 1
	assert.Error(t, shortHeader.Validate())
}

func TestProfile_Capabilities(t *testing.T) {
	legacy := mustProfile(t, "legacy")
	_, ok := legacy.PayloadLen(KindSettings)
	assert.False(t, ok)
	assert.Equal(t, ShapeFixedOpcode, legacy.Shape)
	assert.Equal(t, "fixed_opcode", legacy.Shape.String())

	n, ok := mustProfile(t, "compact").PayloadLen(KindStatus)
	require.True(t, ok)
	assert.Equal(t, 0x5C, n)
}
