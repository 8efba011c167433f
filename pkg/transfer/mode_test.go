package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{
		"":            ModeAuto,
		"auto":        ModeAuto,
		"direct_sync": ModeDirectSync,
		"traditional": ModeTraditional,
	} {
		got, err := ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseMode("turbo")
	assert.Error(t, err)
}

func sameStoreDescriptors(t *testing.T) []TransferDescriptor {
	t.Helper()
	d, err := BuildDescriptors([]SourceSpec{
		{Raw: "s3://src/a.bin"},
		{Raw: "s3://src/b.bin"},
	}, "s3://dst/backup")
	require.NoError(t, err)
	return d
}

func TestDirectSyncEligible(t *testing.T) {
	assert.True(t, DirectSyncEligible(sameStoreDescriptors(t)))

	withHTTP, err := BuildDescriptors([]SourceSpec{
		{Raw: "s3://src/a.bin"},
		{Raw: "https://example.org/b.bin"},
	}, "s3://dst/backup")
	require.NoError(t, err)
	assert.False(t, DirectSyncEligible(withHTTP))

	// An empty batch has nothing to disqualify it.
	assert.True(t, DirectSyncEligible(nil))
}

func TestSelectModeAuto(t *testing.T) {
	descriptors := sameStoreDescriptors(t)

	mode, err := SelectMode(ModeAuto, descriptors, Capabilities{BulkToolAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, ModeDirectSync, mode)

	mode, err = SelectMode(ModeAuto, descriptors, Capabilities{BulkToolAvailable: false})
	require.NoError(t, err)
	assert.Equal(t, ModeTraditional, mode)

	mode, err = SelectMode(ModeAuto, descriptors, Capabilities{BulkToolAvailable: true, CrossAccount: true})
	require.NoError(t, err)
	assert.Equal(t, ModeTraditional, mode)
}

func TestSelectModeExplicitDirectSyncNeverDowngrades(t *testing.T) {
	descriptors := sameStoreDescriptors(t)

	_, err := SelectMode(ModeDirectSync, descriptors, Capabilities{BulkToolAvailable: false})
	require.Error(t, err)

	var unavailable *ModeUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ModeDirectSync, unavailable.Requested)
	assert.Contains(t, unavailable.Reason, "not available")

	_, err = SelectMode(ModeDirectSync, descriptors, Capabilities{BulkToolAvailable: true, CrossAccount: true})
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Reason, "credentials")
}

func TestSelectModeExplicitTraditionalAlwaysWorks(t *testing.T) {
	mode, err := SelectMode(ModeTraditional, sameStoreDescriptors(t), Capabilities{BulkToolAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, ModeTraditional, mode)
}

func TestSelectModeIsPure(t *testing.T) {
	descriptors := sameStoreDescriptors(t)
	caps := Capabilities{BulkToolAvailable: true}

	first, err := SelectMode(ModeAuto, descriptors, caps)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := SelectMode(ModeAuto, descriptors, caps)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
