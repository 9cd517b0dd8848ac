package runtime

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/testing/require"
)

func TestWideHelpersDistinctPerOperationAndWidth(t *testing.T) {
	r, _ := newTestRegistry(t)
	add128 := r.Get(NameU128Add)
	sub128 := r.Get(NameU128Sub)
	add256 := r.Get(NameU256Add)
	require.NotEqual(t, add128, sub128)
	require.NotEqual(t, add128, add256)
}

func TestNarrowCheckedHelpersDistinctPerWidth(t *testing.T) {
	r, _ := newTestRegistry(t)
	add32 := r.Get(NameI32AddChecked)
	add64 := r.Get(NameI64AddChecked)
	require.NotEqual(t, add32, add64)
}

func TestShiftHelpersRegistered(t *testing.T) {
	r, m := newTestRegistry(t)
	r.Get(NameShl128)
	r.Get(NameShr128)
	r.Get(NameShl256)
	r.Get(NameShr256)
	require.NoError(t, m.Validate())
}

func TestDowncastHelpersRegistered(t *testing.T) {
	r, m := newTestRegistry(t)
	r.Get(NameDowncastU64ToU32)
	r.Get(NameDowncastU128ToU32)
	r.Get(NameDowncastU128ToU64)
	r.Get(NameDowncastU256ToU64)
	require.NoError(t, m.Validate())
}

func TestStorageHelpersCallKeccakImport(t *testing.T) {
	r, m := newTestRegistry(t)
	r.Get(NameStorageNextSlot)
	r.Get(NameStorageObjectSlot)
	require.NoError(t, m.Validate())
	// both helpers must be local functions, not accidentally re-exported
	// as the import itself.
	require.True(t, r.Get(NameStorageNextSlot) >= uint32(len(m.Imports)))
}
