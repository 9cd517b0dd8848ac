package storage

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/testing/require"
)

func TestAssignPacksSmallFieldsIntoOneSlot(t *testing.T) {
	layout := Assign([]Field{
		{Name: "a", Type: ir.U64()},
		{Name: "b", Type: ir.U64()},
		{Name: "c", Type: ir.U64()},
		{Name: "d", Type: ir.U64()},
	}, 0)
	require.Equal(t, layout[0].Slot, layout[1].Slot)
	require.Equal(t, layout[1].Slot, layout[2].Slot)
	require.Equal(t, layout[2].Slot, layout[3].Slot)
	require.Equal(t, 24, layout[0].ByteOff)
	require.Equal(t, 0, layout[3].ByteOff)
}

func TestAssignOverflowsToNextSlot(t *testing.T) {
	layout := Assign([]Field{
		{Name: "a", Type: ir.U256()},
		{Name: "b", Type: ir.U8()},
	}, 0)
	require.NotEqual(t, layout[0].Slot, layout[1].Slot)
}

func TestAssignGivesCompositeTypesTheirOwnSlot(t *testing.T) {
	layout := Assign([]Field{
		{Name: "a", Type: ir.U8()},
		{Name: "b", Type: ir.Vector(ir.U64())},
		{Name: "c", Type: ir.U8()},
	}, 0)
	require.NotEqual(t, layout[0].Slot, layout[1].Slot)
	require.NotEqual(t, layout[1].Slot, layout[2].Slot)
}

func TestNextSlotAfterAccountsForPartiallyFilledSlot(t *testing.T) {
	layout := Assign([]Field{{Name: "a", Type: ir.U64()}}, 5)
	require.Equal(t, uint64(5), NextSlotAfter(layout, 5))
}

func TestNextSlotAfterAdvancesWhenLastFieldFillsSlot(t *testing.T) {
	layout := Assign([]Field{{Name: "a", Type: ir.U256()}}, 5)
	require.Equal(t, uint64(6), NextSlotAfter(layout, 5))
}

func TestFromUint64RoundTripsThroughBigEndianBytes(t *testing.T) {
	s := FromUint64(300)
	require.Equal(t, byte(1), s[30])
	require.Equal(t, byte(44), s[31])
}
