package ir

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/testing/require"
)

func TestStackSize(t *testing.T) {
	require.Equal(t, 4, Bool().StackSize())
	require.Equal(t, 4, U32().StackSize())
	require.Equal(t, 8, U64().StackSize())
	require.Equal(t, 4, U128().StackSize()) // pointer on the stack
	require.Equal(t, 4, Vector(U8()).StackSize())
}

func TestIsHeapResident(t *testing.T) {
	require.False(t, Bool().IsHeapResident())
	require.False(t, U64().IsHeapResident())
	require.True(t, U128().IsHeapResident())
	require.True(t, Address().IsHeapResident())
	require.True(t, Vector(U8()).IsHeapResident())
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(U8(), U8()))
	require.False(t, Equal(U8(), U16()))
	require.True(t, Equal(Vector(U8()), Vector(U8())))
	require.False(t, Equal(Vector(U8()), Vector(U16())))

	h := DatatypeHandle{Module: "0x1::coin", Index: 3}
	require.True(t, Equal(Struct(h), Struct(h)))
	require.True(t, Equal(TypeParameter(0), TypeParameter(0)))
	require.False(t, Equal(TypeParameter(0), TypeParameter(1)))
}

func TestSubstitute(t *testing.T) {
	generic := Vector(TypeParameter(0))
	concrete := Substitute(generic, []Type{U64()})
	require.True(t, Equal(concrete, Vector(U64())))

	h := DatatypeHandle{Module: "0x1::pool", Index: 1}
	genericStruct := GenericStructInstance(h, []Type{TypeParameter(0), TypeParameter(1)})
	concreteStruct := Substitute(genericStruct, []Type{U8(), Address()})
	want := GenericStructInstance(h, []Type{U8(), Address()})
	require.True(t, Equal(concreteStruct, want))
}

func TestSubstituteOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range type parameter")
		}
	}()
	Substitute(TypeParameter(2), []Type{U8()})
}

type fakeSizer struct{ fieldCounts map[DatatypeHandle]int }

func (f fakeSizer) StructHeapSize(h DatatypeHandle) int { return 4 * f.fieldCounts[h] }
func (f fakeSizer) EnumHeapSize(h DatatypeHandle) int   { return 1 + 4*f.fieldCounts[h] }

func TestHeapSizeViaSizer(t *testing.T) {
	h := DatatypeHandle{Module: "0x1::coin", Index: 0}
	sizer := fakeSizer{fieldCounts: map[DatatypeHandle]int{h: 3}}
	require.Equal(t, 12, Struct(h).HeapSize(sizer))
}
