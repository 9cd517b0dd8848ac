package modctx

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/testing/require"
)

func sampleModule() *movebin.Module {
	return &movebin.Module{
		Address: "0x1",
		Name:    "coin",
		Structs: []movebin.StructDefinition{
			{
				Name: "Balance",
				Fields: []movebin.FieldDefinition{
					{Name: "value", Type: movebin.SignatureToken{Tag: movebin.TokU64}},
					{Name: "owner", Type: movebin.SignatureToken{Tag: movebin.TokAddress}},
				},
			},
			{
				Name:               "Box",
				TypeParameterCount: 1,
				Fields: []movebin.FieldDefinition{
					{Name: "item", Type: movebin.SignatureToken{Tag: movebin.TokTypeParameter, TypeParamIndex: 0}},
				},
			},
		},
		Enums: []movebin.EnumDefinition{
			{
				Name: "Status",
				Variants: []movebin.EnumVariant{
					{Name: "Active"},
					{Name: "Paused", Fields: []movebin.FieldDefinition{
						{Name: "since", Type: movebin.SignatureToken{Tag: movebin.TokU64}},
					}},
				},
			},
		},
	}
}

func TestStructHeapSize(t *testing.T) {
	c := Build(sampleModule())
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	require.Equal(t, 8, c.StructHeapSize(h))
	require.Equal(t, []int{0, 4}, c.StructFieldOffsets(h))
}

func TestEnumHeapSizeUsesLargestVariant(t *testing.T) {
	c := Build(sampleModule())
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	require.Equal(t, 1+4, c.EnumHeapSize(h))
}

func TestGenericStructFieldSubstitution(t *testing.T) {
	c := Build(sampleModule())
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 1}
	fields := c.StructFieldTypes(h, []ir.Type{ir.U64()})
	require.Equal(t, 1, len(fields))
	require.True(t, ir.Equal(fields[0], ir.U64()))
}

func TestStructAbiHeadSizeStatic(t *testing.T) {
	c := Build(sampleModule())
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	require.Equal(t, 64, c.StructAbiHeadSize(h, nil)) // u64 + address, both static 32-byte slots
	require.False(t, c.StructIsDynamicAbi(h, nil))
}

func TestStructIsDynamicWhenFieldIsVector(t *testing.T) {
	mod := sampleModule()
	mod.Structs = append(mod.Structs, movebin.StructDefinition{
		Name: "Dyn",
		Fields: []movebin.FieldDefinition{
			{Name: "items", Type: movebin.SignatureToken{Tag: movebin.TokVector, Inner: &movebin.SignatureToken{Tag: movebin.TokU8}}},
		},
	})
	c := Build(mod)
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 2}
	require.True(t, c.StructIsDynamicAbi(h, nil))
}

func TestStructTupleName(t *testing.T) {
	c := Build(sampleModule())
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	require.Equal(t, "(uint64,address)", c.StructTupleName(h, nil))
}

func TestContainsSigner(t *testing.T) {
	mod := sampleModule()
	mod.Structs = append(mod.Structs, movebin.StructDefinition{
		Name: "Cap",
		Fields: []movebin.FieldDefinition{
			{Name: "s", Type: movebin.SignatureToken{Tag: movebin.TokSigner}},
		},
	})
	c := Build(mod)
	h := ir.DatatypeHandle{Module: "0x1::coin", Index: 2}
	require.True(t, ir.ContainsSigner(ir.Struct(h), c))

	h0 := ir.DatatypeHandle{Module: "0x1::coin", Index: 0}
	require.False(t, ir.ContainsSigner(ir.Struct(h0), c))
}
