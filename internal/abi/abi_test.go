package abi

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/testing/require"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// fakeLayout is a minimal LayoutContext backing a fixed table of struct
// definitions, standing in for internal/modctx.Context the way the
// runtime package's tests stand in for internal/entrypoint's wiring.
type fakeLayout struct {
	fields map[ir.DatatypeHandle][]ir.Type
}

func (f *fakeLayout) StructHeapSize(h ir.DatatypeHandle) int {
	return 4 * len(f.fields[h])
}

func (f *fakeLayout) EnumHeapSize(h ir.DatatypeHandle) int {
	return 4
}

func (f *fakeLayout) StructFieldTypes(h ir.DatatypeHandle, typeArgs []ir.Type) []ir.Type {
	fields := f.fields[h]
	if len(typeArgs) == 0 {
		return fields
	}
	out := make([]ir.Type, len(fields))
	for i, ft := range fields {
		out[i] = ir.Substitute(ft, typeArgs)
	}
	return out
}

func (f *fakeLayout) StructAbiHeadSize(h ir.DatatypeHandle, typeArgs []ir.Type) int {
	if f.StructIsDynamicAbi(h, typeArgs) {
		return 32
	}
	size := 0
	for _, ft := range f.StructFieldTypes(h, typeArgs) {
		size += ft.AbiEncodedSize(f)
	}
	return size
}

func (f *fakeLayout) StructIsDynamicAbi(h ir.DatatypeHandle, typeArgs []ir.Type) bool {
	for _, ft := range f.StructFieldTypes(h, typeArgs) {
		if ft.IsDynamicAbi(f) {
			return true
		}
	}
	return false
}

var pointHandle = ir.DatatypeHandle{Module: "0x1::geometry", Index: 0}
var walletHandle = ir.DatatypeHandle{Module: "0x1::wallet", Index: 1}

// newTestCodec wires a Codec against a fresh module with a stub allocator
// and vm_hooks imports, and a fakeLayout carrying a static struct (Point:
// two u64 fields) and a dynamic struct (Wallet: an address plus a
// vector<u64>), mirroring internal/runtime's newTestRegistry helper.
func newTestCodec(t *testing.T) (*Codec, *wasmmod.Module) {
	t.Helper()
	m := wasmmod.New()
	allocFn := m.AddImport("vm_hooks", "pay_for_memory_grow", wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	})
	loadFn := m.AddImport("vm_hooks", "storage_load_bytes32", wasmmod.FunctionType{
		Params: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
	})
	cacheFn := m.AddImport("vm_hooks", "storage_cache_bytes32", wasmmod.FunctionType{
		Params: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
	})
	flushFn := m.AddImport("vm_hooks", "storage_flush_cache", wasmmod.FunctionType{
		Params: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	})
	keccakFn := m.AddImport("vm_hooks", "native_keccak256", wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	})
	m.SetMemory(wasmmod.MemoryLimits{InitialPages: 1})
	rt := runtime.NewRegistry(m, allocFn, loadFn, cacheFn, flushFn, keccakFn)
	ctx := &fakeLayout{fields: map[ir.DatatypeHandle][]ir.Type{
		pointHandle: {ir.U64(), ir.U64()},
		walletHandle: {
			ir.Address(),
			ir.Vector(ir.U64()),
		},
	}}
	return NewCodec(m, rt, ctx), m
}

func TestUnpackFnMemoizesByMangledName(t *testing.T) {
	c, _ := newTestCodec(t)
	a := c.unpackFn(ir.U64())
	b := c.unpackFn(ir.U64())
	require.Equal(t, a, b)
}

func TestUnpackFnDistinctAcrossKinds(t *testing.T) {
	c, _ := newTestCodec(t)
	a := c.unpackFn(ir.U64())
	b := c.unpackFn(ir.U256())
	require.NotEqual(t, a, b)
}

func TestUnpackFnDistinctAcrossVectorElementTypes(t *testing.T) {
	c, _ := newTestCodec(t)
	a := c.unpackFn(ir.Vector(ir.U64()))
	b := c.unpackFn(ir.Vector(ir.U8()))
	require.NotEqual(t, a, b)
}

func TestPackFnMemoizesByMangledName(t *testing.T) {
	c, _ := newTestCodec(t)
	a := c.packFn(ir.Struct(pointHandle))
	b := c.packFn(ir.Struct(pointHandle))
	require.Equal(t, a, b)
}

func TestPackAndUnpackFnsAreIndependentCaches(t *testing.T) {
	c, _ := newTestCodec(t)
	pack := c.packFn(ir.U64())
	unpack := c.unpackFn(ir.U64())
	require.NotEqual(t, pack, unpack)
}

// TestAllScalarCodecsEmitValidModule synthesizes every scalar pack/unpack
// helper into one module, the broadest smoke test for the straight-line
// (non-recursive) codecs.
func TestAllScalarCodecsEmitValidModule(t *testing.T) {
	c, m := newTestCodec(t)
	for _, ty := range []ir.Type{ir.Bool(), ir.U8(), ir.U16(), ir.U32(), ir.U64(), ir.U128(), ir.U256(), ir.Address()} {
		c.unpackFn(ty)
		c.packFn(ty)
	}
	require.NoError(t, m.Validate())
}

func TestVectorCodecsEmitValidModule(t *testing.T) {
	c, m := newTestCodec(t)
	c.unpackFn(ir.Vector(ir.U64()))
	c.packFn(ir.Vector(ir.U64()))
	c.unpackFn(ir.Vector(ir.Vector(ir.U8())))
	c.packFn(ir.Vector(ir.Vector(ir.U8())))
	require.NoError(t, m.Validate())
}

func TestStaticStructCodecsEmitValidModule(t *testing.T) {
	c, m := newTestCodec(t)
	c.unpackFn(ir.Struct(pointHandle))
	c.packFn(ir.Struct(pointHandle))
	require.NoError(t, m.Validate())
}

func TestDynamicStructCodecsEmitValidModule(t *testing.T) {
	c, m := newTestCodec(t)
	c.unpackFn(ir.Struct(walletHandle))
	c.packFn(ir.Struct(walletHandle))
	require.NoError(t, m.Validate())
}

// TestUnpackParamsAndPackReturnsWireIntoAWrapperBody exercises the two
// top-level entry points the way internal/wrapper will: a fabricated
// wrapper function reads three parameters out of calldata, then packs
// three values back out as a return buffer.
func TestUnpackParamsAndPackReturnsWireIntoAWrapperBody(t *testing.T) {
	c, m := newTestCodec(t)
	types := []ir.Type{ir.U64(), ir.Address(), ir.Vector(ir.U64())}

	b := wasmmod.NewBodyBuilder()
	// locals: 0 = calldataBase (param), 1-3 = dest locals, 4-6 = headPtr/tailPtr/len scratch
	destLocals := []uint32{1, 2, 3}
	c.UnpackParams(b, 0, types, destLocals)
	c.PackReturns(b, 4, 5, 6, types, destLocals)
	b.LocalGet(4).LocalGet(6)

	m.AddFunction(wasmmod.Function{
		TypeIndex: m.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		}),
		Locals: []wasmmod.LocalGroup{{Count: 6, Type: wasmmod.ValueTypeI32}},
		Body:   b.End().Bytes(),
	})
	require.NoError(t, m.Validate())
}

func TestUnpackParamsPanicsOnLengthMismatch(t *testing.T) {
	c, _ := newTestCodec(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched types/destLocals lengths")
		}
	}()
	b := wasmmod.NewBodyBuilder()
	c.UnpackParams(b, 0, []ir.Type{ir.U64(), ir.U8()}, []uint32{1})
}

func TestUnsupportedKindPanics(t *testing.T) {
	c, _ := newTestCodec(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a kind with no ABI rule")
		}
	}()
	c.unpackFn(ir.Signer())
}
