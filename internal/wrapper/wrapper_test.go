package wrapper

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/abi"
	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/testing/require"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

type fakeCtx struct {
	fields map[ir.DatatypeHandle][]ir.Type
}

func (f *fakeCtx) StructHeapSize(h ir.DatatypeHandle) int  { return 4 * len(f.fields[h]) }
func (f *fakeCtx) EnumHeapSize(ir.DatatypeHandle) int       { return 4 }
func (f *fakeCtx) StructFieldTypes(h ir.DatatypeHandle, typeArgs []ir.Type) []ir.Type {
	return f.fields[h]
}
func (f *fakeCtx) StructAbiHeadSize(h ir.DatatypeHandle, typeArgs []ir.Type) int {
	if f.StructIsDynamicAbi(h, typeArgs) {
		return 32
	}
	total := 0
	for _, ft := range f.fields[h] {
		total += ft.AbiEncodedSize(f)
	}
	return total
}
func (f *fakeCtx) StructIsDynamicAbi(h ir.DatatypeHandle, typeArgs []ir.Type) bool {
	for _, ft := range f.fields[h] {
		if ft.IsDynamicAbi(f) {
			return true
		}
	}
	return false
}
func (f *fakeCtx) StructTupleName(h ir.DatatypeHandle, typeArgs []ir.Type) string {
	out := "("
	for i, ft := range f.fields[h] {
		if i > 0 {
			out += ","
		}
		out += solidityNameInline(ft, f)
	}
	return out + ")"
}

func solidityNameInline(t ir.Type, f *fakeCtx) string {
	switch t.Kind() {
	case ir.KindU64:
		return "uint64"
	case ir.KindAddress:
		return "address"
	default:
		return "uint8"
	}
}

var pairHandle = ir.DatatypeHandle{Module: "0x1::pair", Index: 0}

func newTestBuilder(t *testing.T) (*Builder, *wasmmod.Module) {
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
	ctx := &fakeCtx{fields: map[ir.DatatypeHandle][]ir.Type{
		pairHandle: {ir.U64(), ir.Address()},
	}}
	codec := abi.NewCodec(m, rt, ctx)
	hi := hostabi.New(m)
	return NewBuilder(m, rt, hi, codec, ctx), m
}

func TestBuildEmitsValidModuleForSimpleFunction(t *testing.T) {
	b, m := newTestBuilder(t)
	inner := m.AddFunction(wasmmod.Function{
		TypeIndex: m.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI64, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI64},
		}),
		Body: wasmmod.NewBodyBuilder().LocalGet(0).End().Bytes(),
	})
	wrapped, err := b.Build(Function{
		Name:         "transfer",
		Params:       []ir.Type{ir.U64(), ir.Address()},
		Returns:      []ir.Type{ir.U64()},
		InnerFuncIdx: inner,
	})
	require.NoError(t, err)
	require.NotEqual(t, [4]byte{}, wrapped.Selector)
	require.NoError(t, m.Validate())
}

func TestBuildInjectsSignerWithoutConsumingCalldata(t *testing.T) {
	b, m := newTestBuilder(t)
	inner := m.AddFunction(wasmmod.Function{
		TypeIndex: m.AddType(wasmmod.FunctionType{
			Params: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI64},
		}),
		Body: wasmmod.NewBodyBuilder().End().Bytes(),
	})
	wrapped, err := b.Build(Function{
		Name:         "withdraw",
		Params:       []ir.Type{ir.Signer(), ir.U64()},
		InnerFuncIdx: inner,
	})
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	_ = wrapped
}

func TestBuildRejectsSignerNotFirst(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.Build(Function{
		Name:   "bad",
		Params: []ir.Type{ir.U64(), ir.Signer()},
	})
	require.Error(t, err)
}

func TestBuildRejectsMultipleSigners(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.Build(Function{
		Name:   "bad",
		Params: []ir.Type{ir.Signer(), ir.Signer()},
	})
	require.Error(t, err)
}

func TestBuildRejectsDoubleReference(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.Build(Function{
		Name:   "bad",
		Params: []ir.Type{ir.Ref(ir.Ref(ir.U64()))},
	})
	require.Error(t, err)
}

func TestBuildRejectsUnmonomorphizedGeneric(t *testing.T) {
	b, _ := newTestBuilder(t)
	_, err := b.Build(Function{
		Name:   "bad",
		Params: []ir.Type{ir.Vector(ir.TypeParameter(0))},
	})
	require.Error(t, err)
}

func TestSelectorDependsOnlyOnCalldataParams(t *testing.T) {
	b, m := newTestBuilder(t)
	inner1 := m.AddFunction(wasmmod.Function{
		TypeIndex: m.AddType(wasmmod.FunctionType{Params: []wasmmod.ValueType{wasmmod.ValueTypeI64}}),
		Body:      wasmmod.NewBodyBuilder().End().Bytes(),
	})
	wrapped1, err := b.Build(Function{Name: "f", Params: []ir.Type{ir.U64()}, InnerFuncIdx: inner1})
	require.NoError(t, err)

	b2, m2 := newTestBuilder(t)
	inner2 := m2.AddFunction(wasmmod.Function{
		TypeIndex: m2.AddType(wasmmod.FunctionType{Params: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI64}}),
		Body:      wasmmod.NewBodyBuilder().End().Bytes(),
	})
	wrapped2, err := b2.Build(Function{Name: "f", Params: []ir.Type{ir.Signer(), ir.U64()}, InnerFuncIdx: inner2})
	require.NoError(t, err)
	require.Equal(t, wrapped1.Selector, wrapped2.Selector)
}
