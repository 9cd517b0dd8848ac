package runtime

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/testing/require"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// newTestRegistry wires a Registry against a fresh module with stub
// allocator and vm_hooks imports, mirroring how internal/entrypoint would
// set one up before handing it to the translator.
func newTestRegistry(t *testing.T) (*Registry, *wasmmod.Module) {
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
	return NewRegistry(m, allocFn, loadFn, cacheFn, flushFn, keccakFn), m
}

func TestGetMemoizesByName(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := r.Get(NameByteSwap32)
	b := r.Get(NameByteSwap32)
	require.Equal(t, a, b)
}

func TestGetDistinctNamesYieldDistinctFunctions(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := r.Get(NameByteSwap32)
	b := r.Get(NameByteSwap64)
	require.NotEqual(t, a, b)
}

func TestGetPanicsOnUnknownName(t *testing.T) {
	r, _ := newTestRegistry(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown helper name")
		}
	}()
	r.Get("not_a_real_helper")
}

func TestGetGenericMangledNamesAreDistinctPerElementType(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := r.GetGeneric(NameHeapEqual, ir.U128())
	b := r.GetGeneric(NameHeapEqual, ir.U256())
	require.NotEqual(t, a, b)
	again := r.GetGeneric(NameHeapEqual, ir.U128())
	require.Equal(t, a, again)
}

// TestAllFixedHelpersEmitValidModule synthesizes every fixed-name helper
// into one module and validates the result, the broadest smoke test this
// package has: every builder must emit a type-correct, EOF-terminated
// body that internal/wasmmod.Module.Validate accepts.
func TestAllFixedHelpersEmitValidModule(t *testing.T) {
	r, m := newTestRegistry(t)
	for name := range fixedBuilders {
		r.Get(name)
	}
	require.NoError(t, m.Validate())
}

func TestGenericVectorHelpersEmitValidModule(t *testing.T) {
	r, m := newTestRegistry(t)
	r.GetGeneric(NameHeapEqual, ir.U128())
	r.GetGeneric(NameVecHeapEq, ir.U64())
	r.GetGeneric(NameVecHeapEq, ir.U128())
	r.GetGeneric(NameVecBorrow, ir.U64())
	r.GetGeneric(NameVecPopBack, ir.U64())
	r.GetGeneric(NameVecBorrow, ir.Struct(ir.DatatypeHandle{Module: "0x1::coin", Index: 0}))
	require.NoError(t, m.Validate())
}
