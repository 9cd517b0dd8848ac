package wasmmod

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/testing/require"
)

func TestEncodeMinimalModule(t *testing.T) {
	m := New()
	ft := m.AddType(FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}})

	body := NewBodyBuilder().LocalGet(0).End()
	fnIdx := m.AddFunction(Function{TypeIndex: ft, Body: body.Bytes()})
	m.SetMemory(MemoryLimits{InitialPages: 1})
	m.AddExport(Export{Name: "user_entrypoint", Kind: ExportKindFunc, Index: fnIdx})
	m.AddExport(Export{Name: "memory", Kind: ExportKindMemory, Index: 0})

	require.NoError(t, m.Validate())
	out := m.Encode()

	require.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, out[:4])
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, out[4:8])
}

func TestValidateRejectsOutOfRangeType(t *testing.T) {
	m := New()
	m.AddFunction(Function{TypeIndex: 5, Body: []byte{OpEnd}})
	require.Error(t, m.Validate())
}

func TestValidateRejectsUnterminatedBody(t *testing.T) {
	m := New()
	ft := m.AddType(FunctionType{})
	m.AddFunction(Function{TypeIndex: ft, Body: []byte{OpNop}})
	require.Error(t, m.Validate())
}

func TestAddTypeDedups(t *testing.T) {
	m := New()
	a := m.AddType(FunctionType{Params: []ValueType{ValueTypeI32}})
	b := m.AddType(FunctionType{Params: []ValueType{ValueTypeI32}})
	require.Equal(t, a, b)
	require.Equal(t, 1, len(m.Types))
}

func TestImportsPrecedeLocalFunctionsInIndexSpace(t *testing.T) {
	m := New()
	ft := m.AddType(FunctionType{})
	impIdx := m.AddImport("vm_hooks", "pay_for_memory_grow", FunctionType{})
	localIdx := m.AddFunction(Function{TypeIndex: ft, Body: []byte{OpEnd}})
	require.Equal(t, uint32(0), impIdx)
	require.Equal(t, uint32(1), localIdx)
}
