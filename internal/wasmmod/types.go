// Package wasmmod is an in-memory WebAssembly module builder and binary
// encoder. The module is assembled top-down by the translator's stages
// rather than decoded from an input file, but the section layout, LEB128
// use, and naming follow the standard binary format
// (https://webassembly.github.io/spec/core/binary/modules.html).
package wasmmod

// ValueType is a WebAssembly value type, encoded as its single-byte binary
// opcode.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// FunctionType is a WebAssembly function signature: an ordered list of
// parameter types and an ordered list of result types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether two function types have identical parameter and
// result lists, used to deduplicate entries in the type section.
func (ft FunctionType) Equal(o FunctionType) bool {
	if len(ft.Params) != len(o.Params) || len(ft.Results) != len(o.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import describes one entry of the import section.
type Import struct {
	Module string
	Name   string
	// TypeIndex is the function type this import satisfies. Only function
	// imports are modeled: the host interface is exclusively functions.
	TypeIndex uint32
}

// Export describes one entry of the export section.
type Export struct {
	Name string
	Kind ExportKind
	// Index is either a function index (into the combined import+local
	// function index space) or, for ExportKindMemory, the memory index.
	Index uint32
}

// ExportKind identifies what an export entry refers to.
type ExportKind byte

const (
	ExportKindFunc   ExportKind = 0x00
	ExportKindTable  ExportKind = 0x01
	ExportKindMemory ExportKind = 0x02
	ExportKindGlobal ExportKind = 0x03
)

// Function is one entry of the function+code sections: a type index plus
// a compiled body. Locals beyond the declared parameters are grouped by
// run of identical type, as the binary format requires.
type Function struct {
	TypeIndex uint32
	Locals    []LocalGroup
	Body      []byte // fully encoded instruction stream, including the trailing 0x0b (end)
	// Name, if non-empty, is recorded only for debugging / the name
	// section; it has no effect on execution semantics.
	Name string
}

// LocalGroup is a run of locals sharing one value type, as the code
// section's locals vector requires.
type LocalGroup struct {
	Count uint32
	Type  ValueType
}

// Data is one active data segment, always targeting memory 0 at a
// constant i32 offset — the entrypoint assembler never needs passive
// segments or non-zero memory indices.
type Data struct {
	Offset uint32
	Bytes  []byte
}

// MemoryLimits describes the single linear memory's initial/maximum page
// counts. The translator's output always has InitialPages=1 and no
// maximum, but the type carries both for completeness and to let tests
// exercise the encoder against other shapes.
type MemoryLimits struct {
	InitialPages uint32
	MaxPages     uint32
	HasMax       bool
}

// Global is one entry of the global section: the bump allocator's
// next-free-offset cursor is the only global the entrypoint assembler
// declares, but the type carries a general i32-const initializer so a
// test can declare others.
type Global struct {
	Type    ValueType
	Mutable bool
	Init    int32
}
