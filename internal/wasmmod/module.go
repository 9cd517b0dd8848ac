package wasmmod

import "fmt"

// Module is an in-progress WebAssembly module under construction. Every
// stage of the translator appends to the same *Module value: the
// runtime library generator adds functions on demand, the ABI bridge and
// bytecode translator add the bulk of the code section, and the
// entrypoint assembler adds the memory, imports, exports, and data
// segments last.
type Module struct {
	Types     []FunctionType
	Imports   []Import
	Functions []Function
	Memory    *MemoryLimits
	Globals   []Global
	Exports   []Export
	Data      []Data
}

// New returns an empty module ready for incremental construction.
func New() *Module {
	return &Module{}
}

// AddType interns ft into the type section, returning its index. Repeated
// calls with an equal signature return the same index, matching the
// dedup behavior that keeps generated modules compact.
func (m *Module) AddType(ft FunctionType) uint32 {
	for i, existing := range m.Types {
		if existing.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// AddImport registers a function import and returns its function index in
// the combined import+local index space (imports are always numbered
// before local functions, per the binary format).
func (m *Module) AddImport(moduleName, name string, ft FunctionType) uint32 {
	typeIdx := m.AddType(ft)
	m.Imports = append(m.Imports, Import{Module: moduleName, Name: name, TypeIndex: typeIdx})
	return uint32(len(m.Imports) - 1)
}

// FindImport returns the function index of a previously registered import
// by module/name, or ok=false if none was registered yet.
func (m *Module) FindImport(moduleName, name string) (idx uint32, ok bool) {
	for i, imp := range m.Imports {
		if imp.Module == moduleName && imp.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// AddFunction appends a local function and returns its function index in
// the combined import+local index space.
func (m *Module) AddFunction(fn Function) uint32 {
	m.Functions = append(m.Functions, fn)
	return uint32(len(m.Imports) + len(m.Functions) - 1)
}

// FunctionCount returns the number of functions (imported + local) so far.
func (m *Module) FunctionCount() uint32 {
	return uint32(len(m.Imports) + len(m.Functions))
}

// SetMemory installs the module's single linear memory definition,
// overwriting any previous call (the entrypoint assembler calls this
// exactly once: one page, no maximum, not shared).
func (m *Module) SetMemory(limits MemoryLimits) {
	m.Memory = &limits
}

// AddGlobal appends a global entry and returns its global index.
func (m *Module) AddGlobal(g Global) uint32 {
	m.Globals = append(m.Globals, g)
	return uint32(len(m.Globals) - 1)
}

// AddExport appends an export entry.
func (m *Module) AddExport(e Export) {
	m.Exports = append(m.Exports, e)
}

// AddData appends an active data segment.
func (m *Module) AddData(d Data) {
	m.Data = append(m.Data, d)
}

// Validate performs the structural checks the base WebAssembly validator
// would: every referenced type/function/memory index is in range, the
// function and code vectors have matching lengths, and exactly one memory
// is declared if any export or import references it. Full type-checking
// of instruction streams happens earlier, while they are still being
// emitted, by internal/translator's type stack.
func (m *Module) Validate() error {
	for i, fn := range m.Functions {
		if int(fn.TypeIndex) >= len(m.Types) {
			return fmt.Errorf("wasmmod: function %d references out-of-range type %d", i, fn.TypeIndex)
		}
		if len(fn.Body) == 0 || fn.Body[len(fn.Body)-1] != 0x0b {
			return fmt.Errorf("wasmmod: function %d body is not terminated with end (0x0b)", i)
		}
	}
	for i, imp := range m.Imports {
		if int(imp.TypeIndex) >= len(m.Types) {
			return fmt.Errorf("wasmmod: import %d references out-of-range type %d", i, imp.TypeIndex)
		}
	}
	funcCount := m.FunctionCount()
	for i, e := range m.Exports {
		switch e.Kind {
		case ExportKindFunc:
			if e.Index >= funcCount {
				return fmt.Errorf("wasmmod: export %d (%s) references out-of-range function %d", i, e.Name, e.Index)
			}
		case ExportKindMemory:
			if m.Memory == nil {
				return fmt.Errorf("wasmmod: export %d (%s) references memory but none is declared", i, e.Name)
			}
			if e.Index != 0 {
				return fmt.Errorf("wasmmod: export %d (%s) references non-zero memory index %d", i, e.Name, e.Index)
			}
		}
	}
	if len(m.Data) > 0 && m.Memory == nil {
		return fmt.Errorf("wasmmod: data segments present but no memory declared")
	}
	return nil
}
