// Package hostabi declares the Stylus vm_hooks host interface: the
// fixed table of imported functions the translated module may call.
// Every import the emitted module uses must come from this table, a
// fixed, versioned table of host functions a guest module is linked
// against rather than improvising signatures ad hoc at each call site.
package hostabi

import "github.com/stylusmove/movewasm/internal/wasmmod"

// Names of every vm_hooks import this package knows how to declare.
const (
	NameReadArgs            = "read_args"
	NameWriteResult         = "write_result"
	NameStorageLoadBytes32  = "storage_load_bytes32"
	NameStorageCacheBytes32 = "storage_cache_bytes32"
	NameStorageFlushCache   = "storage_flush_cache"
	NameEmitLog             = "emit_log"
	NameTxOrigin            = "tx_origin"
	NameMsgSender           = "msg_sender"
	NameMsgValue            = "msg_value"
	NameBlockNumber         = "block_number"
	NameBlockTimestamp      = "block_timestamp"
	NameBlockGasLimit       = "block_gas_limit"
	NameChainID             = "chainid"
	NameBlockBaseFee        = "block_basefee"
	NameTxGasPrice          = "tx_gas_price"
	NameNativeKeccak256     = "native_keccak256"
	NamePayForMemoryGrow    = "pay_for_memory_grow"

	moduleName = "vm_hooks"
)

var i32 = wasmmod.ValueTypeI32
var i64 = wasmmod.ValueTypeI64

// signatures is the fixed (name -> type) table backing every vm_hooks
// import.
var signatures = map[string]wasmmod.FunctionType{
	NameReadArgs:            {Params: []wasmmod.ValueType{i32}},
	NameWriteResult:         {Params: []wasmmod.ValueType{i32, i32}},
	NameStorageLoadBytes32:  {Params: []wasmmod.ValueType{i32, i32}},
	NameStorageCacheBytes32: {Params: []wasmmod.ValueType{i32, i32}},
	NameStorageFlushCache:   {Params: []wasmmod.ValueType{i32}},
	NameEmitLog:             {Params: []wasmmod.ValueType{i32, i32, i32}},
	NameTxOrigin:            {Params: []wasmmod.ValueType{i32}},
	NameMsgSender:           {Params: []wasmmod.ValueType{i32}},
	NameMsgValue:            {Params: []wasmmod.ValueType{i32}},
	NameBlockNumber:         {Results: []wasmmod.ValueType{i64}},
	NameBlockTimestamp:      {Results: []wasmmod.ValueType{i64}},
	NameBlockGasLimit:       {Results: []wasmmod.ValueType{i64}},
	NameChainID:             {Results: []wasmmod.ValueType{i64}},
	NameBlockBaseFee:        {Params: []wasmmod.ValueType{i32}},
	NameTxGasPrice:          {Params: []wasmmod.ValueType{i32}},
	NameNativeKeccak256:     {Params: []wasmmod.ValueType{i32, i32, i32}},
	NamePayForMemoryGrow:    {Params: []wasmmod.ValueType{i32}},
}

// Imports resolves vm_hooks import function indices on demand, memoizing
// each against mod so that two call sites naming the same host function
// share one import entry (WebAssembly only allows one import declaration
// per (module, name) pair).
type Imports struct {
	mod *wasmmod.Module
	idx map[string]uint32
}

// New returns an Imports bound to mod. No imports are declared until Get
// is called, so a translated module that never references a given host
// function (e.g. emit_log, if the Move source never emits an event) never
// carries that import.
func New(mod *wasmmod.Module) *Imports {
	return &Imports{mod: mod, idx: map[string]uint32{}}
}

// Get returns the function index of the named vm_hooks import,
// registering it on first reference. name must be one of this package's
// Name* constants.
func (im *Imports) Get(name string) uint32 {
	if idx, ok := im.idx[name]; ok {
		return idx
	}
	sig, ok := signatures[name]
	if !ok {
		panic("hostabi: unknown vm_hooks import " + name)
	}
	if existing, ok := im.mod.FindImport(moduleName, name); ok {
		im.idx[name] = existing
		return existing
	}
	idx := im.mod.AddImport(moduleName, name, sig)
	im.idx[name] = idx
	return idx
}

// Declared reports whether name has already been registered into mod,
// without registering it — used by the entrypoint assembler's validation
// pass to confirm pay_for_memory_grow is always present regardless of
// whether the translated code happens to call it directly.
func (im *Imports) Declared(name string) bool {
	_, ok := im.idx[name]
	return ok
}
