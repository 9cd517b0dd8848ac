// Package runtime synthesizes the in-module support routines the
// bytecode translator and ABI bridge call into: multi-word arithmetic,
// byte-order conversion, vector primitives, and persistent-storage
// encoding. Each routine is emitted at most once per output module,
// cached by name the same way a compiled function body is cached once
// per (module, function index) pair.
package runtime

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// Registry is the runtime library generator. One Registry is created
// per output module and threaded through the translator and ABI
// bridge as the single place that knows whether a given helper has
// already been emitted.
type Registry struct {
	mod     *wasmmod.Module
	allocFn uint32 // the bump allocator function, wired by internal/entrypoint before translation begins
	storageFn struct {
		load, cache, flush, keccak uint32 // vm_hooks import indices, wired by internal/entrypoint
	}
	byName map[string]uint32
}

// NewRegistry returns a Registry that will emit helper functions into mod,
// using allocFn (the entrypoint assembler's bump allocator) whenever
// a helper needs to allocate a result buffer, and the four vm_hooks import
// indices the storage helpers call into.
func NewRegistry(mod *wasmmod.Module, allocFn uint32, storageLoadFn, storageCacheFn, storageFlushFn, keccakFn uint32) *Registry {
	r := &Registry{mod: mod, allocFn: allocFn, byName: map[string]uint32{}}
	r.storageFn.load = storageLoadFn
	r.storageFn.cache = storageCacheFn
	r.storageFn.flush = storageFlushFn
	r.storageFn.keccak = keccakFn
	return r
}

// AllocFn returns the bump allocator function index this Registry was
// constructed with, so other stages (the ABI bridge, the bytecode
// translator) can allocate buffers without threading their own copy of
// the index around.
func (r *Registry) AllocFn() uint32 { return r.allocFn }

// Get returns the function index of the named routine, synthesizing it on
// first reference. name must be one of the fixed canonical names this
// package defines (see the Name* constants); unknown names panic, since
// they indicate a programmer error in a caller, not a translation-time
// condition a Move contract author can trigger.
func (r *Registry) Get(name string) uint32 {
	if idx, ok := r.byName[name]; ok {
		return idx
	}
	builder, ok := fixedBuilders[name]
	if !ok {
		panic(fmt.Sprintf("runtime: no builder registered for %q", name))
	}
	idx := builder(r)
	r.byName[name] = idx
	return idx
}

// GetGeneric returns the function index of a type-parameterized routine
// (e.g. a vector primitive specialized to one element type), mangling
// typeArgs into the stored name exactly as internal/translator's
// monomorphization cache mangles function instantiations, so that two
// call sites naming the same element type always share one emitted
// function.
func (r *Registry) GetGeneric(base string, typeArgs ...ir.Type) uint32 {
	name := base
	for _, t := range typeArgs {
		name += "<" + ir.MangleName(t) + ">"
	}
	if idx, ok := r.byName[name]; ok {
		return idx
	}
	builder, ok := genericBuilders[base]
	if !ok {
		panic(fmt.Sprintf("runtime: no generic builder registered for %q", base))
	}
	idx := builder(r, typeArgs)
	r.byName[name] = idx
	return idx
}

// define registers a fresh helper function with the given signature and
// body, returning its function index. Every builder in this package
// funnels through here so the index bookkeeping lives in one place.
func (r *Registry) define(sig wasmmod.FunctionType, body *wasmmod.BodyBuilder) uint32 {
	return r.defineWithLocals(sig, nil, body)
}

// defineWithLocals is define plus extra scratch locals declared after the
// signature's own parameters, addressed starting at index len(sig.Params).
func (r *Registry) defineWithLocals(sig wasmmod.FunctionType, locals []wasmmod.LocalGroup, body *wasmmod.BodyBuilder) uint32 {
	return r.mod.AddFunction(wasmmod.Function{
		TypeIndex: r.mod.AddType(sig),
		Locals:    locals,
		Body:      body.End().Bytes(),
	})
}

// i32Locals is a convenience LocalGroup slice declaring n scalar i32
// scratch locals, the overwhelmingly common case for pointer-manipulating
// helpers in this package.
func i32Locals(n uint32) []wasmmod.LocalGroup {
	if n == 0 {
		return nil
	}
	return []wasmmod.LocalGroup{{Count: n, Type: wasmmod.ValueTypeI32}}
}

type fixedBuilderFunc func(r *Registry) uint32
type genericBuilderFunc func(r *Registry, typeArgs []ir.Type) uint32

var fixedBuilders map[string]fixedBuilderFunc
var genericBuilders map[string]genericBuilderFunc

func init() {
	fixedBuilders = map[string]fixedBuilderFunc{
		NameByteSwap32:  buildByteSwap32,
		NameByteSwap64:  buildByteSwap64,
		NameByteSwap128: buildByteSwap128,
		NameByteSwap256: buildByteSwap256,

		NameU128Add: buildWideAdd(16),
		NameU128Sub: buildWideSub(16),
		NameU128Mul: buildWideMul(16),
		NameU128Lt:  buildWideLt(16),
		NameU256Add: buildWideAdd(32),
		NameU256Sub: buildWideSub(32),
		NameU256Mul: buildWideMul(32),
		NameU256Lt:  buildWideLt(32),

		NameU128DivMod: buildWideDivMod(16),
		NameU256DivMod: buildWideDivMod(32),

		NameShl128: buildWideShl(16),
		NameShr128: buildWideShr(16),
		NameShl256: buildWideShl(32),
		NameShr256: buildWideShr(32),

		NameI32AddChecked: buildNarrowAddChecked(wasmmod.OpI32Add, wasmmod.OpI32LtU, wasmmod.ValueTypeI32),
		NameI64AddChecked: buildNarrowAddChecked(wasmmod.OpI64Add, wasmmod.OpI64LtU, wasmmod.ValueTypeI64),
		NameI32SubChecked: buildNarrowSubChecked(wasmmod.ValueTypeI32),
		NameI64SubChecked: buildNarrowSubChecked(wasmmod.ValueTypeI64),
		NameI32MulChecked: buildNarrowMulChecked(wasmmod.ValueTypeI32),
		NameI64MulChecked: buildNarrowMulChecked64,

		NameU8RangeCheck:  buildNarrowRangeCheck(8),
		NameU16RangeCheck: buildNarrowRangeCheck(16),

		NameDowncastU64ToU32:  buildDowncastFromWord(8, 4),
		NameDowncastU128ToU32: buildDowncastFromWide(16, 4),
		NameDowncastU128ToU64: buildDowncastFromWide(16, 8),
		NameDowncastU256ToU32:  buildDowncastFromWide(32, 4),
		NameDowncastU256ToU64:  buildDowncastFromWide(32, 8),
		NameDowncastU256ToU128: buildDowncastU256ToU128,

		NameAllBytesZero32:  buildAllBytesZero(4),
		NameAllBytesZero256: buildAllBytesZero(32),

		NameVecLenInc: buildVecLenInc,
		NameVecLenDec: buildVecLenDec,
		NameVecSwap:   buildVecSwapShared,

		NameStorageNextSlot:   buildStorageNextSlot,
		NameStorageObjectSlot: buildStorageObjectSlotShared,
	}
	genericBuilders = map[string]genericBuilderFunc{
		NameHeapEqual:   buildHeapEqualGeneric,
		NameVecHeapEq:   buildVecHeapEqGeneric,
		NameVecBorrow:   buildVecBorrowGeneric,
		NameVecPopBack:  buildVecPopBackGeneric,
	}
}
