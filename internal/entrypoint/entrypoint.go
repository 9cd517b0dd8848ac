// Package entrypoint is the entrypoint assembler: it owns every piece of
// the output module that is not one function's own translated body —
// linear memory, the bump allocator, the vm_hooks imports, the
// reserved-region data segments, the selector router, the constructor
// guard, and the final Stylus-interface validation pass. It is the last
// stage to run, assembling sections only after every function body has
// already been compiled.
package entrypoint

import (
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/stylusmove/movewasm/internal/abi"
	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/modctx"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/selector"
	"github.com/stylusmove/movewasm/internal/translator"
	"github.com/stylusmove/movewasm/internal/wasmmod"
	"github.com/stylusmove/movewasm/internal/wrapper"
)

// Reserved memory layout: three 32-byte sentinels precede the bump
// allocator's free region, so every other stage can
// address them as small constants instead of threading offsets around.
const (
	sharedOwnerSentinelOffset = 0
	frozenOwnerSentinelOffset = 32
	initKeySlotOffset         = 64
	reservedMemoryEnd         = 96
)

// Options configures the entrypoint assembler: a functional-option
// struct in the same shape as the rest of this port's configuration
// surface.
type Options struct {
	constructorGuard bool
	sharedOwnerLabel string
	frozenOwnerLabel string
	initKeyLabel     string
}

// Option configures an Assemble call.
type Option func(*Options)

// WithConstructorGuard enables or disables synthesizing a constructor
// wrapper for a declared `init` function. Enabled by default.
func WithConstructorGuard(enabled bool) Option {
	return func(o *Options) { o.constructorGuard = enabled }
}

// WithOwnerSentinelLabels overrides the preimages the shared/frozen owner
// sentinels are derived from. Both default to fixed labels
// ("movewasm::shared-object-owner" and "movewasm::frozen-object-owner"),
// so every translation that keeps the defaults derives the same keys.
func WithOwnerSentinelLabels(shared, frozen string) Option {
	return func(o *Options) {
		if shared != "" {
			o.sharedOwnerLabel = shared
		}
		if frozen != "" {
			o.frozenOwnerLabel = frozen
		}
	}
}

func defaultOptions() Options {
	return Options{
		constructorGuard: true,
		sharedOwnerLabel: "movewasm::shared-object-owner",
		frozenOwnerLabel: "movewasm::frozen-object-owner",
		initKeyLabel:     "movewasm::init-key",
	}
}

// keccakConst hashes label the same way internal/selector hashes a
// canonical signature string, for the compile-time sentinel constants
// this package burns into data segments. This runs in the
// translator's own Go process, not in the emitted module: only
// Move-program-dependent hashing (slot derivation over runtime values)
// needs the native_keccak256 import internal/runtime/storage.go calls.
func keccakConst(label string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// route is one selector-dispatch table entry the router walks in
// declaration order.
type route struct {
	name        string
	selector    [4]byte
	wasmFuncIdx uint32
}

// Assemble lowers every public/entry function of mod, then wraps the
// result with the full Stylus entrypoint shape: memory, allocator,
// host imports, selector router, optional constructor guard,
// and a final validation pass. The returned *wasmmod.Module is ready for
// Encode.
func Assemble(mod *movebin.Module, opts ...Option) (*wasmmod.Module, error) {
	options := defaultOptions()
	for _, o := range opts {
		o(&options)
	}

	out := wasmmod.New()
	out.SetMemory(wasmmod.MemoryLimits{InitialPages: 1})

	hi := hostabi.New(out)
	// pay_for_memory_grow must be present regardless of whether the
	// translated code happens to grow memory, since the allocator itself
	// is the only caller and every contract allocates at least its
	// parameter cells.
	payForGrowFn := hi.Get(hostabi.NamePayForMemoryGrow)

	writeSentinelData(out, options)

	nextFreeGlobal := out.AddGlobal(wasmmod.Global{
		Type:    wasmmod.ValueTypeI32,
		Mutable: true,
		Init:    reservedMemoryEnd,
	})
	allocFn := buildAllocator(out, payForGrowFn, nextFreeGlobal)

	rt := runtime.NewRegistry(out, allocFn,
		hi.Get(hostabi.NameStorageLoadBytes32),
		hi.Get(hostabi.NameStorageCacheBytes32),
		hi.Get(hostabi.NameStorageFlushCache),
		hi.Get(hostabi.NameNativeKeccak256),
	)

	ctx := modctx.Build(mod)
	codec := abi.NewCodec(out, rt, ctx)
	tr := translator.New(ctx, out, rt)
	wb := wrapper.NewBuilder(out, rt, hi, codec, ctx)

	var initDef *movebin.FunctionDefinition
	var initIdx movebin.Handle
	var routes []route

	for i, fn := range mod.Functions {
		if fn.Name == "init" && fn.Visibility != movebin.VisibilityPublic && !fn.IsEntry {
			def := fn
			initDef = &def
			initIdx = movebin.Handle(i)
			continue
		}
		if fn.Visibility != movebin.VisibilityPublic && !fn.IsEntry {
			continue
		}
		if fn.IsNative {
			continue
		}
		wasmIdx, err := tr.Translate(movebin.Handle(i), nil)
		if err != nil {
			return nil, fmt.Errorf("entrypoint: translating %s: %w", fn.Name, err)
		}
		wrapped, err := wb.Build(wrapper.Function{
			Name:         fn.Name,
			Params:       ctx.LowerSignature(fn.Parameters),
			Returns:      ctx.LowerSignature(fn.Returns),
			InnerFuncIdx: wasmIdx,
		})
		if err != nil {
			return nil, fmt.Errorf("entrypoint: wrapping %s: %w", fn.Name, err)
		}
		routes = append(routes, route{name: fn.Name, selector: wrapped.Selector, wasmFuncIdx: wrapped.WasmFuncIdx})
	}

	if initDef != nil && options.constructorGuard {
		ctorIdx, err := buildConstructor(out, rt, hi, tr, *initDef, initIdx)
		if err != nil {
			return nil, fmt.Errorf("entrypoint: building constructor: %w", err)
		}
		sel := selector.Compute("constructor", nil)
		routes = append(routes, route{name: "constructor", selector: sel, wasmFuncIdx: ctorIdx})
	}

	entryIdx := buildUserEntrypoint(out, allocFn, hi, routes)
	out.AddExport(wasmmod.Export{Name: "user_entrypoint", Kind: wasmmod.ExportKindFunc, Index: entryIdx})
	out.AddExport(wasmmod.Export{Name: "memory", Kind: wasmmod.ExportKindMemory, Index: 0})

	if err := Validate(out, hi); err != nil {
		return nil, err
	}
	return out, nil
}

// writeSentinelData burns the shared/frozen owner sentinels and the
// init-key storage-slot identifier into the reserved low region of
// linear memory as pre-populated data segments.
func writeSentinelData(out *wasmmod.Module, options Options) {
	shared := keccakConst(options.sharedOwnerLabel)
	frozen := keccakConst(options.frozenOwnerLabel)
	initKey := keccakConst(options.initKeyLabel)
	out.AddData(wasmmod.Data{Offset: sharedOwnerSentinelOffset, Bytes: shared[:]})
	out.AddData(wasmmod.Data{Offset: frozenOwnerSentinelOffset, Bytes: frozen[:]})
	out.AddData(wasmmod.Data{Offset: initKeySlotOffset, Bytes: initKey[:]})
}

// buildAllocator emits the bump allocator: a function of type
// (n: i32) -> i32 that returns the current next_free_offset, advances
// the global by n, and grows linear memory in 64-KiB page increments
// whenever the advance would exceed the memory's current byte capacity.
// Growth failure (memory.grow returning -1) traps, matching every other
// unrecoverable runtime condition.
func buildAllocator(mod *wasmmod.Module, payForGrowFn, nextFreeGlobal uint32) uint32 {
	const pageShift = 16 // 65536 = 1<<16 bytes per page

	b := wasmmod.NewBodyBuilder()
	// local 0 = n (param), 1 = cur, 2 = newNext, 3 = availBytes,
	// 4 = deficit, 5 = pages needed
	b.GlobalGet(nextFreeGlobal).LocalSet(1)
	b.LocalGet(1).LocalGet(0).Plain(wasmmod.OpI32Add).LocalSet(2)
	b.LocalGet(2).GlobalSet(nextFreeGlobal)

	b.MemorySize().I32Const(pageShift).Plain(wasmmod.OpI32Shl).LocalSet(3)
	b.LocalGet(2).LocalGet(3).Plain(wasmmod.OpI32GtU)
	b.If(wasmmod.VoidBlock)
	b.LocalGet(2).LocalGet(3).Plain(wasmmod.OpI32Sub).LocalSet(4)
	b.LocalGet(4).I32Const((1 << pageShift) - 1).Plain(wasmmod.OpI32Add)
	b.I32Const(pageShift).Plain(wasmmod.OpI32ShrU).LocalSet(5)
	b.LocalGet(5).Call(payForGrowFn)
	b.LocalGet(5).MemoryGrow()
	b.I32Const(-1).Plain(wasmmod.OpI32Eq)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.End()

	b.LocalGet(1)
	return mod.AddFunction(wasmmod.Function{
		TypeIndex: mod.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}),
		Locals: []wasmmod.LocalGroup{{Count: 5, Type: wasmmod.ValueTypeI32}},
		Body:   b.End().Bytes(),
		Name:   "allocator",
	})
}

// buildUserEntrypoint emits the Stylus-required export: it copies
// calldata into a freshly allocated buffer, reads the 4-byte selector,
// and walks routes in order, calling the first wrapper whose selector
// matches. No match leaves the default status of -1, the one soft
// runtime failure this translator produces rather than trapping.
func buildUserEntrypoint(mod *wasmmod.Module, allocFn uint32, hi *hostabi.Imports, routes []route) uint32 {
	readArgsFn := hi.Get(hostabi.NameReadArgs)

	b := wasmmod.NewBodyBuilder()
	// local 0 = calldataLength (param), 1 = calldataPtr, 2 = status
	b.LocalGet(0).Call(allocFn).LocalSet(1)
	b.LocalGet(1).Call(readArgsFn)
	b.I32Const(-1).LocalSet(2)

	b.LocalGet(0).I32Const(4).Plain(wasmmod.OpI32LtU)
	b.If(wasmmod.VoidBlock)
	b.Else()
	for _, r := range routes {
		emitSelectorMatch(b, r.selector, 1)
		b.If(wasmmod.VoidBlock)
		b.LocalGet(1).I32Const(4).Plain(wasmmod.OpI32Add).Call(r.wasmFuncIdx).LocalSet(2)
		b.End()
	}
	b.End()

	b.LocalGet(2)
	return mod.AddFunction(wasmmod.Function{
		TypeIndex: mod.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}),
		Locals: []wasmmod.LocalGroup{{Count: 2, Type: wasmmod.ValueTypeI32}},
		Body:   b.End().Bytes(),
		Name:   "user_entrypoint",
	})
}

// emitSelectorMatch pushes a boolean: whether the 4 bytes at
// calldataPtrLocal equal sel, compared byte by byte so the comparison
// never depends on the host's own endianness (calldata's selector bytes
// are read in wire order, exactly as they arrive from read_args).
func emitSelectorMatch(b *wasmmod.BodyBuilder, sel [4]byte, calldataPtrLocal uint32) {
	for i := 0; i < 4; i++ {
		b.LocalGet(calldataPtrLocal).I32Load8U(uint32(i))
		b.I32Const(int32(sel[i]))
		b.Plain(wasmmod.OpI32Eq)
		if i > 0 {
			b.Plain(wasmmod.OpI32And)
		}
	}
}
