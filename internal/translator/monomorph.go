package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/modctx"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// Translator lowers every reachable Move function of one module into
// WebAssembly functions in mod, monomorphizing each distinct generic
// instantiation exactly once, the same way internal/modctx memoizes
// generic struct field resolution and
// internal/runtime.Registry memoizes generic vector-primitive
// instantiations — one cache, keyed by (definition, type args), shared by
// every call site.
type Translator struct {
	ctx *modctx.Context
	mod *wasmmod.Module
	rt  *runtime.Registry

	instances map[string]uint32 // monomorphKey -> wasm function index
}

// New returns a Translator that lowers functions resolved against ctx
// into mod, calling into rt for arithmetic/vector/storage helpers.
func New(ctx *modctx.Context, mod *wasmmod.Module, rt *runtime.Registry) *Translator {
	return &Translator{ctx: ctx, mod: mod, rt: rt, instances: map[string]uint32{}}
}

func monomorphKey(funcIdx movebin.Handle, typeArgs []ir.Type) string {
	key := fmt.Sprintf("#%d", funcIdx)
	for _, a := range typeArgs {
		key += "," + ir.MangleName(a)
	}
	return key
}

// Translate returns the WebAssembly function index implementing Move
// function funcIdx instantiated at typeArgs (nil for a non-generic
// function), translating its body on first reference and returning the
// cached index on every subsequent call, including recursive self-calls
// discovered while translating the body itself (the function's own index
// is reserved and cached before its body is walked — a "placeholder now,
// patch later" idiom needed for functions that call themselves).
func (tr *Translator) Translate(funcIdx movebin.Handle, typeArgs []ir.Type) (uint32, error) {
	key := monomorphKey(funcIdx, typeArgs)
	if idx, ok := tr.instances[key]; ok {
		return idx, nil
	}
	def, err := tr.ctx.FunctionByIndex(funcIdx)
	if err != nil {
		return 0, err
	}
	if def.IsNative {
		return 0, fmt.Errorf("translator: %s: native function bodies must be supplied by a bundled implementation, not bytecode translation: %w", def.Name, ErrUnsupportedOpcode)
	}
	if def.TypeParameterCount > 0 && len(typeArgs) != def.TypeParameterCount {
		return 0, fmt.Errorf("translator: %s: expected %d type argument(s), got %d: %w", def.Name, def.TypeParameterCount, len(typeArgs), ErrMissingTypeArgs)
	}

	paramTypes := substituteAll(tr.ctx.LowerSignature(def.Parameters), typeArgs)
	returnTypes := substituteAll(tr.ctx.LowerSignature(def.Returns), typeArgs)
	declaredLocalTypes := substituteAll(tr.ctx.LowerSignature(def.Locals), typeArgs)

	allLocalTypes := make([]ir.Type, 0, len(paramTypes)+len(declaredLocalTypes))
	allLocalTypes = append(allLocalTypes, paramTypes...)
	allLocalTypes = append(allLocalTypes, declaredLocalTypes...)

	sig := wasmmod.FunctionType{Params: wasmTypes(paramTypes), Results: wasmTypes(returnTypes)}
	wasmIdx := tr.mod.AddFunction(wasmmod.Function{
		TypeIndex: tr.mod.AddType(sig),
		Body:      []byte{wasmmod.OpEnd},
		Name:      def.Name,
	})
	tr.instances[key] = wasmIdx

	wasmLocalType := make([]wasmmod.ValueType, len(allLocalTypes))
	for i, t := range allLocalTypes {
		wasmLocalType[i] = wasmValueType(t)
	}
	// Declared (non-param) Move locals are reused directly as their own
	// indirection-cell pointer, the same cell convention extended to every
	// local: the wasm local always holds an i32 address, regardless of
	// what the Move local's own type would otherwise occupy.
	for i := len(paramTypes); i < len(wasmLocalType); i++ {
		wasmLocalType[i] = wasmmod.ValueTypeI32
	}
	ft := &funcTranslator{
		tr:             tr,
		def:            def,
		typeArgs:       typeArgs,
		numParams:      len(paramTypes),
		moveLocalTypes: allLocalTypes,
		wasmLocalType:  wasmLocalType,
		ts:             newTypeStack(def.Name),
		body:           wasmmod.NewBodyBuilder(),
	}
	if err := ft.translateBody(returnTypes); err != nil {
		return 0, err
	}

	extra := append(append([]wasmmod.ValueType{}, wasmLocalType[len(paramTypes):]...), ft.scratchTypes...)
	tr.mod.Functions[wasmIdx-uint32(len(tr.mod.Imports))] = wasmmod.Function{
		TypeIndex: tr.mod.AddType(sig),
		Locals:    localGroups(extra),
		Body:      ft.body.End().Bytes(),
		Name:      def.Name,
	}
	return wasmIdx, nil
}

func substituteAll(types []ir.Type, typeArgs []ir.Type) []ir.Type {
	if len(typeArgs) == 0 {
		return types
	}
	out := make([]ir.Type, len(types))
	for i, t := range types {
		out[i] = ir.Substitute(t, typeArgs)
	}
	return out
}

func wasmTypes(types []ir.Type) []wasmmod.ValueType {
	out := make([]wasmmod.ValueType, len(types))
	for i, t := range types {
		out[i] = wasmValueType(t)
	}
	return out
}

// wasmValueType is the WebAssembly register type a value of t occupies:
// i64 for U64, i32 for everything else (scalars narrower than 64 bits and
// every heap-resident pointer), mirroring ir.Type.StackSize's byte widths.
func wasmValueType(t ir.Type) wasmmod.ValueType {
	if t.StackSize() == 8 {
		return wasmmod.ValueTypeI64
	}
	return wasmmod.ValueTypeI32
}

// localGroups run-length encodes a flat list of per-local value types into
// the LocalGroup runs the binary format's code section requires.
func localGroups(types []wasmmod.ValueType) []wasmmod.LocalGroup {
	var groups []wasmmod.LocalGroup
	for _, t := range types {
		if n := len(groups); n > 0 && groups[n-1].Type == t {
			groups[n-1].Count++
			continue
		}
		groups = append(groups, wasmmod.LocalGroup{Count: 1, Type: t})
	}
	return groups
}

// funcTranslator holds the per-function state threaded through the
// control-flow reconstruction and opcode dispatch stages while one Move
// function body is being lowered.
type funcTranslator struct {
	tr       *Translator
	def      movebin.FunctionDefinition
	typeArgs []ir.Type // this instantiation's substitution for the function's own type parameters
	numParams int       // len(paramTypes); moveLocalTypes[:numParams] arrive as wasm function params

	moveLocalTypes []ir.Type // concrete (post-substitution) type of every Move local slot, params first
	wasmLocalType  []wasmmod.ValueType
	scratchTypes   []wasmmod.ValueType // extra wasm locals allocated during translation, indexed after moveLocalTypes

	// localCell holds, per Move local index, the wasm local that carries
	// that local's indirection-cell address (a scratch local for a
	// parameter, the local's own wasm slot otherwise) — every Move local
	// owns a heap cell, and MoveLoc/CopyLoc/StLoc load or store through
	// it, while BorrowLoc/MutBorrowLoc push it directly as the resulting
	// reference.
	localCell []uint32
	returns   []ir.Type // this function's declared (post-substitution) return types, for the Ret opcode's exit check

	ts   *typeStack
	body *wasmmod.BodyBuilder
}

// sub substitutes this instantiation's type arguments into t, a no-op for
// a non-generic function.
func (ft *funcTranslator) sub(t ir.Type) ir.Type {
	if len(ft.typeArgs) == 0 {
		return t
	}
	return ir.Substitute(t, ft.typeArgs)
}

// alloc reserves a fresh scratch wasm local of the given type, returning
// its local index in the function's combined (Move locals + scratch)
// address space.
func (ft *funcTranslator) alloc(vt wasmmod.ValueType) uint32 {
	idx := uint32(len(ft.moveLocalTypes) + len(ft.scratchTypes))
	ft.scratchTypes = append(ft.scratchTypes, vt)
	return idx
}

func (ft *funcTranslator) allocFn() uint32 { return ft.tr.rt.AllocFn() }
