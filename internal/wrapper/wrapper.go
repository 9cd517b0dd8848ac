// Package wrapper builds the public-function wrapper: the piece
// of each entrypoint-reachable Move function that computes its selector,
// decodes calldata, calls the translated function body, and packs the
// result back into an ABI-encoded return buffer. This sits directly
// above internal/abi the way a generated gRPC server stub sits above a
// hand-written service implementation: the wrapper only ever knows about
// types and locals, never about Move bytecode.
package wrapper

import (
	"github.com/stylusmove/movewasm/internal/abi"
	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/selector"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// TxContextHandle is the well-known marker struct a Move function
// declares to request host-injected transaction context: a zero-field
// type the translator recognizes by handle rather than by structural
// shape, since an empty struct has no fields to distinguish it from any
// other marker type.
var TxContextHandle = ir.DatatypeHandle{Module: "0x1::context", Index: 0}

// ModuleContext is the narrow view of the resolved module this package
// needs: struct layout for the ABI bridge, and struct-to-tuple naming for
// selector computation. internal/modctx.Context implements both.
type ModuleContext interface {
	abi.LayoutContext
	selector.StructNameResolver
}

// Function is one public/entry Move function ready for wrapping.
// InnerFuncIdx is the WebAssembly function index of its already-translated
// body (internal/translator runs first); the body's own calling
// convention is exactly Params/Returns in declaration order, one WASM
// local or value per Move type.
type Function struct {
	Name         string
	Params       []ir.Type
	Returns      []ir.Type
	InnerFuncIdx uint32
}

// Wrapped is the result of building one function's wrapper.
type Wrapped struct {
	Selector    [4]byte
	WasmFuncIdx uint32
}

// Builder emits wrapper functions into one output module.
type Builder struct {
	mod   *wasmmod.Module
	rt    *runtime.Registry
	hi    *hostabi.Imports
	codec *abi.Codec
	ctx   ModuleContext
}

// NewBuilder returns a Builder that emits into mod, calling into rt for
// allocation, hi for host imports, codec for ABI pack/unpack, and ctx for
// struct layout/naming.
func NewBuilder(mod *wasmmod.Module, rt *runtime.Registry, hi *hostabi.Imports, codec *abi.Codec, ctx ModuleContext) *Builder {
	return &Builder{mod: mod, rt: rt, hi: hi, codec: codec, ctx: ctx}
}

// Build validates fn's signature and, if valid, emits its wrapper
// function of type (calldataBase i32) -> (status i32), where
// calldataBase already points past the 4-byte selector the entrypoint
// assembler's router consumed.
func (b *Builder) Build(fn Function) (Wrapped, error) {
	if err := ValidateSignature(fn.Name, fn.Params, b.ctx); err != nil {
		return Wrapped{}, err
	}

	var calldataTypes []ir.Type
	calldataParamIdx := map[int]int{} // Params index -> position in calldataTypes
	signerIdx, txContextIdx := -1, -1
	for i, p := range fn.Params {
		switch {
		case p.Kind() == ir.KindSigner || isRefToSigner(p):
			signerIdx = i
		case isTxContext(p):
			txContextIdx = i
		default:
			calldataParamIdx[i] = len(calldataTypes)
			calldataTypes = append(calldataTypes, p)
		}
	}

	paramTypeNames := make([]string, len(calldataTypes))
	for i, t := range calldataTypes {
		paramTypeNames[i] = selector.SolidityTypeName(t, b.ctx)
	}
	sel := selector.Compute(fn.Name, paramTypeNames)

	body := wasmmod.NewBodyBuilder()
	next := uint32(1) // local 0 is the calldataBase parameter
	var localTypes []wasmmod.ValueType
	alloc := func(vt wasmmod.ValueType) uint32 {
		idx := next
		next++
		localTypes = append(localTypes, vt)
		return idx
	}

	destLocals := make([]uint32, len(calldataTypes))
	for i, t := range calldataTypes {
		destLocals[i] = alloc(wasmValueType(t))
	}
	b.codec.UnpackParams(body, 0, calldataTypes, destLocals)

	var signerLocal uint32
	if signerIdx >= 0 {
		signerLocal = alloc(wasmmod.ValueTypeI32)
		body.I32Const(32).Call(b.rt.AllocFn()).LocalSet(signerLocal)
		body.LocalGet(signerLocal).Call(b.hi.Get(hostabi.NameMsgSender))
	}

	var txContextLocal uint32
	if txContextIdx >= 0 {
		txContextLocal = alloc(wasmmod.ValueTypeI32)
		b.emitBuildTxContext(body, txContextLocal, alloc)
	}

	callArgLocal := make([]uint32, len(fn.Params))
	for i := range fn.Params {
		switch {
		case i == signerIdx:
			callArgLocal[i] = signerLocal
		case i == txContextIdx:
			callArgLocal[i] = txContextLocal
		default:
			callArgLocal[i] = destLocals[calldataParamIdx[i]]
		}
	}
	for _, loc := range callArgLocal {
		body.LocalGet(loc)
	}
	body.Call(fn.InnerFuncIdx)

	returnLocals := make([]uint32, len(fn.Returns))
	for i := len(fn.Returns) - 1; i >= 0; i-- {
		returnLocals[i] = alloc(wasmValueType(fn.Returns[i]))
		body.LocalSet(returnLocals[i])
	}

	headPtrLocal := alloc(wasmmod.ValueTypeI32)
	tailPtrLocal := alloc(wasmmod.ValueTypeI32)
	lenLocal := alloc(wasmmod.ValueTypeI32)
	b.codec.PackReturns(body, headPtrLocal, tailPtrLocal, lenLocal, fn.Returns, returnLocals)

	body.LocalGet(headPtrLocal).LocalGet(lenLocal).Call(b.hi.Get(hostabi.NameWriteResult))
	body.I32Const(0).Call(b.hi.Get(hostabi.NameStorageFlushCache))
	body.I32Const(0)

	idx := b.mod.AddFunction(wasmmod.Function{
		TypeIndex: b.mod.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}),
		Locals: localGroups(localTypes),
		Body:   body.End().Bytes(),
		Name:   fn.Name + "_wrapper",
	})
	return Wrapped{Selector: sel, WasmFuncIdx: idx}, nil
}

// emitBuildTxContext allocates a 3-field heap struct (sender address,
// block number, block timestamp) using the same pointer-per-field
// convention and populates it from host calls, the same indirection-cell
// pattern internal/abi's buildUnpackStruct uses for scalar fields.
func (b *Builder) emitBuildTxContext(body *wasmmod.BodyBuilder, outLocal uint32, alloc func(wasmmod.ValueType) uint32) {
	senderPtr := alloc(wasmmod.ValueTypeI32)
	body.I32Const(32).Call(b.rt.AllocFn()).LocalSet(senderPtr)
	body.LocalGet(senderPtr).Call(b.hi.Get(hostabi.NameMsgSender))

	blockNumPtr := alloc(wasmmod.ValueTypeI32)
	body.I32Const(8).Call(b.rt.AllocFn()).LocalSet(blockNumPtr)
	body.LocalGet(blockNumPtr)
	body.Call(b.hi.Get(hostabi.NameBlockNumber))
	body.I64Store(0)

	blockTsPtr := alloc(wasmmod.ValueTypeI32)
	body.I32Const(8).Call(b.rt.AllocFn()).LocalSet(blockTsPtr)
	body.LocalGet(blockTsPtr)
	body.Call(b.hi.Get(hostabi.NameBlockTimestamp))
	body.I64Store(0)

	body.I32Const(12).Call(b.rt.AllocFn()).LocalSet(outLocal)
	body.LocalGet(outLocal).LocalGet(senderPtr).I32Store(0)
	body.LocalGet(outLocal).LocalGet(blockNumPtr).I32Store(4)
	body.LocalGet(outLocal).LocalGet(blockTsPtr).I32Store(8)
}

func isTxContext(t ir.Type) bool {
	switch t.Kind() {
	case ir.KindStruct:
		return t.Handle() == TxContextHandle
	case ir.KindRef, ir.KindMutRef:
		return isTxContext(t.Inner())
	default:
		return false
	}
}

// wasmValueType is the WebAssembly register type a value of t occupies:
// i64 for U64, i32 for everything else (scalars ≤32 bits and every
// heap-resident pointer), mirroring ir.Type.StackSize's byte widths.
func wasmValueType(t ir.Type) wasmmod.ValueType {
	if t.StackSize() == 8 {
		return wasmmod.ValueTypeI64
	}
	return wasmmod.ValueTypeI32
}

// localGroups run-length encodes a flat list of per-local value types
// into the LocalGroup runs the binary format's code section requires.
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
