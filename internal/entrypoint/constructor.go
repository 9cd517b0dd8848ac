package entrypoint

import (
	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/translator"
	"github.com/stylusmove/movewasm/internal/wasmmod"
	"github.com/stylusmove/movewasm/internal/wrapper"
)

// buildConstructor synthesizes the one-time constructor wrapper around a
// declared `init` function. The wrapper reads the reserved init-key
// storage slot; if it is still all-zero, it calls init (injecting a
// synthetic one-time-witness placeholder and/or the host-provided
// transaction context per the function's declared parameters), writes
// a nonzero marker back, and flushes the cache. A second invocation
// observes the marker already set and no-ops, giving constructor
// idempotence.
func buildConstructor(out *wasmmod.Module, rt *runtime.Registry, hi *hostabi.Imports, tr *translator.Translator, initDef movebin.FunctionDefinition, initIdx movebin.Handle) (uint32, error) {
	wasmIdx, err := tr.Translate(initIdx, nil)
	if err != nil {
		return 0, err
	}

	b := wasmmod.NewBodyBuilder()
	next := uint32(1) // local 0 is the unused calldataBase parameter (constructor takes no ABI args)
	var localTypes []wasmmod.ValueType
	alloc := func(vt wasmmod.ValueType) uint32 {
		idx := next
		next++
		localTypes = append(localTypes, vt)
		return idx
	}

	keyPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(initKeySlotOffset).LocalSet(keyPtr)

	valPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(32).Call(rt.AllocFn()).LocalSet(valPtr)
	b.LocalGet(keyPtr).LocalGet(valPtr).Call(hi.Get(hostabi.NameStorageLoadBytes32))

	b.LocalGet(valPtr).Call(rt.Get(runtime.NameAllBytesZero256))
	b.If(wasmmod.VoidBlock)

	rawParams := initDef.Parameters
	paramCount := len(rawParams)
	for i := 0; i < paramCount; i++ {
		tok := rawParams[i]
		switch {
		case paramCount == 2 && i == 0:
			// synthetic one-time witness: a zero-valued placeholder, not
			// type-checked against the witness struct's real shape.
			b.I32Const(0)
		case isTxContextToken(tok):
			tcLocal := alloc(wasmmod.ValueTypeI32)
			emitTxContext(b, hi, rt, tcLocal, alloc)
			b.LocalGet(tcLocal)
		default:
			b.I32Const(0)
		}
	}
	b.Call(wasmIdx)
	for range initDef.Returns {
		b.Drop()
	}

	markerPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(32).Call(rt.AllocFn()).LocalSet(markerPtr)
	b.LocalGet(markerPtr).I32Const(1).I32Store8(31)
	b.LocalGet(keyPtr).LocalGet(markerPtr).Call(hi.Get(hostabi.NameStorageCacheBytes32))
	b.I32Const(0).Call(hi.Get(hostabi.NameStorageFlushCache))
	b.End()

	b.I32Const(0)

	idx := out.AddFunction(wasmmod.Function{
		TypeIndex: out.AddType(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}),
		Locals: localGroups(localTypes),
		Body:   b.End().Bytes(),
		Name:   "constructor",
	})
	return idx, nil
}

// isTxContextToken reports whether tok (a raw Move signature token, not
// yet lowered) names the well-known TxContext marker struct. init's
// parameters are checked against the raw token rather than a lowered
// ir.Type so this package never needs a *modctx.Context just to classify
// them.
func isTxContextToken(tok movebin.SignatureToken) bool {
	switch tok.Tag {
	case movebin.TokStruct:
		return datatypeMatchesTxContext(tok)
	case movebin.TokReference, movebin.TokMutableReference:
		return isTxContextToken(*tok.Inner)
	default:
		return false
	}
}

// datatypeMatchesTxContext compares tok's raw datatype handle against the
// index half of wrapper.TxContextHandle; module qualification is handled
// by ir.DatatypeHandle normally, but here we only have the unresolved
// token, so we compare by index within module 0x1::context, matching
// movebin's convention that handle 0 of that well-known module is
// TxContext.
func datatypeMatchesTxContext(tok movebin.SignatureToken) bool {
	return ir.DatatypeHandle{Module: wrapper.TxContextHandle.Module, Index: uint16(tok.Datatype)} == wrapper.TxContextHandle
}

// emitTxContext allocates and populates the same 3-field (sender,
// blockNumber, blockTimestamp) heap struct internal/wrapper builds for a
// TxContext parameter, so a TxContext-accepting init function observes
// the same shape whether it runs through the constructor guard or (if
// somehow declared public) the ordinary wrapper path.
func emitTxContext(b *wasmmod.BodyBuilder, hi *hostabi.Imports, rt *runtime.Registry, outLocal uint32, alloc func(wasmmod.ValueType) uint32) {
	senderPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(32).Call(rt.AllocFn()).LocalSet(senderPtr)
	b.LocalGet(senderPtr).Call(hi.Get(hostabi.NameMsgSender))

	blockNumPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(8).Call(rt.AllocFn()).LocalSet(blockNumPtr)
	b.LocalGet(blockNumPtr)
	b.Call(hi.Get(hostabi.NameBlockNumber))
	b.I64Store(0)

	blockTsPtr := alloc(wasmmod.ValueTypeI32)
	b.I32Const(8).Call(rt.AllocFn()).LocalSet(blockTsPtr)
	b.LocalGet(blockTsPtr)
	b.Call(hi.Get(hostabi.NameBlockTimestamp))
	b.I64Store(0)

	b.I32Const(12).Call(rt.AllocFn()).LocalSet(outLocal)
	b.LocalGet(outLocal).LocalGet(senderPtr).I32Store(0)
	b.LocalGet(outLocal).LocalGet(blockNumPtr).I32Store(4)
	b.LocalGet(outLocal).LocalGet(blockTsPtr).I32Store(8)
}

// localGroups run-length encodes a flat list of per-local value types
// into the LocalGroup runs the binary format's code section requires,
// mirroring internal/wrapper's and internal/translator's identical
// helper (duplicated rather than exported: each package's locals are
// built from a different starting index space).
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
