package runtime

import (
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// Vector layout, shared by every helper in this file: [len i32][cap
// i32][elements...], each element occupying elementStride(elem) bytes —
// either an inline scalar or a pointer to a separately heap-allocated
// value, following the same pointers-for-heap-resident-fields
// convention struct/enum layout uses elsewhere.
const vecHeaderSize = 8

// buildVecLenInc bumps a vector's length field by one in place and
// returns the vector pointer unchanged, used after VecPushBack appends an
// element into already-reserved capacity. Capacity growth/reallocation is
// the translator's concern (it knows the static element type and emits
// the grow check inline); this helper only ever runs when room is known
// to exist.
func buildVecLenInc(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(0)
	b.LocalGet(0).I32Load(0).I32Const(1).Plain(wasmmod.OpI32Add)
	b.I32Store(0)
	b.LocalGet(0)
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildVecLenDec mirrors buildVecLenInc for VecPopBack, trapping if the
// vector is already empty (Move's vector::pop_back aborts on an empty
// vector rather than returning early).
func buildVecLenDec(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(0).I32Load(0).I32Const(0).Plain(wasmmod.OpI32Eq)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(0)
	b.LocalGet(0).I32Load(0).I32Const(1).Plain(wasmmod.OpI32Sub)
	b.I32Store(0)
	b.LocalGet(0)
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildVecSwapShared swaps the elements at two indices of a vector whose
// elements are a fixed 4-byte stride (scalars narrower than 8 bytes, or
// pointers) — the overwhelmingly common case, and the one Move's
// vector::swap bytecode lowering reaches for directly; an 8-byte-stride
// variant would follow the same shape with I64Load/I64Store.
func buildVecSwapShared(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	// params: 0 = vec ptr, 1 = index a, 2 = index b; local 3 = scratch
	addr := func(idx uint32) {
		b.LocalGet(0).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
		b.LocalGet(idx).I32Const(4).Plain(wasmmod.OpI32Mul)
		b.Plain(wasmmod.OpI32Add)
	}
	addr(1)
	b.I32Load(0)
	b.LocalSet(3)
	addr(1)
	addr(2)
	b.I32Load(0)
	b.I32Store(0)
	addr(2)
	b.LocalGet(3)
	b.I32Store(0)
	b.LocalGet(0)
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildVecBorrowGeneric bounds-checks an index and returns the address of
// the element (for heap-resident elements, the address holding the
// pointer; callers that need the pointee dereference once more), trapping
// out-of-range exactly as Move's vector::borrow aborts.
func buildVecBorrowGeneric(r *Registry, typeArgs []ir.Type) uint32 {
	elem := typeArgs[0]
	stride := elementStride(elem)
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(1).LocalGet(0).I32Load(0).Plain(wasmmod.OpI32GeU)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(0).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
	b.LocalGet(1).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul)
	b.Plain(wasmmod.OpI32Add)
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildVecPopBackGeneric decrements the vector's length (trapping if
// empty, via vec_len_dec) and returns the now-removed last element's raw
// storage: an i32 for a pointer/narrow-scalar element, an i64 for a
// stack-wide scalar.
func buildVecPopBackGeneric(r *Registry, typeArgs []ir.Type) uint32 {
	elem := typeArgs[0]
	wide := !elem.IsHeapResident() && elem.StackSize() == 8
	stride := elementStride(elem)
	resultType := wasmmod.ValueTypeI32
	if wide {
		resultType = wasmmod.ValueTypeI64
	}
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(0).Call(r.Get(NameVecLenDec))
	b.LocalSet(1)
	b.LocalGet(1).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
	b.LocalGet(1).I32Load(0).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul)
	b.Plain(wasmmod.OpI32Add)
	if wide {
		b.I64Load(0)
	} else {
		b.I32Load(0)
	}
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{resultType},
	}, i32Locals(1), b)
}
