package runtime

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// buildAllBytesZero returns whether every byte of a fixed-width buffer
// (4 bytes, or a multiple of 8) is zero. It backs the all_bytes_zero32 and
// all_bytes_zero256 helpers; the downcast helpers test their high lanes
// inline instead.
func buildAllBytesZero(size int) fixedBuilderFunc {
	lanes := size / 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I32Const(1)
		for i := 0; i < lanes; i++ {
			b.LocalGet(0).I64Load(uint32(i * 8))
			b.I64Const(0).Plain(wasmmod.OpI64Eq)
			b.Plain(wasmmod.OpI32And)
		}
		if size%8 == 4 {
			b.LocalGet(0).I32Load(uint32(lanes * 8)).Plain(wasmmod.OpI32Eqz)
			b.Plain(wasmmod.OpI32And)
		}
		return r.define(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, b)
	}
}

// emitBufferEqual compares `size` bytes (size a multiple of 8) at the two
// pointers already bound to params 0 and 1, leaving an i32 boolean.
// Shared by every fixed-width heap_eq instantiation (U128, U256, Address,
// Signer): none of them need field-aware layout, only a flat byte
// comparison.
func emitBufferEqual(b *wasmmod.BodyBuilder, size int) {
	lanes := size / 8
	b.I32Const(1)
	for i := 0; i < lanes; i++ {
		off := uint32(i * 8)
		b.LocalGet(0).I64Load(off)
		b.LocalGet(1).I64Load(off)
		b.Plain(wasmmod.OpI64Eq)
		b.Plain(wasmmod.OpI32And)
	}
}

// buildHeapEqualGeneric builds a structural equality routine for one
// concrete instantiation of heap_eq<T>: two pointers in, an i32 boolean
// out. Vectors delegate entirely to
// vec_heap_eq<inner>; the fixed-width heap types compare their backing
// buffer byte for byte. Struct/enum instantiations are intentionally not
// handled here — the bytecode translator inlines their field-by-field
// comparison directly using internal/modctx's layout information, which
// this package (deliberately type-model-only) does not have access to.
func buildHeapEqualGeneric(r *Registry, typeArgs []ir.Type) uint32 {
	elem := typeArgs[0]
	b := wasmmod.NewBodyBuilder()
	switch elem.Kind() {
	case ir.KindVector:
		b.LocalGet(0).LocalGet(1).Call(r.GetGeneric(NameVecHeapEq, elem.Inner()))
	case ir.KindU128:
		emitBufferEqual(b, 16)
	case ir.KindU256, ir.KindAddress, ir.KindSigner:
		emitBufferEqual(b, 32)
	default:
		panic(fmt.Sprintf("runtime: heap_eq<%s> has no generic byte-layout and must be inlined by the translator", ir.MangleName(elem)))
	}
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildVecHeapEqGeneric compares two vector<elem> values: equal length,
// then every element equal pairwise. Vectors are heap layout [len i32][cap
// i32][elements...], matching the vector primitives below.
func buildVecHeapEqGeneric(r *Registry, typeArgs []ir.Type) uint32 {
	elem := typeArgs[0]
	elemSize := elementStride(elem)
	b := wasmmod.NewBodyBuilder()
	// locals: 2 = loop index, 3 = running equality accumulator
	b.LocalGet(0).I32Load(0)
	b.LocalGet(1).I32Load(0)
	b.Plain(wasmmod.OpI32Ne)
	b.If(wasmmod.BlockType{Result: wasmmod.ValueTypeI32})
	b.I32Const(0)
	b.Else()
	b.I32Const(1).LocalSet(3)
	b.I32Const(0).LocalSet(2)
	b.Loop(wasmmod.VoidBlock)
	b.LocalGet(2).LocalGet(0).I32Load(0).Plain(wasmmod.OpI32LtU)
	b.If(wasmmod.VoidBlock)
	elemAddr := func(base uint32) {
		b.LocalGet(base).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
		b.LocalGet(2).I32Const(int32(elemSize)).Plain(wasmmod.OpI32Mul)
		b.Plain(wasmmod.OpI32Add)
	}
	b.LocalGet(3)
	switch {
	case elem.IsHeapResident():
		elemAddr(0)
		b.I32Load(0)
		elemAddr(1)
		b.I32Load(0)
		b.Call(r.GetGeneric(NameHeapEqual, elem))
	case elem.StackSize() == 8:
		elemAddr(0)
		b.I64Load(0)
		elemAddr(1)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64Eq)
	default:
		elemAddr(0)
		b.I32Load(0)
		elemAddr(1)
		b.I32Load(0)
		b.Plain(wasmmod.OpI32Eq)
	}
	b.Plain(wasmmod.OpI32And)
	b.LocalSet(3)
	b.LocalGet(2).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(2)
	b.Br(1)
	b.End()
	b.End() // loop
	b.LocalGet(3)
	b.End() // if/else
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(2), b)
}

// elementStride is the per-element byte stride used by every vector
// primitive in this package: 4 for a pointer (any heap-resident element)
// or any stack-resident i32 value, 8 for an i64-wide stack value,
// matching ir.Type.StackSize's own stack-width rule.
func elementStride(t ir.Type) uint32 {
	if t.IsHeapResident() {
		return 4
	}
	return uint32(t.StackSize())
}
