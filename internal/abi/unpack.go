package abi

import (
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// UnpackParams emits, into b, the wrapper's unpacking prelude: for each
// type, read the corresponding ABI slot
// starting at calldataBaseLocal (already advanced past the 4-byte
// selector) and store the decoded value or heap pointer into the matching
// entry of destLocals. Signer and TxContext parameters are never passed
// here; the caller (internal/wrapper) resolves them separately and
// injects them directly into their own locals.
func (c *Codec) UnpackParams(b *wasmmod.BodyBuilder, calldataBaseLocal uint32, types []ir.Type, destLocals []uint32) {
	if len(types) != len(destLocals) {
		panic("abi: UnpackParams: types and destLocals length mismatch")
	}
	offset := 0
	for i, t := range types {
		fn := c.unpackFn(t)
		b.LocalGet(calldataBaseLocal)
		b.LocalGet(calldataBaseLocal).I32Const(int32(offset)).Plain(wasmmod.OpI32Add)
		b.Call(fn)
		b.LocalSet(destLocals[i])
		offset += t.AbiEncodedSize(c.ctx)
	}
}

// unpackFn returns the function index of unpack<T>: a helper of signature
// (tupleBase i32, slotPtr i32) -> value, synthesizing it on first
// reference for this concrete type. Every unpacker reads exactly its own
// slot(s); dynamic types chase their own offset internally, so a caller
// never needs to know whether T is dynamic.
func (c *Codec) unpackFn(t ir.Type) uint32 {
	name := ir.MangleName(t)
	if idx, ok := c.unpackFns[name]; ok {
		return idx
	}
	var idx uint32
	switch t.Kind() {
	case ir.KindBool, ir.KindU8:
		idx = c.buildUnpackScalar(1, wasmmod.ValueTypeI32)
	case ir.KindU16:
		idx = c.buildUnpackScalar(2, wasmmod.ValueTypeI32)
	case ir.KindU32:
		idx = c.buildUnpackScalar(4, wasmmod.ValueTypeI32)
	case ir.KindU64:
		idx = c.buildUnpackScalar(8, wasmmod.ValueTypeI64)
	case ir.KindU128:
		idx = c.buildUnpackU128()
	case ir.KindU256:
		idx = c.buildUnpackU256()
	case ir.KindAddress:
		idx = c.buildUnpackAddress()
	case ir.KindVector:
		idx = c.buildUnpackVector(t)
	case ir.KindStruct, ir.KindGenericStructInstance:
		idx = c.buildUnpackStruct(t)
	default:
		panic(unsupportedKind("unpack", t.Kind()))
	}
	c.unpackFns[name] = idx
	return idx
}

// buildUnpackScalar reads a fixed-width integer right-aligned in its
// 32-byte head slot, trapping if any padding byte, or any bit beyond
// width, is set.
func (c *Codec) buildUnpackScalar(width int, result wasmmod.ValueType) uint32 {
	bs64 := c.rt.Get(runtime.NameByteSwap64)
	b := wasmmod.NewBodyBuilder()
	// params: 0 = tupleBase (unused by static scalars), 1 = slotPtr
	b.LocalGet(1).I64Load(0).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.LocalGet(1).I64Load(8).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.LocalGet(1).I64Load(16).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(1).I64Load(24).Call(bs64).LocalSet(2)
	if width < 8 {
		b.LocalGet(2).I64Const(int64(width*8)).Plain(wasmmod.OpI64ShrU)
		b.I64Const(0).Plain(wasmmod.OpI64Ne)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
	}
	b.LocalGet(2)
	if result == wasmmod.ValueTypeI32 {
		b.Plain(wasmmod.OpI32WrapI64)
	}
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{result},
	}, []wasmmod.LocalGroup{{Count: 1, Type: wasmmod.ValueTypeI64}}, b)
}

// buildUnpackU128 validates the 32-byte slot's leading 16 bytes are zero
// and byte-swaps the remaining 16 into a freshly allocated little-endian
// buffer via internal/runtime's byteswap128.
func (c *Codec) buildUnpackU128() uint32 {
	bs128 := c.rt.Get(runtime.NameByteSwap128)
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(1).I64Load(0).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.LocalGet(1).I64Load(8).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(1).I32Const(16).Plain(wasmmod.OpI32Add).Call(bs128)
	return c.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildUnpackU256 occupies the full 32-byte slot, so it needs no padding
// check, just a byte-swap into a freshly allocated buffer.
func (c *Codec) buildUnpackU256() uint32 {
	bs256 := c.rt.Get(runtime.NameByteSwap256)
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(1).Call(bs256)
	return c.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildUnpackAddress copies the 32-byte slot verbatim: an address is an
// opaque byte identifier, not an integer, and the internal address
// representation (zero-padded to 32 bytes) uses the same byte order as
// calldata, so no byte-swap applies.
func (c *Codec) buildUnpackAddress() uint32 {
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(1).I64Load(0).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.LocalGet(1).I64Load(8).Plain(wasmmod.OpI32WrapI64).I32Const(0).Plain(wasmmod.OpI32Ne)
	b.Plain(wasmmod.OpI32Or)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.I32Const(32).Call(c.rt.AllocFn()).LocalSet(2)
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		b.LocalGet(2)
		b.LocalGet(1).I64Load(off)
		b.I64Store(off)
	}
	b.LocalGet(2)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildUnpackVector chases the dynamic offset to the vector's tail,
// range-checks its length word, allocates a vector with the standard
// length/capacity header, then loops over the element head region
// invoking the element unpacker once per slot.
func (c *Codec) buildUnpackVector(t ir.Type) uint32 {
	inner := t.Inner()
	elemWireStride := int32(inner.AbiEncodedSize(c.ctx))
	elemMemStride := int32(memStride(inner))
	innerFn := c.unpackFn(inner)

	// locals: 2 = i64 scratch (offset/length decode)
	//         3 = tailPtr, 4 = length, 5 = vecPtr, 6 = loop index, 7 = elemsBase
	b := wasmmod.NewBodyBuilder()
	c.emitResolveOffset(b, 0, 1, 2, 3)
	c.emitReadLength(b, 3, 2, 4)
	b.LocalGet(4).I32Const(elemMemStride).Plain(wasmmod.OpI32Mul).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
	b.Call(c.rt.AllocFn()).LocalSet(5)
	b.LocalGet(5).LocalGet(4).I32Store(0)
	b.LocalGet(5).LocalGet(4).I32Store(4)
	b.LocalGet(3).I32Const(32).Plain(wasmmod.OpI32Add).LocalSet(7)
	b.I32Const(0).LocalSet(6)
	b.Loop(wasmmod.VoidBlock)
	b.LocalGet(6).LocalGet(4).Plain(wasmmod.OpI32LtU)
	b.If(wasmmod.VoidBlock)
	b.LocalGet(5).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
	b.LocalGet(6).I32Const(elemMemStride).Plain(wasmmod.OpI32Mul)
	b.Plain(wasmmod.OpI32Add)
	b.LocalGet(7)
	b.LocalGet(7).LocalGet(6).I32Const(elemWireStride).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	b.Call(innerFn)
	if inner.StackSize() == 8 {
		b.I64Store(0)
	} else {
		b.I32Store(0)
	}
	b.LocalGet(6).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(6)
	b.Br(1)
	b.End()
	b.End()
	b.LocalGet(5)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, []wasmmod.LocalGroup{{Count: 1, Type: wasmmod.ValueTypeI64}, {Count: 5, Type: wasmmod.ValueTypeI32}}, b)
}

// buildUnpackStruct reads a struct's fields from their constant offsets,
// chasing a leading dynamic-offset indirection first if the struct itself
// is ABI-dynamic. Scalar fields get a freshly allocated indirection
// cell; heap fields use the unpacked pointer directly.
func (c *Codec) buildUnpackStruct(t ir.Type) uint32 {
	h := t.Handle()
	typeArgs := t.TypeArgs()
	fields := c.ctx.StructFieldTypes(h, typeArgs)
	dynamic := t.IsDynamicAbi(c.ctx)
	heapSize := c.ctx.StructHeapSize(h)

	// locals: 2,3 = i64 (offset scratch, u64 field value)
	//         4 = fieldsBase, 5 = structPtr, 6 = i32 field value, 7 = cell ptr
	b := wasmmod.NewBodyBuilder()
	if dynamic {
		c.emitResolveOffset(b, 0, 1, 2, 4)
	} else {
		b.LocalGet(1).LocalSet(4)
	}
	b.I32Const(int32(heapSize)).Call(c.rt.AllocFn()).LocalSet(5)
	offset := 0
	for i, ft := range fields {
		fieldFn := c.unpackFn(ft)
		b.LocalGet(4)
		b.LocalGet(4).I32Const(int32(offset)).Plain(wasmmod.OpI32Add)
		b.Call(fieldFn)
		if ft.StackSize() == 8 {
			b.LocalSet(3)
		} else {
			b.LocalSet(6)
		}
		if ft.IsHeapResident() {
			b.LocalGet(5).LocalGet(6).I32Store(uint32(4 * i))
		} else {
			cellSize := ft.StackSize()
			b.I32Const(int32(cellSize)).Call(c.rt.AllocFn()).LocalSet(7)
			if cellSize == 8 {
				b.LocalGet(7).LocalGet(3).I64Store(0)
			} else {
				b.LocalGet(7).LocalGet(6).I32Store(0)
			}
			b.LocalGet(5).LocalGet(7).I32Store(uint32(4 * i))
		}
		offset += ft.AbiEncodedSize(c.ctx)
	}
	b.LocalGet(5)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, []wasmmod.LocalGroup{{Count: 2, Type: wasmmod.ValueTypeI64}, {Count: 4, Type: wasmmod.ValueTypeI32}}, b)
}
