package abi

import (
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// PackReturns emits, into b, the wrapper's packing epilogue: allocates
// a head buffer sized to fit every return value,
// writes each value (from valueLocals, one per type) in order, growing
// the tail region for dynamic types, and leaves the buffer's pointer in
// headPtrLocal and its total byte length in lenLocal. tailPtrLocal is a
// scratch local the caller reserves for this call only.
func (c *Codec) PackReturns(b *wasmmod.BodyBuilder, headPtrLocal, tailPtrLocal, lenLocal uint32, types []ir.Type, valueLocals []uint32) {
	if len(types) != len(valueLocals) {
		panic("abi: PackReturns: types and valueLocals length mismatch")
	}
	headSize := 0
	for _, t := range types {
		headSize += t.AbiEncodedSize(c.ctx)
	}
	b.I32Const(int32(headSize)).Call(c.rt.AllocFn()).LocalSet(headPtrLocal)
	b.LocalGet(headPtrLocal).I32Const(int32(headSize)).Plain(wasmmod.OpI32Add).LocalSet(tailPtrLocal)
	offset := 0
	for i, t := range types {
		fn := c.packFn(t)
		b.LocalGet(headPtrLocal).I32Const(int32(offset)).Plain(wasmmod.OpI32Add)
		b.LocalGet(headPtrLocal)
		b.LocalGet(tailPtrLocal)
		b.LocalGet(valueLocals[i])
		b.Call(fn)
		b.LocalSet(tailPtrLocal)
		offset += t.AbiEncodedSize(c.ctx)
	}
	b.LocalGet(tailPtrLocal).LocalGet(headPtrLocal).Plain(wasmmod.OpI32Sub).LocalSet(lenLocal)
}

// packFn returns the function index of pack<T>: a helper of signature
// (dstSlotPtr i32, tupleBase i32, tailPtr i32, value) -> newTailPtr i32.
// Static types ignore tupleBase/tailPtr and return tailPtr unchanged;
// dynamic types write an offset at dstSlotPtr, append their payload at
// tailPtr, and return the advanced tail.
func (c *Codec) packFn(t ir.Type) uint32 {
	name := ir.MangleName(t)
	if idx, ok := c.packFns[name]; ok {
		return idx
	}
	var idx uint32
	switch t.Kind() {
	case ir.KindBool, ir.KindU8:
		idx = c.buildPackScalar(1, wasmmod.ValueTypeI32)
	case ir.KindU16:
		idx = c.buildPackScalar(2, wasmmod.ValueTypeI32)
	case ir.KindU32:
		idx = c.buildPackScalar(4, wasmmod.ValueTypeI32)
	case ir.KindU64:
		idx = c.buildPackScalar(8, wasmmod.ValueTypeI64)
	case ir.KindU128:
		idx = c.buildPackU128()
	case ir.KindU256:
		idx = c.buildPackU256()
	case ir.KindAddress:
		idx = c.buildPackAddress()
	case ir.KindVector:
		idx = c.buildPackVector(t)
	case ir.KindStruct, ir.KindGenericStructInstance:
		idx = c.buildPackStruct(t)
	default:
		panic(unsupportedKind("pack", t.Kind()))
	}
	c.packFns[name] = idx
	return idx
}

// buildPackScalar zeroes the 32-byte slot, then writes the byte-swapped
// value right-aligned at its tail: offset 32 minus the type's ABI
// encoded size from the slot start, left-padded with zeros.
func (c *Codec) buildPackScalar(width int, vt wasmmod.ValueType) uint32 {
	bs32 := c.rt.Get(runtime.NameByteSwap32)
	bs64 := c.rt.Get(runtime.NameByteSwap64)
	// params: 0 = dst, 1 = tupleBase (unused), 2 = tailPtr (passed through), 3 = value
	b := wasmmod.NewBodyBuilder()
	for i := 0; i < 4; i++ {
		b.LocalGet(0).I64Const(0).I64Store(uint32(i * 8))
	}
	switch width {
	case 1:
		b.LocalGet(0)
		b.LocalGet(3)
		b.I32Store8(31)
	case 2:
		b.LocalGet(3).LocalSet(4)
		b.LocalGet(0)
		b.LocalGet(4).I32Const(0xFF).Plain(wasmmod.OpI32And).I32Const(8).Plain(wasmmod.OpI32Shl)
		b.LocalGet(4).I32Const(8).Plain(wasmmod.OpI32ShrU).I32Const(0xFF).Plain(wasmmod.OpI32And)
		b.Plain(wasmmod.OpI32Or)
		b.I32Store16(30)
	case 4:
		b.LocalGet(0)
		b.LocalGet(3).Call(bs32)
		b.I32Store(28)
	case 8:
		b.LocalGet(0)
		b.LocalGet(3).Call(bs64)
		b.I64Store(24)
	}
	b.LocalGet(2)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, vt},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildPackU128 zeroes the slot's leading 16 bytes and byte-swaps the
// value's 16-byte buffer into the trailing half, via byteswap128.
func (c *Codec) buildPackU128() uint32 {
	bs128 := c.rt.Get(runtime.NameByteSwap128)
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(0).I64Const(0).I64Store(0)
	b.LocalGet(0).I64Const(0).I64Store(8)
	b.LocalGet(3).Call(bs128).LocalSet(4)
	b.LocalGet(0).LocalGet(4).I64Load(0).I64Store(16)
	b.LocalGet(0).LocalGet(4).I64Load(8).I64Store(24)
	b.LocalGet(2)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildPackU256 occupies the full slot, so it just byte-swaps the whole
// 32-byte buffer via byteswap256.
func (c *Codec) buildPackU256() uint32 {
	bs256 := c.rt.Get(runtime.NameByteSwap256)
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(3).Call(bs256).LocalSet(4)
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		b.LocalGet(0).LocalGet(4).I64Load(off).I64Store(off)
	}
	b.LocalGet(2)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildPackAddress copies the 32-byte padded address verbatim: the same
// byte order the internal representation already uses (see
// buildUnpackAddress).
func (c *Codec) buildPackAddress() uint32 {
	b := wasmmod.NewBodyBuilder()
	for i := 0; i < 4; i++ {
		off := uint32(i * 8)
		b.LocalGet(0).LocalGet(3).I64Load(off).I64Store(off)
	}
	b.LocalGet(2)
	return c.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildPackVector writes a dynamic offset at dst, then lays the vector's
// own tail out exactly like a nested ABI tuple: a fixed-stride element
// head (dynamic element types carry their own offsets in that head)
// followed by each dynamic element's own payload, growing the shared
// tail as it goes.
func (c *Codec) buildPackVector(t ir.Type) uint32 {
	inner := t.Inner()
	elemWireStride := int32(inner.AbiEncodedSize(c.ctx))
	elemMemStride := int32(memStride(inner))
	bs32 := c.rt.Get(runtime.NameByteSwap32)
	innerPackFn := c.packFn(inner)

	// locals: 4 = length, 5 = elemsBase, 6 = runningTail, 7 = loop index
	b := wasmmod.NewBodyBuilder()
	for i := 0; i < 3; i++ {
		b.LocalGet(0).I64Const(0).I64Store(uint32(i * 8))
	}
	b.LocalGet(0)
	b.LocalGet(2).LocalGet(1).Plain(wasmmod.OpI32Sub).Call(bs32)
	b.I32Store(28)

	b.LocalGet(3).I32Load(0).LocalSet(4)
	for i := 0; i < 3; i++ {
		b.LocalGet(2).I64Const(0).I64Store(uint32(i * 8))
	}
	b.LocalGet(2)
	b.LocalGet(4).Call(bs32)
	b.I32Store(28)

	b.LocalGet(2).I32Const(32).Plain(wasmmod.OpI32Add).LocalSet(5)
	b.LocalGet(5).LocalGet(4).I32Const(elemWireStride).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add).LocalSet(6)
	b.I32Const(0).LocalSet(7)
	b.Loop(wasmmod.VoidBlock)
	b.LocalGet(7).LocalGet(4).Plain(wasmmod.OpI32LtU)
	b.If(wasmmod.VoidBlock)
	b.LocalGet(5).LocalGet(7).I32Const(elemWireStride).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	b.LocalGet(5)
	b.LocalGet(6)
	b.LocalGet(3).I32Const(vecHeaderSize).Plain(wasmmod.OpI32Add)
	b.LocalGet(7).I32Const(elemMemStride).Plain(wasmmod.OpI32Mul)
	b.Plain(wasmmod.OpI32Add)
	if inner.StackSize() == 8 {
		b.I64Load(0)
	} else {
		b.I32Load(0)
	}
	b.Call(innerPackFn)
	b.LocalSet(6)
	b.LocalGet(7).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(7)
	b.Br(1)
	b.End()
	b.End()
	b.LocalGet(6)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(4), b)
}

// buildPackStruct writes the struct's fields at constant offsets from
// their own base: inline at dst for a static struct, or at a freshly
// written dynamic offset's target for a dynamic one — nested dynamic
// offsets are relative to the enclosing struct's own start, not the
// outermost tuple's start.
func (c *Codec) buildPackStruct(t ir.Type) uint32 {
	h := t.Handle()
	typeArgs := t.TypeArgs()
	fields := c.ctx.StructFieldTypes(h, typeArgs)
	dynamic := t.IsDynamicAbi(c.ctx)
	bs32 := c.rt.Get(runtime.NameByteSwap32)

	// locals: 4 = fieldsBase, 5 = runningTail
	b := wasmmod.NewBodyBuilder()
	if dynamic {
		for i := 0; i < 3; i++ {
			b.LocalGet(0).I64Const(0).I64Store(uint32(i * 8))
		}
		b.LocalGet(0)
		b.LocalGet(2).LocalGet(1).Plain(wasmmod.OpI32Sub).Call(bs32)
		b.I32Store(28)
		b.LocalGet(2).LocalSet(4)
		innerHeadSize := 0
		for _, ft := range fields {
			innerHeadSize += ft.AbiEncodedSize(c.ctx)
		}
		b.LocalGet(4).I32Const(int32(innerHeadSize)).Plain(wasmmod.OpI32Add).LocalSet(5)
	} else {
		b.LocalGet(0).LocalSet(4)
		b.LocalGet(2).LocalSet(5)
	}
	offset := 0
	for i, ft := range fields {
		fieldFn := c.packFn(ft)
		b.LocalGet(4).I32Const(int32(offset)).Plain(wasmmod.OpI32Add)
		b.LocalGet(4)
		b.LocalGet(5)
		b.LocalGet(3).I32Load(uint32(4 * i))
		if !ft.IsHeapResident() {
			if ft.StackSize() == 8 {
				b.I64Load(0)
			} else {
				b.I32Load(0)
			}
		}
		b.Call(fieldFn)
		b.LocalSet(5)
		offset += ft.AbiEncodedSize(c.ctx)
	}
	b.LocalGet(5)
	return c.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(2), b)
}
