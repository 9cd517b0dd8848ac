package runtime

import "github.com/stylusmove/movewasm/internal/wasmmod"

// Overflow-checked narrow arithmetic operates directly on wasm's native
// i32/i64 values rather
// than heap buffers: Move's Add/Sub/Mul on u8..u64 lower to one of these,
// followed (for u8/u16/u32) by a range check against the declared width.
// Each helper traps on overflow, matching Move's own abort-on-overflow
// arithmetic semantics.
func buildNarrowAddChecked(addOp, ltOp byte, vt wasmmod.ValueType) fixedBuilderFunc {
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.LocalGet(0).LocalGet(1).Plain(addOp)
		b.LocalSet(2)
		// unsigned overflow iff the sum wrapped below either operand.
		b.LocalGet(2).LocalGet(0).Plain(ltOp)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{vt, vt},
			Results: []wasmmod.ValueType{vt},
		}, []wasmmod.LocalGroup{{Count: 1, Type: vt}}, b)
	}
}

func buildNarrowSubChecked(vt wasmmod.ValueType) fixedBuilderFunc {
	ltOp := wasmmod.OpI32LtU
	subOp := wasmmod.OpI32Sub
	if vt == wasmmod.ValueTypeI64 {
		ltOp = wasmmod.OpI64LtU
		subOp = wasmmod.OpI64Sub
	}
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		// Move's unsigned subtraction aborts whenever lhs < rhs, before the
		// subtraction even happens, so there's no separate overflow test.
		b.LocalGet(0).LocalGet(1).Plain(ltOp)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(0).LocalGet(1).Plain(subOp)
		return r.define(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{vt, vt},
			Results: []wasmmod.ValueType{vt},
		}, b)
	}
}

// buildNarrowMulChecked checks for i32 multiply overflow by widening both
// operands to i64, multiplying there, and range-checking the product
// against 2^32-1 before truncating back down.
func buildNarrowMulChecked(vt wasmmod.ValueType) fixedBuilderFunc {
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.LocalGet(0).Plain(wasmmod.OpI64ExtendI32U)
		b.LocalGet(1).Plain(wasmmod.OpI64ExtendI32U)
		b.Plain(wasmmod.OpI64Mul)
		b.LocalSet(2)
		b.I64Const(0xFFFFFFFF).LocalGet(2).Plain(wasmmod.OpI64LtU)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(2).Plain(wasmmod.OpI32WrapI64)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, []wasmmod.LocalGroup{{Count: 1, Type: wasmmod.ValueTypeI64}}, b)
	}
}

// buildNarrowMulChecked64 checks for i64 multiply overflow the classic way
// (no native widening instruction is available for 64x64 on wasm): compute
// the wrapping product, then for a nonzero left operand verify dividing the
// product back by it recovers the right operand exactly.
func buildNarrowMulChecked64(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	b.LocalGet(0).LocalGet(1).Plain(wasmmod.OpI64Mul)
	b.LocalSet(2)
	b.LocalGet(0).Plain(wasmmod.OpI64Eqz)
	b.If(wasmmod.BlockType{Result: wasmmod.ValueTypeI64})
	b.I64Const(0)
	b.Else()
	b.LocalGet(2).LocalGet(0).Plain(wasmmod.OpI64DivU)
	b.LocalGet(1).Plain(wasmmod.OpI64Ne)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(2)
	b.End()
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI64, wasmmod.ValueTypeI64},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI64},
	}, []wasmmod.LocalGroup{{Count: 1, Type: wasmmod.ValueTypeI64}}, b)
}

// buildNarrowRangeCheck traps if the i64 value on the stack exceeds the
// maximum representable by `bits` (8 or 16), used after a wider Move
// integer is cast down with CastU8/CastU16.
func buildNarrowRangeCheck(bits int) fixedBuilderFunc {
	max := int64(1)<<uint(bits) - 1
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I64Const(max).LocalGet(0).Plain(wasmmod.OpI64LtU)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(0)
		return r.define(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI64},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI64},
		}, b)
	}
}

// buildDowncastFromWord truncates an i64 (srcBytes==8) Move integer down
// to i32, trapping if any of the high bits being discarded are set.
func buildDowncastFromWord(srcBytes, dstBytes int) fixedBuilderFunc {
	shift := int64(dstBytes * 8)
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.LocalGet(0).I64Const(shift).Plain(wasmmod.OpI64ShrU)
		b.I64Const(0).Plain(wasmmod.OpI64Ne)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(0).Plain(wasmmod.OpI32WrapI64)
		return r.define(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI64},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, b)
	}
}

// buildDowncastU256ToU128 narrows a 32-byte buffer to a freshly allocated
// 16-byte buffer, trapping if either of the high two lanes is nonzero.
// Unlike buildDowncastFromWide, the destination is itself heap-resident
// (a pointer), not a scalar register, so it needs its own shape.
func buildDowncastU256ToU128(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	for _, lane := range []uint32{16, 24} {
		b.LocalGet(0).I64Load(lane)
		b.I64Const(0).Plain(wasmmod.OpI64Ne)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
	}
	b.I32Const(16).Call(r.allocFn).LocalSet(1)
	b.LocalGet(1).LocalGet(0).I64Load(0).I64Store(0)
	b.LocalGet(1).LocalGet(0).I64Load(8).I64Store(8)
	b.LocalGet(1)
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}

// buildDowncastFromWide truncates a heap-resident U128/U256 buffer down
// to an i32/i64 scalar, trapping if any lane beyond the kept width is
// nonzero.
func buildDowncastFromWide(srcBytes, dstBytes int) fixedBuilderFunc {
	lanes := srcBytes / 8
	keptLanes := dstBytes / 8
	resultType := wasmmod.ValueTypeI32
	if dstBytes == 8 {
		resultType = wasmmod.ValueTypeI64
	}
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		for i := keptLanes; i < lanes; i++ {
			b.LocalGet(0).I64Load(uint32(i * 8))
			b.I64Const(0).Plain(wasmmod.OpI64Ne)
			b.If(wasmmod.VoidBlock)
			b.Unreachable()
			b.End()
		}
		b.LocalGet(0).I64Load(0)
		if resultType == wasmmod.ValueTypeI32 {
			b.Plain(wasmmod.OpI32WrapI64)
		}
		return r.define(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{resultType},
		}, b)
	}
}
