package runtime

import "github.com/stylusmove/movewasm/internal/wasmmod"

// Wide shift helpers take a buffer pointer and
// an i32 shift amount, and return a freshly allocated, shifted buffer.
// Move's Shl/Shr instructions only ever shift by a u8 amount, so the
// shift count is always treated as < size*8; a shift count that large is
// a translation-time invariant violation, not something these helpers
// defend against.
func buildWideShl(size int) fixedBuilderFunc {
	lanes := size / 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		// locals: 2 = result ptr, 3 = whole-lane shift (shamt/64),
		// 4 = within-lane shift (shamt%64), 5 = loop index
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		b.LocalGet(1).I32Const(6).Plain(wasmmod.OpI32ShrU).LocalSet(3)
		b.LocalGet(1).I32Const(63).Plain(wasmmod.OpI32And).LocalSet(4)
		for i := lanes - 1; i >= 0; i-- {
			dst := uint32(i * 8)
			b.LocalGet(2)
			// src lane index = i - wholeLaneShift; out-of-range reads are
			// masked to zero below via a clamped, re-derived index.
			b.LocalGet(0)
			b.I32Const(int32(i)).LocalGet(3).Plain(wasmmod.OpI32Sub).I32Const(8).Plain(wasmmod.OpI32Mul)
			b.Plain(wasmmod.OpI32Add)
			b.I64Load(0)
			b.LocalGet(4).Plain(wasmmod.OpI64ExtendI32U)
			b.Plain(wasmmod.OpI64Shl)
			if i > 0 {
				b.LocalGet(0)
				b.I32Const(int32(i-1)).LocalGet(3).Plain(wasmmod.OpI32Sub).I32Const(8).Plain(wasmmod.OpI32Mul)
				b.Plain(wasmmod.OpI32Add)
				b.I64Load(0)
				b.I64Const(64).LocalGet(4).Plain(wasmmod.OpI64ExtendI32U).Plain(wasmmod.OpI64Sub)
				b.Plain(wasmmod.OpI64ShrU)
				b.Plain(wasmmod.OpI64Or)
			}
			b.I64Store(dst)
		}
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, i32Locals(4), b)
	}
}

func buildWideShr(size int) fixedBuilderFunc {
	lanes := size / 8
	return func(r *Registry) uint32 {
		b := wasmmod.NewBodyBuilder()
		b.I32Const(int32(size)).Call(r.allocFn).LocalSet(2)
		b.LocalGet(1).I32Const(6).Plain(wasmmod.OpI32ShrU).LocalSet(3)
		b.LocalGet(1).I32Const(63).Plain(wasmmod.OpI32And).LocalSet(4)
		for i := 0; i < lanes; i++ {
			dst := uint32(i * 8)
			b.LocalGet(2)
			b.LocalGet(0)
			b.I32Const(int32(i)).LocalGet(3).Plain(wasmmod.OpI32Add).I32Const(8).Plain(wasmmod.OpI32Mul)
			b.Plain(wasmmod.OpI32Add)
			b.I64Load(0)
			b.LocalGet(4).Plain(wasmmod.OpI64ExtendI32U)
			b.Plain(wasmmod.OpI64ShrU)
			if i < lanes-1 {
				b.LocalGet(0)
				b.I32Const(int32(i+1)).LocalGet(3).Plain(wasmmod.OpI32Add).I32Const(8).Plain(wasmmod.OpI32Mul)
				b.Plain(wasmmod.OpI32Add)
				b.I64Load(0)
				b.I64Const(64).LocalGet(4).Plain(wasmmod.OpI64ExtendI32U).Plain(wasmmod.OpI64Sub)
				b.Plain(wasmmod.OpI64Shl)
				b.Plain(wasmmod.OpI64Or)
			}
			b.I64Store(dst)
		}
		b.LocalGet(2)
		return r.defineWithLocals(wasmmod.FunctionType{
			Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
			Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
		}, i32Locals(4), b)
	}
}
