package runtime

import "github.com/stylusmove/movewasm/internal/wasmmod"

// buildByteSwap32 emits a pure register shuffle: the 32-bit little-endian
// operand is byte-reversed with shifts and masks, no memory access
// required.
func buildByteSwap32(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	// ((v & 0xFF) << 24) | ((v << 8) & 0xFF0000) | ((v >> 8) & 0xFF00) | (v >>u 24)
	b.LocalGet(0).I32Const(0xFF).Plain(wasmmod.OpI32And).I32Const(24).Plain(wasmmod.OpI32Shl)
	b.LocalGet(0).I32Const(8).Plain(wasmmod.OpI32Shl).I32Const(0xFF0000).Plain(wasmmod.OpI32And)
	b.Plain(wasmmod.OpI32Or)
	b.LocalGet(0).I32Const(8).Plain(wasmmod.OpI32ShrU).I32Const(0xFF00).Plain(wasmmod.OpI32And)
	b.Plain(wasmmod.OpI32Or)
	b.LocalGet(0).I32Const(24).Plain(wasmmod.OpI32ShrU)
	b.Plain(wasmmod.OpI32Or)
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, b)
}

// buildByteSwap64 swaps the two 32-bit lanes of a 64-bit value and
// byte-swaps each lane, by delegating to byteswap32 over the high and
// low halves: a pure register shuffle, implemented here via two 32-bit
// shuffles stitched back together.
func buildByteSwap64(r *Registry) uint32 {
	bs32 := r.Get(NameByteSwap32)
	b := wasmmod.NewBodyBuilder()
	// low 32 bits byte-swapped, promoted and shifted into the high lane of the result
	b.LocalGet(0).Plain(wasmmod.OpI32WrapI64).Call(bs32)
	b.Plain(wasmmod.OpI64ExtendI32U).I64Const(32).Plain(wasmmod.OpI64Shl)
	// high 32 bits (v >> 32) byte-swapped, placed in the low lane
	b.LocalGet(0).I64Const(32).Plain(wasmmod.OpI64ShrU).Plain(wasmmod.OpI32WrapI64).Call(bs32)
	b.Plain(wasmmod.OpI64ExtendI32U)
	b.Plain(wasmmod.OpI64Or)
	return r.define(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI64},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI64},
	}, b)
}

// buildByteSwap128 and buildByteSwap256 byte-swap a pointer-addressed
// buffer into a freshly allocated one and return its pointer: wider variants iterate swap-64 over eight-byte lanes
// and additionally reverse lane order, since byte-swapping a multi-word
// little-endian integer both reverses bytes within each word and
// reverses word order.
func buildByteSwap128(r *Registry) uint32 { return buildWideByteSwap(r, 16) }
func buildByteSwap256(r *Registry) uint32 { return buildWideByteSwap(r, 32) }

func buildWideByteSwap(r *Registry, size int) uint32 {
	bs64 := r.Get(NameByteSwap64)
	b := wasmmod.NewBodyBuilder()
	// local 0: src ptr. local 1: dst ptr (result buffer, allocated fresh
	// so pack/unpack call sites can byte-swap without clobbering the
	// source, mirroring how every other helper returns a new pointer).
	b.I32Const(int32(size)).Call(r.allocFn).LocalSet(1)
	words := size / 8
	for w := 0; w < words; w++ {
		srcOff := uint32(w * 8)
		dstOff := uint32((words - 1 - w) * 8)
		b.LocalGet(1)
		b.LocalGet(0).I64Load(srcOff).Call(bs64)
		b.I64Store(dstOff)
	}
	b.LocalGet(1)
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(1), b)
}
