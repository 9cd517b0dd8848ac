package runtime

import "github.com/stylusmove/movewasm/internal/wasmmod"

// Storage slot derivation: a dynamic array's element at index i
// lives at keccak256(baseSlot) + i (treated as a big-endian 256-bit
// counter), and a per-owner object's fields live at
// keccak256(owner ++ objectId). Both helpers call into the
// native_keccak256 vm_hooks import wired through the Registry at
// construction (internal/entrypoint resolves and supplies that import
// index before translation starts).

// buildStorageNextSlot takes a 32-byte base-slot pointer and an i32
// index, and returns a freshly allocated 32-byte pointer to
// keccak256(baseSlot) + index.
func buildStorageNextSlot(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	// local 2 = hashed base ptr, local 3 = result ptr, local 4 = carry,
	// local 5 = byte index counting down from the last byte (31), local
	// 6 = this byte's lane sum (0..510, before masking back to a byte)
	b.I32Const(32).Call(r.allocFn).LocalSet(2)
	b.LocalGet(0).I32Const(32).LocalGet(2).Call(r.storageFn.keccak)
	b.I32Const(32).Call(r.allocFn).LocalSet(3)
	b.LocalGet(1).LocalSet(4) // carry starts as the full index, absorbed byte-by-byte below
	b.I32Const(31).LocalSet(5)
	b.Loop(wasmmod.VoidBlock)
	b.LocalGet(2).LocalGet(5).Plain(wasmmod.OpI32Add).I32Load8U(0)
	b.LocalGet(4).I32Const(0xFF).Plain(wasmmod.OpI32And)
	b.Plain(wasmmod.OpI32Add)
	b.LocalSet(6)
	b.LocalGet(3).LocalGet(5).Plain(wasmmod.OpI32Add)
	b.LocalGet(6).I32Const(0xFF).Plain(wasmmod.OpI32And)
	b.I32Store8(0)
	b.LocalGet(6).I32Const(8).Plain(wasmmod.OpI32ShrU).LocalSet(4)
	b.LocalGet(5).I32Const(0).Plain(wasmmod.OpI32GtU)
	b.If(wasmmod.VoidBlock)
	b.LocalGet(5).I32Const(1).Plain(wasmmod.OpI32Sub).LocalSet(5)
	b.Br(1)
	b.End()
	b.End() // loop
	b.LocalGet(3)
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(5), b)
}

// buildStorageObjectSlotShared concatenates a 20-byte owner address and a
// 32-byte object id into a 52-byte scratch buffer, hashes it, and returns
// the 32-byte keccak256 digest pointer — the root storage slot under
// which that object's fields are laid out.
func buildStorageObjectSlotShared(r *Registry) uint32 {
	b := wasmmod.NewBodyBuilder()
	// local 2 = scratch (52 bytes), local 3 = result ptr (32 bytes)
	b.I32Const(52).Call(r.allocFn).LocalSet(2)
	for i := 0; i < 20; i++ {
		b.LocalGet(2).LocalGet(0).I32Load8U(uint32(i))
		b.I32Store8(uint32(i))
	}
	for i := 0; i < 32; i++ {
		b.LocalGet(2).LocalGet(1).I32Load8U(uint32(i))
		b.I32Store8(uint32(20 + i))
	}
	b.I32Const(32).Call(r.allocFn).LocalSet(3)
	b.LocalGet(2).I32Const(52).LocalGet(3).Call(r.storageFn.keccak)
	b.LocalGet(3)
	return r.defineWithLocals(wasmmod.FunctionType{
		Params:  []wasmmod.ValueType{wasmmod.ValueTypeI32, wasmmod.ValueTypeI32},
		Results: []wasmmod.ValueType{wasmmod.ValueTypeI32},
	}, i32Locals(2), b)
}
