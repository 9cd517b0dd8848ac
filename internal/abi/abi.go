// Package abi implements the ABI bridge: pack (emit-side) and unpack
// (receive-side) instruction sequences translating between the Solidity
// calldata wire format (big-endian, 32-byte-word heads with a
// dynamic-offset tail region) and the translator's in-memory
// representation (little-endian, pointer-based). Each per-type codec
// function is synthesized at most once per output module and memoized
// by mangled type name, the same discipline internal/runtime's Registry
// uses for its generic helpers.
package abi

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// LayoutContext resolves the struct/enum-dependent properties the codec
// needs: ABI head size and dynamic-ness (ir.AbiSizer), field types
// (ir.StructFieldLister) and heap layout (ir.StructSizer).
// internal/modctx.Context implements all three.
type LayoutContext interface {
	ir.AbiSizer
	ir.StructFieldLister
	ir.StructSizer
}

// Codec is the ABI bridge for one output module. One Codec is created per
// translation unit and shared by every public function's wrapper, so two
// parameters or return values of the same type reuse one pair of
// pack/unpack functions.
type Codec struct {
	mod *wasmmod.Module
	rt  *runtime.Registry
	ctx LayoutContext

	unpackFns map[string]uint32
	packFns   map[string]uint32
}

// NewCodec returns a Codec that emits pack/unpack helper functions into
// mod, calling into rt for byte-swap and allocation primitives and ctx
// for struct/enum layout.
func NewCodec(mod *wasmmod.Module, rt *runtime.Registry, ctx LayoutContext) *Codec {
	return &Codec{
		mod:       mod,
		rt:        rt,
		ctx:       ctx,
		unpackFns: map[string]uint32{},
		packFns:   map[string]uint32{},
	}
}

// vecHeaderSize mirrors internal/runtime's vector header layout:
// [length i32][capacity i32] ahead of the element storage.
const vecHeaderSize = 8

// memStride is the in-memory per-element byte stride internal/runtime's
// vector primitives use: 4 for any heap-resident (pointer) element, else
// the element's own stack width.
func memStride(t ir.Type) uint32 {
	if t.IsHeapResident() {
		return 4
	}
	return uint32(t.StackSize())
}

// define registers a fresh helper function, returning its function index.
func (c *Codec) define(sig wasmmod.FunctionType, body *wasmmod.BodyBuilder) uint32 {
	return c.defineWithLocals(sig, nil, body)
}

func (c *Codec) defineWithLocals(sig wasmmod.FunctionType, locals []wasmmod.LocalGroup, body *wasmmod.BodyBuilder) uint32 {
	return c.mod.AddFunction(wasmmod.Function{
		TypeIndex: c.mod.AddType(sig),
		Locals:    locals,
		Body:      body.End().Bytes(),
	})
}

func i32Locals(n uint32) []wasmmod.LocalGroup {
	if n == 0 {
		return nil
	}
	return []wasmmod.LocalGroup{{Count: n, Type: wasmmod.ValueTypeI32}}
}

// emitResolveOffset reads the 32-byte dynamic-offset word at slotPtrLocal
// (itself a slot inside the tuple based at tupleBaseLocal), traps unless
// its leading 28 bytes are zero, and stores tupleBase+offset into outLocal.
// i64ScratchLocal must name an i64 local distinct from every i32 operand.
func (c *Codec) emitResolveOffset(b *wasmmod.BodyBuilder, tupleBaseLocal, slotPtrLocal, i64ScratchLocal, outLocal uint32) {
	bs64 := c.rt.Get(runtime.NameByteSwap64)
	b.LocalGet(slotPtrLocal).I64Load(0).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.LocalGet(slotPtrLocal).I64Load(8).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.LocalGet(slotPtrLocal).I64Load(16).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(slotPtrLocal).I64Load(24).Call(bs64).LocalSet(i64ScratchLocal)
	b.LocalGet(i64ScratchLocal).I64Const(32).Plain(wasmmod.OpI64ShrU).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(tupleBaseLocal)
	b.LocalGet(i64ScratchLocal).Plain(wasmmod.OpI32WrapI64)
	b.Plain(wasmmod.OpI32Add)
	b.LocalSet(outLocal)
}

// emitReadLength reads a plain (non-offset) 32-byte length word at
// ptrLocal, traps unless it fits a u32, and stores it into outLocal.
func (c *Codec) emitReadLength(b *wasmmod.BodyBuilder, ptrLocal, i64ScratchLocal, outLocal uint32) {
	bs64 := c.rt.Get(runtime.NameByteSwap64)
	b.LocalGet(ptrLocal).I64Load(0).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.LocalGet(ptrLocal).I64Load(8).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.LocalGet(ptrLocal).I64Load(16).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.Plain(wasmmod.OpI32Or)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(ptrLocal).I64Load(24).Call(bs64).LocalSet(i64ScratchLocal)
	b.LocalGet(i64ScratchLocal).I64Const(32).Plain(wasmmod.OpI64ShrU).I64Const(0).Plain(wasmmod.OpI64Ne)
	b.If(wasmmod.VoidBlock)
	b.Unreachable()
	b.End()
	b.LocalGet(i64ScratchLocal).Plain(wasmmod.OpI32WrapI64).LocalSet(outLocal)
}

func unsupportedKind(op string, k ir.Kind) string {
	return fmt.Sprintf("abi: %s has no ABI %s rule", k, op)
}
