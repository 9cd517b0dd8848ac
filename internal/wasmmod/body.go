package wasmmod

import (
	"bytes"

	"github.com/stylusmove/movewasm/internal/leb128"
)

// BodyBuilder incrementally assembles one function's instruction stream.
// The bytecode translator (internal/translator) and the runtime library
// generator (internal/runtime) are the two callers; both emit straight
// through this type rather than building byte slices by hand, so every
// opcode's immediate-operand encoding lives in exactly one place.
type BodyBuilder struct {
	buf bytes.Buffer
}

// NewBodyBuilder returns an empty builder.
func NewBodyBuilder() *BodyBuilder { return &BodyBuilder{} }

// Bytes returns the instruction stream assembled so far, without the
// trailing End; call End first if a terminated body is required.
func (b *BodyBuilder) Bytes() []byte { return b.buf.Bytes() }

// Len reports the number of bytes emitted so far.
func (b *BodyBuilder) Len() int { return b.buf.Len() }

func (b *BodyBuilder) op(op byte) *BodyBuilder {
	b.buf.WriteByte(op)
	return b
}

// Raw appends already-encoded bytes verbatim, used by callers splicing in
// a previously-built sub-sequence (e.g. a monomorphized callee body
// reused across call sites).
func (b *BodyBuilder) Raw(bs []byte) *BodyBuilder {
	b.buf.Write(bs)
	return b
}

func (b *BodyBuilder) End() *BodyBuilder    { return b.op(OpEnd) }
func (b *BodyBuilder) Else() *BodyBuilder   { return b.op(OpElse) }
func (b *BodyBuilder) Return() *BodyBuilder { return b.op(OpReturn) }
func (b *BodyBuilder) Drop() *BodyBuilder   { return b.op(OpDrop) }
func (b *BodyBuilder) Select() *BodyBuilder { return b.op(OpSelect) }
func (b *BodyBuilder) Unreachable() *BodyBuilder { return b.op(OpUnreachable) }
func (b *BodyBuilder) Nop() *BodyBuilder    { return b.op(OpNop) }

func (b *BodyBuilder) Block(bt BlockType) *BodyBuilder {
	b.op(OpBlock)
	b.buf.WriteByte(bt.encode())
	return b
}

func (b *BodyBuilder) Loop(bt BlockType) *BodyBuilder {
	b.op(OpLoop)
	b.buf.WriteByte(bt.encode())
	return b
}

func (b *BodyBuilder) If(bt BlockType) *BodyBuilder {
	b.op(OpIf)
	b.buf.WriteByte(bt.encode())
	return b
}

func (b *BodyBuilder) Br(depth uint32) *BodyBuilder {
	b.op(OpBr)
	b.buf.Write(leb128.EncodeUint32(depth))
	return b
}

func (b *BodyBuilder) BrIf(depth uint32) *BodyBuilder {
	b.op(OpBrIf)
	b.buf.Write(leb128.EncodeUint32(depth))
	return b
}

func (b *BodyBuilder) Call(funcIdx uint32) *BodyBuilder {
	b.op(OpCall)
	b.buf.Write(leb128.EncodeUint32(funcIdx))
	return b
}

func (b *BodyBuilder) LocalGet(idx uint32) *BodyBuilder {
	b.op(OpLocalGet)
	b.buf.Write(leb128.EncodeUint32(idx))
	return b
}

func (b *BodyBuilder) LocalSet(idx uint32) *BodyBuilder {
	b.op(OpLocalSet)
	b.buf.Write(leb128.EncodeUint32(idx))
	return b
}

func (b *BodyBuilder) LocalTee(idx uint32) *BodyBuilder {
	b.op(OpLocalTee)
	b.buf.Write(leb128.EncodeUint32(idx))
	return b
}

func (b *BodyBuilder) GlobalGet(idx uint32) *BodyBuilder {
	b.op(OpGlobalGet)
	b.buf.Write(leb128.EncodeUint32(idx))
	return b
}

func (b *BodyBuilder) GlobalSet(idx uint32) *BodyBuilder {
	b.op(OpGlobalSet)
	b.buf.Write(leb128.EncodeUint32(idx))
	return b
}

// MemorySize and MemoryGrow both carry a single reserved memory-index
// byte (always 0 in the MVP encoding, since the translator's output
// ever declares exactly one linear memory).
func (b *BodyBuilder) MemorySize() *BodyBuilder {
	b.op(OpMemorySize)
	b.buf.WriteByte(0x00)
	return b
}

func (b *BodyBuilder) MemoryGrow() *BodyBuilder {
	b.op(OpMemoryGrow)
	b.buf.WriteByte(0x00)
	return b
}

func (b *BodyBuilder) I32Const(v int32) *BodyBuilder {
	b.op(OpI32Const)
	b.buf.Write(leb128.EncodeInt32(v))
	return b
}

func (b *BodyBuilder) I64Const(v int64) *BodyBuilder {
	b.op(OpI64Const)
	b.buf.Write(leb128.EncodeInt64(v))
	return b
}

// memArg encodes the (align, offset) immediate pair shared by every
// load/store instruction. align is the log2 of the natural alignment;
// the translator always passes the natural alignment for the access
// width since the allocator never over-aligns.
func (b *BodyBuilder) memArg(op byte, align uint32, offset uint32) *BodyBuilder {
	b.op(op)
	b.buf.Write(leb128.EncodeUint32(align))
	b.buf.Write(leb128.EncodeUint32(offset))
	return b
}

func (b *BodyBuilder) I32Load(offset uint32) *BodyBuilder      { return b.memArg(OpI32Load, 2, offset) }
func (b *BodyBuilder) I64Load(offset uint32) *BodyBuilder      { return b.memArg(OpI64Load, 3, offset) }
func (b *BodyBuilder) I32Load8U(offset uint32) *BodyBuilder    { return b.memArg(OpI32Load8U, 0, offset) }
func (b *BodyBuilder) I32Load16U(offset uint32) *BodyBuilder   { return b.memArg(OpI32Load16U, 1, offset) }
func (b *BodyBuilder) I32Store(offset uint32) *BodyBuilder     { return b.memArg(OpI32Store, 2, offset) }
func (b *BodyBuilder) I64Store(offset uint32) *BodyBuilder     { return b.memArg(OpI64Store, 3, offset) }
func (b *BodyBuilder) I32Store8(offset uint32) *BodyBuilder    { return b.memArg(OpI32Store8, 0, offset) }
func (b *BodyBuilder) I32Store16(offset uint32) *BodyBuilder   { return b.memArg(OpI32Store16, 1, offset) }

func (b *BodyBuilder) Plain(op byte) *BodyBuilder { return b.op(op) }
