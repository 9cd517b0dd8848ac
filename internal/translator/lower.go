package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// translateBody lowers this function's flat Move bytecode into ft.body: it
// partitions the code into basic blocks, plans the block/loop scopes
// reloop.go's stackifier needs to express every branch structurally, then
// walks the blocks in program order emitting scope boundaries interleaved
// with straight-line opcode dispatch. Branch/BrTrue/BrFalse
// terminators are handled here directly, since they need the open scope
// stack that per-opcode dispatch (lowerInstr) does not otherwise see.
func (ft *funcTranslator) translateBody(returnTypes []ir.Type) error {
	ft.returns = returnTypes
	ft.localCell = make([]uint32, len(ft.moveLocalTypes))
	ft.emitLocalPrologue()

	if ft.def.Code == nil {
		return fmt.Errorf("%s: function has no code unit: %w", ft.def.Name, ErrUnsupportedOpcode)
	}
	code := ft.def.Code.Instructions
	blocks, leaderToBlock := buildBasicBlocks(code)
	scopes := planScopes(blocks, code, leaderToBlock)
	stack := &scopeStack{}

	for bi, blk := range blocks {
		emitScopeCloses(ft.body, stack, bi)
		emitScopeOpens(ft.body, stack, scopes, bi)

		term := classifyTerminator(blk.lastOp(code).Op)
		instrEnd := blk.end
		if term == termBranch || term == termBrTrue || term == termBrFalse {
			instrEnd = blk.end - 1
		}
		for ii := blk.start; ii < instrEnd; ii++ {
			if err := ft.lowerInstr(code[ii]); err != nil {
				return err
			}
		}

		switch term {
		case termBranch:
			target := leaderToBlock[int(blk.lastOp(code).Operand)]
			depth, err := stack.depthFor(target)
			if err != nil {
				return err
			}
			ft.body.Br(depth)
		case termBrTrue:
			if _, err := ft.ts.popExpect(ir.KindBool); err != nil {
				return err
			}
			target := leaderToBlock[int(blk.lastOp(code).Operand)]
			depth, err := stack.depthFor(target)
			if err != nil {
				return err
			}
			ft.body.BrIf(depth)
		case termBrFalse:
			if _, err := ft.ts.popExpect(ir.KindBool); err != nil {
				return err
			}
			ft.body.Plain(wasmmod.OpI32Eqz)
			target := leaderToBlock[int(blk.lastOp(code).Operand)]
			depth, err := stack.depthFor(target)
			if err != nil {
				return err
			}
			ft.body.BrIf(depth)
		}
	}
	emitScopeCloses(ft.body, stack, len(blocks))
	return nil
}

// emitLocalPrologue allocates every Move local's indirection cell up
// front: a fresh heap buffer sized to the local's stack width, addressed by
// the wasm local reserved for it (ft.localCell[i]). Incoming parameters are
// additionally stored into their cell immediately, since the raw parameter
// value only exists in the function's own wasm param slot, never in
// moveLocalTypes' cell space directly. The indirection applies uniformly
// to every local rather than only borrowed ones, so BorrowLoc/MutBorrowLoc
// never need to special-case an address-taken set.
func (ft *funcTranslator) emitLocalPrologue() {
	for i, t := range ft.moveLocalTypes {
		size := t.StackSize()
		var cell uint32
		if i < ft.numParams {
			cell = ft.alloc(wasmmod.ValueTypeI32)
		} else {
			cell = uint32(i)
		}
		ft.localCell[i] = cell
		ft.body.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(cell)
		if i < ft.numParams {
			ft.body.LocalGet(cell).LocalGet(uint32(i))
			if size == 8 {
				ft.body.I64Store(0)
			} else {
				ft.body.I32Store(0)
			}
		}
	}
}

// lowerInstr dispatches one Move instruction, popping/pushing ft.ts to
// track its operand-stack effect and emitting the matching wasm
// instruction sequence into ft.body. Branch-family opcodes are handled by
// translateBody directly, not here.
func (ft *funcTranslator) lowerInstr(instr movebin.Bytecode) error {
	b := ft.body
	switch instr.Op {
	case movebin.OpNop:
		b.Nop()
	case movebin.OpPop:
		if _, err := ft.ts.pop(); err != nil {
			return err
		}
		b.Drop()
	case movebin.OpRet:
		if err := ft.ts.atExit(ft.returns); err != nil {
			return err
		}
		b.Return()
		ft.ts.clear()
	case movebin.OpAbort:
		if _, err := ft.ts.popExpect(ir.KindU64); err != nil {
			return err
		}
		b.Drop()
		b.Unreachable()
		ft.ts.clear()

	case movebin.OpLdTrue:
		b.I32Const(1)
		ft.ts.push(ir.Bool())
	case movebin.OpLdFalse:
		b.I32Const(0)
		ft.ts.push(ir.Bool())
	case movebin.OpLdU8:
		b.I32Const(int32(instr.Operand))
		ft.ts.push(ir.U8())
	case movebin.OpLdU16:
		b.I32Const(int32(instr.Operand))
		ft.ts.push(ir.U16())
	case movebin.OpLdU32:
		b.I32Const(int32(instr.Operand))
		ft.ts.push(ir.U32())
	case movebin.OpLdU64:
		b.I64Const(int64(instr.Operand))
		ft.ts.push(ir.U64())
	case movebin.OpLdU128:
		return ft.lowerLdWide(instr, 16, ir.U128())
	case movebin.OpLdU256:
		return ft.lowerLdWide(instr, 32, ir.U256())
	case movebin.OpLdConst:
		return ft.lowerLdConst(instr)

	case movebin.OpMoveLoc, movebin.OpCopyLoc:
		return ft.lowerLoadLoc(instr)
	case movebin.OpStLoc:
		return ft.lowerStoreLoc(instr)
	case movebin.OpBorrowLoc, movebin.OpMutBorrowLoc:
		return ft.lowerBorrowLoc(instr)

	case movebin.OpAdd, movebin.OpSub, movebin.OpMul, movebin.OpDiv, movebin.OpMod:
		return ft.lowerArith(instr.Op)
	case movebin.OpBitAnd, movebin.OpBitOr, movebin.OpXor:
		return ft.lowerBitwise(instr.Op)
	case movebin.OpShl, movebin.OpShr:
		return ft.lowerShift(instr.Op)
	case movebin.OpNot:
		t, err := ft.ts.popExpect(ir.KindBool)
		if err != nil {
			return err
		}
		b.Plain(wasmmod.OpI32Eqz)
		ft.ts.push(t)

	case movebin.OpEq, movebin.OpNeq:
		return ft.lowerEquality(instr.Op)
	case movebin.OpLt, movebin.OpGt, movebin.OpLe, movebin.OpGe:
		return ft.lowerComparison(instr.Op)

	case movebin.OpCastU8:
		return ft.lowerCast(ir.U8())
	case movebin.OpCastU16:
		return ft.lowerCast(ir.U16())
	case movebin.OpCastU32:
		return ft.lowerCast(ir.U32())
	case movebin.OpCastU64:
		return ft.lowerCast(ir.U64())
	case movebin.OpCastU128:
		return ft.lowerCast(ir.U128())
	case movebin.OpCastU256:
		return ft.lowerCast(ir.U256())

	case movebin.OpPack:
		return ft.lowerPack(instr, nil)
	case movebin.OpPackGeneric:
		return ft.lowerPack(instr, ft.lowerTypeArgs(instr.TypeArgs))
	case movebin.OpUnpack:
		return ft.lowerUnpack(instr, nil)
	case movebin.OpUnpackGeneric:
		return ft.lowerUnpack(instr, ft.lowerTypeArgs(instr.TypeArgs))
	case movebin.OpBorrowField, movebin.OpMutBorrowField:
		return ft.lowerBorrowField(instr, nil)
	case movebin.OpBorrowFieldGeneric, movebin.OpMutBorrowFieldGeneric:
		return ft.lowerBorrowField(instr, ft.lowerTypeArgs(instr.TypeArgs))

	case movebin.OpPackVariant, movebin.OpPackVariantGeneric:
		typeArgs := ft.typeArgsFor(instr.Op, instr.TypeArgs)
		return ft.lowerPackVariant(instr, typeArgs)
	case movebin.OpUnpackVariant, movebin.OpUnpackVariantGeneric:
		typeArgs := ft.typeArgsFor(instr.Op, instr.TypeArgs)
		return ft.lowerUnpackVariant(instr, typeArgs)
	case movebin.OpTestVariant:
		return ft.lowerTestVariant(instr)

	case movebin.OpVecPack:
		return ft.lowerVecPack(instr)
	case movebin.OpVecLen:
		return ft.lowerVecLen()
	case movebin.OpVecImmBorrow, movebin.OpVecMutBorrow:
		return ft.lowerVecBorrow(instr)
	case movebin.OpVecPush:
		return ft.lowerVecPush(instr)
	case movebin.OpVecPop:
		return ft.lowerVecPop(instr)
	case movebin.OpVecSwap:
		return ft.lowerVecSwap()
	case movebin.OpVecUnpack:
		return ft.lowerVecUnpack(instr)

	case movebin.OpReadRef:
		ref, err := ft.ts.pop()
		if err != nil {
			return err
		}
		inner := ref.Inner()
		if inner.StackSize() == 8 {
			b.I64Load(0)
		} else {
			b.I32Load(0)
		}
		ft.ts.push(inner)
	case movebin.OpWriteRef:
		val, err := ft.ts.pop()
		if err != nil {
			return err
		}
		if _, err := ft.ts.pop(); err != nil { // ref, already matching addr+value order on the wasm stack
			return err
		}
		if val.StackSize() == 8 {
			b.I64Store(0)
		} else {
			b.I32Store(0)
		}
	case movebin.OpFreezeRef:
		t, err := ft.ts.popExpect(ir.KindMutRef)
		if err != nil {
			return err
		}
		ft.ts.push(ir.Ref(t.Inner()))

	case movebin.OpCall:
		return ft.lowerCall(instr, nil)
	case movebin.OpCallGeneric:
		return ft.lowerCall(instr, ft.lowerTypeArgs(instr.TypeArgs))

	default:
		return fmt.Errorf("%s: opcode %d: %w", ft.def.Name, instr.Op, ErrUnsupportedOpcode)
	}
	return nil
}

// typeArgsFor returns the lowered, substituted type arguments for a
// PackVariant/UnpackVariant opcode pair, nil for the non-generic member.
func (ft *funcTranslator) typeArgsFor(op movebin.Opcode, toks []movebin.SignatureToken) []ir.Type {
	switch op {
	case movebin.OpPackVariantGeneric, movebin.OpUnpackVariantGeneric:
		return ft.lowerTypeArgs(toks)
	default:
		return nil
	}
}

// lowerTypeArgs lowers a generic instruction's inline type-argument tokens
// and substitutes this instantiation's own type arguments into them, so a
// nested generic call inside a generic function resolves against the
// caller's concrete types.
func (ft *funcTranslator) lowerTypeArgs(toks []movebin.SignatureToken) []ir.Type {
	out := make([]ir.Type, len(toks))
	for i, tok := range toks {
		out[i] = ft.sub(ft.tr.ctx.LowerToken(tok))
	}
	return out
}

func decodeLE(bs []byte) uint64 {
	var v uint64
	for i, byt := range bs {
		if i >= 8 {
			break
		}
		v |= uint64(byt) << (8 * uint(i))
	}
	return v
}

func bitsOf(k ir.Kind) int {
	switch k {
	case ir.KindBool, ir.KindU8:
		return 8
	case ir.KindU16:
		return 16
	case ir.KindU32:
		return 32
	case ir.KindU64:
		return 64
	case ir.KindU128:
		return 128
	case ir.KindU256:
		return 256
	default:
		return 0
	}
}

// lowerLdWide materializes a U128/U256 literal from the constant pool into
// a fresh heap buffer, little-endian, eight bytes at a time.
func (ft *funcTranslator) lowerLdWide(instr movebin.Bytecode, size int, t ir.Type) error {
	entry, err := ft.tr.ctx.Constant(movebin.ConstantHandle(instr.Operand))
	if err != nil {
		return err
	}
	ptr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(ptr)
	for lane := 0; lane*8 < size; lane++ {
		lo := lane * 8
		hi := lo + 8
		if hi > len(entry.Bytes) {
			hi = len(entry.Bytes)
		}
		var chunk []byte
		if lo < len(entry.Bytes) {
			chunk = entry.Bytes[lo:hi]
		}
		ft.body.LocalGet(ptr).I64Const(int64(decodeLE(chunk))).I64Store(uint32(lane * 8))
	}
	ft.body.LocalGet(ptr)
	ft.ts.push(t)
	return nil
}

// lowerLdConst loads a constant-pool entry whose type is carried alongside
// its bytes, covering the scalar/address/byte-vector constants Move's
// general LdConst opcode can name.
func (ft *funcTranslator) lowerLdConst(instr movebin.Bytecode) error {
	entry, err := ft.tr.ctx.Constant(movebin.ConstantHandle(instr.Operand))
	if err != nil {
		return err
	}
	t := ft.tr.ctx.LowerToken(entry.Type)
	b := ft.body
	switch t.Kind() {
	case ir.KindBool:
		v := int32(0)
		if len(entry.Bytes) > 0 && entry.Bytes[0] != 0 {
			v = 1
		}
		b.I32Const(v)
		ft.ts.push(ir.Bool())
	case ir.KindU8, ir.KindU16, ir.KindU32:
		b.I32Const(int32(decodeLE(entry.Bytes)))
		ft.ts.push(t)
	case ir.KindU64:
		b.I64Const(int64(decodeLE(entry.Bytes)))
		ft.ts.push(t)
	case ir.KindU128:
		return ft.lowerLdWide(instr, 16, ir.U128())
	case ir.KindU256:
		return ft.lowerLdWide(instr, 32, ir.U256())
	case ir.KindAddress:
		ptr := ft.alloc(wasmmod.ValueTypeI32)
		b.I32Const(32).Call(ft.allocFn()).LocalSet(ptr)
		for i := 0; i < 12; i++ {
			b.LocalGet(ptr).I32Const(0).I32Store8(uint32(i))
		}
		for i := 0; i < 20 && i < len(entry.Bytes); i++ {
			b.LocalGet(ptr).I32Const(int32(entry.Bytes[i])).I32Store8(uint32(12 + i))
		}
		b.LocalGet(ptr)
		ft.ts.push(ir.Address())
	case ir.KindVector:
		return ft.lowerLdVectorConst(entry, t)
	default:
		return fmt.Errorf("%s: constant of type %s: %w", ft.def.Name, t.Kind(), ErrUnsupportedOpcode)
	}
	return nil
}

// lowerLdVectorConst materializes a byte-string constant (vector<u8>, the
// only constant-pool vector literal Move's compiler emits) as an inline
// vector value.
func (ft *funcTranslator) lowerLdVectorConst(entry movebin.ConstantPoolEntry, t ir.Type) error {
	if t.Inner().Kind() != ir.KindU8 {
		return fmt.Errorf("%s: vector constant of element type %s: %w", ft.def.Name, t.Inner().Kind(), ErrUnsupportedOpcode)
	}
	n := len(entry.Bytes)
	const stride = 4
	ptr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.I32Const(int32(8 + n*stride)).Call(ft.allocFn()).LocalSet(ptr)
	ft.body.LocalGet(ptr).I32Const(int32(n)).I32Store(0)
	ft.body.LocalGet(ptr).I32Const(int32(n)).I32Store(4)
	for i, byt := range entry.Bytes {
		ft.body.LocalGet(ptr).I32Const(int32(byt)).I32Store(uint32(8 + i*stride))
	}
	ft.body.LocalGet(ptr)
	ft.ts.push(t)
	return nil
}

// lowerLoadLoc handles both MoveLoc and CopyLoc: both dereference the
// local's cell and push its value. They differ only in Move's ownership
// bookkeeping, which has no separate representation once every value is
// either a plain register value or a pointer.
func (ft *funcTranslator) lowerLoadLoc(instr movebin.Bytecode) error {
	i := int(instr.Operand)
	t := ft.moveLocalTypes[i]
	ft.body.LocalGet(ft.localCell[i])
	if t.StackSize() == 8 {
		ft.body.I64Load(0)
	} else {
		ft.body.I32Load(0)
	}
	ft.ts.push(t)
	return nil
}

// lowerStoreLoc pops a value and stores it into the local's cell.
func (ft *funcTranslator) lowerStoreLoc(instr movebin.Bytecode) error {
	i := int(instr.Operand)
	t, err := ft.ts.pop()
	if err != nil {
		return err
	}
	valLocal := ft.alloc(wasmValueType(t))
	ft.body.LocalSet(valLocal)
	ft.body.LocalGet(ft.localCell[i]).LocalGet(valLocal)
	if t.StackSize() == 8 {
		ft.body.I64Store(0)
	} else {
		ft.body.I32Store(0)
	}
	return nil
}

// lowerBorrowLoc pushes the local's cell address directly: the cell's
// address is exactly what a Ref/MutRef to that local is, a borrow sharing
// the same encoding as a pointer to its referent.
func (ft *funcTranslator) lowerBorrowLoc(instr movebin.Bytecode) error {
	i := int(instr.Operand)
	t := ft.moveLocalTypes[i]
	ft.body.LocalGet(ft.localCell[i])
	if instr.Op == movebin.OpMutBorrowLoc {
		ft.ts.push(ir.MutRef(t))
	} else {
		ft.ts.push(ir.Ref(t))
	}
	return nil
}

// lowerCall resolves (monomorphizing on first reference) and invokes a
// plain or generic function call. Arguments are already on the wasm
// operand stack in declaration order from the preceding opcodes, matching
// the callee's parameter order exactly, so no reshuffling is needed.
func (ft *funcTranslator) lowerCall(instr movebin.Bytecode, typeArgs []ir.Type) error {
	fnIdx := movebin.Handle(instr.Operand)
	def, err := ft.tr.ctx.FunctionByIndex(fnIdx)
	if err != nil {
		return err
	}
	params := substituteAll(ft.tr.ctx.LowerSignature(def.Parameters), typeArgs)
	returns := substituteAll(ft.tr.ctx.LowerSignature(def.Returns), typeArgs)
	for range params {
		if _, err := ft.ts.pop(); err != nil {
			return err
		}
	}
	wasmIdx, err := ft.tr.Translate(fnIdx, typeArgs)
	if err != nil {
		return err
	}
	ft.body.Call(wasmIdx)
	for _, rt := range returns {
		ft.ts.push(rt)
	}
	return nil
}
