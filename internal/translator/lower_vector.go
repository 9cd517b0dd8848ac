package translator

import (
	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

const vecHeaderSize = 8

// vecElementStride mirrors internal/runtime's own elementStride rule: 4
// bytes for any heap-resident element or narrow scalar, 8 for a u64.
func vecElementStride(t ir.Type) int {
	if t.IsHeapResident() {
		return 4
	}
	return t.StackSize()
}

// lowerVecPack assembles count already-pushed element values (last on top,
// Move's own push order) into a freshly allocated vector buffer, elements
// stored by value at a fixed stride — distinct from struct fields, whose
// stack-resident values go through an indirection cell.
func (ft *funcTranslator) lowerVecPack(instr movebin.Bytecode) error {
	elem := ft.sub(ft.tr.ctx.LowerToken(instr.TypeArgs[0]))
	n := int(instr.Operand)
	stride := vecElementStride(elem)

	valLocals := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		t, err := ft.ts.pop()
		if err != nil {
			return err
		}
		valLocals[i] = ft.alloc(wasmValueType(t))
		ft.body.LocalSet(valLocals[i])
	}

	vecPtr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.I32Const(int32(vecHeaderSize + n*stride)).Call(ft.allocFn()).LocalSet(vecPtr)
	ft.body.LocalGet(vecPtr).I32Const(int32(n)).I32Store(0)
	ft.body.LocalGet(vecPtr).I32Const(int32(n)).I32Store(4)
	for i := 0; i < n; i++ {
		off := uint32(vecHeaderSize + i*stride)
		ft.body.LocalGet(vecPtr).LocalGet(valLocals[i])
		if stride == 8 {
			ft.body.I64Store(off)
		} else {
			ft.body.I32Store(off)
		}
	}
	ft.body.LocalGet(vecPtr)
	ft.ts.push(ir.Vector(elem))
	return nil
}

// lowerVecLen reads the length header field of the vector pointer already
// on the wasm stack.
func (ft *funcTranslator) lowerVecLen() error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	ft.body.I32Load(0)
	ft.ts.push(ir.U32())
	return nil
}

// lowerVecBorrow handles VecImmBorrow/VecMutBorrow: bounds-checks and
// returns the element slot's address, which is exactly Ref(elem)/MutRef(elem)
// under the uniform pointer-to-inner encoding borrows use throughout.
func (ft *funcTranslator) lowerVecBorrow(instr movebin.Bytecode) error {
	idxT, err := ft.ts.pop()
	if err != nil {
		return err
	}
	refT, err := ft.ts.pop()
	if err != nil {
		return err
	}
	elem := refT.Inner()
	if idxT.StackSize() == 8 {
		ft.body.Plain(wasmmod.OpI32WrapI64)
	}
	ft.body.Call(ft.tr.rt.GetGeneric(runtime.NameVecBorrow, elem))
	if instr.Op == movebin.OpVecMutBorrow {
		ft.ts.push(ir.MutRef(elem))
	} else {
		ft.ts.push(ir.Ref(elem))
	}
	return nil
}

// lowerVecPush handles VecPush, whose operand is a MutRef(Vector(elem)) —
// a cell/field address holding the vector's own pointer, not the vector
// pointer by value, since growing the vector means replacing that pointer
// everywhere it's held. This always reallocates to exactly oldLen+1
// capacity (no amortized growth), the simplest policy that needs no
// dedicated "vector grow" runtime helper.
func (ft *funcTranslator) lowerVecPush(instr movebin.Bytecode) error {
	valT, err := ft.ts.pop()
	if err != nil {
		return err
	}
	if _, err := ft.ts.pop(); err != nil { // MutRef(Vector(elem))
		return err
	}
	elem := valT
	stride := vecElementStride(elem)
	b := ft.body

	refL := ft.alloc(wasmmod.ValueTypeI32)
	valL := ft.alloc(wasmValueType(valT))
	b.LocalSet(valL)
	b.LocalSet(refL)

	oldVecL := ft.alloc(wasmmod.ValueTypeI32)
	b.LocalGet(refL).I32Load(0).LocalSet(oldVecL)
	oldLenL := ft.alloc(wasmmod.ValueTypeI32)
	b.LocalGet(oldVecL).I32Load(0).LocalSet(oldLenL)

	newVecL := ft.alloc(wasmmod.ValueTypeI32)
	b.LocalGet(oldLenL).I32Const(1).Plain(wasmmod.OpI32Add)
	newLenL := ft.alloc(wasmmod.ValueTypeI32)
	b.LocalSet(newLenL)
	b.I32Const(int32(vecHeaderSize)).LocalGet(newLenL).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	b.Call(ft.allocFn()).LocalSet(newVecL)
	b.LocalGet(newVecL).LocalGet(newLenL).I32Store(0)
	b.LocalGet(newVecL).LocalGet(newLenL).I32Store(4)

	iL := ft.alloc(wasmmod.ValueTypeI32)
	b.I32Const(0).LocalSet(iL)
	b.Loop(wasmmod.VoidBlock)
	b.LocalGet(iL).LocalGet(oldLenL).Plain(wasmmod.OpI32LtU)
	b.If(wasmmod.VoidBlock)
	srcAddr := func() {
		b.LocalGet(oldVecL).I32Const(int32(vecHeaderSize)).Plain(wasmmod.OpI32Add)
		b.LocalGet(iL).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	}
	dstAddr := func() {
		b.LocalGet(newVecL).I32Const(int32(vecHeaderSize)).Plain(wasmmod.OpI32Add)
		b.LocalGet(iL).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	}
	dstAddr()
	srcAddr()
	if stride == 8 {
		b.I64Load(0)
		b.I64Store(0)
	} else {
		b.I32Load(0)
		b.I32Store(0)
	}
	b.LocalGet(iL).I32Const(1).Plain(wasmmod.OpI32Add).LocalSet(iL)
	b.Br(1)
	b.End()
	b.End() // loop

	b.LocalGet(newVecL).I32Const(int32(vecHeaderSize)).Plain(wasmmod.OpI32Add)
	b.LocalGet(oldLenL).I32Const(int32(stride)).Plain(wasmmod.OpI32Mul).Plain(wasmmod.OpI32Add)
	b.LocalGet(valL)
	if stride == 8 {
		b.I64Store(0)
	} else {
		b.I32Store(0)
	}

	b.LocalGet(refL).LocalGet(newVecL).I32Store(0)
	return nil
}

// lowerVecPop pops a MutRef(Vector(elem)), dereferences it, and delegates
// to the generic vec_pop_back helper, which shrinks in place (no
// reallocation, unlike Push).
func (ft *funcTranslator) lowerVecPop(instr movebin.Bytecode) error {
	refT, err := ft.ts.pop()
	if err != nil {
		return err
	}
	elem := refT.Inner()
	ft.body.I32Load(0).Call(ft.tr.rt.GetGeneric(runtime.NameVecPopBack, elem))
	ft.ts.push(elem)
	return nil
}

// lowerVecSwap pops j, i, and a MutRef(Vector(elem)) (Move's push order,
// so j is topmost), dereferences the ref, and calls the shared vec_swap
// helper, dropping its (unchanged) returned vector pointer.
func (ft *funcTranslator) lowerVecSwap() error {
	if _, err := ft.ts.popExpect(ir.KindU64); err != nil {
		return err
	}
	if _, err := ft.ts.popExpect(ir.KindU64); err != nil {
		return err
	}
	if _, err := ft.ts.pop(); err != nil { // MutRef(Vector(elem))
		return err
	}
	jL := ft.alloc(wasmmod.ValueTypeI32)
	iL := ft.alloc(wasmmod.ValueTypeI32)
	refL := ft.alloc(wasmmod.ValueTypeI32)
	b := ft.body
	b.Plain(wasmmod.OpI32WrapI64).LocalSet(jL)
	b.Plain(wasmmod.OpI32WrapI64).LocalSet(iL)
	b.LocalSet(refL)
	b.LocalGet(refL).I32Load(0).LocalGet(iL).LocalGet(jL)
	b.Call(ft.tr.rt.Get(runtime.NameVecSwap))
	b.Drop()
	return nil
}

// lowerVecUnpack pops a vector value by value (consuming it entirely, like
// struct Unpack) and pushes each element in forward index order.
func (ft *funcTranslator) lowerVecUnpack(instr movebin.Bytecode) error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	elem := ft.sub(ft.tr.ctx.LowerToken(instr.TypeArgs[0]))
	n := int(instr.Operand)
	stride := vecElementStride(elem)

	vecL := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.LocalSet(vecL)
	for i := 0; i < n; i++ {
		off := uint32(vecHeaderSize + i*stride)
		ft.body.LocalGet(vecL)
		if stride == 8 {
			ft.body.I64Load(off)
		} else {
			ft.body.I32Load(off)
		}
		ft.ts.push(elem)
	}
	return nil
}
