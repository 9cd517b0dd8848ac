package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// lowerArith dispatches Add/Sub/Mul/Div/Mod by operand width. The two
// operands already sit on the wasm stack in Move's
// own push order (lhs below rhs), which for every primitive here — native
// op, checked-arithmetic helper, or wide helper — is exactly the argument
// order the callee expects, so no locals are needed to reorder them.
func (ft *funcTranslator) lowerArith(op movebin.Opcode) error {
	rhs, err := ft.ts.pop()
	if err != nil {
		return err
	}
	lhs, err := ft.ts.pop()
	if err != nil {
		return err
	}
	if !ir.Equal(rhs, lhs) {
		return fmt.Errorf("translator: %s: arithmetic on mismatched operand types %s/%s: %w", ft.def.Name, lhs.Kind(), rhs.Kind(), ErrTypeStackMismatch)
	}
	b := ft.body
	switch lhs.Kind() {
	case ir.KindU8, ir.KindU16:
		bits := bitsOf(lhs.Kind())
		switch op {
		case movebin.OpAdd:
			b.Plain(wasmmod.OpI32Add)
			ft.emitNarrowRangeCheck32(bits)
		case movebin.OpSub:
			b.Call(ft.tr.rt.Get(runtime.NameI32SubChecked))
		case movebin.OpMul:
			b.Plain(wasmmod.OpI32Mul)
			ft.emitNarrowRangeCheck32(bits)
		case movebin.OpDiv:
			b.Plain(wasmmod.OpI32DivU)
		case movebin.OpMod:
			b.Plain(wasmmod.OpI32RemU)
		}
	case ir.KindU32:
		switch op {
		case movebin.OpAdd:
			b.Call(ft.tr.rt.Get(runtime.NameI32AddChecked))
		case movebin.OpSub:
			b.Call(ft.tr.rt.Get(runtime.NameI32SubChecked))
		case movebin.OpMul:
			b.Call(ft.tr.rt.Get(runtime.NameI32MulChecked))
		case movebin.OpDiv:
			b.Plain(wasmmod.OpI32DivU)
		case movebin.OpMod:
			b.Plain(wasmmod.OpI32RemU)
		}
	case ir.KindU64:
		switch op {
		case movebin.OpAdd:
			b.Call(ft.tr.rt.Get(runtime.NameI64AddChecked))
		case movebin.OpSub:
			b.Call(ft.tr.rt.Get(runtime.NameI64SubChecked))
		case movebin.OpMul:
			b.Call(ft.tr.rt.Get(runtime.NameI64MulChecked))
		case movebin.OpDiv:
			b.Plain(wasmmod.OpI64DivU)
		case movebin.OpMod:
			b.Plain(wasmmod.OpI64RemU)
		}
	case ir.KindU128, ir.KindU256:
		return ft.lowerWideArith(op, lhs)
	default:
		return fmt.Errorf("translator: %s: arithmetic on %s: %w", ft.def.Name, lhs.Kind(), ErrUnsupportedOpcode)
	}
	ft.ts.push(lhs)
	return nil
}

// emitNarrowRangeCheck32 range-checks an i32 result already on the stack
// against an 8/16-bit width by widening to i64 (the range-check helpers
// are shared with the cast opcodes and operate at i64 width), trapping via
// u8_range_check/u16_range_check, then wrapping back down.
func (ft *funcTranslator) emitNarrowRangeCheck32(bits int) {
	name := runtime.NameU8RangeCheck
	if bits == 16 {
		name = runtime.NameU16RangeCheck
	}
	ft.body.Plain(wasmmod.OpI64ExtendI32U).Call(ft.tr.rt.Get(name)).Plain(wasmmod.OpI32WrapI64)
}

// lowerWideArith handles U128/U256 Add/Sub/Mul/Div/Mod via the wide
// runtime helpers. Mul's overflow trap is this translator's
// responsibility (per internal/runtime's own division of labor,
// documented on buildWideMul): dividing the truncated product back by a
// nonzero lhs must recover rhs exactly, or the true product didn't fit.
func (ft *funcTranslator) lowerWideArith(op movebin.Opcode, t ir.Type) error {
	b := ft.body
	wide := 16
	addName, subName, mulName, divmodName := runtime.NameU128Add, runtime.NameU128Sub, runtime.NameU128Mul, runtime.NameU128DivMod
	if t.Kind() == ir.KindU256 {
		wide = 32
		addName, subName, mulName, divmodName = runtime.NameU256Add, runtime.NameU256Sub, runtime.NameU256Mul, runtime.NameU256DivMod
	}
	switch op {
	case movebin.OpAdd:
		b.Call(ft.tr.rt.Get(addName))
	case movebin.OpSub:
		b.Call(ft.tr.rt.Get(subName))
	case movebin.OpMul:
		lhsL := ft.alloc(wasmmod.ValueTypeI32)
		rhsL := ft.alloc(wasmmod.ValueTypeI32)
		prodL := ft.alloc(wasmmod.ValueTypeI32)
		b.LocalSet(rhsL)
		b.LocalSet(lhsL)
		b.LocalGet(lhsL).LocalGet(rhsL).Call(ft.tr.rt.Get(mulName)).LocalSet(prodL)
		// only verify the product when lhs is nonzero (division by zero
		// would otherwise trap in the divmod helper, and 0*rhs can never
		// overflow); "any lane of lhs nonzero" is tested lane-by-lane
		// inline rather than via a named helper, since the registry only
		// has 32- and 256-byte all-zero builders and this buffer may be 16
		// bytes wide.
		b.I32Const(0)
		for lane := 0; lane*8 < wide; lane++ {
			b.LocalGet(lhsL).I64Load(uint32(lane * 8)).Plain(wasmmod.OpI64Eqz).Plain(wasmmod.OpI32Eqz)
			b.Plain(wasmmod.OpI32Or)
		}
		b.If(wasmmod.VoidBlock)
		qL := ft.alloc(wasmmod.ValueTypeI32)
		rL := ft.alloc(wasmmod.ValueTypeI32)
		b.LocalGet(prodL).LocalGet(lhsL).Call(ft.tr.rt.Get(divmodName))
		b.LocalSet(rL)
		b.LocalSet(qL)
		b.LocalGet(qL).LocalGet(rhsL).Call(ft.tr.rt.GetGeneric(runtime.NameHeapEqual, t))
		b.Plain(wasmmod.OpI32Eqz)
		b.If(wasmmod.VoidBlock)
		b.Unreachable()
		b.End()
		b.End()
		b.LocalGet(prodL)
	case movebin.OpDiv:
		qL := ft.alloc(wasmmod.ValueTypeI32)
		rL := ft.alloc(wasmmod.ValueTypeI32)
		b.Call(ft.tr.rt.Get(divmodName))
		b.LocalSet(rL)
		b.LocalSet(qL)
		b.LocalGet(qL)
	case movebin.OpMod:
		qL := ft.alloc(wasmmod.ValueTypeI32)
		rL := ft.alloc(wasmmod.ValueTypeI32)
		b.Call(ft.tr.rt.Get(divmodName))
		b.LocalSet(rL)
		b.LocalSet(qL)
		b.LocalGet(rL)
	}
	ft.ts.push(t)
	return nil
}

// lowerBitwise handles BitAnd/BitOr/Xor, restricted by Move's verifier to
// u8..u64 (no wide-bitwise runtime helper exists, since the bytecode
// format never needs one).
func (ft *funcTranslator) lowerBitwise(op movebin.Opcode) error {
	rhs, err := ft.ts.pop()
	if err != nil {
		return err
	}
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	wide := rhs.StackSize() == 8
	var wasmOp byte
	switch {
	case op == movebin.OpBitAnd && !wide:
		wasmOp = wasmmod.OpI32And
	case op == movebin.OpBitAnd && wide:
		wasmOp = wasmmod.OpI64And
	case op == movebin.OpBitOr && !wide:
		wasmOp = wasmmod.OpI32Or
	case op == movebin.OpBitOr && wide:
		wasmOp = wasmmod.OpI64Or
	case op == movebin.OpXor && !wide:
		wasmOp = wasmmod.OpI32Xor
	default:
		wasmOp = wasmmod.OpI64Xor
	}
	ft.body.Plain(wasmOp)
	ft.ts.push(rhs)
	return nil
}

// lowerShift handles Shl/Shr. The shift amount (always a u8 on Move's
// operand stack) arrives as an i32 and is extended to i64 for a u64
// operand, or passed straight through to the wide helpers, which take
// their shift amount as a plain i32 regardless of buffer width.
func (ft *funcTranslator) lowerShift(op movebin.Opcode) error {
	if _, err := ft.ts.popExpect(ir.KindU8); err != nil {
		return err
	}
	t, err := ft.ts.pop()
	if err != nil {
		return err
	}
	b := ft.body
	switch t.Kind() {
	case ir.KindU8, ir.KindU16, ir.KindU32:
		if op == movebin.OpShl {
			b.Plain(wasmmod.OpI32Shl)
		} else {
			b.Plain(wasmmod.OpI32ShrU)
		}
	case ir.KindU64:
		b.Plain(wasmmod.OpI64ExtendI32U)
		if op == movebin.OpShl {
			b.Plain(wasmmod.OpI64Shl)
		} else {
			b.Plain(wasmmod.OpI64ShrU)
		}
	case ir.KindU128, ir.KindU256:
		name := runtime.NameShl128
		switch {
		case op == movebin.OpShl && t.Kind() == ir.KindU256:
			name = runtime.NameShl256
		case op == movebin.OpShr && t.Kind() == ir.KindU128:
			name = runtime.NameShr128
		case op == movebin.OpShr && t.Kind() == ir.KindU256:
			name = runtime.NameShr256
		}
		b.Call(ft.tr.rt.Get(name))
	default:
		return fmt.Errorf("translator: %s: shift on %s: %w", ft.def.Name, t.Kind(), ErrUnsupportedOpcode)
	}
	ft.ts.push(t)
	return nil
}

// lowerEquality handles Eq/Neq, dispatching on operand kind: native
// comparison for scalars, heap_eq<T>/vec_heap_eq<T> for fixed-width heap
// types and vectors, and an inline recursive comparison (emitStructuralEqual)
// for structs/enums, which need to pop both operands into locals since
// they're referenced field-by-field rather than consumed once.
func (ft *funcTranslator) lowerEquality(op movebin.Opcode) error {
	_, err := ft.ts.pop()
	if err != nil {
		return err
	}
	lhs, err := ft.ts.pop()
	if err != nil {
		return err
	}
	b := ft.body
	switch {
	case lhs.Kind() == ir.KindStruct || lhs.Kind() == ir.KindGenericStructInstance || lhs.Kind() == ir.KindEnum:
		a := ft.alloc(wasmmod.ValueTypeI32)
		bLocal := ft.alloc(wasmmod.ValueTypeI32)
		b.LocalSet(bLocal)
		b.LocalSet(a)
		ft.emitStructuralEqual(lhs, a, bLocal)
	case lhs.Kind() == ir.KindVector:
		b.Call(ft.tr.rt.GetGeneric(runtime.NameVecHeapEq, lhs.Inner()))
	case lhs.IsHeapResident():
		b.Call(ft.tr.rt.GetGeneric(runtime.NameHeapEqual, lhs))
	case lhs.StackSize() == 8:
		b.Plain(wasmmod.OpI64Eq)
	default:
		b.Plain(wasmmod.OpI32Eq)
	}
	if op == movebin.OpNeq {
		b.Plain(wasmmod.OpI32Eqz)
	}
	ft.ts.push(ir.Bool())
	return nil
}

// lowerComparison handles Lt/Gt/Le/Ge. Scalars use the matching native
// unsigned comparison directly; U128/U256 pop both operands into locals
// and derive all four orderings from the single Lt primitive
// (Gt(a,b)=Lt(b,a), Le(a,b)=!Gt(a,b), Ge(a,b)=!Lt(a,b)).
func (ft *funcTranslator) lowerComparison(op movebin.Opcode) error {
	rhs, err := ft.ts.pop()
	if err != nil {
		return err
	}
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	b := ft.body
	switch rhs.Kind() {
	case ir.KindU128, ir.KindU256:
		ltName := runtime.NameU128Lt
		if rhs.Kind() == ir.KindU256 {
			ltName = runtime.NameU256Lt
		}
		a := ft.alloc(wasmmod.ValueTypeI32)
		bLocal := ft.alloc(wasmmod.ValueTypeI32)
		b.LocalSet(bLocal)
		b.LocalSet(a)
		switch op {
		case movebin.OpLt:
			b.LocalGet(a).LocalGet(bLocal).Call(ft.tr.rt.Get(ltName))
		case movebin.OpGt:
			b.LocalGet(bLocal).LocalGet(a).Call(ft.tr.rt.Get(ltName))
		case movebin.OpLe:
			b.LocalGet(bLocal).LocalGet(a).Call(ft.tr.rt.Get(ltName)).Plain(wasmmod.OpI32Eqz)
		case movebin.OpGe:
			b.LocalGet(a).LocalGet(bLocal).Call(ft.tr.rt.Get(ltName)).Plain(wasmmod.OpI32Eqz)
		}
	case ir.KindU64:
		b.Plain(cmpOpU64(op))
	default:
		b.Plain(cmpOpU32(op))
	}
	ft.ts.push(ir.Bool())
	return nil
}

func cmpOpU32(op movebin.Opcode) byte {
	switch op {
	case movebin.OpLt:
		return wasmmod.OpI32LtU
	case movebin.OpGt:
		return wasmmod.OpI32GtU
	case movebin.OpLe:
		return wasmmod.OpI32LeU
	default:
		return wasmmod.OpI32GeU
	}
}

func cmpOpU64(op movebin.Opcode) byte {
	switch op {
	case movebin.OpLt:
		return wasmmod.OpI64LtU
	case movebin.OpGt:
		return wasmmod.OpI64GtU
	case movebin.OpLe:
		return wasmmod.OpI64LeU
	default:
		return wasmmod.OpI64GeU
	}
}

// lowerCast handles CastU8..CastU256: narrowing uses the dedicated
// downcast helper when one exists, composed with an extra range check for
// u8/u16 targets the registry doesn't special-case; widening either
// extends a scalar in place or materializes a zero-padded wide buffer.
func (ft *funcTranslator) lowerCast(dst ir.Type) error {
	src, err := ft.ts.pop()
	if err != nil {
		return err
	}
	srcBits, dstBits := bitsOf(src.Kind()), bitsOf(dst.Kind())
	switch {
	case srcBits == dstBits:
		// no-op cast (e.g. u64 -> u64 via an intermediate signature)
	case srcBits > dstBits:
		if err := ft.emitNarrowCast(src, dst, srcBits, dstBits); err != nil {
			return err
		}
	default:
		ft.emitWidenCast(src, dst, srcBits, dstBits)
	}
	ft.ts.push(dst)
	return nil
}

func (ft *funcTranslator) emitNarrowCast(src, dst ir.Type, srcBits, dstBits int) error {
	b := ft.body
	switch {
	case srcBits == 64 && dstBits == 32:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU64ToU32))
	case srcBits == 128 && dstBits == 32:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU128ToU32))
	case srcBits == 128 && dstBits == 64:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU128ToU64))
	case srcBits == 256 && dstBits == 32:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU256ToU32))
	case srcBits == 256 && dstBits == 64:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU256ToU64))
	case srcBits == 256 && dstBits == 128:
		b.Call(ft.tr.rt.Get(runtime.NameDowncastU256ToU128))
	case dstBits == 8 || dstBits == 16:
		// first bring src down to a 32/64-bit scalar register, then range
		// check at the target width.
		switch srcBits {
		case 128:
			b.Call(ft.tr.rt.Get(runtime.NameDowncastU128ToU32))
		case 256:
			b.Call(ft.tr.rt.Get(runtime.NameDowncastU256ToU32))
		case 64:
			b.Call(ft.tr.rt.Get(runtime.NameDowncastU64ToU32))
		}
		ft.emitNarrowRangeCheck32(dstBits)
	default:
		return fmt.Errorf("translator: %s: cast %s -> %s: %w", ft.def.Name, src.Kind(), dst.Kind(), ErrUnsupportedOpcode)
	}
	return nil
}

func (ft *funcTranslator) emitWidenCast(src, dst ir.Type, srcBits, dstBits int) {
	b := ft.body
	if dstBits <= 64 {
		if srcBits < 64 && dstBits == 64 {
			b.Plain(wasmmod.OpI64ExtendI32U)
		}
		return
	}
	size := dstBits / 8
	ptr := ft.alloc(wasmmod.ValueTypeI32)
	if srcBits >= 128 {
		// widening an already-wide buffer (u128 -> u256): copy the source's
		// lanes into the new buffer's low end, zero the rest.
		srcLocal := ft.alloc(wasmmod.ValueTypeI32)
		b.LocalSet(srcLocal)
		b.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(ptr)
		srcSize := srcBits / 8
		for lane := 0; lane*8 < srcSize; lane++ {
			off := uint32(lane * 8)
			b.LocalGet(ptr).LocalGet(srcLocal).I64Load(off).I64Store(off)
		}
		for lane := srcSize / 8; lane*8 < size; lane++ {
			b.LocalGet(ptr).I64Const(0).I64Store(uint32(lane * 8))
		}
		b.LocalGet(ptr)
		return
	}
	valLocal := ft.alloc(wasmValueType(src))
	b.LocalSet(valLocal)
	b.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(ptr)
	for lane := 0; lane*8 < size; lane++ {
		b.LocalGet(ptr).I64Const(0).I64Store(uint32(lane * 8))
	}
	b.LocalGet(ptr).LocalGet(valLocal)
	if srcBits < 64 {
		b.Plain(wasmmod.OpI64ExtendI32U)
	}
	b.I64Store(0)
	b.LocalGet(ptr)
}
