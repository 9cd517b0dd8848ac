package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/runtime"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// checkPackableField rejects a field type that Pack must never see: a
// reference (structs and enums hold values, not borrows) or an
// uninstantiated type parameter (every field must be concrete by the time
// Pack is lowered, monomorphization having already substituted it).
func (ft *funcTranslator) checkPackableField(fieldIndex int, t ir.Type) error {
	switch t.Kind() {
	case ir.KindRef, ir.KindMutRef:
		return fmt.Errorf("%s: field %d: %w", ft.def.Name, fieldIndex, ErrReferenceInField)
	case ir.KindTypeParameter:
		return fmt.Errorf("%s: field %d: %w", ft.def.Name, fieldIndex, ErrTypeParameterInField)
	}
	return nil
}

// structHandle resolves the DatatypeHandle an instruction's Operand names
// and validates it against the module context, so a malformed struct
// handle in the bytecode is reported as ErrUnresolvedHandle here rather
// than panicking the first time a struct-layout query dereferences it.
func (ft *funcTranslator) structHandle(instr movebin.Bytecode) (ir.DatatypeHandle, error) {
	h := ft.tr.ctx.Handle(movebin.Handle(instr.Operand))
	if !ft.tr.ctx.HasStruct(h) {
		return h, fmt.Errorf("%s: struct handle %d: %w", ft.def.Name, instr.Operand, ErrUnresolvedHandle)
	}
	return h, nil
}

// enumHandle is structHandle's enum counterpart, used by the PackVariant/
// UnpackVariant family.
func (ft *funcTranslator) enumHandle(instr movebin.Bytecode) (ir.DatatypeHandle, error) {
	h := ft.tr.ctx.Handle(movebin.Handle(instr.Operand))
	if !ft.tr.ctx.HasEnum(h) {
		return h, fmt.Errorf("%s: enum handle %d: %w", ft.def.Name, instr.Operand, ErrUnresolvedHandle)
	}
	return h, nil
}

// lowerPack pops a struct's field values (last-declared field on top,
// mirroring Move's own push order) and assembles them into a fresh struct
// buffer: heap-resident fields store their own pointer directly, stack-
// resident fields get a private indirection cell.
func (ft *funcTranslator) lowerPack(instr movebin.Bytecode, typeArgs []ir.Type) error {
	h, err := ft.structHandle(instr)
	if err != nil {
		return err
	}
	fieldTypes := ft.tr.ctx.StructFieldTypes(h, typeArgs)
	offsets := ft.tr.ctx.StructFieldOffsets(h)
	size := ft.tr.ctx.StructHeapSize(h)

	for i, t := range fieldTypes {
		if err := ft.checkPackableField(i, t); err != nil {
			return err
		}
	}

	valLocals := make([]uint32, len(fieldTypes))
	for i := len(fieldTypes) - 1; i >= 0; i-- {
		t, err := ft.ts.pop()
		if err != nil {
			return err
		}
		valLocals[i] = ft.alloc(wasmValueType(t))
		ft.body.LocalSet(valLocals[i])
	}

	structPtr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(structPtr)
	for i, ft2 := range fieldTypes {
		off := uint32(offsets[i])
		if ft2.IsHeapResident() {
			ft.body.LocalGet(structPtr).LocalGet(valLocals[i]).I32Store(off)
			continue
		}
		cell := ft.alloc(wasmmod.ValueTypeI32)
		ft.body.I32Const(int32(ft2.StackSize())).Call(ft.allocFn()).LocalSet(cell)
		ft.body.LocalGet(cell).LocalGet(valLocals[i])
		if ft2.StackSize() == 8 {
			ft.body.I64Store(0)
		} else {
			ft.body.I32Store(0)
		}
		ft.body.LocalGet(structPtr).LocalGet(cell).I32Store(off)
	}
	ft.body.LocalGet(structPtr)
	if typeArgs == nil {
		ft.ts.push(ir.Struct(h))
	} else {
		ft.ts.push(ir.GenericStructInstance(h, typeArgs))
	}
	return nil
}

// lowerUnpack pops a struct value and pushes its fields in declaration
// order: a heap-resident field's stored slot already holds the field's own
// value (a pointer); a stack-resident field's slot holds its indirection
// cell, which needs one further dereference to recover the scalar value.
func (ft *funcTranslator) lowerUnpack(instr movebin.Bytecode, typeArgs []ir.Type) error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	h, err := ft.structHandle(instr)
	if err != nil {
		return err
	}
	fieldTypes := ft.tr.ctx.StructFieldTypes(h, typeArgs)
	offsets := ft.tr.ctx.StructFieldOffsets(h)

	structPtr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.LocalSet(structPtr)
	for i, t := range fieldTypes {
		off := uint32(offsets[i])
		ft.body.LocalGet(structPtr).I32Load(off)
		if !t.IsHeapResident() {
			if t.StackSize() == 8 {
				ft.body.I64Load(0)
			} else {
				ft.body.I32Load(0)
			}
		}
		ft.ts.push(t)
	}
	return nil
}

// lowerBorrowField computes the field's slot address (structPtr + 4*index)
// and dereferences it once: the slot's stored pointer is, uniformly, the
// field's Ref/MutRef value, whether the field is heap-resident (the
// pointer is the value) or stack-resident (the pointer addresses the
// field's own indirection cell) — the same borrow-is-pointer-to-inner
// invariant lowerBorrowLoc uses for locals, extended to struct fields.
func (ft *funcTranslator) lowerBorrowField(instr movebin.Bytecode, typeArgs []ir.Type) error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	h, err := ft.structHandle(instr)
	if err != nil {
		return err
	}
	fieldTypes := ft.tr.ctx.StructFieldTypes(h, typeArgs)
	offsets := ft.tr.ctx.StructFieldOffsets(h)
	fieldType := fieldTypes[instr.FieldIndex]
	off := offsets[instr.FieldIndex]

	ft.body.I32Const(int32(off)).Plain(wasmmod.OpI32Add).I32Load(0)
	if instr.Op == movebin.OpMutBorrowField || instr.Op == movebin.OpMutBorrowFieldGeneric {
		ft.ts.push(ir.MutRef(fieldType))
	} else {
		ft.ts.push(ir.Ref(fieldType))
	}
	return nil
}

// lowerPackVariant mirrors lowerPack, but into an enum buffer: a 1-byte
// tag at offset 0 identifying instr.FieldIndex's variant, followed by that
// variant's fields at 1, 5, 9, ...
func (ft *funcTranslator) lowerPackVariant(instr movebin.Bytecode, typeArgs []ir.Type) error {
	h, err := ft.enumHandle(instr)
	if err != nil {
		return err
	}
	variant := int(instr.FieldIndex)
	fieldTypes := ft.tr.ctx.EnumVariantFieldTypes(h, variant, typeArgs)
	size := ft.tr.ctx.EnumHeapSize(h)

	for i, t := range fieldTypes {
		if err := ft.checkPackableField(i, t); err != nil {
			return err
		}
	}

	valLocals := make([]uint32, len(fieldTypes))
	for i := len(fieldTypes) - 1; i >= 0; i-- {
		t, err := ft.ts.pop()
		if err != nil {
			return err
		}
		valLocals[i] = ft.alloc(wasmValueType(t))
		ft.body.LocalSet(valLocals[i])
	}

	enumPtr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.I32Const(int32(size)).Call(ft.allocFn()).LocalSet(enumPtr)
	ft.body.LocalGet(enumPtr).I32Const(int32(variant)).I32Store8(0)
	for i, ft2 := range fieldTypes {
		off := uint32(1 + 4*i)
		if ft2.IsHeapResident() {
			ft.body.LocalGet(enumPtr).LocalGet(valLocals[i]).I32Store(off)
			continue
		}
		cell := ft.alloc(wasmmod.ValueTypeI32)
		ft.body.I32Const(int32(ft2.StackSize())).Call(ft.allocFn()).LocalSet(cell)
		ft.body.LocalGet(cell).LocalGet(valLocals[i])
		if ft2.StackSize() == 8 {
			ft.body.I64Store(0)
		} else {
			ft.body.I32Store(0)
		}
		ft.body.LocalGet(enumPtr).LocalGet(cell).I32Store(off)
	}
	ft.body.LocalGet(enumPtr)
	ft.ts.push(ir.Enum(h))
	return nil
}

// lowerUnpackVariant mirrors lowerUnpack for one already-known enum
// variant's fields. Move's verifier only admits an UnpackVariant against
// the variant a preceding TestVariant confirmed, so no tag check is
// re-emitted here.
func (ft *funcTranslator) lowerUnpackVariant(instr movebin.Bytecode, typeArgs []ir.Type) error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	h, err := ft.enumHandle(instr)
	if err != nil {
		return err
	}
	variant := int(instr.FieldIndex)
	fieldTypes := ft.tr.ctx.EnumVariantFieldTypes(h, variant, typeArgs)

	enumPtr := ft.alloc(wasmmod.ValueTypeI32)
	ft.body.LocalSet(enumPtr)
	for i, t := range fieldTypes {
		off := uint32(1 + 4*i)
		ft.body.LocalGet(enumPtr).I32Load(off)
		if !t.IsHeapResident() {
			if t.StackSize() == 8 {
				ft.body.I64Load(0)
			} else {
				ft.body.I32Load(0)
			}
		}
		ft.ts.push(t)
	}
	return nil
}

// lowerTestVariant loads the enum's tag byte and compares it against
// instr.FieldIndex, leaving a bool.
func (ft *funcTranslator) lowerTestVariant(instr movebin.Bytecode) error {
	if _, err := ft.ts.pop(); err != nil {
		return err
	}
	ft.body.I32Load8U(0).I32Const(int32(instr.FieldIndex)).Plain(wasmmod.OpI32Eq)
	ft.ts.push(ir.Bool())
	return nil
}

// emitStructuralEqual emits, inline, a deep equality test between the two
// already-popped operands held in locals a and b, both of type t, ANDing
// recursively through struct fields. Enum payloads are compared as a flat
// byte range rather than field-by-field once the tags match: this misses
// nested-reference aliasing inside a variant's own heap-resident fields
// (it compares pointers, not pointees, for those), an approximation noted
// against inline struct/enum equality until a field-aware enum comparator
// is worth the extra plumbing.
func (ft *funcTranslator) emitStructuralEqual(t ir.Type, a, b uint32) {
	b2 := ft.body
	switch t.Kind() {
	case ir.KindStruct, ir.KindGenericStructInstance:
		var h ir.DatatypeHandle
		var typeArgs []ir.Type
		if t.Kind() == ir.KindGenericStructInstance {
			h, typeArgs = t.Handle(), t.TypeArgs()
		} else {
			h = t.Handle()
		}
		fieldTypes := ft.tr.ctx.StructFieldTypes(h, typeArgs)
		offsets := ft.tr.ctx.StructFieldOffsets(h)
		b2.I32Const(1)
		for i, ft2 := range fieldTypes {
			off := uint32(offsets[i])
			fa := ft.alloc(wasmValueType(ft2))
			fb := ft.alloc(wasmValueType(ft2))
			b2.LocalGet(a).I32Load(off)
			if !ft2.IsHeapResident() {
				if ft2.StackSize() == 8 {
					b2.I64Load(0)
				} else {
					b2.I32Load(0)
				}
			}
			b2.LocalSet(fa)
			b2.LocalGet(b).I32Load(off)
			if !ft2.IsHeapResident() {
				if ft2.StackSize() == 8 {
					b2.I64Load(0)
				} else {
					b2.I32Load(0)
				}
			}
			b2.LocalSet(fb)
			ft.emitFieldEqual(ft2, fa, fb)
			b2.Plain(wasmmod.OpI32And)
		}
	case ir.KindEnum:
		h := t.Handle()
		size := ft.tr.ctx.EnumHeapSize(h)
		b2.LocalGet(a).I32Load8U(0)
		b2.LocalGet(b).I32Load8U(0)
		b2.Plain(wasmmod.OpI32Eq)
		for i := 0; i+8 <= size-1; i += 8 {
			off := uint32(1 + i)
			b2.LocalGet(a).I64Load(off)
			b2.LocalGet(b).I64Load(off)
			b2.Plain(wasmmod.OpI64Eq)
			b2.Plain(wasmmod.OpI32And)
		}
		for i := (size - 1) / 8 * 8; i < size-1; i++ {
			off := uint32(1 + i)
			b2.LocalGet(a).I32Load8U(off)
			b2.LocalGet(b).I32Load8U(off)
			b2.Plain(wasmmod.OpI32Eq)
			b2.Plain(wasmmod.OpI32And)
		}
	default:
		ft.emitFieldEqual(t, a, b)
	}
}

// emitFieldEqual handles one scalar/heap-non-aggregate field comparison,
// used both directly (non-aggregate top-level Eq) and from
// emitStructuralEqual's per-field loop.
func (ft *funcTranslator) emitFieldEqual(t ir.Type, a, b uint32) {
	bb := ft.body
	switch {
	case t.Kind() == ir.KindStruct || t.Kind() == ir.KindGenericStructInstance || t.Kind() == ir.KindEnum:
		ft.emitStructuralEqual(t, a, b)
	case t.Kind() == ir.KindVector:
		bb.LocalGet(a).LocalGet(b).Call(ft.tr.rt.GetGeneric(runtime.NameVecHeapEq, t.Inner()))
	case t.IsHeapResident():
		bb.LocalGet(a).LocalGet(b).Call(ft.tr.rt.GetGeneric(runtime.NameHeapEqual, t))
	case t.StackSize() == 8:
		bb.LocalGet(a).LocalGet(b).Plain(wasmmod.OpI64Eq)
	default:
		bb.LocalGet(a).LocalGet(b).Plain(wasmmod.OpI32Eq)
	}
}
