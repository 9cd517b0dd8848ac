// Package ir defines the canonical intermediate type system the translator
// lowers Move types into: a small tagged-variant enumeration carrying the
// memory-layout and ABI-encoding properties every other stage (the runtime
// library, the ABI bridge, the bytecode translator) relies on.
package ir

import "fmt"

// Kind identifies which variant of Type a value holds.
type Kind byte

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindGenericStructInstance
	KindEnum
	KindRef
	KindMutRef
	KindTypeParameter
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindU256:
		return "u256"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return "vector"
	case KindStruct:
		return "struct"
	case KindGenericStructInstance:
		return "generic_struct_instance"
	case KindEnum:
		return "enum"
	case KindRef:
		return "ref"
	case KindMutRef:
		return "mut_ref"
	case KindTypeParameter:
		return "type_parameter"
	default:
		return fmt.Sprintf("kind(%#x)", byte(k))
	}
}

// DatatypeHandle identifies a struct or enum definition within a module
// context, resolved across module boundaries the same way Move's datatype
// handle pool does.
type DatatypeHandle struct {
	Module string // canonical "address::name" of the declaring module
	Index  uint16
}

// Type is the canonical intermediate representation of a Move type. It is
// an immutable value; construct new variants with the constructor
// functions below rather than building the struct literal directly, since
// several fields are only meaningful for specific Kinds.
type Type struct {
	kind     Kind
	inner    *Type          // Vector, Ref, MutRef
	handle   DatatypeHandle // Struct, GenericStructInstance, Enum
	typeArgs []Type         // GenericStructInstance
	paramIdx int            // TypeParameter
}

func Bool() Type    { return Type{kind: KindBool} }
func U8() Type      { return Type{kind: KindU8} }
func U16() Type     { return Type{kind: KindU16} }
func U32() Type     { return Type{kind: KindU32} }
func U64() Type     { return Type{kind: KindU64} }
func U128() Type    { return Type{kind: KindU128} }
func U256() Type    { return Type{kind: KindU256} }
func Address() Type { return Type{kind: KindAddress} }
func Signer() Type  { return Type{kind: KindSigner} }

func Vector(inner Type) Type { return Type{kind: KindVector, inner: &inner} }
func Ref(inner Type) Type    { return Type{kind: KindRef, inner: &inner} }
func MutRef(inner Type) Type { return Type{kind: KindMutRef, inner: &inner} }

func Struct(h DatatypeHandle) Type { return Type{kind: KindStruct, handle: h} }
func Enum(h DatatypeHandle) Type   { return Type{kind: KindEnum, handle: h} }

func GenericStructInstance(h DatatypeHandle, typeArgs []Type) Type {
	return Type{kind: KindGenericStructInstance, handle: h, typeArgs: typeArgs}
}

func TypeParameter(i int) Type { return Type{kind: KindTypeParameter, paramIdx: i} }

// Kind returns the variant tag of t.
func (t Type) Kind() Kind { return t.kind }

// Inner returns the element type for Vector/Ref/MutRef; it panics for any
// other Kind, mirroring the invariant that only those three variants carry
// an inner type.
func (t Type) Inner() Type {
	if t.inner == nil {
		panic(fmt.Sprintf("ir: %s has no inner type", t.kind))
	}
	return *t.inner
}

// Handle returns the datatype handle for Struct/GenericStructInstance/Enum.
func (t Type) Handle() DatatypeHandle { return t.handle }

// TypeArgs returns the instantiation arguments of a GenericStructInstance.
func (t Type) TypeArgs() []Type { return t.typeArgs }

// ParamIndex returns the slot index of a TypeParameter.
func (t Type) ParamIndex() int { return t.paramIdx }

// IsHeapResident reports whether values of this type live behind a pointer
// rather than directly on the WebAssembly operand stack.
func (t Type) IsHeapResident() bool {
	switch t.kind {
	case KindU128, KindU256, KindAddress, KindSigner, KindVector,
		KindStruct, KindGenericStructInstance, KindEnum:
		return true
	default:
		return false
	}
}

// StackSize returns the WebAssembly register width, in bytes, occupied by
// a value of this type when it sits on the operand stack: 4 for every
// scalar ≤32 bits, 8 for U64, and 4 (a pointer) for every heap-resident
// type, reference, or bare type parameter awaiting monomorphization.
func (t Type) StackSize() int {
	switch t.kind {
	case KindU64:
		return 8
	default:
		return 4
	}
}

// HeapSize returns the number of bytes a heap-resident value of this type
// occupies at the address its stack pointer names. It panics for
// stack-resident scalars, which own no heap storage.
func (t Type) HeapSize(ctx StructSizer) int {
	switch t.kind {
	case KindU128:
		return 16
	case KindU256:
		return 32
	case KindAddress, KindSigner:
		return 32
	case KindVector, KindRef, KindMutRef:
		panic(fmt.Sprintf("ir: %s has no fixed heap size", t.kind))
	case KindStruct:
		return ctx.StructHeapSize(t.handle)
	case KindGenericStructInstance:
		return ctx.StructHeapSize(t.handle)
	case KindEnum:
		return ctx.EnumHeapSize(t.handle)
	default:
		panic(fmt.Sprintf("ir: %s is not heap-resident", t.kind))
	}
}

// StructSizer resolves the field-count-derived heap size of struct and enum
// definitions; internal/modctx.Context implements it. Kept as a narrow
// interface here so the type model never imports the module-context
// package (which in turn depends on ir.Type), avoiding an import cycle.
type StructSizer interface {
	StructHeapSize(h DatatypeHandle) int
	EnumHeapSize(h DatatypeHandle) int
}

// AbiEncodedSize returns the fixed-width footprint, in bytes, this type
// contributes to the head region of a Solidity ABI tuple. Dynamic types
// always contribute exactly 32 (an offset word); see IsDynamicAbi.
func (t Type) AbiEncodedSize(ctx AbiSizer) int {
	if t.IsDynamicAbi(ctx) {
		return 32
	}
	switch t.kind {
	case KindBool, KindU8, KindU16, KindU32, KindU64:
		return 32
	case KindU128:
		return 32
	case KindU256:
		return 32
	case KindAddress:
		return 32
	case KindStruct, KindGenericStructInstance:
		return ctx.StructAbiHeadSize(t.handle, t.typeArgs)
	default:
		panic(fmt.Sprintf("ir: %s has no direct ABI encoding", t.kind))
	}
}

// IsDynamicAbi reports whether Solidity ABI encoding treats this type as
// dynamic (contributes an offset word to the head, and a variable-length
// tail). Vectors are always dynamic; structs are dynamic iff any field is.
func (t Type) IsDynamicAbi(ctx AbiSizer) bool {
	switch t.kind {
	case KindVector:
		return true
	case KindStruct, KindGenericStructInstance:
		return ctx.StructIsDynamicAbi(t.handle, t.typeArgs)
	default:
		return false
	}
}

// AbiSizer resolves struct-dependent ABI encoding properties; implemented
// by internal/modctx.Context. Kept narrow for the same reason as
// StructSizer above.
type AbiSizer interface {
	StructAbiHeadSize(h DatatypeHandle, typeArgs []Type) int
	StructIsDynamicAbi(h DatatypeHandle, typeArgs []Type) bool
}

// Equal reports structural equality of two intermediate types, following
// type args and inner types recursively.
func Equal(a, b Type) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindVector, KindRef, KindMutRef:
		return Equal(*a.inner, *b.inner)
	case KindStruct, KindEnum:
		return a.handle == b.handle
	case KindGenericStructInstance:
		if a.handle != b.handle || len(a.typeArgs) != len(b.typeArgs) {
			return false
		}
		for i := range a.typeArgs {
			if !Equal(a.typeArgs[i], b.typeArgs[i]) {
				return false
			}
		}
		return true
	case KindTypeParameter:
		return a.paramIdx == b.paramIdx
	default:
		return true
	}
}

// Substitute replaces every TypeParameter(i) appearing in t with args[i],
// used to monomorphize a generic function or struct template.
func Substitute(t Type, args []Type) Type {
	switch t.kind {
	case KindTypeParameter:
		if t.paramIdx < 0 || t.paramIdx >= len(args) {
			panic(fmt.Sprintf("ir: type parameter %d out of range of %d type args", t.paramIdx, len(args)))
		}
		return args[t.paramIdx]
	case KindVector:
		sub := Substitute(*t.inner, args)
		return Vector(sub)
	case KindRef:
		sub := Substitute(*t.inner, args)
		return Ref(sub)
	case KindMutRef:
		sub := Substitute(*t.inner, args)
		return MutRef(sub)
	case KindGenericStructInstance:
		subArgs := make([]Type, len(t.typeArgs))
		for i, a := range t.typeArgs {
			subArgs[i] = Substitute(a, args)
		}
		return GenericStructInstance(t.handle, subArgs)
	default:
		return t
	}
}

// ContainsSigner reports whether t's type tree contains Signer anywhere,
// used by the public-function wrapper validator to reject compound
// types that smuggle a Signer through a vector or struct field.
func ContainsSigner(t Type, ctx StructFieldLister) bool {
	switch t.kind {
	case KindSigner:
		return true
	case KindVector, KindRef, KindMutRef:
		return ContainsSigner(*t.inner, ctx)
	case KindStruct, KindGenericStructInstance:
		for _, f := range ctx.StructFieldTypes(t.handle, t.typeArgs) {
			if ContainsSigner(f, ctx) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// StructFieldLister resolves the field types of a struct for the
// ContainsSigner traversal; implemented by internal/modctx.Context.
type StructFieldLister interface {
	StructFieldTypes(h DatatypeHandle, typeArgs []Type) []Type
}

// MangleName renders a canonical, collision-free name fragment for a
// type, used to key the runtime library's generic helper cache and the
// bytecode translator's monomorphization cache so both stages agree on
// the same instantiation identity without sharing any other state.
func MangleName(t Type) string {
	switch t.kind {
	case KindVector:
		return "vec<" + MangleName(*t.inner) + ">"
	case KindStruct, KindEnum:
		return fmt.Sprintf("%s#%d", t.handle.Module, t.handle.Index)
	case KindGenericStructInstance:
		s := fmt.Sprintf("%s#%d<", t.handle.Module, t.handle.Index)
		for i, a := range t.typeArgs {
			if i > 0 {
				s += ","
			}
			s += MangleName(a)
		}
		return s + ">"
	case KindTypeParameter:
		return fmt.Sprintf("$%d", t.paramIdx)
	default:
		return t.kind.String()
	}
}
