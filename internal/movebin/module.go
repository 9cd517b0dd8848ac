// Package movebin models the parsed Move binary format: the
// translator's input. This package performs no decoding of the raw Move
// bytecode file format itself (that lives in an out-of-scope package
// loader) — it is the in-memory shape the loader is expected to hand
// the translator, and the shape every other package in this module reads
// from.
package movebin

// Visibility mirrors Move's function visibility flags.
type Visibility byte

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
	VisibilityFriend
)

// Handle is an opaque index into one of the module's tables, preserved
// from the original Move binary so every downstream resolution is O(1).
type Handle uint16

// SignatureHandle indexes the signature pool.
type SignatureHandle = Handle

// ConstantHandle indexes the constant pool.
type ConstantHandle = Handle

// DatatypeHandle indexes either the struct or enum definition table,
// disambiguated by the handle's owning table.
type DatatypeHandle = Handle

// FunctionHandle indexes the function definition table, local to this
// module or resolved against an imported module's table.
type FunctionHandle = Handle

// SignatureToken is the raw, possibly-generic type expression as it
// appears in the Move binary's signature pool, before its lowering into
// ir.Type. It is a closed recursive sum type mirroring Move's own
// SignatureToken enum.
type SignatureToken struct {
	Tag      TokenTag
	Inner    *SignatureToken // Vector, Reference, MutableReference
	Datatype DatatypeHandle  // Struct, StructInstantiation
	TypeArgs []SignatureToken
	TypeParamIndex uint16 // TypeParameter
}

type TokenTag byte

const (
	TokBool TokenTag = iota
	TokU8
	TokU16
	TokU32
	TokU64
	TokU128
	TokU256
	TokAddress
	TokSigner
	TokVector
	TokStruct
	TokStructInstantiation
	TokReference
	TokMutableReference
	TokTypeParameter
)

// Signature is an ordered list of SignatureTokens, e.g. a function's
// parameter list, return list, or local-variable list.
type Signature []SignatureToken

// FieldDefinition is one field of a struct or payload-carrying enum
// variant.
type FieldDefinition struct {
	Name string
	Type SignatureToken
}

// StructDefinition is a monomorphic or generic-template struct
// declaration. TypeParameterCount is non-zero only for generic templates.
type StructDefinition struct {
	Name               string
	TypeParameterCount int
	Fields             []FieldDefinition
}

// EnumVariant is one tagged alternative of an enum.
type EnumVariant struct {
	Name   string
	Fields []FieldDefinition
}

// EnumDefinition is a monomorphic or generic-template enum declaration.
type EnumDefinition struct {
	Name               string
	TypeParameterCount int
	Variants           []EnumVariant
}

// FunctionDefinition is one declared function, native or with a compiled
// bytecode body.
type FunctionDefinition struct {
	Name               string
	Parameters         Signature
	Returns            Signature
	Locals             Signature
	TypeParameterCount int
	Visibility         Visibility
	IsEntry            bool
	IsNative           bool
	// Code is nil for native functions.
	Code *CodeUnit
}

// CodeUnit is a function's compiled bytecode body: a flat, linearly
// addressed instruction array with jump targets expressed as
// unstructured instruction offsets within the same array.
type CodeUnit struct {
	Instructions []Bytecode
}

// Bytecode is one Move instruction. Operand carries the instruction's
// single immediate operand (a handle, constant, local index, jump
// offset, or small integer literal) when the opcode needs one; its
// meaning is opcode-dependent, mirroring Move's own tagged bytecode enum.
type Bytecode struct {
	Op      Opcode
	Operand uint64
	// FieldIndex carries a struct field index for BorrowField/MutBorrowField
	// (and their Generic variants) or an enum variant index for
	// PackVariant/UnpackVariant/TestVariant (and their Generic variants).
	// Operand alone already carries the owning struct/enum DatatypeHandle
	// for all of these opcodes.
	FieldIndex uint16
	TypeArgs   []SignatureToken // CallGeneric, PackGeneric, and friends
}

// Opcode enumerates the Move bytecode instructions the translator
// understands, grouped by per-opcode lowering category below.
type Opcode byte

const (
	OpNop Opcode = iota
	OpPop
	OpRet

	// Constants and literals
	OpLdConst // Operand = ConstantHandle
	OpLdTrue
	OpLdFalse
	OpLdU8
	OpLdU16
	OpLdU32
	OpLdU64
	OpLdU128 // Operand = ConstantHandle (wide literal lives in the constant pool)
	OpLdU256

	// Local access
	OpMoveLoc
	OpCopyLoc
	OpStLoc

	// Arithmetic and bitwise
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpXor
	OpShl
	OpShr
	OpNot

	// Comparison
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe

	// Cast
	OpCastU8
	OpCastU16
	OpCastU32
	OpCastU64
	OpCastU128
	OpCastU256

	// Structs
	OpPack
	OpPackGeneric
	OpUnpack
	OpUnpackGeneric
	OpBorrowField
	OpMutBorrowField
	OpBorrowFieldGeneric
	OpMutBorrowFieldGeneric

	// Enums
	OpPackVariant
	OpPackVariantGeneric
	OpUnpackVariant
	OpUnpackVariantGeneric
	OpTestVariant

	// Vectors
	OpVecPack
	OpVecLen
	OpVecImmBorrow
	OpVecMutBorrow
	OpVecPush
	OpVecPop
	OpVecSwap
	OpVecUnpack

	// References
	OpReadRef
	OpWriteRef
	OpFreezeRef
	OpBorrowLoc
	OpMutBorrowLoc

	// Calls
	OpCall
	OpCallGeneric

	// Branch (consumed by control-flow reconstruction)
	OpBrTrue
	OpBrFalse
	OpBranch

	OpAbort
)

// Module is a fully parsed Move compiled unit: the translator's
// complete input.
type Module struct {
	// Address and Name identify the module, e.g. "0x1" and "coin".
	Address string
	Name    string

	ConstantPool []ConstantPoolEntry
	Signatures   []Signature
	Structs      []StructDefinition
	Enums        []EnumDefinition
	Functions    []FunctionDefinition
}

// ConstantPoolEntry is one raw byte string from the constant pool,
// tagged with the type it was declared at so the translator knows how to
// interpret its bytes (a u256 literal's bytes vs. an address's bytes are
// both just 32-byte strings at this layer).
type ConstantPoolEntry struct {
	Type  SignatureToken
	Bytes []byte
}
