// Package modctx builds the immutable, resolved module context that
// every later translator stage reads: struct/enum layouts, function
// signatures, and the constant pool, indexed for O(1) handle resolution.
package modctx

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
	"github.com/stylusmove/movewasm/internal/movebin"
)

// Context is the resolved, read-only view of one parsed Move module. It
// implements ir.StructSizer, ir.AbiSizer, and ir.StructFieldLister so the
// type model can stay ignorant of struct/enum internals while every other
// package resolves those properties through a Context value.
type Context struct {
	mod *movebin.Module

	qualifiedName string // "<address>::<name>", used to build DatatypeHandles

	structs []structLayout
	enums   []enumLayout

	// genericFieldCache memoizes monomorphized struct field-type
	// lists keyed by (handle, type args), so repeated Pack/Unpack/Borrow
	// sites against the same instantiation share one resolution, mirroring
	// the function monomorphization cache in internal/translator.
	genericFieldCache map[string][]ir.Type
}

type structLayout struct {
	def        movebin.StructDefinition
	fieldTypes []ir.Type // unsubstituted; may contain ir.TypeParameter
}

type enumLayout struct {
	def          movebin.EnumDefinition
	variantTypes [][]ir.Type // per variant, unsubstituted
}

// Build resolves a parsed Move module into a Context. It performs no I/O
// and cannot fail: malformed handles are only discovered lazily, when a
// later stage dereferences them — raised as a translation-time error by
// the consuming stage, not here.
func Build(mod *movebin.Module) *Context {
	c := &Context{
		mod:               mod,
		qualifiedName:     fmt.Sprintf("%s::%s", mod.Address, mod.Name),
		genericFieldCache: map[string][]ir.Type{},
	}
	for _, s := range mod.Structs {
		fieldTypes := make([]ir.Type, len(s.Fields))
		for i, f := range s.Fields {
			fieldTypes[i] = c.lowerToken(f.Type)
		}
		c.structs = append(c.structs, structLayout{def: s, fieldTypes: fieldTypes})
	}
	for _, e := range mod.Enums {
		variantTypes := make([][]ir.Type, len(e.Variants))
		for vi, v := range e.Variants {
			ts := make([]ir.Type, len(v.Fields))
			for fi, f := range v.Fields {
				ts[fi] = c.lowerToken(f.Type)
			}
			variantTypes[vi] = ts
		}
		c.enums = append(c.enums, enumLayout{def: e, variantTypes: variantTypes})
	}
	return c
}

// Module returns the underlying parsed Move module.
func (c *Context) Module() *movebin.Module { return c.mod }

func (c *Context) handle(index movebin.Handle) ir.DatatypeHandle {
	return ir.DatatypeHandle{Module: c.qualifiedName, Index: uint16(index)}
}

// Handle exports the module-qualified DatatypeHandle for a raw struct/enum
// index, for callers outside this package (the bytecode translator resolves
// Pack/Unpack/BorrowField operands this way).
func (c *Context) Handle(index movebin.Handle) ir.DatatypeHandle {
	return c.handle(index)
}

// LowerToken exports lowerToken for callers outside this package, for
// lowering a generic instruction's inline type-argument tokens
// (CallGeneric, PackGeneric, ...).
func (c *Context) LowerToken(tok movebin.SignatureToken) ir.Type {
	return c.lowerToken(tok)
}

// LowerSignature lowers every token of sig into its ir.Type.
func (c *Context) LowerSignature(sig movebin.Signature) []ir.Type {
	out := make([]ir.Type, len(sig))
	for i, tok := range sig {
		out[i] = c.lowerToken(tok)
	}
	return out
}

// lowerToken maps a raw Move SignatureToken to the canonical
// intermediate Type.
func (c *Context) lowerToken(tok movebin.SignatureToken) ir.Type {
	switch tok.Tag {
	case movebin.TokBool:
		return ir.Bool()
	case movebin.TokU8:
		return ir.U8()
	case movebin.TokU16:
		return ir.U16()
	case movebin.TokU32:
		return ir.U32()
	case movebin.TokU64:
		return ir.U64()
	case movebin.TokU128:
		return ir.U128()
	case movebin.TokU256:
		return ir.U256()
	case movebin.TokAddress:
		return ir.Address()
	case movebin.TokSigner:
		return ir.Signer()
	case movebin.TokVector:
		return ir.Vector(c.lowerToken(*tok.Inner))
	case movebin.TokStruct:
		return ir.Struct(c.handle(tok.Datatype))
	case movebin.TokStructInstantiation:
		args := make([]ir.Type, len(tok.TypeArgs))
		for i, a := range tok.TypeArgs {
			args[i] = c.lowerToken(a)
		}
		return ir.GenericStructInstance(c.handle(tok.Datatype), args)
	case movebin.TokReference:
		return ir.Ref(c.lowerToken(*tok.Inner))
	case movebin.TokMutableReference:
		return ir.MutRef(c.lowerToken(*tok.Inner))
	case movebin.TokTypeParameter:
		return ir.TypeParameter(int(tok.TypeParamIndex))
	default:
		panic(fmt.Sprintf("modctx: unknown signature token tag %d", tok.Tag))
	}
}

func (c *Context) structLayout(h ir.DatatypeHandle) (structLayout, bool) {
	if int(h.Index) >= len(c.structs) {
		return structLayout{}, false
	}
	return c.structs[h.Index], true
}

func (c *Context) enumLayout(h ir.DatatypeHandle) (enumLayout, bool) {
	if int(h.Index) >= len(c.enums) {
		return enumLayout{}, false
	}
	return c.enums[h.Index], true
}

// HasStruct reports whether h resolves to a struct definition in this
// module, letting a caller validate a bytecode-supplied handle before
// passing it to any of the panicking struct-layout queries below.
func (c *Context) HasStruct(h ir.DatatypeHandle) bool {
	_, ok := c.structLayout(h)
	return ok
}

// HasEnum reports whether h resolves to an enum definition in this module.
func (c *Context) HasEnum(h ir.DatatypeHandle) bool {
	_, ok := c.enumLayout(h)
	return ok
}

// StructHeapSize implements ir.StructSizer: 4 bytes per pointer field.
func (c *Context) StructHeapSize(h ir.DatatypeHandle) int {
	sl, ok := c.structLayout(h)
	if !ok {
		panic(fmt.Sprintf("modctx: unresolved struct handle %v", h))
	}
	return 4 * len(sl.fieldTypes)
}

// EnumHeapSize implements ir.StructSizer: a 1-byte tag followed by the
// largest variant's pointer-field payload.
func (c *Context) EnumHeapSize(h ir.DatatypeHandle) int {
	el, ok := c.enumLayout(h)
	if !ok {
		panic(fmt.Sprintf("modctx: unresolved enum handle %v", h))
	}
	max := 0
	for _, vt := range el.variantTypes {
		if n := 4 * len(vt); n > max {
			max = n
		}
	}
	return 1 + max
}

// StructFieldOffsets returns the byte offset of each field in
// declaration order: 0, 4, 8, ...
func (c *Context) StructFieldOffsets(h ir.DatatypeHandle) []int {
	sl, ok := c.structLayout(h)
	if !ok {
		panic(fmt.Sprintf("modctx: unresolved struct handle %v", h))
	}
	offs := make([]int, len(sl.fieldTypes))
	for i := range offs {
		offs[i] = 4 * i
	}
	return offs
}

// StructFieldTypes implements ir.StructFieldLister, substituting typeArgs
// into the template's field types when h names a generic struct.
func (c *Context) StructFieldTypes(h ir.DatatypeHandle, typeArgs []ir.Type) []ir.Type {
	sl, ok := c.structLayout(h)
	if !ok {
		panic(fmt.Sprintf("modctx: unresolved struct handle %v", h))
	}
	if len(typeArgs) == 0 {
		return sl.fieldTypes
	}
	key := cacheKey(h, typeArgs)
	if cached, ok := c.genericFieldCache[key]; ok {
		return cached
	}
	out := make([]ir.Type, len(sl.fieldTypes))
	for i, ft := range sl.fieldTypes {
		out[i] = ir.Substitute(ft, typeArgs)
	}
	c.genericFieldCache[key] = out
	return out
}

// EnumVariantFieldTypes returns the (possibly-substituted) field types of
// one enum variant.
func (c *Context) EnumVariantFieldTypes(h ir.DatatypeHandle, variant int, typeArgs []ir.Type) []ir.Type {
	el, ok := c.enumLayout(h)
	if !ok {
		panic(fmt.Sprintf("modctx: unresolved enum handle %v", h))
	}
	base := el.variantTypes[variant]
	if len(typeArgs) == 0 {
		return base
	}
	out := make([]ir.Type, len(base))
	for i, ft := range base {
		out[i] = ir.Substitute(ft, typeArgs)
	}
	return out
}

// StructAbiHeadSize implements ir.AbiSizer: the sum of each field's own
// head contribution when static, laying the struct out as an inline
// ABI tuple.
func (c *Context) StructAbiHeadSize(h ir.DatatypeHandle, typeArgs []ir.Type) int {
	if c.StructIsDynamicAbi(h, typeArgs) {
		return 32
	}
	total := 0
	for _, ft := range c.StructFieldTypes(h, typeArgs) {
		total += ft.AbiEncodedSize(c)
	}
	return total
}

// StructIsDynamicAbi implements ir.AbiSizer: a struct is dynamic iff any
// field is dynamic.
func (c *Context) StructIsDynamicAbi(h ir.DatatypeHandle, typeArgs []ir.Type) bool {
	for _, ft := range c.StructFieldTypes(h, typeArgs) {
		if ft.IsDynamicAbi(c) {
			return true
		}
	}
	return false
}

// StructTupleName implements selector.StructNameResolver: the Solidity
// tuple spelling of a struct's field types, e.g. "(uint64,address)".
func (c *Context) StructTupleName(h ir.DatatypeHandle, typeArgs []ir.Type) string {
	fields := c.StructFieldTypes(h, typeArgs)
	out := "("
	for i, ft := range fields {
		if i > 0 {
			out += ","
		}
		out += solidityTypeNameInline(ft, c)
	}
	return out + ")"
}

// solidityTypeNameInline avoids importing internal/selector (which would
// import modctx back for StructNameResolver, an import cycle); struct
// field names are rare enough in practice that duplicating the small
// scalar-name switch here is preferable to restructuring the two
// packages' dependency direction.
func solidityTypeNameInline(t ir.Type, c *Context) string {
	switch t.Kind() {
	case ir.KindBool:
		return "bool"
	case ir.KindU8:
		return "uint8"
	case ir.KindU16:
		return "uint16"
	case ir.KindU32:
		return "uint32"
	case ir.KindU64:
		return "uint64"
	case ir.KindU128:
		return "uint128"
	case ir.KindU256:
		return "uint256"
	case ir.KindAddress:
		return "address"
	case ir.KindVector:
		return solidityTypeNameInline(t.Inner(), c) + "[]"
	case ir.KindStruct, ir.KindGenericStructInstance:
		return c.StructTupleName(t.Handle(), t.TypeArgs())
	case ir.KindRef, ir.KindMutRef:
		return solidityTypeNameInline(t.Inner(), c)
	default:
		panic(fmt.Sprintf("modctx: %s has no Solidity ABI type name", t.Kind()))
	}
}

func cacheKey(h ir.DatatypeHandle, typeArgs []ir.Type) string {
	key := fmt.Sprintf("%s#%d", h.Module, h.Index)
	for _, a := range typeArgs {
		key += "," + ir.MangleName(a)
	}
	return key
}

// FunctionByIndex resolves a function definition by its index in the
// module's function table.
func (c *Context) FunctionByIndex(idx movebin.Handle) (movebin.FunctionDefinition, error) {
	if int(idx) >= len(c.mod.Functions) {
		return movebin.FunctionDefinition{}, fmt.Errorf("modctx: unresolved function handle %d", idx)
	}
	return c.mod.Functions[idx], nil
}

// Constant resolves a constant pool entry.
func (c *Context) Constant(h movebin.ConstantHandle) (movebin.ConstantPoolEntry, error) {
	if int(h) >= len(c.mod.ConstantPool) {
		return movebin.ConstantPoolEntry{}, fmt.Errorf("modctx: unresolved constant handle %d", h)
	}
	return c.mod.ConstantPool[h], nil
}

// Signature resolves a signature-pool entry.
func (c *Context) Signature(h movebin.SignatureHandle) (movebin.Signature, error) {
	if int(h) >= len(c.mod.Signatures) {
		return nil, fmt.Errorf("modctx: unresolved signature handle %d", h)
	}
	return c.mod.Signatures[h], nil
}
