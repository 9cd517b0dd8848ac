// Package selector computes Ethereum-style 4-byte function selectors and
// the canonical Solidity type names the translator's ABI bridge derives
// them from, deterministically across repeated runs over the same module.
package selector

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/stylusmove/movewasm/internal/ir"
)

// Compute returns the first four bytes of keccak256(canonical signature
// string), matching Solidity's selector rule: name + "(" + comma-joined
// parameter type names + ")".
func Compute(name string, paramTypeNames []string) [4]byte {
	sig := CanonicalSignature(name, paramTypeNames)
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(sig))
	sum := hash.Sum(nil)
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}

// CanonicalSignature renders the Solidity-style signature string a
// selector is computed from.
func CanonicalSignature(name string, paramTypeNames []string) string {
	return fmt.Sprintf("%s(%s)", name, strings.Join(paramTypeNames, ","))
}

// SolidityTypeName resolves the canonical Solidity ABI type name for an
// intermediate type, e.g. U128() -> "uint128", Vector(U8()) -> "uint8[]".
// Struct types resolve through the supplied resolver since their name
// (a Solidity tuple spelling) depends on field types known only to the
// module context.
func SolidityTypeName(t ir.Type, resolve StructNameResolver) string {
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
		return SolidityTypeName(t.Inner(), resolve) + "[]"
	case ir.KindStruct, ir.KindGenericStructInstance:
		return resolve.StructTupleName(t.Handle(), t.TypeArgs())
	case ir.KindRef, ir.KindMutRef:
		return SolidityTypeName(t.Inner(), resolve)
	default:
		panic(fmt.Sprintf("selector: %s has no Solidity ABI type name", t.Kind()))
	}
}

// StructNameResolver resolves a struct/enum handle's Solidity tuple-type
// spelling, e.g. "(uint64,address)"; implemented by internal/modctx.Context.
type StructNameResolver interface {
	StructTupleName(h ir.DatatypeHandle, typeArgs []ir.Type) string
}
