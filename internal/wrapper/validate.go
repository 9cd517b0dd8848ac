package wrapper

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
)

// FieldLister resolves struct field types, narrowed from
// ir.StructFieldLister so this package never imports internal/modctx
// directly (the same narrow-interface discipline internal/abi and
// internal/selector follow).
type FieldLister interface {
	ir.StructFieldLister
}

// ValidateSignature checks a public function's parameter list against the
// wrapper's validation rules, before any wrapper code is emitted. Return
// types are not validated here: the ABI bridge already rejects any kind
// it has no pack rule for, and Signer/generic concerns are parameter-only.
func ValidateSignature(fnName string, params []ir.Type, ctx FieldLister) error {
	signerSeen := false
	for i, p := range params {
		if containsUnmonomorphized(p) {
			return fmt.Errorf("%s: parameter %d: %w", fnName, i, ErrUnmonomorphized)
		}
		if err := checkNoDoubleReference(p); err != nil {
			return fmt.Errorf("%s: parameter %d: %w", fnName, i, err)
		}
		if p.Kind() == ir.KindSigner || isRefToSigner(p) {
			if i != 0 {
				return fmt.Errorf("%s: parameter %d: %w", fnName, i, ErrSignerNotFirst)
			}
			if signerSeen {
				return fmt.Errorf("%s: parameter %d: %w", fnName, i, ErrMultipleSigners)
			}
			signerSeen = true
			continue
		}
		if ir.ContainsSigner(p, ctx) {
			return fmt.Errorf("%s: parameter %d: %w", fnName, i, ErrSignerInCompound)
		}
	}
	return nil
}

func isRefToSigner(t ir.Type) bool {
	switch t.Kind() {
	case ir.KindRef, ir.KindMutRef:
		return t.Inner().Kind() == ir.KindSigner
	default:
		return false
	}
}

func checkNoDoubleReference(t ir.Type) error {
	switch t.Kind() {
	case ir.KindRef, ir.KindMutRef:
		inner := t.Inner()
		if inner.Kind() == ir.KindRef || inner.Kind() == ir.KindMutRef {
			return ErrDoubleReference
		}
	}
	return nil
}

func containsUnmonomorphized(t ir.Type) bool {
	switch t.Kind() {
	case ir.KindTypeParameter:
		return true
	case ir.KindVector, ir.KindRef, ir.KindMutRef:
		return containsUnmonomorphized(t.Inner())
	case ir.KindGenericStructInstance:
		for _, a := range t.TypeArgs() {
			if containsUnmonomorphized(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
