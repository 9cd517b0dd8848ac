package wrapper

import "errors"

// Translation-time validation errors. Wrapped with fmt.Errorf by the
// validator to attach the offending function's name.
var (
	ErrSignerNotFirst   = errors.New("wrapper: signer parameter must be first")
	ErrMultipleSigners  = errors.New("wrapper: at most one signer parameter is allowed")
	ErrSignerInCompound = errors.New("wrapper: signer must not appear inside a vector or struct field")
	ErrDoubleReference  = errors.New("wrapper: reference to a reference is not allowed")
	ErrUnmonomorphized  = errors.New("wrapper: generic type parameter reached the wrapper unmonomorphized")
)
