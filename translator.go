// Package movewasm translates a parsed Move bytecode module into a
// Stylus-compatible WebAssembly binary. It is the single public entry
// point: every internal package (modctx, ir, translator, wrapper, abi,
// runtime, storage, selector, hostabi, entrypoint, wasmmod) is wired
// together here, behind one Translate-shaped API.
package movewasm

import (
	"github.com/stylusmove/movewasm/internal/entrypoint"
	"github.com/stylusmove/movewasm/internal/movebin"
)

// Option configures a Translate call. It is a thin re-export of
// entrypoint.Option so callers never need to import an internal package
// to configure a translation.
type Option = entrypoint.Option

// WithConstructorGuard enables or disables synthesizing a constructor
// wrapper around a declared `init` function. Enabled by default.
func WithConstructorGuard(enabled bool) Option {
	return entrypoint.WithConstructorGuard(enabled)
}

// WithOwnerSentinelLabels overrides the preimages the reserved shared/
// frozen owner sentinel slots are derived from.
func WithOwnerSentinelLabels(shared, frozen string) Option {
	return entrypoint.WithOwnerSentinelLabels(shared, frozen)
}

// Translate lowers mod into a Stylus contract's WebAssembly binary: every
// public or entry function becomes a selector-routed wrapper, struct and
// vector layouts follow a pointer-indirection convention, and the result
// carries the exported memory, user_entrypoint, and vm_hooks imports
// Stylus requires.
func Translate(mod *movebin.Module, opts ...Option) ([]byte, error) {
	out, err := entrypoint.Assemble(mod, opts...)
	if err != nil {
		return nil, err
	}
	return out.Encode(), nil
}
