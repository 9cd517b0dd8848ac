package entrypoint

import (
	"errors"
	"fmt"

	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// Stylus-interface validation errors.
var (
	ErrMissingUserEntrypoint = errors.New("entrypoint: module does not export user_entrypoint: (i32) -> i32")
	ErrMissingMemoryExport   = errors.New("entrypoint: module does not export memory of the prescribed shape")
	ErrMissingMemoryGrowHook = errors.New("entrypoint: module does not import vm_hooks.pay_for_memory_grow")
)

// Validate runs the base structural validator (wasmmod.Module.Validate)
// and then checks the additional shape the Stylus contract ABI requires:
// a `user_entrypoint: (i32) -> i32` export, a `memory`
// export of one initial page with no maximum, and a `pay_for_memory_grow`
// import — regardless of whether the translated code happens to call it
// directly, since the bump allocator always does.
func Validate(mod *wasmmod.Module, hi *hostabi.Imports) error {
	if err := mod.Validate(); err != nil {
		return err
	}

	var entryFound bool
	for _, e := range mod.Exports {
		if e.Name != "user_entrypoint" || e.Kind != wasmmod.ExportKindFunc {
			continue
		}
		ft := mod.Types[mod.Functions[e.Index-uint32(len(mod.Imports))].TypeIndex]
		if len(ft.Params) == 1 && ft.Params[0] == wasmmod.ValueTypeI32 &&
			len(ft.Results) == 1 && ft.Results[0] == wasmmod.ValueTypeI32 {
			entryFound = true
		}
	}
	if !entryFound {
		return ErrMissingUserEntrypoint
	}

	if mod.Memory == nil || mod.Memory.InitialPages != 1 || mod.Memory.HasMax {
		return ErrMissingMemoryExport
	}
	memExported := false
	for _, e := range mod.Exports {
		if e.Name == "memory" && e.Kind == wasmmod.ExportKindMemory {
			memExported = true
		}
	}
	if !memExported {
		return ErrMissingMemoryExport
	}

	if !hi.Declared(hostabi.NamePayForMemoryGrow) {
		return ErrMissingMemoryGrowHook
	}
	return nil
}

// entrypointFunctionIndex resolves an export's function index back to its
// local (non-imported) Function entry, reporting an out-of-range index as
// an error rather than a slice-index panic. Nothing in this package calls
// it: Validate indexes mod.Functions directly.
func entrypointFunctionIndex(mod *wasmmod.Module, exportIdx uint32) (int, error) {
	local := int(exportIdx) - len(mod.Imports)
	if local < 0 || local >= len(mod.Functions) {
		return 0, fmt.Errorf("entrypoint: export function index %d out of range", exportIdx)
	}
	return local, nil
}
