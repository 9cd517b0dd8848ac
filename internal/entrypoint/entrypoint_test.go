package entrypoint

import (
	"testing"

	"github.com/stylusmove/movewasm/internal/hostabi"
	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/testing/require"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// echoModule returns a minimal single-function module: a public entry
// function `echo(u64) -> u64` that returns its argument unchanged.
func echoModule() *movebin.Module {
	return &movebin.Module{
		Address: "0x2a",
		Name:    "demo",
		Signatures: []movebin.Signature{
			{{Tag: movebin.TokU64}},
		},
		Functions: []movebin.FunctionDefinition{
			{
				Name:       "echo",
				Visibility: movebin.VisibilityPublic,
				Parameters: movebin.Signature{{Tag: movebin.TokU64}},
				Returns:    movebin.Signature{{Tag: movebin.TokU64}},
				Code: &movebin.CodeUnit{
					Instructions: []movebin.Bytecode{
						{Op: movebin.OpMoveLoc, Operand: 0},
						{Op: movebin.OpRet},
					},
				},
			},
		},
	}
}

func TestAssembleProducesValidatedModule(t *testing.T) {
	out, err := Assemble(echoModule())
	require.NoError(t, err)
	require.NoError(t, out.Validate())
}

func TestAssembleExportsUserEntrypointAndMemory(t *testing.T) {
	out, err := Assemble(echoModule())
	require.NoError(t, err)

	var sawEntry, sawMemory bool
	for _, e := range out.Exports {
		switch {
		case e.Name == "user_entrypoint" && e.Kind == wasmmod.ExportKindFunc:
			sawEntry = true
		case e.Name == "memory" && e.Kind == wasmmod.ExportKindMemory:
			sawMemory = true
		}
	}
	require.True(t, sawEntry)
	require.True(t, sawMemory)
}

func TestAssembleAlwaysImportsPayForMemoryGrow(t *testing.T) {
	out, err := Assemble(echoModule())
	require.NoError(t, err)

	found := false
	for _, imp := range out.Imports {
		if imp.Module == "vm_hooks" && imp.Name == "pay_for_memory_grow" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAssembleWithoutInitSkipsConstructorRoute(t *testing.T) {
	out, err := Assemble(echoModule())
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	for _, fn := range out.Functions {
		require.NotEqual(t, "constructor", fn.Name)
	}
}

func constructorModule() *movebin.Module {
	mod := echoModule()
	mod.Functions = append(mod.Functions, movebin.FunctionDefinition{
		Name:       "init",
		Visibility: movebin.VisibilityPrivate,
		Code: &movebin.CodeUnit{
			Instructions: []movebin.Bytecode{{Op: movebin.OpRet}},
		},
	})
	return mod
}

func TestAssembleWithInitBuildsConstructorGuard(t *testing.T) {
	out, err := Assemble(constructorModule())
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	found := false
	for _, fn := range out.Functions {
		if fn.Name == "constructor" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAssembleWithConstructorGuardDisabledSkipsConstructor(t *testing.T) {
	out, err := Assemble(constructorModule(), WithConstructorGuard(false))
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	for _, fn := range out.Functions {
		require.NotEqual(t, "constructor", fn.Name)
	}
}

func TestValidateRejectsModuleMissingEntrypointExport(t *testing.T) {
	out, err := Assemble(echoModule())
	require.NoError(t, err)

	stripped := *out
	stripped.Exports = nil
	for _, e := range out.Exports {
		if e.Name == "memory" {
			stripped.Exports = append(stripped.Exports, e)
		}
	}
	hi := hostabi.New(&stripped)
	hi.Get(hostabi.NamePayForMemoryGrow) // re-register against the already-declared import
	require.Error(t, Validate(&stripped, hi))
}
