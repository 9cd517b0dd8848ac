package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/ir"
)

// typeStack mirrors the Move operand stack at translation time: every
// opcode lowering pops the types it consumes and pushes the types
// it produces, so the emitted WebAssembly instruction sequence's actual
// value-stack effect is checked against the Move type system's expected
// effect before a single byte reaches the output module.
type typeStack struct {
	fn    string
	stack []ir.Type
}

func newTypeStack(fn string) *typeStack {
	return &typeStack{fn: fn}
}

func (s *typeStack) push(t ir.Type) {
	s.stack = append(s.stack, t)
}

func (s *typeStack) pop() (ir.Type, error) {
	if len(s.stack) == 0 {
		return ir.Type{}, fmt.Errorf("%s: %w", s.fn, ErrTypeStackUnderflow)
	}
	t := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return t, nil
}

// popExpect pops one value and requires it to match want, by Kind.
func (s *typeStack) popExpect(want ir.Kind) (ir.Type, error) {
	t, err := s.pop()
	if err != nil {
		return ir.Type{}, err
	}
	if t.Kind() != want {
		return ir.Type{}, fmt.Errorf("%s: expected %s, got %s: %w", s.fn, want, t.Kind(), ErrTypeStackMismatch)
	}
	return t, nil
}

func (s *typeStack) peek() (ir.Type, error) {
	if len(s.stack) == 0 {
		return ir.Type{}, fmt.Errorf("%s: %w", s.fn, ErrTypeStackUnderflow)
	}
	return s.stack[len(s.stack)-1], nil
}

func (s *typeStack) len() int { return len(s.stack) }

// clear empties the simulated stack, used after Ret/Abort: both opcodes
// end the current control path, so whatever the verifier's own
// unreachable-code rules leave on wasm's value stack afterward has no
// Move-level type to track.
func (s *typeStack) clear() { s.stack = s.stack[:0] }

// atExit checks that the simulated stack exactly matches a function's
// declared return types at a Ret opcode.
func (s *typeStack) atExit(returns []ir.Type) error {
	if len(s.stack) != len(returns) {
		return fmt.Errorf("%s: expected %d return value(s) on stack, have %d: %w", s.fn, len(returns), len(s.stack), ErrTypeStackMismatch)
	}
	for i, want := range returns {
		if !ir.Equal(s.stack[i], want) {
			return fmt.Errorf("%s: return slot %d: expected %s, got %s: %w", s.fn, i, want.Kind(), s.stack[i].Kind(), ErrTypeStackMismatch)
		}
	}
	return nil
}
