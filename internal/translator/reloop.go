package translator

import (
	"fmt"

	"github.com/stylusmove/movewasm/internal/movebin"
	"github.com/stylusmove/movewasm/internal/wasmmod"
)

// scopeKind distinguishes a structured loop (label targets the top, a
// back-edge) from a structured block (label targets just past the end, a
// forward skip), the two node shapes the reloop step produces besides
// straight-line code; a two-arm conditional is expressed here as a block
// scope guarding the "else" arm rather than a native wasm if/else.
type scopeKind int

const (
	scopeBlock scopeKind = iota
	scopeLoop
)

// scope is one structured control construct the stackify planner
// (planScopes) decided must wrap a contiguous run of basic blocks
// [start, end). target is the basic-block index a branch into this scope
// resolves to: end itself for a block scope (branching out of it lands
// just past it) or start for a loop scope (branching to it restarts the
// loop), mirroring the WebAssembly `br` label convention for `block` vs
// `loop`.
type scope struct {
	kind       scopeKind
	start, end int
	target     int
}

// contains reports whether block index i falls inside this scope's range.
func (s scope) contains(i int) bool { return i >= s.start && i < s.end }

// planScopes computes the block/loop scopes needed to express every
// branch in blocks as a properly nested wasm br/br_if, following the
// standard "stackifier" CFG-to-structured-control transformation (the
// same shape LLVM's WebAssemblyCFGStackify and Binaryen's Relooper
// produce for a reducible CFG): a forward branch needs an enclosing
// `block` ending exactly at its target; a backward branch needs an
// enclosing `loop` starting exactly at its target.
//
// This function does not attempt general (irreducible) control flow — if
// a loop-exit branch's computed block scope partially overlaps a loop
// scope instead of nesting cleanly inside or around it, the overlap is
// resolved by widening the block scope to enclose the whole loop (the
// standard fix for "break"-style forward edges originating inside a
// loop). More exotic crossing jumps are left for a caller's depthFor
// lookup to fail loudly on rather than guess at a structure.
func planScopes(blocks []basicBlock, code []movebin.Bytecode, leaderToBlock map[int]int) []scope {
	forwardMinSrc := map[int]int{} // target block idx -> earliest source block idx branching to it
	loopMaxSrc := map[int]int{}    // header block idx -> latest source block idx branching back to it

	for bi, b := range blocks {
		instr := b.lastOp(code)
		switch instr.Op {
		case movebin.OpBranch, movebin.OpBrTrue, movebin.OpBrFalse:
			tb, ok := leaderToBlock[int(instr.Operand)]
			if !ok {
				continue
			}
			if tb > bi {
				if cur, ok := forwardMinSrc[tb]; !ok || bi < cur {
					forwardMinSrc[tb] = bi
				}
			} else if tb <= bi {
				if cur, ok := loopMaxSrc[tb]; !ok || bi > cur {
					loopMaxSrc[tb] = bi
				}
			}
		}
	}

	var scopes []scope
	for header, lastSrc := range loopMaxSrc {
		scopes = append(scopes, scope{kind: scopeLoop, start: header, end: lastSrc + 1, target: header})
	}
	blockScopes := map[int]*scope{} // target block idx -> its scope
	for target, minSrc := range forwardMinSrc {
		s := scope{kind: scopeBlock, start: minSrc, end: target, target: target}
		scopes = append(scopes, s)
	}
	for i := range scopes {
		if scopes[i].kind == scopeBlock {
			blockScopes[scopes[i].target] = &scopes[i]
		}
	}

	// Widen any block scope that a loop scope partially overlaps (a
	// forward exit originating inside the loop but landing after it) so
	// the block scope fully encloses the loop instead of crossing it.
	for changed := true; changed; {
		changed = false
		for li := range scopes {
			if scopes[li].kind != scopeLoop {
				continue
			}
			loop := scopes[li]
			for bi := range scopes {
				if scopes[bi].kind != scopeBlock {
					continue
				}
				bs := &scopes[bi]
				overlaps := bs.start > loop.start && bs.start < loop.end && bs.end > loop.end
				if overlaps {
					bs.start = loop.start
					changed = true
				}
			}
		}
	}

	return scopes
}

// scopeStack tracks the currently open scopes during emission, innermost
// last, so depthFor can translate a branch target into a wasm relative
// label depth.
type scopeStack struct {
	open []scope
}

func (s *scopeStack) push(sc scope) { s.open = append(s.open, sc) }

func (s *scopeStack) popEnding(blockIdx int) (scope, bool) {
	n := len(s.open)
	if n == 0 || s.open[n-1].end != blockIdx {
		return scope{}, false
	}
	sc := s.open[n-1]
	s.open = s.open[:n-1]
	return sc, true
}

// depthFor returns the wasm branch depth reaching the scope whose label
// resolves to targetBlock, searching from the innermost open scope
// outward. It returns ErrUnsupportedBranchArity if no open scope targets
// that block: an unstructured crossing jump planScopes could not express
// as nested blocks/loops, reported as a translation-time error rather
// than left to panic.
func (s *scopeStack) depthFor(targetBlock int) (uint32, error) {
	for i := len(s.open) - 1; i >= 0; i-- {
		if s.open[i].target == targetBlock {
			return uint32(len(s.open) - 1 - i), nil
		}
	}
	return 0, fmt.Errorf("branch target block %d has no enclosing structured scope: %w", targetBlock, ErrUnsupportedBranchArity)
}

// emitScopeOpens opens every scope beginning exactly at blockIdx, widest
// (latest end) first so nesting stays consistent with how planScopes
// computed overlap, pushing each onto stack.
func emitScopeOpens(b *wasmmod.BodyBuilder, stack *scopeStack, scopes []scope, blockIdx int) {
	var opening []scope
	for _, sc := range scopes {
		if sc.start == blockIdx {
			opening = append(opening, sc)
		}
	}
	for i := 0; i < len(opening); i++ {
		for j := i + 1; j < len(opening); j++ {
			if opening[j].end > opening[i].end {
				opening[i], opening[j] = opening[j], opening[i]
			}
		}
	}
	for _, sc := range opening {
		if sc.kind == scopeLoop {
			b.Loop(wasmmod.VoidBlock)
		} else {
			b.Block(wasmmod.VoidBlock)
		}
		stack.push(sc)
	}
}

// emitScopeCloses closes every scope ending exactly at blockIdx,
// innermost first.
func emitScopeCloses(b *wasmmod.BodyBuilder, stack *scopeStack, blockIdx int) {
	for {
		if _, ok := stack.popEnding(blockIdx); !ok {
			return
		}
		b.End()
	}
}
