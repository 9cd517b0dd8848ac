package translator

import "github.com/stylusmove/movewasm/internal/movebin"

// basicBlock is a maximal run of instructions with a single entry (only
// reachable at its first instruction) and a single terminator, the unit
// the control-flow reconstruction step operates over.
type basicBlock struct {
	start, end int // instruction index range [start, end) into the function's flat code
}

// terminator classifies how control leaves a basicBlock.
type terminatorKind int

const (
	termFallthrough terminatorKind = iota // falls into the next block in program order
	termBranch                           // unconditional jump
	termBrTrue                           // pops a bool; true takes target, false falls through
	termBrFalse                          // pops a bool; false takes target, true falls through
	termReturn
	termAbort
)

func (b basicBlock) lastOp(code []movebin.Bytecode) movebin.Bytecode {
	return code[b.end-1]
}

func classifyTerminator(op movebin.Opcode) terminatorKind {
	switch op {
	case movebin.OpBranch:
		return termBranch
	case movebin.OpBrTrue:
		return termBrTrue
	case movebin.OpBrFalse:
		return termBrFalse
	case movebin.OpRet:
		return termReturn
	case movebin.OpAbort:
		return termAbort
	default:
		return termFallthrough
	}
}

// buildBasicBlocks partitions a flat instruction array into basic blocks,
// splitting at every branch target and immediately after every branch,
// return, or abort instruction (the standard leader algorithm). It also
// returns a map from instruction index to the index of the basicBlock
// that begins there, used to translate a Move jump operand (an
// instruction index) into a block index during structuring.
func buildBasicBlocks(code []movebin.Bytecode) ([]basicBlock, map[int]int) {
	n := len(code)
	isLeader := make([]bool, n)
	isLeader[0] = true
	for i, instr := range code {
		switch instr.Op {
		case movebin.OpBranch, movebin.OpBrTrue, movebin.OpBrFalse:
			target := int(instr.Operand)
			if target < n {
				isLeader[target] = true
			}
			if i+1 < n {
				isLeader[i+1] = true
			}
		case movebin.OpRet, movebin.OpAbort:
			if i+1 < n {
				isLeader[i+1] = true
			}
		}
	}
	var blocks []basicBlock
	leaderToBlock := map[int]int{}
	start := 0
	for i := 1; i <= n; i++ {
		if i == n || isLeader[i] {
			leaderToBlock[start] = len(blocks)
			blocks = append(blocks, basicBlock{start: start, end: i})
			start = i
		}
	}
	return blocks, leaderToBlock
}

// loopHeaders returns the set of block indices that are the target of
// some backward branch (target instruction <= the branching block's own
// start), i.e. every natural loop header in the function.
func loopHeaders(code []movebin.Bytecode, blocks []basicBlock, leaderToBlock map[int]int) map[int]bool {
	headers := map[int]bool{}
	for bi, b := range blocks {
		instr := b.lastOp(code)
		switch instr.Op {
		case movebin.OpBranch, movebin.OpBrTrue, movebin.OpBrFalse:
			target := int(instr.Operand)
			if target <= b.start {
				if tb, ok := leaderToBlock[target]; ok {
					headers[tb] = true
					_ = bi
				}
			}
		}
	}
	return headers
}
