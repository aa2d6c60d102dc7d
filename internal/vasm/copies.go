/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package vasm

// Move is one requested register-to-register move in a parallel copy: all
// moves in a batch read their Src before any of them writes a Dst.
type Move struct {
	Dst, Src PhysReg
}

// RegOp is a single scheduled instruction lowering one step of a parallel
// copy: either an ordinary move (Xchg == false) or an in-place swap.
type RegOp struct {
	Dst, Src PhysReg
	Xchg     bool
}

// DoRegMoves lowers a set of simultaneous register-to-register moves into a
// sequence that respects the parallel-copy semantics (every source is read
// with its pre-copy value), using tmp as the only scratch register
// available to break cycles. This is the external collaborator the
// spec calls a "parallel-copy sequencer"; the algorithm is the standard
// one for serializing a permutation-plus-forest of register moves:
// repeatedly emit any move whose destination is not also a pending
// source (it can't be clobbered later), and when only cycles remain,
// break one with tmp (or, for a simple 2-cycle, a direct Xchg).
func DoRegMoves(moves []Move, tmp PhysReg) []RegOp {
	pending := make([]Move, len(moves))
	copy(pending, moves)

	var out []RegOp

	srcOf := func(dst PhysReg) (PhysReg, bool) {
		for _, m := range pending {
			if m.Dst == dst {
				return m.Src, true
			}
		}
		return NoPhysReg, false
	}

	isPendingSrc := func(r PhysReg) bool {
		for _, m := range pending {
			if m.Src == r {
				return true
			}
		}
		return false
	}

	remove := func(dst PhysReg) {
		for i, m := range pending {
			if m.Dst == dst {
				pending = append(pending[:i], pending[i+1:]...)
				return
			}
		}
	}

	for len(pending) > 0 {
		progressed := false

		for _, m := range pending {
			if m.Dst == m.Src {
				remove(m.Dst)
				progressed = true
				break
			}
			if !isPendingSrc(m.Dst) {
				out = append(out, RegOp{Dst: m.Dst, Src: m.Src})
				remove(m.Dst)
				progressed = true
				break
			}
		}

		if progressed {
			continue
		}

		// every remaining move sits on a cycle. A 2-cycle can be broken
		// with a single hardware Xchg; anything longer needs tmp.
		m := pending[0]

		if src, ok := srcOf(m.Src); ok && src == m.Dst {
			out = append(out, RegOp{Dst: m.Dst, Src: m.Src, Xchg: true})
			remove(m.Dst)
			remove(m.Src)
			continue
		}

		out = append(out, RegOp{Dst: tmp, Src: m.Dst})

		for i, p := range pending {
			if p.Src == m.Dst {
				pending[i].Src = tmp
			}
		}

		out = append(out, RegOp{Dst: m.Dst, Src: m.Src})
		remove(m.Dst)
	}

	return out
}
