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

package xls

import (
	"sort"

	"github.com/roba269/hhvm/internal/vasm"
)

// LiveSet is a dynamic bitset indexed by vreg number (§3). A plain Go map
// would work but a []uint64 word array keeps computeLiveness's inner loop,
// which runs to fixpoint over every block, away from map overhead; none of
// the example repos carry a bitset library for this, so it is hand-rolled
// (see DESIGN.md).
type LiveSet []uint64

func newLiveSet(n int) LiveSet {
	return make(LiveSet, (n+63)/64+1)
}

func (s LiveSet) word(r vasm.Vreg) (int, uint64) {
	i := int(r)
	return i / 64, uint64(1) << uint(i%64)
}

func (s LiveSet) Add(r vasm.Vreg) bool {
	w, bit := s.word(r)
	if w >= len(s) {
		return false
	}
	if s[w]&bit != 0 {
		return false
	}
	s[w] |= bit
	return true
}

func (s LiveSet) Remove(r vasm.Vreg) bool {
	w, bit := s.word(r)
	if w >= len(s) || s[w]&bit == 0 {
		return false
	}
	s[w] &^= bit
	return true
}

func (s LiveSet) Has(r vasm.Vreg) bool {
	w, bit := s.word(r)
	return w < len(s) && s[w]&bit != 0
}

func (s LiveSet) Clone() LiveSet {
	c := make(LiveSet, len(s))
	copy(c, s)
	return c
}

func (s LiveSet) UnionFrom(other LiveSet) (changed bool) {
	for i := range other {
		if i >= len(s) {
			break
		}
		if other[i]&^s[i] != 0 {
			s[i] |= other[i]
			changed = true
		}
	}
	return
}

func (s LiveSet) Equal(other LiveSet) bool {
	for i := 0; i < len(s) || i < len(other); i++ {
		var a, b uint64
		if i < len(s) {
			a = s[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// Vregs returns the set members in ascending order; buildIntervals uses it
// to seed each block's live-out ranges.
func (s LiveSet) Vregs() []vasm.Vreg {
	var out []vasm.Vreg
	for w, word := range s {
		if word == 0 {
			continue
		}
		for b := 0; b < 64; b++ {
			if word&(uint64(1)<<uint(b)) != 0 {
				out = append(out, vasm.Vreg(w*64+b))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// computeLiveness runs the backward iterative dataflow of §4.1: a worklist
// over blocks in reverse post-order, recomputing live_out as the union of
// successors' live_in, walking each block's instructions backward (defs
// kill, uses and across-uses gen), and reinserting predecessors whenever a
// block's live_in set changes. Sf-kinded operands are renamed to the
// singleton flags vreg slot before being folded into the set, so the
// flags register is tracked like any other pre-colored value.
func computeLiveness(ctx *Context) {
	n := ctx.NumVregs + 1
	liveOut := make(map[vasm.Vlabel]LiveSet, len(ctx.Blocks))

	for _, bb := range ctx.Blocks {
		ctx.LiveIn[bb.Label] = newLiveSet(n)
		liveOut[bb.Label] = newLiveSet(n)
	}

	work := make([]*vasm.Vblock, len(ctx.Blocks))
	copy(work, ctx.Blocks)
	queued := make(map[vasm.Vlabel]bool, len(ctx.Blocks))
	for _, bb := range work {
		queued[bb.Label] = true
	}

	for len(work) > 0 {
		bb := work[len(work)-1]
		work = work[:len(work)-1]
		queued[bb.Label] = false

		out := liveOut[bb.Label]
		for _, s := range bb.Succs {
			out.UnionFrom(ctx.LiveIn[s])
		}

		live := out.Clone()

		for i := len(bb.Code) - 1; i >= 0; i-- {
			ins := bb.Code[i]

			vasm.VisitDefs(ins, func(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {
				live.Remove(liveKey(r, kind))
			})

			vasm.VisitOperands(ins, &livenessVisitor{live: live})
		}

		in := ctx.LiveIn[bb.Label]

		if !in.Equal(live) {
			copy(in, live)
			for _, p := range bb.Preds {
				if !queued[p] {
					queued[p] = true
					work = append(work, ctx.Unit.Block(p))
				}
			}
		}
	}
}

type livenessVisitor struct {
	live LiveSet
}

func (v *livenessVisitor) Use(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {
	v.live.Add(liveKey(r, kind))
}

func (v *livenessVisitor) Def(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {}

func (v *livenessVisitor) Across(r vasm.Vreg, kind vasm.Constraint) {
	v.live.Add(liveKey(r, kind))
}

// liveKey renames Sf-kinded operands to a single reserved slot so the
// flags register is pre-coalesced before interval construction ever sees
// it, per §3's "flags register is pre-coalesced" invariant.
func liveKey(r vasm.Vreg, kind vasm.Constraint) vasm.Vreg {
	if kind == vasm.Sf {
		return flagsVreg
	}
	return r
}

// flagsVreg is vreg 0, the slot Vunit.NewVreg never issues (it starts
// counting at 1) and vasm.Vreg reserves to mean "no register"; liveness and
// interval construction repurpose it as the stand-in for the singleton
// flags physreg.
const flagsVreg vasm.Vreg = 0
