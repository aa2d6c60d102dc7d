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

import "github.com/roba269/hhvm/internal/vasm"

// buildIntervals walks blocks in reverse order, extending each live vreg's
// interval by the whole block range, then walking instructions backward
// within the block to carve out the precise def/use shape (§4.2). It
// returns one Interval per vreg (including a reserved one for Sf), indexed
// by vreg number.
func buildIntervals(ctx *Context) []*Interval {
	n := ctx.NumVregs + 1
	intervals := make([]*Interval, n)

	get := func(r vasm.Vreg) *Interval {
		if intervals[r] == nil {
			intervals[r] = &Interval{Vreg: r, Reg: vasm.NoPhysReg, Slot: NoSlot, Class: vasm.Any}
		}
		return intervals[r]
	}

	for i := len(ctx.Blocks) - 1; i >= 0; i-- {
		bb := ctx.Blocks[i]
		rng := ctx.Ranges[bb.Label]

		live := newLiveSet(n)
		for _, s := range bb.Succs {
			live.UnionFrom(ctx.LiveIn[s])
		}

		for _, r := range live.Vregs() {
			get(r).AddRange(LiveRange{Start: rng.start, End: rng.end})
		}

		for j := len(bb.Code) - 1; j >= 0; j-- {
			ins := bb.Code[j]
			p := ins.Pos

			vasm.VisitOperands(ins, &buildVisitor{
				ctx: ctx, get: get, live: live, pos: p, blockStart: rng.start,
			})
		}

		vasm.Assert(live.Equal(ctx.LiveIn[bb.Label]), "buildIntervals: recomputed live set for block %d doesn't match stored live_in", bb.Label)
	}

	for _, iv := range intervals {
		if iv == nil {
			continue
		}
		iv.sortUses()
	}

	for r, val := range ctx.Unit.Consts {
		iv := get(r)
		iv.Constant = true
		iv.Val = val
		iv.Slot = NoSlot
		if len(iv.Ranges) > 0 {
			iv.Ranges[0].Start = 0
		}
	}

	return intervals
}

type buildVisitor struct {
	ctx        *Context
	get        func(vasm.Vreg) *Interval
	live       LiveSet
	pos        int
	blockStart int
}

func (v *buildVisitor) Def(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {
	key := liveKey(r, kind)
	iv := v.get(key)

	wasLive := v.live.Has(key)
	v.live.Remove(key)

	if wasLive && len(iv.Ranges) > 0 {
		iv.Ranges[0].Start = v.pos
	} else {
		iv.AddRange(LiveRange{Start: v.pos, End: v.pos + 1})
	}

	iv.Uses = append(iv.Uses, Use{Kind: kind, Pos: v.pos, Hint: hint})
	iv.DefPos = v.pos
	if iv.Class == vasm.Any {
		iv.Class = kind
	}
}

func (v *buildVisitor) Use(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {
	key := liveKey(r, kind)
	iv := v.get(key)

	v.live.Add(key)
	iv.AddRange(LiveRange{Start: v.blockStart, End: v.pos})
	iv.Uses = append(iv.Uses, Use{Kind: kind, Pos: v.pos, Hint: hint})
	if iv.Class == vasm.Any {
		iv.Class = kind
	}
}

func (v *buildVisitor) Across(r vasm.Vreg, kind vasm.Constraint) {
	key := liveKey(r, kind)
	iv := v.get(key)

	v.live.Add(key)
	iv.AddRange(LiveRange{Start: v.blockStart, End: v.pos + 1})
	if iv.Class == vasm.Any {
		iv.Class = kind
	}
}
