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

// Spill records a store of the value currently in Reg (holding Src) to
// Src's leader's slot.
type Spill struct {
	Reg vasm.PhysReg
	Src *Interval
}

// CopyEdit records one step of a parallel copy: the dest register wants
// Src's value.
type CopyEdit struct {
	Dst vasm.PhysReg
	Src *Interval
}

type edgeKey struct {
	from vasm.Vlabel
	succ int
}

// ResolutionPlan is the set of edits resolveLifetimes computes and
// insertCopies materializes (§4.4).
type ResolutionPlan struct {
	Spills     map[int][]Spill
	Copies     map[int][]CopyEdit
	EdgeCopies map[edgeKey][]CopyEdit
}

func newResolutionPlan() *ResolutionPlan {
	return &ResolutionPlan{
		Spills:     make(map[int][]Spill),
		Copies:     make(map[int][]CopyEdit),
		EdgeCopies: make(map[edgeKey][]CopyEdit),
	}
}

// resolveLifetimes builds the ResolutionPlan: one store per spilled
// interval, one copy per adjacent split with a register change, one copy
// per lowered copy-family instruction, and one edge copy per live-in vreg
// whose location differs across a CFG edge (§4.4).
func resolveLifetimes(ctx *Context, intervals []*Interval) *ResolutionPlan {
	plan := newResolutionPlan()

	resolveSplits(ctx, plan, intervals)
	lowerCopies(ctx, plan, intervals)
	resolveEdges(ctx, plan, intervals)

	return plan
}

func resolveSplits(ctx *Context, plan *ResolutionPlan, intervals []*Interval) {
	for _, leader := range intervals {
		if leader == nil || leader.Parent != nil {
			continue
		}

		// a vreg's spill store is emitted exactly once, at the leader's own
		// definition, never per split child: only the leader's DefPos names
		// a real definition point, and every later register->memory
		// transition within the chain is already covered by the adjacent-
		// children copy loop below.
		if leader.Slot != NoSlot && !leader.Constant {
			plan.Spills[leader.DefPos+1] = append(plan.Spills[leader.DefPos+1], Spill{
				Reg: leader.Reg,
				Src: leader,
			})
		}

		for c1 := leader; c1 != nil && c1.Next != nil; c1 = c1.Next {
			c2 := c1.Next
			if c1.End() != c2.Start() {
				continue
			}
			if c1.Reg == c2.Reg {
				continue
			}
			pos := c1.End()
			if pos%2 == 0 {
				continue
			}
			if isBlockBoundary(ctx, pos) {
				continue
			}
			if c2.Reg == vasm.NoPhysReg {
				continue
			}
			plan.Copies[pos] = append(plan.Copies[pos], CopyEdit{Dst: c2.Reg, Src: c1})
		}
	}
}

func isBlockBoundary(ctx *Context, pos int) bool {
	for _, bb := range ctx.Blocks {
		r := ctx.Ranges[bb.Label]
		if pos == r.start || pos == r.end {
			return true
		}
	}
	return false
}

// lowerCopies rewrites copy/copy2/copyargs instructions to no-ops and
// records their semantic moves as parallel copies at the same position.
func lowerCopies(ctx *Context, plan *ResolutionPlan, intervals []*Interval) {
	for _, bb := range ctx.Blocks {
		for _, ins := range bb.Code {
			switch ins.Op {
			case vasm.Copy, vasm.Copy2, vasm.Copyargs:
			default:
				continue
			}

			for i, u := range ins.Uses {
				if i >= len(ins.Defs) {
					break
				}
				d := ins.Defs[i]
				src := childAtOf(intervals, u.Reg, ins.Pos)
				if src == nil {
					continue
				}
				dst := childAtOf(intervals, d.Reg, ins.Pos+1)
				if dst == nil || dst.Reg == vasm.NoPhysReg {
					continue
				}
				plan.Copies[ins.Pos] = append(plan.Copies[ins.Pos], CopyEdit{Dst: dst.Reg, Src: src})
			}

			ins.Op = vasm.Nop
			ins.Uses = nil
			ins.Defs = nil
		}
	}
}

// resolveEdges records an edge copy for every successor live-in vreg whose
// assigned location differs between the predecessor's exit and the
// successor's entry, and rewrites phijmp/phijcc phi sources into edge
// copies too, turning the phi instruction into a plain jump.
func resolveEdges(ctx *Context, plan *ResolutionPlan, intervals []*Interval) {
	for _, bb := range ctx.Blocks {
		term := bb.Terminator()
		predEnd := ctx.Ranges[bb.Label].end - 1

		if term.Op == vasm.Phijmp || term.Op == vasm.Phijcc {
			for si := range bb.Succs {
				for _, phi := range term.Phis {
					if si >= len(phi.Sources) || !phi.Sources[si].Valid() {
						continue
					}
					src := childAtOf(intervals, phi.Sources[si], predEnd)
					dst := childAtOf(intervals, phi.Dest, ctx.Ranges[bb.Succs[si]].start)
					if src == nil || dst == nil || dst.Reg == vasm.NoPhysReg {
						continue
					}
					key := edgeKey{from: bb.Label, succ: si}
					plan.EdgeCopies[key] = append(plan.EdgeCopies[key], CopyEdit{Dst: dst.Reg, Src: src})
				}
			}

			if term.Op == vasm.Phijmp {
				term.Op = vasm.Jmp
			} else {
				term.Op = vasm.Jcc
			}
			term.Phis = nil
		}

		for si, succ := range bb.Succs {
			for _, v := range ctx.LiveIn[succ].Vregs() {
				src := childAtOf(intervals, v, predEnd)
				dst := childAtOf(intervals, v, ctx.Ranges[succ].start)
				if src == nil || dst == nil || src == dst {
					continue
				}
				if src.Reg == dst.Reg && !(src.Reg == vasm.NoPhysReg) {
					continue
				}
				if dst.Reg == vasm.NoPhysReg {
					continue
				}
				key := edgeKey{from: bb.Label, succ: si}
				plan.EdgeCopies[key] = append(plan.EdgeCopies[key], CopyEdit{Dst: dst.Reg, Src: src})
			}
		}
	}
}

func childAtOf(intervals []*Interval, r vasm.Vreg, pos int) *Interval {
	if int(r) >= len(intervals) || intervals[r] == nil {
		return nil
	}
	return intervals[r].ChildAt(pos)
}
