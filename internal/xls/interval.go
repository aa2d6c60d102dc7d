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
	"math"
	"sort"

	"github.com/roba269/hhvm/internal/vasm"
)

const maxPos = math.MaxInt32

// LiveRange is a half-open [Start,End) range of positions.
type LiveRange struct {
	Start, End int
}

func (r LiveRange) Contains(pos int) bool {
	return pos >= r.Start && pos < r.End
}

func (r LiveRange) ContainsRange(o LiveRange) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func (r LiveRange) Intersects(o LiveRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Use is one use or def site within an interval (§3). Hint, if valid,
// names another vreg this use would like to share a physreg with once
// that vreg has itself been assigned.
type Use struct {
	Kind vasm.Constraint
	Pos  int
	Hint vasm.Vreg
}

// Interval is the lifetime of one vreg, possibly split into a chain of
// children (§3). Every child shares its leader's Vreg, Wide, Constant, Val
// and Slot; only ranges/uses/reg differ between children.
type Interval struct {
	Vreg   vasm.Vreg
	Parent *Interval // nil for the leader
	Next   *Interval // singly linked chain of children, sorted by start

	Ranges []LiveRange
	Uses   []Use

	Reg  vasm.PhysReg // assigned physical register, or NoPhysReg
	Slot int          // leader-owned spill slot, or -1
	Wide bool

	Constant bool
	Val      int64

	DefPos int
	Class  vasm.Constraint

	fixed bool // set by assignRegisters for intervals standing for a physical register
}

const NoSlot = -1

// DebugVreg/DebugRanges/DebugReg/DebugSlot implement xlsdebug.Interval so
// the dump/draw helpers can render an allocator-core Interval without this
// package importing xlsdebug.
func (iv *Interval) DebugVreg() int32 { return int32(iv.Vreg) }

func (iv *Interval) DebugRanges() [][2]int {
	out := make([][2]int, len(iv.Ranges))
	for i, r := range iv.Ranges {
		out[i] = [2]int{r.Start, r.End}
	}
	return out
}

func (iv *Interval) DebugReg() int { return int(iv.Reg) }

func (iv *Interval) DebugSlot() int { return iv.Leader().Slot }

// Leader returns the chain's leader interval (itself, if it has no parent).
func (iv *Interval) Leader() *Interval {
	cur := iv
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Fixed reports whether this interval stands for a physical register
// (pre-colored): fixed intervals are seeded directly with Reg set and never
// go through pending (see assignRegisters).
func (iv *Interval) Fixed() bool {
	return iv.Leader().fixed
}

func (iv *Interval) Start() int {
	if len(iv.Ranges) == 0 {
		return maxPos
	}
	start := iv.Ranges[0].Start
	for _, r := range iv.Ranges {
		if r.Start < start {
			start = r.Start
		}
	}
	return start
}

func (iv *Interval) End() int {
	end := 0
	for _, r := range iv.Ranges {
		if r.End > end {
			end = r.End
		}
	}
	return end
}

// Covers reports whether pos falls within one of iv's live ranges.
func (iv *Interval) Covers(pos int) bool {
	for _, r := range iv.Ranges {
		if r.Contains(pos) {
			return true
		}
		if pos < r.Start {
			break
		}
	}
	return false
}

// UsedAt reports whether iv has a recorded use exactly at pos.
func (iv *Interval) UsedAt(pos int) bool {
	for _, u := range iv.Uses {
		if u.Pos == pos {
			return true
		}
		if u.Pos > pos {
			break
		}
	}
	return false
}

// FirstUse returns the position of iv's earliest recorded use, or maxPos.
func (iv *Interval) FirstUse() int {
	if len(iv.Uses) == 0 {
		return maxPos
	}
	return iv.Uses[0].Pos
}

// FirstUseAfter returns the earliest use at or after pos, or maxPos.
func (iv *Interval) FirstUseAfter(pos int) int {
	for _, u := range iv.Uses {
		if u.Pos >= pos {
			return u.Pos
		}
	}
	return maxPos
}

// LastUseBefore returns the latest use at or before pos, or -1.
func (iv *Interval) LastUseBefore(pos int) int {
	best := -1
	for _, u := range iv.Uses {
		if u.Pos > pos {
			break
		}
		best = u.Pos
	}
	return best
}

// ChildAt returns the chain member covering pos: the one whose range
// contains it, or (SSA shortcut, §4.5) the nearest child starting at or
// before pos if none covers it exactly (a rename target between ranges).
func (iv *Interval) ChildAt(pos int) *Interval {
	leader := iv.Leader()
	var best *Interval

	for cur := leader; cur != nil; cur = cur.Next {
		if cur.Covers(pos) {
			return cur
		}
		if cur.Start() <= pos && (best == nil || cur.Start() > best.Start()) {
			best = cur
		}
	}

	if best != nil {
		return best
	}
	return leader
}

// AddRange extends iv with a live range, built during the backward walk of
// buildIntervals (§4.2). Ranges are added in reverse chronological order,
// so a new range either merges with the current first element (abutting
// or overlapping), is subsumed by it, or is prepended.
func (iv *Interval) AddRange(r LiveRange) {
	if len(iv.Ranges) == 0 {
		iv.Ranges = append(iv.Ranges, r)
		return
	}

	first := &iv.Ranges[0]

	switch {
	case r.Start <= first.End && first.Start <= r.End:
		if r.Start < first.Start {
			first.Start = r.Start
		}
		if r.End > first.End {
			first.End = r.End
		}
	case r.End <= first.Start:
		iv.Ranges = append(iv.Ranges, LiveRange{})
		copy(iv.Ranges[1:], iv.Ranges)
		iv.Ranges[0] = r
	default:
		iv.Ranges = append([]LiveRange{r}, iv.Ranges...)
	}
}

// sortUses restores chronological use order after the backward walk
// appended uses back-to-front. Ranges need no reordering: AddRange
// prepends, so they are already ascending.
func (iv *Interval) sortUses() {
	sort.SliceStable(iv.Uses, func(i, j int) bool { return iv.Uses[i].Pos < iv.Uses[j].Pos })
}

// NextIntersect returns the smallest position at which a and b overlap, or
// maxPos if they never do. Both leaders of non-fixed intervals never
// intersect under the SSA assumption (each vreg has exactly one def);
// callers exploit this as a short-circuit (§4.3).
func NextIntersect(a, b *Interval) int {
	if a == b {
		return a.Start()
	}
	if a.Parent == nil && b.Parent == nil && !a.Fixed() && !b.Fixed() {
		return maxPos
	}
	for _, ra := range a.Ranges {
		for _, rb := range b.Ranges {
			if ra.Intersects(rb) {
				if ra.Start > rb.Start {
					return ra.Start
				}
				return rb.Start
			}
		}
	}
	return maxPos
}

// NearestSplitBefore returns pos if pos is a block start, else the nearest
// odd (between-instruction) position at or before pos (§4.3).
func NearestSplitBefore(ctx *Context, pos int) int {
	for _, bb := range ctx.Blocks {
		if r := ctx.Ranges[bb.Label]; r.start == pos {
			return pos
		}
	}
	if pos%2 == 0 {
		return pos - 1
	}
	return pos
}

// Split detaches the suffix of iv starting at pos into a new child linked
// into the chain right after iv, bisecting any range straddling pos.
// Uses exactly at pos stay with the first (this) child iff keepUses.
func (iv *Interval) Split(pos int, keepUses bool) *Interval {
	leader := iv.Leader()

	child := &Interval{
		Vreg:   iv.Vreg,
		Parent: leader,
		Reg:    vasm.NoPhysReg,
		Slot:   iv.Slot,
		Wide:   iv.Wide,
		Class:  iv.Class,

		Constant: iv.Constant,
		Val:      iv.Val,
	}

	var keepRanges, moveRanges []LiveRange

	for _, r := range iv.Ranges {
		switch {
		case r.End <= pos:
			keepRanges = append(keepRanges, r)
		case r.Start >= pos:
			moveRanges = append(moveRanges, r)
		default:
			keepRanges = append(keepRanges, LiveRange{Start: r.Start, End: pos})
			moveRanges = append(moveRanges, LiveRange{Start: pos, End: r.End})
		}
	}

	var keepUsesList, moveUses []Use

	for _, u := range iv.Uses {
		switch {
		case u.Pos < pos, u.Pos == pos && keepUses:
			keepUsesList = append(keepUsesList, u)
		default:
			moveUses = append(moveUses, u)
		}
	}

	iv.Ranges = keepRanges
	iv.Uses = keepUsesList
	child.Ranges = moveRanges
	child.Uses = moveUses

	child.Next = iv.Next
	iv.Next = child

	return child
}
