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
	"github.com/oleiade/lane"
	"github.com/roba269/hhvm/internal/vasm"
)

// vxls holds the linear-scan allocator's working state: the min-heap of
// not-yet-processed intervals, the active/inactive lists, and the
// spill-slot pool (§4.3).
type vxls struct {
	ctx *Context

	pending *lane.PQueue
	active  []*Interval
	inactive []*Interval

	// slotOwner[i] is the end position through which slot i is claimed, or
	// maxPos while in use.
	slotOwner []int

	punt error
}

// maxSpillSlots bounds the spill pool; exhausting it is the TooManySpills
// punt of §7, not a hard crash, since the driver may retry without this
// pass.
const maxSpillSlots = 4096

func newVxls(ctx *Context) *vxls {
	// pending pops the highest priority first; intervals are pushed with
	// their negated start, so the earliest start comes out first.
	return &vxls{
		ctx:     ctx,
		pending: lane.NewPQueue(lane.MAXPQ),
	}
}

// assignRegisters runs the linear-scan-with-splitting allocator over every
// built interval (§4.3): it seeds fixed and constant intervals directly,
// pushes everything else to pending, then repeatedly pops the
// earliest-starting interval and assigns it a register, a split, or a
// spill.
func assignRegisters(ctx *Context, intervals []*Interval) error {
	vx := newVxls(ctx)

	for _, iv := range intervals {
		if iv == nil || len(iv.Ranges) == 0 {
			continue
		}

		switch {
		case iv.Vreg == flagsVreg:
			iv.fixed = true
			iv.Reg = vasm.Flags
			vx.active = append(vx.active, iv)
		case iv.Constant:
			vx.spillAndRequeue(iv)
		default:
			vx.pending.Push(iv, -iv.Start())
		}
	}

	for vx.pending.Size() > 0 {
		item, _ := vx.pending.Pop()
		cur := item.(*Interval)

		if len(cur.Ranges) == 0 {
			continue
		}

		if err := vx.allocate(cur); err != nil {
			return err
		}
		if vx.punt != nil {
			return vx.punt
		}
	}

	return nil
}

// update expires intervals whose end has passed and moves the rest between
// active/inactive based on whether they cover start (§4.3 step 1).
func (vx *vxls) update(start int) {
	var active, inactive []*Interval

	for _, iv := range vx.active {
		switch {
		case iv.End() <= start:
			vx.freeSlot(iv)
		case iv.Covers(start):
			active = append(active, iv)
		default:
			inactive = append(inactive, iv)
		}
	}

	for _, iv := range vx.inactive {
		switch {
		case iv.End() <= start:
			vx.freeSlot(iv)
		case iv.Covers(start):
			active = append(active, iv)
		default:
			inactive = append(inactive, iv)
		}
	}

	vx.active = active
	vx.inactive = inactive
}

func (vx *vxls) freeSlot(iv *Interval) {
	leader := iv.Leader()
	if leader.Slot == NoSlot || leader.Slot >= len(vx.slotOwner) {
		return
	}
	vx.slotOwner[leader.Slot] = iv.End()
	if leader.Wide && leader.Slot+1 < len(vx.slotOwner) {
		vx.slotOwner[leader.Slot+1] = iv.End()
	}
}

// allocate is the per-interval main-loop body (§4.3 steps 1-7).
func (vx *vxls) allocate(cur *Interval) error {
	vx.update(cur.Start())

	// step 3: multi-range heuristic split.
	if len(cur.Ranges) > 1 {
		blk := vx.blockContaining(cur.Start())
		if blk != nil {
			firstEnd := cur.Ranges[0].End
			if firstEnd < blk.end {
				if cur.Constant && cur.FirstUse() > blk.end {
					vx.spillAndRequeue(cur)
					return nil
				}
				tail := cur.Split(blk.end, true)
				vx.pending.Push(tail, -tail.Start())
			}
		}
	}

	allowed, relaxed := vx.constrain(cur)
	if relaxed != nil {
		tail := cur.Split(NearestSplitBefore(vx.ctx, relaxed.pos-1), true)
		vx.pending.Push(tail, -tail.Start())
	}

	freeUntil := vx.freeUntil(cur, allowed)

	if hint, ok := vx.findHint(cur, allowed); ok {
		if freeUntil[hint] >= cur.End() {
			vx.assignReg(cur, hint)
			return nil
		}
	}

	r, best := argmax(freeUntil, allowed)

	if best >= cur.End() {
		vx.assignReg(cur, r)
		return nil
	}

	if best > cur.Start() {
		splitAt := NearestSplitBefore(vx.ctx, best)
		tail := cur.Split(splitAt, true)
		vx.pending.Push(tail, -tail.Start())
		vx.assignReg(cur, r)
		return nil
	}

	return vx.allocBlocked(cur, allowed)
}

type relaxedBound struct {
	pos int
}

// constrain intersects cur's per-use required classes into an allowed
// register set; if the intersection becomes empty at some use, the bound
// is reported so the caller splits there and retries with the full class.
func (vx *vxls) constrain(cur *Interval) (allowed []vasm.PhysReg, relaxed *relaxedBound) {
	class := cur.Class

	for _, u := range cur.Uses {
		if u.Kind == vasm.Any || u.Kind == vasm.CopySrc {
			continue
		}
		if class == vasm.Any || class == vasm.CopySrc {
			class = u.Kind
			continue
		}
		if class != u.Kind {
			return vx.classRegs(class), &relaxedBound{pos: u.Pos}
		}
	}

	return vx.classRegs(class), nil
}

func (vx *vxls) classRegs(class vasm.Constraint) []vasm.PhysReg {
	switch class {
	case vasm.Simd:
		return vx.ctx.Abi.AllocatableSimd()
	case vasm.Sf:
		return []vasm.PhysReg{vasm.Flags}
	default:
		return vx.ctx.Abi.AllocatableGpr()
	}
}

// freeUntil computes, per allowed physreg, the first position it becomes
// unavailable to cur (§4.3 step 2).
func (vx *vxls) freeUntil(cur *Interval, allowed []vasm.PhysReg) map[vasm.PhysReg]int {
	free := make(map[vasm.PhysReg]int, len(allowed))
	for _, r := range allowed {
		free[r] = maxPos
	}

	for _, iv := range vx.active {
		if _, ok := free[iv.Reg]; ok {
			free[iv.Reg] = 0
		}
	}

	for _, iv := range vx.inactive {
		if _, ok := free[iv.Reg]; !ok {
			continue
		}
		ni := NextIntersect(cur, iv)
		if ni < free[iv.Reg] {
			free[iv.Reg] = ni
		}
	}

	return free
}

// findHint looks for a use of cur whose hinted vreg has already been
// assigned a register. Pre-colored intervals feed hints into this same
// path (a fixed interval's Reg is already set before it ever reaches
// pending), so either toggle alone is enough to keep hinting live; only
// disabling both turns it off.
func (vx *vxls) findHint(cur *Interval, allowed []vasm.PhysReg) (vasm.PhysReg, bool) {
	if !vx.ctx.Opts.EnablePreColoring && !vx.ctx.Opts.EnableCoalescing {
		return vasm.NoPhysReg, false
	}

	best := vasm.NoPhysReg
	bestFree := -1

	for _, u := range cur.Uses {
		if !u.Hint.Valid() || int(u.Hint) >= len(vx.ctx.intervals) {
			continue
		}
		hinted := vx.ctx.intervals[u.Hint]
		if hinted == nil || hinted.Reg == vasm.NoPhysReg {
			continue
		}
		if !containsReg(allowed, hinted.Reg) {
			continue
		}

		free := vx.freeUntil(cur, []vasm.PhysReg{hinted.Reg})[hinted.Reg]
		if free > bestFree {
			bestFree = free
			best = hinted.Reg
		}
	}

	if best == vasm.NoPhysReg {
		return vasm.NoPhysReg, false
	}
	return best, true
}

func containsReg(set []vasm.PhysReg, r vasm.PhysReg) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}

func argmax(free map[vasm.PhysReg]int, allowed []vasm.PhysReg) (vasm.PhysReg, int) {
	best := vasm.NoPhysReg
	bestVal := -1
	for _, r := range allowed {
		if free[r] > bestVal {
			bestVal = free[r]
			best = r
		}
	}
	return best, bestVal
}

func (vx *vxls) assignReg(cur *Interval, r vasm.PhysReg) {
	cur.Reg = r
	vx.active = append(vx.active, cur)
}

// allocBlocked implements §4.3 step 7: every register is in use at
// cur.start, so either spill cur itself, or split+spill a blocking
// interval and steal its register.
func (vx *vxls) allocBlocked(cur *Interval, allowed []vasm.PhysReg) error {
	used := make(map[vasm.PhysReg]int, len(allowed))
	blocked := make(map[vasm.PhysReg]int, len(allowed))

	for _, r := range allowed {
		used[r] = maxPos
		blocked[r] = maxPos
	}

	for _, iv := range vx.active {
		if _, ok := used[iv.Reg]; !ok {
			continue
		}
		if iv.Fixed() {
			used[iv.Reg] = 0
			blocked[iv.Reg] = 0
			continue
		}
		if u := iv.FirstUseAfter(cur.Start()); u < used[iv.Reg] {
			used[iv.Reg] = u
		}
	}

	for _, iv := range vx.inactive {
		if _, ok := used[iv.Reg]; !ok {
			continue
		}
		ni := NextIntersect(cur, iv)
		if iv.Fixed() {
			if ni < blocked[iv.Reg] {
				blocked[iv.Reg] = ni
			}
			if ni < used[iv.Reg] {
				used[iv.Reg] = ni
			}
			continue
		}
		if u := iv.FirstUseAfter(cur.Start()); u < used[iv.Reg] {
			used[iv.Reg] = u
		}
	}

	r, bestUsed := argmax(used, allowed)

	// cur still owns its own definition: the defining instruction must
	// write somewhere before a store can move it to its slot, so it can't
	// be spilled outright here; fall through and steal a register for it
	// instead (§4.3 step 7, "Spill").
	if bestUsed < cur.FirstUse() && cur.Start() != cur.DefPos {
		vx.spillAndRequeue(cur)
		return nil
	}

	if blocked[r] < cur.End() {
		splitAt := NearestSplitBefore(vx.ctx, blocked[r])
		if splitAt > cur.Start() {
			tail := cur.Split(splitAt, true)
			vx.pending.Push(tail, -tail.Start())
		}
	}

	vx.spillOthers(cur, r)
	vx.assignReg(cur, r)
	return nil
}

// spillOthers splits and spills every active/inactive interval holding r
// that intersects cur, freeing r for cur (§4.3 step 7).
func (vx *vxls) spillOthers(cur *Interval, r vasm.PhysReg) {
	splitAndSpill := func(iv *Interval) bool {
		if iv.Reg != r || iv.Fixed() {
			return false
		}
		if iv.Start() >= cur.End() || cur.Start() >= iv.End() {
			return false
		}

		splitAt := NearestSplitBefore(vx.ctx, cur.Start())
		if splitAt <= iv.Start() {
			vx.spillAndRequeue(iv)
		} else {
			tail := iv.Split(splitAt, true)
			vx.spillAndRequeue(tail)
		}
		return true
	}

	var active, inactive []*Interval

	for _, iv := range vx.active {
		if !splitAndSpill(iv) {
			active = append(active, iv)
		}
	}
	for _, iv := range vx.inactive {
		if !splitAndSpill(iv) {
			inactive = append(inactive, iv)
		}
	}

	vx.active = active
	vx.inactive = inactive
}

// assignSpill clears cur's register and gives its leader a spill slot,
// reusing the first slot whose high-water mark has passed the leader's
// start (§4.3 "Spill").
func (vx *vxls) assignSpill(cur *Interval) {
	cur.Reg = vasm.NoPhysReg

	leader := cur.Leader()
	if leader.Slot != NoSlot {
		return
	}

	need := 1
	if leader.Wide {
		need = 2
	}

	start := leader.Start()

	for i := 0; i+need <= len(vx.slotOwner); i++ {
		ok := true
		for j := 0; j < need; j++ {
			if vx.slotOwner[i+j] > start {
				ok = false
				break
			}
		}
		if ok {
			leader.Slot = i
			for j := 0; j < need; j++ {
				vx.slotOwner[i+j] = maxPos
			}
			return
		}
	}

	idx := len(vx.slotOwner)

	if idx+need > maxSpillSlots {
		vx.punt = vasm.Punt(vasm.TooManySpills, "spill pool exhausted at %d slots", idx)
		return
	}

	for j := 0; j < need; j++ {
		vx.slotOwner = append(vx.slotOwner, maxPos)
	}
	leader.Slot = idx
}

// spillAndSplit gives cur a spill slot, then splits off the remainder from
// its first later use that genuinely requires a register (not just a copy
// source): resolveSplits turns the register change at that split boundary
// into a reload or rematerialization (§4.3 "Spill"). Returns the split-off
// tail to requeue, or nil if cur has no such later use.
func (vx *vxls) spillAndSplit(cur *Interval) *Interval {
	vx.assignSpill(cur)

	for _, u := range cur.Uses {
		if u.Kind == vasm.CopySrc || u.Pos <= cur.Start() {
			continue
		}
		splitAt := NearestSplitBefore(vx.ctx, u.Pos)
		if splitAt <= cur.Start() {
			continue
		}
		return cur.Split(splitAt, true)
	}

	return nil
}

func (vx *vxls) spillAndRequeue(cur *Interval) {
	if tail := vx.spillAndSplit(cur); tail != nil {
		vx.pending.Push(tail, -tail.Start())
	}
}

func (vx *vxls) blockContaining(pos int) *blockRange {
	for _, bb := range vx.ctx.Blocks {
		r := vx.ctx.Ranges[bb.Label]
		if pos >= r.start && pos < r.end {
			return &r
		}
	}
	return nil
}
