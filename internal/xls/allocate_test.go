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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roba269/hhvm/internal/vasm"
)

// TestSpillAndSplit_RequeuesLaterUse covers the case a bare assignSpill
// would silently break: a spilled interval with a real use later on must be
// split there and the split-off piece pushed back to pending, so
// resolveSplits can see the register change at that boundary and turn it
// into a reload.
func TestSpillAndSplit_RequeuesLaterUse(t *testing.T) {
	ctx := &Context{Ranges: map[vasm.Vlabel]blockRange{0: {start: 0, end: 20}}}
	vx := newVxls(ctx)

	cur := &Interval{
		Vreg:   1,
		Reg:    vasm.NoPhysReg,
		Slot:   NoSlot,
		Class:  vasm.Gpr,
		Ranges: []LiveRange{{Start: 2, End: 10}},
		Uses:   []Use{{Kind: vasm.Gpr, Pos: 8}},
		DefPos: 2,
	}

	tail := vx.spillAndSplit(cur)
	require.NotNil(t, tail, "a spilled interval with a later register-requiring use must be split")
	require.Equal(t, vasm.NoPhysReg, cur.Reg)
	require.NotEqual(t, NoSlot, cur.Leader().Slot)
	require.Len(t, tail.Uses, 1)
	require.Equal(t, 8, tail.Uses[0].Pos)
	require.Less(t, cur.End(), tail.Start()+1, "split boundary must fall strictly before the use it protects")
}

// TestSpillAndSplit_NoLaterUseReturnsNil covers the simple case: a value
// spilled right at its last use has nothing left to split off.
func TestSpillAndSplit_NoLaterUseReturnsNil(t *testing.T) {
	ctx := &Context{Ranges: map[vasm.Vlabel]blockRange{0: {start: 0, end: 20}}}
	vx := newVxls(ctx)

	cur := &Interval{
		Vreg:   1,
		Reg:    vasm.NoPhysReg,
		Slot:   NoSlot,
		Class:  vasm.Gpr,
		Ranges: []LiveRange{{Start: 2, End: 4}},
		Uses:   []Use{{Kind: vasm.Gpr, Pos: 2}},
		DefPos: 2,
	}

	tail := vx.spillAndSplit(cur)
	require.Nil(t, tail)
}

// TestAllocBlocked_DefStillOwnedNeverSelfSpills drives allocBlocked directly
// with every allowed register already active and busy past cur's own
// (still-owned) definition: cur must come out holding a real register by
// eviction, never spilled outright, since nothing else could supply a
// register for the instant of its own definition.
func TestAllocBlocked_DefStillOwnedNeverSelfSpills(t *testing.T) {
	ctx := &Context{Ranges: map[vasm.Vlabel]blockRange{0: {start: 0, end: 40}}}
	vx := newVxls(ctx)

	r0, r1 := vasm.PhysReg(0), vasm.PhysReg(1)
	allowed := []vasm.PhysReg{r0, r1}

	blocker := &Interval{
		Vreg:   2,
		Reg:    r0,
		Class:  vasm.Gpr,
		Ranges: []LiveRange{{Start: 0, End: 40}},
		Uses:   []Use{{Kind: vasm.Gpr, Pos: 30}},
		DefPos: 0,
	}
	blocker2 := &Interval{
		Vreg:   3,
		Reg:    r1,
		Class:  vasm.Gpr,
		Ranges: []LiveRange{{Start: 0, End: 40}},
		Uses:   []Use{{Kind: vasm.Gpr, Pos: 32}},
		DefPos: 0,
	}
	vx.active = []*Interval{blocker, blocker2}

	cur := &Interval{
		Vreg:   1,
		Reg:    vasm.NoPhysReg,
		Slot:   NoSlot,
		Class:  vasm.Gpr,
		Ranges: []LiveRange{{Start: 10, End: 12}},
		Uses:   []Use{{Kind: vasm.Gpr, Pos: 10}},
		DefPos: 10,
	}

	err := vx.allocBlocked(cur, allowed)
	require.NoError(t, err)
	require.NotEqual(t, vasm.NoPhysReg, cur.Reg, "a value defined right now must get a real register, never be spilled outright")
}

// TestFindHint_EitherTogglePreservesHint_BothOffDisables covers the
// original's gate: findHint is skipped only when both EnablePreColoring
// and EnableCoalescing are off, not when either one alone is set.
func TestFindHint_EitherTogglePreservesHint_BothOffDisables(t *testing.T) {
	r0 := vasm.PhysReg(0)

	newCase := func(opts Options) (*vxls, *Interval) {
		ctx := &Context{
			Ranges:    map[vasm.Vlabel]blockRange{0: {start: 0, end: 20}},
			Opts:      opts,
			intervals: make([]*Interval, 3),
		}
		hinted := &Interval{Vreg: 2, Reg: r0, Class: vasm.Gpr, Ranges: []LiveRange{{Start: 0, End: 20}}}
		ctx.intervals[2] = hinted

		cur := &Interval{
			Vreg:   1,
			Reg:    vasm.NoPhysReg,
			Class:  vasm.Gpr,
			Ranges: []LiveRange{{Start: 4, End: 10}},
			Uses:   []Use{{Kind: vasm.Gpr, Pos: 8, Hint: 2}},
		}
		return newVxls(ctx), cur
	}

	vx, cur := newCase(Options{EnablePreColoring: true, EnableCoalescing: false})
	reg, ok := vx.findHint(cur, []vasm.PhysReg{r0})
	require.True(t, ok, "EnablePreColoring alone must still let a pre-colored hint through")
	require.Equal(t, r0, reg)

	vx, cur = newCase(Options{EnablePreColoring: false, EnableCoalescing: true})
	reg, ok = vx.findHint(cur, []vasm.PhysReg{r0})
	require.True(t, ok, "EnableCoalescing alone must still let a hint through")
	require.Equal(t, r0, reg)

	vx, cur = newCase(Options{EnablePreColoring: false, EnableCoalescing: false})
	_, ok = vx.findHint(cur, []vasm.PhysReg{r0})
	require.False(t, ok, "with both toggles off, findHint must never suggest a register")
}

func TestMergeSpillStates_Lattice(t *testing.T) {
	require.Equal(t, NoSpill, mergeSpillStates(Uninit, NoSpill))
	require.Equal(t, NeedSpill, mergeSpillStates(NoSpill, NeedSpill))
	require.Equal(t, NeedSpill, mergeSpillStates(NeedSpill, Uninit))
	require.Equal(t, Uninit, mergeSpillStates(Uninit, Uninit))
}
