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

// TestBuildIntervals_LiveInButNotLiveOutStopsAtLastUse covers a value that
// is live-in to a block (a predecessor still needs it) but dies partway
// through that block with no further use in any successor: its interval
// must stop at its last real use inside the block, not stretch across the
// whole block range. Seeding the backward walk's live set from the
// block's own live-in (instead of purely its successors') would wrongly
// extend the range to the block's end.
func TestBuildIntervals_LiveInButNotLiveOutStopsAtLastUse(t *testing.T) {
	nop := &vasm.Vinstr{Op: vasm.Nop, Pos: 0}
	use := &vasm.Vinstr{Uses: []vasm.Operand{{Reg: 1, Kind: vasm.Gpr}}, Pos: 2}
	filler := &vasm.Vinstr{Op: vasm.Nop, Pos: 4}
	term := &vasm.Vinstr{Op: vasm.Ud2, Pos: 6}

	bb := &vasm.Vblock{Label: 0, Code: []*vasm.Vinstr{nop, use, filler, term}}

	u := newBlockTestUnit(0, map[vasm.Vlabel]*vasm.Vblock{0: bb})
	ctx := &Context{
		Unit:     u,
		Blocks:   []*vasm.Vblock{bb},
		Ranges:   map[vasm.Vlabel]blockRange{0: {start: 0, end: 8}},
		SPOffset: map[vasm.Vlabel]int{},
		LiveIn:   map[vasm.Vlabel]LiveSet{0: newLiveSet(2)},
		NumVregs: 1,
	}
	ctx.LiveIn[0].Add(1)

	intervals := buildIntervals(ctx)

	iv := intervals[1]
	require.NotNil(t, iv)
	require.Equal(t, use.Pos, iv.End(), "the interval must end at its last use, not stretch to the block's end")
	require.Less(t, iv.End(), ctx.Ranges[0].end, "a value that dies before the block's end must not cover the whole block")
}

// TestBuildIntervals_LiveThroughToSuccessorCoversWholeBlock is the
// contrasting case: a value live-in to a block and still live-in to (at
// least) one of its successors must cover the block's entire range, since
// it crosses the block boundary alive.
func TestBuildIntervals_LiveThroughToSuccessorCoversWholeBlock(t *testing.T) {
	nop := &vasm.Vinstr{Op: vasm.Nop, Pos: 0}
	use := &vasm.Vinstr{Uses: []vasm.Operand{{Reg: 1, Kind: vasm.Gpr}}, Pos: 2}
	term := &vasm.Vinstr{Op: vasm.Jmp, Targets: []vasm.Vlabel{1}, Pos: 4}

	bb := &vasm.Vblock{Label: 0, Succs: []vasm.Vlabel{1}, Code: []*vasm.Vinstr{nop, use, term}}
	succ := &vasm.Vblock{Label: 1, Preds: []vasm.Vlabel{0}, Code: []*vasm.Vinstr{
		{Op: vasm.Nop, Pos: 6},
		{Uses: []vasm.Operand{{Reg: 1, Kind: vasm.Gpr}}, Pos: 8},
		{Op: vasm.Ud2, Pos: 10},
	}}

	u := newBlockTestUnit(0, map[vasm.Vlabel]*vasm.Vblock{0: bb, 1: succ})
	ctx := &Context{
		Unit:   u,
		Blocks: []*vasm.Vblock{bb, succ},
		Ranges: map[vasm.Vlabel]blockRange{
			0: {start: 0, end: 6},
			1: {start: 6, end: 12},
		},
		SPOffset: map[vasm.Vlabel]int{},
		LiveIn: map[vasm.Vlabel]LiveSet{
			0: newLiveSet(2),
			1: newLiveSet(2),
		},
		NumVregs: 1,
	}
	ctx.LiveIn[0].Add(1)
	ctx.LiveIn[1].Add(1)

	intervals := buildIntervals(ctx)

	iv := intervals[1]
	require.NotNil(t, iv)
	require.GreaterOrEqual(t, iv.End(), ctx.Ranges[0].end, "a value live across the block boundary must cover the whole block")
}
