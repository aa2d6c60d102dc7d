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

func TestLiveSet_AddRemoveHas(t *testing.T) {
	s := newLiveSet(10)

	require.False(t, s.Has(3))
	require.True(t, s.Add(3))
	require.False(t, s.Add(3), "adding an already-set bit reports no change")
	require.True(t, s.Has(3))

	require.True(t, s.Remove(3))
	require.False(t, s.Remove(3), "removing an already-clear bit reports no change")
	require.False(t, s.Has(3))
}

func TestLiveSet_OutOfRangeIsSafeNoOp(t *testing.T) {
	s := newLiveSet(2)
	require.False(t, s.Has(9000))
	require.False(t, s.Remove(9000))
}

func TestLiveSet_CloneIsIndependent(t *testing.T) {
	s := newLiveSet(10)
	s.Add(5)

	c := s.Clone()
	c.Add(6)

	require.True(t, c.Has(5))
	require.True(t, c.Has(6))
	require.False(t, s.Has(6), "mutating the clone must not affect the original")
}

func TestLiveSet_UnionFromReportsChange(t *testing.T) {
	a := newLiveSet(10)
	b := newLiveSet(10)
	b.Add(4)

	require.True(t, a.UnionFrom(b))
	require.True(t, a.Has(4))
	require.False(t, a.UnionFrom(b), "a second union with the same source makes no further change")
}

func TestLiveSet_Equal(t *testing.T) {
	a := newLiveSet(10)
	b := newLiveSet(200)

	require.True(t, a.Equal(b), "differing lengths with no set bits beyond either length are still equal")

	a.Add(15)
	require.False(t, a.Equal(b))
}

func TestLiveSet_Vregs(t *testing.T) {
	s := newLiveSet(200)
	s.Add(130)
	s.Add(2)
	s.Add(64)

	require.Equal(t, []vasm.Vreg{2, 64, 130}, s.Vregs())
}

// TestComputeLiveness_PropagatesAcrossABranch builds a three-block CFG
// (entry defines v1 and branches to both arms; only one arm uses v1) and
// checks that v1 is threaded through the entry's live-out and the
// live-using arm's live-in, while the other arm never sees it.
func TestComputeLiveness_PropagatesAcrossABranch(t *testing.T) {
	def := &vasm.Vinstr{Defs: []vasm.Operand{{Reg: 1, Kind: vasm.Gpr}}}
	entry := &vasm.Vblock{Label: 0, Code: []*vasm.Vinstr{def}, Succs: []vasm.Vlabel{1, 2}}

	useArm := &vasm.Vinstr{Uses: []vasm.Operand{{Reg: 1, Kind: vasm.Gpr}}}
	usesV1 := &vasm.Vblock{Label: 1, Code: []*vasm.Vinstr{useArm}, Preds: []vasm.Vlabel{0}}

	noUseArm := &vasm.Vinstr{Op: vasm.Nop}
	noUses := &vasm.Vblock{Label: 2, Code: []*vasm.Vinstr{noUseArm}, Preds: []vasm.Vlabel{0}}

	blocks := []*vasm.Vblock{entry, usesV1, noUses}
	u := newBlockTestUnit(0, map[vasm.Vlabel]*vasm.Vblock{0: entry, 1: usesV1, 2: noUses})
	ctx := &Context{
		Unit:     u,
		Blocks:   blocks,
		Ranges:   map[vasm.Vlabel]blockRange{},
		SPOffset: map[vasm.Vlabel]int{},
		LiveIn:   map[vasm.Vlabel]LiveSet{},
		NumVregs: 1,
	}

	computeLiveness(ctx)

	require.True(t, ctx.LiveIn[1].Has(1), "the arm that uses v1 must have it live-in")
	require.False(t, ctx.LiveIn[2].Has(1), "the arm that never touches v1 must not")
}

// TestComputeLiveness_SfOperandsCoalesceToFlagsVreg covers the flags-vreg
// aliasing: an Sf-kinded use in one block and an Sf-kinded def in its
// predecessor must be tracked as the same live value (vreg 0), regardless
// of what vreg number the operand actually names.
func TestComputeLiveness_SfOperandsCoalesceToFlagsVreg(t *testing.T) {
	def := &vasm.Vinstr{Defs: []vasm.Operand{{Reg: 7, Kind: vasm.Sf}}}
	entry := &vasm.Vblock{Label: 0, Code: []*vasm.Vinstr{def}, Succs: []vasm.Vlabel{1}}

	use := &vasm.Vinstr{Uses: []vasm.Operand{{Reg: 7, Kind: vasm.Sf}}}
	succ := &vasm.Vblock{Label: 1, Code: []*vasm.Vinstr{use}, Preds: []vasm.Vlabel{0}}

	blocks := []*vasm.Vblock{entry, succ}
	u := newBlockTestUnit(0, map[vasm.Vlabel]*vasm.Vblock{0: entry, 1: succ})
	ctx := &Context{
		Unit:     u,
		Blocks:   blocks,
		Ranges:   map[vasm.Vlabel]blockRange{},
		SPOffset: map[vasm.Vlabel]int{},
		LiveIn:   map[vasm.Vlabel]LiveSet{},
		NumVregs: 7,
	}

	computeLiveness(ctx)

	require.True(t, ctx.LiveIn[1].Has(flagsVreg))
}
