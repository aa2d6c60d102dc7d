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

func swapInstr(a, b vasm.PhysReg) *vasm.Vinstr {
	return &vasm.Vinstr{
		Op:   vasm.Copy2,
		Uses: []vasm.Operand{{Assigned: a}, {Assigned: b}},
		Defs: []vasm.Operand{{Assigned: b}, {Assigned: a}},
	}
}

func TestPeepholeBlock_CancelsMatchingSwapPair(t *testing.T) {
	r0, r1 := vasm.PhysReg(0), vasm.PhysReg(1)
	ud2 := &vasm.Vinstr{Op: vasm.Ud2}

	code := []*vasm.Vinstr{swapInstr(r0, r1), swapInstr(r0, r1), ud2}
	out := peepholeBlock(code)

	require.Len(t, out, 1, "both halves of a redundant swap pair must be dropped")
	require.Equal(t, vasm.Ud2, out[0].Op)
}

func TestPeepholeBlock_KeepsMismatchedSwapPair(t *testing.T) {
	r0, r1, r2 := vasm.PhysReg(0), vasm.PhysReg(1), vasm.PhysReg(2)

	code := []*vasm.Vinstr{swapInstr(r0, r1), swapInstr(r0, r2)}
	out := peepholeBlock(code)

	require.Len(t, out, 2, "swap pairs over different registers must not cancel")
}

func TestPeepholeBlock_DropsNopAndPhidef(t *testing.T) {
	code := []*vasm.Vinstr{
		{Op: vasm.Nop},
		{Op: vasm.Phidef},
		{Op: vasm.Ud2},
	}
	out := peepholeBlock(code)

	require.Len(t, out, 1)
	require.Equal(t, vasm.Ud2, out[0].Op)
}

func TestPeepholeBlock_IdempotentOnSecondPass(t *testing.T) {
	r0, r1 := vasm.PhysReg(0), vasm.PhysReg(1)
	code := []*vasm.Vinstr{swapInstr(r0, r1), swapInstr(r0, r1), {Op: vasm.Nop}, {Op: vasm.Ud2}}

	once := peepholeBlock(code)
	twice := peepholeBlock(once)

	require.Equal(t, once, twice, "a second pass must find nothing left to cancel or drop")
}

func TestSameSwap_DifferentDefCountNeverMatches(t *testing.T) {
	a := &vasm.Vinstr{Op: vasm.Copy2, Defs: []vasm.Operand{{Assigned: 0}}}
	b := &vasm.Vinstr{Op: vasm.Copy2, Defs: []vasm.Operand{{Assigned: 0}, {Assigned: 1}}}
	require.False(t, sameSwap(a, b))
}
