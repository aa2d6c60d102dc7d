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

import (
	"strconv"

	"github.com/klauspost/cpuid/v2"
)

// Abi describes which physical registers the allocator may use, and the
// two registers it reserves for its own bookkeeping: the stack pointer and
// a scratch register used only to break parallel-copy cycles.
type Abi struct {
	Gpr   []PhysReg
	Simd  []PhysReg
	SP    PhysReg
	Tmp   PhysReg
	names map[PhysReg]string
	slots int // bytes per spill slot
}

// ClassOf reports the register class a physreg belongs to.
func (a *Abi) ClassOf(r PhysReg) Constraint {
	switch {
	case r == Flags:
		return Sf
	case r == a.SP || r == a.Tmp:
		return Gpr
	}
	for _, g := range a.Gpr {
		if g == r {
			return Gpr
		}
	}
	for _, s := range a.Simd {
		if s == r {
			return Simd
		}
	}
	return Any
}

// Name renders a physreg's assembly mnemonic.
func (a *Abi) Name(r PhysReg) string {
	if n, ok := a.names[r]; ok {
		return n
	}
	return r.String()
}

// SlotOffset returns the byte offset of spill slot idx from the base of the
// spill frame (slot 0 is nearest the frame's low address).
func (a *Abi) SlotOffset(idx int) int {
	return idx * a.slots
}

// AllocatableGpr lists GP registers available to assignRegisters, excluding
// the reserved SP and scratch registers.
func (a *Abi) AllocatableGpr() []PhysReg {
	return a.Gpr
}

// AllocatableSimd lists SIMD registers available to assignRegisters.
func (a *Abi) AllocatableSimd() []PhysReg {
	return a.Simd
}

// the spReg/tmpReg indices live past the end of archGpr so they never alias
// an allocatable PhysReg index.
const (
	spReg  PhysReg = PhysReg(len(archGpr))
	tmpReg PhysReg = spReg + 1
)

// NewAMD64Abi builds the default amd64 ABI: rax/rcx/rdx/rbx/rsi/rdi/r8-r10/
// r12-r15 are allocatable GP registers (rsp reserved as SP, r11 reserved as
// the parallel-copy scratch), and xmm0-xmm15 are allocatable SIMD registers;
// the upper bank (xmm8-xmm15) is left unused on hosts that lack AVX, since
// accessing it legacy-encoded still costs an extra REX prefix the original
// allocator's target assumes is free.
func NewAMD64Abi() *Abi {
	names := map[PhysReg]string{
		spReg:  "rsp",
		tmpReg: "r11",
	}

	gpr := make([]PhysReg, 0, len(archGpr))

	for i, r := range archGpr {
		names[PhysReg(i)] = archGprNames[r]
		gpr = append(gpr, PhysReg(i))
	}

	nsimd := len(archSimd)
	if !cpuid.CPU.Supports(cpuid.AVX) {
		nsimd = 8
	}

	simdBase := PhysReg(len(archGpr) + 2)
	simd := make([]PhysReg, 0, nsimd)

	for i := 0; i < nsimd; i++ {
		r := simdBase + PhysReg(i)
		names[r] = "xmm" + strconv.Itoa(i)
		simd = append(simd, r)
	}

	return &Abi{
		Gpr:   gpr,
		Simd:  simd,
		SP:    spReg,
		Tmp:   tmpReg,
		names: names,
		slots: 8,
	}
}
