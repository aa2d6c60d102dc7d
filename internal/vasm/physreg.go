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
	"fmt"

	"github.com/chenzhuoyu/iasm/x86_64"
)

// PhysReg is a concrete machine register, indexed into the Abi's register
// tables. NoPhysReg means the operand is not (yet) assigned a location.
type PhysReg int

const NoPhysReg PhysReg = -1

// Flags is the singleton physreg every Sf-kinded vreg is pre-coalesced to.
const Flags PhysReg = -2

// archGpr enumerates the amd64 general-purpose registers in the order the
// PhysReg indices 0..len(archGpr)-1 name them; rsp and r11 are carved out
// below as the Abi's reserved SP and scratch registers rather than listed
// here.
var archGpr = [...]x86_64.Register64{
	x86_64.RAX,
	x86_64.RCX,
	x86_64.RDX,
	x86_64.RBX,
	x86_64.RSI,
	x86_64.RDI,
	x86_64.R8,
	x86_64.R9,
	x86_64.R10,
	x86_64.R12,
	x86_64.R13,
	x86_64.R14,
	x86_64.R15,
}

var archGprNames = map[x86_64.Register64]string{
	x86_64.RAX: "rax",
	x86_64.RCX: "rcx",
	x86_64.RDX: "rdx",
	x86_64.RBX: "rbx",
	x86_64.RSI: "rsi",
	x86_64.RDI: "rdi",
	x86_64.R8:  "r8",
	x86_64.R9:  "r9",
	x86_64.R10: "r10",
	x86_64.R12: "r12",
	x86_64.R13: "r13",
	x86_64.R14: "r14",
	x86_64.R15: "r15",
}

// archSimd enumerates the amd64 xmm registers backing the Simd class.
var archSimd = [...]x86_64.XMMRegister{
	x86_64.XMM0,
	x86_64.XMM1,
	x86_64.XMM2,
	x86_64.XMM3,
	x86_64.XMM4,
	x86_64.XMM5,
	x86_64.XMM6,
	x86_64.XMM7,
	x86_64.XMM8,
	x86_64.XMM9,
	x86_64.XMM10,
	x86_64.XMM11,
	x86_64.XMM12,
	x86_64.XMM13,
	x86_64.XMM14,
	x86_64.XMM15,
}

// String renders a physreg using the Abi's name table when one is available
// (see Abi.Name); this fallback only fires for Flags/NoPhysReg or when used
// outside an Abi's context.
func (r PhysReg) String() string {
	switch r {
	case NoPhysReg:
		return "%noreg"
	case Flags:
		return "%flags"
	default:
		return fmt.Sprintf("%%r%d", int(r))
	}
}
