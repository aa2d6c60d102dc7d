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

// Op names the recognized vasm opcodes, per the external-interface contract.
type Op uint8

const (
	Nop Op = iota
	Push
	Pop
	Addqi
	Subqi
	Lea
	Copy
	Copy2
	Copyargs
	Phidef
	Phijmp
	Phijcc
	Jmp
	Jcc
	Jcci
	Jmpi
	Fallbackcc
	Fallback
	Bindjcc
	Bindjmp
	Ldimmb
	Ldimml
	Ldimmq
	Xorb
	Xorl
	Load
	Loadups
	Store
	Storeups
	Ud2
)

var opNames = [...]string{
	Nop: "nop", Push: "push", Pop: "pop", Addqi: "addqi", Subqi: "subqi",
	Lea: "lea", Copy: "copy", Copy2: "copy2", Copyargs: "copyargs",
	Phidef: "phidef", Phijmp: "phijmp", Phijcc: "phijcc", Jmp: "jmp",
	Jcc: "jcc", Jcci: "jcci", Jmpi: "jmpi", Fallbackcc: "fallbackcc",
	Fallback: "fallback", Bindjcc: "bindjcc", Bindjmp: "bindjmp",
	Ldimmb: "ldimmb", Ldimml: "ldimml", Ldimmq: "ldimmq", Xorb: "xorb",
	Xorl: "xorl", Load: "load", Loadups: "loadups", Store: "store",
	Storeups: "storeups", Ud2: "ud2",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op?"
}

// Operand tags a single vreg slot of an instruction with how it is used.
type Operand struct {
	Reg      Vreg
	Kind     Constraint
	Hint     Vreg    // advisory coalescing target, 0 if none
	Assigned PhysReg // filled in by renameOperands; NoPhysReg until then
}

// Vinstr is one instruction: an opcode, its position (filled in by
// computePositions), the block it originates from for diagnostics, and the
// per-op operand payload.
type Vinstr struct {
	Op     Op
	Pos    int
	Origin string

	// operand payload, interpreted per Op; unused fields are zero.
	Uses    []Operand // plain register uses
	Defs    []Operand // plain register defs
	Across  []Operand // uses that must outlive any def in this instruction
	Imm     int64     // addqi/subqi/lea displacement, ldimm* immediate
	IsConst bool      // true if this Vreg's value was materialized as a constant

	// copy-family payload: Copy has one use/one def (in Uses[0]/Defs[0]);
	// Copy2 swaps a pair (Uses/Defs each length 2); Copyargs carries a
	// parallel tuple (Uses/Defs same length, matched index-for-index).

	// phidef/phijmp/phijcc payload: one entry per phi, each naming the
	// dest (read from phidef, ignored on phijmp/phijcc) and the source
	// vreg contributed to each successor in the block's successor order.
	Phis []PhiPair

	// control-flow payload.
	Targets []Vlabel // jmp/jcc/jmpi/fallbackcc/bindjcc/bindjmp targets, successor order

	// load/store payload.
	Slot int // spill slot index, for load/store to the spill frame
}

// PhiPair binds one phi destination vreg to its per-successor sources.
type PhiPair struct {
	Dest    Vreg
	Sources []Vreg // indexed the same as the owning block's successor list
}

// IsCopyLike reports whether op's uses should be downgraded to CopySrc
// (§4.2): copy-family instructions and, for everything except the flags
// vreg, phi sources.
func (op Op) IsCopyLike() bool {
	switch op {
	case Copy, Copy2, Copyargs, Phijmp, Phijcc:
		return true
	default:
		return false
	}
}

// TouchesSP classifies ops that read or write the stack pointer;
// allocateSpillSpace (§4.7) treats each of them as needing the spill frame.
func (op Op) TouchesSP() bool {
	switch op {
	case Push, Pop, Addqi, Subqi, Lea:
		return true
	default:
		return false
	}
}

func (op Op) IsSideExit() bool {
	switch op {
	case Fallbackcc, Fallback, Bindjcc, Bindjmp, Jcci:
		return true
	default:
		return false
	}
}

func (op Op) IsTerminator() bool {
	switch op {
	case Jmp, Jcc, Jcci, Jmpi, Fallbackcc, Fallback, Bindjcc, Bindjmp, Ud2, Phijmp, Phijcc:
		return true
	default:
		return false
	}
}
