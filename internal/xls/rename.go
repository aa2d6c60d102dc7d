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

// renameOperands substitutes the assigned physical register into every
// non-fixed operand of every original instruction, verifying class
// agreement, and folds Sf operands onto the singleton flags register
// (§4.5). Instructions inserted by insertCopies are already expressed in
// terms of physregs and are left untouched.
func renameOperands(ctx *Context, intervals []*Interval) {
	for _, bb := range ctx.Blocks {
		for _, ins := range bb.Code {
			renamer := &renamerVisitor{ctx: ctx, intervals: intervals, pos: ins.Pos}
			renameInstr(ins, renamer)
		}
	}
}

type renamerVisitor struct {
	ctx       *Context
	intervals []*Interval
	pos       int
}

func (r *renamerVisitor) resolve(v vasm.Vreg, kind vasm.Constraint) vasm.PhysReg {
	key := liveKey(v, kind)
	if int(key) >= len(r.intervals) || r.intervals[key] == nil {
		return vasm.NoPhysReg
	}
	iv := r.intervals[key].ChildAt(r.pos)
	vasm.Assert(iv.Reg == vasm.NoPhysReg || r.ctx.Abi.ClassOf(iv.Reg).Accepts(kindOrDefault(kind, iv.Class)) || kind == vasm.Sf,
		"renameOperands: class mismatch for %s at pos %d", v, r.pos)
	return iv.Reg
}

func kindOrDefault(kind, fallback vasm.Constraint) vasm.Constraint {
	if kind == vasm.Any || kind == vasm.CopySrc {
		return fallback
	}
	return kind
}

// renameInstr rewrites ins's operand lists in place; it does not go through
// vasm.VisitOperands because renaming must write the Assigned field of each
// Operand slot, not just observe it; Reg keeps the vreg.
func renameInstr(ins *vasm.Vinstr, r *renamerVisitor) {
	for i := range ins.Uses {
		ins.Uses[i].Assigned = r.resolve(ins.Uses[i].Reg, ins.Uses[i].Kind)
	}
	for i := range ins.Defs {
		ins.Defs[i].Assigned = r.resolve(ins.Defs[i].Reg, ins.Defs[i].Kind)
	}
	for i := range ins.Across {
		ins.Across[i].Assigned = r.resolve(ins.Across[i].Reg, ins.Across[i].Kind)
	}
}
