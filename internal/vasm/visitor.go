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

// OperandVisitor receives one callback per operand slot of an instruction.
// Every implementation provides all three callbacks.
type OperandVisitor interface {
	Use(r Vreg, kind Constraint, hint Vreg)
	Def(r Vreg, kind Constraint, hint Vreg)
	Across(r Vreg, kind Constraint)
}

// VisitOperands dispatches every operand of ins to v, downgrading use kinds
// to CopySrc for copy-family and phi-source instructions per §4.2.
func VisitOperands(ins *Vinstr, v OperandVisitor) {
	copySrc := ins.Op.IsCopyLike()

	for _, u := range ins.Uses {
		k := u.Kind
		if copySrc && k != Sf {
			k = CopySrc
		}
		v.Use(u.Reg, k, u.Hint)
	}

	for _, d := range ins.Defs {
		v.Def(d.Reg, d.Kind, d.Hint)
	}

	for _, a := range ins.Across {
		v.Across(a.Reg, a.Kind)
	}

	for _, p := range ins.Phis {
		switch ins.Op {
		case Phidef:
			v.Def(p.Dest, Gpr, 0)
		case Phijmp, Phijcc:
			for _, src := range p.Sources {
				if src.Valid() {
					v.Use(src, CopySrc, 0)
				}
			}
		}
	}
}

// VisitUses/VisitDefs/VisitAcross are narrow-interest wrappers over
// VisitOperands for callers that only care about one operand kind.
func VisitUses(ins *Vinstr, fn func(r Vreg, kind Constraint, hint Vreg)) {
	VisitOperands(ins, &funcVisitor{use: fn})
}

func VisitDefs(ins *Vinstr, fn func(r Vreg, kind Constraint, hint Vreg)) {
	VisitOperands(ins, &funcVisitor{def: fn})
}

func VisitAcross(ins *Vinstr, fn func(r Vreg, kind Constraint)) {
	VisitOperands(ins, &funcVisitor{across: fn})
}

type funcVisitor struct {
	use    func(r Vreg, kind Constraint, hint Vreg)
	def    func(r Vreg, kind Constraint, hint Vreg)
	across func(r Vreg, kind Constraint)
}

func (v *funcVisitor) Use(r Vreg, kind Constraint, hint Vreg) {
	if v.use != nil {
		v.use(r, kind, hint)
	}
}

func (v *funcVisitor) Def(r Vreg, kind Constraint, hint Vreg) {
	if v.def != nil {
		v.def(r, kind, hint)
	}
}

func (v *funcVisitor) Across(r Vreg, kind Constraint) {
	if v.across != nil {
		v.across(r, kind)
	}
}

// GetEffects reports implicit physreg usage an instruction has beyond its
// explicit operand list, per the external-interface contract. Only calls
// clobber registers beyond their explicit defs in this ABI, and this vasm
// subset has no call instruction, so today this always returns nil; it
// exists so a future lowering of call sites has somewhere to report
// caller-saved clobbers without touching the allocator core.
func GetEffects(abi *Abi, ins *Vinstr) (clobbers []PhysReg) {
	return nil
}
