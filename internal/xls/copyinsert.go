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

// insertCopies materializes a ResolutionPlan in the instruction stream:
// spills become stores, copies become (possibly parallel) register moves,
// constant reloads become ldimm/xor, and spilled reads become loads.
func insertCopies(ctx *Context, plan *ResolutionPlan) {
	for _, bb := range ctx.Blocks {
		insertEditsAt(ctx, plan, bb)
	}

	for _, bb := range ctx.Blocks {
		for si, succLabel := range bb.Succs {
			key := edgeKey{from: bb.Label, succ: si}
			edits := plan.EdgeCopies[key]
			if len(edits) == 0 {
				continue
			}

			ops := lowerCopyEdits(ctx, edits)
			succ := ctx.Unit.Block(succLabel)

			if len(succ.Preds) == 1 {
				// the edge is the successor's only entry, so the copy can
				// safely live at the top of its block.
				succ.Code = append(append([]*vasm.Vinstr{}, ops...), succ.Code...)
				continue
			}

			// critical edges are already split, so a successor with more
			// than one predecessor implies bb has exactly one successor:
			// it is safe to place the copy right before bb's terminator.
			term := bb.Terminator()
			idx := len(bb.Code) - 1
			bb.Code = append(bb.Code[:idx:idx], append(ops, term)...)
		}
	}
}

// insertEditsAt materializes both Spills and Copies for one block in a
// single synchronized pass over the original instructions. Positions are
// even (§4.1); a copy-family instruction's own moves are recorded under its
// own (even) Pos by lowerCopies, so they replace it in place, while every
// split-boundary edit (a store at an interval's DefPos+1, or a reload/move
// at a split's end position) lands at an odd "between instructions" key and
// is emitted right after the instruction whose Pos precedes it.
func insertEditsAt(ctx *Context, plan *ResolutionPlan, bb *vasm.Vblock) {
	var out []*vasm.Vinstr

	for _, ins := range bb.Code {
		if edits, ok := plan.Copies[ins.Pos]; ok {
			out = append(out, lowerCopyEdits(ctx, edits)...)
		}

		if ins.Op != vasm.Nop {
			out = append(out, ins)
		}

		for _, sp := range plan.Spills[ins.Pos+1] {
			out = append(out, storeInstr(ctx, sp))
		}

		if edits, ok := plan.Copies[ins.Pos+1]; ok {
			out = append(out, lowerCopyEdits(ctx, edits)...)
		}
	}

	bb.Code = out
}

func storeInstr(ctx *Context, sp Spill) *vasm.Vinstr {
	slot := sp.Src.Leader().Slot
	op := vasm.Store
	kind := vasm.Gpr
	if sp.Src.Leader().Wide {
		op = vasm.Storeups
		kind = vasm.Simd
	}
	return &vasm.Vinstr{
		Op:   op,
		Slot: slot,
		Uses: []vasm.Operand{{Reg: sp.Src.Vreg, Kind: kind, Assigned: sp.Reg}},
	}
}

// lowerCopyEdits lowers a batch of CopyEdits: register-to-register moves go
// through vasm.DoRegMoves (which may synthesize a copy2 swap or use the
// ABI scratch register to break a cycle); constant and spilled sources are
// materialized directly since they have no live source register to
// schedule against. Every synthesized operand's Assigned field is set
// directly here, since these instructions are inserted after
// renameOperands has already run and will never be visited by it.
func lowerCopyEdits(ctx *Context, edits []CopyEdit) []*vasm.Vinstr {
	var out []*vasm.Vinstr
	var moves []vasm.Move

	for _, e := range edits {
		switch {
		case e.Src.Constant:
			out = append(out, constLoadInstr(ctx, e))
		case e.Src.Reg == vasm.NoPhysReg:
			out = append(out, reloadInstr(ctx, e))
		default:
			moves = append(moves, vasm.Move{Dst: e.Dst, Src: e.Src.Reg})
		}
	}

	for _, op := range vasm.DoRegMoves(moves, ctx.Abi.Tmp) {
		if op.Xchg {
			out = append(out, &vasm.Vinstr{
				Op:   vasm.Copy2,
				Uses: []vasm.Operand{{Kind: vasm.Gpr, Assigned: op.Src}, {Kind: vasm.Gpr, Assigned: op.Dst}},
				Defs: []vasm.Operand{{Kind: vasm.Gpr, Assigned: op.Dst}, {Kind: vasm.Gpr, Assigned: op.Src}},
			})
			continue
		}
		out = append(out, &vasm.Vinstr{
			Op:   vasm.Copy,
			Uses: []vasm.Operand{{Kind: vasm.Gpr, Assigned: op.Src}},
			Defs: []vasm.Operand{{Kind: vasm.Gpr, Assigned: op.Dst}},
		})
	}

	return out
}

// constLoadInstr picks among ldimmb/l/q, xorl (when the constant is 0, the
// dest is a GP register, and flags are never live anywhere in the unit;
// flags liveness at the insertion point itself is not tracked, so any flags
// interval rules xorl out) and a thread-local load for wide constants; here
// we only model the first two, the common path, since this vasm subset has
// no thread-local payload.
func constLoadInstr(ctx *Context, e CopyEdit) *vasm.Vinstr {
	flagsUsed := int(flagsVreg) < len(ctx.intervals) && ctx.intervals[flagsVreg] != nil &&
		len(ctx.intervals[flagsVreg].Ranges) > 0
	if e.Src.Val == 0 && !flagsUsed && ctx.Abi.ClassOf(e.Dst) == vasm.Gpr {
		return &vasm.Vinstr{Op: vasm.Xorl, Defs: []vasm.Operand{{Kind: vasm.Gpr, Assigned: e.Dst}}}
	}
	return &vasm.Vinstr{Op: vasm.Ldimmq, Imm: e.Src.Val, Defs: []vasm.Operand{{Kind: vasm.Gpr, Assigned: e.Dst}}}
}

func reloadInstr(ctx *Context, e CopyEdit) *vasm.Vinstr {
	op := vasm.Load
	kind := ctx.Abi.ClassOf(e.Dst)
	if e.Src.Leader().Wide {
		op = vasm.Loadups
	}
	return &vasm.Vinstr{
		Op:   op,
		Slot: e.Src.Leader().Slot,
		Defs: []vasm.Operand{{Reg: e.Src.Vreg, Kind: kind, Assigned: e.Dst}},
	}
}
