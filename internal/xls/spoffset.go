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

// analyzeSP computes, for every block entry, the running offset from the
// current stack pointer into the spill area, by a single forward scan in
// RPO order (§4.1). A block reached through more than one predecessor must
// compute the same offset from every path; disagreement is an invariant
// violation, not a recoverable condition, since it means the two paths
// disagree about where the spill frame lives.
func analyzeSP(ctx *Context) {
	visited := make(map[vasm.Vlabel]bool)

	for _, bb := range ctx.Blocks {
		offset := 0

		if len(bb.Preds) > 0 {
			// every already-visited predecessor must give the same offset;
			// the others are loop back-edges, checked against this block's
			// offset when their own successors are scanned below.
			found := false
			for _, p := range bb.Preds {
				if !visited[p] {
					continue
				}
				po := spEffectOfBlock(ctx, p) + ctx.SPOffset[p]
				if found {
					vasm.Assert(po == offset,
						"analyzeSP: sp offset mismatch entering %s: have %d, recomputed %d",
						bb.Label, offset, po)
					continue
				}
				offset = po
				found = true
			}
			if !found {
				offset = 0
			}
		}

		ctx.SPOffset[bb.Label] = offset
		visited[bb.Label] = true

		end := offset
		for _, ins := range bb.Code {
			end += spEffect(ins)
		}

		for _, s := range bb.Succs {
			if visited[s] {
				vasm.Assert(ctx.SPOffset[s] == end,
					"analyzeSP: sp offset mismatch entering %s: have %d, recomputed %d",
					s, ctx.SPOffset[s], end)
			}
		}
	}
}

// spEffect returns an instruction's net effect on the stack pointer.
func spEffect(ins *vasm.Vinstr) int {
	switch ins.Op {
	case vasm.Push:
		return -8
	case vasm.Pop:
		return 8
	case vasm.Addqi:
		return int(ins.Imm)
	case vasm.Subqi:
		return -int(ins.Imm)
	case vasm.Lea:
		return int(ins.Imm)
	default:
		vasm.Assert(!definesSP(ins), "analyzeSP: unexpected sp-defining instruction %s", ins.Op)
		return 0
	}
}

func definesSP(ins *vasm.Vinstr) bool {
	// operands name vregs only, so no operand can name sp and this reports
	// false for every op: the Assert in spEffect's default case never fires,
	// and only the ops listed in spEffect change the computed offset.
	return false
}

func spEffectOfBlock(ctx *Context, l vasm.Vlabel) int {
	total := 0
	for _, ins := range ctx.Unit.Block(l).Code {
		total += spEffect(ins)
	}
	return total
}
