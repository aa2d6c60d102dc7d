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

// computePositions numbers every instruction with an even integer position
// in block order, prepending a no-op to any block whose first instruction
// has a use (so the block-entry point, where edge copies and resolution
// moves land, is never itself a use site). Each block gets a half-open
// [start,end) range (§4.1).
func computePositions(ctx *Context) {
	pos := 0

	for _, bb := range ctx.Blocks {
		if len(bb.Code) > 0 && hasUse(bb.Code[0]) {
			nop := &vasm.Vinstr{Op: vasm.Nop}
			bb.Code = append([]*vasm.Vinstr{nop}, bb.Code...)
		}

		start := pos

		for _, ins := range bb.Code {
			ins.Pos = pos
			pos += 2
		}

		ctx.Ranges[bb.Label] = blockRange{start: start, end: pos}
	}
}

func hasUse(ins *vasm.Vinstr) bool {
	found := false
	vasm.VisitUses(ins, func(r vasm.Vreg, kind vasm.Constraint, hint vasm.Vreg) {
		found = true
	})
	return found
}
