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

// peephole removes copy2 pairs that swap the same two registers twice in a
// row (a no-op), and drops trivial nops and phidef markers left behind by
// resolution (§4.6). A pair counts as in a row once the markers and other
// cancelled pairs between them are gone, so running it twice changes
// nothing: the first pass leaves no cancelling pair or dead marker for the
// second to find.
func peephole(ctx *Context) {
	for _, bb := range ctx.Blocks {
		bb.Code = peepholeBlock(bb.Code)
	}
}

func peepholeBlock(code []*vasm.Vinstr) []*vasm.Vinstr {
	var out []*vasm.Vinstr

	for i := 0; i < len(code); i++ {
		ins := code[i]

		switch ins.Op {
		case vasm.Nop, vasm.Phidef:
			continue
		case vasm.Copy2:
			if n := len(out); n > 0 && out[n-1].Op == vasm.Copy2 && sameSwap(out[n-1], ins) {
				out = out[:n-1]
				continue
			}
		}

		out = append(out, ins)
	}

	return out
}

func sameSwap(a, b *vasm.Vinstr) bool {
	if len(a.Defs) != len(b.Defs) || len(a.Defs) != 2 {
		return false
	}
	return a.Defs[0].Assigned == b.Defs[0].Assigned && a.Defs[1].Assigned == b.Defs[1].Assigned &&
		a.Uses[0].Assigned == b.Uses[0].Assigned && a.Uses[1].Assigned == b.Uses[1].Assigned
}
