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

import "fmt"

// Vlabel names a block within a Vunit.
type Vlabel int

func (l Vlabel) String() string {
	return fmt.Sprintf("B%d", int(l))
}

// Vblock is one basic block: a straight-line instruction list ending in a
// terminator, plus the predecessor/successor edges the block utilities
// maintain.
type Vblock struct {
	Label   Vlabel
	Code    []*Vinstr
	Preds   []Vlabel
	Succs   []Vlabel
	RPO     int // reverse post-order index, filled in by SortBlocks
}

// Vunit is a complete unit of vasm code: an unbounded register supply, a
// constant pool keyed by vreg, and the block graph.
type Vunit struct {
	Entry     Vlabel
	Blocks    map[Vlabel]*Vblock
	NextVreg  Vreg
	Consts    map[Vreg]int64 // constToReg: vreg -> literal value
	Tuples    map[int][]Vreg // side table of vreg lists referenced by tuple id
}

// NewVreg allocates and returns a fresh virtual register.
func (u *Vunit) NewVreg() Vreg {
	u.NextVreg++
	return u.NextVreg
}

// Block fetches a block by label, panicking if it is missing: a dangling
// label is an internal-consistency bug, not a recoverable input error.
func (u *Vunit) Block(l Vlabel) *Vblock {
	bb, ok := u.Blocks[l]
	if !ok {
		panic(fmt.Sprintf("vasm: undefined block %s", l))
	}
	return bb
}

// Successors returns the terminator's target labels, in the order phi
// sources and edge copies are keyed against.
func (bb *Vblock) Successors() []Vlabel {
	return bb.Succs
}

func (bb *Vblock) Terminator() *Vinstr {
	if len(bb.Code) == 0 {
		panic(fmt.Sprintf("vasm: block %s has no terminator", bb.Label))
	}
	return bb.Code[len(bb.Code)-1]
}
