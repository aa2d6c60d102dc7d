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

import "github.com/oleiade/lane"

// NewBlock allocates a fresh block with a label past every label currently
// in use and registers it on the unit.
func (u *Vunit) NewBlock() *Vblock {
	next := u.Entry

	for l := range u.Blocks {
		if l >= next {
			next = l + 1
		}
	}

	bb := &Vblock{Label: next}
	u.Blocks[next] = bb
	return bb
}

type dfsFrame struct {
	label Vlabel
	next  int
}

// SortBlocks returns the unit's blocks in reverse post-order: every block
// appears after all of its non-loop-back predecessors. RPO fields on the
// blocks are updated in place. The DFS stack uses lane.Stack, the same
// structure the teacher's block-serialization pass builds its traversal
// order with.
func SortBlocks(u *Vunit) []*Vblock {
	var post []*Vblock

	visited := make(map[Vlabel]bool)
	work := lane.NewStack()

	work.Push(&dfsFrame{label: u.Entry})
	visited[u.Entry] = true

	for !work.Empty() {
		top := work.Head()
		fr := top.(*dfsFrame)
		bb := u.Block(fr.label)

		if fr.next < len(bb.Succs) {
			succ := bb.Succs[fr.next]
			fr.next++

			if !visited[succ] {
				visited[succ] = true
				work.Push(&dfsFrame{label: succ})
			}

			continue
		}

		work.Pop()
		post = append(post, bb)
	}

	rpo := make([]*Vblock, len(post))

	for i, bb := range post {
		idx := len(post) - 1 - i
		rpo[idx] = bb
		bb.RPO = idx
	}

	return rpo
}

// ComputePreds rebuilds every block's Preds list from the current Succs
// edges.
func ComputePreds(u *Vunit) {
	for _, bb := range u.Blocks {
		bb.Preds = bb.Preds[:0]
	}

	for _, bb := range u.Blocks {
		for _, s := range bb.Succs {
			succ := u.Block(s)
			succ.Preds = append(succ.Preds, bb.Label)
		}
	}
}

type crEdge struct {
	from, to Vlabel
}

// SplitCriticalEdges splits every edge running from a block with more than
// one successor to a block with more than one predecessor, by inserting an
// empty block that just jumps to the original target. Adapted from the
// teacher's SplitCritical SSA pass; the allocator's resolution pass needs a
// critical-edge-free CFG to have somewhere to place edge copies (§4.4).
func SplitCriticalEdges(u *Vunit) {
	var edges []crEdge

	for _, bb := range u.Blocks {
		if len(bb.Preds) <= 1 {
			continue
		}

		for _, p := range bb.Preds {
			pred := u.Block(p)
			if len(pred.Succs) > 1 {
				edges = append(edges, crEdge{from: p, to: bb.Label})
			}
		}
	}

	for _, e := range edges {
		from := u.Block(e.from)
		to := u.Block(e.to)

		nb := u.NewBlock()
		nb.Code = []*Vinstr{{Op: Jmp, Targets: []Vlabel{e.to}}}
		nb.Preds = []Vlabel{e.from}
		nb.Succs = []Vlabel{e.to}

		for i, s := range from.Succs {
			if s == e.to {
				from.Succs[i] = nb.Label
			}
		}

		if term := from.Terminator(); term != nil {
			for i, t := range term.Targets {
				if t == e.to {
					term.Targets[i] = nb.Label
				}
			}
		}

		for i, p := range to.Preds {
			if p == e.from {
				to.Preds[i] = nb.Label
			}
		}
	}

	if len(edges) != 0 {
		ComputePreds(u)
	}
}
