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

import (
	"os"

	"github.com/roba269/hhvm/internal/vasm"
	"github.com/roba269/hhvm/internal/xlsdebug"
)

// AllocateRegisters runs the full ten-stage pipeline over unit in place,
// rewriting every vreg operand to a physical register and inserting
// spills, reloads, parallel copies, and spill-frame (de)allocation. It is
// single-threaded and non-suspending (§5): ownership of every Interval it
// builds is released when this call returns.
func AllocateRegisters(unit *vasm.Vunit, abi *vasm.Abi, opts Options) error {
	vasm.ComputePreds(unit)
	vasm.SplitCriticalEdges(unit)

	ctx := newContext(unit, abi, opts)
	ctx.Blocks = vasm.SortBlocks(unit)
	ctx.NumVregs = int(unit.NextVreg)

	computePositions(ctx)
	analyzeSP(ctx)
	computeLiveness(ctx)

	intervals := buildIntervals(ctx)
	ctx.intervals = intervals

	dumpDebug(ctx, intervals)

	if err := assignRegisters(ctx, intervals); err != nil {
		return err
	}

	plan := resolveLifetimes(ctx, intervals)
	renameOperands(ctx, intervals)
	insertCopies(ctx, plan)
	peephole(ctx)

	numSlots := 0
	for _, iv := range intervals {
		if iv != nil && iv.Parent == nil && iv.Slot != NoSlot {
			end := iv.Slot + 1
			if iv.Wide {
				end++
			}
			if end > numSlots {
				numSlots = end
			}
		}
	}

	allocateSpillSpace(ctx, numSlots)

	return nil
}

// dumpDebug writes the interval dump and live-range SVG chart the teacher's
// pass_regalloc_amd64.go produces unconditionally, gated here behind
// Options.Debug since this allocator runs as a library rather than a
// one-shot compiler invocation.
func dumpDebug(ctx *Context, intervals []*Interval) {
	if !ctx.Opts.Debug {
		return
	}

	out := ctx.Opts.DebugWriter
	if out == nil {
		out = os.Stderr
	}

	dbg := make([]xlsdebug.Interval, len(intervals))
	for i, iv := range intervals {
		if iv != nil {
			dbg[i] = iv
		}
	}

	xlsdebug.DumpIntervals(out, xlsdebug.Config{
		ShowReserved: ctx.Opts.ShowReserved,
		ShowFixed:    ctx.Opts.ShowFixed,
	}, dbg)

	if ctx.Opts.DebugSVGPath == "" {
		return
	}

	f, err := os.Create(ctx.Opts.DebugSVGPath)
	if err != nil {
		return
	}
	defer f.Close()

	chartHeight := 0
	for _, r := range ctx.Ranges {
		if r.end > chartHeight {
			chartHeight = r.end
		}
	}
	xlsdebug.DrawLiveRanges(f, dbg, chartHeight)
}
