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

// Package xlsdebug holds the allocator's optional diagnostic output: a
// columnar interval dump (go-spew, gated by Options.Debug) and an SVG
// live-range chart (svgo), adapted from the teacher's spew.Dump/
// draw_liverange debug helpers in its own register-allocation prototypes.
package xlsdebug

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// counter tags successive dumps within one process, mirroring the
// original allocator's s_counter invocation tag.
var counter int

// Interval is the minimal view DumpIntervals needs; internal/xls.Interval
// satisfies it without this package importing internal/xls, keeping the
// debug package a leaf the allocator core can depend on either way.
type Interval interface {
	DebugVreg() int32
	DebugRanges() [][2]int
	DebugReg() int
	DebugSlot() int
}

// Config selects which intervals DumpIntervals prints. With ShowReserved
// false, vreg 0 (the flags stand-in) is skipped; with ShowFixed false, every
// interval that has neither a register nor a spill slot is skipped. The
// Interval view carries no fixed flag, so neither toggle singles out fixed
// intervals.
type Config struct {
	ShowReserved bool
	ShowFixed    bool
}

// DumpIntervals writes a go-spew rendering of each selected interval's
// ranges, register and slot to w (uses are not printed), tagged with an incrementing run counter so
// repeated compilations in the same process stay distinguishable in logs.
func DumpIntervals(w io.Writer, cfg Config, intervals []Interval) {
	counter++
	fmt.Fprintf(w, "-- xls intervals #%d --\n", counter)

	dumper := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}

	for _, iv := range intervals {
		if iv == nil {
			continue
		}
		if !cfg.ShowReserved && iv.DebugVreg() == 0 {
			continue
		}
		if !cfg.ShowFixed && iv.DebugReg() < 0 && iv.DebugSlot() < 0 {
			continue
		}
		dumper.Fprintf(w, "v%d: ranges=%v reg=%d slot=%d\n",
			iv.DebugVreg(), iv.DebugRanges(), iv.DebugReg(), iv.DebugSlot())
	}
}

// PrintIntervals is a terser one-line-per-interval rendering of the same
// fields, written with fmt instead of go-spew.
func PrintIntervals(w io.Writer, intervals []Interval) {
	for _, iv := range intervals {
		if iv == nil {
			continue
		}
		fmt.Fprintf(w, "v%-4d reg=%-4d slot=%-4d ranges=%v\n",
			iv.DebugVreg(), iv.DebugReg(), iv.DebugSlot(), iv.DebugRanges())
	}
}
