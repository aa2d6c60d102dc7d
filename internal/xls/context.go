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

// Package xls implements the Extended Linear Scan register allocator: the
// core pipeline that turns a vasm unit with an unbounded vreg supply into
// one using only the physical registers an Abi exposes, inserting spills,
// reloads, parallel copies, and spill-frame (de)allocation along the way.
package xls

import (
	"io"

	"github.com/roba269/hhvm/internal/vasm"
)

// Options are the environment toggles the original allocator reads once
// per run (§6).
type Options struct {
	// EnablePreColoring and EnableCoalescing together gate whether hints
	// bias register choice: findHint is skipped only when both are off.
	// Fixed intervals are seeded the same way whatever their values.
	EnablePreColoring bool
	EnableCoalescing  bool

	// StressSpill deterministically reserves extra spill slots to
	// exercise the spill frame even when allocation didn't need them.
	StressSpill bool

	// Debug gates the go-spew interval/assignment dumps in xlsdebug.
	Debug bool

	// ShowReserved / ShowFixed filter xlsdebug's dump/draw output.
	ShowReserved bool
	ShowFixed    bool

	// DebugWriter receives the xlsdebug dump when Debug is set. Defaults
	// to os.Stderr if nil.
	DebugWriter io.Writer

	// DebugSVGPath, if non-empty, gets a live-range SVG chart written to
	// it when Debug is set, mirroring the teacher's hardcoded
	// /tmp/live_ranges.svg dump target.
	DebugSVGPath string
}

// DefaultOptions matches the original allocator's shipped defaults.
func DefaultOptions() Options {
	return Options{
		EnablePreColoring: true,
		EnableCoalescing:  true,
	}
}

// blockRange is the half-open [start,end) position range computePositions
// assigns to a block.
type blockRange struct {
	start, end int
}

// Context is the read-only state shared by every stage after pre-analysis:
// the ABI, per-block position ranges, per-block sp offsets, per-block
// live-in sets, and the sorted block order (§3, VxlsContext).
type Context struct {
	Unit *vasm.Vunit
	Abi  *vasm.Abi
	Opts Options

	Blocks   []*vasm.Vblock // sorted in RPO order, entry first
	Ranges   map[vasm.Vlabel]blockRange
	SPOffset map[vasm.Vlabel]int
	LiveIn   map[vasm.Vlabel]LiveSet

	SpillSize int // total bytes of the spill frame, set by allocateSpillSpace

	NumVregs int

	intervals []*Interval // vreg -> interval, set by buildIntervals; used by findHint
}

func newContext(u *vasm.Vunit, abi *vasm.Abi, opts Options) *Context {
	return &Context{
		Unit:     u,
		Abi:      abi,
		Opts:     opts,
		Ranges:   make(map[vasm.Vlabel]blockRange),
		SPOffset: make(map[vasm.Vlabel]int),
		LiveIn:   make(map[vasm.Vlabel]LiveSet),
	}
}
