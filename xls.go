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

// Package hhvm exposes the vasm Extended Linear Scan register allocator as
// a single entry point: build a unit with internal/vasm, describe the
// target with an Abi, and call AllocateRegisters.
package hhvm

import (
	"github.com/roba269/hhvm/internal/vasm"
	"github.com/roba269/hhvm/internal/xls"
)

// Options re-exports the allocator's environment toggles so callers never
// need to import internal/xls directly.
type Options = xls.Options

// DefaultOptions returns the allocator's shipped defaults.
func DefaultOptions() Options {
	return xls.DefaultOptions()
}

// NewAMD64Abi returns the default amd64 ABI: the allocatable GPR and SIMD
// pools, the stack pointer, and the single scratch register the allocator
// reserves for breaking parallel-copy cycles.
func NewAMD64Abi() *vasm.Abi {
	return vasm.NewAMD64Abi()
}

// AllocateRegisters rewrites unit in place, replacing every vreg operand
// with a physical register from abi and inserting whatever spills,
// reloads, parallel copies, and spill-frame (de)allocation the assignment
// requires. It returns a *vasm.PuntError with reason TooManySpills when the
// spill slot pool is exhausted; that is the only punt it raises.
func AllocateRegisters(unit *vasm.Vunit, abi *vasm.Abi, opts Options) error {
	return xls.AllocateRegisters(unit, abi, opts)
}
