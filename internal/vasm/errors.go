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

// PuntReason classifies a graceful give-up (§7): the compiler driver may
// retry the unit through a different pass or fall back to interpretation.
type PuntReason uint8

const (
	TooManySpills PuntReason = iota
	RegSpill
	UnsupportedArch
)

func (r PuntReason) String() string {
	switch r {
	case TooManySpills:
		return "TooManySpills"
	case RegSpill:
		return "RegSpill"
	case UnsupportedArch:
		return "UnsupportedArch"
	default:
		return "Punt"
	}
}

// PuntError is returned up to the driver instead of panicking: compilation
// of this unit should be abandoned, not the process.
type PuntError struct {
	Reason PuntReason
	Detail string
}

func (e *PuntError) Error() string {
	if e.Detail == "" {
		return "vasm: punt: " + e.Reason.String()
	}
	return fmt.Sprintf("vasm: punt: %s: %s", e.Reason, e.Detail)
}

func Punt(reason PuntReason, format string, args ...interface{}) error {
	return &PuntError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AssertionError is panicked, never returned, when an internal invariant
// the allocator relies on doesn't hold. It implements error so a top-level
// recover can still log a readable diagnosis before the process exits.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string {
	return "vasm: assertion failed: " + e.Msg
}

func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(&AssertionError{Msg: fmt.Sprintf(format, args...)})
	}
}
