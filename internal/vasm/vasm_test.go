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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVreg_Valid(t *testing.T) {
	require.False(t, Vreg(0).Valid())
	require.True(t, Vreg(1).Valid())
}

func TestWidth_Wide(t *testing.T) {
	require.True(t, WidthSimd128.Wide())
	require.False(t, WidthSimdDbl.Wide())
	require.False(t, WidthGpr64.Wide())
}

func TestWidth_Constraint(t *testing.T) {
	require.Equal(t, Gpr, WidthGpr64.Constraint())
	require.Equal(t, Simd, WidthSimd128.Constraint())
	require.Equal(t, Sf, WidthSf.Constraint())
}

func TestConstraint_Accepts(t *testing.T) {
	tests := []struct {
		name string
		c    Constraint
		cls  Constraint
		want bool
	}{
		{"any accepts gpr", Any, Gpr, true},
		{"any accepts simd", Any, Simd, true},
		{"copysrc accepts gpr", CopySrc, Gpr, true},
		{"gpr rejects simd", Gpr, Simd, false},
		{"gpr accepts gpr", Gpr, Gpr, true},
		{"simd rejects gpr", Simd, Gpr, false},
		{"sf only accepts sf", Sf, Sf, true},
		{"sf rejects gpr", Sf, Gpr, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.c.Accepts(tt.cls))
		})
	}
}

func TestPhysReg_String_Sentinels(t *testing.T) {
	require.Equal(t, "%noreg", NoPhysReg.String())
	require.Equal(t, "%flags", Flags.String())
}
