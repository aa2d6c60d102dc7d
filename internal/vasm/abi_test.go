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

func TestNewAMD64Abi_ReservesSPAndScratch(t *testing.T) {
	abi := NewAMD64Abi()

	require.NotContains(t, abi.Gpr, abi.SP)
	require.NotContains(t, abi.Gpr, abi.Tmp)
	require.NotEqual(t, abi.SP, abi.Tmp)

	require.Equal(t, Gpr, abi.ClassOf(abi.SP))
	require.Equal(t, Gpr, abi.ClassOf(abi.Tmp))
}

func TestNewAMD64Abi_ClassOf(t *testing.T) {
	abi := NewAMD64Abi()

	for _, r := range abi.Gpr {
		require.Equal(t, Gpr, abi.ClassOf(r))
	}
	for _, r := range abi.Simd {
		require.Equal(t, Simd, abi.ClassOf(r))
	}
	require.Equal(t, Sf, abi.ClassOf(Flags))
}

func TestNewAMD64Abi_AtLeastSSESIMDSet(t *testing.T) {
	abi := NewAMD64Abi()
	require.GreaterOrEqual(t, len(abi.Simd), 8, "xmm0-xmm7 must always be allocatable regardless of AVX support")
}

func TestAbi_Name_FallsBackToStringForUnknown(t *testing.T) {
	abi := NewAMD64Abi()
	require.Equal(t, "%flags", abi.Name(Flags))
	for _, r := range abi.Gpr {
		require.NotEqual(t, "", abi.Name(r))
	}
}

func TestAbi_SlotOffset(t *testing.T) {
	abi := NewAMD64Abi()
	require.Equal(t, 0, abi.SlotOffset(0))
	require.Equal(t, 8, abi.SlotOffset(1))
	require.Equal(t, 16, abi.SlotOffset(2))
}
