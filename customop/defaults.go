// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import "github.com/born-ml/ortkit/ort"

// Defaults implements the rarely customized slots of ort.CustomOp.
//
// Embed it in an operator type to get:
//   - no execution provider preference (the engine chooses)
//   - every input and output required
//   - inputs in default device memory
//   - variadic minimum arity 1, homogeneous variadic arguments
type Defaults struct{}

// Version returns the ABI version the operator was built against.
func (Defaults) Version() uint32 {
	return ort.APIVersion
}

// ExecutionProviderType returns "" (unspecified).
func (Defaults) ExecutionProviderType() string {
	return ""
}

// InputCharacteristic returns ort.Required for every index.
func (Defaults) InputCharacteristic(int) ort.Characteristic {
	return ort.Required
}

// OutputCharacteristic returns ort.Required for every index.
func (Defaults) OutputCharacteristic(int) ort.Characteristic {
	return ort.Required
}

// InputMemoryType returns ort.MemTypeDefault for every index.
func (Defaults) InputMemoryType(int) ort.MemType {
	return ort.MemTypeDefault
}

// VariadicInputMinArity returns 1.
func (Defaults) VariadicInputMinArity() int {
	return 1
}

// VariadicInputHomogeneity returns true.
func (Defaults) VariadicInputHomogeneity() bool {
	return true
}

// VariadicOutputMinArity returns 1.
func (Defaults) VariadicOutputMinArity() int {
	return 1
}

// VariadicOutputHomogeneity returns true.
func (Defaults) VariadicOutputHomogeneity() bool {
	return true
}
