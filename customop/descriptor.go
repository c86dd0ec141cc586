// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import (
	"slices"

	"github.com/born-ml/ortkit/ort"
)

// ComputeFunc is the numeric body of an operator. It is called once per node
// execution with the operator, the engine API and the kernel context, and
// its error is returned to the engine unchanged.
type ComputeFunc func(op *Op, api ort.API, ctx ort.KernelContext) error

// IOSpec declares the element types of an operator's inputs or outputs:
// either one type shared by Count positions, or one type per position.
type IOSpec struct {
	count         int
	homogeneous   ort.ElementType
	heterogeneous []ort.ElementType // authoritative when non-nil
}

// Uniform declares count positions that all have element type t.
func Uniform(count int, t ort.ElementType) IOSpec {
	return IOSpec{count: count, homogeneous: t}
}

// Types declares one position per argument, in order.
func Types(types ...ort.ElementType) IOSpec {
	list := make([]ort.ElementType, len(types))
	copy(list, types)
	return IOSpec{count: len(list), heterogeneous: list}
}

// Count returns the number of positions.
func (s IOSpec) Count() int {
	return s.count
}

// Heterogeneous reports whether s carries a per-position type list.
func (s IOSpec) Heterogeneous() bool {
	return s.heterogeneous != nil
}

// Type returns the element type at index. A uniform IOSpec answers for any
// index; a per-position one panics when index is out of range.
func (s IOSpec) Type(index int) ort.ElementType {
	if s.heterogeneous != nil {
		return s.heterogeneous[index]
	}
	return s.homogeneous
}

// clone returns an IOSpec that shares no storage with s.
func (s IOSpec) clone() IOSpec {
	if s.heterogeneous != nil {
		s.heterogeneous = slices.Clone(s.heterogeneous)
	}
	return s
}

// Descriptor is the flat declaration of a simple operator.
type Descriptor struct {
	Name    string
	Inputs  IOSpec
	Outputs IOSpec
	Compute ComputeFunc
}

// clone returns a deep copy of d.
func (d Descriptor) clone() Descriptor {
	d.Inputs = d.Inputs.clone()
	d.Outputs = d.Outputs.clone()
	return d
}
