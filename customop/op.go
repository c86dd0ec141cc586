// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import (
	"unsafe"

	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// Op is an ort.CustomOp synthesized from a Descriptor.
//
// The instance doubles as its own kernel: CreateKernel returns the Op, so
// there is no per-node state and KernelDestroy has nothing to free.
type Op struct {
	Defaults

	api       ort.API
	allocator ort.Allocator
	desc      Descriptor

	// block is the allocator memory accounting for this instance.
	block []byte
}

var _ ort.CustomOp = (*Op)(nil)

// instanceSize is the number of bytes requested from the allocator per Op.
const instanceSize = int(unsafe.Sizeof(Op{}))

// New creates an operator from desc.
//
// When allocator is zero the engine's default allocator is used. The
// descriptor is copied, so the caller may reuse its storage afterwards.
// The returned Op must be closed with Close once the engine no longer
// references it.
func New(api ort.API, allocator ort.Allocator, desc Descriptor) (*Op, error) {
	if allocator == 0 {
		var err error
		allocator, err = api.GetAllocatorWithDefaultOptions()
		if err != nil {
			return nil, err
		}
	}

	block, err := api.AllocatorAlloc(allocator, instanceSize)
	if err != nil {
		return nil, &AllocationError{Op: desc.Name, What: "instance", Size: instanceSize, Err: err}
	}

	op := &Op{
		api:       api,
		allocator: allocator,
		desc:      desc.clone(),
		block:     block,
	}
	klog.V(3).Infof("customop: created %q (%d inputs, %d outputs)", op.desc.Name, op.desc.Inputs.Count(), op.desc.Outputs.Count())
	return op, nil
}

// Close returns the instance memory to the allocator that created it.
// Calling Close more than once is a no-op.
func (op *Op) Close() error {
	if op.block == nil {
		return nil
	}
	block := op.block
	op.block = nil
	return op.api.AllocatorFree(op.allocator, block)
}

// API returns the engine API the operator was created with.
func (op *Op) API() ort.API {
	return op.api
}

// Allocator returns the allocator owning the operator's scratch memory.
func (op *Op) Allocator() ort.Allocator {
	return op.allocator
}

// Descriptor returns a copy of the operator's descriptor.
func (op *Op) Descriptor() Descriptor {
	return op.desc.clone()
}

// Name returns the descriptor name.
func (op *Op) Name() string {
	return op.desc.Name
}

// InputTypeCount returns the number of declared inputs.
func (op *Op) InputTypeCount() int {
	return op.desc.Inputs.Count()
}

// InputType returns the element type of input index.
func (op *Op) InputType(index int) ort.ElementType {
	return op.desc.Inputs.Type(index)
}

// OutputTypeCount returns the number of declared outputs.
func (op *Op) OutputTypeCount() int {
	return op.desc.Outputs.Count()
}

// OutputType returns the element type of output index.
func (op *Op) OutputType(index int) ort.ElementType {
	return op.desc.Outputs.Type(index)
}

// CreateKernel returns op itself.
func (op *Op) CreateKernel(ort.API, ort.KernelInfo) (ort.Kernel, error) {
	return op, nil
}

// KernelCompute runs the descriptor's compute function for kernel, which
// must come from CreateKernel; any other kernel panics.
func (op *Op) KernelCompute(kernel ort.Kernel, ctx ort.KernelContext) error {
	k := kernel.(*Op)
	if k.desc.Compute == nil {
		return ort.NewStatus(ort.NotImplemented, "operator %q has no compute function", k.desc.Name)
	}
	return k.desc.Compute(k, k.api, ctx)
}

// KernelDestroy does nothing; the kernel is the operator.
func (op *Op) KernelDestroy(ort.Kernel) {}
