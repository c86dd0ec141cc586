// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import (
	"unsafe"

	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// IOHandle gives a kernel direct access to one input or output tensor for the
// duration of a single KernelCompute call.
//
// Value and Data are borrowed from the engine. Dims is allocated from the
// operator's allocator and must be returned with Op.Release before the
// compute function returns, on every path:
//
//	x, err := op.GetInput(ctx, 0)
//	if err != nil {
//	    return err
//	}
//	defer op.Release(x)
type IOHandle struct {
	Index        int
	Value        ort.Value
	Type         ort.ElementType
	Data         []byte
	ElementCount int
	Dims         []int64

	dimsBlock []byte
}

// Rank returns the number of dimensions.
func (h *IOHandle) Rank() int {
	return len(h.Dims)
}

// GetInput resolves input index of ctx.
func (op *Op) GetInput(ctx ort.KernelContext, index int) (*IOHandle, error) {
	value, err := op.api.KernelContextGetInput(ctx, index)
	if err != nil {
		return nil, err
	}
	return op.resolve(index, value)
}

// GetOutput asks the engine for output index of ctx with the given shape and
// resolves it. The engine allocates the output storage.
func (op *Op) GetOutput(ctx ort.KernelContext, index int, shape []int64) (*IOHandle, error) {
	value, err := op.api.KernelContextGetOutput(ctx, index, shape)
	if err != nil {
		return nil, err
	}
	return op.resolve(index, value)
}

// Release frees the handle's dims. It never touches the tensor data or the
// value, and calling it again (or on nil) is a no-op.
func (op *Op) Release(h *IOHandle) {
	if h == nil || h.dimsBlock == nil {
		return
	}
	block := h.dimsBlock
	h.dimsBlock = nil
	h.Dims = nil
	if err := op.api.AllocatorFree(op.allocator, block); err != nil {
		klog.Warningf("customop: %q: releasing dims of handle %d: %v", op.desc.Name, h.Index, err)
	}
}

// resolve fills an IOHandle for value. On failure nothing stays allocated.
func (op *Op) resolve(index int, value ort.Value) (*IOHandle, error) {
	data, err := op.api.GetTensorMutableData(value)
	if err != nil {
		return nil, err
	}

	info, err := op.api.GetTensorTypeAndShape(value)
	if err != nil {
		return nil, err
	}
	defer op.api.ReleaseTensorTypeAndShapeInfo(info)

	elementType, err := op.api.GetTensorElementType(info)
	if err != nil {
		return nil, err
	}
	count, err := op.api.GetTensorShapeElementCount(info)
	if err != nil {
		return nil, err
	}
	rank, err := op.api.GetDimensionsCount(info)
	if err != nil {
		return nil, err
	}

	h := &IOHandle{
		Index:        index,
		Value:        value,
		Type:         elementType,
		Data:         data,
		ElementCount: count,
	}
	if rank == 0 {
		return h, nil
	}

	size := rank * int(unsafe.Sizeof(int64(0)))
	block, err := op.api.AllocatorAlloc(op.allocator, size)
	if err != nil {
		return nil, &AllocationError{Op: op.desc.Name, What: "dims", Size: size, Err: err}
	}
	//nolint:gosec // allocator blocks are 8-byte aligned and size covers rank int64s
	dims := unsafe.Slice((*int64)(unsafe.Pointer(unsafe.SliceData(block))), rank)
	if err := op.api.GetDimensions(info, dims); err != nil {
		if freeErr := op.api.AllocatorFree(op.allocator, block); freeErr != nil {
			klog.Warningf("customop: %q: freeing dims after failed GetDimensions: %v", op.desc.Name, freeErr)
		}
		return nil, err
	}

	h.Dims = dims
	h.dimsBlock = block
	return h, nil
}
