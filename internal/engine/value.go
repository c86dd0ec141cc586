package engine

import (
	"math"
	"math/bits"
	"slices"

	"github.com/born-ml/ortkit/ort"
)

// value is a dense CPU tensor.
type value struct {
	elemType ort.ElementType
	shape    []int64
	data     []byte

	// Set when data came from an ort.Allocator and must be returned to it.
	alloc *allocator
}

// elementCount returns the number of elements of shape. A scalar has one.
func elementCount(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// maxTensorBytes bounds the storage of a single tensor.
const maxTensorBytes = 1 << 40

// checkShape rejects negative extents and shapes whose storage, at elemSize
// bytes per element, overflows or exceeds maxTensorBytes. Once it passes,
// elementCount cannot overflow.
func checkShape(shape []int64, elemSize int) error {
	for i, d := range shape {
		if d < 0 {
			return ort.NewStatus(ort.InvalidArgument, "invalid dimension at index %d: %d (must be >= 0)", i, d)
		}
	}
	total := uint64(max(elemSize, 1))
	for _, d := range shape {
		hi, lo := bits.Mul64(total, uint64(d))
		if hi != 0 || lo > maxTensorBytes || lo > math.MaxInt {
			return ort.NewStatus(ort.InvalidArgument, "shape %v of %d-byte elements exceeds %d bytes", shape, elemSize, maxTensorBytes)
		}
		total = lo
	}
	return nil
}

func checkElementType(t ort.ElementType) error {
	if t.Size() == 0 {
		return ort.NewStatus(ort.NotImplemented, "tensors of %s are not supported", t)
	}
	return nil
}

// newValue allocates a zeroed tensor.
func newValue(elemType ort.ElementType, shape []int64) (*value, error) {
	if err := checkElementType(elemType); err != nil {
		return nil, err
	}
	if err := checkShape(shape, elemType.Size()); err != nil {
		return nil, err
	}
	return &value{
		elemType: elemType,
		shape:    slices.Clone(shape),
		data:     alignedBytes(elementCount(shape) * elemType.Size()),
	}, nil
}

func (v *value) count() int {
	return elementCount(v.shape)
}

// clone returns a copy of v backed by fresh memory.
func (v *value) clone() *value {
	c := &value{
		elemType: v.elemType,
		shape:    slices.Clone(v.shape),
		data:     alignedBytes(len(v.data)),
	}
	copy(c.data, v.data)
	return c
}

// memoryInfo describes where caller supplied tensor data lives.
type memoryInfo struct {
	allocatorType ort.AllocatorType
	memType       ort.MemType
}

// typeAndShape is the result of GetTensorTypeAndShape.
type typeAndShape struct {
	elemType ort.ElementType
	shape    []int64
}

// CreateCPUMemoryInfo describes CPU memory.
func (e *Engine) CreateCPUMemoryInfo(allocatorType ort.AllocatorType, memType ort.MemType) (ort.MemoryInfo, error) {
	if allocatorType != ort.DeviceAllocator && allocatorType != ort.ArenaAllocator {
		return 0, ort.NewStatus(ort.InvalidArgument, "invalid allocator type %d", allocatorType)
	}
	info := &memoryInfo{allocatorType: allocatorType, memType: memType}
	return ort.MemoryInfo(e.handles.put(info)), nil
}

// ReleaseMemoryInfo releases a memory info.
func (e *Engine) ReleaseMemoryInfo(info ort.MemoryInfo) {
	release[*memoryInfo](&e.handles, uintptr(info))
}

// CreateTensorWithDataAsValue wraps caller owned data in a tensor value. The
// data is not copied and must outlive the value.
func (e *Engine) CreateTensorWithDataAsValue(info ort.MemoryInfo, data []byte, shape []int64, elementType ort.ElementType) (ort.Value, error) {
	if _, err := lookup[*memoryInfo](&e.handles, uintptr(info), "memory info"); err != nil {
		return 0, err
	}
	if err := checkElementType(elementType); err != nil {
		return 0, err
	}
	if err := checkShape(shape, elementType.Size()); err != nil {
		return 0, err
	}
	need := elementCount(shape) * elementType.Size()
	if len(data) < need {
		return 0, ort.NewStatus(ort.InvalidArgument, "data length %d is smaller than %d bytes required by shape %v of %s", len(data), need, shape, elementType)
	}
	v := &value{
		elemType: elementType,
		shape:    slices.Clone(shape),
		data:     data[:need:need],
	}
	return ort.Value(e.handles.put(v)), nil
}

// CreateTensorAsValue creates a zeroed tensor whose storage comes from
// allocator (the default allocator when zero). ReleaseValue frees it.
func (e *Engine) CreateTensorAsValue(a ort.Allocator, shape []int64, elementType ort.ElementType) (ort.Value, error) {
	if a == 0 {
		a = e.defaultAllocator
	}
	alloc, err := lookup[*allocator](&e.handles, uintptr(a), "allocator")
	if err != nil {
		return 0, err
	}
	if err := checkElementType(elementType); err != nil {
		return 0, err
	}
	if err := checkShape(shape, elementType.Size()); err != nil {
		return 0, err
	}
	data, err := alloc.alloc(elementCount(shape) * elementType.Size())
	if err != nil {
		return 0, err
	}
	v := &value{
		elemType: elementType,
		shape:    slices.Clone(shape),
		data:     data,
		alloc:    alloc,
	}
	return ort.Value(e.handles.put(v)), nil
}

// ReleaseValue releases a value returned to the caller.
func (e *Engine) ReleaseValue(v ort.Value) {
	val, ok := release[*value](&e.handles, uintptr(v))
	if !ok || val.alloc == nil {
		return
	}
	_ = val.alloc.free(val.data)
}

// GetTensorMutableData returns the tensor's storage.
func (e *Engine) GetTensorMutableData(v ort.Value) ([]byte, error) {
	val, err := lookup[*value](&e.handles, uintptr(v), "value")
	if err != nil {
		return nil, err
	}
	return val.data, nil
}

// GetTensorTypeAndShape returns a new type and shape info for v, to be
// released with ReleaseTensorTypeAndShapeInfo.
func (e *Engine) GetTensorTypeAndShape(v ort.Value) (ort.TensorTypeAndShapeInfo, error) {
	val, err := lookup[*value](&e.handles, uintptr(v), "value")
	if err != nil {
		return 0, err
	}
	info := &typeAndShape{elemType: val.elemType, shape: slices.Clone(val.shape)}
	return ort.TensorTypeAndShapeInfo(e.handles.put(info)), nil
}

// ReleaseTensorTypeAndShapeInfo releases a type and shape info.
func (e *Engine) ReleaseTensorTypeAndShapeInfo(info ort.TensorTypeAndShapeInfo) {
	release[*typeAndShape](&e.handles, uintptr(info))
}

// GetTensorElementType returns the element type.
func (e *Engine) GetTensorElementType(info ort.TensorTypeAndShapeInfo) (ort.ElementType, error) {
	ts, err := lookup[*typeAndShape](&e.handles, uintptr(info), "type and shape info")
	if err != nil {
		return ort.Undefined, err
	}
	return ts.elemType, nil
}

// GetTensorShapeElementCount returns the product of the extents.
func (e *Engine) GetTensorShapeElementCount(info ort.TensorTypeAndShapeInfo) (int, error) {
	ts, err := lookup[*typeAndShape](&e.handles, uintptr(info), "type and shape info")
	if err != nil {
		return 0, err
	}
	return elementCount(ts.shape), nil
}

// GetDimensionsCount returns the rank.
func (e *Engine) GetDimensionsCount(info ort.TensorTypeAndShapeInfo) (int, error) {
	ts, err := lookup[*typeAndShape](&e.handles, uintptr(info), "type and shape info")
	if err != nil {
		return 0, err
	}
	return len(ts.shape), nil
}

// GetDimensions copies the extents into dims.
func (e *Engine) GetDimensions(info ort.TensorTypeAndShapeInfo, dims []int64) error {
	ts, err := lookup[*typeAndShape](&e.handles, uintptr(info), "type and shape info")
	if err != nil {
		return err
	}
	copy(dims, ts.shape)
	return nil
}
