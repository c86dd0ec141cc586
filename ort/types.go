// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ort

// APIVersion is the version of the operator ABI implemented by this package.
// Custom operators report it from CustomOp.Version.
const APIVersion = 17

// ElementType is the element data type of a tensor (ONNXTensorElementDataType).
// Values match TensorProto.DataType.
type ElementType int32

// Tensor element types.
const (
	Undefined  ElementType = 0
	Float      ElementType = 1  // float32
	Uint8      ElementType = 2  // uint8
	Int8       ElementType = 3  // int8
	Uint16     ElementType = 4  // uint16
	Int16      ElementType = 5  // int16
	Int32      ElementType = 6  // int32
	Int64      ElementType = 7  // int64
	String     ElementType = 8  // string (not supported by CPU tensors)
	Bool       ElementType = 9  // bool
	Float16    ElementType = 10 // IEEE 754 half
	Double     ElementType = 11 // float64
	Uint32     ElementType = 12 // uint32
	Uint64     ElementType = 13 // uint64
	Complex64  ElementType = 14 // complex64
	Complex128 ElementType = 15 // complex128
	BFloat16   ElementType = 16 // bfloat16
)

// Size returns the byte size of one element, or 0 when the type has no fixed
// size (Undefined, String).
func (t ElementType) Size() int {
	switch t {
	case Uint8, Int8, Bool:
		return 1
	case Uint16, Int16, Float16, BFloat16:
		return 2
	case Float, Int32, Uint32:
		return 4
	case Int64, Double, Uint64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return 0
	}
}

// String returns a human-readable name for the element type.
func (t ElementType) String() string {
	switch t {
	case Float:
		return "float32"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	case Double:
		return "float64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	case BFloat16:
		return "bfloat16"
	default:
		return "undefined"
	}
}

// Characteristic tells the engine whether an operator input or output must
// be bound.
type Characteristic int

// Input/output characteristics.
const (
	Required Characteristic = iota
	Optional
	Variadic
)

// String returns the characteristic name.
func (c Characteristic) String() string {
	switch c {
	case Required:
		return "required"
	case Optional:
		return "optional"
	case Variadic:
		return "variadic"
	default:
		return "unknown"
	}
}

// MemType is the memory placement of a tensor.
type MemType int

// Memory placements.
const (
	MemTypeCPUInput  MemType = -2
	MemTypeCPUOutput MemType = -1
	MemTypeCPU       MemType = MemTypeCPUOutput
	MemTypeDefault   MemType = 0
)

// AllocatorType selects the allocation strategy of a memory info.
type AllocatorType int

// Allocator types.
const (
	InvalidAllocator AllocatorType = -1
	DeviceAllocator  AllocatorType = 0
	ArenaAllocator   AllocatorType = 1
)

// LoggingLevel is the verbosity of an environment.
type LoggingLevel int

// Logging levels, most verbose first.
const (
	LoggingLevelVerbose LoggingLevel = iota
	LoggingLevelInfo
	LoggingLevelWarning
	LoggingLevelError
	LoggingLevelFatal
)

// Opaque engine objects. The zero handle is the null handle.
type (
	Env                    uintptr
	SessionOptions         uintptr
	Session                uintptr
	RunOptions             uintptr
	MemoryInfo             uintptr
	Value                  uintptr
	TensorTypeAndShapeInfo uintptr
	CustomOpDomain         uintptr
	KernelInfo             uintptr
	KernelContext          uintptr
	Allocator              uintptr
)

// Kernel is the per-node state returned by CustomOp.CreateKernel and handed
// back to KernelCompute and KernelDestroy. The engine never inspects it.
type Kernel any
