// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ort

// API is the function table exposed by the host inference engine.
//
// Every method that can fail returns an error; nil means success and a non-nil
// error is a *Status. Release methods accept the null handle.
type API interface {
	// Environment.
	CreateEnv(level LoggingLevel, logID string) (Env, error)
	ReleaseEnv(env Env)

	// Session options and custom operator domains.
	CreateSessionOptions() (SessionOptions, error)
	ReleaseSessionOptions(options SessionOptions)
	AddCustomOpDomain(options SessionOptions, domain CustomOpDomain) error
	CreateCustomOpDomain(name string) (CustomOpDomain, error)
	CustomOpDomainAdd(domain CustomOpDomain, op CustomOp) error
	ReleaseCustomOpDomain(domain CustomOpDomain)

	// Sessions.
	CreateSession(env Env, modelPath string, options SessionOptions) (Session, error)
	CreateSessionFromArray(env Env, model []byte, options SessionOptions) (Session, error)
	ReleaseSession(session Session)
	SessionGetInputCount(session Session) (int, error)
	SessionGetOutputCount(session Session) (int, error)
	SessionGetInputName(session Session, index int) (string, error)
	SessionGetOutputName(session Session, index int) (string, error)

	// Run executes the session. A zero entry in outputs is replaced by a new
	// value owned by the caller; a non-zero entry receives the result in place.
	Run(session Session, runOptions RunOptions, inputNames []string, inputs []Value, outputNames []string, outputs []Value) error

	// Memory and values.
	CreateCPUMemoryInfo(allocatorType AllocatorType, memType MemType) (MemoryInfo, error)
	ReleaseMemoryInfo(info MemoryInfo)
	CreateTensorWithDataAsValue(info MemoryInfo, data []byte, shape []int64, elementType ElementType) (Value, error)
	CreateTensorAsValue(allocator Allocator, shape []int64, elementType ElementType) (Value, error)
	ReleaseValue(value Value)

	// Kernel context, used from inside KernelCompute.
	KernelContextGetInputCount(ctx KernelContext) (int, error)
	KernelContextGetOutputCount(ctx KernelContext) (int, error)
	KernelContextGetInput(ctx KernelContext, index int) (Value, error)
	KernelContextGetOutput(ctx KernelContext, index int, shape []int64) (Value, error)

	// Kernel info, used from inside CreateKernel.
	KernelInfoGetAttributeInt64(info KernelInfo, name string) (int64, error)
	KernelInfoGetAttributeFloat(info KernelInfo, name string) (float32, error)
	KernelInfoGetAttributeString(info KernelInfo, name string) (string, error)

	// Tensor access.
	GetTensorMutableData(value Value) ([]byte, error)
	GetTensorTypeAndShape(value Value) (TensorTypeAndShapeInfo, error)
	ReleaseTensorTypeAndShapeInfo(info TensorTypeAndShapeInfo)
	GetTensorElementType(info TensorTypeAndShapeInfo) (ElementType, error)
	GetTensorShapeElementCount(info TensorTypeAndShapeInfo) (int, error)
	GetDimensionsCount(info TensorTypeAndShapeInfo) (int, error)
	// GetDimensions copies min(len(dims), rank) extents into dims.
	GetDimensions(info TensorTypeAndShapeInfo, dims []int64) error

	// Allocators.
	GetAllocatorWithDefaultOptions() (Allocator, error)
	AllocatorAlloc(allocator Allocator, size int) ([]byte, error)
	AllocatorFree(allocator Allocator, block []byte) error
}

// CustomOp is the abstract operator interface the engine queries while
// building a session and calls while running it.
type CustomOp interface {
	Version() uint32
	Name() string
	// ExecutionProviderType returns the provider the op must run on, or ""
	// to let the engine choose.
	ExecutionProviderType() string

	InputTypeCount() int
	InputType(index int) ElementType
	OutputTypeCount() int
	OutputType(index int) ElementType

	InputCharacteristic(index int) Characteristic
	OutputCharacteristic(index int) Characteristic
	InputMemoryType(index int) MemType

	VariadicInputMinArity() int
	VariadicInputHomogeneity() bool
	VariadicOutputMinArity() int
	VariadicOutputHomogeneity() bool

	CreateKernel(api API, info KernelInfo) (Kernel, error)
	KernelCompute(kernel Kernel, ctx KernelContext) error
	KernelDestroy(kernel Kernel)
}
