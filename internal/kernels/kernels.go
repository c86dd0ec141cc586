// Package kernels holds the numeric bodies of the demo's custom operators.
//
// Each kernel is a customop.ComputeFunc: it resolves its tensors through the
// operator, checks shapes, and writes the output in place.
package kernels

import (
	"math"
	"slices"

	"github.com/x448/float16"

	"github.com/born-ml/ortkit/customop"
	"github.com/born-ml/ortkit/ort"
)

// Add computes out = a + b element-wise for float32 tensors of equal shape.
func Add(op *customop.Op, _ ort.API, ctx ort.KernelContext) error {
	return binary(op, ctx, func(a, b float32) float32 { return a + b })
}

// AddFloat16 computes out = a + b element-wise for float16 tensors of equal
// shape. The sum is formed in float32 and rounded once.
func AddFloat16(op *customop.Op, _ ort.API, ctx ort.KernelContext) error {
	return binary(op, ctx, func(a, b float16.Float16) float16.Float16 {
		return float16.Fromfloat32(a.Float32() + b.Float32())
	})
}

// Round computes out = round(x) from float32 to int32, rounding half away
// from zero. Values outside the int32 range saturate.
func Round(op *customop.Op, _ ort.API, ctx ort.KernelContext) error {
	x, err := op.GetInput(ctx, 0)
	if err != nil {
		return err
	}
	defer op.Release(x)

	out, err := op.GetOutput(ctx, 0, x.Dims)
	if err != nil {
		return err
	}
	defer op.Release(out)

	src := customop.Data[float32](x)
	dst := customop.Data[int32](out)
	for i, v := range src {
		dst[i] = saturateInt32(math.Round(float64(v)))
	}
	return nil
}

func saturateInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

// binary applies f to two inputs of the same shape and element type.
func binary[T customop.Element](op *customop.Op, ctx ort.KernelContext, f func(a, b T) T) error {
	a, err := op.GetInput(ctx, 0)
	if err != nil {
		return err
	}
	defer op.Release(a)

	b, err := op.GetInput(ctx, 1)
	if err != nil {
		return err
	}
	defer op.Release(b)

	if !slices.Equal(a.Dims, b.Dims) {
		return ort.NewStatus(ort.InvalidArgument, "%s: input shapes %v and %v differ", op.Name(), a.Dims, b.Dims)
	}

	out, err := op.GetOutput(ctx, 0, a.Dims)
	if err != nil {
		return err
	}
	defer op.Release(out)

	x, y, z := customop.Data[T](a), customop.Data[T](b), customop.Data[T](out)
	for i := range z {
		z[i] = f(x[i], y[i])
	}
	return nil
}

// AddDescriptor declares a float32 add operator called name.
func AddDescriptor(name string) customop.Descriptor {
	return customop.Descriptor{
		Name:    name,
		Inputs:  customop.Uniform(2, ort.Float),
		Outputs: customop.Uniform(1, ort.Float),
		Compute: Add,
	}
}

// AddFloat16Descriptor declares a float16 add operator called name.
func AddFloat16Descriptor(name string) customop.Descriptor {
	return customop.Descriptor{
		Name:    name,
		Inputs:  customop.Uniform(2, ort.Float16),
		Outputs: customop.Uniform(1, ort.Float16),
		Compute: AddFloat16,
	}
}

// RoundDescriptor declares a float32 to int32 round operator called name.
func RoundDescriptor(name string) customop.Descriptor {
	return customop.Descriptor{
		Name:    name,
		Inputs:  customop.Types(ort.Float),
		Outputs: customop.Types(ort.Int32),
		Compute: Round,
	}
}
