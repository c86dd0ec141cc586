package engine

import (
	"math"
	"slices"
	"sort"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/internal/parallel"
	"github.com/born-ml/ortkit/ort"
)

// Context carries execution settings into standard operators.
type Context struct {
	Parallel parallel.Config
}

// OpHandler runs a standard operator node.
type OpHandler func(ctx *Context, node *onnx.NodeProto, inputs []*value) ([]*value, error)

// TypeRule infers output element types of a standard operator from its
// input element types.
type TypeRule func(inputs []ort.ElementType) []ort.ElementType

type builtin struct {
	handler OpHandler
	infer   TypeRule
}

// Registry maps standard operator types to handlers.
type Registry struct {
	builtins map[string]builtin
}

// NewRegistry creates a registry with all supported standard operators.
func NewRegistry() *Registry {
	r := &Registry{builtins: make(map[string]builtin)}
	r.register("Identity", handleIdentity, sameAsFirst)
	r.register("Add", handleAdd, sameAsFirst)
	r.register("Round", handleRound, sameAsFirst)
	return r
}

func (r *Registry) register(opType string, handler OpHandler, infer TypeRule) {
	r.builtins[opType] = builtin{handler: handler, infer: infer}
}

func (r *Registry) get(opType string) (builtin, bool) {
	b, ok := r.builtins[opType]
	return b, ok
}

// SupportedOps returns the supported standard operator types, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.builtins))
	for op := range r.builtins {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func sameAsFirst(inputs []ort.ElementType) []ort.ElementType {
	if len(inputs) == 0 {
		return []ort.ElementType{ort.Undefined}
	}
	return []ort.ElementType{inputs[0]}
}

func handleIdentity(_ *Context, _ *onnx.NodeProto, inputs []*value) ([]*value, error) {
	if len(inputs) != 1 {
		return nil, errors.Errorf("identity requires 1 input, got %d", len(inputs))
	}
	return []*value{inputs[0]}, nil
}

func handleAdd(ctx *Context, _ *onnx.NodeProto, inputs []*value) ([]*value, error) {
	if len(inputs) != 2 {
		return nil, errors.Errorf("add requires 2 inputs, got %d", len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if a.elemType != b.elemType {
		return nil, errors.Errorf("add: element types differ: %s and %s", a.elemType, b.elemType)
	}
	if !slices.Equal(a.shape, b.shape) {
		return nil, errors.Errorf("add: shapes differ: %v and %v", a.shape, b.shape)
	}
	out, err := newValue(a.elemType, a.shape)
	if err != nil {
		return nil, err
	}
	switch a.elemType {
	case ort.Float:
		addInto(ctx, view[float32](out), view[float32](a), view[float32](b))
	case ort.Double:
		addInto(ctx, view[float64](out), view[float64](a), view[float64](b))
	case ort.Int32:
		addInto(ctx, view[int32](out), view[int32](a), view[int32](b))
	case ort.Int64:
		addInto(ctx, view[int64](out), view[int64](a), view[int64](b))
	case ort.Float16:
		dst, x, y := view[float16.Float16](out), view[float16.Float16](a), view[float16.Float16](b)
		parallel.Range(len(dst), ctx.Parallel, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = float16.Fromfloat32(x[i].Float32() + y[i].Float32())
			}
		})
	default:
		return nil, errors.Errorf("add: unsupported element type %s", a.elemType)
	}
	return []*value{out}, nil
}

// handleRound rounds half to even, as the ONNX Round operator specifies.
func handleRound(ctx *Context, _ *onnx.NodeProto, inputs []*value) ([]*value, error) {
	if len(inputs) != 1 {
		return nil, errors.Errorf("round requires 1 input, got %d", len(inputs))
	}
	x := inputs[0]
	out, err := newValue(x.elemType, x.shape)
	if err != nil {
		return nil, err
	}
	switch x.elemType {
	case ort.Float:
		dst, src := view[float32](out), view[float32](x)
		parallel.Range(len(dst), ctx.Parallel, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = float32(math.RoundToEven(float64(src[i])))
			}
		})
	case ort.Double:
		dst, src := view[float64](out), view[float64](x)
		parallel.Range(len(dst), ctx.Parallel, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = math.RoundToEven(src[i])
			}
		})
	default:
		return nil, errors.Errorf("round: unsupported element type %s", x.elemType)
	}
	return []*value{out}, nil
}

func addInto[T float32 | float64 | int32 | int64](ctx *Context, dst, a, b []T) {
	parallel.Range(len(dst), ctx.Parallel, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = a[i] + b[i]
		}
	})
}

// view interprets v's storage as []T. The caller checks the element type.
func view[T any](v *value) []T {
	n := v.count()
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounded by the element count
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(v.data))), n)
}
