package engine

import (
	"slices"

	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/ort"
)

// kernelContext exposes one node's tensors to a custom kernel for the
// duration of a single KernelCompute call.
type kernelContext struct {
	op      ort.CustomOp
	inputs  []*value
	outputs []*value
	handles *handleTable

	inputHandles  map[int]ort.Value
	outputHandles map[int]ort.Value
}

// close drops the value handles handed to the kernel. The values stay
// reachable through inputs and outputs.
func (kc *kernelContext) close() {
	for _, h := range kc.inputHandles {
		kc.handles.drop(uintptr(h))
	}
	for _, h := range kc.outputHandles {
		kc.handles.drop(uintptr(h))
	}
	kc.inputHandles, kc.outputHandles = nil, nil
}

// KernelContextGetInputCount returns the number of node inputs.
func (e *Engine) KernelContextGetInputCount(ctx ort.KernelContext) (int, error) {
	kc, err := lookup[*kernelContext](&e.handles, uintptr(ctx), "kernel context")
	if err != nil {
		return 0, err
	}
	return len(kc.inputs), nil
}

// KernelContextGetOutputCount returns the number of node outputs.
func (e *Engine) KernelContextGetOutputCount(ctx ort.KernelContext) (int, error) {
	kc, err := lookup[*kernelContext](&e.handles, uintptr(ctx), "kernel context")
	if err != nil {
		return 0, err
	}
	return len(kc.outputs), nil
}

// KernelContextGetInput returns input index. The handle is valid until the
// kernel returns.
func (e *Engine) KernelContextGetInput(ctx ort.KernelContext, index int) (ort.Value, error) {
	kc, err := lookup[*kernelContext](&e.handles, uintptr(ctx), "kernel context")
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(kc.inputs) || kc.inputs[index] == nil {
		return 0, ort.NewStatus(ort.InvalidArgument, "no input bound at index %d", index)
	}
	if h, ok := kc.inputHandles[index]; ok {
		return h, nil
	}
	if kc.inputHandles == nil {
		kc.inputHandles = make(map[int]ort.Value)
	}
	h := ort.Value(e.handles.put(kc.inputs[index]))
	kc.inputHandles[index] = h
	return h, nil
}

// KernelContextGetOutput allocates output index with the given shape, or
// returns the value allocated by an earlier call with the same shape.
func (e *Engine) KernelContextGetOutput(ctx ort.KernelContext, index int, shape []int64) (ort.Value, error) {
	kc, err := lookup[*kernelContext](&e.handles, uintptr(ctx), "kernel context")
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(kc.outputs) {
		return 0, ort.NewStatus(ort.InvalidArgument, "no output at index %d", index)
	}
	if existing := kc.outputs[index]; existing != nil {
		if !slices.Equal(existing.shape, shape) {
			return 0, ort.NewStatus(ort.InvalidArgument, "output %d already allocated with shape %v, requested %v", index, existing.shape, shape)
		}
		return kc.outputHandles[index], nil
	}

	elemType := kc.op.OutputType(declaredPosition(index, kc.op.OutputTypeCount()))
	v, err := newValue(elemType, shape)
	if err != nil {
		return 0, err
	}
	if kc.outputHandles == nil {
		kc.outputHandles = make(map[int]ort.Value)
	}
	h := ort.Value(e.handles.put(v))
	kc.outputs[index] = v
	kc.outputHandles[index] = h
	return h, nil
}

// kernelInfo exposes a node's attributes to CreateKernel.
type kernelInfo struct {
	node *onnx.NodeProto
}

func (e *Engine) attribute(info ort.KernelInfo, name string, want int32) (*onnx.AttributeProto, error) {
	ki, err := lookup[*kernelInfo](&e.handles, uintptr(info), "kernel info")
	if err != nil {
		return nil, err
	}
	attr := ki.node.Attribute(name)
	if attr == nil {
		return nil, ort.NewStatus(ort.Fail, "node %s has no attribute %q", ki.node.Name, name)
	}
	if attr.Type != want {
		return nil, ort.NewStatus(ort.InvalidArgument, "attribute %q of node %s has type %d, want %d", name, ki.node.Name, attr.Type, want)
	}
	return attr, nil
}

// KernelInfoGetAttributeInt64 returns an integer attribute of the node.
func (e *Engine) KernelInfoGetAttributeInt64(info ort.KernelInfo, name string) (int64, error) {
	attr, err := e.attribute(info, name, onnx.AttributeInt)
	if err != nil {
		return 0, err
	}
	return attr.I, nil
}

// KernelInfoGetAttributeFloat returns a float attribute of the node.
func (e *Engine) KernelInfoGetAttributeFloat(info ort.KernelInfo, name string) (float32, error) {
	attr, err := e.attribute(info, name, onnx.AttributeFloat)
	if err != nil {
		return 0, err
	}
	return attr.F, nil
}

// KernelInfoGetAttributeString returns a string attribute of the node.
func (e *Engine) KernelInfoGetAttributeString(info ort.KernelInfo, name string) (string, error) {
	attr, err := e.attribute(info, name, onnx.AttributeString)
	if err != nil {
		return "", err
	}
	return string(attr.S), nil
}
