package engine

import (
	"math"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/internal/parallel"
	"github.com/born-ml/ortkit/ort"
)

// testOp implements ort.CustomOp with configurable declarations.
type testOp struct {
	name       string
	provider   string
	inputs     []ort.ElementType
	outputs    []ort.ElementType
	inChars    []ort.Characteristic
	outChars   []ort.Characteristic
	inMem      ort.MemType
	minArity   int
	homogenous bool
	version    uint32

	compute   func(api ort.API, ctx ort.KernelContext) error
	api       ort.API
	created   int
	destroyed int
	attrs     map[string]any
}

func (o *testOp) Version() uint32 {
	if o.version != 0 {
		return o.version
	}
	return ort.APIVersion
}
func (o *testOp) Name() string                     { return o.name }
func (o *testOp) ExecutionProviderType() string    { return o.provider }
func (o *testOp) InputTypeCount() int              { return len(o.inputs) }
func (o *testOp) InputType(i int) ort.ElementType  { return o.inputs[i] }
func (o *testOp) OutputTypeCount() int             { return len(o.outputs) }
func (o *testOp) OutputType(i int) ort.ElementType { return o.outputs[i] }
func (o *testOp) InputMemoryType(int) ort.MemType  { return o.inMem }
func (o *testOp) VariadicInputMinArity() int       { return max(o.minArity, 1) }
func (o *testOp) VariadicInputHomogeneity() bool   { return o.homogenous }
func (o *testOp) VariadicOutputMinArity() int      { return 1 }
func (o *testOp) VariadicOutputHomogeneity() bool  { return true }

func (o *testOp) InputCharacteristic(i int) ort.Characteristic {
	if i < len(o.inChars) {
		return o.inChars[i]
	}
	return ort.Required
}

func (o *testOp) OutputCharacteristic(i int) ort.Characteristic {
	if i < len(o.outChars) {
		return o.outChars[i]
	}
	return ort.Required
}

func (o *testOp) CreateKernel(api ort.API, info ort.KernelInfo) (ort.Kernel, error) {
	o.created++
	o.api = api
	for name, want := range o.attrs {
		var got any
		var err error
		switch want.(type) {
		case int64:
			got, err = api.KernelInfoGetAttributeInt64(info, name)
		case float32:
			got, err = api.KernelInfoGetAttributeFloat(info, name)
		case string:
			got, err = api.KernelInfoGetAttributeString(info, name)
		}
		if err != nil {
			return nil, err
		}
		o.attrs[name] = got
	}
	return o, nil
}

func (o *testOp) KernelCompute(_ ort.Kernel, ctx ort.KernelContext) error {
	if o.compute == nil {
		return nil
	}
	return o.compute(o.api, ctx)
}

func (o *testOp) KernelDestroy(ort.Kernel) { o.destroyed++ }

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := New(opts)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func floatBytes(values ...float32) []byte {
	b := alignedBytes(len(values) * 4)
	//nolint:gosec // test helper
	copy(unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), len(values)), values)
	return b
}

func floatsOf(t *testing.T, e *Engine, v ort.Value) []float32 {
	t.Helper()
	data := must.M1(e.GetTensorMutableData(v))
	//nolint:gosec // test helper
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/4)
}

func cpuTensor(t *testing.T, e *Engine, shape []int64, values ...float32) ort.Value {
	t.Helper()
	info := must.M1(e.CreateCPUMemoryInfo(ort.ArenaAllocator, ort.MemTypeDefault))
	defer e.ReleaseMemoryInfo(info)
	v, err := e.CreateTensorWithDataAsValue(info, floatBytes(values...), shape, ort.Float)
	require.NoError(t, err)
	return v
}

func builtinModel() *onnx.ModelProto {
	return onnx.NewModel("engine_test", &onnx.GraphProto{
		Name: "add_round",
		Nodes: []onnx.NodeProto{
			// Listed out of order to exercise sorting.
			onnx.Node("round", "", "Round", []string{"sum"}, []string{"y"}),
			onnx.Node("add", "", "Add", []string{"x", "bias"}, []string{"sum"}),
		},
		Initializers: []onnx.TensorProto{
			{Name: "bias", DataType: int32(ort.Float), Dims: []int64{2, 2}, FloatData: []float32{0.5, 0.5, 0.5, 0.5}},
		},
		Inputs:  []onnx.ValueInfoProto{onnx.TensorValue("x", int32(ort.Float), 2, 2)},
		Outputs: []onnx.ValueInfoProto{onnx.TensorValue("y", int32(ort.Float), 2, 2)},
	})
}

func TestRunBuiltinModel(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)

	sess, err := e.CreateSessionFromArray(env, onnx.Marshal(builtinModel()), opts)
	require.NoError(t, err)
	defer e.ReleaseSession(sess)

	assert.Equal(t, 1, must.M1(e.SessionGetInputCount(sess)))
	assert.Equal(t, 1, must.M1(e.SessionGetOutputCount(sess)))
	assert.Equal(t, "x", must.M1(e.SessionGetInputName(sess, 0)))
	assert.Equal(t, "y", must.M1(e.SessionGetOutputName(sess, 0)))
	_, err = e.SessionGetInputName(sess, 1)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

	x := cpuTensor(t, e, []int64{2, 2}, 1, 2, 3, -1)
	defer e.ReleaseValue(x)
	outputs := []ort.Value{0}
	require.NoError(t, e.Run(sess, 0, []string{"x"}, []ort.Value{x}, []string{"y"}, outputs))
	require.NotZero(t, outputs[0])
	defer e.ReleaseValue(outputs[0])

	// Round is half to even: 1.5 -> 2, 2.5 -> 2, 3.5 -> 4, -0.5 -> -0.
	assert.Equal(t, []float32{2, 2, 4, float32(math.Copysign(0, -1))}, floatsOf(t, e, outputs[0]))
}

func TestRunIntoSuppliedOutput(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)
	sess := must.M1(e.CreateSessionFromArray(env, onnx.Marshal(builtinModel()), opts))
	defer e.ReleaseSession(sess)

	x := cpuTensor(t, e, []int64{2, 2}, 0, 0, 0, 0)
	defer e.ReleaseValue(x)
	y := must.M1(e.CreateTensorAsValue(0, []int64{2, 2}, ort.Float))
	defer e.ReleaseValue(y)

	require.NoError(t, e.Run(sess, 0, []string{"x"}, []ort.Value{x}, []string{"y"}, []ort.Value{y}))
	assert.Equal(t, []float32{0, 0, 0, 0}, floatsOf(t, e, y))

	wrong := must.M1(e.CreateTensorAsValue(0, []int64{3}, ort.Float))
	defer e.ReleaseValue(wrong)
	err := e.Run(sess, 0, []string{"x"}, []ort.Value{x}, []string{"y"}, []ort.Value{wrong})
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
}

func TestRunValidatesInputs(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)
	sess := must.M1(e.CreateSessionFromArray(env, onnx.Marshal(builtinModel()), opts))
	defer e.ReleaseSession(sess)

	wrongShape := cpuTensor(t, e, []int64{4}, 1, 2, 3, 4)
	defer e.ReleaseValue(wrongShape)

	tests := []struct {
		name    string
		names   []string
		inputs  []ort.Value
		outputs []string
	}{
		{"unknown input", []string{"z"}, []ort.Value{wrongShape}, []string{"y"}},
		{"missing input", nil, nil, []string{"y"}},
		{"wrong shape", []string{"x"}, []ort.Value{wrongShape}, []string{"y"}},
		{"name count mismatch", []string{"x"}, nil, []string{"y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Run(sess, 0, tt.names, tt.inputs, tt.outputs, make([]ort.Value, len(tt.outputs)))
			require.Error(t, err)
			assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
		})
	}
}

func TestCreateSessionErrors(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)

	_, err := e.CreateSession(env, filepath.Join(t.TempDir(), "missing.onnx"), opts)
	assert.Equal(t, ort.NoSuchFile, ort.CodeOf(err))

	_, err = e.CreateSessionFromArray(env, []byte{0xff, 0xff}, opts)
	assert.Equal(t, ort.InvalidProtobuf, ort.CodeOf(err))

	m := builtinModel()
	m.Graph.Nodes[0].OpType = "Softmax"
	_, err = e.CreateSessionFromArray(env, onnx.Marshal(m), opts)
	assert.Equal(t, ort.NotImplemented, ort.CodeOf(err))

	m = customModel("CustomOp", 1, 1)
	_, err = e.CreateSessionFromArray(env, onnx.Marshal(m), opts)
	assert.Equal(t, ort.InvalidGraph, ort.CodeOf(err), "domain not added to session options")

	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, onnx.WriteFile(path, builtinModel()))
	sess, err := e.CreateSession(env, path, opts)
	require.NoError(t, err)
	e.ReleaseSession(sess)
}

func TestAllocatorLimits(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	a := e.CreateAllocator(AllocatorConfig{Name: "bounded", MaxLiveBlocks: 2, LimitBytes: 64})
	defer e.ReleaseAllocator(a)

	b1 := must.M1(e.AllocatorAlloc(a, 16))
	b2 := must.M1(e.AllocatorAlloc(a, 16))
	assert.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(b1)))%8, "blocks are 8-byte aligned")

	_, err := e.AllocatorAlloc(a, 8)
	assert.Equal(t, ort.Fail, ort.CodeOf(err), "block limit")

	require.NoError(t, e.AllocatorFree(a, b2))
	_, err = e.AllocatorAlloc(a, 64)
	assert.Equal(t, ort.Fail, ort.CodeOf(err), "byte limit")

	err = e.AllocatorFree(a, b2)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err), "double free")

	require.NoError(t, e.AllocatorFree(a, b1))
	stats := must.M1(e.AllocatorStats(a))
	assert.Equal(t, AllocatorStats{PeakBytes: 32, Allocs: 2, Frees: 2}, stats)
	assert.Contains(t, stats.String(), "0 live blocks")

	_, err = e.AllocatorAlloc(a, -1)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
	empty := must.M1(e.AllocatorAlloc(a, 0))
	assert.Empty(t, empty)
	assert.NoError(t, e.AllocatorFree(a, empty))
}

func TestInvalidHandles(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	_, err := e.AllocatorAlloc(0, 8)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	_, err = e.AllocatorAlloc(ort.Allocator(env), 8)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err), "env handle used as allocator")

	// Releasing null or foreign handles is a no-op.
	e.ReleaseValue(0)
	e.ReleaseSession(ort.Session(env))
	assert.Equal(t, 1, e.LiveHandles())
}

func TestCustomOpDomain(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	_, err := e.CreateCustomOpDomain("")
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

	domain := must.M1(e.CreateCustomOpDomain("test.customop"))
	defer e.ReleaseCustomOpDomain(domain)
	for _, name := range []string{"B", "A", "C"} {
		require.NoError(t, e.CustomOpDomainAdd(domain, &testOp{name: name}))
	}
	assert.Equal(t, []string{"B", "A", "C"}, must.M1(e.CustomOpDomainOps(domain)))

	err = e.CustomOpDomainAdd(domain, &testOp{name: "A"})
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err), "duplicate")
	err = e.CustomOpDomainAdd(domain, &testOp{name: "D", version: ort.APIVersion + 1})
	assert.Equal(t, ort.NotImplemented, ort.CodeOf(err), "newer API version")

	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)
	require.NoError(t, e.AddCustomOpDomain(opts, domain))
	assert.Error(t, e.AddCustomOpDomain(opts, domain))
}

// customModel is a single custom node with nIn float inputs and nOut outputs.
func customModel(opType string, nIn, nOut int) *onnx.ModelProto {
	graph := &onnx.GraphProto{Name: "custom"}
	var ins, outs []string
	for i := range nIn {
		name := string(rune('a' + i))
		ins = append(ins, name)
		graph.Inputs = append(graph.Inputs, onnx.TensorValue(name, int32(ort.Float), 3))
	}
	for i := range nOut {
		name := string(rune('x' + i))
		outs = append(outs, name)
		graph.Outputs = append(graph.Outputs, onnx.TensorValue(name, int32(ort.Float), 3))
	}
	graph.Nodes = []onnx.NodeProto{onnx.Node("node", "test.customop", opType, ins, outs)}
	return onnx.NewModel("engine_test", graph)
}

// sessionWith builds a session over model with op registered.
func sessionWith(t *testing.T, e *Engine, model *onnx.ModelProto, op ort.CustomOp) (ort.Session, error) {
	t.Helper()
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	t.Cleanup(func() { e.ReleaseEnv(env) })
	opts := must.M1(e.CreateSessionOptions())
	t.Cleanup(func() { e.ReleaseSessionOptions(opts) })
	domain := must.M1(e.CreateCustomOpDomain("test.customop"))
	t.Cleanup(func() { e.ReleaseCustomOpDomain(domain) })
	require.NoError(t, e.CustomOpDomainAdd(domain, op))
	require.NoError(t, e.AddCustomOpDomain(opts, domain))
	return e.CreateSessionFromArray(env, onnx.Marshal(model), opts)
}

func oneFloat() []ort.ElementType { return []ort.ElementType{ort.Float} }

func TestCustomOpArity(t *testing.T) {
	tests := []struct {
		name    string
		op      *testOp
		nIn     int
		wantErr ort.ErrorCode
	}{
		{
			name: "exact",
			op:   &testOp{inputs: []ort.ElementType{ort.Float, ort.Float}, outputs: oneFloat()},
			nIn:  2,
		},
		{
			name:    "missing required",
			op:      &testOp{inputs: []ort.ElementType{ort.Float, ort.Float}, outputs: oneFloat()},
			nIn:     1,
			wantErr: ort.InvalidGraph,
		},
		{
			name:    "too many",
			op:      &testOp{inputs: oneFloat(), outputs: oneFloat()},
			nIn:     2,
			wantErr: ort.InvalidGraph,
		},
		{
			name: "optional omitted",
			op: &testOp{
				inputs:  []ort.ElementType{ort.Float, ort.Float},
				inChars: []ort.Characteristic{ort.Required, ort.Optional},
				outputs: oneFloat(),
			},
			nIn: 1,
		},
		{
			name: "variadic",
			op: &testOp{
				inputs: oneFloat(), inChars: []ort.Characteristic{ort.Variadic},
				minArity: 2, homogenous: true, outputs: oneFloat(),
			},
			nIn: 3,
		},
		{
			name: "variadic below min arity",
			op: &testOp{
				inputs: oneFloat(), inChars: []ort.Characteristic{ort.Variadic},
				minArity: 2, outputs: oneFloat(),
			},
			nIn:     1,
			wantErr: ort.InvalidGraph,
		},
		{
			name:    "type mismatch",
			op:      &testOp{inputs: []ort.ElementType{ort.Int32}, outputs: oneFloat()},
			nIn:     1,
			wantErr: ort.InvalidGraph,
		},
		{
			name:    "unsupported provider",
			op:      &testOp{provider: "CUDAExecutionProvider", inputs: oneFloat(), outputs: oneFloat()},
			nIn:     1,
			wantErr: ort.EPFail,
		},
		{
			name:    "unsupported memory type",
			op:      &testOp{inputs: oneFloat(), inMem: ort.MemTypeCPUOutput, outputs: oneFloat()},
			nIn:     1,
			wantErr: ort.NotImplemented,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, DefaultOptions())
			tt.op.name = "CustomOp"
			sess, err := sessionWith(t, e, customModel("CustomOp", tt.nIn, 1), tt.op)
			if tt.wantErr != ort.OK {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, ort.CodeOf(err), err.Error())
				assert.Equal(t, tt.op.created, tt.op.destroyed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, tt.op.created)
			e.ReleaseSession(sess)
			assert.Equal(t, 1, tt.op.destroyed)
		})
	}
}

func TestKernelContext(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	op := &testOp{name: "Double", inputs: oneFloat(), outputs: oneFloat()}
	op.compute = func(api ort.API, ctx ort.KernelContext) error {
		assert.Equal(t, 1, must.M1(api.KernelContextGetInputCount(ctx)))
		assert.Equal(t, 1, must.M1(api.KernelContextGetOutputCount(ctx)))
		_, err := api.KernelContextGetInput(ctx, 1)
		assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

		in := must.M1(api.KernelContextGetInput(ctx, 0))
		assert.Equal(t, in, must.M1(api.KernelContextGetInput(ctx, 0)), "same handle on repeat")
		out := must.M1(api.KernelContextGetOutput(ctx, 0, []int64{3}))
		assert.Equal(t, out, must.M1(api.KernelContextGetOutput(ctx, 0, []int64{3})), "same handle on repeat")
		_, err = api.KernelContextGetOutput(ctx, 0, []int64{4})
		assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err), "different shape")

		src := floatsOf(t, e, in)
		dst := floatsOf(t, e, out)
		for i := range src {
			dst[i] = 2 * src[i]
		}
		return nil
	}
	sess, err := sessionWith(t, e, customModel("Double", 1, 1), op)
	require.NoError(t, err)
	defer e.ReleaseSession(sess)

	a := cpuTensor(t, e, []int64{3}, 1, 2, 3)
	defer e.ReleaseValue(a)
	before := e.LiveHandles()
	outputs := []ort.Value{0}
	require.NoError(t, e.Run(sess, 0, []string{"a"}, []ort.Value{a}, []string{"x"}, outputs))
	defer e.ReleaseValue(outputs[0])
	assert.Equal(t, []float32{2, 4, 6}, floatsOf(t, e, outputs[0]))
	assert.Equal(t, before+1, e.LiveHandles(), "context handles are dropped after compute")
}

func TestKernelComputeErrors(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	op := &testOp{name: "Broken", inputs: oneFloat(), outputs: oneFloat()}
	sess, err := sessionWith(t, e, customModel("Broken", 1, 1), op)
	require.NoError(t, err)
	defer e.ReleaseSession(sess)
	a := cpuTensor(t, e, []int64{3}, 1, 2, 3)
	defer e.ReleaseValue(a)

	// Output never requested.
	err = e.Run(sess, 0, []string{"a"}, []ort.Value{a}, []string{"x"}, []ort.Value{0})
	assert.Equal(t, ort.RuntimeException, ort.CodeOf(err))

	op.compute = func(ort.API, ort.KernelContext) error {
		return ort.NewStatus(ort.InvalidArgument, "bad shape")
	}
	err = e.Run(sess, 0, []string{"a"}, []ort.Value{a}, []string{"x"}, []ort.Value{0})
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
	assert.Contains(t, err.Error(), "bad shape")
}

func TestKernelInfoAttributes(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	model := customModel("Attr", 1, 1)
	model.Graph.Nodes[0].Attributes = []onnx.AttributeProto{
		{Name: "n", Type: onnx.AttributeInt, I: 7},
		{Name: "scale", Type: onnx.AttributeFloat, F: 0.5},
		{Name: "mode", Type: onnx.AttributeString, S: []byte("half_up")},
	}
	op := &testOp{
		name: "Attr", inputs: oneFloat(), outputs: oneFloat(),
		attrs: map[string]any{"n": int64(0), "scale": float32(0), "mode": ""},
	}
	_, err := sessionWith(t, e, model, op)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(7), "scale": float32(0.5), "mode": "half_up"}, op.attrs)

	e2 := newTestEngine(t, DefaultOptions())
	op2 := &testOp{name: "Attr", inputs: oneFloat(), outputs: oneFloat(), attrs: map[string]any{"n": "wrong type"}}
	_, err = sessionWith(t, e2, model, op2)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

	e3 := newTestEngine(t, DefaultOptions())
	op3 := &testOp{name: "Attr", inputs: oneFloat(), outputs: oneFloat(), attrs: map[string]any{"missing": int64(0)}}
	_, err = sessionWith(t, e3, model, op3)
	assert.Equal(t, ort.Fail, ort.CodeOf(err))
}

func TestTensorTypeAndShape(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	v := must.M1(e.CreateTensorAsValue(0, []int64{2, 3, 4}, ort.Int64))
	defer e.ReleaseValue(v)

	info := must.M1(e.GetTensorTypeAndShape(v))
	defer e.ReleaseTensorTypeAndShapeInfo(info)
	assert.Equal(t, ort.Int64, must.M1(e.GetTensorElementType(info)))
	assert.Equal(t, 24, must.M1(e.GetTensorShapeElementCount(info)))
	assert.Equal(t, 3, must.M1(e.GetDimensionsCount(info)))
	dims := make([]int64, 2)
	require.NoError(t, e.GetDimensions(info, dims))
	assert.Equal(t, []int64{2, 3}, dims)
	assert.Len(t, must.M1(e.GetTensorMutableData(v)), 24*8)

	_, err := e.CreateTensorAsValue(0, []int64{2, -1}, ort.Float)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
	_, err = e.CreateTensorAsValue(0, []int64{2}, ort.String)
	assert.Equal(t, ort.NotImplemented, ort.CodeOf(err))
}

func TestHandleLeaks(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	start := e.LiveHandles()

	env := must.M1(e.CreateEnv(ort.LoggingLevelVerbose, "leak"))
	opts := must.M1(e.CreateSessionOptions())
	sess := must.M1(e.CreateSessionFromArray(env, onnx.Marshal(builtinModel()), opts))
	x := cpuTensor(t, e, []int64{2, 2}, 1, 2, 3, 4)
	outputs := []ort.Value{0}
	require.NoError(t, e.Run(sess, 0, []string{"x"}, []ort.Value{x}, []string{"y"}, outputs))

	e.ReleaseValue(outputs[0])
	e.ReleaseValue(x)
	e.ReleaseSession(sess)
	e.ReleaseSessionOptions(opts)
	e.ReleaseEnv(env)
	assert.Equal(t, start, e.LiveHandles())
	assert.Equal(t, AllocatorStats{}, must.M1(e.AllocatorStats(must.M1(e.GetAllocatorWithDefaultOptions()))))
}

func TestRegistrySupportedOps(t *testing.T) {
	assert.Equal(t, []string{"Add", "Identity", "Round"}, NewRegistry().SupportedOps())
}

func TestCloseReportsLeaks(t *testing.T) {
	e := New(DefaultOptions())
	require.NoError(t, e.Close())

	e = New(DefaultOptions())
	_ = must.M1(e.CreateEnv(ort.LoggingLevelWarning, "leak"))
	_ = must.M1(e.AllocatorAlloc(must.M1(e.GetAllocatorWithDefaultOptions()), 16))
	err := e.Close()
	require.ErrorIs(t, err, ErrLeakedHandles)
	assert.Contains(t, err.Error(), "2 leaks")
}

func TestBuiltinAddParallel(t *testing.T) {
	ctx := &Context{Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}}
	a := must.M1(newValue(ort.Float, []int64{1000}))
	b := must.M1(newValue(ort.Float, []int64{1000}))
	for i := range view[float32](a) {
		view[float32](a)[i] = float32(i)
		view[float32](b)[i] = 0.5
	}
	out, err := handleAdd(ctx, nil, []*value{a, b})
	require.NoError(t, err)
	for i, v := range view[float32](out[0]) {
		require.Equal(t, float32(i)+0.5, v, "index %d", i)
	}

	h := must.M1(newValue(ort.Float16, []int64{2}))
	view[float16.Float16](h)[0] = float16.Fromfloat32(1.5)
	view[float16.Float16](h)[1] = float16.Fromfloat32(-4)
	out, err = handleAdd(ctx, nil, []*value{h, h})
	require.NoError(t, err)
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(3), float16.Fromfloat32(-8)}, view[float16.Float16](out[0]))

	_, err = handleAdd(ctx, nil, []*value{a, h})
	assert.Error(t, err)
}

func TestShapeOverflow(t *testing.T) {
	for _, dims := range [][]int64{
		{1 << 62, 3},
		{1 << 31, 1 << 31, 1 << 31},
		{math.MaxInt64},
		{1 << 40},
	} {
		_, err := valueFromProto(&onnx.TensorProto{DataType: int32(ort.Float), Dims: dims})
		assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err), "dims %v", dims)
	}

	// A zero extent makes any other extent harmless.
	v, err := valueFromProto(&onnx.TensorProto{DataType: int32(ort.Float), Dims: []int64{0, math.MaxInt64}})
	require.NoError(t, err)
	assert.Equal(t, 0, v.count())

	e := newTestEngine(t, DefaultOptions())
	_, err = e.CreateTensorAsValue(0, []int64{1 << 62, 3}, ort.Float)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))
	assert.Equal(t, 0, must.M1(e.AllocatorStats(e.defaultAllocator)).Allocs)

	info := must.M1(e.CreateCPUMemoryInfo(ort.ArenaAllocator, ort.MemTypeDefault))
	defer e.ReleaseMemoryInfo(info)
	_, err = e.CreateTensorWithDataAsValue(info, nil, []int64{1 << 62, 4}, ort.Int32)
	assert.Equal(t, ort.InvalidArgument, ort.CodeOf(err))

	model := builtinModel()
	model.Graph.Initializers[0].Dims = []int64{1 << 62, 3}
	env := must.M1(e.CreateEnv(ort.LoggingLevelWarning, "test"))
	defer e.ReleaseEnv(env)
	opts := must.M1(e.CreateSessionOptions())
	defer e.ReleaseSessionOptions(opts)
	_, err = e.CreateSessionFromArray(env, onnx.Marshal(model), opts)
	assert.Equal(t, ort.InvalidGraph, ort.CodeOf(err))
}
