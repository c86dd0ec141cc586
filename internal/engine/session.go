package engine

import (
	"fmt"
	"io/fs"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/ort"
)

// session is a compiled model ready to run.
type session struct {
	id  uuid.UUID
	env *env

	initializers map[string]*value
	inputs       []onnx.ValueInfoProto // graph inputs minus initializers
	outputs      []onnx.ValueInfoProto
	nodes        []*node // topological order
}

// node is one graph node bound to its implementation.
type node struct {
	proto *onnx.NodeProto

	builtin builtin      // standard domain
	op      ort.CustomOp // custom domain
	kernel  ort.Kernel   // from op.CreateKernel
	outputs []ort.ElementType
}

func (n *node) String() string {
	if n.proto.Domain != "" {
		return fmt.Sprintf("%s (%s.%s)", n.proto.Name, n.proto.Domain, n.proto.OpType)
	}
	return fmt.Sprintf("%s (%s)", n.proto.Name, n.proto.OpType)
}

// CreateSession loads the model at modelPath.
func (e *Engine) CreateSession(en ort.Env, modelPath string, options ort.SessionOptions) (ort.Session, error) {
	model, err := onnx.ParseFile(modelPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ort.NewStatus(ort.NoSuchFile, "load model from %s failed: %v", modelPath, err)
		}
		return 0, ort.NewStatus(ort.InvalidProtobuf, "load model from %s failed: %v", modelPath, err)
	}
	return e.createSession(en, model, options)
}

// CreateSessionFromArray loads a serialized model.
func (e *Engine) CreateSessionFromArray(en ort.Env, data []byte, options ort.SessionOptions) (ort.Session, error) {
	model, err := onnx.Parse(data)
	if err != nil {
		return 0, ort.NewStatus(ort.InvalidProtobuf, "load model failed: %v", err)
	}
	return e.createSession(en, model, options)
}

func (e *Engine) createSession(en ort.Env, model *onnx.ModelProto, options ort.SessionOptions) (ort.Session, error) {
	environment, err := lookup[*env](&e.handles, uintptr(en), "env")
	if err != nil {
		return 0, err
	}
	opts, err := lookup[*sessionOptions](&e.handles, uintptr(options), "session options")
	if err != nil {
		return 0, err
	}

	s, err := e.compile(environment, model, opts)
	if err != nil {
		return 0, err
	}
	environment.logf("session %s: %d nodes, inputs %v, outputs %v", s.id, len(s.nodes), valueNames(s.inputs), valueNames(s.outputs))
	return ort.Session(e.handles.put(s)), nil
}

// compile resolves every node and creates custom kernels. On failure the
// kernels already created are destroyed.
func (e *Engine) compile(environment *env, model *onnx.ModelProto, opts *sessionOptions) (*session, error) {
	graph := model.Graph
	if graph == nil {
		return nil, ort.NewStatus(ort.InvalidGraph, "model has no graph")
	}

	s := &session{
		id:           uuid.New(),
		env:          environment,
		initializers: make(map[string]*value),
		outputs:      graph.Outputs,
	}

	// Element types known so far, by value name.
	types := make(map[string]ort.ElementType)

	for i := range graph.Initializers {
		tp := &graph.Initializers[i]
		v, err := valueFromProto(tp)
		if err != nil {
			return nil, ort.NewStatus(ort.InvalidGraph, "initializer %s: %v", tp.Name, err)
		}
		s.initializers[tp.Name] = v
		types[tp.Name] = v.elemType
	}
	for _, input := range graph.Inputs {
		if _, ok := s.initializers[input.Name]; ok {
			continue
		}
		s.inputs = append(s.inputs, input)
		types[input.Name] = declaredType(&input)
	}

	sorted := topologicalSort(graph.Nodes)
	for i := range sorted {
		n, err := e.bindNode(&sorted[i], opts, types)
		if err != nil {
			s.destroyKernels()
			return nil, err
		}
		s.nodes = append(s.nodes, n)
		for j, name := range n.proto.Outputs {
			if name != "" && j < len(n.outputs) {
				types[name] = n.outputs[j]
			}
		}
	}

	for _, output := range graph.Outputs {
		if _, ok := types[output.Name]; !ok {
			s.destroyKernels()
			return nil, ort.NewStatus(ort.InvalidGraph, "graph output %s is not produced by any node", output.Name)
		}
	}
	return s, nil
}

// bindNode finds the implementation of proto and checks it against the
// element types of its inputs.
func (e *Engine) bindNode(proto *onnx.NodeProto, opts *sessionOptions, types map[string]ort.ElementType) (*node, error) {
	n := &node{proto: proto}
	inputTypes := make([]ort.ElementType, len(proto.Inputs))
	for i, name := range proto.Inputs {
		if name == "" {
			continue
		}
		t, ok := types[name]
		if !ok {
			return nil, ort.NewStatus(ort.InvalidGraph, "node %s: input %s is not defined", n, name)
		}
		inputTypes[i] = t
	}

	if onnx.IsStandardDomain(proto.Domain) {
		b, ok := e.builtins.get(proto.OpType)
		if !ok {
			return nil, ort.NewStatus(ort.NotImplemented, "node %s: unsupported operator %s", n, proto.OpType)
		}
		n.builtin = b
		n.outputs = b.infer(inputTypes)
		return n, nil
	}

	var domain *customOpDomain
	for _, d := range opts.domains {
		if d.name == proto.Domain {
			domain = d
			break
		}
	}
	if domain == nil {
		return nil, ort.NewStatus(ort.InvalidGraph, "node %s: custom op domain %q is not registered", n, proto.Domain)
	}
	op, ok := domain.find(proto.OpType)
	if !ok {
		return nil, ort.NewStatus(ort.InvalidGraph, "node %s: no custom op %s in domain %q", n, proto.OpType, proto.Domain)
	}
	n.op = op

	if provider := op.ExecutionProviderType(); !e.providerSupported(provider) {
		return nil, ort.NewStatus(ort.EPFail, "node %s: execution provider %q is not available", n, provider)
	}
	if err := checkArity(n, "input", present(proto.Inputs), op.InputTypeCount(), op.InputCharacteristic, op.VariadicInputMinArity()); err != nil {
		return nil, err
	}
	if err := checkArity(n, "output", present(proto.Outputs), op.OutputTypeCount(), op.OutputCharacteristic, op.VariadicOutputMinArity()); err != nil {
		return nil, err
	}

	for i := range proto.Inputs {
		if proto.Inputs[i] == "" {
			continue
		}
		pos := declaredPosition(i, op.InputTypeCount())
		switch mem := op.InputMemoryType(pos); mem {
		case ort.MemTypeDefault, ort.MemTypeCPUInput:
		default:
			return nil, ort.NewStatus(ort.NotImplemented, "node %s: input %d: memory type %d is not supported", n, i, mem)
		}
		want := op.InputType(pos)
		if e.opts.StrictTypes && !typeMatches(want, inputTypes[i]) {
			return nil, ort.NewStatus(ort.InvalidGraph, "node %s: input %d has type %s, %s expects %s", n, i, inputTypes[i], proto.OpType, want)
		}
	}
	if e.opts.StrictTypes && op.InputTypeCount() > 0 && op.InputCharacteristic(op.InputTypeCount()-1) == ort.Variadic && op.VariadicInputHomogeneity() {
		if err := checkHomogeneous(n, "input", inputTypes, op.InputTypeCount()-1); err != nil {
			return nil, err
		}
	}

	n.outputs = make([]ort.ElementType, len(proto.Outputs))
	for i := range proto.Outputs {
		n.outputs[i] = op.OutputType(declaredPosition(i, op.OutputTypeCount()))
	}

	info := ort.KernelInfo(e.handles.put(&kernelInfo{node: proto}))
	kernel, err := op.CreateKernel(e, info)
	e.handles.drop(uintptr(info))
	if err != nil {
		return nil, ort.NewStatus(ort.CodeOf(err), "node %s: creating kernel: %v", n, err)
	}
	n.kernel = kernel
	return n, nil
}

// present returns the number of positions up to the last bound name.
func present(names []string) int {
	n := len(names)
	for n > 0 && names[n-1] == "" {
		n--
	}
	return n
}

// declaredPosition maps an actual argument index onto the declared position;
// arguments past the last declared position belong to the variadic one.
func declaredPosition(index, declared int) int {
	if declared > 0 && index >= declared {
		return declared - 1
	}
	return index
}

// checkArity validates the number of bound arguments against the operator's
// declaration and characteristics.
func checkArity(n *node, kind string, actual, declared int, characteristic func(int) ort.Characteristic, minArity int) error {
	for i := 0; i < declared; i++ {
		switch characteristic(i) {
		case ort.Required:
			if i >= actual || (kind == "input" && n.proto.Inputs[i] == "") || (kind == "output" && n.proto.Outputs[i] == "") {
				return ort.NewStatus(ort.InvalidGraph, "node %s: required %s %d is missing", n, kind, i)
			}
		case ort.Optional:
		case ort.Variadic:
			if i != declared-1 {
				return ort.NewStatus(ort.InvalidGraph, "node %s: only the last %s may be variadic, %d is", n, kind, i)
			}
			if got := actual - i; got < minArity {
				return ort.NewStatus(ort.InvalidGraph, "node %s: variadic %s needs at least %d arguments, got %d", n, kind, minArity, got)
			}
			return nil
		}
	}
	if actual > declared {
		return ort.NewStatus(ort.InvalidGraph, "node %s: %d %ss bound, operator declares %d", n, actual, kind, declared)
	}
	return nil
}

func checkHomogeneous(n *node, kind string, types []ort.ElementType, from int) error {
	if from >= len(types) {
		return nil
	}
	first := types[from]
	for i := from + 1; i < len(types); i++ {
		if types[i] != ort.Undefined && first != ort.Undefined && types[i] != first {
			return ort.NewStatus(ort.InvalidGraph, "node %s: variadic %ss must share one type, got %s and %s", n, kind, first, types[i])
		}
	}
	return nil
}

// typeMatches treats Undefined on either side as a wildcard.
func typeMatches(want, got ort.ElementType) bool {
	return want == ort.Undefined || got == ort.Undefined || want == got
}

func declaredType(info *onnx.ValueInfoProto) ort.ElementType {
	if info.Type == nil || info.Type.TensorType == nil {
		return ort.Undefined
	}
	return ort.ElementType(info.Type.TensorType.ElemType)
}

func valueNames(infos []onnx.ValueInfoProto) []string {
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name
	}
	return names
}

func (s *session) destroyKernels() {
	for _, n := range s.nodes {
		if n.op != nil {
			n.op.KernelDestroy(n.kernel)
			n.kernel = nil
		}
	}
}

// ReleaseSession destroys the session's kernels.
func (e *Engine) ReleaseSession(sess ort.Session) {
	s, ok := release[*session](&e.handles, uintptr(sess))
	if !ok {
		return
	}
	s.destroyKernels()
	s.env.logf("session %s released", s.id)
}

// SessionGetInputCount returns the number of graph inputs to bind.
func (e *Engine) SessionGetInputCount(sess ort.Session) (int, error) {
	s, err := lookup[*session](&e.handles, uintptr(sess), "session")
	if err != nil {
		return 0, err
	}
	return len(s.inputs), nil
}

// SessionGetOutputCount returns the number of graph outputs.
func (e *Engine) SessionGetOutputCount(sess ort.Session) (int, error) {
	s, err := lookup[*session](&e.handles, uintptr(sess), "session")
	if err != nil {
		return 0, err
	}
	return len(s.outputs), nil
}

// SessionGetInputName returns the name of input index.
func (e *Engine) SessionGetInputName(sess ort.Session, index int) (string, error) {
	s, err := lookup[*session](&e.handles, uintptr(sess), "session")
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(s.inputs) {
		return "", ort.NewStatus(ort.InvalidArgument, "input index %d out of range [0, %d)", index, len(s.inputs))
	}
	return s.inputs[index].Name, nil
}

// SessionGetOutputName returns the name of output index.
func (e *Engine) SessionGetOutputName(sess ort.Session, index int) (string, error) {
	s, err := lookup[*session](&e.handles, uintptr(sess), "session")
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(s.outputs) {
		return "", ort.NewStatus(ort.InvalidArgument, "output index %d out of range [0, %d)", index, len(s.outputs))
	}
	return s.outputs[index].Name, nil
}

// Run executes the session.
//
//nolint:gocognit // Run binds inputs, executes nodes and delivers outputs.
func (e *Engine) Run(sess ort.Session, _ ort.RunOptions, inputNames []string, inputs []ort.Value, outputNames []string, outputs []ort.Value) error {
	s, err := lookup[*session](&e.handles, uintptr(sess), "session")
	if err != nil {
		return err
	}
	if len(inputNames) != len(inputs) {
		return ort.NewStatus(ort.InvalidArgument, "%d input names for %d inputs", len(inputNames), len(inputs))
	}
	if len(outputNames) != len(outputs) {
		return ort.NewStatus(ort.InvalidArgument, "%d output names for %d outputs", len(outputNames), len(outputs))
	}

	tensors := make(map[string]*value, len(s.initializers)+len(inputs))
	for name, v := range s.initializers {
		tensors[name] = v
	}
	for i, name := range inputNames {
		idx := slices.IndexFunc(s.inputs, func(info onnx.ValueInfoProto) bool { return info.Name == name })
		if idx < 0 {
			return ort.NewStatus(ort.InvalidArgument, "invalid input name: %s", name)
		}
		v, err := lookup[*value](&e.handles, uintptr(inputs[i]), "value")
		if err != nil {
			return err
		}
		if err := checkBinding(&s.inputs[idx], v); err != nil {
			return err
		}
		tensors[name] = v
	}
	for i := range s.inputs {
		if _, ok := tensors[s.inputs[i].Name]; !ok {
			return ort.NewStatus(ort.InvalidArgument, "missing input: %s", s.inputs[i].Name)
		}
	}

	for _, n := range s.nodes {
		nodeInputs := make([]*value, len(n.proto.Inputs))
		for i, name := range n.proto.Inputs {
			if name == "" {
				continue
			}
			t, ok := tensors[name]
			if !ok {
				return ort.NewStatus(ort.RuntimeException, "node %s: missing input %s", n, name)
			}
			nodeInputs[i] = t
		}

		var results []*value
		if n.op == nil {
			results, err = n.builtin.handler(e.exec, n.proto, nodeInputs)
			if err != nil {
				return ort.NewStatus(ort.RuntimeException, "node %s: %v", n, err)
			}
		} else {
			results, err = e.computeCustom(n, nodeInputs)
			if err != nil {
				return err
			}
		}

		for i, name := range n.proto.Outputs {
			if name != "" && i < len(results) && results[i] != nil {
				tensors[name] = results[i]
			}
		}
	}

	for i, name := range outputNames {
		v, ok := tensors[name]
		if !ok {
			return ort.NewStatus(ort.InvalidArgument, "invalid output name: %s", name)
		}
		if outputs[i] == 0 {
			outputs[i] = ort.Value(e.handles.put(v.clone()))
			continue
		}
		dst, err := lookup[*value](&e.handles, uintptr(outputs[i]), "value")
		if err != nil {
			return err
		}
		if dst.elemType != v.elemType || dst.count() != v.count() {
			return ort.NewStatus(ort.InvalidArgument, "output %s: result is %s%v, supplied value is %s%v", name, v.elemType, v.shape, dst.elemType, dst.shape)
		}
		copy(dst.data, v.data)
	}
	return nil
}

// computeCustom runs a custom kernel and collects its outputs.
func (e *Engine) computeCustom(n *node, inputs []*value) ([]*value, error) {
	kc := &kernelContext{
		op:      n.op,
		inputs:  inputs,
		outputs: make([]*value, len(n.proto.Outputs)),
		handles: &e.handles,
	}
	ctx := ort.KernelContext(e.handles.put(kc))
	klog.V(2).Infof("engine: computing %s", n)
	err := n.op.KernelCompute(n.kernel, ctx)
	e.handles.drop(uintptr(ctx))
	kc.close()
	if err != nil {
		return nil, ort.NewStatus(ort.CodeOf(err), "node %s: %v", n, err)
	}

	for i, out := range kc.outputs {
		if n.proto.Outputs[i] == "" {
			continue
		}
		if out == nil {
			if n.op.OutputCharacteristic(declaredPosition(i, n.op.OutputTypeCount())) == ort.Optional {
				continue
			}
			return nil, ort.NewStatus(ort.RuntimeException, "node %s: output %d was not produced", n, i)
		}
		if e.opts.StrictTypes && !typeMatches(n.outputs[i], out.elemType) {
			return nil, ort.NewStatus(ort.RuntimeException, "node %s: output %d is %s, declared %s", n, i, out.elemType, n.outputs[i])
		}
	}
	return kc.outputs, nil
}

// checkBinding compares a bound value with a graph input declaration.
func checkBinding(info *onnx.ValueInfoProto, v *value) error {
	if want := declaredType(info); !typeMatches(want, v.elemType) {
		return ort.NewStatus(ort.InvalidArgument, "input %s: expected %s, got %s", info.Name, want, v.elemType)
	}
	if info.Type == nil {
		return nil
	}
	shape := info.Type.TensorType.StaticShape()
	if shape == nil {
		return nil
	}
	if len(shape) != len(v.shape) {
		return ort.NewStatus(ort.InvalidArgument, "input %s: expected rank %d, got %d", info.Name, len(shape), len(v.shape))
	}
	for i, d := range shape {
		if d >= 0 && d != v.shape[i] {
			return ort.NewStatus(ort.InvalidArgument, "input %s: dimension %d is %d, expected %d", info.Name, i, v.shape[i], d)
		}
	}
	return nil
}

// valueFromProto converts an initializer to a value.
func valueFromProto(proto *onnx.TensorProto) (*value, error) {
	v, err := newValue(ort.ElementType(proto.DataType), proto.Dims)
	if err != nil {
		return nil, err
	}

	// Exactly one data field is populated.
	switch {
	case len(proto.RawData) > 0:
		if len(proto.RawData) != len(v.data) {
			return nil, errors.Errorf("raw data has %d bytes, shape %v needs %d", len(proto.RawData), proto.Dims, len(v.data))
		}
		copy(v.data, proto.RawData)
	case len(proto.FloatData) > 0 && v.elemType == ort.Float:
		copy(view[float32](v), proto.FloatData)
	case len(proto.Int32Data) > 0 && v.elemType == ort.Int32:
		copy(view[int32](v), proto.Int32Data)
	case len(proto.Int64Data) > 0 && v.elemType == ort.Int64:
		copy(view[int64](v), proto.Int64Data)
	case len(proto.DoubleData) > 0 && v.elemType == ort.Double:
		copy(view[float64](v), proto.DoubleData)
	}
	return v, nil
}

// topologicalSort orders nodes so that producers run before consumers.
func topologicalSort(nodes []onnx.NodeProto) []onnx.NodeProto {
	producer := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			producer[output] = i
		}
	}

	visited := make([]bool, len(nodes))
	result := make([]onnx.NodeProto, 0, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, input := range nodes[i].Inputs {
			if dep, ok := producer[input]; ok {
				visit(dep)
			}
		}
		result = append(result, nodes[i])
	}
	for i := range nodes {
		visit(i)
	}
	return result
}
