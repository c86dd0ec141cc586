package onnx

// IRVersion is the IR version written by NewModel.
const IRVersion = 7

// TensorValue declares a tensor value with a static shape.
func TensorValue(name string, elemType int32, dims ...int64) ValueInfoProto {
	shape := &TensorShapeProto{Dims: make([]DimensionProto, len(dims))}
	for i, d := range dims {
		shape.Dims[i] = DimensionProto{DimValue: d}
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elemType, Shape: shape}},
	}
}

// TensorValueAnyShape declares a tensor value of any rank.
func TensorValueAnyShape(name string, elemType int32) ValueInfoProto {
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elemType}},
	}
}

// Node creates a node of opType in domain.
func Node(name, domain, opType string, inputs, outputs []string, attrs ...AttributeProto) NodeProto {
	return NodeProto{
		Name:       name,
		Domain:     domain,
		OpType:     opType,
		Inputs:     inputs,
		Outputs:    outputs,
		Attributes: attrs,
	}
}

// NewModel wraps graph in a model importing the standard opset and version 1
// of every custom domain its nodes use.
func NewModel(producer string, graph *GraphProto) *ModelProto {
	m := &ModelProto{
		IRVersion:    IRVersion,
		ProducerName: producer,
		OpsetImport:  []OperatorSetID{{Domain: "", Version: 13}},
		Graph:        graph,
	}
	for _, n := range graph.Nodes {
		if m.OpsetVersion(n.Domain) == 0 {
			m.OpsetImport = append(m.OpsetImport, OperatorSetID{Domain: n.Domain, Version: 1})
		}
	}
	return m
}
