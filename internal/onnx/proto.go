package onnx

// ONNX protobuf messages, limited to what sessions need to build and run a
// graph of standard and custom operators.

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s), one per domain
	ProducerName    string              // Framework name
	ProducerVersion string              // Framework version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Initializers []TensorProto
	DocString    string
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	ValueInfo    []ValueInfoProto
}

// NodeProto represents a single operation.
type NodeProto struct {
	Inputs     []string
	Outputs    []string
	Name       string
	OpType     string
	Attributes []AttributeProto
	DocString  string
	Domain     string // "" or "ai.onnx" for standard operators
}

// TensorProto represents a constant tensor (initializer or attribute value).
type TensorProto struct {
	Dims       []int64
	DataType   int32
	FloatData  []float32
	Int32Data  []int32
	Int64Data  []int64
	Name       string
	RawData    []byte
	DoubleData []float64
}

// ValueInfoProto describes a graph input, output or intermediate value.
type ValueInfoProto struct {
	Name      string
	Type      *TypeProto
	DocString string
}

// TypeProto describes a value type. Only tensors are supported.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto describes tensor element type and shape.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is either a static extent or a symbolic name.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a named node attribute.
type AttributeProto struct {
	Name    string
	F       float32
	I       int64
	S       []byte
	T       *TensorProto
	Floats  []float32
	Ints    []int64
	Strings [][]byte
	Type    int32
}

// OperatorSetID identifies an opset version for a domain.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// StringStringEntry is a key-value metadata pair.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeUndefined = 0
	AttributeFloat     = 1
	AttributeInt       = 2
	AttributeString    = 3
	AttributeTensor    = 4
	AttributeGraph     = 5
	AttributeFloats    = 6
	AttributeInts      = 7
	AttributeStrings   = 8
)

// StaticShape returns the static extents of a tensor type, with -1 for symbolic
// or unknown dimensions. It returns nil when the shape is not declared.
func (t *TensorTypeProto) StaticShape() []int64 {
	if t == nil || t.Shape == nil {
		return nil
	}
	dims := make([]int64, len(t.Shape.Dims))
	for i, d := range t.Shape.Dims {
		if d.DimParam != "" || d.DimValue <= 0 {
			dims[i] = -1
			continue
		}
		dims[i] = d.DimValue
	}
	return dims
}

// Attribute returns the attribute called name, or nil.
func (n *NodeProto) Attribute(name string) *AttributeProto {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i]
		}
	}
	return nil
}

// OpsetVersion returns the opset version imported for domain, treating ""
// and "ai.onnx" as the same domain. It returns 0 when the domain is not
// imported.
func (m *ModelProto) OpsetVersion(domain string) int64 {
	for _, opset := range m.OpsetImport {
		if sameDomain(opset.Domain, domain) {
			return opset.Version
		}
	}
	return 0
}

// IsStandardDomain reports whether domain names the standard operator set.
func IsStandardDomain(domain string) bool {
	return domain == "" || domain == "ai.onnx"
}

func sameDomain(a, b string) bool {
	if IsStandardDomain(a) && IsStandardDomain(b) {
		return true
	}
	return a == b
}
