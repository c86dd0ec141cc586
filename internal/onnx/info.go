package onnx

import (
	"sort"
)

// ModelInfo contains basic information about an ONNX model without building
// a session for it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int

	// Operators lists the distinct operators used, as "domain.OpType" for
	// custom domains and "OpType" for the standard one, sorted.
	Operators []string
	// CustomDomains lists the non-standard domains imported, with versions.
	CustomDomains map[string]int64
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Inspect(proto), nil
}

// Inspect extracts basic info from a parsed model.
func Inspect(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.OpsetVersion(""),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
		CustomDomains:   make(map[string]int64),
	}
	for _, opset := range proto.OpsetImport {
		if !IsStandardDomain(opset.Domain) {
			info.CustomDomains[opset.Domain] = opset.Version
		}
	}

	if proto.Graph == nil {
		return info
	}

	// Inputs exclude initializers.
	initNames := make(map[string]bool)
	for i := range proto.Graph.Initializers {
		initNames[proto.Graph.Initializers[i].Name] = true
	}
	for i := range proto.Graph.Inputs {
		if !initNames[proto.Graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
		}
	}
	for _, output := range proto.Graph.Outputs {
		info.OutputNames = append(info.OutputNames, output.Name)
	}

	seen := make(map[string]bool)
	for i := range proto.Graph.Nodes {
		op := proto.Graph.Nodes[i].QualifiedOpType()
		if !seen[op] {
			seen[op] = true
			info.Operators = append(info.Operators, op)
		}
	}
	sort.Strings(info.Operators)

	info.NodeCount = len(proto.Graph.Nodes)
	info.WeightCount = len(proto.Graph.Initializers)
	return info
}

// QualifiedOpType returns the operator type prefixed with its domain unless
// the domain is the standard one.
func (n *NodeProto) QualifiedOpType() string {
	if IsStandardDomain(n.Domain) {
		return n.OpType
	}
	return n.Domain + "." + n.OpType
}
