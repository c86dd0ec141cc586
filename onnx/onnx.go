// Package onnx inspects ONNX models that use custom operator domains.
//
// Models are read without building a session, so custom operators need not
// be registered to list them.
//
// # Example Usage
//
//	info, err := onnx.GetModelInfo("custom_op_test.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Operators:", info.Operators)
//	fmt.Println("Custom domains:", info.CustomDomains)
//
// Use [ListSupportedOps] to get the standard operators the reference engine
// runs without any custom domain.
package onnx

import (
	"github.com/born-ml/ortkit/internal/engine"
	internalonnx "github.com/born-ml/ortkit/internal/onnx"
)

// ModelInfo contains metadata about an ONNX model.
//
// Use [GetModelInfo] to inspect a model file before creating a session.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Inputs: %v\n", info.InputNames)
//	fmt.Printf("Outputs: %v\n", info.OutputNames)
//	fmt.Printf("Operators: %v\n", info.Operators)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// GetModelInfoFromBytes extracts metadata from a serialized ONNX model.
func GetModelInfoFromBytes(data []byte) (*ModelInfo, error) {
	model, err := internalonnx.Parse(data)
	if err != nil {
		return nil, err
	}
	return internalonnx.Inspect(model), nil
}

// ListSupportedOps returns the standard ONNX operators the reference engine
// implements.
//
// Example:
//
//	ops := onnx.ListSupportedOps()
//	for _, op := range ops {
//	    fmt.Println(op)
//	}
func ListSupportedOps() []string {
	return engine.NewRegistry().SupportedOps()
}

// UnsupportedOps returns the operators of info that need a custom domain,
// or are standard operators the reference engine lacks.
func UnsupportedOps(info *ModelInfo) []string {
	supported := make(map[string]bool)
	for _, op := range ListSupportedOps() {
		supported[op] = true
	}
	var missing []string
	for _, op := range info.Operators {
		if !supported[op] {
			missing = append(missing, op)
		}
	}
	return missing
}
