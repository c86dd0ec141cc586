package demo

import (
	"github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/ort"
)

// Names of the demo graph's operators and values.
const (
	AddOp   = "CustomOpOne"
	RoundOp = "CustomOpTwo"

	InputX = "input_1"
	InputY = "input_2"
	Output = "output"
)

// Model builds the demo graph: output = CustomOpTwo(CustomOpOne(input_1,
// input_2)) with float inputs and an int32 output, all rows x cols.
func Model(domain string, rows, cols int64) *onnx.ModelProto {
	return onnx.NewModel("custom-op-demo", &onnx.GraphProto{
		Name: "custom_op_test",
		Nodes: []onnx.NodeProto{
			onnx.Node("add", domain, AddOp, []string{InputX, InputY}, []string{"sum"}),
			onnx.Node("round", domain, RoundOp, []string{"sum"}, []string{Output}),
		},
		Inputs: []onnx.ValueInfoProto{
			onnx.TensorValue(InputX, int32(ort.Float), rows, cols),
			onnx.TensorValue(InputY, int32(ort.Float), rows, cols),
		},
		Outputs: []onnx.ValueInfoProto{
			onnx.TensorValue(Output, int32(ort.Int32), rows, cols),
		},
	})
}
