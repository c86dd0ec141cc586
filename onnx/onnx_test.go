package onnx_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalonnx "github.com/born-ml/ortkit/internal/onnx"
	"github.com/born-ml/ortkit/onnx"
)

func mixedModel() *internalonnx.ModelProto {
	return internalonnx.NewModel("onnx_test", &internalonnx.GraphProto{
		Nodes: []internalonnx.NodeProto{
			internalonnx.Node("add", "", "Add", []string{"x", "y"}, []string{"s"}),
			internalonnx.Node("two", "test.customop", "CustomOpTwo", []string{"s"}, []string{"out"}),
		},
		Inputs: []internalonnx.ValueInfoProto{
			internalonnx.TensorValue("x", 1, 3),
			internalonnx.TensorValue("y", 1, 3),
		},
		Outputs: []internalonnx.ValueInfoProto{internalonnx.TensorValue("out", 6, 3)},
	})
}

func TestGetModelInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, internalonnx.WriteFile(path, mixedModel()))

	info, err := onnx.GetModelInfo(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, info.InputNames)
	assert.Equal(t, []string{"out"}, info.OutputNames)
	assert.Equal(t, map[string]int64{"test.customop": 1}, info.CustomDomains)
	assert.Equal(t, []string{"test.customop.CustomOpTwo"}, onnx.UnsupportedOps(info))
}

func TestGetModelInfoFromBytes(t *testing.T) {
	info, err := onnx.GetModelInfoFromBytes(internalonnx.Marshal(mixedModel()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Add", "test.customop.CustomOpTwo"}, info.Operators)

	_, err = onnx.GetModelInfoFromBytes([]byte{0x0a})
	assert.Error(t, err)
}

func TestListSupportedOps(t *testing.T) {
	ops := onnx.ListSupportedOps()
	assert.Contains(t, ops, "Add")
	assert.Contains(t, ops, "Round")
	assert.IsIncreasing(t, ops)
}
