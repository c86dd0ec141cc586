package onnx

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, WriteFile(path, customOpModel()))

	info, err := GetModelInfo(path)
	require.NoError(t, err)

	want := &ModelInfo{
		IRVersion:     7,
		OpsetVersion:  13,
		ProducerName:  "ortkit",
		InputNames:    []string{"input_1", "input_2"},
		OutputNames:   []string{"output"},
		NodeCount:     2,
		WeightCount:   1,
		Operators:     []string{"test.customop.CustomOpOne", "test.customop.CustomOpTwo"},
		CustomDomains: map[string]int64{"test.customop": 1},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestGetModelInfoMissingFile(t *testing.T) {
	_, err := GetModelInfo(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
}

func TestInspectNoGraph(t *testing.T) {
	info := Inspect(&ModelProto{IRVersion: 8})
	assert.Equal(t, int64(8), info.IRVersion)
	assert.Empty(t, info.Operators)
	assert.Empty(t, info.CustomDomains)
}

func TestNewModelImportsCustomDomains(t *testing.T) {
	m := NewModel("test", &GraphProto{
		Nodes: []NodeProto{
			Node("a", "", "Add", []string{"x", "y"}, []string{"s"}),
			Node("b", "my.domain", "Op", []string{"s"}, []string{"t"}),
			Node("c", "my.domain", "Op2", []string{"t"}, []string{"u"}),
		},
	})
	assert.Equal(t, []OperatorSetID{{Domain: "", Version: 13}, {Domain: "my.domain", Version: 1}}, m.OpsetImport)
	assert.Equal(t, "my.domain.Op", m.Graph.Nodes[1].QualifiedOpType())
	assert.Equal(t, "Add", m.Graph.Nodes[0].QualifiedOpType())

	v := TensorValue("x", 1, 3, 5)
	assert.Equal(t, []int64{3, 5}, v.Type.TensorType.StaticShape())
}
