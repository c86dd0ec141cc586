package onnx

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes a model in the ONNX protobuf wire format.
// Repeated scalars are written packed.
func Marshal(m *ModelProto) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.IRVersion))
	b = appendStringField(b, 2, m.ProducerName)
	b = appendStringField(b, 3, m.ProducerVersion)
	b = appendStringField(b, 4, m.Domain)
	b = appendVarintField(b, 5, uint64(m.ModelVersion))
	b = appendStringField(b, 6, m.DocString)
	if m.Graph != nil {
		b = appendMessageField(b, 7, marshalGraph(m.Graph))
	}
	for _, opset := range m.OpsetImport {
		var ob []byte
		ob = appendStringField(ob, 1, opset.Domain)
		ob = appendVarintField(ob, 2, uint64(opset.Version))
		b = appendMessageField(b, 8, ob)
	}
	for _, entry := range m.MetadataProps {
		var eb []byte
		eb = appendStringField(eb, 1, entry.Key)
		eb = appendStringField(eb, 2, entry.Value)
		b = appendMessageField(b, 14, eb)
	}
	return b
}

// WriteFile encodes m and writes it to path.
func WriteFile(path string, m *ModelProto) error {
	if err := os.WriteFile(path, Marshal(m), 0o644); err != nil { //nolint:gosec // models are not secret
		return errors.Wrapf(err, "writing model %q", path)
	}
	return nil
}

func marshalGraph(g *GraphProto) []byte {
	var b []byte
	for i := range g.Nodes {
		b = appendMessageField(b, 1, marshalNode(&g.Nodes[i]))
	}
	b = appendStringField(b, 2, g.Name)
	for i := range g.Initializers {
		b = appendMessageField(b, 5, marshalTensor(&g.Initializers[i]))
	}
	b = appendStringField(b, 10, g.DocString)
	for i := range g.Inputs {
		b = appendMessageField(b, 11, marshalValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		b = appendMessageField(b, 12, marshalValueInfo(&g.Outputs[i]))
	}
	for i := range g.ValueInfo {
		b = appendMessageField(b, 13, marshalValueInfo(&g.ValueInfo[i]))
	}
	return b
}

func marshalNode(n *NodeProto) []byte {
	var b []byte
	for _, input := range n.Inputs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, input)
	}
	for _, output := range n.Outputs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, output)
	}
	b = appendStringField(b, 3, n.Name)
	b = appendStringField(b, 4, n.OpType)
	for i := range n.Attributes {
		b = appendMessageField(b, 5, marshalAttribute(&n.Attributes[i]))
	}
	b = appendStringField(b, 6, n.DocString)
	b = appendStringField(b, 7, n.Domain)
	return b
}

func marshalTensor(t *TensorProto) []byte {
	var b []byte
	b = appendPackedInt64s(b, 1, t.Dims)
	b = appendVarintField(b, 2, uint64(t.DataType))
	b = appendPackedFloat32s(b, 4, t.FloatData)
	if len(t.Int32Data) > 0 {
		values := make([]int64, len(t.Int32Data))
		for i, v := range t.Int32Data {
			values[i] = int64(v)
		}
		b = appendPackedInt64s(b, 5, values)
	}
	b = appendPackedInt64s(b, 7, t.Int64Data)
	b = appendStringField(b, 8, t.Name)
	if len(t.RawData) > 0 {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, t.RawData)
	}
	if len(t.DoubleData) > 0 {
		var packed []byte
		for _, v := range t.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = appendMessageField(b, 10, packed)
	}
	return b
}

func marshalValueInfo(v *ValueInfoProto) []byte {
	var b []byte
	b = appendStringField(b, 1, v.Name)
	if v.Type != nil && v.Type.TensorType != nil {
		tt := v.Type.TensorType
		var ttb []byte
		ttb = appendVarintField(ttb, 1, uint64(tt.ElemType))
		if tt.Shape != nil {
			var sb []byte
			for _, dim := range tt.Shape.Dims {
				var db []byte
				if dim.DimParam != "" {
					db = appendStringField(db, 2, dim.DimParam)
				} else {
					db = protowire.AppendTag(db, 1, protowire.VarintType)
					db = protowire.AppendVarint(db, uint64(dim.DimValue))
				}
				sb = appendMessageField(sb, 1, db)
			}
			ttb = protowire.AppendTag(ttb, 2, protowire.BytesType)
			ttb = protowire.AppendBytes(ttb, sb)
		}
		var tb []byte
		tb = protowire.AppendTag(tb, 1, protowire.BytesType)
		tb = protowire.AppendBytes(tb, ttb)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	b = appendStringField(b, 3, v.DocString)
	return b
}

func marshalAttribute(a *AttributeProto) []byte {
	var b []byte
	b = appendStringField(b, 1, a.Name)
	switch a.Type {
	case AttributeFloat:
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case AttributeInt:
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a.I))
	case AttributeString:
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, a.S)
	case AttributeTensor:
		if a.T != nil {
			b = protowire.AppendTag(b, 5, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalTensor(a.T))
		}
	case AttributeFloats:
		b = appendPackedFloat32s(b, 7, a.Floats)
	case AttributeInts:
		b = appendPackedInt64s(b, 8, a.Ints)
	case AttributeStrings:
		for _, s := range a.Strings {
			b = protowire.AppendTag(b, 9, protowire.BytesType)
			b = protowire.AppendBytes(b, s)
		}
	}
	b = appendVarintField(b, 20, uint64(a.Type))
	return b
}

// Field helpers. Zero scalars and empty strings are omitted, as proto3 does.

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendPackedInt64s(b []byte, num protowire.Number, values []int64) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return appendMessageField(b, num, packed)
}

func appendPackedFloat32s(b []byte, num protowire.Number, values []float32) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	return appendMessageField(b, num, packed)
}
