package onnx

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType is returned when a known field is encoded with an unexpected
// protobuf wire type.
var ErrWireType = errors.New("unexpected wire type")

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: loading a user supplied model path is the point
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model %q", path)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := decodeModel(data, model); err != nil {
		return nil, errors.WithMessage(err, "parsing model")
	}
	return model, nil
}

// fieldDecoder consumes the value of one field from b and returns the number
// of bytes used (negative on a protowire error).
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// decodeMessage walks the fields of one message.
func decodeMessage(b []byte, field fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := field(num, typ, b)
		if err != nil {
			return errors.WithMessagef(err, "field %d", num)
		}
		if n < 0 {
			return errors.WithMessagef(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

func decodeModel(b []byte, m *ModelProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // ir_version
			return consumeInt64(typ, b, &m.IRVersion)
		case 2: // producer_name
			return consumeString(typ, b, &m.ProducerName)
		case 3: // producer_version
			return consumeString(typ, b, &m.ProducerVersion)
		case 4: // domain
			return consumeString(typ, b, &m.Domain)
		case 5: // model_version
			return consumeInt64(typ, b, &m.ModelVersion)
		case 6: // doc_string
			return consumeString(typ, b, &m.DocString)
		case 7: // graph
			return consumeMessage(typ, b, func(b []byte) error {
				m.Graph = &GraphProto{}
				return decodeGraph(b, m.Graph)
			})
		case 8: // opset_import
			return consumeMessage(typ, b, func(b []byte) error {
				var opset OperatorSetID
				err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &opset.Domain)
					case 2:
						return consumeInt64(typ, b, &opset.Version)
					}
					return skip(num, typ, b)
				})
				m.OpsetImport = append(m.OpsetImport, opset)
				return err
			})
		case 14: // metadata_props
			return consumeMessage(typ, b, func(b []byte) error {
				var entry StringStringEntry
				err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &entry.Key)
					case 2:
						return consumeString(typ, b, &entry.Value)
					}
					return skip(num, typ, b)
				})
				m.MetadataProps = append(m.MetadataProps, entry)
				return err
			})
		}
		return skip(num, typ, b)
	})
}

func decodeGraph(b []byte, g *GraphProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // node
			return consumeMessage(typ, b, func(b []byte) error {
				var node NodeProto
				err := decodeNode(b, &node)
				g.Nodes = append(g.Nodes, node)
				return err
			})
		case 2: // name
			return consumeString(typ, b, &g.Name)
		case 5: // initializer
			return consumeMessage(typ, b, func(b []byte) error {
				var t TensorProto
				err := decodeTensor(b, &t)
				g.Initializers = append(g.Initializers, t)
				return err
			})
		case 10: // doc_string
			return consumeString(typ, b, &g.DocString)
		case 11: // input
			return consumeValueInfo(typ, b, &g.Inputs)
		case 12: // output
			return consumeValueInfo(typ, b, &g.Outputs)
		case 13: // value_info
			return consumeValueInfo(typ, b, &g.ValueInfo)
		}
		return skip(num, typ, b)
	})
}

func decodeNode(b []byte, n *NodeProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // input
			return appendString(typ, b, &n.Inputs)
		case 2: // output
			return appendString(typ, b, &n.Outputs)
		case 3: // name
			return consumeString(typ, b, &n.Name)
		case 4: // op_type
			return consumeString(typ, b, &n.OpType)
		case 5: // attribute
			return consumeMessage(typ, b, func(b []byte) error {
				var attr AttributeProto
				err := decodeAttribute(b, &attr)
				n.Attributes = append(n.Attributes, attr)
				return err
			})
		case 6: // doc_string
			return consumeString(typ, b, &n.DocString)
		case 7: // domain
			return consumeString(typ, b, &n.Domain)
		}
		return skip(num, typ, b)
	})
}

func decodeTensor(b []byte, t *TensorProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // dims
			return appendInt64s(typ, b, &t.Dims)
		case 2: // data_type
			return consumeInt32(typ, b, &t.DataType)
		case 4: // float_data
			return appendFloat32s(typ, b, &t.FloatData)
		case 5: // int32_data
			var values []int64
			n, err := appendInt64s(typ, b, &values)
			for _, v := range values {
				t.Int32Data = append(t.Int32Data, int32(v))
			}
			return n, err
		case 7: // int64_data
			return appendInt64s(typ, b, &t.Int64Data)
		case 8: // name
			return consumeString(typ, b, &t.Name)
		case 9: // raw_data
			return consumeBytes(typ, b, &t.RawData)
		case 10: // double_data
			return appendFloat64s(typ, b, &t.DoubleData)
		}
		return skip(num, typ, b)
	})
}

func consumeValueInfo(typ protowire.Type, b []byte, list *[]ValueInfoProto) (int, error) {
	return consumeMessage(typ, b, func(b []byte) error {
		var info ValueInfoProto
		err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case 1: // name
				return consumeString(typ, b, &info.Name)
			case 2: // type
				return consumeMessage(typ, b, func(b []byte) error {
					info.Type = &TypeProto{}
					return decodeType(b, info.Type)
				})
			case 3: // doc_string
				return consumeString(typ, b, &info.DocString)
			}
			return skip(num, typ, b)
		})
		*list = append(*list, info)
		return err
	})
}

func decodeType(b []byte, t *TypeProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 { // tensor_type
			return skip(num, typ, b)
		}
		return consumeMessage(typ, b, func(b []byte) error {
			tt := &TensorTypeProto{}
			t.TensorType = tt
			return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1: // elem_type
					return consumeInt32(typ, b, &tt.ElemType)
				case 2: // shape
					return consumeMessage(typ, b, func(b []byte) error {
						tt.Shape = &TensorShapeProto{}
						return decodeShape(b, tt.Shape)
					})
				}
				return skip(num, typ, b)
			})
		})
	})
}

func decodeShape(b []byte, s *TensorShapeProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 { // dim
			return skip(num, typ, b)
		}
		return consumeMessage(typ, b, func(b []byte) error {
			var dim DimensionProto
			err := decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeInt64(typ, b, &dim.DimValue)
				case 2:
					return consumeString(typ, b, &dim.DimParam)
				}
				return skip(num, typ, b)
			})
			s.Dims = append(s.Dims, dim)
			return err
		})
	})
}

func decodeAttribute(b []byte, a *AttributeProto) error {
	return decodeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // name
			return consumeString(typ, b, &a.Name)
		case 2: // f
			var values []float32
			n, err := appendFloat32s(typ, b, &values)
			if len(values) > 0 {
				a.F = values[len(values)-1]
			}
			return n, err
		case 3: // i
			return consumeInt64(typ, b, &a.I)
		case 4: // s
			return consumeBytes(typ, b, &a.S)
		case 5: // t
			return consumeMessage(typ, b, func(b []byte) error {
				a.T = &TensorProto{}
				return decodeTensor(b, a.T)
			})
		case 7: // floats
			return appendFloat32s(typ, b, &a.Floats)
		case 8: // ints
			return appendInt64s(typ, b, &a.Ints)
		case 9: // strings
			var s []byte
			n, err := consumeBytes(typ, b, &s)
			if err == nil && n >= 0 {
				a.Strings = append(a.Strings, s)
			}
			return n, err
		case 20: // type
			return consumeInt32(typ, b, &a.Type)
		}
		return skip(num, typ, b)
	})
}

// Scalar and length-delimited helpers. Each returns the bytes consumed.

func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, decode(v)
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = string(v)
	}
	return n, nil
}

func appendString(typ protowire.Type, b []byte, dst *[]string) (int, error) {
	var s string
	n, err := consumeString(typ, b, &s)
	if err == nil && n >= 0 {
		*dst = append(*dst, s)
	}
	return n, err
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n, nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v int64
	n, err := consumeInt64(typ, b, &v)
	*dst = int32(v)
	return n, err
}

// appendInt64s accepts both packed and unpacked encodings.
func appendInt64s(typ protowire.Type, b []byte, dst *[]int64) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			*dst = append(*dst, int64(v))
		}
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m, nil
			}
			*dst = append(*dst, int64(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, ErrWireType
}

// appendFloat32s accepts both packed and unpacked encodings.
func appendFloat32s(typ protowire.Type, b []byte, dst *[]float32) (int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n >= 0 {
			*dst = append(*dst, math.Float32frombits(v))
		}
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			if m < 0 {
				return m, nil
			}
			*dst = append(*dst, math.Float32frombits(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, ErrWireType
}

// appendFloat64s accepts both packed and unpacked encodings.
func appendFloat64s(typ protowire.Type, b []byte, dst *[]float64) (int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n >= 0 {
			*dst = append(*dst, math.Float64frombits(v))
		}
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed64(packed)
			if m < 0 {
				return m, nil
			}
			*dst = append(*dst, math.Float64frombits(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, ErrWireType
}
