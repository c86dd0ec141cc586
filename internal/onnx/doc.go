// Package onnx reads and writes ONNX models.
//
// Only the part of the format a session needs is modelled: the graph, its
// nodes and attributes, initializers, and the declared type and shape of
// graph inputs and outputs. Decoding and encoding use the protobuf wire
// format directly through protowire; there are no generated message types.
//
// Example usage:
//
//	model, err := onnx.ParseFile("custom_op_test.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, node := range model.Graph.Nodes {
//	    fmt.Printf("%s.%s\n", node.Domain, node.OpType)
//	}
package onnx
