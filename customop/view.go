// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/x448/float16"

	"github.com/born-ml/ortkit/ort"
)

// Element is the set of Go types that map onto fixed-size tensor elements.
// Named types map by their underlying kind; float16.Float16 itself maps to
// ort.Float16.
type Element interface {
	~float32 | ~float64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~bool
}

var float16Type = reflect.TypeFor[float16.Float16]()

// ElementTypeOf returns the tensor element type matching T.
func ElementTypeOf[T Element]() ort.ElementType {
	rt := reflect.TypeFor[T]()
	if rt == float16Type {
		return ort.Float16
	}
	switch rt.Kind() {
	case reflect.Float32:
		return ort.Float
	case reflect.Float64:
		return ort.Double
	case reflect.Int8:
		return ort.Int8
	case reflect.Int16:
		return ort.Int16
	case reflect.Int32:
		return ort.Int32
	case reflect.Int64:
		return ort.Int64
	case reflect.Uint8:
		return ort.Uint8
	case reflect.Uint16:
		return ort.Uint16
	case reflect.Uint32:
		return ort.Uint32
	case reflect.Uint64:
		return ort.Uint64
	case reflect.Bool:
		return ort.Bool
	default:
		return ort.Undefined
	}
}

// Data returns the handle's buffer as a []T of ElementCount elements without
// copying. Writes through the slice reach the engine's tensor.
// It panics if T does not match the tensor's element type.
func Data[T Element](h *IOHandle) []T {
	if want := ElementTypeOf[T](); want != h.Type {
		panic(fmt.Sprintf("customop: tensor %d holds %s, not %s", h.Index, h.Type, want))
	}
	if h.ElementCount == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by the engine's element count
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(h.Data))), h.ElementCount)
}
