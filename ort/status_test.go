// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ort

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	status := NewStatus(InvalidGraph, "node %s is broken", "n1")
	assert.Equal(t, "node n1 is broken", status.Error())

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, OK},
		{"status", status, InvalidGraph},
		{"wrapped with fmt", fmt.Errorf("creating session: %w", status), InvalidGraph},
		{"wrapped with errors", errors.Wrap(status, "creating session"), InvalidGraph},
		{"plain error", errors.New("boom"), Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "INVALID_ARGUMENT", InvalidArgument.String())
	assert.Equal(t, "EP_FAIL", EPFail.String())
	assert.Equal(t, "CODE(99)", ErrorCode(99).String())
}

func TestElementTypeSize(t *testing.T) {
	tests := []struct {
		typ  ElementType
		size int
		name string
	}{
		{Float, 4, "float32"},
		{Double, 8, "float64"},
		{Float16, 2, "float16"},
		{Int32, 4, "int32"},
		{Int64, 8, "int64"},
		{Bool, 1, "bool"},
		{Complex128, 16, "complex128"},
		{String, 0, "string"},
		{Undefined, 0, "undefined"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.size, tt.typ.Size(), tt.name)
		assert.Equal(t, tt.name, tt.typ.String())
	}
}

func TestCharacteristicString(t *testing.T) {
	assert.Equal(t, "required", Required.String())
	assert.Equal(t, "optional", Optional.String())
	assert.Equal(t, "variadic", Variadic.String())
	assert.Equal(t, "unknown", Characteristic(7).String())
}
