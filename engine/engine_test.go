// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ortkit/engine"
	"github.com/born-ml/ortkit/ort"
)

func TestNewImplementsAPI(t *testing.T) {
	var api ort.API = engine.New(engine.DefaultOptions())
	a, err := api.GetAllocatorWithDefaultOptions()
	require.NoError(t, err)
	assert.NotZero(t, a)
}

func TestDefaultOptions(t *testing.T) {
	opts := engine.DefaultOptions()
	assert.True(t, opts.StrictTypes)
	assert.Equal(t, []string{engine.CPUExecutionProvider}, opts.ExecutionProviders)
}
