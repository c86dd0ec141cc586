// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides an in-process CPU inference engine implementing
// [ort.API].
//
// It loads ONNX models whose graphs mix a few standard operators with
// operators from custom domains, and is the host the customop package is
// tested and demonstrated against.
//
// # Example Usage
//
//	eng := engine.New(engine.DefaultOptions())
//	defer eng.Close()
//
//	reg, err := customop.RegisterAll(eng, 0, "test.customop", descriptors)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
// The engine is then used through its [ort.API] methods.
package engine

import (
	internalengine "github.com/born-ml/ortkit/internal/engine"
)

// Engine is the reference engine.
type Engine = internalengine.Engine

// Options configures an Engine.
type Options = internalengine.Options

// AllocatorConfig bounds an allocator created with Engine.CreateAllocator.
type AllocatorConfig = internalengine.AllocatorConfig

// AllocatorStats is a snapshot of allocator usage.
type AllocatorStats = internalengine.AllocatorStats

// CPUExecutionProvider is the only execution provider the engine implements.
const CPUExecutionProvider = internalengine.CPUExecutionProvider

// DefaultOptions returns the default engine options.
//
// Default configuration:
//   - Strict type checking: enabled
//   - Default allocator: "Cpu", unbounded
//   - Execution providers: CPUExecutionProvider
func DefaultOptions() Options {
	return internalengine.DefaultOptions()
}

// New creates an engine. Call Close when done to report leaked handles.
func New(opts Options) *Engine {
	return internalengine.New(opts)
}
