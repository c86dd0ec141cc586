// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package customop builds engine custom operators from a flat description.
//
// A raw ort.CustomOp has seventeen slots. Most of them have an obvious answer,
// which [Defaults] provides. The rest follow from a [Descriptor]: a name, the
// input and output element types, and one [ComputeFunc]. [New] turns a
// descriptor into an [*Op] the engine can register, and [RegisterAll] does it
// for a whole domain.
//
// Inside the compute function, [Op.GetInput] and [Op.GetOutput] resolve a
// tensor to its buffer, element count and dimensions, and [Data] views the
// buffer as a typed slice. Each handle owns a dims array taken from the
// operator's allocator and must be given back with [Op.Release]:
//
//	add := customop.Descriptor{
//	    Name:    "CustomOpOne",
//	    Inputs:  customop.Uniform(2, ort.Float),
//	    Outputs: customop.Uniform(1, ort.Float),
//	    Compute: func(op *customop.Op, api ort.API, ctx ort.KernelContext) error {
//	        x, err := op.GetInput(ctx, 0)
//	        if err != nil {
//	            return err
//	        }
//	        defer op.Release(x)
//	        ...
//	    },
//	}
//	reg, err := customop.RegisterAll(api, 0, "test.customop", []customop.Descriptor{add})
//
// The adapter takes no locks; the engine serializes calls into a kernel.
package customop
