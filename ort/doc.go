// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ort describes the plugin ABI of a host inference engine.
//
// The engine is reached through the [API] function table. Engine objects are
// opaque uintptr handles ([Env], [Session], [Value], [KernelContext],
// [Allocator], ...) where zero is the null handle. Failing calls return a
// [*Status] carrying an [ErrorCode] and a message.
//
// User defined operators implement [CustomOp], the operator vtable the engine
// queries for metadata while building a session and calls to compute while
// running it. Package customop builds CustomOp implementations from a flat
// description so kernel authors only write the compute function.
//
// Example usage:
//
//	api := engine.New(engine.DefaultOptions())
//	domain, err := api.CreateCustomOpDomain("test.customop")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := api.CustomOpDomainAdd(domain, op); err != nil {
//	    log.Fatal(err)
//	}
package ort
