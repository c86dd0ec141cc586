// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import "fmt"

// AllocationError reports that the operator's allocator could not satisfy a
// request made by the adapter. Err is the engine's status.
type AllocationError struct {
	Op   string // Operator name
	What string // What was being allocated (e.g., "instance", "dims")
	Size int    // Requested size in bytes
	Err  error  // Underlying engine error
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("operator %q: allocating %s (%d bytes): %v", e.Op, e.What, e.Size, e.Err)
}

// Unwrap returns the engine error.
func (e *AllocationError) Unwrap() error {
	return e.Err
}
