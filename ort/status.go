// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ort

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a Status.
type ErrorCode int

// Error codes.
const (
	OK ErrorCode = iota
	Fail
	InvalidArgument
	NoSuchFile
	NoModel
	EngineError
	RuntimeException
	InvalidProtobuf
	ModelLoaded
	NotImplemented
	InvalidGraph
	EPFail
)

// String returns the code name as the engine prints it.
func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Fail:
		return "FAIL"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NoSuchFile:
		return "NO_SUCHFILE"
	case NoModel:
		return "NO_MODEL"
	case EngineError:
		return "ENGINE_ERROR"
	case RuntimeException:
		return "RUNTIME_EXCEPTION"
	case InvalidProtobuf:
		return "INVALID_PROTOBUF"
	case ModelLoaded:
		return "MODEL_LOADED"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case InvalidGraph:
		return "INVALID_GRAPH"
	case EPFail:
		return "EP_FAIL"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Status is the error returned by every failing engine call.
type Status struct {
	Code    ErrorCode
	Message string
}

// NewStatus creates a Status with a formatted message.
func NewStatus(code ErrorCode, format string, args ...any) *Status {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (s *Status) Error() string {
	return s.Message
}

// CodeOf returns the code of the first Status in err's chain.
// It returns OK for a nil error and Fail for errors that carry no Status.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var status *Status
	if errors.As(err, &status) {
		return status.Code
	}
	return Fail
}
