/*
Copyright 2023 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vterrors provides errors carrying a gRPC status code, the same
// shape as vitess's own vterrors package (Errorf(code, format, args...)
// plus Code(err)), built directly on google.golang.org/grpc/codes instead
// of a parallel vtrpcpb.Code enum.
package vterrors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// codedError is an error tagged with a gRPC status code.
type codedError struct {
	code codes.Code
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// New returns an error with the given code and message.
func New(code codes.Code, msg string) error {
	return &codedError{code: code, msg: msg}
}

// Errorf formats according to a format specifier and returns an error
// carrying the given code.
func Errorf(code codes.Code, format string, args ...any) error {
	return &codedError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error carrying code and err's message. err itself is
// not retained, so errors.Is/As do not reach it through the result.
func Wrap(code codes.Code, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, msg: err.Error()}
}

// Code returns the gRPC code carried by err, or codes.Unknown if err does
// not carry one.
func Code(err error) codes.Code {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	if err == nil {
		return codes.OK
	}
	return codes.Unknown
}
