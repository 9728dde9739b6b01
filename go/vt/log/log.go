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

// Package log is the thin structured-logging facade used throughout the
// sink core. It mirrors glog's calling convention (Infof/Warningf/Errorf,
// package-level functions, no logger threaded through call sites) and is
// backed directly by github.com/golang/glog.
package log

import (
	"github.com/golang/glog"
)

func Infof(format string, args ...any) {
	glog.Infof(format, args...)
}

func Info(args ...any) {
	glog.Info(args...)
}

func Warningf(format string, args ...any) {
	glog.Warningf(format, args...)
}

func Warning(args ...any) {
	glog.Warning(args...)
}

func Errorf(format string, args ...any) {
	glog.Errorf(format, args...)
}

func Error(args ...any) {
	glog.Error(args...)
}

// Flush flushes any pending log I/O. Call before process exit.
func Flush() {
	glog.Flush()
}
