/*
Copyright 2024 The Vitess Authors.

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

package loadsink

import (
	"google.golang.org/grpc/codes"

	"github.com/dorisdb/loadsink/go/vt/vterrors"
)

// Error-kind constructors. Each maps onto the gRPC code space per the
// mapping documented in SPEC_FULL.md's AMBIENT STACK section; nothing
// here invents a parallel status enum.

func errInvalidConfig(format string, args ...any) error {
	return vterrors.Errorf(codes.InvalidArgument, format, args...)
}

func errUnknownNode(nodeID NodeID) error {
	return vterrors.Errorf(codes.NotFound, "unknown node %d: not present in NodesInfo", nodeID)
}

func errOpenRPCFailed(nodeID NodeID, err error) error {
	return vterrors.Wrap(codes.Unavailable, err)
}

func errRemoteRejected(nodeID NodeID, message string) error {
	return vterrors.Errorf(codes.Internal, "node %d rejected request: %s", nodeID, message)
}

func errMemLimit(format string, args ...any) error {
	return vterrors.Errorf(codes.ResourceExhausted, format, args...)
}

func errBufferOff() error {
	return vterrors.Errorf(codes.FailedPrecondition, "row buffer is off")
}

func errSerializeFailed(err error) error {
	return vterrors.Wrap(codes.Internal, err)
}

func errQuorumLost(tabletID TabletID, live, needed int) error {
	return vterrors.Errorf(codes.Aborted, "quorum lost for tablet %d: %d live replicas, need %d", tabletID, live, needed)
}

func errCancelled() error {
	return vterrors.Errorf(codes.Canceled, "sink cancelled")
}

func errTimeout(format string, args ...any) error {
	return vterrors.Errorf(codes.DeadlineExceeded, format, args...)
}

// IsQuorumLost reports whether err is (or wraps) a quorum-loss failure.
func IsQuorumLost(err error) bool {
	return vterrors.Code(err) == codes.Aborted
}
