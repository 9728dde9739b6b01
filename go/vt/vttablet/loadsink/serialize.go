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
	"bytes"
	"encoding/gob"
)

// serializeRowBatch encodes a RowBatch's row data for wire transport,
// independent of the tabletIDs side vector (which travels as its own
// AddBatchRequest field, per spec.md §6). Uses the same encoding/gob
// approach as tabletwriter's gRPC codec, since there is no
// protoc-generated row format in this repository.
func serializeRowBatch(batch *RowBatch) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(batch.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeRowBatch(data []byte) ([]Row, error) {
	var rows []Row
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// serializeSchema encodes the destination SchemaParam for the open
// request's Schema field, compatibility-checked on the remote side via
// the wire schema hash, not the byte contents.
func serializeSchema(schema *SchemaParam) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(schema.Indexes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
