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

package tabletwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestGobCodecRoundTrip(t *testing.T) {
	c := gobCodec{}
	req := &OpenRequest{
		LoadIDHi:      1,
		LoadIDLo:      2,
		TxnID:         99,
		IndexID:       7,
		NeedGenRollup: true,
		Tablets:       []TabletWithPartition{{TabletID: 1, PartitionID: 2}},
	}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	var out OpenRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, *req, out)
}

func TestGobCodecRegistered(t *testing.T) {
	assert.NotNil(t, encoding.GetCodec(codecName))
}
