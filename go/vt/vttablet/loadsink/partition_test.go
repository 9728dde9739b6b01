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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPartitionResolverIsDeterministic(t *testing.T) {
	resolve := HashPartitionResolver([]int{0}, 4, map[int]PartitionID{0: 10, 1: 11, 2: 12, 3: 13})

	row := Row{{Str: "tenant-42"}}
	first, ok := resolve(row)
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := resolve(row)
		assert.True(t, ok)
		assert.Equal(t, first, again, "same key must always resolve to the same partition")
	}
}

func TestHashPartitionResolverZeroBuckets(t *testing.T) {
	resolve := HashPartitionResolver([]int{0}, 0, map[int]PartitionID{})
	_, ok := resolve(Row{{Int: 1}})
	assert.False(t, ok)
}

func TestHashPartitionResolverOutOfRangeColumn(t *testing.T) {
	resolve := HashPartitionResolver([]int{5}, 4, map[int]PartitionID{0: 1})
	_, ok := resolve(Row{{Int: 1}})
	assert.False(t, ok)
}
