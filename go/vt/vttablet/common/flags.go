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

package vttablet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/dorisdb/loadsink/go/vt/log"
)

var (
	// Default flags, mutated in place by pflag when RegisterLoadSinkFlags
	// is called against a FlagSet.
	LoadSinkBufferNum            int
	LoadSinkRPCTimeout           time.Duration
	LoadSinkLoadChannelTimeout   time.Duration
	LoadSinkMemLimitPerBuf       int64
	LoadSinkSizeLimitPerBuf      int64
	LoadSinkMaxBatchBytes        int64
)

// RegisterLoadSinkFlags binds every load-sink tunable to fs and records it
// in LoadSinkConfigFlags so a config file value can later be merged in on
// top of the command-line default.
func RegisterLoadSinkFlags(fs *pflag.FlagSet) {
	if LoadSinkConfigFlags.Register(fs, &BufferNumConfig{}) != nil {
		log.Warningf("Error registering loadsink_buffer_num")
	}
	if LoadSinkConfigFlags.Register(fs, &RPCTimeoutConfig{}) != nil {
		log.Warningf("Error registering loadsink_rpc_timeout")
	}
	if LoadSinkConfigFlags.Register(fs, &LoadChannelTimeoutConfig{}) != nil {
		log.Warningf("Error registering loadsink_load_channel_timeout")
	}
	if LoadSinkConfigFlags.Register(fs, &MemLimitPerBufConfig{}) != nil {
		log.Warningf("Error registering loadsink_mem_limit_per_buf")
	}
	if LoadSinkConfigFlags.Register(fs, &SizeLimitPerBufConfig{}) != nil {
		log.Warningf("Error registering loadsink_size_limit_per_buf")
	}
	if LoadSinkConfigFlags.Register(fs, &MaxBatchBytesConfig{}) != nil {
		log.Warningf("Error registering loadsink_max_batch_bytes")
	}
}

// LoadSinkConfigFlags is the process-wide registry for the flags above.
var LoadSinkConfigFlags = NewConfigFlagRegistry()

type BufferNumConfig struct {
	ConfigFlag
	bufferNum int
}

func (cf *BufferNumConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_buffer_num")
	cf.bufferNum = 0
	fs.IntVar(&LoadSinkBufferNum, cf.FlagName(), cf.bufferNum,
		"number of RowBuffers/consumer goroutines to use; 0 disables multi-threaded mode")
}

func (cf *BufferNumConfig) Merge(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_buffer_num: %w", err)
	}
	cf.bufferNum = n
	return nil
}

func (cf *BufferNumConfig) Value() any { return cf.bufferNum }

type RPCTimeoutConfig struct {
	ConfigFlag
	rpcTimeout time.Duration
}

func (cf *RPCTimeoutConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_rpc_timeout")
	cf.rpcTimeout = 60 * time.Second
	fs.DurationVar(&LoadSinkRPCTimeout, cf.FlagName(), cf.rpcTimeout,
		"per-RPC timeout for open/add-batch/cancel calls to a tablet writer")
}

func (cf *RPCTimeoutConfig) Merge(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_rpc_timeout: %w", err)
	}
	cf.rpcTimeout = d
	return nil
}

func (cf *RPCTimeoutConfig) Value() any { return cf.rpcTimeout }

type LoadChannelTimeoutConfig struct {
	ConfigFlag
	loadChannelTimeout time.Duration
}

func (cf *LoadChannelTimeoutConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_load_channel_timeout")
	cf.loadChannelTimeout = 60 * time.Second
	fs.DurationVar(&LoadSinkLoadChannelTimeout, cf.FlagName(), cf.loadChannelTimeout,
		"whole-load timeout carried on the tablet writer open request")
}

func (cf *LoadChannelTimeoutConfig) Merge(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_load_channel_timeout: %w", err)
	}
	cf.loadChannelTimeout = d
	return nil
}

func (cf *LoadChannelTimeoutConfig) Value() any { return cf.loadChannelTimeout }

type MemLimitPerBufConfig struct {
	ConfigFlag
	memLimitPerBuf int64
}

func (cf *MemLimitPerBufConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_mem_limit_per_buf")
	cf.memLimitPerBuf = 64 * 1024 * 1024
	fs.Int64Var(&LoadSinkMemLimitPerBuf, cf.FlagName(), cf.memLimitPerBuf,
		"byte budget for a single RowBuffer's deep-copy pool")
}

func (cf *MemLimitPerBufConfig) Merge(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_mem_limit_per_buf: %w", err)
	}
	cf.memLimitPerBuf = n
	return nil
}

func (cf *MemLimitPerBufConfig) Value() any { return cf.memLimitPerBuf }

type SizeLimitPerBufConfig struct {
	ConfigFlag
	sizeLimitPerBuf int64
}

func (cf *SizeLimitPerBufConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_size_limit_per_buf")
	cf.sizeLimitPerBuf = 4096
	fs.Int64Var(&LoadSinkSizeLimitPerBuf, cf.FlagName(), cf.sizeLimitPerBuf,
		"row-count capacity of a single RowBuffer's SPSC queue, and row-count cap of each NodeChannel batch")
}

func (cf *SizeLimitPerBufConfig) Merge(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_size_limit_per_buf: %w", err)
	}
	cf.sizeLimitPerBuf = n
	return nil
}

func (cf *SizeLimitPerBufConfig) Value() any { return cf.sizeLimitPerBuf }

type MaxBatchBytesConfig struct {
	ConfigFlag
	maxBatchBytes int64
}

func (cf *MaxBatchBytesConfig) New(flagName string, fs *pflag.FlagSet) {
	cf.SetFlagName("loadsink_max_batch_bytes")
	cf.maxBatchBytes = 8 * 1024 * 1024
	fs.Int64Var(&LoadSinkMaxBatchBytes, cf.FlagName(), cf.maxBatchBytes,
		"byte-size bound on a single NodeChannel batch, independent of its row-count cap")
}

func (cf *MaxBatchBytesConfig) Merge(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for loadsink_max_batch_bytes: %w", err)
	}
	cf.maxBatchBytes = n
	return nil
}

func (cf *MaxBatchBytesConfig) Value() any { return cf.maxBatchBytes }

var (
	_ IConfigFlag = (*BufferNumConfig)(nil)
	_ IConfigFlag = (*RPCTimeoutConfig)(nil)
	_ IConfigFlag = (*LoadChannelTimeoutConfig)(nil)
	_ IConfigFlag = (*MemLimitPerBufConfig)(nil)
	_ IConfigFlag = (*SizeLimitPerBufConfig)(nil)
	_ IConfigFlag = (*MaxBatchBytesConfig)(nil)
)
