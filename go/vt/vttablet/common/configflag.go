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
	"sync"

	"github.com/spf13/pflag"
)

// IConfigFlag is a single named flag that also knows how to re-parse its
// own value from a string, so it can be merged in from a config file on
// top of its command-line default.
type IConfigFlag interface {
	New(flagName string, fs *pflag.FlagSet)
	FlagName() string
	Merge(v string) error
	Value() any
}

// ConfigFlag is embedded by concrete flag types to provide the FlagName
// bookkeeping that IConfigFlag requires.
type ConfigFlag struct {
	flagName string
}

func (cf *ConfigFlag) SetFlagName(name string) { cf.flagName = name }
func (cf *ConfigFlag) FlagName() string        { return cf.flagName }

// ConfigFlagRegistry collects every flag registered through it, keyed by
// flag name, so callers can later re-apply values parsed from a config
// file via Merge without re-touching the pflag.FlagSet.
type ConfigFlagRegistry struct {
	mu    sync.Mutex
	flags map[string]IConfigFlag
}

func NewConfigFlagRegistry() *ConfigFlagRegistry {
	return &ConfigFlagRegistry{flags: make(map[string]IConfigFlag)}
}

// Register calls New on cf to bind it to fs, then records it for later
// lookup by flag name. It errors if the name is already registered.
func (r *ConfigFlagRegistry) Register(fs *pflag.FlagSet, cf IConfigFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cf.New("", fs)
	name := cf.FlagName()
	if _, ok := r.flags[name]; ok {
		return fmt.Errorf("flag %s already registered", name)
	}
	r.flags[name] = cf
	return nil
}

// Merge applies a string value to a previously registered flag.
func (r *ConfigFlagRegistry) Merge(name, value string) error {
	r.mu.Lock()
	cf, ok := r.flags[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown flag %s", name)
	}
	return cf.Merge(value)
}

