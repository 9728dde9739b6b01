/*
Copyright 2019 The Vitess Authors.

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

// Package stats exports the sink's runtime-profile counters to
// Prometheus. It plays the role tabletenv.Env.Exporter() plays for
// tabletserver/connpool.Pool: a NewGaugeFunc/NewCounterFunc style
// registrar that lets a component publish a handful of named metrics
// without owning its own *prometheus.Registry.
package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter registers gauge/counter functions with a namespace prefix,
// backed by a single prometheus.Registry that the caller provides (or a
// new one of its own if nil).
type Exporter struct {
	namespace string
	registry  *prometheus.Registry

	mu   sync.Mutex
	seen map[string]bool
}

func NewExporter(namespace string, registry *prometheus.Registry) *Exporter {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Exporter{namespace: namespace, registry: registry, seen: make(map[string]bool)}
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

func (e *Exporter) register(name string, c prometheus.Collector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[name] {
		return
	}
	e.seen[name] = true
	// A duplicate registration (e.g. from a second Sink instance sharing
	// this Exporter) is not fatal, but it is ignored: only the function
	// registered first under a name is read; values are not summed.
	_ = e.registry.Register(c)
}

// NewGaugeFunc registers a gauge whose value is read lazily from f every
// scrape.
func (e *Exporter) NewGaugeFunc(name, help string, f func() int64) {
	e.register(name, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: e.namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(f()) }))
}

// NewCounterFunc registers a counter whose cumulative value is read
// lazily from f every scrape.
func (e *Exporter) NewCounterFunc(name, help string, f func() int64) {
	e.register(name, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: e.namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(f()) }))
}

// NewGaugeDurationFunc registers a gauge, in seconds, backed by f.
func (e *Exporter) NewGaugeDurationFunc(name, help string, f func() time.Duration) {
	e.register(name, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: e.namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return f().Seconds() }))
}
