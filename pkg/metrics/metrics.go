/*
Copyright 2023 The ClusterFed Authors.

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

// Package metrics contains the emitter facade federation components use to
// report their running state, decoupled from any particular backend.
package metrics // import "github.com/clusterfed/federation-core/pkg/metrics"

// MetricTag is one key/value dimension attached to an emitted metric.
type MetricTag struct {
	Key, Val string
}

// MetricEmitter is the sink federation components emit metrics through.
// Implementations must be safe for concurrent use.
type MetricEmitter interface {
	// StoreInt64 records the given int64 metric sample.
	StoreInt64(key string, val int64, tags ...MetricTag) error
	// StoreFloat64 records the given float64 metric sample.
	StoreFloat64(key string, val float64, tags ...MetricTag) error
}

// DummyMetrics discards everything. It is the default emitter when the
// embedder does not care about instrumentation.
type DummyMetrics struct{}

var _ MetricEmitter = DummyMetrics{}

func (DummyMetrics) StoreInt64(_ string, _ int64, _ ...MetricTag) error { return nil }

func (DummyMetrics) StoreFloat64(_ string, _ float64, _ ...MetricTag) error { return nil }
