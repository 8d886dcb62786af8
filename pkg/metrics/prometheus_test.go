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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricEmitter(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	emitter := NewPrometheusMetricEmitter(registry)

	require.NoError(t, emitter.StoreInt64("amrm_split_calls", 3,
		MetricTag{Key: "sub_cluster", Val: "sc1"}))
	require.NoError(t, emitter.StoreFloat64("amrm_split_calls", 5,
		MetricTag{Key: "sub_cluster", Val: "sc2"}))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "amrm_split_calls", families[0].GetName())
	assert.Len(t, families[0].GetMetric(), 2)
}

func TestPrometheusMetricEmitterLastValueWins(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	emitter := NewPrometheusMetricEmitter(registry)

	require.NoError(t, emitter.StoreFloat64("headroom_memory", 100))
	require.NoError(t, emitter.StoreFloat64("headroom_memory", 42))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].GetMetric(), 1)
	assert.Equal(t, float64(42), families[0].GetMetric()[0].GetGauge().GetValue())
}

func TestDummyMetrics(t *testing.T) {
	t.Parallel()

	var emitter MetricEmitter = DummyMetrics{}
	assert.NoError(t, emitter.StoreInt64("anything", 1))
	assert.NoError(t, emitter.StoreFloat64("anything", 1.5))
}
