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
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricEmitter exposes emitted samples as prometheus gauges.
// Each metric key maps to one GaugeVec whose label set is fixed by the
// first sample emitted for that key.
type PrometheusMetricEmitter struct {
	registerer prometheus.Registerer

	mutex  sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

var _ MetricEmitter = &PrometheusMetricEmitter{}

// NewPrometheusMetricEmitter registers emitted metrics with the given
// registerer, or the default one when nil.
func NewPrometheusMetricEmitter(registerer prometheus.Registerer) *PrometheusMetricEmitter {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusMetricEmitter{
		registerer: registerer,
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func (p *PrometheusMetricEmitter) StoreInt64(key string, val int64, tags ...MetricTag) error {
	return p.StoreFloat64(key, float64(val), tags...)
}

func (p *PrometheusMetricEmitter) StoreFloat64(key string, val float64, tags ...MetricTag) error {
	labelNames, labelValues := splitTags(tags)

	gauge, err := p.gaugeFor(key, labelNames)
	if err != nil {
		return err
	}

	metric, err := gauge.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return errors.Wrapf(err, "get metric %s", key)
	}
	metric.Set(val)
	return nil
}

func (p *PrometheusMetricEmitter) gaugeFor(key string, labelNames []string) (*prometheus.GaugeVec, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if gauge, ok := p.gauges[key]; ok {
		return gauge, nil
	}

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: strings.ReplaceAll(key, "-", "_"),
	}, labelNames)
	if err := p.registerer.Register(gauge); err != nil {
		return nil, errors.Wrapf(err, "register metric %s", key)
	}
	p.gauges[key] = gauge
	return gauge, nil
}

// splitTags orders tags by key so label positions stay stable across
// emissions of the same metric.
func splitTags(tags []MetricTag) ([]string, []string) {
	sorted := make([]MetricTag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	names := make([]string, 0, len(sorted))
	values := make([]string, 0, len(sorted))
	for _, tag := range sorted {
		names = append(names, tag.Key)
		values = append(values, tag.Val)
	}
	return names, values
}
