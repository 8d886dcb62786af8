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

package amrmproxy

import (
	"sync"

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clusterfed/federation-core/pkg/federation/policies"
	"github.com/clusterfed/federation-core/pkg/federation/store"
	"github.com/clusterfed/federation-core/pkg/federation/types"
)

// allocationBookkeeper accumulates one split call's answer together with
// the statistics needed to apportion wildcard requests: how many
// containers each allocation id localized to each sub-cluster, the set of
// sub-clusters that are both active and weight-enabled, and aggregate
// headroom figures.
//
// A fresh instance is built per call and never shared, so none of its
// state needs locking. The policy weights are captured once at
// construction to stay isolated from concurrent reconfiguration.
type allocationBookkeeper struct {
	answer map[types.SubClusterID][]*types.ResourceRequest

	// containers localized per allocation id, per sub-cluster, feeding the
	// locality-proportional wildcard split
	localizedPerSubCluster map[int64]map[types.SubClusterID]int64
	totalLocalized         map[int64]int64

	activeAndEnabled sets.String

	policyWeights     map[types.SubClusterID]float64
	totalPolicyWeight float64

	// headroom aggregates over the active-and-enabled set, captured once
	totalHeadroomMemory  float64
	headroomKnownTargets int
	headroom             *sync.Map
}

func newAllocationBookkeeper(
	cfg *policyConfig,
	active map[types.SubClusterID]*store.SubClusterInfo,
	headroom *sync.Map,
) (*allocationBookkeeper, error) {
	b := &allocationBookkeeper{
		answer:                 make(map[types.SubClusterID][]*types.ResourceRequest),
		localizedPerSubCluster: make(map[int64]map[types.SubClusterID]int64),
		totalLocalized:         make(map[int64]int64),
		activeAndEnabled:       sets.NewString(),
		policyWeights:          cfg.weights,
		headroom:               headroom,
	}

	for id, weight := range cfg.weights {
		if weight > 0 && active[id] != nil {
			b.activeAndEnabled.Insert(id.String())
			b.totalPolicyWeight += weight
		}
	}
	if b.activeAndEnabled.Len() == 0 {
		return nil, policies.ErrNoActiveSubClusters
	}

	headroom.Range(func(key, value interface{}) bool {
		id := key.(types.SubClusterID)
		if b.activeAndEnabled.Has(id.String()) {
			b.totalHeadroomMemory += float64(types.MemoryBytes(value.(v1.ResourceList)))
			b.headroomKnownTargets++
		}
		return true
	})

	return b, nil
}

func (b *allocationBookkeeper) isActiveAndEnabled(id types.SubClusterID) bool {
	return id != "" && b.activeAndEnabled.Has(id.String())
}

// addLocalizedNodeRequest records a node-local request and updates the
// per-allocation-id statistics the wildcard pass splits by.
func (b *allocationBookkeeper) addLocalizedNodeRequest(id types.SubClusterID, rr *types.ResourceRequest) {
	allocationID := rr.AllocationRequestID
	if b.localizedPerSubCluster[allocationID] == nil {
		b.localizedPerSubCluster[allocationID] = make(map[types.SubClusterID]int64)
	}
	b.localizedPerSubCluster[allocationID][id] += int64(rr.NumContainers)
	b.totalLocalized[allocationID] += int64(rr.NumContainers)

	b.addToAnswer(id, rr)
}

// addRackRequest records a rack-local request. Rack requests are not
// exclusive to one sub-cluster, so they do not feed the localized
// statistics.
func (b *allocationBookkeeper) addRackRequest(id types.SubClusterID, rr *types.ResourceRequest) {
	b.addToAnswer(id, rr)
}

// addAnyRequest records a wildcard-level output.
func (b *allocationBookkeeper) addAnyRequest(id types.SubClusterID, rr *types.ResourceRequest) {
	b.addToAnswer(id, rr)
}

func (b *allocationBookkeeper) addToAnswer(id types.SubClusterID, rr *types.ResourceRequest) {
	b.answer[id] = append(b.answer[id], rr)
}

// subClustersForID returns the sub-clusters an allocation id localized
// containers to, or nil if the id has no localized statistics.
func (b *allocationBookkeeper) subClustersForID(allocationID int64) sets.String {
	perSubCluster, ok := b.localizedPerSubCluster[allocationID]
	if !ok {
		return nil
	}
	targets := sets.NewString()
	for id := range perSubCluster {
		targets.Insert(id.String())
	}
	return targets
}

// localityBasedWeight is the share of an allocation id's localized
// containers that landed on the given target.
func (b *allocationBookkeeper) localityBasedWeight(allocationID int64, id types.SubClusterID) float64 {
	total := b.totalLocalized[allocationID]
	if total <= 0 {
		return 0
	}
	return float64(b.localizedPerSubCluster[allocationID][id]) / float64(total)
}

// policyWeight is the target's configured weight normalized over the
// active-and-enabled set; zero for targets without a configured weight.
func (b *allocationBookkeeper) policyWeight(id types.SubClusterID) float64 {
	weight, ok := b.policyWeights[id]
	if !ok || b.totalPolicyWeight <= 0 {
		return 0
	}
	return weight / b.totalPolicyWeight
}

// headroomWeight is proportional to the memory headroom the target
// advertised, discounted by how much of the federation has reported
// headroom at all; targets without headroom data (or when nobody reported
// any memory) fall back to an even 1/N share.
func (b *allocationBookkeeper) headroomWeight(id types.SubClusterID) float64 {
	size := float64(b.activeAndEnabled.Len())
	weight := 1 / size

	value, known := b.headroom.Load(id)
	if known && b.totalHeadroomMemory > 0 {
		ratioKnown := float64(b.headroomKnownTargets) / size
		memory := float64(types.MemoryBytes(value.(v1.ResourceList)))
		weight = memory / b.totalHeadroomMemory * ratioKnown
	}
	return weight
}

// hasHeadroom reports whether the target has ever advertised headroom.
func (b *allocationBookkeeper) hasHeadroom(id types.SubClusterID) bool {
	_, known := b.headroom.Load(id)
	return known
}
