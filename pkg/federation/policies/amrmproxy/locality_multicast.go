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
	"math"
	"sync"

	"github.com/pkg/errors"
	uberatomic "go.uber.org/atomic"
	"k8s.io/klog/v2"

	"github.com/clusterfed/federation-core/pkg/federation/policies"
	"github.com/clusterfed/federation-core/pkg/federation/resolver"
	"github.com/clusterfed/federation-core/pkg/federation/store"
	"github.com/clusterfed/federation-core/pkg/federation/types"
	"github.com/clusterfed/federation-core/pkg/metrics"
)

const (
	metricSplitCalls            = "amrm_split_calls"
	metricSplitDroppedRequests  = "amrm_split_dropped_requests"
	metricHeadroomNotifications = "amrm_headroom_notifications"

	metricTagSubCluster = "sub_cluster"
)

// policyConfig is one immutable configuration generation. It is swapped
// wholesale on Reinitialize and read exactly once per split call, so an
// in-flight call never observes a half-applied reconfiguration.
type policyConfig struct {
	weights        map[types.SubClusterID]float64
	headroomAlpha  float64
	resolver       resolver.SubClusterResolver
	stateStore     store.StateStore
	homeSubCluster types.SubClusterID
}

// LocalityMulticastPolicy multicasts requests with locality awareness:
//
//   - Node-local requests go to the sub-cluster owning the node, falling
//     back to the home sub-cluster when the node cannot be resolved.
//   - Rack-local requests go to every sub-cluster owning machines in the
//     rack (racks may be striped across resource managers), with the same
//     home fallback.
//   - Wildcard requests tied (via allocation id) to localized requests are
//     apportioned to the same sub-clusters, proportionally to the
//     localized container counts. Untied wildcard requests are split over
//     the whole active-and-enabled set by a blend of configured weights
//     and advertised headroom, controlled by the headroom alpha.
//   - Zero-container wildcard requests are broadcast verbatim to every
//     sub-cluster we have headroom feedback from, as they may cancel an
//     earlier ask.
//
// Inactive sub-clusters and sub-clusters with no (or zero) configured
// weight never receive anything, even when localized requests name them
// explicitly. Per-target ceiling rounding may over-ask by at most one
// container per contacted sub-cluster.
type LocalityMulticastPolicy struct {
	config uberatomic.Value // *policyConfig

	// headroom maps types.SubClusterID to the v1.ResourceList most
	// recently advertised by that sub-cluster. Entries are independent;
	// last writer wins per key.
	headroom sync.Map

	emitter metrics.MetricEmitter
}

var _ Policy = &LocalityMulticastPolicy{}

// NewLocalityMulticastPolicy builds an unconfigured policy; Reinitialize
// must succeed before the first split call.
func NewLocalityMulticastPolicy(emitter metrics.MetricEmitter) *LocalityMulticastPolicy {
	if emitter == nil {
		emitter = metrics.DummyMetrics{}
	}
	return &LocalityMulticastPolicy{emitter: emitter}
}

// Reinitialize validates ctx and atomically swaps in the new
// configuration. On failure the previous configuration, if any, remains
// active. Headroom feedback survives reconfiguration.
func (p *LocalityMulticastPolicy) Reinitialize(ctx *policies.PolicyInitializationContext) error {
	if err := ctx.Validate(); err != nil {
		return err
	}

	weights := make(map[types.SubClusterID]float64, len(ctx.PolicyInfo.AMRMPolicyWeights))
	for id, weight := range ctx.PolicyInfo.AMRMPolicyWeights {
		weights[id] = weight
	}

	p.config.Store(&policyConfig{
		weights:        weights,
		headroomAlpha:  ctx.PolicyInfo.HeadroomAlpha,
		resolver:       ctx.Resolver,
		stateStore:     ctx.StateStore,
		homeSubCluster: ctx.HomeSubCluster,
	})

	klog.V(4).InfoS("locality multicast policy reinitialized",
		"homeSubCluster", ctx.HomeSubCluster,
		"headroomAlpha", ctx.PolicyInfo.HeadroomAlpha,
		"weightedSubClusters", len(weights))
	return nil
}

// NotifyOfResponse records the headroom one sub-cluster advertised in its
// latest allocate response. Last writer wins; no cross-key consistency is
// needed, so split calls are never serialized against feedback.
func (p *LocalityMulticastPolicy) NotifyOfResponse(id types.SubClusterID, response *types.AllocateResponse) {
	if response == nil {
		return
	}
	p.headroom.Store(id, response.AvailableResources.DeepCopy())
	_ = p.emitter.StoreInt64(metricHeadroomNotifications, 1,
		metrics.MetricTag{Key: metricTagSubCluster, Val: id.String()})
}

// SplitResourceRequests routes localized requests first, accumulating
// per-allocation-id statistics, then apportions the deferred wildcard
// requests.
func (p *LocalityMulticastPolicy) SplitResourceRequests(
	requests []*types.ResourceRequest,
) (map[types.SubClusterID][]*types.ResourceRequest, error) {
	cfg, ok := p.config.Load().(*policyConfig)
	if !ok || cfg == nil {
		return nil, errors.New("policy has not been initialized")
	}

	active, err := cfg.stateStore.GetActiveSubClusters()
	if err != nil {
		// membership failures belong to the caller, untouched
		return nil, err
	}

	bookkeeper, err := newAllocationBookkeeper(cfg, active, &p.headroom)
	if err != nil {
		return nil, err
	}

	var deferred []*types.ResourceRequest
	for _, rr := range requests {
		if rr.IsAnyLocation() {
			deferred = append(deferred, rr)
			continue
		}
		p.routeLocalizedRequest(cfg, bookkeeper, rr)
	}

	for _, rr := range deferred {
		p.splitWildcardRequest(cfg, bookkeeper, rr)
	}

	_ = p.emitter.StoreInt64(metricSplitCalls, 1)
	return bookkeeper.answer, nil
}

// routeLocalizedRequest resolves one node/rack request to its owning
// sub-cluster(s), defaulting to the home sub-cluster when resolution
// yields nothing usable, and dropping the request when even the home
// sub-cluster cannot serve it.
func (p *LocalityMulticastPolicy) routeLocalizedRequest(
	cfg *policyConfig, bookkeeper *allocationBookkeeper, rr *types.ResourceRequest,
) {
	targetID, err := cfg.resolver.GetSubClusterForNode(rr.ResourceName)
	if err != nil && !resolver.IsNoMapping(err) {
		// node and rack names are indistinguishable, resolution misses
		// are expected here
		klog.V(6).InfoS("node resolution failed", "resourceName", rr.ResourceName, "err", err)
	}
	if err == nil && bookkeeper.isActiveAndEnabled(targetID) {
		bookkeeper.addLocalizedNodeRequest(targetID, rr)
		return
	}

	targetIDs, err := cfg.resolver.GetSubClustersForRack(rr.ResourceName)
	if err != nil && !resolver.IsNoMapping(err) {
		klog.V(6).InfoS("rack resolution failed", "resourceName", rr.ResourceName, "err", err)
	}
	if targetIDs.Len() > 0 {
		hasActive := false
		for _, target := range targetIDs.UnsortedList() {
			if id := types.SubClusterID(target); bookkeeper.isActiveAndEnabled(id) {
				bookkeeper.addRackRequest(id, rr)
				hasActive = true
			}
		}
		if hasActive {
			return
		}
	}

	klog.V(6).InfoS("cannot resolve resource name, defaulting to home sub-cluster",
		"resourceName", rr.ResourceName, "homeSubCluster", cfg.homeSubCluster)

	if !bookkeeper.isActiveAndEnabled(cfg.homeSubCluster) {
		klog.V(6).InfoS("home sub-cluster is not active, ignoring resource request",
			"resourceName", rr.ResourceName, "homeSubCluster", cfg.homeSubCluster)
		_ = p.emitter.StoreInt64(metricSplitDroppedRequests, 1)
		return
	}
	if targetIDs.Len() > 0 {
		bookkeeper.addRackRequest(cfg.homeSubCluster, rr)
	} else {
		bookkeeper.addLocalizedNodeRequest(cfg.homeSubCluster, rr)
	}
}

// splitWildcardRequest apportions one wildcard request over its target
// set: the sub-clusters its allocation id localized containers to, or the
// whole active-and-enabled set when the id carries no localized
// statistics.
func (p *LocalityMulticastPolicy) splitWildcardRequest(
	cfg *policyConfig, bookkeeper *allocationBookkeeper, rr *types.ResourceRequest,
) {
	allocationID := rr.AllocationRequestID
	localized := bookkeeper.subClustersForID(allocationID)

	targets := localized
	if targets == nil {
		targets = bookkeeper.activeAndEnabled
	}

	for _, target := range targets.List() {
		targetID := types.SubClusterID(target)
		apportioned := float64(rr.NumContainers)

		// a zero-container ask may cancel an earlier request, broadcast
		// it verbatim to every sub-cluster we previously heard from
		if rr.NumContainers == 0 && bookkeeper.hasHeadroom(targetID) {
			bookkeeper.addAnyRequest(targetID, rr)
		}

		if localized != nil {
			apportioned *= bookkeeper.localityBasedWeight(allocationID, targetID)
		} else {
			apportioned *= cfg.headroomAlpha*bookkeeper.headroomWeight(targetID) +
				(1-cfg.headroomAlpha)*bookkeeper.policyWeight(targetID)
		}

		if apportioned <= 0 {
			continue
		}
		out := rr.Clone()
		out.NumContainers = int32(math.Ceil(apportioned))
		if out.IsAnyLocation() {
			bookkeeper.addAnyRequest(targetID, out)
		} else {
			bookkeeper.addRackRequest(targetID, out)
		}
	}
}
