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

// Package types contains the data model shared by the federation
// components: sub-cluster identities, resource requests flowing from an
// application master towards the member resource managers, and the
// allocate-response payload used for headroom feedback.
package types // import "github.com/clusterfed/federation-core/pkg/federation/types"

import (
	v1 "k8s.io/api/core/v1"
)

// AnyLocation is the wildcard resource name marking a request as not tied
// to a specific node or rack.
const AnyLocation = "*"

// SubClusterID identifies one member resource manager of the federation.
// IDs are opaque and totally ordered by their string form.
type SubClusterID string

func (s SubClusterID) String() string {
	return string(s)
}

// SubClusterState describes the lifecycle state a sub-cluster reported to
// the membership store.
type SubClusterState string

const (
	SubClusterStateRunning      SubClusterState = "RUNNING"
	SubClusterStateDraining     SubClusterState = "DRAINING"
	SubClusterStateDeregistered SubClusterState = "DEREGISTERED"
	SubClusterStateLost         SubClusterState = "LOST"
)

// IsUsable returns true if sub-clusters in this state may receive new
// resource requests.
func (s SubClusterState) IsUsable() bool {
	return s == SubClusterStateRunning
}

// ExecutionType specifies how the requested containers should be executed
// by the serving resource manager.
type ExecutionType string

const (
	ExecutionTypeGuaranteed    ExecutionType = "GUARANTEED"
	ExecutionTypeOpportunistic ExecutionType = "OPPORTUNISTIC"
)

// ResourceRequest is one ask from an application: NumContainers containers
// of Capability each, optionally pinned to the node or rack named by
// ResourceName. Requests are treated as immutable values; the splitting
// policy always emits fresh copies instead of mutating its inputs.
//
// AllocationRequestID correlates the node/rack-local requests and the
// wildcard request that together form one logical ask.
type ResourceRequest struct {
	Priority            int32
	ResourceName        string
	Capability          v1.ResourceList
	NumContainers       int32
	RelaxLocality       bool
	NodeLabelExpression string
	ExecutionType       ExecutionType
	AllocationRequestID int64
}

// IsAnyLocation returns true if the resource name is the wildcard location.
func IsAnyLocation(resourceName string) bool {
	return resourceName == AnyLocation
}

// IsAnyLocation returns true if this request is a wildcard (ANY) request.
func (r *ResourceRequest) IsAnyLocation() bool {
	return IsAnyLocation(r.ResourceName)
}

// Clone returns a copy of the request with its own capability map.
func (r *ResourceRequest) Clone() *ResourceRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Capability = r.Capability.DeepCopy()
	return &out
}

// AllocateResponse is the slice of a member resource manager's allocate
// response the federation layer cares about: the advertised headroom.
type AllocateResponse struct {
	AvailableResources v1.ResourceList
}

// MemoryBytes extracts the memory dimension of a resource list, the only
// dimension the splitting arithmetic consults. Missing entries count as
// zero.
func MemoryBytes(rl v1.ResourceList) int64 {
	if rl == nil {
		return 0
	}
	q, ok := rl[v1.ResourceMemory]
	if !ok {
		return 0
	}
	return q.Value()
}
