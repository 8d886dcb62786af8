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

// Package amrmproxy contains the request-splitting policies applied by the
// federation AMRM proxy: given one application's resource requests, decide
// which sub-cluster resource managers receive which fraction of them, so
// the transport layer can multicast the split requests and later merge the
// allocations.
package amrmproxy // import "github.com/clusterfed/federation-core/pkg/federation/policies/amrmproxy"

import (
	"github.com/clusterfed/federation-core/pkg/federation/policies"
	"github.com/clusterfed/federation-core/pkg/federation/types"
)

// Policy splits resource requests across the federation.
//
// Implementations must tolerate concurrent SplitResourceRequests calls,
// concurrent NotifyOfResponse feedback, and Reinitialize racing with
// in-flight splits.
type Policy interface {
	// Reinitialize atomically applies a new configuration. On validation
	// failure the previously active configuration stays in effect.
	Reinitialize(ctx *policies.PolicyInitializationContext) error

	// SplitResourceRequests maps each request to the sub-clusters that
	// should receive it, preserving per-sub-cluster insertion order. It
	// fails when no sub-cluster is both active and weight-enabled, and
	// propagates membership lookup errors unchanged.
	SplitResourceRequests(requests []*types.ResourceRequest) (map[types.SubClusterID][]*types.ResourceRequest, error)

	// NotifyOfResponse records headroom feedback from one sub-cluster.
	NotifyOfResponse(id types.SubClusterID, response *types.AllocateResponse)
}
