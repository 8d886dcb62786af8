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

// Package policies defines the configuration surface shared by federation
// policies: the weighted policy info persisted in the state store, the
// initialization context handed to a policy on (re)configuration, and the
// policy error taxonomy.
package policies // import "github.com/clusterfed/federation-core/pkg/federation/policies"

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/clusterfed/federation-core/pkg/federation/resolver"
	"github.com/clusterfed/federation-core/pkg/federation/store"
	"github.com/clusterfed/federation-core/pkg/federation/types"
)

var (
	// ErrInvalidPolicyWeights marks a configuration whose weights cannot
	// route anything (empty, or all zero).
	ErrInvalidPolicyWeights = errors.New("policy weights are empty or all zero")
	// ErrMissingHomeSubCluster marks a configuration without a home
	// sub-cluster to fall back to.
	ErrMissingHomeSubCluster = errors.New("home sub-cluster is not set")
	// ErrNoActiveSubClusters is returned by a split call when no
	// sub-cluster is both active and weight-enabled.
	ErrNoActiveSubClusters = errors.New("no sub-cluster is both active and enabled by the policy weights")
)

// WeightedPolicyInfo is the persisted shape of a weighted federation
// policy: routing weights for the router side, splitting weights for the
// AMRM proxy side, and the headroom influence coefficient.
type WeightedPolicyInfo struct {
	RouterPolicyWeights map[types.SubClusterID]float64 `json:"routerPolicyWeights,omitempty"`
	AMRMPolicyWeights   map[types.SubClusterID]float64 `json:"amrmPolicyWeights,omitempty"`
	// HeadroomAlpha in [0,1]: 0 splits purely on configured weights, 1
	// purely on advertised headroom.
	HeadroomAlpha float64 `json:"headroomAlpha"`
}

// ParseWeightedPolicyInfo decodes policy info from its persisted JSON form.
func ParseWeightedPolicyInfo(raw []byte) (*WeightedPolicyInfo, error) {
	info := &WeightedPolicyInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, errors.Wrap(err, "parse weighted policy info")
	}
	return info, nil
}

// ToBytes encodes the policy info into its persisted JSON form.
func (w *WeightedPolicyInfo) ToBytes() ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "encode weighted policy info")
	}
	return raw, nil
}

// HasEnabledAMRMWeight returns true if at least one AMRM weight is
// strictly positive, i.e. the policy can forward at least somewhere.
func (w *WeightedPolicyInfo) HasEnabledAMRMWeight() bool {
	return lo.SomeBy(lo.Values(w.AMRMPolicyWeights), func(weight float64) bool {
		return weight > 0
	})
}

// PolicyInitializationContext carries everything a policy needs to
// (re)configure itself: the policy info, the facades, and the home
// sub-cluster of the application being served.
type PolicyInitializationContext struct {
	PolicyInfo     *WeightedPolicyInfo
	Resolver       resolver.SubClusterResolver
	StateStore     store.StateStore
	HomeSubCluster types.SubClusterID
}

// Validate applies the checks every weighted policy shares. It returns a
// configuration error and leaves the caller's previous configuration
// untouched on failure.
func (c *PolicyInitializationContext) Validate() error {
	if c == nil || c.PolicyInfo == nil {
		return errors.Wrap(ErrInvalidPolicyWeights, "nil initialization context or policy info")
	}
	if !c.PolicyInfo.HasEnabledAMRMWeight() {
		return errors.Wrap(ErrInvalidPolicyWeights,
			"no resource request could be forwarded with this setting")
	}
	if c.HomeSubCluster == "" {
		return ErrMissingHomeSubCluster
	}
	if c.Resolver == nil {
		return errors.New("sub-cluster resolver is required")
	}
	if c.StateStore == nil {
		return errors.New("state store is required")
	}
	return nil
}
