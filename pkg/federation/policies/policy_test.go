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

package policies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterfed/federation-core/pkg/federation/resolver"
	"github.com/clusterfed/federation-core/pkg/federation/store"
	"github.com/clusterfed/federation-core/pkg/federation/types"
)

func TestWeightedPolicyInfoRoundTrip(t *testing.T) {
	t.Parallel()

	info := &WeightedPolicyInfo{
		RouterPolicyWeights: map[types.SubClusterID]float64{"sc1": 0.75, "sc2": 0.25},
		AMRMPolicyWeights:   map[types.SubClusterID]float64{"sc1": 2, "sc2": 1},
		HeadroomAlpha:       0.5,
	}

	raw, err := info.ToBytes()
	require.NoError(t, err)

	parsed, err := ParseWeightedPolicyInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, info, parsed)

	_, err = ParseWeightedPolicyInfo([]byte("{not json"))
	require.Error(t, err)
}

func TestHasEnabledAMRMWeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights map[types.SubClusterID]float64
		want    bool
	}{
		{name: "nil weights", weights: nil, want: false},
		{name: "all zero", weights: map[types.SubClusterID]float64{"sc1": 0, "sc2": 0}, want: false},
		{name: "one positive", weights: map[types.SubClusterID]float64{"sc1": 0, "sc2": 0.1}, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info := &WeightedPolicyInfo{AMRMPolicyWeights: tt.weights}
			assert.Equal(t, tt.want, info.HasEnabledAMRMWeight())
		})
	}
}

func TestInitializationContextValidate(t *testing.T) {
	t.Parallel()

	valid := func() *PolicyInitializationContext {
		return &PolicyInitializationContext{
			PolicyInfo:     &WeightedPolicyInfo{AMRMPolicyWeights: map[types.SubClusterID]float64{"sc1": 1}},
			Resolver:       resolver.NewStaticResolver(nil, nil),
			StateStore:     store.NewInMemoryStateStore(0),
			HomeSubCluster: "sc1",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*PolicyInitializationContext)
		wantErr error
	}{
		{
			name:    "zero weights",
			mutate:  func(c *PolicyInitializationContext) { c.PolicyInfo.AMRMPolicyWeights = nil },
			wantErr: ErrInvalidPolicyWeights,
		},
		{
			name:    "missing home",
			mutate:  func(c *PolicyInitializationContext) { c.HomeSubCluster = "" },
			wantErr: ErrMissingHomeSubCluster,
		},
		{
			name:    "nil policy info",
			mutate:  func(c *PolicyInitializationContext) { c.PolicyInfo = nil },
			wantErr: ErrInvalidPolicyWeights,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := valid()
			tt.mutate(ctx)
			require.ErrorIs(t, ctx.Validate(), tt.wantErr)
		})
	}

	ctx := valid()
	ctx.Resolver = nil
	require.Error(t, ctx.Validate())

	ctx = valid()
	ctx.StateStore = nil
	require.Error(t, ctx.Validate())
}
