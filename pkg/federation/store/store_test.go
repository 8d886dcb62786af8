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

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

func TestRegisterAndListActive(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStateStore(0)
	s.Register("sc1", nil)
	s.Register("sc2", nil)

	active, err := s.GetActiveSubClusters()
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, types.SubClusterStateRunning, active["sc1"].State)
}

func TestDrainingAndDeregisteredAreInactive(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStateStore(0)
	s.Register("sc1", nil)
	s.Register("sc2", nil)
	s.Register("sc3", nil)

	require.NoError(t, s.Heartbeat("sc2", types.SubClusterStateDraining))
	require.NoError(t, s.Deregister("sc3"))

	active, err := s.GetActiveSubClusters()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Contains(t, active, types.SubClusterID("sc1"))
}

func TestUnknownSubClusterOperations(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStateStore(0)
	require.ErrorIs(t, s.Heartbeat("ghost", types.SubClusterStateRunning), ErrSubClusterNotFound)
	require.ErrorIs(t, s.Deregister("ghost"), ErrSubClusterNotFound)
}

func TestHeartbeatExpiry(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Now())
	s := newInMemoryStateStore(time.Minute, clk)
	s.Register("sc1", nil)
	s.Register("sc2", nil)

	clk.Step(45 * time.Second)
	require.NoError(t, s.Heartbeat("sc2", types.SubClusterStateRunning))

	clk.Step(30 * time.Second)

	// sc1 last beat 75s ago, sc2 only 30s ago
	active, err := s.GetActiveSubClusters()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Contains(t, active, types.SubClusterID("sc2"))

	// a fresh heartbeat resurrects an expired sub-cluster
	require.NoError(t, s.Heartbeat("sc1", types.SubClusterStateRunning))
	active, err = s.GetActiveSubClusters()
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestActiveViewIsIsolated(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStateStore(0)
	s.Register("sc1", nil)

	active, err := s.GetActiveSubClusters()
	require.NoError(t, err)
	active["sc1"].State = types.SubClusterStateLost

	again, err := s.GetActiveSubClusters()
	require.NoError(t, err)
	assert.Equal(t, types.SubClusterStateRunning, again["sc1"].State,
		"mutating a returned record must not leak into the store")
}
