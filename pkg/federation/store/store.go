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

// Package store tracks federation membership: which sub-clusters exist,
// their reported state, and which of them are currently active. The
// splitting policy consumes the StateStore interface only; the in-memory
// implementation backs tests and single-process embeddings.
package store // import "github.com/clusterfed/federation-core/pkg/federation/store"

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

// ErrSubClusterNotFound is returned for operations against an unknown
// sub-cluster.
var ErrSubClusterNotFound = errors.New("sub-cluster not registered")

// SubClusterInfo is the membership record for one sub-cluster.
type SubClusterInfo struct {
	ID            types.SubClusterID
	State         types.SubClusterState
	Capability    v1.ResourceList
	LastHeartbeat time.Time
}

// StateStore is the membership facade the splitting policy consults once
// per call. Implementations must be safe for concurrent use.
type StateStore interface {
	// GetActiveSubClusters returns the sub-clusters currently able to
	// receive requests. Lookup failures propagate to the caller unchanged.
	GetActiveSubClusters() (map[types.SubClusterID]*SubClusterInfo, error)
}

// InMemoryStateStore keeps membership in process. A sub-cluster is active
// if its reported state is usable and its last heartbeat is within the
// configured TTL; a TTL of zero disables heartbeat expiry.
type InMemoryStateStore struct {
	heartbeatTTL time.Duration
	clock        clock.Clock

	mutex       sync.RWMutex
	subClusters map[types.SubClusterID]*SubClusterInfo
}

var _ StateStore = &InMemoryStateStore{}

// NewInMemoryStateStore builds an empty store with the given heartbeat TTL.
func NewInMemoryStateStore(heartbeatTTL time.Duration) *InMemoryStateStore {
	return newInMemoryStateStore(heartbeatTTL, clock.RealClock{})
}

func newInMemoryStateStore(heartbeatTTL time.Duration, c clock.Clock) *InMemoryStateStore {
	return &InMemoryStateStore{
		heartbeatTTL: heartbeatTTL,
		clock:        c,
		subClusters:  make(map[types.SubClusterID]*SubClusterInfo),
	}
}

// Register adds or resurrects a sub-cluster in RUNNING state.
func (s *InMemoryStateStore) Register(id types.SubClusterID, capability v1.ResourceList) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.subClusters[id] = &SubClusterInfo{
		ID:            id,
		State:         types.SubClusterStateRunning,
		Capability:    capability.DeepCopy(),
		LastHeartbeat: s.clock.Now(),
	}
	klog.V(4).InfoS("sub-cluster registered", "subCluster", id)
}

// Heartbeat refreshes liveness and state for a registered sub-cluster.
func (s *InMemoryStateStore) Heartbeat(id types.SubClusterID, state types.SubClusterState) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	info, ok := s.subClusters[id]
	if !ok {
		return errors.Wrapf(ErrSubClusterNotFound, "heartbeat from %s", id)
	}
	info.State = state
	info.LastHeartbeat = s.clock.Now()
	return nil
}

// Deregister marks a sub-cluster as having left the federation.
func (s *InMemoryStateStore) Deregister(id types.SubClusterID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	info, ok := s.subClusters[id]
	if !ok {
		return errors.Wrapf(ErrSubClusterNotFound, "deregister %s", id)
	}
	info.State = types.SubClusterStateDeregistered
	klog.V(4).InfoS("sub-cluster deregistered", "subCluster", id)
	return nil
}

func (s *InMemoryStateStore) GetActiveSubClusters() (map[types.SubClusterID]*SubClusterInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.clock.Now()
	active := make(map[types.SubClusterID]*SubClusterInfo)
	for id, info := range s.subClusters {
		if !info.State.IsUsable() {
			continue
		}
		if s.heartbeatTTL > 0 && now.Sub(info.LastHeartbeat) > s.heartbeatTTL {
			continue
		}
		cloned := *info
		cloned.Capability = info.Capability.DeepCopy()
		active[id] = &cloned
	}
	return active, nil
}
