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

// Package resolver maps node and rack names to the sub-clusters that own
// them. The splitting policy only depends on the SubClusterResolver
// interface; this package additionally ships a static in-memory resolver
// and a machine-list-file backed resolver with hot reload.
package resolver // import "github.com/clusterfed/federation-core/pkg/federation/resolver"

import (
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

// ErrNoMapping is returned when a node or rack name cannot be resolved to
// any owning sub-cluster. Callers treat it as "not found", not as a fault.
var ErrNoMapping = errors.New("no sub-cluster mapping for name")

// IsNoMapping returns true if err indicates an unresolvable name.
func IsNoMapping(err error) bool {
	return errors.Is(err, ErrNoMapping)
}

// SubClusterResolver answers ownership queries for node and rack names.
// Implementations must be safe for concurrent use.
type SubClusterResolver interface {
	// GetSubClusterForNode returns the sub-cluster owning the given node,
	// or ErrNoMapping if the node is unknown.
	GetSubClusterForNode(nodeName string) (types.SubClusterID, error)
	// GetSubClustersForRack returns every sub-cluster owning machines in
	// the given rack (racks may be striped across resource managers), or
	// ErrNoMapping if the rack is unknown.
	GetSubClustersForRack(rackName string) (sets.String, error)
}

// StaticResolver serves a fixed node/rack topology. It is handy for tests
// and for embedders that derive topology from an external source.
type StaticResolver struct {
	nodeToSubCluster map[string]types.SubClusterID
	rackToSubCluster map[string]sets.String
}

var _ SubClusterResolver = &StaticResolver{}

// NewStaticResolver builds a resolver over the given node ownership and
// node-to-rack assignment maps.
func NewStaticResolver(nodeToSubCluster map[string]types.SubClusterID, nodeToRack map[string]string) *StaticResolver {
	r := &StaticResolver{
		nodeToSubCluster: make(map[string]types.SubClusterID, len(nodeToSubCluster)),
		rackToSubCluster: make(map[string]sets.String),
	}
	for node, sc := range nodeToSubCluster {
		r.nodeToSubCluster[node] = sc
		rack, ok := nodeToRack[node]
		if !ok {
			continue
		}
		if r.rackToSubCluster[rack] == nil {
			r.rackToSubCluster[rack] = sets.NewString()
		}
		r.rackToSubCluster[rack].Insert(sc.String())
	}
	return r
}

func (r *StaticResolver) GetSubClusterForNode(nodeName string) (types.SubClusterID, error) {
	sc, ok := r.nodeToSubCluster[nodeName]
	if !ok {
		return "", errors.Wrapf(ErrNoMapping, "node %q", nodeName)
	}
	return sc, nil
}

func (r *StaticResolver) GetSubClustersForRack(rackName string) (sets.String, error) {
	owners, ok := r.rackToSubCluster[rackName]
	if !ok || owners.Len() == 0 {
		return nil, errors.Wrapf(ErrNoMapping, "rack %q", rackName)
	}
	// callers may retain the set; hand out a copy
	return sets.NewString(owners.UnsortedList()...), nil
}
