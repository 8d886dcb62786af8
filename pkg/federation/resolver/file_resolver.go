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

package resolver

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

// machineEntry is one line of the machine-list file: which sub-cluster a
// node belongs to, and which rack it sits in.
type machineEntry struct {
	Node       string `yaml:"node"`
	SubCluster string `yaml:"subCluster"`
	Rack       string `yaml:"rack,omitempty"`
}

type machineList struct {
	Machines []machineEntry `yaml:"machines"`
}

// FileResolver resolves node and rack ownership from a YAML machine list
// on disk. The mapping is replaced wholesale on Load, so concurrent
// lookups always observe one consistent generation.
type FileResolver struct {
	path string

	mutex sync.RWMutex
	nodes map[string]types.SubClusterID
	racks map[string]sets.String
}

var _ SubClusterResolver = &FileResolver{}

// NewFileResolver loads the machine list at path. The returned resolver
// does not watch the file; call Load to refresh, or Run to follow changes.
func NewFileResolver(path string) (*FileResolver, error) {
	r := &FileResolver{path: path}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load re-reads the machine list and atomically swaps the lookup tables.
// On failure the previously loaded tables stay in effect.
func (r *FileResolver) Load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return errors.Wrapf(err, "read machine list %s", r.path)
	}

	var list machineList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return errors.Wrapf(err, "parse machine list %s", r.path)
	}

	nodes := make(map[string]types.SubClusterID, len(list.Machines))
	racks := make(map[string]sets.String)
	for _, m := range list.Machines {
		if m.Node == "" || m.SubCluster == "" {
			return errors.Errorf("malformed machine entry %+v in %s", m, r.path)
		}
		nodes[m.Node] = types.SubClusterID(m.SubCluster)
		if m.Rack == "" {
			continue
		}
		if racks[m.Rack] == nil {
			racks[m.Rack] = sets.NewString()
		}
		racks[m.Rack].Insert(m.SubCluster)
	}

	r.mutex.Lock()
	r.nodes = nodes
	r.racks = racks
	r.mutex.Unlock()

	klog.V(4).InfoS("machine list loaded", "path", r.path, "nodes", len(nodes), "racks", len(racks))
	return nil
}

// Run follows file events on the machine list and reloads it on every
// write, until stop is closed. Reload failures keep the previous mapping
// and are logged, never fatal.
func (r *FileResolver) Run(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new fsnotify watcher")
	}
	// watch the directory so atomic renames over the file are seen
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return errors.Wrapf(err, "watch %s", filepath.Dir(r.path))
	}

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				klog.ErrorS(err, "failed to close machine list watcher")
			}
		}()

		for {
			select {
			case event := <-watcher.Events:
				if filepath.Base(event.Name) != filepath.Base(r.path) ||
					event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.Load(); err != nil {
					klog.ErrorS(err, "machine list reload failed, keeping previous mapping")
				}
			case err := <-watcher.Errors:
				klog.ErrorS(err, "machine list watcher error")
			case <-stop:
				klog.InfoS("shutting down machine list watcher", "path", r.path)
				return
			}
		}
	}()

	return nil
}

func (r *FileResolver) GetSubClusterForNode(nodeName string) (types.SubClusterID, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	sc, ok := r.nodes[nodeName]
	if !ok {
		return "", errors.Wrapf(ErrNoMapping, "node %q", nodeName)
	}
	return sc, nil
}

func (r *FileResolver) GetSubClustersForRack(rackName string) (sets.String, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	owners, ok := r.racks[rackName]
	if !ok || owners.Len() == 0 {
		return nil, errors.Wrapf(ErrNoMapping, "rack %q", rackName)
	}
	return sets.NewString(owners.UnsortedList()...), nil
}
