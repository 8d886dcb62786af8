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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

func TestStaticResolver(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(
		map[string]types.SubClusterID{
			"node1": "sc1",
			"node2": "sc2",
			"node3": "sc1",
		},
		map[string]string{
			"node1": "rack0",
			"node2": "rack0",
			"node3": "rack1",
		},
	)

	sc, err := r.GetSubClusterForNode("node1")
	require.NoError(t, err)
	assert.Equal(t, types.SubClusterID("sc1"), sc)

	_, err = r.GetSubClusterForNode("nope")
	require.True(t, IsNoMapping(err))

	owners, err := r.GetSubClustersForRack("rack0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sc1", "sc2"}, owners.UnsortedList())

	_, err = r.GetSubClustersForRack("rack9")
	require.True(t, IsNoMapping(err))
}

const machineListFixture = `machines:
  - node: node1
    subCluster: sc1
    rack: rack0
  - node: node2
    subCluster: sc2
    rack: rack0
  - node: node3
    subCluster: sc3
`

func writeMachineList(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "machines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileResolverLoad(t *testing.T) {
	t.Parallel()

	path := writeMachineList(t, t.TempDir(), machineListFixture)
	r, err := NewFileResolver(path)
	require.NoError(t, err)

	sc, err := r.GetSubClusterForNode("node2")
	require.NoError(t, err)
	assert.Equal(t, types.SubClusterID("sc2"), sc)

	owners, err := r.GetSubClustersForRack("rack0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sc1", "sc2"}, owners.UnsortedList())

	// node3 has no rack assignment
	_, err = r.GetSubClustersForRack("node3")
	require.True(t, IsNoMapping(err))
}

func TestFileResolverRejectsMalformedList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeMachineList(t, dir, "machines:\n  - rack: lonely\n")
	_, err := NewFileResolver(path)
	require.Error(t, err)

	_, err = NewFileResolver(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestFileResolverKeepsMappingOnBrokenReload(t *testing.T) {
	t.Parallel()

	path := writeMachineList(t, t.TempDir(), machineListFixture)
	r, err := NewFileResolver(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("machines: {broken"), 0o644))
	require.Error(t, r.Load())

	sc, err := r.GetSubClusterForNode("node1")
	require.NoError(t, err)
	assert.Equal(t, types.SubClusterID("sc1"), sc)
}

func TestFileResolverHotReload(t *testing.T) {
	t.Parallel()

	path := writeMachineList(t, t.TempDir(), machineListFixture)
	r, err := NewFileResolver(path)
	require.NoError(t, err)

	stop := make(chan struct{})
	defer close(stop)
	require.NoError(t, r.Run(stop))

	require.NoError(t, os.WriteFile(path, []byte("machines:\n  - node: node9\n    subCluster: sc9\n"), 0o644))

	require.Eventually(t, func() bool {
		sc, err := r.GetSubClusterForNode("node9")
		return err == nil && sc == "sc9"
	}, 5*time.Second, 20*time.Millisecond)

	_, err = r.GetSubClusterForNode("node1")
	assert.True(t, IsNoMapping(err), "old generation is fully replaced")
}
