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

// Package config holds the static configuration surface of the federation
// components. Options carry flag binding; the resulting Configuration is
// what components consume.
package config // import "github.com/clusterfed/federation-core/pkg/config"

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/clusterfed/federation-core/pkg/federation/types"
)

const (
	defaultHeartbeatTTL  = 5 * time.Minute
	defaultHeadroomAlpha = 1.0
)

// FederationOptions holds the flag-settable configuration for the
// federation policy layer.
type FederationOptions struct {
	MachineListPath string
	HomeSubCluster  string
	HeadroomAlpha   float64
	HeartbeatTTL    time.Duration
}

func NewFederationOptions() *FederationOptions {
	return &FederationOptions{
		HeadroomAlpha: defaultHeadroomAlpha,
		HeartbeatTTL:  defaultHeartbeatTTL,
	}
}

// AddFlags adds flags to the specified FlagSet.
func (o *FederationOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.MachineListPath, "federation-machine-list", o.MachineListPath,
		"Path of the machine list file mapping nodes to sub-clusters and racks")
	fs.StringVar(&o.HomeSubCluster, "federation-home-sub-cluster", o.HomeSubCluster,
		"The sub-cluster unresolvable requests default to")
	fs.Float64Var(&o.HeadroomAlpha, "federation-headroom-alpha", o.HeadroomAlpha,
		"How much advertised headroom influences wildcard splitting, 0 for pure policy weights, 1 for pure headroom")
	fs.DurationVar(&o.HeartbeatTTL, "federation-heartbeat-ttl", o.HeartbeatTTL,
		"How long after its last heartbeat a sub-cluster still counts as active, 0 disables expiry")
}

// ApplyTo validates the options and fills the configuration.
func (o *FederationOptions) ApplyTo(c *FederationConfiguration) error {
	if o.HeadroomAlpha < 0 || o.HeadroomAlpha > 1 {
		return errors.Errorf("federation-headroom-alpha %v out of range [0,1]", o.HeadroomAlpha)
	}
	if o.HeartbeatTTL < 0 {
		return errors.Errorf("federation-heartbeat-ttl %v must not be negative", o.HeartbeatTTL)
	}

	c.MachineListPath = o.MachineListPath
	c.HomeSubCluster = types.SubClusterID(o.HomeSubCluster)
	c.HeadroomAlpha = o.HeadroomAlpha
	c.HeartbeatTTL = o.HeartbeatTTL
	return nil
}

// FederationConfiguration is the applied form of FederationOptions.
type FederationConfiguration struct {
	MachineListPath string
	HomeSubCluster  types.SubClusterID
	HeadroomAlpha   float64
	HeartbeatTTL    time.Duration
}

func NewFederationConfiguration() *FederationConfiguration {
	return &FederationConfiguration{
		HeadroomAlpha: defaultHeadroomAlpha,
		HeartbeatTTL:  defaultHeartbeatTTL,
	}
}
