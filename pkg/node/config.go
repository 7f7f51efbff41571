/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/comm"
)

// NodeConfig describes one node of a topology
type NodeConfig struct {
	// Name is the node's endpoint name on the mesh
	Name string `mapstructure:"name"`
	// Role is either party or notary
	Role string `mapstructure:"role"`
	// Seed, hex-encoded, derives the node's signing key deterministically
	Seed string `mapstructure:"seed"`
	// Storage is where the node persists its store. Empty means in-memory.
	Storage string `mapstructure:"storage"`
}

// Config describes a full topology of nodes sharing one process
type Config struct {
	// Logging is the log level specification, e.g. "info" or "debug:comm=error"
	Logging string `mapstructure:"logging"`
	// Topology lists the nodes to assemble
	Topology []NodeConfig `mapstructure:"topology"`
}

// LoadConfig reads a topology configuration from the passed file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed reading configuration from [%s]", path)
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrapf(err, "failed unmarshalling configuration from [%s]", path)
	}
	if len(c.Topology) == 0 {
		return nil, errors.New("configuration declares no nodes")
	}
	for _, nc := range c.Topology {
		if nc.Role != "party" && nc.Role != "notary" {
			return nil, errors.Errorf("node [%s] declares unknown role [%s]", nc.Name, nc.Role)
		}
	}
	return c, nil
}

// NewFromConfig assembles a node on the passed mesh from the passed
// configuration entry
func NewFromConfig(mesh *comm.Mesh, nc NodeConfig) (*Node, error) {
	var seed []byte
	if len(nc.Seed) != 0 {
		var err error
		seed, err = hex.DecodeString(nc.Seed)
		if err != nil {
			return nil, errors.Wrapf(err, "node [%s] carries a malformed seed", nc.Name)
		}
	}
	return New(mesh, Options{
		Name:        nc.Name,
		Seed:        seed,
		StoragePath: nc.Storage,
		Notary:      nc.Role == "notary",
	})
}
