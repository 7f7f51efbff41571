/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.comm")

// Mesh connects the hosts of a set of in-process nodes.
// It gives each pair of hosts reliable, ordered, per-session delivery.
// Cross-session ordering is not guaranteed.
type Mesh struct {
	mu    sync.RWMutex
	hosts map[string]*Host
}

func NewMesh() *Mesh {
	return &Mesh{hosts: map[string]*Host{}}
}

// NewHost registers a new host on this mesh under the passed endpoint name
func (m *Mesh) NewHost(endpoint string) (*Host, error) {
	if len(endpoint) == 0 {
		return nil, errors.New("endpoint cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hosts[endpoint]; ok {
		return nil, errors.Errorf("endpoint [%s] already registered", endpoint)
	}
	h := newHost(m, endpoint)
	m.hosts[endpoint] = h
	return h, nil
}

func (m *Mesh) route(endpoint string, msg *view.Message) error {
	m.mu.RLock()
	h, ok := m.hosts[endpoint]
	m.mu.RUnlock()
	if !ok {
		return errors.Errorf("no host registered at [%s]", endpoint)
	}
	return h.deliver(msg)
}
