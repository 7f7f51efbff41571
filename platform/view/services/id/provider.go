/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package id

import (
	"sync"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Provider resolves identity labels to identities.
type Provider struct {
	defaultID view.Identity

	mu     sync.RWMutex
	labels map[string]view.Identity
}

func NewProvider(defaultID view.Identity) *Provider {
	return &Provider{
		defaultID: defaultID,
		labels:    map[string]view.Identity{},
	}
}

// DefaultIdentity returns the identity of the node itself
func (p *Provider) DefaultIdentity() view.Identity {
	return p.defaultID
}

// Identity returns the identity bound to the passed label, nil if not found
func (p *Provider) Identity(label string) view.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.labels[label]
}

// Bind binds the passed label to the passed identity
func (p *Provider) Bind(label string, id view.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels[label] = id
}

// GetProvider returns the identity provider registered in the passed provider.
// It panics, if no instance is found.
func GetProvider(sp registry.ServiceLocator) *Provider {
	s, err := sp.GetService(&Provider{})
	if err != nil {
		panic(err)
	}
	return s.(*Provider)
}
