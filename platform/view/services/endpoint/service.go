/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endpoint

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Resolver binds a party identity to the endpoint its node listens on.
type Resolver struct {
	Name     string
	Endpoint string
	ID       view.Identity
}

// Service resolves party identities to endpoints and back.
// It replaces any network-map style global registry: the set of known
// parties is injected explicitly, one resolver at a time.
type Service struct {
	mu        sync.RWMutex
	resolvers []*Resolver
}

func NewService() *Service {
	return &Service{}
}

// AddResolver makes the passed party known to this node
func (s *Service) AddResolver(name, endpoint string, id view.Identity) error {
	if id.IsNone() {
		return errors.Errorf("resolver [%s] carries an empty identity", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers = append(s.resolvers, &Resolver{Name: name, Endpoint: endpoint, ID: id})
	return nil
}

// Resolve returns the resolver bound to the passed party identity
func (s *Service) Resolve(party view.Identity) (*Resolver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resolvers {
		if r.ID.Equal(party) {
			return r, nil
		}
	}
	return nil, errors.Errorf("no endpoint found for identity [%s]", party)
}

// Endpoint returns the endpoint the passed party identity listens on
func (s *Service) Endpoint(party view.Identity) (string, error) {
	r, err := s.Resolve(party)
	if err != nil {
		return "", err
	}
	return r.Endpoint, nil
}

// GetIdentity returns the identity of the party listening at the passed endpoint
func (s *Service) GetIdentity(endpoint string) (view.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resolvers {
		if r.Endpoint == endpoint {
			return r.ID, nil
		}
	}
	return nil, errors.Errorf("no identity found for endpoint [%s]", endpoint)
}

// GetService returns the endpoint service registered in the passed provider.
// It panics, if no instance is found.
func GetService(sp registry.ServiceLocator) *Service {
	s, err := sp.GetService(&Service{})
	if err != nil {
		panic(err)
	}
	return s.(*Service)
}
