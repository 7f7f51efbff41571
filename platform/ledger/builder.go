/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("ledger-sdk")

// NotaryRegistry enumerates the notarizing authorities this node knows.
// It is injected configuration, not a process-wide registry.
type NotaryRegistry struct {
	mu       sync.RWMutex
	notaries []view.Identity
}

func NewNotaryRegistry() *NotaryRegistry {
	return &NotaryRegistry{}
}

// Add makes the passed notary known
func (r *NotaryRegistry) Add(id view.Identity) error {
	if id.IsNone() {
		return errors.New("notary identity cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notaries = append(r.notaries, id)
	return nil
}

// Default returns the single configured notary.
// With several notaries configured, the caller must pick one explicitly:
// no tie-break is applied.
func (r *NotaryRegistry) Default() (view.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch len(r.notaries) {
	case 0:
		return nil, errors.New("no notary configured")
	case 1:
		return r.notaries[0], nil
	default:
		return nil, errors.Errorf("[%d] notaries configured, the transaction must designate one explicitly", len(r.notaries))
	}
}

// GetNotaryRegistry returns the notary registry registered in the passed
// provider. It panics, if no instance is found.
func GetNotaryRegistry(sp registry.ServiceLocator) *NotaryRegistry {
	s, err := sp.GetService(&NotaryRegistry{})
	if err != nil {
		panic(err)
	}
	return s.(*NotaryRegistry)
}

// NewTransaction returns an empty transaction with a fresh identifier,
// designated to the node's configured notary.
func NewTransaction(context view.Context) (*Transaction, error) {
	notary, err := GetNotaryRegistry(context).Default()
	if err != nil {
		return nil, errors.WithMessage(err, "failed designating a notary")
	}
	return NewTransactionWithNotary(notary)
}

// NewTransactionWithNotary returns an empty transaction with a fresh
// identifier, designated to the passed notary
func NewTransactionWithNotary(notary view.Identity) (*Transaction, error) {
	if notary.IsNone() {
		return nil, errors.New("notary identity cannot be empty")
	}
	tx := &Transaction{
		ID:     uuid.New().String(),
		Notary: notary,
	}
	logger.Debugf("new transaction [%s] with notary [%s]", tx.ID, notary)
	return tx, nil
}
