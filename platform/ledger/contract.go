/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
)

// Contract verifies a proposed transaction against the rules of a command.
// Implementations must be pure: deterministic, no I/O, no hidden state, so
// that every party can re-run them independently on the same proposal and
// reach the same verdict.
type Contract interface {
	// Verify returns nil if the transaction is legal for this command,
	// a VerificationError carrying the violated rule otherwise.
	Verify(tx *Transaction) error
}

// ContractRegistry maps command names to their contracts.
// Commands form a closed enumeration: new operations are added by
// registering new commands, not by subclassing existing ones.
type ContractRegistry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{contracts: map[string]Contract{}}
}

// Register binds the passed contract to the passed command name
func (r *ContractRegistry) Register(command string, contract Contract) error {
	if len(command) == 0 {
		return errors.New("command name cannot be empty")
	}
	if contract == nil {
		return errors.New("contract cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[command]; ok {
		return errors.Errorf("a contract is already registered for command [%s]", command)
	}
	r.contracts[command] = contract
	return nil
}

// Verify runs the contract bound to the transaction's command.
// Re-running it on the same transaction yields the same result.
func (r *ContractRegistry) Verify(tx *Transaction) error {
	if tx.Command == nil {
		return NewVerificationError("transaction [%s] carries no command", tx.ID)
	}
	r.mu.RLock()
	contract, ok := r.contracts[tx.Command.Name]
	r.mu.RUnlock()
	if !ok {
		return NewVerificationError("no contract registered for command [%s]", tx.Command.Name)
	}
	return contract.Verify(tx)
}

// GetContractRegistry returns the contract registry registered in the passed
// provider. It panics, if no instance is found.
func GetContractRegistry(sp registry.ServiceLocator) *ContractRegistry {
	s, err := sp.GetService(&ContractRegistry{})
	if err != nil {
		panic(err)
	}
	return s.(*ContractRegistry)
}
